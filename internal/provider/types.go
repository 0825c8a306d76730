package provider

import (
	"context"
	"fmt"

	"github.com/yanmxa/hezell/internal/message"
)

// Provider represents a provider name
type Provider string

const (
	ProviderGoogle    Provider = "google"
	ProviderOpenAI    Provider = "openai"
	ProviderMoonshot  Provider = "moonshot"
	ProviderAnthropic Provider = "anthropic"
)

// AuthMethod represents an authentication method
type AuthMethod string

const (
	AuthAPIKey AuthMethod = "api_key"
	AuthVertex AuthMethod = "vertex"
)

// ProviderMeta contains static metadata about a provider
type ProviderMeta struct {
	Provider    Provider
	AuthMethod  AuthMethod
	EnvVars     []string // Required environment variables; "A|B" accepts either
	DisplayName string
}

// Key returns a unique key for this provider configuration
func (m ProviderMeta) Key() string {
	return string(m.Provider) + ":" + string(m.AuthMethod)
}

// BudgetMode selects how much hidden reasoning an engine may spend.
type BudgetMode int

const (
	BudgetNone  BudgetMode = iota // engine default, no reasoning config sent
	BudgetFixed                   // explicit token budget
	BudgetZero                    // reasoning disabled (turbo)
)

// Budget is the reasoning configuration of a chat.
type Budget struct {
	Mode   BudgetMode
	Tokens int32 // only meaningful for BudgetFixed
}

func (b Budget) String() string {
	switch b.Mode {
	case BudgetFixed:
		return fmt.Sprintf("fixed:%d", b.Tokens)
	case BudgetZero:
		return "zero"
	}
	return "none"
}

// Role is the author of a history turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Turn is one prior exchange entry replayed into a new chat.
type Turn struct {
	Role       Role
	Text       string
	Attachment *message.Attachment
}

// ChatConfig is everything a chat handle is bound to.
type ChatConfig struct {
	Engine            string
	SystemInstruction string
	SearchEnabled     bool
	Reasoning         Budget
	// IncludeThoughts asks the engine to stream thought-tagged fragments.
	IncludeThoughts bool
	History         []Turn
}

// Prompt is one message sent to a chat.
type Prompt struct {
	Text       string
	Attachment *message.Attachment
}

// Chat is a persistent conversation handle. Send streams the reply; the
// channel ends with a done or error chunk and is then closed.
type Chat interface {
	Send(ctx context.Context, p Prompt) <-chan message.StreamChunk
}

// LLMProvider is the interface that all chat providers must implement
type LLMProvider interface {
	// NewChat opens a chat handle seeded with cfg.History
	NewChat(ctx context.Context, cfg ChatConfig) (Chat, error)

	// Name returns the provider name
	Name() string
}

// ImageRequest asks for a new image, or an edit of Source when set.
type ImageRequest struct {
	Engine      string
	Prompt      string
	Source      *message.Attachment
	AspectRatio message.AspectRatio
}

// ImageResult is a generated image plus any text the engine returned.
type ImageResult struct {
	Image message.Attachment
	Text  string
}

// TextRequest is a one-shot, non-chat text generation.
type TextRequest struct {
	Engine            string
	Prompt            string
	SystemInstruction string
	Reasoning         Budget
}

// SpeechRequest asks for Text read aloud in a prebuilt voice.
type SpeechRequest struct {
	Engine string
	Text   string
	Voice  message.Voice
}

// SpeechResult is mono signed 16-bit little-endian PCM.
type SpeechResult struct {
	PCM        []byte
	SampleRate int
}

// Generator performs one-shot calls: image synthesis and editing, speech,
// and ancillary text tasks such as prompt enhancement.
type Generator interface {
	GenerateImage(ctx context.Context, req ImageRequest) (*ImageResult, error)
	GenerateText(ctx context.Context, req TextRequest) (string, error)
	GenerateSpeech(ctx context.Context, req SpeechRequest) (*SpeechResult, error)
}

// ProviderFactory creates a new LLMProvider instance
type ProviderFactory func(ctx context.Context) (LLMProvider, error)
