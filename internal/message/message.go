// Package message defines the canonical message types and utilities used across the codebase.
// All packages import from here to avoid circular dependencies.
package message

import (
	"encoding/base64"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// Sender identifies who produced a message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// AspectRatio is the requested frame of a generated image.
type AspectRatio string

const (
	AspectSquare    AspectRatio = "1:1"
	AspectWide      AspectRatio = "16:9"
	AspectTall      AspectRatio = "9:16"
	AspectLandscape AspectRatio = "4:3"
	AspectPortrait  AspectRatio = "3:4"
)

// AspectRatios lists the supported ratios in display order.
var AspectRatios = []AspectRatio{AspectSquare, AspectWide, AspectTall, AspectLandscape, AspectPortrait}

// Valid reports whether r is one of the supported ratios.
func (r AspectRatio) Valid() bool {
	return slices.Contains(AspectRatios, r)
}

// Voice is a prebuilt speech voice.
type Voice string

const (
	VoiceKore   Voice = "Kore"
	VoiceFenrir Voice = "Fenrir"
	VoicePuck   Voice = "Puck"
	VoiceCharon Voice = "Charon"
	VoiceAoede  Voice = "Aoede"
)

// Voices lists the supported voices; Kore is the default.
var Voices = []Voice{VoiceKore, VoiceFenrir, VoicePuck, VoiceCharon, VoiceAoede}

// Valid reports whether v is one of the supported voices.
func (v Voice) Valid() bool {
	return slices.Contains(Voices, v)
}

// Message is one conversational turn fragment.
// Text and ThinkingText grow while IsStreaming is true and are frozen afterwards.
type Message struct {
	ID               string      `json:"id"`
	Text             string      `json:"text"`
	ThinkingText     string      `json:"thinkingText,omitempty"`
	Sender           Sender      `json:"sender"`
	IsStreaming      bool        `json:"isStreaming,omitempty"`
	Model            string      `json:"model,omitempty"`
	Suggestions      []string    `json:"suggestions,omitempty"`
	ImageURL         string      `json:"imageUrl,omitempty"`
	AspectRatio      AspectRatio `json:"aspectRatio,omitempty"`
	UploadedImageURL string      `json:"uploadedImageUrl,omitempty"`
	Grounding        *Grounding  `json:"groundingMetadata,omitempty"`
	StatusText       string      `json:"statusText,omitempty"`
	IsThinkingMode   bool        `json:"isThinkingMode,omitempty"`
}

// Grounding carries the citation data returned with a search-grounded answer.
type Grounding struct {
	Queries []string `json:"webSearchQueries,omitempty"`
	Sources []Source `json:"sources,omitempty"`
}

// Source is one cited web page.
type Source struct {
	URI   string `json:"uri"`
	Title string `json:"title,omitempty"`
}

// NewID returns a unique, time-ordered identifier.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// UserMessage creates a user message.
func UserMessage(text string) Message {
	return Message{
		ID:     NewID(),
		Text:   text,
		Sender: SenderUser,
	}
}

// BotPlaceholder creates the streaming bot message that a turn fills in.
func BotPlaceholder(model string, thinking bool) Message {
	return Message{
		ID:             NewID(),
		Sender:         SenderBot,
		IsStreaming:    true,
		Model:          model,
		StatusText:     "Initializing...",
		IsThinkingMode: thinking,
	}
}

// Clone returns a deep copy of m.
func (m Message) Clone() Message {
	c := m
	if m.Suggestions != nil {
		c.Suggestions = slices.Clone(m.Suggestions)
	}
	if m.Grounding != nil {
		g := Grounding{
			Queries: slices.Clone(m.Grounding.Queries),
			Sources: slices.Clone(m.Grounding.Sources),
		}
		c.Grounding = &g
	}
	return c
}

// CloneAll deep-copies a message list.
func CloneAll(msgs []Message) []Message {
	if msgs == nil {
		return nil
	}
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.Clone()
	}
	return out
}

// HasUser reports whether msgs contains at least one user message.
func HasUser(msgs []Message) bool {
	return slices.ContainsFunc(msgs, func(m Message) bool { return m.Sender == SenderUser })
}

// Attachment is a binary payload staged for sending.
type Attachment struct {
	Name     string
	MIMEType string
	Data     []byte
}

// DataURL encodes the attachment as a self-contained data URI.
func (a Attachment) DataURL() string {
	return fmt.Sprintf("data:%s;base64,%s", a.MIMEType, base64.StdEncoding.EncodeToString(a.Data))
}

// IsImage reports whether the attachment carries an image.
func (a Attachment) IsImage() bool {
	return strings.HasPrefix(a.MIMEType, "image/")
}

// IsDataURL reports whether s is an inline data URI rather than a remote reference.
func IsDataURL(s string) bool {
	return strings.HasPrefix(s, "data:")
}

var errNotDataURL = errors.New("not a base64 data URL")

// ParseDataURL decodes a base64 data URI into an Attachment.
func ParseDataURL(s string) (Attachment, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return Attachment{}, errNotDataURL
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return Attachment{}, errNotDataURL
	}
	mime, ok := strings.CutSuffix(meta, ";base64")
	if !ok {
		return Attachment{}, errNotDataURL
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Attachment{}, fmt.Errorf("decode data URL: %w", err)
	}
	return Attachment{MIMEType: mime, Data: data}, nil
}

// ChunkType represents the type of a stream chunk.
type ChunkType string

const (
	ChunkTypeText      ChunkType = "text"
	ChunkTypeThought   ChunkType = "thought"
	ChunkTypeGrounding ChunkType = "grounding"
	ChunkTypeDone      ChunkType = "done"
	ChunkTypeError     ChunkType = "error"
)

// StreamChunk represents a chunk in a streaming response.
type StreamChunk struct {
	Type      ChunkType
	Text      string     // For text and thought chunks
	Grounding *Grounding // For grounding chunks
	Error     error      // For error chunks
}
