// Package conversation drives user turns end to end: it dispatches each turn
// to the image, chat or fallback path for the active engine, folds streamed
// fragments into the trailing bot message, and commits finished turns to the
// session store.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yanmxa/hezell/internal/log"
	"github.com/yanmxa/hezell/internal/message"
	"github.com/yanmxa/hezell/internal/provider"
	"github.com/yanmxa/hezell/internal/session"
	"github.com/yanmxa/hezell/internal/system"
)

const (
	// enhanceEngine runs prompt rewriting.
	enhanceEngine = "gemini-3-flash-preview"
	// speechEngine reads bot messages aloud.
	speechEngine = "gemini-2.5-flash-preview-tts"
)

// Settings are the user-selectable inputs of a conversation.
type Settings struct {
	Engine      string
	Persona     system.Persona
	Search      bool
	Thinking    bool
	Turbo       bool
	AspectRatio message.AspectRatio
	Voice       message.Voice
}

// binding is everything a chat handle is created for. A handle is reused
// only while its binding matches the current one.
type binding struct {
	engine   string
	persona  system.Persona
	search   bool
	thinking bool
	turbo    bool
	fallback bool
}

func (s Settings) binding(kind provider.Kind) binding {
	return binding{
		engine:   s.Engine,
		persona:  s.Persona,
		search:   s.Search,
		thinking: s.Thinking,
		turbo:    s.Turbo,
		fallback: kind == provider.KindFallback,
	}
}

// dropIncompatible clears flags the engine cannot honor.
func (s *Settings) dropIncompatible(e provider.Engine) {
	if e.Kind != provider.KindChat {
		s.Search = false
	}
	if !e.Thinking {
		s.Thinking = false
		s.Turbo = false
	}
}

// Options configures a Controller.
type Options struct {
	// Primary serves chat engines. When nil, chat turns use Fallback.
	Primary provider.LLMProvider
	// Fallback serves the fallback engine and stands in for a missing Primary.
	Fallback provider.LLMProvider
	// Generator serves image turns, follow-up suggestions and prompt rewriting.
	Generator provider.Generator
	// Store receives every finished turn. Required.
	Store *session.Store
	// Builder assembles system instructions; nil uses the builtin personas.
	Builder *system.Builder
	// Settings are the initial settings; zero fields take defaults.
	Settings Settings
	// OnChange receives a snapshot after every visible change, in order.
	// It must not call mutating Controller methods.
	OnChange func(Snapshot)
}

// Snapshot is a copy of the observable conversation state.
type Snapshot struct {
	Messages []message.Message
	Busy     bool
	Settings Settings
	ActiveID string
	// Staged is the name of the staged attachment, empty when none.
	Staged string
	// LastImage reports whether a generated image is kept for continuous editing.
	LastImage bool
}

// Controller owns one conversation. All methods are safe for concurrent use;
// Send blocks until its turn has finished.
type Controller struct {
	mu sync.Mutex

	primary   provider.LLMProvider
	fallback  provider.LLMProvider
	generator provider.Generator
	store     *session.Store
	builder   *system.Builder
	onChange  func(Snapshot)

	settings  Settings
	messages  []message.Message
	activeID  string
	staged    *message.Attachment
	lastImage *message.Attachment
	busy      bool
	// epoch is bumped whenever the conversation is replaced; a turn started
	// under an older epoch no longer owns any message.
	epoch uint64

	chat     provider.Chat
	chatBind binding

	// emitMu orders snapshots with their delivery.
	emitMu sync.Mutex
}

// New returns a controller with an empty conversation.
func New(opts Options) (*Controller, error) {
	if opts.Store == nil {
		return nil, errors.New("conversation: session store is required")
	}

	s := opts.Settings
	if s.Engine == "" {
		s.Engine = provider.EngineFlash
	}
	engine, ok := provider.Lookup(s.Engine)
	if !ok {
		return nil, fmt.Errorf("%w: %s", provider.ErrUnknownEngine, s.Engine)
	}
	if s.Persona == "" {
		s.Persona = system.PersonaDefault
	}
	if !s.AspectRatio.Valid() {
		s.AspectRatio = message.AspectSquare
	}
	if !s.Voice.Valid() {
		s.Voice = message.VoiceKore
	}
	if s.Thinking && s.Turbo {
		s.Turbo = false
	}
	s.dropIncompatible(engine)

	builder := opts.Builder
	if builder == nil {
		builder = system.NewBuilder(nil)
	}
	if !builder.Has(s.Persona) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPersona, s.Persona)
	}

	return &Controller{
		primary:   opts.Primary,
		fallback:  opts.Fallback,
		generator: opts.Generator,
		store:     opts.Store,
		builder:   builder,
		onChange:  opts.OnChange,
		settings:  s,
	}, nil
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		Messages:  message.CloneAll(c.messages),
		Busy:      c.busy,
		Settings:  c.settings,
		ActiveID:  c.activeID,
		LastImage: c.lastImage != nil,
	}
	if c.staged != nil {
		snap.Staged = c.staged.Name
		if snap.Staged == "" {
			snap.Staged = c.staged.MIMEType
		}
	}
	return snap
}

// Sessions lists stored sessions, newest first.
func (c *Controller) Sessions() []session.Session {
	return c.store.List()
}

func (c *Controller) emit() {
	if c.onChange == nil {
		return
	}
	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	c.onChange(c.Snapshot())
}

// mutate runs fn under the lock and emits a snapshot when it reports a change.
func (c *Controller) mutate(fn func() (bool, error)) error {
	c.mu.Lock()
	changed, err := fn()
	c.mu.Unlock()
	if changed {
		c.emit()
	}
	return err
}

// resetLocked replaces the conversation with an empty one.
func (c *Controller) resetLocked() {
	c.messages = nil
	c.activeID = ""
	c.staged = nil
	c.lastImage = nil
	c.busy = false
	c.epoch++
	c.dropChatLocked()
}

func (c *Controller) dropChatLocked() {
	c.chat = nil
	c.chatBind = binding{}
}

func (c *Controller) engineLocked() provider.Engine {
	e, _ := provider.Lookup(c.settings.Engine)
	return e
}

// ToggleSearch flips web-search grounding. Only chat engines support it.
func (c *Controller) ToggleSearch() (bool, error) {
	var on bool
	err := c.mutate(func() (bool, error) {
		if c.engineLocked().Kind != provider.KindChat {
			return false, fmt.Errorf("search: %w", ErrUnsupported)
		}
		c.settings.Search = !c.settings.Search
		on = c.settings.Search
		c.dropChatLocked()
		return true, nil
	})
	return on, err
}

// ToggleThinking flips reasoning mode. Enabling it disables turbo.
func (c *Controller) ToggleThinking() (bool, error) {
	var on bool
	err := c.mutate(func() (bool, error) {
		if !c.engineLocked().Thinking {
			return false, fmt.Errorf("reasoning: %w", ErrUnsupported)
		}
		c.settings.Thinking = !c.settings.Thinking
		if c.settings.Thinking {
			c.settings.Turbo = false
		}
		on = c.settings.Thinking
		c.dropChatLocked()
		return true, nil
	})
	return on, err
}

// ToggleTurbo flips zero-budget mode. Enabling it disables reasoning.
func (c *Controller) ToggleTurbo() (bool, error) {
	var on bool
	err := c.mutate(func() (bool, error) {
		if !c.engineLocked().Thinking {
			return false, fmt.Errorf("turbo: %w", ErrUnsupported)
		}
		c.settings.Turbo = !c.settings.Turbo
		if c.settings.Turbo {
			c.settings.Thinking = false
		}
		on = c.settings.Turbo
		c.dropChatLocked()
		return true, nil
	})
	return on, err
}

// SetPersona selects the system-instruction persona.
func (c *Controller) SetPersona(p system.Persona) error {
	return c.mutate(func() (bool, error) {
		if !c.builder.Has(p) {
			return false, fmt.Errorf("%w: %s", ErrUnknownPersona, p)
		}
		if c.settings.Persona == p {
			return false, nil
		}
		c.settings.Persona = p
		c.dropChatLocked()
		return true, nil
	})
}

// SetEngine switches engines. A different engine starts a fresh
// conversation and drops flags it cannot honor.
func (c *Controller) SetEngine(id string) error {
	engine, ok := provider.Lookup(id)
	if !ok {
		return fmt.Errorf("%w: %s", provider.ErrUnknownEngine, id)
	}
	return c.mutate(func() (bool, error) {
		if c.settings.Engine == id {
			return false, nil
		}
		c.settings.Engine = id
		c.settings.dropIncompatible(engine)
		c.resetLocked()
		return true, nil
	})
}

// SetAspectRatio selects the frame for generated images.
func (c *Controller) SetAspectRatio(r message.AspectRatio) error {
	if !r.Valid() {
		return fmt.Errorf("unsupported aspect ratio %q", r)
	}
	return c.mutate(func() (bool, error) {
		changed := c.settings.AspectRatio != r
		c.settings.AspectRatio = r
		return changed, nil
	})
}

// SetVoice selects the voice used by Speak.
func (c *Controller) SetVoice(v message.Voice) error {
	if !v.Valid() {
		return fmt.Errorf("unsupported voice %q", v)
	}
	return c.mutate(func() (bool, error) {
		changed := c.settings.Voice != v
		c.settings.Voice = v
		return changed, nil
	})
}

// Stage attaches a file to the next turn. It replaces any previously
// generated image as the edit source.
func (c *Controller) Stage(att message.Attachment) error {
	if len(att.Data) == 0 {
		return errors.New("attachment is empty")
	}
	att.Data = slices.Clone(att.Data)
	return c.mutate(func() (bool, error) {
		c.staged = &att
		c.lastImage = nil
		return true, nil
	})
}

// ClearStaged removes the staged attachment.
func (c *Controller) ClearStaged() {
	_ = c.mutate(func() (bool, error) {
		changed := c.staged != nil
		c.staged = nil
		return changed, nil
	})
}

// StageImageForEditing stages the image of a bot message and switches to
// the image engine, keeping the conversation.
func (c *Controller) StageImageForEditing(messageID string) error {
	return c.mutate(func() (bool, error) {
		i := slices.IndexFunc(c.messages, func(m message.Message) bool { return m.ID == messageID })
		if i < 0 {
			return false, fmt.Errorf("%w: %s", ErrUnknownMessage, messageID)
		}
		url := c.messages[i].ImageURL
		if !message.IsDataURL(url) {
			return false, fmt.Errorf("message %s carries no inline image", messageID)
		}
		att, err := message.ParseDataURL(url)
		if err != nil {
			return false, err
		}
		att.Name = fmt.Sprintf("edit-%d.png", time.Now().UnixMilli())

		engine, _ := provider.Lookup(provider.EngineImage)
		c.staged = &att
		c.lastImage = nil
		c.settings.Engine = engine.ID
		c.settings.dropIncompatible(engine)
		c.dropChatLocked()
		return true, nil
	})
}

// LoadSession replaces the conversation with a stored session.
func (c *Controller) LoadSession(id string) error {
	sess, ok := c.store.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	err := c.mutate(func() (bool, error) {
		staged := c.staged
		c.resetLocked()
		c.messages = sess.Messages
		c.activeID = sess.ID
		c.staged = staged
		return true, nil
	})
	if err == nil {
		log.Logger().Debug("session loaded", zap.String("session", id), log.MessagesField(sess.Messages))
	}
	return err
}

// NewSession starts an empty conversation.
func (c *Controller) NewSession() {
	_ = c.mutate(func() (bool, error) {
		c.resetLocked()
		return true, nil
	})
}

// ClearHistory deletes every stored session and starts an empty conversation.
// The conversation is reset first so a turn finishing during the clear can
// no longer commit.
func (c *Controller) ClearHistory() error {
	c.NewSession()
	return c.store.Clear()
}

// EnhancePrompt rewrites a draft prompt to be more detailed. An empty
// rewrite leaves the draft unchanged.
func (c *Controller) EnhancePrompt(ctx context.Context, draft string) (string, error) {
	if strings.TrimSpace(draft) == "" {
		return draft, ErrEmptyPrompt
	}
	if c.generator == nil {
		return draft, fmt.Errorf("prompt enhancement: %w", provider.ErrNoCredential)
	}
	out, err := c.generator.GenerateText(ctx, provider.TextRequest{
		Engine:    enhanceEngine,
		Prompt:    system.EnhancePrompt(draft),
		Reasoning: provider.Budget{Mode: provider.BudgetZero},
	})
	if err != nil {
		return draft, fmt.Errorf("failed to enhance prompt: %w", err)
	}
	if out = strings.TrimSpace(out); out == "" {
		return draft, nil
	}
	return out, nil
}

// Speak reads a finished bot message aloud in the selected voice. An empty
// id picks the latest bot message with text.
func (c *Controller) Speak(ctx context.Context, id string) (*provider.SpeechResult, error) {
	c.mu.Lock()
	voice := c.settings.Voice
	var target *message.Message
	for i := len(c.messages) - 1; i >= 0; i-- {
		m := c.messages[i]
		match := m.ID == id
		if id == "" {
			match = m.Sender == message.SenderBot && !m.IsStreaming && m.Text != ""
		}
		if match {
			target = &m
			break
		}
	}
	c.mu.Unlock()

	if target == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMessage, id)
	}
	if target.IsStreaming || strings.TrimSpace(target.Text) == "" {
		return nil, errors.New("message has no text to read")
	}
	if c.generator == nil {
		return nil, fmt.Errorf("speech: %w", provider.ErrNoCredential)
	}
	res, err := c.generator.GenerateSpeech(ctx, provider.SpeechRequest{
		Engine: speechEngine,
		Text:   target.Text,
		Voice:  voice,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate speech: %w", err)
	}
	log.Logger().Debug("speech generated",
		zap.String("message", target.ID),
		zap.String("voice", string(voice)),
		zap.Int("bytes", len(res.PCM)))
	return res, nil
}
