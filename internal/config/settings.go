// Package config provides multi-level settings management for Hezell.
// Settings are loaded from multiple sources with the following priority (lowest to highest):
//  1. ~/.hezell/settings.json (user level)
//  2. .hezell/settings.json (project level)
//  3. .hezell/settings.local.json (local level, not committed)
//  4. CLI flags
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/yanmxa/hezell/internal/kv"
	"github.com/yanmxa/hezell/internal/message"
	"github.com/yanmxa/hezell/internal/provider"
	"github.com/yanmxa/hezell/internal/session"
	"github.com/yanmxa/hezell/internal/system"
)

// Settings represents the complete Hezell configuration.
// Booleans are pointers so a later source can switch a flag off.
type Settings struct {
	// Engine is the initial engine id (e.g., "gemini-2.5-flash")
	Engine string `json:"engine,omitempty"`

	// Persona is the initial persona name
	Persona string `json:"persona,omitempty"`

	Search   *bool `json:"search,omitempty"`
	Thinking *bool `json:"thinking,omitempty"`
	Turbo    *bool `json:"turbo,omitempty"`

	// AspectRatio applies to image engines
	AspectRatio string `json:"aspectRatio,omitempty"`

	// Voice reads answers aloud: Kore, Fenrir, Puck, Charon or Aoede
	Voice string `json:"voice,omitempty"`

	// Fallback selects the non-Gemini endpoint used when the primary engine
	// is unavailable or the fallback engine is chosen
	Fallback FallbackSettings `json:"fallback,omitempty"`

	// History configures the session store
	History HistorySettings `json:"history,omitempty"`

	// Env defines environment variables to set when not already present
	Env map[string]string `json:"env,omitempty"`
}

// FallbackSettings names the fallback provider and model.
type FallbackSettings struct {
	// Provider is one of "openai", "moonshot", "anthropic"; empty picks the
	// first configured one
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
}

// HistorySettings configures chat history persistence.
type HistorySettings struct {
	Path       string `json:"path,omitempty"`
	QuotaBytes *int   `json:"quotaBytes,omitempty"`
	// Debounce is a Go duration string such as "1s" or "250ms"
	Debounce string `json:"debounce,omitempty"`
	// Disabled keeps history in memory only
	Disabled *bool `json:"disabled,omitempty"`
}

// NewSettings creates a new Settings instance with default values
func NewSettings() *Settings {
	return &Settings{
		Env: make(map[string]string),
	}
}

// EngineID returns the configured engine or the default.
func (s *Settings) EngineID() string {
	if s.Engine != "" {
		return s.Engine
	}
	return provider.EngineFlash
}

// PersonaName returns the configured persona or the default.
func (s *Settings) PersonaName() system.Persona {
	if s.Persona != "" {
		return system.Persona(s.Persona)
	}
	return system.PersonaDefault
}

// Aspect returns the configured aspect ratio or the square default.
func (s *Settings) Aspect() message.AspectRatio {
	if r := message.AspectRatio(s.AspectRatio); r.Valid() {
		return r
	}
	return message.AspectSquare
}

// VoiceName returns the configured voice or Kore.
func (s *Settings) VoiceName() message.Voice {
	if v := message.Voice(s.Voice); v.Valid() {
		return v
	}
	return message.VoiceKore
}

// SearchEnabled reports the configured search flag.
func (s *Settings) SearchEnabled() bool { return deref(s.Search) }

// ThinkingEnabled reports the configured reasoning flag.
func (s *Settings) ThinkingEnabled() bool { return deref(s.Thinking) }

// TurboEnabled reports the configured turbo flag.
func (s *Settings) TurboEnabled() bool { return deref(s.Turbo) }

// HistoryPath returns the history file path, defaulting to
// ~/.hezell/chatHistory.json.
func (s *Settings) HistoryPath() (string, error) {
	if s.History.Path != "" {
		return s.History.Path, nil
	}
	return kv.DefaultPath()
}

// HistoryQuota returns the history byte quota; zero or less is unlimited.
func (s *Settings) HistoryQuota() int {
	if s.History.QuotaBytes != nil {
		return *s.History.QuotaBytes
	}
	return kv.DefaultQuota
}

// HistoryDebounce parses the configured debounce delay.
func (s *Settings) HistoryDebounce() (time.Duration, error) {
	if s.History.Debounce == "" {
		return session.DefaultDebounce, nil
	}
	d, err := time.ParseDuration(s.History.Debounce)
	if err != nil {
		return 0, fmt.Errorf("invalid history debounce %q: %w", s.History.Debounce, err)
	}
	return d, nil
}

// HistoryDisabled reports whether history stays in memory only.
func (s *Settings) HistoryDisabled() bool { return deref(s.History.Disabled) }

// ApplyEnv exports Env entries that are not already set in the process
// environment.
func (s *Settings) ApplyEnv() {
	for k, v := range s.Env {
		if _, ok := os.LookupEnv(k); !ok {
			os.Setenv(k, v)
		}
	}
}

// Validate checks enumerated fields.
func (s *Settings) Validate() error {
	if _, ok := provider.Lookup(s.EngineID()); !ok {
		return fmt.Errorf("%w: %s", provider.ErrUnknownEngine, s.Engine)
	}
	if s.AspectRatio != "" && !message.AspectRatio(s.AspectRatio).Valid() {
		return fmt.Errorf("unsupported aspect ratio %q", s.AspectRatio)
	}
	if s.Voice != "" && !message.Voice(s.Voice).Valid() {
		return fmt.Errorf("unsupported voice %q", s.Voice)
	}
	switch provider.Provider(s.Fallback.Provider) {
	case "", provider.ProviderOpenAI, provider.ProviderMoonshot, provider.ProviderAnthropic:
	default:
		return fmt.Errorf("unsupported fallback provider %q", s.Fallback.Provider)
	}
	if _, err := s.HistoryDebounce(); err != nil {
		return err
	}
	return nil
}

// Bool returns a pointer to b, for building overlays.
func Bool(b bool) *bool { return &b }

func deref(b *bool) bool { return b != nil && *b }
