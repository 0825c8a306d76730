package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/yanmxa/hezell/internal/config"
	"github.com/yanmxa/hezell/internal/conversation"
	"github.com/yanmxa/hezell/internal/kv"
	"github.com/yanmxa/hezell/internal/log"
	"github.com/yanmxa/hezell/internal/provider"
	"github.com/yanmxa/hezell/internal/session"
	"github.com/yanmxa/hezell/internal/system"
)

// overrides are command-line values that win over settings files.
type overrides struct {
	engine  string
	persona string
	// offline skips provider setup for commands that only touch history.
	offline bool
}

// environment is everything a command needs once settings are resolved.
type environment struct {
	conversation conversation.Options
	store        *session.Store
	imageDir     string
}

// fallbackModelEnv names the model variable each fallback endpoint reads.
var fallbackModelEnv = map[provider.Provider]string{
	provider.ProviderOpenAI:    "OPENAI_MODEL",
	provider.ProviderMoonshot:  "MOONSHOT_MODEL",
	provider.ProviderAnthropic: "ANTHROPIC_MODEL",
}

// newLoader returns the settings loader. HEZELL_HOME relocates the user
// directory.
func newLoader() *config.Loader {
	if home := os.Getenv("HEZELL_HOME"); home != "" {
		return config.NewLoaderWithOptions(home, ".hezell")
	}
	return config.NewLoader()
}

func setup(ctx context.Context, o overrides) (*environment, error) {
	loader := newLoader()
	log.Logger().Debug("settings directories",
		zap.String("user", loader.GetUserDir()),
		zap.String("project", loader.GetProjectDir()))
	settings, err := loader.Load()
	if err != nil {
		return nil, err
	}
	if o.engine != "" {
		settings.Engine = o.engine
	}
	if o.persona != "" {
		settings.Persona = o.persona
	}
	settings.ApplyEnv()
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	store, err := openStore(settings)
	if err != nil {
		return nil, err
	}
	env := &environment{
		store:    store,
		imageDir: filepath.Join(loader.GetUserDir(), "images"),
	}
	if o.offline {
		return env, nil
	}

	personas, err := config.LoadPersonas(loader.PersonasPath())
	if err != nil {
		store.Close()
		return nil, err
	}

	env.conversation = conversation.Options{
		Store:   store,
		Builder: system.NewBuilder(personas),
		Settings: conversation.Settings{
			Engine:      settings.EngineID(),
			Persona:     settings.PersonaName(),
			Search:      settings.SearchEnabled(),
			Thinking:    settings.ThinkingEnabled(),
			Turbo:       settings.TurboEnabled(),
			AspectRatio: settings.Aspect(),
			Voice:       settings.VoiceName(),
		},
	}
	connect(ctx, settings, &env.conversation)
	return env, nil
}

// connect resolves the primary, fallback and generator providers from the
// environment. Missing credentials are not fatal: the turn that needs the
// provider reports it.
func connect(ctx context.Context, s *config.Settings, opts *conversation.Options) {
	if p, err := provider.FirstReady(ctx, provider.ProviderGoogle); err != nil {
		log.LogError("primary provider", err)
	} else {
		opts.Primary = p
		if g, ok := p.(provider.Generator); ok {
			opts.Generator = g
		}
	}

	candidates := []provider.Provider{provider.ProviderOpenAI, provider.ProviderMoonshot, provider.ProviderAnthropic}
	if s.Fallback.Provider != "" {
		candidates = []provider.Provider{provider.Provider(s.Fallback.Provider)}
		if env, ok := fallbackModelEnv[candidates[0]]; ok && s.Fallback.Model != "" {
			os.Setenv(env, s.Fallback.Model)
		}
	}
	if p, err := provider.FirstReady(ctx, candidates...); err != nil {
		log.LogError("fallback provider", err)
	} else {
		opts.Fallback = p
	}

	log.Logger().Info("providers connected",
		zap.Bool("primary", opts.Primary != nil),
		zap.Bool("generator", opts.Generator != nil),
		zap.Bool("fallback", opts.Fallback != nil))
}

func openStore(s *config.Settings) (*session.Store, error) {
	debounce, err := s.HistoryDebounce()
	if err != nil {
		return nil, err
	}

	var slot kv.Slot
	if s.HistoryDisabled() {
		slot = kv.NewMemorySlot(s.HistoryQuota())
	} else {
		path, err := s.HistoryPath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve history path: %w", err)
		}
		slot = kv.NewFileSlot(path, s.HistoryQuota())
	}
	return session.Open(slot, session.Options{Debounce: debounce}), nil
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// terminalWidth returns the stdout width, falling back to $COLUMNS and then 80.
func terminalWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	if w, err := strconv.Atoi(os.Getenv("COLUMNS")); err == nil && w > 0 {
		return w
	}
	return 80
}
