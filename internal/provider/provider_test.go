package provider

import (
	"context"
	"errors"
	"testing"
)

type stubProvider struct{ name string }

func (s stubProvider) Name() string { return s.name }
func (s stubProvider) NewChat(context.Context, ChatConfig) (Chat, error) {
	return nil, errors.New("not used")
}

func TestRegistryReadiness(t *testing.T) {
	t.Setenv("HEZELL_TEST_KEY_A", "")
	t.Setenv("HEZELL_TEST_KEY_B", "")

	r := NewRegistry()
	meta := ProviderMeta{Provider: "stub", AuthMethod: AuthAPIKey, EnvVars: []string{"HEZELL_TEST_KEY_A|HEZELL_TEST_KEY_B"}}
	r.Register(meta, func(context.Context) (LLMProvider, error) { return stubProvider{name: "stub"}, nil })

	if _, err := r.GetProvider(context.Background(), "stub", AuthAPIKey); !errors.Is(err, ErrNoCredential) {
		t.Fatalf("expected ErrNoCredential, got %v", err)
	}
	if len(r.GetReadyProviders()) != 0 {
		t.Error("provider reported ready without credentials")
	}

	t.Setenv("HEZELL_TEST_KEY_B", "secret")
	p, err := r.GetProvider(context.Background(), "stub", AuthAPIKey)
	if err != nil {
		t.Fatalf("GetProvider() error: %v", err)
	}
	if p.Name() != "stub" {
		t.Errorf("Name() = %q", p.Name())
	}

	infos := r.GetProvidersWithStatus()
	if len(infos) != 1 || infos[0].Status != StatusAvailable {
		t.Errorf("unexpected status list %+v", infos)
	}
}

func TestRegistryFirstReady(t *testing.T) {
	t.Setenv("HEZELL_TEST_OPENAI", "")
	t.Setenv("HEZELL_TEST_ANTHROPIC", "x")

	r := NewRegistry()
	r.Register(ProviderMeta{Provider: ProviderOpenAI, AuthMethod: AuthAPIKey, EnvVars: []string{"HEZELL_TEST_OPENAI"}},
		func(context.Context) (LLMProvider, error) { return stubProvider{name: "openai"}, nil })
	r.Register(ProviderMeta{Provider: ProviderAnthropic, AuthMethod: AuthAPIKey, EnvVars: []string{"HEZELL_TEST_ANTHROPIC"}},
		func(context.Context) (LLMProvider, error) { return stubProvider{name: "anthropic"}, nil })

	p, err := r.FirstReady(context.Background(), ProviderOpenAI, ProviderAnthropic)
	if err != nil {
		t.Fatalf("FirstReady() error: %v", err)
	}
	if p.Name() != "anthropic" {
		t.Errorf("FirstReady() = %q, want anthropic", p.Name())
	}

	if _, err := r.FirstReady(context.Background(), ProviderMoonshot); !errors.Is(err, ErrNoCredential) {
		t.Errorf("expected ErrNoCredential, got %v", err)
	}

	if _, err := r.GetProvider(context.Background(), "missing", AuthAPIKey); err == nil {
		t.Error("expected error for unregistered provider")
	}
}

func TestEngineCatalog(t *testing.T) {
	for _, id := range []string{EngineFlash, EnginePro, EngineLite, EngineLegacy} {
		e, ok := Lookup(id)
		if !ok || e.Kind != KindChat {
			t.Errorf("%s should be a chat engine", id)
		}
	}
	for _, id := range []string{EngineImage, EngineImagen} {
		if e, _ := Lookup(id); e.Kind != KindImage {
			t.Errorf("%s should be an image engine", id)
		}
	}
	if e, _ := Lookup(EngineFallback); e.Kind != KindFallback {
		t.Error("fallback engine has the wrong kind")
	}
	if _, ok := Lookup("gpt-9"); ok {
		t.Error("unknown engine found")
	}
}

func TestReasoningBudget(t *testing.T) {
	pro, _ := Lookup(EnginePro)
	flash, _ := Lookup(EngineFlash)
	legacy, _ := Lookup(EngineLegacy)

	tests := []struct {
		name             string
		engine           Engine
		reasoning, turbo bool
		want             Budget
	}{
		{"pro reasoning", pro, true, false, Budget{Mode: BudgetFixed, Tokens: 16000}},
		{"flash reasoning", flash, true, false, Budget{Mode: BudgetFixed, Tokens: 8192}},
		{"turbo", flash, false, true, Budget{Mode: BudgetZero}},
		{"plain", flash, false, false, Budget{}},
		{"unsupported engine", legacy, true, false, Budget{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.engine.ReasoningBudget(tt.reasoning, tt.turbo); got != tt.want {
				t.Errorf("ReasoningBudget() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestBudgetString(t *testing.T) {
	if got := (Budget{Mode: BudgetFixed, Tokens: 8192}).String(); got != "fixed:8192" {
		t.Errorf("String() = %q", got)
	}
	if got := (Budget{}).String(); got != "none" {
		t.Errorf("String() = %q", got)
	}
}
