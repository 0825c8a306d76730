package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/yanmxa/hezell/internal/message"
	"github.com/yanmxa/hezell/internal/provider"
	"github.com/yanmxa/hezell/internal/system"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoaderPriority(t *testing.T) {
	root := t.TempDir()
	userDir := filepath.Join(root, "home", ".hezell")
	projectDir := filepath.Join(root, "proj", ".hezell")

	writeFile(t, filepath.Join(userDir, "settings.json"), `{
		"engine": "gemini-3-pro-preview",
		"persona": "Architect",
		"search": true,
		"voice": "Fenrir",
		"history": {"quotaBytes": 1024, "debounce": "2s"},
		"env": {"A": "user", "B": "user"}
	}`)
	writeFile(t, filepath.Join(projectDir, "settings.json"), `{
		"engine": "gemini-flash-lite-latest",
		"search": false,
		"env": {"B": "project"}
	}`)
	writeFile(t, filepath.Join(projectDir, "settings.local.json"), `{
		"thinking": true,
		"fallback": {"provider": "anthropic"}
	}`)

	s, err := NewLoaderWithOptions(userDir, projectDir).Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if s.EngineID() != provider.EngineLite {
		t.Errorf("EngineID() = %q", s.EngineID())
	}
	if s.PersonaName() != system.PersonaArchitect {
		t.Errorf("PersonaName() = %q", s.PersonaName())
	}
	if s.SearchEnabled() {
		t.Error("project level should switch search off")
	}
	if !s.ThinkingEnabled() || s.TurboEnabled() {
		t.Errorf("thinking=%v turbo=%v", s.ThinkingEnabled(), s.TurboEnabled())
	}
	if s.VoiceName() != message.VoiceFenrir {
		t.Errorf("VoiceName() = %q", s.VoiceName())
	}
	if s.Fallback.Provider != "anthropic" {
		t.Errorf("Fallback.Provider = %q", s.Fallback.Provider)
	}
	if s.HistoryQuota() != 1024 {
		t.Errorf("HistoryQuota() = %d", s.HistoryQuota())
	}
	if d, err := s.HistoryDebounce(); err != nil || d != 2*time.Second {
		t.Errorf("HistoryDebounce() = (%v, %v)", d, err)
	}
	if diff := cmp.Diff(map[string]string{"A": "user", "B": "project"}, s.Env); diff != "" {
		t.Errorf("Env mismatch (-want +got):\n%s", diff)
	}
	if err := s.Validate(); err != nil {
		t.Errorf("Validate() error: %v", err)
	}
}

func TestLoaderMalformedFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "settings.json"), `{not json`)
	if _, err := NewLoaderWithOptions(dir, filepath.Join(dir, "none")).Load(); err == nil {
		t.Error("expected error for malformed settings")
	}
}

func TestDefaults(t *testing.T) {
	s, err := NewLoaderWithOptions(t.TempDir(), t.TempDir()).Load()
	if err != nil {
		t.Fatal(err)
	}
	if s.EngineID() != provider.EngineFlash {
		t.Errorf("default engine = %q", s.EngineID())
	}
	if s.PersonaName() != system.PersonaDefault {
		t.Errorf("default persona = %q", s.PersonaName())
	}
	if s.Aspect() != message.AspectSquare {
		t.Errorf("default aspect = %q", s.Aspect())
	}
	if s.VoiceName() != message.VoiceKore {
		t.Errorf("default voice = %q", s.VoiceName())
	}
	if s.HistoryQuota() != 5<<20 {
		t.Errorf("default quota = %d", s.HistoryQuota())
	}
	if d, _ := s.HistoryDebounce(); d != time.Second {
		t.Errorf("default debounce = %v", d)
	}
	if s.HistoryDisabled() {
		t.Error("history should be enabled by default")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		s    Settings
	}{
		{"unknown engine", Settings{Engine: "gpt-9"}},
		{"bad aspect", Settings{AspectRatio: "2:1"}},
		{"bad voice", Settings{Voice: "Robot"}},
		{"bad fallback", Settings{Fallback: FallbackSettings{Provider: "ollama"}}},
		{"bad debounce", Settings{History: HistorySettings{Debounce: "soon"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.s.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestMergeSettingsNil(t *testing.T) {
	s := &Settings{Engine: "x"}
	if MergeSettings(nil, s) != s || MergeSettings(s, nil) != s {
		t.Error("nil side should return the other side")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("HEZELL_TEST_PRESET", "kept")
	os.Unsetenv("HEZELL_TEST_NEW")
	t.Cleanup(func() { os.Unsetenv("HEZELL_TEST_NEW") })

	s := &Settings{Env: map[string]string{"HEZELL_TEST_PRESET": "overwritten", "HEZELL_TEST_NEW": "set"}}
	s.ApplyEnv()

	if got := os.Getenv("HEZELL_TEST_PRESET"); got != "kept" {
		t.Errorf("existing variable replaced: %q", got)
	}
	if got := os.Getenv("HEZELL_TEST_NEW"); got != "set" {
		t.Errorf("missing variable not exported: %q", got)
	}
}

func TestLoadPersonas(t *testing.T) {
	path := filepath.Join(t.TempDir(), "personas.yaml")

	got, err := LoadPersonas(path)
	if err != nil || len(got) != 0 {
		t.Fatalf("missing file: (%v, %v)", got, err)
	}

	writeFile(t, path, `personas:
  - name: Pirate
    instruction: |
      You are a pirate.
  - name: Poet
    instruction: Answer in verse.
`)
	got, err = LoadPersonas(path)
	if err != nil {
		t.Fatalf("LoadPersonas() error: %v", err)
	}
	want := map[string]string{"Pirate": "You are a pirate.\n", "Poet": "Answer in verse."}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("personas mismatch (-want +got):\n%s", diff)
	}

	writeFile(t, path, "personas:\n  - instruction: nameless\n")
	if _, err := LoadPersonas(path); err == nil {
		t.Error("expected error for unnamed persona")
	}
}
