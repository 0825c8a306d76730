package tui

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/yanmxa/hezell/internal/conversation"
	"github.com/yanmxa/hezell/internal/kv"
	"github.com/yanmxa/hezell/internal/message"
	"github.com/yanmxa/hezell/internal/provider"
	"github.com/yanmxa/hezell/internal/provider/fake"
	"github.com/yanmxa/hezell/internal/session"
	"github.com/yanmxa/hezell/internal/system"
)

func newApp(t *testing.T, f *fake.Provider, settings conversation.Settings) *App {
	t.Helper()
	store := session.Open(kv.NewMemorySlot(0), session.Options{Debounce: time.Hour})
	t.Cleanup(store.Close)

	app, err := New(Options{
		Conversation: conversation.Options{Primary: f, Generator: f, Store: store, Settings: settings},
		Width:        80,
		ImageDir:     t.TempDir(),
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return app
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line     string
		wantName string
		wantArgs string
		wantOK   bool
	}{
		{"/help", "help", "", true},
		{"/Engine  imagen ", "engine", "imagen", true},
		{"/attach ~/a b.png", "attach", "~/a b.png", true},
		{"/", "", "", false},
		{"hello", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			name, args, ok := parseCommand(tt.line)
			if name != tt.wantName || args != tt.wantArgs || ok != tt.wantOK {
				t.Errorf("parseCommand(%q) = (%q, %q, %v)", tt.line, name, args, ok)
			}
		})
	}
}

func TestSendAndPickSuggestion(t *testing.T) {
	f := &fake.Provider{Replies: [][]message.StreamChunk{
		fake.Text("Hi!\n---SUGGESTIONS---\nMore\nLess"),
		fake.Text("Shorter."),
	}}
	app := newApp(t, f, conversation.Settings{})
	ctx := context.Background()

	out, err := app.Handle(ctx, "hello")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "2) Less") {
		t.Errorf("suggestions not rendered:\n%s", out)
	}

	out, err = app.Handle(ctx, "2")
	if err != nil {
		t.Fatal(err)
	}
	prompts := f.Prompts()
	if len(prompts) != 2 || prompts[1].Text != "Less" {
		t.Errorf("suggestion shortcut sent %+v", prompts)
	}
	if !strings.Contains(out, "Less") || !strings.Contains(out, "Shorter.") {
		t.Errorf("expected suggestion echo and answer:\n%s", out)
	}

	// No suggestions on the latest answer: digits are sent verbatim.
	_, _ = app.Handle(ctx, "3")
	if got := f.Prompts()[2].Text; got != "3" {
		t.Errorf("expected literal prompt, got %q", got)
	}
}

func TestToggleCommands(t *testing.T) {
	app := newApp(t, &fake.Provider{}, conversation.Settings{})
	ctx := context.Background()

	_, _ = app.Handle(ctx, "/think")
	if !app.Controller().Snapshot().Settings.Thinking {
		t.Fatal("/think did not enable reasoning")
	}
	_, _ = app.Handle(ctx, "/turbo")
	s := app.Controller().Snapshot().Settings
	if s.Thinking || !s.Turbo {
		t.Errorf("/turbo should replace reasoning: %+v", s)
	}
	_, _ = app.Handle(ctx, "/search")
	if !app.Controller().Snapshot().Settings.Search {
		t.Error("/search did not enable search")
	}

	_, _ = app.Handle(ctx, "/engine legacy")
	if _, err := app.Handle(ctx, "/think"); err == nil || !strings.Contains(err.Error(), "not supported") {
		t.Errorf("expected unsupported error, got %v", err)
	}
}

func TestEngineCommand(t *testing.T) {
	app := newApp(t, &fake.Provider{}, conversation.Settings{})
	ctx := context.Background()

	out, _ := app.Handle(ctx, "/engine")
	if !strings.Contains(out, "Hezell Imagen 4.0") {
		t.Errorf("engine listing incomplete:\n%s", out)
	}

	_, _ = app.Handle(ctx, "/engine imagen")
	if got := app.Controller().Snapshot().Settings.Engine; got != provider.EngineImagen {
		t.Errorf("engine = %q", got)
	}
	_, _ = app.Handle(ctx, "/engine "+provider.EnginePro)
	if got := app.Controller().Snapshot().Settings.Engine; got != provider.EnginePro {
		t.Errorf("engine = %q", got)
	}

	if _, err := app.Handle(ctx, "/engine gpt"); !errors.Is(err, provider.ErrUnknownEngine) {
		t.Errorf("expected unknown engine error, got %v", err)
	}
	if got := engineAlias(provider.EngineLite); got != "lite" {
		t.Errorf("engineAlias() = %q", got)
	}
}

func TestPersonaAndAspectCommands(t *testing.T) {
	app := newApp(t, &fake.Provider{}, conversation.Settings{Engine: provider.EngineImage})
	ctx := context.Background()

	_, _ = app.Handle(ctx, "/persona ghost")
	if got := app.Controller().Snapshot().Settings.Persona; got != system.PersonaGhost {
		t.Errorf("persona = %q", got)
	}
	_, _ = app.Handle(ctx, "/aspect 9:16")
	if got := app.Controller().Snapshot().Settings.AspectRatio; got != message.AspectTall {
		t.Errorf("aspect = %q", got)
	}
	out, _ := app.Handle(ctx, "/aspect")
	if !strings.Contains(out, "[9:16]") {
		t.Errorf("aspect listing should mark the current ratio:\n%s", out)
	}
}

func TestVoiceCommand(t *testing.T) {
	app := newApp(t, &fake.Provider{}, conversation.Settings{})
	ctx := context.Background()

	out, _ := app.Handle(ctx, "/voice")
	if !strings.Contains(out, "[Kore]") {
		t.Errorf("voice listing should mark the default:\n%s", out)
	}
	_, _ = app.Handle(ctx, "/voice puck")
	if got := app.Controller().Snapshot().Settings.Voice; got != message.VoicePuck {
		t.Errorf("voice = %q", got)
	}
	if _, err := app.Handle(ctx, "/voice robot"); err == nil {
		t.Error("expected error for unknown voice")
	}
}

func TestSpeakWritesWAV(t *testing.T) {
	f := &fake.Provider{
		Replies: [][]message.StreamChunk{fake.Text("Selamat pagi")},
		Speech:  []*provider.SpeechResult{{PCM: make([]byte, 48000), SampleRate: 24000}},
	}
	app := newApp(t, f, conversation.Settings{})
	ctx := context.Background()

	if _, err := app.Handle(ctx, "/speak"); err == nil {
		t.Error("expected error with nothing to read")
	}

	_, _ = app.Handle(ctx, "hello")
	out, err := app.Handle(ctx, "/speak")
	if err != nil {
		t.Fatalf("/speak error: %v", err)
	}
	if !strings.Contains(out, "(1.0s)") {
		t.Errorf("unexpected output %q", out)
	}

	bot := app.Controller().Snapshot().Messages[1]
	data, err := os.ReadFile(filepath.Join(app.render.imageDir, "hezell-"+bot.ID[:idWidth]+".wav"))
	if err != nil {
		t.Fatalf("speech file missing: %v", err)
	}
	if string(data[:4]) != "RIFF" || len(data) != 44+48000 {
		t.Errorf("not a wav file: %d bytes", len(data))
	}
	if reqs := f.SpeechRequests(); len(reqs) != 1 || reqs[0].Text != "Selamat pagi" {
		t.Errorf("speech requests = %+v", reqs)
	}
}

func TestAttachCommand(t *testing.T) {
	app := newApp(t, &fake.Provider{}, conversation.Settings{})
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "shot.png")
	if err := os.WriteFile(path, []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), 0644); err != nil {
		t.Fatal(err)
	}

	_, _ = app.Handle(ctx, "/attach "+path)
	if got := app.Controller().Snapshot().Staged; got != "shot.png" {
		t.Fatalf("staged = %q", got)
	}
	_, _ = app.Handle(ctx, "/detach")
	if got := app.Controller().Snapshot().Staged; got != "" {
		t.Errorf("staged after detach = %q", got)
	}
}

func TestLoadCommand(t *testing.T) {
	f := &fake.Provider{Replies: [][]message.StreamChunk{fake.Text("first answer")}}
	app := newApp(t, f, conversation.Settings{})
	ctx := context.Background()

	_, _ = app.Handle(ctx, "first question")
	id := app.Controller().Snapshot().ActiveID
	_, _ = app.Handle(ctx, "/new")

	out, _ := app.Handle(ctx, "/load "+id[:8])
	snap := app.Controller().Snapshot()
	if snap.ActiveID != id || len(snap.Messages) != 2 {
		t.Fatalf("session not loaded: %+v", snap)
	}
	if !strings.Contains(out, "first question") {
		t.Errorf("transcript not printed:\n%s", out)
	}
}

func TestResolveSession(t *testing.T) {
	sessions := []session.Session{{ID: "abc-1"}, {ID: "abc-2"}, {ID: "def"}}

	if s, err := resolveSession(sessions, "def"); err != nil || s.ID != "def" {
		t.Errorf("exact match = (%v, %v)", s.ID, err)
	}
	if s, err := resolveSession(sessions, "abc-2"); err != nil || s.ID != "abc-2" {
		t.Errorf("full id = (%v, %v)", s.ID, err)
	}
	if _, err := resolveSession(sessions, "abc"); err == nil {
		t.Error("expected ambiguity error")
	}
	if _, err := resolveSession(sessions, "zzz"); err == nil {
		t.Error("expected not found error")
	}
}

func TestEditCommand(t *testing.T) {
	f := &fake.Provider{Images: []*provider.ImageResult{{Image: message.Attachment{MIMEType: "image/png", Data: []byte{1}}}}}
	app := newApp(t, f, conversation.Settings{Engine: provider.EngineImagen})
	ctx := context.Background()

	if _, err := app.Handle(ctx, "/edit"); err == nil || !strings.Contains(err.Error(), "no generated image") {
		t.Errorf("expected missing image error, got %v", err)
	}

	_, _ = app.Handle(ctx, "a cat")
	_, _ = app.Handle(ctx, "/edit")
	snap := app.Controller().Snapshot()
	if !strings.HasPrefix(snap.Staged, "edit-") || snap.Settings.Engine != provider.EngineImage {
		t.Errorf("image not staged for editing: %+v", snap)
	}
}

func TestHelpAndQuit(t *testing.T) {
	app := newApp(t, &fake.Provider{}, conversation.Settings{})
	ctx := context.Background()

	out, _ := app.Handle(ctx, "/help")
	for _, want := range []string{"/attach <path>", "/speak [message-id]", "/voice [name]"} {
		if !strings.Contains(out, want) {
			t.Errorf("help missing %q:\n%s", want, out)
		}
	}
	for _, line := range []string{"/quit", "/exit", "/q"} {
		if _, err := app.Handle(ctx, line); !errors.Is(err, errQuit) {
			t.Errorf("%s should quit, got %v", line, err)
		}
	}
}

func TestAskReportsCancellation(t *testing.T) {
	f := &fake.Provider{Replies: [][]message.StreamChunk{fake.Text("late")}}
	app := newApp(t, f, conversation.Settings{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := app.Ask(ctx, "hello"); !errors.Is(err, context.Canceled) {
		t.Errorf("Ask() error = %v, want context.Canceled", err)
	}

	bot, err := app.Ask(context.Background(), "again")
	if err != nil || bot.Sender != message.SenderBot {
		t.Errorf("Ask() = (%+v, %v)", bot, err)
	}
}
