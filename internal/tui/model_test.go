package tui

import (
	"context"
	"strings"
	"testing"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/yanmxa/hezell/internal/conversation"
	"github.com/yanmxa/hezell/internal/message"
	"github.com/yanmxa/hezell/internal/provider/fake"
)

func asModel(t *testing.T, tm tea.Model) model {
	t.Helper()
	switch m := tm.(type) {
	case model:
		return m
	case *model:
		return *m
	}
	t.Fatalf("unexpected model type %T", tm)
	return model{}
}

func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

func TestSubmitRunsOffLoop(t *testing.T) {
	app := newApp(t, &fake.Provider{}, conversation.Settings{})
	m := newModel(context.Background(), app)

	m.input.SetValue("  /think ")
	tm, cmd := m.handleSubmit()
	m = asModel(t, tm)
	if !m.busy || m.input.Value() != "" || cmd == nil {
		t.Fatalf("submit did not start the line: busy=%v input=%q", m.busy, m.input.Value())
	}
	if app.Controller().Snapshot().Settings.Thinking {
		t.Fatal("line ran on the event loop")
	}

	// A second line while busy stays in the input.
	m.input.SetValue("hello")
	tm, _ = m.handleSubmit()
	if got := asModel(t, tm).input.Value(); got != "hello" {
		t.Errorf("input while busy = %q", got)
	}

	msg := m.runLine(context.Background(), "/think")()
	tm, cmd = m.Update(msg)
	m = asModel(t, tm)
	if m.busy || m.cancelFunc != nil {
		t.Error("line completion should clear busy state")
	}
	if cmd == nil {
		t.Error("expected output to be printed")
	}
	if !app.Controller().Snapshot().Settings.Thinking {
		t.Error("/think did not run")
	}
}

func TestQuitKeys(t *testing.T) {
	app := newApp(t, &fake.Provider{}, conversation.Settings{})
	m := newModel(context.Background(), app)

	m.input.SetValue("draft")
	tm, cmd := m.handleKeypress(tea.KeyMsg{Type: tea.KeyCtrlC})
	m = asModel(t, tm)
	if m.input.Value() != "" || isQuit(cmd) {
		t.Fatal("first ctrl+c should only clear the input")
	}

	cancelled := false
	m.cancelFunc = func() { cancelled = true }
	if _, cmd = m.handleKeypress(tea.KeyMsg{Type: tea.KeyCtrlC}); !isQuit(cmd) {
		t.Error("ctrl+c on an empty input should quit")
	}
	if !cancelled {
		t.Error("quitting should cancel the running line")
	}

	tm, cmd = m.Update(lineDoneMsg{err: errQuit})
	if !isQuit(cmd) || asModel(t, tm).busy {
		t.Error("/quit should end the program")
	}
}

func TestEscCancelsRunningLine(t *testing.T) {
	app := newApp(t, &fake.Provider{}, conversation.Settings{})
	m := newModel(context.Background(), app)

	cancelled := false
	m.cancelFunc = func() { cancelled = true }
	m.handleKeypress(tea.KeyMsg{Type: tea.KeyEsc})
	if cancelled {
		t.Fatal("esc while idle should not cancel")
	}

	m.busy = true
	tm, _ := m.handleKeypress(tea.KeyMsg{Type: tea.KeyEsc})
	if !cancelled || asModel(t, tm).cancelFunc != nil {
		t.Error("esc should cancel the running line")
	}
}

func TestEnhancedPromptFillsInput(t *testing.T) {
	f := &fake.Provider{Texts: []string{"A majestic cat on a velvet throne"}}
	app := newApp(t, f, conversation.Settings{})
	m := newModel(context.Background(), app)
	m.busy = true

	msg := m.runLine(context.Background(), "/enhance cat")()
	tm, _ := m.Update(msg)
	m = asModel(t, tm)
	if got := m.input.Value(); got != "A majestic cat on a velvet throne" {
		t.Errorf("input = %q", got)
	}
	if len(f.Prompts()) != 0 {
		t.Error("enhanced prompt should wait for the user")
	}
	if app.takeDraft() != "" {
		t.Error("draft should be consumed once")
	}
}

func TestSnapshotUpdatesPrompt(t *testing.T) {
	app := newApp(t, &fake.Provider{}, conversation.Settings{})
	m := newModel(context.Background(), app)

	if _, err := app.Controller().ToggleSearch(); err != nil {
		t.Fatal(err)
	}
	tm, cmd := m.Update(app.waitForChange()())
	m = asModel(t, tm)
	if cmd == nil {
		t.Error("model should keep listening for changes")
	}
	if !m.snapshot.Settings.Search || !strings.Contains(m.promptLine(), "search") {
		t.Errorf("prompt did not pick up search: %q", m.promptLine())
	}
}

func TestViewShowsStatusWhileBusy(t *testing.T) {
	app := newApp(t, &fake.Provider{}, conversation.Settings{})
	m := newModel(context.Background(), app)

	if strings.Contains(m.View(), "Working...") {
		t.Error("idle view should not show a status")
	}
	if _, cmd := m.handleSpinnerTick(spinner.TickMsg{}); cmd != nil {
		t.Error("spinner should stop when idle")
	}

	m.busy = true
	if !strings.Contains(m.View(), "Working...") {
		t.Errorf("busy view missing status:\n%s", m.View())
	}
	m.snapshot.Messages = []message.Message{{Sender: message.SenderBot, IsStreaming: true}}
	if got := m.status(); got != app.render.Status(m.snapshot.Messages[0]) {
		t.Errorf("status = %q", got)
	}
}
