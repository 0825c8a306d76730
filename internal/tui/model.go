package tui

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/yanmxa/hezell/internal/conversation"
	"github.com/yanmxa/hezell/internal/message"
	"github.com/yanmxa/hezell/internal/provider"
	"github.com/yanmxa/hezell/internal/system"
)

type (
	// snapshotMsg is the latest controller state.
	snapshotMsg conversation.Snapshot
	// lineDoneMsg ends the processing of one submitted line.
	lineDoneMsg struct {
		out string
		err error
	}
)

type model struct {
	app        *App
	parent     context.Context
	input      textinput.Model
	spinner    spinner.Model
	snapshot   conversation.Snapshot
	busy       bool
	cancelFunc context.CancelFunc
}

func newModel(ctx context.Context, a *App) model {
	ti := textinput.New()
	ti.Prompt = ""
	ti.Placeholder = "Ask anything, or /help"
	ti.PlaceholderStyle = mutedStyle()
	ti.CharLimit = 0
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
		FPS:    80 * time.Millisecond,
	}
	sp.Style = thoughtStyle()

	return model{
		app:      a,
		parent:   ctx,
		input:    ti,
		spinner:  sp,
		snapshot: a.snapshot(),
	}
}

func (m model) Init() tea.Cmd {
	banner := botHeaderStyle().Render("Hezell") + mutedStyle().Render("  type /help for commands")
	return tea.Batch(tea.Println(banner), textinput.Blink, m.app.waitForChange())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeypress(msg)

	case tea.WindowSizeMsg:
		return m.handleWindowResize(msg)

	case snapshotMsg:
		m.snapshot = conversation.Snapshot(msg)
		return m, m.app.waitForChange()

	case lineDoneMsg:
		return m.handleLineDone(msg)

	case spinner.TickMsg:
		return m.handleSpinnerTick(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *model) handleKeypress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		if m.input.Value() != "" {
			m.input.Reset()
			return m, nil
		}
		if m.cancelFunc != nil {
			m.cancelFunc()
		}
		return m, tea.Quit

	case tea.KeyEsc:
		if m.busy && m.cancelFunc != nil {
			m.cancelFunc()
			m.cancelFunc = nil
		}
		return m, nil

	case tea.KeyEnter:
		return m.handleSubmit()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// handleSubmit runs the input line off the event loop. Lines typed while a
// turn is running stay in the input.
func (m *model) handleSubmit() (tea.Model, tea.Cmd) {
	if m.busy {
		return m, nil
	}
	line := strings.TrimSpace(m.input.Value())
	if line == "" {
		return m, nil
	}
	m.input.Reset()

	ctx, cancel := context.WithCancel(m.parent)
	m.cancelFunc = cancel
	m.busy = true

	echo := tea.Println(m.promptLine() + line)
	return m, tea.Sequence(echo, tea.Batch(m.runLine(ctx, line), m.spinner.Tick))
}

// runLine handles one line on a command goroutine.
func (m *model) runLine(ctx context.Context, line string) tea.Cmd {
	app := m.app
	return func() tea.Msg {
		out, err := app.Handle(ctx, line)
		return lineDoneMsg{out: out, err: err}
	}
}

func (m *model) handleLineDone(msg lineDoneMsg) (tea.Model, tea.Cmd) {
	m.busy = false
	if m.cancelFunc != nil {
		m.cancelFunc()
		m.cancelFunc = nil
	}
	if errors.Is(msg.err, errQuit) {
		return m, tea.Quit
	}
	if draft := m.app.takeDraft(); draft != "" {
		m.input.SetValue(draft)
		m.input.CursorEnd()
	}

	out := strings.TrimRight(msg.out, "\n")
	if msg.err != nil {
		out = errorStyle().Render("Error: " + msg.err.Error())
	}
	if out == "" {
		return m, nil
	}
	return m, tea.Println(out + "\n")
}

func (m *model) handleSpinnerTick(msg spinner.TickMsg) (tea.Model, tea.Cmd) {
	if !m.busy {
		return m, nil
	}
	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	return m, cmd
}

func (m *model) handleWindowResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.input.Width = msg.Width - 2
	return m, nil
}

func (m model) View() string {
	var sb strings.Builder
	if m.busy {
		sb.WriteString(m.spinner.View() + " " + m.status() + "\n")
	}
	sb.WriteString(m.promptLine())
	sb.WriteString(m.input.View())
	return sb.String()
}

// status describes the running line: the streaming bot message when there
// is one, otherwise a generic label.
func (m model) status() string {
	msgs := m.snapshot.Messages
	if len(msgs) > 0 {
		if last := msgs[len(msgs)-1]; last.Sender == message.SenderBot && last.IsStreaming {
			return m.app.render.Status(last)
		}
	}
	return mutedStyle().Render("Working...")
}

func (m model) promptLine() string {
	s := m.snapshot
	tags := []string{engineAlias(s.Settings.Engine)}
	if s.Settings.Search {
		tags = append(tags, "search")
	}
	if s.Settings.Thinking {
		tags = append(tags, "think")
	}
	if s.Settings.Turbo {
		tags = append(tags, "turbo")
	}
	if s.Settings.Persona != system.PersonaDefault {
		tags = append(tags, strings.ToLower(string(s.Settings.Persona)))
	}
	if e, ok := provider.Lookup(s.Settings.Engine); ok && e.Kind == provider.KindImage {
		tags = append(tags, string(s.Settings.AspectRatio))
	}
	if s.Staged != "" {
		tags = append(tags, "+"+s.Staged)
	}
	return mutedStyle().Render("["+strings.Join(tags, " · ")+"]") + userStyle().Render(" › ")
}
