// Package tui is the terminal front end: an inline Bubble Tea program over a
// conversation.Controller with markdown rendering of finished answers.
package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/yanmxa/hezell/internal/conversation"
	"github.com/yanmxa/hezell/internal/log"
	"github.com/yanmxa/hezell/internal/message"
	"github.com/yanmxa/hezell/internal/system"
)

// Options configures an App.
type Options struct {
	// Conversation configures the controller. Its OnChange is owned by the App.
	Conversation conversation.Options
	// In and Out replace the terminal for the interactive program.
	In  io.Reader
	Out io.Writer
	// Width is the terminal width used for wrapping.
	Width int
	// ImageDir receives generated images and speech.
	ImageDir string
}

// App owns the controller and everything the interactive program and the
// one-shot path share.
type App struct {
	ctrl    *conversation.Controller
	builder *system.Builder
	render  *Renderer
	in      io.Reader
	out     io.Writer

	// changed carries at most one pending change notification; the model
	// reads the latest snapshot when it wakes.
	changed chan struct{}
	mu      sync.Mutex
	latest  conversation.Snapshot

	// draft is an enhanced prompt waiting to be placed in the input.
	draft string
}

// New builds the controller and the front end around it.
func New(opts Options) (*App, error) {
	if opts.Width <= 0 {
		opts.Width = 80
	}
	builder := opts.Conversation.Builder
	if builder == nil {
		builder = system.NewBuilder(nil)
		opts.Conversation.Builder = builder
	}

	a := &App{
		builder: builder,
		render:  NewRenderer(opts.Width, opts.ImageDir),
		in:      opts.In,
		out:     opts.Out,
		changed: make(chan struct{}, 1),
	}

	opts.Conversation.OnChange = a.onChange
	ctrl, err := conversation.New(opts.Conversation)
	if err != nil {
		return nil, err
	}
	a.ctrl = ctrl
	a.latest = ctrl.Snapshot()
	return a, nil
}

// Controller returns the underlying controller.
func (a *App) Controller() *conversation.Controller {
	return a.ctrl
}

// onChange runs on controller goroutines. It never blocks so a turn cannot
// stall behind a busy event loop.
func (a *App) onChange(s conversation.Snapshot) {
	a.mu.Lock()
	a.latest = s
	a.mu.Unlock()
	select {
	case a.changed <- struct{}{}:
	default:
	}
}

func (a *App) snapshot() conversation.Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.latest
}

// waitForChange delivers the next snapshot to the program.
func (a *App) waitForChange() tea.Cmd {
	return func() tea.Msg {
		<-a.changed
		return snapshotMsg(a.snapshot())
	}
}

// Run starts the interactive program and blocks until the user quits.
func (a *App) Run(ctx context.Context) error {
	var opts []tea.ProgramOption
	if a.in != nil {
		opts = append(opts, tea.WithInput(a.in))
	}
	if a.out != nil {
		opts = append(opts, tea.WithOutput(a.out))
	}

	p := tea.NewProgram(newModel(ctx, a), opts...)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

// Handle processes one input line and returns what to print. Command
// failures come back as errors; errQuit ends the session.
func (a *App) Handle(ctx context.Context, line string) (string, error) {
	line = strings.TrimSpace(line)

	switch {
	case line == "":
		return "", nil
	case strings.HasPrefix(line, "/"):
		return a.runCommand(ctx, line)
	}

	var echo string
	if s, ok := a.suggestion(line); ok {
		echo = a.render.User(message.Message{Text: s}) + "\n"
		line = s
	}
	a.draft = ""
	out, err := a.send(ctx, line)
	if err != nil {
		return "", err
	}
	return echo + out, nil
}

// takeDraft returns and clears the pending enhanced prompt.
func (a *App) takeDraft() string {
	d := a.draft
	a.draft = ""
	return d
}

// suggestion resolves a bare "1".."3" to the matching suggestion of the
// latest bot message.
func (a *App) suggestion(line string) (string, bool) {
	n, err := strconv.Atoi(line)
	if err != nil || n < 1 {
		return "", false
	}
	msgs := a.ctrl.Snapshot().Messages
	if len(msgs) == 0 {
		return "", false
	}
	last := msgs[len(msgs)-1]
	if n > len(last.Suggestions) {
		return "", false
	}
	return last.Suggestions[n-1], true
}

func (a *App) send(ctx context.Context, text string) (string, error) {
	if err := a.ctrl.Send(ctx, text); err != nil {
		return "", err
	}
	bot, ok := a.lastBot()
	if !ok {
		return "", nil
	}
	return a.render.Bot(bot) + "\n", nil
}

// Ask runs a single turn and returns the finished bot message. A turn cut
// short by ctx reports the context error.
func (a *App) Ask(ctx context.Context, text string) (message.Message, error) {
	if err := a.ctrl.Send(ctx, text); err != nil {
		return message.Message{}, err
	}
	if err := ctx.Err(); err != nil {
		return message.Message{}, err
	}
	bot, ok := a.lastBot()
	if !ok {
		return message.Message{}, errors.New("turn produced no answer")
	}
	log.Logger().Debug("one-shot turn finished", zap.String("engine", bot.Model), zap.Int("chars", len(bot.Text)))
	return bot, nil
}

// RenderBot renders a finished bot message the way the interactive view does.
func (a *App) RenderBot(m message.Message) string {
	return a.render.Bot(m)
}

func (a *App) lastBot() (message.Message, bool) {
	msgs := a.ctrl.Snapshot().Messages
	if len(msgs) == 0 || msgs[len(msgs)-1].Sender != message.SenderBot {
		return message.Message{}, false
	}
	return msgs[len(msgs)-1], true
}
