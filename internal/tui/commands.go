package tui

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/yanmxa/hezell/internal/audio"
	"github.com/yanmxa/hezell/internal/image"
	"github.com/yanmxa/hezell/internal/message"
	"github.com/yanmxa/hezell/internal/provider"
	"github.com/yanmxa/hezell/internal/session"
	"github.com/yanmxa/hezell/internal/system"
)

// errQuit ends the interactive session.
var errQuit = errors.New("quit")

// Command represents a slash command
type Command struct {
	Name        string
	Usage       string
	Description string
	Handler     CommandHandler
}

// CommandHandler is a function that handles a slash command
type CommandHandler func(ctx context.Context, a *App, args string) (string, error)

// getCommandRegistry returns the command registry
func getCommandRegistry() map[string]Command {
	return map[string]Command{
		"new":     {Name: "new", Description: "Start a new conversation", Handler: handleNewCommand},
		"history": {Name: "history", Description: "List saved conversations", Handler: handleHistoryCommand},
		"load":    {Name: "load", Usage: "<id>", Description: "Resume a saved conversation by id prefix", Handler: handleLoadCommand},
		"clear":   {Name: "clear", Description: "Delete all saved conversations", Handler: handleClearCommand},
		"search":  {Name: "search", Description: "Toggle web search grounding", Handler: handleSearchCommand},
		"think":   {Name: "think", Description: "Toggle reasoning mode", Handler: handleThinkCommand},
		"turbo":   {Name: "turbo", Description: "Toggle turbo (no reasoning budget)", Handler: handleTurboCommand},
		"persona": {Name: "persona", Usage: "[name]", Description: "List or select a persona", Handler: handlePersonaCommand},
		"engine":  {Name: "engine", Usage: "[id]", Description: "List or select an engine", Handler: handleEngineCommand},
		"aspect":  {Name: "aspect", Usage: "[ratio]", Description: "List or select the image aspect ratio", Handler: handleAspectCommand},
		"attach":  {Name: "attach", Usage: "<path>", Description: "Attach an image or PDF to the next message", Handler: handleAttachCommand},
		"detach":  {Name: "detach", Description: "Remove the staged attachment", Handler: handleDetachCommand},
		"edit":    {Name: "edit", Usage: "[message-id]", Description: "Edit a generated image (latest by default)", Handler: handleEditCommand},
		"enhance": {Name: "enhance", Usage: "<text>", Description: "Rewrite a prompt into the input for review", Handler: handleEnhanceCommand},
		"speak":   {Name: "speak", Usage: "[message-id]", Description: "Save an answer as speech (latest by default)", Handler: handleSpeakCommand},
		"voice":   {Name: "voice", Usage: "[name]", Description: "List or select the speech voice", Handler: handleVoiceCommand},
		"help":    {Name: "help", Description: "Show available commands", Handler: handleHelpCommand},
		"quit":    {Name: "quit", Description: "Exit", Handler: handleQuitCommand},
	}
}

// parseCommand splits "/name args" into its parts.
func parseCommand(line string) (name, args string, ok bool) {
	if !strings.HasPrefix(line, "/") {
		return "", "", false
	}
	name, args, _ = strings.Cut(strings.TrimPrefix(line, "/"), " ")
	return strings.ToLower(name), strings.TrimSpace(args), name != ""
}

func (a *App) runCommand(ctx context.Context, line string) (string, error) {
	name, args, ok := parseCommand(line)
	if !ok {
		return "", fmt.Errorf("invalid command %q", line)
	}
	if name == "exit" || name == "q" {
		name = "quit"
	}
	cmd, ok := getCommandRegistry()[name]
	if !ok {
		return "", fmt.Errorf("unknown command /%s (try /help)", name)
	}
	return cmd.Handler(ctx, a, args)
}

func handleNewCommand(_ context.Context, a *App, _ string) (string, error) {
	a.ctrl.NewSession()
	a.draft = ""
	return successStyle().Render("Started a new conversation."), nil
}

func handleHistoryCommand(_ context.Context, a *App, _ string) (string, error) {
	return RenderSessions(a.ctrl.Sessions(), a.render.width, time.Now()), nil
}

func handleLoadCommand(_ context.Context, a *App, args string) (string, error) {
	if args == "" {
		return "", errors.New("usage: /load <id>")
	}
	sess, err := resolveSession(a.ctrl.Sessions(), args)
	if err != nil {
		return "", err
	}
	if err := a.ctrl.LoadSession(sess.ID); err != nil {
		return "", err
	}
	return a.transcript(), nil
}

// resolveSession finds the single session whose id starts with prefix.
func resolveSession(sessions []session.Session, prefix string) (session.Session, error) {
	var found []session.Session
	for _, s := range sessions {
		if s.ID == prefix {
			return s, nil
		}
		if strings.HasPrefix(s.ID, prefix) {
			found = append(found, s)
		}
	}
	switch len(found) {
	case 0:
		return session.Session{}, fmt.Errorf("no conversation matches %q", prefix)
	case 1:
		return found[0], nil
	}
	return session.Session{}, fmt.Errorf("%q matches %d conversations", prefix, len(found))
}

// transcript renders the current conversation.
func (a *App) transcript() string {
	var parts []string
	for _, m := range a.ctrl.Snapshot().Messages {
		if m.Sender == message.SenderUser {
			parts = append(parts, a.render.User(m))
			continue
		}
		parts = append(parts, a.render.Bot(m), "")
	}
	return strings.TrimRight(strings.Join(parts, "\n"), "\n")
}

func handleClearCommand(_ context.Context, a *App, _ string) (string, error) {
	if err := a.ctrl.ClearHistory(); err != nil {
		return "", err
	}
	return successStyle().Render("History cleared."), nil
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

func handleSearchCommand(_ context.Context, a *App, _ string) (string, error) {
	on, err := a.ctrl.ToggleSearch()
	if err != nil {
		return "", err
	}
	return "Web search " + onOff(on), nil
}

func handleThinkCommand(_ context.Context, a *App, _ string) (string, error) {
	on, err := a.ctrl.ToggleThinking()
	if err != nil {
		return "", err
	}
	return "Reasoning mode " + onOff(on), nil
}

func handleTurboCommand(_ context.Context, a *App, _ string) (string, error) {
	on, err := a.ctrl.ToggleTurbo()
	if err != nil {
		return "", err
	}
	return "Turbo mode " + onOff(on), nil
}

func handlePersonaCommand(_ context.Context, a *App, args string) (string, error) {
	current := a.ctrl.Snapshot().Settings.Persona
	if args == "" {
		var sb strings.Builder
		for _, p := range a.builder.Personas() {
			marker := "  "
			if p == current {
				marker = "● "
			}
			sb.WriteString(accentStyle().Render(marker) + string(p) + "\n")
		}
		return strings.TrimRight(sb.String(), "\n"), nil
	}

	p := system.Persona(args)
	for _, known := range a.builder.Personas() {
		if strings.EqualFold(string(known), args) {
			p = known
			break
		}
	}
	if err := a.ctrl.SetPersona(p); err != nil {
		return "", err
	}
	return "Persona: " + string(p), nil
}

// engineAliases are short names accepted by /engine.
var engineAliases = map[string]string{
	"flash":    provider.EngineFlash,
	"pro":      provider.EnginePro,
	"lite":     provider.EngineLite,
	"legacy":   provider.EngineLegacy,
	"image":    provider.EngineImage,
	"imagen":   provider.EngineImagen,
	"fallback": provider.EngineFallback,
}

// engineAlias returns the short name of an engine id.
func engineAlias(id string) string {
	for alias, full := range engineAliases {
		if full == id {
			return alias
		}
	}
	return id
}

func handleEngineCommand(_ context.Context, a *App, args string) (string, error) {
	current := a.ctrl.Snapshot().Settings.Engine
	if args == "" {
		var sb strings.Builder
		for _, e := range provider.Engines {
			marker := "  "
			if e.ID == current {
				marker = "● "
			}
			sb.WriteString(fmt.Sprintf("%s%-9s %s %s\n",
				accentStyle().Render(marker),
				engineAlias(e.ID),
				e.DisplayName,
				mutedStyle().Render("["+e.Tag+"] "+e.Description)))
		}
		return strings.TrimRight(sb.String(), "\n"), nil
	}

	id := strings.ToLower(args)
	if full, ok := engineAliases[id]; ok {
		id = full
	}
	if err := a.ctrl.SetEngine(id); err != nil {
		return "", err
	}
	msg := "Engine: " + engineName(id)
	if id != current {
		msg += mutedStyle().Render("  (new conversation)")
	}
	return msg, nil
}

func handleAspectCommand(_ context.Context, a *App, args string) (string, error) {
	if args == "" {
		current := a.ctrl.Snapshot().Settings.AspectRatio
		var names []string
		for _, r := range message.AspectRatios {
			if r == current {
				names = append(names, accentStyle().Render("["+string(r)+"]"))
				continue
			}
			names = append(names, string(r))
		}
		return strings.Join(names, "  "), nil
	}
	if err := a.ctrl.SetAspectRatio(message.AspectRatio(args)); err != nil {
		return "", err
	}
	return "Aspect ratio: " + args, nil
}

func handleAttachCommand(_ context.Context, a *App, args string) (string, error) {
	if args == "" {
		return "", errors.New("usage: /attach <path>")
	}
	att, err := image.Load(args)
	if err != nil {
		return "", err
	}
	if err := a.ctrl.Stage(att); err != nil {
		return "", err
	}
	return fmt.Sprintf("Attached %s (%s)", att.Name, image.FormatBytes(len(att.Data))), nil
}

func handleDetachCommand(_ context.Context, a *App, _ string) (string, error) {
	a.ctrl.ClearStaged()
	return "Attachment removed.", nil
}

// latestMessage returns the newest message accepted by keep whose id starts
// with prefix.
func latestMessage(msgs []message.Message, prefix string, keep func(message.Message) bool) (message.Message, bool) {
	for j := len(msgs) - 1; j >= 0; j-- {
		if keep(msgs[j]) && strings.HasPrefix(msgs[j].ID, prefix) {
			return msgs[j], true
		}
	}
	return message.Message{}, false
}

func handleEditCommand(_ context.Context, a *App, args string) (string, error) {
	target, ok := latestMessage(a.ctrl.Snapshot().Messages, args, func(m message.Message) bool {
		return m.ImageURL != ""
	})
	if !ok {
		return "", errors.New("no generated image to edit")
	}
	if err := a.ctrl.StageImageForEditing(target.ID); err != nil {
		return "", err
	}
	return "Image staged for editing. Describe the change.", nil
}

func handleSpeakCommand(ctx context.Context, a *App, args string) (string, error) {
	target, ok := latestMessage(a.ctrl.Snapshot().Messages, args, func(m message.Message) bool {
		return m.Sender == message.SenderBot && !m.IsStreaming && strings.TrimSpace(m.Text) != ""
	})
	if !ok {
		return "", errors.New("no answer to read")
	}
	res, err := a.ctrl.Speak(ctx, target.ID)
	if err != nil {
		return "", err
	}
	path, err := a.render.saveSpeech(target.ID, res)
	if err != nil {
		return "", fmt.Errorf("failed to save speech: %w", err)
	}
	return fmt.Sprintf("Speech saved to %s (%.1fs)", path, audio.Duration(res.PCM, res.SampleRate)), nil
}

func handleVoiceCommand(_ context.Context, a *App, args string) (string, error) {
	current := a.ctrl.Snapshot().Settings.Voice
	if args == "" {
		var names []string
		for _, v := range message.Voices {
			if v == current {
				names = append(names, accentStyle().Render("["+string(v)+"]"))
				continue
			}
			names = append(names, string(v))
		}
		return strings.Join(names, "  "), nil
	}

	v := message.Voice(args)
	for _, known := range message.Voices {
		if strings.EqualFold(string(known), args) {
			v = known
			break
		}
	}
	if err := a.ctrl.SetVoice(v); err != nil {
		return "", err
	}
	return "Voice: " + string(v), nil
}

func handleEnhanceCommand(ctx context.Context, a *App, args string) (string, error) {
	if args == "" {
		return "", errors.New("usage: /enhance <text>")
	}
	out, err := a.ctrl.EnhancePrompt(ctx, args)
	if err != nil {
		return "", err
	}
	a.draft = out
	return mutedStyle().Render("Enhanced prompt placed in the input. Edit it or press Enter to send."), nil
}

func handleHelpCommand(_ context.Context, _ *App, _ string) (string, error) {
	registry := getCommandRegistry()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	for _, name := range names {
		cmd := registry[name]
		usage := "/" + cmd.Name
		if cmd.Usage != "" {
			usage += " " + cmd.Usage
		}
		sb.WriteString(fmt.Sprintf("  %-22s %s\n", usage, mutedStyle().Render(cmd.Description)))
	}
	sb.WriteString(mutedStyle().Render("  1-3 sends the matching suggestion"))
	return sb.String(), nil
}

func handleQuitCommand(context.Context, *App, string) (string, error) {
	return "", errQuit
}
