package conversation

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yanmxa/hezell/internal/log"
	"github.com/yanmxa/hezell/internal/message"
	"github.com/yanmxa/hezell/internal/provider"
	"github.com/yanmxa/hezell/internal/stream"
	"github.com/yanmxa/hezell/internal/system"
)

const (
	attachmentPrompt = "Analyze this file."
	editDoneText     = "Image edit complete."
)

// turn is the immutable input of one in-flight turn.
type turn struct {
	epoch    uint64
	botID    string
	text     string
	engine   provider.Engine
	kind     provider.Kind
	settings Settings
	// thinkingMode is reasoning requested on an engine that supports it.
	thinkingMode bool
	attachment   *message.Attachment
	// editSource is the previous generated image, used when nothing is staged.
	editSource *message.Attachment
	// history is the finalized conversation before this turn.
	history []message.Message
}

// Send runs one turn for text and any staged attachment. It returns
// ErrBusy or ErrEmptyPrompt when the turn cannot start; remote failures are
// reported in the bot message, never returned.
func (c *Controller) Send(ctx context.Context, text string) error {
	t, err := c.beginTurn(text)
	if err != nil {
		return err
	}
	c.emit()

	switch t.kind {
	case provider.KindImage:
		err = c.runImage(ctx, t)
	default:
		err = c.runChat(ctx, t)
	}
	if err != nil {
		c.fail(t, err)
	}
	c.endTurn(t)
	return nil
}

func (c *Controller) beginTurn(text string) (*turn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.busy {
		return nil, ErrBusy
	}
	if strings.TrimSpace(text) == "" && c.staged == nil {
		return nil, ErrEmptyPrompt
	}

	engine := c.engineLocked()
	kind := engine.Kind
	if kind == provider.KindChat && c.primary == nil {
		kind = provider.KindFallback
	}

	t := &turn{
		epoch:        c.epoch,
		text:         text,
		engine:       engine,
		kind:         kind,
		settings:     c.settings,
		thinkingMode: c.settings.Thinking && engine.Thinking,
		attachment:   c.staged,
		history:      message.CloneAll(c.messages),
	}
	if t.attachment == nil {
		t.editSource = c.lastImage
	}

	user := message.UserMessage(text)
	if c.staged != nil {
		user.UploadedImageURL = c.staged.DataURL()
	}
	bot := message.BotPlaceholder(engine.ID, t.thinkingMode)
	if engine.Kind == provider.KindImage {
		bot.AspectRatio = c.settings.AspectRatio
	}
	t.botID = bot.ID

	c.messages = append(c.messages, user, bot)
	c.staged = nil
	c.busy = true
	return t, nil
}

// update applies fn to the turn's bot message if the turn still owns it.
func (c *Controller) update(t *turn, fn func(m *message.Message)) {
	c.mu.Lock()
	i := -1
	if c.epoch == t.epoch {
		i = slices.IndexFunc(c.messages, func(m message.Message) bool { return m.ID == t.botID })
	}
	if i >= 0 {
		fn(&c.messages[i])
	}
	c.mu.Unlock()
	if i >= 0 {
		c.emit()
	}
}

func (c *Controller) fail(t *turn, err error) {
	f := Classify(err)
	text, suggestions := f.Explain()
	log.Logger().Warn("turn failed",
		zap.String("engine", t.engine.ID),
		zap.Stringer("kind", f.Kind),
		zap.Error(err))
	c.update(t, func(m *message.Message) {
		m.IsStreaming = false
		m.Text = text
		m.Suggestions = suggestions
		m.StatusText = ""
	})
}

// endTurn releases the busy flag and commits the conversation. Turns that
// lost their conversation to a reset leave no trace.
func (c *Controller) endTurn(t *turn) {
	c.mu.Lock()
	if c.epoch != t.epoch {
		c.mu.Unlock()
		return
	}
	var reply message.Message
	if i := slices.IndexFunc(c.messages, func(m message.Message) bool { return m.ID == t.botID }); i >= 0 {
		if m := &c.messages[i]; m.IsStreaming {
			m.IsStreaming = false
			m.StatusText = ""
			if m.Text == "" {
				m.Text, m.Suggestions = Failure{Kind: FailureConnection}.Explain()
			}
		}
		reply = c.messages[i]
	}
	c.busy = false
	id, changed := c.store.CommitTurn(c.activeID, c.messages)
	c.activeID = id
	c.mu.Unlock()

	if log.IsEnabled() {
		log.Logger().Debug("turn committed",
			zap.String("session", id),
			zap.Bool("changed", changed),
			log.MessageField("reply", reply))
	}
	c.emit()
}

func (c *Controller) runChat(ctx context.Context, t *turn) error {
	fl := flags{
		search:     t.settings.Search,
		turbo:      t.settings.Turbo,
		thinking:   t.settings.Thinking,
		attachment: t.attachment != nil,
	}
	if t.kind == provider.KindFallback {
		fl.search = false
		fl.turbo = false
	}
	c.update(t, func(m *message.Message) { m.StatusText = initialStatus(fl) })

	cfg := c.chatConfig(t)
	chat, providerName, err := c.chatHandle(ctx, t, cfg)
	if err != nil {
		return err
	}

	prompt := provider.Prompt{Text: t.text, Attachment: t.attachment}
	if prompt.Attachment != nil && strings.TrimSpace(prompt.Text) == "" {
		prompt.Text = attachmentPrompt
	}

	logTurn := log.LogRequest(log.Request{
		Provider:          providerName,
		Engine:            t.engine.ID,
		Kind:              string(t.kind),
		SystemInstruction: cfg.SystemInstruction,
		Search:            cfg.SearchEnabled,
		Reasoning:         cfg.Reasoning.String(),
		Prompt:            prompt.Text,
		Attachment:        attachmentType(prompt.Attachment),
		History:           t.history,
	})
	start := time.Now()

	state := stream.New(t.settings.Thinking)
	var grounding *message.Grounding
	var streamErr error
	chunks := 0
	for chunk := range chat.Send(ctx, prompt) {
		switch chunk.Type {
		case message.ChunkTypeText:
			state = state.Next(stream.Fragment{Text: chunk.Text})
		case message.ChunkTypeThought:
			// Without reasoning mode the decoder folds these into the answer;
			// providers only stream them when IncludeThoughts is set.
			state = state.Next(stream.Fragment{Text: chunk.Text, Thought: true})
		case message.ChunkTypeGrounding:
			grounding = chunk.Grounding
		case message.ChunkTypeError:
			streamErr = chunk.Error
			continue
		default:
			continue
		}
		chunks++

		answer, reasoning := state.Answer(), state.Reasoning()
		g := grounding
		c.update(t, func(m *message.Message) {
			m.Text = answer
			m.ThinkingText = reasoning
			m.Grounding = g
			m.StatusText = streamStatus(fl, answer, reasoning)
			m.IsThinkingMode = t.thinkingMode
		})
	}
	log.LogStreamDone(providerName, time.Since(start), chunks)
	if grounding != nil {
		log.Logger().Debug("search grounding received", zap.String("engine", t.engine.ID), log.GroundingField(grounding))
	}

	if streamErr != nil {
		log.LogResponse(logTurn, log.Response{Provider: providerName, Engine: t.engine.ID, Duration: time.Since(start), Err: streamErr})
		return streamErr
	}

	result := state.Finish()
	c.update(t, func(m *message.Message) {
		m.IsStreaming = false
		m.Text = result.Answer
		m.ThinkingText = result.Reasoning
		m.Suggestions = result.Suggestions
		m.Grounding = grounding
		m.StatusText = ""
		m.IsThinkingMode = t.thinkingMode
	})
	log.LogResponse(logTurn, log.Response{
		Provider:    providerName,
		Engine:      t.engine.ID,
		Answer:      result.Answer,
		Reasoning:   result.Reasoning,
		Suggestions: result.Suggestions,
		Grounding:   grounding,
		Duration:    time.Since(start),
	})
	return nil
}

// chatConfig is the binding record for a new chat handle.
func (c *Controller) chatConfig(t *turn) provider.ChatConfig {
	cfg := provider.ChatConfig{
		SystemInstruction: c.builder.Instruction(t.settings.Persona, t.settings.Thinking),
		History:           historyTurns(t.history),
	}
	if t.kind == provider.KindChat {
		cfg.Engine = t.engine.ID
		cfg.SearchEnabled = t.settings.Search
		cfg.Reasoning = t.engine.ReasoningBudget(t.settings.Thinking, t.settings.Turbo)
		cfg.IncludeThoughts = t.thinkingMode
	}
	return cfg
}

// chatHandle returns the live chat handle for the turn's binding, creating
// one seeded with the turn's history when the binding changed.
func (c *Controller) chatHandle(ctx context.Context, t *turn, cfg provider.ChatConfig) (provider.Chat, string, error) {
	p := c.primary
	if t.kind == provider.KindFallback {
		p = c.fallback
	}
	if p == nil {
		return nil, "", fmt.Errorf("%s engine: %w", t.kind, provider.ErrNoCredential)
	}

	want := t.settings.binding(t.kind)
	c.mu.Lock()
	if c.chat != nil && c.chatBind == want && c.epoch == t.epoch {
		chat := c.chat
		c.mu.Unlock()
		return chat, p.Name(), nil
	}
	c.mu.Unlock()

	chat, err := p.NewChat(ctx, cfg)
	if err != nil {
		return nil, p.Name(), err
	}
	log.Logger().Debug("chat handle created",
		zap.String("provider", p.Name()),
		zap.String("engine", cfg.Engine),
		zap.Stringer("reasoning", cfg.Reasoning),
		zap.Int("history", len(cfg.History)))

	c.mu.Lock()
	if c.epoch == t.epoch && c.settings.binding(t.kind) == want {
		c.chat = chat
		c.chatBind = want
	}
	c.mu.Unlock()
	return chat, p.Name(), nil
}

func (c *Controller) runImage(ctx context.Context, t *turn) error {
	if c.generator == nil {
		return fmt.Errorf("image engine: %w", provider.ErrNoCredential)
	}

	source := t.attachment
	if source == nil {
		source = t.editSource
	}
	edit := source != nil
	c.update(t, func(m *message.Message) { m.StatusText = imageStatus(t.engine.ID, edit) })

	req := provider.ImageRequest{AspectRatio: t.settings.AspectRatio}
	switch {
	case edit:
		req.Engine = provider.EngineImage
		req.Prompt = system.EditPrompt(t.text)
		req.Source = source
	case t.engine.ID == provider.EngineImagen:
		req.Engine = t.engine.ID
		req.Prompt = t.text
	default:
		req.Engine = t.engine.ID
		req.Prompt = system.GeneratePrompt(t.text)
	}

	logTurn := log.LogRequest(log.Request{
		Provider:   "google",
		Engine:     req.Engine,
		Kind:       string(t.kind),
		Prompt:     req.Prompt,
		Attachment: attachmentType(req.Source),
		History:    t.history,
	})
	start := time.Now()

	res, err := c.generator.GenerateImage(ctx, req)
	if err == nil && (res == nil || len(res.Image.Data) == 0) {
		err = provider.ErrNoImage
	}
	if err != nil {
		log.LogResponse(logTurn, log.Response{Provider: "google", Engine: req.Engine, Duration: time.Since(start), Err: err})
		return err
	}

	followUp := system.FollowUpGenerate
	text := `Generated image for: "` + t.text + `"`
	if edit {
		followUp = system.FollowUpEdit
		text = strings.TrimSpace(res.Text)
		if text == "" {
			text = editDoneText
		}
	}
	suggestions := c.followUps(ctx, followUp, t.text)

	image := res.Image
	c.update(t, func(m *message.Message) {
		m.IsStreaming = false
		m.Text = text
		m.ImageURL = image.DataURL()
		m.Suggestions = suggestions
		m.StatusText = ""
	})

	c.mu.Lock()
	if c.epoch == t.epoch {
		c.lastImage = &image
	}
	c.mu.Unlock()

	log.LogResponse(logTurn, log.Response{
		Provider:    "google",
		Engine:      req.Engine,
		Answer:      text,
		Suggestions: suggestions,
		ImageBytes:  len(image.Data),
		Duration:    time.Since(start),
	})
	return nil
}

// followUps asks the lite engine for suggestions after an image turn.
// Failures only cost the suggestions.
func (c *Controller) followUps(ctx context.Context, kind system.FollowUpKind, prompt string) []string {
	out, err := c.generator.GenerateText(ctx, provider.TextRequest{
		Engine:    provider.EngineLite,
		Prompt:    system.FollowUpPrompt(kind, prompt),
		Reasoning: provider.Budget{Mode: provider.BudgetZero},
	})
	if err != nil {
		log.LogError("follow-up suggestions", err)
		return nil
	}
	return stream.SuggestionLines(out)
}

// historyTurns converts finalized messages into replayable chat turns.
// Messages without text carry nothing a chat can replay.
func historyTurns(msgs []message.Message) []provider.Turn {
	turns := make([]provider.Turn, 0, len(msgs))
	for _, m := range msgs {
		if strings.TrimSpace(m.Text) == "" {
			continue
		}
		role := provider.RoleModel
		if m.Sender == message.SenderUser {
			role = provider.RoleUser
		}
		turns = append(turns, provider.Turn{Role: role, Text: m.Text})
	}
	return turns
}

func attachmentType(a *message.Attachment) string {
	if a == nil {
		return ""
	}
	return a.MIMEType
}
