package log

import (
	"fmt"
	"strings"

	"github.com/yanmxa/hezell/internal/message"
)

// Request describes one outgoing turn.
type Request struct {
	Provider          string
	Engine            string
	Kind              string // chat, image or fallback
	SystemInstruction string
	Search            bool
	Reasoning         string // none, fixed:<tokens> or zero
	Prompt            string
	Attachment        string // MIME type of a staged attachment, if any
	History           []message.Message
}

// LogRequest logs a turn request in human-readable format and returns the
// turn number it was filed under.
func LogRequest(req Request) int {
	turn := NextTurn()
	writeDevRequest(req, turn)

	if !enabled {
		return turn
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "───────────────────────────────────────── Turn %d ─────────────────────────────────────────\n", turn)
	fmt.Fprintf(&sb, ">>> [%s] %s kind=%s | search=%t reasoning=%s\n", req.Provider, req.Engine, req.Kind, req.Search, req.Reasoning)

	if req.SystemInstruction != "" {
		fmt.Fprintf(&sb, "    System: %s\n", escapeForLog(req.SystemInstruction))
	}
	if req.Attachment != "" {
		fmt.Fprintf(&sb, "    Attachment: %s\n", req.Attachment)
	}

	fmt.Fprintf(&sb, "    History(%d):\n", len(req.History))
	for i, msg := range req.History {
		switch msg.Sender {
		case message.SenderUser:
			fmt.Fprintf(&sb, "      [%d] User: %s\n", i, escapeForLog(msg.Text))
		case message.SenderBot:
			fmt.Fprintf(&sb, "      [%d] Bot: %s\n", i, escapeForLog(msg.Text))
		}
	}
	fmt.Fprintf(&sb, "    Prompt: %s\n", escapeForLog(req.Prompt))

	logger.Info(sb.String())
	return turn
}
