package session

import (
	"unicode/utf8"

	"github.com/yanmxa/hezell/internal/message"
)

const (
	// MaxTitleLength is the maximum length for a session title, in runes
	MaxTitleLength = 40

	untitled = "Untitled Session"
)

// GenerateTitle generates a title from the first user message
func GenerateTitle(messages []message.Message) string {
	for _, msg := range messages {
		if msg.Sender != message.SenderUser {
			continue
		}
		if msg.Text == "" {
			return untitled
		}
		return truncateTitle(msg.Text)
	}
	return untitled
}

// truncateTitle keeps the first MaxTitleLength runes and marks the cut.
// The result is always an exact prefix of s.
func truncateTitle(s string) string {
	if utf8.RuneCountInString(s) <= MaxTitleLength {
		return s
	}
	runes := []rune(s)
	return string(runes[:MaxTitleLength]) + "..."
}
