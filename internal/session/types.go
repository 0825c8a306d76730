package session

import (
	"github.com/yanmxa/hezell/internal/message"
)

// Session is one saved conversation.
type Session struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	Messages  []message.Message `json:"messages"`
	Timestamp int64             `json:"timestamp"` // unix milliseconds of the last change
}

// Clone returns a deep copy of s.
func (s Session) Clone() Session {
	s.Messages = message.CloneAll(s.Messages)
	return s
}
