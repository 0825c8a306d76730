package log

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/yanmxa/hezell/internal/message"
)

// messageMarshaler wraps a Message for zap logging
type messageMarshaler message.Message

func (m messageMarshaler) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("id", m.ID)
	enc.AddString("sender", string(m.Sender))
	enc.AddInt("text_len", len(m.Text))
	if m.ThinkingText != "" {
		enc.AddInt("thinking_len", len(m.ThinkingText))
	}
	if m.Model != "" {
		enc.AddString("model", m.Model)
	}
	if m.IsStreaming {
		enc.AddBool("streaming", true)
	}
	if m.ImageURL != "" {
		enc.AddBool("inline_image", message.IsDataURL(m.ImageURL))
	}
	if len(m.Suggestions) > 0 {
		enc.AddInt("suggestions", len(m.Suggestions))
	}
	return nil
}

// messagesMarshaler wraps a slice of Messages for zap logging
type messagesMarshaler []message.Message

func (m messagesMarshaler) MarshalLogArray(enc zapcore.ArrayEncoder) error {
	for _, msg := range m {
		_ = enc.AppendObject(messageMarshaler(msg))
	}
	return nil
}

// MessageField creates a zap field for one message
func MessageField(key string, msg message.Message) zap.Field {
	return zap.Object(key, messageMarshaler(msg))
}

// MessagesField creates a zap field for messages
func MessagesField(messages []message.Message) zap.Field {
	return zap.Array("messages", messagesMarshaler(messages))
}

// groundingMarshaler wraps Grounding for zap logging
type groundingMarshaler message.Grounding

func (g groundingMarshaler) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	_ = enc.AddArray("queries", zapcore.ArrayMarshalerFunc(func(ae zapcore.ArrayEncoder) error {
		for _, q := range g.Queries {
			ae.AppendString(q)
		}
		return nil
	}))
	_ = enc.AddArray("sources", zapcore.ArrayMarshalerFunc(func(ae zapcore.ArrayEncoder) error {
		for _, s := range g.Sources {
			ae.AppendString(s.URI)
		}
		return nil
	}))
	return nil
}

// GroundingField creates a zap field for citation data
func GroundingField(g *message.Grounding) zap.Field {
	if g == nil {
		return zap.Skip()
	}
	return zap.Object("grounding", groundingMarshaler(*g))
}
