// Package anthropic implements the fallback chat endpoint on the Anthropic SDK.
package anthropic

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/yanmxa/hezell/internal/log"
	"github.com/yanmxa/hezell/internal/message"
	"github.com/yanmxa/hezell/internal/provider"
)

const defaultMaxTokens = 8192

// Client implements the LLMProvider interface using the Anthropic SDK
type Client struct {
	client anthropic.Client
	name   string
	model  string
}

// NewClient creates a new Anthropic client with the given SDK client and model
func NewClient(client anthropic.Client, name, model string) *Client {
	return &Client{
		client: client,
		name:   name,
		model:  model,
	}
}

// Name returns the provider name
func (c *Client) Name() string {
	return c.name
}

// NewChat opens a chat whose transcript is kept client-side
func (c *Client) NewChat(ctx context.Context, cfg provider.ChatConfig) (provider.Chat, error) {
	h := &chatHandle{c: c, system: cfg.SystemInstruction}
	for _, turn := range cfg.History {
		switch turn.Role {
		case provider.RoleUser:
			msg, err := userMessage(turn.Text, turn.Attachment)
			if err != nil {
				return nil, err
			}
			h.messages = append(h.messages, msg)
		case provider.RoleModel:
			if turn.Text != "" {
				h.messages = append(h.messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(turn.Text)))
			}
		}
	}
	return h, nil
}

type chatHandle struct {
	c        *Client
	system   string
	mu       sync.Mutex
	messages []anthropic.MessageParam
}

// Send streams one reply. Thinking deltas become thought fragments.
func (h *chatHandle) Send(ctx context.Context, p provider.Prompt) <-chan message.StreamChunk {
	ch := make(chan message.StreamChunk)

	go func() {
		defer close(ch)

		h.mu.Lock()
		defer h.mu.Unlock()

		user, err := userMessage(p.Text, p.Attachment)
		if err != nil {
			ch <- message.StreamChunk{Type: message.ChunkTypeError, Error: err}
			return
		}
		params := anthropic.MessageNewParams{
			Model:     anthropic.Model(h.c.model),
			MaxTokens: defaultMaxTokens,
			Messages:  append(append([]anthropic.MessageParam(nil), h.messages...), user),
		}
		if h.system != "" {
			params.System = []anthropic.TextBlockParam{
				{Text: h.system},
			}
		}

		stream := h.c.client.Messages.NewStreaming(ctx, params)

		var content strings.Builder
		streamStart := time.Now()
		chunkCount := 0

		for stream.Next() {
			event := stream.Current()
			chunkCount++

			if event.Type != "content_block_delta" {
				continue
			}
			delta := event.AsContentBlockDelta()
			switch delta.Delta.Type {
			case "text_delta":
				if delta.Delta.Text != "" {
					ch <- message.StreamChunk{Type: message.ChunkTypeText, Text: delta.Delta.Text}
					content.WriteString(delta.Delta.Text)
				}
			case "thinking_delta":
				if delta.Delta.Thinking != "" {
					ch <- message.StreamChunk{Type: message.ChunkTypeThought, Text: delta.Delta.Thinking}
				}
			}
		}

		log.LogStreamDone(h.c.name, time.Since(streamStart), chunkCount)

		if err := stream.Err(); err != nil {
			log.LogError(h.c.name, err)
			ch <- message.StreamChunk{Type: message.ChunkTypeError, Error: err}
			return
		}

		h.messages = append(h.messages, user)
		if content.Len() > 0 {
			h.messages = append(h.messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(content.String())))
		}
		ch <- message.StreamChunk{Type: message.ChunkTypeDone}
	}()

	return ch
}

// userMessage puts the attachment block before the text. Images and PDFs
// are the only files the Messages API reads inline.
func userMessage(text string, att *message.Attachment) (anthropic.MessageParam, error) {
	blocks := make([]anthropic.ContentBlockParamUnion, 0, 2)
	if att != nil {
		data := base64.StdEncoding.EncodeToString(att.Data)
		switch {
		case att.IsImage():
			blocks = append(blocks, anthropic.NewImageBlockBase64(att.MIMEType, data))
		case att.MIMEType == "application/pdf":
			blocks = append(blocks, anthropic.NewDocumentBlock(anthropic.Base64PDFSourceParam{Data: data}))
		default:
			return anthropic.MessageParam{}, fmt.Errorf("%w: %s", provider.ErrUnsupportedAttachment, att.MIMEType)
		}
	}
	if text != "" || len(blocks) == 0 {
		blocks = append(blocks, anthropic.NewTextBlock(text))
	}
	return anthropic.NewUserMessage(blocks...), nil
}

// Ensure Client implements LLMProvider
var _ provider.LLMProvider = (*Client)(nil)
