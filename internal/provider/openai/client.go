// Package openai implements the fallback chat endpoint on the OpenAI SDK.
// Any OpenAI-compatible server works through a custom base URL.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/openai/openai-go/v3"

	"github.com/yanmxa/hezell/internal/log"
	"github.com/yanmxa/hezell/internal/message"
	"github.com/yanmxa/hezell/internal/provider"
)

// Client implements the LLMProvider interface using the OpenAI SDK
type Client struct {
	client openai.Client
	name   string
	model  string
	// reasoningField requests and replays reasoning_content (Moonshot/Kimi).
	reasoningField bool
}

// NewClient creates a new OpenAI client with the given SDK client and model
func NewClient(client openai.Client, name, model string) *Client {
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

// Model returns the model every chat runs on
func (c *Client) Model() string {
	return c.model
}

// NewChat opens a chat. The endpoint is stateless, so the handle keeps the
// transcript and replays it on every send. Search and reasoning budgets
// have no equivalent here and are ignored; IncludeThoughts turns on the
// thinking extension where the endpoint has one.
func (c *Client) NewChat(ctx context.Context, cfg provider.ChatConfig) (provider.Chat, error) {
	h := &chatHandle{c: c, thinking: cfg.IncludeThoughts && c.reasoningField}
	if cfg.SystemInstruction != "" {
		h.messages = append(h.messages, openai.SystemMessage(cfg.SystemInstruction))
	}
	for _, turn := range cfg.History {
		switch turn.Role {
		case provider.RoleUser:
			msg, err := userMessage(turn.Text, turn.Attachment)
			if err != nil {
				return nil, err
			}
			h.messages = append(h.messages, msg)
		case provider.RoleModel:
			h.messages = append(h.messages, c.assistantMessage(turn.Text, ""))
		}
	}
	return h, nil
}

type chatHandle struct {
	c        *Client
	thinking bool
	mu       sync.Mutex
	messages []openai.ChatCompletionMessageParamUnion
}

// Send streams one reply and appends the exchange to the transcript on success
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
		params := openai.ChatCompletionNewParams{
			Model:    h.c.model,
			Messages: append(append([]openai.ChatCompletionMessageParamUnion(nil), h.messages...), user),
		}
		if h.thinking {
			params.SetExtraFields(map[string]any{
				"thinking": map[string]any{"type": "enabled"},
			})
		}

		stream := h.c.client.Chat.Completions.NewStreaming(ctx, params)

		var content, thinking strings.Builder
		streamStart := time.Now()
		chunkCount := 0

		for stream.Next() {
			chunk := stream.Current()
			chunkCount++

			for _, choice := range chunk.Choices {
				if rc := reasoningContent(choice.Delta.RawJSON()); rc != "" {
					ch <- message.StreamChunk{Type: message.ChunkTypeThought, Text: rc}
					thinking.WriteString(rc)
				}
				if choice.Delta.Content != "" {
					ch <- message.StreamChunk{Type: message.ChunkTypeText, Text: choice.Delta.Content}
					content.WriteString(choice.Delta.Content)
				}
			}
		}

		log.LogStreamDone(h.c.name, time.Since(streamStart), chunkCount)

		if err := stream.Err(); err != nil {
			log.LogError(h.c.name, err)
			ch <- message.StreamChunk{Type: message.ChunkTypeError, Error: err}
			return
		}

		h.messages = append(h.messages, user, h.c.assistantMessage(content.String(), thinking.String()))
		ch <- message.StreamChunk{Type: message.ChunkTypeDone}
	}()

	return ch
}

// userMessage builds the user turn. Compatible servers only agree on
// image parts, so any other attachment is refused.
func userMessage(text string, att *message.Attachment) (openai.ChatCompletionMessageParamUnion, error) {
	if att == nil {
		return openai.UserMessage(text), nil
	}
	if !att.IsImage() {
		return openai.ChatCompletionMessageParamUnion{}, fmt.Errorf("%w: %s", provider.ErrUnsupportedAttachment, att.MIMEType)
	}
	parts := []openai.ChatCompletionContentPartUnionParam{{
		OfImageURL: &openai.ChatCompletionContentPartImageParam{
			ImageURL: openai.ChatCompletionContentPartImageImageURLParam{
				URL: att.DataURL(),
			},
		},
	}}
	if text != "" {
		parts = append(parts, openai.ChatCompletionContentPartUnionParam{
			OfText: &openai.ChatCompletionContentPartTextParam{Text: text},
		})
	}
	return openai.ChatCompletionMessageParamUnion{
		OfUser: &openai.ChatCompletionUserMessageParam{
			Content: openai.ChatCompletionUserMessageParamContentUnion{
				OfArrayOfContentParts: parts,
			},
		},
	}, nil
}

func (c *Client) assistantMessage(text, thinking string) openai.ChatCompletionMessageParamUnion {
	if !c.reasoningField {
		return openai.AssistantMessage(text)
	}
	var asstMsg openai.ChatCompletionAssistantMessageParam
	asstMsg.Content.OfString = openai.Opt(text)
	// Kimi thinking models require reasoning_content on every assistant turn
	asstMsg.SetExtraFields(map[string]any{"reasoning_content": thinking})
	return openai.ChatCompletionMessageParamUnion{OfAssistant: &asstMsg}
}

// reasoningContent extracts the reasoning_content extension from a raw delta
func reasoningContent(rawJSON string) string {
	if rawJSON == "" || !strings.Contains(rawJSON, "reasoning_content") {
		return ""
	}
	var delta struct {
		ReasoningContent string `json:"reasoning_content"`
	}
	if err := json.Unmarshal([]byte(rawJSON), &delta); err != nil {
		return ""
	}
	return delta.ReasoningContent
}

// Ensure Client implements LLMProvider
var _ provider.LLMProvider = (*Client)(nil)
