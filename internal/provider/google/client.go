// Package google implements the primary engines on the Google GenAI SDK.
package google

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"strconv"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/yanmxa/hezell/internal/log"
	"github.com/yanmxa/hezell/internal/message"
	"github.com/yanmxa/hezell/internal/provider"
)

// Client implements LLMProvider and Generator using the Google GenAI SDK
type Client struct {
	client *genai.Client
	name   string
}

// NewClient creates a new Google client with the given SDK client
func NewClient(client *genai.Client, name string) *Client {
	return &Client{
		client: client,
		name:   name,
	}
}

// Name returns the provider name
func (c *Client) Name() string {
	return c.name
}

// NewChat opens a chat on cfg.Engine seeded with cfg.History
func (c *Client) NewChat(ctx context.Context, cfg provider.ChatConfig) (provider.Chat, error) {
	chat, err := c.client.Chats.Create(ctx, cfg.Engine, contentConfig(cfg), historyContents(cfg.History))
	if err != nil {
		return nil, mapError(err)
	}
	return &chatHandle{chat: chat, name: c.name}, nil
}

type chatHandle struct {
	chat *genai.Chat
	name string
}

// Send streams one reply
func (h *chatHandle) Send(ctx context.Context, p provider.Prompt) <-chan message.StreamChunk {
	ch := make(chan message.StreamChunk)

	go func() {
		defer close(ch)

		streamStart := time.Now()
		chunkCount := 0

		for resp, err := range h.chat.SendMessageStream(ctx, promptParts(p)...) {
			if err != nil {
				log.LogError(h.name, err)
				ch <- message.StreamChunk{Type: message.ChunkTypeError, Error: mapError(err)}
				return
			}
			chunkCount++

			chunks, err := responseChunks(resp)
			for _, chunk := range chunks {
				ch <- chunk
			}
			if err != nil {
				log.LogError(h.name, err)
				ch <- message.StreamChunk{Type: message.ChunkTypeError, Error: err}
				return
			}
		}

		log.LogStreamDone(h.name, time.Since(streamStart), chunkCount)
		ch <- message.StreamChunk{Type: message.ChunkTypeDone}
	}()

	return ch
}

// GenerateImage creates an image, or edits req.Source when set. Imagen
// engines go through the dedicated image endpoint; others through content
// generation with inline image output.
func (c *Client) GenerateImage(ctx context.Context, req provider.ImageRequest) (*provider.ImageResult, error) {
	if strings.HasPrefix(req.Engine, "imagen") && req.Source == nil {
		return c.generateImagen(ctx, req)
	}

	parts := make([]*genai.Part, 0, 2)
	if req.Source != nil {
		parts = append(parts, &genai.Part{InlineData: &genai.Blob{Data: req.Source.Data, MIMEType: req.Source.MIMEType}})
	}
	parts = append(parts, &genai.Part{Text: req.Prompt})

	resp, err := c.client.Models.GenerateContent(ctx, req.Engine, []*genai.Content{{Role: "user", Parts: parts}}, nil)
	if err != nil {
		return nil, mapError(err)
	}
	if err := blockedError(resp); err != nil {
		return nil, err
	}
	return imageResult(resp)
}

func (c *Client) generateImagen(ctx context.Context, req provider.ImageRequest) (*provider.ImageResult, error) {
	cfg := &genai.GenerateImagesConfig{
		NumberOfImages: 1,
		OutputMIMEType: "image/jpeg",
	}
	if req.AspectRatio != "" {
		cfg.AspectRatio = string(req.AspectRatio)
	}

	resp, err := c.client.Models.GenerateImages(ctx, req.Engine, req.Prompt, cfg)
	if err != nil {
		return nil, mapError(err)
	}
	for _, img := range resp.GeneratedImages {
		if img == nil {
			continue
		}
		if img.RAIFilteredReason != "" {
			return nil, fmt.Errorf("%w: %s", provider.ErrSafety, img.RAIFilteredReason)
		}
		if img.Image != nil && len(img.Image.ImageBytes) > 0 {
			mime := img.Image.MIMEType
			if mime == "" {
				mime = "image/jpeg"
			}
			return &provider.ImageResult{Image: message.Attachment{MIMEType: mime, Data: img.Image.ImageBytes}}, nil
		}
	}
	return nil, provider.ErrNoImage
}

// GenerateText runs a one-shot text generation
func (c *Client) GenerateText(ctx context.Context, req provider.TextRequest) (string, error) {
	cfg := contentConfig(provider.ChatConfig{
		SystemInstruction: req.SystemInstruction,
		Reasoning:         req.Reasoning,
	})
	contents := []*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: req.Prompt}}}}

	resp, err := c.client.Models.GenerateContent(ctx, req.Engine, contents, cfg)
	if err != nil {
		return "", mapError(err)
	}
	if err := blockedError(resp); err != nil {
		return "", err
	}
	return responseText(resp), nil
}

// defaultSampleRate is the PCM rate of the speech engines.
const defaultSampleRate = 24000

// GenerateSpeech reads req.Text aloud with a prebuilt voice.
func (c *Client) GenerateSpeech(ctx context.Context, req provider.SpeechRequest) (*provider.SpeechResult, error) {
	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{string(genai.ModalityAudio)},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: string(req.Voice)},
			},
		},
	}
	contents := []*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: req.Text}}}}

	resp, err := c.client.Models.GenerateContent(ctx, req.Engine, contents, cfg)
	if err != nil {
		return nil, mapError(err)
	}
	if err := blockedError(resp); err != nil {
		return nil, err
	}
	return speechResult(resp)
}

// speechResult picks the first inline audio part. The rate comes from the
// MIME parameters, e.g. "audio/L16;codec=pcm;rate=24000".
func speechResult(resp *genai.GenerateContentResponse) (*provider.SpeechResult, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil || resp.Candidates[0].Content == nil {
		return nil, provider.ErrNoAudio
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
			continue
		}
		rate := defaultSampleRate
		if _, params, err := mime.ParseMediaType(part.InlineData.MIMEType); err == nil {
			if r, err := strconv.Atoi(params["rate"]); err == nil && r > 0 {
				rate = r
			}
		}
		return &provider.SpeechResult{PCM: part.InlineData.Data, SampleRate: rate}, nil
	}
	return nil, provider.ErrNoAudio
}

// contentConfig translates a chat binding into SDK generation config
func contentConfig(cfg provider.ChatConfig) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}

	if cfg.SystemInstruction != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: cfg.SystemInstruction}},
		}
	}

	if cfg.SearchEnabled {
		config.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}

	switch cfg.Reasoning.Mode {
	case provider.BudgetFixed:
		config.ThinkingConfig = &genai.ThinkingConfig{
			ThinkingBudget:  genai.Ptr(cfg.Reasoning.Tokens),
			IncludeThoughts: cfg.IncludeThoughts,
		}
	case provider.BudgetZero:
		config.ThinkingConfig = &genai.ThinkingConfig{ThinkingBudget: genai.Ptr[int32](0)}
	}

	return config
}

// historyContents converts replayed turns into SDK contents
func historyContents(history []provider.Turn) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history))
	for _, turn := range history {
		parts := make([]*genai.Part, 0, 2)
		if turn.Attachment != nil {
			parts = append(parts, &genai.Part{InlineData: &genai.Blob{Data: turn.Attachment.Data, MIMEType: turn.Attachment.MIMEType}})
		}
		if turn.Text != "" {
			parts = append(parts, &genai.Part{Text: turn.Text})
		}
		if len(parts) == 0 {
			continue
		}
		contents = append(contents, &genai.Content{Role: string(turn.Role), Parts: parts})
	}
	return contents
}

// promptParts converts a prompt into message parts, attachment first
func promptParts(p provider.Prompt) []genai.Part {
	parts := make([]genai.Part, 0, 2)
	if p.Attachment != nil {
		parts = append(parts, genai.Part{InlineData: &genai.Blob{Data: p.Attachment.Data, MIMEType: p.Attachment.MIMEType}})
	}
	if p.Text != "" {
		parts = append(parts, genai.Part{Text: p.Text})
	}
	return parts
}

// responseChunks converts one streamed response into chunks. A safety stop
// is returned as an error after the chunks that preceded it.
func responseChunks(resp *genai.GenerateContentResponse) ([]message.StreamChunk, error) {
	if resp == nil {
		return nil, nil
	}
	var chunks []message.StreamChunk
	if len(resp.Candidates) > 0 && resp.Candidates[0] != nil {
		cand := resp.Candidates[0]
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if part == nil || part.Text == "" {
					continue
				}
				typ := message.ChunkTypeText
				if part.Thought {
					typ = message.ChunkTypeThought
				}
				chunks = append(chunks, message.StreamChunk{Type: typ, Text: part.Text})
			}
		}
		if g := groundingOf(cand.GroundingMetadata); g != nil {
			chunks = append(chunks, message.StreamChunk{Type: message.ChunkTypeGrounding, Grounding: g})
		}
	}
	return chunks, blockedError(resp)
}

// groundingOf extracts citation data
func groundingOf(md *genai.GroundingMetadata) *message.Grounding {
	if md == nil {
		return nil
	}
	g := &message.Grounding{Queries: md.WebSearchQueries}
	for _, chunk := range md.GroundingChunks {
		if chunk == nil || chunk.Web == nil || chunk.Web.URI == "" {
			continue
		}
		g.Sources = append(g.Sources, message.Source{URI: chunk.Web.URI, Title: chunk.Web.Title})
	}
	if len(g.Queries) == 0 && len(g.Sources) == 0 {
		return nil
	}
	return g
}

var safetyReasons = []string{"SAFETY", "PROHIBITED_CONTENT", "BLOCKLIST", "SPII", "IMAGE_SAFETY"}

// blockedError reports prompt or candidate blocks as provider.ErrSafety
func blockedError(resp *genai.GenerateContentResponse) error {
	if resp == nil {
		return nil
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return fmt.Errorf("%w: prompt blocked (%s)", provider.ErrSafety, resp.PromptFeedback.BlockReason)
	}
	for _, cand := range resp.Candidates {
		if cand == nil {
			continue
		}
		reason := string(cand.FinishReason)
		for _, r := range safetyReasons {
			if reason == r {
				return fmt.Errorf("%w: finish reason %s", provider.ErrSafety, reason)
			}
		}
	}
	return nil
}

// imageResult picks the first inline image and collects the text parts
func imageResult(resp *genai.GenerateContentResponse) (*provider.ImageResult, error) {
	var result provider.ImageResult
	found := false
	if len(resp.Candidates) > 0 && resp.Candidates[0] != nil && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			switch {
			case part == nil:
			case part.InlineData != nil && len(part.InlineData.Data) > 0:
				if !found {
					result.Image = message.Attachment{MIMEType: part.InlineData.MIMEType, Data: part.InlineData.Data}
					found = true
				}
			case part.Text != "" && !part.Thought:
				result.Text += part.Text
			}
		}
	}
	if !found {
		return nil, provider.ErrNoImage
	}
	return &result, nil
}

// responseText concatenates the answer parts of the first candidate
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && !part.Thought {
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}

// mapError wraps SDK errors with the provider sentinels they correspond to
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return classifyAPIError(apiErr, err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return classifyAPIError(*apiErrPtr, err)
	}
	return err
}

func classifyAPIError(apiErr genai.APIError, err error) error {
	switch {
	case apiErr.Code == 429 || apiErr.Status == "RESOURCE_EXHAUSTED":
		return fmt.Errorf("%w: %w", provider.ErrQuota, err)
	case apiErr.Code == 403 && strings.Contains(strings.ToLower(apiErr.Message), "billing"):
		return fmt.Errorf("%w: %w", provider.ErrQuota, err)
	case strings.Contains(apiErr.Message, "SAFETY"):
		return fmt.Errorf("%w: %w", provider.ErrSafety, err)
	}
	return err
}

// Ensure Client implements the provider interfaces
var (
	_ provider.LLMProvider = (*Client)(nil)
	_ provider.Generator   = (*Client)(nil)
)
