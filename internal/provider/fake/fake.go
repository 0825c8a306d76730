// Package fake provides a scripted provider for tests.
package fake

import (
	"context"
	"sync"

	"github.com/yanmxa/hezell/internal/message"
	"github.com/yanmxa/hezell/internal/provider"
)

// Provider is a test double that serves predefined replies. It implements
// both provider.LLMProvider and provider.Generator.
//
// Usage:
//
//	fake := &fake.Provider{
//	    Replies: [][]message.StreamChunk{fake.Text("hello")},
//	}
//	// Every chat handle opened on fake draws from the same Replies queue.
type Provider struct {
	// Replies is the queue of streamed chat replies, consumed in order.
	// A done chunk is appended unless the reply ends in an error. If
	// exhausted, a default "no more responses" reply is streamed.
	Replies [][]message.StreamChunk

	// Images is the queue of GenerateImage results. If exhausted,
	// provider.ErrNoImage is returned.
	Images []*provider.ImageResult

	// Texts is the queue of GenerateText results.
	Texts []string

	// Speech is the queue of GenerateSpeech results. If exhausted,
	// provider.ErrNoAudio is returned.
	Speech []*provider.SpeechResult

	// ProviderName (defaults to "fake")
	ProviderName string

	// NewChatErr, when set, fails every NewChat.
	NewChatErr error

	// ErrorAt injects ErrorValue on the Nth Send or Generate* call
	// (1-based). 0 means disabled.
	ErrorAt int

	// ErrorValue is the error to inject when ErrorAt triggers.
	ErrorValue error

	// Gate, when non-nil, must deliver a value before each reply streams.
	Gate chan struct{}

	mu             sync.Mutex
	callCount      int
	chats          []provider.ChatConfig
	prompts        []provider.Prompt
	imageRequests  []provider.ImageRequest
	textRequests   []provider.TextRequest
	speechRequests []provider.SpeechRequest
}

var (
	_ provider.LLMProvider = (*Provider)(nil)
	_ provider.Generator   = (*Provider)(nil)
)

// Text builds a reply streaming each part as a text fragment.
func Text(parts ...string) []message.StreamChunk {
	out := make([]message.StreamChunk, len(parts))
	for i, p := range parts {
		out[i] = message.StreamChunk{Type: message.ChunkTypeText, Text: p}
	}
	return out
}

// Thought builds a thought-tagged fragment.
func Thought(text string) message.StreamChunk {
	return message.StreamChunk{Type: message.ChunkTypeThought, Text: text}
}

// Error builds an error chunk.
func Error(err error) message.StreamChunk {
	return message.StreamChunk{Type: message.ChunkTypeError, Error: err}
}

// Name returns the provider name.
func (f *Provider) Name() string {
	if f.ProviderName != "" {
		return f.ProviderName
	}
	return "fake"
}

// NewChat records cfg and returns a handle drawing from Replies.
func (f *Provider) NewChat(_ context.Context, cfg provider.ChatConfig) (provider.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chats = append(f.chats, cfg)
	if f.NewChatErr != nil {
		return nil, f.NewChatErr
	}
	return &chat{fake: f}, nil
}

type chat struct {
	fake *Provider
}

// Send streams the next scripted reply.
func (c *chat) Send(ctx context.Context, p provider.Prompt) <-chan message.StreamChunk {
	f := c.fake
	f.mu.Lock()
	f.prompts = append(f.prompts, p)
	var chunks []message.StreamChunk
	if f.shouldInjectErrorLocked() {
		chunks = []message.StreamChunk{Error(f.ErrorValue)}
	} else {
		chunks = f.nextReplyLocked()
	}
	gate := f.Gate
	f.mu.Unlock()

	if n := len(chunks); n == 0 || chunks[n-1].Type != message.ChunkTypeError {
		chunks = append(chunks, message.StreamChunk{Type: message.ChunkTypeDone})
	}

	ch := make(chan message.StreamChunk)
	go func() {
		defer close(ch)
		if gate != nil {
			select {
			case <-gate:
			case <-ctx.Done():
				ch <- Error(ctx.Err())
				return
			}
		}
		for _, chunk := range chunks {
			ch <- chunk
		}
	}()
	return ch
}

// GenerateImage returns the next scripted image.
func (f *Provider) GenerateImage(_ context.Context, req provider.ImageRequest) (*provider.ImageResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.imageRequests = append(f.imageRequests, req)
	if f.shouldInjectErrorLocked() {
		return nil, f.ErrorValue
	}
	if len(f.Images) == 0 {
		return nil, provider.ErrNoImage
	}
	res := f.Images[0]
	f.Images = f.Images[1:]
	return res, nil
}

// GenerateText returns the next scripted text.
func (f *Provider) GenerateText(_ context.Context, req provider.TextRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.textRequests = append(f.textRequests, req)
	if f.shouldInjectErrorLocked() {
		return "", f.ErrorValue
	}
	if len(f.Texts) == 0 {
		return "", nil
	}
	text := f.Texts[0]
	f.Texts = f.Texts[1:]
	return text, nil
}

// GenerateSpeech returns the next scripted audio.
func (f *Provider) GenerateSpeech(_ context.Context, req provider.SpeechRequest) (*provider.SpeechResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.speechRequests = append(f.speechRequests, req)
	if f.shouldInjectErrorLocked() {
		return nil, f.ErrorValue
	}
	if len(f.Speech) == 0 {
		return nil, provider.ErrNoAudio
	}
	res := f.Speech[0]
	f.Speech = f.Speech[1:]
	return res, nil
}

// Chats returns every ChatConfig received, in order.
func (f *Provider) Chats() []provider.ChatConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]provider.ChatConfig(nil), f.chats...)
}

// Prompts returns every prompt sent, in order.
func (f *Provider) Prompts() []provider.Prompt {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]provider.Prompt(nil), f.prompts...)
}

// ImageRequests returns every image request received, in order.
func (f *Provider) ImageRequests() []provider.ImageRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]provider.ImageRequest(nil), f.imageRequests...)
}

// TextRequests returns every text request received, in order.
func (f *Provider) TextRequests() []provider.TextRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]provider.TextRequest(nil), f.textRequests...)
}

// SpeechRequests returns every speech request received, in order.
func (f *Provider) SpeechRequests() []provider.SpeechRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]provider.SpeechRequest(nil), f.speechRequests...)
}

// --- helpers ---

// shouldInjectErrorLocked increments callCount and returns true when ErrorAt matches.
func (f *Provider) shouldInjectErrorLocked() bool {
	f.callCount++
	return f.ErrorAt > 0 && f.callCount == f.ErrorAt
}

func (f *Provider) nextReplyLocked() []message.StreamChunk {
	if len(f.Replies) == 0 {
		return Text("no more responses")
	}
	reply := f.Replies[0]
	f.Replies = f.Replies[1:]
	return append([]message.StreamChunk(nil), reply...)
}
