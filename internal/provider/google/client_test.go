package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"google.golang.org/genai"

	"github.com/yanmxa/hezell/internal/message"
	"github.com/yanmxa/hezell/internal/provider"
)

func TestContentConfigReasoningBudgets(t *testing.T) {
	tests := []struct {
		name   string
		budget provider.Budget
		want   *int32
	}{
		{"none", provider.Budget{}, nil},
		{"fixed", provider.Budget{Mode: provider.BudgetFixed, Tokens: 16000}, genai.Ptr[int32](16000)},
		{"zero", provider.Budget{Mode: provider.BudgetZero}, genai.Ptr[int32](0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := contentConfig(provider.ChatConfig{Reasoning: tt.budget})
			if tt.want == nil {
				if cfg.ThinkingConfig != nil {
					t.Fatalf("expected no thinking config, got %+v", cfg.ThinkingConfig)
				}
				return
			}
			if cfg.ThinkingConfig == nil || cfg.ThinkingConfig.ThinkingBudget == nil {
				t.Fatal("expected a thinking budget")
			}
			if *cfg.ThinkingConfig.ThinkingBudget != *tt.want {
				t.Errorf("budget = %d, want %d", *cfg.ThinkingConfig.ThinkingBudget, *tt.want)
			}
		})
	}
}

func TestContentConfigSearchAndInstruction(t *testing.T) {
	cfg := contentConfig(provider.ChatConfig{SystemInstruction: "be brief", SearchEnabled: true})
	if cfg.SystemInstruction == nil || cfg.SystemInstruction.Parts[0].Text != "be brief" {
		t.Errorf("system instruction not set: %+v", cfg.SystemInstruction)
	}
	if len(cfg.Tools) != 1 || cfg.Tools[0].GoogleSearch == nil {
		t.Errorf("search tool not enabled: %+v", cfg.Tools)
	}

	plain := contentConfig(provider.ChatConfig{})
	if plain.SystemInstruction != nil || len(plain.Tools) != 0 {
		t.Errorf("empty binding should produce empty config: %+v", plain)
	}
}

func TestHistoryContents(t *testing.T) {
	img := &message.Attachment{MIMEType: "image/png", Data: []byte{1, 2}}
	got := historyContents([]provider.Turn{
		{Role: provider.RoleUser, Text: "look", Attachment: img},
		{Role: provider.RoleModel, Text: "a cat"},
		{Role: provider.RoleModel},
	})
	if len(got) != 2 {
		t.Fatalf("expected empty turn to be skipped, got %d contents", len(got))
	}
	if got[0].Role != "user" || got[1].Role != "model" {
		t.Errorf("roles = %q, %q", got[0].Role, got[1].Role)
	}
	if got[0].Parts[0].InlineData == nil || got[0].Parts[1].Text != "look" {
		t.Errorf("attachment must precede text: %+v", got[0].Parts)
	}
}

func TestPromptParts(t *testing.T) {
	parts := promptParts(provider.Prompt{Text: "hi"})
	if len(parts) != 1 || parts[0].Text != "hi" {
		t.Errorf("unexpected parts %+v", parts)
	}
	parts = promptParts(provider.Prompt{Text: "what is this", Attachment: &message.Attachment{MIMEType: "application/pdf", Data: []byte("%PDF")}})
	if len(parts) != 2 || parts[0].InlineData.MIMEType != "application/pdf" {
		t.Errorf("unexpected parts %+v", parts)
	}
}

func TestResponseChunks(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{
				{Text: "weighing options", Thought: true},
				{Text: "Answer"},
				{Text: ""},
			}},
			GroundingMetadata: &genai.GroundingMetadata{
				WebSearchQueries: []string{"go generics"},
				GroundingChunks: []*genai.GroundingChunk{
					{Web: &genai.GroundingChunkWeb{URI: "https://go.dev", Title: "Go"}},
					{Web: nil},
				},
			},
		}},
	}

	chunks, err := responseChunks(resp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []message.StreamChunk{
		{Type: message.ChunkTypeThought, Text: "weighing options"},
		{Type: message.ChunkTypeText, Text: "Answer"},
		{Type: message.ChunkTypeGrounding, Grounding: &message.Grounding{
			Queries: []string{"go generics"},
			Sources: []message.Source{{URI: "https://go.dev", Title: "Go"}},
		}},
	}
	if diff := cmp.Diff(want, chunks); diff != "" {
		t.Errorf("chunks mismatch (-want +got):\n%s", diff)
	}
}

func TestResponseChunksSafetyStop(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content:      &genai.Content{Parts: []*genai.Part{{Text: "partial"}}},
			FinishReason: genai.FinishReason("SAFETY"),
		}},
	}
	chunks, err := responseChunks(resp)
	if len(chunks) != 1 {
		t.Errorf("text before the stop should be kept, got %d chunks", len(chunks))
	}
	if !errors.Is(err, provider.ErrSafety) {
		t.Errorf("expected ErrSafety, got %v", err)
	}
}

func TestImageResult(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{
				{Text: "Here is your edit."},
				{InlineData: &genai.Blob{MIMEType: "image/png", Data: []byte{9}}},
			}},
		}},
	}
	res, err := imageResult(resp)
	if err != nil {
		t.Fatalf("imageResult() error: %v", err)
	}
	if res.Text != "Here is your edit." || res.Image.MIMEType != "image/png" {
		t.Errorf("unexpected result %+v", res)
	}

	textOnly := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []*genai.Part{{Text: "I can't draw"}}}}},
	}
	if _, err := imageResult(textOnly); !errors.Is(err, provider.ErrNoImage) {
		t.Errorf("expected ErrNoImage, got %v", err)
	}
}

func TestSpeechResult(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{
				{InlineData: &genai.Blob{MIMEType: "audio/L16;codec=pcm;rate=16000", Data: []byte{1, 2, 3, 4}}},
			}},
		}},
	}
	res, err := speechResult(resp)
	if err != nil {
		t.Fatal(err)
	}
	if res.SampleRate != 16000 || len(res.PCM) != 4 {
		t.Errorf("unexpected result %+v", res)
	}

	bare := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []*genai.Part{
			{InlineData: &genai.Blob{MIMEType: "audio/pcm", Data: []byte{1, 2}}},
		}}}},
	}
	if res, _ := speechResult(bare); res.SampleRate != defaultSampleRate {
		t.Errorf("rate = %d, want default", res.SampleRate)
	}
	if _, err := speechResult(&genai.GenerateContentResponse{}); !errors.Is(err, provider.ErrNoAudio) {
		t.Errorf("expected ErrNoAudio, got %v", err)
	}
}

type speechTransport struct {
	body []byte
}

func (t *speechTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.body, _ = io.ReadAll(req.Body)
	const reply = `{"candidates":[{"content":{"role":"model","parts":[{"inlineData":{"mimeType":"audio/L16;codec=pcm;rate=24000","data":"AQIDBA=="}}]},"finishReason":"STOP"}]}`
	return &http.Response{
		StatusCode: http.StatusOK,
		Status:     "200 OK",
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(reply)),
		Request:    req,
	}, nil
}

func TestGenerateSpeechRequestsAudio(t *testing.T) {
	transport := &speechTransport{}
	sdk, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:      "test",
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  &http.Client{Transport: transport},
		HTTPOptions: genai.HTTPOptions{BaseURL: "https://example.com/"},
	})
	if err != nil {
		t.Fatal(err)
	}

	res, err := NewClient(sdk, "google").GenerateSpeech(context.Background(), provider.SpeechRequest{
		Engine: "gemini-2.5-flash-preview-tts",
		Text:   "Halo",
		Voice:  message.VoicePuck,
	})
	if err != nil {
		t.Fatalf("GenerateSpeech() error: %v", err)
	}
	if diff := cmp.Diff([]byte{1, 2, 3, 4}, res.PCM); diff != "" || res.SampleRate != 24000 {
		t.Errorf("result mismatch (rate %d):\n%s", res.SampleRate, diff)
	}

	var payload struct {
		GenerationConfig struct {
			ResponseModalities []string `json:"responseModalities"`
			SpeechConfig       struct {
				VoiceConfig struct {
					PrebuiltVoiceConfig struct {
						VoiceName string `json:"voiceName"`
					} `json:"prebuiltVoiceConfig"`
				} `json:"voiceConfig"`
			} `json:"speechConfig"`
		} `json:"generationConfig"`
	}
	if err := json.Unmarshal(transport.body, &payload); err != nil {
		t.Fatalf("invalid request body: %v", err)
	}
	gc := payload.GenerationConfig
	if len(gc.ResponseModalities) != 1 || gc.ResponseModalities[0] != "AUDIO" {
		t.Errorf("modalities = %v", gc.ResponseModalities)
	}
	if gc.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName != "Puck" {
		t.Errorf("voice missing from request: %s", transport.body)
	}
}

func TestMapError(t *testing.T) {
	quota := fmt.Errorf("send: %w", genai.APIError{Code: 429, Message: "Resource has been exhausted", Status: "RESOURCE_EXHAUSTED"})
	if err := mapError(quota); !errors.Is(err, provider.ErrQuota) {
		t.Errorf("429 not mapped to ErrQuota: %v", err)
	}

	other := genai.APIError{Code: 500, Message: "internal", Status: "INTERNAL"}
	if err := mapError(other); errors.Is(err, provider.ErrQuota) || errors.Is(err, provider.ErrSafety) {
		t.Errorf("500 should pass through, got %v", err)
	}

	plain := errors.New("dial tcp: timeout")
	if mapError(plain) != plain {
		t.Error("non-API errors should pass through unchanged")
	}
}
