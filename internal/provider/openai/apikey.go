package openai

import (
	"context"
	"os"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/yanmxa/hezell/internal/provider"
)

// APIKeyMeta is the metadata for OpenAI via API Key
var APIKeyMeta = provider.ProviderMeta{
	Provider:    provider.ProviderOpenAI,
	AuthMethod:  provider.AuthAPIKey,
	EnvVars:     []string{"OPENAI_API_KEY"},
	DisplayName: "OpenAI-compatible API",
}

// MoonshotMeta is the metadata for Moonshot via API Key
var MoonshotMeta = provider.ProviderMeta{
	Provider:    provider.ProviderMoonshot,
	AuthMethod:  provider.AuthAPIKey,
	EnvVars:     []string{"MOONSHOT_API_KEY"},
	DisplayName: "Moonshot API",
}

const (
	defaultModel         = "gpt-4o-mini"
	defaultMoonshotURL   = "https://api.moonshot.cn/v1"
	defaultMoonshotModel = "kimi-k2-turbo-preview"
)

// NewAPIKeyClient creates a new OpenAI client using API Key authentication.
// OPENAI_BASE_URL points it at any compatible server; OPENAI_MODEL picks the model.
func NewAPIKeyClient(ctx context.Context) (provider.LLMProvider, error) {
	opts := []option.RequestOption{option.WithAPIKey(os.Getenv("OPENAI_API_KEY"))}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)
	return NewClient(client, "openai:api_key", envOr("OPENAI_MODEL", defaultModel)), nil
}

// NewMoonshotClient creates a Moonshot client. The Moonshot API is
// OpenAI-compatible, so it reuses the OpenAI SDK with a custom base URL.
func NewMoonshotClient(ctx context.Context) (provider.LLMProvider, error) {
	client := openai.NewClient(
		option.WithAPIKey(os.Getenv("MOONSHOT_API_KEY")),
		option.WithBaseURL(envOr("MOONSHOT_BASE_URL", defaultMoonshotURL)),
	)
	c := NewClient(client, "moonshot:api_key", envOr("MOONSHOT_MODEL", defaultMoonshotModel))
	c.reasoningField = true
	return c, nil
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

// init registers the API Key providers
func init() {
	provider.Register(APIKeyMeta, NewAPIKeyClient)
	provider.Register(MoonshotMeta, NewMoonshotClient)
}
