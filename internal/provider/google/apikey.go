package google

import (
	"context"

	"google.golang.org/genai"

	"github.com/yanmxa/hezell/internal/provider"
)

// APIKeyMeta is the metadata for Google via API Key
var APIKeyMeta = provider.ProviderMeta{
	Provider:    provider.ProviderGoogle,
	AuthMethod:  provider.AuthAPIKey,
	EnvVars:     []string{"GEMINI_API_KEY|GOOGLE_API_KEY"},
	DisplayName: "Gemini API",
}

// NewAPIKeyClient creates a new Google client using API Key authentication
func NewAPIKeyClient(ctx context.Context) (provider.LLMProvider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  provider.LookupEnv(APIKeyMeta.EnvVars[0]),
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}

	return NewClient(client, "google:api_key"), nil
}

// init registers the API Key provider
func init() {
	provider.Register(APIKeyMeta, NewAPIKeyClient)
}
