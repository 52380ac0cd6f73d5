package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Provider identifies one remote text-generation backend. The set is closed:
// New rejects anything else.
type Provider string

const (
	ProviderGroq        Provider = "groq"
	ProviderHuggingFace Provider = "huggingface"
	ProviderGemini      Provider = "gemini"
	ProviderMistral     Provider = "mistral"
	ProviderPerplexity  Provider = "perplexity"
	ProviderOpenRouter  Provider = "openrouter"
	ProviderCloudflare  Provider = "cloudflare"
)

// Providers lists the supported providers in settings order.
func Providers() []Provider {
	return []Provider{
		ProviderGroq, ProviderHuggingFace, ProviderGemini, ProviderMistral,
		ProviderPerplexity, ProviderOpenRouter, ProviderCloudflare,
	}
}

// Model is one entry of a provider's catalog.
type Model struct {
	ID          string `json:"id"`
	Description string `json:"description"`
}

// Client generates explanations and lists the provider's model catalog.
type Client interface {
	Generate(ctx context.Context, prompt string) (string, error)
	ListModels(ctx context.Context) ([]Model, error)
	Provider() Provider
}

// Error is a provider-tagged failure. StatusCode, Header and Body carry the
// remote response when the failure came from a non-success HTTP status; they
// are zero for local failures (missing key, empty prompt, bad payload).
type Error struct {
	Provider   Provider
	StatusCode int
	Header     http.Header
	Body       string
	Message    string
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: HTTP %d: %s", e.Provider, e.StatusCode, preview(e.Body, 800))
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func preview(s string, n int) string {
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}

// Config selects and parameterizes a provider client.
type Config struct {
	Provider     Provider
	APIKey       string
	Model        string
	SystemPrompt string

	// BaseURL overrides the provider endpoint; used by tests.
	BaseURL string
	// HTTPClient defaults to a 60s-timeout client.
	HTTPClient *http.Client
	// Log mirrors every request and response; nil disables mirroring.
	Log *HTTPLog
}

// New builds the client for cfg.Provider. The API key is sanitized: pasted
// keys routinely carry stray whitespace or invisible characters.
func New(cfg Config) (Client, error) {
	cfg.APIKey = SanitizeKey(cfg.APIKey)
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	switch cfg.Provider {
	case ProviderGroq, ProviderMistral, ProviderPerplexity, ProviderOpenRouter:
		return newOpenAIClient(cfg), nil
	case ProviderHuggingFace:
		return newHuggingFaceClient(cfg), nil
	case ProviderCloudflare:
		return newCloudflareClient(cfg), nil
	case ProviderGemini:
		return newGeminiClient(cfg), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %q", cfg.Provider)
	}
}

// SanitizeKey trims the key and drops everything outside printable ASCII.
func SanitizeKey(key string) string {
	key = strings.TrimSpace(key)
	var b strings.Builder
	for _, r := range key {
		if r >= 32 && r <= 126 {
			b.WriteRune(r)
		}
	}
	return b.String()
}
