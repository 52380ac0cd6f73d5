package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// openAIClient serves the providers whose API follows the OpenAI
// chat-completions shape: Groq, Mistral, Perplexity and OpenRouter. They
// differ only in base URL, auth requirements and a few quirks handled below.
type openAIClient struct {
	restClient
	cfg     Config
	baseURL string
}

func newOpenAIClient(cfg Config) *openAIClient {
	base := cfg.BaseURL
	if base == "" {
		switch cfg.Provider {
		case ProviderGroq:
			base = "https://api.groq.com/openai/v1"
		case ProviderMistral:
			base = "https://api.mistral.ai/v1"
		case ProviderPerplexity:
			base = "https://api.perplexity.ai"
		case ProviderOpenRouter:
			base = "https://openrouter.ai/api/v1"
		}
	}
	return &openAIClient{
		restClient: restClient{provider: cfg.Provider, http: cfg.HTTPClient, log: cfg.Log},
		cfg:        cfg,
		baseURL:    strings.TrimRight(base, "/"),
	}
}

func (c *openAIClient) Provider() Provider { return c.cfg.Provider }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Text string `json:"text"`
	} `json:"choices"`
}

func (c *openAIClient) Generate(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", &Error{Provider: c.cfg.Provider, Message: "empty prompt"}
	}
	if c.cfg.APIKey == "" {
		return "", &Error{Provider: c.cfg.Provider, Message: "missing API key"}
	}
	model, err := c.resolveModel(ctx)
	if err != nil {
		return "", err
	}

	messages := []chatMessage{{Role: "user", Content: prompt}}
	switch c.cfg.Provider {
	case ProviderGroq:
		messages = append([]chatMessage{{Role: "system", Content: c.cfg.SystemPrompt}}, messages...)
	case ProviderPerplexity:
		if c.cfg.SystemPrompt != "" {
			messages = append([]chatMessage{{Role: "system", Content: c.cfg.SystemPrompt}}, messages...)
		}
	}
	body, err := json.Marshal(chatRequest{Model: model, Messages: messages, Temperature: 0.2, MaxTokens: 1024})
	if err != nil {
		return "", &Error{Provider: c.cfg.Provider, Message: err.Error()}
	}

	_, _, respBody, doErr := c.do(ctx, "POST", c.baseURL+"/chat/completions", c.authHeader(), body)
	if doErr != nil {
		if c.cfg.Provider == ProviderGroq {
			if e, ok := doErr.(*Error); ok && e.StatusCode == 400 {
				if text, legacyErr := c.groqLegacyCompletion(ctx, model, prompt); legacyErr == nil {
					return text, nil
				}
			}
		}
		return "", doErr
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", &Error{Provider: c.cfg.Provider, Message: "unparseable response: " + err.Error()}
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return "", &Error{Provider: c.cfg.Provider, Message: "response without content: " + preview(string(respBody), 400)}
	}
	return parsed.Choices[0].Message.Content, nil
}

// groqLegacyCompletion retries a rejected chat payload against the legacy
// completion endpoint once. Any failure here surfaces the original chat
// error instead.
func (c *openAIClient) groqLegacyCompletion(ctx context.Context, model, prompt string) (string, error) {
	body, err := json.Marshal(map[string]any{
		"model":       model,
		"prompt":      prompt,
		"temperature": 0.2,
		"max_tokens":  1024,
	})
	if err != nil {
		return "", err
	}
	_, _, respBody, doErr := c.do(ctx, "POST", c.baseURL+"/completions", c.authHeader(), body)
	if doErr != nil {
		return "", doErr
	}
	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", err
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Text == "" {
		return "", fmt.Errorf("legacy completion without text")
	}
	return parsed.Choices[0].Text, nil
}

func (c *openAIClient) resolveModel(ctx context.Context) (string, error) {
	model := strings.TrimSpace(c.cfg.Model)
	if model == "" {
		if models, err := c.ListModels(ctx); err == nil && len(models) > 0 {
			model = models[0].ID
		}
	}
	if c.cfg.Provider == ProviderPerplexity {
		model = NormalizePerplexityModel(model)
	}
	if model == "" {
		model = c.defaultModel()
	}
	return model, nil
}

func (c *openAIClient) defaultModel() string {
	switch c.cfg.Provider {
	case ProviderGroq:
		return "llama-3.3-70b-versatile"
	case ProviderMistral:
		return "mistral-small-latest"
	case ProviderPerplexity:
		return "sonar-pro"
	case ProviderOpenRouter:
		return "meta-llama/llama-3.1-8b-instruct"
	}
	return ""
}

func (c *openAIClient) authHeader() map[string]string {
	return map[string]string{
		"Content-Type":  "application/json",
		"Authorization": "Bearer " + c.cfg.APIKey,
	}
}

func (c *openAIClient) ListModels(ctx context.Context) ([]Model, error) {
	switch c.cfg.Provider {
	case ProviderGroq:
		return c.groqListModels(ctx)
	case ProviderMistral:
		return c.mistralListModels(ctx)
	case ProviderPerplexity:
		// Perplexity has no public catalog endpoint; the list tracks the
		// official API reference.
		var out []Model
		for _, id := range []string{"sonar", "sonar-pro", "sonar-deep-research", "sonar-reasoning-pro"} {
			out = append(out, Model{ID: id, Description: "Perplexity Sonar model"})
		}
		return out, nil
	case ProviderOpenRouter:
		return c.openRouterListModels(ctx)
	}
	return nil, nil
}

type catalogResponse struct {
	Data []struct {
		ID            string `json:"id"`
		OwnedBy       string `json:"owned_by"`
		Description   string `json:"description"`
		ContextLength int    `json:"context_length"`
	} `json:"data"`
}

func (c *openAIClient) groqListModels(ctx context.Context) ([]Model, error) {
	_, _, body, err := c.do(ctx, "GET", c.baseURL+"/models", c.authHeader(), nil)
	if err != nil {
		return nil, err
	}
	var parsed catalogResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &Error{Provider: c.cfg.Provider, Message: "unparseable model list: " + err.Error()}
	}
	var out []Model
	for _, m := range parsed.Data {
		if m.ID != "" {
			out = append(out, Model{ID: m.ID, Description: "Owner: " + orUnknown(m.OwnedBy)})
		}
	}
	if len(out) == 0 {
		return fallbackModels([]string{
			"llama-3.3-70b-versatile",
			"llama-3.1-70b-versatile",
			"llama-3.1-8b-instant",
			"mixtral-8x7b-32768",
			"gemma2-9b-it",
		}, "Fallback default"), nil
	}
	return out, nil
}

func (c *openAIClient) mistralListModels(ctx context.Context) ([]Model, error) {
	fallback := fallbackModels([]string{
		"mistral-large-latest", "mistral-medium-latest",
		"mistral-small-latest", "codestral-latest", "open-mixtral-8x7b",
	}, "Mistral model")
	if c.cfg.APIKey == "" {
		return fallback, nil
	}
	_, _, body, err := c.do(ctx, "GET", c.baseURL+"/models", c.authHeader(), nil)
	if err != nil {
		return fallback, nil
	}
	var parsed catalogResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return fallback, nil
	}
	var out []Model
	for _, m := range parsed.Data {
		if m.ID != "" {
			out = append(out, Model{ID: m.ID, Description: "Owned by " + orUnknown(m.OwnedBy)})
		}
	}
	if len(out) == 0 {
		return fallback, nil
	}
	return out, nil
}

func (c *openAIClient) openRouterListModels(ctx context.Context) ([]Model, error) {
	fallback := fallbackModels([]string{
		"meta-llama/llama-3.1-8b-instruct",
		"mistralai/mixtral-8x7b-instruct",
		"google/gemma-2-9b-it",
	}, "OpenRouter model")
	header := map[string]string{}
	if c.cfg.APIKey != "" {
		header["Authorization"] = "Bearer " + c.cfg.APIKey
	}
	_, _, body, err := c.do(ctx, "GET", c.baseURL+"/models", header, nil)
	if err != nil {
		return fallback, nil
	}
	var parsed catalogResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return fallback, nil
	}
	var out []Model
	for _, m := range parsed.Data {
		if m.ID == "" {
			continue
		}
		desc := m.Description
		if desc == "" {
			desc = fmt.Sprintf("Context: %d", m.ContextLength)
		}
		out = append(out, Model{ID: m.ID, Description: desc})
		// The public catalog is huge; cap what reaches the UI.
		if len(out) == 100 {
			break
		}
	}
	if len(out) == 0 {
		return fallback, nil
	}
	return out, nil
}

// NormalizePerplexityModel maps historic Perplexity model names onto the
// current Sonar catalog. Unknown names fall back by keyword sniffing, with
// sonar-pro as the documented default. Best-effort, not authoritative.
func NormalizePerplexityModel(model string) string {
	raw := strings.TrimSpace(model)
	if raw == "" {
		return "sonar-pro"
	}
	lower := strings.ToLower(raw)
	switch lower {
	case "sonar", "sonar-pro", "sonar-deep-research", "sonar-reasoning-pro":
		return lower
	}
	legacy := map[string]string{
		"sonar-reasoning":                   "sonar-reasoning-pro",
		"llama-3.1-sonar-small-128k-online": "sonar",
		"llama-3.1-sonar-large-128k-online": "sonar-pro",
		"llama-3.1-sonar-huge-128k-online":  "sonar-pro",
	}
	if m, ok := legacy[lower]; ok {
		return m
	}
	if strings.Contains(lower, "reason") {
		return "sonar-reasoning-pro"
	}
	if strings.Contains(lower, "deep") || strings.Contains(lower, "research") {
		return "sonar-deep-research"
	}
	return "sonar-pro"
}

func fallbackModels(ids []string, desc string) []Model {
	out := make([]Model, 0, len(ids))
	for _, id := range ids {
		out = append(out, Model{ID: id, Description: desc})
	}
	return out
}

func orUnknown(s string) string {
	if s == "" {
		return "?"
	}
	return s
}
