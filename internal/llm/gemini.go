package llm

import (
	"context"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// geminiClient wraps the official Gemini SDK. The SDK owns transport and
// retries, so the side-channel log gets a prompt/response summary instead of
// raw wire traffic.
type geminiClient struct {
	cfg Config
}

func newGeminiClient(cfg Config) *geminiClient {
	return &geminiClient{cfg: cfg}
}

func (c *geminiClient) Provider() Provider { return ProviderGemini }

func (c *geminiClient) newSDKClient(ctx context.Context) (*genai.Client, error) {
	opts := []option.ClientOption{option.WithAPIKey(c.cfg.APIKey)}
	if c.cfg.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(c.cfg.BaseURL))
	}
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, &Error{Provider: ProviderGemini, Message: err.Error()}
	}
	return client, nil
}

func (c *geminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", &Error{Provider: ProviderGemini, Message: "empty prompt"}
	}
	if c.cfg.APIKey == "" {
		return "", &Error{Provider: ProviderGemini, Message: "missing API key"}
	}
	modelID := strings.TrimPrefix(strings.TrimSpace(c.cfg.Model), "models/")
	if modelID == "" {
		modelID = "gemini-1.5-flash"
	}
	if c.cfg.SystemPrompt != "" {
		prompt = c.cfg.SystemPrompt + "\n\n" + prompt
	}

	client, err := c.newSDKClient(ctx)
	if err != nil {
		return "", err
	}
	defer client.Close()

	model := client.GenerativeModel(modelID)
	model.SetTemperature(0.2)
	model.SetMaxOutputTokens(1024)

	c.cfg.Log.Request("POST", "gemini:"+modelID, nil, []byte(prompt))
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		c.cfg.Log.Error(err)
		return "", &Error{Provider: ProviderGemini, Message: err.Error()}
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", &Error{Provider: ProviderGemini, Message: "response without candidates"}
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	out := b.String()
	c.cfg.Log.Response(200, nil, []byte(out))
	if out == "" {
		return "", &Error{Provider: ProviderGemini, Message: "response without text"}
	}
	return out, nil
}

func (c *geminiClient) ListModels(ctx context.Context) ([]Model, error) {
	fallback := []Model{
		{ID: "gemini-1.5-flash", Description: "Fast and versatile"},
		{ID: "gemini-1.5-pro", Description: "High performance"},
	}
	if c.cfg.APIKey == "" {
		return fallback, nil
	}
	client, err := c.newSDKClient(ctx)
	if err != nil {
		return fallback, nil
	}
	defer client.Close()

	var out []Model
	it := client.ListModels(ctx)
	for {
		m, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return fallback, nil
		}
		for _, method := range m.SupportedGenerationMethods {
			if method == "generateContent" {
				out = append(out, Model{ID: m.Name, Description: m.Description})
				break
			}
		}
	}
	if len(out) == 0 {
		return fallback, nil
	}
	return out, nil
}
