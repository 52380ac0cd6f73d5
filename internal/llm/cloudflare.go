package llm

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
)

// cloudflareClient talks to Cloudflare Workers AI. The credential is the
// compound form ACCOUNT_ID:API_TOKEN, split on the first colon since API
// tokens may themselves contain colons.
type cloudflareClient struct {
	restClient
	cfg     Config
	baseURL string
}

func newCloudflareClient(cfg Config) *cloudflareClient {
	base := cfg.BaseURL
	if base == "" {
		base = "https://api.cloudflare.com/client/v4"
	}
	return &cloudflareClient{
		restClient: restClient{provider: ProviderCloudflare, http: cfg.HTTPClient, log: cfg.Log},
		cfg:        cfg,
		baseURL:    strings.TrimRight(base, "/"),
	}
}

func (c *cloudflareClient) Provider() Provider { return ProviderCloudflare }

func (c *cloudflareClient) credentials() (accountID, token string, ok bool) {
	raw := c.cfg.APIKey
	i := strings.Index(raw, ":")
	if i < 0 {
		return "", "", false
	}
	accountID = strings.TrimSpace(raw[:i])
	token = strings.TrimSpace(raw[i+1:])
	return accountID, token, accountID != "" && token != ""
}

type cloudflareEnvelope struct {
	Success bool `json:"success"`
	Errors  []struct {
		Message string `json:"message"`
	} `json:"errors"`
	Result json.RawMessage `json:"result"`
}

func (c *cloudflareClient) Generate(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", &Error{Provider: ProviderCloudflare, Message: "empty prompt"}
	}
	accountID, token, ok := c.credentials()
	if !ok {
		return "", &Error{Provider: ProviderCloudflare, Message: "credentials must be ACCOUNT_ID:API_TOKEN"}
	}
	model := strings.TrimSpace(c.cfg.Model)
	if model == "" {
		model = "@cf/meta/llama-3-8b-instruct"
	}
	body, err := json.Marshal(map[string]any{
		"messages": []chatMessage{
			{Role: "system", Content: c.cfg.SystemPrompt},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", &Error{Provider: ProviderCloudflare, Message: err.Error()}
	}
	header := map[string]string{
		"Content-Type":  "application/json",
		"Authorization": "Bearer " + token,
	}
	endpoint := c.baseURL + "/accounts/" + url.PathEscape(accountID) + "/ai/run/" + model
	_, _, respBody, doErr := c.do(ctx, "POST", endpoint, header, body)
	if doErr != nil {
		return "", doErr
	}

	var env cloudflareEnvelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return "", &Error{Provider: ProviderCloudflare, Message: "unparseable response: " + err.Error()}
	}
	if !env.Success {
		msg := "unknown error"
		if len(env.Errors) > 0 && env.Errors[0].Message != "" {
			msg = env.Errors[0].Message
		}
		return "", &Error{Provider: ProviderCloudflare, Message: msg}
	}
	var result struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal(env.Result, &result); err != nil || result.Response == "" {
		return "", &Error{Provider: ProviderCloudflare, Message: "response without text: " + preview(string(respBody), 300)}
	}
	return result.Response, nil
}

func (c *cloudflareClient) ListModels(ctx context.Context) ([]Model, error) {
	fallback := fallbackModels([]string{
		"@cf/meta/llama-3-8b-instruct",
		"@cf/meta/llama-3.1-8b-instruct",
		"@cf/meta/llama-3.2-3b-instruct",
		"@cf/mistral/mistral-7b-instruct-v0.1",
		"@cf/microsoft/phi-2",
		"@cf/qwen/qwen1.5-7b-chat-awq",
		"@cf/google/gemma-7b-it-lora",
	}, "Cloudflare model")
	accountID, token, ok := c.credentials()
	if !ok {
		return fallback, nil
	}
	header := map[string]string{"Authorization": "Bearer " + token}
	endpoint := c.baseURL + "/accounts/" + url.PathEscape(accountID) + "/ai/models/search"
	_, _, body, err := c.do(ctx, "GET", endpoint, header, nil)
	if err != nil {
		return fallback, nil
	}
	var env cloudflareEnvelope
	if err := json.Unmarshal(body, &env); err != nil || !env.Success {
		return fallback, nil
	}
	var entries []struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Task        struct {
			Name string `json:"name"`
		} `json:"task"`
	}
	if err := json.Unmarshal(env.Result, &entries); err != nil {
		return fallback, nil
	}
	var out []Model
	for _, m := range entries {
		textTask := m.Task.Name == "Text Generation" || m.Task.Name == "Text-to-Text"
		if textTask || strings.Contains(strings.ToLower(m.Name), "instruct") {
			out = append(out, Model{ID: m.Name, Description: m.Description})
		}
	}
	if len(out) == 0 {
		return fallback, nil
	}
	return out, nil
}
