package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// huggingFaceClient talks to the Hugging Face inference router and the hub
// model catalog. Both work without a key at reduced rate limits.
type huggingFaceClient struct {
	restClient
	cfg      Config
	inferURL string
	hubURL   string
}

func newHuggingFaceClient(cfg Config) *huggingFaceClient {
	infer := cfg.BaseURL
	hub := cfg.BaseURL
	if cfg.BaseURL == "" {
		infer = "https://router.huggingface.co/models"
		hub = "https://huggingface.co"
	} else {
		infer = strings.TrimRight(infer, "/") + "/models"
	}
	return &huggingFaceClient{
		restClient: restClient{provider: ProviderHuggingFace, http: cfg.HTTPClient, log: cfg.Log},
		cfg:        cfg,
		inferURL:   strings.TrimRight(infer, "/"),
		hubURL:     strings.TrimRight(hub, "/"),
	}
}

func (c *huggingFaceClient) Provider() Provider { return ProviderHuggingFace }

func (c *huggingFaceClient) Generate(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", &Error{Provider: ProviderHuggingFace, Message: "empty prompt"}
	}
	model := strings.TrimSpace(c.cfg.Model)
	if model == "" {
		model = "meta-llama/Llama-3.1-8B-Instruct"
	}
	if c.cfg.SystemPrompt != "" {
		prompt = c.cfg.SystemPrompt + "\n\n" + prompt
	}
	body, err := json.Marshal(map[string]any{
		"inputs": prompt,
		"parameters": map[string]any{
			"max_new_tokens":   512,
			"return_full_text": false,
		},
	})
	if err != nil {
		return "", &Error{Provider: ProviderHuggingFace, Message: err.Error()}
	}
	header := map[string]string{"Content-Type": "application/json"}
	if c.cfg.APIKey != "" {
		header["Authorization"] = "Bearer " + c.cfg.APIKey
	}
	_, _, respBody, doErr := c.do(ctx, "POST", c.inferURL+"/"+url.PathEscape(model), header, body)
	if doErr != nil {
		return "", doErr
	}
	return extractHFText(respBody)
}

// extractHFText handles the two response shapes the inference API emits: a
// list of objects or a single object, either with generated_text or
// summary_text.
func extractHFText(body []byte) (string, error) {
	type hfItem struct {
		GeneratedText string `json:"generated_text"`
		SummaryText   string `json:"summary_text"`
	}
	var list []hfItem
	if err := json.Unmarshal(body, &list); err == nil && len(list) > 0 {
		if t := firstNonEmpty(list[0].GeneratedText, list[0].SummaryText); t != "" {
			return t, nil
		}
		return "", &Error{Provider: ProviderHuggingFace, Message: "response without text: " + preview(string(body), 400)}
	}
	var item hfItem
	if err := json.Unmarshal(body, &item); err == nil {
		if t := firstNonEmpty(item.GeneratedText, item.SummaryText); t != "" {
			return t, nil
		}
	}
	return "", &Error{Provider: ProviderHuggingFace, Message: "unparseable response: " + preview(string(body), 400)}
}

func (c *huggingFaceClient) ListModels(ctx context.Context) ([]Model, error) {
	listURL := c.hubURL + "/api/models?pipeline_tag=text-generation&sort=downloads&direction=-1&limit=50"
	header := map[string]string{}
	if c.cfg.APIKey != "" {
		header["Authorization"] = "Bearer " + c.cfg.APIKey
	}
	_, _, body, err := c.do(ctx, "GET", listURL, header, nil)
	if err != nil {
		return nil, err
	}
	var parsed []struct {
		ModelID   string `json:"modelId"`
		Downloads int    `json:"downloads"`
		Likes     int    `json:"likes"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &Error{Provider: ProviderHuggingFace, Message: "unparseable model list: " + err.Error()}
	}
	var out []Model
	for _, m := range parsed {
		if m.ModelID != "" {
			out = append(out, Model{ID: m.ModelID, Description: fmt.Sprintf("Downloads: %d | Likes: %d", m.Downloads, m.Likes)})
		}
	}
	return out, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
