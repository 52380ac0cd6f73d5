// internal/api/http/explain_handlers.go
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/gift-practice/giftpractice/internal/enrich"
	"github.com/gift-practice/giftpractice/internal/explain"
	"github.com/gift-practice/giftpractice/internal/llm"
	"github.com/gift-practice/giftpractice/internal/prefs"
)

// ExplainDeps bundles what the explanation handlers need. NewLLMClient
// defaults to llm.New; tests swap it for a fake.
type ExplainDeps struct {
	Service *explain.Service
	Bank    *BankState
	Prefs   *prefs.Manager
	HTTPLog *llm.HTTPLog

	NewLLMClient func(llm.Config) (llm.Client, error)

	// Shared enrichment caches, reused across jobs.
	Results *enrich.ResultCache
	Bytes   *enrich.ByteCache
	// EnrichBaseURL overrides provider endpoints; used by tests.
	EnrichBaseURL string
}

func (d *ExplainDeps) newLLMClient(cfg llm.Config) (llm.Client, error) {
	if d.NewLLMClient != nil {
		return d.NewLLMClient(cfg)
	}
	return llm.New(cfg)
}

func (d *ExplainDeps) llmConfig(provider, model string) llm.Config {
	p := d.Prefs.Get()
	if provider == "" {
		provider = p.LLM.Provider
	}
	if model == "" {
		model = d.Prefs.Model(provider)
	}
	return llm.Config{
		Provider:     llm.Provider(provider),
		APIKey:       d.Prefs.APIKey(provider),
		Model:        model,
		SystemPrompt: p.LLM.SystemPrompt,
		Log:          d.HTTPLog,
	}
}

// POST /explanations  { "number": "...", "provider"?: "...", "model"?: "..." }
func CreateExplanationHandler(d *ExplainDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bank := d.Bank.Get()
		if bank == nil {
			http.Error(w, "no bank loaded", http.StatusConflict)
			return
		}
		var req struct {
			Number   string `json:"number"`
			Provider string `json:"provider"`
			Model    string `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		q := bank.FindQuestion(req.Number)
		if q == nil {
			http.Error(w, "question not found", http.StatusNotFound)
			return
		}
		cfg := d.llmConfig(req.Provider, req.Model)
		client, err := d.newLLMClient(cfg)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		prompt := explain.BuildPrompt(d.Prefs.Get().LLM.PromptTemplate, q)

		id := d.Service.Open(q.Number, string(cfg.Provider), cfg.Model)
		_ = d.Service.StartGeneration(id, string(cfg.Provider), cfg.Model,
			func(ctx context.Context) (string, error) {
				return client.Generate(ctx, prompt)
			})
		view, _ := d.Service.Snapshot(id)
		writeJSON(w, http.StatusCreated, view)
	}
}

// GET /explanations/{id}
func GetExplanationHandler(d *ExplainDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := explanationID(r)
		if err != nil {
			http.Error(w, "bad id", http.StatusBadRequest)
			return
		}
		view, err := d.Service.Snapshot(id)
		if err != nil {
			http.Error(w, "explanation not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

// POST /explanations/{id}/images  { "provider"?: "...", "max_per_block"?: n }
//
// Runs image enrichment over the finished generation text. A second request
// supersedes a still-running one; its late result is dropped.
func EnrichExplanationHandler(d *ExplainDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := explanationID(r)
		if err != nil {
			http.Error(w, "bad id", http.StatusBadRequest)
			return
		}
		var req struct {
			Provider    string `json:"provider"`
			MaxPerBlock int    `json:"max_per_block"`
		}
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&req)
		}
		text, err := d.Service.GenerationText(id)
		if err != nil {
			if errors.Is(err, explain.ErrNotFound) {
				http.Error(w, "explanation not found", http.StatusNotFound)
				return
			}
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		provider := enrich.Provider(req.Provider)
		if req.Provider == "" {
			provider = enrich.Provider(d.Prefs.Get().ImageProvider)
		}
		resolver, err := enrich.NewResolver(enrich.Config{
			Provider:     provider,
			PexelsAPIKey: d.Prefs.APIKey("pexels"),
			BaseURL:      d.EnrichBaseURL,
			Results:      d.Results,
			Bytes:        d.Bytes,
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		maxPerBlock := req.MaxPerBlock
		_ = d.Service.StartEnrichment(id, func(ctx context.Context) (enrich.Result, error) {
			return resolver.Resolve(ctx, text, maxPerBlock), nil
		})
		view, _ := d.Service.Snapshot(id)
		writeJSON(w, http.StatusAccepted, view)
	}
}

// DELETE /explanations/{id} — the viewer is closed: cancel its work and drop
// any late results.
func CloseExplanationHandler(d *ExplainDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := explanationID(r)
		if err != nil {
			http.Error(w, "bad id", http.StatusBadRequest)
			return
		}
		if err := d.Service.Close(id); err != nil {
			http.Error(w, "explanation not found", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// GET /providers/models?provider=...
func ListProviderModelsHandler(d *ExplainDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg := d.llmConfig(r.URL.Query().Get("provider"), "")
		client, err := d.newLLMClient(cfg)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		models, err := client.ListModels(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		if models == nil {
			models = []llm.Model{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"provider": string(cfg.Provider),
			"models":   models,
		})
	}
}

// GET /providers
func ListProvidersHandler() http.HandlerFunc {
	type info struct {
		LLM    []llm.Provider    `json:"llm"`
		Images []enrich.Provider `json:"images"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, info{LLM: llm.Providers(), Images: enrich.Providers()})
	}
}

func explanationID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "explanationID"), 10, 64)
}
