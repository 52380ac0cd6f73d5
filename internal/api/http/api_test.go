// internal/api/http/api_test.go
package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	api "github.com/gift-practice/giftpractice/internal/api/http"
	"github.com/gift-practice/giftpractice/internal/enrich"
	"github.com/gift-practice/giftpractice/internal/explain"
	"github.com/gift-practice/giftpractice/internal/history"
	"github.com/gift-practice/giftpractice/internal/llm"
	"github.com/gift-practice/giftpractice/internal/prefs"
	"github.com/gift-practice/giftpractice/internal/session"
	"github.com/gift-practice/giftpractice/internal/storage"
)

const sampleGift = `$CATEGORY: Anatomia

::1::Which bone is the longest?
{
= Femur
~ Tibia
~ Humerus
}

::2::How many cervical vertebrae?
{
~ Five
= Seven
}

$CATEGORY: Fisiologia

::3::Which ion drives the action potential upstroke?
{
= Sodium
~ Chloride
}
`

type fakeLLM struct {
	reply  string
	err    error
	models []llm.Model
}

func (f *fakeLLM) Generate(ctx context.Context, prompt string) (string, error) {
	return f.reply, f.err
}
func (f *fakeLLM) ListModels(ctx context.Context) ([]llm.Model, error) {
	return f.models, f.err
}
func (f *fakeLLM) Provider() llm.Provider { return llm.ProviderGroq }

type env struct {
	srv    *httptest.Server
	client *fakeLLM
}

func newEnv(t *testing.T) *env {
	t.Helper()
	dir := t.TempDir()

	giftPath := filepath.Join(dir, "sample.gift")
	if err := os.WriteFile(giftPath, []byte(sampleGift), 0o644); err != nil {
		t.Fatal(err)
	}

	pm, err := prefs.NewManager(filepath.Join(dir, "preferences.json"))
	if err != nil {
		t.Fatal(err)
	}
	hs, err := history.NewJSONStore(filepath.Join(dir, "test_history.json"))
	if err != nil {
		t.Fatal(err)
	}
	logger := history.NewLogger(hs)
	banks, err := storage.NewFSStore(filepath.Join(dir, "banks"))
	if err != nil {
		t.Fatal(err)
	}

	fake := &fakeLLM{reply: "<p>Because femurs are long.</p>"}
	bankState := &api.BankState{}
	deps := &api.ExplainDeps{
		Service: explain.NewService(time.Second),
		Bank:    bankState,
		Prefs:   pm,
		Results: enrich.NewResultCache(0),
		Bytes:   enrich.NewByteCache(0),
		NewLLMClient: func(cfg llm.Config) (llm.Client, error) {
			return fake, nil
		},
	}
	sessions := session.NewInMemoryStore()

	r := chi.NewRouter()
	r.Route("/bank", func(br chi.Router) {
		br.Post("/", api.LoadBankHandler(bankState, banks, pm))
		br.Get("/", api.GetBankHandler(bankState))
		br.Get("/questions", api.ListQuestionsHandler(bankState))
		br.Get("/questions/{number}", api.GetQuestionHandler(bankState))
		br.Get("/report", api.BankReportHandler(bankState))
		br.Get("/files", api.ListBankFilesHandler(banks))
		br.Put("/files/{name}", api.UploadBankFileHandler(banks))
	})
	r.Route("/sessions", func(sr chi.Router) {
		sr.Post("/", api.CreateSessionHandler(bankState, sessions, pm))
		sr.Get("/{sessionID}", api.GetSessionHandler(sessions))
		sr.Post("/{sessionID}/answers", api.RecordAnswerHandler(sessions))
		sr.Post("/{sessionID}/advance", api.AdvanceHandler(sessions))
		sr.Post("/{sessionID}/retreat", api.RetreatHandler(sessions))
		sr.Post("/{sessionID}/finish", api.FinishSessionHandler(sessions, logger))
		sr.Delete("/{sessionID}", api.DeleteSessionHandler(sessions))
	})
	r.Route("/history", func(hr chi.Router) {
		hr.Get("/", api.ListHistoryHandler(logger))
		hr.Get("/statistics", api.HistoryStatisticsHandler(logger))
		hr.Delete("/", api.ClearHistoryHandler(logger))
	})
	r.Route("/explanations", func(er chi.Router) {
		er.Post("/", api.CreateExplanationHandler(deps))
		er.Get("/{explanationID}", api.GetExplanationHandler(deps))
		er.Post("/{explanationID}/images", api.EnrichExplanationHandler(deps))
		er.Delete("/{explanationID}", api.CloseExplanationHandler(deps))
	})
	r.Get("/providers", api.ListProvidersHandler())
	r.Get("/providers/models", api.ListProviderModelsHandler(deps))
	r.Get("/prefs", api.GetPrefsHandler(pm))
	r.Put("/prefs", api.PutPrefsHandler(pm))

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	e := &env{srv: srv, client: fake}
	e.do(t, "POST", "/bank", map[string]string{"path": giftPath}, http.StatusOK, nil)
	return e
}

func (e *env) do(t *testing.T, method, path string, body any, wantStatus int, out any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, e.srv.URL+path, &buf)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	if res.StatusCode != wantStatus {
		var msg bytes.Buffer
		msg.ReadFrom(res.Body)
		t.Fatalf("%s %s: status %d, want %d: %s", method, path, res.StatusCode, wantStatus, msg.String())
	}
	if out != nil {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			t.Fatal(err)
		}
	}
}

func TestBankSummaryAndReport(t *testing.T) {
	e := newEnv(t)

	var summary struct {
		TotalQuestions int            `json:"total_questions"`
		Categories     map[string]int `json:"categories"`
		CategoryOrder  []string       `json:"category_order"`
	}
	e.do(t, "GET", "/bank", nil, http.StatusOK, &summary)
	if summary.TotalQuestions != 3 {
		t.Fatalf("total = %d", summary.TotalQuestions)
	}
	if summary.Categories["Anatomia"] != 2 || summary.Categories["Fisiologia"] != 1 {
		t.Fatalf("categories = %v", summary.Categories)
	}
	if len(summary.CategoryOrder) != 2 || summary.CategoryOrder[0] != "Anatomia" {
		t.Fatalf("order = %v", summary.CategoryOrder)
	}

	var report struct {
		TotalQuestions int      `json:"total_questions"`
		NoCorrect      []string `json:"no_correct"`
	}
	e.do(t, "GET", "/bank/report", nil, http.StatusOK, &report)
	if report.TotalQuestions != 3 || len(report.NoCorrect) != 0 {
		t.Fatalf("report = %+v", report)
	}
}

func TestBankQuestionLookup(t *testing.T) {
	e := newEnv(t)

	var q struct {
		Number string `json:"number"`
		Text   string `json:"text"`
	}
	e.do(t, "GET", "/bank/questions/2", nil, http.StatusOK, &q)
	if q.Number != "2" || !strings.Contains(q.Text, "cervical") {
		t.Fatalf("question = %+v", q)
	}
	e.do(t, "GET", "/bank/questions/99", nil, http.StatusNotFound, nil)

	var list struct {
		Total     int               `json:"total"`
		Questions []json.RawMessage `json:"questions"`
	}
	e.do(t, "GET", "/bank/questions?category=Anatomia", nil, http.StatusOK, &list)
	if list.Total != 2 || len(list.Questions) != 2 {
		t.Fatalf("list = %+v", list)
	}
}

func TestBankFileUploadAndLoadByName(t *testing.T) {
	e := newEnv(t)

	req, _ := http.NewRequest("PUT", e.srv.URL+"/bank/files/uploaded.gift",
		strings.NewReader(sampleGift))
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("upload status = %d", res.StatusCode)
	}

	var files struct {
		Files []string `json:"files"`
	}
	e.do(t, "GET", "/bank/files", nil, http.StatusOK, &files)
	if len(files.Files) != 1 || files.Files[0] != "uploaded.gift" {
		t.Fatalf("files = %v", files.Files)
	}

	var summary struct {
		File string `json:"file"`
	}
	e.do(t, "POST", "/bank", map[string]string{"name": "uploaded.gift"}, http.StatusOK, &summary)
	if !strings.HasSuffix(summary.File, "uploaded.gift") {
		t.Fatalf("file = %q", summary.File)
	}
}

type sessView struct {
	ID              string `json:"id"`
	State           string `json:"state"`
	TotalQuestions  int    `json:"total_questions"`
	Current         int    `json:"current"`
	CurrentQuestion *struct {
		Number  string   `json:"number"`
		Options []string `json:"options"`
	} `json:"current_question"`
	AnsweredCount int `json:"answered_count"`
}

func TestSessionFlowAndHistory(t *testing.T) {
	e := newEnv(t)

	var s sessView
	e.do(t, "POST", "/sessions", map[string]any{
		"categories": map[string]int{"Anatomia": 2, "Fisiologia": 1},
	}, http.StatusCreated, &s)
	if s.TotalQuestions != 3 || s.State != "in_progress" || s.CurrentQuestion == nil {
		t.Fatalf("session = %+v", s)
	}

	// Answer every question with its first option, walking forward.
	for i := 0; i < 3; i++ {
		e.do(t, "POST", "/sessions/"+s.ID+"/answers", map[string]any{
			"number":       s.CurrentQuestion.Number,
			"option_index": 0,
		}, http.StatusOK, &s)
		e.do(t, "POST", "/sessions/"+s.ID+"/advance", nil, http.StatusOK, &s)
	}
	if s.State != "finished" {
		t.Fatalf("state = %q", s.State)
	}

	var result struct {
		Total      int     `json:"total_questions"`
		Correct    int     `json:"correct"`
		Wrong      int     `json:"wrong"`
		Percentage float64 `json:"percentage"`
		Logged     bool    `json:"logged"`
	}
	e.do(t, "POST", "/sessions/"+s.ID+"/finish", nil, http.StatusOK, &result)
	if result.Total != 3 || result.Correct+result.Wrong != 3 || !result.Logged {
		t.Fatalf("result = %+v", result)
	}

	var hist struct {
		Records []struct {
			TotalQuestions int `json:"total_questions"`
		} `json:"records"`
	}
	e.do(t, "GET", "/history", nil, http.StatusOK, &hist)
	if len(hist.Records) != 1 || hist.Records[0].TotalQuestions != 3 {
		t.Fatalf("history = %+v", hist)
	}

	var stats struct {
		TotalTests int `json:"total_tests"`
	}
	e.do(t, "GET", "/history/statistics", nil, http.StatusOK, &stats)
	if stats.TotalTests != 1 {
		t.Fatalf("stats = %+v", stats)
	}

	e.do(t, "DELETE", "/history", nil, http.StatusNoContent, nil)
	e.do(t, "GET", "/history", nil, http.StatusOK, &hist)
	if len(hist.Records) != 0 {
		t.Fatalf("history after clear = %+v", hist)
	}
}

func TestRepeatedFinishLogsOneRecord(t *testing.T) {
	e := newEnv(t)

	var s sessView
	e.do(t, "POST", "/sessions", map[string]any{"quick": 2}, http.StatusCreated, &s)
	e.do(t, "POST", "/sessions/"+s.ID+"/answers", map[string]any{
		"number": s.CurrentQuestion.Number, "option_index": 0,
	}, http.StatusOK, &s)

	var first, second struct {
		Total      int     `json:"total_questions"`
		Correct    int     `json:"correct"`
		Percentage float64 `json:"percentage"`
		Logged     bool    `json:"logged"`
	}
	e.do(t, "POST", "/sessions/"+s.ID+"/finish", nil, http.StatusOK, &first)
	if first.Total != 1 || !first.Logged {
		t.Fatalf("first finish = %+v", first)
	}
	e.do(t, "POST", "/sessions/"+s.ID+"/finish", nil, http.StatusOK, &second)
	if second.Logged {
		t.Fatalf("second finish = %+v", second)
	}
	if second.Total != first.Total || second.Correct != first.Correct ||
		second.Percentage != first.Percentage {
		t.Fatalf("finish not stable: %+v then %+v", first, second)
	}

	var hist struct {
		Records []json.RawMessage `json:"records"`
	}
	e.do(t, "GET", "/history", nil, http.StatusOK, &hist)
	if len(hist.Records) != 1 {
		t.Fatalf("one run produced %d history records", len(hist.Records))
	}
}

func TestFinishEarlyUnansweredRunNotLogged(t *testing.T) {
	e := newEnv(t)

	var s sessView
	e.do(t, "POST", "/sessions", map[string]any{"quick": 3}, http.StatusCreated, &s)

	var result struct {
		Total  int  `json:"total_questions"`
		Logged bool `json:"logged"`
	}
	e.do(t, "POST", "/sessions/"+s.ID+"/finish", map[string]any{"at_index": 0}, http.StatusOK, &result)
	// No answer recorded at the cut question, so it is dropped and nothing
	// reaches the history log.
	if result.Total != 0 || result.Logged {
		t.Fatalf("result = %+v", result)
	}
	e.do(t, "GET", "/history", nil, http.StatusOK, &struct{}{})
}

func TestSessionRetreatKeepsAnswer(t *testing.T) {
	e := newEnv(t)

	var s sessView
	e.do(t, "POST", "/sessions", map[string]any{"quick": 2}, http.StatusCreated, &s)
	first := s.CurrentQuestion.Number
	e.do(t, "POST", "/sessions/"+s.ID+"/answers", map[string]any{
		"number": first, "option_index": 1,
	}, http.StatusOK, &s)
	e.do(t, "POST", "/sessions/"+s.ID+"/advance", nil, http.StatusOK, &s)
	e.do(t, "POST", "/sessions/"+s.ID+"/retreat", nil, http.StatusOK, &s)
	if s.Current != 0 || s.CurrentQuestion.Number != first {
		t.Fatalf("session = %+v", s)
	}
	if s.AnsweredCount != 1 {
		t.Fatalf("answered = %d", s.AnsweredCount)
	}
}

func TestSessionAfterFinishConflicts(t *testing.T) {
	e := newEnv(t)

	var s sessView
	e.do(t, "POST", "/sessions", map[string]any{"quick": 1}, http.StatusCreated, &s)
	e.do(t, "POST", "/sessions/"+s.ID+"/advance", nil, http.StatusOK, &s)
	if s.State != "finished" {
		t.Fatalf("state = %q", s.State)
	}
	e.do(t, "POST", "/sessions/"+s.ID+"/advance", nil, http.StatusConflict, nil)
	e.do(t, "POST", "/sessions/"+s.ID+"/answers", map[string]any{
		"number": "1", "option_index": 0,
	}, http.StatusConflict, nil)
}

func TestExplanationFlow(t *testing.T) {
	e := newEnv(t)

	var view struct {
		ID         int64 `json:"id"`
		Generation struct {
			State string `json:"state"`
			Text  string `json:"text"`
		} `json:"generation"`
		Enrichment struct {
			State string `json:"state"`
			Text  string `json:"text"`
		} `json:"enrichment"`
	}
	e.do(t, "POST", "/explanations", map[string]string{"number": "1"}, http.StatusCreated, &view)
	id := fmt.Sprintf("%d", view.ID)

	deadline := time.Now().Add(2 * time.Second)
	for view.Generation.State != "done" {
		if time.Now().After(deadline) {
			t.Fatalf("generation stuck in %q", view.Generation.State)
		}
		time.Sleep(5 * time.Millisecond)
		e.do(t, "GET", "/explanations/"+id, nil, http.StatusOK, &view)
	}
	if !strings.Contains(view.Generation.Text, "femurs") {
		t.Fatalf("text = %q", view.Generation.Text)
	}

	// Enrichment with the none provider needs no network.
	e.do(t, "POST", "/explanations/"+id+"/images", map[string]any{"provider": "none"},
		http.StatusAccepted, &view)
	deadline = time.Now().Add(2 * time.Second)
	for view.Enrichment.State != "done" {
		if time.Now().After(deadline) {
			t.Fatalf("enrichment stuck in %q", view.Enrichment.State)
		}
		time.Sleep(5 * time.Millisecond)
		e.do(t, "GET", "/explanations/"+id, nil, http.StatusOK, &view)
	}
	if view.Enrichment.Text == "" {
		t.Fatal("enrichment text empty")
	}

	e.do(t, "DELETE", "/explanations/"+id, nil, http.StatusNoContent, nil)
	e.do(t, "GET", "/explanations/"+id, nil, http.StatusNotFound, nil)
}

func TestEnrichBeforeGenerationConflicts(t *testing.T) {
	e := newEnv(t)
	e.client.reply = ""
	e.client.err = fmt.Errorf("provider down")

	var view struct {
		ID int64 `json:"id"`
	}
	e.do(t, "POST", "/explanations", map[string]string{"number": "1"}, http.StatusCreated, &view)
	id := fmt.Sprintf("%d", view.ID)

	var polled struct {
		Generation struct {
			State string `json:"state"`
			Error string `json:"error"`
		} `json:"generation"`
	}
	deadline := time.Now().Add(2 * time.Second)
	for polled.Generation.State != "error" {
		if time.Now().After(deadline) {
			t.Fatalf("generation stuck in %q", polled.Generation.State)
		}
		time.Sleep(5 * time.Millisecond)
		e.do(t, "GET", "/explanations/"+id, nil, http.StatusOK, &polled)
	}
	if !strings.Contains(polled.Generation.Error, "provider down") {
		t.Fatalf("error = %q", polled.Generation.Error)
	}
	e.do(t, "POST", "/explanations/"+id+"/images", map[string]any{"provider": "none"},
		http.StatusConflict, nil)
}

func TestProviderEndpoints(t *testing.T) {
	e := newEnv(t)
	e.client.models = []llm.Model{{ID: "llama-3.1-8b-instant", Description: "fast"}}

	var providers struct {
		LLM    []string `json:"llm"`
		Images []string `json:"images"`
	}
	e.do(t, "GET", "/providers", nil, http.StatusOK, &providers)
	if len(providers.LLM) != 7 || len(providers.Images) != 6 {
		t.Fatalf("providers = %+v", providers)
	}

	var models struct {
		Provider string      `json:"provider"`
		Models   []llm.Model `json:"models"`
	}
	e.do(t, "GET", "/providers/models", nil, http.StatusOK, &models)
	if models.Provider != "groq" || len(models.Models) != 1 {
		t.Fatalf("models = %+v", models)
	}
}

func TestPrefsRoundTripAndClamping(t *testing.T) {
	e := newEnv(t)

	var p prefs.Preferences
	e.do(t, "GET", "/prefs", nil, http.StatusOK, &p)
	if p.LLM.Provider != prefs.DefaultLLMProvider {
		t.Fatalf("provider = %q", p.LLM.Provider)
	}

	p.UI.MainWindowWidthPercent = 250 // out of range, falls back to default
	p.UI.QuickTestQuestions = 10
	p.LLM.Provider = "gemini"
	e.do(t, "PUT", "/prefs", p, http.StatusOK, &p)
	if p.UI.MainWindowWidthPercent != prefs.DefaultWindowPercent {
		t.Fatalf("width = %d", p.UI.MainWindowWidthPercent)
	}
	if p.UI.QuickTestQuestions != 10 || p.LLM.Provider != "gemini" {
		t.Fatalf("prefs = %+v", p)
	}
}
