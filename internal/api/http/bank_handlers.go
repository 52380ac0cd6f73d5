// internal/api/http/bank_handlers.go
package http

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/gift-practice/giftpractice/internal/gift"
	"github.com/gift-practice/giftpractice/internal/prefs"
	"github.com/gift-practice/giftpractice/internal/storage"
)

// BankState holds the currently loaded question bank. Loading a new file
// replaces it wholesale; sessions keep their own copy of the questions they
// selected, so a reload never corrupts a running session.
type BankState struct {
	mu   sync.RWMutex
	bank *gift.Bank
}

func (b *BankState) Set(bank *gift.Bank) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bank = bank
}

func (b *BankState) Get() *gift.Bank {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.bank
}

type bankSummary struct {
	File           string         `json:"file"`
	TotalQuestions int            `json:"total_questions"`
	Categories     map[string]int `json:"categories"`
	CategoryOrder  []string       `json:"category_order"`
}

func summarize(bank *gift.Bank) bankSummary {
	s := bankSummary{
		File:           bank.File,
		TotalQuestions: len(bank.Questions),
		Categories:     map[string]int{},
		CategoryOrder:  bank.CategoryNames(),
	}
	for _, name := range s.CategoryOrder {
		s.Categories[name] = len(bank.QuestionsByCategory(name))
	}
	return s
}

// POST /bank  { "path": "/abs/file.gift" } or { "name": "stored.gift" }
func LoadBankHandler(state *BankState, banks storage.BankStore, pm *prefs.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Path string `json:"path"`
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		path := req.Path
		if path == "" && req.Name != "" {
			p, err := banks.Path(req.Name)
			if err != nil {
				http.Error(w, "unknown bank: "+req.Name, http.StatusNotFound)
				return
			}
			path = p
		}
		if path == "" {
			http.Error(w, "path or name required", http.StatusBadRequest)
			return
		}
		bank, err := gift.ParseFile(path)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		state.Set(bank)
		if pm != nil {
			_ = pm.SetLastGiftFile(path)
		}
		writeJSON(w, http.StatusOK, summarize(bank))
	}
}

// GET /bank
func GetBankHandler(state *BankState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bank := state.Get()
		if bank == nil {
			http.Error(w, "no bank loaded", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, summarize(bank))
	}
}

// GET /bank/questions?category=...&limit=...&offset=...
func ListQuestionsHandler(state *BankState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bank := state.Get()
		if bank == nil {
			http.Error(w, "no bank loaded", http.StatusNotFound)
			return
		}
		limit := parseIntDefault(r.URL.Query().Get("limit"), 50)
		offset := parseIntDefault(r.URL.Query().Get("offset"), 0)

		questions := bank.Questions
		if cat := r.URL.Query().Get("category"); cat != "" {
			questions = nil
			for _, q := range bank.QuestionsByCategory(cat) {
				questions = append(questions, *q)
			}
		}
		total := len(questions)
		if offset > total {
			offset = total
		}
		end := offset + limit
		if end > total {
			end = total
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"total":     total,
			"questions": questions[offset:end],
		})
	}
}

// GET /bank/questions/{number}
func GetQuestionHandler(state *BankState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bank := state.Get()
		if bank == nil {
			http.Error(w, "no bank loaded", http.StatusNotFound)
			return
		}
		q := bank.FindQuestion(chi.URLParam(r, "number"))
		if q == nil {
			http.Error(w, "question not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, q)
	}
}

// GET /bank/report
func BankReportHandler(state *BankState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bank := state.Get()
		if bank == nil {
			http.Error(w, "no bank loaded", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, gift.Validate(bank))
	}
}

// GET /bank/files
func ListBankFilesHandler(banks storage.BankStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		names, err := banks.List()
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		if names == nil {
			names = []string{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"files": names})
	}
}

// PUT /bank/files/{name} with the raw GIFT text as body.
func UploadBankFileHandler(banks storage.BankStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		path, err := banks.Put(name, r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"name": name, "path": path})
	}
}
