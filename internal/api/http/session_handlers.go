// internal/api/http/session_handlers.go
package http

import (
	"encoding/json"
	"errors"
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gift-practice/giftpractice/internal/gift"
	"github.com/gift-practice/giftpractice/internal/history"
	"github.com/gift-practice/giftpractice/internal/prefs"
	"github.com/gift-practice/giftpractice/internal/session"
)

// questionView is a question as shown during a running session: no
// correctness flags.
type questionView struct {
	Number   string   `json:"number"`
	Text     string   `json:"text"`
	Options  []string `json:"options"`
	Category string   `json:"category,omitempty"`
}

func viewQuestion(q *gift.Question) *questionView {
	if q == nil {
		return nil
	}
	v := &questionView{Number: q.Number, Text: q.Text, Category: q.Category}
	for _, opt := range q.Options {
		v.Options = append(v.Options, opt.Text)
	}
	return v
}

type sessionView struct {
	ID              string        `json:"id"`
	GiftFile        string        `json:"gift_file"`
	State           string        `json:"state"`
	TotalQuestions  int           `json:"total_questions"`
	Current         int           `json:"current"`
	CurrentQuestion *questionView `json:"current_question,omitempty"`
	CurrentAnswer   *int          `json:"current_answer,omitempty"`
	AnsweredCount   int           `json:"answered_count"`
	Categories      []string      `json:"categories"`
}

func viewSession(s *session.Session) sessionView {
	v := sessionView{
		ID:             s.ID,
		GiftFile:       s.GiftFile,
		State:          s.State().String(),
		TotalQuestions: len(s.Questions),
		Current:        s.Current,
		AnsweredCount:  s.AnsweredCount(),
		Categories:     s.Categories(),
	}
	if v.Categories == nil {
		v.Categories = []string{}
	}
	if q := s.CurrentQuestion(); q != nil {
		v.CurrentQuestion = viewQuestion(q)
		if idx, ok := s.Answers[q.Number]; ok {
			v.CurrentAnswer = &idx
		}
	}
	return v
}

// POST /sessions  { "categories": {"name": n, ...} } or { "quick": n }
func CreateSessionHandler(state *BankState, store session.Store, pm *prefs.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bank := state.Get()
		if bank == nil {
			http.Error(w, "no bank loaded", http.StatusConflict)
			return
		}
		var req struct {
			Categories map[string]int `json:"categories"`
			Quick      *int           `json:"quick"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		rng := rand.New(rand.NewSource(time.Now().UnixNano()))

		var questions []gift.Question
		switch {
		case req.Quick != nil:
			n := *req.Quick
			if n <= 0 && pm != nil {
				n = pm.Get().UI.QuickTestQuestions
			}
			questions = session.PickRandom(bank, n, rng)
		case len(req.Categories) > 0:
			questions = session.PickPerCategory(bank, req.Categories, rng)
		default:
			http.Error(w, "categories or quick required", http.StatusBadRequest)
			return
		}
		if len(questions) == 0 {
			http.Error(w, "no questions selected", http.StatusBadRequest)
			return
		}

		s, err := store.Create(bank.File)
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		s, err = store.Update(s.ID, func(s *session.Session) error {
			return s.Start(questions)
		})
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		writeJSON(w, http.StatusCreated, viewSession(s))
	}
}

// GET /sessions/{id}
func GetSessionHandler(store session.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := store.Get(chi.URLParam(r, "sessionID"))
		if err != nil {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, viewSession(s))
	}
}

// POST /sessions/{id}/answers  { "number": "...", "option_index": -1|0.. }
func RecordAnswerHandler(store session.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Number      string `json:"number"`
			OptionIndex int    `json:"option_index"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		s, err := store.Update(chi.URLParam(r, "sessionID"), func(s *session.Session) error {
			return s.RecordAnswer(req.Number, req.OptionIndex)
		})
		if err != nil {
			sessionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, viewSession(s))
	}
}

// POST /sessions/{id}/advance
func AdvanceHandler(store session.Store) http.HandlerFunc {
	return cursorHandler(store, (*session.Session).Advance)
}

// POST /sessions/{id}/retreat
func RetreatHandler(store session.Store) http.HandlerFunc {
	return cursorHandler(store, (*session.Session).Retreat)
}

func cursorHandler(store session.Store, move func(*session.Session) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := store.Update(chi.URLParam(r, "sessionID"), move)
		if err != nil {
			sessionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, viewSession(s))
	}
}

type finishResult struct {
	SessionID  string                `json:"session_id"`
	Total      int                   `json:"total_questions"`
	Correct    int                   `json:"correct"`
	Wrong      int                   `json:"wrong"`
	Percentage float64               `json:"percentage"`
	Details    []session.WrongDetail `json:"details"`
	Logged     bool                  `json:"logged"`
}

// POST /sessions/{id}/finish  { "at_index": n } (optional)
//
// Finishing an in-progress session truncates it at at_index (default: the
// current question). A session that already ran off the end just gets scored.
// The run is logged to history only when at least one real answer was
// recorded, and only once: re-finishing returns the same score with
// logged=false instead of appending another record.
func FinishSessionHandler(store session.Store, logger *history.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			AtIndex *int `json:"at_index"`
		}
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&req)
		}
		var result finishResult
		_, err := store.Update(chi.URLParam(r, "sessionID"), func(s *session.Session) error {
			if s.State() == session.InProgress {
				at := s.Current
				if req.AtIndex != nil {
					at = *req.AtIndex
				}
				if at >= len(s.Questions) {
					at = len(s.Questions) - 1
				}
				if err := s.FinishEarly(at); err != nil {
					return err
				}
			}
			correct, wrong, details := s.Score()
			total := len(s.Questions)
			pct := 0.0
			if total > 0 {
				pct = math.Round(float64(correct)/float64(total)*100*100) / 100
			}
			var wrongIDs []string
			for _, d := range details {
				wrongIDs = append(wrongIDs, d.QuestionNumber)
			}
			result = finishResult{
				SessionID:  s.ID,
				Total:      total,
				Correct:    correct,
				Wrong:      wrong,
				Percentage: pct,
				Details:    details,
			}
			if result.Details == nil {
				result.Details = []session.WrongDetail{}
			}
			if logger != nil && !s.HistoryLogged() {
				_, logged, err := logger.Log(s.GiftFile, s.Categories(), total, correct, wrong,
					wrongIDs, details, s.AnsweredCount())
				if err != nil {
					return err
				}
				s.MarkHistoryLogged()
				result.Logged = logged
			}
			return nil
		})
		if err != nil {
			sessionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

// DELETE /sessions/{id}
func DeleteSessionHandler(store session.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.Delete(chi.URLParam(r, "sessionID")); err != nil {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func sessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		http.Error(w, "session not found", http.StatusNotFound)
	case errors.Is(err, session.ErrNotInProgress), errors.Is(err, session.ErrFinished):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusBadRequest)
	}
}
