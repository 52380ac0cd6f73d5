package history

import (
	"math"
	"sort"
	"time"

	"github.com/gift-practice/giftpractice/internal/session"
)

// Record is one logged test run.
type Record struct {
	Timestamp        string                `json:"timestamp"`
	Date             string                `json:"date"`
	Time             string                `json:"time"`
	GiftFile         string                `json:"gift_file"`
	Categories       []string              `json:"categories"`
	TotalQuestions   int                   `json:"total_questions"`
	Correct          int                   `json:"correct"`
	Wrong            int                   `json:"wrong"`
	Percentage       float64               `json:"percentage"`
	WrongQuestionIDs []string              `json:"wrong_question_ids"`
	Details          []session.WrongDetail `json:"details,omitempty"`
}

// Statistics aggregates logged runs.
type Statistics struct {
	TotalTests     int     `json:"total_tests"`
	TotalQuestions int     `json:"total_questions"`
	TotalCorrect   int     `json:"total_correct"`
	AverageScore   float64 `json:"average_score"`
}

// Store persists test records.
type Store interface {
	Append(rec Record) error
	All() ([]Record, error)
	Clear() error
}

// Logger composes records and writes them through a Store.
type Logger struct {
	store Store
	now   func() time.Time
}

// NewLogger wraps a store. The clock is the wall clock; tests swap it with
// WithClock.
func NewLogger(store Store) *Logger {
	return &Logger{store: store, now: time.Now}
}

// WithClock overrides the logger's clock.
func (l *Logger) WithClock(now func() time.Time) *Logger {
	l.now = now
	return l
}

// Log builds a record for a finished run and appends it. Runs where no
// question got a real answer are not logged; the zero Record and false are
// returned instead.
func (l *Logger) Log(giftFile string, categories []string, total, correct, wrong int,
	wrongIDs []string, details []session.WrongDetail, answered int) (Record, bool, error) {
	if answered == 0 {
		return Record{}, false, nil
	}
	now := l.now()
	pct := 0.0
	if total > 0 {
		pct = round2(float64(correct) / float64(total) * 100)
	}
	rec := Record{
		Timestamp:        now.Format(time.RFC3339Nano),
		Date:             now.Format("2006-01-02"),
		Time:             now.Format("15:04:05"),
		GiftFile:         giftFile,
		Categories:       categories,
		TotalQuestions:   total,
		Correct:          correct,
		Wrong:            wrong,
		Percentage:       pct,
		WrongQuestionIDs: wrongIDs,
		Details:          details,
	}
	if err := l.store.Append(rec); err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

// Statistics aggregates over all records, or only those for giftFile when it
// is non-empty.
func (l *Logger) Statistics(giftFile string) (Statistics, error) {
	recs, err := l.store.All()
	if err != nil {
		return Statistics{}, err
	}
	var st Statistics
	for _, r := range recs {
		if giftFile != "" && r.GiftFile != giftFile {
			continue
		}
		st.TotalTests++
		st.TotalQuestions += r.TotalQuestions
		st.TotalCorrect += r.Correct
	}
	if st.TotalQuestions > 0 {
		st.AverageScore = round2(float64(st.TotalCorrect) / float64(st.TotalQuestions) * 100)
	}
	return st, nil
}

// Recent returns up to limit records, newest first, optionally filtered by
// gift file.
func (l *Logger) Recent(limit int, giftFile string) ([]Record, error) {
	recs, err := l.store.All()
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(recs))
	for _, r := range recs {
		if giftFile != "" && r.GiftFile != giftFile {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		ti, erri := time.Parse(time.RFC3339Nano, out[i].Timestamp)
		tj, errj := time.Parse(time.RFC3339Nano, out[j].Timestamp)
		if erri != nil || errj != nil {
			return out[i].Timestamp > out[j].Timestamp
		}
		return ti.After(tj)
	})
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Clear drops every record. Irreversible.
func (l *Logger) Clear() error {
	return l.store.Clear()
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
