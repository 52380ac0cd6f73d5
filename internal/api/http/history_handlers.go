// internal/api/http/history_handlers.go
package http

import (
	"net/http"

	"github.com/gift-practice/giftpractice/internal/history"
)

// GET /history?limit=...&file=...
func ListHistoryHandler(logger *history.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntDefault(r.URL.Query().Get("limit"), 50)
		recs, err := logger.Recent(limit, r.URL.Query().Get("file"))
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		if recs == nil {
			recs = []history.Record{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"records": recs})
	}
}

// GET /history/statistics?file=...
func HistoryStatisticsHandler(logger *history.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := logger.Statistics(r.URL.Query().Get("file"))
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

// DELETE /history
func ClearHistoryHandler(logger *history.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := logger.Clear(); err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
