// internal/api/http/prefs_handlers.go
package http

import (
	"encoding/json"
	"net/http"

	"github.com/gift-practice/giftpractice/internal/prefs"
)

// GET /prefs
func GetPrefsHandler(pm *prefs.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, pm.Get())
	}
}

// PUT /prefs — wholesale replace; out-of-range values fall back to defaults
// on the way in.
func PutPrefsHandler(pm *prefs.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p prefs.Preferences
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if err := pm.Put(p); err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		writeJSON(w, http.StatusOK, pm.Get())
	}
}
