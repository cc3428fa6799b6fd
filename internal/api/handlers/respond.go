package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/zscreen/internal/contracts"
)

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// dateParam parses the {date} path variable (YYYY-MM-DD)
func dateParam(r *http.Request) (time.Time, bool) {
	d, err := contracts.ParseDate(mux.Vars(r)["date"])
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}
