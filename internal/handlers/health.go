package handlers

import (
	"encoding/json"
	"net/http"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// OnlineLister reports who is connected to the chat channel.
type OnlineLister interface {
	Online() []string
}

func Health(online OnlineLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]interface{}{
			"status":  "healthy",
			"service": "livesync",
		}
		if online != nil {
			body["online"] = len(online.Online())
		}
		writeJSON(w, http.StatusOK, body)
	}
}
