package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/umar/livesync/internal/database"
)

// GetMessages serves the chat history over REST, newest first.
func GetMessages(store database.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 50
		if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
			if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
				limit = l
			}
		}

		messages, err := store.RecentMessages(r.Context(), limit)
		if err != nil {
			slog.Error("failed to get messages", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		writeJSON(w, http.StatusOK, messages)
	}
}
