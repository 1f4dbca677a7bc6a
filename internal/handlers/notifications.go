package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/umar/livesync/internal/auth"
	"github.com/umar/livesync/internal/database"
	"github.com/umar/livesync/internal/models"
)

const DefaultPageSize = 10

// Pusher delivers a notification over the live channel.
type Pusher interface {
	PushNotification(userID string, n models.Notification) bool
}

type pagination struct {
	CurrentPage int `json:"currentPage"`
	TotalPages  int `json:"totalPages"`
	PageSize    int `json:"pageSize"`
}

type listResponse struct {
	Notifications []models.Notification `json:"notifications"`
	Pagination    pagination            `json:"pagination"`
}

// ListNotifications serves GET /notifications?page=N for the caller.
func ListNotifications(store database.Store, pageSize int) http.HandlerFunc {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return func(w http.ResponseWriter, r *http.Request) {
		id, _ := auth.FromContext(r.Context())

		page := 1
		if raw := r.URL.Query().Get("page"); raw != "" {
			p, err := strconv.Atoi(raw)
			if err != nil || p < 1 {
				writeError(w, http.StatusBadRequest, "page must be a positive integer")
				return
			}
			page = p
		}

		result, err := store.ListNotifications(r.Context(), id.UserID, page, pageSize)
		if err != nil {
			slog.Error("failed to list notifications", "error", err, "user_id", id.UserID)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		writeJSON(w, http.StatusOK, listResponse{
			Notifications: result.Items,
			Pagination: pagination{
				CurrentPage: result.Page,
				TotalPages:  result.TotalPages,
				PageSize:    pageSize,
			},
		})
	}
}

// MarkAllRead serves PUT /notifications/all.
func MarkAllRead(store database.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, _ := auth.FromContext(r.Context())
		n, err := store.MarkAllNotificationsRead(r.Context(), id.UserID)
		if err != nil {
			slog.Error("failed to mark notifications read", "error", err, "user_id", id.UserID)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]int64{"updated": n})
	}
}

type createRequest struct {
	UserID  string `json:"userId"`
	Message string `json:"message"`
}

// CreateNotification serves POST /notifications. It stores a notification
// for userId (default: the caller) and pushes it over the live channel.
func CreateNotification(store database.Store, pusher Pusher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, _ := auth.FromContext(r.Context())

		var req createRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		req.Message = strings.TrimSpace(req.Message)
		if req.Message == "" {
			writeError(w, http.StatusBadRequest, "message is required")
			return
		}
		if req.UserID == "" {
			req.UserID = id.UserID
		}

		n, err := store.CreateNotification(r.Context(), req.UserID, req.Message)
		if err != nil {
			slog.Error("failed to create notification", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		delivered := false
		if pusher != nil {
			delivered = pusher.PushNotification(n.UserID, *n)
		}
		writeJSON(w, http.StatusCreated, map[string]interface{}{
			"notification": n,
			"delivered":    delivered,
		})
	}
}
