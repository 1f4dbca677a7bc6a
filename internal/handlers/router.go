package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/umar/livesync/internal/auth"
	"github.com/umar/livesync/internal/database"
	"github.com/umar/livesync/internal/hub"
	"github.com/umar/livesync/internal/middleware"
)

type Deps struct {
	Store      database.Store
	Hub        *hub.Hub
	Secret     string
	CORSOrigin string
	PageSize   int
}

// NewRouter wires every route of the reference server.
func NewRouter(d Deps) *mux.Router {
	var (
		pusher Pusher
		online OnlineLister
	)
	if d.Hub != nil {
		pusher, online = d.Hub, d.Hub
	}

	router := mux.NewRouter()
	router.Use(middleware.Logging)
	router.Use(middleware.Metrics)
	if d.CORSOrigin != "" {
		router.Use(middleware.CORS(d.CORSOrigin))
	}

	// Public routes
	router.HandleFunc("/health", Health(online)).Methods("GET", "OPTIONS")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	router.HandleFunc("/api/auth/login", auth.LoginHandler(d.Store, d.Secret)).Methods("POST", "OPTIONS")

	// WebSocket
	if d.Hub != nil {
		router.HandleFunc("/ws", d.Hub.ServeWS).Methods("GET")
	}

	// Protected routes
	protected := router.NewRoute().Subrouter()
	protected.Use(auth.JWTMiddleware(d.Secret))

	protected.HandleFunc("/api/auth/me", auth.MeHandler(d.Store)).Methods("GET")
	protected.HandleFunc("/messages", GetMessages(d.Store)).Methods("GET")
	protected.HandleFunc("/notifications", ListNotifications(d.Store, d.PageSize)).Methods("GET")
	protected.HandleFunc("/notifications", CreateNotification(d.Store, pusher)).Methods("POST")
	protected.HandleFunc("/notifications/all", MarkAllRead(d.Store)).Methods("PUT")

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	return router
}
