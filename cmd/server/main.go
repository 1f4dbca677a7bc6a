package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/umar/livesync/internal/config"
	"github.com/umar/livesync/internal/database"
	"github.com/umar/livesync/internal/handlers"
	"github.com/umar/livesync/internal/hub"
	redisc "github.com/umar/livesync/internal/redis"
)

func main() {
	cfg, err := config.LoadServer()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	slog.Info("starting livesync server")

	// Initialize storage
	var store database.Store
	if cfg.DatabaseURL != "" {
		pg, err := database.InitDB(cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to init database", "error", err)
			os.Exit(1)
		}
		slog.Info("connected to PostgreSQL")
		if err := pg.RunMigrations(context.Background()); err != nil {
			slog.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
		slog.Info("database migrations complete")
		store = pg
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store")
		store = database.NewMemory()
	}
	defer store.Close()

	seeds := make([]database.SeedUser, 0, len(cfg.SeedUsers))
	for _, a := range cfg.SeedUsers {
		seeds = append(seeds, database.SeedUser{Username: a.Username, Password: a.Password})
	}
	if err := database.Seed(context.Background(), store, seeds); err != nil {
		slog.Error("failed to seed users", "error", err)
		os.Exit(1)
	}

	hubOpts := hub.Options{
		Store:        store,
		Secret:       cfg.JWTSecret,
		MessageRate:  rate.Limit(5),
		MessageBurst: 10,
		Logger:       logger,
	}

	// Initialize Redis
	if cfg.RedisURL != "" {
		redisClient, err := redisc.InitRedis(cfg.RedisURL)
		if err != nil {
			slog.Error("failed to init Redis", "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		slog.Info("connected to Redis")
		hubOpts.Presence = redisc.NewPresence(redisClient)
		hubOpts.Broker = redisc.NewBroker(redisClient, uuid.NewString())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create WebSocket hub
	h := hub.New(hubOpts)
	go h.Run(ctx)

	router := handlers.NewRouter(handlers.Deps{
		Store:      store,
		Hub:        h,
		Secret:     cfg.JWTSecret,
		CORSOrigin: cfg.CORSOrigin,
		PageSize:   cfg.PageSize,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("server listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutting down", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped gracefully")
}
