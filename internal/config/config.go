// Package config reads the environment (and an optional .env file) for both
// binaries.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/umar/livesync/internal/notice"
)

// Client configures the CLI client.
type Client struct {
	WSURL       string
	APIURL      string
	Token       string
	SignInDelay time.Duration
	FetchRPS    float64
	MaxPages    int
	Policy      notice.Policy
	LogLevel    slog.Level
}

// Server configures the reference backend.
type Server struct {
	Port        string
	DatabaseURL string
	RedisURL    string
	JWTSecret   string
	CORSOrigin  string
	PageSize    int
	SeedUsers   []Account
	LogLevel    slog.Level
}

// Account is a development login created at startup.
type Account struct {
	Username string
	Password string
}

func loadDotEnv() {
	_ = godotenv.Load(".env")
}

func LoadClient() (Client, error) {
	loadDotEnv()

	cfg := Client{
		WSURL:  getEnv("LIVESYNC_WS_URL", "ws://localhost:8080/ws"),
		APIURL: getEnv("LIVESYNC_API_URL", "http://localhost:8080"),
		Token:  strings.TrimSpace(os.Getenv("LIVESYNC_TOKEN")),
	}

	var err error
	if cfg.SignInDelay, err = durationEnv("LIVESYNC_SIGNIN_DELAY", 3*time.Second); err != nil {
		return Client{}, err
	}
	if cfg.FetchRPS, err = floatEnv("LIVESYNC_FETCH_RPS", 10); err != nil {
		return Client{}, err
	}
	if cfg.MaxPages, err = intEnv("LIVESYNC_MAX_PAGES", 500); err != nil {
		return Client{}, err
	}
	if cfg.Policy, err = notice.ParsePolicy(os.Getenv("LIVESYNC_MALFORMED_POLICY")); err != nil {
		return Client{}, err
	}
	if cfg.LogLevel, err = ParseLevel(os.Getenv("LOG_LEVEL")); err != nil {
		return Client{}, err
	}

	if err := cfg.validate(); err != nil {
		return Client{}, err
	}
	return cfg, nil
}

func (c Client) validate() error {
	if err := checkURL("LIVESYNC_WS_URL", c.WSURL, "ws", "wss"); err != nil {
		return err
	}
	if err := checkURL("LIVESYNC_API_URL", c.APIURL, "http", "https"); err != nil {
		return err
	}
	if c.SignInDelay <= 0 {
		return fmt.Errorf("LIVESYNC_SIGNIN_DELAY must be positive")
	}
	if c.FetchRPS < 0 {
		return fmt.Errorf("LIVESYNC_FETCH_RPS must not be negative")
	}
	if c.MaxPages <= 0 {
		return fmt.Errorf("LIVESYNC_MAX_PAGES must be positive")
	}
	return nil
}

func LoadServer() (Server, error) {
	loadDotEnv()

	cfg := Server{
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		RedisURL:    strings.TrimSpace(os.Getenv("REDIS_URL")),
		JWTSecret:   getEnv("JWT_SECRET", "dev-secret-change-me"),
		CORSOrigin:  getEnv("CORS_ORIGIN", "http://localhost:5173"),
	}

	var err error
	if cfg.PageSize, err = intEnv("PAGE_SIZE", 10); err != nil {
		return Server{}, err
	}
	if cfg.SeedUsers, err = parseAccounts(os.Getenv("SEED_USERS")); err != nil {
		return Server{}, err
	}
	if cfg.LogLevel, err = ParseLevel(os.Getenv("LOG_LEVEL")); err != nil {
		return Server{}, err
	}

	if err := cfg.validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

func (c Server) validate() error {
	if p, err := strconv.Atoi(c.Port); err != nil || p <= 0 || p > 65535 {
		return fmt.Errorf("PORT must be a valid port number, got %q", c.Port)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("PAGE_SIZE must be positive")
	}
	return nil
}

// ParseLevel maps LOG_LEVEL values to slog levels; empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown LOG_LEVEL %q", s)
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func intEnv(key string, fallback int) (int, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func floatEnv(key string, fallback float64) (float64, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func checkURL(key, raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	for _, s := range schemes {
		if u.Scheme == s && u.Host != "" {
			return nil
		}
	}
	return fmt.Errorf("%s must be a %s URL, got %q", key, strings.Join(schemes, "/"), raw)
}

// parseAccounts reads "name:password" pairs separated by commas.
func parseAccounts(s string) ([]Account, error) {
	var out []Account
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, pass, ok := strings.Cut(part, ":")
		if !ok || name == "" || pass == "" {
			return nil, fmt.Errorf("SEED_USERS entry %q must look like name:password", part)
		}
		out = append(out, Account{Username: name, Password: pass})
	}
	return out, nil
}
