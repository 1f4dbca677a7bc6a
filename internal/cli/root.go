// Package cli holds the livesync command tree.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/umar/livesync/internal/config"
	"github.com/umar/livesync/internal/notice"
	"github.com/umar/livesync/internal/session"
)

var version = "dev"

var (
	cfg    config.Client
	logger *slog.Logger

	flagToken   string
	flagWSURL   string
	flagAPIURL  string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "livesync",
	Short: "Terminal client for the livesync chat and notification service",
	Long: `livesync connects to the chat channel, keeps the chat and notification
unread counters in sync, and browses the notification list page by page.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadClient()
		if err != nil {
			return err
		}
		if flagToken != "" {
			cfg.Token = flagToken
		}
		if flagWSURL != "" {
			cfg.WSURL = flagWSURL
		}
		if flagAPIURL != "" {
			cfg.APIURL = flagAPIURL
		}
		level := cfg.LogLevel
		if flagVerbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)
		return nil
	},
}

// Execute runs the command tree. It is called once by main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&flagToken, "token", "", "bearer credential (default $LIVESYNC_TOKEN)")
	rootCmd.PersistentFlags().StringVar(&flagWSURL, "ws-url", "", "chat channel URL (default $LIVESYNC_WS_URL)")
	rootCmd.PersistentFlags().StringVar(&flagAPIURL, "api-url", "", "REST base URL (default $LIVESYNC_API_URL)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
}

// printer writes notices to the terminal.
func printer(w io.Writer) notice.Notifier {
	return notice.Func(func(n notice.Notice) {
		fmt.Fprintf(w, "[%s] %s\n", n.Level, n.Text)
	})
}

func newApp(w io.Writer) *session.App {
	return session.NewApp(session.AppOptions{
		WSURL:       cfg.WSURL,
		APIURL:      cfg.APIURL,
		Credential:  cfg.Token,
		Notifier:    printer(w),
		Redirector:  notice.RedirectFunc(func(path string) { fmt.Fprintf(w, "sign in at %s%s\n", cfg.APIURL, path) }),
		SignInDelay: cfg.SignInDelay,
		Policy:      cfg.Policy,
		FetchRPS:    cfg.FetchRPS,
		MaxPages:    cfg.MaxPages,
		Logger:      logger,
	})
}
