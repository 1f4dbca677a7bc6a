package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/umar/livesync/internal/channel"
	"github.com/umar/livesync/internal/models"
	"github.com/umar/livesync/internal/session"
)

func init() {
	rootCmd.AddCommand(chatCmd)
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Join the chat channel; every line on stdin is sent as a message",
	Long: `Join the chat channel and print the history followed by live messages.
Each line read from stdin is sent as a message. A line counts as window focus,
so it also clears the chat unread counter.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runChat(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func runChat(ctx context.Context, in io.Reader, out io.Writer) error {
	app := newApp(out)
	defer app.Stop()

	var (
		mu      sync.Mutex
		printed = make(map[string]bool)
	)
	unsubscribe := app.Chat.Subscribe(func(msgs []models.Message) {
		mu.Lock()
		defer mu.Unlock()
		for _, m := range msgs {
			if printed[m.ID] {
				continue
			}
			printed[m.ID] = true
			fmt.Fprintln(out, formatMessage(m))
		}
	})
	defer unsubscribe()

	badge := func(int) {
		fmt.Fprintf(out, "(unread chat: %d, notifications: %d)\n",
			app.Store.Chat.Count(), app.Store.Notifications.Count())
	}
	defer app.Store.Chat.Subscribe(badge)()
	defer app.Store.Notifications.Subscribe(badge)()

	if err := app.Start(ctx); err != nil {
		if errors.Is(err, channel.ErrNoCredential) || errors.Is(err, channel.ErrInvalidCredential) {
			// give the delayed sign-in redirect a chance to print
			time.Sleep(cfg.SignInDelay)
		}
		return err
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			app.Focus()
			err := app.Chat.Send(line)
			switch {
			case err == nil, errors.Is(err, session.ErrEmptyMessage):
			case errors.Is(err, channel.ErrClosed):
				slog.Warn("not connected, message dropped")
			default:
				return err
			}
		}
	}
}

func formatMessage(m models.Message) string {
	status := " "
	if m.AuthorOnline {
		status = "*"
	}
	return fmt.Sprintf("%s%s (%s): %s", status, m.AuthorDisplayName, humanize.Time(m.SentAt), strings.TrimSpace(m.Body))
}
