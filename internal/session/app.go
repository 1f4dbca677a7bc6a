package session

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/umar/livesync/internal/channel"
	"github.com/umar/livesync/internal/notice"
	"github.com/umar/livesync/internal/notifications"
	"github.com/umar/livesync/internal/unread"
)

type AppOptions struct {
	WSURL       string
	APIURL      string
	Credential  string
	Notifier    notice.Notifier
	Redirector  notice.Redirector
	SignInDelay time.Duration
	Policy      notice.Policy
	FetchRPS    float64
	MaxPages    int
	HTTPClient  *http.Client
	OnScroll    func()
	Logger      *slog.Logger
}

// App is one signed-in session: both unread counters, the chat view and the
// notification pane, sharing one credential.
type App struct {
	Store         unread.Store
	Chat          *ChatView
	Notifications *unread.NotificationSync
	Pane          *notifications.Pane

	credential string
	logger     *slog.Logger
}

func NewApp(opts AppOptions) *App {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Notifier == nil {
		opts.Notifier = notice.Log(opts.Logger)
	}

	rest := notifications.NewClient(notifications.ClientOptions{
		BaseURL:    opts.APIURL,
		Credential: opts.Credential,
		HTTPClient: opts.HTTPClient,
		RPS:        opts.FetchRPS,
		Logger:     opts.Logger,
	})
	notes := unread.NewNotificationSync(unread.NotificationOptions{
		Source:   rest,
		MaxPages: opts.MaxPages,
		Policy:   opts.Policy,
		Notifier: opts.Notifier,
		Logger:   opts.Logger,
	})
	chatSync := unread.NewChatSync()

	chat := NewChatView(ChatOptions{
		Channel: channel.Options{
			URL:         opts.WSURL,
			Notifier:    opts.Notifier,
			Redirector:  opts.Redirector,
			SignInDelay: opts.SignInDelay,
			Logger:      opts.Logger,
		},
		Policy:   opts.Policy,
		Sync:     chatSync,
		OnScroll: opts.OnScroll,
		Hooks:    []func(*channel.Client){func(c *channel.Client) { notes.Bind(c) }},
		Logger:   opts.Logger,
	})

	return &App{
		Store:         unread.Store{Chat: chatSync.Counter(), Notifications: notes.Counter()},
		Chat:          chat,
		Notifications: notes,
		Pane: notifications.NewPane(notifications.PaneOptions{
			Fetcher:  rest,
			Marker:   notes,
			Notifier: opts.Notifier,
			Logger:   opts.Logger,
		}),
		credential: opts.Credential,
		logger:     opts.Logger,
	}
}

// Start mounts the chat view and seeds the notification counter. Only a
// missing or unreadable credential stops it. The counter is REST-driven, so a
// channel that fails to connect is logged and seeding still runs. A seed
// failure is logged too; the counter keeps whatever was counted.
func (a *App) Start(ctx context.Context) error {
	if err := a.Chat.Mount(ctx, a.credential); err != nil {
		if errors.Is(err, channel.ErrNoCredential) || errors.Is(err, channel.ErrInvalidCredential) {
			return err
		}
		a.logger.Warn("chat channel unavailable", "error", err)
	}
	if _, err := a.Notifications.Seed(ctx); err != nil {
		a.logger.Error("failed to seed notification counter", "error", err)
	}
	return nil
}

// Focus handles a window focus event.
func (a *App) Focus() { a.Chat.Focus() }

// Stop closes the pane and unmounts the chat view. Notification pushes arrive
// over the chat connection, so they stop being counted once it is gone.
func (a *App) Stop() {
	a.Pane.Close()
	a.Chat.Unmount()
}
