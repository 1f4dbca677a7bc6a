package unread

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/umar/livesync/internal/channel"
	"github.com/umar/livesync/internal/models"
	"github.com/umar/livesync/internal/notice"
	"github.com/umar/livesync/internal/notifications"
	"github.com/umar/livesync/internal/protocol"
)

// Subscriber is the part of a channel client the notification counter
// listens on.
type Subscriber interface {
	Subscribe(event string, h channel.Handler) (unsubscribe func())
}

type NotificationOptions struct {
	Source   notifications.Fetcher
	MaxPages int
	Policy   notice.Policy
	Notifier notice.Notifier
	Logger   *slog.Logger
}

// NotificationSync seeds the notification counter from an exhaustive fetch,
// counts live pushes and resets on "mark all as read".
type NotificationSync struct {
	opts    NotificationOptions
	counter *Counter
}

func NewNotificationSync(opts NotificationOptions) *NotificationSync {
	if opts.Policy == "" {
		opts.Policy = notice.PolicyNotify
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &NotificationSync{opts: opts, counter: newCounter()}
}

func (s *NotificationSync) Counter() Reader { return s.counter }

// Seed sets the counter to the number of unread notifications across every
// page. A failed fetch still seeds from the pages read before the failure;
// the error is returned for logging only.
func (s *NotificationSync) Seed(ctx context.Context) (int, error) {
	all, err := notifications.FetchAll(ctx, s.opts.Source, s.opts.MaxPages, s.opts.Logger)
	n := models.Unread(all)
	s.counter.set(n)
	s.opts.Logger.Info("notification counter seeded", "unread", n, "fetched", len(all))
	return n, err
}

// HandlePush counts one live notification push.
func (s *NotificationSync) HandlePush(data json.RawMessage) bool {
	var p protocol.NotificationPayload
	if err := json.Unmarshal(data, &p); err != nil {
		s.opts.Policy.Dropped(s.opts.Logger, s.opts.Notifier, notice.TextBadPush,
			"event", protocol.EventNotification, "error", err)
		return false
	}
	if p.ID == "" && p.Message == "" {
		s.opts.Policy.Dropped(s.opts.Logger, s.opts.Notifier, notice.TextBadPush,
			"event", protocol.EventNotification, "reason", "empty notification")
		return false
	}
	s.counter.add(1)
	return true
}

// MarkAllRead marks everything read on the server and resets the counter.
// It satisfies notifications.Marker, so the pane refetches afterwards.
func (s *NotificationSync) MarkAllRead(ctx context.Context) error {
	if err := s.opts.Source.MarkAllRead(ctx); err != nil {
		return err
	}
	s.counter.set(0)
	return nil
}

// Bind counts the notification pushes delivered by sub.
func (s *NotificationSync) Bind(sub Subscriber) (unbind func()) {
	return sub.Subscribe(protocol.EventNotification, func(data json.RawMessage) {
		s.HandlePush(data)
	})
}
