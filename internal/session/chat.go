// Package session wires the sync core into the two views a signed-in user
// sees: the chat view and the notification pane.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/umar/livesync/internal/channel"
	"github.com/umar/livesync/internal/models"
	"github.com/umar/livesync/internal/notice"
	"github.com/umar/livesync/internal/presence"
	"github.com/umar/livesync/internal/protocol"
	"github.com/umar/livesync/internal/stream"
	"github.com/umar/livesync/internal/unread"
)

var ErrEmptyMessage = errors.New("message is empty")

type ChatOptions struct {
	Channel  channel.Options
	Policy   notice.Policy
	Sync     *unread.ChatSync
	OnScroll func()
	// Hooks run against every new connection before its first event is
	// read. The app uses them to bind the notification counter.
	Hooks  []func(*channel.Client)
	Logger *slog.Logger
}

// ChatView owns the duplex connection for its mounted lifetime together with
// the message list and presence cache derived from it.
type ChatView struct {
	logger   *slog.Logger
	notifier notice.Notifier
	manager  *channel.Manager
	tracker  *presence.Tracker
	stream   *stream.Reconciler
	sync     *unread.ChatSync
	hooks    []func(*channel.Client)

	mu     sync.Mutex
	client *channel.Client
}

func NewChatView(opts ChatOptions) *ChatView {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Sync == nil {
		opts.Sync = unread.NewChatSync()
	}
	if opts.Channel.Logger == nil {
		opts.Channel.Logger = opts.Logger
	}
	tracker := presence.NewTracker()
	return &ChatView{
		logger:   opts.Logger,
		notifier: opts.Channel.Notifier,
		manager:  channel.NewManager(opts.Channel),
		tracker:  tracker,
		stream: stream.New(stream.Options{
			Tracker:  tracker,
			Notifier: opts.Channel.Notifier,
			Policy:   opts.Policy,
			Logger:   opts.Logger,
			OnScroll: opts.OnScroll,
		}),
		sync:  opts.Sync,
		hooks: opts.Hooks,
	}
}

// Mount connects with credential and starts the history/live cycle. Mounting
// again with the same identity keeps the live connection and its list.
// Without a usable credential nothing connects; the sign-in notice and
// redirect are raised instead and the error is returned.
func (v *ChatView) Mount(ctx context.Context, credential string) error {
	client, err := v.manager.Open(ctx, credential, v.attach)
	if err != nil {
		v.stream.Reset()
		return err
	}

	v.mu.Lock()
	v.client = client
	v.mu.Unlock()
	return nil
}

func (v *ChatView) attach(c *channel.Client) {
	v.stream.Reset()
	v.stream.Begin()
	v.sync.SetIdentity(c.Identity().UserID)
	c.Subscribe(protocol.EventPastMessages, v.stream.HandleHistory)
	c.Subscribe(protocol.EventChatMessage, func(data json.RawMessage) {
		if msg, ok := v.stream.HandleLive(data); ok {
			v.sync.Accept(msg.AuthorID)
		}
	})
	c.Subscribe(protocol.EventUserJoined, v.stream.HandleJoin)
	c.Subscribe(protocol.EventUserLeft, v.stream.HandleLeave)
	c.Subscribe(protocol.EventError, v.handleServerError)
	for _, hook := range v.hooks {
		hook(c)
	}
}

func (v *ChatView) handleServerError(data json.RawMessage) {
	var p protocol.ErrorPayload
	_ = json.Unmarshal(data, &p)
	v.logger.Warn("server rejected event", "code", p.Code, "message", p.Message)
	if v.notifier == nil {
		return
	}
	text := p.Message
	if text == "" {
		text = notice.TextMessageNotSent
	}
	v.notifier.Notify(notice.Notice{Level: notice.LevelError, Text: text})
}

// Send submits body as a chat message. The message shows up in the list when
// the server echoes it back.
func (v *ChatView) Send(body string) error {
	body = strings.TrimSpace(body)
	if body == "" {
		return ErrEmptyMessage
	}
	v.mu.Lock()
	client := v.client
	v.mu.Unlock()
	if client == nil {
		return channel.ErrClosed
	}
	return client.Emit(protocol.EventChatMessage, body)
}

// Focus handles a window focus event.
func (v *ChatView) Focus() { v.sync.Focus() }

// Unmount closes the connection, detaches every listener and discards the
// list.
func (v *ChatView) Unmount() {
	v.manager.Close()
	v.mu.Lock()
	v.client = nil
	v.mu.Unlock()
	v.stream.Reset()
}

func (v *ChatView) Messages() []models.Message { return v.stream.Messages() }

// Online returns the ids the presence cache currently holds.
func (v *ChatView) Online() []string { return v.tracker.IDs() }

func (v *ChatView) Subscribe(fn func([]models.Message)) (unsubscribe func()) {
	return v.stream.Subscribe(fn)
}

func (v *ChatView) StreamState() stream.State { return v.stream.State() }

func (v *ChatView) ConnState() channel.State { return v.manager.State() }

func (v *ChatView) Unread() unread.Reader { return v.sync.Counter() }
