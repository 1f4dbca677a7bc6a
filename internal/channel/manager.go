// Package channel owns the duplex chat connection: at most one open
// websocket per session, keyed by the identity inside the credential.
package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/umar/livesync/internal/auth"
	"github.com/umar/livesync/internal/notice"
	"github.com/umar/livesync/internal/protocol"
)

var (
	ErrNoCredential      = errors.New("no credential")
	ErrInvalidCredential = errors.New("invalid credential")
)

const (
	DefaultSignInPath  = "/signin"
	DefaultSignInDelay = 3 * time.Second
)

type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

type Options struct {
	URL         string
	Dialer      *websocket.Dialer
	Notifier    notice.Notifier
	Redirector  notice.Redirector
	SignInPath  string
	SignInDelay time.Duration
	Logger      *slog.Logger
}

type Manager struct {
	opts Options

	mu             sync.Mutex
	state          State
	client         *Client
	gen            uint64
	cancelRedirect func()
}

func NewManager(opts Options) *Manager {
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	if opts.SignInPath == "" {
		opts.SignInPath = DefaultSignInPath
	}
	if opts.SignInDelay <= 0 {
		opts.SignInDelay = DefaultSignInDelay
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Manager{opts: opts, cancelRedirect: func() {}}
}

// Open connects with credential. setup runs before the first inbound event
// is read, so subscriptions made there see the history reply. Opening again
// with the same identity returns the live connection; a different identity
// replaces it. A missing or unreadable credential closes any open connection,
// raises the sign-in notice and schedules the redirect.
func (m *Manager) Open(ctx context.Context, credential string, setup func(*Client)) (*Client, error) {
	id, err := identify(credential)
	if err != nil {
		m.Close()
		m.signIn()
		return nil, err
	}

	m.mu.Lock()
	if m.client != nil {
		select {
		case <-m.client.Done():
		default:
			if m.client.identity.UserID == id.UserID {
				client := m.client
				m.mu.Unlock()
				return client, nil
			}
		}
		m.client.Close()
		m.client = nil
	}
	m.gen++
	gen := m.gen
	m.state = StateConnecting
	m.mu.Unlock()

	client, err := m.dial(ctx, credential, id)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen {
		// a Close or a newer Open ran while dialing
		if client != nil {
			client.Close()
		}
		return nil, ErrClosed
	}
	if err != nil {
		m.state = StateClosed
		m.opts.Logger.Error("connect_error", "user_id", id.UserID, "error", err)
		return nil, err
	}

	if setup != nil {
		setup(client)
	}
	client.start()
	m.client = client
	m.state = StateOpen
	m.opts.Logger.Info("channel open", "user_id", id.UserID)

	if err := client.Emit(protocol.EventRequestPastMessages, nil); err != nil {
		m.opts.Logger.Error("failed to request past messages", "error", err)
	}
	return client, nil
}

// Close tears down the open connection, if any. A dial still in flight is
// abandoned and its Open returns ErrClosed.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gen++
	if m.client != nil {
		m.client.Close()
		m.client = nil
	}
	if m.state != StateIdle {
		m.state = StateClosed
	}
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateOpen && m.client != nil {
		select {
		case <-m.client.Done():
			return StateClosed
		default:
		}
	}
	return m.state
}

// Client returns the open connection or nil.
func (m *Manager) Client() *Client {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.client
}

func (m *Manager) signIn() {
	if m.opts.Notifier != nil {
		m.opts.Notifier.Notify(notice.Notice{Level: notice.LevelWarning, Text: notice.TextSignIn})
	}
	m.mu.Lock()
	m.cancelRedirect()
	m.cancelRedirect = notice.RedirectAfter(m.opts.Redirector, m.opts.SignInDelay, m.opts.SignInPath)
	m.mu.Unlock()
}

func (m *Manager) dial(ctx context.Context, credential string, id auth.Identity) (*Client, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+strings.TrimPrefix(credential, "Bearer "))

	conn, resp, err := m.opts.Dialer.DialContext(ctx, m.opts.URL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %s: %w", m.opts.URL, resp.Status, err)
		}
		return nil, fmt.Errorf("dial %s: %w", m.opts.URL, err)
	}
	return newClient(conn, id, m.opts.Logger), nil
}

func identify(credential string) (auth.Identity, error) {
	if strings.TrimSpace(credential) == "" {
		return auth.Identity{}, ErrNoCredential
	}
	id, err := auth.ParseIdentity(credential)
	if err != nil {
		return auth.Identity{}, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	return id, nil
}
