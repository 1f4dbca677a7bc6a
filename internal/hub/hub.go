// Package hub is the reference websocket server for the chat channel. It
// speaks the same event contract the client core consumes.
package hub

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/time/rate"

	"github.com/umar/livesync/internal/database"
	"github.com/umar/livesync/internal/models"
	"github.com/umar/livesync/internal/protocol"
)

const DefaultHistoryLimit = 50

// Presence records who is connected outside the process.
type Presence interface {
	SetOnline(ctx context.Context, userID string) error
	SetOffline(ctx context.Context, userID string) error
}

// Broker relays broadcast frames between server instances.
type Broker interface {
	Publish(ctx context.Context, frame []byte) error
	Subscribe(ctx context.Context, fn func(frame []byte)) error
}

type Options struct {
	Store        database.Store
	Secret       string
	HistoryLimit int
	Presence     Presence
	Broker       Broker
	// MessageRate limits chatMessage events per client; zero disables it.
	MessageRate  rate.Limit
	MessageBurst int
	Logger       *slog.Logger
}

type Hub struct {
	opts Options

	clients map[string]*Client
	mu      sync.RWMutex

	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	done       chan struct{}
}

func New(opts Options) *Hub {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}
	if opts.MessageBurst <= 0 {
		opts.MessageBurst = 5
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Hub{
		opts:       opts,
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
		done:       make(chan struct{}),
	}
}

// Run serves registrations and broadcasts until ctx is cancelled, then
// closes every client.
func (h *Hub) Run(ctx context.Context) {
	if h.opts.Broker != nil {
		go func() {
			err := h.opts.Broker.Subscribe(ctx, func(frame []byte) {
				select {
				case h.broadcast <- frame:
				case <-ctx.Done():
				}
			})
			if err != nil {
				h.opts.Logger.Error("broker subscription ended", "error", err)
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case client := <-h.register:
			h.mu.Lock()
			old, replaced := h.clients[client.UserID]
			if replaced {
				close(old.send)
			}
			h.clients[client.UserID] = client
			h.mu.Unlock()
			connectedClients.Set(float64(h.count()))
			h.opts.Logger.Info("client connected", "user_id", client.UserID, "username", client.Username)
			go client.writePump()
			go client.readPump()

			h.sendRoster(client)
			if !replaced {
				h.setPresence(ctx, client.UserID, true)
				h.broadcastPresence(ctx, protocol.EventUserJoined, client)
			}

		case client := <-h.unregister:
			h.mu.Lock()
			existing, ok := h.clients[client.UserID]
			removed := ok && existing == client
			if removed {
				delete(h.clients, client.UserID)
				close(client.send)
			}
			h.mu.Unlock()
			if removed {
				h.departed(ctx, client)
			}

		case frame := <-h.broadcast:
			h.departed(ctx, h.fanOut(frame)...)
		}
	}
}

// fanOut queues frame for every client. Clients whose queue is full are
// removed and returned; the caller announces them with departed.
func (h *Hub) fanOut(frame []byte) (dropped []*Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, client := range h.clients {
		select {
		case client.send <- frame:
		default:
			h.opts.Logger.Warn("dropping slow client", "user_id", userID)
			close(client.send)
			delete(h.clients, userID)
			dropped = append(dropped, client)
		}
	}
	return dropped
}

// departed handles clients already removed from the map: presence goes
// offline and the others get userLeft.
func (h *Hub) departed(ctx context.Context, gone ...*Client) {
	for _, client := range gone {
		connectedClients.Set(float64(h.count()))
		h.opts.Logger.Info("client disconnected", "user_id", client.UserID)
		h.setPresence(ctx, client.UserID, false)
		h.broadcastPresence(ctx, protocol.EventUserLeft, client)
	}
}

// sendRoster tells a new client who else is already online.
func (h *Hub) sendRoster(client *Client) {
	h.mu.RLock()
	others := make([]*Client, 0, len(h.clients))
	for id, c := range h.clients {
		if id != client.UserID {
			others = append(others, c)
		}
	}
	h.mu.RUnlock()
	sort.Slice(others, func(i, j int) bool { return others[i].UserID < others[j].UserID })

	for _, c := range others {
		data, err := protocol.Encode(protocol.EventUserJoined, presencePayload(c))
		if err != nil {
			continue
		}
		h.deliver(client, data)
	}
}

func (h *Hub) broadcastPresence(ctx context.Context, event string, client *Client) {
	data, err := protocol.Encode(event, presencePayload(client))
	if err != nil {
		return
	}
	h.departed(ctx, h.fanOut(data)...)
}

func (h *Hub) setPresence(ctx context.Context, userID string, online bool) {
	if h.opts.Presence == nil {
		return
	}
	var err error
	if online {
		err = h.opts.Presence.SetOnline(ctx, userID)
	} else {
		err = h.opts.Presence.SetOffline(ctx, userID)
	}
	if err != nil {
		h.opts.Logger.Error("failed to update presence", "user_id", userID, "online", online, "error", err)
	}
}

// Broadcast delivers frame to every local client and publishes it to the
// other instances.
func (h *Hub) Broadcast(ctx context.Context, frame []byte) {
	if h.opts.Broker != nil {
		if err := h.opts.Broker.Publish(ctx, frame); err != nil {
			h.opts.Logger.Error("failed to publish frame", "error", err)
		}
	}
	select {
	case h.broadcast <- frame:
	case <-h.done:
	}
}

// PushNotification sends a notification event to userID if connected. It
// reports whether the user had a live connection.
func (h *Hub) PushNotification(userID string, n models.Notification) bool {
	data, err := protocol.Encode(protocol.EventNotification, protocol.NotificationPayload{
		ID:        n.ID,
		Message:   n.Message,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt.UTC().Format(timeLayout),
	})
	if err != nil {
		return false
	}
	if !h.SendToUser(userID, data) {
		return false
	}
	notificationsPushed.Inc()
	return true
}

func (h *Hub) SendToUser(userID string, data []byte) bool {
	h.mu.RLock()
	client, ok := h.clients[userID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	return h.deliver(client, data)
}

// deliver queues data for c unless c has been replaced or dropped. Sends
// happen under the read lock so they never race the close in Run.
func (h *Hub) deliver(c *Client, data []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.clients[c.UserID] != c {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// Online returns the ids of the locally connected users, sorted.
func (h *Hub) Online() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (h *Hub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) shutdown() {
	close(h.done)
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, client := range h.clients {
		close(client.send)
		delete(h.clients, id)
	}
	connectedClients.Set(0)
}

func presencePayload(c *Client) protocol.PresencePayload {
	return protocol.PresencePayload{User: &protocol.UserRef{ID: c.UserID, Username: c.Username}}
}
