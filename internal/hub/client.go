package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/umar/livesync/internal/auth"
	"github.com/umar/livesync/internal/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 4096
	maxBodyLength  = 2000

	timeLayout = time.RFC3339Nano
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	UserID   string
	Username string
	send     chan []byte
	limiter  *rate.Limiter
}

// ServeWS authenticates the bearer credential, upgrades the request and
// registers the connection.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	token, ok := auth.BearerToken(r)
	if !ok {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	claims, err := auth.ValidateToken(token, h.opts.Secret)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.opts.Logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &Client{
		hub:      h,
		conn:     conn,
		UserID:   claims.UserID,
		Username: claims.Username,
		send:     make(chan []byte, 256),
	}
	if h.opts.MessageRate > 0 {
		client.limiter = rate.NewLimiter(h.opts.MessageRate, h.opts.MessageBurst)
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
	}
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.opts.Logger.Error("ws read error", "error", err, "user_id", c.UserID)
			}
			break
		}

		env, err := protocol.Decode(frame)
		if err != nil {
			rejectedEvents.WithLabelValues("undecodable").Inc()
			continue
		}
		c.handleEvent(env)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleEvent(env protocol.Envelope) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	switch env.Event {
	case protocol.EventRequestPastMessages:
		c.sendHistory(ctx)
	case protocol.EventChatMessage:
		var body string
		if err := json.Unmarshal(env.Data, &body); err != nil {
			c.sendError("chatMessage expects a string body", "INVALID_PAYLOAD")
			rejectedEvents.WithLabelValues("invalid_payload").Inc()
			return
		}
		c.handleChatMessage(ctx, body)
	default:
		rejectedEvents.WithLabelValues("unknown_event").Inc()
	}
}

func (c *Client) sendHistory(ctx context.Context) {
	stored, err := c.hub.opts.Store.RecentMessages(ctx, c.hub.opts.HistoryLimit)
	if err != nil {
		c.hub.opts.Logger.Error("failed to load history", "error", err)
		c.sendError("failed to load messages", "INTERNAL_ERROR")
		return
	}
	past := make([]protocol.PastMessage, 0, len(stored))
	for _, m := range stored {
		past = append(past, protocol.PastMessage{
			ID:        m.ID,
			UserID:    m.UserID,
			Username:  m.Username,
			Message:   m.Content,
			CreatedAt: m.CreatedAt.UTC().Format(timeLayout),
		})
	}
	data, err := protocol.Encode(protocol.EventPastMessages, past)
	if err != nil {
		return
	}
	c.hub.deliver(c, data)
}

func (c *Client) handleChatMessage(ctx context.Context, body string) {
	body = strings.TrimSpace(body)
	if body == "" {
		c.sendError("message is empty", "INVALID_PAYLOAD")
		rejectedEvents.WithLabelValues("empty").Inc()
		return
	}
	if len(body) > maxBodyLength {
		c.sendError("message is too long", "INVALID_PAYLOAD")
		rejectedEvents.WithLabelValues("too_long").Inc()
		return
	}
	if c.limiter != nil && !c.limiter.Allow() {
		c.sendError("slow down", "RATE_LIMITED")
		rejectedEvents.WithLabelValues("rate_limited").Inc()
		return
	}

	msg, err := c.hub.opts.Store.CreateMessage(ctx, c.UserID, c.Username, body)
	if err != nil {
		c.hub.opts.Logger.Error("failed to create message", "error", err)
		c.sendError("failed to send message", "INTERNAL_ERROR")
		return
	}

	data, err := protocol.Encode(protocol.EventChatMessage, protocol.ChatMessage{
		ID:        msg.ID,
		User:      &protocol.UserRef{ID: c.UserID, Username: c.Username},
		Message:   msg.Content,
		CreatedAt: msg.CreatedAt.UTC().Format(timeLayout),
	})
	if err != nil {
		return
	}
	chatMessages.Inc()
	c.hub.Broadcast(ctx, data)
}

func (c *Client) sendError(message, code string) {
	data, err := protocol.Encode(protocol.EventError, protocol.ErrorPayload{Message: message, Code: code})
	if err != nil {
		return
	}
	c.hub.deliver(c, data)
}
