// Package stream reconciles the one-time history batch and the live message
// events of the chat channel into a single ordered, presence-annotated list.
package stream

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/umar/livesync/internal/models"
	"github.com/umar/livesync/internal/notice"
	"github.com/umar/livesync/internal/presence"
	"github.com/umar/livesync/internal/protocol"
)

const DefaultPlaceholder = "Anonymous"

type State int

const (
	StateIdle State = iota
	StateAwaitingHistory
	StateLive
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingHistory:
		return "awaiting_history"
	case StateLive:
		return "live"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

type Options struct {
	Tracker     *presence.Tracker
	Notifier    notice.Notifier
	Policy      notice.Policy
	Placeholder string
	Logger      *slog.Logger
	NewID       func() string
	Now         func() time.Time
	// OnScroll runs after every accepted live message.
	OnScroll func()
}

type Reconciler struct {
	opts Options

	mu       sync.Mutex
	state    State
	messages []models.Message

	subMu   sync.Mutex
	subs    map[uint64]func([]models.Message)
	nextSub uint64
}

func New(opts Options) *Reconciler {
	if opts.Tracker == nil {
		opts.Tracker = presence.NewTracker()
	}
	if opts.Policy == "" {
		opts.Policy = notice.PolicyNotify
	}
	if opts.Placeholder == "" {
		opts.Placeholder = DefaultPlaceholder
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Reconciler{opts: opts, subs: make(map[uint64]func([]models.Message))}
}

func (r *Reconciler) Tracker() *presence.Tracker { return r.opts.Tracker }

// Begin starts a new session: the list is emptied and the reconciler waits
// for the history batch.
func (r *Reconciler) Begin() {
	r.mu.Lock()
	r.state = StateAwaitingHistory
	r.messages = nil
	r.mu.Unlock()
	r.publish()
}

// Reset returns to Idle and discards the list.
func (r *Reconciler) Reset() {
	r.mu.Lock()
	r.state = StateIdle
	r.messages = nil
	r.mu.Unlock()
	r.opts.Tracker.Reset()
	r.publish()
}

func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Messages returns a copy of the current list.
func (r *Reconciler) Messages() []models.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Message(nil), r.messages...)
}

// Subscribe calls fn with a fresh snapshot after every change.
func (r *Reconciler) Subscribe(fn func([]models.Message)) (unsubscribe func()) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	r.nextSub++
	id := r.nextSub
	r.subs[id] = fn
	return func() {
		r.subMu.Lock()
		delete(r.subs, id)
		r.subMu.Unlock()
	}
}

// HandleHistory decodes a pastMessages payload and applies it.
func (r *Reconciler) HandleHistory(data json.RawMessage) {
	var records []protocol.PastMessage
	if err := json.Unmarshal(data, &records); err != nil {
		r.opts.Logger.Error("undecodable past messages", "error", err)
		return
	}
	r.ApplyHistory(records)
}

// ApplyHistory maps the newest-first records to messages, reverses them to
// chronological order and replaces the list.
func (r *Reconciler) ApplyHistory(records []protocol.PastMessage) {
	batch := make([]models.Message, 0, len(records))
	for _, rec := range records {
		name := rec.Username
		if name == "" {
			name = r.opts.Placeholder
		}
		id := rec.ID
		if id == "" {
			id = r.opts.NewID()
		}
		batch = append(batch, models.Message{
			ID:                id,
			AuthorID:          rec.UserID,
			AuthorDisplayName: name,
			Body:              rec.Message,
			SentAt:            models.ParseTime(rec.CreatedAt),
			AuthorOnline:      r.opts.Tracker.Online(rec.UserID),
		})
	}
	reverse(batch)

	r.mu.Lock()
	r.messages = Merge(r.messages, Batch{Kind: KindHistory, Messages: batch})
	r.state = StateLive
	r.mu.Unlock()

	r.opts.Logger.Debug("history applied", "count", len(batch))
	r.publish()
}

// HandleLive decodes a chatMessage payload and applies it.
func (r *Reconciler) HandleLive(data json.RawMessage) (models.Message, bool) {
	var payload protocol.ChatMessage
	if err := json.Unmarshal(data, &payload); err != nil {
		r.opts.Policy.Dropped(r.opts.Logger, r.opts.Notifier, notice.TextMessageNotSent,
			"event", protocol.EventChatMessage, "error", err)
		return models.Message{}, false
	}
	return r.ApplyLive(payload)
}

// ApplyLive appends one live message. A payload without a complete author is
// dropped and reported through the malformed-payload policy. The author is
// assumed online: joined into the tracker and back-filled on every earlier
// message of theirs.
func (r *Reconciler) ApplyLive(p protocol.ChatMessage) (models.Message, bool) {
	if !p.User.Valid() {
		r.opts.Policy.Dropped(r.opts.Logger, r.opts.Notifier, notice.TextMessageNotSent,
			"event", protocol.EventChatMessage, "reason", "missing author")
		return models.Message{}, false
	}

	msg := models.Message{
		ID:                p.ID,
		AuthorID:          p.User.ID,
		AuthorDisplayName: p.User.Username,
		Body:              p.Message,
		SentAt:            models.ParseTime(p.CreatedAt),
		AuthorOnline:      true,
	}
	if msg.ID == "" {
		msg.ID = r.opts.NewID()
	}
	if msg.SentAt.IsZero() {
		msg.SentAt = r.opts.Now().UTC()
	}

	r.opts.Tracker.Join(msg.AuthorID)

	r.mu.Lock()
	before := len(r.messages)
	r.messages = Merge(r.messages, Batch{Kind: KindLive, Messages: []models.Message{msg}})
	added := len(r.messages) > before
	if added {
		for i := range r.messages {
			if r.messages[i].AuthorID == msg.AuthorID {
				r.messages[i].AuthorOnline = true
			}
		}
	}
	r.mu.Unlock()

	if !added {
		r.opts.Logger.Warn("duplicate live message dropped", "message_id", msg.ID)
		return models.Message{}, false
	}

	r.publish()
	if r.opts.OnScroll != nil {
		r.opts.OnScroll()
	}
	return msg, true
}

func (r *Reconciler) HandleJoin(data json.RawMessage) {
	if id, ok := r.presenceID(data, protocol.EventUserJoined); ok {
		r.ApplyJoin(id)
	}
}

func (r *Reconciler) HandleLeave(data json.RawMessage) {
	if id, ok := r.presenceID(data, protocol.EventUserLeft); ok {
		r.ApplyLeave(id)
	}
}

func (r *Reconciler) ApplyJoin(id string) {
	r.opts.Tracker.Join(id)
	r.refreshPresence()
}

func (r *Reconciler) ApplyLeave(id string) {
	r.opts.Tracker.Leave(id)
	r.refreshPresence()
}

func (r *Reconciler) refreshPresence() {
	r.mu.Lock()
	for i := range r.messages {
		r.messages[i].AuthorOnline = r.opts.Tracker.Online(r.messages[i].AuthorID)
	}
	r.mu.Unlock()
	r.publish()
}

func (r *Reconciler) presenceID(data json.RawMessage, event string) (string, bool) {
	var p protocol.PresencePayload
	if err := json.Unmarshal(data, &p); err != nil || p.User == nil || p.User.ID == "" {
		r.opts.Logger.Warn("malformed presence event", "event", event)
		return "", false
	}
	return p.User.ID, true
}

func (r *Reconciler) publish() {
	snapshot := r.Messages()
	r.subMu.Lock()
	subs := make([]func([]models.Message), 0, len(r.subs))
	for _, fn := range r.subs {
		subs = append(subs, fn)
	}
	r.subMu.Unlock()
	for _, fn := range subs {
		fn(snapshot)
	}
}

