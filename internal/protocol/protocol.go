package protocol

import (
	"encoding/json"
	"fmt"
)

const (
	// client -> server
	EventRequestPastMessages = "requestPastMessages"
	EventChatMessage         = "chatMessage"

	// server -> client
	EventPastMessages = "pastMessages"
	EventUserJoined   = "userJoined"
	EventUserLeft     = "userLeft"
	EventNotification = "notification"
	EventError        = "error"
)

// Envelope is the frame carried by every websocket text message.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type UserRef struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Valid reports whether the author carries both an id and a display name.
func (u *UserRef) Valid() bool {
	return u != nil && u.ID != "" && u.Username != ""
}

// PastMessage is one record of the pastMessages batch.
type PastMessage struct {
	ID        string `json:"id"`
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	Message   string `json:"message"`
	CreatedAt string `json:"createdAt"`
}

// ChatMessage is the server push for a live message. ID and CreatedAt are
// filled by the reference backend but clients must tolerate their absence.
type ChatMessage struct {
	ID        string   `json:"id,omitempty"`
	User      *UserRef `json:"user"`
	Message   string   `json:"message"`
	CreatedAt string   `json:"createdAt,omitempty"`
}

type PresencePayload struct {
	User *UserRef `json:"user"`
}

type NotificationPayload struct {
	ID        string `json:"id"`
	Message   string `json:"message"`
	IsRead    bool   `json:"isRead"`
	CreatedAt string `json:"createdAt"`
}

type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

func Encode(event string, payload interface{}) ([]byte, error) {
	var p json.RawMessage
	if payload != nil {
		var err error
		p, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", event, err)
		}
	}
	return json.Marshal(Envelope{Event: event, Data: p})
}

func Decode(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode frame: %w", err)
	}
	if env.Event == "" {
		return Envelope{}, fmt.Errorf("decode frame: missing event name")
	}
	return env, nil
}
