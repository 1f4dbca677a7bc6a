package models

import "time"

// Message is one entry of the chat list as the client renders it.
// AuthorOnline is derived from presence, never read from the server.
type Message struct {
	ID                string    `json:"id"`
	AuthorID          string    `json:"authorId"`
	AuthorDisplayName string    `json:"authorDisplayName"`
	Body              string    `json:"body"`
	SentAt            time.Time `json:"sentAt"`
	AuthorOnline      bool      `json:"authorOnline"`
}

// StoredMessage is the server-side row behind a chat message.
type StoredMessage struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	Content   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}
