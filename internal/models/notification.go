package models

import (
	"encoding/json"
	"time"
)

type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId,omitempty"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}

// UnmarshalJSON accepts any createdAt value. One that none of the layouts in
// ParseTime can read decodes as the zero time instead of failing the record.
func (n *Notification) UnmarshalJSON(data []byte) error {
	type plain Notification
	aux := struct {
		*plain
		CreatedAt json.RawMessage `json:"createdAt"`
	}{plain: (*plain)(n)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	var s string
	if json.Unmarshal(aux.CreatedAt, &s) == nil {
		n.CreatedAt = ParseTime(s)
	} else {
		n.CreatedAt = time.Time{}
	}
	return nil
}

// Page is one page of the notification list.
type Page struct {
	Items      []Notification
	Page       int
	TotalPages int
}

// Unread counts the entries with IsRead == false.
func Unread(items []Notification) int {
	n := 0
	for _, item := range items {
		if !item.IsRead {
			n++
		}
	}
	return n
}
