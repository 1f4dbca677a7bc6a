package database

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/umar/livesync/internal/models"
)

// Memory is an in-process Store used when no DATABASE_URL is configured and
// in tests.
type Memory struct {
	mu            sync.RWMutex
	users         map[string]models.User
	messages      []models.StoredMessage
	notifications []models.Notification
	now           func() time.Time
}

func NewMemory() *Memory {
	return &Memory{users: make(map[string]models.User), now: time.Now}
}

func (m *Memory) CreateUser(_ context.Context, username, email, passwordHash string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Username, username) {
			return nil, fmt.Errorf("failed to create user: username %q taken", username)
		}
	}
	u := models.User{
		ID:        uuid.NewString(),
		Username:  username,
		Email:     email,
		Password:  passwordHash,
		CreatedAt: m.now().UTC(),
	}
	m.users[u.ID] = u
	return &u, nil
}

func (m *Memory) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, nil
}

func (m *Memory) GetUserByID(_ context.Context, id string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	u.Password = ""
	return &u, nil
}

func (m *Memory) CreateMessage(_ context.Context, userID, username, content string) (*models.StoredMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg := models.StoredMessage{
		ID:        uuid.NewString(),
		UserID:    userID,
		Username:  username,
		Content:   content,
		CreatedAt: m.now().UTC(),
	}
	m.messages = append(m.messages, msg)
	return &msg, nil
}

func (m *Memory) RecentMessages(_ context.Context, limit int) ([]models.StoredMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.StoredMessage, 0, limit)
	for i := len(m.messages) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.messages[i])
	}
	return out, nil
}

func (m *Memory) CreateNotification(_ context.Context, userID, message string) (*models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := models.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Message:   message,
		CreatedAt: m.now().UTC(),
	}
	m.notifications = append(m.notifications, n)
	return &n, nil
}

func (m *Memory) ListNotifications(_ context.Context, userID string, page, pageSize int) (models.Page, error) {
	m.mu.RLock()
	var mine []models.Notification
	for i := len(m.notifications) - 1; i >= 0; i-- {
		if m.notifications[i].UserID == userID {
			mine = append(mine, m.notifications[i])
		}
	}
	m.mu.RUnlock()

	if page < 1 {
		page = 1
	}
	start := offset(page, pageSize)
	items := []models.Notification{}
	if start < len(mine) {
		end := start + pageSize
		if end > len(mine) {
			end = len(mine)
		}
		items = append(items, mine[start:end]...)
	}
	return models.Page{Items: items, Page: page, TotalPages: totalPages(len(mine), pageSize)}, nil
}

func (m *Memory) MarkAllNotificationsRead(_ context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for i := range m.notifications {
		if m.notifications[i].UserID == userID && !m.notifications[i].IsRead {
			m.notifications[i].IsRead = true
			n++
		}
	}
	return n, nil
}

func (m *Memory) Close() error { return nil }
