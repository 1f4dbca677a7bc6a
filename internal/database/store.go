package database

import (
	"context"

	"github.com/umar/livesync/internal/models"
)

// Store is everything the reference server persists.
type Store interface {
	CreateUser(ctx context.Context, username, email, passwordHash string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)

	CreateMessage(ctx context.Context, userID, username, content string) (*models.StoredMessage, error)
	// RecentMessages returns up to limit messages, newest first.
	RecentMessages(ctx context.Context, limit int) ([]models.StoredMessage, error)

	CreateNotification(ctx context.Context, userID, message string) (*models.Notification, error)
	// ListNotifications returns one page (1-based), newest first.
	ListNotifications(ctx context.Context, userID string, page, pageSize int) (models.Page, error)
	MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error)

	Close() error
}

func totalPages(total, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

func offset(page, pageSize int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * pageSize
}
