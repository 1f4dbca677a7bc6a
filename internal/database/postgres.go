package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/umar/livesync/internal/models"
)

type Postgres struct {
	db *sql.DB
}

func InitDB(databaseURL string) (*Postgres, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Close() error { return p.db.Close() }

// --- Users ---

func (p *Postgres) CreateUser(ctx context.Context, username, email, passwordHash string) (*models.User, error) {
	var u models.User
	err := p.db.QueryRowContext(ctx,
		`INSERT INTO users (username, email, password) VALUES ($1, $2, $3)
		 RETURNING id, username, email, created_at`,
		username, email, passwordHash,
	).Scan(&u.ID, &u.Username, &u.Email, &u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return &u, nil
}

func (p *Postgres) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	err := p.db.QueryRowContext(ctx,
		`SELECT id, username, email, password, created_at FROM users WHERE username = $1`,
		username,
	).Scan(&u.ID, &u.Username, &u.Email, &u.Password, &u.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

func (p *Postgres) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	err := p.db.QueryRowContext(ctx,
		`SELECT id, username, email, created_at FROM users WHERE id = $1`,
		id,
	).Scan(&u.ID, &u.Username, &u.Email, &u.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

// --- Messages ---

func (p *Postgres) CreateMessage(ctx context.Context, userID, username, content string) (*models.StoredMessage, error) {
	var m models.StoredMessage
	err := p.db.QueryRowContext(ctx,
		`INSERT INTO messages (user_id, username, content) VALUES ($1, $2, $3)
		 RETURNING id, user_id, username, content, created_at`,
		userID, username, content,
	).Scan(&m.ID, &m.UserID, &m.Username, &m.Content, &m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}
	return &m, nil
}

func (p *Postgres) RecentMessages(ctx context.Context, limit int) ([]models.StoredMessage, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, user_id, username, content, created_at FROM messages
		 ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	defer rows.Close()

	messages := []models.StoredMessage{}
	for rows.Next() {
		var m models.StoredMessage
		if err := rows.Scan(&m.ID, &m.UserID, &m.Username, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// --- Notifications ---

func (p *Postgres) CreateNotification(ctx context.Context, userID, message string) (*models.Notification, error) {
	var n models.Notification
	err := p.db.QueryRowContext(ctx,
		`INSERT INTO notifications (user_id, message) VALUES ($1, $2)
		 RETURNING id, user_id, message, is_read, created_at`,
		userID, message,
	).Scan(&n.ID, &n.UserID, &n.Message, &n.IsRead, &n.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}
	return &n, nil
}

func (p *Postgres) ListNotifications(ctx context.Context, userID string, page, pageSize int) (models.Page, error) {
	if page < 1 {
		page = 1
	}
	var total int
	if err := p.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1`, userID,
	).Scan(&total); err != nil {
		return models.Page{}, fmt.Errorf("failed to count notifications: %w", err)
	}

	rows, err := p.db.QueryContext(ctx,
		`SELECT id, user_id, message, is_read, created_at FROM notifications
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id
		 LIMIT $2 OFFSET $3`,
		userID, pageSize, offset(page, pageSize),
	)
	if err != nil {
		return models.Page{}, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	items := []models.Notification{}
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Message, &n.IsRead, &n.CreatedAt); err != nil {
			return models.Page{}, err
		}
		items = append(items, n)
	}
	if err := rows.Err(); err != nil {
		return models.Page{}, err
	}
	return models.Page{Items: items, Page: page, TotalPages: totalPages(total, pageSize)}, nil
}

func (p *Postgres) MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error) {
	res, err := p.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND is_read = FALSE`,
		userID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return res.RowsAffected()
}

// RunMigrations applies the schema.
func (p *Postgres) RunMigrations(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, schema)
	return err
}
