package repository

import (
	"context"
	"database/sql"
	"fmt"

	"greenpoints/internal/domain"
)

// NotificationRepository persists user-facing messages
type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
}

type notificationRepository struct {
	db DBTX
}

// NewNotificationRepository creates a new instance of NotificationRepository
func NewNotificationRepository(db *sql.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

// Create inserts a notification using parameterized queries
func (r *notificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	query := `
		INSERT INTO notifications (id, user_id, event_type, title, body, priority, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		n.ID,
		n.UserID,
		n.EventType,
		n.Title,
		n.Body,
		n.Priority,
		n.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	return nil
}
