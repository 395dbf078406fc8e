package service

import (
	"context"
	"time"

	"greenpoints/internal/domain"
	"greenpoints/internal/repository"

	"github.com/google/uuid"
)

// NotificationDispatcher delivers a message to a user. Implementations are
// fire-and-forget from the exchange flow's point of view: a failure is
// logged by the caller and never aborts a committed exchange.
type NotificationDispatcher interface {
	SendMessage(ctx context.Context, userID uuid.UUID, eventType, title, body, priority string) error
}

// AuditRecorder writes an audit trail entry. Same fire-and-forget contract
// as NotificationDispatcher.
type AuditRecorder interface {
	Log(ctx context.Context, userID uuid.UUID, action, entityType string, entityID uuid.UUID, metadata map[string]any) error
}

type storedNotificationDispatcher struct {
	repo repository.NotificationRepository
}

// NewNotificationDispatcher creates a dispatcher that persists messages to
// the notifications table
func NewNotificationDispatcher(repo repository.NotificationRepository) NotificationDispatcher {
	return &storedNotificationDispatcher{repo: repo}
}

func (d *storedNotificationDispatcher) SendMessage(ctx context.Context, userID uuid.UUID, eventType, title, body, priority string) error {
	return d.repo.Create(ctx, &domain.Notification{
		ID:        uuid.New(),
		UserID:    userID,
		EventType: eventType,
		Title:     title,
		Body:      body,
		Priority:  priority,
		CreatedAt: time.Now(),
	})
}

type storedAuditRecorder struct {
	repo repository.AuditLogRepository
}

// NewAuditRecorder creates a recorder that persists entries to the
// audit_logs table
func NewAuditRecorder(repo repository.AuditLogRepository) AuditRecorder {
	return &storedAuditRecorder{repo: repo}
}

func (a *storedAuditRecorder) Log(ctx context.Context, userID uuid.UUID, action, entityType string, entityID uuid.UUID, metadata map[string]any) error {
	return a.repo.Create(ctx, &domain.AuditLog{
		ID:         uuid.New(),
		UserID:     &userID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Metadata:   metadata,
		CreatedAt:  time.Now(),
	})
}
