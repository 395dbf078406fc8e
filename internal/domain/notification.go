package domain

import (
	"time"

	"github.com/google/uuid"
)

// Notification priorities
const (
	PriorityNormal = "normal"
	PriorityHigh   = "high"
)

// Notification is a persisted message for a user. Delivery mechanics
// (email, push) are out of scope; dispatchers are fire-and-forget.
type Notification struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	EventType string    `json:"event_type" db:"event_type"`
	Title     string    `json:"title" db:"title"`
	Body      string    `json:"body" db:"body"`
	Priority  string    `json:"priority" db:"priority"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// AuditLog records an action against an entity for later review
type AuditLog struct {
	ID         uuid.UUID      `json:"id" db:"id"`
	UserID     *uuid.UUID     `json:"user_id,omitempty" db:"user_id"`
	Action     string         `json:"action" db:"action"`
	EntityType string         `json:"entity_type" db:"entity_type"`
	EntityID   uuid.UUID      `json:"entity_id" db:"entity_id"`
	Metadata   map[string]any `json:"metadata,omitempty" db:"metadata"`
	CreatedAt  time.Time      `json:"created_at" db:"created_at"`
}
