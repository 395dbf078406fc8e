package domain

import (
	"time"

	"github.com/google/uuid"
)

// ExchangeStatus is the lifecycle state of an exchange order
type ExchangeStatus string

const (
	ExchangeStatusPending    ExchangeStatus = "pending"
	ExchangeStatusProcessing ExchangeStatus = "processing"
	ExchangeStatusShipped    ExchangeStatus = "shipped"
	ExchangeStatusCompleted  ExchangeStatus = "completed"
	ExchangeStatusCancelled  ExchangeStatus = "cancelled"
)

// Valid reports whether s is a known exchange status
func (s ExchangeStatus) Valid() bool {
	switch s {
	case ExchangeStatusPending, ExchangeStatusProcessing, ExchangeStatusShipped,
		ExchangeStatusCompleted, ExchangeStatusCancelled:
		return true
	}
	return false
}

// statusTransitions declares the allowed admin-driven status moves.
// completed and cancelled are terminal.
var statusTransitions = map[ExchangeStatus][]ExchangeStatus{
	ExchangeStatusPending:    {ExchangeStatusProcessing, ExchangeStatusCancelled},
	ExchangeStatusProcessing: {ExchangeStatusShipped, ExchangeStatusCancelled},
	ExchangeStatusShipped:    {ExchangeStatusCompleted, ExchangeStatusCancelled},
}

// CanTransition reports whether an order may move from one status to another
func CanTransition(from, to ExchangeStatus) bool {
	for _, allowed := range statusTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// ExchangeOrder is a user's request to redeem points for product units.
// PointsUsed and the product snapshot fields are fixed at submission and
// never recalculated from later catalog changes.
type ExchangeOrder struct {
	ID              uuid.UUID      `json:"id" db:"id"`
	UserID          uuid.UUID      `json:"user_id" db:"user_id"`
	ProductID       uuid.UUID      `json:"product_id" db:"product_id"`
	Quantity        int            `json:"quantity" db:"quantity"`
	PointsUsed      int64          `json:"points_used" db:"points_used"`
	ProductName     string         `json:"product_name" db:"product_name"`
	ProductPoints   int64          `json:"product_points" db:"product_points"`
	DeliveryAddress string         `json:"delivery_address" db:"delivery_address"`
	ContactPhone    string         `json:"contact_phone" db:"contact_phone"`
	Notes           string         `json:"notes" db:"notes"`
	Status          ExchangeStatus `json:"status" db:"status"`
	TrackingNumber  string         `json:"tracking_number" db:"tracking_number"`
	IdempotencyKey  string         `json:"-" db:"idempotency_key"`
	DeletedAt       *time.Time     `json:"-" db:"deleted_at"`
	CreatedAt       time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at" db:"updated_at"`
}
