package domain

import (
	"time"

	"github.com/google/uuid"
)

// LedgerEntryType tags the cause of a point change
type LedgerEntryType string

const (
	LedgerEntryProductExchange LedgerEntryType = "product_exchange"
	LedgerEntryActivityReward  LedgerEntryType = "activity_reward"
	LedgerEntryAdminAdjustment LedgerEntryType = "admin_adjustment"
)

// PointsLedgerEntry is an append-only record of a signed point change.
// Entries are never mutated or deleted; the cached user balance must only be
// changed in lockstep with an append, inside the same transaction.
type PointsLedgerEntry struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	UserID       uuid.UUID       `json:"user_id" db:"user_id"`
	Delta        int64           `json:"delta" db:"delta"`
	Type         LedgerEntryType `json:"type" db:"type"`
	Description  string          `json:"description" db:"description"`
	RelatedTable string          `json:"related_table,omitempty" db:"related_table"`
	RelatedID    *uuid.UUID      `json:"related_id,omitempty" db:"related_id"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}
