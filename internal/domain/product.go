package domain

import (
	"time"

	"github.com/google/uuid"
)

// UnlimitedStock is the sentinel stock value for products whose stock is not
// tracked. It is never decremented.
const UnlimitedStock = -1

// ProductStatus indicates whether a product can currently be exchanged
type ProductStatus string

const (
	ProductStatusActive   ProductStatus = "active"
	ProductStatusInactive ProductStatus = "inactive"
)

// Product represents a redeemable item in the rewards catalog
type Product struct {
	ID             uuid.UUID     `json:"id" db:"id"`
	Name           string        `json:"name" db:"name"`
	Description    string        `json:"description" db:"description"`
	ImageURL       string        `json:"image_url" db:"image_url"`
	PointsRequired int64         `json:"points_required" db:"points_required"`
	Stock          int           `json:"stock" db:"stock"`
	Status         ProductStatus `json:"status" db:"status"`
	DeletedAt      *time.Time    `json:"-" db:"deleted_at"`
	CreatedAt      time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at" db:"updated_at"`
}

// HasUnlimitedStock reports whether stock checks and decrements are skipped
// for this product
func (p *Product) HasUnlimitedStock() bool {
	return p.Stock == UnlimitedStock
}
