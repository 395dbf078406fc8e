package domain

import "errors"

var (
	// ErrProductNotFound covers both missing and soft-deleted products
	ErrProductNotFound = errors.New("product not found")

	// ErrProductUnavailable is returned for products whose status is not active
	ErrProductUnavailable = errors.New("product is not available for exchange")

	// ErrInsufficientStock is returned when a finite-stock product cannot
	// cover the requested quantity
	ErrInsufficientStock = errors.New("insufficient product stock")

	// ErrInsufficientPoints is returned when the user's balance cannot cover
	// the total cost of the exchange
	ErrInsufficientPoints = errors.New("insufficient points balance")

	// ErrOrderNotFound is returned when an exchange order does not exist
	ErrOrderNotFound = errors.New("exchange order not found")

	// ErrInvalidStatus is returned for status values outside the allowed enum
	ErrInvalidStatus = errors.New("invalid exchange status")

	// ErrInvalidTransition is returned when the requested status move is not
	// in the transition table
	ErrInvalidTransition = errors.New("status transition not allowed")

	// ErrDuplicateIdempotencyKey signals that an order with the same
	// idempotency key already exists for the user
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")
)

// IsExchangeFailure reports whether err belongs to the domain failure
// taxonomy of the exchange flow. These roll back the transaction and are
// surfaced to the caller; anything else is treated as an internal error and
// reported generically.
func IsExchangeFailure(err error) bool {
	return errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrProductUnavailable) ||
		errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrInsufficientPoints)
}
