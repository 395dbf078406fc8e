package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"greenpoints/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// ExchangeOrderFilter narrows admin listings by status and/or owner
type ExchangeOrderFilter struct {
	Status *domain.ExchangeStatus
	UserID *uuid.UUID
}

// ExchangeOrderRepository defines data access for exchange orders.
// Orders are created only by the exchange coordinator and mutated only by
// the status workflow.
type ExchangeOrderRepository interface {
	WithTx(tx *sql.Tx) ExchangeOrderRepository
	Create(ctx context.Context, order *domain.ExchangeOrder) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.ExchangeOrder, error)
	FindByIdempotencyKey(ctx context.Context, userID uuid.UUID, key string) (*domain.ExchangeOrder, error)
	ListByUser(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]*domain.ExchangeOrder, int, error)
	List(ctx context.Context, filter ExchangeOrderFilter, page, pageSize int) ([]*domain.ExchangeOrder, int, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ExchangeStatus, notes, trackingNumber string) error
}

type exchangeOrderRepository struct {
	db DBTX
}

// NewExchangeOrderRepository creates a new instance of ExchangeOrderRepository
func NewExchangeOrderRepository(db *sql.DB) ExchangeOrderRepository {
	return &exchangeOrderRepository{db: db}
}

func (r *exchangeOrderRepository) WithTx(tx *sql.Tx) ExchangeOrderRepository {
	return &exchangeOrderRepository{db: tx}
}

const exchangeOrderColumns = `id, user_id, product_id, quantity, points_used, product_name, product_points,
		delivery_address, contact_phone, notes, status, tracking_number, idempotency_key, deleted_at, created_at, updated_at`

// Create inserts a new exchange order using parameterized queries
func (r *exchangeOrderRepository) Create(ctx context.Context, order *domain.ExchangeOrder) error {
	query := `
		INSERT INTO exchange_orders (id, user_id, product_id, quantity, points_used, product_name, product_points,
			delivery_address, contact_phone, notes, status, tracking_number, idempotency_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	idempotencyKey := sql.NullString{String: order.IdempotencyKey, Valid: order.IdempotencyKey != ""}

	_, err := r.db.ExecContext(
		ctx,
		query,
		order.ID,
		order.UserID,
		order.ProductID,
		order.Quantity,
		order.PointsUsed,
		order.ProductName,
		order.ProductPoints,
		order.DeliveryAddress,
		order.ContactPhone,
		order.Notes,
		order.Status,
		order.TrackingNumber,
		idempotencyKey,
		order.CreatedAt,
		order.UpdatedAt,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("failed to create exchange order: %w", err)
	}

	return nil
}

// FindByID retrieves an exchange order by ID, excluding soft-deleted rows
func (r *exchangeOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.ExchangeOrder, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM exchange_orders
		WHERE id = $1 AND deleted_at IS NULL
	`, exchangeOrderColumns)

	return r.scanOrder(r.db.QueryRowContext(ctx, query, id))
}

// FindByIdempotencyKey retrieves the order a user previously created with
// the given idempotency key
func (r *exchangeOrderRepository) FindByIdempotencyKey(ctx context.Context, userID uuid.UUID, key string) (*domain.ExchangeOrder, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM exchange_orders
		WHERE user_id = $1 AND idempotency_key = $2 AND deleted_at IS NULL
	`, exchangeOrderColumns)

	return r.scanOrder(r.db.QueryRowContext(ctx, query, userID, key))
}

// ListByUser retrieves a user's own orders with pagination, newest first
func (r *exchangeOrderRepository) ListByUser(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]*domain.ExchangeOrder, int, error) {
	filter := ExchangeOrderFilter{UserID: &userID}
	return r.List(ctx, filter, page, pageSize)
}

// List retrieves orders matching the filter with pagination, newest first
func (r *exchangeOrderRepository) List(ctx context.Context, filter ExchangeOrderFilter, page, pageSize int) ([]*domain.ExchangeOrder, int, error) {
	whereClause := "WHERE deleted_at IS NULL"
	args := []any{}
	argIndex := 1

	if filter.UserID != nil {
		whereClause += fmt.Sprintf(" AND user_id = $%d", argIndex)
		args = append(args, *filter.UserID)
		argIndex++
	}
	if filter.Status != nil {
		whereClause += fmt.Sprintf(" AND status = $%d", argIndex)
		args = append(args, *filter.Status)
		argIndex++
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM exchange_orders %s", whereClause)
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count exchange orders: %w", err)
	}

	offset := (page - 1) * pageSize

	query := fmt.Sprintf(`
		SELECT %s
		FROM exchange_orders
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, exchangeOrderColumns, whereClause, argIndex, argIndex+1)

	args = append(args, pageSize, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list exchange orders: %w", err)
	}
	defer rows.Close()

	orders := []*domain.ExchangeOrder{}
	for rows.Next() {
		order, err := r.scanOrderRow(rows)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, order)
	}

	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating exchange orders: %w", err)
	}

	return orders, total, nil
}

// UpdateStatus moves an order to a new status. Notes and tracking number are
// only overwritten when a non-empty value is supplied.
func (r *exchangeOrderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ExchangeStatus, notes, trackingNumber string) error {
	query := `
		UPDATE exchange_orders
		SET status = $2,
		    notes = CASE WHEN $3 <> '' THEN $3 ELSE notes END,
		    tracking_number = CASE WHEN $4 <> '' THEN $4 ELSE tracking_number END,
		    updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, id, status, notes, trackingNumber)
	if err != nil {
		return fmt.Errorf("failed to update exchange order status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return domain.ErrOrderNotFound
	}

	return nil
}

func (r *exchangeOrderRepository) scanOrder(row *sql.Row) (*domain.ExchangeOrder, error) {
	order := &domain.ExchangeOrder{}
	var idempotencyKey sql.NullString

	err := row.Scan(
		&order.ID,
		&order.UserID,
		&order.ProductID,
		&order.Quantity,
		&order.PointsUsed,
		&order.ProductName,
		&order.ProductPoints,
		&order.DeliveryAddress,
		&order.ContactPhone,
		&order.Notes,
		&order.Status,
		&order.TrackingNumber,
		&idempotencyKey,
		&order.DeletedAt,
		&order.CreatedAt,
		&order.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to find exchange order: %w", err)
	}

	order.IdempotencyKey = idempotencyKey.String
	return order, nil
}

func (r *exchangeOrderRepository) scanOrderRow(rows *sql.Rows) (*domain.ExchangeOrder, error) {
	order := &domain.ExchangeOrder{}
	var idempotencyKey sql.NullString

	err := rows.Scan(
		&order.ID,
		&order.UserID,
		&order.ProductID,
		&order.Quantity,
		&order.PointsUsed,
		&order.ProductName,
		&order.ProductPoints,
		&order.DeliveryAddress,
		&order.ContactPhone,
		&order.Notes,
		&order.Status,
		&order.TrackingNumber,
		&idempotencyKey,
		&order.DeletedAt,
		&order.CreatedAt,
		&order.UpdatedAt,
	)

	if err != nil {
		return nil, fmt.Errorf("failed to scan exchange order: %w", err)
	}

	order.IdempotencyKey = idempotencyKey.String
	return order, nil
}
