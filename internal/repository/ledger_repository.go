package repository

import (
	"context"
	"database/sql"
	"fmt"

	"greenpoints/internal/domain"

	"github.com/google/uuid"
)

// LedgerRepository is the append-only store of signed point deltas.
// There are deliberately no update or delete methods. Append trusts its
// caller for atomicity with the cached balance mutation and must be invoked
// on a coordinator-managed transaction.
type LedgerRepository interface {
	WithTx(tx *sql.Tx) LedgerRepository
	Append(ctx context.Context, entry *domain.PointsLedgerEntry) error
	ListByUser(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]*domain.PointsLedgerEntry, int, error)
	// SumByUser computes the balance implied by the ledger, used to check
	// consistency against the cached user balance
	SumByUser(ctx context.Context, userID uuid.UUID) (int64, error)
}

type ledgerRepository struct {
	db DBTX
}

// NewLedgerRepository creates a new instance of LedgerRepository
func NewLedgerRepository(db *sql.DB) LedgerRepository {
	return &ledgerRepository{db: db}
}

func (r *ledgerRepository) WithTx(tx *sql.Tx) LedgerRepository {
	return &ledgerRepository{db: tx}
}

// Append inserts a ledger entry using parameterized queries
func (r *ledgerRepository) Append(ctx context.Context, entry *domain.PointsLedgerEntry) error {
	query := `
		INSERT INTO points_ledger (id, user_id, delta, type, description, related_table, related_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	relatedTable := sql.NullString{String: entry.RelatedTable, Valid: entry.RelatedTable != ""}

	_, err := r.db.ExecContext(
		ctx,
		query,
		entry.ID,
		entry.UserID,
		entry.Delta,
		entry.Type,
		entry.Description,
		relatedTable,
		entry.RelatedID,
		entry.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}

	return nil
}

// ListByUser retrieves a user's ledger entries with pagination, newest first
func (r *ledgerRepository) ListByUser(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]*domain.PointsLedgerEntry, int, error) {
	countQuery := `SELECT COUNT(*) FROM points_ledger WHERE user_id = $1`
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count ledger entries: %w", err)
	}

	offset := (page - 1) * pageSize

	query := `
		SELECT id, user_id, delta, type, description, related_table, related_id, created_at
		FROM points_ledger
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.QueryContext(ctx, query, userID, pageSize, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	defer rows.Close()

	entries := []*domain.PointsLedgerEntry{}
	for rows.Next() {
		entry := &domain.PointsLedgerEntry{}
		var relatedTable sql.NullString

		if err := rows.Scan(
			&entry.ID,
			&entry.UserID,
			&entry.Delta,
			&entry.Type,
			&entry.Description,
			&relatedTable,
			&entry.RelatedID,
			&entry.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan ledger entry: %w", err)
		}

		entry.RelatedTable = relatedTable.String
		entries = append(entries, entry)
	}

	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating ledger entries: %w", err)
	}

	return entries, total, nil
}

// SumByUser returns the sum of all deltas for a user
func (r *ledgerRepository) SumByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	query := `SELECT COALESCE(SUM(delta), 0) FROM points_ledger WHERE user_id = $1`

	var sum int64
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&sum); err != nil {
		return 0, fmt.Errorf("failed to sum ledger entries: %w", err)
	}

	return sum, nil
}
