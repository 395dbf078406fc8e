package repository

import (
	"context"
	"database/sql"
	"fmt"

	"greenpoints/internal/domain"

	"github.com/google/uuid"
)

// ProductRepository is the catalog read path consumed by the exchange
// coordinator. Catalog management (create/update/delete) is owned elsewhere.
type ProductRepository interface {
	// WithTx returns a repository bound to the given transaction
	WithTx(tx *sql.Tx) ProductRepository
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	// FindForUpdate fetches a product under an exclusive row lock when the
	// repository was built with row locking enabled. Must be called inside a
	// coordinator-managed transaction.
	FindForUpdate(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	// DecrementStock subtracts quantity from a finite stock, guarded so the
	// stock can never go negative
	DecrementStock(ctx context.Context, id uuid.UUID, quantity int) error
	List(ctx context.Context, page, pageSize int) ([]*domain.Product, int, error)
}

type productRepository struct {
	db DBTX

	// rowLocking selects the FOR UPDATE adapter. With it disabled the fetch
	// is a plain SELECT: a degraded mode in which two concurrent exchanges
	// can both pass the stock check, acceptable only for single-writer
	// deployments.
	rowLocking bool
}

// NewProductRepository creates a product repository. rowLocking should come
// from configuration, matching the capabilities of the storage engine.
func NewProductRepository(db *sql.DB, rowLocking bool) ProductRepository {
	return &productRepository{db: db, rowLocking: rowLocking}
}

func (r *productRepository) WithTx(tx *sql.Tx) ProductRepository {
	return &productRepository{db: tx, rowLocking: r.rowLocking}
}

const productColumns = `id, name, description, image_url, points_required, stock, status, deleted_at, created_at, updated_at`

// FindByID retrieves a product by ID, excluding soft-deleted rows
func (r *productRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM products
		WHERE id = $1 AND deleted_at IS NULL
	`, productColumns)

	return r.scanProduct(r.db.QueryRowContext(ctx, query, id))
}

// FindForUpdate retrieves a product for mutation inside a transaction
func (r *productRepository) FindForUpdate(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM products
		WHERE id = $1 AND deleted_at IS NULL
	`, productColumns)

	if r.rowLocking {
		query += " FOR UPDATE"
	}

	return r.scanProduct(r.db.QueryRowContext(ctx, query, id))
}

// DecrementStock subtracts quantity from the product's stock. The WHERE
// guard keeps stock non-negative and leaves the unlimited sentinel untouched
// even if called by mistake.
func (r *productRepository) DecrementStock(ctx context.Context, id uuid.UUID, quantity int) error {
	query := `
		UPDATE products
		SET stock = stock - $2, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL AND stock >= $2
	`

	result, err := r.db.ExecContext(ctx, query, id, quantity)
	if err != nil {
		return fmt.Errorf("failed to decrement stock: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return domain.ErrInsufficientStock
	}

	return nil
}

// List retrieves active products with pagination, newest first
func (r *productRepository) List(ctx context.Context, page, pageSize int) ([]*domain.Product, int, error) {
	countQuery := `
		SELECT COUNT(*)
		FROM products
		WHERE status = 'active' AND deleted_at IS NULL
	`
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	offset := (page - 1) * pageSize

	query := fmt.Sprintf(`
		SELECT %s
		FROM products
		WHERE status = 'active' AND deleted_at IS NULL
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, productColumns)

	rows, err := r.db.QueryContext(ctx, query, pageSize, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := []*domain.Product{}
	for rows.Next() {
		product := &domain.Product{}
		if err := rows.Scan(
			&product.ID,
			&product.Name,
			&product.Description,
			&product.ImageURL,
			&product.PointsRequired,
			&product.Stock,
			&product.Status,
			&product.DeletedAt,
			&product.CreatedAt,
			&product.UpdatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, product)
	}

	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating products: %w", err)
	}

	return products, total, nil
}

func (r *productRepository) scanProduct(row *sql.Row) (*domain.Product, error) {
	product := &domain.Product{}
	err := row.Scan(
		&product.ID,
		&product.Name,
		&product.Description,
		&product.ImageURL,
		&product.PointsRequired,
		&product.Stock,
		&product.Status,
		&product.DeletedAt,
		&product.CreatedAt,
		&product.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product: %w", err)
	}

	return product, nil
}
