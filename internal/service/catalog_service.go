package service

import (
	"context"

	"greenpoints/internal/domain"
	"greenpoints/internal/repository"

	"github.com/google/uuid"
)

// CatalogService is the read-only product surface. Catalog management lives
// outside this service; the exchange coordinator talks to the repository's
// locking read path directly.
type CatalogService interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	List(ctx context.Context, page, pageSize int) ([]*domain.Product, int, error)
}

type catalogService struct {
	products repository.ProductRepository
}

// NewCatalogService creates a new instance of CatalogService
func NewCatalogService(products repository.ProductRepository) CatalogService {
	return &catalogService{products: products}
}

// GetByID retrieves a product, excluding soft-deleted ones
func (s *catalogService) GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	return s.products.FindByID(ctx, id)
}

// List retrieves active products with pagination
func (s *catalogService) List(ctx context.Context, page, pageSize int) ([]*domain.Product, int, error) {
	return s.products.List(ctx, page, pageSize)
}
