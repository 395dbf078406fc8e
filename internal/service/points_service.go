package service

import (
	"context"

	"greenpoints/internal/domain"
	"greenpoints/internal/repository"

	"github.com/google/uuid"
)

// PointsService exposes the read side of the points ledger
type PointsService interface {
	History(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]*domain.PointsLedgerEntry, int, error)
}

type pointsService struct {
	ledger repository.LedgerRepository
}

// NewPointsService creates a new instance of PointsService
func NewPointsService(ledger repository.LedgerRepository) PointsService {
	return &pointsService{ledger: ledger}
}

// History returns a user's ledger entries, newest first
func (s *pointsService) History(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]*domain.PointsLedgerEntry, int, error) {
	return s.ledger.ListByUser(ctx, userID, page, pageSize)
}
