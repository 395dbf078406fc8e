package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"greenpoints/internal/domain"
	"greenpoints/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SubmitExchangeInput carries a single exchange request. Quantity below 1 is
// coerced to 1. IdempotencyKey is optional; when present, a replay with the
// same key returns the originally created order without a second debit.
type SubmitExchangeInput struct {
	UserID          uuid.UUID
	ProductID       uuid.UUID
	Quantity        int
	DeliveryAddress string
	ContactPhone    string
	Notes           string
	IdempotencyKey  string
}

// ExchangeResult is the outcome of a successful (or replayed) exchange
type ExchangeResult struct {
	Order           *domain.ExchangeOrder
	RemainingPoints int64
}

// ExchangeService coordinates the exchange transaction: it validates the
// product under a row lock, debits the cached balance, decrements finite
// stock, creates the order and appends the ledger entry as one atomic unit,
// then dispatches notifications and an audit entry best-effort.
type ExchangeService interface {
	Submit(ctx context.Context, in SubmitExchangeInput) (*ExchangeResult, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ExchangeOrder, error)
	ListByUser(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]*domain.ExchangeOrder, int, error)
	List(ctx context.Context, filter repository.ExchangeOrderFilter, page, pageSize int) ([]*domain.ExchangeOrder, int, error)
}

type exchangeService struct {
	transactor repository.Transactor
	products   repository.ProductRepository
	orders     repository.ExchangeOrderRepository
	ledger     repository.LedgerRepository
	users      repository.UserRepository
	dispatcher NotificationDispatcher
	audit      AuditRecorder
	logger     *zap.Logger
}

// NewExchangeService creates a new instance of ExchangeService
func NewExchangeService(
	transactor repository.Transactor,
	products repository.ProductRepository,
	orders repository.ExchangeOrderRepository,
	ledger repository.LedgerRepository,
	users repository.UserRepository,
	dispatcher NotificationDispatcher,
	audit AuditRecorder,
	logger *zap.Logger,
) ExchangeService {
	return &exchangeService{
		transactor: transactor,
		products:   products,
		orders:     orders,
		ledger:     ledger,
		users:      users,
		dispatcher: dispatcher,
		audit:      audit,
		logger:     logger,
	}
}

// Submit executes one exchange. Domain failures (not found, unavailable,
// insufficient stock or points) roll back with no side effects. Unexpected
// failures are audited and returned wrapped, to be reported generically.
func (s *exchangeService) Submit(ctx context.Context, in SubmitExchangeInput) (*ExchangeResult, error) {
	if in.Quantity < 1 {
		in.Quantity = 1
	}

	if in.IdempotencyKey != "" {
		if result, ok, err := s.replay(ctx, in); err != nil {
			return nil, err
		} else if ok {
			return result, nil
		}
	}

	var (
		order     *domain.ExchangeOrder
		remaining int64
	)

	txErr := s.transactor.WithinTx(ctx, func(tx *sql.Tx) error {
		products := s.products.WithTx(tx)

		product, err := products.FindForUpdate(ctx, in.ProductID)
		if err != nil {
			return err
		}
		if product.Status != domain.ProductStatusActive {
			return domain.ErrProductUnavailable
		}
		if !product.HasUnlimitedStock() && product.Stock < in.Quantity {
			return domain.ErrInsufficientStock
		}

		totalPoints := product.PointsRequired * int64(in.Quantity)

		remaining, err = s.users.WithTx(tx).DebitPoints(ctx, in.UserID, totalPoints)
		if err != nil {
			return err
		}

		if !product.HasUnlimitedStock() {
			if err := products.DecrementStock(ctx, product.ID, in.Quantity); err != nil {
				return err
			}
		}

		now := time.Now()
		order = &domain.ExchangeOrder{
			ID:              uuid.New(),
			UserID:          in.UserID,
			ProductID:       product.ID,
			Quantity:        in.Quantity,
			PointsUsed:      totalPoints,
			ProductName:     product.Name,
			ProductPoints:   product.PointsRequired,
			DeliveryAddress: in.DeliveryAddress,
			ContactPhone:    in.ContactPhone,
			Notes:           in.Notes,
			Status:          domain.ExchangeStatusPending,
			IdempotencyKey:  in.IdempotencyKey,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := s.orders.WithTx(tx).Create(ctx, order); err != nil {
			return err
		}

		entry := &domain.PointsLedgerEntry{
			ID:           uuid.New(),
			UserID:       in.UserID,
			Delta:        -totalPoints,
			Type:         domain.LedgerEntryProductExchange,
			Description:  fmt.Sprintf("Exchanged %d x %s", in.Quantity, product.Name),
			RelatedTable: "exchange_orders",
			RelatedID:    &order.ID,
			CreatedAt:    now,
		}
		return s.ledger.WithTx(tx).Append(ctx, entry)
	})

	if txErr != nil {
		// A concurrent request with the same idempotency key won the race;
		// the surviving order is the result.
		if errors.Is(txErr, domain.ErrDuplicateIdempotencyKey) && in.IdempotencyKey != "" {
			if result, ok, err := s.replay(ctx, in); err == nil && ok {
				return result, nil
			}
		}

		if domain.IsExchangeFailure(txErr) {
			return nil, txErr
		}

		s.logger.Error("exchange transaction failed",
			zap.Stringer("user_id", in.UserID),
			zap.Stringer("product_id", in.ProductID),
			zap.Error(txErr),
		)
		s.recordFailure(ctx, in, txErr)
		return nil, fmt.Errorf("failed to submit exchange: %w", txErr)
	}

	s.notifyExchange(ctx, order)

	return &ExchangeResult{Order: order, RemainingPoints: remaining}, nil
}

// GetByID retrieves a single exchange order
func (s *exchangeService) GetByID(ctx context.Context, id uuid.UUID) (*domain.ExchangeOrder, error) {
	return s.orders.FindByID(ctx, id)
}

// ListByUser retrieves a user's own exchange history
func (s *exchangeService) ListByUser(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]*domain.ExchangeOrder, int, error) {
	return s.orders.ListByUser(ctx, userID, page, pageSize)
}

// List retrieves exchange orders for the admin view
func (s *exchangeService) List(ctx context.Context, filter repository.ExchangeOrderFilter, page, pageSize int) ([]*domain.ExchangeOrder, int, error) {
	return s.orders.List(ctx, filter, page, pageSize)
}

// replay looks for an order previously created with the same idempotency
// key. The remaining balance is read from the user record, not recomputed.
func (s *exchangeService) replay(ctx context.Context, in SubmitExchangeInput) (*ExchangeResult, bool, error) {
	existing, err := s.orders.FindByIdempotencyKey(ctx, in.UserID, in.IdempotencyKey)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to check idempotency key: %w", err)
	}

	user, err := s.users.FindByID(ctx, in.UserID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load user balance: %w", err)
	}

	return &ExchangeResult{Order: existing, RemainingPoints: user.Points}, true, nil
}

// notifyExchange runs the post-commit, best-effort side effects: owner and
// admin notifications plus the audit entry. Failures are logged and never
// roll back the committed exchange.
func (s *exchangeService) notifyExchange(ctx context.Context, order *domain.ExchangeOrder) {
	body := fmt.Sprintf("Your exchange of %d x %s (%d points) was received and is pending review.",
		order.Quantity, order.ProductName, order.PointsUsed)
	if err := s.dispatcher.SendMessage(ctx, order.UserID, "exchange_created", "Exchange submitted", body, domain.PriorityNormal); err != nil {
		s.logger.Warn("failed to notify exchange owner",
			zap.Stringer("order_id", order.ID),
			zap.Error(err),
		)
	}

	admins, err := s.users.ListAdmins(ctx)
	if err != nil {
		s.logger.Warn("failed to list admins for exchange notification", zap.Error(err))
	}
	for _, admin := range admins {
		adminBody := fmt.Sprintf("New exchange order %s: %d x %s for %d points.",
			order.ID, order.Quantity, order.ProductName, order.PointsUsed)
		if err := s.dispatcher.SendMessage(ctx, admin.ID, "exchange_received", "New exchange order", adminBody, domain.PriorityNormal); err != nil {
			s.logger.Warn("failed to notify admin",
				zap.Stringer("admin_id", admin.ID),
				zap.Stringer("order_id", order.ID),
				zap.Error(err),
			)
		}
	}

	if err := s.audit.Log(ctx, order.UserID, "product.exchange", "exchange_order", order.ID, map[string]any{
		"product_id":  order.ProductID.String(),
		"quantity":    order.Quantity,
		"points_used": order.PointsUsed,
	}); err != nil {
		s.logger.Warn("failed to write exchange audit entry",
			zap.Stringer("order_id", order.ID),
			zap.Error(err),
		)
	}
}

// recordFailure sends an unexpected failure to the audit collaborator
func (s *exchangeService) recordFailure(ctx context.Context, in SubmitExchangeInput, cause error) {
	if err := s.audit.Log(ctx, in.UserID, "product.exchange_failed", "product", in.ProductID, map[string]any{
		"quantity": in.Quantity,
		"error":    cause.Error(),
	}); err != nil {
		s.logger.Warn("failed to write exchange failure audit entry", zap.Error(err))
	}
}
