package service

import (
	"context"
	"fmt"

	"greenpoints/internal/domain"
	"greenpoints/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UpdateStatusInput carries an admin-driven status transition
type UpdateStatusInput struct {
	OrderID        uuid.UUID
	Status         domain.ExchangeStatus
	Notes          string
	TrackingNumber string
	ActorID        uuid.UUID
}

// StatusService is the admin-only workflow for post-creation order status
// transitions. It enforces the transition table and never re-validates
// stock or points.
type StatusService interface {
	UpdateStatus(ctx context.Context, in UpdateStatusInput) (*domain.ExchangeOrder, error)
}

type statusService struct {
	orders     repository.ExchangeOrderRepository
	dispatcher NotificationDispatcher
	audit      AuditRecorder
	logger     *zap.Logger
}

// NewStatusService creates a new instance of StatusService
func NewStatusService(
	orders repository.ExchangeOrderRepository,
	dispatcher NotificationDispatcher,
	audit AuditRecorder,
	logger *zap.Logger,
) StatusService {
	return &statusService{
		orders:     orders,
		dispatcher: dispatcher,
		audit:      audit,
		logger:     logger,
	}
}

// statusNotices maps each reachable status to the owner-facing notification
var statusNotices = map[domain.ExchangeStatus]struct {
	eventType string
	title     string
	priority  string
}{
	domain.ExchangeStatusProcessing: {"exchange_processing", "Your exchange is being processed", domain.PriorityNormal},
	domain.ExchangeStatusShipped:    {"exchange_shipped", "Your exchange has shipped", domain.PriorityNormal},
	domain.ExchangeStatusCompleted:  {"exchange_completed", "Your exchange is complete", domain.PriorityNormal},
	domain.ExchangeStatusCancelled:  {"exchange_cancelled", "Your exchange was cancelled", domain.PriorityHigh},
}

// UpdateStatus moves an order to a new status. Targets outside the allowed
// enum (or pending, which is creation-only) fail with ErrInvalidStatus;
// in-enum moves not present in the transition table fail with
// ErrInvalidTransition. On success the order owner is notified and an audit
// entry is written, both best-effort.
func (s *statusService) UpdateStatus(ctx context.Context, in UpdateStatusInput) (*domain.ExchangeOrder, error) {
	if !in.Status.Valid() || in.Status == domain.ExchangeStatusPending {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidStatus, in.Status)
	}

	order, err := s.orders.FindByID(ctx, in.OrderID)
	if err != nil {
		return nil, err
	}

	if !domain.CanTransition(order.Status, in.Status) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, order.Status, in.Status)
	}

	if err := s.orders.UpdateStatus(ctx, in.OrderID, in.Status, in.Notes, in.TrackingNumber); err != nil {
		return nil, err
	}

	previous := order.Status
	order.Status = in.Status
	if in.Notes != "" {
		order.Notes = in.Notes
	}
	if in.TrackingNumber != "" {
		order.TrackingNumber = in.TrackingNumber
	}

	s.notifyStatusChange(ctx, order, previous, in)

	return order, nil
}

func (s *statusService) notifyStatusChange(ctx context.Context, order *domain.ExchangeOrder, previous domain.ExchangeStatus, in UpdateStatusInput) {
	notice := statusNotices[in.Status]

	body := fmt.Sprintf("Order %s (%d x %s) is now %s.", order.ID, order.Quantity, order.ProductName, in.Status)
	if in.TrackingNumber != "" {
		body += fmt.Sprintf(" Tracking number: %s.", in.TrackingNumber)
	}
	if in.Notes != "" {
		body += fmt.Sprintf(" Note: %s", in.Notes)
	}

	if err := s.dispatcher.SendMessage(ctx, order.UserID, notice.eventType, notice.title, body, notice.priority); err != nil {
		s.logger.Warn("failed to notify order owner of status change",
			zap.Stringer("order_id", order.ID),
			zap.String("status", string(in.Status)),
			zap.Error(err),
		)
	}

	if err := s.audit.Log(ctx, in.ActorID, "exchange_order.status_updated", "exchange_order", order.ID, map[string]any{
		"from":            string(previous),
		"to":              string(in.Status),
		"tracking_number": in.TrackingNumber,
	}); err != nil {
		s.logger.Warn("failed to write status change audit entry",
			zap.Stringer("order_id", order.ID),
			zap.Error(err),
		)
	}
}
