package transport

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"greenpoints/internal/domain"
	"greenpoints/internal/middleware"
	"greenpoints/internal/repository"
	"greenpoints/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// fieldAliases maps one canonical request field to the alternate keys
// clients are known to send. Resolution happens once, here at the boundary:
// the first non-empty alias wins.
type fieldAliases struct {
	canonical string
	aliases   []string
}

var exchangeFieldAliases = []fieldAliases{
	{"delivery_address", []string{"delivery_address", "address", "shipping_address", "deliveryAddress"}},
	{"contact_phone", []string{"contact_phone", "phone", "mobile", "contactPhone"}},
	{"notes", []string{"notes", "remark", "comment"}},
}

// resolveAliases collapses alternate keys in a decoded JSON body down to
// their canonical names
func resolveAliases(raw map[string]json.RawMessage, fields []fieldAliases) map[string]string {
	resolved := make(map[string]string, len(fields))
	for _, field := range fields {
		for _, alias := range field.aliases {
			value, ok := raw[alias]
			if !ok {
				continue
			}
			var s string
			if err := json.Unmarshal(value, &s); err != nil {
				continue
			}
			if strings.TrimSpace(s) != "" {
				resolved[field.canonical] = s
				break
			}
		}
	}
	return resolved
}

// exchangeResponse is the success payload of an exchange submission
type exchangeResponse struct {
	ExchangeID      string `json:"exchange_id"`
	PointsUsed      int64  `json:"points_used"`
	RemainingPoints int64  `json:"remaining_points"`
}

// exchangeErrorResponse is the domain-failure payload. The message is the
// domain error surfaced verbatim.
type exchangeErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// updateStatusRequest is the admin status transition payload
type updateStatusRequest struct {
	Status         string `json:"status" validate:"required,oneof=processing shipped completed cancelled"`
	Notes          string `json:"notes"`
	TrackingNumber string `json:"tracking_number"`
}

// listResponse wraps a paginated collection
type listResponse struct {
	Items    any `json:"items"`
	Total    int `json:"total"`
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

// ExchangeHandler handles HTTP requests for exchange operations
type ExchangeHandler struct {
	exchangeService service.ExchangeService
	statusService   service.StatusService
	logger          *zap.Logger
}

// NewExchangeHandler creates a new ExchangeHandler
func NewExchangeHandler(exchangeService service.ExchangeService, statusService service.StatusService, logger *zap.Logger) *ExchangeHandler {
	return &ExchangeHandler{
		exchangeService: exchangeService,
		statusService:   statusService,
		logger:          logger,
	}
}

// RegisterRoutes registers all exchange routes
func (h *ExchangeHandler) RegisterRoutes(r chi.Router, authMiddleware, adminMiddleware, rateLimitMiddleware func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)

		r.With(rateLimitMiddleware).Post("/api/products/{id}/exchange", h.Exchange)
		r.Get("/api/exchanges", h.ListMine)

		r.Group(func(r chi.Router) {
			r.Use(adminMiddleware)
			r.Get("/api/admin/exchanges", h.AdminList)
			r.Get("/api/admin/exchanges/{id}", h.AdminGet)
			r.Patch("/api/admin/exchanges/{id}/status", h.AdminUpdateStatus)
		})
	})
}

// Exchange handles POST /api/products/{id}/exchange
func (h *ExchangeHandler) Exchange(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	productID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product ID")
		return
	}

	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	quantity := 1
	if q, ok := raw["quantity"]; ok {
		if err := json.Unmarshal(q, &quantity); err != nil {
			middleware.RespondWithError(w, http.StatusBadRequest, "invalid quantity")
			return
		}
	}

	resolved := resolveAliases(raw, exchangeFieldAliases)

	idempotencyKey := r.Header.Get("Idempotency-Key")
	if key, ok := raw["idempotency_key"]; ok && idempotencyKey == "" {
		_ = json.Unmarshal(key, &idempotencyKey)
	}

	result, err := h.exchangeService.Submit(r.Context(), service.SubmitExchangeInput{
		UserID:          userID,
		ProductID:       productID,
		Quantity:        quantity,
		DeliveryAddress: resolved["delivery_address"],
		ContactPhone:    resolved["contact_phone"],
		Notes:           resolved["notes"],
		IdempotencyKey:  idempotencyKey,
	})
	if err != nil {
		if domain.IsExchangeFailure(err) {
			h.logger.Info("exchange rejected",
				zap.String("user_id", userID.String()),
				zap.String("product_id", productID.String()),
				zap.Error(err),
			)
			middleware.RespondWithJSON(w, http.StatusBadRequest, exchangeErrorResponse{
				Error:   "exchange failed",
				Code:    "EXCHANGE_FAILED",
				Message: err.Error(),
			})
			return
		}

		h.logger.Error("exchange failed unexpectedly", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to process exchange")
		return
	}

	h.logger.Info("exchange submitted",
		zap.String("user_id", userID.String()),
		zap.String("order_id", result.Order.ID.String()),
		zap.Int64("points_used", result.Order.PointsUsed),
	)
	middleware.RespondWithJSON(w, http.StatusOK, exchangeResponse{
		ExchangeID:      result.Order.ID.String(),
		PointsUsed:      result.Order.PointsUsed,
		RemainingPoints: result.RemainingPoints,
	})
}

// ListMine handles GET /api/exchanges
func (h *ExchangeHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	page, pageSize := pagination(r)

	orders, total, err := h.exchangeService.ListByUser(r.Context(), userID, page, pageSize)
	if err != nil {
		h.logger.Error("failed to list exchanges", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to list exchanges")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, listResponse{Items: orders, Total: total, Page: page, PageSize: pageSize})
}

// AdminList handles GET /api/admin/exchanges
func (h *ExchangeHandler) AdminList(w http.ResponseWriter, r *http.Request) {
	filter := repository.ExchangeOrderFilter{}

	if statusParam := r.URL.Query().Get("status"); statusParam != "" {
		status := domain.ExchangeStatus(statusParam)
		if !status.Valid() {
			middleware.RespondWithError(w, http.StatusBadRequest, "invalid status filter")
			return
		}
		filter.Status = &status
	}

	if userParam := r.URL.Query().Get("user_id"); userParam != "" {
		userID, err := uuid.Parse(userParam)
		if err != nil {
			middleware.RespondWithError(w, http.StatusBadRequest, "invalid user_id filter")
			return
		}
		filter.UserID = &userID
	}

	page, pageSize := pagination(r)

	orders, total, err := h.exchangeService.List(r.Context(), filter, page, pageSize)
	if err != nil {
		h.logger.Error("failed to list exchanges for admin", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to list exchanges")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, listResponse{Items: orders, Total: total, Page: page, PageSize: pageSize})
}

// AdminGet handles GET /api/admin/exchanges/{id}
func (h *ExchangeHandler) AdminGet(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid order ID")
		return
	}

	order, err := h.exchangeService.GetByID(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			middleware.RespondWithError(w, http.StatusNotFound, "exchange order not found")
			return
		}
		h.logger.Error("failed to get exchange order", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to get exchange order")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, order)
}

// AdminUpdateStatus handles PATCH /api/admin/exchanges/{id}/status
func (h *ExchangeHandler) AdminUpdateStatus(w http.ResponseWriter, r *http.Request) {
	actorID, ok := currentUserID(r)
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid order ID")
		return
	}

	var req updateStatusRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.statusService.UpdateStatus(r.Context(), service.UpdateStatusInput{
		OrderID:        orderID,
		Status:         domain.ExchangeStatus(req.Status),
		Notes:          req.Notes,
		TrackingNumber: req.TrackingNumber,
		ActorID:        actorID,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrOrderNotFound):
			middleware.RespondWithError(w, http.StatusNotFound, "exchange order not found")
		case errors.Is(err, domain.ErrInvalidStatus), errors.Is(err, domain.ErrInvalidTransition):
			middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
		default:
			h.logger.Error("failed to update exchange status", zap.Error(err))
			middleware.RespondWithError(w, http.StatusInternalServerError, "failed to update exchange status")
		}
		return
	}

	h.logger.Info("exchange status updated",
		zap.String("order_id", order.ID.String()),
		zap.String("status", string(order.Status)),
	)
	middleware.RespondWithJSON(w, http.StatusOK, order)
}

// currentUserID extracts the authenticated user's ID from the request context
func currentUserID(r *http.Request) (uuid.UUID, bool) {
	idStr, ok := middleware.GetUserID(r.Context())
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// pagination parses page/page_size query parameters with sane bounds
func pagination(r *http.Request) (page, pageSize int) {
	page = 1
	pageSize = 20

	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 0 {
		page = p
	}
	if ps, err := strconv.Atoi(r.URL.Query().Get("page_size")); err == nil && ps > 0 && ps <= 100 {
		pageSize = ps
	}
	return page, pageSize
}
