package transport

import (
	"net/http"

	"greenpoints/internal/middleware"
	"greenpoints/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// PointsHandler serves the caller's points ledger history
type PointsHandler struct {
	pointsService service.PointsService
	logger        *zap.Logger
}

// NewPointsHandler creates a new PointsHandler
func NewPointsHandler(pointsService service.PointsService, logger *zap.Logger) *PointsHandler {
	return &PointsHandler{
		pointsService: pointsService,
		logger:        logger,
	}
}

// RegisterRoutes registers all points routes
func (h *PointsHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/api/points/ledger", h.Ledger)
	})
}

// Ledger handles GET /api/points/ledger
func (h *PointsHandler) Ledger(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	page, pageSize := pagination(r)

	entries, total, err := h.pointsService.History(r.Context(), userID, page, pageSize)
	if err != nil {
		h.logger.Error("failed to list ledger entries", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to list ledger entries")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, listResponse{Items: entries, Total: total, Page: page, PageSize: pageSize})
}
