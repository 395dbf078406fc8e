package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"greenpoints/internal/domain"
	"greenpoints/internal/middleware"
	"greenpoints/internal/repository"
	"greenpoints/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type stubExchangeService struct {
	lastInput service.SubmitExchangeInput
	result    *service.ExchangeResult
	err       error
}

func (s *stubExchangeService) Submit(ctx context.Context, in service.SubmitExchangeInput) (*service.ExchangeResult, error) {
	s.lastInput = in
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func (s *stubExchangeService) GetByID(ctx context.Context, id uuid.UUID) (*domain.ExchangeOrder, error) {
	return nil, domain.ErrOrderNotFound
}

func (s *stubExchangeService) ListByUser(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]*domain.ExchangeOrder, int, error) {
	return []*domain.ExchangeOrder{}, 0, nil
}

func (s *stubExchangeService) List(ctx context.Context, filter repository.ExchangeOrderFilter, page, pageSize int) ([]*domain.ExchangeOrder, int, error) {
	return []*domain.ExchangeOrder{}, 0, nil
}

type stubStatusService struct {
	lastInput service.UpdateStatusInput
	order     *domain.ExchangeOrder
	err       error
}

func (s *stubStatusService) UpdateStatus(ctx context.Context, in service.UpdateStatusInput) (*domain.ExchangeOrder, error) {
	s.lastInput = in
	if s.err != nil {
		return nil, s.err
	}
	return s.order, nil
}

// newExchangeRouter wires the handler behind stand-in middlewares: auth
// injects a fixed user, admin and rate limiting pass through
func newExchangeRouter(exchange service.ExchangeService, status service.StatusService, userID uuid.UUID) chi.Router {
	handler := NewExchangeHandler(exchange, status, zap.NewNop())

	auth := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), middleware.UserIDKey, userID.String())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
	passthrough := func(next http.Handler) http.Handler { return next }

	r := chi.NewRouter()
	handler.RegisterRoutes(r, auth, passthrough, passthrough)
	return r
}

func TestResolveAliases(t *testing.T) {
	decode := func(body string) map[string]json.RawMessage {
		var raw map[string]json.RawMessage
		if err := json.Unmarshal([]byte(body), &raw); err != nil {
			t.Fatalf("bad test body: %v", err)
		}
		return raw
	}

	tests := []struct {
		name string
		body string
		want map[string]string
	}{
		{
			name: "canonical names pass through",
			body: `{"delivery_address": "12 Willow Lane", "contact_phone": "555-0100", "notes": "ring twice"}`,
			want: map[string]string{"delivery_address": "12 Willow Lane", "contact_phone": "555-0100", "notes": "ring twice"},
		},
		{
			name: "legacy aliases are accepted",
			body: `{"address": "12 Willow Lane", "mobile": "555-0100", "remark": "ring twice"}`,
			want: map[string]string{"delivery_address": "12 Willow Lane", "contact_phone": "555-0100", "notes": "ring twice"},
		},
		{
			name: "camelCase aliases are accepted",
			body: `{"deliveryAddress": "12 Willow Lane", "contactPhone": "555-0100"}`,
			want: map[string]string{"delivery_address": "12 Willow Lane", "contact_phone": "555-0100"},
		},
		{
			name: "canonical name wins over alias",
			body: `{"delivery_address": "12 Willow Lane", "address": "99 Elm St"}`,
			want: map[string]string{"delivery_address": "12 Willow Lane"},
		},
		{
			name: "empty values are skipped in favor of a later alias",
			body: `{"delivery_address": "", "shipping_address": "99 Elm St"}`,
			want: map[string]string{"delivery_address": "99 Elm St"},
		},
		{
			name: "non-string values are ignored",
			body: `{"address": 42}`,
			want: map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolveAliases(decode(tt.body), exchangeFieldAliases)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("field %s: expected %q, got %q", k, v, got[k])
				}
			}
		})
	}
}

func TestExchangeHandler_Success(t *testing.T) {
	userID := uuid.New()
	productID := uuid.New()
	orderID := uuid.New()

	stub := &stubExchangeService{
		result: &service.ExchangeResult{
			Order: &domain.ExchangeOrder{
				ID:         orderID,
				UserID:     userID,
				ProductID:  productID,
				Quantity:   2,
				PointsUsed: 400,
				Status:     domain.ExchangeStatusPending,
			},
			RemainingPoints: 100,
		},
	}
	router := newExchangeRouter(stub, &stubStatusService{}, userID)

	body := `{"quantity": 2, "address": "12 Willow Lane", "phone": "555-0100"}`
	req := httptest.NewRequest(http.MethodPost, "/api/products/"+productID.String()+"/exchange", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	// Aliases reached the service under their canonical names
	if stub.lastInput.DeliveryAddress != "12 Willow Lane" {
		t.Errorf("address alias not resolved: %q", stub.lastInput.DeliveryAddress)
	}
	if stub.lastInput.ContactPhone != "555-0100" {
		t.Errorf("phone alias not resolved: %q", stub.lastInput.ContactPhone)
	}
	if stub.lastInput.Quantity != 2 {
		t.Errorf("expected quantity 2, got %d", stub.lastInput.Quantity)
	}
	if stub.lastInput.UserID != userID {
		t.Errorf("wrong user ID passed to service")
	}

	var resp exchangeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if resp.ExchangeID != orderID.String() {
		t.Errorf("expected exchange_id %s, got %s", orderID, resp.ExchangeID)
	}
	if resp.PointsUsed != 400 {
		t.Errorf("expected points_used 400, got %d", resp.PointsUsed)
	}
	if resp.RemainingPoints != 100 {
		t.Errorf("expected remaining_points 100, got %d", resp.RemainingPoints)
	}
}

func TestExchangeHandler_DomainFailureEnvelope(t *testing.T) {
	cases := []error{
		domain.ErrInsufficientPoints,
		domain.ErrInsufficientStock,
		domain.ErrProductUnavailable,
		domain.ErrProductNotFound,
	}

	for _, cause := range cases {
		t.Run(cause.Error(), func(t *testing.T) {
			userID := uuid.New()
			stub := &stubExchangeService{err: cause}
			router := newExchangeRouter(stub, &stubStatusService{}, userID)

			req := httptest.NewRequest(http.MethodPost, "/api/products/"+uuid.New().String()+"/exchange", strings.NewReader(`{}`))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}

			var resp exchangeErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("bad response body: %v", err)
			}
			if resp.Code != "EXCHANGE_FAILED" {
				t.Errorf("expected code EXCHANGE_FAILED, got %q", resp.Code)
			}
			if resp.Message != cause.Error() {
				t.Errorf("domain error should surface verbatim: expected %q, got %q", cause.Error(), resp.Message)
			}
		})
	}
}

func TestExchangeHandler_UnexpectedFailureIsGeneric(t *testing.T) {
	userID := uuid.New()
	stub := &stubExchangeService{err: errors.New("pq: connection reset")}
	router := newExchangeRouter(stub, &stubStatusService{}, userID)

	req := httptest.NewRequest(http.MethodPost, "/api/products/"+uuid.New().String()+"/exchange", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "connection reset") {
		t.Errorf("internal error details leaked to the client: %s", rec.Body.String())
	}
}

func TestExchangeHandler_IdempotencyKeySources(t *testing.T) {
	t.Run("header", func(t *testing.T) {
		userID := uuid.New()
		stub := &stubExchangeService{result: &service.ExchangeResult{Order: &domain.ExchangeOrder{ID: uuid.New()}}}
		router := newExchangeRouter(stub, &stubStatusService{}, userID)

		req := httptest.NewRequest(http.MethodPost, "/api/products/"+uuid.New().String()+"/exchange", strings.NewReader(`{}`))
		req.Header.Set("Idempotency-Key", "hdr-key")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if stub.lastInput.IdempotencyKey != "hdr-key" {
			t.Errorf("expected header key, got %q", stub.lastInput.IdempotencyKey)
		}
	})

	t.Run("body fallback", func(t *testing.T) {
		userID := uuid.New()
		stub := &stubExchangeService{result: &service.ExchangeResult{Order: &domain.ExchangeOrder{ID: uuid.New()}}}
		router := newExchangeRouter(stub, &stubStatusService{}, userID)

		req := httptest.NewRequest(http.MethodPost, "/api/products/"+uuid.New().String()+"/exchange", strings.NewReader(`{"idempotency_key": "body-key"}`))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if stub.lastInput.IdempotencyKey != "body-key" {
			t.Errorf("expected body key, got %q", stub.lastInput.IdempotencyKey)
		}
	})

	t.Run("header wins over body", func(t *testing.T) {
		userID := uuid.New()
		stub := &stubExchangeService{result: &service.ExchangeResult{Order: &domain.ExchangeOrder{ID: uuid.New()}}}
		router := newExchangeRouter(stub, &stubStatusService{}, userID)

		req := httptest.NewRequest(http.MethodPost, "/api/products/"+uuid.New().String()+"/exchange", strings.NewReader(`{"idempotency_key": "body-key"}`))
		req.Header.Set("Idempotency-Key", "hdr-key")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if stub.lastInput.IdempotencyKey != "hdr-key" {
			t.Errorf("expected header key to win, got %q", stub.lastInput.IdempotencyKey)
		}
	})
}

func TestExchangeHandler_InvalidProductID(t *testing.T) {
	router := newExchangeRouter(&stubExchangeService{}, &stubStatusService{}, uuid.New())

	req := httptest.NewRequest(http.MethodPost, "/api/products/not-a-uuid/exchange", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed product ID, got %d", rec.Code)
	}
}

func TestExchangeHandler_AdminUpdateStatus(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		userID := uuid.New()
		orderID := uuid.New()
		stub := &stubStatusService{
			order: &domain.ExchangeOrder{ID: orderID, Status: domain.ExchangeStatusShipped, TrackingNumber: "TRK123"},
		}
		router := newExchangeRouter(&stubExchangeService{}, stub, userID)

		body := `{"status": "shipped", "tracking_number": "TRK123"}`
		req := httptest.NewRequest(http.MethodPatch, "/api/admin/exchanges/"+orderID.String()+"/status", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if stub.lastInput.Status != domain.ExchangeStatusShipped {
			t.Errorf("expected shipped, got %s", stub.lastInput.Status)
		}
		if stub.lastInput.TrackingNumber != "TRK123" {
			t.Errorf("tracking number not forwarded: %q", stub.lastInput.TrackingNumber)
		}
		if stub.lastInput.ActorID != userID {
			t.Errorf("acting admin not forwarded")
		}
	})

	t.Run("invalid transition", func(t *testing.T) {
		stub := &stubStatusService{
			err: domain.ErrInvalidTransition,
		}
		router := newExchangeRouter(&stubExchangeService{}, stub, uuid.New())

		body := `{"status": "completed"}`
		req := httptest.NewRequest(http.MethodPatch, "/api/admin/exchanges/"+uuid.New().String()+"/status", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("status outside the enum fails validation", func(t *testing.T) {
		stub := &stubStatusService{}
		router := newExchangeRouter(&stubExchangeService{}, stub, uuid.New())

		body := `{"status": "refunded"}`
		req := httptest.NewRequest(http.MethodPatch, "/api/admin/exchanges/"+uuid.New().String()+"/status", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for out-of-enum status, got %d", rec.Code)
		}
	})

	t.Run("unknown order", func(t *testing.T) {
		stub := &stubStatusService{err: domain.ErrOrderNotFound}
		router := newExchangeRouter(&stubExchangeService{}, stub, uuid.New())

		body := `{"status": "processing"}`
		req := httptest.NewRequest(http.MethodPatch, "/api/admin/exchanges/"+uuid.New().String()+"/status", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})
}
