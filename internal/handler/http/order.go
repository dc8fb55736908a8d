package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/klarna/sfcc-klarna-payments-sub001/internal/domain"
	"github.com/klarna/sfcc-klarna-payments-sub001/internal/service"
	"github.com/klarna/sfcc-klarna-payments-sub001/pkg/httputil"
	"github.com/klarna/sfcc-klarna-payments-sub001/pkg/validator"
)

// OrderService is the order lifecycle coordinator as seen by the HTTP layer.
type OrderService interface {
	PlaceOrder(ctx context.Context, input *service.PlaceOrderInput) (*domain.Order, error)
	GetOrder(ctx context.Context, orderNo string) (*domain.Order, error)
	RefreshOrder(ctx context.Context, orderNo string) (*domain.Order, error)
	Capture(ctx context.Context, orderNo string, amount int64) (*domain.Order, error)
	Cancel(ctx context.Context, orderNo string) (*domain.Order, error)
	HandleFraudNotification(ctx context.Context, country, providerOrderID, eventType string) error
	ClearSettlementData(ctx context.Context, orderNo string) error
}

// OrderHandler handles HTTP requests for order endpoints.
type OrderHandler struct {
	service OrderService
	logger  *slog.Logger
}

// NewOrderHandler creates a new order HTTP handler.
func NewOrderHandler(svc OrderService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{service: svc, logger: logger}
}

// CaptureRequest is the JSON request body for capturing an order. A zero or
// missing amount captures what is left.
type CaptureRequest struct {
	Amount int64 `json:"amount" validate:"gte=0"`
}

// FraudNotification is the body the provider pushes on a fraud decision.
type FraudNotification struct {
	OrderID   string `json:"order_id" validate:"required"`
	EventType string `json:"event_type" validate:"required"`
	EventID   string `json:"event_id,omitempty"`
}

// PlaceOrder handles POST /api/v1/orders
func (h *OrderHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req service.PlaceOrderInput
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	order, err := h.service.PlaceOrder(r.Context(), &req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusCreated, order)
}

// GetOrder handles GET /api/v1/orders/{orderNo}
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.GetOrder(r.Context(), chi.URLParam(r, "orderNo"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, order)
}

// RefreshOrder handles POST /api/v1/orders/{orderNo}/refresh
func (h *OrderHandler) RefreshOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.RefreshOrder(r.Context(), chi.URLParam(r, "orderNo"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, order)
}

// Capture handles POST /api/v1/orders/{orderNo}/capture
func (h *OrderHandler) Capture(w http.ResponseWriter, r *http.Request) {
	var req CaptureRequest
	if err := decodeOptional(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	order, err := h.service.Capture(r.Context(), chi.URLParam(r, "orderNo"), req.Amount)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, order)
}

// Cancel handles POST /api/v1/orders/{orderNo}/cancel
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.Cancel(r.Context(), chi.URLParam(r, "orderNo"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, order)
}

// ClearSettlement handles POST /api/v1/orders/{orderNo}/settlement/clear
func (h *OrderHandler) ClearSettlement(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ClearSettlementData(r.Context(), chi.URLParam(r, "orderNo")); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// FraudNotification handles POST /webhooks/klarna/fraud?klarna_country=XX.
// The provider always gets a 200; failures are logged.
func (h *OrderHandler) FraudNotification(w http.ResponseWriter, r *http.Request) {
	var req FraudNotification
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		h.logger.WarnContext(r.Context(), "ignoring malformed fraud notification", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusOK)
		return
	}

	country := r.URL.Query().Get("klarna_country")
	if err := h.service.HandleFraudNotification(r.Context(), country, req.OrderID, req.EventType); err != nil {
		h.logger.ErrorContext(r.Context(), "fraud notification failed",
			slog.String("provider_order_id", req.OrderID),
			slog.String("event_type", req.EventType),
			slog.String("error", err.Error()),
		)
	}
	w.WriteHeader(http.StatusOK)
}

// decodeOptional is DecodeAndValidate that accepts an empty body.
func decodeOptional(r *http.Request, dst any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return validator.Validate(dst)
	}
	err := json.NewDecoder(io.LimitReader(r.Body, validator.MaxBodyBytes)).Decode(dst)
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return validator.Validate(dst)
}
