package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/klarna/sfcc-klarna-payments-sub001/internal/domain"
	"github.com/klarna/sfcc-klarna-payments-sub001/internal/provider"
	"github.com/klarna/sfcc-klarna-payments-sub001/internal/service"
	apperrors "github.com/klarna/sfcc-klarna-payments-sub001/pkg/errors"
	"github.com/klarna/sfcc-klarna-payments-sub001/pkg/httputil"
	"github.com/klarna/sfcc-klarna-payments-sub001/pkg/validator"
)

// WebhookService manages provider notification webhooks.
type WebhookService interface {
	Register(ctx context.Context, input *service.RegisterWebhookInput) (*provider.WebhookResponse, error)
	Delete(ctx context.Context, country, webhookID string) error
}

// RecurringRunner runs one recurring charge pass.
type RecurringRunner interface {
	Run(ctx context.Context, today domain.Date) (*service.RunSummary, error)
}

// AdminHandler handles merchant back-office endpoints.
type AdminHandler struct {
	webhooks  WebhookService
	recurring RecurringRunner
	now       func() time.Time
	logger    *slog.Logger
}

// NewAdminHandler creates a new admin HTTP handler.
func NewAdminHandler(webhooks WebhookService, recurring RecurringRunner, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{webhooks: webhooks, recurring: recurring, now: time.Now, logger: logger}
}

// RunRecurringRequest is the JSON request body for a manual charge pass.
// An empty date runs the pass for today.
type RunRecurringRequest struct {
	Date string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

// RegisterWebhook handles POST /api/v1/admin/webhooks
func (h *AdminHandler) RegisterWebhook(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterWebhookInput
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	webhook, err := h.webhooks.Register(r.Context(), &req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusCreated, webhook)
}

// DeleteWebhook handles DELETE /api/v1/admin/webhooks/{webhookID}?country=XX
func (h *AdminHandler) DeleteWebhook(w http.ResponseWriter, r *http.Request) {
	err := h.webhooks.Delete(r.Context(), r.URL.Query().Get("country"), chi.URLParam(r, "webhookID"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RunRecurring handles POST /api/v1/admin/recurring/run
func (h *AdminHandler) RunRecurring(w http.ResponseWriter, r *http.Request) {
	var req RunRecurringRequest
	if err := decodeOptional(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	today := domain.NewDate(h.now())
	if req.Date != "" {
		d, err := domain.ParseDate(req.Date)
		if err != nil {
			httputil.WriteError(w, r, apperrors.InvalidInput("date must be YYYY-MM-DD"), h.logger)
			return
		}
		today = d
	}

	summary, err := h.recurring.Run(r.Context(), today)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, summary)
}
