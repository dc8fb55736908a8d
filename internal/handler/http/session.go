package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/klarna/sfcc-klarna-payments-sub001/internal/domain"
	"github.com/klarna/sfcc-klarna-payments-sub001/pkg/httputil"
	"github.com/klarna/sfcc-klarna-payments-sub001/pkg/validator"
)

// SessionService is the session coordinator as seen by the HTTP layer.
type SessionService interface {
	CreateOrUpdateSession(ctx context.Context, shopperKey string, cart *domain.CartSnapshot) (*domain.PaymentSession, error)
	GetSession(ctx context.Context, shopperKey, locale string) (*domain.PaymentSession, error)
	ClearSession(ctx context.Context, shopperKey string) error
	StoreAuthorization(ctx context.Context, shopperKey, token string, finalizeRequired bool) (*domain.PaymentSession, error)
	CancelAuthorization(ctx context.Context, shopperKey string) error
}

// SessionHandler handles HTTP requests for payment session endpoints.
type SessionHandler struct {
	service SessionService
	logger  *slog.Logger
}

// NewSessionHandler creates a new session HTTP handler.
func NewSessionHandler(svc SessionService, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{service: svc, logger: logger}
}

// StoreAuthorizationRequest is the JSON request body for storing the token
// returned by the payment widget.
type StoreAuthorizationRequest struct {
	AuthorizationToken string `json:"authorization_token" validate:"required"`
	FinalizeRequired   bool   `json:"finalize_required"`
}

// SessionResponse is the storefront view of a session. The authorization
// token stays server side.
type SessionResponse struct {
	SessionID               string                         `json:"session_id"`
	ClientToken             string                         `json:"client_token"`
	PaymentMethodCategories []domain.PaymentMethodCategory `json:"payment_method_categories"`
	Locale                  string                         `json:"locale"`
	ExpiresAt               string                         `json:"expires_at"`
	Authorized              bool                           `json:"authorized"`
	FinalizeRequired        bool                           `json:"finalize_required"`
}

func toSessionResponse(s *domain.PaymentSession) SessionResponse {
	return SessionResponse{
		SessionID:               s.SessionID,
		ClientToken:             s.ClientToken,
		PaymentMethodCategories: s.PaymentMethodCategories,
		Locale:                  s.Locale,
		ExpiresAt:               s.ExpiresAt.UTC().Format(time.RFC3339),
		Authorized:              s.AuthorizationToken != "",
		FinalizeRequired:        s.FinalizeRequired,
	}
}

// PutSession handles PUT /api/v1/sessions/{shopperKey}
func (h *SessionHandler) PutSession(w http.ResponseWriter, r *http.Request) {
	var cart domain.CartSnapshot
	if err := validator.DecodeAndValidate(r, &cart); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	session, err := h.service.CreateOrUpdateSession(r.Context(), chi.URLParam(r, "shopperKey"), &cart)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, toSessionResponse(session))
}

// GetSession handles GET /api/v1/sessions/{shopperKey}?locale=
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.GetSession(r.Context(), chi.URLParam(r, "shopperKey"), r.URL.Query().Get("locale"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, toSessionResponse(session))
}

// DeleteSession handles DELETE /api/v1/sessions/{shopperKey}
func (h *SessionHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ClearSession(r.Context(), chi.URLParam(r, "shopperKey")); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// StoreAuthorization handles POST /api/v1/sessions/{shopperKey}/authorization
func (h *SessionHandler) StoreAuthorization(w http.ResponseWriter, r *http.Request) {
	var req StoreAuthorizationRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	session, err := h.service.StoreAuthorization(r.Context(), chi.URLParam(r, "shopperKey"), req.AuthorizationToken, req.FinalizeRequired)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, toSessionResponse(session))
}

// CancelAuthorization handles DELETE /api/v1/sessions/{shopperKey}/authorization
func (h *SessionHandler) CancelAuthorization(w http.ResponseWriter, r *http.Request) {
	if err := h.service.CancelAuthorization(r.Context(), chi.URLParam(r, "shopperKey")); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
