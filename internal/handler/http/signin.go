package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/klarna/sfcc-klarna-payments-sub001/internal/provider"
	"github.com/klarna/sfcc-klarna-payments-sub001/internal/signin"
	"github.com/klarna/sfcc-klarna-payments-sub001/pkg/httputil"
	"github.com/klarna/sfcc-klarna-payments-sub001/pkg/validator"
)

// SignInService validates and refreshes sign-in tokens.
type SignInService interface {
	Verify(ctx context.Context, country, idToken string) (*signin.Claims, error)
	Refresh(ctx context.Context, country, refreshToken string) (*provider.TokenResponse, error)
}

// SignInHandler handles HTTP requests for sign-in endpoints.
type SignInHandler struct {
	service SignInService
	logger  *slog.Logger
}

// NewSignInHandler creates a new sign-in HTTP handler.
func NewSignInHandler(svc SignInService, logger *slog.Logger) *SignInHandler {
	return &SignInHandler{service: svc, logger: logger}
}

// VerifyRequest is the JSON request body for validating an id token.
type VerifyRequest struct {
	Country string `json:"country" validate:"required,len=2"`
	IDToken string `json:"id_token" validate:"required"`
}

// RefreshRequest is the JSON request body for refreshing sign-in tokens.
type RefreshRequest struct {
	Country      string `json:"country" validate:"required,len=2"`
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// VerifyResponse carries the identity extracted from a valid id token.
type VerifyResponse struct {
	Subject       string `json:"subject"`
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified"`
	GivenName     string `json:"given_name,omitempty"`
	FamilyName    string `json:"family_name,omitempty"`
}

// Verify handles POST /api/v1/signin/verify
func (h *SignInHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	claims, err := h.service.Verify(r.Context(), req.Country, req.IDToken)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, VerifyResponse{
		Subject:       claims.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		GivenName:     claims.GivenName,
		FamilyName:    claims.FamilyName,
	})
}

// Refresh handles POST /api/v1/signin/refresh
func (h *SignInHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	tokens, err := h.service.Refresh(r.Context(), req.Country, req.RefreshToken)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, tokens)
}
