package signin

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/klarna/sfcc-klarna-payments-sub001/internal/provider"
	apperrors "github.com/klarna/sfcc-klarna-payments-sub001/pkg/errors"
)

const grantTypeRefreshToken = "refresh_token"

// LocaleResolver resolves the provider settings of a country.
type LocaleResolver interface {
	Resolve(country string) (provider.LocaleSettings, error)
}

// Claims are the claims of a sign-in id token.
type Claims struct {
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified,omitempty"`
	GivenName     string `json:"given_name,omitempty"`
	FamilyName    string `json:"family_name,omitempty"`
	jwt.RegisteredClaims
}

// Service validates sign-in id tokens and refreshes sign-in tokens.
type Service struct {
	caller  provider.Caller
	keys    *KeyCache
	locales LocaleResolver
	leeway  time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

// NewService creates a sign-in service.
func NewService(caller provider.Caller, keys *KeyCache, locales LocaleResolver, logger *slog.Logger) *Service {
	return &Service{
		caller:  caller,
		keys:    keys,
		locales: locales,
		leeway:  30 * time.Second,
		now:     time.Now,
		logger:  logger,
	}
}

// Verify checks the RS256 signature of an id token against the provider's
// keys for the country and then its expiry. When the country has a sign-in
// client id, the token audience must contain it.
func (s *Service) Verify(ctx context.Context, country, idToken string) (*Claims, error) {
	if idToken == "" {
		return nil, apperrors.InvalidInput("id_token is required")
	}
	settings, err := s.locales.Resolve(country)
	if err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(s.leeway),
		jwt.WithTimeFunc(s.now),
	}
	if settings.SignInClientID != "" {
		opts = append(opts, jwt.WithAudience(settings.SignInClientID))
	}

	claims := &Claims{}
	if _, err := jwt.NewParser(opts...).ParseWithClaims(idToken, claims, s.keys.Keyfunc(ctx, settings.CredentialID)); err != nil {
		if errors.Is(err, ErrKeysUnavailable) {
			s.logger.ErrorContext(ctx, "sign-in keys unavailable", slog.String("error", err.Error()))
			return nil, apperrors.ServiceUnavailable("sign-in verification unavailable", err)
		}
		s.logger.WarnContext(ctx, "sign-in token rejected", slog.String("error", err.Error()))
		return nil, apperrors.Unauthorized("invalid sign-in token")
	}
	return claims, nil
}

// Refresh exchanges a sign-in refresh token for new tokens.
func (s *Service) Refresh(ctx context.Context, country, refreshToken string) (*provider.TokenResponse, error) {
	if refreshToken == "" {
		return nil, apperrors.InvalidInput("refresh_token is required")
	}
	settings, err := s.locales.Resolve(country)
	if err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}
	if settings.SignInClientID == "" {
		return nil, apperrors.InvalidInput("sign-in is not configured for " + settings.Country)
	}

	resp, err := s.caller.Call(ctx, provider.Request{
		Endpoint:     provider.EndpointSignInRefresh,
		CredentialID: settings.CredentialID,
		Body: &provider.TokenRefreshRequest{
			GrantType:    grantTypeRefreshToken,
			RefreshToken: refreshToken,
			ClientID:     settings.SignInClientID,
		},
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "sign-in token refresh failed", slog.String("error", err.Error()))
		if errors.Is(err, provider.ErrProviderRejected) || errors.Is(err, provider.ErrNotFound) {
			return nil, apperrors.Unauthorized("refresh token rejected")
		}
		return nil, apperrors.ServiceUnavailable("sign-in refresh unavailable", err)
	}

	var tokens provider.TokenResponse
	if err := resp.Decode(&tokens); err != nil {
		return nil, apperrors.ServiceUnavailable("sign-in refresh unavailable", err)
	}
	if tokens.AccessToken == "" {
		return nil, apperrors.ServiceUnavailable("sign-in refresh unavailable", errors.New("response has no access_token"))
	}
	return &tokens, nil
}
