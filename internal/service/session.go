package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/klarna/sfcc-klarna-payments-sub001/internal/builder"
	"github.com/klarna/sfcc-klarna-payments-sub001/internal/domain"
	"github.com/klarna/sfcc-klarna-payments-sub001/internal/provider"
	"github.com/klarna/sfcc-klarna-payments-sub001/internal/repository"
	apperrors "github.com/klarna/sfcc-klarna-payments-sub001/pkg/errors"
	"github.com/klarna/sfcc-klarna-payments-sub001/pkg/logger"
)

// SessionCoordinator keeps one provider checkout session per shopper in sync
// with the shopper's cart.
type SessionCoordinator struct {
	store   repository.SessionStore
	caller  provider.Caller
	builder *builder.Builder
	locales LocaleResolver
	ttl     time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

// NewSessionCoordinator creates a session coordinator. ttl is the lifetime of
// a provider session counted from its creation.
func NewSessionCoordinator(
	store repository.SessionStore,
	caller provider.Caller,
	b *builder.Builder,
	locales LocaleResolver,
	ttl time.Duration,
	logger *slog.Logger,
) *SessionCoordinator {
	return &SessionCoordinator{
		store:   store,
		caller:  caller,
		builder: b,
		locales: locales,
		ttl:     ttl,
		now:     func() time.Time { return time.Now().UTC() },
		logger:  logger,
	}
}

// CreateOrUpdateSession refreshes the shopper's session when a valid one is
// cached for the cart's locale and creates a new one otherwise. Any failure
// clears the cached session so the next call starts over.
func (s *SessionCoordinator) CreateOrUpdateSession(ctx context.Context, shopperKey string, cart *domain.CartSnapshot) (*domain.PaymentSession, error) {
	if shopperKey == "" {
		return nil, apperrors.InvalidInput("shopper key is required")
	}
	if cart == nil {
		return nil, apperrors.InvalidInput("cart is required")
	}
	ctx = logger.WithShopperKey(ctx, shopperKey)
	log := logger.WithContext(ctx, s.logger)

	settings, err := resolve(s.locales, cart.Country)
	if err != nil {
		log.WarnContext(ctx, "no locale settings for cart country", slog.String("country", cart.Country))
		return nil, checkoutError(err)
	}
	locale := domain.NormalizeLocale(builder.WireLocale(cart.Locale, settings.Locale))

	current := s.cached(ctx, shopperKey)

	var session *domain.PaymentSession
	if current.HasValidSession(locale, s.now()) {
		session, err = s.refresh(ctx, current, cart, settings)
	} else {
		session, err = s.create(ctx, cart, settings, locale)
	}
	if err == nil {
		err = s.store.Save(ctx, shopperKey, session)
	}
	if err != nil {
		log.ErrorContext(ctx, "payment session failed, clearing cached session",
			slog.String("locale", locale),
			slog.String("error", err.Error()),
		)
		s.clear(ctx, shopperKey)
		return nil, checkoutError(err)
	}

	log.InfoContext(ctx, "payment session ready",
		slog.String("session_id", session.SessionID),
		slog.String("locale", session.Locale),
	)
	return session, nil
}

// GetSession returns the cached session if it is still valid for locale. An
// empty locale skips the locale check.
func (s *SessionCoordinator) GetSession(ctx context.Context, shopperKey, locale string) (*domain.PaymentSession, error) {
	session, err := s.store.Get(ctx, shopperKey)
	if err != nil {
		return nil, err
	}
	if locale == "" {
		locale = session.Locale
	}
	if !session.HasValidSession(locale, s.now()) {
		return nil, apperrors.NotFound("payment session", shopperKey)
	}
	return session, nil
}

// ClearSession drops the shopper's cached session.
func (s *SessionCoordinator) ClearSession(ctx context.Context, shopperKey string) error {
	if err := s.store.Clear(ctx, shopperKey); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// StoreAuthorization records the authorization token obtained by the
// storefront widget on the cached session.
func (s *SessionCoordinator) StoreAuthorization(ctx context.Context, shopperKey, token string, finalizeRequired bool) (*domain.PaymentSession, error) {
	if token == "" {
		return nil, apperrors.InvalidInput("authorization token is required")
	}
	session, err := s.store.Get(ctx, shopperKey)
	if err != nil {
		return nil, err
	}
	session.AuthorizationToken = token
	session.FinalizeRequired = finalizeRequired
	if err := s.store.Save(ctx, shopperKey, session); err != nil {
		return nil, fmt.Errorf("save authorization: %w", err)
	}
	return session, nil
}

// CancelAuthorization deletes the pending authorization at the provider and
// drops the cached token once the provider confirmed it.
func (s *SessionCoordinator) CancelAuthorization(ctx context.Context, shopperKey string) error {
	ctx = logger.WithShopperKey(ctx, shopperKey)
	log := logger.WithContext(ctx, s.logger)

	session, err := s.store.Get(ctx, shopperKey)
	if err != nil {
		return err
	}
	if session.AuthorizationToken == "" {
		return apperrors.NotFound("authorization", shopperKey)
	}
	settings, err := resolve(s.locales, session.Country)
	if err != nil {
		return checkoutError(err)
	}

	if _, err := s.caller.Call(ctx, provider.Request{
		Endpoint:     provider.EndpointAuthorizationCancel,
		CredentialID: settings.CredentialID,
		PathParams:   []string{session.AuthorizationToken},
	}); err != nil {
		log.ErrorContext(ctx, "cancel authorization failed", slog.String("error", err.Error()))
		return checkoutError(err)
	}

	session.ClearAuthorization()
	if err := s.store.Save(ctx, shopperKey, session); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	log.InfoContext(ctx, "authorization cancelled", slog.String("session_id", session.SessionID))
	return nil
}

func (s *SessionCoordinator) create(ctx context.Context, cart *domain.CartSnapshot, settings *provider.LocaleSettings, locale string) (*domain.PaymentSession, error) {
	body, err := s.builder.Session(cart, settings)
	if err != nil {
		return nil, err
	}
	resp, err := s.caller.Call(ctx, provider.Request{
		Endpoint:     provider.EndpointSessionCreate,
		CredentialID: settings.CredentialID,
		Body:         body.Request,
	})
	if err != nil {
		return nil, err
	}

	var created provider.SessionResponse
	if err := resp.Decode(&created); err != nil {
		return nil, &provider.Error{Kind: provider.KindTransport, Endpoint: provider.EndpointSessionCreate, Err: err}
	}
	if created.SessionID == "" {
		return nil, missingResult(provider.EndpointSessionCreate, "session_id")
	}

	now := s.now()
	return &domain.PaymentSession{
		SessionID:               created.SessionID,
		ClientToken:             created.ClientToken,
		PaymentMethodCategories: toCategories(created.PaymentMethodCategories),
		Locale:                  locale,
		Country:                 settings.Country,
		CreatedAt:               now,
		ExpiresAt:               now.Add(s.ttl),
	}, nil
}

// refresh pushes the current cart into the session and reads it back, since
// the update call does not return the payment method list.
func (s *SessionCoordinator) refresh(ctx context.Context, current *domain.PaymentSession, cart *domain.CartSnapshot, settings *provider.LocaleSettings) (*domain.PaymentSession, error) {
	body, err := s.builder.Session(cart, settings)
	if err != nil {
		return nil, err
	}
	if _, err := s.caller.Call(ctx, provider.Request{
		Endpoint:     provider.EndpointSessionUpdate,
		CredentialID: settings.CredentialID,
		PathParams:   []string{current.SessionID},
		Body:         body.Request,
	}); err != nil {
		return nil, err
	}

	resp, err := s.caller.Call(ctx, provider.Request{
		Endpoint:     provider.EndpointSessionGet,
		CredentialID: settings.CredentialID,
		PathParams:   []string{current.SessionID},
	})
	if err != nil {
		return nil, err
	}
	var read provider.SessionReadResponse
	if err := resp.Decode(&read); err != nil {
		return nil, &provider.Error{Kind: provider.KindTransport, Endpoint: provider.EndpointSessionGet, Err: err}
	}

	updated := *current
	if read.ClientToken != "" {
		updated.ClientToken = read.ClientToken
	}
	updated.PaymentMethodCategories = toCategories(read.PaymentMethodCategories)
	if exp, err := time.Parse(time.RFC3339, read.ExpiresAt); err == nil && exp.Before(updated.ExpiresAt) {
		updated.ExpiresAt = exp.UTC()
	}
	// The cart changed, so an earlier authorization no longer matches it.
	updated.ClearAuthorization()
	return &updated, nil
}

// cached returns the stored session or nil. A store failure is treated as a
// missing session.
func (s *SessionCoordinator) cached(ctx context.Context, shopperKey string) *domain.PaymentSession {
	session, err := s.store.Get(ctx, shopperKey)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			s.logger.WarnContext(ctx, "failed to read cached session", slog.String("error", err.Error()))
		}
		return nil
	}
	return session
}

func (s *SessionCoordinator) clear(ctx context.Context, shopperKey string) {
	if err := s.store.Clear(ctx, shopperKey); err != nil {
		s.logger.ErrorContext(ctx, "failed to clear cached session",
			slog.String("shopper_key", shopperKey),
			slog.String("error", err.Error()),
		)
	}
}

func toCategories(in []provider.PaymentMethodCategory) []domain.PaymentMethodCategory {
	out := make([]domain.PaymentMethodCategory, 0, len(in))
	for _, c := range in {
		out = append(out, domain.PaymentMethodCategory{
			Identifier:     c.Identifier,
			Name:           c.Name,
			DescriptiveURL: c.AssetURLs.Descriptive,
			StandardURL:    c.AssetURLs.Standard,
		})
	}
	return out
}
