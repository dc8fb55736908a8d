// Package service holds the payment coordinators. They catch provider and
// builder failures at their boundary, log them with masked context and hand
// callers a classified application error instead.
package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/klarna/sfcc-klarna-payments-sub001/internal/provider"
	apperrors "github.com/klarna/sfcc-klarna-payments-sub001/pkg/errors"
)

// idempotencyNamespace seeds the deterministic idempotency keys sent with
// money-moving calls.
var idempotencyNamespace = uuid.MustParse("a816ddbd-a949-4312-8041-eb4d5355f2c6")

// idempotencyKey derives a stable key from parts, so a replayed call carries
// the same key as the original.
func idempotencyKey(parts ...string) string {
	var b []byte
	for i, p := range parts {
		if i > 0 {
			b = append(b, '|')
		}
		b = append(b, p...)
	}
	return uuid.NewSHA1(idempotencyNamespace, b).String()
}

// TxManager runs a unit of work: it commits when fn returns nil and rolls
// back otherwise. *database.TxManager implements it.
type TxManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// LocaleResolver resolves the provider settings of a purchase country.
// *provider.LocaleCatalogue implements it.
type LocaleResolver interface {
	Resolve(country string) (provider.LocaleSettings, error)
}

// checkoutError maps a failure to what a storefront caller sees. Bad local
// input stays a 400; everything else becomes the generic retryable payment
// failure.
func checkoutError(err error) error {
	var appErr *apperrors.AppError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, provider.ErrUnknownCountry):
		return apperrors.InvalidInput(err.Error())
	case errors.Is(err, provider.ErrValidation):
		return apperrors.InvalidInput(err.Error())
	}
	return apperrors.PaymentUnavailable(err)
}

// providerFailure maps a failed back-office provider call. Unlike checkout
// calls these keep the provider's verdict visible to the caller.
func providerFailure(message string, err error) error {
	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, provider.ErrValidation):
		return apperrors.InvalidInput(err.Error())
	case errors.Is(err, provider.ErrNotFound), errors.Is(err, provider.ErrProviderRejected):
		return apperrors.PaymentFailed(message, err)
	}
	return apperrors.ServiceUnavailable(message, err)
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}

// missingResult reports a 2xx whose body lacks the field the caller needs.
// It counts as a transport failure: no usable result was obtained.
func missingResult(endpoint provider.Endpoint, field string) error {
	return &provider.Error{
		Kind:     provider.KindTransport,
		Endpoint: endpoint,
		Err:      fmt.Errorf("response has no %s", field),
	}
}

func resolve(locales LocaleResolver, country string) (*provider.LocaleSettings, error) {
	settings, err := locales.Resolve(country)
	if err != nil {
		return nil, err
	}
	return &settings, nil
}
