package repository

import (
	"context"

	"github.com/klarna/sfcc-klarna-payments-sub001/internal/domain"
)

// OrderRepository defines the interface for local order persistence.
type OrderRepository interface {
	// Create inserts a new order into the store.
	Create(ctx context.Context, order *domain.Order) error

	// GetByOrderNo retrieves an order by its local order number.
	GetByOrderNo(ctx context.Context, orderNo string) (*domain.Order, error)

	// GetByProviderOrderID retrieves an order by the provider's order id.
	GetByProviderOrderID(ctx context.Context, providerOrderID string) (*domain.Order, error)

	// Update modifies an existing order in the store.
	Update(ctx context.Context, order *domain.Order) error

	// ClearSettlement removes stored virtual card data from an order.
	ClearSettlement(ctx context.Context, orderNo string) error
}

// ProfileRepository stores customer profiles and their subscription list.
// The list is one document; it is always read and written as a whole.
type ProfileRepository interface {
	// Get retrieves a customer profile by customer id.
	Get(ctx context.Context, customerID string) (*domain.CustomerProfile, error)

	// ListWithSubscriptions returns every profile holding at least one
	// subscription, ordered by customer id.
	ListWithSubscriptions(ctx context.Context) ([]domain.CustomerProfile, error)

	// Save creates or replaces a profile including its subscription list.
	Save(ctx context.Context, profile *domain.CustomerProfile) error
}

// SessionStore caches the payment session of a shopper.
type SessionStore interface {
	// Get returns the cached session or a not found error.
	Get(ctx context.Context, shopperKey string) (*domain.PaymentSession, error)

	// Save replaces the cached session.
	Save(ctx context.Context, shopperKey string, session *domain.PaymentSession) error

	// Clear removes the cached session. Clearing a missing session succeeds.
	Clear(ctx context.Context, shopperKey string) error
}
