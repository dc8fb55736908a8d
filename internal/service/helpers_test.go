package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/klarna/sfcc-klarna-payments-sub001/internal/builder"
	"github.com/klarna/sfcc-klarna-payments-sub001/internal/domain"
	"github.com/klarna/sfcc-klarna-payments-sub001/internal/provider"
	apperrors "github.com/klarna/sfcc-klarna-payments-sub001/pkg/errors"
)

// --- Mock Repositories ---

type mockOrderRepository struct {
	mock.Mock
}

func (m *mockOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *mockOrderRepository) GetByOrderNo(ctx context.Context, orderNo string) (*domain.Order, error) {
	args := m.Called(ctx, orderNo)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *mockOrderRepository) GetByProviderOrderID(ctx context.Context, providerOrderID string) (*domain.Order, error) {
	args := m.Called(ctx, providerOrderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *mockOrderRepository) Update(ctx context.Context, order *domain.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *mockOrderRepository) ClearSettlement(ctx context.Context, orderNo string) error {
	args := m.Called(ctx, orderNo)
	return args.Error(0)
}

type mockProfileRepository struct {
	mock.Mock
}

func (m *mockProfileRepository) Get(ctx context.Context, customerID string) (*domain.CustomerProfile, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CustomerProfile), args.Error(1)
}

func (m *mockProfileRepository) ListWithSubscriptions(ctx context.Context) ([]domain.CustomerProfile, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.CustomerProfile), args.Error(1)
}

func (m *mockProfileRepository) Save(ctx context.Context, profile *domain.CustomerProfile) error {
	args := m.Called(ctx, profile)
	return args.Error(0)
}

// memorySessions is an in-memory session store.
type memorySessions struct {
	mu       sync.Mutex
	sessions map[string]domain.PaymentSession
	saveErr  error
	clears   int
}

func newMemorySessions() *memorySessions {
	return &memorySessions{sessions: make(map[string]domain.PaymentSession)}
}

func (s *memorySessions) Get(_ context.Context, shopperKey string) (*domain.PaymentSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[shopperKey]
	if !ok {
		return nil, apperrors.NotFound("payment session", shopperKey)
	}
	return &session, nil
}

func (s *memorySessions) Save(_ context.Context, shopperKey string, session *domain.PaymentSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.sessions[shopperKey] = *session
	return nil
}

func (s *memorySessions) Clear(_ context.Context, shopperKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clears++
	delete(s.sessions, shopperKey)
	return nil
}

func (s *memorySessions) has(shopperKey string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[shopperKey]
	return ok
}

// fakeTx runs fn directly and counts units of work.
type fakeTx struct {
	calls int
	err   error
}

func (f *fakeTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	return fn(ctx)
}

// --- Test Helpers ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testCatalogue() *provider.LocaleCatalogue {
	return &provider.LocaleCatalogue{
		Credentials: map[string]provider.Credential{
			"na": {Username: "user", Password: "secret", BaseURL: "https://api-na.example.com"},
		},
		Countries: map[string]provider.LocaleSettings{
			"US": {
				Country:        "US",
				Locale:         "en-US",
				Currency:       "USD",
				CredentialID:   "na",
				TaxationPolicy: domain.TaxationGross,
				PricingMode:    domain.PricingFull,
				SignInClientID: "client-1",
			},
		},
	}
}

func testBuilder() *builder.Builder {
	return builder.New(builder.Config{})
}

// testCart is a gross-priced cart worth 20.00 USD.
func testCart() *domain.CartSnapshot {
	return &domain.CartSnapshot{
		ID:       "cart-1",
		Currency: "USD",
		Country:  "US",
		Locale:   "en-US",
		Items: []domain.LineItem{
			{
				ID:        "li-1",
				ProductID: "sku-1",
				Name:      "Shirt",
				Quantity:  2,
				Price:     decimal.RequireFromString("20.00"),
				Tax:       decimal.RequireFromString("4.00"),
				TaxRate:   decimal.RequireFromString("0.25"),
			},
		},
		Customer: domain.Customer{ID: "cust-1", Email: "jane@example.com", Registered: true},
	}
}

func subscriptionCart(trial bool) *domain.CartSnapshot {
	cart := testCart()
	cart.Subscription = &domain.SubscriptionTerms{Period: domain.PeriodMonth, Frequency: 1, Trial: trial}
	return cart
}

var errBoom = errors.New("boom")
