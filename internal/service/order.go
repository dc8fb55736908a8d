package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/klarna/sfcc-klarna-payments-sub001/internal/builder"
	"github.com/klarna/sfcc-klarna-payments-sub001/internal/domain"
	"github.com/klarna/sfcc-klarna-payments-sub001/internal/event"
	"github.com/klarna/sfcc-klarna-payments-sub001/internal/provider"
	"github.com/klarna/sfcc-klarna-payments-sub001/internal/repository"
	apperrors "github.com/klarna/sfcc-klarna-payments-sub001/pkg/errors"
	"github.com/klarna/sfcc-klarna-payments-sub001/pkg/logger"
)

// Fraud notification event types.
const (
	EventFraudRiskAccepted = "FRAUD_RISK_ACCEPTED"
	EventFraudRiskRejected = "FRAUD_RISK_REJECTED"
	EventFraudRiskStopped  = "FRAUD_RISK_STOPPED"
)

// OrderConfig holds the site switches of the order lifecycle.
type OrderConfig struct {
	// AutoCapture captures the full amount as soon as an order is accepted.
	AutoCapture bool
	// VCNEnabled requests a virtual card settlement for accepted orders.
	VCNEnabled bool
	VCNKeyID   string
	// VCNRetryCount is the number of extra settlement attempts after a
	// transport or server failure.
	VCNRetryCount int
}

// OrderCoordinator places provider orders for local orders and keeps the
// local order status in step with the provider's fraud decision.
type OrderCoordinator struct {
	orders   repository.OrderRepository
	profiles repository.ProfileRepository
	sessions repository.SessionStore
	tx       TxManager
	caller   provider.Caller
	builder  *builder.Builder
	locales  LocaleResolver
	producer *event.Producer
	cfg      OrderConfig
	now      func() time.Time
	logger   *slog.Logger
}

// NewOrderCoordinator creates an order coordinator.
func NewOrderCoordinator(
	orders repository.OrderRepository,
	profiles repository.ProfileRepository,
	sessions repository.SessionStore,
	tx TxManager,
	caller provider.Caller,
	b *builder.Builder,
	locales LocaleResolver,
	producer *event.Producer,
	cfg OrderConfig,
	logger *slog.Logger,
) *OrderCoordinator {
	return &OrderCoordinator{
		orders:   orders,
		profiles: profiles,
		sessions: sessions,
		tx:       tx,
		caller:   caller,
		builder:  b,
		locales:  locales,
		producer: producer,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger,
	}
}

// PlaceOrderInput holds the parameters for placing an order.
type PlaceOrderInput struct {
	OrderNo            string               `json:"order_no" validate:"required,max=64"`
	ShopperKey         string               `json:"shopper_key" validate:"required"`
	AuthorizationToken string               `json:"authorization_token" validate:"required"`
	Cart               *domain.CartSnapshot `json:"cart" validate:"required"`
}

// CreateOrder exchanges an authorization token for a provider order. It
// touches no local state; a failure means nothing was created.
func (s *OrderCoordinator) CreateOrder(ctx context.Context, orderNo string, cart *domain.CartSnapshot, authorizationToken string) (*domain.ProviderOrder, error) {
	ctx = logger.WithOrderNo(ctx, orderNo)
	if cart == nil {
		return nil, apperrors.InvalidInput("cart is required")
	}

	settings, err := resolve(s.locales, cart.Country)
	if err != nil {
		return nil, checkoutError(err)
	}
	body, err := s.builder.Order(orderNo, cart, settings)
	if err != nil {
		return nil, checkoutError(err)
	}
	po, err := s.createOrder(ctx, settings, authorizationToken, body.Request)
	if err != nil {
		logger.WithContext(ctx, s.logger).ErrorContext(ctx, "create provider order failed", slog.String("error", err.Error()))
		return nil, checkoutError(err)
	}
	return po, nil
}

// PlaceOrder creates the local order, places it at the provider and applies
// the fraud decision. Accepted orders are acknowledged and, depending on the
// site switches, captured and settled. A subscription cart also stores a
// customer token on the customer's profile; a trial subscription defers the
// provider order to the first recurring charge.
func (s *OrderCoordinator) PlaceOrder(ctx context.Context, input *PlaceOrderInput) (*domain.Order, error) {
	if input == nil || input.Cart == nil {
		return nil, apperrors.InvalidInput("order input is required")
	}
	if input.OrderNo == "" {
		return nil, apperrors.InvalidInput("order_no is required")
	}
	if input.AuthorizationToken == "" {
		return nil, apperrors.InvalidInput("authorization_token is required")
	}
	if input.Cart.Subscription != nil && input.Cart.Customer.ID == "" {
		return nil, apperrors.InvalidInput("a subscription requires a registered customer")
	}
	ctx = logger.WithShopperKey(logger.WithOrderNo(ctx, input.OrderNo), input.ShopperKey)
	log := logger.WithContext(ctx, s.logger)
	cart := input.Cart

	settings, err := resolve(s.locales, cart.Country)
	if err != nil {
		return nil, checkoutError(err)
	}
	body, err := s.builder.Order(input.OrderNo, cart, settings)
	if err != nil {
		return nil, checkoutError(err)
	}

	order := domain.NewOrder(input.OrderNo, input.ShopperKey, cart, body.Request.OrderAmount)
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	if cart.Subscription != nil && cart.Subscription.Trial {
		return s.placeTrial(ctx, order, settings, input.AuthorizationToken)
	}

	po, err := s.createOrder(ctx, settings, input.AuthorizationToken, body.Request)
	if err != nil {
		log.ErrorContext(ctx, "create provider order failed", slog.String("error", err.Error()))
		order.Status = domain.OrderStatusFailed
		if updErr := s.orders.Update(ctx, order); updErr != nil {
			log.ErrorContext(ctx, "failed to mark order as failed", slog.String("error", updErr.Error()))
		}
		s.clearSession(ctx, input.ShopperKey)
		return nil, checkoutError(err)
	}

	var sub *domain.Subscription
	if cart.Subscription != nil && po.FraudStatus != domain.FraudRejected {
		sub = s.tokenize(ctx, order, settings, input.AuthorizationToken)
	}

	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		order.ProviderOrderID = po.OrderID
		order.RedirectURL = po.RedirectURL
		order.ApplyFraudStatus(po.FraudStatus)
		if err := s.orders.Update(ctx, order); err != nil {
			return err
		}
		if sub != nil {
			return s.addSubscription(ctx, cart, sub)
		}
		return nil
	})
	if err != nil {
		log.ErrorContext(ctx, "failed to persist provider order, cancelling it",
			slog.String("provider_order_id", po.OrderID),
			slog.String("error", err.Error()),
		)
		s.cancelRemote(ctx, settings, po.OrderID)
		return nil, fmt.Errorf("persist provider order: %w", err)
	}

	log.InfoContext(ctx, "order placed",
		slog.String("provider_order_id", order.ProviderOrderID),
		slog.String("fraud_status", string(order.FraudStatus)),
	)
	s.publish(ctx, "order.placed", func() error { return s.producer.PublishOrderPlaced(ctx, order) })

	switch {
	case order.FraudStatus.IsRejected():
		s.cancelRemote(ctx, settings, order.ProviderOrderID)
	case order.FraudStatus.IsAccepted():
		s.acknowledge(ctx, settings, order)
		s.afterAccepted(ctx, settings, order)
	}

	s.clearSession(ctx, input.ShopperKey)
	return order, nil
}

// GetOrder returns a local order.
func (s *OrderCoordinator) GetOrder(ctx context.Context, orderNo string) (*domain.Order, error) {
	return s.orders.GetByOrderNo(ctx, orderNo)
}

// RefreshOrder reads the provider order and applies a changed fraud status.
func (s *OrderCoordinator) RefreshOrder(ctx context.Context, orderNo string) (*domain.Order, error) {
	ctx = logger.WithOrderNo(ctx, orderNo)
	order, settings, err := s.loadPlaced(ctx, orderNo)
	if err != nil {
		return nil, err
	}

	resp, err := s.caller.Call(ctx, provider.Request{
		Endpoint:     provider.EndpointOrderGet,
		CredentialID: settings.CredentialID,
		PathParams:   []string{order.ProviderOrderID},
	})
	if err != nil {
		return nil, providerFailure("read provider order failed", err)
	}
	var read provider.OrderReadResponse
	if err := resp.Decode(&read); err != nil {
		return nil, providerFailure("read provider order failed", err)
	}
	fs, err := domain.ParseFraudStatus(read.FraudStatus)
	if err != nil {
		return nil, providerFailure("read provider order failed", err)
	}
	if fs == order.FraudStatus {
		return order, nil
	}

	if err := s.applyFraudStatus(ctx, order, fs); err != nil {
		return nil, err
	}
	return order, nil
}

// Capture captures amount of an order; zero captures the remaining amount.
// Capture failures are always returned, whatever the provider status.
func (s *OrderCoordinator) Capture(ctx context.Context, orderNo string, amount int64) (*domain.Order, error) {
	ctx = logger.WithOrderNo(ctx, orderNo)
	order, settings, err := s.loadPlaced(ctx, orderNo)
	if err != nil {
		return nil, err
	}
	if amount == 0 {
		amount = order.RemainingAmount()
	}
	if err := s.capture(ctx, settings, order, amount); err != nil {
		return nil, providerFailure("capture failed", err)
	}
	return order, nil
}

// Cancel cancels an order. The provider call is best effort: the local
// cancellation succeeds even when the provider cannot be reached.
func (s *OrderCoordinator) Cancel(ctx context.Context, orderNo string) (*domain.Order, error) {
	ctx = logger.WithOrderNo(ctx, orderNo)
	order, err := s.orders.GetByOrderNo(ctx, orderNo)
	if err != nil {
		return nil, err
	}
	if order.Status == domain.OrderStatusCancelled {
		return order, nil
	}

	if order.ProviderOrderID != "" {
		settings, err := resolve(s.locales, order.Country)
		if err != nil {
			s.logger.WarnContext(ctx, "no locale settings, skipping provider cancel", slog.String("error", err.Error()))
		} else {
			s.cancelRemote(ctx, settings, order.ProviderOrderID)
		}
	}

	order.Status = domain.OrderStatusCancelled
	order.ExportStatus = domain.ExportNotExported
	if err := s.orders.Update(ctx, order); err != nil {
		return nil, fmt.Errorf("update cancelled order: %w", err)
	}

	s.logger.InfoContext(ctx, "order cancelled", slog.String("order_no", orderNo))
	s.publish(ctx, "order.cancelled", func() error { return s.producer.PublishOrderCancelled(ctx, order) })
	return order, nil
}

// HandleFraudNotification applies a fraud decision pushed by the provider.
// Unknown orders and event types are logged and ignored.
func (s *OrderCoordinator) HandleFraudNotification(ctx context.Context, country, providerOrderID, eventType string) error {
	log := s.logger.With(
		slog.String("provider_order_id", providerOrderID),
		slog.String("event_type", eventType),
	)

	var fs domain.FraudStatus
	switch eventType {
	case EventFraudRiskAccepted:
		fs = domain.FraudAcceptedAfterReview
	case EventFraudRiskRejected, EventFraudRiskStopped:
		fs = domain.FraudRejectedAfterReview
	default:
		log.WarnContext(ctx, "ignoring unknown fraud notification")
		return nil
	}

	order, err := s.orders.GetByProviderOrderID(ctx, providerOrderID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			log.WarnContext(ctx, "fraud notification for unknown order")
			return nil
		}
		return fmt.Errorf("lookup order for notification: %w", err)
	}
	ctx = logger.WithOrderNo(ctx, order.OrderNo)
	if order.FraudStatus == fs {
		return nil
	}

	if country == "" {
		country = order.Country
	}
	settings, err := resolve(s.locales, country)
	if err != nil {
		log.WarnContext(ctx, "no locale settings for notification country", slog.String("country", country))
		settings, err = resolve(s.locales, order.Country)
		if err != nil {
			return fmt.Errorf("resolve locale: %w", err)
		}
	}

	if err := s.applyFraudStatus(ctx, order, fs); err != nil {
		return err
	}

	if fs.IsRejected() {
		s.cancelRemote(ctx, settings, order.ProviderOrderID)
	} else {
		s.afterAccepted(ctx, settings, order)
	}
	return nil
}

// ClearSettlementData wipes the stored virtual card data of an order.
func (s *OrderCoordinator) ClearSettlementData(ctx context.Context, orderNo string) error {
	if err := s.orders.ClearSettlement(ctx, orderNo); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "settlement data cleared", slog.String("order_no", orderNo))
	return nil
}

func (s *OrderCoordinator) createOrder(ctx context.Context, settings *provider.LocaleSettings, authorizationToken string, body *provider.SessionRequest) (*domain.ProviderOrder, error) {
	if authorizationToken == "" {
		return nil, provider.NewValidationError(provider.EndpointOrderCreate, errors.New("authorization token is required"))
	}
	resp, err := s.caller.Call(ctx, provider.Request{
		Endpoint:     provider.EndpointOrderCreate,
		CredentialID: settings.CredentialID,
		PathParams:   []string{authorizationToken},
		Body:         body,
	})
	if err != nil {
		return nil, err
	}
	return decodeOrder(provider.EndpointOrderCreate, resp)
}

func decodeOrder(endpoint provider.Endpoint, resp *provider.Response) (*domain.ProviderOrder, error) {
	var created provider.OrderResponse
	if err := resp.Decode(&created); err != nil {
		return nil, &provider.Error{Kind: provider.KindTransport, Endpoint: endpoint, Err: err}
	}
	if created.OrderID == "" {
		return nil, missingResult(endpoint, "order_id")
	}
	fs, err := domain.ParseFraudStatus(created.FraudStatus)
	if err != nil {
		return nil, &provider.Error{Kind: provider.KindProviderRejected, Endpoint: endpoint, Err: err}
	}
	return &domain.ProviderOrder{
		OrderID:     created.OrderID,
		FraudStatus: fs,
		RedirectURL: created.RedirectURL,
	}, nil
}

// placeTrial stores the customer token of a trial subscription. The local
// order stays unpaid until the recurring engine charges it.
func (s *OrderCoordinator) placeTrial(ctx context.Context, order *domain.Order, settings *provider.LocaleSettings, authorizationToken string) (*domain.Order, error) {
	log := logger.WithContext(ctx, s.logger)

	token, err := s.createCustomerToken(ctx, order, settings, authorizationToken)
	if err != nil {
		log.ErrorContext(ctx, "create customer token for trial failed", slog.String("error", err.Error()))
		order.Status = domain.OrderStatusFailed
		if updErr := s.orders.Update(ctx, order); updErr != nil {
			log.ErrorContext(ctx, "failed to mark order as failed", slog.String("error", updErr.Error()))
		}
		s.clearSession(ctx, order.ShopperKey)
		return nil, checkoutError(err)
	}

	sub := s.newSubscription(order, token)
	if err := s.addSubscription(ctx, order.Cart, sub); err != nil {
		return nil, fmt.Errorf("save trial subscription: %w", err)
	}

	log.InfoContext(ctx, "trial subscription started",
		slog.String("subscription_id", sub.SubscriptionID),
		slog.String("next_charge_date", sub.NextChargeDate.String()),
	)
	s.clearSession(ctx, order.ShopperKey)
	return order, nil
}

// tokenize creates the customer token of a subscription purchase. The order
// stands without it, so a failure is only logged.
func (s *OrderCoordinator) tokenize(ctx context.Context, order *domain.Order, settings *provider.LocaleSettings, authorizationToken string) *domain.Subscription {
	token, err := s.createCustomerToken(ctx, order, settings, authorizationToken)
	if err != nil {
		logger.WithContext(ctx, s.logger).ErrorContext(ctx, "create customer token failed, subscription not started",
			slog.String("error", err.Error()),
		)
		return nil
	}
	return s.newSubscription(order, token)
}

func (s *OrderCoordinator) createCustomerToken(ctx context.Context, order *domain.Order, settings *provider.LocaleSettings, authorizationToken string) (string, error) {
	body, err := s.builder.CustomerToken(order.Cart, settings, "")
	if err != nil {
		return "", err
	}
	resp, err := s.caller.Call(ctx, provider.Request{
		Endpoint:     provider.EndpointCustomerTokenCreate,
		CredentialID: settings.CredentialID,
		PathParams:   []string{authorizationToken},
		Body:         body,
	})
	if err != nil {
		return "", err
	}
	var created provider.CustomerTokenResponse
	if err := resp.Decode(&created); err != nil {
		return "", &provider.Error{Kind: provider.KindTransport, Endpoint: provider.EndpointCustomerTokenCreate, Err: err}
	}
	if created.TokenID == "" {
		return "", missingResult(provider.EndpointCustomerTokenCreate, "token_id")
	}
	return created.TokenID, nil
}

func (s *OrderCoordinator) newSubscription(order *domain.Order, token string) *domain.Subscription {
	terms := order.Cart.Subscription
	return &domain.Subscription{
		SubscriptionID:        uuid.New().String(),
		CustomerToken:         token,
		Country:               order.Country,
		NextChargeDate:        domain.NewDate(s.now()).AddPeriod(terms.Period, terms.Frequency),
		Enabled:               true,
		IsTrial:               terms.Trial,
		SubscriptionPeriod:    terms.Period,
		SubscriptionFrequency: terms.Frequency,
		LastOrderID:           order.OrderNo,
	}
}

func (s *OrderCoordinator) addSubscription(ctx context.Context, cart *domain.CartSnapshot, sub *domain.Subscription) error {
	profile, err := s.profiles.Get(ctx, cart.Customer.ID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			return err
		}
		profile = &domain.CustomerProfile{CustomerID: cart.Customer.ID, Email: cart.Customer.Email}
	}
	profile.Subscriptions = append(profile.Subscriptions, *sub)
	return s.profiles.Save(ctx, profile)
}

// applyFraudStatus persists a fraud decision and publishes the change.
func (s *OrderCoordinator) applyFraudStatus(ctx context.Context, order *domain.Order, fs domain.FraudStatus) error {
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		order.ApplyFraudStatus(fs)
		return s.orders.Update(ctx, order)
	})
	if err != nil {
		return fmt.Errorf("apply fraud status: %w", err)
	}

	s.logger.InfoContext(ctx, "fraud status applied",
		slog.String("order_no", order.OrderNo),
		slog.String("fraud_status", string(fs)),
		slog.String("export_status", string(order.ExportStatus)),
	)
	s.publish(ctx, "order.status_changed", func() error { return s.producer.PublishOrderStatusChanged(ctx, order) })
	return nil
}

// afterAccepted runs the optional capture and settlement of an accepted
// order. Both are logged on failure and can be repeated later.
func (s *OrderCoordinator) afterAccepted(ctx context.Context, settings *provider.LocaleSettings, order *domain.Order) {
	log := logger.WithContext(ctx, s.logger)
	if s.cfg.AutoCapture && order.RemainingAmount() > 0 {
		if err := s.capture(ctx, settings, order, order.RemainingAmount()); err != nil {
			log.ErrorContext(ctx, "auto capture failed", slog.String("error", err.Error()))
		}
	}
	if s.cfg.VCNEnabled && order.Settlement == nil {
		if err := s.settle(ctx, settings, order); err != nil {
			log.ErrorContext(ctx, "vcn settlement failed", slog.String("error", err.Error()))
		}
	}
}

func (s *OrderCoordinator) capture(ctx context.Context, settings *provider.LocaleSettings, order *domain.Order, amount int64) error {
	body, err := s.builder.Capture(order, amount)
	if err != nil {
		return err
	}
	if _, err := s.caller.Call(ctx, provider.Request{
		Endpoint:       provider.EndpointCaptureCreate,
		CredentialID:   settings.CredentialID,
		PathParams:     []string{order.ProviderOrderID},
		Body:           body,
		IdempotencyKey: idempotencyKey(order.ProviderOrderID, itoa(order.CapturedAmount), itoa(amount)),
	}); err != nil {
		return err
	}

	order.RecordCapture(amount)
	if err := s.orders.Update(ctx, order); err != nil {
		return fmt.Errorf("record capture: %w", err)
	}

	s.logger.InfoContext(ctx, "order captured",
		slog.String("order_no", order.OrderNo),
		slog.Int64("amount", amount),
		slog.String("payment_status", string(order.PaymentStatus)),
	)
	s.publish(ctx, "order.captured", func() error { return s.producer.PublishOrderCaptured(ctx, order, amount) })
	return nil
}

// settle requests the virtual card settlement, retrying transport and server
// failures VCNRetryCount times. The provider settles once per order.
func (s *OrderCoordinator) settle(ctx context.Context, settings *provider.LocaleSettings, order *domain.Order) error {
	body, err := s.builder.Settlement(order, s.cfg.VCNKeyID)
	if err != nil {
		return err
	}

	attempts := 1 + max(s.cfg.VCNRetryCount, 0)
	var resp *provider.Response
	for attempt := 1; attempt <= attempts; attempt++ {
		resp, err = s.caller.Call(ctx, provider.Request{
			Endpoint:     provider.EndpointVCNSettlement,
			CredentialID: settings.CredentialID,
			Body:         body,
		})
		if err == nil || !retryable(err) || ctx.Err() != nil {
			break
		}
		s.logger.WarnContext(ctx, "vcn settlement attempt failed",
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)
	}
	if err != nil {
		return err
	}

	var settled provider.SettlementResponse
	if err := resp.Decode(&settled); err != nil {
		return &provider.Error{Kind: provider.KindTransport, Endpoint: provider.EndpointVCNSettlement, Err: err}
	}
	if settled.SettlementID == "" {
		return missingResult(provider.EndpointVCNSettlement, "settlement_id")
	}

	order.Settlement = toSettlement(settled)
	if err := s.orders.Update(ctx, order); err != nil {
		return fmt.Errorf("store settlement: %w", err)
	}
	s.logger.InfoContext(ctx, "vcn settlement stored",
		slog.String("order_no", order.OrderNo),
		slog.String("settlement_id", settled.SettlementID),
		slog.Int("cards", len(settled.Cards)),
	)
	return nil
}

func retryable(err error) bool {
	return errors.Is(err, provider.ErrTransport) || errors.Is(err, provider.ErrServerError)
}

func toSettlement(r provider.SettlementResponse) *domain.Settlement {
	cards := make([]domain.VCNCard, 0, len(r.Cards))
	for _, c := range r.Cards {
		cards = append(cards, domain.VCNCard{
			CardID:    c.CardID,
			Brand:     c.Brand,
			Holder:    c.Holder,
			Reference: c.Reference,
			PCIData:   c.PCIData,
			IV:        c.IV,
			AESKey:    c.AESKey,
			Amount:    c.Amount,
		})
	}
	return &domain.Settlement{SettlementID: r.SettlementID, Cards: cards}
}

// acknowledge confirms receipt of an accepted order to the provider.
func (s *OrderCoordinator) acknowledge(ctx context.Context, settings *provider.LocaleSettings, order *domain.Order) {
	if _, err := s.caller.Call(ctx, provider.Request{
		Endpoint:     provider.EndpointOrderAcknowledge,
		CredentialID: settings.CredentialID,
		PathParams:   []string{order.ProviderOrderID},
	}); err != nil {
		s.logger.WarnContext(ctx, "acknowledge order failed", slog.String("error", err.Error()))
	}
}

// cancelRemote cancels a provider order on a best-effort basis. A missing
// provider order counts as cancelled.
func (s *OrderCoordinator) cancelRemote(ctx context.Context, settings *provider.LocaleSettings, providerOrderID string) {
	_, err := s.caller.Call(ctx, provider.Request{
		Endpoint:     provider.EndpointOrderCancel,
		CredentialID: settings.CredentialID,
		PathParams:   []string{providerOrderID},
	})
	switch {
	case err == nil:
	case errors.Is(err, provider.ErrNotFound):
		s.logger.InfoContext(ctx, "provider order already gone", slog.String("provider_order_id", providerOrderID))
	default:
		s.logger.ErrorContext(ctx, "provider cancel failed, continuing",
			slog.String("provider_order_id", providerOrderID),
			slog.String("error", err.Error()),
		)
	}
}

// loadPlaced returns an order that exists at the provider with its settings.
func (s *OrderCoordinator) loadPlaced(ctx context.Context, orderNo string) (*domain.Order, *provider.LocaleSettings, error) {
	order, err := s.orders.GetByOrderNo(ctx, orderNo)
	if err != nil {
		return nil, nil, err
	}
	if order.ProviderOrderID == "" {
		return nil, nil, apperrors.InvalidInput(fmt.Sprintf("order %s has not been placed with the provider", orderNo))
	}
	settings, err := resolve(s.locales, order.Country)
	if err != nil {
		return nil, nil, apperrors.Internal(err)
	}
	return order, settings, nil
}

func (s *OrderCoordinator) clearSession(ctx context.Context, shopperKey string) {
	if shopperKey == "" {
		return
	}
	if err := s.sessions.Clear(ctx, shopperKey); err != nil {
		s.logger.WarnContext(ctx, "failed to clear session after order", slog.String("error", err.Error()))
	}
}

func (s *OrderCoordinator) publish(ctx context.Context, name string, fn func() error) {
	if s.producer == nil {
		return
	}
	if err := fn(); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish event",
			slog.String("event", name),
			slog.String("error", err.Error()),
		)
	}
}
