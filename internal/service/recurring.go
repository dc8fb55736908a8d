package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/klarna/sfcc-klarna-payments-sub001/internal/builder"
	"github.com/klarna/sfcc-klarna-payments-sub001/internal/domain"
	"github.com/klarna/sfcc-klarna-payments-sub001/internal/event"
	"github.com/klarna/sfcc-klarna-payments-sub001/internal/provider"
	"github.com/klarna/sfcc-klarna-payments-sub001/internal/repository"
	apperrors "github.com/klarna/sfcc-klarna-payments-sub001/pkg/errors"
	"github.com/klarna/sfcc-klarna-payments-sub001/pkg/logger"
)

// ErrChargeRejected is returned when the provider refuses a recurring charge.
var ErrChargeRejected = errors.New("recurring charge rejected")

// Recurring charge outcomes.
const (
	OutcomeCharged        = "charged"
	OutcomeRetryScheduled = "retry_scheduled"
	OutcomeRetryExhausted = "retry_exhausted"
)

// RunSummary counts what one recurring pass did.
type RunSummary struct {
	Date             string `json:"date"`
	Profiles         int    `json:"profiles"`
	Due              int    `json:"due"`
	Charged          int    `json:"charged"`
	RetriesScheduled int    `json:"retries_scheduled"`
	Cancelled        int    `json:"cancelled"`
	SaveFailures     int    `json:"save_failures"`
	SkippedProfiles  int    `json:"skipped_profiles"`
}

// RecurringEngine charges due subscriptions with their customer tokens.
// Profiles and their subscriptions are processed one at a time; a failure
// is confined to its subscription.
type RecurringEngine struct {
	profiles repository.ProfileRepository
	orders   repository.OrderRepository
	tx       TxManager
	caller   provider.Caller
	builder  *builder.Builder
	locales  LocaleResolver
	producer *event.Producer
	policy   domain.RetryPolicy
	logger   *slog.Logger
}

// NewRecurringEngine creates a recurring charge engine.
func NewRecurringEngine(
	profiles repository.ProfileRepository,
	orders repository.OrderRepository,
	tx TxManager,
	caller provider.Caller,
	b *builder.Builder,
	locales LocaleResolver,
	producer *event.Producer,
	policy domain.RetryPolicy,
	logger *slog.Logger,
) *RecurringEngine {
	return &RecurringEngine{
		profiles: profiles,
		orders:   orders,
		tx:       tx,
		caller:   caller,
		builder:  b,
		locales:  locales,
		producer: producer,
		policy:   policy,
		logger:   logger,
	}
}

// Run processes every profile holding subscriptions for the given day. Each
// profile's subscription list is written back once, after all of its
// subscriptions were handled.
func (e *RecurringEngine) Run(ctx context.Context, today domain.Date) (*RunSummary, error) {
	profiles, err := e.profiles.ListWithSubscriptions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}

	summary := &RunSummary{Date: today.String(), Profiles: len(profiles)}
	for i := range profiles {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if p := &profiles[i]; p.LoadErr != nil {
			summary.SkippedProfiles++
			recurringProfilesSkipped.Inc()
			e.logger.ErrorContext(ctx, "skipping profile with unreadable subscriptions",
				slog.String("customer_id", p.CustomerID),
				slog.String("error", p.LoadErr.Error()),
			)
			continue
		}
		e.processProfile(ctx, &profiles[i], today, summary)
	}

	e.logger.InfoContext(ctx, "recurring run finished",
		slog.String("date", summary.Date),
		slog.Int("profiles", summary.Profiles),
		slog.Int("due", summary.Due),
		slog.Int("charged", summary.Charged),
		slog.Int("retries_scheduled", summary.RetriesScheduled),
		slog.Int("cancelled", summary.Cancelled),
		slog.Int("save_failures", summary.SaveFailures),
		slog.Int("skipped_profiles", summary.SkippedProfiles),
	)
	return summary, nil
}

func (e *RecurringEngine) processProfile(ctx context.Context, p *domain.CustomerProfile, today domain.Date, summary *RunSummary) {
	changed := false
	for i := range p.Subscriptions {
		sub := &p.Subscriptions[i]
		if !sub.ShouldCharge(today, e.policy.Enabled) {
			continue
		}
		changed = true
		summary.Due++

		switch e.processSubscription(ctx, p.CustomerID, sub, today) {
		case OutcomeCharged:
			summary.Charged++
		case OutcomeRetryScheduled:
			summary.RetriesScheduled++
		case OutcomeRetryExhausted:
			summary.Cancelled++
		}
	}
	if !changed {
		return
	}

	err := e.tx.WithTransaction(ctx, func(ctx context.Context) error {
		return e.profiles.Save(ctx, p)
	})
	if err != nil {
		summary.SaveFailures++
		recurringProfileSaveFailures.Inc()
		e.logger.ErrorContext(ctx, "failed to save subscriptions",
			slog.String("customer_id", p.CustomerID),
			slog.String("error", err.Error()),
		)
	}
}

func (e *RecurringEngine) processSubscription(ctx context.Context, customerID string, sub *domain.Subscription, today domain.Date) string {
	log := e.logger.With(
		slog.String("customer_id", customerID),
		slog.String("subscription_id", sub.SubscriptionID),
		slog.Bool("trial", sub.IsTrial),
	)

	template, settings, err := e.template(ctx, sub)
	var orderNo string
	if err == nil {
		orderNo, err = e.charge(ctx, sub, template, settings, today)
	}
	if err == nil {
		sub.Advance(today, orderNo)
		recurringChargesTotal.WithLabelValues(OutcomeCharged).Inc()
		log.InfoContext(ctx, "subscription charged",
			slog.String("order_no", orderNo),
			slog.String("next_charge_date", sub.NextChargeDate.String()),
		)
		e.publish(ctx, "subscription.charged", func() error {
			return e.producer.PublishSubscriptionCharged(ctx, customerID, sub, orderNo)
		})
		return OutcomeCharged
	}

	reason := err.Error()
	log.ErrorContext(ctx, "subscription charge failed", slog.String("error", reason))

	outcome := sub.HandleFailure(today, e.policy).String()
	recurringChargesTotal.WithLabelValues(outcome).Inc()
	if outcome == OutcomeRetryScheduled {
		log.InfoContext(ctx, "subscription retry scheduled",
			slog.Int("retry_count", sub.RetryCount),
			slog.String("next_retry_date", sub.NextRetryDate.String()),
		)
		e.publish(ctx, "subscription.retry_scheduled", func() error {
			return e.producer.PublishSubscriptionRetry(ctx, customerID, sub, reason)
		})
		return outcome
	}

	e.cancelToken(ctx, sub, settings)
	log.WarnContext(ctx, "subscription disabled", slog.Int("retry_count", sub.RetryCount))
	e.publish(ctx, "subscription.cancelled", func() error {
		return e.producer.PublishSubscriptionCancelled(ctx, customerID, sub, reason)
	})
	return outcome
}

// template loads the last order of a subscription, which carries the cart
// every recurring order is built from.
func (e *RecurringEngine) template(ctx context.Context, sub *domain.Subscription) (*domain.Order, *provider.LocaleSettings, error) {
	if sub.LastOrderID == "" {
		return nil, nil, errors.New("subscription has no last order")
	}
	order, err := e.orders.GetByOrderNo(ctx, sub.LastOrderID)
	if err != nil {
		return nil, nil, fmt.Errorf("load last order: %w", err)
	}
	if order.Cart == nil {
		return nil, nil, fmt.Errorf("last order %s has no cart snapshot", order.OrderNo)
	}
	settings, err := resolve(e.locales, order.Country)
	if err != nil {
		return nil, nil, err
	}
	return order, settings, nil
}

// charge pays a trial order or creates the next recurring order. The
// idempotency key is stable for one attempt, so a replay after a crash
// between the provider call and the profile write is deduplicated by the
// provider.
func (e *RecurringEngine) charge(ctx context.Context, sub *domain.Subscription, template *domain.Order, settings *provider.LocaleSettings, today domain.Date) (string, error) {
	key := idempotencyKey(sub.SubscriptionID, today.String(), strconv.Itoa(sub.RetryCount))

	if sub.IsTrial {
		if paid(template) {
			return template.OrderNo, nil
		}
		return template.OrderNo, e.place(ctx, template, settings, sub.CustomerToken, key)
	}

	orderNo := RecurringOrderNo(sub.SubscriptionID, today)
	order, err := e.orders.GetByOrderNo(ctx, orderNo)
	switch {
	case err == nil && paid(order):
		return orderNo, nil
	case err == nil:
	case errors.Is(err, apperrors.ErrNotFound):
		body, err := e.builder.RecurringOrder(orderNo, template.Cart, settings)
		if err != nil {
			return "", err
		}
		order = domain.NewOrder(orderNo, template.ShopperKey, template.Cart, body.Request.OrderAmount)
		if err := e.orders.Create(ctx, order); err != nil {
			return "", fmt.Errorf("create recurring order: %w", err)
		}
	default:
		return "", fmt.Errorf("load recurring order: %w", err)
	}

	return orderNo, e.place(ctx, order, settings, sub.CustomerToken, key)
}

// place charges an order with a customer token. The provider captures
// recurring orders on creation.
func (e *RecurringEngine) place(ctx context.Context, order *domain.Order, settings *provider.LocaleSettings, token, key string) error {
	ctx = logger.WithOrderNo(ctx, order.OrderNo)

	body, err := e.builder.RecurringOrder(order.OrderNo, order.Cart, settings)
	if err != nil {
		return err
	}
	resp, err := e.caller.Call(ctx, provider.Request{
		Endpoint:       provider.EndpointCustomerTokenOrder,
		CredentialID:   settings.CredentialID,
		PathParams:     []string{token},
		Body:           body.Request,
		IdempotencyKey: key,
	})
	if err != nil {
		return err
	}
	po, err := decodeOrder(provider.EndpointCustomerTokenOrder, resp)
	if err != nil {
		return err
	}

	err = e.tx.WithTransaction(ctx, func(ctx context.Context) error {
		order.ProviderOrderID = po.OrderID
		if order.Status == domain.OrderStatusFailed {
			order.Status = domain.OrderStatusCreated
		}
		order.ApplyFraudStatus(po.FraudStatus)
		if po.FraudStatus.IsAccepted() {
			order.RecordCapture(order.RemainingAmount())
		}
		return e.orders.Update(ctx, order)
	})
	if err != nil {
		return fmt.Errorf("persist recurring order: %w", err)
	}

	e.publish(ctx, "order.placed", func() error { return e.producer.PublishOrderPlaced(ctx, order) })
	if po.FraudStatus.IsRejected() {
		return fmt.Errorf("order %s: %w", order.OrderNo, ErrChargeRejected)
	}
	return nil
}

// cancelToken cancels the customer token of a disabled subscription. The
// subscription stays disabled locally whatever the provider answers. When
// the last order could not be loaded the credential is resolved from the
// subscription's own country.
func (e *RecurringEngine) cancelToken(ctx context.Context, sub *domain.Subscription, settings *provider.LocaleSettings) {
	if sub.CustomerToken == "" {
		return
	}
	if settings == nil && sub.Country != "" {
		resolved, err := resolve(e.locales, sub.Country)
		if err != nil {
			e.logger.WarnContext(ctx, "cannot resolve subscription country",
				slog.String("subscription_id", sub.SubscriptionID),
				slog.String("country", sub.Country),
				slog.String("error", err.Error()),
			)
		}
		settings = resolved
	}
	if settings == nil {
		e.logger.WarnContext(ctx, "cannot cancel customer token without locale settings",
			slog.String("subscription_id", sub.SubscriptionID),
		)
		return
	}
	if _, err := e.caller.Call(ctx, provider.Request{
		Endpoint:     provider.EndpointCustomerTokenCancel,
		CredentialID: settings.CredentialID,
		PathParams:   []string{sub.CustomerToken},
		Body:         e.builder.CustomerTokenCancel(),
	}); err != nil {
		e.logger.ErrorContext(ctx, "cancel customer token failed",
			slog.String("subscription_id", sub.SubscriptionID),
			slog.String("error", err.Error()),
		)
	}
}

func (e *RecurringEngine) publish(ctx context.Context, name string, fn func() error) {
	if e.producer == nil {
		return
	}
	if err := fn(); err != nil {
		e.logger.ErrorContext(ctx, "failed to publish event",
			slog.String("event", name),
			slog.String("error", err.Error()),
		)
	}
}

// RecurringOrderNo is the local order number of a subscription's charge on
// one day.
func RecurringOrderNo(subscriptionID string, day domain.Date) string {
	return subscriptionID + "-" + day.Time().Format("20060102")
}

func paid(o *domain.Order) bool {
	return o.ProviderOrderID != "" && o.FraudStatus.IsAccepted()
}
