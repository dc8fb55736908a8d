package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/klarna/sfcc-klarna-payments-sub001/internal/domain"
	pkgkafka "github.com/klarna/sfcc-klarna-payments-sub001/pkg/kafka"
	"github.com/klarna/sfcc-klarna-payments-sub001/pkg/logger"
)

// Kafka topics for order and subscription events.
var (
	TopicOrderPlaced           = pkgkafka.Topic("order", "placed")
	TopicOrderStatusChanged    = pkgkafka.Topic("order", "status_changed")
	TopicOrderCaptured         = pkgkafka.Topic("order", "captured")
	TopicOrderCancelled        = pkgkafka.Topic("order", "cancelled")
	TopicSubscriptionCharged   = pkgkafka.Topic("subscription", "charged")
	TopicSubscriptionRetry     = pkgkafka.Topic("subscription", "retry_scheduled")
	TopicSubscriptionCancelled = pkgkafka.Topic("subscription", "cancelled")
)

// Aggregate types.
const (
	AggregateTypeOrder        = "order"
	AggregateTypeSubscription = "subscription"
)

// SourcePaymentsService identifies events published by this service.
const SourcePaymentsService = "klarna-payments"

// OrderData is the payload of order events.
type OrderData struct {
	OrderNo            string `json:"order_no"`
	ProviderOrderID    string `json:"provider_order_id,omitempty"`
	CustomerID         string `json:"customer_id,omitempty"`
	Status             string `json:"status"`
	FraudStatus        string `json:"fraud_status,omitempty"`
	ExportStatus       string `json:"export_status"`
	ConfirmationStatus string `json:"confirmation_status"`
	PaymentStatus      string `json:"payment_status"`
	TotalAmount        int64  `json:"total_amount"`
	CapturedAmount     int64  `json:"captured_amount"`
	Currency           string `json:"currency"`
}

// CaptureData is the payload of order.captured.
type CaptureData struct {
	OrderNo         string `json:"order_no"`
	ProviderOrderID string `json:"provider_order_id"`
	Amount          int64  `json:"amount"`
	CapturedAmount  int64  `json:"captured_amount"`
	Currency        string `json:"currency"`
}

// SubscriptionData is the payload of subscription events.
type SubscriptionData struct {
	SubscriptionID string `json:"subscription_id"`
	CustomerID     string `json:"customer_id"`
	OrderNo        string `json:"order_no,omitempty"`
	NextChargeDate string `json:"next_charge_date,omitempty"`
	NextRetryDate  string `json:"next_retry_date,omitempty"`
	RetryCount     int    `json:"retry_count"`
	Enabled        bool   `json:"enabled"`
	Reason         string `json:"reason,omitempty"`
}

// Producer publishes payment domain events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishOrderPlaced publishes order.placed after the provider order exists.
func (p *Producer) PublishOrderPlaced(ctx context.Context, o *domain.Order) error {
	return p.publish(ctx, TopicOrderPlaced, o.OrderNo, AggregateTypeOrder, orderData(o))
}

// PublishOrderStatusChanged publishes order.status_changed after a fraud
// decision was applied.
func (p *Producer) PublishOrderStatusChanged(ctx context.Context, o *domain.Order) error {
	return p.publish(ctx, TopicOrderStatusChanged, o.OrderNo, AggregateTypeOrder, orderData(o))
}

// PublishOrderCaptured publishes order.captured.
func (p *Producer) PublishOrderCaptured(ctx context.Context, o *domain.Order, amount int64) error {
	data := CaptureData{
		OrderNo:         o.OrderNo,
		ProviderOrderID: o.ProviderOrderID,
		Amount:          amount,
		CapturedAmount:  o.CapturedAmount,
		Currency:        o.Currency,
	}
	return p.publish(ctx, TopicOrderCaptured, o.OrderNo, AggregateTypeOrder, data)
}

// PublishOrderCancelled publishes order.cancelled.
func (p *Producer) PublishOrderCancelled(ctx context.Context, o *domain.Order) error {
	return p.publish(ctx, TopicOrderCancelled, o.OrderNo, AggregateTypeOrder, orderData(o))
}

// PublishSubscriptionCharged publishes subscription.charged.
func (p *Producer) PublishSubscriptionCharged(ctx context.Context, customerID string, s *domain.Subscription, orderNo string) error {
	data := subscriptionData(customerID, s)
	data.OrderNo = orderNo
	return p.publish(ctx, TopicSubscriptionCharged, s.SubscriptionID, AggregateTypeSubscription, data)
}

// PublishSubscriptionRetry publishes subscription.retry_scheduled.
func (p *Producer) PublishSubscriptionRetry(ctx context.Context, customerID string, s *domain.Subscription, reason string) error {
	data := subscriptionData(customerID, s)
	data.Reason = reason
	return p.publish(ctx, TopicSubscriptionRetry, s.SubscriptionID, AggregateTypeSubscription, data)
}

// PublishSubscriptionCancelled publishes subscription.cancelled.
func (p *Producer) PublishSubscriptionCancelled(ctx context.Context, customerID string, s *domain.Subscription, reason string) error {
	data := subscriptionData(customerID, s)
	data.Reason = reason
	return p.publish(ctx, TopicSubscriptionCancelled, s.SubscriptionID, AggregateTypeSubscription, data)
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID, aggregateType string, data any) error {
	event, err := pkgkafka.NewEvent(topic, aggregateID, aggregateType, SourcePaymentsService, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		event.WithCorrelationID(id)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published event",
		slog.String("topic", topic),
		slog.String("aggregate_id", aggregateID),
	)
	return nil
}

func orderData(o *domain.Order) OrderData {
	return OrderData{
		OrderNo:            o.OrderNo,
		ProviderOrderID:    o.ProviderOrderID,
		CustomerID:         o.CustomerID,
		Status:             string(o.Status),
		FraudStatus:        string(o.FraudStatus),
		ExportStatus:       string(o.ExportStatus),
		ConfirmationStatus: string(o.ConfirmationStatus),
		PaymentStatus:      string(o.PaymentStatus),
		TotalAmount:        o.TotalAmount,
		CapturedAmount:     o.CapturedAmount,
		Currency:           o.Currency,
	}
}

func subscriptionData(customerID string, s *domain.Subscription) SubscriptionData {
	data := SubscriptionData{
		SubscriptionID: s.SubscriptionID,
		CustomerID:     customerID,
		RetryCount:     s.RetryCount,
		Enabled:        s.Enabled,
	}
	if !s.NextChargeDate.IsZero() {
		data.NextChargeDate = s.NextChargeDate.String()
	}
	if s.NextRetryDate != nil {
		data.NextRetryDate = s.NextRetryDate.String()
	}
	return data
}
