package domain

import (
	"fmt"
	"time"
)

// FraudStatus is the provider's risk decision on an order.
type FraudStatus string

const (
	FraudAccepted            FraudStatus = "ACCEPTED"
	FraudPending             FraudStatus = "PENDING"
	FraudRejected            FraudStatus = "REJECTED"
	FraudAcceptedAfterReview FraudStatus = "ACCEPTED_AFTER_REVIEW"
	FraudRejectedAfterReview FraudStatus = "REJECTED_AFTER_REVIEW"
)

// ParseFraudStatus validates a fraud status received from the provider.
func ParseFraudStatus(s string) (FraudStatus, error) {
	switch fs := FraudStatus(s); fs {
	case FraudAccepted, FraudPending, FraudRejected, FraudAcceptedAfterReview, FraudRejectedAfterReview:
		return fs, nil
	}
	return "", fmt.Errorf("unknown fraud status %q", s)
}

// IsAccepted is true for ACCEPTED and ACCEPTED_AFTER_REVIEW.
func (f FraudStatus) IsAccepted() bool {
	return f == FraudAccepted || f == FraudAcceptedAfterReview
}

// IsRejected is true for REJECTED and REJECTED_AFTER_REVIEW.
func (f FraudStatus) IsRejected() bool {
	return f == FraudRejected || f == FraudRejectedAfterReview
}

// ExportStatus controls whether the order may be sent to fulfilment.
type ExportStatus string

const (
	ExportNotExported ExportStatus = "NOT_EXPORTED"
	ExportReady       ExportStatus = "READY"
	ExportExported    ExportStatus = "EXPORTED"
)

// ConfirmationStatus is the merchant-side confirmation of an order.
type ConfirmationStatus string

const (
	ConfirmationNotConfirmed ConfirmationStatus = "NOT_CONFIRMED"
	ConfirmationConfirmed    ConfirmationStatus = "CONFIRMED"
)

// PaymentStatus tracks how much of the order has been captured.
type PaymentStatus string

const (
	PaymentNotPaid  PaymentStatus = "NOT_PAID"
	PaymentPartPaid PaymentStatus = "PART_PAID"
	PaymentPaid     PaymentStatus = "PAID"
)

// OrderStatus is the overall lifecycle state of a local order.
type OrderStatus string

const (
	OrderStatusCreated   OrderStatus = "CREATED"
	OrderStatusOpen      OrderStatus = "OPEN"
	OrderStatusFailed    OrderStatus = "FAILED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// ProviderOrder is the provider's record of a placed order.
type ProviderOrder struct {
	OrderID        string      `json:"order_id"`
	FraudStatus    FraudStatus `json:"fraud_status"`
	RedirectURL    string      `json:"redirect_url,omitempty"`
	CapturedAmount int64       `json:"captured_amount"`
}

// VCNCard is one virtual card issued for a settlement. PCIData stays
// encrypted with the merchant key.
type VCNCard struct {
	CardID    string `json:"card_id"`
	Brand     string `json:"brand"`
	Holder    string `json:"holder"`
	Reference string `json:"reference"`
	PCIData   string `json:"pci_data"`
	IV        string `json:"iv"`
	AESKey    string `json:"aes_key"`
	Amount    int64  `json:"amount"`
}

// Settlement holds the virtual card data of a VCN settlement.
type Settlement struct {
	SettlementID string    `json:"settlement_id"`
	Cards        []VCNCard `json:"cards"`
}

// Order is the local order annotated with the provider order.
type Order struct {
	OrderNo            string             `json:"order_no"`
	ShopperKey         string             `json:"shopper_key"`
	CustomerID         string             `json:"customer_id,omitempty"`
	Country            string             `json:"country"`
	Currency           string             `json:"currency"`
	Locale             string             `json:"locale"`
	TotalAmount        int64              `json:"total_amount"`
	Status             OrderStatus        `json:"status"`
	ProviderOrderID    string             `json:"provider_order_id,omitempty"`
	FraudStatus        FraudStatus        `json:"fraud_status,omitempty"`
	RedirectURL        string             `json:"redirect_url,omitempty"`
	ExportStatus       ExportStatus       `json:"export_status"`
	ConfirmationStatus ConfirmationStatus `json:"confirmation_status"`
	PaymentStatus      PaymentStatus      `json:"payment_status"`
	CapturedAmount     int64              `json:"captured_amount"`
	Settlement         *Settlement        `json:"settlement,omitempty"`
	Cart               *CartSnapshot      `json:"cart,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// NewOrder creates a local order that has not reached the provider yet.
func NewOrder(orderNo, shopperKey string, cart *CartSnapshot, totalAmount int64) *Order {
	now := time.Now().UTC()
	return &Order{
		OrderNo:            orderNo,
		ShopperKey:         shopperKey,
		CustomerID:         cart.Customer.ID,
		Country:            cart.Country,
		Currency:           cart.Currency,
		Locale:             NormalizeLocale(cart.Locale),
		TotalAmount:        totalAmount,
		Status:             OrderStatusCreated,
		ExportStatus:       ExportNotExported,
		ConfirmationStatus: ConfirmationNotConfirmed,
		PaymentStatus:      PaymentNotPaid,
		Cart:               cart,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// ApplyFraudStatus records fs and derives export, confirmation and payment
// status from it. An accepted order keeps its payment status, which only
// capture changes. Applying the same status twice is a no-op.
func (o *Order) ApplyFraudStatus(fs FraudStatus) {
	o.FraudStatus = fs
	switch {
	case fs.IsAccepted():
		o.ExportStatus = ExportReady
		o.ConfirmationStatus = ConfirmationConfirmed
		if o.Status == OrderStatusCreated {
			o.Status = OrderStatusOpen
		}
	case fs == FraudPending:
		o.ExportStatus = ExportNotExported
		o.ConfirmationStatus = ConfirmationNotConfirmed
		o.PaymentStatus = PaymentNotPaid
	case fs.IsRejected():
		o.ExportStatus = ExportNotExported
		o.ConfirmationStatus = ConfirmationNotConfirmed
		o.PaymentStatus = PaymentNotPaid
		o.Status = OrderStatusFailed
	}
}

// RecordCapture adds a captured amount and updates the payment status.
func (o *Order) RecordCapture(amount int64) {
	o.CapturedAmount += amount
	if o.CapturedAmount >= o.TotalAmount {
		o.PaymentStatus = PaymentPaid
	} else if o.CapturedAmount > 0 {
		o.PaymentStatus = PaymentPartPaid
	}
}

// RemainingAmount is the authorized amount not captured yet.
func (o *Order) RemainingAmount() int64 {
	if o.CapturedAmount >= o.TotalAmount {
		return 0
	}
	return o.TotalAmount - o.CapturedAmount
}
