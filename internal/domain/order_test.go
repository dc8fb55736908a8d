package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOrder() *Order {
	cart := &CartSnapshot{
		ID:       "cart-1",
		Currency: "USD",
		Country:  "US",
		Locale:   "en-US",
		Customer: Customer{ID: "cust-1"},
		TotalTax: decimal.Zero,
	}
	return NewOrder("00001", "shopper-1", cart, 10000)
}

func TestNewOrder_Defaults(t *testing.T) {
	o := newTestOrder()
	assert.Equal(t, OrderStatusCreated, o.Status)
	assert.Equal(t, ExportNotExported, o.ExportStatus)
	assert.Equal(t, ConfirmationNotConfirmed, o.ConfirmationStatus)
	assert.Equal(t, PaymentNotPaid, o.PaymentStatus)
	assert.Equal(t, "en-us", o.Locale)
	assert.Equal(t, "cust-1", o.CustomerID)
}

func TestApplyFraudStatus_Table(t *testing.T) {
	tests := []struct {
		fraud        FraudStatus
		export       ExportStatus
		confirmation ConfirmationStatus
		payment      PaymentStatus
		status       OrderStatus
	}{
		{FraudAccepted, ExportReady, ConfirmationConfirmed, PaymentNotPaid, OrderStatusOpen},
		{FraudAcceptedAfterReview, ExportReady, ConfirmationConfirmed, PaymentNotPaid, OrderStatusOpen},
		{FraudPending, ExportNotExported, ConfirmationNotConfirmed, PaymentNotPaid, OrderStatusCreated},
		{FraudRejected, ExportNotExported, ConfirmationNotConfirmed, PaymentNotPaid, OrderStatusFailed},
		{FraudRejectedAfterReview, ExportNotExported, ConfirmationNotConfirmed, PaymentNotPaid, OrderStatusFailed},
	}

	for _, tt := range tests {
		t.Run(string(tt.fraud), func(t *testing.T) {
			o := newTestOrder()
			o.ApplyFraudStatus(tt.fraud)

			assert.Equal(t, tt.fraud, o.FraudStatus)
			assert.Equal(t, tt.export, o.ExportStatus)
			assert.Equal(t, tt.confirmation, o.ConfirmationStatus)
			assert.Equal(t, tt.payment, o.PaymentStatus)
			assert.Equal(t, tt.status, o.Status)
		})
	}
}

func TestApplyFraudStatus_Idempotent(t *testing.T) {
	all := []FraudStatus{FraudAccepted, FraudPending, FraudRejected, FraudAcceptedAfterReview, FraudRejectedAfterReview}
	for _, fs := range all {
		t.Run(string(fs), func(t *testing.T) {
			base := newTestOrder()
			once, twice := *base, *base

			once.ApplyFraudStatus(fs)
			twice.ApplyFraudStatus(fs)
			twice.ApplyFraudStatus(fs)

			assert.Equal(t, once, twice)
		})
	}
}

func TestApplyFraudStatus_AcceptedKeepsCapturedPayment(t *testing.T) {
	o := newTestOrder()
	o.ApplyFraudStatus(FraudAccepted)
	o.RecordCapture(o.TotalAmount)
	require.Equal(t, PaymentPaid, o.PaymentStatus)

	o.ApplyFraudStatus(FraudAcceptedAfterReview)
	assert.Equal(t, PaymentPaid, o.PaymentStatus)
}

func TestRecordCapture(t *testing.T) {
	o := newTestOrder()

	o.RecordCapture(4000)
	assert.Equal(t, PaymentPartPaid, o.PaymentStatus)
	assert.Equal(t, int64(6000), o.RemainingAmount())

	o.RecordCapture(6000)
	assert.Equal(t, PaymentPaid, o.PaymentStatus)
	assert.Equal(t, int64(0), o.RemainingAmount())
}

func TestParseFraudStatus(t *testing.T) {
	fs, err := ParseFraudStatus("ACCEPTED_AFTER_REVIEW")
	require.NoError(t, err)
	assert.Equal(t, FraudAcceptedAfterReview, fs)

	_, err = ParseFraudStatus("accepted")
	assert.Error(t, err)
}
