package http

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/klarna/sfcc-klarna-payments-sub001/internal/domain"
	"github.com/klarna/sfcc-klarna-payments-sub001/internal/service"
	apperrors "github.com/klarna/sfcc-klarna-payments-sub001/pkg/errors"
)

func testOrder(status domain.OrderStatus) *domain.Order {
	return &domain.Order{
		OrderNo:         "00001",
		ShopperKey:      "shopper-1",
		Country:         "US",
		Currency:        "USD",
		TotalAmount:     4000,
		Status:          status,
		ProviderOrderID: "po-1",
		FraudStatus:     domain.FraudAccepted,
	}
}

func placeOrderBody() map[string]any {
	return map[string]any{
		"order_no":            "00001",
		"shopper_key":         "shopper-1",
		"authorization_token": "auth-1",
		"cart":                validCartJSON(),
	}
}

func TestPlaceOrder_Success(t *testing.T) {
	ts := newTestServer()
	placed := testOrder(domain.OrderStatusOpen)
	placed.PaymentStatus = domain.PaymentPaid
	ts.orders.On("PlaceOrder", mock.Anything, mock.MatchedBy(func(in *service.PlaceOrderInput) bool {
		return in.OrderNo == "00001" && in.AuthorizationToken == "auth-1" && in.Cart != nil && in.Cart.Country == "US"
	})).Return(placed, nil)

	rec := ts.doMerchant(t, http.MethodPost, "/api/v1/orders", placeOrderBody())

	require.Equal(t, http.StatusCreated, rec.Code)
	resp := decodeData[domain.Order](t, rec)
	assert.Equal(t, "po-1", resp.Data.ProviderOrderID)
	assert.Equal(t, domain.PaymentPaid, resp.Data.PaymentStatus)
	ts.orders.AssertExpectations(t)
}

func TestPlaceOrder_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       func() map[string]any
		svcErr     error
		wantStatus int
		wantCode   string
	}{
		{
			name: "missing authorization token",
			body: func() map[string]any {
				b := placeOrderBody()
				delete(b, "authorization_token")
				return b
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "missing cart",
			body: func() map[string]any {
				b := placeOrderBody()
				delete(b, "cart")
				return b
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "payment rejected",
			body:       placeOrderBody,
			svcErr:     apperrors.PaymentFailed("payment was rejected", nil),
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "PAYMENT_FAILED",
		},
		{
			name:       "provider unavailable",
			body:       placeOrderBody,
			svcErr:     apperrors.PaymentUnavailable(errors.New("klarna 503")),
			wantStatus: http.StatusBadGateway,
			wantCode:   "PAYMENT_UNAVAILABLE",
		},
		{
			name:       "duplicate order",
			body:       placeOrderBody,
			svcErr:     apperrors.Conflict("order 00001 already placed"),
			wantStatus: http.StatusConflict,
			wantCode:   "CONFLICT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer()
			if tt.svcErr != nil {
				ts.orders.On("PlaceOrder", mock.Anything, mock.Anything).Return(nil, tt.svcErr)
			}

			rec := ts.doMerchant(t, http.MethodPost, "/api/v1/orders", tt.body())

			require.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantCode != "" {
				resp := decodeData[any](t, rec)
				require.NotNil(t, resp.Error)
				assert.Equal(t, tt.wantCode, resp.Error.Code)
			}
			if tt.svcErr == nil {
				ts.orders.AssertNotCalled(t, "PlaceOrder", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestGetOrder(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		ts := newTestServer()
		ts.orders.On("GetOrder", mock.Anything, "00001").Return(testOrder(domain.OrderStatusOpen), nil)

		rec := ts.doMerchant(t, http.MethodGet, "/api/v1/orders/00001", nil)

		require.Equal(t, http.StatusOK, rec.Code)
		resp := decodeData[domain.Order](t, rec)
		assert.Equal(t, "00001", resp.Data.OrderNo)
	})

	t.Run("not found", func(t *testing.T) {
		ts := newTestServer()
		ts.orders.On("GetOrder", mock.Anything, "nope").Return(nil, apperrors.NotFound("order", "nope"))

		rec := ts.doMerchant(t, http.MethodGet, "/api/v1/orders/nope", nil)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestRefreshOrder(t *testing.T) {
	ts := newTestServer()
	ts.orders.On("RefreshOrder", mock.Anything, "00001").Return(testOrder(domain.OrderStatusOpen), nil)

	rec := ts.doMerchant(t, http.MethodPost, "/api/v1/orders/00001/refresh", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	ts.orders.AssertExpectations(t)
}

func TestCapture(t *testing.T) {
	t.Run("partial amount", func(t *testing.T) {
		ts := newTestServer()
		o := testOrder(domain.OrderStatusOpen)
		o.CapturedAmount = 1500
		ts.orders.On("Capture", mock.Anything, "00001", int64(1500)).Return(o, nil)

		rec := ts.doMerchant(t, http.MethodPost, "/api/v1/orders/00001/capture", CaptureRequest{Amount: 1500})

		require.Equal(t, http.StatusOK, rec.Code)
		resp := decodeData[domain.Order](t, rec)
		assert.Equal(t, int64(1500), resp.Data.CapturedAmount)
	})

	t.Run("empty body captures remaining", func(t *testing.T) {
		ts := newTestServer()
		ts.orders.On("Capture", mock.Anything, "00001", int64(0)).Return(testOrder(domain.OrderStatusOpen), nil)

		rec := ts.doMerchant(t, http.MethodPost, "/api/v1/orders/00001/capture", nil)

		assert.Equal(t, http.StatusOK, rec.Code)
		ts.orders.AssertExpectations(t)
	})

	t.Run("negative amount", func(t *testing.T) {
		ts := newTestServer()

		rec := ts.doMerchant(t, http.MethodPost, "/api/v1/orders/00001/capture", CaptureRequest{Amount: -1})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		ts.orders.AssertNotCalled(t, "Capture", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("malformed body", func(t *testing.T) {
		ts := newTestServer()

		rec := ts.doMerchant(t, http.MethodPost, "/api/v1/orders/00001/capture", "{not json")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestCancel(t *testing.T) {
	ts := newTestServer()
	ts.orders.On("Cancel", mock.Anything, "00001").Return(testOrder(domain.OrderStatusCancelled), nil)

	rec := ts.doMerchant(t, http.MethodPost, "/api/v1/orders/00001/cancel", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeData[domain.Order](t, rec)
	assert.Equal(t, domain.OrderStatusCancelled, resp.Data.Status)
}

func TestClearSettlement(t *testing.T) {
	ts := newTestServer()
	ts.orders.On("ClearSettlementData", mock.Anything, "00001").Return(nil)

	rec := ts.doMerchant(t, http.MethodPost, "/api/v1/orders/00001/settlement/clear", nil)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	ts.orders.AssertExpectations(t)
}

func TestFraudNotification(t *testing.T) {
	t.Run("dispatches to the coordinator", func(t *testing.T) {
		ts := newTestServer()
		ts.orders.On("HandleFraudNotification", mock.Anything, "SE", "po-1", "FRAUD_RISK_ACCEPTED").Return(nil)

		rec := ts.do(t, http.MethodPost, "/webhooks/klarna/fraud?klarna_country=SE",
			FraudNotification{OrderID: "po-1", EventType: "FRAUD_RISK_ACCEPTED"})

		assert.Equal(t, http.StatusOK, rec.Code)
		ts.orders.AssertExpectations(t)
	})

	t.Run("failure still answers ok", func(t *testing.T) {
		ts := newTestServer()
		ts.orders.On("HandleFraudNotification", mock.Anything, "SE", "po-1", "FRAUD_RISK_STOPPED").
			Return(errors.New("db down"))

		rec := ts.do(t, http.MethodPost, "/webhooks/klarna/fraud?klarna_country=SE",
			FraudNotification{OrderID: "po-1", EventType: "FRAUD_RISK_STOPPED"})

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("malformed body is ignored", func(t *testing.T) {
		ts := newTestServer()

		rec := ts.do(t, http.MethodPost, "/webhooks/klarna/fraud?klarna_country=SE", map[string]any{"event_type": "X"})

		assert.Equal(t, http.StatusOK, rec.Code)
		ts.orders.AssertNotCalled(t, "HandleFraudNotification", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("any content type is accepted", func(t *testing.T) {
		for _, contentType := range []string{"text/plain", "application/x-www-form-urlencoded", "application/json; charset=utf-8"} {
			ts := newTestServer()
			ts.orders.On("HandleFraudNotification", mock.Anything, "SE", "po-1", "FRAUD_RISK_ACCEPTED").Return(nil)

			rec := ts.do(t, http.MethodPost, "/webhooks/klarna/fraud?klarna_country=SE",
				`{"order_id":"po-1","event_type":"FRAUD_RISK_ACCEPTED"}`, "Content-Type", contentType)

			assert.Equal(t, http.StatusOK, rec.Code, contentType)
			ts.orders.AssertNumberOfCalls(t, "HandleFraudNotification", 1)
		}
	})

	t.Run("needs no api key", func(t *testing.T) {
		ts := newTestServer()
		ts.orders.On("HandleFraudNotification", mock.Anything, "", "po-1", "FRAUD_RISK_ACCEPTED").Return(nil)

		rec := ts.do(t, http.MethodPost, "/webhooks/klarna/fraud",
			FraudNotification{OrderID: "po-1", EventType: "FRAUD_RISK_ACCEPTED"})

		assert.Equal(t, http.StatusOK, rec.Code)
		ts.orders.AssertNumberOfCalls(t, "HandleFraudNotification", 1)
	})
}
