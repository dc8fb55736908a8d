package mock

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klarna/sfcc-klarna-payments-sub001/internal/provider"
)

func TestCaller_Defaults(t *testing.T) {
	c := New()
	ctx := context.Background()

	resp, err := c.Call(ctx, provider.Request{Endpoint: provider.EndpointSessionCreate})
	require.NoError(t, err)
	var session provider.SessionResponse
	require.NoError(t, resp.Decode(&session))
	assert.NotEmpty(t, session.SessionID)
	assert.Equal(t, "mock-token-"+session.SessionID, session.ClientToken)
	assert.Len(t, session.PaymentMethodCategories, 2)

	resp, err = c.Call(ctx, provider.Request{Endpoint: provider.EndpointSessionGet, PathParams: []string{session.SessionID}})
	require.NoError(t, err)
	var read provider.SessionReadResponse
	require.NoError(t, resp.Decode(&read))
	assert.Equal(t, session.SessionID, read.SessionID)

	resp, err = c.Call(ctx, provider.Request{Endpoint: provider.EndpointOrderCreate, PathParams: []string{"auth"}})
	require.NoError(t, err)
	var order provider.OrderResponse
	require.NoError(t, resp.Decode(&order))
	assert.Equal(t, "ACCEPTED", order.FraudStatus)

	assert.Equal(t, 1, c.CallCount(provider.EndpointSessionCreate))
	assert.Equal(t, []provider.Endpoint{
		provider.EndpointSessionCreate,
		provider.EndpointSessionGet,
		provider.EndpointOrderCreate,
	}, c.Endpoints())
}

func TestCaller_RespondAppliesEndpointPolicy(t *testing.T) {
	c := New().
		Respond(provider.EndpointCaptureCreate, http.StatusServiceUnavailable, nil).
		Respond(provider.EndpointOrderCancel, http.StatusServiceUnavailable, nil)

	_, err := c.Call(context.Background(), provider.Request{Endpoint: provider.EndpointCaptureCreate})
	assert.ErrorIs(t, err, provider.ErrServerError)

	resp, err := c.Call(context.Background(), provider.Request{Endpoint: provider.EndpointOrderCancel})
	require.NoError(t, err)
	assert.True(t, resp.Swallowed)
}

func TestCaller_FailAndCancelledContext(t *testing.T) {
	boom := &provider.Error{Kind: provider.KindTransport, Endpoint: provider.EndpointSessionCreate}
	c := New().Fail(provider.EndpointSessionCreate, boom)

	_, err := c.Call(context.Background(), provider.Request{Endpoint: provider.EndpointSessionCreate})
	assert.ErrorIs(t, err, provider.ErrTransport)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Call(ctx, provider.Request{Endpoint: provider.EndpointSessionGet})
	assert.ErrorIs(t, err, provider.ErrTransport)
	assert.Zero(t, c.CallCount(provider.EndpointSessionGet))
}
