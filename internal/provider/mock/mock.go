package mock

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/klarna/sfcc-klarna-payments-sub001/internal/provider"
)

// Handler produces the response to one call.
type Handler func(req provider.Request) (*provider.Response, error)

// Caller is an in-memory provider that records calls. Without overrides it
// behaves like a sandbox that accepts everything.
type Caller struct {
	mu       sync.Mutex
	handlers map[provider.Endpoint]Handler
	calls    []provider.Request
}

// New creates a mock caller with sandbox defaults for every endpoint.
func New() *Caller {
	c := &Caller{handlers: make(map[provider.Endpoint]Handler)}
	c.installDefaults()
	return c
}

// Call records req and dispatches it to the endpoint's handler. Responses
// go through the same status policy as the live client.
func (c *Caller) Call(ctx context.Context, req provider.Request) (*provider.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, &provider.Error{Kind: provider.KindTransport, Endpoint: req.Endpoint, Err: err}
	}

	c.mu.Lock()
	c.calls = append(c.calls, req)
	h, ok := c.handlers[req.Endpoint]
	c.mu.Unlock()

	if !ok {
		return nil, &provider.Error{Kind: provider.KindNotFound, Endpoint: req.Endpoint, StatusCode: http.StatusNotFound}
	}
	resp, err := h(req)
	if err != nil {
		return nil, err
	}
	return provider.Classify(req.Endpoint, resp)
}

// On replaces the handler of an endpoint.
func (c *Caller) On(endpoint provider.Endpoint, h Handler) *Caller {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[endpoint] = h
	return c
}

// Respond makes an endpoint always answer with status and body.
func (c *Caller) Respond(endpoint provider.Endpoint, status int, body any) *Caller {
	return c.On(endpoint, func(provider.Request) (*provider.Response, error) {
		return JSON(status, body), nil
	})
}

// Fail makes an endpoint always fail with err.
func (c *Caller) Fail(endpoint provider.Endpoint, err error) *Caller {
	return c.On(endpoint, func(provider.Request) (*provider.Response, error) {
		return nil, err
	})
}

// Calls returns the recorded calls to endpoint.
func (c *Caller) Calls(endpoint provider.Endpoint) []provider.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []provider.Request
	for _, r := range c.calls {
		if r.Endpoint == endpoint {
			out = append(out, r)
		}
	}
	return out
}

// CallCount returns how many times endpoint was called.
func (c *Caller) CallCount(endpoint provider.Endpoint) int {
	return len(c.Calls(endpoint))
}

// Endpoints returns the endpoints called, in order.
func (c *Caller) Endpoints() []provider.Endpoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]provider.Endpoint, len(c.calls))
	for i, r := range c.calls {
		out[i] = r.Endpoint
	}
	return out
}

// JSON builds a response with a JSON body. A nil body yields an empty one.
func JSON(status int, body any) *provider.Response {
	resp := &provider.Response{StatusCode: status, Header: http.Header{"Content-Type": []string{"application/json"}}}
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			panic(err)
		}
		resp.Body = b
	}
	return resp
}

func pathParam(req provider.Request) string {
	if len(req.PathParams) == 0 {
		return ""
	}
	return req.PathParams[0]
}

func categories() []map[string]any {
	return []map[string]any{
		{"identifier": "pay_later", "name": "Pay later"},
		{"identifier": "pay_over_time", "name": "Financing"},
	}
}

func (c *Caller) installDefaults() {
	c.On(provider.EndpointSessionCreate, func(provider.Request) (*provider.Response, error) {
		id := uuid.NewString()
		return JSON(http.StatusOK, map[string]any{
			"session_id":                id,
			"client_token":              "mock-token-" + id,
			"payment_method_categories": categories(),
		}), nil
	})
	c.Respond(provider.EndpointSessionUpdate, http.StatusNoContent, nil)
	c.On(provider.EndpointSessionGet, func(req provider.Request) (*provider.Response, error) {
		id := pathParam(req)
		return JSON(http.StatusOK, map[string]any{
			"session_id":                id,
			"client_token":              "mock-token-" + id,
			"status":                    "incomplete",
			"payment_method_categories": categories(),
		}), nil
	})
	c.On(provider.EndpointOrderCreate, func(provider.Request) (*provider.Response, error) {
		return JSON(http.StatusOK, map[string]any{
			"order_id":     uuid.NewString(),
			"redirect_url": "https://mock.invalid/confirmation",
			"fraud_status": "ACCEPTED",
		}), nil
	})
	c.Respond(provider.EndpointAuthorizationCancel, http.StatusNoContent, nil)
	c.On(provider.EndpointCustomerTokenCreate, func(provider.Request) (*provider.Response, error) {
		return JSON(http.StatusOK, map[string]any{"token_id": uuid.NewString()}), nil
	})
	c.On(provider.EndpointCustomerTokenOrder, func(provider.Request) (*provider.Response, error) {
		return JSON(http.StatusOK, map[string]any{
			"order_id":     uuid.NewString(),
			"fraud_status": "ACCEPTED",
		}), nil
	})
	c.Respond(provider.EndpointCustomerTokenCancel, http.StatusAccepted, nil)
	c.On(provider.EndpointOrderGet, func(req provider.Request) (*provider.Response, error) {
		return JSON(http.StatusOK, map[string]any{
			"order_id":     pathParam(req),
			"status":       "AUTHORIZED",
			"fraud_status": "ACCEPTED",
		}), nil
	})
	c.Respond(provider.EndpointOrderAcknowledge, http.StatusNoContent, nil)
	c.Respond(provider.EndpointOrderCancel, http.StatusNoContent, nil)
	c.Respond(provider.EndpointCaptureCreate, http.StatusCreated, nil)
	c.On(provider.EndpointVCNSettlement, func(provider.Request) (*provider.Response, error) {
		return JSON(http.StatusCreated, map[string]any{
			"settlement_id": uuid.NewString(),
			"cards": []map[string]any{
				{"card_id": uuid.NewString(), "brand": "VISA", "holder": "Mock Holder", "pci_data": "ZW5jcnlwdGVk"},
			},
		}), nil
	})
	c.On(provider.EndpointWebhookCreate, func(provider.Request) (*provider.Response, error) {
		return JSON(http.StatusCreated, map[string]any{"webhook_id": uuid.NewString()}), nil
	})
	c.Respond(provider.EndpointWebhookDelete, http.StatusNoContent, nil)
	c.Respond(provider.EndpointSignInRefresh, http.StatusOK, map[string]any{
		"access_token":  "mock-access",
		"id_token":      "mock-id",
		"refresh_token": "mock-refresh",
		"token_type":    "Bearer",
		"expires_in":    3600,
	})
	c.Respond(provider.EndpointSignInJWKS, http.StatusOK, map[string]any{"keys": []any{}})
}
