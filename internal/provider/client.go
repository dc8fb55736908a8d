package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/klarna/sfcc-klarna-payments-sub001/pkg/httpclient"
	"github.com/klarna/sfcc-klarna-payments-sub001/pkg/logger"
)

// IdempotencyHeader carries the caller's idempotency key.
const IdempotencyHeader = "Klarna-Idempotency-Key"

// Request is one logical provider call.
type Request struct {
	Endpoint       Endpoint
	CredentialID   string
	PathParams     []string
	Body           any
	IdempotencyKey string
}

// Response is a provider response. Swallowed is set when a 5xx was logged
// and suppressed by the endpoint's policy; Body is then the error body.
type Response struct {
	StatusCode int
	Body       []byte
	Header     http.Header
	Swallowed  bool
}

// Decode unmarshals the response body into v.
func (r *Response) Decode(v any) error {
	if len(r.Body) == 0 {
		return errors.New("empty response body")
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Caller executes provider calls.
type Caller interface {
	Call(ctx context.Context, req Request) (*Response, error)
}

// Doer sends HTTP requests. *httpclient.Client and
// *httpclient.CircuitBreakerClient implement it.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// CredentialSource resolves credential ids.
type CredentialSource interface {
	Credential(id string) (Credential, error)
}

// ClientConfig configures a Client.
type ClientConfig struct {
	UserAgent string
	// RateLimit is the sustained requests per second towards the provider;
	// zero disables limiting.
	RateLimit float64
	RateBurst int
}

// Client is the live provider client.
type Client struct {
	doer      Doer
	creds     CredentialSource
	limiter   *rate.Limiter
	userAgent string
	logger    *slog.Logger
}

// NewClient creates a provider client.
func NewClient(doer Doer, creds CredentialSource, cfg ClientConfig, logger *slog.Logger) *Client {
	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return &Client{
		doer:      doer,
		creds:     creds,
		limiter:   limiter,
		userAgent: cfg.UserAgent,
		logger:    logger,
	}
}

// Call resolves the endpoint, sends the request and classifies the outcome.
// Bodies are masked before they are logged, whatever the outcome.
func (c *Client) Call(ctx context.Context, req Request) (*Response, error) {
	log := logger.WithContext(ctx, c.logger).With(slog.String("endpoint", string(req.Endpoint)))

	spec, ok := Lookup(req.Endpoint)
	if !ok {
		return nil, NewValidationError(req.Endpoint, errors.New("unknown endpoint"))
	}
	cred, err := c.creds.Credential(req.CredentialID)
	if err != nil {
		return nil, NewValidationError(req.Endpoint, err)
	}
	path, err := Expand(spec.Template, req.PathParams...)
	if err != nil {
		return nil, NewValidationError(req.Endpoint, err)
	}

	var payload []byte
	if req.Body != nil {
		payload, err = json.Marshal(req.Body)
		if err != nil {
			return nil, NewValidationError(req.Endpoint, fmt.Errorf("marshal body: %w", err))
		}
	}

	httpReq, err := c.newHTTPRequest(ctx, spec.Method, cred, path, payload, req.IdempotencyKey)
	if err != nil {
		return nil, NewValidationError(req.Endpoint, err)
	}

	log.DebugContext(ctx, "provider request",
		slog.String("method", spec.Method),
		slog.String("path", path),
		slog.String("body", string(MaskPayload(payload))),
	)

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			c.record(req.Endpoint, string(KindTransport), 0)
			return nil, &Error{Kind: KindTransport, Endpoint: req.Endpoint, Err: fmt.Errorf("rate limit wait: %w", err)}
		}
	}

	start := time.Now()
	httpResp, err := c.doer.Do(ctx, httpReq)
	elapsed := time.Since(start)
	if err != nil {
		c.record(req.Endpoint, string(KindTransport), elapsed)
		log.ErrorContext(ctx, "provider call failed", slog.String("error", err.Error()))
		return nil, &Error{Kind: KindTransport, Endpoint: req.Endpoint, Err: err}
	}
	if httpResp == nil {
		c.record(req.Endpoint, string(KindTransport), elapsed)
		log.ErrorContext(ctx, "provider call returned no response")
		return nil, &Error{Kind: KindTransport, Endpoint: req.Endpoint, Err: errors.New("no response")}
	}

	body, err := httpclient.ReadBody(httpResp)
	if err != nil {
		c.record(req.Endpoint, string(KindTransport), elapsed)
		return nil, &Error{Kind: KindTransport, Endpoint: req.Endpoint, StatusCode: httpResp.StatusCode, Err: err}
	}

	resp := &Response{StatusCode: httpResp.StatusCode, Body: body, Header: httpResp.Header}
	log = log.With(
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", elapsed),
	)
	log.DebugContext(ctx, "provider response", slog.String("body", string(MaskPayload(body))))

	outcome, callErr := classify(req.Endpoint, spec, resp)
	c.record(req.Endpoint, outcome, elapsed)

	switch {
	case callErr == nil && resp.Swallowed:
		log.ErrorContext(ctx, "provider server error ignored", slog.String("body", string(MaskPayload(body))))
		return resp, nil
	case callErr == nil:
		log.InfoContext(ctx, "provider call succeeded")
		return resp, nil
	case errors.Is(callErr, ErrNotFound):
		log.WarnContext(ctx, "provider resource not found", slog.String("error", callErr.Error()))
	default:
		log.ErrorContext(ctx, "provider call failed",
			slog.String("error", callErr.Error()),
			slog.String("body", string(MaskPayload(body))),
		)
	}
	return nil, callErr
}

func (c *Client) newHTTPRequest(ctx context.Context, method string, cred Credential, path string, payload []byte, idempotencyKey string) (*http.Request, error) {
	var body io.Reader = http.NoBody
	if len(payload) > 0 {
		body = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, cred.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}
	httpReq.SetBasicAuth(cred.Username, cred.Password)
	if idempotencyKey != "" {
		httpReq.Header.Set(IdempotencyHeader, idempotencyKey)
	}
	return httpReq, nil
}

func (c *Client) record(endpoint Endpoint, outcome string, elapsed time.Duration) {
	callsTotal.WithLabelValues(string(endpoint), outcome).Inc()
	if elapsed > 0 {
		callDuration.WithLabelValues(string(endpoint)).Observe(elapsed.Seconds())
	}
}

// Classify applies the endpoint's status policy to a response, returning
// the response when it counts as success or swallowed and a classified error
// otherwise.
func Classify(endpoint Endpoint, resp *Response) (*Response, error) {
	spec, ok := Lookup(endpoint)
	if !ok {
		return nil, NewValidationError(endpoint, errors.New("unknown endpoint"))
	}
	if _, err := classify(endpoint, spec, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// classify maps a response to nil or a classified error. A 2xx carrying an
// error payload counts as rejected.
func classify(endpoint Endpoint, spec EndpointSpec, resp *Response) (string, error) {
	status := resp.StatusCode
	payload, hasPayload := parseErrorPayload(resp.Body)

	var kind ErrorKind
	switch {
	case httpclient.IsSuccess(status):
		if !hasPayload {
			return outcomeSuccess, nil
		}
		kind = KindProviderRejected
	case status == http.StatusNotFound:
		kind = KindNotFound
	case httpclient.IsServerError(status):
		if spec.SwallowServerError {
			resp.Swallowed = true
			return outcomeSwallowed, nil
		}
		kind = KindServerError
	default:
		kind = KindProviderRejected
	}

	return string(kind), &Error{
		Kind:          kind,
		Endpoint:      endpoint,
		StatusCode:    status,
		Code:          payload.ErrorCode,
		Message:       payload.message(),
		CorrelationID: payload.CorrelationID,
	}
}

func parseErrorPayload(body []byte) (errorPayload, bool) {
	var p errorPayload
	if len(body) == 0 || body[0] != '{' {
		return p, false
	}
	if err := json.Unmarshal(body, &p); err != nil {
		return p, false
	}
	return p, p.ErrorCode != ""
}
