package provider

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Endpoint is a logical provider operation key.
type Endpoint string

const (
	EndpointSessionCreate       Endpoint = "session.create"
	EndpointSessionUpdate       Endpoint = "session.update"
	EndpointSessionGet          Endpoint = "session.get"
	EndpointOrderCreate         Endpoint = "order.create"
	EndpointAuthorizationCancel Endpoint = "authorization.cancel"
	EndpointCustomerTokenCreate Endpoint = "customertoken.create"
	EndpointCustomerTokenOrder  Endpoint = "customertoken.order"
	EndpointCustomerTokenCancel Endpoint = "customertoken.cancel"
	EndpointOrderGet            Endpoint = "order.get"
	EndpointOrderAcknowledge    Endpoint = "order.acknowledge"
	EndpointOrderCancel         Endpoint = "order.cancel"
	EndpointCaptureCreate       Endpoint = "capture.create"
	EndpointVCNSettlement       Endpoint = "vcn.settlement"
	EndpointWebhookCreate       Endpoint = "webhook.create"
	EndpointWebhookDelete       Endpoint = "webhook.delete"
	EndpointSignInRefresh       Endpoint = "signin.refresh"
	EndpointSignInJWKS          Endpoint = "signin.jwks"
)

// EndpointSpec describes how a logical endpoint is called and how its
// server errors are treated.
type EndpointSpec struct {
	Method   string
	Template string

	// SwallowServerError turns a 5xx into a logged, non-error response. It is
	// set for calls whose local side effect must not be undone by a transient
	// provider failure.
	SwallowServerError bool
}

var endpoints = map[Endpoint]EndpointSpec{
	EndpointSessionCreate:       {Method: http.MethodPost, Template: "/payments/v1/sessions"},
	EndpointSessionUpdate:       {Method: http.MethodPost, Template: "/payments/v1/sessions/{0}"},
	EndpointSessionGet:          {Method: http.MethodGet, Template: "/payments/v1/sessions/{0}"},
	EndpointOrderCreate:         {Method: http.MethodPost, Template: "/payments/v1/authorizations/{0}/order"},
	EndpointAuthorizationCancel: {Method: http.MethodDelete, Template: "/payments/v1/authorizations/{0}"},
	EndpointCustomerTokenCreate: {Method: http.MethodPost, Template: "/payments/v1/authorizations/{0}/customer-token"},
	EndpointCustomerTokenOrder:  {Method: http.MethodPost, Template: "/customer-token/v1/tokens/{0}/order"},
	EndpointCustomerTokenCancel: {Method: http.MethodPatch, Template: "/customer-token/v1/tokens/{0}/status", SwallowServerError: true},
	EndpointOrderGet:            {Method: http.MethodGet, Template: "/ordermanagement/v1/orders/{0}"},
	EndpointOrderAcknowledge:    {Method: http.MethodPost, Template: "/ordermanagement/v1/orders/{0}/acknowledge", SwallowServerError: true},
	EndpointOrderCancel:         {Method: http.MethodPost, Template: "/ordermanagement/v1/orders/{0}/cancel", SwallowServerError: true},
	EndpointCaptureCreate:       {Method: http.MethodPost, Template: "/ordermanagement/v1/orders/{0}/captures"},
	EndpointVCNSettlement:       {Method: http.MethodPost, Template: "/merchantcard/v3/settlements"},
	EndpointWebhookCreate:       {Method: http.MethodPost, Template: "/v2/notification/webhooks"},
	EndpointWebhookDelete:       {Method: http.MethodDelete, Template: "/v2/notification/webhooks/{0}", SwallowServerError: true},
	EndpointSignInRefresh:       {Method: http.MethodPost, Template: "/lp/idp/oauth2/token"},
	EndpointSignInJWKS:          {Method: http.MethodGet, Template: "/lp/idp/.well-known/jwks.json"},
}

// Lookup returns the method, template and error policy of a logical endpoint.
func Lookup(e Endpoint) (EndpointSpec, bool) {
	spec, ok := endpoints[e]
	return spec, ok
}

// Expand substitutes {0}, {1}... in template with path-escaped params. Every
// placeholder must be filled and every param used.
func Expand(template string, params ...string) (string, error) {
	var b strings.Builder
	used := make([]bool, len(params))

	for i := 0; i < len(template); i++ {
		c := template[i]
		if c != '{' {
			b.WriteByte(c)
			continue
		}
		end := strings.IndexByte(template[i:], '}')
		if end < 0 {
			return "", fmt.Errorf("unterminated placeholder in %q", template)
		}
		idx, err := strconv.Atoi(template[i+1 : i+end])
		if err != nil {
			return "", fmt.Errorf("invalid placeholder %q in %q", template[i:i+end+1], template)
		}
		if idx < 0 || idx >= len(params) {
			return "", fmt.Errorf("missing path parameter {%d} for %q", idx, template)
		}
		if params[idx] == "" {
			return "", fmt.Errorf("empty path parameter {%d} for %q", idx, template)
		}
		b.WriteString(url.PathEscape(params[idx]))
		used[idx] = true
		i += end
	}

	for i, u := range used {
		if !u {
			return "", fmt.Errorf("unused path parameter %d for %q", i, template)
		}
	}
	return b.String(), nil
}
