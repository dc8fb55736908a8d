package provider

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a failed provider call.
type ErrorKind string

const (
	// KindTransport: the request never reached the provider or no response
	// was obtained.
	KindTransport ErrorKind = "transport"
	// KindNotFound: HTTP 404.
	KindNotFound ErrorKind = "not_found"
	// KindServerError: HTTP 5xx on an endpoint that does not swallow it.
	KindServerError ErrorKind = "server_error"
	// KindProviderRejected: any other non-success status or an error payload.
	KindProviderRejected ErrorKind = "provider_rejected"
	// KindValidation: bad local input, detected before any network call.
	KindValidation ErrorKind = "validation"
)

// Sentinels for errors.Is against a *Error of the matching kind.
var (
	ErrTransport        = errors.New("provider transport error")
	ErrNotFound         = errors.New("provider resource not found")
	ErrServerError      = errors.New("provider server error")
	ErrProviderRejected = errors.New("provider rejected request")
	ErrValidation       = errors.New("invalid provider request")
)

// Error is a classified provider failure.
type Error struct {
	Kind          ErrorKind
	Endpoint      Endpoint
	StatusCode    int
	Code          string
	Message       string
	CorrelationID string
	Err           error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Endpoint != "" {
		msg = string(e.Endpoint) + " " + msg
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Code != "" {
		msg += ": " + e.Code
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of e's kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrTransport:
		return e.Kind == KindTransport
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrServerError:
		return e.Kind == KindServerError
	case ErrProviderRejected:
		return e.Kind == KindProviderRejected
	case ErrValidation:
		return e.Kind == KindValidation
	}
	return false
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Kind, true
	}
	return "", false
}

// NewValidationError reports bad local input for an endpoint.
func NewValidationError(endpoint Endpoint, err error) *Error {
	return &Error{Kind: KindValidation, Endpoint: endpoint, Err: err}
}

// errorPayload is the provider's error body.
type errorPayload struct {
	ErrorCode     string   `json:"error_code"`
	ErrorMessages []string `json:"error_messages"`
	CorrelationID string   `json:"correlation_id"`
}

func (p errorPayload) message() string {
	return strings.Join(p.ErrorMessages, "; ")
}
