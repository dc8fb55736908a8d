package httpclient

import (
	"fmt"
	"io"
	"net/http"
)

// maxBodyBytes caps how much of a response body is read into memory.
const maxBodyBytes = 1 << 20

// StatusError describes a non-2xx response. Body holds at most 1 MB.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.StatusCode)
}

// ReadBody drains and closes the response body, returning at most 1 MB of it.
func ReadBody(resp *http.Response) ([]byte, error) {
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return body, nil
}

// IsClientError returns true if the HTTP status code is a 4xx client error.
func IsClientError(status int) bool {
	return status >= 400 && status < 500
}

// IsServerError returns true for 5xx statuses.
func IsServerError(status int) bool {
	return status >= 500 && status < 600
}

// IsSuccess returns true for 2xx statuses.
func IsSuccess(status int) bool {
	return status >= 200 && status < 300
}
