package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ok(context.Context) error { return nil }

func failing(msg string) Checker {
	return func(context.Context) error { return errors.New(msg) }
}

func serveReadiness(t *testing.T, h *Handler) (int, Response) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ReadinessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return rec.Code, resp
}

func TestLivenessHandler_AlwaysReturns200(t *testing.T) {
	h := NewHandler()
	h.Register("postgres", failing("down"))

	rec := httptest.NewRecorder()
	h.LivenessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, StatusUp, resp.Status)
	assert.False(t, resp.Timestamp.IsZero())
	assert.Empty(t, resp.Checks)
}

func TestReadinessHandler(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(h *Handler)
		wantCode   int
		wantStatus Status
	}{
		{
			name:       "no checkers",
			setup:      func(h *Handler) {},
			wantCode:   http.StatusOK,
			wantStatus: StatusUp,
		},
		{
			name: "all up",
			setup: func(h *Handler) {
				h.RegisterCritical("postgres", ok)
				h.RegisterNonCritical("kafka", ok)
			},
			wantCode:   http.StatusOK,
			wantStatus: StatusUp,
		},
		{
			name: "non-critical down is degraded",
			setup: func(h *Handler) {
				h.Register("postgres", ok)
				h.RegisterNonCritical("kafka", failing("broker unreachable"))
				h.RegisterNonCritical("temporal", failing("frontend unavailable"))
			},
			wantCode:   http.StatusOK,
			wantStatus: StatusDegraded,
		},
		{
			name: "critical down",
			setup: func(h *Handler) {
				h.Register("postgres", failing("connection refused"))
				h.RegisterNonCritical("kafka", ok)
			},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: StatusDown,
		},
		{
			name: "critical and non-critical down",
			setup: func(h *Handler) {
				h.Register("redis", failing("redis down"))
				h.RegisterNonCritical("kafka", failing("kafka down"))
			},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: StatusDown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler()
			tt.setup(h)

			code, resp := serveReadiness(t, h)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantStatus, resp.Status)
		})
	}
}

func TestReadinessHandler_ReportsEachCheck(t *testing.T) {
	h := NewHandler()
	h.Register("postgres", ok)
	h.RegisterNonCritical("kafka", failing("broker unreachable"))

	_, resp := serveReadiness(t, h)

	require.Len(t, resp.Checks, 2)
	assert.Equal(t, CheckResult{Status: StatusUp, Critical: true}, resp.Checks["postgres"])
	assert.Equal(t, CheckResult{Status: StatusDown, Critical: false, Error: "broker unreachable"}, resp.Checks["kafka"])
}

func TestRegister_Overwrites(t *testing.T) {
	h := NewHandler()
	h.Register("redis", failing("down"))
	h.RegisterNonCritical("redis", failing("still down"))

	code, resp := serveReadiness(t, h)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, StatusDegraded, resp.Status)
	assert.Equal(t, "still down", resp.Checks["redis"].Error)
}
