package validator

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sessionRequest struct {
	Country  string `json:"country" validate:"required,iso3166_1_alpha2"`
	Currency string `json:"currency" validate:"required,iso4217"`
	Locale   string `json:"locale" validate:"omitempty,locale"`
	Email    string `json:"email" validate:"omitempty,email"`
	Quantity int    `json:"quantity" validate:"gt=0,lte=999"`
	Mode     string `json:"mode" validate:"omitempty,oneof=full prorated"`
	Internal string `json:"-" validate:"max=3"`
}

func valid() sessionRequest {
	return sessionRequest{Country: "US", Currency: "USD", Locale: "en_US", Quantity: 1}
}

func fieldsOf(t *testing.T, err error) map[string]string {
	t.Helper()
	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	return valErr.Fields()
}

func TestValidate_Success(t *testing.T) {
	assert.NoError(t, Validate(valid()))

	s := valid()
	s.Locale = "de-AT"
	s.Mode = "prorated"
	assert.NoError(t, Validate(s))
}

func TestValidate_UsesJSONFieldNames(t *testing.T) {
	err := Validate(sessionRequest{Quantity: 1})
	require.Error(t, err)

	fields := fieldsOf(t, err)
	assert.Equal(t, "is required", fields["country"])
	assert.Equal(t, "is required", fields["currency"])
	assert.Contains(t, err.Error(), "field 'country'")
}

func TestValidate_DashTagFallsBackToStructName(t *testing.T) {
	s := valid()
	s.Internal = "toolong"
	fields := fieldsOf(t, Validate(s))
	assert.Equal(t, "must be at most 3", fields["Internal"])
}

func TestValidate_Messages(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*sessionRequest)
		field  string
		want   string
	}{
		{"country", func(s *sessionRequest) { s.Country = "USA" }, "country", "must be an ISO 3166 alpha-2 country code"},
		{"currency", func(s *sessionRequest) { s.Currency = "XXY" }, "currency", "must be an ISO 4217 currency code"},
		{"locale", func(s *sessionRequest) { s.Locale = "english" }, "locale", "must be a locale such as en_US"},
		{"email", func(s *sessionRequest) { s.Email = "nope" }, "email", "must be a valid email address"},
		{"zero quantity", func(s *sessionRequest) { s.Quantity = 0 }, "quantity", "must be greater than 0"},
		{"huge quantity", func(s *sessionRequest) { s.Quantity = 1000 }, "quantity", "must be less than or equal to 999"},
		{"mode", func(s *sessionRequest) { s.Mode = "partial" }, "mode", "must be one of: full prorated"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid()
			tt.mutate(&s)
			fields := fieldsOf(t, Validate(s))
			assert.Equal(t, tt.want, fields[tt.field])
		})
	}
}

func TestDecodeAndValidate_Success(t *testing.T) {
	body := `{"country":"SE","currency":"SEK","locale":"sv_SE","quantity":2}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))

	var dst sessionRequest
	require.NoError(t, DecodeAndValidate(req, &dst))
	assert.Equal(t, "SE", dst.Country)
	assert.Equal(t, 2, dst.Quantity)
}

func TestDecodeAndValidate_InvalidJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{bad`))

	var dst sessionRequest
	err := DecodeAndValidate(req, &dst)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode request body")
}

func TestDecodeAndValidate_ValidationFails(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"country":"SE","quantity":1}`))

	var dst sessionRequest
	err := DecodeAndValidate(req, &dst)
	fields := fieldsOf(t, err)
	assert.Contains(t, fields, "currency")
}

func TestDecodeAndValidate_BodyTooLarge(t *testing.T) {
	body := `{"country":"` + strings.Repeat("A", MaxBodyBytes) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))

	var dst sessionRequest
	require.Error(t, DecodeAndValidate(req, &dst))
}
