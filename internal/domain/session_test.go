package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeLocale(t *testing.T) {
	assert.Equal(t, "en-us", NormalizeLocale("en-US"))
	assert.Equal(t, "de-at", NormalizeLocale("de_AT"))
	assert.Equal(t, "sv-se", NormalizeLocale(" sv-SE "))
}

func TestHasValidSession(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	valid := &PaymentSession{
		SessionID: "s1",
		Locale:    "en-us",
		ExpiresAt: now.Add(time.Hour),
	}

	tests := []struct {
		name    string
		session *PaymentSession
		locale  string
		want    bool
	}{
		{"nil session", nil, "en-US", false},
		{"no session id", &PaymentSession{Locale: "en-us", ExpiresAt: now.Add(time.Hour)}, "en-US", false},
		{"matching locale", valid, "en-US", true},
		{"matching normalised locale", valid, "en_us", true},
		{"locale changed", valid, "de-DE", false},
		{"expired", &PaymentSession{SessionID: "s1", Locale: "en-us", ExpiresAt: now}, "en-US", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.session.HasValidSession(tt.locale, now))
		})
	}
}

func TestHasValidSession_LocaleMismatchAlwaysInvalid(t *testing.T) {
	now := time.Now()
	locales := []string{"en-us", "en-gb", "de-de", "sv-se", "nb-no", "fi-fi"}
	for _, cached := range locales {
		for _, current := range locales {
			s := &PaymentSession{SessionID: "s1", Locale: cached, ExpiresAt: now.Add(time.Hour)}
			assert.Equal(t, cached == current, s.HasValidSession(current, now), "%s vs %s", cached, current)
		}
	}
}

func TestClearAuthorization(t *testing.T) {
	s := &PaymentSession{SessionID: "s1", AuthorizationToken: "tok", FinalizeRequired: true}
	s.ClearAuthorization()
	assert.Empty(t, s.AuthorizationToken)
	assert.False(t, s.FinalizeRequired)
	assert.Equal(t, "s1", s.SessionID)
}
