package domain

import (
	"strings"
	"time"
)

// PaymentMethodCategory is one payment option offered in a session.
type PaymentMethodCategory struct {
	Identifier     string `json:"identifier"`
	Name           string `json:"name"`
	DescriptiveURL string `json:"descriptive_asset_url,omitempty"`
	StandardURL    string `json:"standard_asset_url,omitempty"`
}

// PaymentSession is the cached state of a provider checkout session for one
// shopper. The zero value means no session.
type PaymentSession struct {
	SessionID               string                  `json:"session_id"`
	ClientToken             string                  `json:"client_token"`
	PaymentMethodCategories []PaymentMethodCategory `json:"payment_method_categories"`
	Locale                  string                  `json:"locale"`
	Country                 string                  `json:"country"`
	CreatedAt               time.Time               `json:"created_at"`
	ExpiresAt               time.Time               `json:"expires_at"`
	AuthorizationToken      string                  `json:"authorization_token,omitempty"`
	FinalizeRequired        bool                    `json:"finalize_required,omitempty"`
}

// NormalizeLocale lower-cases a locale and uses '-' as separator, so that
// "en_US" and "en-US" both become "en-us".
func NormalizeLocale(locale string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(locale), "_", "-"))
}

// HasValidSession reports whether the session can be refreshed instead of
// recreated: it has an id, was created for locale and has not expired.
func (s *PaymentSession) HasValidSession(locale string, now time.Time) bool {
	if s == nil || s.SessionID == "" {
		return false
	}
	if s.Locale != NormalizeLocale(locale) {
		return false
	}
	return now.Before(s.ExpiresAt)
}

// ClearAuthorization drops the authorization token and its finalize flag.
func (s *PaymentSession) ClearAuthorization() {
	s.AuthorizationToken = ""
	s.FinalizeRequired = false
}
