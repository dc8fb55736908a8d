package signin

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klarna/sfcc-klarna-payments-sub001/internal/domain"
	"github.com/klarna/sfcc-klarna-payments-sub001/internal/provider"
	providermock "github.com/klarna/sfcc-klarna-payments-sub001/internal/provider/mock"
	apperrors "github.com/klarna/sfcc-klarna-payments-sub001/pkg/errors"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func catalogue() *provider.LocaleCatalogue {
	return &provider.LocaleCatalogue{
		Credentials: map[string]provider.Credential{
			"eu": {Username: "user", Password: "secret", BaseURL: "https://api.example.com"},
		},
		Countries: map[string]provider.LocaleSettings{
			"SE": {
				Country:        "SE",
				Locale:         "sv-SE",
				Currency:       "SEK",
				CredentialID:   "eu",
				TaxationPolicy: domain.TaxationGross,
				PricingMode:    domain.PricingFull,
				SignInClientID: "client-1",
			},
			"DE": {
				Country:        "DE",
				Locale:         "de-DE",
				Currency:       "EUR",
				CredentialID:   "eu",
				TaxationPolicy: domain.TaxationGross,
				PricingMode:    domain.PricingFull,
			},
		},
	}
}

type signer struct {
	kid string
	key *rsa.PrivateKey
}

func newSigner(t *testing.T, kid string) *signer {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return &signer{kid: kid, key: key}
}

func (s *signer) jwk() jose.JSONWebKey {
	return jose.JSONWebKey{Key: &s.key.PublicKey, KeyID: s.kid, Algorithm: string(jose.RS256), Use: "sig"}
}

func (s *signer) sign(t *testing.T, claims Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = s.kid
	signed, err := token.SignedString(s.key)
	require.NoError(t, err)
	return signed
}

func validClaims() Claims {
	return Claims{
		Email:         "jane@example.com",
		EmailVerified: true,
		GivenName:     "Jane",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Audience:  jwt.ClaimStrings{"client-1"},
			IssuedAt:  jwt.NewNumericDate(testNow.Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(testNow.Add(time.Hour)),
		},
	}
}

func keySetOf(signers ...*signer) jose.JSONWebKeySet {
	set := jose.JSONWebKeySet{}
	for _, s := range signers {
		set.Keys = append(set.Keys, s.jwk())
	}
	return set
}

func newTestService(caller provider.Caller, now *time.Time) *Service {
	clock := func() time.Time { return *now }
	keys := NewKeyCache(caller, discardLogger(), WithKeyClock(clock), WithKeyTTL(10*time.Minute))
	svc := NewService(caller, keys, catalogue(), discardLogger())
	svc.now = clock
	return svc
}

func TestVerify(t *testing.T) {
	s := newSigner(t, "kid-1")
	caller := providermock.New()
	caller.Respond(provider.EndpointSignInJWKS, http.StatusOK, keySetOf(s))
	now := testNow
	svc := newTestService(caller, &now)

	claims, err := svc.Verify(context.Background(), "se", s.sign(t, validClaims()))
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", claims.Email)
	assert.True(t, claims.EmailVerified)
	assert.Equal(t, "user-1", claims.Subject)

	_, err = svc.Verify(context.Background(), "SE", s.sign(t, validClaims()))
	require.NoError(t, err)
	assert.Equal(t, 1, caller.CallCount(provider.EndpointSignInJWKS))
	assert.Equal(t, "eu", caller.Calls(provider.EndpointSignInJWKS)[0].CredentialID)

	now = testNow.Add(11 * time.Minute)
	fresh := validClaims()
	fresh.ExpiresAt = jwt.NewNumericDate(now.Add(time.Hour))
	_, err = svc.Verify(context.Background(), "SE", s.sign(t, fresh))
	require.NoError(t, err)
	assert.Equal(t, 2, caller.CallCount(provider.EndpointSignInJWKS))
}

func TestVerify_Rejected(t *testing.T) {
	s := newSigner(t, "kid-1")
	other := newSigner(t, "kid-1")

	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(testNow.Add(-time.Hour))
	noExpiry := validClaims()
	noExpiry.ExpiresAt = nil
	wrongAudience := validClaims()
	wrongAudience.Audience = jwt.ClaimStrings{"someone-else"}

	hmac := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims())
	hmac.Header["kid"] = "kid-1"
	hmacToken, err := hmac.SignedString([]byte("secret"))
	require.NoError(t, err)

	noKid := jwt.NewWithClaims(jwt.SigningMethodRS256, validClaims())
	noKidToken, err := noKid.SignedString(s.key)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"expired", s.sign(t, expired)},
		{"no expiry", s.sign(t, noExpiry)},
		{"wrong audience", s.sign(t, wrongAudience)},
		{"foreign signature", other.sign(t, validClaims())},
		{"hmac algorithm", hmacToken},
		{"missing kid", noKidToken},
		{"garbage", "not.a.token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caller := providermock.New()
			caller.Respond(provider.EndpointSignInJWKS, http.StatusOK, keySetOf(s))
			now := testNow
			svc := newTestService(caller, &now)

			_, err := svc.Verify(context.Background(), "SE", tt.token)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrUnauthorized))
		})
	}
}

func TestVerify_LeewayAcceptsSlightlyExpiredToken(t *testing.T) {
	s := newSigner(t, "kid-1")
	caller := providermock.New()
	caller.Respond(provider.EndpointSignInJWKS, http.StatusOK, keySetOf(s))
	now := testNow
	svc := newTestService(caller, &now)

	claims := validClaims()
	claims.ExpiresAt = jwt.NewNumericDate(testNow.Add(-10 * time.Second))
	_, err := svc.Verify(context.Background(), "SE", s.sign(t, claims))
	assert.NoError(t, err)
}

func TestVerify_WithoutClientIDSkipsAudience(t *testing.T) {
	s := newSigner(t, "kid-1")
	caller := providermock.New()
	caller.Respond(provider.EndpointSignInJWKS, http.StatusOK, keySetOf(s))
	now := testNow
	svc := newTestService(caller, &now)

	claims := validClaims()
	claims.Audience = jwt.ClaimStrings{"anything"}
	_, err := svc.Verify(context.Background(), "DE", s.sign(t, claims))
	assert.NoError(t, err)
}

func TestVerify_RotatedKeyIsFetched(t *testing.T) {
	oldKey := newSigner(t, "kid-1")
	newKey := newSigner(t, "kid-2")
	var rotated atomic.Bool
	caller := providermock.New()
	caller.On(provider.EndpointSignInJWKS, func(provider.Request) (*provider.Response, error) {
		if rotated.Load() {
			return providermock.JSON(http.StatusOK, keySetOf(oldKey, newKey)), nil
		}
		return providermock.JSON(http.StatusOK, keySetOf(oldKey)), nil
	})
	now := testNow
	svc := newTestService(caller, &now)

	_, err := svc.Verify(context.Background(), "SE", oldKey.sign(t, validClaims()))
	require.NoError(t, err)

	rotated.Store(true)
	_, err = svc.Verify(context.Background(), "SE", newKey.sign(t, validClaims()))
	require.NoError(t, err)
	assert.Equal(t, 2, caller.CallCount(provider.EndpointSignInJWKS))
}

func TestVerify_KeysUnavailable(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   any
	}{
		{"server error", http.StatusServiceUnavailable, nil},
		{"empty key set", http.StatusOK, map[string]any{"keys": []any{}}},
		{"not json", http.StatusOK, "keys"},
	}

	s := newSigner(t, "kid-1")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caller := providermock.New()
			caller.Respond(provider.EndpointSignInJWKS, tt.status, tt.body)
			now := testNow
			svc := newTestService(caller, &now)

			_, err := svc.Verify(context.Background(), "SE", s.sign(t, validClaims()))
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrServiceUnavail))
		})
	}
}

func TestVerify_InvalidInput(t *testing.T) {
	now := testNow
	svc := newTestService(providermock.New(), &now)

	_, err := svc.Verify(context.Background(), "SE", "")
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))

	_, err = svc.Verify(context.Background(), "XX", "a.b.c")
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}

func TestRefresh(t *testing.T) {
	caller := providermock.New()
	now := testNow
	svc := newTestService(caller, &now)

	tokens, err := svc.Refresh(context.Background(), "SE", "refresh-1")
	require.NoError(t, err)
	assert.Equal(t, "mock-access", tokens.AccessToken)
	assert.Equal(t, "mock-refresh", tokens.RefreshToken)

	req := caller.Calls(provider.EndpointSignInRefresh)[0]
	assert.Equal(t, "eu", req.CredentialID)
	assert.Equal(t, &provider.TokenRefreshRequest{
		GrantType:    "refresh_token",
		RefreshToken: "refresh-1",
		ClientID:     "client-1",
	}, req.Body)
}

func TestRefresh_Failures(t *testing.T) {
	tests := []struct {
		name     string
		country  string
		token    string
		status   int
		body     any
		sentinel error
	}{
		{"missing token", "SE", "", http.StatusOK, nil, apperrors.ErrInvalidInput},
		{"sign-in not configured", "DE", "refresh-1", http.StatusOK, nil, apperrors.ErrInvalidInput},
		{"rejected", "SE", "refresh-1", http.StatusUnauthorized, map[string]any{"error_code": "invalid_grant"}, apperrors.ErrUnauthorized},
		{"server error", "SE", "refresh-1", http.StatusBadGateway, nil, apperrors.ErrServiceUnavail},
		{"no access token", "SE", "refresh-1", http.StatusOK, map[string]any{"token_type": "Bearer"}, apperrors.ErrServiceUnavail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caller := providermock.New()
			caller.Respond(provider.EndpointSignInRefresh, tt.status, tt.body)
			now := testNow
			svc := newTestService(caller, &now)

			_, err := svc.Refresh(context.Background(), tt.country, tt.token)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.sentinel))
		})
	}
}

func TestKeyCache_UnknownKid(t *testing.T) {
	s := newSigner(t, "kid-1")
	caller := providermock.New()
	caller.Respond(provider.EndpointSignInJWKS, http.StatusOK, keySetOf(s))
	cache := NewKeyCache(caller, discardLogger(), WithKeyClock(func() time.Time { return testNow }))

	key, err := cache.Key(context.Background(), "eu", "kid-1")
	require.NoError(t, err)
	pub, ok := key.(*rsa.PublicKey)
	require.True(t, ok)
	assert.Zero(t, pub.N.Cmp(s.key.N))
	assert.Equal(t, s.key.E, pub.E)

	_, err = cache.Key(context.Background(), "eu", "kid-9")
	assert.True(t, errors.Is(err, ErrKeyNotFound))
	assert.Equal(t, 2, caller.CallCount(provider.EndpointSignInJWKS))
}
