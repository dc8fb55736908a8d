// Package signin verifies the id tokens issued by the provider's sign-in
// flow and refreshes sign-in tokens.
package signin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"

	"github.com/klarna/sfcc-klarna-payments-sub001/internal/provider"
)

var (
	// ErrKeyNotFound is returned when the token's key id is absent from the key set.
	ErrKeyNotFound = errors.New("signin: signing key not found")
	// ErrKeysUnavailable wraps failures to fetch or decode the key set.
	ErrKeysUnavailable = errors.New("signin: key set unavailable")
)

const defaultKeyTTL = 15 * time.Minute

type keySet struct {
	keys   map[string]jose.JSONWebKey
	expiry time.Time
}

// KeyCache fetches the provider's JSON Web Key Set per credential region and
// keeps it for a fixed time. An unknown key id forces one refetch, which
// picks up rotated keys.
type KeyCache struct {
	caller provider.Caller
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger

	mu   sync.RWMutex
	sets map[string]keySet

	refreshMu sync.Mutex
}

// KeyCacheOption customises a KeyCache.
type KeyCacheOption func(*KeyCache)

// WithKeyTTL overrides how long a fetched key set is trusted.
func WithKeyTTL(d time.Duration) KeyCacheOption {
	return func(c *KeyCache) {
		if d > 0 {
			c.ttl = d
		}
	}
}

// WithKeyClock injects a time source.
func WithKeyClock(now func() time.Time) KeyCacheOption {
	return func(c *KeyCache) {
		if now != nil {
			c.now = now
		}
	}
}

// NewKeyCache creates a key cache that fetches through caller.
func NewKeyCache(caller provider.Caller, logger *slog.Logger, opts ...KeyCacheOption) *KeyCache {
	c := &KeyCache{
		caller: caller,
		ttl:    defaultKeyTTL,
		now:    time.Now,
		logger: logger,
		sets:   make(map[string]keySet),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Keyfunc returns a jwt.Keyfunc resolving keys of one credential region.
func (c *KeyCache) Keyfunc(ctx context.Context, credentialID string) jwt.Keyfunc {
	return func(token *jwt.Token) (any, error) {
		kid, _ := token.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("signin: token missing kid header")
		}
		if token.Method == nil || token.Method.Alg() != jwt.SigningMethodRS256.Alg() {
			return nil, fmt.Errorf("signin: unexpected signing method %v", token.Method)
		}
		return c.Key(ctx, credentialID, kid)
	}
}

// Key returns the public key with the given id, fetching the key set when it
// is missing, expired or lacks the id.
func (c *KeyCache) Key(ctx context.Context, credentialID, kid string) (any, error) {
	if key, fresh := c.cached(credentialID, kid); fresh && key != nil {
		return key, nil
	}

	if err := c.refresh(ctx, credentialID); err != nil {
		return nil, err
	}
	if key, _ := c.cached(credentialID, kid); key != nil {
		return key, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, kid)
}

// cached returns the key, if present, and whether the set is still fresh.
func (c *KeyCache) cached(credentialID, kid string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	set, ok := c.sets[credentialID]
	if !ok {
		return nil, false
	}
	fresh := c.now().Before(set.expiry)
	jwk, ok := set.keys[kid]
	if !ok {
		return nil, fresh
	}
	return jwk.Key, fresh
}

func (c *KeyCache) refresh(ctx context.Context, credentialID string) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	resp, err := c.caller.Call(ctx, provider.Request{
		Endpoint:     provider.EndpointSignInJWKS,
		CredentialID: credentialID,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrKeysUnavailable, err)
	}

	var set jose.JSONWebKeySet
	if err := resp.Decode(&set); err != nil {
		return fmt.Errorf("%w: %v", ErrKeysUnavailable, err)
	}

	keys := make(map[string]jose.JSONWebKey, len(set.Keys))
	for _, jwk := range set.Keys {
		if jwk.KeyID == "" || !jwk.Valid() || !jwk.IsPublic() {
			continue
		}
		keys[jwk.KeyID] = jwk
	}
	if len(keys) == 0 {
		return fmt.Errorf("%w: empty key set", ErrKeysUnavailable)
	}

	c.mu.Lock()
	c.sets[credentialID] = keySet{keys: keys, expiry: c.now().Add(c.ttl)}
	c.mu.Unlock()

	c.logger.DebugContext(ctx, "sign-in keys refreshed",
		slog.String("credential_id", credentialID),
		slog.Int("keys", len(keys)),
	)
	return nil
}
