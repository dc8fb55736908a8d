package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/klarna/sfcc-klarna-payments-sub001/internal/domain"
	apperrors "github.com/klarna/sfcc-klarna-payments-sub001/pkg/errors"
)

const keyPrefix = "klarna:session:"

// SessionStore implements repository.SessionStore using Redis. Entries
// expire together with the provider session.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSessionStore creates a new Redis-backed session store.
func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client: client,
		ttl:    ttl,
	}
}

// Get retrieves the cached session of a shopper.
func (s *SessionStore) Get(ctx context.Context, shopperKey string) (*domain.PaymentSession, error) {
	data, err := s.client.Get(ctx, keyPrefix+shopperKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.NotFound("payment session", shopperKey)
		}
		return nil, fmt.Errorf("redis get session: %w", err)
	}

	var session domain.PaymentSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &session, nil
}

// Save stores a session until its expiry, or for the configured TTL when
// the session carries none.
func (s *SessionStore) Save(ctx context.Context, shopperKey string, session *domain.PaymentSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	ttl := s.ttl
	if !session.ExpiresAt.IsZero() {
		if left := time.Until(session.ExpiresAt); left > 0 && left < ttl {
			ttl = left
		}
	}

	if err := s.client.Set(ctx, keyPrefix+shopperKey, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set session: %w", err)
	}
	return nil
}

// Clear removes the cached session of a shopper.
func (s *SessionStore) Clear(ctx context.Context, shopperKey string) error {
	if err := s.client.Del(ctx, keyPrefix+shopperKey).Err(); err != nil {
		return fmt.Errorf("redis del session: %w", err)
	}
	return nil
}

// Ping checks the Redis connection for readiness probes.
func (s *SessionStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
