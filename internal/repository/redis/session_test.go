package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klarna/sfcc-klarna-payments-sub001/internal/domain"
	apperrors "github.com/klarna/sfcc-klarna-payments-sub001/pkg/errors"
)

func setupTestRedis(t *testing.T) (*SessionStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewSessionStore(client, 48*time.Hour), mr
}

func sampleSession() *domain.PaymentSession {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &domain.PaymentSession{
		SessionID:   "s1",
		ClientToken: "t1",
		PaymentMethodCategories: []domain.PaymentMethodCategory{
			{Identifier: "pay_later", Name: "Pay later"},
		},
		Locale:    "en-us",
		Country:   "US",
		CreatedAt: now,
		ExpiresAt: now.Add(48 * time.Hour),
	}
}

func TestSessionStore_SaveAndGet(t *testing.T) {
	store, mr := setupTestRedis(t)
	ctx := context.Background()

	s := sampleSession()
	require.NoError(t, store.Save(ctx, "shopper-1", s))
	assert.True(t, mr.Exists("klarna:session:shopper-1"))

	got, err := store.Get(ctx, "shopper-1")
	require.NoError(t, err)
	assert.Equal(t, "s1", got.SessionID)
	assert.Equal(t, "t1", got.ClientToken)
	assert.Equal(t, "en-us", got.Locale)
	assert.True(t, s.ExpiresAt.Equal(got.ExpiresAt))
	require.Len(t, got.PaymentMethodCategories, 1)
}

func TestSessionStore_Get_NotFound(t *testing.T) {
	store, _ := setupTestRedis(t)

	got, err := store.Get(context.Background(), "nobody")
	assert.Nil(t, got)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestSessionStore_Get_CorruptPayload(t *testing.T) {
	store, mr := setupTestRedis(t)
	require.NoError(t, mr.Set("klarna:session:shopper-1", "{not json"))

	_, err := store.Get(context.Background(), "shopper-1")
	require.Error(t, err)
	assert.False(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestSessionStore_TTLFollowsSessionExpiry(t *testing.T) {
	store, mr := setupTestRedis(t)
	ctx := context.Background()

	s := sampleSession()
	s.ExpiresAt = time.Now().Add(time.Hour)
	require.NoError(t, store.Save(ctx, "shopper-1", s))

	ttl := mr.TTL("klarna:session:shopper-1")
	assert.LessOrEqual(t, ttl, time.Hour)
	assert.Greater(t, ttl, 59*time.Minute)

	mr.FastForward(2 * time.Hour)
	_, err := store.Get(ctx, "shopper-1")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestSessionStore_TTLDefaultsWithoutExpiry(t *testing.T) {
	store, mr := setupTestRedis(t)

	s := sampleSession()
	s.ExpiresAt = time.Time{}
	require.NoError(t, store.Save(context.Background(), "shopper-1", s))

	assert.Equal(t, 48*time.Hour, mr.TTL("klarna:session:shopper-1"))
}

func TestSessionStore_Clear(t *testing.T) {
	store, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "shopper-1", sampleSession()))
	require.NoError(t, store.Clear(ctx, "shopper-1"))
	assert.False(t, mr.Exists("klarna:session:shopper-1"))

	assert.NoError(t, store.Clear(ctx, "shopper-1"), "clearing a missing session succeeds")
}

func TestSessionStore_ConnectionError(t *testing.T) {
	store, mr := setupTestRedis(t)
	mr.Close()

	_, err := store.Get(context.Background(), "shopper-1")
	require.Error(t, err)
	assert.False(t, errors.Is(err, apperrors.ErrNotFound))
	assert.Error(t, store.Ping(context.Background()))
}
