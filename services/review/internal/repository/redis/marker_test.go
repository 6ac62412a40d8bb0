package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMarkerStore(t *testing.T) (*MarkerStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewMarkerStore(client, time.Hour), mr
}

func TestMarkerStore_GetMissingIsZero(t *testing.T) {
	store, _ := setupMarkerStore(t)

	at, err := store.Get(context.Background(), "prod-1")
	require.NoError(t, err)
	assert.True(t, at.IsZero())
}

func TestMarkerStore_TouchThenGet(t *testing.T) {
	store, mr := setupMarkerStore(t)
	ctx := context.Background()

	at := time.Date(2026, 5, 1, 10, 0, 0, 123_000_000, time.UTC)
	stored, err := store.Touch(ctx, "prod-1", at)
	require.NoError(t, err)
	assert.True(t, at.Equal(stored))

	got, err := store.Get(ctx, "prod-1")
	require.NoError(t, err)
	assert.True(t, at.Equal(got))

	raw, err := mr.Get("review:summary:marker:prod-1")
	require.NoError(t, err)
	assert.Equal(t, "1777629600123", raw)
	assert.Equal(t, time.Hour, mr.TTL("review:summary:marker:prod-1"))
}

func TestMarkerStore_TouchNeverMovesBackwards(t *testing.T) {
	store, _ := setupMarkerStore(t)
	ctx := context.Background()

	newer := time.Date(2026, 5, 1, 10, 0, 5, 0, time.UTC)
	older := newer.Add(-3 * time.Second)

	_, err := store.Touch(ctx, "prod-1", newer)
	require.NoError(t, err)

	stored, err := store.Touch(ctx, "prod-1", older)
	require.NoError(t, err)
	assert.True(t, newer.Equal(stored))

	got, err := store.Get(ctx, "prod-1")
	require.NoError(t, err)
	assert.True(t, newer.Equal(got))
}

func TestMarkerStore_ExpiresAfterTTL(t *testing.T) {
	store, mr := setupMarkerStore(t)
	ctx := context.Background()

	_, err := store.Touch(ctx, "prod-1", time.Now())
	require.NoError(t, err)

	mr.FastForward(2 * time.Hour)

	got, err := store.Get(ctx, "prod-1")
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestMarkerStore_ConnectionError(t *testing.T) {
	store, mr := setupMarkerStore(t)
	mr.Close()

	_, err := store.Get(context.Background(), "prod-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis get marker")
	assert.Error(t, store.Ping(context.Background()))
}
