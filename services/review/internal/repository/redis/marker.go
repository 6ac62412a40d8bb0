package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/storefront/pkg/database"
)

const markerKeyPrefix = "review:summary:marker:"

// touchScript only moves a marker forward, so a late writer with an older
// timestamp never hides a newer change from readers.
var touchScript = redis.NewScript(`
local current = tonumber(redis.call("GET", KEYS[1]) or "0")
local proposed = tonumber(ARGV[1])
if proposed > current then
	redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
	return proposed
end
redis.call("PEXPIRE", KEYS[1], ARGV[2])
return current
`)

// MarkerStore keeps the durable "summary changed at" marker of each product
// in Redis as unix milliseconds.
type MarkerStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewMarkerStore creates a new Redis-backed marker store.
func NewMarkerStore(client *redis.Client, ttl time.Duration) *MarkerStore {
	return &MarkerStore{
		client: client,
		ttl:    ttl,
	}
}

// Touch records that the product's summary changed at the given time and
// returns the marker now stored.
func (s *MarkerStore) Touch(ctx context.Context, productID string, at time.Time) (_ time.Time, err error) {
	ctx, end := database.Trace(ctx, database.SystemRedis, "TouchSummaryMarker", "EVALSHA touch marker")
	defer func() { end(err) }()

	ms, err := touchScript.Run(ctx, s.client,
		[]string{markerKeyPrefix + productID},
		at.UnixMilli(), s.ttl.Milliseconds(),
	).Int64()
	if err != nil {
		return time.Time{}, fmt.Errorf("redis touch marker: %w", err)
	}
	return time.UnixMilli(ms).UTC(), nil
}

// Get returns the product's marker, or the zero time when none is stored.
func (s *MarkerStore) Get(ctx context.Context, productID string) (_ time.Time, err error) {
	ctx, end := database.Trace(ctx, database.SystemRedis, "GetSummaryMarker", "GET marker")
	defer func() { end(err) }()

	ms, err := s.client.Get(ctx, markerKeyPrefix+productID).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("redis get marker: %w", err)
	}
	return time.UnixMilli(ms).UTC(), nil
}

// Ping checks the Redis connection for the readiness probe.
func (s *MarkerStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
