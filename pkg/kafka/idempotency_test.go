package kafka

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/pkg/cache"
	"github.com/utafrali/storefront/pkg/logger"
)

func testLogger() *slog.Logger {
	return logger.Discard()
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestMemoryIdempotencyStore_Expiry(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := NewMemoryIdempotencyStore(time.Hour, cache.WithClock(clock.Now))
	ctx := context.Background()

	seen, err := store.Contains(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, store.Add(ctx, "evt-1"))
	require.NoError(t, store.Add(ctx, "evt-1"))
	assert.Equal(t, 1, store.Len())

	clock.Advance(time.Hour - time.Millisecond)
	seen, _ = store.Contains(ctx, "evt-1")
	assert.True(t, seen)

	clock.Advance(time.Millisecond)
	seen, _ = store.Contains(ctx, "evt-1")
	assert.False(t, seen)
}

func TestMemoryIdempotencyStore_ConcurrentAccess(t *testing.T) {
	store := NewMemoryIdempotencyStore(time.Minute)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Add(ctx, "evt-shared")
			_, _ = store.Contains(ctx, "evt-shared")
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, store.Len())
}

type mockIdempotencyStore struct {
	mock.Mock
}

func (m *mockIdempotencyStore) Contains(ctx context.Context, eventID string) (bool, error) {
	args := m.Called(ctx, eventID)
	return args.Bool(0), args.Error(1)
}

func (m *mockIdempotencyStore) Add(ctx context.Context, eventID string) error {
	return m.Called(ctx, eventID).Error(0)
}

func invalidation(eventID string) *Event {
	return &Event{
		EventID:     eventID,
		EventType:   "storefront.review.summary_invalidated",
		AggregateID: "prod-1",
	}
}

func countingHandler(calls *int, err error) Handler {
	return func(context.Context, *Event) error {
		*calls++
		return err
	}
}

func TestIdempotentHandler_SkipsDuplicates(t *testing.T) {
	var calls int
	h := IdempotentHandler(NewMemoryIdempotencyStore(time.Minute), countingHandler(&calls, nil), testLogger())

	require.NoError(t, h(context.Background(), invalidation("evt-1")))
	require.NoError(t, h(context.Background(), invalidation("evt-1")))
	require.NoError(t, h(context.Background(), invalidation("evt-2")))

	assert.Equal(t, 2, calls)
}

func TestIdempotentHandler_EmptyEventIDAlwaysRuns(t *testing.T) {
	var calls int
	h := IdempotentHandler(NewMemoryIdempotencyStore(time.Minute), countingHandler(&calls, nil), testLogger())

	require.NoError(t, h(context.Background(), invalidation("")))
	require.NoError(t, h(context.Background(), invalidation("")))

	assert.Equal(t, 2, calls)
}

func TestIdempotentHandler_FailureIsNotRecorded(t *testing.T) {
	store := NewMemoryIdempotencyStore(time.Minute)
	boom := errors.New("cache unavailable")

	var calls int
	failing := IdempotentHandler(store, countingHandler(&calls, boom), testLogger())
	assert.ErrorIs(t, failing(context.Background(), invalidation("evt-1")), boom)

	seen, _ := store.Contains(context.Background(), "evt-1")
	assert.False(t, seen)

	ok := IdempotentHandler(store, countingHandler(&calls, nil), testLogger())
	require.NoError(t, ok(context.Background(), invalidation("evt-1")))
	assert.Equal(t, 2, calls)
}

func TestIdempotentHandler_StoreErrorsDoNotBlockProcessing(t *testing.T) {
	store := &mockIdempotencyStore{}
	store.On("Contains", mock.Anything, "evt-1").Return(false, errors.New("lookup failed")).Once()
	store.On("Contains", mock.Anything, "evt-2").Return(false, nil).Once()
	store.On("Add", mock.Anything, "evt-2").Return(errors.New("write failed")).Once()

	var calls int
	h := IdempotentHandler(store, countingHandler(&calls, nil), testLogger())

	require.NoError(t, h(context.Background(), invalidation("evt-1")))
	require.NoError(t, h(context.Background(), invalidation("evt-2")))

	assert.Equal(t, 2, calls)
	store.AssertExpectations(t)
}
