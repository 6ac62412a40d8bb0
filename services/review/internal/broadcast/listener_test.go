package broadcast

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/logger"
	"github.com/utafrali/storefront/services/review/internal/event"
)

type recordingCache struct {
	dropped []string
}

func (c *recordingCache) Invalidate(productID string) {
	c.dropped = append(c.dropped, productID)
}

func invalidationEvent(t *testing.T, data event.SummaryInvalidatedData) *pkgkafka.Event {
	t.Helper()
	ev, err := pkgkafka.NewEvent(event.TopicSummaryInvalidated, data.ProductID,
		event.AggregateTypeProductSummary, event.SourceReviewService, data)
	require.NoError(t, err)
	return ev
}

func TestListener_AppliesRemoteInvalidation(t *testing.T) {
	cache := &recordingCache{}
	bus := NewBus(2)
	sub, cancel := bus.Subscribe()
	defer cancel()

	l := NewListener(cache, bus, "review-b", logger.Discard())
	at := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)

	err := l.Handle(context.Background(), invalidationEvent(t, event.SummaryInvalidatedData{
		ProductID: "prod-1",
		ChangedAt: at,
		Origin:    "review-a",
	}))
	require.NoError(t, err)

	assert.Equal(t, []string{"prod-1"}, cache.dropped)
	got := <-sub
	assert.Equal(t, "prod-1", got.ProductID)
	assert.Equal(t, "review-a", got.Origin)
	assert.True(t, at.Equal(got.At))
}

func TestListener_IgnoresOwnOrigin(t *testing.T) {
	cache := &recordingCache{}
	bus := NewBus(1)
	l := NewListener(cache, bus, "review-a", logger.Discard())

	err := l.Handle(context.Background(), invalidationEvent(t, event.SummaryInvalidatedData{
		ProductID: "prod-1",
		Origin:    "review-a",
	}))
	require.NoError(t, err)
	assert.Empty(t, cache.dropped)
}

func TestListener_IgnoresOwnOriginFromMetadata(t *testing.T) {
	cache := &recordingCache{}
	l := NewListener(cache, NewBus(1), "review-a", logger.Discard())

	ev := invalidationEvent(t, event.SummaryInvalidatedData{ProductID: "prod-1"})
	ev.WithMetadata(event.MetadataOrigin, "review-a")

	require.NoError(t, l.Handle(context.Background(), ev))
	assert.Empty(t, cache.dropped)
}

func TestListener_IgnoresOtherEventTypes(t *testing.T) {
	cache := &recordingCache{}
	l := NewListener(cache, NewBus(1), "review-a", logger.Discard())

	ev, err := pkgkafka.NewEvent(event.TopicReviewCreated, "rev-1", event.AggregateTypeReview,
		event.SourceReviewService, map[string]string{"product_id": "prod-1"})
	require.NoError(t, err)

	require.NoError(t, l.Handle(context.Background(), ev))
	assert.Empty(t, cache.dropped)
}

func TestListener_MalformedPayloadIsSkipped(t *testing.T) {
	cache := &recordingCache{}
	l := NewListener(cache, NewBus(1), "review-a", logger.Discard())

	ev := &pkgkafka.Event{
		EventID:   "evt-1",
		EventType: event.TopicSummaryInvalidated,
		Data:      json.RawMessage(`"not an object"`),
	}

	require.NoError(t, l.Handle(context.Background(), ev))
	assert.Empty(t, cache.dropped)
}
