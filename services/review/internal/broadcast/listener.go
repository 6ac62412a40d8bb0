package broadcast

import (
	"context"
	"log/slog"

	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/services/review/internal/event"
)

// CacheInvalidator drops a product's cached summary.
type CacheInvalidator interface {
	Invalidate(productID string)
}

// Listener applies summary invalidations published by other instances.
type Listener struct {
	cache  CacheInvalidator
	bus    *Bus
	origin string
	logger *slog.Logger
}

// NewListener creates a listener that ignores events stamped with origin.
func NewListener(cache CacheInvalidator, bus *Bus, origin string, logger *slog.Logger) *Listener {
	return &Listener{
		cache:  cache,
		bus:    bus,
		origin: origin,
		logger: logger,
	}
}

// Handle is a pkgkafka.Handler for the summary_invalidated topic.
func (l *Listener) Handle(ctx context.Context, ev *pkgkafka.Event) error {
	if ev.EventType != event.TopicSummaryInvalidated {
		return nil
	}
	if origin, ok := ev.Metadata[event.MetadataOrigin]; ok && origin == l.origin {
		return nil
	}

	var data event.SummaryInvalidatedData
	if err := ev.UnmarshalData(&data); err != nil {
		// Retrying cannot fix a malformed payload.
		l.logger.WarnContext(ctx, "skipping malformed summary invalidation",
			slog.String("event_id", ev.EventID),
			slog.String("error", err.Error()),
		)
		return nil
	}
	if data.ProductID == "" || data.Origin == l.origin {
		return nil
	}

	l.cache.Invalidate(data.ProductID)
	l.bus.Publish(Invalidation{
		ProductID: data.ProductID,
		At:        data.ChangedAt,
		Origin:    data.Origin,
	})

	l.logger.DebugContext(ctx, "applied remote summary invalidation",
		slog.String("product_id", data.ProductID),
		slog.String("origin", data.Origin),
	)
	return nil
}
