package broadcast

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/utafrali/storefront/services/review/internal/domain"
	"github.com/utafrali/storefront/services/review/internal/event"
)

const sideChannelTimeout = 2 * time.Second

// MarkerStore persists the per-product "summary changed at" marker.
type MarkerStore interface {
	Touch(ctx context.Context, productID string, at time.Time) (time.Time, error)
	Get(ctx context.Context, productID string) (time.Time, error)
}

// SummaryPublisher announces summary changes to other instances.
type SummaryPublisher interface {
	PublishSummaryInvalidated(ctx context.Context, data event.SummaryInvalidatedData) error
}

// Broadcaster fans a summary change out to local subscribers, the durable
// marker and the other service instances.
type Broadcaster struct {
	bus       *Bus
	markers   MarkerStore
	publisher SummaryPublisher
	breaker   *gobreaker.CircuitBreaker[struct{}]
	origin    string
	logger    *slog.Logger
	now       func() time.Time
}

// NewBroadcaster creates a broadcaster. markers and publisher may be nil when
// the deployment runs without Redis or Kafka.
func NewBroadcaster(bus *Bus, markers MarkerStore, publisher SummaryPublisher, origin string, logger *slog.Logger) *Broadcaster {
	settings := gobreaker.Settings{
		Name:        "summary-invalidation-publisher",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	}

	return &Broadcaster{
		bus:       bus,
		markers:   markers,
		publisher: publisher,
		breaker:   gobreaker.NewCircuitBreaker[struct{}](settings),
		origin:    origin,
		logger:    logger,
		now:       time.Now,
	}
}

// Origin returns the instance identifier stamped on outgoing invalidations.
func (b *Broadcaster) Origin() string {
	return b.origin
}

// Notify announces that productID's summary is now summary. Failures of the
// marker store or the broker are logged and never returned, so a write that
// already committed is not reported as failed.
func (b *Broadcaster) Notify(ctx context.Context, productID string, summary domain.RatingSummary) {
	b.announce(ctx, productID, &summary)
}

// Invalidate announces that productID's summary changed without a known new
// value, as after a write whose recomputation failed.
func (b *Broadcaster) Invalidate(ctx context.Context, productID string) {
	b.announce(ctx, productID, nil)
}

func (b *Broadcaster) announce(ctx context.Context, productID string, summary *domain.RatingSummary) {
	at := b.now().UTC()
	inv := Invalidation{ProductID: productID, At: at, Origin: b.origin}

	b.bus.Publish(inv)

	// The request may already be finished; the side channels still have to run.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideChannelTimeout)
	defer cancel()

	if b.markers != nil {
		if _, err := b.markers.Touch(ctx, productID, at); err != nil {
			b.logger.WarnContext(ctx, "failed to touch summary marker",
				slog.String("product_id", productID),
				slog.String("error", err.Error()),
			)
		}
	}

	if b.publisher == nil {
		return
	}

	data := event.SummaryInvalidatedData{
		ProductID: productID,
		ChangedAt: at,
		Origin:    b.origin,
	}
	if summary != nil {
		data.Avg = &summary.Mean
		data.Total = &summary.Count
	}
	_, err := b.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, b.publisher.PublishSummaryInvalidated(ctx, data)
	})
	if err != nil {
		level := slog.LevelWarn
		if errors.Is(err, gobreaker.ErrOpenState) {
			level = slog.LevelDebug
		}
		b.logger.Log(ctx, level, "failed to publish summary invalidation",
			slog.String("product_id", productID),
			slog.String("error", err.Error()),
		)
	}
}

// Marker returns the durable marker of productID, or the zero time when no
// marker store is configured.
func (b *Broadcaster) Marker(ctx context.Context, productID string) (time.Time, error) {
	if b.markers == nil {
		return time.Time{}, nil
	}
	return b.markers.Get(ctx, productID)
}

// Subscribe registers a local subscriber on the bus.
func (b *Broadcaster) Subscribe() (<-chan Invalidation, func()) {
	return b.bus.Subscribe()
}
