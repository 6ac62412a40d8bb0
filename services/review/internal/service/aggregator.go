package service

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/utafrali/storefront/pkg/cache"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/tracing"
	"github.com/utafrali/storefront/services/review/internal/domain"
	"github.com/utafrali/storefront/services/review/internal/repository"
)

const tracerName = "review-service"

// Notifier is told about every product whose aggregate changed. Invalidate
// is used when the new aggregate could not be computed.
type Notifier interface {
	Notify(ctx context.Context, productID string, summary domain.RatingSummary)
	Invalidate(ctx context.Context, productID string)
}

// Aggregator computes product rating aggregates from approved reviews and
// keeps the stored aggregate and the summary cache in step with them.
type Aggregator struct {
	reviews  repository.ReviewRepository
	products repository.ProductRepository
	cache    *cache.TTLCache[domain.RatingSummary]
	notifier Notifier
	logger   *slog.Logger
}

// NewAggregator creates a new aggregator.
func NewAggregator(
	reviews repository.ReviewRepository,
	products repository.ProductRepository,
	summaries *cache.TTLCache[domain.RatingSummary],
	notifier Notifier,
	logger *slog.Logger,
) *Aggregator {
	return &Aggregator{
		reviews:  reviews,
		products: products,
		cache:    summaries,
		notifier: notifier,
		logger:   logger,
	}
}

// Recompute recalculates the aggregate of productID, writes it onto the
// product and drops the cached summary. The cache entry is dropped and the
// change is still broadcast when the computation or write fails, so no
// reader keeps a value older than the failed attempt.
func (a *Aggregator) Recompute(ctx context.Context, productID string) (_ domain.RatingSummary, err error) {
	id, ok := domain.ParseReference(productID)
	if !ok {
		return domain.RatingSummary{}, apperrors.InvalidReference("product_id", productID)
	}

	ctx, span := tracing.StartSpan(ctx, tracerName, "Aggregator.Recompute",
		attribute.String("product.id", id),
	)
	defer func() { tracing.EndSpan(span, err) }()

	start := time.Now()
	summary, err := a.recompute(ctx, id)
	a.cache.Delete(id)
	recomputeDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		recomputeTotal.WithLabelValues("error").Inc()
		if a.notifier != nil {
			a.notifier.Invalidate(ctx, id)
		}
		return domain.RatingSummary{}, err
	}
	recomputeTotal.WithLabelValues("ok").Inc()

	span.SetAttributes(
		attribute.Float64("summary.mean", summary.Mean),
		attribute.Int("summary.count", summary.Count),
	)

	a.logger.InfoContext(ctx, "product aggregate recomputed",
		slog.String("product_id", id),
		slog.Float64("mean", summary.Mean),
		slog.Int("count", summary.Count),
	)

	if a.notifier != nil {
		a.notifier.Notify(ctx, id, summary)
	}
	return summary, nil
}

func (a *Aggregator) recompute(ctx context.Context, productID string) (domain.RatingSummary, error) {
	summary, err := a.reviews.ApprovedSummary(ctx, productID)
	if err != nil {
		return domain.RatingSummary{}, storeError("compute review summary", err)
	}
	if err := a.products.UpdateRating(ctx, productID, summary); err != nil {
		return domain.RatingSummary{}, storeError("update product rating", err)
	}
	return summary, nil
}

// Compute returns the current aggregate of productID without writing it back.
// productID must already be canonical.
func (a *Aggregator) Compute(ctx context.Context, productID string) (domain.RatingSummary, error) {
	summary, err := a.reviews.ApprovedSummary(ctx, productID)
	if err != nil {
		return domain.RatingSummary{}, storeError("compute review summary", err)
	}
	return summary, nil
}

// ComputeMany returns the aggregate of every id with one grouped query.
// Products without approved reviews get a zero summary.
func (a *Aggregator) ComputeMany(ctx context.Context, productIDs []string) (map[string]domain.RatingSummary, error) {
	found, err := a.reviews.ApprovedSummaries(ctx, productIDs)
	if err != nil {
		return nil, storeError("compute review summaries", err)
	}

	out := make(map[string]domain.RatingSummary, len(productIDs))
	for _, id := range productIDs {
		out[id] = found[id]
	}
	return out, nil
}
