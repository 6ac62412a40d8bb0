package service

import (
	"context"
	"log/slog"

	"github.com/utafrali/storefront/pkg/cache"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/services/review/internal/domain"
)

// DefaultBulkSummaryCap bounds the identifiers considered per bulk request.
const DefaultBulkSummaryCap = 300

// SummaryService answers summary reads from the cache, falling back to the
// aggregator on a miss.
type SummaryService struct {
	aggregator *Aggregator
	cache      *cache.TTLCache[domain.RatingSummary]
	bulkCap    int
	logger     *slog.Logger
}

// NewSummaryService creates a new summary service. A non-positive bulkCap
// uses DefaultBulkSummaryCap.
func NewSummaryService(aggregator *Aggregator, summaries *cache.TTLCache[domain.RatingSummary], bulkCap int, logger *slog.Logger) *SummaryService {
	if bulkCap <= 0 {
		bulkCap = DefaultBulkSummaryCap
	}
	return &SummaryService{
		aggregator: aggregator,
		cache:      summaries,
		bulkCap:    bulkCap,
		logger:     logger,
	}
}

// SummaryFor returns the rating summary of one product.
func (s *SummaryService) SummaryFor(ctx context.Context, productID string) (domain.Summary, error) {
	id, ok := domain.ParseReference(productID)
	if !ok {
		return domain.Summary{}, apperrors.InvalidReference("product_id", productID)
	}

	// The generation is read before the lookup so a recompute that lands
	// while Compute runs keeps this result out of the cache.
	gen := s.cache.Generation(id)
	if cached, ok := s.cache.Get(id); ok {
		return domain.Summary{RatingSummary: cached, Cached: true}, nil
	}

	summary, err := s.aggregator.Compute(ctx, id)
	if err != nil {
		return domain.Summary{}, err
	}
	s.cache.SetIfUnchanged(id, summary, gen)

	return domain.Summary{RatingSummary: summary}, nil
}

// BulkSummaryFor returns the summary of every well-formed id in productIDs.
// Identifiers past the cap are dropped, malformed ones are skipped and
// duplicates are answered once. All cache misses are resolved with a single
// grouped query.
func (s *SummaryService) BulkSummaryFor(ctx context.Context, productIDs []string) (map[string]domain.Summary, error) {
	if len(productIDs) > s.bulkCap {
		productIDs = productIDs[:s.bulkCap]
	}

	out := make(map[string]domain.Summary, len(productIDs))
	gens := make(map[string]uint64)
	var misses []string
	for _, raw := range productIDs {
		id, ok := domain.ParseReference(raw)
		if !ok {
			continue
		}
		if _, seen := out[id]; seen {
			continue
		}
		gen := s.cache.Generation(id)
		if cached, ok := s.cache.Get(id); ok {
			out[id] = domain.Summary{RatingSummary: cached, Cached: true}
			continue
		}
		// Placeholder marks the id as seen until the grouped query fills it.
		out[id] = domain.Summary{}
		gens[id] = gen
		misses = append(misses, id)
	}

	bulkSummaryIDs.WithLabelValues("hit").Observe(float64(len(out) - len(misses)))
	bulkSummaryIDs.WithLabelValues("miss").Observe(float64(len(misses)))

	if len(misses) == 0 {
		return out, nil
	}

	computed, err := s.aggregator.ComputeMany(ctx, misses)
	if err != nil {
		return nil, err
	}
	for _, id := range misses {
		summary := computed[id]
		s.cache.SetIfUnchanged(id, summary, gens[id])
		out[id] = domain.Summary{RatingSummary: summary}
	}

	s.logger.DebugContext(ctx, "bulk summary resolved",
		slog.Int("ids", len(out)),
		slog.Int("misses", len(misses)),
	)
	return out, nil
}

// Invalidate drops the cached summary of productID.
func (s *SummaryService) Invalidate(productID string) {
	if id, ok := domain.ParseReference(productID); ok {
		s.cache.Delete(id)
	}
}
