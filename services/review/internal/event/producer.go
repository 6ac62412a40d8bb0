package event

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/logger"
	"github.com/utafrali/storefront/services/review/internal/domain"
)

// Kafka topics for review domain events.
var (
	TopicReviewCreated      = pkgkafka.Topic("review", "created")
	TopicReviewModerated    = pkgkafka.Topic("review", "moderated")
	TopicSummaryInvalidated = pkgkafka.Topic("review", "summary_invalidated")
)

// Aggregate types stamped on review events.
const (
	AggregateTypeReview         = "review"
	AggregateTypeProductSummary = "product_summary"
)

// Source identifier for events originating from the review service.
const SourceReviewService = "review-service"

// MetadataOrigin names the instance that emitted a summary_invalidated event.
const MetadataOrigin = "origin"

// ReviewCreatedData is the payload for a review.created event.
type ReviewCreatedData struct {
	ID               string    `json:"id"`
	ProductID        string    `json:"product_id"`
	UserID           *string   `json:"user_id,omitempty"`
	Rating           int       `json:"rating"`
	Status           string    `json:"status"`
	VerifiedPurchase bool      `json:"verified_purchase"`
	CreatedAt        time.Time `json:"created_at"`
}

// ReviewModeratedData is the payload for a review.moderated event.
type ReviewModeratedData struct {
	ID             string `json:"id"`
	ProductID      string `json:"product_id"`
	PreviousStatus string `json:"previous_status"`
	Status         string `json:"status"`
	Rating         int    `json:"rating"`
}

// SummaryInvalidatedData is the payload for a summary_invalidated event.
// Origin names the instance that changed the summary. Avg and Total are
// absent when the new summary could not be computed.
type SummaryInvalidatedData struct {
	ProductID string    `json:"product_id"`
	ChangedAt time.Time `json:"changed_at"`
	Origin    string    `json:"origin"`
	Avg       *float64  `json:"avg,omitempty"`
	Total     *int      `json:"total,omitempty"`
}

// Producer publishes review domain events to Kafka.
type Producer struct {
	kafka  pkgkafka.Publisher
	logger *slog.Logger
}

// NewProducer creates a new event producer for the review service.
func NewProducer(kafka pkgkafka.Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishReviewCreated publishes a review.created event.
func (p *Producer) PublishReviewCreated(ctx context.Context, review *domain.Review) error {
	data := ReviewCreatedData{
		ID:               review.ID,
		ProductID:        review.ProductID,
		UserID:           review.UserID,
		Rating:           review.Rating,
		Status:           review.Status,
		VerifiedPurchase: review.VerifiedPurchase,
		CreatedAt:        review.CreatedAt,
	}

	if err := p.publish(ctx, TopicReviewCreated, review.ID, AggregateTypeReview, data, nil); err != nil {
		return fmt.Errorf("publish review.created event: %w", err)
	}

	p.logger.DebugContext(ctx, "published review.created event",
		slog.String("review_id", review.ID),
		slog.String("product_id", review.ProductID),
	)
	return nil
}

// PublishReviewModerated publishes a review.moderated event.
func (p *Producer) PublishReviewModerated(ctx context.Context, review *domain.Review, previousStatus string) error {
	data := ReviewModeratedData{
		ID:             review.ID,
		ProductID:      review.ProductID,
		PreviousStatus: previousStatus,
		Status:         review.Status,
		Rating:         review.Rating,
	}

	if err := p.publish(ctx, TopicReviewModerated, review.ID, AggregateTypeReview, data, nil); err != nil {
		return fmt.Errorf("publish review.moderated event: %w", err)
	}

	p.logger.DebugContext(ctx, "published review.moderated event",
		slog.String("review_id", review.ID),
		slog.String("status", review.Status),
	)
	return nil
}

// PublishSummaryInvalidated publishes a summary_invalidated event.
func (p *Producer) PublishSummaryInvalidated(ctx context.Context, data SummaryInvalidatedData) error {
	origin := map[string]string{MetadataOrigin: data.Origin}
	if err := p.publish(ctx, TopicSummaryInvalidated, data.ProductID, AggregateTypeProductSummary, data, origin); err != nil {
		return fmt.Errorf("publish summary_invalidated event: %w", err)
	}

	p.logger.DebugContext(ctx, "published summary_invalidated event",
		slog.String("product_id", data.ProductID),
	)
	return nil
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID, aggregateType string, data any, metadata map[string]string) error {
	event, err := pkgkafka.NewEvent(topic, aggregateID, aggregateType, SourceReviewService, data)
	if err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	for k, v := range metadata {
		event.WithMetadata(k, v)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		event.WithCorrelationID(id)
	}
	return p.kafka.Publish(ctx, topic, event)
}
