package repository

import (
	"context"

	"github.com/utafrali/storefront/services/review/internal/domain"
)

// ReviewFilter defines filter criteria for listing reviews.
type ReviewFilter struct {
	ProductID string
	Status    string
	Sort      string
	Limit     int
	Offset    int
}

// ReviewRepository defines the interface for review persistence operations.
type ReviewRepository interface {
	// Create inserts a new review.
	Create(ctx context.Context, review *domain.Review) error

	// GetByID retrieves a review by its identifier.
	GetByID(ctx context.Context, id string) (*domain.Review, error)

	// List returns reviews matching the filter along with the total count.
	List(ctx context.Context, filter ReviewFilter) ([]domain.Review, int, error)

	// UpdateStatus sets a review's moderation status and returns the updated review.
	UpdateStatus(ctx context.Context, id, status string) (*domain.Review, error)

	// IncrementHelpful atomically adds one to the helpful counter and returns the new value.
	IncrementHelpful(ctx context.Context, id string) (int, error)

	// ApprovedSummary aggregates the approved reviews of one product.
	ApprovedSummary(ctx context.Context, productID string) (domain.RatingSummary, error)

	// ApprovedSummaries aggregates the approved reviews of many products in a
	// single grouped query. Products without approved reviews are absent.
	ApprovedSummaries(ctx context.Context, productIDs []string) (map[string]domain.RatingSummary, error)
}

// ProductRepository exposes the rating-relevant side of the catalog.
type ProductRepository interface {
	// GetByID retrieves a product by its identifier.
	GetByID(ctx context.Context, id string) (*domain.Product, error)

	// UpdateRating overwrites the product's aggregate in one update.
	UpdateRating(ctx context.Context, id string, summary domain.RatingSummary) error
}
