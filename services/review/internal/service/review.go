package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/pagination"
	"github.com/utafrali/storefront/services/review/internal/domain"
	"github.com/utafrali/storefront/services/review/internal/repository"
)

// EventPublisher publishes review domain events.
type EventPublisher interface {
	PublishReviewCreated(ctx context.Context, review *domain.Review) error
	PublishReviewModerated(ctx context.Context, review *domain.Review, previousStatus string) error
}

// CreateReviewInput holds the parameters for creating a review.
type CreateReviewInput struct {
	ProductID   string
	UserID      string
	Rating      int
	Title       string
	Comment     string
	AuthorName  string
	AuthorEmail string
}

// ListReviewsInput holds the parameters for a public review listing.
type ListReviewsInput struct {
	ProductID string
	Page      int
	Limit     int
	Sort      string
}

// ReviewService implements the business logic for review operations.
type ReviewService struct {
	reviews     repository.ReviewRepository
	products    repository.ProductRepository
	aggregator  *Aggregator
	events      EventPublisher
	autoPublish bool
	logger      *slog.Logger
	now         func() time.Time
}

// NewReviewService creates a new review service. events may be nil when no
// broker is configured.
func NewReviewService(
	reviews repository.ReviewRepository,
	products repository.ProductRepository,
	aggregator *Aggregator,
	events EventPublisher,
	autoPublish bool,
	logger *slog.Logger,
) *ReviewService {
	return &ReviewService{
		reviews:     reviews,
		products:    products,
		aggregator:  aggregator,
		events:      events,
		autoPublish: autoPublish,
		logger:      logger,
		now:         time.Now,
	}
}

// CreateReview validates and stores a new review. An approved review
// triggers a recomputation of the product aggregate; a failed recomputation
// is logged and the stored review is still returned.
func (s *ReviewService) CreateReview(ctx context.Context, input *CreateReviewInput) (*domain.Review, error) {
	productID, ok := domain.ParseReference(input.ProductID)
	if !ok {
		return nil, apperrors.InvalidReference("product_id", input.ProductID)
	}

	content := domain.ReviewContent{
		Rating:      input.Rating,
		Title:       input.Title,
		Comment:     input.Comment,
		AuthorName:  input.AuthorName,
		AuthorEmail: input.AuthorEmail,
	}.Normalize()
	if fields := content.Validate(); fields != nil {
		return nil, apperrors.Validation(fields)
	}

	var userID *string
	if raw := strings.TrimSpace(input.UserID); raw != "" {
		id, ok := domain.ParseReference(raw)
		if !ok {
			return nil, apperrors.InvalidReference("user_id", raw)
		}
		userID = &id
	}

	if _, err := s.products.GetByID(ctx, productID); err != nil {
		return nil, storeError("get product", err)
	}

	now := s.now().UTC()
	review := &domain.Review{
		ID:          uuid.New().String(),
		ProductID:   productID,
		AuthorName:  content.AuthorName,
		AuthorEmail: content.AuthorEmail,
		Rating:      content.Rating,
		Title:       content.Title,
		Comment:     content.Comment,
		Status:      domain.InitialStatus(s.autoPublish),
		CreatedAt:   now,
		UpdatedAt:   now,
		UserID:      userID,
	}

	if err := s.reviews.Create(ctx, review); err != nil {
		return nil, storeError("create review", err)
	}

	s.logger.InfoContext(ctx, "review created",
		slog.String("review_id", review.ID),
		slog.String("product_id", review.ProductID),
		slog.String("status", review.Status),
	)

	if s.events != nil {
		if err := s.events.PublishReviewCreated(ctx, review); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish review created event",
				slog.String("review_id", review.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	if review.IsApproved() {
		s.recomputeAfterWrite(ctx, review.ProductID)
	}

	return review, nil
}

// ListReviews returns one page of a product's approved reviews.
func (s *ReviewService) ListReviews(ctx context.Context, input ListReviewsInput) (pagination.Result[domain.Review], error) {
	productID, ok := domain.ParseReference(input.ProductID)
	if !ok {
		return pagination.Result[domain.Review]{}, apperrors.InvalidReference("product_id", input.ProductID)
	}

	params := pagination.DefaultPolicy.Params(input.Page, input.Limit)
	reviews, total, err := s.reviews.List(ctx, repository.ReviewFilter{
		ProductID: productID,
		Status:    domain.ReviewStatusApproved,
		Sort:      domain.ParseSort(input.Sort),
		Limit:     params.Limit,
		Offset:    params.Offset,
	})
	if err != nil {
		return pagination.Result[domain.Review]{}, storeError("list reviews", err)
	}

	return pagination.NewResult(reviews, total, params), nil
}

// ListForModeration returns reviews in the given status, oldest first.
// An empty status lists the pending queue.
func (s *ReviewService) ListForModeration(ctx context.Context, status string, page, limit int) (pagination.Result[domain.Review], error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if status == "" {
		status = domain.ReviewStatusPending
	}
	if !domain.IsValidReviewStatus(status) {
		return pagination.Result[domain.Review]{}, invalidStatus()
	}

	params := pagination.DefaultPolicy.Params(page, limit)
	reviews, total, err := s.reviews.List(ctx, repository.ReviewFilter{
		Status: status,
		Sort:   domain.SortOld,
		Limit:  params.Limit,
		Offset: params.Offset,
	})
	if err != nil {
		return pagination.Result[domain.Review]{}, storeError("list reviews for moderation", err)
	}

	return pagination.NewResult(reviews, total, params), nil
}

// ModerateReview moves a review to status and recomputes its product's
// aggregate, whichever direction the transition went.
func (s *ReviewService) ModerateReview(ctx context.Context, reviewID, status string) (*domain.Review, error) {
	id, ok := domain.ParseReference(reviewID)
	if !ok {
		return nil, apperrors.InvalidReference("review_id", reviewID)
	}
	status = strings.ToLower(strings.TrimSpace(status))
	if !domain.IsValidReviewStatus(status) {
		return nil, invalidStatus()
	}

	current, err := s.reviews.GetByID(ctx, id)
	if err != nil {
		return nil, storeError("get review", err)
	}

	updated, err := s.reviews.UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, storeError("update review status", err)
	}

	s.logger.InfoContext(ctx, "review moderated",
		slog.String("review_id", id),
		slog.String("product_id", updated.ProductID),
		slog.String("from", current.Status),
		slog.String("to", updated.Status),
	)

	if s.events != nil {
		if err := s.events.PublishReviewModerated(ctx, updated, current.Status); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish review moderated event",
				slog.String("review_id", id),
				slog.String("error", err.Error()),
			)
		}
	}

	s.recomputeAfterWrite(ctx, updated.ProductID)
	return updated, nil
}

// MarkHelpful adds one helpful vote to a review and returns the new count.
func (s *ReviewService) MarkHelpful(ctx context.Context, reviewID string) (int, error) {
	id, ok := domain.ParseReference(reviewID)
	if !ok {
		return 0, apperrors.InvalidReference("review_id", reviewID)
	}

	count, err := s.reviews.IncrementHelpful(ctx, id)
	if err != nil {
		return 0, storeError("mark review helpful", err)
	}
	return count, nil
}

// RecomputeProduct recomputes a product aggregate on demand.
func (s *ReviewService) RecomputeProduct(ctx context.Context, productID string) (domain.RatingSummary, error) {
	return s.aggregator.Recompute(ctx, productID)
}

func (s *ReviewService) recomputeAfterWrite(ctx context.Context, productID string) {
	if _, err := s.aggregator.Recompute(ctx, productID); err != nil {
		s.logger.ErrorContext(ctx, "failed to recompute product aggregate",
			slog.String("product_id", productID),
			slog.String("error", err.Error()),
		)
	}
}

func invalidStatus() *apperrors.AppError {
	return apperrors.Validation(map[string]string{
		"status": "must be one of " + strings.Join(domain.ValidReviewStatuses(), ", "),
	})
}
