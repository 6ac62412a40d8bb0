package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/utafrali/storefront/pkg/database"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/services/review/internal/domain"
	"github.com/utafrali/storefront/services/review/internal/repository"
)

// ReviewRepository implements repository.ReviewRepository on MongoDB.
type ReviewRepository struct {
	reviews  *mongo.Collection
	products *mongo.Collection
}

// NewReviewRepository creates a new MongoDB-backed review repository.
func NewReviewRepository(db *mongo.Database) *ReviewRepository {
	return &ReviewRepository{
		reviews:  db.Collection(reviewsCollection),
		products: db.Collection(productsCollection),
	}
}

// Create inserts a new review. Documents have no foreign keys, so the
// product is checked first.
func (r *ReviewRepository) Create(ctx context.Context, review *domain.Review) (err error) {
	ctx, end := database.TraceCommand(ctx, "CreateReview", "reviews.insertOne")
	defer func() { end(err) }()

	n, err := r.products.CountDocuments(ctx, bson.D{{Key: "_id", Value: review.ProductID}}, options.Count().SetLimit(1))
	if err != nil {
		return fmt.Errorf("check product: %w", err)
	}
	if n == 0 {
		return apperrors.NotFound("product", review.ProductID)
	}

	if _, err = r.reviews.InsertOne(ctx, newReviewDocument(review)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperrors.AlreadyExists("review", "id", review.ID)
		}
		return fmt.Errorf("insert review: %w", err)
	}
	return nil
}

// GetByID retrieves a review by its ID.
func (r *ReviewRepository) GetByID(ctx context.Context, id string) (_ *domain.Review, err error) {
	ctx, end := database.TraceCommand(ctx, "GetReview", "reviews.findOne")
	defer func() { end(err) }()

	var doc reviewDocument
	if err = r.reviews.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.NotFound("review", id)
		}
		return nil, fmt.Errorf("get review: %w", err)
	}

	rv := doc.toDomain()
	return &rv, nil
}

// List returns reviews matching the filter along with the total count.
func (r *ReviewRepository) List(ctx context.Context, filter repository.ReviewFilter) (_ []domain.Review, _ int, err error) {
	ctx, end := database.TraceCommand(ctx, "ListReviews", "reviews.find")
	defer func() { end(err) }()

	query := reviewFilter(filter)

	total, err := r.reviews.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("count reviews: %w", err)
	}

	opts := options.Find().
		SetSort(reviewSort(filter.Sort)).
		SetSkip(int64(filter.Offset)).
		SetLimit(int64(filter.Limit))

	cursor, err := r.reviews.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("list reviews: %w", err)
	}

	var docs []reviewDocument
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("decode reviews: %w", err)
	}

	reviews := make([]domain.Review, 0, len(docs))
	for _, d := range docs {
		reviews = append(reviews, d.toDomain())
	}
	return reviews, int(total), nil
}

// UpdateStatus sets a review's moderation status and returns the updated document.
func (r *ReviewRepository) UpdateStatus(ctx context.Context, id, status string) (_ *domain.Review, err error) {
	ctx, end := database.TraceCommand(ctx, "UpdateReviewStatus", "reviews.findOneAndUpdate")
	defer func() { end(err) }()

	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "status", Value: status},
		{Key: "updated_at", Value: time.Now().UTC()},
	}}}

	var doc reviewDocument
	err = r.reviews.FindOneAndUpdate(ctx, bson.D{{Key: "_id", Value: id}}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.NotFound("review", id)
		}
		return nil, fmt.Errorf("update review status: %w", err)
	}

	rv := doc.toDomain()
	return &rv, nil
}

// IncrementHelpful adds one to the helpful counter with $inc.
func (r *ReviewRepository) IncrementHelpful(ctx context.Context, id string) (_ int, err error) {
	ctx, end := database.TraceCommand(ctx, "IncrementReviewHelpful", "reviews.findOneAndUpdate")
	defer func() { end(err) }()

	var doc struct {
		HelpfulCount int `bson:"helpful_count"`
	}
	err = r.reviews.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: id}},
		bson.D{{Key: "$inc", Value: bson.D{{Key: "helpful_count", Value: 1}}}},
		options.FindOneAndUpdate().
			SetReturnDocument(options.After).
			SetProjection(bson.D{{Key: "helpful_count", Value: 1}}),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, apperrors.NotFound("review", id)
		}
		return 0, fmt.Errorf("increment helpful count: %w", err)
	}
	return doc.HelpfulCount, nil
}

// ApprovedSummary aggregates the approved reviews of one product.
func (r *ReviewRepository) ApprovedSummary(ctx context.Context, productID string) (domain.RatingSummary, error) {
	rows, err := r.aggregate(ctx, "ApprovedReviewSummary", []string{productID})
	if err != nil {
		return domain.RatingSummary{}, fmt.Errorf("get review summary: %w", err)
	}
	for _, row := range rows {
		if row.ProductID == productID {
			return domain.SummaryFromTotals(row.Sum, row.Count), nil
		}
	}
	return domain.RatingSummary{}, nil
}

// ApprovedSummaries aggregates many products with one $group pipeline.
func (r *ReviewRepository) ApprovedSummaries(ctx context.Context, productIDs []string) (map[string]domain.RatingSummary, error) {
	summaries := make(map[string]domain.RatingSummary, len(productIDs))
	if len(productIDs) == 0 {
		return summaries, nil
	}

	rows, err := r.aggregate(ctx, "ApprovedReviewSummaries", productIDs)
	if err != nil {
		return nil, fmt.Errorf("get review summaries: %w", err)
	}
	for _, row := range rows {
		summaries[row.ProductID] = domain.SummaryFromTotals(row.Sum, row.Count)
	}
	return summaries, nil
}

func (r *ReviewRepository) aggregate(ctx context.Context, op string, productIDs []string) (_ []summaryRow, err error) {
	ctx, end := database.TraceCommand(ctx, op, "reviews.aggregate")
	defer func() { end(err) }()

	cursor, err := r.reviews.Aggregate(ctx, approvedSummaryPipeline(productIDs))
	if err != nil {
		return nil, err
	}

	var rows []summaryRow
	if err = cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}
