package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/utafrali/storefront/pkg/database"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/services/review/internal/domain"
)

// ProductRepository implements repository.ProductRepository on MongoDB.
type ProductRepository struct {
	products *mongo.Collection
}

// NewProductRepository creates a new MongoDB-backed product repository.
func NewProductRepository(db *mongo.Database) *ProductRepository {
	return &ProductRepository{products: db.Collection(productsCollection)}
}

// GetByID retrieves a product and its stored aggregate.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (_ *domain.Product, err error) {
	ctx, end := database.TraceCommand(ctx, "GetProduct", "products.findOne")
	defer func() { end(err) }()

	var doc productDocument
	if err = r.products.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.NotFound("product", id)
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	p := doc.toDomain()
	return &p, nil
}

// UpdateRating sets both aggregate fields in one $set.
func (r *ProductRepository) UpdateRating(ctx context.Context, id string, summary domain.RatingSummary) (err error) {
	ctx, end := database.TraceCommand(ctx, "UpdateProductRating", "products.updateOne")
	defer func() { end(err) }()

	res, err := r.products.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: id}},
		ratingUpdate(summary, time.Now().UTC()),
	)
	if err != nil {
		return fmt.Errorf("update product rating: %w", err)
	}
	if res.MatchedCount == 0 {
		return apperrors.NotFound("product", id)
	}
	return nil
}

func ratingUpdate(summary domain.RatingSummary, now time.Time) bson.D {
	return bson.D{{Key: "$set", Value: bson.D{
		{Key: "average_rating", Value: summary.Mean},
		{Key: "ratings_count", Value: summary.Count},
		{Key: "updated_at", Value: now},
	}}}
}
