package mongo

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type indexConfig struct {
	collection string
	model      mongo.IndexModel
}

var requiredIndexes = []indexConfig{
	// Approved listing sorted by date, and the aggregation $match.
	{
		collection: reviewsCollection,
		model: mongo.IndexModel{
			Keys: bson.D{
				{Key: "product_id", Value: 1},
				{Key: "status", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("idx_reviews_product_status_created"),
		},
	},
	// Listing sorted by top rating.
	{
		collection: reviewsCollection,
		model: mongo.IndexModel{
			Keys: bson.D{
				{Key: "product_id", Value: 1},
				{Key: "status", Value: 1},
				{Key: "rating", Value: -1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("idx_reviews_product_status_rating"),
		},
	},
	// Moderation queue.
	{
		collection: reviewsCollection,
		model: mongo.IndexModel{
			Keys: bson.D{
				{Key: "status", Value: 1},
				{Key: "created_at", Value: 1},
			},
			Options: options.Index().SetName("idx_reviews_status_created"),
		},
	},
}

// EnsureIndexes creates the review indexes. Creating an index that already
// exists with the same definition is a no-op, so this runs on every start.
func EnsureIndexes(ctx context.Context, db *mongo.Database, logger *slog.Logger) error {
	for _, idx := range requiredIndexes {
		name, err := db.Collection(idx.collection).Indexes().CreateOne(ctx, idx.model)
		if err != nil {
			return fmt.Errorf("create index on %s: %w", idx.collection, err)
		}
		logger.Debug("ensured mongo index",
			slog.String("collection", idx.collection),
			slog.String("index", name),
		)
	}
	return nil
}
