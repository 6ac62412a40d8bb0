package mongo

import (
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/utafrali/storefront/services/review/internal/domain"
	"github.com/utafrali/storefront/services/review/internal/repository"
)

// reviewFilter translates a list filter into a query document.
func reviewFilter(f repository.ReviewFilter) bson.D {
	filter := bson.D{}
	if f.ProductID != "" {
		filter = append(filter, bson.E{Key: "product_id", Value: f.ProductID})
	}
	if f.Status != "" {
		filter = append(filter, bson.E{Key: "status", Value: f.Status})
	}
	return filter
}

// reviewSort mirrors the SQL ORDER BY of each sort mode, with _id as the
// final tiebreaker so pages are stable.
func reviewSort(sort string) bson.D {
	switch sort {
	case domain.SortTop:
		return bson.D{
			{Key: "rating", Value: -1},
			{Key: "created_at", Value: -1},
			{Key: "_id", Value: 1},
		}
	case domain.SortOld:
		return bson.D{
			{Key: "created_at", Value: 1},
			{Key: "_id", Value: 1},
		}
	default:
		return bson.D{
			{Key: "created_at", Value: -1},
			{Key: "_id", Value: 1},
		}
	}
}

// approvedSummaryPipeline groups the approved reviews of the given products
// into one {_id: product_id, sum, count} document per product.
func approvedSummaryPipeline(productIDs []string) bson.A {
	match := bson.D{{Key: "status", Value: domain.ReviewStatusApproved}}
	if len(productIDs) == 1 {
		match = append(bson.D{{Key: "product_id", Value: productIDs[0]}}, match...)
	} else {
		match = append(bson.D{{Key: "product_id", Value: bson.D{{Key: "$in", Value: productIDs}}}}, match...)
	}

	return bson.A{
		bson.D{{Key: "$match", Value: match}},
		bson.D{
			{Key: "$group", Value: bson.D{
				{Key: "_id", Value: "$product_id"},
				{Key: "sum", Value: bson.D{{Key: "$sum", Value: "$rating"}}},
				{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
			}},
		},
	}
}
