package mongo

import (
	"time"

	"github.com/utafrali/storefront/services/review/internal/domain"
)

const (
	productsCollection = "products"
	reviewsCollection  = "reviews"
)

type reviewDocument struct {
	ID               string    `bson:"_id"`
	ProductID        string    `bson:"product_id"`
	UserID           *string   `bson:"user_id,omitempty"`
	AuthorName       string    `bson:"author_name,omitempty"`
	AuthorEmail      string    `bson:"author_email,omitempty"`
	Rating           int       `bson:"rating"`
	Title            string    `bson:"title,omitempty"`
	Comment          string    `bson:"comment"`
	Status           string    `bson:"status"`
	HelpfulCount     int       `bson:"helpful_count"`
	VerifiedPurchase bool      `bson:"verified_purchase"`
	CreatedAt        time.Time `bson:"created_at"`
	UpdatedAt        time.Time `bson:"updated_at"`
}

func newReviewDocument(r *domain.Review) reviewDocument {
	return reviewDocument{
		ID:               r.ID,
		ProductID:        r.ProductID,
		UserID:           r.UserID,
		AuthorName:       r.AuthorName,
		AuthorEmail:      r.AuthorEmail,
		Rating:           r.Rating,
		Title:            r.Title,
		Comment:          r.Comment,
		Status:           r.Status,
		HelpfulCount:     r.HelpfulCount,
		VerifiedPurchase: r.VerifiedPurchase,
		CreatedAt:        r.CreatedAt.UTC(),
		UpdatedAt:        r.UpdatedAt.UTC(),
	}
}

func (d reviewDocument) toDomain() domain.Review {
	return domain.Review{
		ID:               d.ID,
		ProductID:        d.ProductID,
		UserID:           d.UserID,
		AuthorName:       d.AuthorName,
		AuthorEmail:      d.AuthorEmail,
		Rating:           d.Rating,
		Title:            d.Title,
		Comment:          d.Comment,
		Status:           d.Status,
		HelpfulCount:     d.HelpfulCount,
		VerifiedPurchase: d.VerifiedPurchase,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
}

type productDocument struct {
	ID            string    `bson:"_id"`
	Name          string    `bson:"name"`
	AverageRating float64   `bson:"average_rating"`
	RatingsCount  int       `bson:"ratings_count"`
	UpdatedAt     time.Time `bson:"updated_at"`
}

func (d productDocument) toDomain() domain.Product {
	return domain.Product{
		ID:   d.ID,
		Name: d.Name,
		Rating: domain.RatingSummary{
			Mean:  d.AverageRating,
			Count: d.RatingsCount,
		},
		UpdatedAt: d.UpdatedAt,
	}
}

// summaryRow is one output document of the approved-ratings $group stage.
type summaryRow struct {
	ProductID string `bson:"_id"`
	Sum       int64  `bson:"sum"`
	Count     int64  `bson:"count"`
}
