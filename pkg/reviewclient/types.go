package reviewclient

import "time"

// Review is a product review as returned by the review service.
type Review struct {
	ID               string    `json:"id"`
	ProductID        string    `json:"product_id"`
	UserID           *string   `json:"user_id,omitempty"`
	AuthorName       string    `json:"author_name,omitempty"`
	Rating           int       `json:"rating"`
	Title            string    `json:"title,omitempty"`
	Comment          string    `json:"comment"`
	Status           string    `json:"status"`
	HelpfulCount     int       `json:"helpful_count"`
	VerifiedPurchase bool      `json:"verified_purchase"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// ReviewPage is one page of approved reviews.
type ReviewPage struct {
	Data  []Review `json:"data"`
	Page  int      `json:"page"`
	Limit int      `json:"limit"`
	Total int      `json:"total"`
	Pages int      `json:"pages"`
}

// ListOptions selects a page of reviews. Zero values use the server defaults.
type ListOptions struct {
	Page  int
	Limit int
	Sort  string
}

// Summary is a product's rating summary.
type Summary struct {
	Avg    float64 `json:"avg"`
	Total  int     `json:"total"`
	Cached bool    `json:"cached,omitempty"`
}

// Marker reports when a product's summary last changed. Marker is the change
// time in unix milliseconds and 0 when nothing was recorded.
type Marker struct {
	ProductID string     `json:"productId"`
	ChangedAt *time.Time `json:"changedAt"`
	Marker    int64      `json:"marker"`
}

// CreateReviewRequest is the body of a review submission.
type CreateReviewRequest struct {
	Rating      int    `json:"rating"`
	Title       string `json:"title,omitempty"`
	Comment     string `json:"comment"`
	AuthorName  string `json:"author_name,omitempty"`
	AuthorEmail string `json:"author_email,omitempty"`
}

type envelope[T any] struct {
	Data T `json:"data"`
}
