package domain

import (
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"
)

// Review moderation statuses.
const (
	ReviewStatusPending  = "pending"
	ReviewStatusApproved = "approved"
	ReviewStatusRejected = "rejected"
)

// Review content limits. Lengths are counted in characters, not bytes.
const (
	MinRating        = 1
	MaxRating        = 5
	MinCommentLength = 5
	MaxCommentLength = 4000
	MaxTitleLength   = 120
	MaxAuthorLength  = 120
)

// Review represents one customer's rating and comment for one product.
type Review struct {
	ID               string    `json:"id"`
	ProductID        string    `json:"product_id"`
	UserID           *string   `json:"user_id,omitempty"`
	AuthorName       string    `json:"author_name,omitempty"`
	AuthorEmail      string    `json:"-"`
	Rating           int       `json:"rating"`
	Title            string    `json:"title,omitempty"`
	Comment          string    `json:"comment"`
	Status           string    `json:"status"`
	HelpfulCount     int       `json:"helpful_count"`
	VerifiedPurchase bool      `json:"verified_purchase"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// IsApproved reports whether the review counts toward its product's aggregate.
func (r *Review) IsApproved() bool {
	return r.Status == ReviewStatusApproved
}

// ValidReviewStatuses returns the set of valid moderation statuses.
func ValidReviewStatuses() []string {
	return []string{ReviewStatusPending, ReviewStatusApproved, ReviewStatusRejected}
}

// IsValidReviewStatus checks whether status is one of the moderation statuses.
func IsValidReviewStatus(status string) bool {
	for _, s := range ValidReviewStatuses() {
		if s == status {
			return true
		}
	}
	return false
}

// InitialStatus is the status a new review starts in.
func InitialStatus(autoPublish bool) string {
	if autoPublish {
		return ReviewStatusApproved
	}
	return ReviewStatusPending
}

// ReviewContent is the caller-supplied part of a new review.
type ReviewContent struct {
	Rating      int
	Title       string
	Comment     string
	AuthorName  string
	AuthorEmail string
}

// Normalize trims surrounding whitespace from the text fields.
func (c ReviewContent) Normalize() ReviewContent {
	c.Title = strings.TrimSpace(c.Title)
	c.Comment = strings.TrimSpace(c.Comment)
	c.AuthorName = strings.TrimSpace(c.AuthorName)
	c.AuthorEmail = strings.TrimSpace(c.AuthorEmail)
	return c
}

// Validate returns a field -> message map of every violated constraint, or
// nil when the content is acceptable. Call it on normalized content.
func (c ReviewContent) Validate() map[string]string {
	fields := make(map[string]string)

	if c.Rating < MinRating || c.Rating > MaxRating {
		fields["rating"] = fmt.Sprintf("must be between %d and %d", MinRating, MaxRating)
	}

	switch n := utf8.RuneCountInString(c.Comment); {
	case n == 0:
		fields["comment"] = "is required"
	case n < MinCommentLength:
		fields["comment"] = fmt.Sprintf("must be at least %d characters", MinCommentLength)
	case n > MaxCommentLength:
		fields["comment"] = fmt.Sprintf("must be at most %d characters", MaxCommentLength)
	}

	if utf8.RuneCountInString(c.Title) > MaxTitleLength {
		fields["title"] = fmt.Sprintf("must be at most %d characters", MaxTitleLength)
	}
	if utf8.RuneCountInString(c.AuthorName) > MaxAuthorLength {
		fields["author_name"] = fmt.Sprintf("must be at most %d characters", MaxAuthorLength)
	}
	if c.AuthorEmail != "" {
		if _, err := mail.ParseAddress(c.AuthorEmail); err != nil {
			fields["author_email"] = "must be a valid email address"
		}
	}

	if len(fields) == 0 {
		return nil
	}
	return fields
}

// Review listing sort modes.
const (
	SortTop = "top"
	SortNew = "new"
	SortOld = "old"
)

// ValidSortValues returns the supported review sort modes.
func ValidSortValues() []string {
	return []string{SortTop, SortNew, SortOld}
}

// ParseSort maps a query value to a sort mode. Unknown or empty values fall
// back to SortNew.
func ParseSort(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case SortTop:
		return SortTop
	case SortOld:
		return SortOld
	default:
		return SortNew
	}
}
