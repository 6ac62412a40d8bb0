package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func validContent() ReviewContent {
	return ReviewContent{
		Rating:      4,
		Title:       "Solid",
		Comment:     "Works as described.",
		AuthorName:  "Ayşe",
		AuthorEmail: "ayse@example.com",
	}
}

func TestValidReviewStatuses_ContainsAll(t *testing.T) {
	assert.ElementsMatch(t,
		[]string{ReviewStatusPending, ReviewStatusApproved, ReviewStatusRejected},
		ValidReviewStatuses(),
	)
}

func TestIsValidReviewStatus(t *testing.T) {
	for _, s := range ValidReviewStatuses() {
		assert.True(t, IsValidReviewStatus(s), "expected %q to be valid", s)
	}
	assert.False(t, IsValidReviewStatus(""))
	assert.False(t, IsValidReviewStatus("APPROVED"))
	assert.False(t, IsValidReviewStatus("deleted"))
}

func TestInitialStatus(t *testing.T) {
	assert.Equal(t, ReviewStatusApproved, InitialStatus(true))
	assert.Equal(t, ReviewStatusPending, InitialStatus(false))
}

func TestReviewContent_Validate_Valid(t *testing.T) {
	assert.Nil(t, validContent().Validate())
}

func TestReviewContent_Validate_RatingBoundaries(t *testing.T) {
	tests := []struct {
		rating int
		valid  bool
	}{
		{0, false},
		{1, true},
		{3, true},
		{5, true},
		{6, false},
		{-1, false},
	}

	for _, tt := range tests {
		c := validContent()
		c.Rating = tt.rating
		fields := c.Validate()
		if tt.valid {
			assert.Nil(t, fields, "rating %d should be accepted", tt.rating)
		} else {
			assert.Contains(t, fields, "rating", "rating %d should be rejected", tt.rating)
		}
	}
}

func TestReviewContent_Validate_CommentBoundaries(t *testing.T) {
	tests := []struct {
		name    string
		comment string
		valid   bool
	}{
		{"empty", "", false},
		{"4 chars", "abcd", false},
		{"5 chars", "abcde", true},
		{"5 multibyte chars", "ğüşöç", true},
		{"4000 chars", strings.Repeat("a", 4000), true},
		{"4000 multibyte chars", strings.Repeat("é", 4000), true},
		{"4001 chars", strings.Repeat("a", 4001), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validContent()
			c.Comment = tt.comment
			fields := c.Validate()
			if tt.valid {
				assert.Nil(t, fields)
			} else {
				assert.Contains(t, fields, "comment")
			}
		})
	}
}

func TestReviewContent_Validate_TitleAndAuthor(t *testing.T) {
	c := validContent()
	c.Title = strings.Repeat("t", 120)
	assert.Nil(t, c.Validate())

	c.Title = strings.Repeat("t", 121)
	c.AuthorEmail = "not-an-email"
	fields := c.Validate()
	assert.Contains(t, fields, "title")
	assert.Contains(t, fields, "author_email")
	assert.Len(t, fields, 2)
}

func TestReviewContent_Validate_ReportsEveryField(t *testing.T) {
	fields := ReviewContent{Rating: 9, Comment: "bad"}.Validate()
	assert.Equal(t, "must be between 1 and 5", fields["rating"])
	assert.Equal(t, "must be at least 5 characters", fields["comment"])
}

func TestReviewContent_Normalize(t *testing.T) {
	c := ReviewContent{Rating: 5, Title: "  Nice ", Comment: "   abcd   ", AuthorEmail: " a@b.co "}.Normalize()
	assert.Equal(t, "Nice", c.Title)
	assert.Equal(t, "abcd", c.Comment)
	assert.Equal(t, "a@b.co", c.AuthorEmail)
	// Padding does not count toward the minimum length.
	assert.Contains(t, c.Validate(), "comment")
}

func TestParseSort(t *testing.T) {
	assert.Equal(t, SortTop, ParseSort("top"))
	assert.Equal(t, SortTop, ParseSort(" TOP "))
	assert.Equal(t, SortOld, ParseSort("old"))
	assert.Equal(t, SortNew, ParseSort("new"))
	assert.Equal(t, SortNew, ParseSort(""))
	assert.Equal(t, SortNew, ParseSort("rating"))
}

func TestReview_IsApproved(t *testing.T) {
	assert.True(t, (&Review{Status: ReviewStatusApproved}).IsApproved())
	assert.False(t, (&Review{Status: ReviewStatusPending}).IsApproved())
}
