package validator

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reviewInput struct {
	ProductID   string `json:"productId" validate:"required,uuid"`
	Rating      int    `json:"rating" validate:"min=1,max=5"`
	Comment     string `json:"comment" validate:"min=5,max=4000"`
	Title       string `json:"title,omitempty" validate:"max=120"`
	AuthorEmail string `json:"authorEmail,omitempty" validate:"omitempty,email"`
	Status      string `json:"status,omitempty" validate:"omitempty,oneof=pending approved rejected"`
	Internal    string `json:"-" validate:"required"`
}

func (in *reviewInput) Normalize() {
	in.Comment = strings.TrimSpace(in.Comment)
}

func validInput() reviewInput {
	return reviewInput{
		ProductID: "550e8400-e29b-41d4-a716-446655440000",
		Rating:    4,
		Comment:   "fits well",
		Internal:  "x",
	}
}

func fieldErrors(t *testing.T, err error) map[string]string {
	t.Helper()
	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	return valErr.Fields()
}

func TestValidate_Valid(t *testing.T) {
	assert.NoError(t, Validate(validInput()))
}

func TestValidate_FieldMessages(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(in *reviewInput)
		field   string
		message string
	}{
		{"missing product", func(in *reviewInput) { in.ProductID = "" }, "productId", "is required"},
		{"bad product id", func(in *reviewInput) { in.ProductID = "not-a-uuid" }, "productId", "must be a valid UUID"},
		{"rating too low", func(in *reviewInput) { in.Rating = 0 }, "rating", "must be at least 1"},
		{"rating too high", func(in *reviewInput) { in.Rating = 6 }, "rating", "must be at most 5"},
		{"comment too short", func(in *reviewInput) { in.Comment = "shrt" }, "comment", "must be at least 5 characters"},
		{"title too long", func(in *reviewInput) { in.Title = strings.Repeat("t", 121) }, "title", "must be at most 120 characters"},
		{"bad email", func(in *reviewInput) { in.AuthorEmail = "nope" }, "authorEmail", "must be a valid email address"},
		{"unknown status", func(in *reviewInput) { in.Status = "deleted" }, "status", "must be one of: pending approved rejected"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(&in)

			fields := fieldErrors(t, Validate(in))
			assert.Len(t, fields, 1)
			assert.Equal(t, tt.message, fields[tt.field])
		})
	}
}

func TestValidate_CommentLengthCountsCharacters(t *testing.T) {
	in := validInput()

	in.Comment = "ğüşöç"
	assert.NoError(t, Validate(in))

	in.Comment = strings.Repeat("é", 4000)
	assert.NoError(t, Validate(in))

	in.Comment = strings.Repeat("é", 4001)
	assert.Error(t, Validate(in))
}

func TestValidationError_ErrorAndAppError(t *testing.T) {
	in := validInput()
	in.Rating = 0
	in.ProductID = ""

	err := Validate(in)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "field 'rating' must be at least 1")
	assert.Contains(t, err.Error(), "field 'productId' is required")

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	appErr := valErr.AppError()
	assert.Equal(t, http.StatusBadRequest, appErr.Status)
	assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
	assert.Len(t, appErr.Fields, 2)
}

func TestDecodeAndValidate(t *testing.T) {
	const productID = "550e8400-e29b-41d4-a716-446655440000"

	tests := []struct {
		name       string
		body       string
		wantDecode bool
		wantField  string
	}{
		{name: "valid", body: `{"productId":"` + productID + `","rating":5,"comment":"lovely shoes"}`},
		{name: "normalized before validation", body: `{"productId":"` + productID + `","rating":5,"comment":"  ok   "}`, wantField: "comment"},
		{name: "malformed json", body: `{"rating":`, wantDecode: true},
		{name: "invalid field", body: `{"productId":"` + productID + `","rating":9,"comment":"lovely shoes"}`, wantField: "rating"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			in := reviewInput{Internal: "x"}

			err := DecodeAndValidate(req, &in)

			switch {
			case tt.wantDecode:
				require.Error(t, err)
				assert.Contains(t, err.Error(), "decode request body")
			case tt.wantField != "":
				assert.Contains(t, fieldErrors(t, err), tt.wantField)
			default:
				require.NoError(t, err)
				assert.Equal(t, 5, in.Rating)
			}
		})
	}
}
