package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/middleware"
	"github.com/utafrali/storefront/pkg/pagination"
	"github.com/utafrali/storefront/pkg/validator"
	"github.com/utafrali/storefront/services/review/internal/domain"
	"github.com/utafrali/storefront/services/review/internal/service"
)

// ReviewService is the review behavior the HTTP layer depends on.
type ReviewService interface {
	CreateReview(ctx context.Context, input *service.CreateReviewInput) (*domain.Review, error)
	ListReviews(ctx context.Context, input service.ListReviewsInput) (pagination.Result[domain.Review], error)
	ListForModeration(ctx context.Context, status string, page, limit int) (pagination.Result[domain.Review], error)
	ModerateReview(ctx context.Context, reviewID, status string) (*domain.Review, error)
	MarkHelpful(ctx context.Context, reviewID string) (int, error)
	RecomputeProduct(ctx context.Context, productID string) (domain.RatingSummary, error)
}

// ReviewHandler handles HTTP requests for review endpoints.
type ReviewHandler struct {
	service ReviewService
	logger  *slog.Logger
}

// NewReviewHandler creates a new review HTTP handler.
func NewReviewHandler(svc ReviewService, logger *slog.Logger) *ReviewHandler {
	return &ReviewHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// CreateReviewRequest is the JSON request body for creating a review.
type CreateReviewRequest struct {
	Rating      int    `json:"rating" validate:"min=1,max=5"`
	Title       string `json:"title" validate:"max=120"`
	Comment     string `json:"comment" validate:"required,min=5,max=4000"`
	AuthorName  string `json:"author_name" validate:"max=120"`
	AuthorEmail string `json:"author_email" validate:"omitempty,email"`
}

func (req *CreateReviewRequest) Normalize() {
	req.Title = strings.TrimSpace(req.Title)
	req.Comment = strings.TrimSpace(req.Comment)
	req.AuthorName = strings.TrimSpace(req.AuthorName)
	req.AuthorEmail = strings.TrimSpace(req.AuthorEmail)
}

// HelpfulResponse is returned after a helpful vote.
type HelpfulResponse struct {
	ReviewID     string `json:"review_id"`
	HelpfulCount int    `json:"helpful_count"`
}

// --- Handlers ---

// ListReviews handles GET /api/v1/products/{productId}/reviews
// @Summary List approved product reviews
// @Tags reviews
// @Produce json
// @Param productId path string true "Product UUID"
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page (max 50)" default(10)
// @Param sort query string false "top, new or old" default(new)
// @Router /api/v1/products/{productId}/reviews [get]
func (h *ReviewHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	result, err := h.service.ListReviews(r.Context(), service.ListReviewsInput{
		ProductID: chi.URLParam(r, "productId"),
		Page:      queryInt(q.Get("page")),
		Limit:     queryInt(q.Get("limit")),
		Sort:      q.Get("sort"),
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, result)
}

// CreateReview handles POST /api/v1/products/{productId}/reviews
// @Summary Submit a product review
// @Description The author is taken from the bearer token or the X-User-ID header when present.
// @Tags reviews
// @Accept json
// @Produce json
// @Param productId path string true "Product UUID"
// @Param request body CreateReviewRequest true "Review to submit"
// @Router /api/v1/products/{productId}/reviews [post]
func (h *ReviewHandler) CreateReview(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req CreateReviewRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		userID = r.Header.Get("X-User-ID")
	}

	review, err := h.service.CreateReview(r.Context(), &service.CreateReviewInput{
		ProductID:   chi.URLParam(r, "productId"),
		UserID:      userID,
		Rating:      req.Rating,
		Title:       req.Title,
		Comment:     req.Comment,
		AuthorName:  req.AuthorName,
		AuthorEmail: req.AuthorEmail,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: review})
}

// MarkHelpful handles POST /api/v1/reviews/{reviewId}/helpful
func (h *ReviewHandler) MarkHelpful(w http.ResponseWriter, r *http.Request) {
	reviewID := chi.URLParam(r, "reviewId")

	count, err := h.service.MarkHelpful(r.Context(), reviewID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: HelpfulResponse{ReviewID: strings.ToLower(reviewID), HelpfulCount: count},
	})
}

// queryInt parses a numeric query value. Missing or malformed values are 0
// so the pagination policy applies its defaults.
func queryInt(v string) int {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}
