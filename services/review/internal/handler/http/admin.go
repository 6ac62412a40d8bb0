package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/validator"
	"github.com/utafrali/storefront/services/review/internal/domain"
)

// AdminHandler handles moderation endpoints.
type AdminHandler struct {
	service ReviewService
	logger  *slog.Logger
}

// NewAdminHandler creates a new moderation HTTP handler.
func NewAdminHandler(svc ReviewService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		service: svc,
		logger:  logger,
	}
}

// ModerateReviewRequest is the JSON request body for a moderation decision.
type ModerateReviewRequest struct {
	Status string `json:"status" validate:"required"`
}

// ListModeration handles GET /api/v1/admin/reviews?status=pending
func (h *AdminHandler) ListModeration(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	result, err := h.service.ListForModeration(r.Context(), q.Get("status"), queryInt(q.Get("page")), queryInt(q.Get("limit")))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, result)
}

// Moderate handles PATCH /api/v1/admin/reviews/{reviewId}/status
func (h *AdminHandler) Moderate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req ModerateReviewRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	review, err := h.service.ModerateReview(r.Context(), chi.URLParam(r, "reviewId"), req.Status)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: review})
}

// Recompute handles POST /api/v1/admin/products/{productId}/reviews/recompute
func (h *AdminHandler) Recompute(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.RecomputeProduct(r.Context(), chi.URLParam(r, "productId"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: domain.Summary{RatingSummary: summary}})
}
