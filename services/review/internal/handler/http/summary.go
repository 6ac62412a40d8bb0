package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/validator"
	"github.com/utafrali/storefront/services/review/internal/broadcast"
	"github.com/utafrali/storefront/services/review/internal/domain"
)

// SummaryService answers rating summary reads.
type SummaryService interface {
	SummaryFor(ctx context.Context, productID string) (domain.Summary, error)
	BulkSummaryFor(ctx context.Context, productIDs []string) (map[string]domain.Summary, error)
}

// InvalidationSource exposes durable markers and the live invalidation feed.
type InvalidationSource interface {
	Marker(ctx context.Context, productID string) (time.Time, error)
	Subscribe() (<-chan broadcast.Invalidation, func())
}

// DefaultKeepAlive is the interval between SSE keep-alive comments.
const DefaultKeepAlive = 25 * time.Second

// SummaryHandler serves rating summaries and invalidation signals.
type SummaryHandler struct {
	summaries     SummaryService
	invalidations InvalidationSource
	keepAlive     time.Duration
	logger        *slog.Logger
}

// NewSummaryHandler creates a new summary HTTP handler.
func NewSummaryHandler(summaries SummaryService, invalidations InvalidationSource, keepAlive time.Duration, logger *slog.Logger) *SummaryHandler {
	if keepAlive <= 0 {
		keepAlive = DefaultKeepAlive
	}
	return &SummaryHandler{
		summaries:     summaries,
		invalidations: invalidations,
		keepAlive:     keepAlive,
		logger:        logger,
	}
}

// BulkSummaryRequest is the JSON request body for a bulk summary read.
type BulkSummaryRequest struct {
	IDs []string `json:"ids"`
}

// MarkerResponse reports when a product's summary last changed. Marker is
// the change time in unix milliseconds, 0 when no change is recorded.
type MarkerResponse struct {
	ProductID string     `json:"productId"`
	ChangedAt *time.Time `json:"changedAt"`
	Marker    int64      `json:"marker"`
}

// Summary handles GET /api/v1/products/{productId}/reviews/summary
func (h *SummaryHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.summaries.SummaryFor(r.Context(), chi.URLParam(r, "productId"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: summary})
}

// Marker handles GET /api/v1/products/{productId}/reviews/summary/marker
func (h *SummaryHandler) Marker(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "productId")
	productID, ok := domain.ParseReference(raw)
	if !ok {
		httputil.WriteError(w, r, apperrors.InvalidReference("product_id", raw), h.logger)
		return
	}

	changedAt, err := h.invalidations.Marker(r.Context(), productID)
	if err != nil {
		httputil.WriteError(w, r, apperrors.Unavailable(err), h.logger)
		return
	}

	resp := MarkerResponse{ProductID: productID}
	if !changedAt.IsZero() {
		at := changedAt.UTC()
		resp.ChangedAt = &at
		resp.Marker = at.UnixMilli()
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: resp})
}

// BulkGet handles GET /api/v1/reviews/summary/bulk?ids=a,b
func (h *SummaryHandler) BulkGet(w http.ResponseWriter, r *http.Request) {
	var ids []string
	for _, v := range r.URL.Query()["ids"] {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	}
	h.writeBulk(w, r, ids)
}

// BulkPost handles POST /api/v1/reviews/summary/bulk
func (h *SummaryHandler) BulkPost(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req BulkSummaryRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}
	h.writeBulk(w, r, req.IDs)
}

func (h *SummaryHandler) writeBulk(w http.ResponseWriter, r *http.Request, ids []string) {
	summaries, err := h.summaries.BulkSummaryFor(r.Context(), ids)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: summaries})
}

// Invalidations handles GET /api/v1/reviews/invalidations. It streams every
// summary invalidation as a server-sent event until the client goes away.
// An optional productId query value restricts the stream to one product.
func (h *SummaryHandler) Invalidations(w http.ResponseWriter, r *http.Request) {
	var only string
	if raw := r.URL.Query().Get("productId"); raw != "" {
		id, ok := domain.ParseReference(raw)
		if !ok {
			httputil.WriteError(w, r, apperrors.InvalidReference("productId", raw), h.logger)
			return
		}
		only = id
	}

	events, cancel := h.invalidations.Subscribe()
	defer cancel()

	stream, ok := httputil.NewEventStream(w)
	if !ok {
		return
	}

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case inv, open := <-events:
			if !open {
				return
			}
			if only != "" && inv.ProductID != only {
				continue
			}
			if err := stream.Send("invalidation", inv); err != nil {
				h.logger.DebugContext(ctx, "invalidation stream closed", slog.String("error", err.Error()))
				return
			}
		case <-ticker.C:
			if err := stream.Comment("keep-alive"); err != nil {
				return
			}
		}
	}
}
