package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/middleware"
)

// RouterConfig carries everything NewRouter wires into the route table.
type RouterConfig struct {
	Reviews       ReviewService
	Summaries     SummaryService
	Invalidations InvalidationSource
	Health        *health.Handler

	// AdminTokens validates moderator bearer tokens. The admin routes are
	// not mounted when it is nil.
	AdminTokens middleware.TokenValidator

	// WriteLimiter throttles review submissions and helpful votes per client IP.
	WriteLimiter *middleware.RateLimiter

	CORS           middleware.CORSConfig
	PprofCIDRs     []string
	RequestTimeout time.Duration
	KeepAlive      time.Duration
	Logger         *slog.Logger
}

// NewRouter creates a chi router with all review service routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Tracing("review-service"))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.PrometheusMetrics("review-service"))

	// Health check endpoints
	r.Get("/health/live", cfg.Health.LivenessHandler())
	r.Get("/health/ready", cfg.Health.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())
	middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)

	reviewHandler := NewReviewHandler(cfg.Reviews, logger)
	summaryHandler := NewSummaryHandler(cfg.Summaries, cfg.Invalidations, cfg.KeepAlive, logger)

	limited := func(h http.HandlerFunc) http.Handler {
		if cfg.WriteLimiter == nil {
			return h
		}
		return cfg.WriteLimiter.Handler(h)
	}

	// The invalidation stream is long-lived and stays outside the timeout group.
	r.Get("/api/v1/reviews/invalidations", summaryHandler.Invalidations)

	r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(cfg.RequestTimeout))
		r.Use(chimw.Compress(5))

		r.Route("/api/v1/products/{productId}/reviews", func(r chi.Router) {
			r.Get("/", reviewHandler.ListReviews)
			r.With(ContentTypeJSON).Method(http.MethodPost, "/", limited(reviewHandler.CreateReview))

			r.With(middleware.CacheControl(60, 30)).Get("/summary", summaryHandler.Summary)
			r.With(middleware.NoStore).Get("/summary/marker", summaryHandler.Marker)
		})

		r.Get("/api/v1/reviews/summary/bulk", summaryHandler.BulkGet)
		r.With(ContentTypeJSON).Post("/api/v1/reviews/summary/bulk", summaryHandler.BulkPost)
		r.Method(http.MethodPost, "/api/v1/reviews/{reviewId}/helpful", limited(reviewHandler.MarkHelpful))

		if cfg.AdminTokens == nil {
			logger.Warn("admin token validator not configured, moderation routes disabled")
			return
		}

		adminHandler := NewAdminHandler(cfg.Reviews, logger)
		r.Route("/api/v1/admin", func(r chi.Router) {
			r.Use(middleware.Auth(cfg.AdminTokens, logger))
			r.Use(middleware.RequireRole("admin", "moderator"))
			r.Use(middleware.NoStore)

			r.Get("/reviews", adminHandler.ListModeration)
			r.With(ContentTypeJSON).Patch("/reviews/{reviewId}/status", adminHandler.Moderate)
			r.Post("/products/{productId}/reviews/recompute", adminHandler.Recompute)
		})
	})

	return r
}
