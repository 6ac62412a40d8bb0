package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"github.com/utafrali/storefront/pkg/cache"
	"github.com/utafrali/storefront/pkg/database"
	"github.com/utafrali/storefront/pkg/health"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/middleware"
	"github.com/utafrali/storefront/pkg/tracing"
	"github.com/utafrali/storefront/services/review/internal/broadcast"
	"github.com/utafrali/storefront/services/review/internal/config"
	"github.com/utafrali/storefront/services/review/internal/domain"
	"github.com/utafrali/storefront/services/review/internal/event"
	handler "github.com/utafrali/storefront/services/review/internal/handler/http"
	redisrepo "github.com/utafrali/storefront/services/review/internal/repository/redis"
	"github.com/utafrali/storefront/services/review/internal/service"
)

// App wires together all dependencies and runs the review service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	store          *store
	redis          *redis.Client
	producer       *pkgkafka.Producer
	invalidations  *pkgkafka.Consumer
	idempotency    *pkgkafka.MemoryIdempotencyStore
	summaries      *cache.TTLCache[domain.RatingSummary]
	writeLimiter   *middleware.RateLimiter
	httpServer     *http.Server
	tracerShutdown tracing.ShutdownFunc
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    "review-service",
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// Open the configured review store.
	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	// Configure slow query logging.
	if cfg.SlowQueryThresholdMs > 0 {
		database.SetSlowQueryLogging(time.Duration(cfg.SlowQueryThresholdMs)*time.Millisecond, logger)
	}

	// Redis holds the durable invalidation markers. Without it the service
	// still serves summaries, only the marker endpoint reports no changes.
	var markers broadcast.MarkerStore
	redisClient, err := database.NewRedisClient(ctx, database.RedisConfig{
		Host:        cfg.RedisHost,
		Port:        cfg.RedisPort,
		Password:    cfg.RedisPassword,
		DB:          cfg.RedisDB,
		DialTimeout: cfg.RedisTimeout,
	})
	if err != nil {
		logger.Warn("redis unavailable, invalidation markers disabled",
			slog.String("error", err.Error()),
		)
		redisClient = nil
	} else {
		markers = redisrepo.NewMarkerStore(redisClient, cfg.MarkerTTL)
		logger.Info("connected to Redis",
			slog.String("host", cfg.RedisHost),
			slog.Int("port", cfg.RedisPort),
		)
	}

	// Initialize Kafka producer with connection validation and retry.
	producer := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
	if err := pingKafkaWithRetry(ctx, producer, logger); err != nil {
		logger.Warn("kafka producer ping failed after retries, continuing in degraded mode",
			slog.String("error", err.Error()),
		)
	} else {
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}
	eventProducer := event.NewProducer(producer, logger)

	// Build the dependency graph.
	summaries := cache.New[domain.RatingSummary]("review_summary", cache.WithTTL(cfg.SummaryTTL))
	bus := broadcast.NewBus(broadcast.DefaultBuffer)
	broadcaster := broadcast.NewBroadcaster(bus, markers, eventProducer, cfg.InstanceID, logger)
	aggregator := service.NewAggregator(st.reviews, st.products, summaries, broadcaster, logger)
	summaryService := service.NewSummaryService(aggregator, summaries, cfg.BulkSummaryCap, logger)
	reviewService := service.NewReviewService(st.reviews, st.products, aggregator, eventProducer, cfg.AutoPublish, logger)

	// Every instance reads the invalidation topic in its own group, starting
	// from the tail, and drops events it produced itself.
	listener := broadcast.NewListener(summaryService, bus, cfg.InstanceID, logger)
	idempotency := pkgkafka.NewMemoryIdempotencyStore(time.Hour)
	invalidationConsumer := pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
		Brokers:     cfg.KafkaBrokers,
		GroupID:     cfg.InvalidationGroupBase + "-" + cfg.InstanceID,
		Topic:       event.TopicSummaryInvalidated,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.LastOffset,
	}, pkgkafka.IdempotentHandler(idempotency, listener.Handle, logger), logger)

	// Health checks.
	healthHandler := health.NewHandlerWithTimeout(cfg.HealthCheckTimeout)
	healthHandler.RegisterCritical(cfg.StoreDriver, st.ping)
	if redisClient != nil {
		healthHandler.RegisterNonCritical("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}
	healthHandler.RegisterNonCritical("kafka", func(ctx context.Context) error {
		return producer.Ping(ctx)
	})

	var adminTokens middleware.TokenValidator
	if cfg.AdminJWTSecret != "" {
		adminTokens = middleware.HMACValidator(cfg.AdminJWTSecret)
	}
	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.CORSAllowedOrigins
	corsCfg.Environment = cfg.Environment

	writeLimiter := middleware.NewRateLimiter(cfg.WriteRateLimitRPS, cfg.WriteRateLimitBurst, logger)

	// HTTP router.
	router := handler.NewRouter(handler.RouterConfig{
		Reviews:        reviewService,
		Summaries:      summaryService,
		Invalidations:  broadcaster,
		Health:         healthHandler,
		AdminTokens:    adminTokens,
		WriteLimiter:   writeLimiter,
		CORS:           corsCfg,
		PprofCIDRs:     cfg.PprofAllowedCIDRs,
		KeepAlive:      cfg.SSEKeepAlive,
		RequestTimeout: 10 * time.Second,
		Logger:         logger,
	})

	// WriteTimeout stays zero so the invalidation stream is not cut off;
	// every other route is bounded by the router's timeout middleware.
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		store:          st,
		redis:          redisClient,
		producer:       producer,
		invalidations:  invalidationConsumer,
		idempotency:    idempotency,
		summaries:      summaries,
		writeLimiter:   writeLimiter,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

// Run starts the HTTP server, the invalidation consumer and the background
// sweepers, then blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	// Start HTTP server.
	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
			slog.String("instance_id", a.cfg.InstanceID),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	// Start the cross-instance invalidation consumer.
	go func() {
		if err := a.invalidations.Start(ctx); err != nil {
			errCh <- fmt.Errorf("summary invalidation consumer: %w", err)
		}
	}()

	// Background sweepers bound the memory of the in-process caches.
	go a.summaries.Run(ctx, a.cfg.CacheSweepInterval)
	go a.idempotency.Run(ctx, 5*time.Minute)
	go a.writeLimiter.Run(ctx)

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in the correct order:
// 1. HTTP server (drain in-flight requests)
// 2. Tracer (flush pending spans from drained requests)
// 3. Kafka consumer
// 4. Kafka producer
// 5. Redis client
// 6. Review store
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	// 1. Drain in-flight HTTP requests (5s budget).
	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// 2. Flush pending spans after HTTP drain so in-flight request spans are captured.
	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	// 3. Close the Kafka consumer.
	if err := a.invalidations.Close(); err != nil {
		a.logger.Error("invalidation consumer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// 4. Close Kafka producer.
	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// 5. Close Redis.
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	// 6. Close the review store.
	storeCtx, storeCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer storeCancel()
	if err := a.store.close(storeCtx); err != nil {
		a.logger.Error("review store close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

// pingKafkaWithRetry attempts to ping the Kafka producer with exponential
// backoff (3 attempts, 1s/2s/4s with ±25% jitter).
func pingKafkaWithRetry(ctx context.Context, producer *pkgkafka.Producer, logger *slog.Logger) error {
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if err := producer.Ping(ctx); err == nil {
			return nil
		} else {
			lastErr = err
		}
		if attempt < 2 {
			base := time.Duration(1<<uint(attempt)) * time.Second
			jitter := time.Duration(float64(base) * 0.25 * (2*rand.Float64() - 1)) // #nosec G404 -- non-cryptographic jitter for retry backoff
			wait := base + jitter
			logger.Warn("kafka producer ping failed, retrying",
				slog.Int("attempt", attempt+1),
				slog.Int("max_attempts", 3),
				slog.Duration("backoff", wait),
				slog.String("error", lastErr.Error()),
			)
			select {
			case <-ctx.Done():
				return fmt.Errorf("kafka ping: context canceled during retry: %w", ctx.Err())
			case <-time.After(wait):
			}
		}
	}
	return fmt.Errorf("kafka producer ping failed after 3 attempts: %w", lastErr)
}
