package config

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	pkgconfig "github.com/utafrali/storefront/pkg/config"
)

// Supported review store drivers.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMongo    = "mongo"
)

// Config holds all configuration for the review service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// InstanceID distinguishes replicas on the invalidation topic. Defaults to
	// the hostname plus a random suffix.
	InstanceID string `env:"REVIEW_INSTANCE_ID"`

	// HTTP server
	HTTPPort           int           `env:"REVIEW_HTTP_PORT" envDefault:"8010"`
	HealthCheckTimeout time.Duration `env:"HEALTH_CHECK_TIMEOUT" envDefault:"5s"`

	// Store selection
	StoreDriver string `env:"REVIEW_STORE_DRIVER" envDefault:"postgres"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"storefront"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"storefront_secret"`
	PostgresDB   string `env:"REVIEW_DB_NAME" envDefault:"review_db"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Database pool
	DBMaxConns            int32 `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns            int32 `env:"DB_MIN_CONNS" envDefault:"5"`
	DBMaxConnLifetimeMins int   `env:"DB_MAX_CONN_LIFETIME_MINUTES" envDefault:"60"`
	DBMaxConnIdleTimeMins int   `env:"DB_MAX_CONN_IDLE_TIME_MINUTES" envDefault:"30"`

	// MongoDB
	MongoURI      string `env:"MONGO_URI" envDefault:"mongodb://localhost:27017"`
	MongoDatabase string `env:"REVIEW_MONGO_DB" envDefault:"storefront"`
	MongoMaxPool  uint64 `env:"MONGO_MAX_POOL_SIZE" envDefault:"50"`

	// Redis (invalidation markers)
	RedisHost     string        `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int           `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string        `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	RedisTimeout  time.Duration `env:"REDIS_TIMEOUT" envDefault:"2s"`
	MarkerTTL     time.Duration `env:"REVIEW_MARKER_TTL" envDefault:"168h"`

	// Kafka
	KafkaBrokers          []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	InvalidationGroupBase string   `env:"REVIEW_INVALIDATION_GROUP" envDefault:"review-service-invalidation"`

	// Summary cache
	SummaryTTL         time.Duration `env:"REVIEW_SUMMARY_TTL" envDefault:"60s"`
	CacheSweepInterval time.Duration `env:"REVIEW_CACHE_SWEEP_INTERVAL" envDefault:"120s"`
	BulkSummaryCap     int           `env:"REVIEW_BULK_SUMMARY_CAP" envDefault:"300"`

	// Invalidation stream
	SSEKeepAlive time.Duration `env:"REVIEW_SSE_KEEPALIVE" envDefault:"25s"`

	// Moderation
	AutoPublish    bool   `env:"REVIEW_AUTO_PUBLISH" envDefault:"false"`
	AdminJWTSecret string `env:"ADMIN_JWT_SECRET" envDefault:""`

	// Write rate limiting (per client IP)
	WriteRateLimitRPS   float64 `env:"REVIEW_WRITE_RATE_LIMIT_RPS" envDefault:"1"`
	WriteRateLimitBurst int     `env:"REVIEW_WRITE_RATE_LIMIT_BURST" envDefault:"10"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Pprof debug endpoints (IP allowlist in CIDR notation)
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"10.0.0.0/8,172.16.0.0/12,192.168.0.0/16,127.0.0.0/8,::1/128" envSeparator:","`

	// Slow query logging
	SlowQueryThresholdMs int `env:"LOG_SLOW_QUERY_MS" envDefault:"500"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load review config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.InstanceID == "" {
		cfg.InstanceID = defaultInstanceID()
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.HealthCheckTimeout <= 0 {
		return fmt.Errorf("HEALTH_CHECK_TIMEOUT must be positive, got %s", c.HealthCheckTimeout)
	}
	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.PostgresHost == "" {
			return fmt.Errorf("POSTGRES_HOST is required")
		}
	case StoreDriverMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required")
		}
	default:
		return fmt.Errorf("REVIEW_STORE_DRIVER must be %q or %q, got %q", StoreDriverPostgres, StoreDriverMongo, c.StoreDriver)
	}
	if len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required")
	}
	if c.SummaryTTL <= 0 {
		return fmt.Errorf("REVIEW_SUMMARY_TTL must be positive, got %s", c.SummaryTTL)
	}
	if c.CacheSweepInterval <= 0 {
		return fmt.Errorf("REVIEW_CACHE_SWEEP_INTERVAL must be positive, got %s", c.CacheSweepInterval)
	}
	if c.MarkerTTL <= 0 {
		return fmt.Errorf("REVIEW_MARKER_TTL must be positive, got %s", c.MarkerTTL)
	}
	if c.SSEKeepAlive <= 0 {
		return fmt.Errorf("REVIEW_SSE_KEEPALIVE must be positive, got %s", c.SSEKeepAlive)
	}
	if c.BulkSummaryCap < 1 {
		return fmt.Errorf("REVIEW_BULK_SUMMARY_CAP must be at least 1, got %d", c.BulkSummaryCap)
	}
	if c.WriteRateLimitRPS <= 0 || c.WriteRateLimitBurst < 1 {
		return fmt.Errorf("write rate limit must be positive, got %.2f rps burst %d", c.WriteRateLimitRPS, c.WriteRateLimitBurst)
	}
	if c.AdminJWTSecret == "" && c.Environment != "development" {
		return fmt.Errorf("ADMIN_JWT_SECRET is required outside development")
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	return nil
}

// PostgresDSN returns the PostgreSQL connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.PostgresUser, c.PostgresPass, c.PostgresHost, c.PostgresPort, c.PostgresDB, c.PostgresSSL,
	)
}

func defaultInstanceID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "review"
	}
	return host + "-" + uuid.NewString()[:8]
}
