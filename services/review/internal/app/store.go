package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/utafrali/storefront/pkg/database"
	"github.com/utafrali/storefront/services/review/internal/config"
	"github.com/utafrali/storefront/services/review/internal/repository"
	mongorepo "github.com/utafrali/storefront/services/review/internal/repository/mongo"
	"github.com/utafrali/storefront/services/review/internal/repository/postgres"
	"github.com/utafrali/storefront/services/review/migrations"
)

// store is the review store selected by REVIEW_STORE_DRIVER.
type store struct {
	reviews  repository.ReviewRepository
	products repository.ProductRepository
	ping     func(ctx context.Context) error
	close    func(ctx context.Context) error
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*store, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverMongo:
		return openMongo(ctx, cfg, logger)
	default:
		return openPostgres(ctx, cfg, logger)
	}
}

func openPostgres(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*store, error) {
	pgCfg := database.PostgresConfig{
		Host:            cfg.PostgresHost,
		Port:            cfg.PostgresPort,
		User:            cfg.PostgresUser,
		Password:        cfg.PostgresPass,
		DBName:          cfg.PostgresDB,
		SSLMode:         cfg.PostgresSSL,
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		MaxConnLifetime: time.Duration(cfg.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(cfg.DBMaxConnIdleTimeMins) * time.Minute,
	}

	pool, err := database.NewPostgresPool(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	database.RegisterPoolMetrics(pool, "review")

	// Run database migrations.
	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	return &store{
		reviews:  postgres.NewReviewRepository(pool),
		products: postgres.NewProductRepository(pool),
		ping:     pool.Ping,
		close: func(context.Context) error {
			pool.Close()
			return nil
		},
	}, nil
}

func openMongo(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*store, error) {
	mongoCfg := database.MongoConfig{
		URI:            cfg.MongoURI,
		Database:       cfg.MongoDatabase,
		ConnectTimeout: 10 * time.Second,
		MaxPoolSize:    cfg.MongoMaxPool,
	}

	client, err := database.NewMongoClient(ctx, mongoCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}
	db := client.Database(cfg.MongoDatabase)
	logger.Info("connected to MongoDB", slog.String("database", cfg.MongoDatabase))

	if err := mongorepo.EnsureIndexes(ctx, db, logger); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ensure mongo indexes: %w", err)
	}

	return &store{
		reviews:  mongorepo.NewReviewRepository(db),
		products: mongorepo.NewProductRepository(db),
		ping: func(ctx context.Context) error {
			return client.Ping(ctx, nil)
		},
		close: client.Disconnect,
	}, nil
}
