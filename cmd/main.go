package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/fathima-sithara/image-service/internal/auth"
	"github.com/fathima-sithara/image-service/internal/config"
	"github.com/fathima-sithara/image-service/internal/encoder"
	"github.com/fathima-sithara/image-service/internal/events"
	"github.com/fathima-sithara/image-service/internal/handlers"
	models "github.com/fathima-sithara/image-service/internal/media"
	"github.com/fathima-sithara/image-service/internal/metrics"
	"github.com/fathima-sithara/image-service/internal/middleware"
	"github.com/fathima-sithara/image-service/internal/repository"
	service "github.com/fathima-sithara/image-service/internal/services"
	"github.com/fathima-sithara/image-service/internal/storage"
	"github.com/fathima-sithara/image-service/internal/utils"
)

func main() {
	// load config
	cfg, err := config.Load(config.Path())
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	// logger
	logger, err := utils.NewLogger(cfg.Dev())
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var closers []io.Closer

	// metadata
	repo, owners, closeMeta, err := openMetadata(ctx, cfg)
	if err != nil {
		logger.Fatal("metadata init", zap.Error(err))
	}
	defer closeMeta()

	// asset store
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("storage init", zap.Error(err))
	}

	// metrics
	obs, err := metrics.NewObserver("image_service", prometheus.DefaultRegisterer)
	if err != nil {
		logger.Fatal("metrics init", zap.Error(err))
	}

	opts := []service.Option{
		service.WithObserver(obs),
		service.WithRollbackTimeout(cfg.RollbackTimeout),
		service.WithPublishTimeout(cfg.PublishTimeout),
	}
	if len(cfg.Kafka.Brokers) > 0 {
		producer := events.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		closers = append(closers, producer)
		opts = append(opts, service.WithPublisher(producer))
		logger.Info("publishing image events", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	enc := encoder.New(cfg.Encoder.Workers, cfg.Encoder.Quality)
	msvc := service.NewMediaService(repo, owners, enc, store, logger, opts...)
	h := handlers.NewHandler(msvc, service.NewRetriever(store, obs), service.NewBatchDeleter(msvc), cfg.MaxUploadBytes, logger)

	// guards for mutating routes
	var guard []fiber.Handler
	if cfg.JWT.PublicKeyPath != "" {
		verifier, err := auth.NewJWTVerifier(cfg.JWT.PublicKeyPath)
		if err != nil {
			logger.Fatal("jwt init", zap.Error(err))
		}
		guard = append(guard, middleware.JWTAuth(verifier), middleware.RequireRole(cfg.JWT.AdminRole))
	}
	if cfg.RateLimit.PerMinute > 0 {
		if cfg.Redis.Addr != "" {
			rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
			closers = append(closers, rdb)
			rl := middleware.NewRateLimiter(middleware.NewRedisCounter(rdb), "ratelimit:images", cfg.RateLimit.PerMinute, time.Minute, logger)
			guard = append(guard, rl.MiddlewareByKey(middleware.ClientIP))
		} else {
			guard = append(guard, middleware.NewIPRateLimiter(ctx, cfg.RateLimit.PerMinute, cfg.RateLimit.Burst, logger).Handler())
		}
	}

	// fiber app & routes
	app := handlers.NewApp(handlers.AppConfig{BodyLimit: int(4 * cfg.MaxUploadBytes)}, logger)
	h.Register(app, guard...)

	// start server
	errc := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.App.Port)
		logger.Info("starting image service", zap.String("addr", addr), zap.String("storage", cfg.Storage.Driver), zap.String("metadata", cfg.Metadata.Driver))
		errc <- app.Listen(addr)
	}()

	// graceful shutdown
	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errc:
		logger.Error("listen failed", zap.Error(err))
	}
	if err := app.ShutdownWithTimeout(cfg.ShutdownTimeout); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
	for _, c := range closers {
		if err := c.Close(); err != nil {
			logger.Warn("close", zap.Error(err))
		}
	}
	logger.Info("shutdown completed")
}

func openMetadata(ctx context.Context, cfg *config.Config) (service.AssetRepository, service.OwnerLookup, func(), error) {
	switch cfg.Metadata.Driver {
	case "mongo":
		mc, err := repository.NewMongoClient(ctx, cfg.Metadata.Mongo.URI)
		if err != nil {
			return nil, nil, nil, err
		}
		db := mc.Database(cfg.Metadata.Mongo.Database)
		repo, err := repository.NewMediaRepo(ctx, db.Collection(cfg.Metadata.Mongo.Collection))
		if err != nil {
			disconnect(mc, cfg)()
			return nil, nil, nil, err
		}
		owners := repository.NewMongoOwnerLookup(db, cfg.Metadata.Mongo.PropertyCollection, cfg.Metadata.Mongo.AccountCollection)
		return repo, owners, disconnect(mc, cfg), nil
	default:
		db, err := repository.OpenSQLite(cfg.Metadata.SQLite.Path)
		if err != nil {
			return nil, nil, nil, err
		}
		owners := repository.NewSQLOwnerLookup(db, map[models.OwnerKind]string{
			models.OwnerProperty: cfg.Metadata.SQLite.PropertyTable,
			models.OwnerAccount:  cfg.Metadata.SQLite.AccountTable,
		})
		return repository.NewSQLAssetRepo(db), owners, closeDB(db), nil
	}
}

func disconnect(mc *mongo.Client, cfg *config.Config) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		_ = mc.Disconnect(ctx)
	}
}

func closeDB(db *sql.DB) func() {
	return func() { _ = db.Close() }
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage.Store, error) {
	var store storage.Store
	switch cfg.Storage.Driver {
	case "s3":
		s3s, err := storage.NewS3Store(ctx, storage.S3Options{
			Region:    cfg.AWS.Region,
			Bucket:    cfg.AWS.Bucket,
			Endpoint:  cfg.AWS.Endpoint,
			PathStyle: cfg.S3.PathStyle,
		})
		if err != nil {
			return nil, err
		}
		store = storage.NewBreakerStore(s3s, storage.BreakerConfig{
			MaxFailures: cfg.Breaker.MaxFailures,
			Interval:    cfg.BreakerInterval,
			Timeout:     cfg.BreakerTimeout,
		}, logger)
	default:
		fss, err := storage.NewFSStore(cfg.Storage.Root)
		if err != nil {
			return nil, err
		}
		store = fss
	}
	return storage.WithTimeout(store, cfg.StorageTimeout), nil
}
