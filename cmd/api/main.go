package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/handover/docbatch/internal/config"
	"github.com/handover/docbatch/internal/handler"
	"github.com/handover/docbatch/internal/infra/postgresql"
	"github.com/handover/docbatch/internal/infra/postgresql/migrations"
	infraredis "github.com/handover/docbatch/internal/infra/redis"
	"github.com/handover/docbatch/internal/observability"
	"github.com/handover/docbatch/internal/provider"
	"github.com/handover/docbatch/internal/queue"
	"github.com/handover/docbatch/internal/repository"
	"github.com/handover/docbatch/internal/service"
	"github.com/handover/docbatch/internal/storage"
	"github.com/handover/docbatch/internal/transport"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal("failed to initialize logger", zap.Error(err))
	}
	defer logger.Sync() //nolint:errcheck

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("postgres initialization failed", zap.Error(err))
	}

	if err := migrations.Migrate(db); err != nil {
		logger.Fatal("database migrations failed", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("postgres underlying db init failed", zap.Error(err))
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	rabbit, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
	if err != nil {
		logger.Fatal("rabbitmq initialization failed", zap.Error(err))
	}
	publisher := queue.NewRabbitMQPublisher(rabbit)
	defer publisher.Close()

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()

	blobs, err := newBlobStorage(runCtx, cfg, logger)
	if err != nil {
		logger.Fatal("blob storage initialization failed", zap.Error(err))
	}

	metrics := observability.NewMetrics()

	batchRepo := repository.NewGormBatchRepo(db)
	unitRepo := repository.NewGormUnitRepo(db)
	artifactRepo := repository.NewGormArtifactRepo(db)
	deliveryRepo := repository.NewGormDeliveryRepo(db)
	remarkRepo := repository.NewGormRemarkRepo(db)

	statusCache, err := infraredis.NewBatchStatusCache(rdb, cfg.StatusCacheTTL)
	if err != nil {
		logger.Fatal("status cache initialization failed", zap.Error(err))
	}
	locker, err := infraredis.NewUnitLocker(rdb, cfg.UnitLockTTL)
	if err != nil {
		logger.Fatal("unit locker initialization failed", zap.Error(err))
	}

	var completionNotifier provider.CompletionNotifier
	if strings.TrimSpace(cfg.CompletionWebhookURL) != "" {
		completionNotifier, err = provider.NewWebhookNotifier(cfg.CompletionWebhookURL)
		if err != nil {
			logger.Fatal("completion webhook initialization failed", zap.Error(err))
		}
	}

	aggregator, err := service.NewProgressAggregator(batchRepo, statusCache, completionNotifier, logger)
	if err != nil {
		logger.Fatal("progress aggregator initialization failed", zap.Error(err))
	}
	aggregator.SetMetrics(metrics)

	batchService, err := service.NewBatchService(batchRepo, unitRepo, publisher, aggregator, statusCache, cfg.MaxBatchSize, logger)
	if err != nil {
		logger.Fatal("batch service initialization failed", zap.Error(err))
	}
	batchService.SetMetrics(metrics)

	artifactService, err := service.NewArtifactService(artifactRepo, deliveryRepo, remarkRepo, blobs, locker, logger)
	if err != nil {
		logger.Fatal("artifact service initialization failed", zap.Error(err))
	}

	reconciler, err := service.NewBatchReconciler(
		batchRepo,
		publisher,
		cfg.ReconcileInterval,
		cfg.ReconcileStaleAfter,
		0,
		logger,
	)
	if err != nil {
		logger.Fatal("batch reconciler initialization failed", zap.Error(err))
	}
	reconciler.SetMetrics(metrics)

	app := fiber.New(fiber.Config{
		AppName:      "docbatch-api",
		ErrorHandler: transport.ErrorHandler(logger),
	})
	app.Use(requestid.New())
	app.Use(metrics.HTTPMiddleware())
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	handler.RegisterHealthRoutes(app, sqlDB, rdb, rabbit)
	if err := handler.RegisterBatchRoutes(app, batchService); err != nil {
		logger.Fatal("batch routes registration failed", zap.Error(err))
	}
	if err := handler.RegisterUnitRoutes(app, artifactService); err != nil {
		logger.Fatal("unit routes registration failed", zap.Error(err))
	}

	go func() {
		if err := reconciler.Start(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("batch reconciler stopped", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-quit
		logger.Info("shutting down api")
		runCancel()
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			logger.Error("api shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("docbatch api started", zap.Int("port", cfg.APIPort))

	if err := app.Listen(fmt.Sprintf(":%d", cfg.APIPort)); err != nil {
		logger.Error("api server stopped", zap.Error(err))
	}

	logger.Info("api stopped cleanly")
}

func newBlobStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage.BlobStorage, error) {
	switch strings.ToLower(cfg.StorageBackend) {
	case config.StorageBackendS3:
		return storage.NewS3Storage(ctx, storage.S3Config{
			Endpoint:     cfg.S3Endpoint,
			Region:       cfg.S3Region,
			Bucket:       cfg.S3Bucket,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			UsePathStyle: cfg.S3UsePathStyle,
			Prefix:       cfg.S3Prefix,
		}, logger)
	default:
		return storage.NewFilesystemStorage(cfg.StorageRoot)
	}
}
