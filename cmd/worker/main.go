package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/handover/docbatch/internal/config"
	"github.com/handover/docbatch/internal/infra/postgresql"
	infraredis "github.com/handover/docbatch/internal/infra/redis"
	"github.com/handover/docbatch/internal/observability"
	"github.com/handover/docbatch/internal/provider"
	"github.com/handover/docbatch/internal/queue"
	"github.com/handover/docbatch/internal/render"
	"github.com/handover/docbatch/internal/repository"
	"github.com/handover/docbatch/internal/retry"
	"github.com/handover/docbatch/internal/service"
	"github.com/handover/docbatch/internal/storage"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}
	if err := cfg.ValidateWorker(); err != nil {
		log.Fatal("invalid worker config", zap.Error(err))
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
	// Each consumer handles one delivery at a time; the worker service runs
	// WorkerConcurrency consumers per queue.
	consumer := queue.NewRabbitMQConsumer(rabbit, 1, logger)
	defer consumer.Close()

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()

	blobs, err := newBlobStorage(runCtx, cfg, logger)
	if err != nil {
		logger.Fatal("blob storage initialization failed", zap.Error(err))
	}

	converter := render.NewChromedpConverter(render.ChromedpConfig{
		RemoteURL: cfg.ChromeRemoteURL,
		Timeout:   cfg.ChromeTimeout,
		NoSandbox: cfg.ChromeNoSandbox,
	}, logger)
	defer converter.Close()

	templates, err := render.NewTemplateEngine()
	if err != nil {
		logger.Fatal("template engine initialization failed", zap.Error(err))
	}
	renderer, err := render.NewDocumentRenderer(templates, converter)
	if err != nil {
		logger.Fatal("document renderer initialization failed", zap.Error(err))
	}

	mailTransport, err := provider.NewSMTPTransport(provider.SMTPConfig{
		Host:       cfg.SMTPHost,
		Port:       cfg.SMTPPort,
		Username:   cfg.SMTPUsername,
		Password:   cfg.SMTPPassword,
		From:       cfg.SMTPFrom,
		FromName:   cfg.SMTPFromName,
		RequireTLS: cfg.SMTPRequireTLS,
	})
	if err != nil {
		logger.Fatal("smtp transport initialization failed", zap.Error(err))
	}

	rateLimiter, err := infraredis.NewRedisRateLimiter(rdb, cfg.MailRateLimitPerSec)
	if err != nil {
		logger.Fatal("rate limiter initialization failed", zap.Error(err))
	}
	locker, err := infraredis.NewUnitLocker(rdb, cfg.UnitLockTTL)
	if err != nil {
		logger.Fatal("unit locker initialization failed", zap.Error(err))
	}
	statusCache, err := infraredis.NewBatchStatusCache(rdb, cfg.StatusCacheTTL)
	if err != nil {
		logger.Fatal("status cache initialization failed", zap.Error(err))
	}

	var completionNotifier provider.CompletionNotifier
	if strings.TrimSpace(cfg.CompletionWebhookURL) != "" {
		completionNotifier, err = provider.NewWebhookNotifier(cfg.CompletionWebhookURL)
		if err != nil {
			logger.Fatal("completion webhook initialization failed", zap.Error(err))
		}
	}

	metrics := observability.NewMetrics()

	batchRepo := repository.NewGormBatchRepo(db)
	unitRepo := repository.NewGormUnitRepo(db)
	artifactRepo := repository.NewGormArtifactRepo(db)
	deliveryRepo := repository.NewGormDeliveryRepo(db)
	remarkRepo := repository.NewGormRemarkRepo(db)

	dispatcher, err := service.NewNotificationDispatcher(
		mailTransport,
		blobs,
		deliveryRepo,
		remarkRepo,
		rateLimiter,
		cfg.MailFanout,
		logger,
	)
	if err != nil {
		logger.Fatal("notification dispatcher initialization failed", zap.Error(err))
	}
	dispatcher.SetMetrics(metrics)

	executor, err := service.NewUnitTaskExecutor(
		unitRepo,
		artifactRepo,
		remarkRepo,
		blobs,
		renderer,
		dispatcher,
		locker,
		logger,
	)
	if err != nil {
		logger.Fatal("unit task executor initialization failed", zap.Error(err))
	}

	aggregator, err := service.NewProgressAggregator(batchRepo, statusCache, completionNotifier, logger)
	if err != nil {
		logger.Fatal("progress aggregator initialization failed", zap.Error(err))
	}
	aggregator.SetMetrics(metrics)

	policy := retry.Policy{
		MaxAttempts:    cfg.TaskMaxAttempts,
		Backoff:        cfg.TaskRetryBackoff,
		AttemptTimeout: cfg.TaskAttemptTimeout,
	}

	workerService, err := service.NewWorkerService(
		consumer,
		executor,
		aggregator,
		policy,
		cfg.WorkerConcurrency,
		logger,
	)
	if err != nil {
		logger.Fatal("worker service initialization failed", zap.Error(err))
	}
	workerService.SetMetrics(metrics)
	workerService.SetDrainTimeout(cfg.WorkerDrainTimeout)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	metricsServer := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-quit
		logger.Info("shutting down, draining in-flight unit tasks",
			zap.Duration("drainTimeout", cfg.WorkerDrainTimeout),
		)
		runCancel()
	}()

	logger.Info("docbatch worker started",
		zap.Int("concurrency", cfg.WorkerConcurrency),
		zap.Int("maxAttempts", policy.MaxAttempts),
		zap.Duration("retryBackoff", policy.Backoff),
		zap.String("metricsAddr", cfg.MetricsAddr),
	)

	if err := workerService.Start(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker service stopped", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown failed", zap.Error(err))
	}

	logger.Info("worker stopped cleanly")
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
