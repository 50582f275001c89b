package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Netflix/go-env"
)

const (
	StorageBackendFilesystem = "filesystem"
	StorageBackendS3         = "s3"
)

type Config struct {
	DatabaseDSN string `env:"DATABASE_DSN,required=true"`
	RabbitMQURL string `env:"RABBITMQ_URL,required=true"`
	RedisURL    string `env:"REDIS_URL,required=true"`

	WorkerConcurrency  int           `env:"WORKER_CONCURRENCY,default=4"`
	WorkerDrainTimeout time.Duration `env:"WORKER_DRAIN_TIMEOUT,default=30s"`
	TaskMaxAttempts    int           `env:"TASK_MAX_ATTEMPTS,default=3"`
	TaskRetryBackoff   time.Duration `env:"TASK_RETRY_BACKOFF,default=60s"`
	TaskAttemptTimeout time.Duration `env:"TASK_ATTEMPT_TIMEOUT,default=120s"`
	UnitLockTTL        time.Duration `env:"UNIT_LOCK_TTL,default=3m"`
	MaxBatchSize       int           `env:"MAX_BATCH_SIZE,default=1000"`

	StatusCacheTTL      time.Duration `env:"STATUS_CACHE_TTL,default=1h"`
	ReconcileInterval   time.Duration `env:"RECONCILE_INTERVAL,default=1m"`
	ReconcileStaleAfter time.Duration `env:"RECONCILE_STALE_AFTER,default=30m"`

	StorageBackend string `env:"STORAGE_BACKEND,default=filesystem"`
	StorageRoot    string `env:"STORAGE_ROOT,default=./data/documents"`
	S3Endpoint     string `env:"S3_ENDPOINT"`
	S3Region       string `env:"S3_REGION,default=us-east-1"`
	S3Bucket       string `env:"S3_BUCKET"`
	S3AccessKey    string `env:"S3_ACCESS_KEY"`
	S3SecretKey    string `env:"S3_SECRET_KEY"`
	S3UsePathStyle bool   `env:"S3_USE_PATH_STYLE,default=false"`
	S3Prefix       string `env:"S3_PREFIX"`

	SMTPHost            string `env:"SMTP_HOST"`
	SMTPPort            int    `env:"SMTP_PORT,default=587"`
	SMTPUsername        string `env:"SMTP_USERNAME"`
	SMTPPassword        string `env:"SMTP_PASSWORD"`
	SMTPFrom            string `env:"SMTP_FROM"`
	SMTPFromName        string `env:"SMTP_FROM_NAME,default=Handover Team"`
	SMTPRequireTLS      bool   `env:"SMTP_REQUIRE_TLS,default=false"`
	MailRateLimitPerSec int    `env:"MAIL_RATE_LIMIT_PER_SEC,default=10"`
	MailFanout          int    `env:"MAIL_FANOUT,default=4"`

	ChromeRemoteURL string        `env:"CHROME_REMOTE_URL"`
	ChromeTimeout   time.Duration `env:"CHROME_TIMEOUT,default=30s"`
	ChromeNoSandbox bool          `env:"CHROME_NO_SANDBOX,default=false"`

	CompletionWebhookURL string `env:"COMPLETION_WEBHOOK_URL"`

	APIPort     int    `env:"API_PORT,default=8080"`
	MetricsAddr string `env:"METRICS_ADDR,default=:9091"`
	LogLevel    string `env:"LOG_LEVEL,default=info"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.WorkerConcurrency < 1 {
		return fmt.Errorf("WORKER_CONCURRENCY must be at least 1")
	}
	if c.WorkerDrainTimeout <= 0 {
		return fmt.Errorf("WORKER_DRAIN_TIMEOUT must be positive")
	}
	if c.TaskMaxAttempts < 1 {
		return fmt.Errorf("TASK_MAX_ATTEMPTS must be at least 1")
	}
	if c.MaxBatchSize < 1 {
		return fmt.Errorf("MAX_BATCH_SIZE must be at least 1")
	}
	if c.UnitLockTTL <= c.TaskAttemptTimeout {
		return fmt.Errorf("UNIT_LOCK_TTL must be longer than TASK_ATTEMPT_TIMEOUT")
	}

	switch strings.ToLower(c.StorageBackend) {
	case StorageBackendFilesystem:
		if strings.TrimSpace(c.StorageRoot) == "" {
			return fmt.Errorf("STORAGE_ROOT is required for the filesystem backend")
		}
	case StorageBackendS3:
		if strings.TrimSpace(c.S3Bucket) == "" {
			return fmt.Errorf("S3_BUCKET is required for the s3 backend")
		}
	default:
		return fmt.Errorf("unsupported STORAGE_BACKEND %q", c.StorageBackend)
	}
	return nil
}

// ValidateWorker checks the settings only the worker process needs.
func (c *Config) ValidateWorker() error {
	if strings.TrimSpace(c.SMTPHost) == "" {
		return fmt.Errorf("SMTP_HOST is required")
	}
	if strings.TrimSpace(c.SMTPFrom) == "" {
		return fmt.Errorf("SMTP_FROM is required")
	}
	return nil
}
