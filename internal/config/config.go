// Package config holds the service configuration, parsed from environment variables
// once at startup and handed to each component at construction.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	HTTP      HTTPConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Blob      BlobConfig
	Worker    WorkerConfig
	Whisper   WhisperConfig
	Deepgram  DeepgramConfig
	Kreuzberg KreuzbergConfig

	// Transcriber selects the audio/video backend: "deepgram", "whisper" or "none".
	Transcriber string `env:"TRANSCRIBER" envDefault:"deepgram"`
}

type HTTPConfig struct {
	Addr            string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"60s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	MaxUploadBytes  int64         `env:"HTTP_MAX_UPLOAD_BYTES" envDefault:"104857600"`
}

type PostgresConfig struct {
	DSN         string `env:"POSTGRES_DSN"`
	AutoMigrate bool   `env:"POSTGRES_AUTO_MIGRATE" envDefault:"true"`
}

type RedisConfig struct {
	Addr              string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password          string        `env:"REDIS_PASSWORD"`
	DB                int           `env:"REDIS_DB" envDefault:"0"`
	QueueKey          string        `env:"REDIS_QUEUE_KEY" envDefault:"extract:queue"`
	ProcessingKey     string        `env:"REDIS_PROCESSING_KEY" envDefault:"extract:processing"`
	ClaimsKey         string        `env:"REDIS_CLAIMS_KEY" envDefault:"extract:claims"`
	VisibilityTimeout time.Duration `env:"REDIS_VISIBILITY_TIMEOUT" envDefault:"15m"`
	ReaperInterval    time.Duration `env:"REDIS_REAPER_INTERVAL" envDefault:"30s"`
}

type BlobConfig struct {
	// Backend is "minio", "s3" or "memory".
	Backend   string `env:"BLOB_BACKEND" envDefault:"minio"`
	Endpoint  string `env:"S3_ENDPOINT_URL"`
	AccessKey string `env:"AWS_ACCESS_KEY_ID"`
	SecretKey string `env:"AWS_SECRET_ACCESS_KEY"`
	Bucket    string `env:"S3_BUCKET"`
	Region    string `env:"S3_REGION" envDefault:"us-east-1"`
	UseSSL    bool   `env:"S3_USE_SSL" envDefault:"true"`
}

type WorkerConfig struct {
	Count           int           `env:"WORKERS" envDefault:"4"`
	ScratchDir      string        `env:"WORKER_SCRATCH_DIR"`
	ClaimTimeout    time.Duration `env:"WORKER_CLAIM_TIMEOUT" envDefault:"5s"`
	DownloadTimeout time.Duration `env:"WORKER_DOWNLOAD_TIMEOUT" envDefault:"2m"`
	ExtractTimeout  time.Duration `env:"WORKER_EXTRACT_TIMEOUT" envDefault:"10m"`
	UploadTimeout   time.Duration `env:"WORKER_UPLOAD_TIMEOUT" envDefault:"2m"`
}

type WhisperConfig struct {
	ServiceURL string        `env:"WHISPER_SERVICE_URL" envDefault:"http://localhost:9000"`
	Language   string        `env:"WHISPER_LANGUAGE"`
	Timeout    time.Duration `env:"WHISPER_TIMEOUT" envDefault:"5m"`
}

type DeepgramConfig struct {
	APIKey   string        `env:"DEEPGRAM_API_KEY"`
	BaseURL  string        `env:"DEEPGRAM_BASE_URL" envDefault:"https://api.deepgram.com"`
	Model    string        `env:"DEEPGRAM_MODEL" envDefault:"nova-2"`
	Language string        `env:"DEEPGRAM_LANGUAGE" envDefault:"ru"`
	Timeout  time.Duration `env:"DEEPGRAM_TIMEOUT" envDefault:"5m"`
}

type KreuzbergConfig struct {
	Enabled    bool          `env:"KREUZBERG_ENABLED" envDefault:"true"`
	ServiceURL string        `env:"KREUZBERG_SERVICE_URL" envDefault:"http://localhost:8000"`
	Timeout    time.Duration `env:"KREUZBERG_TIMEOUT" envDefault:"5m"`
}

// Load parses the environment into a Config. It does not validate.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks the settings both binaries depend on.
func (c *Config) Validate() error {
	var errs []error

	if c.Postgres.DSN == "" {
		errs = append(errs, errors.New("POSTGRES_DSN is required"))
	}
	if c.Redis.Addr == "" {
		errs = append(errs, errors.New("REDIS_ADDR is required"))
	}
	if c.Redis.QueueKey == c.Redis.ProcessingKey {
		errs = append(errs, errors.New("REDIS_QUEUE_KEY and REDIS_PROCESSING_KEY must differ"))
	}

	switch c.Blob.Backend {
	case "minio", "s3":
		if c.Blob.Endpoint == "" || c.Blob.AccessKey == "" || c.Blob.SecretKey == "" || c.Blob.Bucket == "" {
			errs = append(errs, errors.New("S3_ENDPOINT_URL, AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY and S3_BUCKET are required"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("unknown BLOB_BACKEND %q", c.Blob.Backend))
	}

	switch c.Transcriber {
	case "deepgram":
		if c.Deepgram.APIKey == "" {
			errs = append(errs, errors.New("DEEPGRAM_API_KEY is required when TRANSCRIBER=deepgram"))
		}
	case "whisper":
		if c.Whisper.ServiceURL == "" {
			errs = append(errs, errors.New("WHISPER_SERVICE_URL is required when TRANSCRIBER=whisper"))
		}
	case "none":
	default:
		errs = append(errs, fmt.Errorf("unknown TRANSCRIBER %q", c.Transcriber))
	}

	if c.Worker.Count <= 0 {
		errs = append(errs, errors.New("WORKERS must be positive"))
	}
	if c.HTTP.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("HTTP_MAX_UPLOAD_BYTES must be positive"))
	}

	return errors.Join(errs...)
}

// SlogLevel maps LOG_LEVEL onto a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
