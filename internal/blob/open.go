package blob

import (
	"context"
	"fmt"
	"log/slog"

	"text-extraction-service/internal/config"
)

// Open builds the Store selected by cfg.Backend.
func Open(ctx context.Context, cfg config.BlobConfig, log *slog.Logger) (Store, error) {
	switch cfg.Backend {
	case "minio":
		return NewMinioStore(MinioConfig{
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			UseSSL:    cfg.UseSSL,
		}, log)
	case "s3":
		return NewS3Store(ctx, S3Config{
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
		}, log)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob backend %q", cfg.Backend)
	}
}
