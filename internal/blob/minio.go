package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

type MinioStore struct {
	client *minio.Client
	bucket string
	log    *slog.Logger
}

func NewMinioStore(cfg MinioConfig, log *slog.Logger) (*MinioStore, error) {
	if log == nil {
		log = slog.Default()
	}

	host, secure := splitEndpoint(cfg.Endpoint, cfg.UseSSL)
	client, err := minio.New(host, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio connection: %w", err)
	}

	log.Info("blob store initialized", "backend", "minio", "endpoint", host, "bucket", cfg.Bucket)
	return &MinioStore{client: client, bucket: cfg.Bucket, log: log.With("component", "blob")}, nil
}

// splitEndpoint accepts either "host:port" or a URL; a URL scheme overrides useSSL.
func splitEndpoint(endpoint string, useSSL bool) (string, bool) {
	if !strings.Contains(endpoint, "://") {
		return strings.TrimSuffix(endpoint, "/"), useSSL
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return endpoint, useSSL
	}
	return u.Host, u.Scheme == "https"
}

func (s *MinioStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		s.log.Error("failed to upload object", "key", key, "error", err)
		return storageErr("put", key, err)
	}
	s.log.Debug("object uploaded", "key", key, "size", len(data))
	return nil
}

func (s *MinioStore) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		s.log.Error("failed to fetch object", "key", key, "error", err)
		return nil, storageErr("get", key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		s.log.Error("failed to read object", "key", key, "error", err)
		return nil, storageErr("get", key, err)
	}
	s.log.Debug("object fetched", "key", key, "size", len(data))
	return data, nil
}

func (s *MinioStore) Download(ctx context.Context, key, localPath string) error {
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return storageErr("download", key, err)
	}
	if err := s.client.FGetObject(ctx, s.bucket, key, localPath, minio.GetObjectOptions{}); err != nil {
		s.log.Error("failed to download object", "key", key, "error", err)
		return storageErr("download", key, err)
	}
	s.log.Debug("object downloaded", "key", key, "path", localPath)
	return nil
}

func (s *MinioStore) Remove(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		s.log.Error("failed to remove object", "key", key, "error", err)
		return storageErr("remove", key, err)
	}
	return nil
}
