package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
}

// S3Store talks to any S3-compatible endpoint with path-style addressing.
type S3Store struct {
	client *s3.Client
	bucket string
	log    *slog.Logger
}

func NewS3Store(ctx context.Context, cfg S3Config, log *slog.Logger) (*S3Store, error) {
	if log == nil {
		log = slog.Default()
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = true
	})

	log.Info("blob store initialized", "backend", "s3", "endpoint", cfg.Endpoint, "bucket", cfg.Bucket)
	return &S3Store{client: client, bucket: cfg.Bucket, log: log.With("component", "blob")}, nil
}

func (s *S3Store) Put(ctx context.Context, key string, data []byte, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		s.log.Error("failed to upload object", "key", key, "error", err)
		return storageErr("put", key, err)
	}
	s.log.Debug("object uploaded", "key", key, "size", len(data))
	return nil
}

func (s *S3Store) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		s.log.Error("failed to fetch object", "key", key, "error", err)
		return nil, storageErr("get", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, storageErr("get", key, err)
	}
	s.log.Debug("object fetched", "key", key, "size", len(data))
	return data, nil
}

func (s *S3Store) Download(ctx context.Context, key, localPath string) error {
	data, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := writeLocal(localPath, data); err != nil {
		return storageErr("download", key, err)
	}
	s.log.Debug("object downloaded", "key", key, "path", localPath)
	return nil
}

func (s *S3Store) Remove(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		s.log.Error("failed to remove object", "key", key, "error", err)
		return storageErr("remove", key, err)
	}
	return nil
}
