package service

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"text-extraction-service/internal/blob"
	"text-extraction-service/internal/entity"
	"text-extraction-service/internal/metrics"
)

// Repository port (implementation: postgresql.JobRepository)
type JobRepository interface {
	Create(ctx context.Context, d entity.Descriptor) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Job, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Small queue port for the submit side only.
type JobQueue interface {
	Enqueue(ctx context.Context, d entity.Descriptor) error
}

type JobService struct {
	repo  JobRepository
	queue JobQueue
	store blob.Store
	log   *slog.Logger
	newID func() uuid.UUID
}

func NewJobService(repo JobRepository, queue JobQueue, store blob.Store, log *slog.Logger) *JobService {
	if log == nil {
		log = slog.Default()
	}
	return &JobService{repo: repo, queue: queue, store: store, log: log, newID: uuid.New}
}

type SubmitRequest struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Submit stages the file, records the job as pending and enqueues its descriptor.
// When enqueue fails the record and the staged blob are removed, so a returned
// error never leaves a job that no worker will pick up.
func (s *JobService) Submit(ctx context.Context, req SubmitRequest) (uuid.UUID, error) {
	if len(req.Data) == 0 {
		metrics.SubmissionsTotal.WithLabelValues("empty").Inc()
		return uuid.Nil, entity.ErrEmptyPayload
	}

	id := s.newID()
	ext := ExtensionOf(req.Filename)
	d := entity.Descriptor{
		JobID:     id,
		SourceKey: entity.SourceKey(id, ext),
		Mime:      req.ContentType,
		Extension: ext,
	}

	if err := s.store.Put(ctx, d.SourceKey, req.Data, req.ContentType); err != nil {
		metrics.SubmissionsTotal.WithLabelValues("storage_error").Inc()
		return uuid.Nil, err
	}

	if err := s.repo.Create(ctx, d); err != nil {
		s.removeBlob(d.SourceKey)
		metrics.SubmissionsTotal.WithLabelValues("queue_error").Inc()
		return uuid.Nil, err
	}

	if err := s.queue.Enqueue(ctx, d); err != nil {
		s.rollback(d)
		metrics.SubmissionsTotal.WithLabelValues("queue_error").Inc()
		return uuid.Nil, err
	}

	metrics.SubmissionsTotal.WithLabelValues("accepted").Inc()
	metrics.UploadBytes.Observe(float64(len(req.Data)))
	s.log.Info("job submitted",
		"job_id", id,
		"source_key", d.SourceKey,
		"mime", d.Mime,
		"size", len(req.Data),
	)
	return id, nil
}

// rollback runs on a detached context: the request one may already be canceled.
func (s *JobService) rollback(d entity.Descriptor) {
	ctx := context.Background()
	if err := s.repo.Delete(ctx, d.JobID); err != nil {
		s.log.Warn("rollback: delete job record", "job_id", d.JobID, "error", err)
	}
	s.removeBlob(d.SourceKey)
}

func (s *JobService) removeBlob(key string) {
	if err := s.store.Remove(context.Background(), key); err != nil {
		s.log.Warn("rollback: remove staged blob", "key", key, "error", err)
	}
}

// ExtensionOf returns the lower-cased extension of filename without the dot.
// Anything but ASCII letters and digits is dropped so it is safe inside a blob key.
func ExtensionOf(filename string) string {
	ext := strings.TrimPrefix(filepath.Ext(filepath.Base(filename)), ".")
	ext = strings.ToLower(ext)
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		return -1
	}, ext)
}
