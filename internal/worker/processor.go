package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"text-extraction-service/internal/blob"
	"text-extraction-service/internal/entity"
	"text-extraction-service/internal/metrics"
	"text-extraction-service/internal/processor"
)

type JobRepo interface {
	MarkProcessing(ctx context.Context, id uuid.UUID) error
	SetResultDone(ctx context.Context, id uuid.UUID, resultKey string) error
	SetResultError(ctx context.Context, id uuid.UUID, kind entity.ErrorKind, detail string) error
}

// Extractor dispatches a local file to a capability (implementation: processor.Registry).
type Extractor interface {
	Run(ctx context.Context, mime, ext, path string) (string, processor.Result, error)
}

type Options struct {
	ScratchDir      string
	DownloadTimeout time.Duration
	ExtractTimeout  time.Duration
	UploadTimeout   time.Duration
}

type Processor struct {
	repo      JobRepo
	store     blob.Store
	extractor Extractor
	opts      Options
	log       *slog.Logger
}

func NewProcessor(repo JobRepo, store blob.Store, extractor Extractor, opts Options, log *slog.Logger) *Processor {
	if log == nil {
		log = slog.Default()
	}
	if opts.ScratchDir == "" {
		opts.ScratchDir = os.TempDir()
	}
	return &Processor{repo: repo, store: store, extractor: extractor, opts: opts, log: log.With("component", "worker")}
}

// stageError carries the error kind of the pipeline stage that failed.
type stageError struct {
	kind entity.ErrorKind
	err  error
}

func (e *stageError) Error() string { return string(e.kind) + ": " + e.err.Error() }
func (e *stageError) Unwrap() error { return e.err }

// Process runs one descriptor through download, extract, upload and records the outcome.
// A nil return means the delivery can be acked: either an outcome was recorded
// now, or one already existed. Errors wrapping entity.ErrQueue mean the outcome
// store was unreachable and the delivery should be left for redelivery.
func (p *Processor) Process(ctx context.Context, d entity.Descriptor) error {
	start := time.Now()
	log := p.log.With("job_id", d.JobID, "source_key", d.SourceKey)

	if err := p.repo.MarkProcessing(ctx, d.JobID); err != nil {
		if errors.Is(err, entity.ErrOutcomeRecorded) {
			log.Info("outcome already recorded, skipping redelivery")
			return nil
		}
		log.Error("mark processing", "error", err)
		return err
	}

	log.Info("job started", "status", entity.StatusProcessing, "mime", d.Mime, "ext", d.Extension)

	resultKey, capName, runErr := p.run(ctx, d)

	var recErr error
	if runErr == nil {
		recErr = p.repo.SetResultDone(ctx, d.JobID, resultKey)
	} else {
		kind := entity.KindProcessor
		var se *stageError
		if errors.As(runErr, &se) {
			kind = se.kind
		}
		recErr = p.repo.SetResultError(ctx, d.JobID, kind, entity.TruncateDetail(runErr.Error()))
		if recErr == nil {
			metrics.JobsProcessedTotal.WithLabelValues(string(entity.StatusError), string(kind)).Inc()
			log.Warn("job failed",
				"status", entity.StatusError,
				"error_kind", kind,
				"duration_ms", time.Since(start).Milliseconds(),
				"error", runErr,
			)
		}
	}

	if recErr != nil {
		if errors.Is(recErr, entity.ErrOutcomeRecorded) {
			log.Info("outcome recorded by another delivery")
			return nil
		}
		log.Error("record outcome", "error", recErr)
		return recErr
	}

	if runErr == nil {
		metrics.JobsProcessedTotal.WithLabelValues(string(entity.StatusDone), "").Inc()
		metrics.JobDuration.WithLabelValues(capName).Observe(time.Since(start).Seconds())
		log.Info("job done",
			"status", entity.StatusDone,
			"capability", capName,
			"result_key", resultKey,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
	return nil
}

// run downloads the source into a scratch directory of its own
// (<scratch>/<job_id>-<random>, one per attempt), extracts and uploads the text.
// The scratch directory is removed on every path.
func (p *Processor) run(ctx context.Context, d entity.Descriptor) (resultKey, capName string, err error) {
	if err := os.MkdirAll(p.opts.ScratchDir, 0o755); err != nil {
		return "", "", &stageError{kind: entity.KindDownload, err: fmt.Errorf("scratch dir: %w", err)}
	}
	dir, err := os.MkdirTemp(p.opts.ScratchDir, d.JobID.String()+"-*")
	if err != nil {
		return "", "", &stageError{kind: entity.KindDownload, err: fmt.Errorf("scratch dir: %w", err)}
	}
	defer func() {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			p.log.Warn("remove scratch dir", "job_id", d.JobID, "dir", dir, "error", rmErr)
		}
	}()

	local := filepath.Join(dir, path.Base(d.SourceKey))

	dctx, cancel := withTimeout(ctx, p.opts.DownloadTimeout)
	err = p.store.Download(dctx, d.SourceKey, local)
	cancel()
	if err != nil {
		return "", "", &stageError{kind: entity.KindDownload, err: err}
	}

	ectx, cancel := withTimeout(ctx, p.opts.ExtractTimeout)
	capName, res, err := p.extractor.Run(ectx, d.Mime, d.Extension, local)
	cancel()
	if err != nil {
		kind := entity.KindProcessor
		if errors.Is(err, entity.ErrUnsupportedMedia) {
			kind = entity.KindUnsupportedMedia
		}
		return "", capName, &stageError{kind: kind, err: err}
	}

	resultKey = entity.ResultKey(d.SourceKey)
	uctx, cancel := withTimeout(ctx, p.opts.UploadTimeout)
	err = p.store.Put(uctx, resultKey, []byte(res.Text), "text/plain; charset=utf-8")
	cancel()
	if err != nil {
		return "", capName, &stageError{kind: entity.KindUpload, err: err}
	}

	return resultKey, capName, nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
