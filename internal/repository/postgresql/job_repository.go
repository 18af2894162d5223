package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"text-extraction-service/internal/entity"
)

// ErrNotFound is kept as an alias so callers can match either name.
var ErrNotFound = entity.ErrNotFound

// execer is the subset of pgxpool.Pool the repository needs.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type JobRepository struct {
	db execer
}

func NewJobRepository(pool *pgxpool.Pool) *JobRepository {
	return &JobRepository{db: pool}
}

func dbErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", entity.ErrQueue, op, err)
}

// Create inserts the existence record of a freshly submitted job.
func (r *JobRepository) Create(ctx context.Context, d entity.Descriptor) error {
	const q = `
INSERT INTO jobs (id, source_key, mime, extension, status)
VALUES ($1, $2, $3, $4, 'pending');
`
	if _, err := r.db.Exec(ctx, q, d.JobID, d.SourceKey, d.Mime, d.Extension); err != nil {
		return dbErr("create job", err)
	}
	return nil
}

func (r *JobRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	const q = `
SELECT id, source_key, mime, extension, status, result_key, error_kind, error, created_at, updated_at
FROM jobs
WHERE id = $1;
`
	var (
		job        entity.Job
		statusText string
		errKind    *string
	)

	if err := r.db.QueryRow(ctx, q, id).Scan(
		&job.ID,
		&job.SourceKey,
		&job.Mime,
		&job.Extension,
		&statusText,
		&job.ResultKey, // NULL => nil
		&errKind,
		&job.Error,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, dbErr("get job", err)
	}

	job.Status = entity.JobStatus(statusText)
	if errKind != nil {
		k := entity.ErrorKind(*errKind)
		job.ErrorKind = &k
	}
	return &job, nil
}

// Delete removes the record of a job that never reached the queue.
func (r *JobRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM jobs WHERE id = $1;`, id); err != nil {
		return dbErr("delete job", err)
	}
	return nil
}

// MarkProcessing is a no-op for a job already processing (redelivery).
// It returns ErrOutcomeRecorded when the job is already terminal.
func (r *JobRepository) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	const q = `
UPDATE jobs SET status = 'processing', updated_at = now()
WHERE id = $1 AND status IN ('pending', 'processing');
`
	tag, err := r.db.Exec(ctx, q, id)
	if err != nil {
		return dbErr("mark processing", err)
	}
	if tag.RowsAffected() == 0 {
		return r.missOrRecorded(ctx, id)
	}
	return nil
}

// SetResultDone and SetResultError write the outcome once. Later writes get ErrOutcomeRecorded.
func (r *JobRepository) SetResultDone(ctx context.Context, id uuid.UUID, resultKey string) error {
	const q = `
UPDATE jobs SET status = 'done', result_key = $2, error_kind = NULL, error = NULL, updated_at = now()
WHERE id = $1 AND status NOT IN ('done', 'error');
`
	tag, err := r.db.Exec(ctx, q, id, resultKey)
	if err != nil {
		return dbErr("record result", err)
	}
	if tag.RowsAffected() == 0 {
		return r.missOrRecorded(ctx, id)
	}
	return nil
}

func (r *JobRepository) SetResultError(ctx context.Context, id uuid.UUID, kind entity.ErrorKind, detail string) error {
	const q = `
UPDATE jobs SET status = 'error', error_kind = $2, error = $3, updated_at = now()
WHERE id = $1 AND status NOT IN ('done', 'error');
`
	tag, err := r.db.Exec(ctx, q, id, string(kind), entity.TruncateDetail(detail))
	if err != nil {
		return dbErr("record error", err)
	}
	if tag.RowsAffected() == 0 {
		return r.missOrRecorded(ctx, id)
	}
	return nil
}

func (r *JobRepository) missOrRecorded(ctx context.Context, id uuid.UUID) error {
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM jobs WHERE id = $1);`, id).Scan(&exists); err != nil {
		return dbErr("check job", err)
	}
	if !exists {
		return ErrNotFound
	}
	return entity.ErrOutcomeRecorded
}
