package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"text-extraction-service/internal/blob"
	"text-extraction-service/internal/entity"
)

// ErrNotReady is returned by Result for a job without a successful outcome.
var ErrNotReady = errors.New("result not ready")

type JobReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Job, error)
}

// StatusTracker answers status queries from the recorded job state.
type StatusTracker struct {
	repo  JobReader
	store blob.Store
}

func NewStatusTracker(repo JobReader, store blob.Store) *StatusTracker {
	return &StatusTracker{repo: repo, store: store}
}

// JobState is what a client sees for a known job.
type JobState struct {
	ID      uuid.UUID
	Status  entity.JobStatus
	Outcome *entity.Outcome
}

func ParseJobID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q", entity.ErrInvalidJobID, raw)
	}
	return id, nil
}

// Status returns entity.ErrNotFound for ids that were never accepted.
func (t *StatusTracker) Status(ctx context.Context, rawID string) (*JobState, error) {
	id, err := ParseJobID(rawID)
	if err != nil {
		return nil, err
	}

	job, err := t.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	st := &JobState{ID: job.ID, Status: job.Status}
	if o, ok := job.Outcome(); ok {
		st.Outcome = &o
	}
	return st, nil
}

// Result fetches the extracted text of a finished job.
func (t *StatusTracker) Result(ctx context.Context, rawID string) ([]byte, error) {
	st, err := t.Status(ctx, rawID)
	if err != nil {
		return nil, err
	}
	if st.Outcome == nil || !st.Outcome.Succeeded() {
		return nil, ErrNotReady
	}
	return t.store.Get(ctx, st.Outcome.ResultKey)
}
