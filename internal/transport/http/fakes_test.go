package httptransport_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync"
	"testing"

	"github.com/google/uuid"

	"text-extraction-service/internal/entity"
)

// memRepo is an in-memory job store with the write-once outcome rule.
type memRepo struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*entity.Job
}

func newMemRepo() *memRepo {
	return &memRepo{jobs: map[uuid.UUID]*entity.Job{}}
}

func (r *memRepo) Create(ctx context.Context, d entity.Descriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[d.JobID] = &entity.Job{
		ID:        d.JobID,
		SourceKey: d.SourceKey,
		Mime:      d.Mime,
		Extension: d.Extension,
		Status:    entity.StatusPending,
	}
	return nil
}

func (r *memRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, entity.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (r *memRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, id)
	return nil
}

func (r *memRepo) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return entity.ErrNotFound
	}
	if j.Status.Terminal() {
		return entity.ErrOutcomeRecorded
	}
	j.Status = entity.StatusProcessing
	return nil
}

func (r *memRepo) SetResultDone(ctx context.Context, id uuid.UUID, resultKey string) error {
	return r.finish(id, func(j *entity.Job) {
		j.Status = entity.StatusDone
		j.ResultKey = &resultKey
	})
}

func (r *memRepo) SetResultError(ctx context.Context, id uuid.UUID, kind entity.ErrorKind, detail string) error {
	return r.finish(id, func(j *entity.Job) {
		j.Status = entity.StatusError
		j.ErrorKind = &kind
		j.Error = &detail
	})
}

func (r *memRepo) finish(id uuid.UUID, apply func(*entity.Job)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return entity.ErrNotFound
	}
	if j.Status.Terminal() {
		return entity.ErrOutcomeRecorded
	}
	apply(j)
	return nil
}

func (r *memRepo) put(j *entity.Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[j.ID] = j
}

func (r *memRepo) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

type queueStub struct {
	mu       sync.Mutex
	enqueued []entity.Descriptor
}

func (q *queueStub) Enqueue(ctx context.Context, d entity.Descriptor) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.enqueued = append(q.enqueued, d)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// uploadRequest builds a multipart POST /v1/extract with one "file" part.
func uploadRequest(t *testing.T, filename, contentType string, body []byte) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	part, err := mw.CreatePart(h)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(body); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/extract", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func ptr[T any](v T) *T { return &v }
