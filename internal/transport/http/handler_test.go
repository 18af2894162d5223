package httptransport_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"text-extraction-service/internal/blob"
	"text-extraction-service/internal/entity"
	"text-extraction-service/internal/service"
	httptransport "text-extraction-service/internal/transport/http"
)

type testEnv struct {
	repo   *memRepo
	queue  *queueStub
	store  *blob.Memory
	router http.Handler
}

func newTestEnv(maxUpload int64) *testEnv {
	repo, queue, store := newMemRepo(), &queueStub{}, blob.NewMemory()
	jobs := service.NewJobService(repo, queue, store, discardLogger())
	status := service.NewStatusTracker(repo, store)
	h := httptransport.NewHandler(jobs, status, maxUpload, discardLogger())
	return &testEnv{repo: repo, queue: queue, store: store, router: httptransport.Routes(h)}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) get(path string) *httptest.ResponseRecorder {
	return e.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func TestHTTP_Submit_202_AndDescriptorEnqueued(t *testing.T) {
	env := newTestEnv(1 << 20)

	rr := env.do(uploadRequest(t, "notes.TXT", "text/plain", []byte("hello")))
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d, body=%s", rr.Code, rr.Body.String())
	}

	var resp struct {
		JobID string `json:"job_id"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json response: %v, body=%s", err, rr.Body.String())
	}
	id, err := uuid.Parse(resp.JobID)
	if err != nil {
		t.Fatalf("job_id is not a uuid: %q", resp.JobID)
	}

	if len(env.queue.enqueued) != 1 {
		t.Fatalf("expected 1 enqueued descriptor, got %d", len(env.queue.enqueued))
	}
	d := env.queue.enqueued[0]
	if d.JobID != id || d.Extension != "txt" || d.Mime != "text/plain" {
		t.Fatalf("unexpected descriptor %+v", d)
	}

	// pending right after submission
	rr = env.get("/v1/extract/" + id.String())
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"status":"pending"`) {
		t.Fatalf("expected pending, got %d %s", rr.Code, rr.Body.String())
	}
}

func TestHTTP_Submit_400_EmptyFile(t *testing.T) {
	env := newTestEnv(1 << 20)

	rr := env.do(uploadRequest(t, "empty.txt", "text/plain", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d, body=%s", rr.Code, rr.Body.String())
	}
	if strings.Contains(rr.Body.String(), "job_id") {
		t.Fatalf("no job id expected, body=%s", rr.Body.String())
	}
	if len(env.queue.enqueued) != 0 || env.store.Len() != 0 || env.repo.len() != 0 {
		t.Fatal("nothing should be staged for an empty file")
	}
}

func TestHTTP_Submit_400_MissingFileField(t *testing.T) {
	env := newTestEnv(1 << 20)

	req := httptest.NewRequest(http.MethodPost, "/v1/extract", strings.NewReader("x"))
	req.Header.Set("Content-Type", "text/plain")
	if rr := env.do(req); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestHTTP_Submit_413_TooLarge(t *testing.T) {
	env := newTestEnv(1024)

	rr := env.do(uploadRequest(t, "big.txt", "text/plain", []byte(strings.Repeat("a", 8192))))
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d, body=%s", rr.Code, rr.Body.String())
	}
}

func TestHTTP_GetStatus_400_404(t *testing.T) {
	env := newTestEnv(1 << 20)

	if rr := env.get("/v1/extract/not-a-uuid"); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if rr := env.get("/v1/extract/" + uuid.NewString()); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestHTTP_GetStatus_Outcomes(t *testing.T) {
	env := newTestEnv(1 << 20)

	processing := uuid.New()
	done := uuid.New()
	unsupported := uuid.New()
	failed := uuid.New()
	env.repo.put(&entity.Job{ID: processing, Status: entity.StatusProcessing})
	env.repo.put(&entity.Job{ID: done, Status: entity.StatusDone, ResultKey: ptr("uploads/" + done.String() + ".txt.txt")})
	env.repo.put(&entity.Job{ID: unsupported, Status: entity.StatusError,
		ErrorKind: ptr(entity.KindUnsupportedMedia), Error: ptr("no processor for application/x-unknown/xyz")})
	env.repo.put(&entity.Job{ID: failed, Status: entity.StatusError,
		ErrorKind: ptr(entity.KindDownload), Error: ptr("storage error: download")})

	cases := []struct {
		id   uuid.UUID
		code int
		want string
	}{
		{processing, http.StatusOK, `"status":"processing"`},
		{done, http.StatusOK, `"result_key":"uploads/` + done.String() + `.txt.txt"`},
		{unsupported, http.StatusUnsupportedMediaType, `"error_kind":"unsupported_media"`},
		{failed, http.StatusInternalServerError, `"error_kind":"download"`},
	}
	for _, tc := range cases {
		rr := env.get("/v1/extract/" + tc.id.String())
		if rr.Code != tc.code {
			t.Errorf("%s: expected %d, got %d, body=%s", tc.want, tc.code, rr.Code, rr.Body.String())
			continue
		}
		if !strings.Contains(rr.Body.String(), tc.want) {
			t.Errorf("expected body to contain %s, got %s", tc.want, rr.Body.String())
		}
	}
}

func TestHTTP_GetStatus_Idempotent(t *testing.T) {
	env := newTestEnv(1 << 20)

	id := uuid.New()
	env.repo.put(&entity.Job{ID: id, Status: entity.StatusDone, ResultKey: ptr("uploads/x.txt.txt")})

	first := env.get("/v1/extract/" + id.String()).Body.String()
	for i := 0; i < 3; i++ {
		if got := env.get("/v1/extract/" + id.String()).Body.String(); got != first {
			t.Fatalf("status changed between reads: %s != %s", got, first)
		}
	}
}

func TestHTTP_GetResult_409_WhenNotDone(t *testing.T) {
	env := newTestEnv(1 << 20)

	id := uuid.New()
	env.repo.put(&entity.Job{ID: id, Status: entity.StatusProcessing})

	if rr := env.get("/v1/extract/" + id.String() + "/result"); rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d, body=%s", rr.Code, rr.Body.String())
	}
}

func TestHTTP_GetResult_200_ReturnsText(t *testing.T) {
	env := newTestEnv(1 << 20)

	id := uuid.New()
	key := entity.ResultKey(entity.SourceKey(id, "txt"))
	if err := env.store.Put(context.Background(), key, []byte("extracted"), "text/plain"); err != nil {
		t.Fatal(err)
	}
	env.repo.put(&entity.Job{ID: id, Status: entity.StatusDone, ResultKey: &key})

	rr := env.get("/v1/extract/" + id.String() + "/result")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body=%s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("expected text/plain, got %q", ct)
	}
	if rr.Body.String() != "extracted" {
		t.Fatalf("expected raw text, got %q", rr.Body.String())
	}
}

func TestHTTP_Health(t *testing.T) {
	env := newTestEnv(1 << 20)

	rr := env.get("/health")
	if rr.Code != http.StatusOK || rr.Body.String() != "ok" {
		t.Fatalf("unexpected health response %d %q", rr.Code, rr.Body.String())
	}
}

func TestRequestLogger_StructuredFields(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))

	h := httptransport.RequestLogger(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("ok"))
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/v1/extract", nil))

	out := buf.String()
	for _, want := range []string{`"component":"http"`, `"msg":"request"`, `"status":202`, `"bytes":2`, `"path":"/v1/extract"`} {
		if !strings.Contains(out, want) {
			t.Errorf("expected log to contain %s, got %s", want, out)
		}
	}
	if strings.Contains(out, "[http]") {
		t.Errorf("unexpected tag prefix in %s", out)
	}
}
