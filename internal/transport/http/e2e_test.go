package httptransport_test

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"text-extraction-service/internal/blob"
	"text-extraction-service/internal/processor"
	"text-extraction-service/internal/service"
	httptransport "text-extraction-service/internal/transport/http"
	"text-extraction-service/internal/worker"
)

type fakeTranscriber struct{}

func (fakeTranscriber) Transcribe(ctx context.Context, data []byte, filename string) (string, error) {
	return "[0.00s→1.50s] Speaker 0: hello from audio", nil
}

// greedyDocument wrongly claims audio too; registration order must still pick transcription.
type greedyDocument struct{}

func (greedyDocument) Name() string { return "document" }

func (greedyDocument) CanHandle(mime, ext string) bool {
	return mime == "application/pdf" || strings.HasPrefix(mime, "audio/")
}

func (greedyDocument) Extract(ctx context.Context, path string) (string, error) {
	return "document text", nil
}

type pipeline struct {
	router http.Handler
	mr     *miniredis.Miniredis
}

// startPipeline wires the API and a worker pool the same way cmd/api and cmd/worker do,
// with in-memory blob storage, miniredis and an in-memory job store.
func startPipeline(t *testing.T) *pipeline {
	t.Helper()
	log := discardLogger()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	queue := service.NewRedisQueue(rdb, service.Keys{
		QueueKey:      "extract:queue",
		ProcessingKey: "extract:processing",
		ClaimsKey:     "extract:claims",
	})
	repo, store := newMemRepo(), blob.NewMemory()

	registry := processor.NewRegistry(log,
		processor.NewTranscription(fakeTranscriber{}),
		processor.Plaintext{},
		processor.Spreadsheet{},
		greedyDocument{},
	)
	proc := worker.NewProcessor(repo, store, registry, worker.Options{
		ScratchDir:      t.TempDir(),
		DownloadTimeout: 5 * time.Second,
		ExtractTimeout:  5 * time.Second,
		UploadTimeout:   5 * time.Second,
	}, log)
	pool := worker.NewPool(queue, proc, 2, time.Second, log)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		pool.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	jobs := service.NewJobService(repo, queue, store, log)
	status := service.NewStatusTracker(repo, store)
	h := httptransport.NewHandler(jobs, status, 10<<20, log)

	return &pipeline{router: httptransport.Routes(h), mr: mr}
}

func (p *pipeline) submit(t *testing.T, filename, contentType string, body []byte) (int, string) {
	t.Helper()
	env := &testEnv{router: p.router}
	rr := env.do(uploadRequest(t, filename, contentType, body))

	var resp struct {
		JobID string `json:"job_id"`
	}
	_ = json.Unmarshal(rr.Body.Bytes(), &resp)
	return rr.Code, resp.JobID
}

type statusBody struct {
	Status    string `json:"status"`
	ResultKey string `json:"result_key"`
	ErrorKind string `json:"error_kind"`
	Message   string `json:"message"`
}

// awaitTerminal polls the status endpoint until the job is done or failed.
func (p *pipeline) awaitTerminal(t *testing.T, id string) (int, statusBody) {
	t.Helper()
	env := &testEnv{router: p.router}

	var (
		code int
		body statusBody
	)
	require.Eventually(t, func() bool {
		rr := env.get("/v1/extract/" + id)
		code = rr.Code
		body = statusBody{}
		_ = json.Unmarshal(rr.Body.Bytes(), &body)
		return body.Status == "done" || body.Status == "error"
	}, 10*time.Second, 25*time.Millisecond)
	return code, body
}

func TestE2E_PlainTextDone(t *testing.T) {
	p := startPipeline(t)
	content := "Привет, notes: ünïcödé ✓\nline two\n"

	code, id := p.submit(t, "notes.txt", "text/plain", []byte(content))
	require.Equal(t, http.StatusAccepted, code)
	require.NotEmpty(t, id)

	code, st := p.awaitTerminal(t, id)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "done", st.Status)
	assert.Equal(t, "uploads/"+id+".txt.txt", st.ResultKey)

	rr := (&testEnv{router: p.router}).get("/v1/extract/" + id + "/result")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, content, rr.Body.String())

	// nothing left in flight
	assert.False(t, p.mr.Exists("extract:processing"))
}

func TestE2E_EmptyFileRejected(t *testing.T) {
	p := startPipeline(t)

	code, id := p.submit(t, "empty.txt", "text/plain", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Empty(t, id)
	assert.False(t, p.mr.Exists("extract:queue"))
}

func TestE2E_UnknownTypeUnsupported(t *testing.T) {
	p := startPipeline(t)

	code, id := p.submit(t, "blob.xyz", "application/x-unknown", []byte("???"))
	require.Equal(t, http.StatusAccepted, code)

	code, st := p.awaitTerminal(t, id)
	assert.Equal(t, http.StatusUnsupportedMediaType, code)
	assert.Equal(t, "error", st.Status)
	assert.Equal(t, "unsupported_media", st.ErrorKind)
	assert.Contains(t, st.Message, "xyz")

	rr := (&testEnv{router: p.router}).get("/v1/extract/" + id + "/result")
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestE2E_AudioGoesToTranscription(t *testing.T) {
	p := startPipeline(t)

	code, id := p.submit(t, "voice.wav", "audio/wav", []byte("RIFF....WAVEfmt "))
	require.Equal(t, http.StatusAccepted, code)

	_, st := p.awaitTerminal(t, id)
	require.Equal(t, "done", st.Status)

	rr := (&testEnv{router: p.router}).get("/v1/extract/" + id + "/result")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "hello from audio")
	assert.NotContains(t, rr.Body.String(), "document text")
}
