package httptransport

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"text-extraction-service/internal/entity"
	"text-extraction-service/internal/service"
)

const multipartMemory = 32 << 20

type Handler struct {
	jobs           *service.JobService
	status         *service.StatusTracker
	maxUploadBytes int64
	log            *slog.Logger
}

func NewHandler(jobs *service.JobService, status *service.StatusTracker, maxUploadBytes int64, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{jobs: jobs, status: status, maxUploadBytes: maxUploadBytes, log: log}
}

type submitResp struct {
	JobID string `json:"job_id"`
}

type statusResp struct {
	JobID     string           `json:"job_id"`
	Status    entity.JobStatus `json:"status"`
	ResultKey string           `json:"result_key,omitempty"`
	ErrorKind entity.ErrorKind `json:"error_kind,omitempty"`
	Message   string           `json:"message,omitempty"`
}

// Submit godoc
// @Summary Submit a file for text extraction
// @Description Stages the upload, records the job as pending and enqueues it for a worker.
// @Tags extract
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "file to extract text from"
// @Success 202 {object} submitResp
// @Failure 400 {object} apiError
// @Failure 413 {object} apiError
// @Failure 500 {object} apiError
// @Router /v1/extract [post]
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeErr(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		writeErr(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeErr(w, http.StatusBadRequest, "form field \"file\" is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "read upload")
		return
	}

	id, err := h.jobs.Submit(r.Context(), service.SubmitRequest{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, submitResp{JobID: id.String()})
}

// GetStatus godoc
// @Summary Get extraction job status
// @Description pending and processing are in-flight; done carries result_key; a failed job answers 415 (unsupported media) or 500 with the recorded detail.
// @Tags extract
// @Produce json
// @Param id path string true "job id (uuid)"
// @Success 200 {object} statusResp
// @Failure 400 {object} apiError
// @Failure 404 {object} apiError
// @Failure 415 {object} statusResp
// @Failure 500 {object} statusResp
// @Router /v1/extract/{id} [get]
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.status.Status(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	resp := statusResp{JobID: st.ID.String(), Status: st.Status}
	if st.Outcome == nil {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	if st.Outcome.Succeeded() {
		resp.ResultKey = st.Outcome.ResultKey
		writeJSON(w, http.StatusOK, resp)
		return
	}

	resp.ErrorKind = st.Outcome.ErrorKind
	resp.Message = st.Outcome.ErrorDetail
	code := http.StatusInternalServerError
	if st.Outcome.ErrorKind == entity.KindUnsupportedMedia {
		code = http.StatusUnsupportedMediaType
	}
	writeJSON(w, code, resp)
}

// GetResult godoc
// @Summary Download extracted text
// @Tags extract
// @Produce plain
// @Param id path string true "job id (uuid)"
// @Success 200 {string} string
// @Failure 400 {object} apiError
// @Failure 404 {object} apiError
// @Failure 409 {object} apiError
// @Router /v1/extract/{id}/result [get]
func (h *Handler) GetResult(w http.ResponseWriter, r *http.Request) {
	text, err := h.status.Result(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeText(w, http.StatusOK, text)
}

// writeServiceError is the only place service errors become status codes.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, entity.ErrEmptyPayload):
		writeErr(w, http.StatusBadRequest, "file is empty")
	case errors.Is(err, entity.ErrInvalidJobID):
		writeErr(w, http.StatusBadRequest, "invalid id")
	case errors.Is(err, entity.ErrNotFound):
		writeErr(w, http.StatusNotFound, "job not found")
	case errors.Is(err, service.ErrNotReady):
		writeErr(w, http.StatusConflict, "job not done")
	case errors.Is(err, entity.ErrUnsupportedMedia):
		writeErr(w, http.StatusUnsupportedMediaType, err.Error())
	default:
		h.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeErr(w, http.StatusInternalServerError, "internal error")
	}
}
