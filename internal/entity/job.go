package entity

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusDone       JobStatus = "done"
	StatusError      JobStatus = "error"
)

// Terminal reports whether an outcome has been recorded for the status.
func (s JobStatus) Terminal() bool {
	return s == StatusDone || s == StatusError
}

// ErrorKind names the pipeline stage that produced a failure outcome.
type ErrorKind string

const (
	KindDownload         ErrorKind = "download"
	KindUnsupportedMedia ErrorKind = "unsupported_media"
	KindProcessor        ErrorKind = "processor"
	KindUpload           ErrorKind = "upload"
)

// Descriptor is what travels through the queue: enough for a worker to process one job.
type Descriptor struct {
	JobID     uuid.UUID `json:"job_id"`
	SourceKey string    `json:"source_key"`
	Mime      string    `json:"mime"`
	Extension string    `json:"extension"`
}

// Outcome is the terminal record of a job. Exactly one of ResultKey or ErrorDetail is set.
type Outcome struct {
	ResultKey   string    `json:"result_key,omitempty"`
	ErrorKind   ErrorKind `json:"error_kind,omitempty"`
	ErrorDetail string    `json:"error,omitempty"`
}

func (o Outcome) Succeeded() bool {
	return o.ErrorDetail == "" && o.ResultKey != ""
}

type Job struct {
	ID        uuid.UUID  `json:"id"`
	SourceKey string     `json:"source_key"`
	Mime      string     `json:"mime"`
	Extension string     `json:"extension"`
	Status    JobStatus  `json:"status"`
	ResultKey *string    `json:"result_key,omitempty"`
	ErrorKind *ErrorKind `json:"error_kind,omitempty"`
	Error     *string    `json:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (j *Job) Descriptor() Descriptor {
	return Descriptor{
		JobID:     j.ID,
		SourceKey: j.SourceKey,
		Mime:      j.Mime,
		Extension: j.Extension,
	}
}

// Outcome returns the recorded outcome and false when the job is not terminal yet.
func (j *Job) Outcome() (Outcome, bool) {
	if !j.Status.Terminal() {
		return Outcome{}, false
	}
	var o Outcome
	if j.ResultKey != nil {
		o.ResultKey = *j.ResultKey
	}
	if j.ErrorKind != nil {
		o.ErrorKind = *j.ErrorKind
	}
	if j.Error != nil {
		o.ErrorDetail = *j.Error
	}
	return o, true
}

// SourceKey is the staging location of an uploaded file.
func SourceKey(id uuid.UUID, ext string) string {
	if ext == "" {
		return "uploads/" + id.String()
	}
	return "uploads/" + id.String() + "." + ext
}

const resultSuffix = ".txt"

// ResultKey derives where the extracted text of a source blob is stored.
func ResultKey(sourceKey string) string {
	return sourceKey + resultSuffix
}
