package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Submission side
	SubmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "extract_submissions_total",
		Help: "Upload submissions by result",
	}, []string{"result"})

	UploadBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "extract_upload_bytes",
		Help:    "Size of accepted uploads",
		Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
	})

	// Worker side
	JobsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "extract_jobs_processed_total",
		Help: "Jobs with a recorded outcome, by status and error kind",
	}, []string{"status", "error_kind"})

	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "extract_job_duration_seconds",
		Help:    "End to end job processing time by capability",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
	}, []string{"capability"})

	WorkersBusy = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "extract_workers_busy",
		Help: "Workers currently processing a job",
	})

	RequeuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "extract_jobs_requeued_total",
		Help: "Stale claims moved back to the queue by the reaper",
	})
)
