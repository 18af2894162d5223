package worker

import (
	"context"
	"log/slog"
	"time"

	"text-extraction-service/internal/metrics"
	"text-extraction-service/internal/service"
)

const reapBatch = 100

// Reaper periodically returns claims older than the visibility timeout to the queue
// (a worker crashed or restarted mid-job).
type Reaper struct {
	queue      service.Queue
	interval   time.Duration
	visibility time.Duration
	log        *slog.Logger
}

func NewReaper(queue service.Queue, interval, visibility time.Duration, log *slog.Logger) *Reaper {
	if log == nil {
		log = slog.Default()
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Reaper{queue: queue, interval: interval, visibility: visibility, log: log.With("component", "reaper")}
}

func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.reapOnce(ctx)
		}
	}
}

func (r *Reaper) reapOnce(ctx context.Context) int64 {
	n, err := r.queue.RequeueStale(ctx, r.visibility, reapBatch)
	if err != nil {
		r.log.Error("requeue stale", "error", err)
	}
	if n > 0 {
		metrics.RequeuedTotal.Add(float64(n))
		r.log.Info("requeued jobs from processing", "count", n)
	}
	return n
}
