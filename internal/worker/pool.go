package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"text-extraction-service/internal/entity"
	"text-extraction-service/internal/metrics"
	"text-extraction-service/internal/service"
)

// JobProcessor handles one claimed descriptor (implementation: *Processor).
type JobProcessor interface {
	Process(ctx context.Context, d entity.Descriptor) error
}

type Pool struct {
	queue      service.Queue
	processor  JobProcessor
	workers    int
	claimDelay time.Duration
	log        *slog.Logger
}

func NewPool(queue service.Queue, processor JobProcessor, workers int, claimDelay time.Duration, log *slog.Logger) *Pool {
	if log == nil {
		log = slog.Default()
	}
	if workers <= 0 {
		workers = 4
	}
	if claimDelay <= 0 {
		claimDelay = 5 * time.Second
	}
	return &Pool{
		queue:      queue,
		processor:  processor,
		workers:    workers,
		claimDelay: claimDelay,
		log:        log.With("component", "pool"),
	}
}

// Run claims descriptors until ctx is canceled, then waits for in-flight jobs.
// Jobs run detached from ctx, bounded by the per-stage timeouts only.
func (p *Pool) Run(ctx context.Context) {
	p.log.Info("worker pool started", "workers", p.workers)

	jobCh := make(chan *service.Delivery)
	jobCtx := context.WithoutCancel(ctx)

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for d := range jobCh {
				p.handle(jobCtx, n, d)
			}
		}(i + 1)
	}

	// Listener: atomically claim from queue -> processing
	p.listen(ctx, jobCh)
	close(jobCh)
	wg.Wait()
	p.log.Info("worker pool stopped")
}

func (p *Pool) listen(ctx context.Context, jobCh chan<- *service.Delivery) {
	for {
		if ctx.Err() != nil {
			return
		}
		d, err := p.queue.ClaimBlocking(ctx, p.claimDelay)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrNoJob), ctx.Err() != nil:
			case errors.Is(err, service.ErrInvalidPayload):
				p.log.Warn("dropped invalid queue payload", "error", err)
			default:
				p.log.Error("claim failed", "error", err)
				sleep(ctx, time.Second)
			}
			continue
		}
		select {
		case jobCh <- d:
		case <-ctx.Done():
			// claimed but never started: the reaper hands it back after the visibility timeout
			return
		}
	}
}

func (p *Pool) handle(ctx context.Context, n int, d *service.Delivery) {
	metrics.WorkersBusy.Inc()
	defer metrics.WorkersBusy.Dec()

	// the claim was stamped when the listener popped it; restart the clock now
	if err := p.queue.Touch(ctx, d); err != nil {
		p.log.Warn("touch claim", "worker", n, "job_id", d.Descriptor.JobID, "error", err)
	}

	err := p.processor.Process(ctx, d.Descriptor)
	if err != nil {
		p.log.Error("process job", "worker", n, "job_id", d.Descriptor.JobID, "error", err)
		if errors.Is(err, entity.ErrQueue) {
			// outcome not recorded: leave the claim for the reaper
			return
		}
	}

	if ackErr := p.queue.Ack(ctx, d); ackErr != nil {
		p.log.Error("ack job", "worker", n, "job_id", d.Descriptor.JobID, "error", ackErr)
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
