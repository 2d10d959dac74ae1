// Package worker runs queued background jobs, currently the geocoding of
// imported locations that arrived without coordinates.
package worker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/DukeRupert/storefinder/internal/metrics"
	"github.com/DukeRupert/storefinder/internal/repository"
)

// Worker polls a Queue with a fixed number of goroutines.
type Worker struct {
	queue    Queue
	handlers map[string]JobHandler
	config   Config
	logger   *slog.Logger

	wg       sync.WaitGroup
	stop     chan struct{}
	stopOnce sync.Once
}

// New creates a worker over the Postgres jobs table.
func New(db *sql.DB, queries *repository.Queries, config Config, logger *slog.Logger) (*Worker, error) {
	return NewWithQueue(NewPostgresQueue(db, queries), config, logger)
}

// NewWithQueue creates a worker over any Queue.
func NewWithQueue(queue Queue, config Config, logger *slog.Logger) (*Worker, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("worker config: %w", err)
	}
	return &Worker{
		queue:    queue,
		handlers: make(map[string]JobHandler),
		config:   config,
		logger:   logger,
		stop:     make(chan struct{}),
	}, nil
}

// Register adds a handler. It must be called before Start.
func (w *Worker) Register(handler JobHandler) {
	jobType := handler.Type()
	if _, exists := w.handlers[jobType]; exists {
		w.logger.Warn("Replacing job handler", "job_type", jobType)
	}
	w.handlers[jobType] = handler
}

// Start recovers jobs abandoned by a previous process and launches the
// pollers. The pollers run until Stop is called or ctx is canceled.
func (w *Worker) Start(ctx context.Context) {
	if n, err := w.queue.RecoverStale(ctx, w.config.StaleJobThreshold); err != nil {
		w.logger.Error("Failed to recover stale jobs", "error", err)
	} else if n > 0 {
		w.logger.Warn("Recovered stale jobs", "count", n, "threshold", w.config.StaleJobThreshold)
	}

	for i := 1; i <= w.config.Concurrency; i++ {
		w.wg.Add(1)
		go w.poll(ctx, w.logger.With("worker_id", i))
	}
	w.logger.Info("Worker started", "concurrency", w.config.Concurrency, "handlers", len(w.handlers))
}

// Stop waits up to ShutdownTimeout for running jobs. It is safe to call
// more than once.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("Worker stopped")
	case <-time.After(w.config.ShutdownTimeout):
		w.logger.Warn("Worker shutdown timed out with jobs still running")
	}
}

// poll waits for the next tick and then drains every due job, so a burst of
// imports does not wait one poll interval per job.
func (w *Worker) poll(ctx context.Context, logger *slog.Logger) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		for w.running(ctx) {
			ran, err := w.runNext(ctx, logger)
			if err != nil {
				logger.Error("Job queue error", "error", err)
				break
			}
			if !ran {
				break
			}
		}
	}
}

func (w *Worker) running(ctx context.Context) bool {
	select {
	case <-w.stop:
		return false
	case <-ctx.Done():
		return false
	default:
		return true
	}
}

// runNext claims and runs one job. It reports false when the queue was
// empty. A failing job is settled in the queue and is not an error here.
func (w *Worker) runNext(ctx context.Context, logger *slog.Logger) (bool, error) {
	job, err := w.queue.Claim(ctx)
	if errors.Is(err, ErrNoJob) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	logger = logger.With("job_id", job.ID, "job_type", job.JobType, "attempt", job.Attempts+1)
	start := time.Now()

	done := metrics.StartJob(job.JobType)
	jobErr := w.execute(ctx, job)

	if jobErr == nil {
		done(metrics.JobCompleted)
		logger.Info("Job completed", "duration", time.Since(start))
		if err := w.queue.Complete(ctx, job.ID); err != nil {
			return true, fmt.Errorf("complete job %s: %w", job.ID, err)
		}
		return true, nil
	}

	permanent := IsPermanent(jobErr)
	if !permanent && job.Attempts+1 < job.MaxAttempts {
		done(metrics.JobRetrying)
		logger.Warn("Job failed, will retry", "error", jobErr)
	} else {
		done(metrics.JobFailed)
		logger.Error("Job failed", "error", jobErr, "permanent", permanent)
	}
	if err := w.queue.Fail(ctx, job.ID, jobErr, permanent); err != nil {
		return true, fmt.Errorf("fail job %s: %w", job.ID, err)
	}
	return true, nil
}

// execute runs the registered handler under JobTimeout.
func (w *Worker) execute(ctx context.Context, job repository.Job) error {
	handler, ok := w.handlers[job.JobType]
	if !ok {
		return NewPermanentError(fmt.Errorf("no handler for job type %q", job.JobType))
	}

	jobCtx, cancel := context.WithTimeout(ctx, w.config.JobTimeout)
	defer cancel()
	return handler.Handle(jobCtx, job.Payload)
}
