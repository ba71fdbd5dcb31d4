package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

const (
	maxAttempts    = 3
	jobTimeout     = 120 * time.Second
	requeueBackoff = time.Second
)

// Handler processes one job. Returning an error triggers a retry unless the
// error is marked Permanent or attempts are exhausted.
type Handler func(ctx context.Context, job Job) error

// Worker runs a pool of consumers over a Queue, routing jobs to per-kind
// handlers. Each job attempt runs under its own timeout; a failed retryable
// job goes back on the queue with its attempt count bumped.
type Worker struct {
	queue       Queue
	handlers    map[Kind]Handler
	logger      *otelzap.Logger
	concurrency int
}

// NewWorker creates a worker pool with the given concurrency.
func NewWorker(q Queue, logger *otelzap.Logger, concurrency int) *Worker {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Worker{
		queue:       q,
		handlers:    map[Kind]Handler{},
		logger:      logger,
		concurrency: concurrency,
	}
}

// Handle registers the handler for a job kind.
func (w *Worker) Handle(kind Kind, h Handler) {
	w.handlers[kind] = h
}

// Run consumes jobs until ctx is cancelled. It blocks; run it in its own
// goroutine. Handle must not be called after Run.
func (w *Worker) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.consume(ctx)
		}()
	}
	wg.Wait()
}

func (w *Worker) consume(ctx context.Context) {
	for {
		job, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("Dequeue failed", zap.Error(err))
			select {
			case <-time.After(requeueBackoff):
			case <-ctx.Done():
				return
			}
			continue
		}
		w.process(ctx, job)
	}
}

func (w *Worker) process(ctx context.Context, job Job) {
	handler, ok := w.handlers[job.Kind]
	if !ok {
		w.logger.Warn("No handler for job kind",
			zap.String("job_id", job.ID),
			zap.String("kind", string(job.Kind)))
		return
	}

	attemptCtx, cancel := context.WithTimeout(ctx, jobTimeout)
	err := handler(attemptCtx, job)
	cancel()
	if err == nil {
		return
	}

	attempt := job.Attempt + 1
	if IsPermanent(err) || attempt >= maxAttempts {
		w.logger.Error("Job failed permanently",
			zap.String("job_id", job.ID),
			zap.String("kind", string(job.Kind)),
			zap.Int("attempts", attempt),
			zap.Error(err))
		return
	}

	w.logger.Warn("Job failed, re-enqueueing",
		zap.String("job_id", job.ID),
		zap.String("kind", string(job.Kind)),
		zap.Int("attempt", attempt),
		zap.Error(err))

	retry := job
	retry.Attempt = attempt
	if err := w.queue.Enqueue(ctx, retry); err != nil && !errors.Is(err, context.Canceled) {
		w.logger.Error("Re-enqueue failed",
			zap.String("job_id", job.ID),
			zap.Error(err))
	}
}
