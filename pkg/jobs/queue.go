package jobs

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Handler processes a queued job payload. Returning an error triggers a retry
// until the queue's retry budget is exhausted.
type Handler func(ctx context.Context, jobID string) error

type task struct {
	jobID   string
	attempt int
}

// Queue is an in-memory work queue with a fixed worker pool. Jobs are
// identified by ID; the handler is expected to load job state itself.
type Queue struct {
	handler Handler
	logger  *zap.Logger

	workers    int
	maxRetries int
	retryDelay time.Duration

	tasks  chan task
	wg     sync.WaitGroup
	cancel context.CancelFunc

	mu      sync.Mutex
	started bool
	closed  bool
}

// NewQueue builds a queue running handler on workers goroutines, retrying
// failed jobs up to maxRetries additional times.
func NewQueue(handler Handler, workers, maxRetries int, logger *zap.Logger) *Queue {
	if workers <= 0 {
		workers = 2
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Queue{
		handler:    handler,
		logger:     logger,
		workers:    workers,
		maxRetries: maxRetries,
		retryDelay: 2 * time.Second,
		tasks:      make(chan task, 128),
	}
}

// Start launches the worker pool. Safe to call once.
func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.started = true

	ctx, cancel := context.WithCancel(context.Background())
	q.cancel = cancel
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx)
	}
	q.logger.Info("job queue started", zap.Int("workers", q.workers))
}

// Enqueue schedules a job for processing. Returns false if the queue is
// stopped or full.
func (q *Queue) Enqueue(jobID string) bool {
	if !q.trySend(task{jobID: jobID}) {
		q.logger.Warn("job queue full or stopped, rejecting job", zap.String("job_id", jobID))
		return false
	}
	return true
}

// trySend holds the mutex during the send so Stop cannot close the channel
// between the closed check and the send.
func (q *Queue) trySend(t task) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	select {
	case q.tasks <- t:
		return true
	default:
		return false
	}
}

// Stop drains in-flight work and shuts down the pool.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.closed || !q.started {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	close(q.tasks)
	q.wg.Wait()
	q.cancel()
	q.logger.Info("job queue stopped")
}

func (q *Queue) worker(ctx context.Context) {
	defer q.wg.Done()
	for t := range q.tasks {
		q.process(ctx, t)
	}
}

func (q *Queue) process(ctx context.Context, t task) {
	err := q.handler(ctx, t.jobID)
	if err == nil {
		return
	}

	if t.attempt >= q.maxRetries {
		q.logger.Error("job failed permanently",
			zap.String("job_id", t.jobID),
			zap.Int("attempts", t.attempt+1),
			zap.Error(err))
		return
	}

	q.logger.Warn("job failed, retrying",
		zap.String("job_id", t.jobID),
		zap.Int("attempt", t.attempt+1),
		zap.Error(err))

	select {
	case <-ctx.Done():
	case <-time.After(q.retryDelay):
		if !q.trySend(task{jobID: t.jobID, attempt: t.attempt + 1}) {
			q.logger.Error("job queue unavailable, dropping retry", zap.String("job_id", t.jobID))
		}
	}
}
