package queue

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

var (
	// ErrQueueFull is returned when the queue is at capacity.
	ErrQueueFull = errors.New("queue is full")
	// ErrQueueClosed is returned when attempting to enqueue to a closed queue.
	ErrQueueClosed = errors.New("queue is closed")
	// ErrDuplicateJob is returned when a job with the same dedupe key is
	// queued or running.
	ErrDuplicateJob = errors.New("duplicate job")
)

// maxTracked bounds how many finished job statuses are remembered.
const maxTracked = 64

// DecodeHandler is called by the worker for each job.
type DecodeHandler func(ctx context.Context, job *DecodeJob) error

// JobCompletedCallback is called after each dequeued job finishes, whatever
// its outcome.
type JobCompletedCallback func(job *DecodeJob, status Status)

// ShutdownCallback is called once the worker has exited during Stop.
type ShutdownCallback func()

// Queue is a bounded queue with a single decode worker.
type Queue struct {
	mu            sync.Mutex
	jobs          []*DecodeJob
	capacity      int
	dedupeKeys    map[string]bool
	logger        *slog.Logger
	closed        bool
	handler       DecodeHandler
	onCompleted   JobCompletedCallback
	onShutdown    ShutdownCallback
	current       *DecodeJob
	cancelCurrent context.CancelFunc
	statuses      map[string]Status
	order         []string
	wg            sync.WaitGroup
	stopCh        chan struct{}
	enqueueCh     chan struct{}
}

// NewQueue creates a new bounded queue.
func NewQueue(capacity int, logger *slog.Logger) *Queue {
	return &Queue{
		jobs:       make([]*DecodeJob, 0, capacity),
		capacity:   capacity,
		dedupeKeys: make(map[string]bool),
		logger:     logger,
		statuses:   make(map[string]Status),
		stopCh:     make(chan struct{}),
		enqueueCh:  make(chan struct{}, 1),
	}
}

// SetHandler sets the function called to process each job.
func (q *Queue) SetHandler(fn DecodeHandler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handler = fn
}

// SetJobCompletedCallback sets the function called after each job.
func (q *Queue) SetJobCompletedCallback(fn JobCompletedCallback) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onCompleted = fn
}

// SetShutdownCallback sets the function called after the worker stops.
func (q *Queue) SetShutdownCallback(fn ShutdownCallback) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onShutdown = fn
}

// Enqueue adds a job to the queue. A superseding job first cancels the
// in-flight job and clears the queue.
func (q *Queue) Enqueue(job *DecodeJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	if job.Supersede {
		q.interruptLocked()
	}

	if len(q.jobs) >= q.capacity {
		return ErrQueueFull
	}

	if job.DedupeKey != "" {
		if q.dedupeKeys[job.DedupeKey] || (q.current != nil && q.current.DedupeKey == job.DedupeKey) {
			return ErrDuplicateJob
		}
	}

	q.jobs = append(q.jobs, job)
	if job.DedupeKey != "" {
		q.dedupeKeys[job.DedupeKey] = true
	}
	q.setStatusLocked(job.ID, StatusQueued)

	q.logger.Debug("job enqueued", "job_id", job.ID, "asset_id", job.Asset.ID, "queue_depth", len(q.jobs))

	select {
	case q.enqueueCh <- struct{}{}:
	default:
	}

	return nil
}

// interruptLocked cancels the current decode and clears the queue.
func (q *Queue) interruptLocked() {
	if q.cancelCurrent != nil {
		q.cancelCurrent()
		q.cancelCurrent = nil
	}
	// the running job no longer blocks its dedupe key
	q.current = nil

	cleared := len(q.jobs)
	for _, job := range q.jobs {
		q.setStatusLocked(job.ID, StatusCancelled)
	}
	q.jobs = q.jobs[:0]
	q.dedupeKeys = make(map[string]bool)

	if cleared > 0 {
		q.logger.Info("queue interrupted", "jobs_cleared", cleared)
	}
}

// Len returns the current queue length.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Status returns the last known status of a job.
func (q *Queue) Status(id string) (Status, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	s, ok := q.statuses[id]
	return s, ok
}

func (q *Queue) setStatusLocked(id string, s Status) {
	if _, ok := q.statuses[id]; !ok {
		q.order = append(q.order, id)
		if len(q.order) > maxTracked {
			delete(q.statuses, q.order[0])
			q.order = q.order[1:]
		}
	}
	q.statuses[id] = s
}

// Start begins the decode worker goroutine.
func (q *Queue) Start() {
	q.wg.Add(1)
	go q.worker()
}

// Stop gracefully stops the worker.
func (q *Queue) Stop() {
	q.mu.Lock()
	q.closed = true
	if q.cancelCurrent != nil {
		q.cancelCurrent()
	}
	q.mu.Unlock()

	close(q.stopCh)
	q.wg.Wait()

	q.mu.Lock()
	callback := q.onShutdown
	q.mu.Unlock()
	if callback != nil {
		callback()
	}
}

// worker is the single decode goroutine.
func (q *Queue) worker() {
	defer q.wg.Done()

	for {
		job := q.dequeue()

		if job != nil {
			q.processJob(job)
			continue
		}

		select {
		case <-q.stopCh:
			return
		case <-q.enqueueCh:
			continue
		}
	}
}

// dequeue removes and returns the next job from the queue.
func (q *Queue) dequeue() *DecodeJob {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}

	for len(q.jobs) > 0 {
		job := q.jobs[0]
		q.jobs = q.jobs[1:]

		if job.DedupeKey != "" {
			delete(q.dedupeKeys, job.DedupeKey)
		}

		if job.IsExpired() {
			q.logger.Debug("skipping expired job", "job_id", job.ID)
			q.setStatusLocked(job.ID, StatusExpired)
			continue
		}

		return job
	}

	return nil
}

// processJob handles a single job with cancellation support.
func (q *Queue) processJob(job *DecodeJob) {
	q.mu.Lock()
	handler := q.handler
	ctx, cancel := context.WithCancel(context.Background())
	q.current = job
	q.cancelCurrent = cancel
	q.setStatusLocked(job.ID, StatusRunning)
	q.mu.Unlock()

	status := StatusDone
	defer func() {
		cancel()
		q.mu.Lock()
		if q.current == job {
			q.current = nil
			q.cancelCurrent = nil
		}
		q.setStatusLocked(job.ID, status)
		callback := q.onCompleted
		q.mu.Unlock()

		if callback != nil {
			callback(job, status)
		}
	}()

	if handler == nil {
		q.logger.Warn("no decode handler set, skipping job", "job_id", job.ID)
		status = StatusFailed
		return
	}

	q.logger.Info("processing job", "job_id", job.ID, "asset_id", job.Asset.ID, "bytes", len(job.Asset.Data))

	if err := handler(ctx, job); err != nil {
		if errors.Is(err, context.Canceled) {
			status = StatusCancelled
			q.logger.Info("job cancelled", "job_id", job.ID)
		} else {
			status = StatusFailed
			q.logger.Error("job failed", "job_id", job.ID, "error", err)
		}
	} else {
		q.logger.Info("job completed", "job_id", job.ID)
	}
}
