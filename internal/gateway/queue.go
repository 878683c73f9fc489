package gateway

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// ErrQueueStopped is returned by Enqueue once Stop has been called.
var ErrQueueStopped = errors.New("queue stopped")

// Queue runs each enqueued Run on its own goroutine, with a weighted
// semaphore limiting how many execute at once. Runs are independent:
// there is no ordering between them, not even for the same customer.
type Queue struct {
	semaphore *semaphore.Weighted
	processor func(*Run) error
	pending   atomic.Int64
	active    atomic.Int64

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.RWMutex
	stopped bool
}

// NewQueue creates a Queue that allows up to maxConcurrent runs to execute
// simultaneously.
func NewQueue(maxConcurrent int64) *Queue {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Queue{
		semaphore: semaphore.NewWeighted(maxConcurrent),
	}
}

// Start initialises the queue's context. Must be called before Enqueue.
func (q *Queue) Start(ctx context.Context) {
	q.ctx, q.cancel = context.WithCancel(ctx)
}

// Stop refuses new runs and waits for every accepted run to finish.
// Accepted runs are not cancelled.
func (q *Queue) Stop() {
	q.mu.Lock()
	q.stopped = true
	q.mu.Unlock()
	q.wg.Wait()
	if q.cancel != nil {
		q.cancel()
	}
}

// Enqueue schedules a Run. It never blocks on the concurrency limit.
func (q *Queue) Enqueue(run *Run) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.stopped || q.ctx == nil {
		return ErrQueueStopped
	}

	q.wg.Add(1)
	q.pending.Add(1)
	go q.process(run)
	return nil
}

// process waits for a semaphore slot and runs the processor. The run's
// context survives cancellation of the queue context so that an accepted
// message is handled to the end.
func (q *Queue) process(run *Run) {
	defer q.wg.Done()
	defer q.pending.Add(-1)

	if err := q.semaphore.Acquire(context.Background(), 1); err != nil {
		return
	}
	defer q.semaphore.Release(1)

	if q.processor == nil {
		return
	}

	q.active.Add(1)
	defer q.active.Add(-1)

	run.Ctx = context.WithoutCancel(q.ctx)
	run.Status = RunStatusRunning
	run.StartedAt = time.Now()
	err := q.processor(run)
	run.EndedAt = time.Now()
	if err != nil {
		run.Status = RunStatusFailed
		run.Error = err
		slog.Error("run failed", "run_id", run.ID, "error", err)
		return
	}
	run.Status = RunStatusComplete
}

// Active returns the number of runs currently executing.
func (q *Queue) Active() int64 {
	return q.active.Load()
}

// Pending returns the number of runs accepted and not yet finished.
func (q *Queue) Pending() int64 {
	return q.pending.Load()
}

// WaitIdle blocks until no runs are pending, or the timeout expires.
// Returns true if idle, false if timed out.
func (q *Queue) WaitIdle(timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		if q.pending.Load() == 0 {
			return true
		}
		select {
		case <-deadline:
			return false
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// SetProcessor sets the function invoked for each Run.
func (q *Queue) SetProcessor(fn func(*Run) error) {
	q.processor = fn
}
