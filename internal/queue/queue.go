// Package queue throttles upstream work by admitting jobs in fixed-size batches.
package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robalyx/roprofile/pkg/utils"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

const (
	// DefaultBatchSize is used when Options.BatchSize is not positive.
	DefaultBatchSize = 5
	// DefaultBatchDelay is used when Options.BatchDelay is negative.
	DefaultBatchDelay = time.Second
)

// Job is a unit of work run by the queue.
type Job[T any] func(ctx context.Context) (T, error)

// Batch describes a batch after it has settled.
type Batch struct {
	Number   int
	JobIDs   []uuid.UUID
	Failed   int
	Started  time.Time
	Finished time.Time
}

// Options configures a Queue.
type Options struct {
	BatchSize  int
	BatchDelay time.Duration
	Observer   func(Batch) // Called from the worker after every batch
}

// Stats reports queue activity.
type Stats struct {
	Pending   int    `json:"pending"`
	Batches   uint64 `json:"batches"`
	Processed uint64 `json:"processed"`
	Failed    uint64 `json:"failed"`
}

type task[T any] struct {
	job    Job[T]
	future *Future[T]
}

// Queue runs submitted jobs in FIFO order, at most BatchSize at a time.
// After a batch settles, the next batch starts no earlier than BatchDelay
// after the previous one finished.
type Queue[T any] struct {
	opts    Options
	pending []*task[T]
	stats   Stats
	running bool
	stopped bool
	wake    chan struct{}
	done    chan struct{}
	cancel  context.CancelFunc
	mu      sync.Mutex
	logger  *zap.Logger
}

// New creates a queue. Call Start to begin processing.
func New[T any](opts Options, logger *zap.Logger) *Queue[T] {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.BatchDelay < 0 {
		opts.BatchDelay = DefaultBatchDelay
	}

	return &Queue[T]{
		opts:   opts,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		logger: logger.Named("queue"),
	}
}

// Submit enqueues a job and returns its future. Jobs submitted after Stop
// resolve immediately with ErrStopped.
func (q *Queue[T]) Submit(job Job[T]) *Future[T] {
	future := newFuture[T]()

	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		var zero T
		future.resolve(zero, ErrStopped)
		return future
	}
	q.pending = append(q.pending, &task[T]{job: job, future: future})
	q.mu.Unlock()

	q.signal()
	return future
}

// Start launches the worker loop. Jobs run on ctx, so callers that stop
// waiting on a future do not cancel its work, and neither does Stop.
func (q *Queue[T]) Start(ctx context.Context) {
	q.mu.Lock()
	if q.running || q.stopped {
		q.mu.Unlock()
		return
	}
	q.running = true
	loopCtx, cancel := context.WithCancel(ctx)
	q.cancel = cancel
	q.mu.Unlock()

	go q.run(loopCtx, ctx)
}

// Stop waits for the in-flight batch to settle, halts the worker and fails
// every pending job.
func (q *Queue[T]) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	running := q.running
	cancel := q.cancel
	q.mu.Unlock()

	if running {
		cancel()
		<-q.done
	}

	q.mu.Lock()
	remaining := q.pending
	q.pending = nil
	q.mu.Unlock()

	var zero T
	for _, t := range remaining {
		t.future.resolve(zero, ErrStopped)
	}
}

// Stats returns a snapshot of queue activity.
func (q *Queue[T]) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	stats := q.stats
	stats.Pending = len(q.pending)
	return stats
}

func (q *Queue[T]) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// run is the single worker loop. ctx ends the loop; jobCtx is handed to jobs.
func (q *Queue[T]) run(ctx, jobCtx context.Context) {
	defer close(q.done)

	var lastFinished time.Time
	for {
		// Wait for work
		for q.Stats().Pending == 0 {
			select {
			case <-q.wake:
			case <-ctx.Done():
				return
			}
		}

		// Honor the delay since the previous batch finished
		if !lastFinished.IsZero() {
			if utils.ContextSleepUntil(ctx, lastFinished.Add(q.opts.BatchDelay)) == utils.SleepCancelled {
				return
			}
		}

		batch := q.take()
		if len(batch) == 0 {
			continue
		}

		lastFinished = q.runBatch(jobCtx, batch)
		if ctx.Err() != nil {
			return
		}
	}
}

// take pops up to BatchSize tasks from the head of the queue.
func (q *Queue[T]) take() []*task[T] {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := min(len(q.pending), q.opts.BatchSize)
	batch := q.pending[:n:n]
	q.pending = q.pending[n:]
	return batch
}

// runBatch runs every task concurrently and waits for all of them to settle.
func (q *Queue[T]) runBatch(ctx context.Context, batch []*task[T]) time.Time {
	q.mu.Lock()
	q.stats.Batches++
	number := int(q.stats.Batches)
	q.mu.Unlock()

	info := Batch{
		Number:  number,
		JobIDs:  make([]uuid.UUID, len(batch)),
		Started: time.Now(),
	}
	for i, t := range batch {
		info.JobIDs[i] = t.future.ID()
	}

	var (
		p      = pool.New()
		failed int
		mu     sync.Mutex
	)
	for _, t := range batch {
		p.Go(func() {
			value, err := q.execute(ctx, t.job)
			if err != nil {
				mu.Lock()
				failed++
				mu.Unlock()
			}
			t.future.resolve(value, err)
		})
	}
	p.Wait()

	info.Failed = failed
	info.Finished = time.Now()

	q.mu.Lock()
	q.stats.Processed += uint64(len(batch))
	q.stats.Failed += uint64(failed)
	q.mu.Unlock()

	q.logger.Debug("Batch finished",
		zap.Int("batch", info.Number),
		zap.Int("size", len(batch)),
		zap.Int("failed", failed),
		zap.Stringers("jobs", info.JobIDs),
		zap.Duration("elapsed", info.Finished.Sub(info.Started)))

	if q.opts.Observer != nil {
		q.opts.Observer(info)
	}

	return info.Finished
}

// execute runs a single job, converting a panic into an error.
func (q *Queue[T]) execute(ctx context.Context, job Job[T]) (value T, err error) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("Job panicked", zap.Any("panic", r))
			var zero T
			value, err = zero, fmt.Errorf("%w: %v", ErrJobPanicked, r)
		}
	}()

	return job(ctx)
}
