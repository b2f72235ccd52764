package queue_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/robalyx/roprofile/internal/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var errJob = errors.New("job failed")

type recorder struct {
	mu      sync.Mutex
	batches []queue.Batch
}

func (r *recorder) observe(b queue.Batch) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, b)
}

func (r *recorder) snapshot() []queue.Batch {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]queue.Batch(nil), r.batches...)
}

func TestBatchingOrderAndDelay(t *testing.T) {
	t.Parallel()

	const delay = 50 * time.Millisecond

	rec := &recorder{}
	q := queue.New[int](queue.Options{
		BatchSize:  3,
		BatchDelay: delay,
		Observer:   rec.observe,
	}, zap.NewNop())

	var (
		mu    sync.Mutex
		order []int
	)
	futures := make([]*queue.Future[int], 7)
	for i := range futures {
		futures[i] = q.Submit(func(context.Context) (int, error) {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return i * 10, nil
		})
	}
	assert.Equal(t, 7, q.Stats().Pending)

	q.Start(t.Context())
	defer q.Stop()

	for i, f := range futures {
		value, err := f.Wait(t.Context())
		require.NoError(t, err)
		assert.Equal(t, i*10, value)
	}

	batches := rec.snapshot()
	require.Len(t, batches, 3)

	sizes := make([]int, len(batches))
	for i, b := range batches {
		sizes[i] = len(b.JobIDs)
	}
	assert.Equal(t, []int{3, 3, 1}, sizes)

	// Jobs ran in FIFO order across batches
	assert.ElementsMatch(t, []int{0, 1, 2}, order[:3])
	assert.ElementsMatch(t, []int{3, 4, 5}, order[3:6])
	assert.Equal(t, 6, order[6])

	assert.Equal(t, futures[0].ID(), batches[0].JobIDs[0])
	assert.Equal(t, futures[6].ID(), batches[2].JobIDs[0])

	for i := 1; i < len(batches); i++ {
		gap := batches[i].Started.Sub(batches[i-1].Finished)
		assert.GreaterOrEqual(t, gap, delay, "batch %d started too early", i+1)
	}

	stats := q.Stats()
	assert.Equal(t, queue.Stats{Pending: 0, Batches: 3, Processed: 7, Failed: 0}, stats)
}

func TestFailureIsolation(t *testing.T) {
	t.Parallel()

	q := queue.New[string](queue.Options{BatchSize: 4}, zap.NewNop())
	q.Start(t.Context())
	defer q.Stop()

	ok := q.Submit(func(context.Context) (string, error) { return "ok", nil })
	bad := q.Submit(func(context.Context) (string, error) { return "", errJob })
	boom := q.Submit(func(context.Context) (string, error) { panic("boom") })
	after := q.Submit(func(context.Context) (string, error) { return "after", nil })

	value, err := ok.Wait(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "ok", value)

	_, err = bad.Wait(t.Context())
	require.ErrorIs(t, err, errJob)

	_, err = boom.Wait(t.Context())
	require.ErrorIs(t, err, queue.ErrJobPanicked)

	value, err = after.Wait(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "after", value)

	assert.Eventually(t, func() bool {
		return q.Stats().Failed == 2
	}, time.Second, 5*time.Millisecond)
}

func TestAbandonedWaitDoesNotCancelJob(t *testing.T) {
	t.Parallel()

	q := queue.New[int](queue.Options{BatchSize: 1}, zap.NewNop())
	q.Start(t.Context())
	defer q.Stop()

	release := make(chan struct{})
	future := q.Submit(func(ctx context.Context) (int, error) {
		select {
		case <-release:
			return 1, nil
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	})

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()

	_, err := future.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	value, err := future.Wait(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, value)
}

func TestStopFailsPendingJobs(t *testing.T) {
	t.Parallel()

	q := queue.New[int](queue.Options{BatchSize: 1}, zap.NewNop())

	pending := q.Submit(func(context.Context) (int, error) { return 1, nil })
	q.Stop()

	_, err := pending.Wait(t.Context())
	require.ErrorIs(t, err, queue.ErrStopped)

	late := q.Submit(func(context.Context) (int, error) { return 2, nil })
	select {
	case <-late.Done():
	default:
		t.Fatal("job submitted after stop should settle immediately")
	}
	_, err = late.Wait(t.Context())
	require.ErrorIs(t, err, queue.ErrStopped)
}

func TestStopLetsInFlightBatchFinish(t *testing.T) {
	t.Parallel()

	q := queue.New[int](queue.Options{BatchSize: 1, BatchDelay: time.Hour}, zap.NewNop())
	q.Start(t.Context())

	started := make(chan struct{})
	release := make(chan struct{})
	inFlight := q.Submit(func(ctx context.Context) (int, error) {
		close(started)
		select {
		case <-release:
			return 1, ctx.Err()
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	})
	<-started

	queued := q.Submit(func(context.Context) (int, error) { return 2, nil })

	stopped := make(chan struct{})
	go func() {
		q.Stop()
		close(stopped)
	}()

	// Stop waits on the running job instead of canceling it
	select {
	case <-stopped:
		t.Fatal("stop returned before the in-flight batch settled")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	<-stopped

	value, err := inFlight.Wait(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, value)

	_, err = queued.Wait(t.Context())
	require.ErrorIs(t, err, queue.ErrStopped)
}
