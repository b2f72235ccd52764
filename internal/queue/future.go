package queue

import (
	"context"

	"github.com/google/uuid"
)

// Future is the pending result of a submitted job.
type Future[T any] struct {
	id    uuid.UUID
	done  chan struct{}
	value T
	err   error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{
		id:   uuid.New(),
		done: make(chan struct{}),
	}
}

// ID identifies the job in logs.
func (f *Future[T]) ID() uuid.UUID {
	return f.id
}

// Done is closed once the job has settled.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the job settles or ctx is done. Abandoning the wait
// does not cancel the job.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (f *Future[T]) resolve(value T, err error) {
	f.value = value
	f.err = err
	close(f.done)
}
