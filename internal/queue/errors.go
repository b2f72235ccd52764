package queue

import "errors"

var (
	// ErrStopped indicates the queue was stopped before the job ran.
	ErrStopped = errors.New("queue stopped")
	// ErrJobPanicked indicates the job panicked while running.
	ErrJobPanicked = errors.New("job panicked")
)
