package utils

import (
	"context"
	"time"
)

// SleepResult represents the outcome of a context-aware sleep operation.
type SleepResult int

const (
	// SleepCompleted indicates the sleep duration completed normally.
	SleepCompleted SleepResult = iota
	// SleepCancelled indicates the context was cancelled during sleep.
	SleepCancelled
)

// ContextSleep sleeps for the specified duration while respecting context cancellation.
// A non-positive duration returns immediately unless the context is already done.
func ContextSleep(ctx context.Context, duration time.Duration) SleepResult {
	if duration <= 0 {
		if ContextGuard(ctx) {
			return SleepCancelled
		}
		return SleepCompleted
	}

	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-timer.C:
		return SleepCompleted
	case <-ctx.Done():
		return SleepCancelled
	}
}

// ContextSleepUntil waits until the specified time while respecting context cancellation.
func ContextSleepUntil(ctx context.Context, target time.Time) SleepResult {
	return ContextSleep(ctx, time.Until(target))
}

// ContextGuard reports whether the context is already cancelled.
func ContextGuard(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}
