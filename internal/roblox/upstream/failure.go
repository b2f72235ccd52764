package upstream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Reason classifies why an upstream call did not produce a payload.
type Reason string

const (
	ReasonTimeout     Reason = "timeout"
	ReasonCanceled    Reason = "canceled"
	ReasonStatus      Reason = "status"
	ReasonNetwork     Reason = "network"
	ReasonDecode      Reason = "decode"
	ReasonCircuitOpen Reason = "circuit_open"
)

// Failure is the single failure representation for an upstream call.
type Failure struct {
	Reason     Reason
	Endpoint   string
	StatusCode int
	RetryAfter time.Duration // Parsed from Retry-After on 429 responses
	Body       []byte        // Raw response body for status failures
	Err        error
}

func (f *Failure) Error() string {
	switch f.Reason {
	case ReasonStatus:
		return fmt.Sprintf("%s: upstream returned status %d", f.Endpoint, f.StatusCode)
	case ReasonTimeout:
		return f.Endpoint + ": upstream call timed out"
	case ReasonCanceled:
		return f.Endpoint + ": upstream call canceled"
	case ReasonCircuitOpen:
		return f.Endpoint + ": circuit breaker is open"
	case ReasonNetwork, ReasonDecode:
		return fmt.Sprintf("%s: %s error: %v", f.Endpoint, f.Reason, f.Err)
	default:
		return fmt.Sprintf("%s: %v", f.Endpoint, f.Err)
	}
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// IsRateLimited reports whether the upstream signaled its own throttling.
func (f *Failure) IsRateLimited() bool {
	return f.Reason == ReasonStatus && f.StatusCode == http.StatusTooManyRequests
}

// CountsAgainstHost reports whether the failure says something about the
// host's health. Client errors and cancellations do not.
func (f *Failure) CountsAgainstHost() bool {
	switch f.Reason {
	case ReasonStatus:
		return f.StatusCode >= 500 || f.StatusCode == http.StatusTooManyRequests
	case ReasonTimeout, ReasonNetwork:
		return true
	case ReasonCanceled, ReasonDecode, ReasonCircuitOpen:
		return false
	default:
		return false
	}
}

// contextFailure converts a context error into a failure.
func contextFailure(err error) *Failure {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Failure{Reason: ReasonTimeout, Err: err}
	}
	return &Failure{Reason: ReasonCanceled, Err: err}
}
