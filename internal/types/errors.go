package types

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorKind classifies request-level failures.
type ErrorKind string

const (
	KindInvalidInput        ErrorKind = "InvalidInput"
	KindUserNotFound        ErrorKind = "UserNotFound"
	KindUpstreamUnavailable ErrorKind = "UpstreamUnavailable"
	KindRateLimited         ErrorKind = "RateLimited"
	KindInternal            ErrorKind = "Internal"
)

// Error is a classified failure surfaced to the caller of the aggregation path.
type Error struct {
	Kind       ErrorKind
	Message    string
	StatusCode int           // Upstream status code, if any
	RetryAfter time.Duration // Suggested wait for RateLimited errors
	Detail     any           // Optional upstream-provided payload
	Err        error
}

// NewError creates a classified error wrapping an optional cause.
func NewError(kind ErrorKind, message string, err error) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the status code the REST layer responds with.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindUserNotFound:
		return http.StatusNotFound
	case KindUpstreamUnavailable:
		return http.StatusBadGateway
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// KindOf returns the kind of a classified error, or KindInternal for anything else.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err is a classified error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
