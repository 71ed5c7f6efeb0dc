package interpreter

import (
	"context"
	"errors"
	"fmt"
)

// Domain errors for the interpreter. None of them leave Interpret; they
// are reported through logs and fallback reasons.
var (
	ErrUnavailable = errors.New("interpreter unavailable")
	ErrRateLimited = errors.New("interpreter rate limited")
	ErrMalformed   = errors.New("malformed interpreter output")
)

// UnavailableError wraps the reason a remote collaborator produced nothing.
type UnavailableError struct {
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s: %v", ErrUnavailable, e.Err)
}

func (e *UnavailableError) Unwrap() []error {
	return []error{ErrUnavailable, e.Err}
}

func reason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
