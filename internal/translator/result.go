package translator

import (
	"errors"
	"fmt"
	"time"

	"github.com/valpere/tracetran/internal/generation"
)

// Translation is an accepted translation of a reasoning trace.
type Translation struct {
	Text     string
	Attempts int
	Chunks   int
	Elapsed  time.Duration
}

// FailureKind tells why a translation could not be produced.
type FailureKind int

const (
	// FailureExhaustedRetries means every attempt returned output that was
	// rejected (empty, echoed input, lost code markers, wrong language).
	FailureExhaustedRetries FailureKind = iota
	// FailureTimeout means the last attempt hit a deadline.
	FailureTimeout
	// FailureServiceError means the last attempt failed in the generation service.
	FailureServiceError
)

func (k FailureKind) String() string {
	switch k {
	case FailureTimeout:
		return "timeout"
	case FailureServiceError:
		return "service_error"
	case FailureExhaustedRetries:
		return "exhausted_retries"
	}
	return fmt.Sprintf("FailureKind(%d)", int(k))
}

// Failure is the only error type returned by Engine.Translate.
type Failure struct {
	Kind     FailureKind
	Detail   string
	Attempts int
	Err      error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("translation failed (%s) after %d attempt(s): %s", f.Kind, f.Attempts, f.Detail)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// AsFailure extracts a *Failure from err.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// classify turns the error of the final attempt into a Failure.
func classify(err error, attempts int) *Failure {
	f := &Failure{Attempts: attempts, Err: err, Detail: err.Error()}
	switch {
	case generation.IsTimeout(err):
		f.Kind = FailureTimeout
	case errors.Is(err, generation.ErrInvalidResponse):
		f.Kind = FailureExhaustedRetries
	default:
		f.Kind = FailureServiceError
	}
	return f
}
