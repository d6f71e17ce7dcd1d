// Package generation wraps calls to an external text-generation service.
//
// A Client performs exactly one remote call per Generate invocation and never
// retries; callers own retry policy. Failures are reported as errors wrapping
// ErrServiceUnavailable (the service could not be reached, timed out or refused
// the call) or ErrInvalidResponse (the service answered but the payload had no
// usable text).
package generation

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

var (
	ErrServiceUnavailable = errors.New("generation service unavailable")
	ErrInvalidResponse    = errors.New("invalid generation response")
	ErrInvalidRequest     = errors.New("invalid generation request")
)

// Client generates text from a prompt with the named model.
type Client interface {
	Generate(ctx context.Context, model, prompt string) (string, error)
}

// ClientFunc adapts a plain function to the Client interface.
type ClientFunc func(ctx context.Context, model, prompt string) (string, error)

func (f ClientFunc) Generate(ctx context.Context, model, prompt string) (string, error) {
	return f(ctx, model, prompt)
}

func validateRequest(model, prompt string) error {
	if strings.TrimSpace(model) == "" {
		return fmt.Errorf("%w: model identifier is empty", ErrInvalidRequest)
	}
	if strings.TrimSpace(prompt) == "" {
		return fmt.Errorf("%w: prompt is empty", ErrInvalidRequest)
	}
	return nil
}

// unavailable wraps a transport error so that both ErrServiceUnavailable and the
// original cause (e.g. context.DeadlineExceeded) stay matchable.
func unavailable(err error) error {
	return fmt.Errorf("%w: %w", ErrServiceUnavailable, err)
}

// IsTimeout reports whether err was caused by a deadline expiring, either the
// per-call deadline or a network-level timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
