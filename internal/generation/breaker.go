package generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerConfig controls when the circuit opens and how long it stays open.
type BreakerConfig struct {
	Name     string
	Failures uint32
	Cooldown time.Duration
}

// Breaker short-circuits calls after consecutive transport failures so that a
// dead service fails fast instead of costing a full timeout per attempt.
// Only ErrServiceUnavailable counts against the circuit; a malformed response
// proves the service is up, and a cancelled call says nothing about it.
type Breaker struct {
	next Client
	cb   *gobreaker.CircuitBreaker
}

func NewBreaker(next Client, cfg BreakerConfig) *Breaker {
	if cfg.Name == "" {
		cfg.Name = "generation"
	}
	if cfg.Failures == 0 {
		cfg.Failures = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}

	failures := cfg.Failures
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			if err == nil || errors.Is(err, context.Canceled) {
				return true
			}
			return !errors.Is(err, ErrServiceUnavailable)
		},
	}

	return &Breaker{next: next, cb: gobreaker.NewCircuitBreaker(settings)}
}

func (b *Breaker) Generate(ctx context.Context, model, prompt string) (string, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Generate(ctx, model, prompt)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

// State returns the current circuit state name ("closed", "open", "half-open").
func (b *Breaker) State() string {
	return b.cb.State().String()
}
