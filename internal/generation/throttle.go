package generation

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Throttled spaces out calls to next so that at most perMinute requests start
// in any minute.
type Throttled struct {
	next    Client
	limiter *rate.Limiter
}

// NewThrottled limits next to perMinute calls. perMinute <= 0 means no limit.
func NewThrottled(next Client, perMinute int) *Throttled {
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(perMinute))
	}
	return &Throttled{
		next:    next,
		limiter: rate.NewLimiter(limit, 1),
	}
}

func (t *Throttled) Generate(ctx context.Context, model, prompt string) (string, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return "", unavailable(err)
	}
	return t.next.Generate(ctx, model, prompt)
}

// Options selects the optional decorators applied by Wrap.
type Options struct {
	RequestsPerMinute int
	Breaker           *BreakerConfig
}

// Wrap applies the configured decorators around base; the throttle is outermost.
func Wrap(base Client, opts Options) Client {
	c := base
	if opts.Breaker != nil {
		c = NewBreaker(c, *opts.Breaker)
	}
	if opts.RequestsPerMinute > 0 {
		c = NewThrottled(c, opts.RequestsPerMinute)
	}
	return c
}
