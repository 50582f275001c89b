package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/handover/docbatch/internal/domain"
)

const (
	DefaultMaxAttempts    = 3
	DefaultBackoff        = 60 * time.Second
	DefaultAttemptTimeout = 120 * time.Second
)

// Policy controls how a unit task is retried.
type Policy struct {
	// MaxAttempts is the total number of calls including the first attempt.
	MaxAttempts int
	// Backoff is the fixed wait between two attempts.
	Backoff time.Duration
	// AttemptTimeout bounds a single attempt. Zero disables the bound.
	AttemptTimeout time.Duration
	// OnRetry is called after a failed attempt that will be retried.
	// attempt is 1-indexed (1 = first attempt just failed).
	OnRetry func(attempt int, err error)
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    DefaultMaxAttempts,
		Backoff:        DefaultBackoff,
		AttemptTimeout: DefaultAttemptTimeout,
	}
}

// Run calls fn until it succeeds, fails with a non-transient error, or the attempts are
// used up. Each call gets its own deadline derived from ctx; an attempt that hits it counts
// as one failed attempt. Run returns the number of attempts made and the final error.
//
// fn must honor the context it is given.
func (p Policy) Run(ctx context.Context, fn func(ctx context.Context) error) (int, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = p.attempt(ctx, fn)
		if lastErr == nil {
			return attempt, nil
		}

		if ctx.Err() != nil {
			return attempt, fmt.Errorf("retry cancelled after attempt %d: %w", attempt, ctx.Err())
		}
		if domain.IsNonTransient(lastErr) || attempt == maxAttempts {
			return attempt, lastErr
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt, lastErr)
		}

		if p.Backoff > 0 {
			timer := time.NewTimer(p.Backoff)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return attempt, fmt.Errorf("retry cancelled after attempt %d: %w", attempt, ctx.Err())
			}
		}
	}
	return maxAttempts, lastErr
}

func (p Policy) attempt(ctx context.Context, fn func(ctx context.Context) error) error {
	if p.AttemptTimeout <= 0 {
		return fn(ctx)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, p.AttemptTimeout)
	defer cancel()
	return fn(attemptCtx)
}
