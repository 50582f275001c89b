package ratelimit

import "context"

// ScopeMail is the limiter scope shared by every outbound email send.
const ScopeMail = "mail"

// RateLimiter controls throughput per scope across all workers.
type RateLimiter interface {
	Allow(ctx context.Context, scope string) (bool, error)
	Wait(ctx context.Context, scope string) error
}
