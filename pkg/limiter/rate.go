package limiter

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter is the process-wide gate that page fetches and link
// validations acquire a token from before each Fetcher call. robots.txt
// fetches made by internal/robots do not pass through it. Burst size
// equals the configured rate, so one second's worth of requests may
// proceed without waiting; tokens then replenish
// continuously. Acquisition is FIFO-fair and a cancelled wait consumes no
// token.
type RateLimiter interface {
	// Wait blocks until a token is available or ctx is cancelled. A
	// cancelled wait never consumes a token.
	Wait(ctx context.Context) error
}

// TokenBucketLimiter wraps golang.org/x/time/rate.Limiter, which already
// implements FIFO-fair, continuously-replenishing token admission.
type TokenBucketLimiter struct {
	limiter *rate.Limiter
}

// NewTokenBucketLimiter builds a limiter admitting ratePerSecond requests
// per second with a burst of ratePerSecond (one second of tokens). A
// ratePerSecond of 0 disables limiting (every Wait returns immediately).
func NewTokenBucketLimiter(ratePerSecond float64) *TokenBucketLimiter {
	if ratePerSecond <= 0 {
		return &TokenBucketLimiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}

	burst := int(ratePerSecond)
	if burst < 1 {
		burst = 1
	}

	return &TokenBucketLimiter{limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst)}
}

func (t *TokenBucketLimiter) Wait(ctx context.Context) error {
	return t.limiter.Wait(ctx)
}

// NoopLimiter never blocks. Used when rate_limit is absent (spec.md §4.3).
type NoopLimiter struct{}

func (NoopLimiter) Wait(ctx context.Context) error {
	return ctx.Err()
}
