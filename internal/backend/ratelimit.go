package backend

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter controls the frequency of requests to the loyalty backend.
type RateLimiter struct {
	limiter *rate.Limiter

	// pause requested by the backend via Retry-After
	retryAfterUntil time.Time
	mu              sync.Mutex
}

// NewRateLimiter creates a rate limiter.
// rps - requests per second, burst - allowed burst.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// DefaultRateLimiter allows link polling at 1 req/sec plus the auxiliary catalog loads.
func DefaultRateLimiter() *RateLimiter {
	return NewRateLimiter(5.0, 3)
}

// Wait blocks until the next request is allowed.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	waitUntil := r.retryAfterUntil
	r.mu.Unlock()

	if time.Now().Before(waitUntil) {
		select {
		case <-time.After(time.Until(waitUntil)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return r.limiter.Wait(ctx)
}

// SetRetryAfter pauses all requests for the given number of seconds (HTTP 429).
func (r *RateLimiter) SetRetryAfter(seconds int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.retryAfterUntil = time.Now().Add(time.Duration(seconds) * time.Second)
}
