package mokka

import (
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter is a token bucket that admits at most maxTokens requests in a
// burst and refills one token every refillRate. It satisfies Limiter and is
// safe for concurrent use.
type RateLimiter struct {
	limiter    *rate.Limiter
	maxTokens  int
	refillRate time.Duration
}

// NewRateLimiter creates a rate limiter holding maxTokens with one token
// restored every refillRate. A non-positive refillRate disables limiting.
func NewRateLimiter(maxTokens int, refillRate time.Duration) *RateLimiter {
	if maxTokens <= 0 {
		maxTokens = 1
	}

	limit := rate.Inf
	if refillRate > 0 {
		limit = rate.Every(refillRate)
	}

	return &RateLimiter{
		limiter:    rate.NewLimiter(limit, maxTokens),
		maxTokens:  maxTokens,
		refillRate: refillRate,
	}
}

// Allow reports whether a request may proceed now, consuming a token when it
// may.
func (rl *RateLimiter) Allow() bool {
	return rl.limiter.Allow()
}

// Tokens returns the number of tokens currently available, truncated toward
// zero.
func (rl *RateLimiter) Tokens() int {
	return int(rl.limiter.Tokens())
}
