package mokka

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Default retry policy parameters.
const (
	DefaultMaxAttempts       = 4
	DefaultInitialBackoff    = 100 * time.Millisecond
	DefaultMaxBackoff        = 10 * time.Second
	DefaultBackoffMultiplier = 2.0
	DefaultJitterFraction    = 0.1
)

// RetryPolicy bounds the retry loop for one logical request. MaxAttempts is
// the total number of transport invocations; 1 means a single attempt and no
// retry. A failed attempt is retried only when at least one predicate
// matches it; otherwise the failure propagates immediately.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     BackoffStrategy
	Predicates  []RetryPredicate
}

// DefaultRetryPolicy retries transport errors and 429/5xx responses up to
// four attempts with exponential backoff and jitter.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultMaxAttempts,
		Backoff:     NewExponentialBackoff(DefaultInitialBackoff, DefaultMaxBackoff, DefaultBackoffMultiplier, DefaultJitterFraction),
		Predicates:  []RetryPredicate{RetryOnTransportErrors(), RetryOnServerErrors()},
	}
}

// shouldRetry reports whether any predicate matches the attempt outcome.
func (p RetryPolicy) shouldRetry(resp *http.Response, err error) bool {
	for _, match := range p.Predicates {
		if match != nil && match(resp, err) {
			return true
		}
	}
	return false
}

// delayFor returns the wait scheduled after the given failed attempt
// (1-based). A parseable Retry-After on 429/503 responses overrides the
// backoff strategy.
func (p RetryPolicy) delayFor(resp *http.Response, attempt int) time.Duration {
	if resp != nil && (resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable) {
		if delay := parseRetryAfter(resp.Header.Get("Retry-After")); delay > 0 {
			return delay
		}
	}
	if p.Backoff == nil {
		return 0
	}
	return p.Backoff.DelayFor(attempt)
}

// RetryOnTransportErrors matches network level failures. Cancellation by
// the caller is excluded: retrying an abandoned request wastes capacity.
// Per-attempt timeouts still match because the logical request may succeed
// on the next attempt.
func RetryOnTransportErrors() RetryPredicate {
	return func(resp *http.Response, err error) bool {
		if err == nil {
			return false
		}
		return !errors.Is(err, context.Canceled)
	}
}

// RetryOnServerErrors matches 429 Too Many Requests and every 5xx status.
func RetryOnServerErrors() RetryPredicate {
	return func(resp *http.Response, err error) bool {
		if err != nil || resp == nil {
			return false
		}
		return resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
	}
}

// RetryOnStatus matches responses whose status is in the given set.
func RetryOnStatus(codes ...int) RetryPredicate {
	set := make(map[int]struct{}, len(codes))
	for _, code := range codes {
		set[code] = struct{}{}
	}
	return func(resp *http.Response, err error) bool {
		if err != nil || resp == nil {
			return false
		}
		_, ok := set[resp.StatusCode]
		return ok
	}
}

// DefaultIsIdempotent returns true for idempotent HTTP methods.
func DefaultIsIdempotent(method string) bool {
	switch method {
	case "GET", "HEAD", "PUT", "DELETE", "OPTIONS":
		return true
	default:
		return false
	}
}

// parseRetryAfter parses the Retry-After header value.
// It supports both delay-seconds format and HTTP-date format.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}

	// Try parsing as seconds first
	if seconds, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
		if seconds > 0 {
			delay := time.Duration(seconds) * time.Second
			if delay > time.Hour {
				delay = time.Hour // Cap at 1 hour
			}
			return delay
		}
	}

	// Try parsing as HTTP-date
	if t, err := http.ParseTime(value); err == nil {
		delay := time.Until(t)
		if delay > 0 && delay <= time.Hour { // Cap at 1 hour
			return delay
		}
	}

	return 0
}

// sleepBackoff blocks for d or until ctx is done, whichever comes first.
// The timer is stopped on cancellation so a pending retry never outlives
// its caller.
func sleepBackoff(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
