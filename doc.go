// Package mokka provides a resilient HTTP client built from composable
// reliability primitives:
//
//   - Retries with pluggable backoff strategies (fixed, exponential + jitter,
//     decorrelated jitter) and per-failure retry predicates
//   - Circuit breaker (closed / open / half-open) admitting each logical
//     request exactly once, outside the retry loop
//   - Bounded in-memory LRU response cache with TTL and per-request
//     overrides, plus an optional SQLite-backed store
//   - Request and response interceptor chains applied once per logical
//     request, and a middleware chain wrapping every transport attempt
//   - Asynchronous execution on a worker pool with cancellable handles and
//     a callback variant
//   - Rate limiting (token bucket, optionally per host or route)
//   - Request de-duplication merging concurrent identical in-flight requests
//   - Prometheus metrics and lightweight structured debug logging
//
// Design goals:
//   - Small surface area: functional options configure everything
//   - Safe concurrent use of a single *Client instance
//   - Extensibility via interceptors, middleware and pluggable cache,
//     logger and metrics implementations
//
// Typical usage:
//
//	client := mokka.New(
//	    mokka.WithMaxAttempts(4),
//	    mokka.WithRateLimiter(10, time.Second),
//	    mokka.WithCache(5*time.Minute),
//	    mokka.WithCircuitBreaker(mokka.CircuitBreakerConfig{}),
//	    mokka.WithDeduplication(),
//	)
//	resp, err := client.Get(ctx, "https://api.example.com/data")
//
// Transport errors and 429/5xx responses are retried by default; override
// with WithRetryPredicates or WithRetryPolicy. Non-2xx responses are plain
// responses, not errors; install PromoteHTTPErrors to change that. The
// library avoids opinionated logging: provide a Logger (e.g. via
// WithSimpleLogger) and enable debug flags selectively for insight without
// noise.
package mokka
