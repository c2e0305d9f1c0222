package mokka

import (
	"net/http"
	"net/url"
	"time"
)

// RetryPredicate reports whether a failed attempt outcome should be retried.
// A non-nil err describes a transport failure; otherwise resp holds the
// response the attempt produced.
type RetryPredicate func(resp *http.Response, err error) bool

// RequestInterceptor transforms an outgoing request before dispatch. It may
// return a new request value or the input unchanged; returning an error
// aborts the pipeline before the transport is ever invoked.
type RequestInterceptor func(req *http.Request) (*http.Request, error)

// ResponseInterceptor transforms a response after dispatch or after a cache
// hit. Returning an error aborts delivery of the response to the caller.
type ResponseInterceptor func(resp *http.Response) (*http.Response, error)

// Middleware wraps a single transport attempt. Unlike interceptors, which
// run once per logical request, middleware runs on every retry attempt.
type Middleware func(req *http.Request, next RoundTripper) (*http.Response, error)

// RoundTripper represents the HTTP transport interface
type RoundTripper interface {
	RoundTrip(*http.Request) (*http.Response, error)
}

// RoundTripperFunc is a helper type for middleware
type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// CircuitBreakerConfig holds circuit breaker configuration
type CircuitBreakerConfig struct {
	FailureThreshold int
	RecoveryTimeout  time.Duration
	SuccessThreshold int
}

// CircuitBreaker gates admission to a downstream target. One instance is
// shared by every request routed through a client; all fields are accessed
// atomically.
type CircuitBreaker struct {
	config         CircuitBreakerConfig
	state          int64
	failures       int64
	successes      int64
	transitionedAt int64
}

// CircuitState represents the state of the circuit breaker
type CircuitState int

const (
	StateClosed CircuitState = iota
	StateOpen
	StateHalfOpen
)

// String returns a readable state name for logs and errors.
func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CacheEntry is a stored response snapshot. Body holds the full payload;
// the live *http.Response is never retained.
type CacheEntry struct {
	StatusCode   int
	Header       http.Header
	Body         []byte
	StoredAt     time.Time
	ExpiresAt    time.Time
	Size         int64
	ETag         string
	LastModified *time.Time
}

// Cache is the response cache contract. Implementations must be safe for
// concurrent use and must keep themselves within their configured bounds.
type Cache interface {
	Get(key string) (*CacheEntry, bool)
	Set(key string, entry *CacheEntry, ttl time.Duration)
	Delete(key string)
	Clear()
	Len() int
}

// CacheCondition determines whether a request is eligible for caching
type CacheCondition func(req *http.Request) bool

// CacheKeyFunc derives the cache key for a request
type CacheKeyFunc func(req *http.Request) string

// Context keys for per-request overrides
type contextKey string

const (
	// CacheControlKey carries a per-request cache override.
	CacheControlKey contextKey = "mokka_cache_control"
	// CallTimeoutKey carries a per-request, per-attempt timeout override.
	CallTimeoutKey contextKey = "mokka_call_timeout"
)

// CacheControl holds cache control options for a request
type CacheControl struct {
	Enabled bool
	TTL     time.Duration
}

// ClientError is the error type produced by the pipeline. Type identifies
// the failure kind; the remaining fields carry request diagnostics.
type ClientError struct {
	Type        string
	Message     string
	Cause       error
	RequestID   string
	Method      string
	URL         string
	Endpoint    string
	StatusCode  int
	Attempts    int
	MaxAttempts int
	Timestamp   time.Time
	Duration    time.Duration
}

// URLValidator decides whether a URL may enter the pipeline. A non-nil
// return rejects the request before any other stage runs.
type URLValidator func(u *url.URL) error

// Limiter is the minimal admission interface the rate limiter registry
// dispatches to.
type Limiter interface {
	Allow() bool
}

// KeyFunc derives a rate limiter bucket key from a request.
type KeyFunc func(req *http.Request) string

// Option represents a configuration option
type Option func(*Client)
