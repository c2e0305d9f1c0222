package mokka

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Client defaults applied by New.
const (
	DefaultTimeout  = 30 * time.Second
	DefaultCacheTTL = 5 * time.Minute
)

// Client is a resilient HTTP client that layers retries, circuit breaking,
// rate limiting, caching, deduplication, interceptors, middleware and
// metrics around the standard net/http client. It is safe for concurrent
// use.
type Client struct {
	httpClient *http.Client
	timeout    time.Duration

	maxAttempts       int
	initialBackoff    time.Duration
	maxBackoff        time.Duration
	backoffMultiplier float64
	jitter            float64
	backoffOverride   BackoffStrategy
	retryPredicates   []RetryPredicate
	retry             RetryPolicy

	circuitBreaker *CircuitBreaker

	rateLimiter  *RateLimiter
	rateLimiters *RateLimiterRegistry

	cache           Cache
	cacheEnabled    bool
	cacheTTL        time.Duration
	cacheMaxEntries int
	cacheMaxBytes   int64
	cacheKeyFunc    CacheKeyFunc
	cacheCondition  CacheCondition

	middleware           []Middleware
	requestInterceptors  []RequestInterceptor
	responseInterceptors []ResponseInterceptor

	deduplication  *DeduplicationTracker
	dedupKeyFunc   DeduplicationKeyFunc
	dedupCondition DeduplicationCondition

	urlValidator URLValidator

	marshaler   Marshaler
	unmarshaler Unmarshaler

	metrics *MetricsCollector
	debug   *DebugConfig
	logger  Logger

	asyncWorkers int
	asyncQueue   int
	asyncMu      sync.Mutex
	async        *AsyncDispatcher

	validationError error
}

// New constructs a Client using the provided functional options. A best
// effort validation is performed; call IsValid / ValidationError for errors.
func New(options ...Option) *Client {
	client := &Client{
		httpClient:        &http.Client{Timeout: DefaultTimeout},
		timeout:           DefaultTimeout,
		maxAttempts:       DefaultMaxAttempts,
		initialBackoff:    DefaultInitialBackoff,
		maxBackoff:        DefaultMaxBackoff,
		backoffMultiplier: DefaultBackoffMultiplier,
		jitter:            DefaultJitterFraction,
		circuitBreaker:    NewCircuitBreaker(CircuitBreakerConfig{}),
		cacheTTL:          DefaultCacheTTL,
		cacheKeyFunc:      DefaultCacheKeyFunc,
		cacheCondition:    DefaultCacheCondition,
		dedupKeyFunc:      DefaultDeduplicationKeyFunc,
		dedupCondition:    DefaultDeduplicationCondition,
		urlValidator:      DefaultURLValidator,
		marshaler:         jsonMarshaler{},
		unmarshaler:       jsonUnmarshaler{},
		debug:             DefaultDebugConfig(),
		asyncWorkers:      DefaultAsyncWorkers,
		asyncQueue:        DefaultAsyncQueueSize,
	}

	for _, option := range options {
		option(client)
	}

	if client.cacheEnabled && client.cache == nil {
		client.cache = NewInMemoryCache(client.cacheMaxEntries, client.cacheMaxBytes)
	}

	backoff := client.backoffOverride
	if backoff == nil {
		backoff = NewExponentialBackoff(client.initialBackoff, client.maxBackoff, client.backoffMultiplier, client.jitter)
	}
	predicates := client.retryPredicates
	if len(predicates) == 0 {
		predicates = []RetryPredicate{RetryOnTransportErrors(), RetryOnServerErrors()}
	}
	client.retry = RetryPolicy{
		MaxAttempts: client.maxAttempts,
		Backoff:     backoff,
		Predicates:  predicates,
	}

	if err := client.ValidateConfiguration(); err != nil {
		client.validationError = err
	}

	return client
}

// Get performs an HTTP GET with context.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}

// Post performs an HTTP POST with the given content type.
func (c *Client) Post(ctx context.Context, url, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	return c.Do(req)
}

// Do executes a prepared *http.Request applying all reliability features.
// Non-2xx responses are returned as responses, not errors; install
// PromoteHTTPErrors to change that.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	start := time.Now()
	endpoint := endpointFromRequest(req)
	requestID := c.requestID()

	if c.logRequests() {
		c.logger.Debug("Starting request", "requestID", requestID, "method", req.Method, "url", req.URL.String(), "endpoint", endpoint)
	}

	if c.metrics != nil {
		c.metrics.RecordRequestStart(req.Method, endpoint)
		defer c.metrics.RecordRequestEnd(req.Method, endpoint)
	}

	if c.urlValidator != nil {
		if err := c.urlValidator(req.URL); err != nil {
			if c.metrics != nil {
				c.metrics.RecordError(ErrorTypeSecurity, req.Method, endpoint)
			}
			return nil, c.newClientError(ErrorTypeSecurity, "request URL rejected", err, requestID, req, 0, time.Since(start))
		}
	}

	intercepted, err := c.applyRequestInterceptors(req)
	if err != nil {
		if c.metrics != nil {
			c.metrics.RecordError(ErrorTypeInterceptorAbort, req.Method, endpoint)
		}
		if clientErr, ok := err.(*ClientError); ok {
			return nil, clientErr
		}
		return nil, c.newClientError(ErrorTypeInterceptorAbort, "request interceptor failed", err, requestID, req, 0, time.Since(start))
	}
	req = intercepted

	var resp *http.Response
	if c.deduplication != nil && c.dedupCondition != nil && c.dedupCondition(req) {
		dedupKey := c.dedupKeyFunc(req)
		entry, owner := c.deduplication.GetOrCreateEntry(dedupKey)
		if !owner {
			resp, err = entry.Wait(req.Context())
			if c.metrics != nil {
				c.metrics.RecordDeduplicationHit(req.Method, endpoint)
				c.metrics.RecordRequest(req.Method, endpoint, statusOf(resp), time.Since(start))
			}
			if c.debugOn() {
				c.logger.Debug("Deduplication hit", "requestID", requestID, "dedupKey", dedupKey)
			}
			return resp, err
		}
		resp, err = c.execute(req, requestID, endpoint, start)
		resp, err = c.deduplication.Complete(entry, resp, err)
	} else {
		resp, err = c.execute(req, requestID, endpoint, start)
	}

	if c.metrics != nil {
		c.metrics.RecordRequest(req.Method, endpoint, statusOf(resp), time.Since(start))
	}
	return resp, err
}

// execute runs the admission stages and the retry loop for one logical
// request, then stores and post-processes the outcome.
func (c *Client) execute(req *http.Request, requestID, endpoint string, start time.Time) (*http.Response, error) {
	cacheEnabled := c.cache != nil && c.shouldCacheRequest(req)

	var cacheKey string
	if cacheEnabled {
		cacheKey = c.cacheKeyFunc(req)
		if entry, found := c.cache.Get(cacheKey); found {
			if c.logCache() {
				c.logger.Debug("Cache hit", "requestID", requestID, "cacheKey", cacheKey)
			}
			if c.metrics != nil {
				c.metrics.RecordCacheHit(req.Method, endpoint)
			}
			resp := responseFromCacheEntry(entry)
			resp.Request = req
			return c.finishResponse(resp, requestID, req, start)
		}
		if c.metrics != nil {
			c.metrics.RecordCacheMiss(req.Method, endpoint)
		}
		if c.logCache() {
			c.logger.Debug("Cache miss", "requestID", requestID, "cacheKey", cacheKey)
		}
	}

	if allowed, limiterKey := c.allowRateLimit(req); !allowed {
		if c.logRateLimit() {
			c.logger.Warn("Rate limit exceeded", "requestID", requestID, "endpoint", endpoint, "limiter", limiterKey)
		}
		if c.metrics != nil {
			c.metrics.RecordError(ErrorTypeRateLimit, req.Method, endpoint)
		}
		return nil, c.newClientError(ErrorTypeRateLimit, "rate limit exceeded", ErrRateLimited, requestID, req, 0, time.Since(start))
	}
	if c.rateLimiter != nil && c.metrics != nil {
		c.metrics.RecordRateLimiterTokens("default", c.rateLimiter.Tokens())
	}

	// Admission is decided once per logical request. Retries of an admitted
	// request never consult the breaker again.
	if c.circuitBreaker != nil && !c.circuitBreaker.Allow() {
		if c.logCircuit() {
			c.logger.Warn("Circuit breaker open", "requestID", requestID, "endpoint", endpoint, "state", c.circuitBreaker.State())
		}
		if c.metrics != nil {
			c.metrics.RecordCircuitBreakerRejection(req.Method, endpoint)
			c.metrics.RecordError(ErrorTypeCircuitOpen, req.Method, endpoint)
		}
		return nil, c.newClientError(ErrorTypeCircuitOpen, "circuit breaker is open", ErrCircuitOpen, requestID, req, 0, time.Since(start))
	}

	resp, attempts, err := c.doAttempts(req, requestID, endpoint)

	if c.circuitBreaker != nil {
		// A canceled caller reveals nothing about downstream health, so no
		// outcome is recorded for it.
		if req.Context().Err() == nil {
			if err != nil || (resp != nil && resp.StatusCode >= 500) {
				c.circuitBreaker.RecordFailure()
				if c.logCircuit() {
					if err != nil {
						c.logger.Warn("Circuit breaker failure recorded", "requestID", requestID, "error", err.Error())
					} else {
						c.logger.Warn("Circuit breaker failure recorded", "requestID", requestID, "statusCode", resp.StatusCode)
					}
				}
			} else {
				c.circuitBreaker.RecordSuccess()
			}
		}
		if c.metrics != nil {
			c.metrics.RecordCircuitBreakerState("default", c.circuitBreaker.State())
		}
	}

	if err != nil {
		if c.metrics != nil {
			c.metrics.RecordError(errorTypeOf(err), req.Method, endpoint)
		}
		if clientErr, ok := err.(*ClientError); ok {
			return nil, clientErr
		}
		if isCallerCancellation(err) && req.Context().Err() != nil {
			return nil, c.newClientError(ErrorTypeCanceled, "request canceled", err, requestID, req, attempts, time.Since(start))
		}
		return nil, c.newClientError(ErrorTypeTransport, "transport request failed", err, requestID, req, attempts, time.Since(start))
	}

	if cacheEnabled && resp != nil && resp.StatusCode < 400 && responseCacheable(resp) {
		if ttl := c.cacheTTLForRequest(req, resp); ttl > 0 {
			if entry := cacheEntryFromResponse(resp, c.maxCacheEntryBytes()); entry != nil {
				evictionsBefore := c.cacheEvictions()
				c.cache.Set(cacheKey, entry, ttl)
				if c.metrics != nil {
					c.metrics.RecordCacheEvictions("default", c.cacheEvictions()-evictionsBefore)
					c.metrics.RecordCacheSize("default", c.cache.Len())
				}
				if c.logCache() {
					c.logger.Debug("Response cached", "requestID", requestID, "cacheKey", cacheKey, "ttl", ttl)
				}
			}
		}
	}

	return c.finishResponse(resp, requestID, req, start)
}

// doAttempts drives the retry loop. It returns the last attempt's outcome
// and the number of transport invocations made.
func (c *Client) doAttempts(req *http.Request, requestID, endpoint string) (*http.Response, int, error) {
	maxAttempts := c.retry.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	// A consumed body without GetBody cannot be replayed.
	if req.Body != nil && req.GetBody == nil {
		maxAttempts = 1
	}

	var resp *http.Response
	var err error

	for attempt := 1; ; attempt++ {
		if attempt > 1 {
			if c.logRetries() {
				c.logger.Info("Retry attempt", "requestID", requestID, "attempt", attempt, "maxAttempts", maxAttempts, "endpoint", endpoint)
			}
			if c.metrics != nil {
				c.metrics.RecordRetry(req.Method, endpoint, attempt-1)
			}
		}

		resp, err = c.doAttempt(req, attempt)

		if !c.retry.shouldRetry(resp, err) || attempt == maxAttempts {
			return resp, attempt, err
		}
		if req.Context().Err() != nil {
			return resp, attempt, err
		}

		delay := c.retry.delayFor(resp, attempt)
		drainAndClose(resp)
		resp = nil

		if c.logRetries() {
			c.logger.Info("Scheduling retry", "requestID", requestID, "attempt", attempt+1, "backoff", delay, "endpoint", endpoint)
		}
		if sleepErr := sleepBackoff(req.Context(), delay); sleepErr != nil {
			return nil, attempt, sleepErr
		}
	}
}

// doAttempt performs a single transport invocation, rewinding the body on
// retries and applying any per-attempt timeout from the request context.
func (c *Client) doAttempt(req *http.Request, attempt int) (*http.Response, error) {
	attemptReq := req
	if attempt > 1 && req.Body != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("failed to rewind request body: %w", err)
		}
		attemptReq = req.Clone(req.Context())
		attemptReq.Body = body
	}

	if timeout, ok := callTimeoutFromContext(req.Context()); ok && timeout > 0 {
		ctx, cancel := context.WithTimeout(req.Context(), timeout)
		attemptReq = attemptReq.Clone(ctx)
		resp, err := c.executeMiddleware(attemptReq)
		if err != nil {
			cancel()
			return nil, err
		}
		// The timer must survive until the body is consumed.
		resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
		return resp, nil
	}

	return c.executeMiddleware(attemptReq)
}

// executeMiddleware runs the middleware chain around the underlying
// transport. Middleware registered first wraps outermost.
func (c *Client) executeMiddleware(req *http.Request) (*http.Response, error) {
	if len(c.middleware) == 0 {
		return c.httpClient.Do(req)
	}

	current := RoundTripperFunc(c.httpClient.Do)

	for i := len(c.middleware) - 1; i >= 0; i-- {
		middleware := c.middleware[i]
		next := current
		current = RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			return middleware(r, next)
		})
	}

	return current.RoundTrip(req)
}

// finishResponse runs the response interceptors and normalizes their errors.
// On error the response body is released and only the error is returned.
func (c *Client) finishResponse(resp *http.Response, requestID string, req *http.Request, start time.Time) (*http.Response, error) {
	intercepted, err := c.applyResponseInterceptors(resp)
	if err != nil {
		drainAndClose(intercepted)
		if c.metrics != nil {
			c.metrics.RecordError(errorTypeOf(err), req.Method, endpointFromRequest(req))
		}
		if clientErr, ok := err.(*ClientError); ok {
			return nil, clientErr
		}
		return nil, c.newClientError(ErrorTypeInterceptorAbort, "response interceptor failed", err, requestID, req, 0, time.Since(start))
	}
	return intercepted, nil
}

// allowRateLimit admits req through the registry when configured, else the
// single limiter, else unconditionally.
func (c *Client) allowRateLimit(req *http.Request) (bool, string) {
	if c.rateLimiters != nil {
		return c.rateLimiters.Allow(req)
	}
	if c.rateLimiter != nil {
		return c.rateLimiter.Allow(), "default"
	}
	return true, ""
}

func (c *Client) maxCacheEntryBytes() int64 {
	if c.cacheMaxBytes > 0 {
		return c.cacheMaxBytes
	}
	return DefaultCacheMaxBytes
}

// cacheEvictions reads the cache's eviction counter when the store exposes
// one; stores without a counter report zero.
func (c *Client) cacheEvictions() int64 {
	if counter, ok := c.cache.(interface{ Evictions() int64 }); ok {
		return counter.Evictions()
	}
	return 0
}

func (c *Client) newClientError(errorType, message string, cause error, requestID string, req *http.Request, attempts int, duration time.Duration) *ClientError {
	urlString := ""
	if req.URL != nil {
		urlString = req.URL.String()
	}

	return &ClientError{
		Type:        errorType,
		Message:     message,
		Cause:       cause,
		RequestID:   requestID,
		Method:      req.Method,
		URL:         urlString,
		Endpoint:    endpointFromRequest(req),
		Attempts:    attempts,
		MaxAttempts: c.retry.MaxAttempts,
		Timestamp:   time.Now(),
		Duration:    duration,
	}
}

// errorTypeOf maps an error to its metrics label.
func errorTypeOf(err error) string {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type
	}
	if isCallerCancellation(err) {
		return ErrorTypeCanceled
	}
	return ErrorTypeTransport
}

func statusOf(resp *http.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}

// drainAndClose releases a response body so the underlying connection can
// be reused. The drain is capped; oversized remainders force a close.
func drainAndClose(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
	_ = resp.Body.Close()
}

// callTimeoutFromContext reads the per-attempt timeout override.
func callTimeoutFromContext(ctx context.Context) (time.Duration, bool) {
	timeout, ok := ctx.Value(CallTimeoutKey).(time.Duration)
	return timeout, ok
}

// cancelOnClose ties a context cancel function to the response body so the
// per-attempt timer is released once the caller finishes reading.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

// Close releases background resources, stopping the async dispatcher when
// one was started. Queued async jobs fail with ErrDispatcherStopped.
func (c *Client) Close() {
	c.asyncMu.Lock()
	dispatcher := c.async
	c.async = nil
	c.asyncMu.Unlock()

	if dispatcher != nil {
		dispatcher.Stop()
	}
}

// IsValid reports whether configuration validation passed at construction.
func (c *Client) IsValid() bool {
	return c.validationError == nil
}

// ValidationError returns the configuration validation error, if any.
func (c *Client) ValidationError() error {
	return c.validationError
}

// ValidateConfigurationStrict panics if configuration is invalid.
func (c *Client) ValidateConfigurationStrict() {
	if err := c.ValidateConfiguration(); err != nil {
		panic(fmt.Sprintf("invalid client configuration: %v", err))
	}
}

// MustValidateConfiguration re-runs validation returning an error (no panic).
func (c *Client) MustValidateConfiguration() error {
	return c.ValidateConfiguration()
}

func endpointFromRequest(req *http.Request) string {
	if req.URL == nil {
		return "unknown"
	}

	host := req.URL.Host
	path := req.URL.Path

	var builder strings.Builder
	builder.WriteString(host)

	if path != "" && path != "/" {
		builder.WriteString(path)
	} else {
		builder.WriteByte('/')
	}

	return builder.String()
}
