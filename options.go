package mokka

import (
	"fmt"
	"net/http"
	"time"
)

// WithMaxAttempts sets the total number of transport invocations allowed per
// logical request. 1 disables retries entirely.
func WithMaxAttempts(n int) Option {
	return func(c *Client) {
		c.maxAttempts = n
	}
}

// WithRetryPolicy replaces the retry policy wholesale: attempt budget,
// backoff strategy and predicates.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) {
		c.maxAttempts = p.MaxAttempts
		c.backoffOverride = p.Backoff
		c.retryPredicates = p.Predicates
	}
}

// WithBackoff sets the backoff strategy used between attempts, overriding
// the exponential knobs below.
func WithBackoff(strategy BackoffStrategy) Option {
	return func(c *Client) {
		c.backoffOverride = strategy
	}
}

// WithRetryPredicates replaces the predicates deciding which failed attempts
// are retried. A failure is retried when any predicate matches it.
func WithRetryPredicates(predicates ...RetryPredicate) Option {
	return func(c *Client) {
		c.retryPredicates = predicates
	}
}

// WithInitialBackoff sets the first retry delay of the default exponential
// strategy.
func WithInitialBackoff(d time.Duration) Option {
	return func(c *Client) {
		c.initialBackoff = d
	}
}

// WithMaxBackoff caps the delay of the default exponential strategy.
func WithMaxBackoff(d time.Duration) Option {
	return func(c *Client) {
		c.maxBackoff = d
	}
}

// WithBackoffMultiplier sets the growth factor of the default exponential
// strategy.
func WithBackoffMultiplier(f float64) Option {
	return func(c *Client) {
		c.backoffMultiplier = f
	}
}

// WithJitter sets the jitter fraction of the default exponential strategy
// (0.0 to 1.0).
func WithJitter(f float64) Option {
	return func(c *Client) {
		if f < 0 {
			f = 0
		}
		if f > 1 {
			f = 1
		}
		c.jitter = f
	}
}

// WithRateLimiter installs a token bucket shared by every request.
func WithRateLimiter(maxTokens int, refillRate time.Duration) Option {
	return func(c *Client) {
		c.rateLimiter = NewRateLimiter(maxTokens, refillRate)
	}
}

// WithRateLimiterRegistry installs per-key rate limiting. When set, the
// registry takes precedence over the single limiter.
func WithRateLimiterRegistry(registry *RateLimiterRegistry) Option {
	return func(c *Client) {
		c.rateLimiters = registry
	}
}

// WithCache enables caching with the default in-memory cache.
func WithCache(ttl time.Duration) Option {
	return func(c *Client) {
		c.cacheEnabled = true
		c.cacheTTL = ttl
	}
}

// WithCacheBounds sets the entry and byte bounds of the default in-memory
// cache. Non-positive values leave a dimension unbounded; both non-positive
// restores the defaults.
func WithCacheBounds(maxEntries int, maxBytes int64) Option {
	return func(c *Client) {
		c.cacheEnabled = true
		c.cacheMaxEntries = maxEntries
		c.cacheMaxBytes = maxBytes
	}
}

// WithCustomCache sets a custom cache implementation.
func WithCustomCache(cache Cache, ttl time.Duration) Option {
	return func(c *Client) {
		c.cacheEnabled = true
		c.cache = cache
		c.cacheTTL = ttl
	}
}

// WithCacheKeyFunc sets a custom cache key function.
func WithCacheKeyFunc(fn CacheKeyFunc) Option {
	return func(c *Client) {
		c.cacheKeyFunc = fn
	}
}

// WithCacheCondition sets a custom cache eligibility function.
func WithCacheCondition(fn CacheCondition) Option {
	return func(c *Client) {
		c.cacheCondition = fn
	}
}

// WithTimeout sets the per-attempt request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
		if c.httpClient != nil {
			c.httpClient.Timeout = d
		}
	}
}

// WithCircuitBreaker sets the circuit breaker configuration.
func WithCircuitBreaker(config CircuitBreakerConfig) Option {
	return func(c *Client) {
		c.circuitBreaker = NewCircuitBreaker(config)
	}
}

// WithMiddleware adds middleware wrapping every transport attempt.
func WithMiddleware(middleware ...Middleware) Option {
	return func(c *Client) {
		c.middleware = append(c.middleware, middleware...)
	}
}

// WithRequestInterceptors adds interceptors that run once per logical
// request, before any dispatch.
func WithRequestInterceptors(interceptors ...RequestInterceptor) Option {
	return func(c *Client) {
		c.requestInterceptors = append(c.requestInterceptors, interceptors...)
	}
}

// WithResponseInterceptors adds interceptors that run once per logical
// request, on both fresh and cached responses.
func WithResponseInterceptors(interceptors ...ResponseInterceptor) Option {
	return func(c *Client) {
		c.responseInterceptors = append(c.responseInterceptors, interceptors...)
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
		if c.timeout != 0 {
			c.httpClient.Timeout = c.timeout
		}
	}
}

// WithTransportConfig replaces the transport with one built from the given
// pool configuration.
func WithTransportConfig(cfg ConnectionPoolConfig) Option {
	return func(c *Client) {
		if c.httpClient == nil {
			c.httpClient = &http.Client{Timeout: c.timeout}
		}
		c.httpClient.Transport = newTransport(cfg)
	}
}

// WithMetrics enables Prometheus metrics collection on the default
// registerer.
func WithMetrics() Option {
	return func(c *Client) {
		c.metrics = NewMetricsCollector()
	}
}

// WithMetricsCollector sets a custom metrics collector.
func WithMetricsCollector(collector *MetricsCollector) Option {
	return func(c *Client) {
		c.metrics = collector
	}
}

// WithDebug enables debug logging with default configuration.
func WithDebug() Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.Enabled = true
	}
}

// WithDebugConfig sets custom debug configuration.
func WithDebugConfig(config *DebugConfig) Option {
	return func(c *Client) {
		c.debug = config
	}
}

// WithLogger sets a custom logger for debug output.
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithSimpleLogger enables debug logging with a plain stderr logger.
func WithSimpleLogger() Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.Enabled = true
		c.logger = NewSimpleLogger()
	}
}

// WithRequestIDGenerator sets a custom function for generating request IDs.
func WithRequestIDGenerator(gen func() string) Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.RequestIDGen = gen
	}
}

// WithDeduplication enables coalescing of identical in-flight requests.
func WithDeduplication() Option {
	return func(c *Client) {
		c.deduplication = NewDeduplicationTracker()
	}
}

// WithDeduplicationKeyFunc sets a custom deduplication key function.
func WithDeduplicationKeyFunc(fn DeduplicationKeyFunc) Option {
	return func(c *Client) {
		c.dedupKeyFunc = fn
	}
}

// WithDeduplicationCondition sets a custom deduplication eligibility
// function.
func WithDeduplicationCondition(fn DeduplicationCondition) Option {
	return func(c *Client) {
		c.dedupCondition = fn
	}
}

// WithURLValidator replaces the URL validator. Passing nil disables URL
// validation.
func WithURLValidator(v URLValidator) Option {
	return func(c *Client) {
		c.urlValidator = v
	}
}

// WithMarshaler sets the serializer used by the JSON convenience methods.
func WithMarshaler(m Marshaler) Option {
	return func(c *Client) {
		c.marshaler = m
	}
}

// WithUnmarshaler sets the deserializer used by the JSON convenience
// methods.
func WithUnmarshaler(u Unmarshaler) Option {
	return func(c *Client) {
		c.unmarshaler = u
	}
}

// WithAsyncWorkers sets the worker count of the async dispatcher.
func WithAsyncWorkers(n int) Option {
	return func(c *Client) {
		c.asyncWorkers = n
	}
}

// WithAsyncQueueSize sets the job buffer of the async dispatcher.
func WithAsyncQueueSize(n int) Option {
	return func(c *Client) {
		c.asyncQueue = n
	}
}

// ValidateConfiguration validates the client configuration and returns an
// error if invalid.
func (c *Client) ValidateConfiguration() error {
	var errors []string

	errors = append(errors, c.validateRetryConfig()...)
	errors = append(errors, c.validateRateLimiterConfig()...)
	errors = append(errors, c.validateCacheConfig()...)
	errors = append(errors, c.validateCircuitBreakerConfig()...)
	errors = append(errors, c.validateDebugConfig()...)
	errors = append(errors, c.validateDeduplicationConfig()...)
	errors = append(errors, c.validateMiddlewareConfig()...)
	errors = append(errors, c.validateHTTPClientConfig()...)
	errors = append(errors, c.validateCodecConfig()...)
	errors = append(errors, c.validateAsyncConfig()...)
	errors = append(errors, c.validateExtremeValues()...)

	if len(errors) > 0 {
		return &ClientError{
			Type:    ErrorTypeValidation,
			Message: "configuration validation failed",
			Cause:   fmt.Errorf("validation errors: %v", errors),
		}
	}

	return nil
}

// validateRetryConfig validates retry-related configuration.
func (c *Client) validateRetryConfig() []string {
	var errors []string

	if c.maxAttempts < 1 {
		errors = append(errors, "maxAttempts must be at least 1")
	}

	// The exponential knobs only matter when no explicit strategy is set.
	if c.backoffOverride == nil {
		if c.initialBackoff <= 0 {
			errors = append(errors, "initialBackoff must be positive")
		}
		if c.maxBackoff < c.initialBackoff {
			errors = append(errors, "maxBackoff must be greater than or equal to initialBackoff")
		}
		if c.backoffMultiplier <= 0 {
			errors = append(errors, "backoffMultiplier must be positive")
		}
		if c.jitter < 0 || c.jitter > 1 {
			errors = append(errors, "jitter must be between 0 and 1")
		}
	}

	if c.timeout <= 0 {
		errors = append(errors, "timeout must be positive")
	}

	return errors
}

// validateRateLimiterConfig validates rate limiter configuration.
func (c *Client) validateRateLimiterConfig() []string {
	var errors []string

	if c.rateLimiter != nil {
		if c.rateLimiter.maxTokens <= 0 {
			errors = append(errors, "rateLimiter maxTokens must be positive")
		}
		if c.rateLimiter.refillRate <= 0 {
			errors = append(errors, "rateLimiter refillRate must be positive")
		}
	}

	return errors
}

// validateCacheConfig validates cache configuration.
func (c *Client) validateCacheConfig() []string {
	var errors []string

	if (c.cacheEnabled || c.cache != nil) && c.cacheTTL <= 0 {
		errors = append(errors, "cacheTTL must be positive when cache is enabled")
	}
	if c.cacheMaxEntries < 0 {
		errors = append(errors, "cache maxEntries must be non-negative")
	}
	if c.cacheMaxBytes < 0 {
		errors = append(errors, "cache maxBytes must be non-negative")
	}

	return errors
}

// validateCircuitBreakerConfig validates circuit breaker configuration.
func (c *Client) validateCircuitBreakerConfig() []string {
	var errors []string

	if c.circuitBreaker != nil {
		if c.circuitBreaker.config.FailureThreshold <= 0 {
			errors = append(errors, "circuitBreaker FailureThreshold must be positive")
		}
		if c.circuitBreaker.config.RecoveryTimeout <= 0 {
			errors = append(errors, "circuitBreaker RecoveryTimeout must be positive")
		}
		if c.circuitBreaker.config.SuccessThreshold <= 0 {
			errors = append(errors, "circuitBreaker SuccessThreshold must be positive")
		}
	}

	return errors
}

// validateDebugConfig validates debug configuration.
func (c *Client) validateDebugConfig() []string {
	var errors []string

	if c.debug != nil && c.debug.Enabled {
		if c.debug.RequestIDGen == nil {
			errors = append(errors, "debug RequestIDGen must be set when debug is enabled")
		}
		if c.logger == nil {
			errors = append(errors, "logger must be set when debug is enabled")
		}
	}

	return errors
}

// validateDeduplicationConfig validates deduplication configuration.
func (c *Client) validateDeduplicationConfig() []string {
	var errors []string

	if c.deduplication != nil {
		if c.dedupKeyFunc == nil {
			errors = append(errors, "deduplication key function must be set when deduplication is enabled")
		}
		if c.dedupCondition == nil {
			errors = append(errors, "deduplication condition must be set when deduplication is enabled")
		}
	}

	return errors
}

// validateMiddlewareConfig validates middleware and interceptor chains.
func (c *Client) validateMiddlewareConfig() []string {
	var errors []string

	for i, middleware := range c.middleware {
		if middleware == nil {
			errors = append(errors, fmt.Sprintf("middleware[%d] cannot be nil", i))
		}
	}
	for i, interceptor := range c.requestInterceptors {
		if interceptor == nil {
			errors = append(errors, fmt.Sprintf("requestInterceptors[%d] cannot be nil", i))
		}
	}
	for i, interceptor := range c.responseInterceptors {
		if interceptor == nil {
			errors = append(errors, fmt.Sprintf("responseInterceptors[%d] cannot be nil", i))
		}
	}

	return errors
}

// validateHTTPClientConfig validates HTTP client configuration.
func (c *Client) validateHTTPClientConfig() []string {
	var errors []string

	if c.httpClient == nil {
		errors = append(errors, "HTTP client cannot be nil")
	}

	return errors
}

// validateCodecConfig validates the JSON codec configuration.
func (c *Client) validateCodecConfig() []string {
	var errors []string

	if c.marshaler == nil {
		errors = append(errors, "marshaler cannot be nil")
	}
	if c.unmarshaler == nil {
		errors = append(errors, "unmarshaler cannot be nil")
	}

	return errors
}

// validateAsyncConfig validates async dispatcher configuration.
func (c *Client) validateAsyncConfig() []string {
	var errors []string

	if c.asyncWorkers < 1 {
		errors = append(errors, "asyncWorkers must be at least 1")
	}
	if c.asyncQueue < 1 {
		errors = append(errors, "asyncQueue must be at least 1")
	}

	return errors
}

// validateExtremeValues flags configuration values outside reasonable
// bounds.
func (c *Client) validateExtremeValues() []string {
	var errors []string

	if c.maxAttempts > 100 {
		errors = append(errors, "maxAttempts > 100 may cause excessive resource usage")
	}

	if c.backoffOverride == nil {
		if c.initialBackoff > 10*time.Minute {
			errors = append(errors, "initialBackoff > 10m may cause very long delays")
		}
		if c.maxBackoff > 1*time.Hour {
			errors = append(errors, "maxBackoff > 1h may cause extremely long delays")
		}
	}

	if c.timeout > 10*time.Minute {
		errors = append(errors, "timeout > 10m may cause requests to hang for too long")
	}

	if c.rateLimiter != nil {
		if c.rateLimiter.maxTokens > 1000000 {
			errors = append(errors, "rateLimiter maxTokens > 1M may cause memory issues")
		}
		if c.rateLimiter.refillRate > 0 && c.rateLimiter.refillRate < time.Millisecond {
			errors = append(errors, "rateLimiter refillRate < 1ms may cause excessive CPU usage")
		}
	}

	if (c.cacheEnabled || c.cache != nil) && c.cacheTTL > 24*time.Hour {
		errors = append(errors, "cacheTTL > 24h may cause stale data issues")
	}

	return errors
}
