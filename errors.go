package mokka

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Error type constants used in ClientError.Type. Each names a distinct
// failure kind so callers can branch on errors.Is with a typed target.
const (
	// ErrorTypeTransport covers network level failures: connect errors,
	// resets, per-attempt timeouts.
	ErrorTypeTransport = "TransportError"
	// ErrorTypeStatus marks a non-2xx response promoted to an error.
	ErrorTypeStatus = "StatusError"
	// ErrorTypeCircuitOpen marks a request rejected by the open breaker.
	ErrorTypeCircuitOpen = "CircuitOpenError"
	// ErrorTypeInterceptorAbort marks a pipeline aborted by an interceptor.
	ErrorTypeInterceptorAbort = "InterceptorAbortError"
	// ErrorTypeRateLimit marks a request denied by the local rate limiter.
	ErrorTypeRateLimit = "RateLimitError"
	// ErrorTypeValidation marks invalid configuration detected at build time.
	ErrorTypeValidation = "ValidationError"
	// ErrorTypeSecurity marks a URL rejected by the validator.
	ErrorTypeSecurity = "SecurityError"
	// ErrorTypeCanceled marks a request abandoned by its caller.
	ErrorTypeCanceled = "CanceledError"
	// ErrorTypeDispatcher marks an async request the dispatcher could not run.
	ErrorTypeDispatcher = "DispatcherError"
)

// Sentinel errors for common failure scenarios
var (
	// ErrCircuitOpen is returned when the circuit breaker is in open state
	ErrCircuitOpen = errors.New("mokka: circuit open")

	// ErrRateLimited is returned when a request is denied due to rate limiting
	ErrRateLimited = errors.New("mokka: rate limited")

	// ErrCacheMiss is returned when a cache lookup fails
	ErrCacheMiss = errors.New("mokka: cache miss")

	// ErrDispatcherStopped is returned for async requests still queued when
	// the dispatcher shuts down
	ErrDispatcherStopped = errors.New("mokka: dispatcher stopped")
)

// IsTransient determines if an error represents a transient failure that might succeed on retry.
// Returns true for transport errors, rate limiting and open-circuit rejections.
// Returns false for interceptor aborts, validation errors and caller cancellation.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrRateLimited) {
		return true
	}

	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		switch clientErr.Type {
		case ErrorTypeTransport, ErrorTypeRateLimit, ErrorTypeCircuitOpen:
			return true
		case ErrorTypeStatus:
			// 429 and 5xx indicate the server may recover
			return clientErr.StatusCode == 429 || clientErr.StatusCode >= 500
		default:
			return false
		}
	}

	return false
}

// isCallerCancellation reports whether err stems from the caller abandoning
// the request rather than the downstream failing.
func isCallerCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Error implements error interface.
func (e *ClientError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause != nil {
		msg := fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Cause)
		if e.RequestID != "" {
			msg = fmt.Sprintf("[%s] %s", e.RequestID, msg)
		}
		if e.Attempts > 0 {
			msg = fmt.Sprintf("%s (attempts %d/%d)", msg, e.Attempts, e.MaxAttempts)
		}
		return msg
	}

	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.RequestID != "" {
		msg = fmt.Sprintf("[%s] %s", e.RequestID, msg)
	}
	if e.Attempts > 0 {
		msg = fmt.Sprintf("%s (attempts %d/%d)", msg, e.Attempts, e.MaxAttempts)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *ClientError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is compares error types for errors.Is.
func (e *ClientError) Is(target error) bool {
	if e == nil {
		return false
	}
	if targetErr, ok := target.(*ClientError); ok {
		return e.Type == targetErr.Type
	}
	switch e.Type {
	case ErrorTypeCircuitOpen:
		return target == ErrCircuitOpen
	case ErrorTypeRateLimit:
		return target == ErrRateLimited
	case ErrorTypeDispatcher:
		return target == ErrDispatcherStopped
	}
	return false
}

// DebugInfo renders a multi-line string with diagnostic context.
func (e *ClientError) DebugInfo() string {
	if e == nil {
		return "Error: <nil>"
	}
	info := fmt.Sprintf("Error Type: %s\n", e.Type)
	info += fmt.Sprintf("Message: %s\n", e.Message)
	if e.RequestID != "" {
		info += fmt.Sprintf("Request ID: %s\n", e.RequestID)
	}
	if e.Method != "" {
		info += fmt.Sprintf("Method: %s\n", e.Method)
	}
	if e.URL != "" {
		info += fmt.Sprintf("URL: %s\n", e.URL)
	}
	if e.Endpoint != "" {
		info += fmt.Sprintf("Endpoint: %s\n", e.Endpoint)
	}
	if e.StatusCode > 0 {
		info += fmt.Sprintf("Status Code: %d\n", e.StatusCode)
	}
	if e.Attempts > 0 {
		info += fmt.Sprintf("Attempts: %d/%d\n", e.Attempts, e.MaxAttempts)
	}
	if !e.Timestamp.IsZero() {
		info += fmt.Sprintf("Timestamp: %s\n", e.Timestamp.Format(time.RFC3339))
	}
	if e.Duration > 0 {
		info += fmt.Sprintf("Duration: %v\n", e.Duration)
	}
	if e.Cause != nil {
		info += fmt.Sprintf("Cause: %v\n", e.Cause)
	}
	return info
}
