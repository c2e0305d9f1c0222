package mokka

import (
	"sync/atomic"
	"time"
)

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.FailureThreshold == 0 {
		config.FailureThreshold = 5
	}
	if config.RecoveryTimeout == 0 {
		config.RecoveryTimeout = 60 * time.Second
	}
	if config.SuccessThreshold == 0 {
		config.SuccessThreshold = 2
	}

	return &CircuitBreaker{
		config:         config,
		state:          int64(StateClosed),
		failures:       0,
		successes:      0,
		transitionedAt: time.Now().UnixNano(),
	}
}

// Allow checks if a request should be admitted. The check happens once per
// logical request; retries run inside the admitted call and never consult
// the breaker again.
func (cb *CircuitBreaker) Allow() bool {
	switch CircuitState(atomic.LoadInt64(&cb.state)) {
	case StateClosed:
		return true
	case StateOpen:
		transitionedAt := atomic.LoadInt64(&cb.transitionedAt)
		if time.Now().UnixNano()-transitionedAt >= int64(cb.config.RecoveryTimeout) {
			if atomic.CompareAndSwapInt64(&cb.state, int64(StateOpen), int64(StateHalfOpen)) {
				cb.resetCounters()
				atomic.StoreInt64(&cb.transitionedAt, time.Now().UnixNano())
				return true
			}
		}
		return false
	case StateHalfOpen:
		return true
	default:
		return false
	}
}

// RecordFailure records one failed admitted call. In the closed state it
// counts toward the failure threshold; in half-open a single failure reopens
// the circuit. Failures reported while already open come from calls admitted
// before the transition and are ignored so they cannot extend the cooldown.
func (cb *CircuitBreaker) RecordFailure() {
	switch CircuitState(atomic.LoadInt64(&cb.state)) {
	case StateClosed:
		failures := atomic.AddInt64(&cb.failures, 1)
		if failures >= int64(cb.config.FailureThreshold) {
			if atomic.CompareAndSwapInt64(&cb.state, int64(StateClosed), int64(StateOpen)) {
				cb.resetCounters()
				atomic.StoreInt64(&cb.transitionedAt, time.Now().UnixNano())
			}
		}
	case StateOpen:
	case StateHalfOpen:
		if atomic.CompareAndSwapInt64(&cb.state, int64(StateHalfOpen), int64(StateOpen)) {
			cb.resetCounters()
			atomic.StoreInt64(&cb.transitionedAt, time.Now().UnixNano())
		}
	}
}

// RecordSuccess records one successful admitted call. Only the half-open
// state reacts: reaching the success threshold closes the circuit.
func (cb *CircuitBreaker) RecordSuccess() {
	switch CircuitState(atomic.LoadInt64(&cb.state)) {
	case StateClosed:
	case StateOpen:
	case StateHalfOpen:
		successes := atomic.AddInt64(&cb.successes, 1)
		if successes >= int64(cb.config.SuccessThreshold) {
			if atomic.CompareAndSwapInt64(&cb.state, int64(StateHalfOpen), int64(StateClosed)) {
				cb.resetCounters()
				atomic.StoreInt64(&cb.transitionedAt, time.Now().UnixNano())
			}
		}
	}
}

// State returns the current breaker state.
func (cb *CircuitBreaker) State() CircuitState {
	return CircuitState(atomic.LoadInt64(&cb.state))
}

func (cb *CircuitBreaker) resetCounters() {
	atomic.StoreInt64(&cb.failures, 0)
	atomic.StoreInt64(&cb.successes, 0)
}
