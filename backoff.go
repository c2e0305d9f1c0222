package mokka

import (
	"time"

	internalbackoff "github.com/guptavishal-xm1/mokka/internal/backoff"
)

// BackoffStrategy computes the delay scheduled after a failed attempt.
// Attempt numbers are 1-based; implementations must be pure and safe for
// concurrent use. Attempts below 1 are treated as 1.
type BackoffStrategy interface {
	DelayFor(attempt int) time.Duration
}

// FixedBackoff returns the same delay for every attempt.
type FixedBackoff struct {
	delay time.Duration
}

// NewFixedBackoff creates a constant-delay strategy. Negative delays are
// treated as zero.
func NewFixedBackoff(delay time.Duration) *FixedBackoff {
	if delay < 0 {
		delay = 0
	}
	return &FixedBackoff{delay: delay}
}

// DelayFor implements BackoffStrategy.
func (b *FixedBackoff) DelayFor(attempt int) time.Duration {
	return b.delay
}

// ExponentialBackoff grows the delay geometrically per attempt:
// min(maxDelay, initialDelay * multiplier^(attempt-1)), perturbed uniformly
// within ±jitterFraction of the computed value and clamped non-negative.
type ExponentialBackoff struct {
	initialDelay   time.Duration
	maxDelay       time.Duration
	multiplier     float64
	jitterFraction float64
	calculator     *internalbackoff.Calculator
}

// NewExponentialBackoff creates an exponential strategy. jitterFraction is
// clamped to [0, 1]; 0 disables jitter entirely.
func NewExponentialBackoff(initialDelay, maxDelay time.Duration, multiplier, jitterFraction float64) *ExponentialBackoff {
	return &ExponentialBackoff{
		initialDelay:   initialDelay,
		maxDelay:       maxDelay,
		multiplier:     multiplier,
		jitterFraction: jitterFraction,
		calculator:     internalbackoff.GetExponentialJitterCalculator(),
	}
}

// DelayFor implements BackoffStrategy.
func (b *ExponentialBackoff) DelayFor(attempt int) time.Duration {
	return b.calculator.Calculate(attempt, b.initialDelay, b.maxDelay, b.multiplier, b.jitterFraction)
}

// DecorrelatedBackoff implements AWS-style decorrelated jitter. Delays are
// sampled from [initialDelay, min(maxDelay, initialDelay*3^(attempt-1))],
// which spreads retry storms better than symmetric jitter.
type DecorrelatedBackoff struct {
	initialDelay time.Duration
	maxDelay     time.Duration
	calculator   *internalbackoff.Calculator
}

// NewDecorrelatedBackoff creates a decorrelated jitter strategy.
func NewDecorrelatedBackoff(initialDelay, maxDelay time.Duration) *DecorrelatedBackoff {
	return &DecorrelatedBackoff{
		initialDelay: initialDelay,
		maxDelay:     maxDelay,
		calculator:   internalbackoff.GetDecorrelatedJitterCalculator(),
	}
}

// DelayFor implements BackoffStrategy.
func (b *DecorrelatedBackoff) DelayFor(attempt int) time.Duration {
	return b.calculator.Calculate(attempt, b.initialDelay, b.maxDelay, 3.0, 0)
}
