package backoff

import (
	"math/rand"
	"time"
)

// Strategy defines the interface for backoff calculation algorithms.
// Attempt numbers are 1-based: attempt 1 is the first call.
type Strategy interface {
	// Calculate returns the backoff duration for the given attempt number and parameters.
	Calculate(attempt int, initialBackoff, maxBackoff time.Duration, multiplier, jitter float64) time.Duration
}

// FixedStrategy returns the initial backoff for every attempt, ignoring
// multiplier and jitter.
type FixedStrategy struct{}

// Calculate implements the Strategy interface for a constant delay.
func (s FixedStrategy) Calculate(attempt int, initialBackoff, maxBackoff time.Duration, multiplier, jitter float64) time.Duration {
	if initialBackoff < 0 {
		return 0
	}
	if maxBackoff > 0 && initialBackoff > maxBackoff {
		return maxBackoff
	}
	return initialBackoff
}

// ExponentialJitterStrategy implements exponential backoff with symmetric jitter.
// The raw delay is min(maxBackoff, initialBackoff * multiplier^(attempt-1)), then
// perturbed uniformly within ±jitter of that value and clamped non-negative.
type ExponentialJitterStrategy struct{}

// Calculate implements the Strategy interface for exponential backoff with jitter.
func (s ExponentialJitterStrategy) Calculate(attempt int, initialBackoff, maxBackoff time.Duration, multiplier, jitter float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	// Prevent overflow by limiting the exponent
	exponent := attempt - 1
	if exponent > 30 {
		exponent = 30
	}

	backoff := time.Duration(float64(initialBackoff) * pow(multiplier, exponent))
	if backoff < 0 || backoff > maxBackoff {
		backoff = maxBackoff
	}

	jitter = clampJitter(jitter)
	if jitter > 0 {
		// Uniform in [-jitter, +jitter] of the computed value.
		perturbation := time.Duration(float64(backoff) * jitter * (2*rand.Float64() - 1))
		backoff += perturbation
		if backoff < 0 {
			backoff = 0
		}
	}
	return backoff
}

// DecorrelatedJitterStrategy implements decorrelated jitter as per AWS paper.
// This provides smoother tail latencies compared to exponential jitter.
type DecorrelatedJitterStrategy struct{}

// Calculate implements the Strategy interface for decorrelated jitter.
func (s DecorrelatedJitterStrategy) Calculate(attempt int, initialBackoff, maxBackoff time.Duration, multiplier, jitter float64) time.Duration {
	// Decorrelated jitter as per AWS: https://aws.amazon.com/blogs/architecture/exponential-backoff-and-jitter/
	// Stateless variant: random_between(base, min(cap, base * 3^(attempt-1)))

	if attempt <= 1 {
		return initialBackoff
	}

	exponent := attempt - 1
	if exponent > 10 {
		exponent = 10
	}

	base := float64(initialBackoff)
	upper := base * pow(3.0, exponent)

	maxBackoffFloat := float64(maxBackoff)
	if upper > maxBackoffFloat || upper < 0 {
		upper = maxBackoffFloat
	}
	if upper < base {
		upper = base
	}

	delay := base + rand.Float64()*(upper-base)

	result := time.Duration(delay)
	if result < 0 || result > maxBackoff {
		result = maxBackoff
	}

	return result
}

// clampJitter ensures jitter is within valid bounds [0, 1].
func clampJitter(jitter float64) float64 {
	if jitter < 0 {
		return 0
	}
	if jitter > 1 {
		return 1
	}
	return jitter
}

// pow calculates base^exponent using integer exponentiation.
func pow(base float64, exponent int) float64 {
	result := 1.0
	for i := 0; i < exponent; i++ {
		result *= base
	}
	return result
}

// Pow is a public version of pow for callers outside this package.
func Pow(base float64, exponent int) float64 {
	return pow(base, exponent)
}
