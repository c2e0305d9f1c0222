package backoff

import (
	"testing"
	"time"
)

func TestFixedStrategy(t *testing.T) {
	s := FixedStrategy{}

	for attempt := 1; attempt <= 5; attempt++ {
		got := s.Calculate(attempt, 250*time.Millisecond, 10*time.Second, 2.0, 0.5)
		if got != 250*time.Millisecond {
			t.Errorf("attempt %d: delay = %v, want 250ms", attempt, got)
		}
	}
}

func TestFixedStrategyBounds(t *testing.T) {
	s := FixedStrategy{}

	if got := s.Calculate(1, -time.Second, 10*time.Second, 2.0, 0); got != 0 {
		t.Errorf("negative initial backoff: delay = %v, want 0", got)
	}
	if got := s.Calculate(1, 20*time.Second, 10*time.Second, 2.0, 0); got != 10*time.Second {
		t.Errorf("initial above cap: delay = %v, want 10s", got)
	}
}

func TestExponentialJitterStrategyNoJitter(t *testing.T) {
	s := ExponentialJitterStrategy{}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{10, time.Second}, // capped
	}

	for _, tt := range tests {
		got := s.Calculate(tt.attempt, 100*time.Millisecond, time.Second, 2.0, 0)
		if got != tt.want {
			t.Errorf("attempt %d: delay = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestExponentialJitterStrategyJitterBounds(t *testing.T) {
	s := ExponentialJitterStrategy{}

	// Attempt 3 without jitter is 400ms; ±50% keeps it in [200ms, 600ms].
	for i := 0; i < 200; i++ {
		got := s.Calculate(3, 100*time.Millisecond, time.Second, 2.0, 0.5)
		if got < 200*time.Millisecond || got > 600*time.Millisecond {
			t.Fatalf("delay %v outside [200ms, 600ms]", got)
		}
	}
}

func TestExponentialJitterStrategyClampsInputs(t *testing.T) {
	s := ExponentialJitterStrategy{}

	// Attempt below 1 behaves like the first attempt.
	if got := s.Calculate(0, 100*time.Millisecond, time.Second, 2.0, 0); got != 100*time.Millisecond {
		t.Errorf("attempt 0: delay = %v, want 100ms", got)
	}

	// Jitter above 1 is clamped, so the delay stays non-negative.
	for i := 0; i < 100; i++ {
		if got := s.Calculate(2, 100*time.Millisecond, time.Second, 2.0, 5.0); got < 0 {
			t.Fatalf("negative delay %v", got)
		}
	}

	// Huge attempt numbers do not overflow past the cap.
	if got := s.Calculate(1000, 100*time.Millisecond, time.Second, 2.0, 0); got != time.Second {
		t.Errorf("attempt 1000: delay = %v, want the 1s cap", got)
	}
}

func TestDecorrelatedJitterStrategy(t *testing.T) {
	s := DecorrelatedJitterStrategy{}

	if got := s.Calculate(1, 100*time.Millisecond, time.Second, 2.0, 0); got != 100*time.Millisecond {
		t.Errorf("attempt 1: delay = %v, want the base 100ms", got)
	}

	// Attempt 2 draws uniformly from [base, min(cap, base*3)] = [100ms, 300ms].
	for i := 0; i < 200; i++ {
		got := s.Calculate(2, 100*time.Millisecond, time.Second, 2.0, 0)
		if got < 100*time.Millisecond || got > 300*time.Millisecond {
			t.Fatalf("attempt 2: delay %v outside [100ms, 300ms]", got)
		}
	}

	// Deep attempts stay within [base, cap].
	for i := 0; i < 200; i++ {
		got := s.Calculate(8, 100*time.Millisecond, time.Second, 2.0, 0)
		if got < 100*time.Millisecond || got > time.Second {
			t.Fatalf("attempt 8: delay %v outside [100ms, 1s]", got)
		}
	}
}

func TestPow(t *testing.T) {
	tests := []struct {
		base     float64
		exponent int
		want     float64
	}{
		{2.0, 0, 1.0},
		{2.0, 1, 2.0},
		{2.0, 5, 32.0},
		{3.0, 3, 27.0},
		{1.5, 2, 2.25},
	}

	for _, tt := range tests {
		if got := Pow(tt.base, tt.exponent); got != tt.want {
			t.Errorf("Pow(%v, %d) = %v, want %v", tt.base, tt.exponent, got, tt.want)
		}
	}
}
