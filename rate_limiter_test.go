package mokka

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestRateLimiterBurst(t *testing.T) {
	rl := NewRateLimiter(3, time.Hour)

	for i := 0; i < 3; i++ {
		if !rl.Allow() {
			t.Fatalf("request %d denied within burst", i)
		}
	}
	if rl.Allow() {
		t.Error("request admitted after burst exhausted")
	}
}

func TestRateLimiterRefill(t *testing.T) {
	rl := NewRateLimiter(1, 10*time.Millisecond)

	if !rl.Allow() {
		t.Fatal("first request denied")
	}
	if rl.Allow() {
		t.Fatal("second request admitted before refill")
	}

	time.Sleep(25 * time.Millisecond)
	if !rl.Allow() {
		t.Error("request denied after refill interval")
	}
}

func TestRateLimiterZeroRefillIsUnlimited(t *testing.T) {
	rl := NewRateLimiter(1, 0)

	for i := 0; i < 100; i++ {
		if !rl.Allow() {
			t.Fatalf("request %d denied with limiting disabled", i)
		}
	}
}

func TestRateLimiterClampsTokens(t *testing.T) {
	rl := NewRateLimiter(0, time.Second)

	if !rl.Allow() {
		t.Error("limiter with clamped burst should admit one request")
	}
}

func TestRateLimiterTokens(t *testing.T) {
	rl := NewRateLimiter(5, time.Hour)

	if got := rl.Tokens(); got != 5 {
		t.Errorf("Tokens = %d, want 5", got)
	}
	rl.Allow()
	rl.Allow()
	if got := rl.Tokens(); got != 3 {
		t.Errorf("Tokens after two requests = %d, want 3", got)
	}
}

func TestRateLimiterConcurrentAccess(t *testing.T) {
	rl := NewRateLimiter(50, time.Hour)

	var admitted int64
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				if rl.Allow() {
					atomic.AddInt64(&admitted, 1)
				}
			}
		}()
	}
	wg.Wait()

	if admitted != 50 {
		t.Errorf("admitted = %d, want exactly the burst of 50", admitted)
	}
}
