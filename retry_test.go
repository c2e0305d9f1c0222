package mokka

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

func TestRetryOnTransportErrors(t *testing.T) {
	predicate := RetryOnTransportErrors()

	tests := []struct {
		name string
		resp *http.Response
		err  error
		want bool
	}{
		{"network error", nil, errors.New("connection refused"), true},
		{"timeout", nil, context.DeadlineExceeded, true},
		{"caller cancellation", nil, context.Canceled, false},
		{"no error", &http.Response{StatusCode: 500}, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := predicate(tt.resp, tt.err); got != tt.want {
				t.Errorf("predicate = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRetryOnServerErrors(t *testing.T) {
	predicate := RetryOnServerErrors()

	tests := []struct {
		status int
		want   bool
	}{
		{200, false},
		{404, false},
		{429, true},
		{500, true},
		{502, true},
		{503, true},
	}

	for _, tt := range tests {
		resp := &http.Response{StatusCode: tt.status}
		if got := predicate(resp, nil); got != tt.want {
			t.Errorf("predicate(status %d) = %v, want %v", tt.status, got, tt.want)
		}
	}

	if predicate(nil, errors.New("boom")) {
		t.Error("predicate matched a transport error")
	}
}

func TestRetryOnStatus(t *testing.T) {
	predicate := RetryOnStatus(http.StatusBadGateway, http.StatusServiceUnavailable)

	if !predicate(&http.Response{StatusCode: 502}, nil) {
		t.Error("expected 502 to match")
	}
	if predicate(&http.Response{StatusCode: 500}, nil) {
		t.Error("expected 500 not to match")
	}
	if predicate(nil, errors.New("boom")) {
		t.Error("expected transport error not to match")
	}
}

func TestRetryPolicyShouldRetryAnyPredicate(t *testing.T) {
	policy := RetryPolicy{
		Predicates: []RetryPredicate{
			RetryOnStatus(418),
			RetryOnTransportErrors(),
		},
	}

	if !policy.shouldRetry(&http.Response{StatusCode: 418}, nil) {
		t.Error("expected first predicate to admit retry")
	}
	if !policy.shouldRetry(nil, errors.New("reset")) {
		t.Error("expected second predicate to admit retry")
	}
	if policy.shouldRetry(&http.Response{StatusCode: 500}, nil) {
		t.Error("expected no predicate to match 500")
	}
}

func TestRetryPolicyNoPredicatesNeverRetries(t *testing.T) {
	policy := RetryPolicy{}

	if policy.shouldRetry(nil, errors.New("boom")) {
		t.Error("empty predicate set must never retry")
	}
}

func TestRetryPolicyDelayForUsesBackoff(t *testing.T) {
	policy := RetryPolicy{Backoff: NewFixedBackoff(123 * time.Millisecond)}

	if got := policy.delayFor(nil, 1); got != 123*time.Millisecond {
		t.Errorf("delayFor = %v, want 123ms", got)
	}
}

func TestRetryPolicyDelayForRetryAfterOverride(t *testing.T) {
	policy := RetryPolicy{Backoff: NewFixedBackoff(time.Millisecond)}

	resp := &http.Response{
		StatusCode: http.StatusTooManyRequests,
		Header:     http.Header{"Retry-After": []string{"2"}},
	}
	if got := policy.delayFor(resp, 1); got != 2*time.Second {
		t.Errorf("delayFor = %v, want Retry-After override of 2s", got)
	}

	// Retry-After only applies to 429 and 503.
	resp = &http.Response{
		StatusCode: http.StatusInternalServerError,
		Header:     http.Header{"Retry-After": []string{"2"}},
	}
	if got := policy.delayFor(resp, 1); got != time.Millisecond {
		t.Errorf("delayFor = %v, want backoff delay for 500", got)
	}
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{"empty", "", 0},
		{"seconds", "5", 5 * time.Second},
		{"zero seconds", "0", 0},
		{"negative", "-3", 0},
		{"capped at an hour", "7200", time.Hour},
		{"garbage", "soon", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseRetryAfter(tt.value); got != tt.want {
				t.Errorf("parseRetryAfter(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestParseRetryAfterHTTPDate(t *testing.T) {
	value := time.Now().Add(30 * time.Second).UTC().Format(http.TimeFormat)
	got := parseRetryAfter(value)
	if got <= 0 || got > 30*time.Second {
		t.Errorf("parseRetryAfter(date) = %v, want a delay up to 30s", got)
	}

	past := time.Now().Add(-time.Minute).UTC().Format(http.TimeFormat)
	if got := parseRetryAfter(past); got != 0 {
		t.Errorf("parseRetryAfter(past date) = %v, want 0", got)
	}
}

func TestDefaultIsIdempotent(t *testing.T) {
	idempotent := []string{"GET", "HEAD", "PUT", "DELETE", "OPTIONS"}
	for _, method := range idempotent {
		if !DefaultIsIdempotent(method) {
			t.Errorf("DefaultIsIdempotent(%s) = false, want true", method)
		}
	}
	for _, method := range []string{"POST", "PATCH", "CONNECT"} {
		if DefaultIsIdempotent(method) {
			t.Errorf("DefaultIsIdempotent(%s) = true, want false", method)
		}
	}
}

func TestSleepBackoffCompletes(t *testing.T) {
	start := time.Now()
	if err := sleepBackoff(context.Background(), 20*time.Millisecond); err != nil {
		t.Fatalf("sleepBackoff returned %v", err)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("sleepBackoff returned after %v, want at least 20ms", elapsed)
	}
}

func TestSleepBackoffCanceledPromptly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- sleepBackoff(ctx, 10*time.Second)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("sleepBackoff returned %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("sleepBackoff did not observe cancellation promptly")
	}
}

func TestSleepBackoffZeroDelay(t *testing.T) {
	if err := sleepBackoff(context.Background(), 0); err != nil {
		t.Errorf("sleepBackoff(0) = %v, want nil", err)
	}
}

func TestDefaultRetryPolicy(t *testing.T) {
	policy := DefaultRetryPolicy()

	if policy.MaxAttempts != DefaultMaxAttempts {
		t.Errorf("MaxAttempts = %d, want %d", policy.MaxAttempts, DefaultMaxAttempts)
	}
	if policy.Backoff == nil {
		t.Fatal("Backoff is nil")
	}
	if len(policy.Predicates) != 2 {
		t.Errorf("Predicates = %d, want 2", len(policy.Predicates))
	}
	if !policy.shouldRetry(&http.Response{StatusCode: 503}, nil) {
		t.Error("default policy must retry 503")
	}
	if policy.shouldRetry(&http.Response{StatusCode: 404}, nil) {
		t.Error("default policy must not retry 404")
	}
}
