package mokka

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequestInterceptorsApplyInOrder(t *testing.T) {
	var seen string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get("X-Trace")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	mark := func(label string) RequestInterceptor {
		return func(req *http.Request) (*http.Request, error) {
			clone := req.Clone(req.Context())
			clone.Header.Set("X-Trace", req.Header.Get("X-Trace")+label)
			return clone, nil
		}
	}

	client := New(WithRequestInterceptors(mark("first"), mark("second")))

	resp, err := client.Get(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	resp.Body.Close()

	// The request seen by dispatch is I2(I1(original)).
	if seen != "firstsecond" {
		t.Errorf("X-Trace = %q, want %q", seen, "firstsecond")
	}
}

func TestRequestInterceptorAbortSkipsDispatch(t *testing.T) {
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	}))
	defer server.Close()

	boom := errors.New("not today")
	client := New(
		WithCache(DefaultCacheTTL),
		WithRequestInterceptors(func(req *http.Request) (*http.Request, error) {
			return nil, boom
		}),
	)

	_, err := client.Get(context.Background(), server.URL)
	if err == nil {
		t.Fatal("expected an error")
	}

	var clientErr *ClientError
	if !errors.As(err, &clientErr) || clientErr.Type != ErrorTypeInterceptorAbort {
		t.Errorf("error = %v, want ErrorTypeInterceptorAbort", err)
	}
	if !errors.Is(err, boom) {
		t.Error("underlying interceptor error must be preserved")
	}
	if hits != 0 {
		t.Errorf("transport hits = %d, want 0 after abort", hits)
	}
	// An aborted request must not record a breaker outcome.
	if client.circuitBreaker.failures != 0 {
		t.Errorf("breaker failures = %d, want 0", client.circuitBreaker.failures)
	}
	if client.cache.Len() != 0 {
		t.Errorf("cache entries = %d, want 0 after abort", client.cache.Len())
	}
}

func TestResponseInterceptorsApplyInOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	mark := func(label string) ResponseInterceptor {
		return func(resp *http.Response) (*http.Response, error) {
			resp.Header.Set("X-Trace", resp.Header.Get("X-Trace")+label)
			return resp, nil
		}
	}

	client := New(WithResponseInterceptors(mark("a"), mark("b")))

	resp, err := client.Get(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("X-Trace"); got != "ab" {
		t.Errorf("X-Trace = %q, want %q", got, "ab")
	}
}

func TestResponseInterceptorsRunOnCacheHit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "payload")
	}))
	defer server.Close()

	calls := 0
	client := New(
		WithCache(DefaultCacheTTL),
		WithResponseInterceptors(func(resp *http.Response) (*http.Response, error) {
			calls++
			return resp, nil
		}),
	)

	for i := 0; i < 2; i++ {
		resp, err := client.Get(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("Get %d failed: %v", i, err)
		}
		resp.Body.Close()
	}

	// Once for the fresh dispatch, once for the cache hit.
	if calls != 2 {
		t.Errorf("response interceptor calls = %d, want 2", calls)
	}
}

func TestSetHeadersLeavesOriginalUntouched(t *testing.T) {
	interceptor := SetHeaders(map[string]string{"X-Auth": "token"})

	orig := httptest.NewRequest("GET", "http://example.com/", nil)
	clone, err := interceptor(orig)
	if err != nil {
		t.Fatalf("interceptor failed: %v", err)
	}

	if clone.Header.Get("X-Auth") != "token" {
		t.Error("header not set on the clone")
	}
	if orig.Header.Get("X-Auth") != "" {
		t.Error("original request was mutated")
	}
}

func TestPromoteHTTPErrorsDefault(t *testing.T) {
	interceptor := PromoteHTTPErrors()

	resp := &http.Response{StatusCode: http.StatusNotFound, Header: http.Header{}}
	got, err := interceptor(resp)
	if got != resp {
		t.Error("response must be returned alongside the error")
	}

	var clientErr *ClientError
	if !errors.As(err, &clientErr) {
		t.Fatalf("error = %v, want *ClientError", err)
	}
	if clientErr.Type != ErrorTypeStatus {
		t.Errorf("Type = %q, want %q", clientErr.Type, ErrorTypeStatus)
	}
	if clientErr.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", clientErr.StatusCode)
	}

	if _, err := interceptor(&http.Response{StatusCode: http.StatusOK}); err != nil {
		t.Errorf("2xx promoted to error: %v", err)
	}
}

func TestPromoteHTTPErrorsThroughPipeline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := New(WithResponseInterceptors(PromoteHTTPErrors()))

	// The pipeline releases the promoted response; the caller gets only
	// the error.
	resp, err := client.Get(context.Background(), server.URL)
	if resp != nil {
		t.Error("response must be nil when the status is promoted")
	}

	var clientErr *ClientError
	if !errors.As(err, &clientErr) {
		t.Fatalf("error = %v, want *ClientError", err)
	}
	if clientErr.Type != ErrorTypeStatus || clientErr.StatusCode != http.StatusNotFound {
		t.Errorf("Type = %q StatusCode = %d, want status promotion of 404", clientErr.Type, clientErr.StatusCode)
	}
}

func TestPromoteHTTPErrorsSelectedCodes(t *testing.T) {
	interceptor := PromoteHTTPErrors(http.StatusBadGateway)

	if _, err := interceptor(&http.Response{StatusCode: http.StatusNotFound}); err != nil {
		t.Errorf("404 promoted despite not being selected: %v", err)
	}
	if _, err := interceptor(&http.Response{StatusCode: http.StatusBadGateway}); err == nil {
		t.Error("502 not promoted")
	}
}
