package mokka

import (
	"net/http"
	"testing"
	"time"
)

func newRegistryRequest(t *testing.T, method, url string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}
	return req
}

func TestRegistryRoutesToRegisteredLimiter(t *testing.T) {
	fallback := NewRateLimiter(100, time.Hour)
	registry := NewRateLimiterRegistry(DefaultHostKeyFunc, fallback)

	hot := NewRateLimiter(1, time.Hour)
	registry.RegisterLimiter("host:api.example.com", hot)

	req := newRegistryRequest(t, http.MethodGet, "https://api.example.com/v1/users")

	allowed, key := registry.Allow(req)
	if !allowed || key != "host:api.example.com" {
		t.Fatalf("first request: allowed=%v key=%q", allowed, key)
	}
	if allowed, _ := registry.Allow(req); allowed {
		t.Error("dedicated limiter exhausted but request admitted")
	}

	// Other hosts keep using the fallback budget.
	other := newRegistryRequest(t, http.MethodGet, "https://other.example.com/v1/users")
	if allowed, key := registry.Allow(other); !allowed || key != "default" {
		t.Errorf("fallback request: allowed=%v key=%q", allowed, key)
	}
}

func TestRegistryNilFallbackAdmitsUnregistered(t *testing.T) {
	registry := NewRateLimiterRegistry(DefaultHostKeyFunc, nil)

	req := newRegistryRequest(t, http.MethodGet, "https://api.example.com/v1/users")
	allowed, key := registry.Allow(req)
	if !allowed {
		t.Error("unregistered key with no fallback should be admitted")
	}
	if key != "host:api.example.com" {
		t.Errorf("key = %q", key)
	}
}

func TestRegistryNilKeyFuncUsesFallback(t *testing.T) {
	fallback := NewRateLimiter(1, time.Hour)
	registry := NewRateLimiterRegistry(nil, fallback)

	req := newRegistryRequest(t, http.MethodGet, "https://api.example.com/v1/users")
	if allowed, key := registry.Allow(req); !allowed || key != "default" {
		t.Errorf("allowed=%v key=%q", allowed, key)
	}
	if allowed, _ := registry.Allow(req); allowed {
		t.Error("fallback exhausted but request admitted")
	}
}

func TestRegistryReplaceLimiter(t *testing.T) {
	registry := NewRateLimiterRegistry(DefaultHostKeyFunc, nil)
	registry.RegisterLimiter("host:api.example.com", NewRateLimiter(1, time.Hour))

	req := newRegistryRequest(t, http.MethodGet, "https://api.example.com/v1/users")
	registry.Allow(req)
	if allowed, _ := registry.Allow(req); allowed {
		t.Fatal("original limiter should be exhausted")
	}

	registry.RegisterLimiter("host:api.example.com", NewRateLimiter(1, time.Hour))
	if allowed, _ := registry.Allow(req); !allowed {
		t.Error("replacement limiter should admit")
	}
}

func TestDefaultKeyFuncs(t *testing.T) {
	req := newRegistryRequest(t, http.MethodPost, "https://api.example.com/v1/users")

	tests := []struct {
		name string
		fn   KeyFunc
		want string
	}{
		{"host", DefaultHostKeyFunc, "host:api.example.com"},
		{"route", DefaultRouteKeyFunc, "route:POST:/v1/users"},
		{"host_route", DefaultHostRouteKeyFunc, "host_route:api.example.com:POST:/v1/users"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(req); got != tt.want {
				t.Errorf("key = %q, want %q", got, tt.want)
			}
		})
	}
}
