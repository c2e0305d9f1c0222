package mokka

import (
	"net/http"
	"sync"
)

// RateLimiterRegistry routes each request to a limiter selected by a key
// function, falling back to a shared limiter for keys with no registration.
// It lets hot hosts or routes get their own budget without throttling the
// rest of the client.
type RateLimiterRegistry struct {
	mu       sync.RWMutex
	limiters map[string]Limiter
	keyFunc  KeyFunc
	fallback Limiter
}

// NewRateLimiterRegistry creates a registry using keyFunc to derive limiter
// keys. fallback may be nil, in which case unregistered keys are unlimited.
func NewRateLimiterRegistry(keyFunc KeyFunc, fallback Limiter) *RateLimiterRegistry {
	return &RateLimiterRegistry{
		limiters: make(map[string]Limiter),
		keyFunc:  keyFunc,
		fallback: fallback,
	}
}

// RegisterLimiter binds limiter to key, replacing any previous binding.
func (r *RateLimiterRegistry) RegisterLimiter(key string, limiter Limiter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limiters[key] = limiter
}

// GetLimiter resolves the limiter for req along with the key it resolved
// under. Requests with no key function or no registered limiter fall back
// to the shared limiter.
func (r *RateLimiterRegistry) GetLimiter(req *http.Request) (Limiter, string) {
	if r.keyFunc == nil {
		return r.fallback, "default"
	}

	key := r.keyFunc(req)

	r.mu.RLock()
	limiter, ok := r.limiters[key]
	r.mu.RUnlock()

	if ok {
		return limiter, key
	}
	if r.fallback != nil {
		return r.fallback, "default"
	}
	return nil, key
}

// Allow reports whether req may proceed under its resolved limiter, along
// with the key used. Requests that resolve to no limiter are admitted.
func (r *RateLimiterRegistry) Allow(req *http.Request) (bool, string) {
	limiter, key := r.GetLimiter(req)
	if limiter == nil {
		return true, key
	}
	return limiter.Allow(), key
}

// DefaultHostKeyFunc keys limiters by the request host.
func DefaultHostKeyFunc(req *http.Request) string {
	if req.URL != nil && req.URL.Host != "" {
		return "host:" + req.URL.Host
	}
	if req.Host != "" {
		return "host:" + req.Host
	}
	return "host:unknown"
}

// DefaultRouteKeyFunc keys limiters by request method and path.
func DefaultRouteKeyFunc(req *http.Request) string {
	return "route:" + req.Method + ":" + req.URL.Path
}

// DefaultHostRouteKeyFunc keys limiters by host, method and path combined.
func DefaultHostRouteKeyFunc(req *http.Request) string {
	host := ""
	if req.URL != nil {
		host = req.URL.Host
	}
	if host == "" {
		host = req.Host
	}
	if host == "" {
		host = "unknown"
	}
	return "host_route:" + host + ":" + req.Method + ":" + req.URL.Path
}
