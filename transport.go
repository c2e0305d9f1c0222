package mokka

import (
	"net/http"
	"time"
)

// ConnectionPoolConfig tunes the connection pool of the transport built by
// WithTransportConfig. Zero values fall through to net/http behavior.
type ConnectionPoolConfig struct {
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	MaxConnsPerHost     int
	IdleConnTimeout     time.Duration
}

// DefaultConnectionPoolConfig returns pooling values suited to a client that
// hits a small set of hosts repeatedly.
func DefaultConnectionPoolConfig() ConnectionPoolConfig {
	return ConnectionPoolConfig{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     0,
		IdleConnTimeout:     90 * time.Second,
	}
}

// newTransport builds an *http.Transport from cfg, cloning the package
// default so proxy and dialer behavior stay aligned with net/http.
func newTransport(cfg ConnectionPoolConfig) *http.Transport {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConns = cfg.MaxIdleConns
	transport.MaxIdleConnsPerHost = cfg.MaxIdleConnsPerHost
	transport.MaxConnsPerHost = cfg.MaxConnsPerHost
	if cfg.IdleConnTimeout > 0 {
		transport.IdleConnTimeout = cfg.IdleConnTimeout
	}
	return transport
}
