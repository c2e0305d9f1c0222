package mokka

import (
	"github.com/google/uuid"
)

// DebugConfig selects which pipeline stages emit debug logs. All flags
// require Enabled and a Logger on the client to take effect.
type DebugConfig struct {
	Enabled      bool
	LogRequests  bool
	LogRetries   bool
	LogCache     bool
	LogCircuit   bool
	LogRateLimit bool
	LogAsync     bool
	RequestIDGen func() string
}

// DefaultDebugConfig returns a config with every stage enabled once debug
// logging itself is switched on, and UUID request IDs.
func DefaultDebugConfig() *DebugConfig {
	return &DebugConfig{
		Enabled:      false,
		LogRequests:  true,
		LogRetries:   true,
		LogCache:     true,
		LogCircuit:   true,
		LogRateLimit: true,
		LogAsync:     true,
		RequestIDGen: DefaultRequestIDGenerator,
	}
}

// DefaultRequestIDGenerator returns a random UUID string.
func DefaultRequestIDGenerator() string {
	return uuid.NewString()
}

// requestID generates an ID when debug logging is active, otherwise "".
func (c *Client) requestID() string {
	if c.debug != nil && c.debug.Enabled && c.debug.RequestIDGen != nil {
		return c.debug.RequestIDGen()
	}
	return ""
}

// debugOn reports whether debug logging can produce output at all.
func (c *Client) debugOn() bool {
	return c.debug != nil && c.debug.Enabled && c.logger != nil
}

func (c *Client) logRequests() bool  { return c.debugOn() && c.debug.LogRequests }
func (c *Client) logRetries() bool   { return c.debugOn() && c.debug.LogRetries }
func (c *Client) logCache() bool     { return c.debugOn() && c.debug.LogCache }
func (c *Client) logCircuit() bool   { return c.debugOn() && c.debug.LogCircuit }
func (c *Client) logRateLimit() bool { return c.debugOn() && c.debug.LogRateLimit }
func (c *Client) logAsync() bool     { return c.debugOn() && c.debug.LogAsync }
