package singleflight

import (
	"context"
	"sync"
)

// Group coalesces concurrent executions that share a key. The first caller
// for a key owns the execution; later callers for the same key wait for the
// owner's result instead of starting their own. The zero value is ready to
// use.
type Group struct {
	mu sync.Mutex
	m  map[string]*Call
}

// Call is one in-flight execution registered under a key.
type Call struct {
	done chan struct{}
	val  interface{}
	err  error
}

// New creates a new singleflight Group.
func New() *Group {
	return &Group{
		m: make(map[string]*Call),
	}
}

// Acquire returns the call registered under key and whether the caller owns
// it. The owner runs the work and must publish the result with Complete and
// then drop the key with Forget; every other caller uses Wait.
func (g *Group) Acquire(key string) (*Call, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.m == nil {
		g.m = make(map[string]*Call)
	}
	if c, ok := g.m[key]; ok {
		return c, false
	}

	c := &Call{done: make(chan struct{})}
	g.m[key] = c
	return c, true
}

// Forget removes key from the group so later callers start a fresh call.
// Only the call passed in is removed; a newer call under the same key stays.
func (g *Group) Forget(key string, c *Call) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.m[key] == c {
		delete(g.m, key)
	}
}

// Complete publishes the owner's result and releases all waiters.
// It must be called exactly once per call.
func (c *Call) Complete(val interface{}, err error) {
	c.val = val
	c.err = err
	close(c.done)
}

// Wait blocks until the owner completes the call or ctx is done. Waiters
// that give up do not affect the owner or the other waiters.
func (c *Call) Wait(ctx context.Context) (interface{}, error) {
	select {
	case <-c.done:
		return c.val, c.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
