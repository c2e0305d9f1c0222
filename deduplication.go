package mokka

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"hash/fnv"
	"io"
	"net/http"

	"github.com/guptavishal-xm1/mokka/internal/singleflight"
)

// DeduplicationTracker coalesces identical in-flight requests so only one
// owner touches the network while the remaining callers wait for its result.
type DeduplicationTracker struct {
	group singleflight.Group
}

// DeduplicationEntry is one caller's handle on a coalesced request.
type DeduplicationEntry struct {
	key  string
	call *singleflight.Call
}

// NewDeduplicationTracker returns an in-memory deduplication tracker.
func NewDeduplicationTracker() *DeduplicationTracker {
	return &DeduplicationTracker{}
}

// GetOrCreateEntry joins the in-flight request under key, creating it when
// absent. The boolean reports whether the caller is the owner and must
// execute the request and call Complete.
func (dt *DeduplicationTracker) GetOrCreateEntry(key string) (*DeduplicationEntry, bool) {
	call, owner := dt.group.Acquire(key)
	return &DeduplicationEntry{key: key, call: call}, owner
}

// dedupResult is the published outcome of a flight. The body bytes are kept
// separately so every consumer gets its own reader.
type dedupResult struct {
	resp *http.Response
	body []byte
}

// Complete publishes the owner's result to all waiters and retires the key,
// so later requests start a fresh flight. The response body is read into
// memory first; the returned response replaces the owner's, backed by its
// own reader, so the owner and the waiters never share one body stream.
func (dt *DeduplicationTracker) Complete(entry *DeduplicationEntry, resp *http.Response, err error) (*http.Response, error) {
	result := &dedupResult{resp: resp}
	if resp != nil && resp.Body != nil {
		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil && err == nil {
			result.resp = nil
			resp = nil
			err = readErr
		} else {
			result.body = body
			resp.Body = io.NopCloser(bytes.NewReader(body))
		}
	}

	entry.call.Complete(result, err)
	dt.group.Forget(entry.key, entry.call)
	return resp, err
}

// Wait blocks until the owning request completes or ctx is done. Each
// waiter receives its own copy of the response with an independent body
// reader.
func (entry *DeduplicationEntry) Wait(ctx context.Context) (*http.Response, error) {
	val, err := entry.call.Wait(ctx)
	result, ok := val.(*dedupResult)
	if !ok || result.resp == nil {
		return nil, err
	}

	clone := *result.resp
	clone.Header = result.resp.Header.Clone()
	clone.Body = io.NopCloser(bytes.NewReader(result.body))
	return &clone, err
}

// DeduplicationKeyFunc builds a key identifying requests that may share one
// flight.
type DeduplicationKeyFunc func(*http.Request) string

// DefaultDeduplicationKeyFunc keys a request by method and URL, mixing in a
// body hash for mutating verbs when the body is replayable via GetBody.
func DefaultDeduplicationKeyFunc(req *http.Request) string {
	h := fnv.New64a()
	h.Write([]byte(req.Method))
	h.Write([]byte(req.URL.String()))

	if req.Body != nil && (req.Method == http.MethodPost || req.Method == http.MethodPut || req.Method == http.MethodPatch) {
		bodyHash := sha256.New()
		if req.GetBody != nil {
			if body, err := req.GetBody(); err == nil {
				_, _ = io.Copy(bodyHash, body)
				_ = body.Close()
			}
		}
		h.Write(bodyHash.Sum(nil))
	}

	return fmt.Sprintf("%x", h.Sum64())
}

// DeduplicationCondition decides whether a request is eligible for
// deduplication.
type DeduplicationCondition func(req *http.Request) bool

// DefaultDeduplicationCondition limits deduplication to safe methods.
func DefaultDeduplicationCondition(req *http.Request) bool {
	return req.Method == http.MethodGet || req.Method == http.MethodHead || req.Method == http.MethodOptions
}
