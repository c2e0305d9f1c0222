package mokka

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

// Default bounds for the in-memory cache.
const (
	DefaultCacheMaxEntries = 1024
	DefaultCacheMaxBytes   = 10 * 1024 * 1024
)

// InMemoryCache is a bounded LRU response cache. A single mutex guards the
// map and the recency list; entries expire lazily on lookup and are evicted
// least-recently-used first when either bound is exceeded.
type InMemoryCache struct {
	mu         sync.Mutex
	store      map[string]*cacheNode
	head, tail *cacheNode
	maxEntries int
	maxBytes   int64
	totalBytes int64
	evictions  int64
}

// cacheNode links an entry into the recency list. head is most recent.
type cacheNode struct {
	key        string
	entry      *CacheEntry
	size       int64
	prev, next *cacheNode
}

// NewInMemoryCache creates a cache bounded by maxEntries and maxBytes.
// A non-positive value leaves that dimension unbounded; when both are
// non-positive the defaults apply so the cache can never grow without limit.
func NewInMemoryCache(maxEntries int, maxBytes int64) *InMemoryCache {
	if maxEntries <= 0 && maxBytes <= 0 {
		maxEntries = DefaultCacheMaxEntries
		maxBytes = DefaultCacheMaxBytes
	}
	return &InMemoryCache{
		store:      make(map[string]*cacheNode),
		maxEntries: maxEntries,
		maxBytes:   maxBytes,
	}
}

// Get returns the entry under key if present and unexpired. Expired entries
// are removed on the spot; a hit refreshes the entry's recency.
func (c *InMemoryCache) Get(key string) (*CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	node, exists := c.store[key]
	if !exists {
		return nil, false
	}

	if time.Now().After(node.entry.ExpiresAt) {
		c.removeNode(node)
		return nil, false
	}

	c.removeFromLRU(node)
	c.addToLRU(node)
	return node.entry, true
}

// Set stores entry under key for ttl. An entry whose size alone exceeds
// maxBytes is not stored. Otherwise older entries are evicted LRU-first
// until both bounds hold; the entry just stored is never evicted by its own
// insertion.
func (c *InMemoryCache) Set(key string, entry *CacheEntry, ttl time.Duration) {
	if entry == nil {
		return
	}

	size := entry.Size
	if size <= 0 {
		size = entrySize(entry)
		entry.Size = size
	}
	if c.maxBytes > 0 && size > c.maxBytes {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if entry.StoredAt.IsZero() {
		entry.StoredAt = now
	}
	entry.ExpiresAt = now.Add(ttl)

	if node, exists := c.store[key]; exists {
		c.totalBytes += size - node.size
		node.entry = entry
		node.size = size
		c.removeFromLRU(node)
		c.addToLRU(node)
	} else {
		node = &cacheNode{key: key, entry: entry, size: size}
		c.store[key] = node
		c.addToLRU(node)
		c.totalBytes += size
	}

	for c.overBounds() {
		c.evictLRU()
	}
}

// Delete removes the entry under key, if any.
func (c *InMemoryCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if node, exists := c.store[key]; exists {
		c.removeNode(node)
	}
}

// Clear removes every entry.
func (c *InMemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.store = make(map[string]*cacheNode)
	c.head = nil
	c.tail = nil
	c.totalBytes = 0
}

// Len returns the number of stored entries.
func (c *InMemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.store)
}

// Bytes returns the approximate total size of stored entries.
func (c *InMemoryCache) Bytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalBytes
}

// Evictions returns how many entries were evicted to satisfy the bounds.
func (c *InMemoryCache) Evictions() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictions
}

// overBounds reports whether either bound is currently exceeded.
// Callers must hold c.mu.
func (c *InMemoryCache) overBounds() bool {
	if c.maxEntries > 0 && len(c.store) > c.maxEntries {
		return true
	}
	if c.maxBytes > 0 && c.totalBytes > c.maxBytes {
		return true
	}
	return false
}

// evictLRU drops the tail entry. The newest entry sits at the head, so an
// insertion can only evict older entries. Callers must hold c.mu.
func (c *InMemoryCache) evictLRU() {
	if c.tail == nil {
		return
	}
	c.removeNode(c.tail)
	c.evictions++
}

// removeNode unlinks a node from both the map and the list.
// Callers must hold c.mu.
func (c *InMemoryCache) removeNode(node *cacheNode) {
	delete(c.store, node.key)
	c.removeFromLRU(node)
	c.totalBytes -= node.size
}

func (c *InMemoryCache) addToLRU(node *cacheNode) {
	if c.head == nil {
		c.head = node
		c.tail = node
		return
	}

	node.next = c.head
	c.head.prev = node
	c.head = node
}

func (c *InMemoryCache) removeFromLRU(node *cacheNode) {
	if node.prev != nil {
		node.prev.next = node.next
	} else {
		c.head = node.next
	}

	if node.next != nil {
		node.next.prev = node.prev
	} else {
		c.tail = node.prev
	}

	node.prev = nil
	node.next = nil
}

// entrySize approximates the bytes an entry occupies: body plus headers.
func entrySize(entry *CacheEntry) int64 {
	size := int64(len(entry.Body))
	for name, values := range entry.Header {
		size += int64(len(name))
		for _, value := range values {
			size += int64(len(value))
		}
	}
	return size
}

// responseFromCacheEntry rebuilds a caller-owned response from a stored
// entry. Headers are cloned so interceptors cannot mutate the cached copy.
func responseFromCacheEntry(entry *CacheEntry) *http.Response {
	return &http.Response{
		Status:        http.StatusText(entry.StatusCode),
		StatusCode:    entry.StatusCode,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        entry.Header.Clone(),
		Body:          io.NopCloser(bytes.NewReader(entry.Body)),
		ContentLength: int64(len(entry.Body)),
	}
}

// cacheEntryFromResponse snapshots a response into a CacheEntry, leaving
// resp.Body readable by the caller. Responses larger than limit are not
// snapshotted; the bytes already read are stitched back onto the body.
func cacheEntryFromResponse(resp *http.Response, limit int64) *CacheEntry {
	if limit <= 0 {
		limit = DefaultCacheMaxBytes
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil || int64(len(body)) > limit {
		resp.Body = readCloser{io.MultiReader(bytes.NewReader(body), resp.Body), resp.Body}
		return nil
	}

	_ = resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(body))

	entry := &CacheEntry{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       body,
	}
	if etag := resp.Header.Get("ETag"); etag != "" {
		entry.ETag = etag
	}
	entry.LastModified = parseLastModified(resp.Header.Get("Last-Modified"))
	entry.Size = entrySize(entry)
	return entry
}

// readCloser pairs a stitched reader with the original body's closer.
type readCloser struct {
	io.Reader
	io.Closer
}

// DefaultCacheKeyFunc derives a key from the method and the normalized URL:
// scheme and host lowercased, query sorted by key, fragment dropped.
func DefaultCacheKeyFunc(req *http.Request) string {
	if req.URL == nil {
		return req.Method + ":"
	}

	u := *req.URL
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""
	if u.RawQuery != "" {
		u.RawQuery = u.Query().Encode()
	}

	return req.Method + ":" + u.String()
}

// CacheKeyWithHeaders derives keys like DefaultCacheKeyFunc but mixes in the
// named header values, for targets whose responses vary by header.
func CacheKeyWithHeaders(names ...string) CacheKeyFunc {
	sorted := make([]string, len(names))
	copy(sorted, names)
	sort.Strings(sorted)

	return func(req *http.Request) string {
		var b strings.Builder
		b.WriteString(DefaultCacheKeyFunc(req))
		for _, name := range sorted {
			b.WriteByte('|')
			b.WriteString(name)
			b.WriteByte('=')
			b.WriteString(req.Header.Get(name))
		}
		return b.String()
	}
}

// DefaultCacheCondition caches GET requests only.
func DefaultCacheCondition(req *http.Request) bool {
	return req.Method == "GET"
}

// shouldCacheRequest answers whether this request may be served from or
// stored into the cache, honoring the per-request override.
func (c *Client) shouldCacheRequest(req *http.Request) bool {
	if c.cache == nil {
		return false
	}

	if cacheControl, ok := req.Context().Value(CacheControlKey).(*CacheControl); ok {
		return cacheControl.Enabled
	}

	return c.cacheCondition(req)
}

// cacheTTLForRequest resolves the TTL: per-request override first, then the
// response's own cache headers, then the configured default.
func (c *Client) cacheTTLForRequest(req *http.Request, resp *http.Response) time.Duration {
	if cacheControl, ok := req.Context().Value(CacheControlKey).(*CacheControl); ok && cacheControl.TTL > 0 {
		return cacheControl.TTL
	}

	if resp != nil {
		if ttl, ok := cacheTTLFromHeaders(resp, time.Now()); ok {
			return ttl
		}
	}

	return c.cacheTTL
}

// WithContextCacheEnabled forces caching for the request carrying this context.
func WithContextCacheEnabled(ctx context.Context) context.Context {
	return context.WithValue(ctx, CacheControlKey, &CacheControl{Enabled: true})
}

// WithContextCacheDisabled bypasses the cache for the request carrying this
// context: no lookup, no store.
func WithContextCacheDisabled(ctx context.Context) context.Context {
	return context.WithValue(ctx, CacheControlKey, &CacheControl{Enabled: false})
}

// WithContextCacheTTL enables caching with a per-request TTL.
func WithContextCacheTTL(ctx context.Context, ttl time.Duration) context.Context {
	return context.WithValue(ctx, CacheControlKey, &CacheControl{Enabled: true, TTL: ttl})
}

// WithContextCallTimeout overrides the per-attempt timeout for the request
// carrying this context. Each retry attempt gets the full budget; the
// timeout never spans the whole retry loop.
func WithContextCallTimeout(ctx context.Context, timeout time.Duration) context.Context {
	return context.WithValue(ctx, CallTimeoutKey, timeout)
}
