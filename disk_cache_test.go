package mokka

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func openTestSQLiteCache(t *testing.T, maxEntries int, maxBytes int64) *SQLiteCache {
	t.Helper()

	cache, err := OpenSQLiteCache(filepath.Join(t.TempDir(), "cache.db"), maxEntries, maxBytes)
	if err != nil {
		t.Fatalf("OpenSQLiteCache failed: %v", err)
	}
	t.Cleanup(func() { _ = cache.Close() })
	return cache
}

func TestSQLiteCacheRoundTrip(t *testing.T) {
	cache := openTestSQLiteCache(t, 10, 0)

	entry := testEntry("persisted")
	entry.ETag = `"v1"`
	now := time.Now().Truncate(time.Second)
	entry.LastModified = &now

	cache.Set("k", entry, time.Minute)

	got, found := cache.Get("k")
	if !found {
		t.Fatal("expected a hit")
	}
	if string(got.Body) != "persisted" {
		t.Errorf("Body = %q, want %q", got.Body, "persisted")
	}
	if got.StatusCode != 200 {
		t.Errorf("StatusCode = %d, want 200", got.StatusCode)
	}
	if got.Header.Get("Content-Type") != "text/plain" {
		t.Errorf("Content-Type = %q, want text/plain", got.Header.Get("Content-Type"))
	}
	if got.ETag != `"v1"` {
		t.Errorf("ETag = %q, want %q", got.ETag, `"v1"`)
	}
	if got.LastModified == nil || !got.LastModified.Equal(now) {
		t.Errorf("LastModified = %v, want %v", got.LastModified, now)
	}
}

func TestSQLiteCacheTTLExpiry(t *testing.T) {
	cache := openTestSQLiteCache(t, 10, 0)

	cache.Set("k", testEntry("soon gone"), 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	if _, found := cache.Get("k"); found {
		t.Error("expected expired entry to read as a miss")
	}
	if cache.Len() != 0 {
		t.Errorf("Len() = %d after expiry, want 0", cache.Len())
	}
}

func TestSQLiteCacheEvictsLeastRecentlyAccessed(t *testing.T) {
	cache := openTestSQLiteCache(t, 3, 0)

	cache.Set("a", testEntry("a"), time.Minute)
	time.Sleep(2 * time.Millisecond)
	cache.Set("b", testEntry("b"), time.Minute)
	time.Sleep(2 * time.Millisecond)
	cache.Set("c", testEntry("c"), time.Minute)
	time.Sleep(2 * time.Millisecond)

	// Touch a so b holds the oldest last_access.
	if _, found := cache.Get("a"); !found {
		t.Fatal("expected a to be present")
	}
	time.Sleep(2 * time.Millisecond)

	cache.Set("d", testEntry("d"), time.Minute)

	if cache.Len() != 3 {
		t.Errorf("Len() = %d, want 3", cache.Len())
	}
	if _, found := cache.Get("b"); found {
		t.Error("expected b, the least recently accessed entry, to be evicted")
	}
	if _, found := cache.Get("d"); !found {
		t.Error("the entry just stored must never be evicted by its own insertion")
	}
}

func TestSQLiteCacheOversizedEntryNotStored(t *testing.T) {
	cache := openTestSQLiteCache(t, 0, 50)

	cache.Set("big", testEntry(strings.Repeat("x", 200)), time.Minute)

	if _, found := cache.Get("big"); found {
		t.Error("entry larger than maxBytes must not be stored")
	}
}

func TestSQLiteCacheDeleteAndClear(t *testing.T) {
	cache := openTestSQLiteCache(t, 10, 0)

	cache.Set("a", testEntry("a"), time.Minute)
	cache.Set("b", testEntry("b"), time.Minute)

	cache.Delete("a")
	if _, found := cache.Get("a"); found {
		t.Error("expected a to be deleted")
	}

	cache.Clear()
	if cache.Len() != 0 {
		t.Errorf("Len() = %d after Clear, want 0", cache.Len())
	}
}

func TestSQLiteCacheSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")

	first, err := OpenSQLiteCache(path, 10, 0)
	if err != nil {
		t.Fatalf("OpenSQLiteCache failed: %v", err)
	}
	first.Set("k", testEntry("durable"), time.Minute)
	if err := first.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	second, err := OpenSQLiteCache(path, 10, 0)
	if err != nil {
		t.Fatalf("reopening failed: %v", err)
	}
	defer second.Close()

	entry, found := second.Get("k")
	if !found {
		t.Fatal("expected the entry to survive a reopen")
	}
	if string(entry.Body) != "durable" {
		t.Errorf("Body = %q, want %q", entry.Body, "durable")
	}
}

func TestSQLiteCacheDropsExpiredOnReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")

	first, err := OpenSQLiteCache(path, 10, 0)
	if err != nil {
		t.Fatalf("OpenSQLiteCache failed: %v", err)
	}
	first.Set("k", testEntry("stale"), 5*time.Millisecond)
	if err := first.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	time.Sleep(10 * time.Millisecond)

	second, err := OpenSQLiteCache(path, 10, 0)
	if err != nil {
		t.Fatalf("reopening failed: %v", err)
	}
	defer second.Close()

	if second.Len() != 0 {
		t.Errorf("Len() = %d after reopening past expiry, want 0", second.Len())
	}
}

func TestSQLiteCacheImplementsCache(t *testing.T) {
	var _ Cache = openTestSQLiteCache(t, 1, 0)
}
