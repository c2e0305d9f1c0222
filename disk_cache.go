package mokka

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteCache persists responses in a SQLite table behind the same contract
// as the in-memory cache, so cached entries survive process restarts. The
// last_access column drives LRU eviction; database/sql serializes access.
type SQLiteCache struct {
	db         *sql.DB
	maxEntries int
	maxBytes   int64
	ownsDB     bool
}

// NewSQLiteCache wraps an existing database handle. The caller keeps
// ownership of db; Close is a no-op. Bounds follow the in-memory rules:
// non-positive leaves a dimension unbounded, both non-positive applies the
// defaults.
func NewSQLiteCache(db *sql.DB, maxEntries int, maxBytes int64) (*SQLiteCache, error) {
	if maxEntries <= 0 && maxBytes <= 0 {
		maxEntries = DefaultCacheMaxEntries
		maxBytes = DefaultCacheMaxBytes
	}
	c := &SQLiteCache{
		db:         db,
		maxEntries: maxEntries,
		maxBytes:   maxBytes,
	}
	if err := c.init(); err != nil {
		return nil, err
	}
	return c, nil
}

// OpenSQLiteCache opens (or creates) the database at path and wraps it.
// The returned cache owns the handle; Close releases it.
func OpenSQLiteCache(path string, maxEntries int, maxBytes int64) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	c, err := NewSQLiteCache(db, maxEntries, maxBytes)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	c.ownsDB = true
	return c, nil
}

func (c *SQLiteCache) init() error {
	_, err := c.db.Exec(`CREATE TABLE IF NOT EXISTS response_cache (
		key           TEXT PRIMARY KEY,
		status_code   INTEGER NOT NULL,
		header        TEXT NOT NULL,
		body          BLOB NOT NULL,
		size          INTEGER NOT NULL,
		etag          TEXT NOT NULL DEFAULT '',
		last_modified INTEGER,
		stored_at     INTEGER NOT NULL,
		expires_at    INTEGER NOT NULL,
		last_access   INTEGER NOT NULL
	)`)
	if err != nil {
		return err
	}

	_, err = c.db.Exec(`CREATE INDEX IF NOT EXISTS response_cache_last_access
		ON response_cache (last_access)`)
	if err != nil {
		return err
	}

	// Entries that expired while the process was down are dead weight.
	_, err = c.db.Exec(`DELETE FROM response_cache WHERE expires_at < ?`, time.Now().UnixNano())
	return err
}

// Close releases the database handle when this cache opened it.
func (c *SQLiteCache) Close() error {
	if !c.ownsDB {
		return nil
	}
	return c.db.Close()
}

// Get returns the entry under key if present and unexpired, refreshing its
// last-access time. Storage errors read as misses.
func (c *SQLiteCache) Get(key string) (*CacheEntry, bool) {
	row := c.db.QueryRow(`SELECT status_code, header, body, size, etag, last_modified, stored_at, expires_at
		FROM response_cache WHERE key = ?`, key)

	var (
		statusCode   int
		headerJSON   string
		body         []byte
		size         int64
		etag         string
		lastModified sql.NullInt64
		storedAt     int64
		expiresAt    int64
	)
	if err := row.Scan(&statusCode, &headerJSON, &body, &size, &etag, &lastModified, &storedAt, &expiresAt); err != nil {
		return nil, false
	}

	now := time.Now()
	if now.UnixNano() > expiresAt {
		_, _ = c.db.Exec(`DELETE FROM response_cache WHERE key = ?`, key)
		return nil, false
	}

	var header http.Header
	if err := json.Unmarshal([]byte(headerJSON), &header); err != nil {
		header = http.Header{}
	}

	_, _ = c.db.Exec(`UPDATE response_cache SET last_access = ? WHERE key = ?`, now.UnixNano(), key)

	entry := &CacheEntry{
		StatusCode: statusCode,
		Header:     header,
		Body:       body,
		StoredAt:   time.Unix(0, storedAt),
		ExpiresAt:  time.Unix(0, expiresAt),
		Size:       size,
		ETag:       etag,
	}
	if lastModified.Valid {
		t := time.Unix(0, lastModified.Int64)
		entry.LastModified = &t
	}
	return entry, true
}

// Set stores entry under key for ttl, then evicts least-recently-accessed
// rows until the bounds hold. Entries larger than maxBytes alone are not
// stored. Storage errors drop the write.
func (c *SQLiteCache) Set(key string, entry *CacheEntry, ttl time.Duration) {
	if entry == nil {
		return
	}

	size := entry.Size
	if size <= 0 {
		size = entrySize(entry)
	}
	if c.maxBytes > 0 && size > c.maxBytes {
		return
	}

	headerJSON, err := json.Marshal(entry.Header)
	if err != nil {
		return
	}

	now := time.Now()
	storedAt := entry.StoredAt
	if storedAt.IsZero() {
		storedAt = now
	}

	var lastModified sql.NullInt64
	if entry.LastModified != nil {
		lastModified = sql.NullInt64{Int64: entry.LastModified.UnixNano(), Valid: true}
	}

	_, err = c.db.Exec(`INSERT OR REPLACE INTO response_cache
		(key, status_code, header, body, size, etag, last_modified, stored_at, expires_at, last_access)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		key, entry.StatusCode, string(headerJSON), entry.Body, size, entry.ETag,
		lastModified, storedAt.UnixNano(), now.Add(ttl).UnixNano(), now.UnixNano())
	if err != nil {
		return
	}

	c.evict(key)
}

// evict removes least-recently-accessed rows until both bounds hold. The
// row just written is exempt so an insertion cannot evict itself.
func (c *SQLiteCache) evict(newKey string) {
	for {
		var (
			count int
			total int64
		)
		row := c.db.QueryRow(`SELECT COUNT(*), COALESCE(SUM(size), 0) FROM response_cache`)
		if err := row.Scan(&count, &total); err != nil {
			return
		}

		overEntries := c.maxEntries > 0 && count > c.maxEntries
		overBytes := c.maxBytes > 0 && total > c.maxBytes
		if !overEntries && !overBytes {
			return
		}

		res, err := c.db.Exec(`DELETE FROM response_cache WHERE key = (
			SELECT key FROM response_cache WHERE key != ? ORDER BY last_access ASC LIMIT 1
		)`, newKey)
		if err != nil {
			return
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return
		}
	}
}

// Delete removes the entry under key, if any.
func (c *SQLiteCache) Delete(key string) {
	_, _ = c.db.Exec(`DELETE FROM response_cache WHERE key = ?`, key)
}

// Clear removes every entry.
func (c *SQLiteCache) Clear() {
	_, _ = c.db.Exec(`DELETE FROM response_cache`)
}

// Len returns the number of stored entries.
func (c *SQLiteCache) Len() int {
	var count int
	row := c.db.QueryRow(`SELECT COUNT(*) FROM response_cache`)
	if err := row.Scan(&count); err != nil {
		return 0
	}
	return count
}
