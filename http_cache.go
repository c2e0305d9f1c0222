package mokka

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// CacheDirectives represents parsed Cache-Control directives.
type CacheDirectives struct {
	NoStore        bool
	NoCache        bool
	MaxAge         *time.Duration
	SMaxAge        *time.Duration
	MustRevalidate bool
	Public         bool
	Private        bool
}

// parseCacheControl parses Cache-Control header into structured directives.
func parseCacheControl(header string) *CacheDirectives {
	directives := &CacheDirectives{}
	if header == "" {
		return directives
	}

	parts := strings.Split(header, ",")
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if strings.Contains(part, "=") {
			kv := strings.SplitN(part, "=", 2)
			if len(kv) != 2 {
				continue
			}
			key := strings.TrimSpace(kv[0])
			value := strings.Trim(strings.TrimSpace(kv[1]), "\"")

			switch key {
			case "max-age":
				if seconds, err := strconv.Atoi(value); err == nil {
					maxAge := time.Duration(seconds) * time.Second
					directives.MaxAge = &maxAge
				}
			case "s-maxage":
				if seconds, err := strconv.Atoi(value); err == nil {
					sMaxAge := time.Duration(seconds) * time.Second
					directives.SMaxAge = &sMaxAge
				}
			}
		} else {
			switch part {
			case "no-store":
				directives.NoStore = true
			case "no-cache":
				directives.NoCache = true
			case "must-revalidate":
				directives.MustRevalidate = true
			case "public":
				directives.Public = true
			case "private":
				directives.Private = true
			}
		}
	}

	return directives
}

// parseExpires parses the Expires header into a time.Time.
func parseExpires(header string) *time.Time {
	if header == "" {
		return nil
	}

	if t, err := time.Parse(time.RFC1123, header); err == nil {
		return &t
	}
	if t, err := time.Parse(time.RFC850, header); err == nil {
		return &t
	}
	if t, err := time.Parse(time.ANSIC, header); err == nil {
		return &t
	}

	return nil
}

// parseLastModified parses the Last-Modified header into a time.Time.
func parseLastModified(header string) *time.Time {
	if header == "" {
		return nil
	}

	if t, err := time.Parse(time.RFC1123, header); err == nil {
		return &t
	}
	if t, err := time.Parse(time.RFC850, header); err == nil {
		return &t
	}
	if t, err := time.Parse(time.ANSIC, header); err == nil {
		return &t
	}

	return nil
}

// responseCacheable reports whether the response's own headers permit
// storing it. Only no-store and no-cache deny; this is a private client
// cache, so private responses are fine to keep.
func responseCacheable(resp *http.Response) bool {
	directives := parseCacheControl(resp.Header.Get("Cache-Control"))
	return !directives.NoStore && !directives.NoCache
}

// cacheTTLFromHeaders derives a TTL from the response's cache headers:
// max-age wins over Expires. Returns false when the response carries no
// explicit freshness information, in which case the configured default TTL
// applies.
func cacheTTLFromHeaders(resp *http.Response, receivedAt time.Time) (time.Duration, bool) {
	directives := parseCacheControl(resp.Header.Get("Cache-Control"))

	if directives.MaxAge != nil {
		return *directives.MaxAge, true
	}

	if expires := parseExpires(resp.Header.Get("Expires")); expires != nil {
		ttl := expires.Sub(receivedAt)
		if ttl < 0 {
			ttl = 0
		}
		return ttl, true
	}

	return 0, false
}
