package mokka

import (
	"fmt"
	"net/url"
)

// DefaultURLValidator accepts absolute http and https URLs with a non-empty
// host. Requests failing validation are rejected before any interceptor or
// transport work happens.
func DefaultURLValidator(u *url.URL) error {
	if u == nil {
		return fmt.Errorf("url is nil")
	}
	if !u.IsAbs() {
		return fmt.Errorf("url %q is not absolute", u.String())
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("url %q has no host", u.String())
	}
	return nil
}
