// Package hostutil normalizes API hosts and builds endpoint URLs.
package hostutil

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Normalize turns a bare host into a base URL.
// Loopback hosts default to http://, everything else to https://.
// Values that already carry a scheme are returned without a trailing slash.
func Normalize(host string) string {
	host = strings.TrimSpace(host)
	if host == "" {
		return ""
	}
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		if IsLocalhost(host) {
			host = "http://" + host
		} else {
			host = "https://" + host
		}
	}
	return strings.TrimSuffix(host, "/")
}

// IsLocalhost reports whether host (with optional port) is a loopback name:
// localhost, *.localhost, 127.0.0.1 or [::1].
func IsLocalhost(host string) bool {
	if host == "" {
		return false
	}
	name := host
	if h, _, err := net.SplitHostPort(host); err == nil {
		name = h
	} else if strings.HasPrefix(host, "[") && strings.HasSuffix(host, "]") {
		name = strings.Trim(host, "[]")
	} else if strings.Count(host, ":") > 1 {
		// bare IPv6 is not a valid URL host
		return false
	}

	switch {
	case name == "localhost", strings.HasSuffix(name, ".localhost"):
		return true
	case name == "127.0.0.1", name == "::1":
		return true
	}
	return false
}

// RequireSecureURL rejects plain-http URLs that point anywhere but loopback.
// Session cookies must never travel unencrypted to a remote host.
func RequireSecureURL(raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", raw, err)
	}
	if u.Scheme == "http" && !IsLocalhost(u.Host) {
		return fmt.Errorf("refusing insecure http:// URL for %s (use https://)", u.Host)
	}
	return nil
}

// JoinPath joins a base URL, an API prefix and a request path.
// Absolute URLs in path are returned unchanged (pagination "next" links).
func JoinPath(baseURL, prefix, path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	base := strings.TrimSuffix(baseURL, "/")
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		base += "/" + prefix
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	// A path that already carries the prefix is not prefixed twice.
	if prefix != "" && strings.HasPrefix(path, "/"+prefix+"/") {
		return strings.TrimSuffix(baseURL, "/") + path
	}
	return base + path
}
