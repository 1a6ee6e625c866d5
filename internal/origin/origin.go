// Package origin implements the cross-origin allowlist applied to the HTTP
// surface and the websocket upgrade handshake.
package origin

import (
	"net/url"
	"strconv"
	"strings"
)

// Normalize validates a browser Origin header and returns its canonical form
// (lower-cased scheme://host[:port], default ports removed). The special
// value "null" is valid and returned as-is.
func Normalize(header string) (string, bool) {
	trimmed := strings.TrimSpace(header)
	if trimmed == "" {
		return "", false
	}
	if trimmed == "null" {
		return "null", true
	}

	u, err := url.Parse(trimmed)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}
	if u.User != nil || u.RawQuery != "" || u.Fragment != "" {
		return "", false
	}
	if u.Path != "" && u.Path != "/" {
		return "", false
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", false
	}

	hostname := strings.ToLower(u.Hostname())
	if hostname == "" {
		return "", false
	}

	var port int
	if raw := u.Port(); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 65535 {
			return "", false
		}
		port = n
	}
	if (scheme == "http" && port == 80) || (scheme == "https" && port == 443) {
		port = 0
	}

	host := hostname
	if strings.Contains(hostname, ":") {
		// IPv6 literal.
		host = "[" + hostname + "]"
	}
	if port != 0 {
		host += ":" + strconv.Itoa(port)
	}
	return scheme + "://" + host, true
}

// Allowed reports whether a request carrying the given Origin header may
// access the service.
//
// An absent Origin header (non-browser caller) is always permitted. When
// present, the header must be a valid origin and match an allowlist entry;
// the entry "*" matches any valid origin. Allowlist entries are expected in
// normalized form (as produced by Normalize).
func Allowed(header string, allowlist []string) bool {
	if strings.TrimSpace(header) == "" {
		return true
	}
	normalized, ok := Normalize(header)
	if !ok {
		return false
	}
	for _, entry := range allowlist {
		if entry == "*" || entry == normalized {
			return true
		}
	}
	return false
}

// ParseAllowlist splits a comma-separated allowlist and normalizes each
// entry, rejecting entries that are not valid origins.
func ParseAllowlist(raw string) ([]string, bool) {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if part == "*" {
			out = append(out, "*")
			continue
		}
		normalized, ok := Normalize(part)
		if !ok {
			return nil, false
		}
		out = append(out, normalized)
	}
	return out, true
}
