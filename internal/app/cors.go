package app

import (
	"net/url"
	"strings"
)

// originAllowlist matches browser origins against configured host patterns.
// A pattern is an exact host, "*.domain" for any subdomain, or "host:*" for
// any port on host. Schemes are ignored.
type originAllowlist []string

func newOriginAllowlist(patterns []string) originAllowlist {
	out := make(originAllowlist, 0, len(patterns))
	for _, p := range patterns {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (l originAllowlist) Allow(origin string) bool {
	host := originHost(origin)
	if host == "" {
		return false
	}
	for _, p := range l {
		if hostMatches(p, host) {
			return true
		}
	}
	return false
}

// originHost returns the lowercased host[:port] of an Origin header value.
func originHost(origin string) string {
	origin = strings.TrimSpace(origin)
	if u, err := url.Parse(origin); err == nil && u.Host != "" {
		return strings.ToLower(u.Host)
	}
	return strings.ToLower(strings.TrimRight(origin, "/"))
}

func hostMatches(pattern, host string) bool {
	switch {
	case pattern == host:
		return true
	case strings.HasPrefix(pattern, "*."):
		return strings.HasSuffix(host, pattern[1:])
	case strings.HasSuffix(pattern, ":*"):
		return strings.HasPrefix(host, strings.TrimSuffix(pattern, "*"))
	}
	return false
}
