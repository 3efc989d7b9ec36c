package domain

import (
	"net/url"
	"strings"
)

// NormalizeURL canonicalizes an article URL so that the same item discovered
// through different source links maps to one identity: scheme and host are
// lower-cased, the fragment is dropped, tracking (utm_*) query parameters are
// removed, and a trailing slash on a non-root path is stripped. Inputs that
// do not parse are returned trimmed but otherwise untouched.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	changed := false
	for key := range q {
		if strings.HasPrefix(strings.ToLower(key), "utm_") {
			q.Del(key)
			changed = true
		}
	}
	if changed || len(q) == 0 {
		u.RawQuery = q.Encode()
	}

	if len(u.Path) > 1 {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}

	return u.String()
}
