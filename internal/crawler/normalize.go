package crawler

import (
	"net/url"
	"strings"
)

// Normalize resolves raw against base and canonicalizes the result into the
// string key used for deduplication everywhere else in the crawl.
//
// The canonical form is produced by, in order: resolving raw against base,
// rejecting non-http(s) schemes, lower-casing the scheme and hostname,
// dropping the fragment, dropping the port when it equals the scheme's
// default (80 for http, 443 for https), and stripping a single trailing
// slash from the path unless the path is exactly "/". An empty path is
// rewritten to "/" so that "http://example.com" and "http://example.com/"
// produce the same key. The query string is left untouched, parameter
// order included.
//
// Normalization is idempotent: Normalize(Normalize(x)) == Normalize(x).
//
// The second return value is false when raw is malformed or uses a scheme
// other than http or https; callers treat that as "not a crawlable URL"
// rather than an error.
func Normalize(raw string, base *url.URL) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	if base != nil {
		u = base.ResolveReference(u)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	if u.Host == "" {
		return "", false
	}

	u.Fragment = ""

	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if port == defaultPort(u.Scheme) {
		port = ""
	}
	if port != "" {
		u.Host = host + ":" + port
	} else {
		u.Host = host
	}

	switch {
	case u.Path == "":
		u.Path = "/"
	case u.Path != "/" && strings.HasSuffix(u.Path, "/"):
		u.Path = strings.TrimSuffix(u.Path, "/")
	}

	return u.String(), true
}

// defaultPort returns the default port for an http(s) scheme.
func defaultPort(scheme string) string {
	switch scheme {
	case "http":
		return "80"
	case "https":
		return "443"
	default:
		return ""
	}
}

// SameHost reports whether two URLs belong to the same crawl target,
// comparing scheme and lower-cased hostname. Subdomains are distinct
// hosts: foo.example.com and example.com do not match, and an https page
// linking to its http twin leaves the crawl scope. Returns false, never an
// error, when either URL fails to parse or has no host.
func SameHost(a, b string) bool {
	ua, err := url.Parse(a)
	if err != nil {
		return false
	}
	ub, err := url.Parse(b)
	if err != nil {
		return false
	}
	if ua.Hostname() == "" || ub.Hostname() == "" {
		return false
	}
	return strings.EqualFold(ua.Scheme, ub.Scheme) &&
		strings.EqualFold(ua.Hostname(), ub.Hostname())
}
