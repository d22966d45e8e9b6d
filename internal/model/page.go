package model

import "strings"

// PageResult is the outcome of a single fetch attempt for a single URL.
// The engine emits exactly one PageResult per completed attempt, including
// failed attempts; a URL that fails and is retried therefore produces two
// PageResults. A PageResult is immutable once emitted.
type PageResult struct {
	// URL is the normalized URL of the page. When the server redirected
	// the request, this is the normalized post-redirect URL.
	URL string `json:"url"`

	// Depth is the link distance from the start URL. The seed page has
	// depth 0.
	Depth int `json:"depth"`

	// Attempt is the zero-based attempt number. Attempt 1 means this
	// result came from a retry of a previously failed fetch.
	Attempt int `json:"attempt"`

	// Links contains the deduplicated, normalized, same-host links found
	// on the page, in document order. Empty for failed fetches and for
	// non-HTML responses.
	Links []string `json:"links,omitempty"`

	// StatusCode is the HTTP status code of the response. Zero when the
	// request never produced a response (network error, timeout).
	StatusCode int `json:"status_code,omitempty"`

	// ContentType is the MIME type of the response, from the Content-Type
	// header. Empty when no response was received.
	ContentType string `json:"content_type,omitempty"`

	// Title is the page title from the <title> tag. Empty for non-HTML
	// content and failed fetches.
	Title string `json:"title,omitempty"`

	// Error is the human-readable failure reason. Empty on success.
	Error string `json:"error,omitempty"`
}

// OK reports whether the fetch attempt succeeded.
func (p *PageResult) OK() bool {
	return p.Error == ""
}

// IsHTML reports whether the response content type indicates HTML.
func (p *PageResult) IsHTML() bool {
	return strings.HasPrefix(p.ContentType, "text/html") ||
		strings.HasPrefix(p.ContentType, "application/xhtml+xml")
}

// FailureEvent is one entry in the crawl's append-only failure log.
// Events are appended in the order failures occur. When a later attempt
// for the same URL succeeds, the most recent unresolved event for that
// URL is flipped to ResolvedOnRetry in place, so the final log shows
// which failures were transient and which were terminal.
type FailureEvent struct {
	// URL is the normalized URL whose fetch attempt failed.
	URL string `json:"url"`

	// Depth is the link distance of the failed item.
	Depth int `json:"depth"`

	// Reason is the human-readable failure reason (e.g. "HTTP 503",
	// "timeout after 10s").
	Reason string `json:"reason"`

	// Attempt is the zero-based attempt number that failed.
	Attempt int `json:"attempt"`

	// ResolvedOnRetry is true when a later attempt for the same URL
	// succeeded.
	ResolvedOnRetry bool `json:"resolved_on_retry"`
}
