package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
	"time"
)

// Default fetcher settings.
const (
	// DefaultUserAgent identifies the crawler in HTTP requests.
	DefaultUserAgent = "webcrawl/1.0 (+https://github.com/nao1215/webcrawl)"

	// DefaultMaxBodySize limits the response body size to read. 5MB is
	// sufficient for HTML pages while preventing memory exhaustion from
	// unexpectedly large responses.
	DefaultMaxBodySize = 5 * 1024 * 1024

	// DefaultRetryBackoff is the fixed pause before the single
	// transport-level retry.
	DefaultRetryBackoff = 250 * time.Millisecond
)

// Outcome is the classified result of one Fetch call.
type Outcome struct {
	// OK is true for 2xx responses.
	OK bool

	// URL is the final URL after redirects. On success this is
	// authoritative; the engine normalizes it and marks it visited.
	URL string

	// StatusCode is the HTTP status code, or zero when no response was
	// received.
	StatusCode int

	// ContentType is the response Content-Type header value.
	ContentType string

	// HTML is the response body, present only for successful responses
	// whose content type indicates HTML.
	HTML []byte

	// FailureReason is the human-readable failure description. Empty on
	// success. Non-2xx responses carry "HTTP <status>".
	FailureReason string

	// Kind classifies the failure. Zero value on success.
	Kind ErrorKind

	// Retried is true when the outcome came from the transport-level
	// retry attempt rather than the first attempt.
	Retried bool
}

// Fetcher performs single HTTP GETs with a per-request deadline and
// classifies the outcome. Transport-level transient errors (connection
// reset, temporary DNS failure, a timeout below the request deadline) get
// exactly one retry after a fixed backoff. Deadline expiry and non-2xx
// responses are terminal at this layer; the engine's retry policy decides
// whether to reschedule them.
//
// A Fetcher holds no mutable state and is safe to use from concurrent
// fetch tasks.
type Fetcher struct {
	// client is the injected HTTP client. Redirect handling and transport
	// configuration belong to the caller.
	client *http.Client

	// userAgent is the User-Agent header value.
	userAgent string

	// headers are extra request headers, applied after the defaults.
	headers map[string]string

	// cookie is the raw Cookie header value, empty for none.
	cookie string

	// maxBodySize caps how many body bytes are read.
	maxBodySize int64

	// backoff is the pause before the transport-level retry.
	backoff time.Duration

	// limiter is the optional politeness limiter, nil for none.
	limiter *Limiter
}

// FetchOption configures a Fetcher.
type FetchOption func(*Fetcher)

// WithFetchUserAgent sets a custom User-Agent header.
func WithFetchUserAgent(ua string) FetchOption {
	return func(f *Fetcher) {
		f.userAgent = ua
	}
}

// WithFetchHeaders sets extra request headers.
func WithFetchHeaders(headers map[string]string) FetchOption {
	return func(f *Fetcher) {
		f.headers = headers
	}
}

// WithFetchCookie sets the Cookie header value.
func WithFetchCookie(cookie string) FetchOption {
	return func(f *Fetcher) {
		f.cookie = cookie
	}
}

// WithFetchMaxBodySize caps the response body size to read.
func WithFetchMaxBodySize(size int64) FetchOption {
	return func(f *Fetcher) {
		if size > 0 {
			f.maxBodySize = size
		}
	}
}

// WithFetchBackoff sets the pause before the transport-level retry.
func WithFetchBackoff(d time.Duration) FetchOption {
	return func(f *Fetcher) {
		if d >= 0 {
			f.backoff = d
		}
	}
}

// WithFetchLimiter sets the politeness limiter consulted before each
// request.
func WithFetchLimiter(l *Limiter) FetchOption {
	return func(f *Fetcher) {
		f.limiter = l
	}
}

// NewFetcher creates a Fetcher around the given HTTP client.
//
// Design decision: We require an external client rather than building one
// because timeouts here are per-request deadlines, not client-wide, and
// tests need to inject httptest clients.
func NewFetcher(client *http.Client, opts ...FetchOption) *Fetcher {
	f := &Fetcher{
		client:      client,
		userAgent:   DefaultUserAgent,
		maxBodySize: DefaultMaxBodySize,
		backoff:     DefaultRetryBackoff,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Fetch performs one GET with a hard deadline of timeout and returns the
// classified outcome. On a transient transport error it waits the fixed
// backoff and tries exactly once more; the second outcome is returned
// whatever it is.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, timeout time.Duration) Outcome {
	out, transient := f.attempt(ctx, rawURL, timeout)
	if !transient || ctx.Err() != nil {
		return out
	}

	select {
	case <-ctx.Done():
		return out
	case <-time.After(f.backoff):
	}

	retry, _ := f.attempt(ctx, rawURL, timeout)
	retry.Retried = true
	return retry
}

// attempt performs a single GET. The second return value reports whether
// the failure is transient and eligible for the transport-level retry.
func (f *Fetcher) attempt(ctx context.Context, rawURL string, timeout time.Duration) (Outcome, bool) {
	out := Outcome{URL: rawURL}

	if err := f.limiter.Wait(ctx); err != nil {
		out.FailureReason = "cancelled"
		out.Kind = KindFetch
		return out, false
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		out.FailureReason = fmt.Sprintf("invalid request: %v", err)
		out.Kind = KindFetch
		return out, false
	}

	req.Header.Set("User-Agent", f.userAgent)
	// Accept-Encoding stays unset so the transport negotiates gzip and
	// decompresses transparently.
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	for k, v := range f.headers {
		req.Header.Set(k, v)
	}
	if f.cookie != "" {
		req.Header.Set("Cookie", f.cookie)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		reason, transient := classifyTransportError(err, reqCtx, timeout)
		out.FailureReason = reason
		out.Kind = KindFetch
		return out, transient
	}
	defer resp.Body.Close() //nolint:errcheck // Read-only body

	// The post-redirect URL is authoritative.
	if resp.Request != nil && resp.Request.URL != nil {
		out.URL = resp.Request.URL.String()
	}
	out.StatusCode = resp.StatusCode
	out.ContentType = resp.Header.Get("Content-Type")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		out.FailureReason = fmt.Sprintf("HTTP %d", resp.StatusCode)
		out.Kind = KindFetch
		return out, false
	}

	out.OK = true
	if isHTMLContentType(out.ContentType) {
		body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
		if err != nil {
			reason, transient := classifyTransportError(err, reqCtx, timeout)
			out.OK = false
			out.HTML = nil
			out.FailureReason = reason
			out.Kind = KindFetch
			return out, transient
		}
		out.HTML = body
	}

	return out, false
}

// isHTMLContentType reports whether a Content-Type header value indicates
// an HTML body worth parsing for links.
func isHTMLContentType(contentType string) bool {
	return len(contentType) >= 9 && contentType[:9] == "text/html" ||
		len(contentType) >= 21 && contentType[:21] == "application/xhtml+xml"
}

// classifyTransportError maps a transport error to a failure reason and a
// transient flag.
//
// Expiry of the per-request deadline is terminal here: the deadline
// already represents the time allotted to this URL, so retrying inside the
// same call would double it. Connection resets, temporary DNS failures,
// and timeouts below the request deadline are transient.
func classifyTransportError(err error, reqCtx context.Context, timeout time.Duration) (string, bool) {
	if errors.Is(err, context.DeadlineExceeded) || reqCtx.Err() == context.DeadlineExceeded {
		return fmt.Sprintf("timeout after %s", timeout), false
	}
	if errors.Is(err, context.Canceled) {
		return "cancelled", false
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTemporary || dnsErr.IsTimeout {
			return "dns temporary failure", true
		}
		return "dns lookup failed", false
	}

	// A server that drops the connection mid-exchange surfaces as a reset
	// or an unexpected EOF depending on timing; treat both the same.
	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return "connection reset", true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "transport timeout", true
	}

	return fmt.Sprintf("network error: %v", err), false
}
