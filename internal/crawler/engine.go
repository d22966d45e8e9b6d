package crawler

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/nao1215/webcrawl/internal/model"
)

// Default engine settings.
const (
	// DefaultConcurrency is the number of simultaneous fetch tasks.
	DefaultConcurrency = 8

	// DefaultTimeout is the per-request deadline.
	DefaultTimeout = 10 * time.Second
)

// Engine runs a breadth-first crawl confined to the start URL's host.
// Construct one with NewEngine, then call Run once; an Engine is not
// reusable across crawls because Run consumes its per-crawl state.
//
// Design decision: A single scheduler goroutine owns the frontier, the
// failure tracker, and the stats, while up to concurrency fetch tasks run
// the network work and report back over a channel. The shared state never
// needs a mutex because exactly one goroutine touches it: 1. folding
// results stays deterministic and easy to reason about, 2. admission
// decisions (queue, cap, cancellation) see a consistent snapshot, 3. the
// handler callbacks get a strict serial order.
type Engine struct {
	// concurrency is the maximum number of in-flight fetch tasks.
	concurrency int

	// maxPages caps completed fetch attempts. Zero means unlimited.
	maxPages int

	// timeout is the per-request deadline.
	timeout time.Duration

	// delay is the minimum interval between requests. Zero means none.
	delay time.Duration

	// maxBodySize caps how many response body bytes are read per page.
	maxBodySize int64

	// backoff is the fetcher's transport-level retry pause.
	backoff time.Duration

	// depthPriority selects shallowest-first scheduling instead of FIFO.
	depthPriority bool

	// userAgent, headers, and cookie shape outgoing requests.
	userAgent string
	headers   map[string]string
	cookie    string

	// ignorePatterns and followPatterns filter discovered link paths.
	ignorePatterns []string
	followPatterns []string

	// handler receives crawl events.
	handler Handler

	// logger receives progress and diagnostics.
	logger *slog.Logger

	// client is the HTTP client used by the fetcher.
	client *http.Client
}

// Option configures an Engine.
type Option func(*Engine)

// WithConcurrency sets the maximum number of simultaneous fetch tasks.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		e.concurrency = n
	}
}

// WithMaxPages caps the number of completed fetch attempts. Zero means
// unlimited.
func WithMaxPages(n int) Option {
	return func(e *Engine) {
		e.maxPages = n
	}
}

// WithTimeout sets the per-request deadline.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.timeout = d
	}
}

// WithDelay sets the minimum interval between requests, enforced across
// all fetch tasks.
func WithDelay(d time.Duration) Option {
	return func(e *Engine) {
		e.delay = d
	}
}

// WithHandler sets the event handler.
func WithHandler(h Handler) Option {
	return func(e *Engine) {
		if h != nil {
			e.handler = h
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithUserAgent sets the User-Agent header for all requests.
func WithUserAgent(ua string) Option {
	return func(e *Engine) {
		if ua != "" {
			e.userAgent = ua
		}
	}
}

// WithHeaders sets extra request headers.
func WithHeaders(headers map[string]string) Option {
	return func(e *Engine) {
		e.headers = headers
	}
}

// WithCookie sets the Cookie header for all requests.
func WithCookie(cookie string) Option {
	return func(e *Engine) {
		e.cookie = cookie
	}
}

// WithIgnorePatterns sets glob patterns for URL paths to skip.
func WithIgnorePatterns(patterns []string) Option {
	return func(e *Engine) {
		e.ignorePatterns = patterns
	}
}

// WithFollowPatterns sets glob patterns URL paths must match to be
// crawled. Empty means follow everything not ignored.
func WithFollowPatterns(patterns []string) Option {
	return func(e *Engine) {
		e.followPatterns = patterns
	}
}

// WithDepthPriority makes the scheduler prefer shallower pages over
// strict FIFO order.
func WithDepthPriority(enabled bool) Option {
	return func(e *Engine) {
		e.depthPriority = enabled
	}
}

// WithMaxBodySize caps the response body size to read per page.
func WithMaxBodySize(size int64) Option {
	return func(e *Engine) {
		if size > 0 {
			e.maxBodySize = size
		}
	}
}

// WithHTTPClient replaces the HTTP client. Mainly for tests.
func WithHTTPClient(client *http.Client) Option {
	return func(e *Engine) {
		if client != nil {
			e.client = client
		}
	}
}

// WithRetryBackoff sets the fetcher's transport-level retry pause.
func WithRetryBackoff(d time.Duration) Option {
	return func(e *Engine) {
		if d >= 0 {
			e.backoff = d
		}
	}
}

// NewEngine creates an Engine with the given options applied over the
// defaults. Invalid configuration is rejected here, not at Run time.
func NewEngine(opts ...Option) (*Engine, error) {
	e := &Engine{
		concurrency: DefaultConcurrency,
		timeout:     DefaultTimeout,
		maxBodySize: DefaultMaxBodySize,
		backoff:     DefaultRetryBackoff,
		userAgent:   DefaultUserAgent,
		handler:     NoopHandler{},
		logger:      slog.New(slog.DiscardHandler),
		client:      &http.Client{},
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.concurrency < 1 {
		return nil, newConfigError("concurrency must be at least 1, got %d", e.concurrency)
	}
	if e.maxPages < 0 {
		return nil, newConfigError("max pages must not be negative, got %d", e.maxPages)
	}
	if e.timeout <= 0 {
		return nil, newConfigError("timeout must be positive, got %s", e.timeout)
	}
	if e.delay < 0 {
		return nil, newConfigError("delay must not be negative, got %s", e.delay)
	}
	for _, pat := range append(append([]string{}, e.ignorePatterns...), e.followPatterns...) {
		if _, err := path.Match(pat, ""); err != nil {
			return nil, newConfigError("invalid path pattern %q", pat)
		}
	}

	return e, nil
}

// taskResult carries one completed fetch task back to the scheduler.
type taskResult struct {
	// item is the queue item the task was dispatched with.
	item QueueItem

	// page is the attempt outcome. Nil only when the task panicked.
	page *model.PageResult

	// markSeen is the normalized post-redirect URL to add to the
	// seen-set, empty when the response URL matched the requested one.
	markSeen string

	// err is the recovered panic, wrapped as a fatal internal error.
	err *ClassifiedError
}

// Run crawls breadth-first from startURL until the frontier drains, the
// page cap is reached, or ctx is cancelled. Cancellation is not an error:
// Run returns the partial summary with Cancelled set and a nil error. A
// non-nil error is returned only for invalid input or an internal fault,
// and even then the summary carries whatever was collected.
func (e *Engine) Run(ctx context.Context, startURL string) (*model.CrawlSummary, error) {
	startedAt := time.Now()

	seed, ok := Normalize(startURL, nil)
	if !ok {
		return nil, &ClassifiedError{
			Kind:     KindNormalize,
			Severity: SeverityFatal,
			Message:  fmt.Sprintf("start URL is not a crawlable http(s) URL: %s", startURL),
		}
	}
	seedURL, err := url.Parse(seed)
	if err != nil {
		return nil, &ClassifiedError{
			Kind:     KindNormalize,
			Severity: SeverityFatal,
			Message:  fmt.Sprintf("start URL is not parseable: %s", startURL),
			Err:      err,
		}
	}
	host := seedURL.Hostname()

	frontier := NewFrontier(seed, e.depthPriority)
	tracker := NewFailureTracker()
	stats := model.NewCrawlStats()
	stats.PeakQueueSize = frontier.Pending()

	fetcher := NewFetcher(e.client,
		WithFetchUserAgent(e.userAgent),
		WithFetchHeaders(e.headers),
		WithFetchCookie(e.cookie),
		WithFetchMaxBodySize(e.maxBodySize),
		WithFetchBackoff(e.backoff),
		WithFetchLimiter(NewLimiter(e.delay)),
	)

	e.logger.Info("crawl started",
		slog.String("host", host),
		slog.String("start_url", seed),
		slog.Int("concurrency", e.concurrency),
		slog.Int("max_pages", e.maxPages),
	)

	results := make(chan taskResult)
	inflight := 0
	cancelled := false
	var fatal *ClassifiedError
	var visited []string

	// admit dispatches fetch tasks while an item is pending, a slot is
	// free, the page cap has room, and the crawl has not been stopped.
	// Every stop condition is checked here and only here.
	admit := func() {
		for inflight < e.concurrency && fatal == nil {
			if ctx.Err() != nil {
				cancelled = true
				return
			}
			if e.maxPages > 0 && stats.PagesVisited+inflight >= e.maxPages {
				return
			}
			item, ok := frontier.Dequeue()
			if !ok {
				return
			}
			inflight++
			if inflight > stats.ActualMaxConcurrency {
				stats.ActualMaxConcurrency = inflight
			}
			go func(item QueueItem) {
				res := taskResult{item: item}
				func() {
					defer func() {
						if r := recover(); r != nil {
							res.err = newInternalError(
								fmt.Sprintf("fetch task panicked for %s", item.URL),
								fmt.Errorf("%v", r),
							)
						}
					}()
					res.page, res.markSeen = e.processItem(ctx, fetcher, item, seedURL)
				}()
				results <- res
			}(item)
		}
	}

	admit()
	for inflight > 0 {
		res := <-results
		inflight--

		if res.err != nil {
			// Stop admitting, drain what is in flight, report the fault.
			e.logger.Error("fetch task failed fatally", slog.String("url", res.item.URL), slog.String("error", res.err.Error()))
			if fatal == nil {
				fatal = res.err
			}
			continue
		}

		if res.markSeen != "" {
			frontier.MarkSeen(res.markSeen)
		}

		page := res.page
		stats.RecordPage(page, page.OK())

		if page.OK() {
			if res.item.Attempt > 0 {
				stats.RetrySuccesses++
				tracker.Resolve(res.item.URL)
			}
			visited = append(visited, page.URL)
			for _, link := range page.Links {
				if !frontier.EnqueueIfNew(link, page.Depth+1) {
					stats.DuplicatesFiltered++
				}
			}
			if frontier.Pending() > stats.PeakQueueSize {
				stats.PeakQueueSize = frontier.Pending()
			}
			e.logger.Debug("page crawled",
				slog.String("url", page.URL),
				slog.Int("depth", page.Depth),
				slog.Int("status", page.StatusCode),
				slog.Int("links", len(page.Links)),
			)
			e.handler.OnPage(page)
		} else {
			tracker.Record(res.item.URL, res.item.Depth, res.item.Attempt, page.Error)
			if res.item.Attempt == 0 && ctx.Err() == nil {
				stats.RetryAttempts++
				frontier.EnqueueRetry(QueueItem{
					URL:     res.item.URL,
					Depth:   res.item.Depth,
					Attempt: res.item.Attempt + 1,
				})
				if frontier.Pending() > stats.PeakQueueSize {
					stats.PeakQueueSize = frontier.Pending()
				}
			} else if res.item.Attempt > 0 {
				stats.RetryFailures++
			}
			e.logger.Warn("page failed",
				slog.String("url", res.item.URL),
				slog.Int("attempt", res.item.Attempt),
				slog.String("reason", page.Error),
			)
			e.handler.OnPage(page)
			e.handler.OnError(&ClassifiedError{
				Kind:     KindFetch,
				Severity: SeverityRecoverable,
				Message:  page.Error,
			}, res.item.URL, res.item.Depth)
		}

		admit()
	}

	if ctx.Err() != nil {
		cancelled = true
	}

	summary := model.NewCrawlSummary(host, seed, startedAt, stats, frontier.UniqueCount(), cancelled, visited, tracker.Events())

	e.logger.Info("crawl finished",
		slog.String("host", host),
		slog.Int("pages_visited", stats.PagesVisited),
		slog.Int("pages_failed", stats.PagesFailed),
		slog.Int64("duration_ms", summary.DurationMs),
		slog.Bool("cancelled", cancelled),
	)

	e.handler.OnComplete(summary)

	if fatal != nil {
		return summary, fatal
	}
	return summary, nil
}

// processItem runs inside a fetch task goroutine. It fetches one URL,
// extracts and filters links on success, and returns the PageResult plus
// the post-redirect URL to mark seen (empty when no redirect happened).
// It touches no engine state.
func (e *Engine) processItem(ctx context.Context, fetcher *Fetcher, item QueueItem, seedURL *url.URL) (*model.PageResult, string) {
	page := &model.PageResult{
		URL:     item.URL,
		Depth:   item.Depth,
		Attempt: item.Attempt,
	}

	out := fetcher.Fetch(ctx, item.URL, e.timeout)
	page.StatusCode = out.StatusCode
	page.ContentType = out.ContentType

	if !out.OK {
		page.Error = out.FailureReason
		return page, ""
	}

	// Redirects make the response URL authoritative. A redirect off the
	// crawl host still counts as a visited page, but its links are out of
	// scope.
	markSeen := ""
	finalURL := item.URL
	if norm, ok := Normalize(out.URL, nil); ok && norm != item.URL {
		page.URL = norm
		finalURL = norm
		markSeen = norm
	}

	if len(out.HTML) == 0 || !SameHost(finalURL, seedURL.String()) {
		return page, markSeen
	}

	base, err := url.Parse(finalURL)
	if err != nil {
		return page, markSeen
	}

	extracted, err := ExtractLinks(bytes.NewReader(out.HTML))
	if err != nil {
		// html.Parse tolerates any byte soup, so this only fires on a
		// reader failure. The fetch still succeeded.
		e.logger.Warn("link extraction failed", slog.String("url", finalURL), slog.String("error", err.Error()))
		return page, markSeen
	}
	page.Title = extracted.Title

	seen := make(map[string]struct{}, len(extracted.Hrefs))
	for _, href := range extracted.Hrefs {
		norm, ok := Normalize(href, base)
		if !ok {
			continue
		}
		if !SameHost(norm, finalURL) {
			continue
		}
		if !e.allowPath(norm) {
			continue
		}
		if _, dup := seen[norm]; dup {
			continue
		}
		seen[norm] = struct{}{}
		page.Links = append(page.Links, norm)
	}

	return page, markSeen
}

// allowPath applies the ignore and follow glob patterns to a normalized
// URL's path. Ignore wins over follow; an empty follow list allows
// everything.
func (e *Engine) allowPath(normalized string) bool {
	if len(e.ignorePatterns) == 0 && len(e.followPatterns) == 0 {
		return true
	}
	u, err := url.Parse(normalized)
	if err != nil {
		return false
	}
	for _, pat := range e.ignorePatterns {
		if ok, _ := path.Match(pat, u.Path); ok {
			return false
		}
	}
	if len(e.followPatterns) == 0 {
		return true
	}
	for _, pat := range e.followPatterns {
		if ok, _ := path.Match(pat, u.Path); ok {
			return true
		}
	}
	return false
}
