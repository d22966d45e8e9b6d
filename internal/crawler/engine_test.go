package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/webcrawl/internal/model"
)

// newTestSite serves the given path-to-HTML map as a crawlable site.
// Unknown paths return 404.
func newTestSite(t *testing.T, pages map[string]string) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(server.Close)
	return server
}

// collectingHandler records every callback for assertions.
type collectingHandler struct {
	pages     []*model.PageResult
	errs      []string
	summaries []*model.CrawlSummary
}

func (h *collectingHandler) OnPage(page *model.PageResult) {
	h.pages = append(h.pages, page)
}

func (h *collectingHandler) OnError(_ error, url string, _ int) {
	h.errs = append(h.errs, url)
}

func (h *collectingHandler) OnComplete(summary *model.CrawlSummary) {
	h.summaries = append(h.summaries, summary)
}

func TestEngineCrawlsWholeSite(t *testing.T) {
	t.Parallel()

	server := newTestSite(t, map[string]string{
		"/":  `<html><head><title>home</title></head><body><a href="/a">a</a> <a href="/b">b</a></body></html>`,
		"/a": `<html><body><a href="/b">b</a> <a href="/">home</a></body></html>`,
		"/b": `<html><body>leaf</body></html>`,
	})

	handler := &collectingHandler{}
	engine, err := NewEngine(
		WithHTTPClient(server.Client()),
		WithHandler(handler),
	)
	if err != nil {
		t.Fatal(err)
	}

	summary, err := engine.Run(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	stats := summary.Stats
	if stats.PagesVisited != 3 {
		t.Errorf("PagesVisited = %d, want 3", stats.PagesVisited)
	}
	if stats.PagesSucceeded != 3 {
		t.Errorf("PagesSucceeded = %d, want 3", stats.PagesSucceeded)
	}
	if stats.PagesFailed != 0 {
		t.Errorf("PagesFailed = %d, want 0", stats.PagesFailed)
	}
	if stats.MaxDepth != 1 {
		t.Errorf("MaxDepth = %d, want 1", stats.MaxDepth)
	}
	// / has 2 links, /a has 2, /b has 0.
	if stats.TotalLinksExtracted != 4 {
		t.Errorf("TotalLinksExtracted = %d, want 4", stats.TotalLinksExtracted)
	}
	// /a's links to /b and / were both already enqueued.
	if stats.DuplicatesFiltered != 2 {
		t.Errorf("DuplicatesFiltered = %d, want 2", stats.DuplicatesFiltered)
	}
	if stats.StatusCodes[http.StatusOK] != 3 {
		t.Errorf("StatusCodes[200] = %d, want 3", stats.StatusCodes[http.StatusOK])
	}
	if stats.RetryAttempts != 0 {
		t.Errorf("RetryAttempts = %d, want 0", stats.RetryAttempts)
	}

	if summary.UniqueURLsDiscovered != 3 {
		t.Errorf("UniqueURLsDiscovered = %d, want 3", summary.UniqueURLsDiscovered)
	}
	if summary.Cancelled {
		t.Error("Cancelled = true on a drained crawl")
	}
	if want := 4.0 / 3.0; summary.MeanLinksPerPage != want {
		t.Errorf("MeanLinksPerPage = %v, want %v", summary.MeanLinksPerPage, want)
	}
	if len(summary.VisitedURLs) != 3 {
		t.Errorf("VisitedURLs = %v, want 3 entries", summary.VisitedURLs)
	}

	if len(handler.pages) != 3 {
		t.Errorf("OnPage called %d times, want 3", len(handler.pages))
	}
	if len(handler.summaries) != 1 {
		t.Errorf("OnComplete called %d times, want 1", len(handler.summaries))
	}
	// The seed is always the first result in breadth-first order.
	if handler.pages[0].Depth != 0 {
		t.Errorf("first page depth = %d, want 0", handler.pages[0].Depth)
	}
}

func TestEngineStaysOnHost(t *testing.T) {
	t.Parallel()

	var externalHits atomic.Int32
	external := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		externalHits.Add(1)
	}))
	t.Cleanup(external.Close)

	server := newTestSite(t, map[string]string{
		"/": fmt.Sprintf(`<html><body><a href="%s/out">external</a> <a href="/in">internal</a></body></html>`, external.URL),
		"/in": `<html><body>ok</body></html>`,
	})

	engine, err := NewEngine(WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatal(err)
	}

	summary, err := engine.Run(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := externalHits.Load(); got != 0 {
		t.Errorf("external host received %d requests, want 0", got)
	}
	if summary.Stats.PagesVisited != 2 {
		t.Errorf("PagesVisited = %d, want 2", summary.Stats.PagesVisited)
	}
	// Only the same-host link counts as extracted.
	if summary.Stats.TotalLinksExtracted != 1 {
		t.Errorf("TotalLinksExtracted = %d, want 1", summary.Stats.TotalLinksExtracted)
	}
}

func TestEngineRetryExhausted(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><a href="/bad">bad</a></body></html>`)
	})
	mux.HandleFunc("/bad", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	engine, err := NewEngine(WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatal(err)
	}

	summary, err := engine.Run(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	stats := summary.Stats
	// Seed plus two attempts at /bad.
	if stats.PagesVisited != 3 {
		t.Errorf("PagesVisited = %d, want 3", stats.PagesVisited)
	}
	if stats.PagesFailed != 2 {
		t.Errorf("PagesFailed = %d, want 2", stats.PagesFailed)
	}
	if stats.RetryAttempts != 1 {
		t.Errorf("RetryAttempts = %d, want 1", stats.RetryAttempts)
	}
	if stats.RetryFailures != 1 {
		t.Errorf("RetryFailures = %d, want 1", stats.RetryFailures)
	}
	if stats.RetrySuccesses != 0 {
		t.Errorf("RetrySuccesses = %d, want 0", stats.RetrySuccesses)
	}
	if stats.FailureReasons["HTTP 503"] != 2 {
		t.Errorf("FailureReasons[HTTP 503] = %d, want 2", stats.FailureReasons["HTTP 503"])
	}

	if len(summary.Failures) != 2 {
		t.Fatalf("failure log has %d events, want 2", len(summary.Failures))
	}
	for i, event := range summary.Failures {
		if event.ResolvedOnRetry {
			t.Errorf("event %d marked resolved, want terminal", i)
		}
		if event.Attempt != i {
			t.Errorf("event %d attempt = %d, want %d", i, event.Attempt, i)
		}
	}
}

func TestEngineRetrySucceeds(t *testing.T) {
	t.Parallel()

	var flakyHits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><a href="/flaky">flaky</a></body></html>`)
	})
	mux.HandleFunc("/flaky", func(w http.ResponseWriter, r *http.Request) {
		if flakyHits.Add(1) == 1 {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body>fine now</body></html>`)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	engine, err := NewEngine(WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatal(err)
	}

	summary, err := engine.Run(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	stats := summary.Stats
	if stats.RetryAttempts != 1 {
		t.Errorf("RetryAttempts = %d, want 1", stats.RetryAttempts)
	}
	if stats.RetrySuccesses != 1 {
		t.Errorf("RetrySuccesses = %d, want 1", stats.RetrySuccesses)
	}
	if stats.RetryFailures != 0 {
		t.Errorf("RetryFailures = %d, want 0", stats.RetryFailures)
	}
	if len(summary.Failures) != 1 {
		t.Fatalf("failure log has %d events, want 1", len(summary.Failures))
	}
	if !summary.Failures[0].ResolvedOnRetry {
		t.Error("failure event not marked resolved after successful retry")
	}
	if len(summary.TerminalFailures()) != 0 {
		t.Errorf("TerminalFailures = %v, want none", summary.TerminalFailures())
	}
}

func TestEngineMaxPages(t *testing.T) {
	t.Parallel()

	pages := map[string]string{
		"/": `<html><body><a href="/p1">1</a><a href="/p2">2</a><a href="/p3">3</a><a href="/p4">4</a></body></html>`,
	}
	for i := 1; i <= 4; i++ {
		pages[fmt.Sprintf("/p%d", i)] = "<html><body>leaf</body></html>"
	}
	server := newTestSite(t, pages)

	engine, err := NewEngine(
		WithHTTPClient(server.Client()),
		WithMaxPages(2),
	)
	if err != nil {
		t.Fatal(err)
	}

	summary, err := engine.Run(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if summary.Stats.PagesVisited != 2 {
		t.Errorf("PagesVisited = %d, want exactly 2", summary.Stats.PagesVisited)
	}
	if summary.Cancelled {
		t.Error("Cancelled = true, page cap is not a cancellation")
	}
	// Discovery still happened even though the cap stopped fetching.
	if summary.UniqueURLsDiscovered != 5 {
		t.Errorf("UniqueURLsDiscovered = %d, want 5", summary.UniqueURLsDiscovered)
	}
}

func TestEngineCancellation(t *testing.T) {
	t.Parallel()

	pages := map[string]string{}
	var links string
	for i := range 10 {
		path := fmt.Sprintf("/p%d", i)
		links += fmt.Sprintf(`<a href="%s">l</a>`, path)
		pages[path] = "<html><body>leaf</body></html>"
	}
	pages["/"] = "<html><body>" + links + "</body></html>"

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(30 * time.Millisecond)
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, pages[r.URL.Path])
	}))
	t.Cleanup(server.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()

	engine, err := NewEngine(
		WithHTTPClient(server.Client()),
		WithConcurrency(2),
	)
	if err != nil {
		t.Fatal(err)
	}

	summary, err := engine.Run(ctx, server.URL)
	if err != nil {
		t.Fatalf("Run() error = %v, cancellation must not be an error", err)
	}

	if !summary.Cancelled {
		t.Error("Cancelled = false, want true")
	}
	if summary.Stats.PagesVisited >= 11 {
		t.Errorf("PagesVisited = %d, want fewer than the whole site", summary.Stats.PagesVisited)
	}
}

func TestEngineConcurrencyBound(t *testing.T) {
	t.Parallel()

	const limit = 3

	var current, peak atomic.Int32
	pages := map[string]string{}
	var links string
	for i := range 20 {
		path := fmt.Sprintf("/p%d", i)
		links += fmt.Sprintf(`<a href="%s">l</a>`, path)
		pages[path] = "<html><body>leaf</body></html>"
	}
	pages["/"] = "<html><body>" + links + "</body></html>"

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := current.Add(1)
		defer current.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, pages[r.URL.Path])
	}))
	t.Cleanup(server.Close)

	engine, err := NewEngine(
		WithHTTPClient(server.Client()),
		WithConcurrency(limit),
	)
	if err != nil {
		t.Fatal(err)
	}

	summary, err := engine.Run(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := peak.Load(); got > limit {
		t.Errorf("observed %d concurrent requests, limit is %d", got, limit)
	}
	if summary.Stats.ActualMaxConcurrency > limit {
		t.Errorf("ActualMaxConcurrency = %d, limit is %d", summary.Stats.ActualMaxConcurrency, limit)
	}
	if summary.Stats.ActualMaxConcurrency < 1 {
		t.Errorf("ActualMaxConcurrency = %d, want at least 1", summary.Stats.ActualMaxConcurrency)
	}
	if summary.Stats.PagesVisited != 21 {
		t.Errorf("PagesVisited = %d, want 21", summary.Stats.PagesVisited)
	}
}

func TestEngineRedirectMarksFinalURL(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><a href="/old">old</a></body></html>`)
	})
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body>landed</body></html>`)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	handler := &collectingHandler{}
	engine, err := NewEngine(
		WithHTTPClient(server.Client()),
		WithHandler(handler),
	)
	if err != nil {
		t.Fatal(err)
	}

	summary, err := engine.Run(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	var sawFinal bool
	for _, u := range summary.VisitedURLs {
		if u == server.URL+"/new" {
			sawFinal = true
		}
	}
	if !sawFinal {
		t.Errorf("VisitedURLs = %v, want the post-redirect URL %s/new", summary.VisitedURLs, server.URL)
	}
	// /old (enqueued) and /new (marked seen) are both discovered.
	if summary.UniqueURLsDiscovered != 3 {
		t.Errorf("UniqueURLsDiscovered = %d, want 3", summary.UniqueURLsDiscovered)
	}
}

func TestEnginePathPatterns(t *testing.T) {
	t.Parallel()

	server := newTestSite(t, map[string]string{
		"/":            `<html><body><a href="/docs/a">d</a><a href="/admin/panel">admin</a><a href="/other">o</a></body></html>`,
		"/docs/a":      `<html><body>doc</body></html>`,
		"/admin/panel": `<html><body>secret</body></html>`,
		"/other":       `<html><body>other</body></html>`,
	})

	t.Run("ignore patterns", func(t *testing.T) {
		t.Parallel()

		engine, err := NewEngine(
			WithHTTPClient(server.Client()),
			WithIgnorePatterns([]string{"/admin/*"}),
		)
		if err != nil {
			t.Fatal(err)
		}

		summary, err := engine.Run(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		for _, u := range summary.VisitedURLs {
			if u == server.URL+"/admin/panel" {
				t.Error("ignored path was crawled")
			}
		}
		if summary.Stats.PagesVisited != 3 {
			t.Errorf("PagesVisited = %d, want 3", summary.Stats.PagesVisited)
		}
	})

	t.Run("follow patterns", func(t *testing.T) {
		t.Parallel()

		engine, err := NewEngine(
			WithHTTPClient(server.Client()),
			WithFollowPatterns([]string{"/docs/*"}),
		)
		if err != nil {
			t.Fatal(err)
		}

		summary, err := engine.Run(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		// Seed plus the single matching link.
		if summary.Stats.PagesVisited != 2 {
			t.Errorf("PagesVisited = %d, want 2", summary.Stats.PagesVisited)
		}
	})
}

func TestEngineCounterConsistency(t *testing.T) {
	t.Parallel()

	var flakyHits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><a href="/flaky">f</a><a href="/bad">b</a><a href="/good">g</a></body></html>`)
	})
	mux.HandleFunc("/flaky", func(w http.ResponseWriter, r *http.Request) {
		if flakyHits.Add(1) == 1 {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body>ok</body></html>`)
	})
	mux.HandleFunc("/bad", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	})
	mux.HandleFunc("/good", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body>ok</body></html>`)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	engine, err := NewEngine(WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatal(err)
	}

	summary, err := engine.Run(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	stats := summary.Stats
	if stats.PagesVisited != stats.PagesSucceeded+stats.PagesFailed {
		t.Errorf("PagesVisited %d != PagesSucceeded %d + PagesFailed %d",
			stats.PagesVisited, stats.PagesSucceeded, stats.PagesFailed)
	}
	if stats.RetryAttempts != stats.RetrySuccesses+stats.RetryFailures {
		t.Errorf("RetryAttempts %d != RetrySuccesses %d + RetryFailures %d",
			stats.RetryAttempts, stats.RetrySuccesses, stats.RetryFailures)
	}
	var statusTotal int
	for _, n := range stats.StatusCodes {
		statusTotal += n
	}
	// Every attempt here produced a response.
	if statusTotal != stats.PagesVisited {
		t.Errorf("status code counts sum to %d, want PagesVisited %d", statusTotal, stats.PagesVisited)
	}
}

func TestNewEngineValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opts []Option
	}{
		{name: "zero concurrency", opts: []Option{WithConcurrency(0)}},
		{name: "negative concurrency", opts: []Option{WithConcurrency(-1)}},
		{name: "negative max pages", opts: []Option{WithMaxPages(-1)}},
		{name: "zero timeout", opts: []Option{WithTimeout(0)}},
		{name: "negative delay", opts: []Option{WithDelay(-time.Second)}},
		{name: "bad ignore pattern", opts: []Option{WithIgnorePatterns([]string{"[unclosed"})}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if _, err := NewEngine(tt.opts...); err == nil {
				t.Error("NewEngine() error = nil, want validation error")
			}
		})
	}
}

func TestEngineInvalidStartURL(t *testing.T) {
	t.Parallel()

	engine, err := NewEngine()
	if err != nil {
		t.Fatal(err)
	}

	for _, seed := range []string{"", "ftp://example.com", "not a url", "/relative"} {
		summary, err := engine.Run(context.Background(), seed)
		if err == nil {
			t.Errorf("Run(%q) error = nil, want error", seed)
			continue
		}
		if summary != nil {
			t.Errorf("Run(%q) summary = %+v, want nil", seed, summary)
		}
		var classified *ClassifiedError
		if !errors.As(err, &classified) {
			t.Errorf("Run(%q) error is %T, want *ClassifiedError", seed, err)
		}
	}
}
