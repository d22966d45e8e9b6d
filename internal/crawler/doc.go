// Package crawler implements the crawl orchestration engine: a single-host,
// breadth-first crawler with bounded concurrency, URL deduplication, a
// single-retry failure policy, and aggregate statistics.
//
// # Architecture
//
// The Engine drives the crawl. It owns a Frontier (FIFO queue plus
// seen-set), a FailureTracker, and the CrawlStats counters, all of which
// are touched only by the engine's single scheduler goroutine. Fetch tasks
// run as goroutines bounded by the configured concurrency limit; they fetch
// and parse, then hand their outcome back over a channel for the scheduler
// to fold in sequentially. This keeps N fetches in flight without any locks
// around crawl state.
//
// # Components
//
//   - Engine: the scheduler that admits work, folds outcomes, and emits
//     page results and the final summary
//   - Frontier: FIFO queue of pending items with visited-URL deduplication
//   - Fetcher: one HTTP GET with a per-request deadline, outcome
//     classification, and a single transport-level retry
//   - FailureTracker: append-only failure log with retroactive resolution
//   - ExtractLinks: HTML anchor extraction via golang.org/x/net/html
//   - Limiter: optional fixed politeness delay between requests
//   - BatchRunner: concurrent crawls of multiple seed URLs
//
// # Usage
//
//	engine := crawler.NewEngine(httpClient,
//		crawler.WithConcurrency(8),
//		crawler.WithHandler(h),
//	)
//	summary, err := engine.Run(ctx, "https://example.com")
package crawler
