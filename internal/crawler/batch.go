package crawler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nao1215/webcrawl/internal/model"
	"golang.org/x/sync/errgroup"
)

// BatchRunner crawls multiple start URLs concurrently, one full crawl per
// seed. It uses errgroup to manage goroutines and respect the crawl-level
// concurrency limit; each crawl additionally runs its own per-page
// concurrency internally.
//
// Design decision: We use a separate BatchRunner rather than teaching the
// Engine about multiple seeds because:
// 1. It keeps the Engine focused on single-host crawl execution
// 2. A seed list spanning different hosts needs per-host engines anyway
// 3. It provides cleaner separation of concerns
type BatchRunner struct {
	// engineFactory creates a fresh engine for each seed. Engines are
	// single-use, so every crawl gets its own instance.
	engineFactory func() (*Engine, error)

	// concurrency is the maximum number of simultaneous crawls.
	concurrency int

	// logger is used for batch-level logging.
	logger *slog.Logger

	// results stores completed summaries, indexed like the seed slice.
	// Access is synchronized via mutex.
	results []*model.CrawlSummary
	mu      sync.Mutex
}

// BatchOption configures a BatchRunner.
type BatchOption func(*BatchRunner)

// WithBatchLogger sets a custom logger for batch runs.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchRunner) {
		b.logger = logger
	}
}

// WithBatchConcurrency sets the maximum number of simultaneous crawls.
// Default is 3 if not specified.
func WithBatchConcurrency(n int) BatchOption {
	return func(b *BatchRunner) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchRunner creates a new BatchRunner.
//
// The engineFactory function is called once per seed to create a fresh
// engine. This ensures that per-crawl state never leaks between crawls.
func NewBatchRunner(engineFactory func() (*Engine, error), opts ...BatchOption) *BatchRunner {
	br := &BatchRunner{
		engineFactory: engineFactory,
		concurrency:   3,
	}

	for _, opt := range opts {
		opt(br)
	}

	if br.logger == nil {
		br.logger = slog.Default()
	}

	return br
}

// Run crawls every seed URL and returns the summaries in seed order.
// A seed whose crawl failed outright (bad URL, engine fault) leaves a nil
// entry in its slot; partial crawls still produce a summary.
//
// Design decision: We use errgroup.SetLimit rather than a worker pool
// because it's simpler and errgroup handles the concurrency correctly.
// Each seed gets its own goroutine, but only 'concurrency' goroutines run
// simultaneously.
func (br *BatchRunner) Run(ctx context.Context, seeds []string) ([]*model.CrawlSummary, error) {
	br.logger.Info("starting batch crawl",
		"total_seeds", len(seeds),
		"concurrency", br.concurrency,
	)

	startTime := time.Now()

	// Pre-allocate results slice to maintain order
	br.results = make([]*model.CrawlSummary, len(seeds))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(br.concurrency)

	for i, seed := range seeds {
		g.Go(func() error {
			// Check for cancellation before starting
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			br.logger.Info("crawling seed",
				"seed", seed,
				"index", i+1,
				"total", len(seeds),
			)

			summary, err := br.runOne(ctx, seed)

			// Store whatever was collected regardless of error
			br.mu.Lock()
			br.results[i] = summary
			br.mu.Unlock()

			if err != nil {
				br.logger.Warn("crawl failed",
					"seed", seed,
					"error", err,
				)
				// Don't return the error to errgroup - we want the other
				// crawls to continue
				return nil
			}

			br.logger.Info("crawl completed", "seed", seed)
			return nil
		})
	}

	err := g.Wait()

	elapsed := time.Since(startTime)
	br.logger.Info("batch crawl complete",
		"total_seeds", len(seeds),
		"elapsed", elapsed,
	)

	return br.results, err
}

// RunWithCallback crawls every seed and calls the callback for each
// completed crawl. This is useful for streaming output.
//
// The callback receives the summary (nil when the crawl failed outright)
// and the index of the seed in the original slice. It is called from the
// goroutine that ran the crawl, so it must be safe for concurrent use.
func (br *BatchRunner) RunWithCallback(
	ctx context.Context,
	seeds []string,
	callback func(summary *model.CrawlSummary, index int),
) error {
	br.logger.Info("starting batch crawl with callback",
		"total_seeds", len(seeds),
		"concurrency", br.concurrency,
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(br.concurrency)

	for i, seed := range seeds {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			summary, err := br.runOne(ctx, seed)
			if err != nil {
				br.logger.Warn("crawl failed", "seed", seed, "error", err)
			}

			callback(summary, i)
			return nil
		})
	}

	return g.Wait()
}

// runOne builds a fresh engine and runs a single crawl.
func (br *BatchRunner) runOne(ctx context.Context, seed string) (*model.CrawlSummary, error) {
	engine, err := br.engineFactory()
	if err != nil {
		return nil, err
	}
	return engine.Run(ctx, seed)
}
