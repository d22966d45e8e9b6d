package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/webcrawl/internal/config"
	"github.com/nao1215/webcrawl/internal/crawler"
	"github.com/nao1215/webcrawl/internal/database"
	"github.com/nao1215/webcrawl/internal/log"
	"github.com/nao1215/webcrawl/internal/model"
	"github.com/nao1215/webcrawl/internal/report"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [url...]",
		Short: "Crawl a website starting from a seed URL",
		Long: `Crawl fetches a site breadth-first starting from the seed URL.

It follows links within the same scheme and host, retries transient
failures once, and reports crawl statistics:
- Pages visited, succeeded, and failed
- Unique URLs discovered and duplicates filtered
- HTTP status code distribution
- Full failure log with retry outcomes

Examples:
  # Crawl a single site
  webcrawl crawl https://example.com

  # Crawl several sites concurrently
  webcrawl crawl https://a.example https://b.example

  # Limit the crawl to 100 pages with 4 workers
  webcrawl crawl --max-pages 100 --concurrency 4 https://example.com

  # Output JSON report to a file
  webcrawl crawl --json -o report.json https://example.com

  # Use a custom configuration file
  webcrawl crawl -c myconfig.yaml https://example.com

Configuration file (.webcrawl) example:
  hosts:
    example.com:
      cookie: "session_id=abc123"
      headers:
        Authorization: "Bearer token"
      delay: 500ms
    other.example:
      maxPages: 50
      ignorePatterns:
        - "/admin/*"`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	// Crawl behavior flags
	cmd.Flags().IntP("concurrency", "n", config.DefaultConcurrency,
		"Maximum number of concurrent page fetches")
	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPages,
		"Maximum number of pages to visit (0 = unlimited)")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each page fetch")
	cmd.Flags().Duration("delay", config.DefaultCrawlDelay,
		"Minimum delay between requests (politeness)")
	cmd.Flags().Bool("depth-first", false,
		"Prefer shallow pages when dequeuing instead of strict arrival order")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header sent with each request")

	// Batch crawling flags
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of concurrent crawls when multiple seeds are given")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .webcrawl in current or home directory)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
	cmd.Flags().Bool("no-save", false,
		"Do not save crawl results to the local database")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := log.NewSecureLogger(os.Stderr, cfg.Verbose)
	slog.SetDefault(logger)

	// Set up context with signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, cancelling...")
		cancel()
	}()

	return runCrawl(ctx, cfg, logger)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from cobra command flags.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()

	var err error

	cfg.Concurrency, err = cmd.Flags().GetInt("concurrency")
	if err != nil {
		return nil, err
	}

	cfg.MaxPages, err = cmd.Flags().GetInt("max-pages")
	if err != nil {
		return nil, err
	}

	cfg.Timeout, err = cmd.Flags().GetDuration("timeout")
	if err != nil {
		return nil, err
	}

	cfg.CrawlDelay, err = cmd.Flags().GetDuration("delay")
	if err != nil {
		return nil, err
	}

	cfg.DepthPriority, err = cmd.Flags().GetBool("depth-first")
	if err != nil {
		return nil, err
	}

	cfg.UserAgent, err = cmd.Flags().GetString("user-agent")
	if err != nil {
		return nil, err
	}

	cfg.BatchSize, err = cmd.Flags().GetInt("batch")
	if err != nil {
		return nil, err
	}

	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	// Load host-specific configurations from config file.
	// If user explicitly specified a config file path, error if not found.
	// If no path specified, silently use empty config if no file found.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)

	if configPath != "" {
		cfg.HostConfigs, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	} else if explicitConfigPath {
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	} else {
		cfg.HostConfigs = &config.File{
			Hosts: make(map[string]config.HostConfig),
		}
	}

	cfg.JSONReport, err = cmd.Flags().GetBool("json")
	if err != nil {
		return nil, err
	}

	cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown")
	if err != nil {
		return nil, err
	}

	cfg.ReportFile, err = cmd.Flags().GetString("output")
	if err != nil {
		return nil, err
	}

	noSave, err := cmd.Flags().GetBool("no-save")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noSave
	cfg.DBDir = config.XDGDataDir()

	cfg.Verbose = getVerboseFlag(cmd)

	// Positional arguments are the seed URLs
	cfg.Seeds = args

	return cfg, nil
}

// runCrawl executes the crawl for all configured seeds.
func runCrawl(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting crawl",
		"seeds", cfg.Seeds,
		"concurrency", cfg.Concurrency,
		"maxPages", cfg.MaxPages,
		"saveToDB", cfg.SaveToDB,
	)

	// Open database connection if saving is enabled
	var db *database.CrawlDB
	if cfg.SaveToDB {
		var err error
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Info("database opened", "dir", cfg.DBDir)
	}

	// Validate and normalize all seed URLs before starting any work
	for i, seed := range cfg.Seeds {
		normalized, ok := crawler.Normalize(seed, nil)
		if !ok {
			return fmt.Errorf("invalid seed URL: %q", seed)
		}
		cfg.Seeds[i] = normalized
	}

	// Use the batch runner for parallel crawling if multiple seeds
	if len(cfg.Seeds) > 1 && cfg.BatchSize > 1 {
		return runBatchCrawl(ctx, cfg, db, logger)
	}

	return runSequentialCrawl(ctx, cfg, db, logger)
}

// runSequentialCrawl crawls seeds one at a time.
func runSequentialCrawl(ctx context.Context, cfg *config.Config, db *database.CrawlDB, logger *slog.Logger) error {
	for _, seed := range cfg.Seeds {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		engine, err := buildEngineForSeed(ctx, cfg, db, logger, seed)
		if err != nil {
			return err
		}

		fmt.Printf("Crawling %s...\n", seed)
		startTime := time.Now()

		summary, err := engine.Run(ctx, seed)
		if err != nil {
			logger.Error("crawl failed", "seed", seed, "error", err)
			fmt.Fprintf(os.Stderr, "Crawl error for %s: %v\n", seed, err)
			continue
		}

		elapsed := time.Since(startTime)
		fmt.Printf("Crawl completed in %s\n\n", elapsed.Round(time.Millisecond))

		if err := outputReport(cfg, summary); err != nil {
			logger.Error("report failed", "seed", seed, "error", err)
		}

		if err := saveSummary(ctx, db, summary, logger); err != nil {
			logger.Error("failed to save crawl summary", "seed", seed, "error", err)
		}
	}

	return nil
}

// runBatchCrawl crawls multiple seeds concurrently using BatchRunner.
func runBatchCrawl(ctx context.Context, cfg *config.Config, db *database.CrawlDB, logger *slog.Logger) error {
	fmt.Printf("Starting batch crawl of %d seeds (concurrency: %d)...\n\n",
		len(cfg.Seeds), cfg.BatchSize)

	startTime := time.Now()

	// Warn user about batch processing limitation
	if cfg.HostConfigs != nil && len(cfg.HostConfigs.Hosts) > 0 {
		logger.Warn("batch crawling uses default host config only; host-specific configs (cookies, headers, delay) are ignored",
			"hostCount", len(cfg.HostConfigs.Hosts))
		fmt.Fprintf(os.Stderr, "Warning: Host-specific configurations are ignored in batch mode. Use sequential mode (--batch 1) to apply per-host settings.\n\n")
	}

	// All engines in a batch share the default host config because the
	// factory has no seed argument.
	runner := crawler.NewBatchRunner(
		func() (*crawler.Engine, error) {
			var hostCfg config.HostConfig
			if cfg.HostConfigs != nil {
				hostCfg = cfg.HostConfigs.Defaults
			}
			return buildEngine(ctx, cfg, hostCfg, db, logger)
		},
		crawler.WithBatchConcurrency(cfg.BatchSize),
		crawler.WithBatchLogger(logger),
	)

	// Process with callback for streaming output
	var mu sync.Mutex
	err := runner.RunWithCallback(ctx, cfg.Seeds, func(summary *model.CrawlSummary, index int) {
		mu.Lock()
		defer mu.Unlock()

		// A nil summary means the crawl failed outright (for example the
		// engine could not be built). The runner already logged the cause.
		if summary == nil {
			fmt.Fprintf(os.Stderr, "[%d/%d] Crawl failed: %s\n", index+1, len(cfg.Seeds), cfg.Seeds[index])
			return
		}

		fmt.Printf("[%d/%d] Crawl completed: %s\n", index+1, len(cfg.Seeds), summary.Host)

		if err := outputReport(cfg, summary); err != nil {
			logger.Error("report failed", "host", summary.Host, "error", err)
		}

		if err := saveSummary(ctx, db, summary, logger); err != nil {
			logger.Error("failed to save crawl summary", "host", summary.Host, "error", err)
		}
	})

	elapsed := time.Since(startTime)
	fmt.Printf("\nBatch crawl completed in %s\n", elapsed.Round(time.Millisecond))

	return err
}

// buildEngineForSeed creates an engine configured for the seed's host.
func buildEngineForSeed(ctx context.Context, cfg *config.Config, db *database.CrawlDB, logger *slog.Logger, seed string) (*crawler.Engine, error) {
	var hostCfg config.HostConfig
	if cfg.HostConfigs != nil {
		hostname := ""
		if u, err := url.Parse(seed); err == nil {
			hostname = u.Hostname()
		}
		hostCfg = cfg.HostConfigs.GetHostConfig(hostname)
	}
	return buildEngine(ctx, cfg, hostCfg, db, logger)
}

// buildEngine creates an engine from global config merged with host overrides.
func buildEngine(ctx context.Context, cfg *config.Config, hostCfg config.HostConfig, db *database.CrawlDB, logger *slog.Logger) (*crawler.Engine, error) {
	maxPages := cfg.MaxPages
	if hostCfg.MaxPages > 0 {
		maxPages = hostCfg.MaxPages
	}

	delay := cfg.CrawlDelay
	if hostCfg.Delay > 0 {
		delay = hostCfg.Delay.Std()
	}

	opts := []crawler.Option{
		crawler.WithConcurrency(cfg.Concurrency),
		crawler.WithMaxPages(maxPages),
		crawler.WithTimeout(cfg.Timeout),
		crawler.WithDelay(delay),
		crawler.WithDepthPriority(cfg.DepthPriority),
		crawler.WithLogger(logger),
		crawler.WithUserAgent(cfg.UserAgent),
		crawler.WithMaxBodySize(cfg.MaxBodySize),
		crawler.WithHandler(&streamingHandler{ctx: ctx, db: db, logger: logger}),
	}

	if hostCfg.Cookie != "" {
		opts = append(opts, crawler.WithCookie(hostCfg.Cookie))
	}
	if len(hostCfg.Headers) > 0 {
		opts = append(opts, crawler.WithHeaders(hostCfg.Headers))
	}
	if len(hostCfg.IgnorePatterns) > 0 {
		opts = append(opts, crawler.WithIgnorePatterns(hostCfg.IgnorePatterns))
	}
	if len(hostCfg.FollowPatterns) > 0 {
		opts = append(opts, crawler.WithFollowPatterns(hostCfg.FollowPatterns))
	}

	return crawler.NewEngine(opts...)
}

// streamingHandler persists pages as they are crawled and logs progress.
// If db is nil, pages are only logged.
type streamingHandler struct {
	ctx    context.Context
	db     *database.CrawlDB
	logger *slog.Logger
}

// OnPage saves the page record and logs the visit.
func (h *streamingHandler) OnPage(page *model.PageResult) {
	if page.OK() {
		h.logger.Debug("page crawled",
			"url", page.URL, "status", page.StatusCode, "depth", page.Depth, "links", len(page.Links))
	} else {
		h.logger.Debug("page failed",
			"url", page.URL, "reason", page.Error, "depth", page.Depth, "attempt", page.Attempt)
	}

	if h.db == nil {
		return
	}

	host := ""
	if u, err := url.Parse(page.URL); err == nil {
		host = u.Hostname()
	}

	record := &database.PageRecord{
		URL:         page.URL,
		Host:        host,
		StatusCode:  page.StatusCode,
		ContentType: page.ContentType,
		Title:       page.Title,
		Depth:       page.Depth,
	}
	if _, err := h.db.UpsertPage(h.ctx, record); err != nil {
		h.logger.Error("failed to save page", "url", page.URL, "error", err)
	}
}

// OnError logs recoverable crawl errors.
func (h *streamingHandler) OnError(err error, url string, depth int) {
	h.logger.Warn("crawl error", "url", url, "depth", depth, "error", err)
}

// OnComplete logs the final counters.
func (h *streamingHandler) OnComplete(summary *model.CrawlSummary) {
	h.logger.Info("crawl finished",
		"host", summary.Host,
		"visited", summary.Stats.PagesVisited,
		"failed", summary.Stats.PagesFailed,
		"unique", summary.UniqueURLsDiscovered,
		"cancelled", summary.Cancelled,
	)
}

// outputReport outputs the crawl summary in the requested format.
func outputReport(cfg *config.Config, summary *model.CrawlSummary) error {
	// Determine output destination
	var output *os.File
	if cfg.ReportFile != "" {
		// Create directories if they don't exist
		dir := filepath.Dir(cfg.ReportFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
	} else {
		output = os.Stdout
	}

	// JSON output
	if cfg.JSONReport {
		writer := report.NewJSONWriter(output, report.WithPrettyPrint())
		_, err := writer.Write(summary)
		return err
	}

	// Markdown output
	if cfg.MarkdownReport {
		writer := report.NewMarkdownWriter(output)
		_, err := writer.Write(summary)
		return err
	}

	// Human-readable report (default)
	writer := report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose))
	_, err := writer.Write(summary)
	return err
}

// saveSummary saves the crawl summary to the database if enabled.
// If db is nil, this function is a no-op.
func saveSummary(ctx context.Context, db *database.CrawlDB, summary *model.CrawlSummary, logger *slog.Logger) error {
	if db == nil {
		return nil
	}

	if err := db.SaveSummary(ctx, summary); err != nil {
		return fmt.Errorf("failed to save crawl summary: %w", err)
	}

	logger.Info("crawl summary saved to database", "host", summary.Host)
	return nil
}
