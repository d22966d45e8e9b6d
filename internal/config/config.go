package config

import (
	"fmt"
	"path"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// DefaultConcurrency is the number of simultaneous in-flight requests
	// per crawl. Eight keeps a typical site busy without looking like a
	// flood; most web servers handle eight connections from one client
	// without rate limiting.
	DefaultConcurrency = 8

	// DefaultTimeout is the per-request deadline. 10 seconds is generous
	// for a healthy server and short enough that a crawl over a site with
	// a few dead pages still finishes promptly.
	DefaultTimeout = 10 * time.Second

	// DefaultMaxPages of 0 means unlimited: the crawl runs until the
	// frontier drains. Users cap runaway crawls via the --max-pages flag.
	DefaultMaxPages = 0

	// DefaultBatchSize of 3 concurrent crawls balances throughput with
	// resource usage when multiple seed URLs are given. Each crawl already
	// runs its own per-page concurrency internally.
	DefaultBatchSize = 3

	// AppName is the application name used for XDG directory paths.
	AppName = "webcrawl"

	// DefaultCrawlDelay is the delay between requests during crawling.
	// Zero by default: politeness delays are opt-in via --delay or the
	// config file, because single-host crawls against servers you operate
	// rarely need them.
	DefaultCrawlDelay = 0 * time.Second

	// DefaultUserAgent identifies webcrawl in HTTP requests.
	// Using a descriptive User-Agent is good practice and allows operators
	// to identify crawler traffic in their logs.
	DefaultUserAgent = "webcrawl/1.0 (+https://github.com/nao1215/webcrawl)"

	// DefaultMaxBodySize limits the maximum response body size to read.
	// 5MB is sufficient for most HTML pages while preventing memory
	// exhaustion from unexpectedly large responses.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB
)

// Config holds all configuration options for webcrawl.
// This struct is designed to be populated from CLI flags and passed through
// the application via dependency injection rather than global state.
//
// Design decision: We use a single flat struct instead of nested structs
// (e.g., CrawlConfig, ReportConfig) for simplicity. The number of options
// is manageable, and nesting would add complexity without significant benefit.
type Config struct {
	// Seeds is the list of start URLs to crawl. Each seed produces one
	// independent crawl confined to that seed's host.
	Seeds []string

	// Concurrency is the maximum number of simultaneous in-flight
	// requests within a single crawl.
	Concurrency int

	// MaxPages is the maximum number of fetch attempts per crawl.
	// A value of 0 means unlimited.
	MaxPages int

	// Timeout is the deadline for each HTTP request.
	// This applies to individual requests, not the overall crawl duration.
	Timeout time.Duration

	// CrawlDelay is the minimum interval between HTTP requests during
	// crawling. This is a "politeness" setting; it is enforced across all
	// concurrent requests of a crawl, not per request slot.
	CrawlDelay time.Duration

	// DepthPriority makes the scheduler prefer shallower pages over
	// strict FIFO order. Useful when a page cap is set and coverage of
	// the top of the site matters more than depth.
	DepthPriority bool

	// Verbose enables detailed log output using slog.LevelDebug.
	// When false, only warnings and errors are logged.
	Verbose bool

	// BatchSize is the number of concurrent crawls when multiple seeds
	// are given. Each crawl additionally runs Concurrency requests.
	BatchSize int

	// ConfigFilePath is the path to the configuration file.
	// If empty, the tool searches for .webcrawl in the current directory
	// and then in the user's home directory.
	ConfigFilePath string

	// HostConfigs holds per-host configurations loaded from the config
	// file. This is populated by LoadConfigFile and consulted per seed.
	HostConfigs *File

	// JSONReport enables JSON report output instead of human-readable format.
	// Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport enables Markdown report output instead of
	// human-readable format. When true, outputs GitHub Flavored Markdown
	// with tables, alerts, and pie charts.
	// Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile is the output file path for the report.
	// When set, the report is written to this file instead of stdout.
	// Directories are created automatically if they don't exist.
	ReportFile string

	// DBDir is the directory path for storing the SQLite database.
	// When set, crawl results are saved for historical comparison.
	// Defaults to XDG data directory (~/.local/share/webcrawl on Linux).
	DBDir string

	// SaveToDB indicates whether to save crawl results to the database.
	SaveToDB bool

	// UserAgent is the User-Agent header sent with HTTP requests.
	// A descriptive User-Agent helps operators identify crawler traffic.
	UserAgent string

	// MaxBodySize is the maximum response body size in bytes to read.
	// Responses larger than this are truncated to prevent memory
	// exhaustion. Set to 0 to use the default (5MB).
	MaxBodySize int64
}

// NewConfig creates a new Config with default values.
// All fields are set to safe, sensible defaults that work for most use cases.
// Users can override specific values after creation.
//
// Design decision: We use a constructor function instead of relying on
// zero values because many defaults are non-zero (e.g., timeout,
// concurrency). This also serves as documentation of what the defaults are.
func NewConfig() *Config {
	return &Config{
		Concurrency: DefaultConcurrency,
		Timeout:     DefaultTimeout,
		MaxPages:    DefaultMaxPages,
		BatchSize:   DefaultBatchSize,
		CrawlDelay:  DefaultCrawlDelay,
		UserAgent:   DefaultUserAgent,
		MaxBodySize: DefaultMaxBodySize,
	}
}

// XDGDataDir returns the XDG data directory for webcrawl.
// This follows the XDG Base Directory Specification.
// On Linux: ~/.local/share/webcrawl
// On macOS: ~/Library/Application Support/webcrawl
// On Windows: %LOCALAPPDATA%\webcrawl
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for webcrawl.
// This follows the XDG Base Directory Specification.
// On Linux: ~/.config/webcrawl
// On macOS: ~/Library/Application Support/webcrawl
// On Windows: %APPDATA%\webcrawl
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGCacheDir returns the XDG cache directory for webcrawl.
// This follows the XDG Base Directory Specification.
// On Linux: ~/.cache/webcrawl
// On macOS: ~/Library/Caches/webcrawl
// On Windows: %LOCALAPPDATA%\webcrawl\cache
func XDGCacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns a specific error describing what is invalid.
//
// Design decision: We validate at the config level rather than at each
// point of use to fail fast and provide clear error messages upfront.
// This is called once after CLI parsing, before any crawling begins.
//
// We chose to return the first error found rather than collecting all errors
// because fixing one error often makes others irrelevant.
func (c *Config) Validate() error {
	// We must have at least one seed URL to crawl
	if len(c.Seeds) == 0 {
		return ErrNoSeed
	}

	// Concurrency must be positive; zero would mean no fetching at all
	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}

	// Timeout must be positive; zero timeout would cause immediate failures
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	// MaxPages must be non-negative; zero means unlimited
	if c.MaxPages < 0 {
		return ErrInvalidMaxPages
	}

	// BatchSize must be positive; zero would mean no crawling
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}

	// JSONReport and MarkdownReport are mutually exclusive
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	// CrawlDelay must be non-negative
	if c.CrawlDelay < 0 {
		return ErrInvalidCrawlDelay
	}

	// MaxBodySize must be non-negative; zero means use the default
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	// Glob patterns from the config file are validated here so that a typo
	// in .webcrawl fails before any engine is built. In batch mode engines
	// are created inside worker goroutines, which is too late for a clean
	// error message.
	if c.HostConfigs != nil {
		if err := validatePatterns(c.HostConfigs.Defaults); err != nil {
			return err
		}
		for host, hostCfg := range c.HostConfigs.Hosts {
			if err := validatePatterns(hostCfg); err != nil {
				return fmt.Errorf("host %q: %w", host, err)
			}
		}
	}

	return nil
}

// validatePatterns checks that every ignore and follow pattern is a valid
// path glob.
func validatePatterns(hostCfg HostConfig) error {
	for _, pattern := range hostCfg.IgnorePatterns {
		if _, err := path.Match(pattern, "/"); err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidPattern, pattern)
		}
	}
	for _, pattern := range hostCfg.FollowPatterns {
		if _, err := path.Match(pattern, "/"); err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidPattern, pattern)
		}
	}
	return nil
}
