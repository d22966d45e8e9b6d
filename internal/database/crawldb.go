package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/webcrawl/internal/model"
)

// CrawlDB provides SQLite-based storage for crawl results.
// It manages connection pooling and provides methods for CRUD operations.
//
// Design decision: We use a single database file for all hosts rather
// than separate files per host. This simplifies cross-host queries and
// backup/restore operations.
type CrawlDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures CrawlDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	// This is recommended for most use cases.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a CrawlDB at the specified path.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, "webcrawl.db")

	// Check if we should create the database or require it to exist
	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		// Ensure directory exists
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// Build connection string
	// We use modernc.org/sqlite which uses a different connection string format.
	// When CreateIfNotExists is false, we use mode=rw to prevent creating new files.
	// When CreateIfNotExists is true, we use mode=rwc to allow creation.
	var dsn string
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	} else {
		dsn = dbPath + "?mode=rw"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	// SQLite doesn't benefit from multiple connections for writes,
	// but multiple readers can improve performance
	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{
		db:     db,
		dbPath: dbPath,
	}

	// Enable WAL mode if requested
	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	// Create tables
	if err := cdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return cdb, nil
}

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (cdb *CrawlDB) createTables() error {
	schema := `
	-- Page records store individual page fetches
	CREATE TABLE IF NOT EXISTS pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT NOT NULL,
		host TEXT NOT NULL,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		status_code INTEGER,
		content_type TEXT,
		title TEXT,
		depth INTEGER DEFAULT 0,
		UNIQUE(url, host)
	);

	CREATE INDEX IF NOT EXISTS idx_pages_url ON pages(url);
	CREATE INDEX IF NOT EXISTS idx_pages_host ON pages(host);
	CREATE INDEX IF NOT EXISTS idx_pages_timestamp ON pages(timestamp);

	-- Crawl summaries store complete crawl results as JSON
	CREATE TABLE IF NOT EXISTS crawl_summaries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		host TEXT NOT NULL,
		start_url TEXT NOT NULL,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		summary_json TEXT NOT NULL,
		stats_summary TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_summaries_host ON crawl_summaries(host);
	CREATE INDEX IF NOT EXISTS idx_summaries_timestamp ON crawl_summaries(timestamp);
	`

	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// PageRecord represents a stored page fetch.
type PageRecord struct {
	ID          int64
	URL         string
	Host        string
	Timestamp   time.Time
	StatusCode  int
	ContentType string
	Title       string
	Depth       int
}

// UpsertPage inserts or updates a page record.
// Uses UPSERT to handle duplicates (same URL + host), so re-crawling a
// host refreshes its rows instead of piling up history per page.
func (cdb *CrawlDB) UpsertPage(ctx context.Context, record *PageRecord) (int64, error) {
	query := `
	INSERT INTO pages (url, host, status_code, content_type, title, depth)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(url, host) DO UPDATE SET
		status_code = excluded.status_code,
		content_type = excluded.content_type,
		title = excluded.title,
		depth = excluded.depth,
		timestamp = CURRENT_TIMESTAMP
	`

	result, err := cdb.db.ExecContext(ctx, query,
		record.URL,
		record.Host,
		record.StatusCode,
		record.ContentType,
		record.Title,
		record.Depth,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert page record: %w", err)
	}

	return result.LastInsertId()
}

// GetPage retrieves a page record by URL and host.
// Returns nil without error when no record exists.
func (cdb *CrawlDB) GetPage(ctx context.Context, url, host string) (*PageRecord, error) {
	query := `
	SELECT id, url, host, timestamp, status_code, content_type, title, depth
	FROM pages
	WHERE url = ? AND host = ?
	`

	var record PageRecord
	var timestamp string

	err := cdb.db.QueryRowContext(ctx, query, url, host).Scan(
		&record.ID,
		&record.URL,
		&record.Host,
		&timestamp,
		&record.StatusCode,
		&record.ContentType,
		&record.Title,
		&record.Depth,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get page record: %w", err)
	}

	// Parse timestamp (SQLite may return different formats depending on version/configuration)
	record.Timestamp = parseTimestamp(timestamp)

	return &record, nil
}

// SaveSummary saves a complete crawl summary as JSON.
func (cdb *CrawlDB) SaveSummary(ctx context.Context, summary *model.CrawlSummary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to serialize summary: %w", err)
	}

	// A compact counter snapshot for history listings, so the full JSON
	// does not need to be decoded just to print a table row.
	statsSummary := map[string]int{
		"visited":   summary.Stats.PagesVisited,
		"succeeded": summary.Stats.PagesSucceeded,
		"failed":    summary.Stats.PagesFailed,
		"retries":   summary.Stats.RetryAttempts,
	}
	statsJSON, _ := json.Marshal(statsSummary) //nolint:errcheck,errchkjson // statsSummary is a simple map; Marshal won't fail

	query := `
	INSERT INTO crawl_summaries (host, start_url, summary_json, stats_summary)
	VALUES (?, ?, ?, ?)
	`

	_, err = cdb.db.ExecContext(ctx, query,
		summary.Host,
		summary.StartURL,
		string(summaryJSON),
		string(statsJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save crawl summary: %w", err)
	}

	return nil
}

// GetLatestSummary retrieves the most recent crawl summary for a host.
// Returns nil without error when the host has never been crawled.
func (cdb *CrawlDB) GetLatestSummary(ctx context.Context, host string) (*model.CrawlSummary, error) {
	query := `
	SELECT summary_json FROM crawl_summaries
	WHERE host = ?
	ORDER BY timestamp DESC, id DESC
	LIMIT 1
	`

	var summaryJSON string
	err := cdb.db.QueryRowContext(ctx, query, host).Scan(&summaryJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get crawl summary: %w", err)
	}

	var summary model.CrawlSummary
	if err := json.Unmarshal([]byte(summaryJSON), &summary); err != nil {
		return nil, fmt.Errorf("failed to parse summary: %w", err)
	}

	return &summary, nil
}

// ListHosts returns a list of all crawled hosts.
func (cdb *CrawlDB) ListHosts(ctx context.Context) ([]string, error) {
	query := `
	SELECT DISTINCT host FROM crawl_summaries
	ORDER BY host
	`

	rows, err := cdb.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list hosts: %w", err)
	}
	defer rows.Close()

	var hosts []string
	for rows.Next() {
		var host string
		if err := rows.Scan(&host); err != nil {
			return nil, fmt.Errorf("failed to scan host: %w", err)
		}
		hosts = append(hosts, host)
	}

	return hosts, rows.Err()
}

// GetCrawlHistory retrieves all crawl summaries for a host, newest first.
func (cdb *CrawlDB) GetCrawlHistory(ctx context.Context, host string) ([]*model.CrawlSummary, error) {
	query := `
	SELECT summary_json FROM crawl_summaries
	WHERE host = ?
	ORDER BY timestamp DESC, id DESC
	`

	rows, err := cdb.db.QueryContext(ctx, query, host)
	if err != nil {
		return nil, fmt.Errorf("failed to get crawl history: %w", err)
	}
	defer rows.Close()

	var summaries []*model.CrawlSummary
	for rows.Next() {
		var summaryJSON string
		if err := rows.Scan(&summaryJSON); err != nil {
			return nil, fmt.Errorf("failed to scan summary: %w", err)
		}

		var summary model.CrawlSummary
		if err := json.Unmarshal([]byte(summaryJSON), &summary); err != nil {
			continue // Skip malformed summaries
		}
		summaries = append(summaries, &summary)
	}

	return summaries, rows.Err()
}

// CrawlMetadata contains summary information about a stored crawl.
// This is used for displaying crawl history without loading the full summary.
type CrawlMetadata struct {
	// ID is the unique identifier of the crawl summary in the database.
	ID int64

	// Host is the crawled hostname.
	Host string

	// Timestamp is when the crawl was saved.
	Timestamp time.Time

	// StatsSummary contains the compact counter snapshot
	// (visited, succeeded, failed, retries).
	StatsSummary map[string]int
}

// GetCrawlHistoryWithMetadata retrieves crawl metadata for a host.
// This is more efficient than GetCrawlHistory when only metadata is needed.
func (cdb *CrawlDB) GetCrawlHistoryWithMetadata(ctx context.Context, host string) ([]CrawlMetadata, error) {
	query := `
	SELECT id, host, timestamp, stats_summary
	FROM crawl_summaries
	WHERE host = ?
	ORDER BY timestamp DESC, id DESC
	`

	rows, err := cdb.db.QueryContext(ctx, query, host)
	if err != nil {
		return nil, fmt.Errorf("failed to get crawl history: %w", err)
	}
	defer rows.Close()

	var results []CrawlMetadata
	for rows.Next() {
		var meta CrawlMetadata
		var timestamp string
		var statsJSON sql.NullString

		if err := rows.Scan(&meta.ID, &meta.Host, &timestamp, &statsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}

		meta.Timestamp = parseTimestamp(timestamp)

		if statsJSON.Valid && statsJSON.String != "" {
			if err := json.Unmarshal([]byte(statsJSON.String), &meta.StatsSummary); err != nil {
				meta.StatsSummary = make(map[string]int)
			}
		} else {
			meta.StatsSummary = make(map[string]int)
		}

		results = append(results, meta)
	}

	return results, rows.Err()
}

// GetSummaryByID retrieves a crawl summary by its database ID.
// Returns nil without error when no such row exists.
func (cdb *CrawlDB) GetSummaryByID(ctx context.Context, id int64) (*model.CrawlSummary, error) {
	query := `
	SELECT summary_json FROM crawl_summaries
	WHERE id = ?
	`

	var summaryJSON string
	err := cdb.db.QueryRowContext(ctx, query, id).Scan(&summaryJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get crawl summary: %w", err)
	}

	var summary model.CrawlSummary
	if err := json.Unmarshal([]byte(summaryJSON), &summary); err != nil {
		return nil, fmt.Errorf("failed to parse summary: %w", err)
	}

	return &summary, nil
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	time.RFC3339,              // Full RFC3339 format
	time.RFC3339Nano,          // RFC3339 with nanoseconds
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// SQLite may return timestamps in different formats depending on configuration.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	// Return zero time if no format matches
	// This is a fallback to avoid breaking functionality for edge cases
	return time.Time{}
}
