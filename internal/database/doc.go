// Package database provides SQLite-based persistence for crawl results.
// It stores per-page records and complete crawl summaries so that crawls
// of the same host can be compared over time.
//
// The database holds finished results only. It is never consulted during
// a crawl: the frontier and seen-set live in memory and die with the run,
// so deleting the database file is always safe.
package database
