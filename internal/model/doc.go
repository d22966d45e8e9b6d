// Package model defines the data structures shared across the crawler,
// report, and database packages.
//
// The types here are intentionally free of behavior beyond small helpers:
// the crawl engine produces them, the report writers render them, and the
// database package persists them. Keeping them in a leaf package avoids
// import cycles between those consumers.
//
// # Core types
//
//   - PageResult: the outcome of one fetch attempt for one URL
//   - FailureEvent: one entry in the append-only failure log
//   - CrawlStats: running counters mutated by the engine during a crawl
//   - CrawlSummary: the immutable end-of-crawl snapshot
package model
