package model

import "time"

// CrawlSummary is the immutable end-of-crawl snapshot. It is created
// exactly once, after the frontier is exhausted and all in-flight work has
// completed (or admission stopped due to cancellation), and is never
// modified afterwards.
type CrawlSummary struct {
	// Host is the lower-cased hostname the crawl was confined to.
	Host string `json:"host"`

	// StartURL is the normalized seed URL.
	StartURL string `json:"start_url"`

	// CrawledAt is when the crawl started.
	CrawledAt time.Time `json:"crawled_at"`

	// Stats is a snapshot of the counters at crawl end.
	Stats CrawlStats `json:"stats"`

	// UniqueURLsDiscovered is the size of the frontier's seen-set: every
	// distinct normalized URL that was ever enqueued or visited.
	UniqueURLsDiscovered int `json:"unique_urls_discovered"`

	// DurationMs is the wall-clock duration of the crawl in milliseconds.
	DurationMs int64 `json:"duration_ms"`

	// Cancelled is true when the crawl stopped admitting work because the
	// context was cancelled rather than because the frontier drained.
	Cancelled bool `json:"cancelled"`

	// MeanLinksPerPage is TotalLinksExtracted / PagesVisited, or 0 when
	// no pages were visited.
	MeanLinksPerPage float64 `json:"mean_links_per_page"`

	// VisitedURLs lists the normalized URLs of successfully fetched pages
	// in completion order. Used by the compare command to diff crawls.
	VisitedURLs []string `json:"visited_urls,omitempty"`

	// Failures is the full ordered failure log.
	Failures []FailureEvent `json:"failures,omitempty"`
}

// NewCrawlSummary builds the final snapshot from the engine's state.
// The stats are deep-copied so the summary does not alias mutable maps.
func NewCrawlSummary(host, startURL string, startedAt time.Time, stats *CrawlStats, uniqueURLs int, cancelled bool, visited []string, failures []FailureEvent) *CrawlSummary {
	summary := &CrawlSummary{
		Host:                 host,
		StartURL:             startURL,
		CrawledAt:            startedAt,
		Stats:                stats.Clone(),
		UniqueURLsDiscovered: uniqueURLs,
		DurationMs:           time.Since(startedAt).Milliseconds(),
		Cancelled:            cancelled,
		VisitedURLs:          visited,
		Failures:             failures,
	}
	if stats.PagesVisited > 0 {
		summary.MeanLinksPerPage = float64(stats.TotalLinksExtracted) / float64(stats.PagesVisited)
	}
	return summary
}

// TerminalFailures returns the failure events that were never resolved by
// a later successful retry.
func (s *CrawlSummary) TerminalFailures() []FailureEvent {
	var terminal []FailureEvent
	for _, f := range s.Failures {
		if !f.ResolvedOnRetry {
			terminal = append(terminal, f)
		}
	}
	return terminal
}
