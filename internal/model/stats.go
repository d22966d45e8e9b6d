package model

// CrawlStats holds the running counters for a single crawl.
//
// Design decision: All mutation goes through the engine's single
// orchestration goroutine, so the fields need no synchronization. Fetch
// tasks never touch CrawlStats directly; they report outcomes back to the
// engine, which folds them in one at a time.
type CrawlStats struct {
	// PagesVisited counts completed fetch attempts, successful or not.
	// A retried URL is counted once per attempt.
	PagesVisited int `json:"pages_visited"`

	// PagesSucceeded counts attempts that returned a 2xx response.
	PagesSucceeded int `json:"pages_succeeded"`

	// PagesFailed counts attempts that ended in a failure of any kind.
	PagesFailed int `json:"pages_failed"`

	// MaxDepth is the deepest link distance reached from the start URL.
	MaxDepth int `json:"max_depth"`

	// TotalLinksExtracted is the sum of per-page same-host link counts.
	TotalLinksExtracted int `json:"total_links_extracted"`

	// DuplicatesFiltered counts links rejected by the frontier because
	// their URL had already been enqueued earlier in the crawl.
	DuplicatesFiltered int `json:"duplicates_filtered"`

	// ActualMaxConcurrency is the peak number of simultaneously in-flight
	// fetch tasks observed during the crawl. Never exceeds the configured
	// concurrency limit.
	ActualMaxConcurrency int `json:"actual_max_concurrency"`

	// PeakQueueSize is the largest number of pending frontier items
	// observed during the crawl.
	PeakQueueSize int `json:"peak_queue_size"`

	// RetryAttempts counts failed attempts that were rescheduled.
	RetryAttempts int `json:"retry_attempts"`

	// RetrySuccesses counts retried attempts that succeeded.
	RetrySuccesses int `json:"retry_successes"`

	// RetryFailures counts failed attempts whose retry budget was already
	// exhausted. RetryAttempts == RetrySuccesses + RetryFailures holds at
	// crawl end.
	RetryFailures int `json:"retry_failures"`

	// StatusCodes maps HTTP status code to the number of attempts that
	// received it, counting both successes and failures.
	StatusCodes map[int]int `json:"status_codes"`

	// FailureReasons maps failure reason to occurrence count.
	FailureReasons map[string]int `json:"failure_reasons"`
}

// NewCrawlStats creates a CrawlStats with initialized maps.
func NewCrawlStats() *CrawlStats {
	return &CrawlStats{
		StatusCodes:    make(map[int]int),
		FailureReasons: make(map[string]int),
	}
}

// RecordPage folds one completed fetch attempt into the counters.
// This is the single point of truth for the per-page counters: PagesVisited
// always increments, exactly one of PagesSucceeded or PagesFailed
// increments, MaxDepth and TotalLinksExtracted are updated from the page,
// the status-code bucket is updated whenever a numeric status exists
// (regardless of success), and the failure-reason bucket is updated on
// failure.
func (s *CrawlStats) RecordPage(page *PageResult, ok bool) {
	s.PagesVisited++

	if ok {
		s.PagesSucceeded++
	} else {
		s.PagesFailed++
		if page.Error != "" {
			s.FailureReasons[page.Error]++
		}
	}

	if page.Depth > s.MaxDepth {
		s.MaxDepth = page.Depth
	}
	s.TotalLinksExtracted += len(page.Links)

	if page.StatusCode != 0 {
		s.StatusCodes[page.StatusCode]++
	}
}

// Clone returns a deep copy of the stats. The summary takes a clone so
// that the snapshot cannot alias the engine's still-mutable maps.
func (s *CrawlStats) Clone() CrawlStats {
	clone := *s
	clone.StatusCodes = make(map[int]int, len(s.StatusCodes))
	for code, n := range s.StatusCodes {
		clone.StatusCodes[code] = n
	}
	clone.FailureReasons = make(map[string]int, len(s.FailureReasons))
	for reason, n := range s.FailureReasons {
		clone.FailureReasons[reason] = n
	}
	return clone
}
