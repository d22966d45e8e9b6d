package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/webcrawl/internal/model"
)

// SimpleWriter outputs human-readable text reports.
// This format is designed for terminal display with clear section
// formatting.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors by default because:
// 1. It works in all terminals without compatibility issues
// 2. It's easier to pipe to files or other tools
// 3. Color can be added as an option later if needed
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether sections with no entries are shown.
	showEmpty bool

	// verbose enables the visited URL list in the output.
	verbose bool

	// titler renders counter names as section labels.
	titler cases.Caser
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output including the visited URL list.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
		showEmpty:  false,
		verbose:    false,
		titler:     cases.Title(language.English),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the crawl summary in human-readable format.
func (w *SimpleWriter) Write(summary *model.CrawlSummary) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, summary)
	w.writeCounters(&sb, summary)
	w.writeStatusCodes(&sb, summary)
	w.writeFailures(&sb, summary)
	w.writeVisited(&sb, summary)
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

// writeHeader writes the report header with crawl information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, summary *model.CrawlSummary) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                         WEBCRAWL REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("Host:       %s\n", summary.Host))
	sb.WriteString(fmt.Sprintf("Start URL:  %s\n", summary.StartURL))
	sb.WriteString(fmt.Sprintf("Crawl Date: %s\n", summary.CrawledAt.Format("2006-01-02 15:04:05 MST")))
	sb.WriteString(fmt.Sprintf("Duration:   %s\n", (time.Duration(summary.DurationMs) * time.Millisecond).String()))

	if summary.Cancelled {
		sb.WriteString("Status:     CANCELLED (partial results)\n")
	} else {
		sb.WriteString("Status:     Complete\n")
	}

	sb.WriteString("\n")
}

// writeCounters writes the crawl counter section.
func (w *SimpleWriter) writeCounters(sb *strings.Builder, summary *model.CrawlSummary) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("CRAWL SUMMARY\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	stats := summary.Stats
	sb.WriteString(fmt.Sprintf("  Pages Visited:        %d\n", stats.PagesVisited))
	sb.WriteString(fmt.Sprintf("  Pages Succeeded:      %d\n", stats.PagesSucceeded))
	sb.WriteString(fmt.Sprintf("  Pages Failed:         %d\n", stats.PagesFailed))
	sb.WriteString(fmt.Sprintf("  Unique URLs Found:    %d\n", summary.UniqueURLsDiscovered))
	sb.WriteString(fmt.Sprintf("  Duplicates Filtered:  %d\n", stats.DuplicatesFiltered))
	sb.WriteString(fmt.Sprintf("  Links Extracted:      %d\n", stats.TotalLinksExtracted))
	sb.WriteString(fmt.Sprintf("  Mean Links Per Page:  %.2f\n", summary.MeanLinksPerPage))
	sb.WriteString(fmt.Sprintf("  Max Depth Reached:    %d\n", stats.MaxDepth))
	sb.WriteString(fmt.Sprintf("  Peak Queue Size:      %d\n", stats.PeakQueueSize))
	sb.WriteString(fmt.Sprintf("  Peak Concurrency:     %d\n", stats.ActualMaxConcurrency))
	sb.WriteString(fmt.Sprintf("  Retries:              %d (%d succeeded, %d failed)\n",
		stats.RetryAttempts, stats.RetrySuccesses, stats.RetryFailures))
	sb.WriteString("\n")
}

// writeStatusCodes writes the HTTP status distribution section.
func (w *SimpleWriter) writeStatusCodes(sb *strings.Builder, summary *model.CrawlSummary) {
	if len(summary.Stats.StatusCodes) == 0 && !w.showEmpty {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("STATUS CODE DISTRIBUTION\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	if len(summary.Stats.StatusCodes) == 0 {
		sb.WriteString("  No responses received\n")
	} else {
		for _, code := range sortedStatusCodes(summary.Stats.StatusCodes) {
			sb.WriteString(fmt.Sprintf("  HTTP %d: %d\n", code, summary.Stats.StatusCodes[code]))
		}
	}
	sb.WriteString("\n")
}

// writeFailures writes the failure log section. Terminal failures come
// first; failures later resolved by a retry are listed separately.
func (w *SimpleWriter) writeFailures(sb *strings.Builder, summary *model.CrawlSummary) {
	if len(summary.Failures) == 0 && !w.showEmpty {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("FAILURES\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	if len(summary.Failures) == 0 {
		sb.WriteString("  No failures\n\n")
		return
	}

	for reason, count := range sortedReasons(summary.Stats.FailureReasons) {
		sb.WriteString(fmt.Sprintf("  [%d] %s\n", count, w.titler.String(reason)))
	}
	sb.WriteString("\n")

	for _, event := range summary.Failures {
		marker := "x"
		if event.ResolvedOnRetry {
			marker = "recovered"
		}
		sb.WriteString(fmt.Sprintf("  * %s (depth %d, attempt %d): %s [%s]\n",
			event.URL, event.Depth, event.Attempt, event.Reason, marker))
	}
	sb.WriteString("\n")
}

// writeVisited writes the visited URL list in verbose mode.
func (w *SimpleWriter) writeVisited(sb *strings.Builder, summary *model.CrawlSummary) {
	if !w.verbose || len(summary.VisitedURLs) == 0 {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("VISITED URLS\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	for _, u := range summary.VisitedURLs {
		sb.WriteString(fmt.Sprintf("  %s\n", u))
	}
	sb.WriteString("\n")
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by webcrawl\n")
	sb.WriteString("https://github.com/nao1215/webcrawl\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}

// sortedStatusCodes returns the status codes in ascending order so the
// output is stable across runs.
func sortedStatusCodes(codes map[int]int) []int {
	out := make([]int, 0, len(codes))
	for code := range codes {
		out = append(out, code)
	}
	sort.Ints(out)
	return out
}

// sortedReasons yields failure reasons in lexical order with their counts.
func sortedReasons(reasons map[string]int) func(func(string, int) bool) {
	keys := make([]string, 0, len(reasons))
	for reason := range reasons {
		keys = append(keys, reason)
	}
	sort.Strings(keys)
	return func(yield func(string, int) bool) {
		for _, reason := range keys {
			if !yield(reason, reasons[reason]) {
				return
			}
		}
	}
}
