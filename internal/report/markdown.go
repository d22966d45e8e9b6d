package report

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/webcrawl/internal/model"
)

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for documentation and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides:
// 1. Type-safe markdown generation
// 2. Support for tables, lists, and code blocks
// 3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the crawl summary in Markdown format.
func (w *MarkdownWriter) Write(summary *model.CrawlSummary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, summary)
	w.writeCounters(md, summary)
	w.writeStatusCodes(md, summary)
	w.writeFailures(md, summary)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with crawl information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, summary *model.CrawlSummary) {
	md.H1("Webcrawl Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Host", "`" + summary.Host + "`"},
			{"Start URL", "`" + summary.StartURL + "`"},
			{"Crawl Date", summary.CrawledAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", (time.Duration(summary.DurationMs) * time.Millisecond).String()},
			{"Pages Visited", strconv.Itoa(summary.Stats.PagesVisited)},
			{"Status", w.getStatusText(summary)},
		},
	})
	md.PlainText("")
}

// getStatusText returns the status text based on summary state.
func (w *MarkdownWriter) getStatusText(summary *model.CrawlSummary) string {
	if summary.Cancelled {
		return "⚠️ Cancelled (partial results)"
	}
	return "✅ Complete"
}

// writeCounters writes the crawl counter section.
func (w *MarkdownWriter) writeCounters(md *markdown.Markdown, summary *model.CrawlSummary) {
	md.H2("Crawl Summary")
	md.PlainText("")

	stats := summary.Stats
	md.Table(markdown.TableSet{
		Header: []string{"Counter", "Value"},
		Rows: [][]string{
			{"Pages Succeeded", strconv.Itoa(stats.PagesSucceeded)},
			{"Pages Failed", strconv.Itoa(stats.PagesFailed)},
			{"Unique URLs Discovered", strconv.Itoa(summary.UniqueURLsDiscovered)},
			{"Duplicates Filtered", strconv.Itoa(stats.DuplicatesFiltered)},
			{"Links Extracted", strconv.Itoa(stats.TotalLinksExtracted)},
			{"Mean Links Per Page", fmt.Sprintf("%.2f", summary.MeanLinksPerPage)},
			{"Max Depth Reached", strconv.Itoa(stats.MaxDepth)},
			{"Peak Queue Size", strconv.Itoa(stats.PeakQueueSize)},
			{"Peak Concurrency", strconv.Itoa(stats.ActualMaxConcurrency)},
			{"Retry Attempts", strconv.Itoa(stats.RetryAttempts)},
			{"Retry Successes", strconv.Itoa(stats.RetrySuccesses)},
			{"Retry Failures", strconv.Itoa(stats.RetryFailures)},
		},
	})
	md.PlainText("")

	w.writeAlert(md, summary)
}

// writeAlert writes an appropriate alert based on crawl outcome.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, summary *model.CrawlSummary) {
	terminal := len(summary.TerminalFailures())
	switch {
	case summary.Cancelled:
		md.Cautionf(
			"Crawl was cancelled before completion. %d page(s) visited before the stop.",
			summary.Stats.PagesVisited,
		)
	case terminal > 0:
		md.Warningf(
			"%d page(s) could not be fetched even after retrying. See the failure log below.",
			terminal,
		)
	case summary.Stats.RetrySuccesses > 0:
		md.Note(fmt.Sprintf(
			"%d page(s) needed a retry but succeeded on the second attempt.",
			summary.Stats.RetrySuccesses,
		))
	default:
		md.Tip("All pages fetched successfully on the first attempt.")
	}
	md.PlainText("")
}

// writeStatusCodes writes the HTTP status distribution with a pie chart.
func (w *MarkdownWriter) writeStatusCodes(md *markdown.Markdown, summary *model.CrawlSummary) {
	md.H2("Status Code Distribution")
	md.PlainText("")

	if len(summary.Stats.StatusCodes) == 0 {
		md.PlainText("No responses received.")
		md.PlainText("")
		return
	}

	codes := sortedStatusCodes(summary.Stats.StatusCodes)

	rows := make([][]string, 0, len(codes))
	for _, code := range codes {
		rows = append(rows, []string{
			"HTTP " + strconv.Itoa(code),
			strconv.Itoa(summary.Stats.StatusCodes[code]),
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Status", "Count"},
		Rows:   rows,
	})
	md.PlainText("")

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("HTTP Status Distribution"),
		piechart.WithShowData(true),
	)
	for _, code := range codes {
		chart.LabelAndIntValue("HTTP "+strconv.Itoa(code), uint64(summary.Stats.StatusCodes[code]))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeFailures writes the failure log section.
func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, summary *model.CrawlSummary) {
	md.H2("Failures")
	md.PlainText("")

	if len(summary.Failures) == 0 {
		md.PlainText("No failures recorded.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(summary.Failures))
	for i, event := range summary.Failures {
		outcome := "terminal"
		if event.ResolvedOnRetry {
			outcome = "recovered"
		}
		rows[i] = []string{
			truncateString(event.URL, 60),
			strconv.Itoa(event.Depth),
			strconv.Itoa(event.Attempt),
			truncateString(event.Reason, 40),
			outcome,
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"URL", "Depth", "Attempt", "Reason", "Outcome"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [webcrawl](https://github.com/nao1215/webcrawl)*")
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
