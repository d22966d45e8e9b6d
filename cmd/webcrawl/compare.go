package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/webcrawl/internal/config"
	"github.com/nao1215/webcrawl/internal/database"
	"github.com/nao1215/webcrawl/internal/model"
)

// Constants for coverage direction and summary messages.
const (
	coverageDirectionGrown     = "grown"
	coverageDirectionShrunk    = "shrunk"
	coverageDirectionUnchanged = "unchanged"
)

// NewCompareCmd creates the compare command.
// This command compares crawl results with historical data stored in the database.
func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare [host]",
		Short: "Compare crawl results with historical data",
		Long: `Compare displays differences between the current and previous crawl results.

This command retrieves historical crawl data from the database and shows:
- URLs that appeared since the last crawl
- URLs that disappeared since the last crawl
- Changes in page counts and failure counts

The comparison requires at least two crawls in the database for the
specified host. Use 'webcrawl crawl' to perform crawls and save results.

Examples:
  # Compare latest two crawls for a host
  webcrawl compare example.com

  # List all crawl history for a host
  webcrawl compare --list example.com

  # Compare with a specific historical crawl by ID
  webcrawl compare --with-crawl-id 5 example.com

  # Compare crawls since a specific date
  webcrawl compare --since "2026-01-01" example.com

  # Output comparison in JSON format
  webcrawl compare --json example.com

  # List all crawled hosts in the database
  webcrawl compare --list-hosts`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCompareCmd,
	}

	// History listing flags
	cmd.Flags().BoolP("list", "l", false,
		"List crawl history for the specified host")
	cmd.Flags().BoolP("list-hosts", "L", false,
		"List all crawled hosts in the database")

	// Comparison target flags
	cmd.Flags().Int64P("with-crawl-id", "i", 0,
		"Compare with a specific crawl by ID (use --list to see available IDs)")
	cmd.Flags().StringP("since", "s", "",
		"Compare with the first crawl after this date (format: YYYY-MM-DD)")

	// Output format flags
	cmd.Flags().BoolP("json", "j", false,
		"Output comparison result in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output comparison result in Markdown format")

	return cmd
}

// runCompareCmd executes the compare command.
func runCompareCmd(cmd *cobra.Command, args []string) error {
	// Handle --list-hosts flag first (requires database but no host)
	listHosts, err := cmd.Flags().GetBool("list-hosts")
	if err != nil {
		return err
	}

	// Validate arguments before opening database (unless --list-hosts).
	// This prevents database lock issues when validation fails.
	var host string
	if !listHosts {
		if len(args) == 0 {
			return errors.New("host is required (use --list-hosts to see available hosts)")
		}

		host, err = normalizeHostArg(args[0])
		if err != nil {
			return fmt.Errorf("invalid host: %w", err)
		}
	}

	// Use XDG data directory for database
	dbDir := config.XDGDataDir()

	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := context.Background()

	// Handle --list-hosts flag
	if listHosts {
		return listCrawledHosts(ctx, db)
	}

	// Handle --list flag
	listHistory, err := cmd.Flags().GetBool("list")
	if err != nil {
		return err
	}
	if listHistory {
		return listCrawlHistory(ctx, db, host)
	}

	// Get output format flags
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	markdownOutput, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}

	// Get comparison target flags
	withCrawlID, err := cmd.Flags().GetInt64("with-crawl-id")
	if err != nil {
		return err
	}
	sinceDate, err := cmd.Flags().GetString("since")
	if err != nil {
		return err
	}

	return runComparison(ctx, db, host, withCrawlID, sinceDate, jsonOutput, markdownOutput)
}

// normalizeHostArg accepts either a bare hostname or a full URL and
// returns the lower-cased hostname.
func normalizeHostArg(arg string) (string, error) {
	if strings.Contains(arg, "://") {
		u, err := url.Parse(arg)
		if err != nil {
			return "", err
		}
		if u.Hostname() == "" {
			return "", fmt.Errorf("no hostname in %q", arg)
		}
		return strings.ToLower(u.Hostname()), nil
	}

	if arg == "" {
		return "", errors.New("empty host")
	}
	return strings.ToLower(arg), nil
}

// listCrawledHosts lists all hosts that have crawl records in the database.
func listCrawledHosts(ctx context.Context, db *database.CrawlDB) error {
	hosts, err := db.ListHosts(ctx)
	if err != nil {
		return fmt.Errorf("failed to list hosts: %w", err)
	}

	if len(hosts) == 0 {
		fmt.Println("No crawled hosts found in the database.")
		fmt.Println("\nUse 'webcrawl crawl <url>' to crawl a site.")
		return nil
	}

	fmt.Printf("Crawled hosts (%d):\n\n", len(hosts))
	for _, host := range hosts {
		fmt.Printf("  • %s\n", host)
	}
	fmt.Println("\nUse 'webcrawl compare --list <host>' to see crawl history for a host.")

	return nil
}

// listCrawlHistory lists all crawl records for a specific host.
func listCrawlHistory(ctx context.Context, db *database.CrawlDB, host string) error {
	metas, err := db.GetCrawlHistoryWithMetadata(ctx, host)
	if err != nil {
		return fmt.Errorf("failed to get crawl history: %w", err)
	}

	if len(metas) == 0 {
		fmt.Printf("No crawl history found for %s\n", host)
		fmt.Println("\nUse 'webcrawl crawl' to crawl this host.")
		return nil
	}

	fmt.Printf("Crawl history for %s (%d crawls):\n\n", host, len(metas))
	fmt.Printf("  %-6s  %-20s  %s\n", "ID", "Date", "Summary")
	fmt.Println("  " + strings.Repeat("-", 60))

	for _, meta := range metas {
		fmt.Printf("  %-6d  %-20s  %s\n",
			meta.ID,
			meta.Timestamp.Format("2006-01-02 15:04:05"),
			formatStatsSummary(meta.StatsSummary),
		)
	}

	fmt.Println("\nUse 'webcrawl compare <host>' to compare the latest two crawls.")
	fmt.Println("Use 'webcrawl compare --with-crawl-id <id> <host>' to compare with a specific crawl.")

	return nil
}

// formatStatsSummary formats the stats summary map into a human-readable string.
func formatStatsSummary(summary map[string]int) string {
	if summary == nil {
		return "N/A"
	}

	parts := []string{
		fmt.Sprintf("visited:%d", summary["visited"]),
		fmt.Sprintf("ok:%d", summary["succeeded"]),
	}
	if v := summary["failed"]; v > 0 {
		parts = append(parts, fmt.Sprintf("failed:%d", v))
	}
	if v := summary["retries"]; v > 0 {
		parts = append(parts, fmt.Sprintf("retries:%d", v))
	}
	return strings.Join(parts, " ")
}

// runComparison performs the actual comparison between crawl summaries.
func runComparison(ctx context.Context, db *database.CrawlDB, host string, withCrawlID int64, sinceDate string, jsonOutput, markdownOutput bool) error {
	summaries, err := db.GetCrawlHistory(ctx, host)
	if err != nil {
		return fmt.Errorf("failed to get crawl history: %w", err)
	}

	if len(summaries) == 0 {
		return fmt.Errorf("no crawl history found for %s", host)
	}

	if len(summaries) < 2 && withCrawlID == 0 && sinceDate == "" {
		return fmt.Errorf("at least 2 crawls are required for comparison (found %d)", len(summaries))
	}

	// Latest crawl is always the current one
	current := summaries[0]
	var previous *model.CrawlSummary

	if withCrawlID > 0 {
		previous, err = db.GetSummaryByID(ctx, withCrawlID)
		if err != nil {
			return fmt.Errorf("failed to get crawl with ID %d: %w", withCrawlID, err)
		}
		if previous == nil {
			return fmt.Errorf("crawl with ID %d not found", withCrawlID)
		}
		// Validate that the crawl ID belongs to the same host
		if previous.Host != host {
			return fmt.Errorf("crawl ID %d belongs to %s, not %s", withCrawlID, previous.Host, host)
		}
	} else if sinceDate != "" {
		parsedDate, err := time.Parse("2006-01-02", sinceDate)
		if err != nil {
			return fmt.Errorf("invalid date format (use YYYY-MM-DD): %w", err)
		}

		// Summaries are sorted newest first, so iterate in reverse to
		// find the oldest crawl at or after the date
		for i := len(summaries) - 1; i >= 0; i-- {
			s := summaries[i]
			if s.CrawledAt.After(parsedDate) || s.CrawledAt.Equal(parsedDate) {
				previous = s
				break
			}
		}
		if previous == nil {
			return fmt.Errorf("no crawls found since %s", sinceDate)
		}
		if previous == current {
			return fmt.Errorf("only one crawl found since %s; at least 2 crawls are required for comparison", sinceDate)
		}
	} else {
		// Default: compare with the previous crawl
		previous = summaries[1]
	}

	comparison := compareSummaries(previous, current)

	if jsonOutput {
		return outputComparisonJSON(comparison)
	}
	if markdownOutput {
		return outputComparisonMarkdown(comparison)
	}
	return outputComparisonText(comparison)
}

// ComparisonResult holds the result of comparing two crawl summaries.
type ComparisonResult struct {
	// Host is the crawled hostname.
	Host string `json:"host"`

	// PreviousCrawl contains metadata about the previous crawl.
	PreviousCrawl CrawlSnapshot `json:"previous_crawl"`

	// CurrentCrawl contains metadata about the current crawl.
	CurrentCrawl CrawlSnapshot `json:"current_crawl"`

	// NewURLs contains URLs present in the current crawl but not the previous.
	NewURLs []string `json:"new_urls,omitempty"`

	// RemovedURLs contains URLs present in the previous crawl but not the current.
	RemovedURLs []string `json:"removed_urls,omitempty"`

	// UnchangedCount is the number of URLs present in both crawls.
	UnchangedCount int `json:"unchanged_count"`

	// CoverageChange describes the overall change in site coverage.
	CoverageChange CoverageChange `json:"coverage_change"`
}

// CrawlSnapshot contains metadata about a crawl for comparison display.
type CrawlSnapshot struct {
	// CrawledAt is when the crawl was performed.
	CrawledAt time.Time `json:"crawled_at"`

	// PagesVisited is the number of pages visited in this crawl.
	PagesVisited int `json:"pages_visited"`

	// PagesSucceeded is the number of pages fetched successfully.
	PagesSucceeded int `json:"pages_succeeded"`

	// PagesFailed is the number of pages that failed.
	PagesFailed int `json:"pages_failed"`

	// UniqueURLs is the number of unique URLs discovered.
	UniqueURLs int `json:"unique_urls"`
}

// CoverageChange describes the change in site coverage between crawls.
type CoverageChange struct {
	// Direction is "grown", "shrunk", or "unchanged".
	Direction string `json:"direction"`

	// VisitedDelta is the change in visited page count.
	VisitedDelta int `json:"visited_delta"`

	// SucceededDelta is the change in successfully fetched page count.
	SucceededDelta int `json:"succeeded_delta"`

	// FailedDelta is the change in failed page count.
	FailedDelta int `json:"failed_delta"`

	// UniqueURLsDelta is the change in unique URL count.
	UniqueURLsDelta int `json:"unique_urls_delta"`
}

// compareSummaries compares two crawl summaries and generates a comparison result.
func compareSummaries(previous, current *model.CrawlSummary) *ComparisonResult {
	result := &ComparisonResult{
		Host:          current.Host,
		PreviousCrawl: snapshotOf(previous),
		CurrentCrawl:  snapshotOf(current),
	}

	previousURLs := make(map[string]struct{}, len(previous.VisitedURLs))
	for _, u := range previous.VisitedURLs {
		previousURLs[u] = struct{}{}
	}
	currentURLs := make(map[string]struct{}, len(current.VisitedURLs))
	for _, u := range current.VisitedURLs {
		currentURLs[u] = struct{}{}
	}

	// URLs in current but not in previous
	for u := range currentURLs {
		if _, exists := previousURLs[u]; !exists {
			result.NewURLs = append(result.NewURLs, u)
		}
	}

	// URLs in previous but not in current
	for u := range previousURLs {
		if _, exists := currentURLs[u]; !exists {
			result.RemovedURLs = append(result.RemovedURLs, u)
		} else {
			result.UnchangedCount++
		}
	}

	// Map iteration order is random
	sort.Strings(result.NewURLs)
	sort.Strings(result.RemovedURLs)

	result.CoverageChange = calculateCoverageChange(result.PreviousCrawl, result.CurrentCrawl)

	return result
}

// snapshotOf extracts comparison metadata from a crawl summary.
func snapshotOf(summary *model.CrawlSummary) CrawlSnapshot {
	return CrawlSnapshot{
		CrawledAt:      summary.CrawledAt,
		PagesVisited:   summary.Stats.PagesVisited,
		PagesSucceeded: summary.Stats.PagesSucceeded,
		PagesFailed:    summary.Stats.PagesFailed,
		UniqueURLs:     summary.UniqueURLsDiscovered,
	}
}

// calculateCoverageChange calculates the change in coverage between two crawls.
func calculateCoverageChange(previous, current CrawlSnapshot) CoverageChange {
	change := CoverageChange{
		VisitedDelta:    current.PagesVisited - previous.PagesVisited,
		SucceededDelta:  current.PagesSucceeded - previous.PagesSucceeded,
		FailedDelta:     current.PagesFailed - previous.PagesFailed,
		UniqueURLsDelta: current.UniqueURLs - previous.UniqueURLs,
	}

	switch {
	case change.UniqueURLsDelta > 0:
		change.Direction = coverageDirectionGrown
	case change.UniqueURLsDelta < 0:
		change.Direction = coverageDirectionShrunk
	default:
		change.Direction = coverageDirectionUnchanged
	}

	return change
}

// outputComparisonJSON outputs the comparison result in JSON format.
func outputComparisonJSON(result *ComparisonResult) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

// outputComparisonMarkdown outputs the comparison result in Markdown format.
func outputComparisonMarkdown(result *ComparisonResult) error {
	fmt.Printf("# Crawl Comparison: %s\n\n", result.Host)

	fmt.Println("## Summary")
	fmt.Printf("\n**Coverage:** %s\n\n", formatCoverageDirection(result.CoverageChange.Direction))

	fmt.Println("| Metric | Previous | Current | Change |")
	fmt.Println("|--------|----------|---------|--------|")
	fmt.Printf("| Date | %s | %s | - |\n",
		result.PreviousCrawl.CrawledAt.Format("2006-01-02 15:04"),
		result.CurrentCrawl.CrawledAt.Format("2006-01-02 15:04"))
	fmt.Printf("| Pages Visited | %d | %d | %s |\n",
		result.PreviousCrawl.PagesVisited,
		result.CurrentCrawl.PagesVisited,
		formatDelta(result.CoverageChange.VisitedDelta))
	fmt.Printf("| Pages Succeeded | %d | %d | %s |\n",
		result.PreviousCrawl.PagesSucceeded,
		result.CurrentCrawl.PagesSucceeded,
		formatDelta(result.CoverageChange.SucceededDelta))
	fmt.Printf("| Pages Failed | %d | %d | %s |\n",
		result.PreviousCrawl.PagesFailed,
		result.CurrentCrawl.PagesFailed,
		formatDelta(result.CoverageChange.FailedDelta))
	fmt.Printf("| Unique URLs | %d | %d | %s |\n",
		result.PreviousCrawl.UniqueURLs,
		result.CurrentCrawl.UniqueURLs,
		formatDelta(result.CoverageChange.UniqueURLsDelta))

	if len(result.NewURLs) > 0 {
		fmt.Printf("\n## New URLs (%d)\n\n", len(result.NewURLs))
		for _, u := range result.NewURLs {
			fmt.Printf("- `%s`\n", u)
		}
	}

	if len(result.RemovedURLs) > 0 {
		fmt.Printf("\n## Removed URLs (%d)\n\n", len(result.RemovedURLs))
		for _, u := range result.RemovedURLs {
			fmt.Printf("- ~~`%s`~~\n", u)
		}
	}

	if result.UnchangedCount > 0 {
		fmt.Printf("\n---\n\n*%d URLs unchanged*\n", result.UnchangedCount)
	}

	return nil
}

// outputComparisonText outputs the comparison result in human-readable text format.
func outputComparisonText(result *ComparisonResult) error {
	fmt.Printf("Crawl Comparison: %s\n", result.Host)
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("\nCoverage: %s\n", formatCoverageDirection(result.CoverageChange.Direction))

	fmt.Printf("\nPrevious crawl: %s\n", result.PreviousCrawl.CrawledAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Current crawl:  %s\n", result.CurrentCrawl.CrawledAt.Format("2006-01-02 15:04:05"))

	fmt.Println("\nCrawl Summary:")
	fmt.Printf("  %-16s  %-10s  %-10s  %-10s\n", "Metric", "Previous", "Current", "Change")
	fmt.Println("  " + strings.Repeat("-", 52))
	fmt.Printf("  %-16s  %-10d  %-10d  %-10s\n", "Pages Visited",
		result.PreviousCrawl.PagesVisited, result.CurrentCrawl.PagesVisited,
		formatDelta(result.CoverageChange.VisitedDelta))
	fmt.Printf("  %-16s  %-10d  %-10d  %-10s\n", "Pages Succeeded",
		result.PreviousCrawl.PagesSucceeded, result.CurrentCrawl.PagesSucceeded,
		formatDelta(result.CoverageChange.SucceededDelta))
	fmt.Printf("  %-16s  %-10d  %-10d  %-10s\n", "Pages Failed",
		result.PreviousCrawl.PagesFailed, result.CurrentCrawl.PagesFailed,
		formatDelta(result.CoverageChange.FailedDelta))
	fmt.Printf("  %-16s  %-10d  %-10d  %-10s\n", "Unique URLs",
		result.PreviousCrawl.UniqueURLs, result.CurrentCrawl.UniqueURLs,
		formatDelta(result.CoverageChange.UniqueURLsDelta))

	if len(result.NewURLs) > 0 {
		fmt.Printf("\nNew URLs (%d):\n", len(result.NewURLs))
		for _, u := range result.NewURLs {
			fmt.Printf("  [+] %s\n", u)
		}
	}

	if len(result.RemovedURLs) > 0 {
		fmt.Printf("\nRemoved URLs (%d):\n", len(result.RemovedURLs))
		for _, u := range result.RemovedURLs {
			fmt.Printf("  [-] %s\n", u)
		}
	}

	if result.UnchangedCount > 0 {
		fmt.Printf("\nUnchanged: %d URLs\n", result.UnchangedCount)
	}

	return nil
}

// formatCoverageDirection formats the coverage change direction for display.
func formatCoverageDirection(direction string) string {
	switch direction {
	case coverageDirectionGrown:
		return "GROWN (more URLs discovered)"
	case coverageDirectionShrunk:
		return "SHRUNK (fewer URLs discovered)"
	default:
		return "UNCHANGED"
	}
}

// formatDelta formats a numeric delta with sign for display.
func formatDelta(delta int) string {
	if delta > 0 {
		return "+" + strconv.Itoa(delta)
	} else if delta < 0 {
		return strconv.Itoa(delta)
	}
	return "0"
}
