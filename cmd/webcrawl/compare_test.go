package main

import (
	"testing"
	"time"

	"github.com/nao1215/webcrawl/internal/model"
)

// TestNewCompareCmd tests the compare command creation.
func TestNewCompareCmd(t *testing.T) {
	t.Parallel()

	cmd := NewCompareCmd()

	t.Run("has correct use", func(t *testing.T) {
		t.Parallel()
		if cmd.Use != "compare [host]" {
			t.Errorf("expected use 'compare [host]', got %q", cmd.Use)
		}
	})

	t.Run("has short description", func(t *testing.T) {
		t.Parallel()
		if cmd.Short == "" {
			t.Error("expected non-empty short description")
		}
	})

	t.Run("has list flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("list")
		if flag == nil {
			t.Fatal("expected list flag")
		}
		if flag.Shorthand != "l" {
			t.Errorf("expected shorthand 'l', got %q", flag.Shorthand)
		}
	})

	t.Run("has list-hosts flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("list-hosts")
		if flag == nil {
			t.Fatal("expected list-hosts flag")
		}
		if flag.Shorthand != "L" {
			t.Errorf("expected shorthand 'L', got %q", flag.Shorthand)
		}
	})

	t.Run("has with-crawl-id flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("with-crawl-id")
		if flag == nil {
			t.Fatal("expected with-crawl-id flag")
		}
		if flag.Shorthand != "i" {
			t.Errorf("expected shorthand 'i', got %q", flag.Shorthand)
		}
	})

	t.Run("has since flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("since")
		if flag == nil {
			t.Fatal("expected since flag")
		}
		if flag.Shorthand != "s" {
			t.Errorf("expected shorthand 's', got %q", flag.Shorthand)
		}
	})

	t.Run("has output format flags", func(t *testing.T) {
		t.Parallel()
		if cmd.Flags().Lookup("json") == nil {
			t.Fatal("expected json flag")
		}
		if cmd.Flags().Lookup("markdown") == nil {
			t.Fatal("expected markdown flag")
		}
	})
}

// TestNormalizeHostArg tests host argument parsing.
func TestNormalizeHostArg(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "bare hostname", input: "example.com", want: "example.com"},
		{name: "uppercase hostname", input: "Example.COM", want: "example.com"},
		{name: "full url", input: "https://Example.com/docs", want: "example.com"},
		{name: "url with port", input: "http://example.com:8080/", want: "example.com"},
		{name: "empty", input: "", wantErr: true},
		{name: "scheme without host", input: "https://", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := normalizeHostArg(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("normalizeHostArg(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("normalizeHostArg(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// newComparisonSummary builds a summary with the given visited URLs.
func newComparisonSummary(visited []string, failed int) *model.CrawlSummary {
	stats := model.NewCrawlStats()
	for _, u := range visited {
		stats.RecordPage(&model.PageResult{URL: u, StatusCode: 200}, true)
	}
	for range failed {
		stats.RecordPage(&model.PageResult{URL: "http://example.com/broken", Error: "HTTP 500"}, false)
	}
	return model.NewCrawlSummary("example.com", "http://example.com/",
		time.Now(), stats, len(visited)+failed, false, visited, nil)
}

// TestCompareSummaries tests the URL diff between two crawls.
func TestCompareSummaries(t *testing.T) {
	t.Parallel()

	previous := newComparisonSummary([]string{
		"http://example.com/",
		"http://example.com/old",
		"http://example.com/stable",
	}, 0)
	current := newComparisonSummary([]string{
		"http://example.com/",
		"http://example.com/stable",
		"http://example.com/new",
		"http://example.com/newer",
	}, 1)

	result := compareSummaries(previous, current)

	if result.Host != "example.com" {
		t.Errorf("Host = %q, want example.com", result.Host)
	}

	wantNew := []string{"http://example.com/new", "http://example.com/newer"}
	if len(result.NewURLs) != len(wantNew) {
		t.Fatalf("NewURLs = %v, want %v", result.NewURLs, wantNew)
	}
	for i := range wantNew {
		if result.NewURLs[i] != wantNew[i] {
			t.Errorf("NewURLs[%d] = %q, want %q", i, result.NewURLs[i], wantNew[i])
		}
	}

	if len(result.RemovedURLs) != 1 || result.RemovedURLs[0] != "http://example.com/old" {
		t.Errorf("RemovedURLs = %v, want [http://example.com/old]", result.RemovedURLs)
	}

	if result.UnchangedCount != 2 {
		t.Errorf("UnchangedCount = %d, want 2", result.UnchangedCount)
	}

	if result.CoverageChange.Direction != coverageDirectionGrown {
		t.Errorf("Direction = %q, want %q", result.CoverageChange.Direction, coverageDirectionGrown)
	}
	if result.CoverageChange.VisitedDelta != 2 {
		t.Errorf("VisitedDelta = %d, want 2", result.CoverageChange.VisitedDelta)
	}
	if result.CoverageChange.FailedDelta != 1 {
		t.Errorf("FailedDelta = %d, want 1", result.CoverageChange.FailedDelta)
	}
}

// TestCalculateCoverageChange tests the coverage direction logic.
func TestCalculateCoverageChange(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		previous CrawlSnapshot
		current  CrawlSnapshot
		want     string
	}{
		{
			name:     "grown",
			previous: CrawlSnapshot{UniqueURLs: 5},
			current:  CrawlSnapshot{UniqueURLs: 8},
			want:     coverageDirectionGrown,
		},
		{
			name:     "shrunk",
			previous: CrawlSnapshot{UniqueURLs: 8},
			current:  CrawlSnapshot{UniqueURLs: 5},
			want:     coverageDirectionShrunk,
		},
		{
			name:     "unchanged",
			previous: CrawlSnapshot{UniqueURLs: 5},
			current:  CrawlSnapshot{UniqueURLs: 5},
			want:     coverageDirectionUnchanged,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := calculateCoverageChange(tt.previous, tt.current)
			if got.Direction != tt.want {
				t.Errorf("Direction = %q, want %q", got.Direction, tt.want)
			}
		})
	}
}

// TestFormatStatsSummary tests the history line formatting.
func TestFormatStatsSummary(t *testing.T) {
	t.Parallel()

	t.Run("nil map", func(t *testing.T) {
		t.Parallel()
		if got := formatStatsSummary(nil); got != "N/A" {
			t.Errorf("formatStatsSummary(nil) = %q, want N/A", got)
		}
	})

	t.Run("full map", func(t *testing.T) {
		t.Parallel()
		got := formatStatsSummary(map[string]int{
			"visited": 10, "succeeded": 8, "failed": 2, "retries": 1,
		})
		want := "visited:10 ok:8 failed:2 retries:1"
		if got != want {
			t.Errorf("formatStatsSummary() = %q, want %q", got, want)
		}
	})

	t.Run("omits zero failure counters", func(t *testing.T) {
		t.Parallel()
		got := formatStatsSummary(map[string]int{"visited": 3, "succeeded": 3})
		want := "visited:3 ok:3"
		if got != want {
			t.Errorf("formatStatsSummary() = %q, want %q", got, want)
		}
	})
}

// TestFormatDelta tests delta formatting with sign.
func TestFormatDelta(t *testing.T) {
	t.Parallel()

	tests := []struct {
		delta int
		want  string
	}{
		{delta: 3, want: "+3"},
		{delta: -2, want: "-2"},
		{delta: 0, want: "0"},
	}

	for _, tt := range tests {
		if got := formatDelta(tt.delta); got != tt.want {
			t.Errorf("formatDelta(%d) = %q, want %q", tt.delta, got, tt.want)
		}
	}
}
