package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/webcrawl/internal/config"
	"github.com/nao1215/webcrawl/internal/log"
	"github.com/nao1215/webcrawl/internal/model"
)

// TestNewCrawlCmd tests the crawl command creation.
func TestNewCrawlCmd(t *testing.T) {
	t.Parallel()

	cmd := NewCrawlCmd()

	t.Run("has correct use", func(t *testing.T) {
		t.Parallel()
		if cmd.Use != "crawl [url...]" {
			t.Errorf("expected use 'crawl [url...]', got %q", cmd.Use)
		}
	})

	t.Run("has short description", func(t *testing.T) {
		t.Parallel()
		if cmd.Short == "" {
			t.Error("expected non-empty short description")
		}
	})

	t.Run("has long description", func(t *testing.T) {
		t.Parallel()
		if cmd.Long == "" {
			t.Error("expected non-empty long description")
		}
	})

	t.Run("has concurrency flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("concurrency")
		if flag == nil {
			t.Fatal("expected concurrency flag")
		}
		if flag.Shorthand != "n" {
			t.Errorf("expected shorthand 'n', got %q", flag.Shorthand)
		}
	})

	t.Run("has max-pages flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("max-pages")
		if flag == nil {
			t.Fatal("expected max-pages flag")
		}
		if flag.Shorthand != "p" {
			t.Errorf("expected shorthand 'p', got %q", flag.Shorthand)
		}
	})

	t.Run("has timeout flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("timeout")
		if flag == nil {
			t.Fatal("expected timeout flag")
		}
		if flag.Shorthand != "t" {
			t.Errorf("expected shorthand 't', got %q", flag.Shorthand)
		}
	})

	t.Run("has delay flag", func(t *testing.T) {
		t.Parallel()
		if cmd.Flags().Lookup("delay") == nil {
			t.Fatal("expected delay flag")
		}
	})

	t.Run("has depth-first flag", func(t *testing.T) {
		t.Parallel()
		if cmd.Flags().Lookup("depth-first") == nil {
			t.Fatal("expected depth-first flag")
		}
	})

	t.Run("has batch flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("batch")
		if flag == nil {
			t.Fatal("expected batch flag")
		}
		if flag.Shorthand != "b" {
			t.Errorf("expected shorthand 'b', got %q", flag.Shorthand)
		}
	})

	t.Run("has config flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("config")
		if flag == nil {
			t.Fatal("expected config flag")
		}
		if flag.Shorthand != "c" {
			t.Errorf("expected shorthand 'c', got %q", flag.Shorthand)
		}
	})

	t.Run("has report format flags", func(t *testing.T) {
		t.Parallel()
		if cmd.Flags().Lookup("json") == nil {
			t.Fatal("expected json flag")
		}
		if cmd.Flags().Lookup("markdown") == nil {
			t.Fatal("expected markdown flag")
		}
		if cmd.Flags().Lookup("output") == nil {
			t.Fatal("expected output flag")
		}
	})

	t.Run("has no-save flag", func(t *testing.T) {
		t.Parallel()
		if cmd.Flags().Lookup("no-save") == nil {
			t.Fatal("expected no-save flag")
		}
	})
}

// TestBuildConfig tests config construction from command flags.
func TestBuildConfig(t *testing.T) {
	t.Parallel()

	t.Run("uses defaults with no flags", func(t *testing.T) {
		t.Parallel()

		cmd := NewCrawlCmd()
		cfg, err := buildConfig(cmd, []string{"https://example.com"})
		if err != nil {
			t.Fatalf("buildConfig() error = %v", err)
		}

		if cfg.Concurrency != config.DefaultConcurrency {
			t.Errorf("Concurrency = %d, want %d", cfg.Concurrency, config.DefaultConcurrency)
		}
		if cfg.Timeout != config.DefaultTimeout {
			t.Errorf("Timeout = %v, want %v", cfg.Timeout, config.DefaultTimeout)
		}
		if !cfg.SaveToDB {
			t.Error("SaveToDB = false, want true by default")
		}
		if len(cfg.Seeds) != 1 || cfg.Seeds[0] != "https://example.com" {
			t.Errorf("Seeds = %v", cfg.Seeds)
		}
	})

	t.Run("applies flag values", func(t *testing.T) {
		t.Parallel()

		cmd := NewCrawlCmd()
		for flag, value := range map[string]string{
			"concurrency": "4",
			"max-pages":   "50",
			"timeout":     "3s",
			"delay":       "200ms",
			"depth-first": "true",
			"no-save":     "true",
			"json":        "true",
		} {
			if err := cmd.Flags().Set(flag, value); err != nil {
				t.Fatalf("Set(%s) error = %v", flag, err)
			}
		}

		cfg, err := buildConfig(cmd, []string{"https://example.com"})
		if err != nil {
			t.Fatalf("buildConfig() error = %v", err)
		}

		if cfg.Concurrency != 4 {
			t.Errorf("Concurrency = %d, want 4", cfg.Concurrency)
		}
		if cfg.MaxPages != 50 {
			t.Errorf("MaxPages = %d, want 50", cfg.MaxPages)
		}
		if cfg.Timeout != 3*time.Second {
			t.Errorf("Timeout = %v, want 3s", cfg.Timeout)
		}
		if cfg.CrawlDelay != 200*time.Millisecond {
			t.Errorf("CrawlDelay = %v, want 200ms", cfg.CrawlDelay)
		}
		if !cfg.DepthPriority {
			t.Error("DepthPriority = false, want true")
		}
		if cfg.SaveToDB {
			t.Error("SaveToDB = true, want false with --no-save")
		}
		if !cfg.JSONReport {
			t.Error("JSONReport = false, want true")
		}
	})

	t.Run("errors on missing explicit config file", func(t *testing.T) {
		t.Parallel()

		cmd := NewCrawlCmd()
		if err := cmd.Flags().Set("config", filepath.Join(t.TempDir(), "missing.yaml")); err != nil {
			t.Fatalf("Set(config) error = %v", err)
		}

		if _, err := buildConfig(cmd, []string{"https://example.com"}); err == nil {
			t.Error("buildConfig() = nil error, want error for missing config file")
		}
	})

	t.Run("loads host configs from file", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "config.yaml")
		content := `hosts:
  example.com:
    cookie: "session=abc"
    maxPages: 10
`
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}

		cmd := NewCrawlCmd()
		if err := cmd.Flags().Set("config", path); err != nil {
			t.Fatalf("Set(config) error = %v", err)
		}

		cfg, err := buildConfig(cmd, []string{"https://example.com"})
		if err != nil {
			t.Fatalf("buildConfig() error = %v", err)
		}

		hostCfg := cfg.HostConfigs.GetHostConfig("example.com")
		if hostCfg.Cookie != "session=abc" {
			t.Errorf("Cookie = %q, want session=abc", hostCfg.Cookie)
		}
		if hostCfg.MaxPages != 10 {
			t.Errorf("MaxPages = %d, want 10", hostCfg.MaxPages)
		}
	})
}

// TestRunBatchCrawlEngineFailure exercises the batch path when the engine
// cannot be built for any seed. Every crawl then reports a nil summary and
// the run must finish cleanly instead of crashing.
func TestRunBatchCrawlEngineFailure(t *testing.T) {
	t.Parallel()

	cfg := config.NewConfig()
	cfg.Seeds = []string{"http://a.example/", "http://b.example/"}
	cfg.SaveToDB = false
	cfg.HostConfigs = &config.File{
		Defaults: config.HostConfig{IgnorePatterns: []string{"[unclosed"}},
	}

	logger := log.NewSecureLogger(io.Discard, false)

	// The malformed glob makes every engineFactory call fail, so each
	// callback receives a nil summary.
	if err := runBatchCrawl(context.Background(), cfg, nil, logger); err != nil {
		t.Fatalf("runBatchCrawl() error = %v, want nil", err)
	}
}

// TestBuildEngineRejectsMalformedPattern checks that a bad glob surfaces as
// an error from engine construction rather than later in the crawl.
func TestBuildEngineRejectsMalformedPattern(t *testing.T) {
	t.Parallel()

	cfg := config.NewConfig()
	hostCfg := config.HostConfig{IgnorePatterns: []string{"[unclosed"}}
	logger := log.NewSecureLogger(io.Discard, false)

	if _, err := buildEngine(context.Background(), cfg, hostCfg, nil, logger); err == nil {
		t.Error("buildEngine() = nil error, want error for malformed pattern")
	}
}

// TestOutputReport tests report destination and format selection.
func TestOutputReport(t *testing.T) {
	t.Parallel()

	summary := func() *model.CrawlSummary {
		stats := model.NewCrawlStats()
		stats.RecordPage(&model.PageResult{URL: "http://example.com/", StatusCode: 200}, true)
		return model.NewCrawlSummary("example.com", "http://example.com/",
			time.Now(), stats, 1, false, []string{"http://example.com/"}, nil)
	}

	t.Run("writes json report to file", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "nested", "report.json")
		cfg := config.NewConfig()
		cfg.JSONReport = true
		cfg.ReportFile = path

		if err := outputReport(cfg, summary()); err != nil {
			t.Fatalf("outputReport() error = %v", err)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("ReadFile() error = %v", err)
		}
		if !strings.Contains(string(data), `"host": "example.com"`) {
			t.Errorf("report does not contain the host: %s", data)
		}
	})

	t.Run("writes markdown report to file", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "report.md")
		cfg := config.NewConfig()
		cfg.MarkdownReport = true
		cfg.ReportFile = path

		if err := outputReport(cfg, summary()); err != nil {
			t.Fatalf("outputReport() error = %v", err)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("ReadFile() error = %v", err)
		}
		if !strings.Contains(string(data), "# Webcrawl Report") {
			t.Errorf("report does not contain the markdown header: %s", data)
		}
	})

	t.Run("writes simple report to file by default", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "report.txt")
		cfg := config.NewConfig()
		cfg.ReportFile = path

		if err := outputReport(cfg, summary()); err != nil {
			t.Fatalf("outputReport() error = %v", err)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("ReadFile() error = %v", err)
		}
		if !strings.Contains(string(data), "WEBCRAWL REPORT") {
			t.Errorf("report does not contain the text header: %s", data)
		}
	})
}
