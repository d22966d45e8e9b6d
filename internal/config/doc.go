// Package config provides configuration structures and utilities for
// webcrawl. It defines the main options for crawling, per-host overrides
// loaded from the configuration file, and report generation preferences.
package config
