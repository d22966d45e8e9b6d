// Package main provides the entry point for the webcrawl CLI.
//
// Webcrawl is a single-host breadth-first web crawler. It fetches a site
// starting from a seed URL, follows same-host links, and reports crawl
// statistics.
//
// Usage:
//
//	webcrawl crawl <url>
//	webcrawl crawl --max-pages 100 <url>
//
// See --help for all available options.
package main

// main is the entry point for webcrawl.
func main() {
	Execute()
}
