// Package report provides output formatting for crawl results.
// It supports multiple output formats through a common Writer interface:
//
//   - SimpleWriter: human-readable text for terminal display
//   - JSONWriter: machine-readable JSON for tool integration
//   - MarkdownWriter: GitHub-flavored Markdown for documentation
//
// Writers can be combined with MultiWriter to send the same summary to
// several destinations, such as stdout and a file.
package report
