package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/webcrawl/internal/model"
)

// JSONWriter outputs crawl summaries in JSON format.
// This is useful for machine processing and integration with other tools.
type JSONWriter struct {
	baseWriter

	// indent specifies the indentation for pretty printing.
	// Empty string means compact output.
	indent string

	// prefix specifies the prefix for each line in pretty printing.
	prefix string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent sets custom indentation for JSON output.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.prefix = prefix
		w.indent = indent
	}
}

// WithPrettyPrint enables pretty printing with 2-space indentation.
func WithPrettyPrint() JSONWriterOption {
	return func(w *JSONWriter) {
		w.prefix = ""
		w.indent = "  "
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
// By default, output is compact. Use WithPrettyPrint or WithIndent
// for human-readable formatting.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the summary as JSON.
func (w *JSONWriter) Write(summary *model.CrawlSummary) (int, error) {
	return w.writeJSON(summary)
}

// writeJSON marshals the value and writes it with a trailing newline.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.indent != "" || w.prefix != "" {
		data, err = json.MarshalIndent(v, w.prefix, w.indent)
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}

	data = append(data, '\n')
	return w.output.Write(data)
}

// JSONReport is the envelope for full JSON output. The version field
// lets downstream consumers detect format changes.
type JSONReport struct {
	Version string              `json:"version"`
	Summary *model.CrawlSummary `json:"summary"`
}

// jsonReportVersion identifies the current JSON envelope layout.
const jsonReportVersion = "1.0"

// FullJSONWriter outputs summaries wrapped in a versioned envelope.
// Use this when the output feeds another tool that needs to detect
// format changes across releases.
type FullJSONWriter struct {
	inner *JSONWriter
}

// NewFullJSONWriter creates a FullJSONWriter that outputs to the given writer.
func NewFullJSONWriter(output io.Writer, opts ...JSONWriterOption) *FullJSONWriter {
	return &FullJSONWriter{inner: NewJSONWriter(output, opts...)}
}

// Write outputs the summary wrapped in a versioned JSONReport envelope.
func (w *FullJSONWriter) Write(summary *model.CrawlSummary) (int, error) {
	return w.inner.writeJSON(&JSONReport{
		Version: jsonReportVersion,
		Summary: summary,
	})
}
