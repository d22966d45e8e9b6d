package crawler

import "fmt"

// ErrorKind classifies what part of the crawl produced an error.
type ErrorKind string

// Error kinds, from most to least common.
const (
	// KindFetch covers network errors, timeouts, and non-2xx responses.
	KindFetch ErrorKind = "fetch"

	// KindParse covers malformed HTML or link-extraction failures.
	KindParse ErrorKind = "parse"

	// KindNormalize covers unparseable URLs. Normalization failures are
	// usually handled by skipping the URL; this kind appears only when a
	// URL that must be valid (the seed) is not.
	KindNormalize ErrorKind = "normalize"

	// KindConfig covers invalid engine configuration.
	KindConfig ErrorKind = "config"

	// KindInternal covers anything unexpected, including recovered panics
	// from fetch tasks.
	KindInternal ErrorKind = "internal"
)

// Severity decides whether an error aborts the crawl.
type Severity string

const (
	// SeverityRecoverable errors are absorbed by the engine: they become a
	// failed PageResult plus a FailureEvent and the crawl continues.
	SeverityRecoverable Severity = "recoverable"

	// SeverityFatal errors propagate out of Run and terminate the crawl.
	// Already-collected stats are still returned in the summary.
	SeverityFatal Severity = "fatal"
)

// ClassifiedError carries an error kind and severity alongside the message.
//
// Design decision: We use a tagged struct rather than an error hierarchy
// because the engine needs exactly two decisions from any error - which
// bucket to count it in, and whether to keep crawling - and both are
// answered by plain field reads.
type ClassifiedError struct {
	// Kind identifies the component the error originated from.
	Kind ErrorKind

	// Severity is recoverable or fatal.
	Severity Severity

	// Message is the human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *ClassifiedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As chains.
func (e *ClassifiedError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether the error should abort the crawl.
func (e *ClassifiedError) IsFatal() bool {
	return e.Severity == SeverityFatal
}

// newConfigError builds a fatal configuration error.
func newConfigError(format string, args ...any) *ClassifiedError {
	return &ClassifiedError{
		Kind:     KindConfig,
		Severity: SeverityFatal,
		Message:  fmt.Sprintf(format, args...),
	}
}

// newInternalError wraps an unexpected failure (typically a recovered
// panic) into a fatal internal error so the crawl never dies with an
// unannotated value.
func newInternalError(message string, err error) *ClassifiedError {
	return &ClassifiedError{
		Kind:     KindInternal,
		Severity: SeverityFatal,
		Message:  message,
		Err:      err,
	}
}
