package crawler

import "github.com/nao1215/webcrawl/internal/model"

// FailureTracker keeps the append-only log of failure events for a crawl.
// Events are appended as failures occur; when a later attempt for the same
// URL succeeds, the most recent unresolved event for that URL is flipped to
// resolved in place. The final log therefore distinguishes transient
// failures (resolved by retry) from terminal ones.
//
// Not safe for concurrent use; the engine's scheduler goroutine is the
// only caller.
type FailureTracker struct {
	// events is the ordered failure log.
	events []model.FailureEvent

	// open maps URL to a stack of indexes into events for that URL's
	// unresolved failures, so resolution always closes the most recent one.
	open map[string][]int
}

// NewFailureTracker creates an empty tracker.
func NewFailureTracker() *FailureTracker {
	return &FailureTracker{
		open: make(map[string][]int),
	}
}

// Record appends a failure event with ResolvedOnRetry=false.
func (t *FailureTracker) Record(url string, depth, attempt int, reason string) {
	t.events = append(t.events, model.FailureEvent{
		URL:     url,
		Depth:   depth,
		Reason:  reason,
		Attempt: attempt,
	})
	t.open[url] = append(t.open[url], len(t.events)-1)
}

// Resolve flips the most recent unresolved event for url to resolved.
// Returns false when no unresolved event exists for the URL.
func (t *FailureTracker) Resolve(url string) bool {
	stack := t.open[url]
	if len(stack) == 0 {
		return false
	}
	idx := stack[len(stack)-1]
	t.open[url] = stack[:len(stack)-1]
	t.events[idx].ResolvedOnRetry = true
	return true
}

// Events returns a copy of the full ordered failure log.
func (t *FailureTracker) Events() []model.FailureEvent {
	out := make([]model.FailureEvent, len(t.events))
	copy(out, t.events)
	return out
}

// Len returns the number of recorded failure events.
func (t *FailureTracker) Len() int {
	return len(t.events)
}
