package crawler

// QueueItem is one unit of pending work: a normalized URL, its link
// distance from the seed, and its zero-based attempt number. Items are
// owned by the Frontier until dequeued; ownership then transfers to the
// in-flight fetch task.
type QueueItem struct {
	// URL is the normalized URL to fetch.
	URL string

	// Depth is the link distance from the start URL.
	Depth int

	// Attempt is the zero-based attempt number. Retries carry attempt+1.
	Attempt int
}

// Frontier is the FIFO set of discovered-but-not-yet-fetched URLs.
// It pairs an ordered queue of QueueItems with a seen-set of every
// normalized URL ever enqueued, so each URL enters the queue at most once
// per crawl. Retries re-enter the queue without touching the seen-set,
// because a retry is not a new discovery.
//
// The Frontier is not safe for concurrent use; the engine's scheduler
// goroutine is its only caller.
type Frontier struct {
	// items is the pending queue, front at index 0.
	items []QueueItem

	// seen holds every normalized URL ever enqueued or marked visited.
	seen map[string]struct{}

	// depthPriority selects shallowest-first dequeue order instead of
	// strict FIFO. Ties are broken by insertion order, so within a depth
	// the order is still FIFO.
	depthPriority bool
}

// NewFrontier creates a Frontier seeded with one item for the given
// normalized start URL at depth 0, and marks the start URL seen.
func NewFrontier(seedURL string, depthPriority bool) *Frontier {
	f := &Frontier{
		seen:          make(map[string]struct{}),
		depthPriority: depthPriority,
	}
	f.seen[seedURL] = struct{}{}
	f.items = append(f.items, QueueItem{URL: seedURL, Depth: 0, Attempt: 0})
	return f
}

// EnqueueIfNew appends a new item for url at the given depth unless the
// URL has been seen before. Returns false without mutating anything when
// the URL is a duplicate; the caller counts that as a filtered duplicate.
func (f *Frontier) EnqueueIfNew(url string, depth int) bool {
	if _, ok := f.seen[url]; ok {
		return false
	}
	f.seen[url] = struct{}{}
	f.items = append(f.items, QueueItem{URL: url, Depth: depth, Attempt: 0})
	return true
}

// EnqueueRetry appends the given item verbatim. The caller has already
// incremented the attempt counter; the seen-set is not touched because the
// URL is already in it.
func (f *Frontier) EnqueueRetry(item QueueItem) {
	f.items = append(f.items, item)
}

// Dequeue removes and returns the next item. In FIFO mode that is the
// front of the queue; in depth-priority mode it is the oldest item among
// those with the smallest depth. The second return value is false when the
// queue is empty.
func (f *Frontier) Dequeue() (QueueItem, bool) {
	if len(f.items) == 0 {
		return QueueItem{}, false
	}

	idx := 0
	if f.depthPriority {
		for i, item := range f.items {
			if item.Depth < f.items[idx].Depth {
				idx = i
			}
		}
	}

	item := f.items[idx]
	f.items = append(f.items[:idx], f.items[idx+1:]...)
	return item, true
}

// MarkSeen adds url to the seen-set without enqueueing it. Used for
// post-redirect URLs so a page reached via redirect is not fetched again
// under its final address. Returns true when the URL was not already seen.
func (f *Frontier) MarkSeen(url string) bool {
	if _, ok := f.seen[url]; ok {
		return false
	}
	f.seen[url] = struct{}{}
	return true
}

// Pending returns the number of queued items.
func (f *Frontier) Pending() int {
	return len(f.items)
}

// UniqueCount returns the size of the seen-set: the number of distinct
// normalized URLs discovered during the crawl.
func (f *Frontier) UniqueCount() int {
	return len(f.seen)
}
