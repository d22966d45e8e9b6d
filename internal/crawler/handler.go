package crawler

import "github.com/nao1215/webcrawl/internal/model"

// Handler receives crawl events as they happen. All callbacks are invoked
// from the engine's single orchestration goroutine, never concurrently, so
// implementations need no locking. A slow handler slows the whole crawl;
// handlers that do expensive work should hand it off to their own
// goroutine.
type Handler interface {
	// OnPage is called once per completed fetch attempt, successful or
	// failed. The PageResult must not be modified.
	OnPage(page *model.PageResult)

	// OnError is called for each failed fetch attempt, after OnPage.
	OnError(err error, url string, depth int)

	// OnComplete is called exactly once, after the last attempt has been
	// folded into the summary and before Run returns.
	OnComplete(summary *model.CrawlSummary)
}

// NoopHandler ignores all events. It is the default when no handler is
// configured.
type NoopHandler struct{}

// OnPage implements Handler.
func (NoopHandler) OnPage(*model.PageResult) {}

// OnError implements Handler.
func (NoopHandler) OnError(error, string, int) {}

// OnComplete implements Handler.
func (NoopHandler) OnComplete(*model.CrawlSummary) {}
