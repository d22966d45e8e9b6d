package crawler

import (
	"io"
	"strings"

	"golang.org/x/net/html"
)

// ExtractResult holds what link extraction pulls out of an HTML document.
type ExtractResult struct {
	// Hrefs contains the raw href values of anchor elements in document
	// order, with exact raw duplicates removed. Values are not resolved or
	// normalized; that is the engine's job.
	Hrefs []string

	// Title is the text of the first <title> element, trimmed.
	Title string
}

// skipPrefixes lists href schemes that can never become crawlable URLs.
var skipPrefixes = []string{
	"javascript:",
	"mailto:",
	"tel:",
	"data:",
}

// ExtractLinks parses HTML and returns the ordered set of raw anchor href
// values plus the page title. It is a pure function of its input and safe
// to call concurrently.
//
// Design decision: We parse with golang.org/x/net/html rather than regex
// because it correctly handles the malformed HTML common on the web and
// gives us the title in the same pass. html.Parse recovers from almost any
// input, so an error return here means the reader itself failed.
func ExtractLinks(r io.Reader) (*ExtractResult, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	result := &ExtractResult{}
	seen := make(map[string]struct{})

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "a":
				if href, ok := anchorHref(n); ok {
					if _, dup := seen[href]; !dup {
						seen[href] = struct{}{}
						result.Hrefs = append(result.Hrefs, href)
					}
				}
			case "title":
				if result.Title == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
					result.Title = strings.TrimSpace(n.FirstChild.Data)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return result, nil
}

// anchorHref returns the usable href value of an anchor node. Pseudo-links
// (javascript:, mailto:, tel:, data:, bare "#") are rejected.
func anchorHref(n *html.Node) (string, bool) {
	var href string
	for _, attr := range n.Attr {
		if attr.Key == "href" {
			href = strings.TrimSpace(attr.Val)
			break
		}
	}
	if href == "" || href == "#" {
		return "", false
	}

	lower := strings.ToLower(href)
	for _, prefix := range skipPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return "", false
		}
	}

	return href, true
}
