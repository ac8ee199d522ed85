package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const duckDuckGoOrigin = "https://duckduckgo.com"

// DuckDuckGoStrategy keeps only images DuckDuckGo serves through its own
// asset path or its image proxy.
type DuckDuckGoStrategy struct{}

func (DuckDuckGoStrategy) Name() string { return "duckduckgo" }

func (DuckDuckGoStrategy) CanHandle(doc *Document) bool {
	return strings.Contains(doc.Host(), "duckduckgo.com")
}

func (DuckDuckGoStrategy) Extract(doc *Document) ([]string, error) {
	var urls []string
	doc.DOM.Find("img").Each(func(_ int, s *goquery.Selection) {
		raw, ok := s.Attr("data-src")
		if !ok || raw == "" {
			raw, _ = s.Attr("src")
		}
		raw = strings.TrimSpace(raw)

		var candidate string
		switch {
		case strings.HasPrefix(raw, "/assets"):
			candidate = duckDuckGoOrigin + raw
		case strings.HasPrefix(raw, "//proxy"):
			candidate = "https:" + raw
		default:
			return
		}
		if u, ok := doc.Resolve(candidate); ok {
			urls = append(urls, u)
		}
	})
	return urls, nil
}
