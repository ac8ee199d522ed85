package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// GoogleStrategy reads the full-size image URL that Google image search
// carries in the imgurl parameter of each result link.
type GoogleStrategy struct {
	logger *zap.Logger
}

func NewGoogleStrategy(logger *zap.Logger) *GoogleStrategy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GoogleStrategy{logger: logger}
}

func (g *GoogleStrategy) Name() string { return "google" }

func (g *GoogleStrategy) CanHandle(doc *Document) bool {
	if doc.URL == nil || !strings.Contains(doc.Host(), "google.") {
		return false
	}
	q := doc.URL.Query()
	return q.Get("tbm") == "isch" || q.Get("udm") == "2" || strings.HasPrefix(doc.URL.Path, "/imgres")
}

func (g *GoogleStrategy) Extract(doc *Document) ([]string, error) {
	var urls []string
	doc.DOM.Find(`a[href*="imgurl="] > img`).Each(func(i int, s *goquery.Selection) {
		href, _ := s.Parent().Attr("href")
		imgURL := imgURLParam(href)
		if imgURL == "" {
			g.logger.Debug("skipping google result without imgurl", zap.Int("index", i))
			return
		}
		if u, ok := doc.Resolve(imgURL); ok {
			urls = append(urls, u)
		}
	})
	return urls, nil
}

// imgURLParam returns the decoded imgurl parameter of a result href. Hrefs
// that do not parse as URLs are cut by hand and decoded when possible.
func imgURLParam(href string) string {
	if u, err := url.Parse(href); err == nil {
		if v := u.Query().Get("imgurl"); v != "" {
			return v
		}
	}

	idx := strings.Index(href, "imgurl=")
	if idx < 0 {
		return ""
	}
	raw := href[idx+len("imgurl="):]
	if end := strings.IndexByte(raw, '&'); end >= 0 {
		raw = raw[:end]
	}
	if decoded, err := url.QueryUnescape(raw); err == nil {
		return decoded
	}
	return raw
}
