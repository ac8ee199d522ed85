package extract

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/user/gallery-service/internal/entity"
	"github.com/user/gallery-service/pkg/utils"
)

// Document is a parsed page handed to extraction strategies. Strategies only
// read from it.
type Document struct {
	// URL is the page URL; nil when unknown.
	URL *url.URL
	DOM *goquery.Document

	base *url.URL
}

// NewDocument parses a page snapshot. Relative references resolve against
// the page's <base href> when present, else against the page URL.
func NewDocument(snapshot *entity.PageSnapshot) (*Document, error) {
	dom, err := goquery.NewDocumentFromReader(strings.NewReader(snapshot.HTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page html: %w", err)
	}

	doc := &Document{DOM: dom}
	if snapshot.URL != "" {
		pageURL, err := url.Parse(snapshot.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid page url %q: %w", snapshot.URL, err)
		}
		doc.URL = pageURL
		doc.base = pageURL
	}

	if href, ok := dom.Find("base[href]").First().Attr("href"); ok {
		if abs, err := utils.ToAbsoluteURL(doc.base, strings.TrimSpace(href)); err == nil {
			if baseURL, err := url.Parse(abs); err == nil && baseURL.IsAbs() {
				doc.base = baseURL
			}
		}
	}

	return doc, nil
}

// Host returns the lower-cased page host, "" when the URL is unknown.
func (d *Document) Host() string {
	if d.URL == nil {
		return ""
	}
	return strings.ToLower(d.URL.Hostname())
}

// Resolve turns a raw attribute value into an absolute, fetchable URL.
func (d *Document) Resolve(raw string) (string, bool) {
	return utils.NormalizeCandidate(d.base, raw)
}
