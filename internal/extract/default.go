package extract

import (
	"github.com/PuerkitoBio/goquery"

	"github.com/user/gallery-service/pkg/utils"
)

// linkedImageExts are the extensions that make an <a href> an image link.
var linkedImageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// DefaultStrategy handles any page: every <img> (largest srcset source
// first, then src, then the lazy-load data-src) plus every anchor that links
// straight to an image file.
type DefaultStrategy struct{}

func (DefaultStrategy) Name() string { return "default" }

func (DefaultStrategy) CanHandle(*Document) bool { return true }

func (DefaultStrategy) Extract(doc *Document) ([]string, error) {
	var urls []string

	// Extract Images
	doc.DOM.Find("img").Each(func(_ int, s *goquery.Selection) {
		if u, ok := imageSource(doc, s); ok {
			urls = append(urls, u)
		}
	})

	// Extract image links
	doc.DOM.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if !linkedImageExts[utils.PathExt(href)] {
			return
		}
		if u, ok := doc.Resolve(href); ok {
			urls = append(urls, u)
		}
	})

	return urls, nil
}

func imageSource(doc *Document, s *goquery.Selection) (string, bool) {
	if srcset, ok := s.Attr("srcset"); ok {
		if largest := LargestFromSrcset(srcset); largest != "" {
			if u, ok := doc.Resolve(largest); ok {
				return u, true
			}
		}
	}
	if src, ok := s.Attr("src"); ok {
		if u, ok := doc.Resolve(src); ok {
			return u, true
		}
	}
	// Lazy loaders keep the real URL aside until the image scrolls into view.
	if dataSrc, ok := s.Attr("data-src"); ok {
		return doc.Resolve(dataSrc)
	}
	return "", false
}
