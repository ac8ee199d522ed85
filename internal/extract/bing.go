package extract

import (
	"encoding/json"
	"errors"
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// unquotedKey matches object keys Bing sometimes emits without quotes.
var unquotedKey = regexp.MustCompile(`([{,]\s*)([A-Za-z0-9_]+)\s*:`)

var errNoMediaURL = errors.New("metadata has no murl field")

// BingStrategy reads full-resolution URLs from the JSON metadata Bing image
// search attaches to each result link.
type BingStrategy struct {
	logger *zap.Logger
}

func NewBingStrategy(logger *zap.Logger) *BingStrategy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BingStrategy{logger: logger}
}

func (b *BingStrategy) Name() string { return "bing" }

func (b *BingStrategy) CanHandle(doc *Document) bool {
	if doc.URL == nil {
		return false
	}
	return strings.Contains(doc.Host(), "bing.com") && strings.Contains(doc.URL.Path, "/images")
}

func (b *BingStrategy) Extract(doc *Document) ([]string, error) {
	var urls []string
	doc.DOM.Find("a.iusc, a[m*='murl']").Each(func(i int, s *goquery.Selection) {
		m, ok := s.Attr("m")
		if !ok || m == "" {
			return
		}
		murl, err := parseBingMetadata(m)
		if err != nil {
			b.logger.Debug("skipping bing result", zap.Int("index", i), zap.Error(err))
			return
		}
		if u, ok := doc.Resolve(murl); ok {
			urls = append(urls, u)
		}
	})
	return urls, nil
}

// parseBingMetadata decodes an "m" attribute. The value may still carry HTML
// entities and may use unquoted keys.
func parseBingMetadata(raw string) (string, error) {
	decoded := html.UnescapeString(raw)

	var meta struct {
		MURL string `json:"murl"`
	}
	if err := json.Unmarshal([]byte(decoded), &meta); err != nil {
		relaxed := unquotedKey.ReplaceAllString(decoded, `$1"$2":`)
		if err := json.Unmarshal([]byte(relaxed), &meta); err != nil {
			return "", err
		}
	}
	if meta.MURL == "" {
		return "", errNoMediaURL
	}
	return meta.MURL, nil
}
