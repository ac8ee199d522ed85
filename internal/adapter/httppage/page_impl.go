package httppage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/user/gallery-service/internal/entity"
	"github.com/user/gallery-service/internal/repository"
	"github.com/user/gallery-service/pkg/proxy"
)

// maxPageBytes caps a fetched document.
const maxPageBytes = 16 << 20

// PageLoader fetches pages as static HTML without running scripts. Sessions
// cannot scroll, so lazy-loaded images only show up if the markup names them.
type PageLoader struct {
	client *http.Client
	proxy  *proxy.Manager
	logger *zap.Logger
}

func NewPageLoader(proxyManager *proxy.Manager, logger *zap.Logger) *PageLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = proxyManager.ProxyFunc()

	return &PageLoader{
		client: &http.Client{Transport: transport},
		proxy:  proxyManager,
		logger: logger,
	}
}

var _ repository.PageLoader = (*PageLoader)(nil)

// Open implements repository.PageLoader.
func (l *PageLoader) Open(ctx context.Context, pageURL string) (repository.PageSession, error) {
	snap, err := l.fetch(ctx, pageURL)
	if err != nil {
		l.logger.Warn("Failed to fetch page", zap.String("url", pageURL), zap.Error(err))
		return nil, err
	}
	l.logger.Info("Page fetched", zap.String("url", snap.URL), zap.Int("bytes", len(snap.HTML)))
	return &pageSession{loader: l, requested: pageURL, last: snap}, nil
}

func (l *PageLoader) fetch(ctx context.Context, pageURL string) (*entity.PageSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	if ua := l.proxy.GetUserAgent(); ua != "" {
		req.Header.Set("User-Agent", ua)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", pageURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", pageURL, err)
	}

	return &entity.PageSnapshot{URL: resp.Request.URL.String(), HTML: string(body)}, nil
}

type pageSession struct {
	loader    *PageLoader
	requested string

	mu     sync.Mutex
	last   *entity.PageSnapshot
	served bool
}

func (s *pageSession) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last.URL
}

func (s *pageSession) ScrollBy(context.Context, int) error {
	return repository.ErrScrollUnsupported
}

func (s *pageSession) ScrollToTop(context.Context) error {
	return repository.ErrScrollUnsupported
}

// Snapshot returns the document fetched by Open the first time and
// re-fetches the page on every later call.
func (s *pageSession) Snapshot(ctx context.Context) (*entity.PageSnapshot, error) {
	s.mu.Lock()
	if !s.served {
		s.served = true
		snap := s.last
		s.mu.Unlock()
		return snap, nil
	}
	s.mu.Unlock()

	snap, err := s.loader.fetch(ctx, s.requested)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.last = snap
	s.mu.Unlock()
	return snap, nil
}

func (s *pageSession) Close() error { return nil }
