package chromedp_browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/user/gallery-service/internal/entity"
	"github.com/user/gallery-service/internal/repository"
	"github.com/user/gallery-service/pkg/proxy"
)

// actionTimeout bounds scroll and snapshot round-trips to the browser.
const actionTimeout = 10 * time.Second

// PageLoader opens pages in tabs of a shared headless Chrome.
type PageLoader struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	timeout     time.Duration
	proxy       *proxy.Manager
	logger      *zap.Logger
}

// NewPageLoader starts an allocator for a headless browser. pageLoadTimeout
// bounds navigation in Open. proxyManager may be nil.
func NewPageLoader(pageLoadTimeout time.Duration, proxyManager *proxy.Manager, logger *zap.Logger) *PageLoader {
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(1366, 900),
	)
	if proxyManager.HasProxies() {
		opts = append(opts, chromedp.ProxyServer(proxyManager.GetProxy()))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &PageLoader{
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		timeout:     pageLoadTimeout,
		proxy:       proxyManager,
		logger:      logger,
	}
}

var _ repository.PageLoader = (*PageLoader)(nil)

// Open implements repository.PageLoader.
func (l *PageLoader) Open(ctx context.Context, pageURL string) (repository.PageSession, error) {
	tabCtx, cancel := chromedp.NewContext(l.allocCtx, chromedp.WithLogf(l.logger.Sugar().Debugf))

	// The first Run on the tab context creates the tab and must not carry a
	// deadline, or the tab dies with it.
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("start browser tab: %w", err)
	}

	actions := []chromedp.Action{}
	if ua := l.proxy.GetUserAgent(); ua != "" {
		actions = append(actions, emulation.SetUserAgentOverride(ua))
	}
	actions = append(actions,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)

	startTime := time.Now()
	runCtx, stop := bind(ctx, tabCtx, l.timeout)
	err := chromedp.Run(runCtx, actions...)
	stop()
	if err != nil {
		cancel()
		l.logger.Warn("Failed to load page", zap.String("url", pageURL), zap.Error(err))
		return nil, fmt.Errorf("load %s: %w", pageURL, err)
	}

	l.logger.Info("Page loaded",
		zap.String("url", pageURL),
		zap.Duration("load_time", time.Since(startTime)),
	)

	return &pageSession{tabCtx: tabCtx, cancel: cancel, url: pageURL}, nil
}

// Close shuts the browser down.
func (l *PageLoader) Close() {
	l.allocCancel()
}

// bind derives a context from the tab that also ends when parent ends or
// timeout elapses. Cancelling it aborts the action without closing the tab.
func bind(parent, tabCtx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithTimeout(tabCtx, timeout)
	stopAfter := context.AfterFunc(parent, cancel)
	return runCtx, func() {
		stopAfter()
		cancel()
	}
}

type pageSession struct {
	tabCtx context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	url    string
	closed bool
}

func (s *pageSession) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url
}

func (s *pageSession) run(ctx context.Context, actions ...chromedp.Action) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return errors.New("page session closed")
	}

	runCtx, stop := bind(ctx, s.tabCtx, actionTimeout)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

func (s *pageSession) ScrollBy(ctx context.Context, dy int) error {
	return s.run(ctx, chromedp.Evaluate(fmt.Sprintf("window.scrollBy(0, %d)", dy), nil))
}

func (s *pageSession) ScrollToTop(ctx context.Context) error {
	return s.run(ctx, chromedp.Evaluate("window.scrollTo(0, 0)", nil))
}

func (s *pageSession) Snapshot(ctx context.Context) (*entity.PageSnapshot, error) {
	var location, html string
	if err := s.run(ctx,
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	); err != nil {
		return nil, fmt.Errorf("snapshot page: %w", err)
	}

	s.mu.Lock()
	s.url = location
	s.mu.Unlock()

	return &entity.PageSnapshot{URL: location, HTML: html}, nil
}

func (s *pageSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		s.cancel()
	}
	return nil
}
