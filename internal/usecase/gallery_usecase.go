package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/user/gallery-service/internal/entity"
	"github.com/user/gallery-service/internal/extract"
	"github.com/user/gallery-service/internal/probe"
	"github.com/user/gallery-service/internal/repository"
	"github.com/user/gallery-service/pkg/metrics"
	"github.com/user/gallery-service/pkg/timebox"
)

var (
	// ErrSuperseded is returned by a run whose results were discarded
	// because a newer run started on the same session.
	ErrSuperseded = errors.New("discovery run superseded by a newer run")
	// ErrPipeline marks a run that failed as a whole, such as a page whose
	// DOM could not be read. The session is left Idle so it can be retried.
	ErrPipeline = errors.New("discovery pipeline failed")
)

const (
	defaultScrollStep  = 300
	defaultScrollDelay = 200 * time.Millisecond
	defaultSettleDelay = 500 * time.Millisecond
	// scrollSlack is added to the scroll time box to cover the return to
	// the top and one slow browser round-trip.
	scrollSlack = 2 * time.Second
)

// SessionConfig tunes a GallerySession. Zero values use the defaults.
type SessionConfig struct {
	ProbeTimeout time.Duration
	ScrollStep   int
	ScrollDelay  time.Duration
	SettleDelay  time.Duration
	// OnRunComplete, if set, receives a summary of every committed run.
	OnRunComplete func(entity.ScanRun)
}

func (c SessionConfig) withDefaults() SessionConfig {
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = probe.DefaultTimeout
	}
	if c.ScrollStep <= 0 {
		c.ScrollStep = defaultScrollStep
	}
	if c.ScrollDelay <= 0 {
		c.ScrollDelay = defaultScrollDelay
	}
	if c.SettleDelay < 0 {
		c.SettleDelay = 0
	} else if c.SettleDelay == 0 {
		c.SettleDelay = defaultSettleDelay
	}
	return c
}

// GallerySession runs image discovery against one opened page and owns the
// resulting gallery. At most one run is in flight: starting a run cancels
// the previous one, whose results are then discarded.
type GallerySession struct {
	id        string
	page      repository.PageSession
	registry  *extract.Registry
	collector *probe.Collector
	cfg       SessionConfig
	metrics   *metrics.Metrics
	logger    *zap.Logger

	mu             sync.Mutex
	generation     uint64
	cancelRun      context.CancelFunc
	state          entity.RunState
	loading        bool
	scrollProgress float64
	strategy       string
	window         entity.SizeWindow
	items          []entity.ImageItem
	lastErr        string
	updatedAt      time.Time
	lastActive     time.Time
}

// NewGallerySession creates an idle session over page.
func NewGallerySession(
	id string,
	page repository.PageSession,
	registry *extract.Registry,
	collector *probe.Collector,
	cfg SessionConfig,
	m *metrics.Metrics,
	logger *zap.Logger,
) *GallerySession {
	if logger == nil {
		logger = zap.NewNop()
	}
	now := time.Now()
	return &GallerySession{
		id:         id,
		page:       page,
		registry:   registry,
		collector:  collector,
		cfg:        cfg.withDefaults(),
		metrics:    m,
		logger:     logger.With(zap.String("session_id", id)),
		state:      entity.StateIdle,
		loading:    true,
		items:      []entity.ImageItem{},
		updatedAt:  now,
		lastActive: now,
	}
}

func (s *GallerySession) ID() string { return s.id }

// RunDiscovery scrolls the page (when cfg.AutoScroll > 0), extracts and
// deduplicates candidate URLs, validates them against cfg.Window and
// replaces the gallery with the result. progress may be nil.
//
// An empty result is not an error. A run overtaken by a newer one returns
// ErrSuperseded and changes nothing.
func (s *GallerySession) RunDiscovery(ctx context.Context, cfg entity.ScanConfig, progress func(float64)) ([]entity.ImageItem, error) {
	if err := cfg.Window.Validate(); err != nil {
		return nil, err
	}

	runCtx, gen := s.begin(ctx, cfg)
	startedAt := time.Now()

	if cfg.AutoScroll > 0 {
		s.transition(gen, entity.StateAutoScrolling)
		s.autoScroll(runCtx, gen, cfg.AutoScroll, progress)
	}

	if !s.transition(gen, entity.StateExtracting) {
		return nil, ErrSuperseded
	}

	snap, err := s.page.Snapshot(runCtx)
	if err != nil {
		if ctxErr := runCtx.Err(); ctxErr != nil {
			return nil, s.abandon(gen, ctxErr)
		}
		return nil, s.fail(gen, fmt.Errorf("read page: %w", err))
	}
	doc, err := extract.NewDocument(snap)
	if err != nil {
		return nil, s.fail(gen, fmt.Errorf("parse page: %w", err))
	}

	strategy := s.registry.Select(doc)
	raw, err := extract.SafeExtract(strategy, doc)
	if err != nil {
		s.logger.Error("Strategy failed, continuing with no candidates",
			zap.String("strategy", strategy.Name()),
			zap.Error(err),
		)
		raw = nil
	}
	candidates := extract.Dedupe(raw)

	if !s.transition(gen, entity.StateValidating) {
		return nil, ErrSuperseded
	}
	items := s.collector.CollectPartial(runCtx, candidates, cfg.Window, s.cfg.ProbeTimeout)
	if err := runCtx.Err(); err != nil {
		return nil, s.abandon(gen, err)
	}

	if !s.commit(gen, items, strategy.Name()) {
		return nil, ErrSuperseded
	}

	elapsed := time.Since(startedAt)
	s.metrics.ObserveScan(strategy.Name(), elapsed.Seconds(), len(candidates))
	s.logger.Info("Discovery run completed",
		zap.String("page_url", snap.URL),
		zap.String("strategy", strategy.Name()),
		zap.Int("candidates", len(candidates)),
		zap.Int("accepted", len(items)),
		zap.Duration("duration", elapsed),
	)
	if s.cfg.OnRunComplete != nil {
		s.cfg.OnRunComplete(entity.ScanRun{
			SessionID:  s.id,
			PageURL:    snap.URL,
			Strategy:   strategy.Name(),
			Candidates: len(candidates),
			Accepted:   len(items),
			MinSize:    cfg.Window.MinSize,
			MaxSize:    cfg.Window.MaxSize,
			DurationMS: elapsed.Milliseconds(),
			StartedAt:  startedAt,
		})
	}

	return cloneItems(items), nil
}

// Reload re-runs discovery on the page as it is now, without scrolling,
// and replaces the whole gallery.
func (s *GallerySession) Reload(ctx context.Context, window entity.SizeWindow) ([]entity.ImageItem, error) {
	return s.RunDiscovery(ctx, entity.ScanConfig{Window: window}, nil)
}

func (s *GallerySession) begin(ctx context.Context, cfg entity.ScanConfig) (context.Context, uint64) {
	runCtx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancelRun != nil {
		s.cancelRun()
	}
	s.generation++
	s.cancelRun = cancel
	s.state = entity.StateIdle
	s.loading = true
	s.scrollProgress = 0
	s.window = cfg.Window
	s.lastErr = ""
	s.touch()

	return runCtx, s.generation
}

// transition moves the current run to state. It reports false when gen is
// no longer the current run.
func (s *GallerySession) transition(gen uint64, state entity.RunState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return false
	}
	s.state = state
	s.touch()
	return true
}

func (s *GallerySession) commit(gen uint64, items []entity.ImageItem, strategy string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return false
	}
	s.items = items
	s.strategy = strategy
	s.state = entity.StateDone
	s.loading = false
	s.finishRun()
	return true
}

func (s *GallerySession) fail(gen uint64, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return ErrSuperseded
	}
	s.items = []entity.ImageItem{}
	s.state = entity.StateIdle
	s.loading = false
	s.lastErr = err.Error()
	s.finishRun()

	s.logger.Error("Discovery run failed", zap.Error(err))
	return fmt.Errorf("%w: %v", ErrPipeline, err)
}

// abandon ends a run whose caller went away before it finished. The
// previous gallery is kept.
func (s *GallerySession) abandon(gen uint64, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return ErrSuperseded
	}
	s.state = entity.StateIdle
	s.loading = false
	s.finishRun()
	return err
}

// finishRun releases the current run's context. Callers hold mu.
func (s *GallerySession) finishRun() {
	if s.cancelRun != nil {
		s.cancelRun()
		s.cancelRun = nil
	}
	s.touch()
}

func (s *GallerySession) touch() {
	s.updatedAt = time.Now()
	s.lastActive = s.updatedAt
}

func (s *GallerySession) reportProgress(gen uint64, pct float64, progress func(float64)) {
	s.mu.Lock()
	current := gen == s.generation
	if current {
		s.scrollProgress = pct
	}
	s.mu.Unlock()

	if current && progress != nil {
		progress(pct)
	}
}

// autoScroll steps the viewport down for d, then returns to the top and
// waits for lazy images to settle. Failures are logged and ignored.
func (s *GallerySession) autoScroll(ctx context.Context, gen uint64, d time.Duration, progress func(float64)) {
	budget := d + s.cfg.SettleDelay + scrollSlack

	err := timebox.Run(ctx, budget, func(ctx context.Context) error {
		start := time.Now()
		ticker := time.NewTicker(s.cfg.ScrollDelay)
		defer ticker.Stop()

		for {
			elapsed := time.Since(start)
			pct := min(float64(elapsed)/float64(d), 1) * 100
			s.reportProgress(gen, pct, progress)
			if elapsed >= d {
				break
			}
			if err := s.page.ScrollBy(ctx, s.cfg.ScrollStep); err != nil {
				return err
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		}

		if err := s.page.ScrollToTop(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.cfg.SettleDelay):
		}
		return nil
	})

	switch {
	case err == nil:
	case errors.Is(err, repository.ErrScrollUnsupported):
		s.logger.Debug("Page cannot scroll, skipping auto-scroll")
	case ctx.Err() != nil:
		// superseded or cancelled; the caller notices
	default:
		s.logger.Warn("Auto-scroll did not complete", zap.Error(err))
	}
}

// ToggleSelection flips the selected flag of the image with url and returns
// the new value. It returns false when no such image exists.
func (s *GallerySession) ToggleSelection(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = time.Now()
	for i := range s.items {
		if s.items[i].URL == url {
			s.items[i].Selected = !s.items[i].Selected
			return s.items[i].Selected
		}
	}
	return false
}

func (s *GallerySession) SelectAll()   { s.setAllSelected(true) }
func (s *GallerySession) DeselectAll() { s.setAllSelected(false) }

func (s *GallerySession) setAllSelected(selected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = time.Now()
	for i := range s.items {
		s.items[i].Selected = selected
	}
}

// Contains reports whether the gallery currently holds an image with url.
func (s *GallerySession) Contains(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range s.items {
		if item.URL == url {
			return true
		}
	}
	return false
}

// Images returns a copy of the current gallery.
func (s *GallerySession) Images() []entity.ImageItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneItems(s.items)
}

// Selected returns the selected images in gallery order.
func (s *GallerySession) Selected() []entity.ImageItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	selected := []entity.ImageItem{}
	for _, item := range s.items {
		if item.Selected {
			selected = append(selected, item)
		}
	}
	return selected
}

func (s *GallerySession) State() entity.RunState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *GallerySession) Status() *entity.GalleryStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &entity.GalleryStatus{
		ID:             s.id,
		PageURL:        s.page.URL(),
		State:          s.state,
		Loading:        s.loading,
		ScrollProgress: s.scrollProgress,
		Strategy:       s.strategy,
		Window:         s.window,
		Images:         cloneItems(s.items),
		LastError:      s.lastErr,
		UpdatedAt:      s.updatedAt,
	}
}

// idleSince returns the last time the session was used.
func (s *GallerySession) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Close cancels any run in flight and releases the page.
func (s *GallerySession) Close() error {
	s.mu.Lock()
	s.generation++
	if s.cancelRun != nil {
		s.cancelRun()
		s.cancelRun = nil
	}
	s.mu.Unlock()
	return s.page.Close()
}

func cloneItems(items []entity.ImageItem) []entity.ImageItem {
	out := make([]entity.ImageItem, len(items))
	copy(out, items)
	return out
}
