package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/user/gallery-service/internal/entity"
	"github.com/user/gallery-service/internal/extract"
	"github.com/user/gallery-service/internal/probe"
	"github.com/user/gallery-service/internal/repository"
	"github.com/user/gallery-service/pkg/metrics"
	"github.com/user/gallery-service/pkg/utils"
)

var (
	ErrSessionNotFound = errors.New("gallery session not found")
	ErrImageNotFound   = errors.New("image not in gallery")
	ErrNothingSelected = errors.New("no images selected")
	ErrInvalidInput    = errors.New("invalid input")
	ErrPageLoad        = errors.New("page could not be loaded")
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
	historyWriteTimeout = 5 * time.Second
)

// OpenRequest describes a page to open as a gallery.
type OpenRequest struct {
	URL        string
	Window     entity.SizeWindow
	AutoScroll time.Duration
}

// GalleryManager defines the interface for opening pages as galleries and
// operating on them.
type GalleryManager interface {
	Open(ctx context.Context, req OpenRequest) (*entity.GalleryStatus, error)
	Get(id string) (*entity.GalleryStatus, error)
	Reload(ctx context.Context, id string, window entity.SizeWindow) (*entity.GalleryStatus, error)
	ToggleSelection(id, url string) (*entity.GalleryStatus, error)
	SelectAll(id string) (*entity.GalleryStatus, error)
	DeselectAll(id string) (*entity.GalleryStatus, error)
	Download(ctx context.Context, id string, w io.Writer) (int, error)
	Close(id string) error
	History(ctx context.Context, pageURL string, limit int) ([]*entity.ScanRun, error)
	RunJanitor(ctx context.Context, interval time.Duration)
	Shutdown()
}

type galleryManager struct {
	loader    repository.PageLoader
	registry  *extract.Registry
	collector *probe.Collector
	archiver  repository.ImageArchiver
	scanRuns  repository.ScanRunRepository
	cfg       SessionConfig
	ttl       time.Duration
	metrics   *metrics.Metrics
	logger    *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*GallerySession
}

// NewGalleryManager creates a new GalleryManager use case. scanRuns may be
// nil, in which case no history is kept. A ttl <= 0 keeps sessions until
// they are closed.
func NewGalleryManager(
	loader repository.PageLoader,
	registry *extract.Registry,
	collector *probe.Collector,
	archiver repository.ImageArchiver,
	scanRuns repository.ScanRunRepository,
	cfg SessionConfig,
	ttl time.Duration,
	m *metrics.Metrics,
	logger *zap.Logger,
) GalleryManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &galleryManager{
		loader:    loader,
		registry:  registry,
		collector: collector,
		archiver:  archiver,
		scanRuns:  scanRuns,
		cfg:       cfg,
		ttl:       ttl,
		metrics:   m,
		logger:    logger,
		sessions:  make(map[string]*GallerySession),
	}
}

// Open loads the page, registers a session for it and runs the first
// discovery. When discovery fails as a whole the session stays registered
// and its status is returned along with an ErrPipeline error. A run that
// ends any other way, such as ctx expiring, drops the session again.
func (uc *galleryManager) Open(ctx context.Context, req OpenRequest) (*entity.GalleryStatus, error) {
	pageURL, ok := utils.NormalizeCandidate(nil, req.URL)
	if !ok {
		return nil, fmt.Errorf("%w: url must be an absolute http(s) URL", ErrInvalidInput)
	}
	if err := req.Window.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if req.AutoScroll < 0 || req.AutoScroll > entity.MaxAutoScroll {
		return nil, fmt.Errorf("%w: auto-scroll duration must be between 0 and %s", ErrInvalidInput, entity.MaxAutoScroll)
	}

	page, err := uc.loader.Open(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPageLoad, err)
	}

	id := uuid.NewString()
	cfg := uc.cfg
	cfg.OnRunComplete = func(run entity.ScanRun) {
		// History is looked up by the URL clients open, not where it redirected.
		run.PageURL = pageURL
		uc.recordRun(run)
	}
	session := NewGallerySession(id, page, uc.registry, uc.collector, cfg, uc.metrics, uc.logger)

	uc.mu.Lock()
	uc.sessions[id] = session
	count := len(uc.sessions)
	uc.mu.Unlock()
	uc.metrics.SetActiveSessions(count)

	uc.logger.Info("Gallery session opened", zap.String("session_id", id), zap.String("url", pageURL))

	_, err = session.RunDiscovery(ctx, entity.ScanConfig{Window: req.Window, AutoScroll: req.AutoScroll}, nil)
	if err != nil && !errors.Is(err, ErrPipeline) {
		// The caller never learns the id, so nothing could reach the session.
		_ = uc.Close(id)
		return nil, err
	}
	return session.Status(), err
}

func (uc *galleryManager) session(id string) (*GallerySession, error) {
	uc.mu.RLock()
	defer uc.mu.RUnlock()
	s, ok := uc.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

func (uc *galleryManager) Get(id string) (*entity.GalleryStatus, error) {
	s, err := uc.session(id)
	if err != nil {
		return nil, err
	}
	return s.Status(), nil
}

func (uc *galleryManager) Reload(ctx context.Context, id string, window entity.SizeWindow) (*entity.GalleryStatus, error) {
	s, err := uc.session(id)
	if err != nil {
		return nil, err
	}
	if err := window.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	_, err = s.Reload(ctx, window)
	return s.Status(), err
}

func (uc *galleryManager) ToggleSelection(id, url string) (*entity.GalleryStatus, error) {
	s, err := uc.session(id)
	if err != nil {
		return nil, err
	}
	if !s.Contains(url) {
		return nil, ErrImageNotFound
	}
	s.ToggleSelection(url)
	return s.Status(), nil
}

func (uc *galleryManager) SelectAll(id string) (*entity.GalleryStatus, error) {
	s, err := uc.session(id)
	if err != nil {
		return nil, err
	}
	s.SelectAll()
	return s.Status(), nil
}

func (uc *galleryManager) DeselectAll(id string) (*entity.GalleryStatus, error) {
	s, err := uc.session(id)
	if err != nil {
		return nil, err
	}
	s.DeselectAll()
	return s.Status(), nil
}

// Download writes the selected images of the session as an archive to w.
func (uc *galleryManager) Download(ctx context.Context, id string, w io.Writer) (int, error) {
	s, err := uc.session(id)
	if err != nil {
		return 0, err
	}
	selected := s.Selected()
	if len(selected) == 0 {
		return 0, ErrNothingSelected
	}

	n, err := uc.archiver.WriteArchive(ctx, w, selected)
	if err != nil {
		return n, fmt.Errorf("failed to write archive for session %s: %w", id, err)
	}
	uc.logger.Info("Gallery downloaded",
		zap.String("session_id", id),
		zap.Int("selected", len(selected)),
		zap.Int("archived", n),
	)
	return n, nil
}

func (uc *galleryManager) Close(id string) error {
	uc.mu.Lock()
	s, ok := uc.sessions[id]
	delete(uc.sessions, id)
	count := len(uc.sessions)
	uc.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	uc.metrics.SetActiveSessions(count)
	if err := s.Close(); err != nil {
		uc.logger.Warn("Failed to close page", zap.String("session_id", id), zap.Error(err))
	}
	return nil
}

func (uc *galleryManager) History(ctx context.Context, pageURL string, limit int) ([]*entity.ScanRun, error) {
	if pageURL == "" {
		return nil, fmt.Errorf("%w: url is required", ErrInvalidInput)
	}
	if uc.scanRuns == nil {
		return []*entity.ScanRun{}, nil
	}
	if normalized, ok := utils.NormalizeCandidate(nil, pageURL); ok {
		pageURL = normalized
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	limit = min(limit, maxHistoryLimit)

	runs, err := uc.scanRuns.FindByPageURL(ctx, pageURL, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load scan history for %s: %w", pageURL, err)
	}
	return runs, nil
}

// recordRun stores a run summary. History is best-effort.
func (uc *galleryManager) recordRun(run entity.ScanRun) {
	if uc.scanRuns == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), historyWriteTimeout)
	defer cancel()

	if err := uc.scanRuns.Save(ctx, &run); err != nil {
		uc.logger.Warn("Failed to save scan run",
			zap.String("session_id", run.SessionID),
			zap.String("page_url", run.PageURL),
			zap.Error(err),
		)
	}
}

// RunJanitor evicts sessions idle longer than the TTL every interval until
// ctx is done.
func (uc *galleryManager) RunJanitor(ctx context.Context, interval time.Duration) {
	if uc.ttl <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			uc.evictIdle(now)
		}
	}
}

func (uc *galleryManager) evictIdle(now time.Time) int {
	uc.mu.Lock()
	var stale []*GallerySession
	for id, s := range uc.sessions {
		if now.Sub(s.idleSince()) > uc.ttl {
			stale = append(stale, s)
			delete(uc.sessions, id)
		}
	}
	count := len(uc.sessions)
	uc.mu.Unlock()

	if len(stale) == 0 {
		return 0
	}
	uc.metrics.SetActiveSessions(count)
	for _, s := range stale {
		if err := s.Close(); err != nil {
			uc.logger.Warn("Failed to close page", zap.String("session_id", s.ID()), zap.Error(err))
		}
	}
	uc.logger.Info("Evicted idle gallery sessions", zap.Int("evicted", len(stale)), zap.Int("remaining", count))
	return len(stale)
}

// Shutdown closes every session.
func (uc *galleryManager) Shutdown() {
	uc.mu.Lock()
	sessions := uc.sessions
	uc.sessions = make(map[string]*GallerySession)
	uc.mu.Unlock()

	for id, s := range sessions {
		if err := s.Close(); err != nil {
			uc.logger.Warn("Failed to close page", zap.String("session_id", id), zap.Error(err))
		}
	}
	uc.metrics.SetActiveSessions(0)
}
