package usecase

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/user/gallery-service/internal/entity"
	"github.com/user/gallery-service/internal/repository"
)

type fakePage struct {
	mu        sync.Mutex
	url       string
	html      string
	snapErr   error
	scrollErr error
	scrolls   int
	toTop     int
	snapshots int
	closed    bool
}

func newFakePage(url, html string) *fakePage {
	return &fakePage{url: url, html: html}
}

func (p *fakePage) setHTML(html string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.html = html
}

func (p *fakePage) setSnapshotErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapErr = err
}

func (p *fakePage) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

func (p *fakePage) ScrollBy(ctx context.Context, dy int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.scrollErr != nil {
		return p.scrollErr
	}
	p.scrolls++
	return nil
}

func (p *fakePage) ScrollToTop(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.scrollErr != nil {
		return p.scrollErr
	}
	p.toTop++
	return nil
}

func (p *fakePage) Snapshot(ctx context.Context) (*entity.PageSnapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshots++
	if p.snapErr != nil {
		return nil, p.snapErr
	}
	return &entity.PageSnapshot{URL: p.url, HTML: p.html}, nil
}

func (p *fakePage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePage) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

type fakeLoader struct {
	page *fakePage
	err  error
}

func (l *fakeLoader) Open(ctx context.Context, pageURL string) (repository.PageSession, error) {
	if l.err != nil {
		return nil, l.err
	}
	return l.page, nil
}

// fakeProber serves dimensions from a table. URLs in blockUntilCancel wait
// for their context; everything else not in dims fails.
type fakeProber struct {
	mu               sync.Mutex
	dims             map[string]entity.Dimensions
	blockUntilCancel map[string]bool
	delay            time.Duration
}

func newFakeProber() *fakeProber {
	return &fakeProber{
		dims:             map[string]entity.Dimensions{},
		blockUntilCancel: map[string]bool{},
	}
}

func (p *fakeProber) set(url string, w, h int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dims[url] = entity.Dimensions{Width: w, Height: h}
}

func (p *fakeProber) Probe(ctx context.Context, url string) (entity.Dimensions, error) {
	p.mu.Lock()
	dims, ok := p.dims[url]
	block := p.blockUntilCancel[url]
	delay := p.delay
	p.mu.Unlock()

	if block {
		<-ctx.Done()
		return entity.Dimensions{}, ctx.Err()
	}
	if delay > 0 {
		time.Sleep(delay)
	}
	if !ok {
		return entity.Dimensions{}, errors.New("failed to load image")
	}
	return dims, nil
}

type fakeArchiver struct {
	mu    sync.Mutex
	items []entity.ImageItem
}

func (a *fakeArchiver) WriteArchive(ctx context.Context, w io.Writer, items []entity.ImageItem) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.items = append([]entity.ImageItem(nil), items...)
	_, err := w.Write([]byte("zip"))
	return len(items), err
}

type fakeScanRuns struct {
	mu      sync.Mutex
	runs    []*entity.ScanRun
	saveErr error
}

func (r *fakeScanRuns) Save(ctx context.Context, run *entity.ScanRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	run.ID = int64(len(r.runs) + 1)
	r.runs = append(r.runs, run)
	return nil
}

func (r *fakeScanRuns) FindByPageURL(ctx context.Context, pageURL string, limit int) ([]*entity.ScanRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*entity.ScanRun{}
	for i := len(r.runs) - 1; i >= 0 && len(out) < limit; i-- {
		if r.runs[i].PageURL == pageURL {
			out = append(out, r.runs[i])
		}
	}
	return out, nil
}
