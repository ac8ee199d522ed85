package usecase

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/gallery-service/internal/entity"
	"github.com/user/gallery-service/internal/extract"
	"github.com/user/gallery-service/internal/probe"
	"github.com/user/gallery-service/pkg/metrics"
)

type managerFixture struct {
	manager  GalleryManager
	page     *fakePage
	loader   *fakeLoader
	prober   *fakeProber
	archiver *fakeArchiver
	scanRuns *fakeScanRuns
	metrics  *metrics.Metrics
}

func newManagerFixture(t *testing.T, ttl time.Duration) *managerFixture {
	t.Helper()
	page := newFakePage(pageURL, galleryHTML)
	loader := &fakeLoader{page: page}
	archiver := &fakeArchiver{}
	scanRuns := &fakeScanRuns{}
	m := metrics.New(prometheus.NewRegistry())
	prober := scenarioProber()
	collector := probe.NewCollector(probe.NewValidator(prober, m, nil), 0)

	manager := NewGalleryManager(loader, extract.DefaultRegistry(nil), collector, archiver, scanRuns, fastConfig(), ttl, m, nil)
	t.Cleanup(manager.Shutdown)

	return &managerFixture{
		manager:  manager,
		page:     page,
		loader:   loader,
		prober:   prober,
		archiver: archiver,
		scanRuns: scanRuns,
		metrics:  m,
	}
}

func (f *managerFixture) open(t *testing.T) *entity.GalleryStatus {
	t.Helper()
	status, err := f.manager.Open(context.Background(), OpenRequest{URL: pageURL, Window: window})
	require.NoError(t, err)
	return status
}

func TestManagerOpen(t *testing.T) {
	f := newManagerFixture(t, 0)
	status := f.open(t)

	assert.NotEmpty(t, status.ID)
	assert.Equal(t, pageURL, status.PageURL)
	assert.Equal(t, entity.StateDone, status.State)
	assert.Len(t, status.Images, 2)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ActiveSessions))

	got, err := f.manager.Get(status.ID)
	require.NoError(t, err)
	assert.Equal(t, status.Images, got.Images)
}

func TestManagerOpenValidation(t *testing.T) {
	f := newManagerFixture(t, 0)

	tests := []struct {
		name string
		req  OpenRequest
	}{
		{name: "relative url", req: OpenRequest{URL: "/gallery", Window: window}},
		{name: "non http scheme", req: OpenRequest{URL: "ftp://example.com/", Window: window}},
		{name: "empty url", req: OpenRequest{Window: window}},
		{name: "inverted window", req: OpenRequest{URL: pageURL, Window: entity.SizeWindow{MinSize: 500, MaxSize: 100}}},
		{name: "negative auto-scroll", req: OpenRequest{URL: pageURL, Window: window, AutoScroll: -time.Second}},
		{name: "auto-scroll too long", req: OpenRequest{URL: pageURL, Window: window, AutoScroll: entity.MaxAutoScroll + time.Second}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.manager.Open(context.Background(), tt.req)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestManagerOpenPageLoadFailure(t *testing.T) {
	f := newManagerFixture(t, 0)
	f.loader.err = errors.New("net::ERR_NAME_NOT_RESOLVED")

	_, err := f.manager.Open(context.Background(), OpenRequest{URL: pageURL, Window: window})
	assert.ErrorIs(t, err, ErrPageLoad)
	assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.ActiveSessions))
}

func TestManagerOpenPipelineErrorKeepsSession(t *testing.T) {
	f := newManagerFixture(t, 0)
	f.page.setSnapshotErr(errors.New("target closed"))

	status, err := f.manager.Open(context.Background(), OpenRequest{URL: pageURL, Window: window})
	assert.ErrorIs(t, err, ErrPipeline)
	require.NotNil(t, status)
	assert.Empty(t, status.Images)
	assert.NotEmpty(t, status.LastError)

	f.page.setSnapshotErr(nil)
	status, err = f.manager.Reload(context.Background(), status.ID, window)
	require.NoError(t, err)
	assert.Len(t, status.Images, 2)
}

func TestManagerOpenDeadlineDropsSession(t *testing.T) {
	f := newManagerFixture(t, 0)
	f.prober.mu.Lock()
	f.prober.blockUntilCancel[pageURL+"b.png"] = true
	f.prober.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	status, err := f.manager.Open(ctx, OpenRequest{URL: pageURL, Window: window})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Nil(t, status)
	assert.True(t, f.page.isClosed())
	assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.ActiveSessions))
	assert.Empty(t, f.manager.(*galleryManager).sessions)
}

func TestManagerHistoryUsesRequestedURL(t *testing.T) {
	f := newManagerFixture(t, 0)
	requested := "https://example.com/gallery"

	// The page reports where it ended up after redirects.
	status, err := f.manager.Open(context.Background(), OpenRequest{URL: requested, Window: window})
	require.NoError(t, err)
	assert.Equal(t, pageURL, status.PageURL)

	runs, err := f.manager.History(context.Background(), requested, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, requested, runs[0].PageURL)

	runs, err = f.manager.History(context.Background(), "  "+requested+" ", 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestManagerSelectionAndDownload(t *testing.T) {
	f := newManagerFixture(t, 0)
	id := f.open(t).ID

	var buf bytes.Buffer
	_, err := f.manager.Download(context.Background(), id, &buf)
	assert.ErrorIs(t, err, ErrNothingSelected)

	_, err = f.manager.ToggleSelection(id, "https://example.com/other.png")
	assert.ErrorIs(t, err, ErrImageNotFound)

	status, err := f.manager.ToggleSelection(id, pageURL+"c.gif")
	require.NoError(t, err)
	assert.True(t, status.Images[1].Selected)

	n, err := f.manager.Download(context.Background(), id, &buf)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "zip", buf.String())
	assert.Equal(t, []entity.ImageItem{{URL: pageURL + "c.gif", Width: 10, Height: 10, Selected: true}}, f.archiver.items)

	status, err = f.manager.SelectAll(id)
	require.NoError(t, err)
	for _, item := range status.Images {
		assert.True(t, item.Selected)
	}

	status, err = f.manager.DeselectAll(id)
	require.NoError(t, err)
	for _, item := range status.Images {
		assert.False(t, item.Selected)
	}
}

func TestManagerUnknownSession(t *testing.T) {
	f := newManagerFixture(t, 0)

	_, err := f.manager.Get("missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = f.manager.Reload(context.Background(), "missing", window)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = f.manager.SelectAll("missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = f.manager.Download(context.Background(), "missing", &bytes.Buffer{})
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, f.manager.Close("missing"), ErrSessionNotFound)
}

func TestManagerClose(t *testing.T) {
	f := newManagerFixture(t, 0)
	id := f.open(t).ID

	require.NoError(t, f.manager.Close(id))
	assert.True(t, f.page.isClosed())
	assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.ActiveSessions))

	_, err := f.manager.Get(id)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestManagerRecordsHistory(t *testing.T) {
	f := newManagerFixture(t, 0)
	id := f.open(t).ID
	_, err := f.manager.Reload(context.Background(), id, entity.SizeWindow{MinSize: 0, MaxSize: 100})
	require.NoError(t, err)

	runs, err := f.manager.History(context.Background(), pageURL, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, 100, runs[0].MaxSize)
	assert.Equal(t, 5000, runs[1].MaxSize)
	assert.Equal(t, id, runs[0].SessionID)
	assert.Equal(t, "default", runs[0].Strategy)

	_, err = f.manager.History(context.Background(), "", 10)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestManagerHistoryFailureDoesNotFailRun(t *testing.T) {
	f := newManagerFixture(t, 0)
	f.scanRuns.saveErr = errors.New("connection refused")

	status := f.open(t)
	assert.Len(t, status.Images, 2)
}

func TestManagerEvictsIdleSessions(t *testing.T) {
	f := newManagerFixture(t, time.Minute)
	id := f.open(t).ID

	gm := f.manager.(*galleryManager)
	assert.Zero(t, gm.evictIdle(time.Now()))

	assert.Equal(t, 1, gm.evictIdle(time.Now().Add(2*time.Minute)))
	assert.True(t, f.page.isClosed())
	assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.ActiveSessions))

	_, err := f.manager.Get(id)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestManagerJanitorStopsWithContext(t *testing.T) {
	f := newManagerFixture(t, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.manager.RunJanitor(ctx, 10*time.Millisecond)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}
