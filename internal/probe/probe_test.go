package probe

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/gallery-service/internal/entity"
	"github.com/user/gallery-service/pkg/metrics"
)

// fakeProber answers from a table. Delayed entries sleep first; hanging
// entries block until the test ends, ignoring their context.
type fakeProber struct {
	dims    map[string]entity.Dimensions
	delays  map[string]time.Duration
	hang    map[string]bool
	release chan struct{}

	mu    sync.Mutex
	calls int
}

func newFakeProber(t *testing.T) *fakeProber {
	p := &fakeProber{
		dims:    map[string]entity.Dimensions{},
		delays:  map[string]time.Duration{},
		hang:    map[string]bool{},
		release: make(chan struct{}),
	}
	t.Cleanup(func() { close(p.release) })
	return p
}

func (p *fakeProber) Probe(ctx context.Context, url string) (entity.Dimensions, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()

	if p.hang[url] {
		<-p.release
		return entity.Dimensions{}, errors.New("released")
	}
	if d := p.delays[url]; d > 0 {
		time.Sleep(d)
	}
	dims, ok := p.dims[url]
	if !ok {
		return entity.Dimensions{}, errors.New("failed to load image")
	}
	return dims, nil
}

var window = entity.SizeWindow{MinSize: 100, MaxSize: 5000}

func TestValidateSizeWindow(t *testing.T) {
	p := newFakeProber(t)
	p.dims["https://x/small.jpg"] = entity.Dimensions{Width: 50, Height: 50}
	p.dims["https://x/ok.png"] = entity.Dimensions{Width: 600, Height: 600}
	p.dims["https://x/edge.png"] = entity.Dimensions{Width: 100, Height: 5000}
	p.dims["https://x/wide.png"] = entity.Dimensions{Width: 6000, Height: 600}
	v := NewValidator(p, nil, nil)

	assert.Nil(t, v.Validate(context.Background(), "https://x/small.jpg", window, time.Second))
	assert.Nil(t, v.Validate(context.Background(), "https://x/wide.png", window, time.Second))

	item := v.Validate(context.Background(), "https://x/ok.png", window, time.Second)
	require.NotNil(t, item)
	assert.Equal(t, entity.ImageItem{URL: "https://x/ok.png", Width: 600, Height: 600}, *item)

	assert.NotNil(t, v.Validate(context.Background(), "https://x/edge.png", window, time.Second))
}

func TestValidateAnimatedIgnoresWindow(t *testing.T) {
	p := newFakeProber(t)
	p.dims["https://x/tiny.gif"] = entity.Dimensions{Width: 10, Height: 10}
	p.dims["https://x/huge.GIF?frame=1"] = entity.Dimensions{Width: 9000, Height: 9000}
	v := NewValidator(p, nil, nil)

	assert.NotNil(t, v.Validate(context.Background(), "https://x/tiny.gif", window, time.Second))
	assert.NotNil(t, v.Validate(context.Background(), "https://x/huge.GIF?frame=1", window, time.Second))
}

func TestValidateFailureReturnsNil(t *testing.T) {
	v := NewValidator(newFakeProber(t), nil, nil)
	assert.Nil(t, v.Validate(context.Background(), "https://x/missing.jpg", window, time.Second))
}

func TestValidateTimeoutBound(t *testing.T) {
	p := newFakeProber(t)
	p.hang["https://x/hang.jpg"] = true
	v := NewValidator(p, nil, nil)

	start := time.Now()
	item := v.Validate(context.Background(), "https://x/hang.jpg", window, 100*time.Millisecond)
	elapsed := time.Since(start)

	assert.Nil(t, item)
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	assert.Less(t, elapsed, 400*time.Millisecond)
}

func TestValidateRecordsOutcomes(t *testing.T) {
	p := newFakeProber(t)
	p.dims["https://x/ok.png"] = entity.Dimensions{Width: 600, Height: 600}
	p.dims["https://x/small.png"] = entity.Dimensions{Width: 1, Height: 1}
	p.hang["https://x/hang.png"] = true
	m := metrics.New(prometheus.NewRegistry())
	v := NewValidator(p, m, nil)

	v.Validate(context.Background(), "https://x/ok.png", window, time.Second)
	v.Validate(context.Background(), "https://x/small.png", window, time.Second)
	v.Validate(context.Background(), "https://x/missing.png", window, time.Second)
	v.Validate(context.Background(), "https://x/hang.png", window, 20*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProbesTotal.WithLabelValues(metrics.OutcomeAccepted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProbesTotal.WithLabelValues(metrics.OutcomeRejectedSize)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProbesTotal.WithLabelValues(metrics.OutcomeFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProbesTotal.WithLabelValues(metrics.OutcomeTimeout)))
}

func TestIsAnimated(t *testing.T) {
	assert.True(t, IsAnimated("c.gif"))
	assert.True(t, IsAnimated("https://x/a.GIF#frag"))
	assert.False(t, IsAnimated("https://x/a.gifv"))
	assert.False(t, IsAnimated("https://x/gif/a.png"))
}

func TestCollectPartialScenario(t *testing.T) {
	p := newFakeProber(t)
	p.dims["a.jpg"] = entity.Dimensions{Width: 50, Height: 50}
	p.dims["b.png"] = entity.Dimensions{Width: 600, Height: 600}
	p.dims["c.gif"] = entity.Dimensions{Width: 10, Height: 10}
	c := NewCollector(NewValidator(p, nil, nil), 0)

	items := c.CollectPartial(context.Background(), []string{"a.jpg", "b.png", "c.gif"}, window, DefaultTimeout)

	assert.Equal(t, []entity.ImageItem{
		{URL: "b.png", Width: 600, Height: 600},
		{URL: "c.gif", Width: 10, Height: 10},
	}, items)
}

func TestCollectPartialKeepsCandidateOrder(t *testing.T) {
	p := newFakeProber(t)
	candidates := []string{"https://x/1.png", "https://x/2.png", "https://x/3.png", "https://x/4.png"}
	for i, u := range candidates {
		p.dims[u] = entity.Dimensions{Width: 200, Height: 200}
		// Earlier candidates finish later.
		p.delays[u] = time.Duration(len(candidates)-i) * 20 * time.Millisecond
	}
	c := NewCollector(NewValidator(p, nil, nil), 0)

	items := c.CollectPartial(context.Background(), candidates, window, time.Second)

	require.Len(t, items, 4)
	for i, item := range items {
		assert.Equal(t, candidates[i], item.URL)
	}
}

func TestCollectPartialWithHangingCandidate(t *testing.T) {
	p := newFakeProber(t)
	p.dims["https://x/fast1.png"] = entity.Dimensions{Width: 300, Height: 300}
	p.dims["https://x/fast2.png"] = entity.Dimensions{Width: 400, Height: 400}
	p.hang["https://x/hang.png"] = true
	c := NewCollector(NewValidator(p, nil, nil), 0)

	const timeout = 200 * time.Millisecond
	start := time.Now()
	items := c.CollectPartial(context.Background(),
		[]string{"https://x/broken.png", "https://x/fast1.png", "https://x/hang.png", "https://x/fast2.png"},
		window, timeout)
	elapsed := time.Since(start)

	assert.Equal(t, []entity.ImageItem{
		{URL: "https://x/fast1.png", Width: 300, Height: 300},
		{URL: "https://x/fast2.png", Width: 400, Height: 400},
	}, items)
	assert.GreaterOrEqual(t, elapsed, timeout)
	assert.Less(t, elapsed, timeout+300*time.Millisecond)
}

func TestCollectPartialRunsConcurrently(t *testing.T) {
	p := newFakeProber(t)
	var candidates []string
	for _, u := range []string{"https://x/a.png", "https://x/b.png", "https://x/c.png", "https://x/d.png", "https://x/e.png"} {
		p.dims[u] = entity.Dimensions{Width: 200, Height: 200}
		p.delays[u] = 100 * time.Millisecond
		candidates = append(candidates, u)
	}
	c := NewCollector(NewValidator(p, nil, nil), 0)

	start := time.Now()
	items := c.CollectPartial(context.Background(), candidates, window, time.Second)

	assert.Len(t, items, 5)
	assert.Less(t, time.Since(start), 400*time.Millisecond)
	assert.Equal(t, 5, p.calls)
}

func TestCollectPartialWithConcurrencyLimit(t *testing.T) {
	p := newFakeProber(t)
	var candidates []string
	for _, u := range []string{"https://x/a.png", "https://x/b.png", "https://x/c.png", "https://x/d.png"} {
		p.dims[u] = entity.Dimensions{Width: 200, Height: 200}
		p.delays[u] = 50 * time.Millisecond
		candidates = append(candidates, u)
	}
	c := NewCollector(NewValidator(p, nil, nil), 2)

	start := time.Now()
	items := c.CollectPartial(context.Background(), candidates, window, time.Second)

	assert.Len(t, items, 4)
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

func TestCollectPartialEmpty(t *testing.T) {
	c := NewCollector(NewValidator(newFakeProber(t), nil, nil), 0)
	items := c.CollectPartial(context.Background(), nil, window, time.Second)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}
