package imageprobe

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/user/gallery-service/internal/entity"
	"github.com/user/gallery-service/internal/repository"
	"github.com/user/gallery-service/pkg/proxy"
)

// decodeLimit caps how much of the body is read to find the image header.
const decodeLimit = 512 * 1024

// HTTPProber measures images by fetching them and decoding only the header.
type HTTPProber struct {
	client *http.Client
	proxy  *proxy.Manager
}

// NewHTTPProber creates a prober. proxyManager may be nil. The client has
// no timeout of its own; the caller's context bounds each probe.
func NewHTTPProber(proxyManager *proxy.Manager) *HTTPProber {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = proxyManager.ProxyFunc()
	transport.MaxIdleConnsPerHost = 16
	transport.ResponseHeaderTimeout = 30 * time.Second

	return &HTTPProber{
		client: &http.Client{Transport: transport},
		proxy:  proxyManager,
	}
}

var _ repository.ImageProber = (*HTTPProber)(nil)

// Probe implements repository.ImageProber.
func (p *HTTPProber) Probe(ctx context.Context, url string) (entity.Dimensions, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return entity.Dimensions{}, err
	}
	if ua := p.proxy.GetUserAgent(); ua != "" {
		req.Header.Set("User-Agent", ua)
	}
	req.Header.Set("Accept", "image/avif,image/webp,image/png,image/*;q=0.8,*/*;q=0.5")

	resp, err := p.client.Do(req)
	if err != nil {
		return entity.Dimensions{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return entity.Dimensions{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	cfg, _, err := image.DecodeConfig(io.LimitReader(resp.Body, decodeLimit))
	if err != nil {
		return entity.Dimensions{}, fmt.Errorf("%w: %v", repository.ErrNotImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return entity.Dimensions{}, fmt.Errorf("%w: zero dimensions", repository.ErrNotImage)
	}

	return entity.Dimensions{Width: cfg.Width, Height: cfg.Height}, nil
}
