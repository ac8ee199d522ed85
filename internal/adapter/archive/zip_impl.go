package archive

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/user/gallery-service/internal/entity"
	"github.com/user/gallery-service/internal/repository"
	"github.com/user/gallery-service/pkg/proxy"
	"github.com/user/gallery-service/pkg/utils"
)

const (
	folder        = "images/"
	fallbackName  = "image"
	defaultSuffix = ".jpg"
	fetchTimeout  = 30 * time.Second
	maxImageBytes = 64 << 20
)

var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".svg": true,
	".tiff": true, ".raw": true, ".exif": true, ".bmp": true, ".webp": true,
}

// ZipArchiver downloads images and packs them into a zip stream.
type ZipArchiver struct {
	client *http.Client
	proxy  *proxy.Manager
	logger *zap.Logger
}

func NewZipArchiver(proxyManager *proxy.Manager, logger *zap.Logger) *ZipArchiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = proxyManager.ProxyFunc()

	return &ZipArchiver{
		client: &http.Client{Transport: transport},
		proxy:  proxyManager,
		logger: logger,
	}
}

var _ repository.ImageArchiver = (*ZipArchiver)(nil)

// WriteArchive implements repository.ImageArchiver. Images are fetched one
// after another so entries stream straight into w.
func (a *ZipArchiver) WriteArchive(ctx context.Context, w io.Writer, items []entity.ImageItem) (int, error) {
	zw := zip.NewWriter(w)
	used := make(map[string]bool, len(items))
	written := 0

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			_ = zw.Close()
			return written, err
		}

		name := entryName(item.URL, used)
		created, err := a.addImage(ctx, zw, name, item.URL)
		if created {
			used[name] = true
		}
		if err != nil {
			if created {
				a.logger.Warn("Archive entry is partial", zap.String("url", item.URL), zap.String("entry", name), zap.Error(err))
			} else {
				a.logger.Warn("Skipping image in archive", zap.String("url", item.URL), zap.Error(err))
			}
			continue
		}
		written++
	}

	if err := zw.Close(); err != nil {
		return written, fmt.Errorf("finalize archive: %w", err)
	}
	return written, nil
}

// addImage fetches imageURL into a new entry. created reports whether the
// entry was started, in which case a failure leaves it truncated.
func (a *ZipArchiver) addImage(ctx context.Context, zw *zip.Writer, name, imageURL string) (created bool, err error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return false, err
	}
	if ua := a.proxy.GetUserAgent(); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	// Images are already compressed.
	entry, err := zw.CreateHeader(&zip.FileHeader{
		Name:     folder + name,
		Method:   zip.Store,
		Modified: time.Now(),
	})
	if err != nil {
		return false, err
	}
	_, err = io.Copy(entry, io.LimitReader(resp.Body, maxImageBytes))
	return true, err
}

// entryName derives a file name from the URL path. Names without an image
// extension get .jpg; names already taken get a URL hash prefix.
func entryName(rawURL string, used map[string]bool) string {
	base := fallbackName
	if u, err := url.Parse(rawURL); err == nil {
		if b := path.Base(u.Path); b != "." && b != "/" && b != "" {
			base = b
		}
	}
	base = strings.NewReplacer("\\", "_", ":", "_").Replace(base)
	if !imageExts[strings.ToLower(path.Ext(base))] {
		base += defaultSuffix
	}

	if !used[base] {
		return base
	}
	return utils.HashURL(rawURL)[:8] + "_" + base
}
