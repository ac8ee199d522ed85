package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/user/gallery-service/internal/adapter/archive"
	"github.com/user/gallery-service/internal/adapter/chromedp_browser"
	"github.com/user/gallery-service/internal/adapter/httppage"
	"github.com/user/gallery-service/internal/adapter/imageprobe"
	"github.com/user/gallery-service/internal/entity"
	"github.com/user/gallery-service/internal/extract"
	"github.com/user/gallery-service/internal/probe"
	"github.com/user/gallery-service/internal/repository"
	"github.com/user/gallery-service/internal/usecase"
	"github.com/user/gallery-service/pkg/logger"
	"github.com/user/gallery-service/pkg/proxy"
)

type scanOptions struct {
	minSize        int
	maxSize        int
	autoScroll     time.Duration
	renderer       string
	pageTimeout    time.Duration
	probeTimeout   time.Duration
	maxConcurrency int
	proxies        []string
	zipPath        string
	logLevel       string
}

func newScanCmd() *cobra.Command {
	opts := scanOptions{}
	defaults := entity.DefaultOptions()

	cmd := &cobra.Command{
		Use:   "scan <url>",
		Short: "Discover the images on a page that fit a size window",
		Long: `Scan opens a page, optionally scrolls it to trigger lazy loading,
extracts every candidate image URL and keeps the ones whose natural size
falls inside [--min, --max]. Animated GIFs are kept regardless of size.

The accepted images are printed as JSON. With --zip they are also
downloaded into an archive.`,
		Example: `  # Scan a page with the default window
  scan https://example.com/gallery

  # Scroll for 10 seconds first and save the results
  scan https://example.com/feed --auto-scroll 10s --zip images.zip`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().IntVar(&opts.minSize, "min", defaults.MinSize, "Minimum width and height in pixels")
	cmd.Flags().IntVar(&opts.maxSize, "max", defaults.MaxSize, "Maximum width and height in pixels")
	cmd.Flags().DurationVar(&opts.autoScroll, "auto-scroll", 0, "Scroll the page for this long before extracting (0 disables)")
	cmd.Flags().StringVar(&opts.renderer, "renderer", "chromedp", "Page renderer: chromedp or http")
	cmd.Flags().DurationVar(&opts.pageTimeout, "timeout", 30*time.Second, "Page load timeout")
	cmd.Flags().DurationVar(&opts.probeTimeout, "probe-timeout", probe.DefaultTimeout, "Per-image probe timeout")
	cmd.Flags().IntVar(&opts.maxConcurrency, "concurrency", 0, "Maximum concurrent probes (0 means unbounded)")
	cmd.Flags().StringSliceVar(&opts.proxies, "proxy", nil, "Proxy URL, repeatable")
	cmd.Flags().StringVar(&opts.zipPath, "zip", "", "Write the accepted images to this zip file")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "warn", "Log level")

	return cmd
}

func runScan(ctx context.Context, pageURL string, opts scanOptions) error {
	log, err := logger.New(opts.logLevel)
	if err != nil {
		return err
	}
	defer log.Sync()

	window := entity.SizeWindow{MinSize: opts.minSize, MaxSize: opts.maxSize}
	if err := window.Validate(); err != nil {
		return err
	}

	proxyManager := proxy.NewManager(opts.proxies)

	var loader repository.PageLoader
	switch opts.renderer {
	case "http":
		loader = httppage.NewPageLoader(proxyManager, log)
	case "chromedp":
		browser := chromedp_browser.NewPageLoader(opts.pageTimeout, proxyManager, log)
		defer browser.Close()
		loader = browser
	default:
		return fmt.Errorf("unknown renderer %q", opts.renderer)
	}

	loadCtx, cancel := context.WithTimeout(ctx, opts.pageTimeout)
	page, err := loader.Open(loadCtx, pageURL)
	cancel()
	if err != nil {
		return fmt.Errorf("open %s: %w", pageURL, err)
	}

	validator := probe.NewValidator(imageprobe.NewHTTPProber(proxyManager), nil, log)
	session := usecase.NewGallerySession(
		uuid.NewString(),
		page,
		extract.DefaultRegistry(log),
		probe.NewCollector(validator, opts.maxConcurrency),
		usecase.SessionConfig{ProbeTimeout: opts.probeTimeout},
		nil,
		log,
	)
	defer session.Close()

	items, err := session.RunDiscovery(ctx, entity.ScanConfig{Window: window, AutoScroll: opts.autoScroll}, func(pct float64) {
		fmt.Fprintf(os.Stderr, "\rscrolling %3.0f%%", pct)
		if pct >= 100 {
			fmt.Fprintln(os.Stderr)
		}
	})
	if err != nil {
		return err
	}

	if opts.zipPath != "" {
		if err := writeZip(ctx, opts.zipPath, items, proxyManager, log); err != nil {
			return err
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(session.Status())
}

func writeZip(ctx context.Context, path string, items []entity.ImageItem, proxyManager *proxy.Manager, log *zap.Logger) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	n, err := archive.NewZipArchiver(proxyManager, log).WriteArchive(ctx, f, items)
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Fprintf(os.Stderr, "archived %d of %d images into %s\n", n, len(items), path)
	return f.Close()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newScanCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
