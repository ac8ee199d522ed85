package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/user/gallery-service/internal/adapter/archive"
	"github.com/user/gallery-service/internal/adapter/chromedp_browser"
	"github.com/user/gallery-service/internal/adapter/httppage"
	"github.com/user/gallery-service/internal/adapter/imageprobe"
	"github.com/user/gallery-service/internal/adapter/postgres"
	redis_adapter "github.com/user/gallery-service/internal/adapter/redis"
	"github.com/user/gallery-service/internal/delivery/http/handler"
	"github.com/user/gallery-service/internal/delivery/http/router"
	"github.com/user/gallery-service/internal/extract"
	"github.com/user/gallery-service/internal/probe"
	"github.com/user/gallery-service/internal/repository"
	"github.com/user/gallery-service/internal/usecase"
	"github.com/user/gallery-service/pkg/config"
	"github.com/user/gallery-service/pkg/logger"
	"github.com/user/gallery-service/pkg/metrics"
	"github.com/user/gallery-service/pkg/proxy"
)

const janitorInterval = time.Minute

func main() {
	// --- Configuration ---
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	// --- Logger ---
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("Logger initialized", zap.String("level", cfg.LogLevel))

	// --- Metrics ---
	m := metrics.New(prometheus.DefaultRegisterer)

	ctx := context.Background()

	// --- PostgreSQL (scan history, optional) ---
	var scanRuns repository.ScanRunRepository
	if cfg.PostgresURL != "" {
		dbpool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			log.Fatal("Unable to create database pool", zap.Error(err))
		}
		defer dbpool.Close()

		repo := postgres.NewScanRunRepo(dbpool)
		if err := repo.EnsureSchema(ctx); err != nil {
			log.Warn("Scan history disabled, schema setup failed", zap.Error(err))
		} else {
			scanRuns = repo
			log.Info("PostgreSQL connection pool established")
		}
	} else {
		log.Info("POSTGRES_URL not set, scan history disabled")
	}

	// --- Redis (saved options, optional) ---
	var optionsRepo repository.OptionsRepository
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Warn("Redis unavailable, options fall back to defaults", zap.String("addr", cfg.RedisAddr), zap.Error(err))
	} else {
		optionsRepo = redis_adapter.NewOptionsRepo(rdb)
		log.Info("Redis connection established")
	}

	// --- Page access ---
	proxyManager := proxy.NewManager(cfg.ProxyList())

	var loader repository.PageLoader
	switch cfg.Renderer {
	case "http":
		loader = httppage.NewPageLoader(proxyManager, log)
	default:
		browser := chromedp_browser.NewPageLoader(cfg.PageLoadTimeoutDuration(), proxyManager, log)
		defer browser.Close()
		loader = browser
	}
	log.Info("Page loader ready", zap.String("renderer", cfg.Renderer), zap.Bool("proxied", proxyManager.HasProxies()))

	// --- Discovery pipeline ---
	validator := probe.NewValidator(imageprobe.NewHTTPProber(proxyManager), m, log)
	collector := probe.NewCollector(validator, cfg.MaxProbeConcurrency)
	archiver := archive.NewZipArchiver(proxyManager, log)

	galleries := usecase.NewGalleryManager(
		loader,
		extract.DefaultRegistry(log),
		collector,
		archiver,
		scanRuns,
		usecase.SessionConfig{
			ProbeTimeout: cfg.ProbeTimeout(),
			ScrollStep:   cfg.ScrollStepPixels,
			ScrollDelay:  cfg.ScrollStepDelay(),
		},
		cfg.SessionTTL(),
		m,
		log,
	)
	defer galleries.Shutdown()

	janitorCtx, stopJanitor := context.WithCancel(ctx)
	defer stopJanitor()
	go galleries.RunJanitor(janitorCtx, janitorInterval)

	// --- HTTP Server ---
	apiHandler := handler.NewHandler(galleries, optionsRepo, log)
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router.New(apiHandler, m, log),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 10 * time.Minute, // archive downloads stream through this
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Could not listen on port", zap.String("port", cfg.ServerPort), zap.Error(err))
		}
	}()
	log.Info("Server started", zap.String("port", cfg.ServerPort))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exiting")
}
