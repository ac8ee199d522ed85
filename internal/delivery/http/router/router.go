package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/user/gallery-service/internal/delivery/http/handler"
	"github.com/user/gallery-service/internal/delivery/http/middleware"
	"github.com/user/gallery-service/pkg/metrics"
)

// requestTimeout bounds every API call except downloads. Opening a gallery
// includes the page load, auto-scroll and probing.
const requestTimeout = 3 * time.Minute

func New(h *handler.Handler, m *metrics.Metrics, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logging(logger))
	r.Use(chimw.Recoverer)
	r.Use(middleware.Metrics(m))

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.HandleHealthCheck)

		// Archives stream for as long as the images take.
		r.Get("/galleries/{id}/download", h.HandleDownload)

		r.Group(func(r chi.Router) {
			r.Use(chimw.Timeout(requestTimeout))

			r.Post("/galleries", h.HandleOpenGallery)
			r.Get("/galleries/{id}", h.HandleGetGallery)
			r.Post("/galleries/{id}/reload", h.HandleReloadGallery)
			r.Post("/galleries/{id}/selection", h.HandleSelection)
			r.Delete("/galleries/{id}", h.HandleCloseGallery)

			r.Get("/options/{profile}", h.HandleGetOptions)
			r.Put("/options/{profile}", h.HandlePutOptions)

			r.Get("/scans", h.HandleListScans)
		})
	})

	return r
}
