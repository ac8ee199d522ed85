package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Probe outcomes, used as the "outcome" label of image_probes_total.
const (
	OutcomeAccepted     = "accepted"
	OutcomeRejectedSize = "rejected_size"
	OutcomeTimeout      = "timeout"
	OutcomeFailed       = "failed"
)

// Metrics holds all Prometheus metrics for the application.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	ProbesTotal         *prometheus.CounterVec
	ScanDuration        *prometheus.HistogramVec
	ScanCandidates      prometheus.Histogram
	ActiveSessions      prometheus.Gauge
}

// New registers the metrics with reg. Pass prometheus.DefaultRegisterer in
// production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		ProbesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "image_probes_total",
				Help: "Total number of candidate image probes by outcome.",
			},
			[]string{"outcome"},
		),
		ScanDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scan_duration_seconds",
				Help:    "Duration of discovery runs.",
				Buckets: []float64{0.5, 1, 2, 3, 5, 10, 30, 60},
			},
			[]string{"strategy"},
		),
		ScanCandidates: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "scan_candidates",
				Help:    "Number of deduplicated candidate URLs per discovery run.",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12),
			},
		),
		ActiveSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "gallery_sessions_active",
				Help: "Current number of open gallery sessions.",
			},
		),
	}
}

func (m *Metrics) ObserveProbe(outcome string) {
	if m == nil {
		return
	}
	m.ProbesTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveScan(strategy string, seconds float64, candidates int) {
	if m == nil {
		return
	}
	m.ScanDuration.WithLabelValues(strategy).Observe(seconds)
	m.ScanCandidates.Observe(float64(candidates))
}

func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.ActiveSessions.Set(float64(n))
}
