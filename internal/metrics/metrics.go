// Package metrics exposes per-scan Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"webvulnscan/internal/models"
)

// Metrics holds the collectors of one scan. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	requests     *prometheus.CounterVec
	findings     *prometheus.CounterVec
	rateLimited  prometheus.Counter
	fetchSeconds prometheus.Histogram
	skipped      prometheus.Counter
}

// New creates the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webvulnscan_requests_total",
				Help: "Fetches performed, by outcome",
			},
			[]string{"outcome"},
		),
		findings: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webvulnscan_findings_total",
				Help: "Findings accepted into the result, by severity",
			},
			[]string{"severity"},
		),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "webvulnscan_rate_limited_total",
			Help: "Fetches denied by the rate limiter",
		}),
		fetchSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "webvulnscan_fetch_duration_seconds",
			Help:    "Fetch latency in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "webvulnscan_similar_pages_skipped_total",
			Help: "Pages not checked because an identical or similar page was",
		}),
	}
	m.registry.MustRegister(m.requests, m.findings, m.rateLimited, m.fetchSeconds, m.skipped)
	return m
}

// Outcome is the label value recorded for fr.
func Outcome(fr *models.FetchResult) string {
	if fr.Kind == models.ErrNone {
		return "ok"
	}
	return string(fr.Kind)
}

// ObserveFetch records one fetch result.
func (m *Metrics) ObserveFetch(fr *models.FetchResult) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(Outcome(fr)).Inc()
	if fr.Kind == models.ErrRateLimited {
		m.rateLimited.Inc()
		return
	}
	m.fetchSeconds.Observe(fr.Elapsed.Seconds())
}

// ObserveFinding records one accepted finding.
func (m *Metrics) ObserveFinding(f models.Finding) {
	if m == nil {
		return
	}
	m.findings.WithLabelValues(string(f.Severity)).Inc()
}

// ObserveSkippedPage records a page skipped as a near duplicate.
func (m *Metrics) ObserveSkippedPage() {
	if m == nil {
		return
	}
	m.skipped.Inc()
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
