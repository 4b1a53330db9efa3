// internal/monitoring/metrics.go

// Package monitoring exposes Prometheus metrics for the fetch path and the
// extraction cascade. One MetricsManager implements both the fetch-side
// Metrics interface and the cascade Telemetry interface, so a single
// registration covers the whole pipeline.
package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/steltix/newsgrab/pkg/types"
)

// MetricsConfig configures the metrics surface.
type MetricsConfig struct {
	Namespace       string `yaml:"namespace" json:"namespace"`
	EnableGoMetrics bool   `yaml:"enable_go_metrics" json:"enable_go_metrics"`
}

// MetricsManager owns the Prometheus registry and all pipeline metrics.
type MetricsManager struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	backoffsTotal   *prometheus.CounterVec
	rotationsTotal  prometheus.Counter

	methodsInFlight *prometheus.GaugeVec
	methodAttempts  *prometheus.CounterVec
	extractions     *prometheus.CounterVec
	fieldsFilled    *prometheus.CounterVec

	responseSize    *prometheus.HistogramVec
	deadCacheHits   prometheus.Counter
	browserRebuilds prometheus.Counter
}

// NewMetricsManager creates a manager with its own registry. Tests and
// embedders never collide on the default global registry.
func NewMetricsManager(cfg MetricsConfig) *MetricsManager {
	ns := cfg.Namespace
	if ns == "" {
		ns = "newsgrab"
	}

	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	if cfg.EnableGoMetrics {
		registry.MustRegister(collectors.NewGoCollector())
		registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	return &MetricsManager{
		registry: registry,

		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "http_requests_total",
			Help:      "HTTP requests issued, by host and status code",
		}, []string{"host", "status"}),

		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency, by host",
			Buckets:   prometheus.DefBuckets,
		}, []string{"host"}),

		backoffsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "host_backoffs_total",
			Help:      "Backoff windows opened, by tier",
		}, []string{"tier"}),

		rotationsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "identity_rotations_total",
			Help:      "Identity rotations across all hosts",
		}),

		methodsInFlight: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "extraction_methods_in_flight",
			Help:      "Extraction strategies currently running, by method",
		}, []string{"method"}),

		methodAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "extraction_method_attempts_total",
			Help:      "Strategy invocations, by method and outcome",
		}, []string{"method", "outcome"}),

		extractions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "extractions_total",
			Help:      "Finished extractions, by primary method",
		}, []string{"primary_method"}),

		fieldsFilled: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "extraction_fields_total",
			Help:      "Field outcomes per finished extraction, by field and method",
		}, []string{"field", "method"}),

		responseSize: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "http_response_size_bytes",
			Help:      "Response body sizes observed by the cascade, by status class",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 8),
		}, []string{"status"}),

		deadCacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "dead_cache_hits_total",
			Help:      "Extractions short-circuited by the dead-URL cache",
		}),

		browserRebuilds: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "browser_session_rebuilds_total",
			Help:      "Headless browser sessions launched after a poison or cold start",
		}),
	}
}

// Handler serves the /metrics endpoint for this manager's registry.
func (m *MetricsManager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for extra collectors.
func (m *MetricsManager) Registry() *prometheus.Registry {
	return m.registry
}

// RecordRequest implements the fetch-side metrics hook.
func (m *MetricsManager) RecordRequest(host string, statusCode int, duration time.Duration) {
	m.requestsTotal.WithLabelValues(host, statusLabel(statusCode)).Inc()
	m.requestDuration.WithLabelValues(host).Observe(duration.Seconds())
}

// RecordBackoff implements the fetch-side metrics hook.
func (m *MetricsManager) RecordBackoff(host string, blockTier bool) {
	tier := "ordinary"
	if blockTier {
		tier = "block"
	}
	m.backoffsTotal.WithLabelValues(tier).Inc()
}

// RecordRotation implements the fetch-side metrics hook.
func (m *MetricsManager) RecordRotation(host string) {
	m.rotationsTotal.Inc()
}

// StartMethod implements the cascade telemetry hook.
func (m *MetricsManager) StartMethod(url, method string) {
	m.methodsInFlight.WithLabelValues(method).Inc()
}

// EndMethod implements the cascade telemetry hook.
func (m *MetricsManager) EndMethod(url, method string, err error) {
	m.methodsInFlight.WithLabelValues(method).Dec()
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.methodAttempts.WithLabelValues(method, outcome).Inc()
}

// SetHTTPMetrics implements the cascade telemetry hook for transport
// details of a strategy's network attempt.
func (m *MetricsManager) SetHTTPMetrics(url string, statusCode int, responseSize int64, duration time.Duration) {
	m.responseSize.WithLabelValues(statusLabel(statusCode)).Observe(float64(responseSize))
}

// Finalize implements the cascade telemetry hook.
func (m *MetricsManager) Finalize(result *types.ArticleResult) {
	m.extractions.WithLabelValues(result.Metadata.ExtractionMethod).Inc()
	for field, method := range result.Metadata.ExtractionMethods {
		m.fieldsFilled.WithLabelValues(field, method).Inc()
	}
}

// DeadCacheHit implements the cascade telemetry hook for extractions
// refused via the negative cache.
func (m *MetricsManager) DeadCacheHit(url string) {
	m.deadCacheHits.Inc()
}

// RecordBrowserRebuild counts a fresh headless session launch.
func (m *MetricsManager) RecordBrowserRebuild() {
	m.browserRebuilds.Inc()
}

func statusLabel(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "other"
	}
}
