// Package metrics exposes Prometheus instrumentation for the cache
// facade and its HTTP surface.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics wraps the prometheus collectors for kvcache.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	cacheOpsTotal   *prometheus.CounterVec
	cacheOpDuration *prometheus.HistogramVec

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	uptime prometheus.GaugeFunc
}

// Operation latency buckets in milliseconds; cache round trips are
// expected to sit in the low single digits.
var defaultBuckets = []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000}

var promMetrics *PrometheusMetrics

// InitPrometheus initializes the metrics subsystem. Recording functions
// are no-ops until it is called.
func InitPrometheus(namespace string) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	startTime := time.Now()

	pm := &PrometheusMetrics{
		registry: registry,

		cacheOpsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_operations_total",
				Help:      "Total number of cache facade operations",
			},
			[]string{"operation", "outcome"},
		),

		cacheOpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "cache_operation_duration_ms",
				Help:      "Cache operation round-trip duration in milliseconds",
				Buckets:   defaultBuckets,
			},
			[]string{"operation"},
		),

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),

		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_ms",
				Help:      "HTTP request duration in milliseconds",
				Buckets:   defaultBuckets,
			},
			[]string{"method", "route"},
		),

		uptime: prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "uptime_seconds",
				Help:      "Process uptime in seconds",
			},
			func() float64 { return time.Since(startTime).Seconds() },
		),
	}

	registry.MustRegister(
		pm.cacheOpsTotal,
		pm.cacheOpDuration,
		pm.httpRequestsTotal,
		pm.httpRequestDuration,
		pm.uptime,
	)

	promMetrics = pm
}

// RecordCacheOp records one facade operation with its outcome and duration.
func RecordCacheOp(operation, outcome string, d time.Duration) {
	if promMetrics == nil {
		return
	}
	promMetrics.cacheOpsTotal.WithLabelValues(operation, outcome).Inc()
	promMetrics.cacheOpDuration.WithLabelValues(operation).Observe(float64(d.Milliseconds()))
}

// RecordHTTPRequest records one served HTTP request.
func RecordHTTPRequest(method, route string, status int, d time.Duration) {
	if promMetrics == nil {
		return
	}
	promMetrics.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	promMetrics.httpRequestDuration.WithLabelValues(method, route).Observe(float64(d.Milliseconds()))
}

// Handler returns the scrape endpoint handler, or a 503 handler when
// metrics are not initialized.
func Handler() http.Handler {
	if promMetrics == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "metrics not initialized", http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(promMetrics.registry, promhttp.HandlerOpts{})
}
