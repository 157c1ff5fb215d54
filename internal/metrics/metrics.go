// Package metrics exposes Prometheus collectors for the harvester service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	searchAttemptsTotal        *prometheus.CounterVec
	extractionMethodsTotal     *prometheus.CounterVec
	jobsTotal                  *prometheus.CounterVec
	queueDepth                 prometheus.Gauge
	proxiesEnabled             prometheus.Gauge
	proxiesHealthy             prometheus.Gauge
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		searchAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_search_attempts_total",
				Help: "Total search attempts, labeled by engine and outcome.",
			},
			[]string{"engine", "outcome"},
		)

		extractionMethodsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_extraction_methods_total",
				Help: "Successful result extractions, labeled by method.",
			},
			[]string{"method"},
		)

		jobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_jobs_total",
				Help: "Total jobs processed, labeled by status.",
			},
			[]string{"status"},
		)

		queueDepth = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "harvester_queue_depth",
				Help: "Jobs currently waiting in the crawl queue.",
			},
		)

		proxiesEnabled = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "harvester_proxies_enabled",
				Help: "Proxies currently in rotation.",
			},
		)

		proxiesHealthy = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "harvester_proxies_healthy",
				Help: "Proxies currently marked healthy.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveSearch increments the attempt counter for the given engine and
// outcome ("ok" or a failure reason).
func ObserveSearch(engine, outcome string) {
	Init()
	searchAttemptsTotal.WithLabelValues(engine, outcome).Inc()
}

// ObserveExtractionMethod records which extraction strategy produced results.
func ObserveExtractionMethod(method string) {
	Init()
	extractionMethodsTotal.WithLabelValues(method).Inc()
}

// ObserveJob increments the job counter for the given status.
func ObserveJob(status string) {
	Init()
	jobsTotal.WithLabelValues(status).Inc()
}

// SetQueueDepth updates the queue depth gauge.
func SetQueueDepth(depth int) {
	Init()
	queueDepth.Set(float64(depth))
}

// SetProxyCounts updates the proxy rotation gauges.
func SetProxyCounts(enabled, healthy int) {
	Init()
	proxiesEnabled.Set(float64(enabled))
	proxiesHealthy.Set(float64(healthy))
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
