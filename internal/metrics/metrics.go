// Package metrics exposes Prometheus collectors for the registry crawler.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	documentsTotal             *prometheus.CounterVec
	fetchDurationSeconds       *prometheus.HistogramVec
	fetchRetriesTotal          *prometheus.CounterVec
	extractionMissesTotal      *prometheus.CounterVec
	authorCountriesTotal       prometheus.Counter
	pauseSecondsTotal          prometheus.Counter
	runsTotal                  *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		documentsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rupat_documents_total",
				Help: "Documents processed, labeled by outcome (ok, skipped, failed).",
			},
			[]string{"outcome"},
		)

		fetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rupat_fetch_duration_seconds",
				Help:    "Histogram of document fetch latencies, labeled by site.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"site"},
		)

		fetchRetriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rupat_fetch_retries_total",
				Help: "Fetch retries issued after a transient failure, labeled by site.",
			},
			[]string{"site"},
		)

		extractionMissesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rupat_extraction_misses_total",
				Help: "Fields that fell back to their absence value, labeled by field.",
			},
			[]string{"field"},
		)

		authorCountriesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "rupat_author_countries_total",
				Help: "Author country codes extracted across all documents.",
			},
		)

		pauseSecondsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "rupat_pause_seconds_total",
				Help: "Seconds spent in courtesy pauses and retry backoff.",
			},
		)

		runsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rupat_runs_total",
				Help: "Crawl runs finished, labeled by status.",
			},
			[]string{"status"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of status server requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of status server latencies, labeled by method and route.",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveDocument counts a processed document.
func ObserveDocument(outcome string) {
	documentsTotal.WithLabelValues(outcome).Inc()
}

// ObserveFetch records the latency of one fetch attempt.
func ObserveFetch(rawURL string, duration time.Duration) {
	fetchDurationSeconds.WithLabelValues(SanitizeSite(rawURL)).Observe(duration.Seconds())
}

// ObserveRetry counts a retried fetch.
func ObserveRetry(rawURL string) {
	fetchRetriesTotal.WithLabelValues(SanitizeSite(rawURL)).Inc()
}

// ObserveExtraction records degraded fields and the number of author
// countries found on one page.
func ObserveExtraction(misses []string, countries int) {
	for _, field := range misses {
		extractionMissesTotal.WithLabelValues(field).Inc()
	}
	if countries > 0 {
		authorCountriesTotal.Add(float64(countries))
	}
}

// ObservePause adds time spent waiting before a request.
func ObservePause(duration time.Duration) {
	if duration > 0 {
		pauseSecondsTotal.Add(duration.Seconds())
	}
}

// ObserveRun counts a finished run.
func ObserveRun(status string) {
	runsTotal.WithLabelValues(status).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
