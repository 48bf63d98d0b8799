package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "closeapproach_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "closeapproach_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	providerFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "closeapproach_provider_fetches_total",
			Help: "Provider fetches by outcome (ok, provider_error, provider_error_no_detail, transport_error).",
		},
		[]string{"outcome"},
	)

	providerFetchSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "closeapproach_provider_fetch_duration_seconds",
			Help:    "Provider fetch duration in seconds.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
	)

	searchRows = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "closeapproach_search_rows",
			Help:    "Rows returned per search.",
			Buckets: []float64{0, 1, 10, 50, 100, 250, 500, 1000, 2000},
		},
	)

	payloadCacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "closeapproach_payload_cache_lookups_total",
			Help: "Payload cache lookups by result (hit, miss).",
		},
		[]string{"result"},
	)

	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "closeapproach_sessions_active",
			Help: "Number of live dashboard sessions.",
		},
	)

	searchesRejected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "closeapproach_searches_rejected_total",
			Help: "Searches rejected by the per-IP concurrency limit.",
		},
	)

	exportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "closeapproach_exports_total",
			Help: "CSV exports by target and outcome.",
		},
		[]string{"target", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpDurationSeconds)
	prometheus.MustRegister(providerFetchesTotal)
	prometheus.MustRegister(providerFetchSeconds)
	prometheus.MustRegister(searchRows)
	prometheus.MustRegister(payloadCacheLookups)
	prometheus.MustRegister(sessionsActive)
	prometheus.MustRegister(searchesRejected)
	prometheus.MustRegister(exportsTotal)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetch records one provider fetch.
func ObserveFetch(outcome string, d time.Duration) {
	providerFetchesTotal.WithLabelValues(outcome).Inc()
	providerFetchSeconds.Observe(d.Seconds())
}

// ObserveRows records the size of a search result.
func ObserveRows(n int) {
	searchRows.Observe(float64(n))
}

// IncCacheHit records a payload cache hit.
func IncCacheHit() {
	payloadCacheLookups.WithLabelValues("hit").Inc()
}

// IncCacheMiss records a payload cache miss.
func IncCacheMiss() {
	payloadCacheLookups.WithLabelValues("miss").Inc()
}

// SetSessionsActive sets the live session gauge.
func SetSessionsActive(n int) {
	sessionsActive.Set(float64(n))
}

// IncSearchesRejected records a search refused by the concurrency limit.
func IncSearchesRejected() {
	searchesRejected.Inc()
}

// IncExport records a CSV export attempt.
func IncExport(target, outcome string) {
	exportsTotal.WithLabelValues(target, outcome).Inc()
}

// knownRoutes are labelled as-is; anything else collapses to "other" to keep
// label cardinality bounded.
var knownRoutes = map[string]bool{
	"/":                      true,
	"/healthz":               true,
	"/readyz":                true,
	"/metrics":               true,
	"/index.html":            true,
	"/app.js":                true,
	"/styles.css":            true,
	"/api/v1/options":        true,
	"/api/v1/approaches":     true,
	"/api/v1/approaches.csv": true,
	"/api/v1/chart":          true,
	"/api/v1/export/s3":      true,
}

func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	return "other"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		route := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(route, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(duration)
	})
}
