package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Histogram bucket definitions.
var (
	httpDurationBuckets     = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	upstreamDurationBuckets = []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}
	bodySizeBuckets         = []float64{100, 1024, 10240, 102400, 1048576}
)

// Metrics holds all Prometheus metric instruments for the BFF.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPRequestSizeBytes  *prometheus.HistogramVec
	HTTPResponseSizeBytes *prometheus.HistogramVec

	// Upstream catalogue metrics
	UpstreamRequestsTotal       *prometheus.CounterVec
	UpstreamRequestDuration     *prometheus.HistogramVec
	UpstreamCircuitBreakerState prometheus.Gauge
	UpstreamRetriesTotal        *prometheus.CounterVec
	UpstreamValidationFailures  *prometheus.CounterVec

	// Cache metrics
	CacheHitsTotal      *prometheus.CounterVec
	CacheMissesTotal    *prometheus.CounterVec
	CacheStaleTotal     *prometheus.CounterVec
	CacheRefreshesTotal *prometheus.CounterVec
	CacheEvictionsTotal prometheus.Counter

	// Mutation metrics
	MutationsTotal         *prometheus.CounterVec
	IdempotentReplaysTotal prometheus.Counter
	InvalidationsTotal     *prometheus.CounterVec

	// System metrics
	OpenAPIEndpointsIndexed prometheus.Gauge
}

// InitMetrics creates and registers all Prometheus metric instruments.
func InitMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		// HTTP
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "exoview_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path_pattern", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "exoview_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: httpDurationBuckets,
		}, []string{"method", "path_pattern"}),
		HTTPRequestSizeBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "exoview_http_request_size_bytes",
			Help:    "HTTP request body size in bytes.",
			Buckets: bodySizeBuckets,
		}, []string{"method", "path_pattern"}),
		HTTPResponseSizeBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "exoview_http_response_size_bytes",
			Help:    "HTTP response body size in bytes.",
			Buckets: bodySizeBuckets,
		}, []string{"method", "path_pattern"}),

		// Upstream
		UpstreamRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "exoview_upstream_requests_total",
			Help: "Total number of catalogue API requests.",
		}, []string{"operation", "status"}),
		UpstreamRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "exoview_upstream_request_duration_seconds",
			Help:    "Catalogue API request duration in seconds.",
			Buckets: upstreamDurationBuckets,
		}, []string{"operation"}),
		UpstreamCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "exoview_upstream_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
		}),
		UpstreamRetriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "exoview_upstream_retries_total",
			Help: "Total number of catalogue API request retries.",
		}, []string{"operation"}),
		UpstreamValidationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "exoview_upstream_validation_failures_total",
			Help: "Total number of catalogue responses that failed shape validation.",
		}, []string{"resource"}),

		// Cache
		CacheHitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "exoview_cache_hits_total",
			Help: "Total fresh cache hits.",
		}, []string{"family"}),
		CacheMissesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "exoview_cache_misses_total",
			Help: "Total cache misses.",
		}, []string{"family"}),
		CacheStaleTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "exoview_cache_stale_served_total",
			Help: "Total stale values served while revalidating.",
		}, []string{"family"}),
		CacheRefreshesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "exoview_cache_refreshes_total",
			Help: "Total cache refreshes.",
		}, []string{"family", "status"}),
		CacheEvictionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "exoview_cache_evictions_total",
			Help: "Total cache entries evicted.",
		}),

		// Mutations
		MutationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "exoview_mutations_total",
			Help: "Total catalogue mutations.",
		}, []string{"operation", "status"}),
		IdempotentReplaysTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "exoview_idempotent_replays_total",
			Help: "Total create requests answered from the idempotency store.",
		}),
		InvalidationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "exoview_cache_invalidations_total",
			Help: "Total cache family invalidations.",
		}, []string{"family"}),

		// System
		OpenAPIEndpointsIndexed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "exoview_openapi_endpoints_indexed",
			Help: "Number of indexed catalogue API endpoints.",
		}),
	}

	reg.MustRegister(
		// HTTP
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestSizeBytes,
		m.HTTPResponseSizeBytes,
		// Upstream
		m.UpstreamRequestsTotal,
		m.UpstreamRequestDuration,
		m.UpstreamCircuitBreakerState,
		m.UpstreamRetriesTotal,
		m.UpstreamValidationFailures,
		// Cache
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CacheStaleTotal,
		m.CacheRefreshesTotal,
		m.CacheEvictionsTotal,
		// Mutations
		m.MutationsTotal,
		m.IdempotentReplaysTotal,
		m.InvalidationsTotal,
		// System
		m.OpenAPIEndpointsIndexed,
	)

	return m
}

// --- Recording helpers ---

// RecordHTTPRequest records HTTP request metrics.
func (m *Metrics) RecordHTTPRequest(method, pathPattern string, status int, duration time.Duration, reqSize, respSize int) {
	statusStr := strconv.Itoa(status)
	m.HTTPRequestsTotal.WithLabelValues(method, pathPattern, statusStr).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, pathPattern).Observe(duration.Seconds())
	m.HTTPRequestSizeBytes.WithLabelValues(method, pathPattern).Observe(float64(reqSize))
	m.HTTPResponseSizeBytes.WithLabelValues(method, pathPattern).Observe(float64(respSize))
}

// RecordUpstreamRequest records a catalogue API request.
func (m *Metrics) RecordUpstreamRequest(operation string, status int, duration time.Duration) {
	m.UpstreamRequestsTotal.WithLabelValues(operation, strconv.Itoa(status)).Inc()
	m.UpstreamRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordUpstreamRetry records a catalogue API request retry.
func (m *Metrics) RecordUpstreamRetry(operation string) {
	m.UpstreamRetriesTotal.WithLabelValues(operation).Inc()
}

// SetCircuitBreakerState sets the upstream circuit breaker gauge.
// State: 0=closed, 1=open, 2=half-open.
func (m *Metrics) SetCircuitBreakerState(state float64) {
	m.UpstreamCircuitBreakerState.Set(state)
}

// RecordValidationFailure records a response that failed shape validation.
func (m *Metrics) RecordValidationFailure(resource string) {
	m.UpstreamValidationFailures.WithLabelValues(resource).Inc()
}

// RecordCacheHit records a fresh cache hit.
func (m *Metrics) RecordCacheHit(family string) {
	m.CacheHitsTotal.WithLabelValues(family).Inc()
}

// RecordCacheMiss records a cache miss.
func (m *Metrics) RecordCacheMiss(family string) {
	m.CacheMissesTotal.WithLabelValues(family).Inc()
}

// RecordCacheStale records a stale value served while revalidating.
func (m *Metrics) RecordCacheStale(family string) {
	m.CacheStaleTotal.WithLabelValues(family).Inc()
}

// RecordCacheRefresh records a completed cache refresh.
func (m *Metrics) RecordCacheRefresh(family string, success bool) {
	status := "ok"
	if !success {
		status = "error"
	}
	m.CacheRefreshesTotal.WithLabelValues(family, status).Inc()
}

// RecordCacheEviction records evicted cache entries.
func (m *Metrics) RecordCacheEviction(count int) {
	m.CacheEvictionsTotal.Add(float64(count))
}

// RecordMutation records a catalogue mutation.
func (m *Metrics) RecordMutation(operation, status string) {
	m.MutationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordIdempotentReplay records a create answered from the idempotency store.
func (m *Metrics) RecordIdempotentReplay() {
	m.IdempotentReplaysTotal.Inc()
}

// RecordInvalidation records a cache family invalidation.
func (m *Metrics) RecordInvalidation(family string) {
	m.InvalidationsTotal.WithLabelValues(family).Inc()
}

// SetOpenAPIEndpointsIndexed sets the number of indexed catalogue endpoints.
func (m *Metrics) SetOpenAPIEndpointsIndexed(count float64) {
	m.OpenAPIEndpointsIndexed.Set(count)
}

// --- HTTP Middleware ---

// MetricsMiddleware returns HTTP middleware that records request metrics using
// chi's route pattern (not the actual URL path) to avoid label cardinality
// explosion.
func (m *Metrics) MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &metricsResponseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		duration := time.Since(start)
		pathPattern := routePattern(r)
		reqSize := 0
		if r.ContentLength > 0 {
			reqSize = int(r.ContentLength)
		}

		m.RecordHTTPRequest(r.Method, pathPattern, sw.status, duration, reqSize, sw.bytes)
	})
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// routePattern extracts chi's route pattern from the request context.
// Falls back to the raw URL path if no pattern is found.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return r.URL.Path
	}
	pattern := strings.Join(rctx.RoutePatterns, "")
	// chi route patterns have trailing /*, remove it.
	pattern = strings.TrimSuffix(pattern, "/*")
	if pattern == "" {
		return r.URL.Path
	}
	return pattern
}

// metricsResponseWriter wraps http.ResponseWriter to capture status and bytes.
type metricsResponseWriter struct {
	http.ResponseWriter
	status  int
	bytes   int
	written bool
}

func (w *metricsResponseWriter) WriteHeader(code int) {
	if !w.written {
		w.status = code
		w.written = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *metricsResponseWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.written = true
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}
