// Package metrics provides Prometheus metrics for the Faraday server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "faraday_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "faraday_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Chat function metrics
	chatTurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "faraday_chat_turns_total",
			Help: "Chat function invocations by outcome",
		},
		[]string{"outcome"},
	)

	chatFilesReturned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "faraday_chat_files_returned_total",
			Help: "Files proposed by the assistant across all turns",
		},
	)

	gatewayDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "faraday_gateway_request_duration_seconds",
			Help:    "AI gateway round-trip duration in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 80},
		},
		[]string{"provider"},
	)

	gatewayResponses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "faraday_gateway_responses_total",
			Help: "AI gateway responses by provider and HTTP status",
		},
		[]string{"provider", "status"},
	)

	// Project store metrics
	storeOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "faraday_project_store_ops_total",
			Help: "Project store transitions by operation",
		},
		[]string{"op"},
	)

	storePersistFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "faraday_project_persist_failures_total",
			Help: "Snapshot writes that failed",
		},
	)

	projectFiles = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "faraday_project_files",
			Help: "Number of files in the project store",
		},
	)

	loadOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "faraday_project_loads_total",
			Help: "Snapshot loads by source (persisted or defaulted)",
		},
		[]string{"source"},
	)

	// Backend metrics
	backendOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "faraday_backend_operation_duration_seconds",
			Help:    "Snapshot backend operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "operation"},
	)

	backendOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "faraday_backend_operations_total",
			Help: "Total snapshot backend operations",
		},
		[]string{"backend", "operation", "status"},
	)

	// SSE metrics
	sseConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "faraday_sse_connections_active",
			Help: "Number of active SSE connections",
		},
	)

	sseEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "faraday_sse_events_total",
			Help: "Total SSE events published",
		},
		[]string{"type"},
	)

	rateLimitHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "faraday_rate_limit_hits_total",
			Help: "Requests rejected by the rate limiter",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordChatTurn records one chat function invocation. outcome is one of
// "ok", "invalid", "unconfigured", "upstream_error", "fallback", "error".
func RecordChatTurn(outcome string, files int) {
	chatTurnsTotal.WithLabelValues(outcome).Inc()
	if files > 0 {
		chatFilesReturned.Add(float64(files))
	}
}

// RecordGatewayCall records an AI gateway round-trip.
func RecordGatewayCall(provider string, status int, duration time.Duration) {
	gatewayDuration.WithLabelValues(provider).Observe(duration.Seconds())
	gatewayResponses.WithLabelValues(provider, strconv.Itoa(status)).Inc()
}

// RecordStoreOp records a project store transition.
func RecordStoreOp(op string, fileCount int) {
	storeOpsTotal.WithLabelValues(op).Inc()
	projectFiles.Set(float64(fileCount))
}

// RecordPersistFailure records a failed snapshot write.
func RecordPersistFailure() {
	storePersistFailures.Inc()
}

// RecordLoad records where a loaded project state came from.
func RecordLoad(source string) {
	loadOutcomes.WithLabelValues(source).Inc()
}

// RecordBackendOperation records a snapshot backend operation.
func RecordBackendOperation(backend, operation string, duration time.Duration, success bool) {
	backendOperationDuration.WithLabelValues(backend, operation).Observe(duration.Seconds())
	status := "success"
	if !success {
		status = "error"
	}
	backendOperationsTotal.WithLabelValues(backend, operation, status).Inc()
}

// SetSSEConnectionsActive sets the number of active SSE connections.
func SetSSEConnectionsActive(count int64) {
	sseConnectionsActive.Set(float64(count))
}

// RecordSSEEvent records a published SSE event.
func RecordSSEEvent(eventType string) {
	sseEventsTotal.WithLabelValues(eventType).Inc()
}

// RecordRateLimitHit records a rate-limited request.
func RecordRateLimitHit() {
	rateLimitHits.Inc()
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware returns HTTP middleware that records request metrics. The route
// pattern is used as the path label to keep cardinality bounded.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}
		RecordHTTPRequest(r.Method, path, rw.statusCode, time.Since(start))
	})
}
