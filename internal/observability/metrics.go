// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Pathfinder metrics
	PathfinderCalls   *prometheus.CounterVec
	PathfinderLatency *prometheus.HistogramVec
	PathfinderRetries *prometheus.CounterVec

	// Token classification metrics
	TokenCacheHits      prometheus.Counter
	TokenCacheMisses    prometheus.Counter
	TokenCacheEvictions prometheus.Counter
	TokenLookupErrors   prometheus.Counter

	// Transfer pipeline metrics
	TransfersEncoded   prometheus.Counter
	TransfersShrunk    prometheus.Counter
	RewriteFailures    *prometheus.CounterVec
	TransferDuration   prometheus.Histogram
	FlowMatrixVertices prometheus.Histogram

	// Event stream metrics
	WSMessagesReceived prometheus.Counter
	WSReconnects       prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "circles_flow"
	}

	return &Metrics{
		// Pathfinder metrics
		PathfinderCalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pathfinder",
			Name:      "calls_total",
			Help:      "Total number of pathfinder RPC calls by method and status",
		}, []string{"method", "status"}),
		PathfinderLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pathfinder",
			Name:      "call_latency_seconds",
			Help:      "Pathfinder RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		PathfinderRetries: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pathfinder",
			Name:      "retries_total",
			Help:      "Total number of pathfinder call retries by method",
		}, []string{"method"}),

		// Token classification metrics
		TokenCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tokeninfo",
			Name:      "cache_hits_total",
			Help:      "Total number of token info cache hits",
		}),
		TokenCacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tokeninfo",
			Name:      "cache_misses_total",
			Help:      "Total number of token info cache misses",
		}),
		TokenCacheEvictions: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tokeninfo",
			Name:      "cache_evictions_total",
			Help:      "Total number of token info cache evictions",
		}),
		TokenLookupErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tokeninfo",
			Name:      "lookup_errors_total",
			Help:      "Total number of failed token info lookups",
		}),

		// Transfer pipeline metrics
		TransfersEncoded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transfer",
			Name:      "encoded_total",
			Help:      "Total number of flow matrices encoded",
		}),
		TransfersShrunk: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transfer",
			Name:      "shrunk_total",
			Help:      "Total number of transfers that required value shrinkage",
		}),
		RewriteFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transfer",
			Name:      "rewrite_failures_total",
			Help:      "Total number of path rewrite failures by reason",
		}, []string{"reason"}),
		TransferDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "transfer",
			Name:      "duration_seconds",
			Help:      "End-to-end transfer preparation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		FlowMatrixVertices: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "transfer",
			Name:      "flow_matrix_vertices",
			Help:      "Vertex count of encoded flow matrices",
			Buckets:   []float64{2, 4, 8, 16, 32, 64, 128, 256},
		}),

		// Event stream metrics
		WSMessagesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "ws_messages_received_total",
			Help:      "Total number of WebSocket event messages received",
		}),
		WSReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "ws_reconnects_total",
			Help:      "Total number of WebSocket reconnections",
		}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordPathfinderCall records one pathfinder RPC call.
func RecordPathfinderCall(method string, ok bool, elapsed time.Duration) {
	status := "ok"
	if !ok {
		status = "error"
	}
	DefaultMetrics.PathfinderCalls.WithLabelValues(method, status).Inc()
	DefaultMetrics.PathfinderLatency.WithLabelValues(method).Observe(elapsed.Seconds())
}

// RecordPathfinderRetry increments the retry counter for a method.
func RecordPathfinderRetry(method string) {
	DefaultMetrics.PathfinderRetries.WithLabelValues(method).Inc()
}

// RecordCacheHit increments the token cache hit counter.
func RecordCacheHit() {
	DefaultMetrics.TokenCacheHits.Inc()
}

// RecordCacheMiss increments the token cache miss counter.
func RecordCacheMiss() {
	DefaultMetrics.TokenCacheMisses.Inc()
}

// RecordCacheEviction increments the token cache eviction counter.
func RecordCacheEviction() {
	DefaultMetrics.TokenCacheEvictions.Inc()
}

// RecordTokenLookupError increments the failed lookup counter.
func RecordTokenLookupError() {
	DefaultMetrics.TokenLookupErrors.Inc()
}

// RecordTransferEncoded records a successfully encoded transfer.
func RecordTransferEncoded(vertices int, shrunk bool, elapsed time.Duration) {
	DefaultMetrics.TransfersEncoded.Inc()
	DefaultMetrics.FlowMatrixVertices.Observe(float64(vertices))
	DefaultMetrics.TransferDuration.Observe(elapsed.Seconds())
	if shrunk {
		DefaultMetrics.TransfersShrunk.Inc()
	}
}

// RecordRewriteFailure records a path rewrite failure.
func RecordRewriteFailure(reason string) {
	DefaultMetrics.RewriteFailures.WithLabelValues(reason).Inc()
}

// RecordWSMessage increments the WebSocket message counter.
func RecordWSMessage() {
	DefaultMetrics.WSMessagesReceived.Inc()
}

// RecordWSReconnect increments the WebSocket reconnect counter.
func RecordWSReconnect() {
	DefaultMetrics.WSReconnects.Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
