// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file exposes Prometheus instrumentation for the assistant's HTTP
// traffic. Metrics() records request counts, latencies, in-flight requests
// and response sizes, plus a counter of submissions answered from an
// idempotency record:
//
//   - method:   HTTP method (GET/POST/DELETE)
//   - path:     the registered Gin route (e.g. /api/v1/threads/:id/messages);
//     requests that matched no route share the "unmatched" label
//   - status:   numeric status code as a string (e.g. "200", "429")
//
// Domain counters (LLM outcomes, shopping searches, assistant turns) live in
// the observability package. All collectors are safe for concurrent use.
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// unmatchedPath labels requests that matched no route, keeping the path label
// bounded to registered routes.
const unmatchedPath = "unmatched"

var (
	httpReqs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests.",
	}, []string{"method", "path", "status"})

	// Turns wait on the model, so the latency tail is long. Status is left
	// out to keep cardinality low.
	httpLat = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds.",
		Buckets: []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40},
	}, []string{"method", "path"})

	httpInflight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "http_requests_inflight",
		Help: "Current number of in-flight HTTP requests.",
	})

	httpRespSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_response_size_bytes",
		Help:    "Size of HTTP responses in bytes.",
		Buckets: prometheus.ExponentialBuckets(256, 4, 8), // 256B..4MiB
	}, []string{"method", "path"})

	httpReplays = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_idempotent_replays_total",
		Help: "Requests answered from a stored result for their Idempotency-Key.",
	}, []string{"path"})
)

// Metrics records request count, latency, in-flight gauge, response size and
// idempotent replays per method and route template.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpInflight.Inc()
		defer httpInflight.Dec()

		c.Next()

		path := routeOf(c)
		method := c.Request.Method
		httpReqs.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpLat.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
		if size := c.Writer.Size(); size >= 0 {
			httpRespSize.WithLabelValues(method, path).Observe(float64(size))
		}
		if IsReplay(c) {
			httpReplays.WithLabelValues(path).Inc()
		}
	}
}

func routeOf(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	return unmatchedPath
}
