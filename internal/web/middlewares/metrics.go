package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// NewMetrics builds the request counter and latency histogram used by the
// Metrics middleware. The caller registers them on its registry.
func NewMetrics() (*prometheus.CounterVec, *prometheus.HistogramVec) {
	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thermolog_http_requests_total",
			Help: "HTTP requests by path and status code.",
		},
		[]string{"path", "code"},
	)
	latency := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "thermolog_http_request_duration_seconds",
			Help:    "HTTP request latency by path.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path"},
	)
	return requests, latency
}

// Metrics records per-request counters and latency.
func Metrics(requests *prometheus.CounterVec, latency *prometheus.HistogramVec) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		requests.WithLabelValues(path, strconv.Itoa(c.Writer.Status())).Inc()
		latency.WithLabelValues(path).Observe(time.Since(start).Seconds())
	}
}
