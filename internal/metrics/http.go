// Package metrics holds the HTTP-surface Prometheus collectors and the
// gin middleware that records them on every request.
package metrics

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "http_request_duration_seconds",
			Help: "HTTP request latencies in seconds",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
)

func MustRegister(registry *prometheus.Registry) {
	registry.MustRegister(HTTPDuration, HTTPRequests)
}

// GinMiddleware records request latency and count labeled by route
// template (not raw path) so cardinality stays bounded.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := c.Writer.Status()

		HTTPDuration.WithLabelValues(c.Request.Method, path, fmt.Sprintf("%d", status)).Observe(time.Since(start).Seconds())
		HTTPRequests.WithLabelValues(c.Request.Method, path, fmt.Sprintf("%d", status)).Inc()
	}
}
