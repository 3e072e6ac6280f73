package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// HTTPMetricsMiddleware counts requests and records their latency by method, route and
// status_code. Routes are the registered patterns (/v1/session/:id) so session identifiers
// never reach a label. If the instruments cannot be created the middleware only calls Next.
func HTTPMetricsMiddleware(provider *Provider) gin.HandlerFunc {
	set := &instrumentSet{meter: provider.Meter("http"), namespace: provider.Namespace()}
	requests := set.counter("http_requests_total", "Total number of HTTP requests", "{request}")
	latency := set.histogram("http_request_duration_seconds", "HTTP request duration in seconds")
	if set.err != nil {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		attrs := metric.WithAttributes(
			attribute.String("method", c.Request.Method),
			attribute.String("path", route),
			attribute.String("status_code", strconv.Itoa(c.Writer.Status())),
		)
		ctx := c.Request.Context()
		requests.Add(ctx, 1, attrs)
		latency.Record(ctx, time.Since(start).Seconds(), attrs)
	}
}
