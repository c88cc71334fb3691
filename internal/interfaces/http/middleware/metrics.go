package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/dormitory/backend/internal/infrastructure/telemetry"
)

type httpMetrics struct {
	requests     *telemetry.Counter
	latency      *telemetry.Histogram
	responseSize *telemetry.Histogram
	inFlight     *telemetry.UpDownCounter
}

func newHTTPMetrics(meter metric.Meter) (*httpMetrics, error) {
	in := telemetry.NewInstruments(meter)
	m := &httpMetrics{
		requests: in.Counter("http_server_request_total",
			"HTTP requests by route and status", "{request}"),
		latency: in.Histogram("http_server_request_duration_seconds",
			"HTTP request latency", "s", telemetry.HTTPDurationBuckets),
		responseSize: in.Histogram("http_server_response_size_bytes",
			"HTTP response body size", "By", telemetry.ResponseSizeBuckets),
		inFlight: in.UpDownCounter("http_server_active_requests",
			"In-flight HTTP requests", "{request}"),
	}
	return m, in.Err()
}

// HTTPMetrics counts requests and records latency per route pattern.
// Unmatched paths are labelled "unknown" to keep cardinality bounded.
// When the instruments cannot be created the middleware only calls Next.
func HTTPMetrics(meter metric.Meter, logger *zap.Logger) gin.HandlerFunc {
	m, err := newHTTPMetrics(meter)
	if err != nil {
		if logger != nil {
			logger.Warn("HTTP metrics disabled", zap.Error(err))
		}
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		start := time.Now()
		m.inFlight.Add(ctx, 1)
		defer m.inFlight.Add(ctx, -1)

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		status := c.Writer.Status()
		attrs := []attribute.KeyValue{
			telemetry.AttrHTTPMethod.String(c.Request.Method),
			telemetry.AttrHTTPRoute.String(route),
		}
		m.latency.RecordDuration(ctx, time.Since(start),
			append(attrs, telemetry.AttrHTTPStatusClass.String(StatusClass(status)))...)
		m.requests.Inc(ctx, append(attrs, telemetry.AttrHTTPStatusCode.Int(status))...)
		if size := c.Writer.Size(); size > 0 {
			m.responseSize.Record(ctx, float64(size), attrs...)
		}
	}
}

// StatusClass buckets a status code into "2xx" through "5xx", or "other".
func StatusClass(statusCode int) string {
	if statusCode < 200 || statusCode > 599 {
		return "other"
	}
	return strconv.Itoa(statusCode/100) + "xx"
}
