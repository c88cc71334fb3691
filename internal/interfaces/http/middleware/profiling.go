package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/dormitory/backend/internal/infrastructure/telemetry"
)

// Profiling tags the handler goroutine with pprof labels for the matched
// route and method so CPU profiles can be split per endpoint. Unmatched
// requests and the routes in skipRoutes run unlabelled.
func Profiling(skipRoutes ...string) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(skipRoutes))
	for _, r := range skipRoutes {
		skip[r] = struct{}{}
	}

	return func(c *gin.Context) {
		route := c.FullPath()
		if _, skipped := skip[route]; skipped || route == "" {
			c.Next()
			return
		}
		labels := telemetry.HTTPRequestLabels(route, c.Request.Method)
		telemetry.WithProfilingLabels(c.Request.Context(), labels, func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}
}
