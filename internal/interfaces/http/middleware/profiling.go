package middleware

import (
	"context"
	"strings"

	"github.com/erp/backoffice/internal/infrastructure/telemetry"
	"github.com/gin-gonic/gin"
)

// Profiling tags CPU samples taken while serving a request with the route,
// method, resource and branch. Health probes are skipped.
func Profiling(enabled bool) gin.HandlerFunc {
	if !enabled {
		return passThrough
	}
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" || strings.HasSuffix(route, "/health") {
			c.Next()
			return
		}

		labels := map[string]string{
			telemetry.ProfilingLabelMethod:     c.Request.Method,
			telemetry.ProfilingLabelRoute:      route,
			telemetry.ProfilingLabelController: controllerFromRoute(route),
			telemetry.ProfilingLabelBranchID:   getBranchID(c),
		}
		telemetry.WithProfilingLabels(c.Request.Context(), labels, func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}
}

// controllerFromRoute returns the first resource segment of a route,
// e.g. /api/v1/orders/:id/invoices gives orders.
func controllerFromRoute(route string) string {
	for _, part := range strings.Split(route, "/") {
		if part == "" || part == "api" || isVersionSegment(part) || strings.HasPrefix(part, ":") {
			continue
		}
		return part
	}
	return ""
}

func isVersionSegment(s string) bool {
	if len(s) < 2 || (s[0] != 'v' && s[0] != 'V') {
		return false
	}
	for i := 1; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
