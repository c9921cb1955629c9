// Package middleware provides HTTP middleware for the back-office API.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// MaxRequestIDLength caps request ids taken from headers
const MaxRequestIDLength = 128

// BranchIDHeader names the store branch the request is made from
const BranchIDHeader = "X-Branch-ID"

// TracingConfig holds configuration for the tracing middleware.
type TracingConfig struct {
	ServiceName string
	Enabled     bool
}

// DefaultTracingConfig returns default tracing configuration.
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		ServiceName: "pos-backoffice",
		Enabled:     true,
	}
}

// TracingWithConfig returns the otelgin server middleware. Pair it with
// SpanEnricher for the back-office attributes.
func TracingWithConfig(cfg TracingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}
	return otelgin.Middleware(cfg.ServiceName)
}

// SpanEnricher must run after TracingWithConfig and RequestID. It adds the
// request attributes and marks error responses on the way out.
func SpanEnricher() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			c.Next()
			return
		}

		if requestID := c.GetString(RequestIDKey); requestID != "" {
			span.SetAttributes(attribute.String("request_id", requestID))
		}
		if branchID := getBranchID(c); branchID != "" {
			span.SetAttributes(attribute.String("branch_id", branchID))
		}

		c.Next()

		status := c.Writer.Status()
		if status < http.StatusBadRequest {
			return
		}
		span.SetAttributes(attribute.Int("http.status_code", status))
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, "Internal Server Error")
			return
		}
		span.SetStatus(codes.Error, http.StatusText(status))
	}
}

// getBranchID returns the branch header if it is a well-formed UUID
func getBranchID(c *gin.Context) string {
	raw := c.GetHeader(BranchIDHeader)
	if raw == "" {
		return ""
	}
	if _, err := uuid.Parse(raw); err != nil {
		return ""
	}
	return raw
}
