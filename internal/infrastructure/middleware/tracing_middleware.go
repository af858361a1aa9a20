package middleware

import (
	"strings"
	"time"

	"streamctl/pkg/tracing"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Polled by health checks and scrapers; never traced.
var untracedPaths = map[string]bool{
	"/health":  true,
	"/ready":   true,
	"/metrics": true,
}

// TracingMiddleware opens a span per control request. Requests for the
// websocket upgrade, the read API and the static UI are told apart by the
// http.surface attribute.
func TracingMiddleware(wsPath string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if untracedPaths[c.Request.URL.Path] {
			c.Next()
			return
		}

		route := c.FullPath()
		if route == "" {
			route = "static"
		}
		ctx, span := tracing.TraceHTTPRequest(c.Request.Context(), c.Request.Method, route)
		defer span.End()

		span.SetAttributes(
			attribute.String("http.surface", surfaceOf(c.Request.URL.Path, wsPath)),
			attribute.Bool("auth.bearer", strings.HasPrefix(c.GetHeader("Authorization"), "Bearer ")),
			attribute.String("http.remote_addr", c.ClientIP()),
		)
		c.Request = c.Request.WithContext(ctx)

		start := time.Now()
		c.Next()
		tracing.MeasureDuration(ctx, start, route)

		status := c.Writer.Status()
		span.SetAttributes(attribute.Int("http.status_code", status))
		switch {
		case len(c.Errors) > 0:
			tracing.RecordError(ctx, c.Errors.Last().Err)
		case status >= 400:
			span.SetStatus(codes.Error, "")
		default:
			span.SetStatus(codes.Ok, "")
		}
	}
}

func surfaceOf(path, wsPath string) string {
	switch {
	case path == wsPath:
		return "ws"
	case strings.HasPrefix(path, "/api/"):
		return "api"
	default:
		return "static"
	}
}
