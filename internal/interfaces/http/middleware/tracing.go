package middleware

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Tracing starts a server span per request through otelgin, then tags it
// with the request id. With tracing disabled it is a pass-through.
func Tracing(serviceName string, enabled bool, opts ...otelgin.Option) []gin.HandlerFunc {
	if !enabled {
		return nil
	}
	return []gin.HandlerFunc{otelgin.Middleware(serviceName, opts...), tagSpan}
}

// tagSpan runs inside the otelgin span, which is still open while the rest
// of the chain executes.
func tagSpan(c *gin.Context) {
	span := trace.SpanFromContext(c.Request.Context())
	if span.IsRecording() {
		if id := GetRequestID(c); id != "" {
			span.SetAttributes(attribute.String("request_id", id))
		}
	}
	c.Next()
}
