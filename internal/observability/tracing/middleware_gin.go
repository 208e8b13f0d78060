package tracing

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/smsrent/internal/observability/context"
	providerdomain "github.com/smallbiznis/smsrent/internal/provider/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// GinMiddleware opens one server span per request. Spans for routes scoped
// to a provider or a stored number carry those ids, and failed provider calls
// carry the normalized error code.
func GinMiddleware() gin.HandlerFunc {
	tracer := otel.Tracer("smsrent/http")
	return func(c *gin.Context) {
		ctx := ExtractContext(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		ctx, span := tracer.Start(ctx, strings.ToUpper(c.Request.Method)+" "+route, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		attrs := []attribute.KeyValue{
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", route),
			attribute.Bool("smsrent.webhook", strings.HasPrefix(route, "/api/webhooks/")),
		}
		if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
			attrs = append(attrs, attribute.String("request_id", requestID))
		}
		if provider := strings.ToLower(strings.TrimSpace(c.Param("provider"))); provider != "" {
			attrs = append(attrs, attribute.String("provider", provider))
		}
		if id := strings.TrimSpace(c.Param("id")); id != "" {
			attrs = append(attrs, attribute.String("phone_number.id", id))
		}
		span.SetAttributes(SafeAttributes(attrs...)...)

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(attribute.Int("http.status_code", status))

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}
		if code := providerdomain.CodeOf(lastErr.Err); code != "" {
			span.SetAttributes(attribute.String("provider.error_code", string(code)))
		}
		if status >= http.StatusInternalServerError {
			if safeErr := SafeError(lastErr.Err); safeErr != nil {
				span.RecordError(safeErr)
			}
			span.SetStatus(codes.Error, "request error")
		}
	}
}
