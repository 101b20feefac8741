package http

import (
	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/samirrijal/shopradar/internal/pkg/telemetry"
)

// TracingMiddleware starts a server span per request, continuing any trace
// context sent by the caller.
func TracingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := telemetry.ExtractFastHTTP(c.UserContext(), &c.Request().Header)
		ctx, span := telemetry.Tracer().Start(ctx, c.Method()+" "+c.Path(),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", c.Method()),
				attribute.String("http.target", c.OriginalURL()),
			),
		)
		defer span.End()
		c.SetUserContext(ctx)

		err := c.Next()

		status := c.Response().StatusCode()
		span.SetAttributes(attribute.Int("http.status_code", status))
		if err != nil || status >= 500 {
			span.SetStatus(codes.Error, "server error")
		}
		return err
	}
}
