package http

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel/trace"
)

// AccessLogMiddleware writes one structured line per request through the
// request-scoped logger. Routes are logged by pattern so session ids and
// shop ids do not explode log cardinality; the session id is kept as an
// attribute instead.
func AccessLogMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		status := c.Response().StatusCode()
		route := c.Route().Path
		if route == "" || route == "/" {
			route = c.Path()
		}

		attrs := []slog.Attr{
			slog.String("method", c.Method()),
			slog.String("route", route),
			slog.Int("status", status),
			slog.Float64("duration_ms", float64(time.Since(start).Microseconds())/1000),
			slog.Int("bytes_out", len(c.Response().Body())),
		}
		if id := c.Params("id"); id != "" {
			attrs = append(attrs, slog.String("resource_id", id))
		}
		if sc := trace.SpanContextFromContext(c.UserContext()); sc.HasTraceID() {
			attrs = append(attrs, slog.String("trace_id", sc.TraceID().String()))
		}

		level := slog.LevelInfo
		switch {
		case err != nil:
			attrs = append(attrs, slog.String("error", err.Error()))
			level = slog.LevelError
		case status >= 500:
			level = slog.LevelError
		case status >= 400:
			level = slog.LevelWarn
		case route == "/v1/health" || route == "/metrics":
			level = slog.LevelDebug
		}

		LoggerFromCtx(c.UserContext()).LogAttrs(c.UserContext(), level, "http request", attrs...)
		return err
	}
}
