package telemetry

import (
	"context"

	"github.com/valyala/fasthttp"
	"go.opentelemetry.io/otel"
)

// headerCarrier adapts fasthttp request headers to propagation.TextMapCarrier.
type headerCarrier struct {
	h *fasthttp.RequestHeader
}

func (c headerCarrier) Get(key string) string { return string(c.h.Peek(key)) }
func (c headerCarrier) Set(key, value string) { c.h.Set(key, value) }

func (c headerCarrier) Keys() []string {
	var keys []string
	c.h.VisitAll(func(k, _ []byte) { keys = append(keys, string(k)) })
	return keys
}

// InjectFastHTTP writes the trace context of ctx into outgoing request headers.
func InjectFastHTTP(ctx context.Context, h *fasthttp.RequestHeader) {
	otel.GetTextMapPropagator().Inject(ctx, headerCarrier{h: h})
}

// ExtractFastHTTP returns ctx carrying the trace context found in incoming
// request headers.
func ExtractFastHTTP(ctx context.Context, h *fasthttp.RequestHeader) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, headerCarrier{h: h})
}
