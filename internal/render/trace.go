package render

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/aj-en/mcp-sim/internal/render"

type tracerCtxKey struct{}

// WithTracerProvider returns a context whose renders are traced with tp
// rather than the global provider.
func WithTracerProvider(ctx context.Context, tp trace.TracerProvider) context.Context {
	return context.WithValue(ctx, tracerCtxKey{}, tp)
}

func tracerFrom(ctx context.Context) trace.Tracer {
	if tp, ok := ctx.Value(tracerCtxKey{}).(trace.TracerProvider); ok && tp != nil {
		return tp.Tracer(tracerName)
	}
	return otel.Tracer(tracerName)
}
