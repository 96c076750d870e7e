// Package tracing installs the OpenTelemetry tracer provider the node
// runtime and the site renderer report spans to.
package tracing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Supported exporters. Console is the OTEL_TRACES_EXPORTER name for stdout.
const (
	ExporterNone    = "none"
	ExporterStdout  = "stdout"
	ExporterConsole = "console"
)

// ErrUnknownExporter is returned for exporter names Setup doesn't support.
var ErrUnknownExporter = errors.New("unknown trace exporter")

// ShutdownFunc flushes pending spans and stops the provider.
type ShutdownFunc func(ctx context.Context) error

// ValidExporter reports whether Setup accepts name.
func ValidExporter(name string) bool {
	switch normalize(name) {
	case "", ExporterNone, ExporterStdout, ExporterConsole:
		return true
	}
	return false
}

// Setup installs a global tracer provider for exporter. With "none" the
// global no-op provider stays in place. Stdout spans are written to w as
// JSON.
func Setup(exporter, serviceName string, w io.Writer) (ShutdownFunc, error) {
	switch normalize(exporter) {
	case "", ExporterNone:
		return func(context.Context) error { return nil }, nil
	case ExporterStdout, ExporterConsole:
		exp, err := stdouttrace.New(stdouttrace.WithWriter(w))
		if err != nil {
			return nil, fmt.Errorf("create stdout exporter: %w", err)
		}
		tp := NewProvider(exp, serviceName)
		otel.SetTracerProvider(tp)
		return tp.Shutdown, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownExporter, exporter)
	}
}

// NewProvider returns a provider batching spans to exp, tagged with the
// service name.
func NewProvider(exp sdktrace.SpanExporter, serviceName string) *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", serviceName))),
	)
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
