package tracing

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestSetupNoneKeepsGlobalProvider(t *testing.T) {
	before := otel.GetTracerProvider()
	shutdown, err := Setup(ExporterNone, "mcp-sim", &bytes.Buffer{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if otel.GetTracerProvider() != before {
		t.Fatalf("expected global provider to stay in place")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("unexpected shutdown error: %v", err)
	}
}

func TestSetupStdoutWritesSpans(t *testing.T) {
	var out bytes.Buffer
	shutdown, err := Setup("Console", "mcp-sim", &out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, span := otel.Tracer("test").Start(context.Background(), "node.Execute")
	span.End()
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("unexpected shutdown error: %v", err)
	}

	for _, want := range []string{`"Name":"node.Execute"`, `"Value":"mcp-sim"`} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("expected exported span to contain %s, got %s", want, out.String())
		}
	}
}

func TestSetupRejectsUnknownExporter(t *testing.T) {
	_, err := Setup("jaeger", "mcp-sim", &bytes.Buffer{})
	if !errors.Is(err, ErrUnknownExporter) {
		t.Fatalf("expected ErrUnknownExporter, got %v", err)
	}
	if ValidExporter("jaeger") {
		t.Fatalf("expected jaeger to be rejected")
	}
	if !ValidExporter(" STDOUT ") {
		t.Fatalf("expected stdout to be accepted")
	}
}

func TestNewProviderTagsServiceName(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	tp := NewProvider(exp, "mcp-sim")

	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	_, span := tp.Tracer("test").Start(context.Background(), "render.Execute")
	span.End()
	if err := tp.ForceFlush(context.Background()); err != nil {
		t.Fatalf("unexpected flush error: %v", err)
	}

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	var service string
	for _, kv := range spans[0].Resource.Attributes() {
		if kv.Key == "service.name" {
			service = kv.Value.AsString()
		}
	}
	if service != "mcp-sim" {
		t.Fatalf("expected service.name mcp-sim, got %q", service)
	}
}
