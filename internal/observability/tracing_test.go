package observability

import (
	"context"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestInitTracingDisabledByDefault(t *testing.T) {
	shutdown, err := InitTracing(TracingConfig{Service: "vimax", Exporter: "none"})
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	if shutdown == nil {
		t.Fatal("nil shutdown")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}

	ctx, span := StartSpan(context.Background(), "noop")
	if ctx == nil || span == nil {
		t.Fatal("StartSpan returned nil")
	}
	span.End()
}

func TestBuildExporterRejectsUnknownName(t *testing.T) {
	_, err := buildExporter(context.Background(), TracingConfig{Exporter: "carrier-pigeon"})
	if err == nil {
		t.Fatal("want error for unknown exporter")
	}
}

func TestBuildSamplerClampsRatio(t *testing.T) {
	got := buildSampler(TracingConfig{Sampler: "ratio", SamplerRatio: 7})
	want := sdktrace.ParentBased(sdktrace.TraceIDRatioBased(1))
	if got.Description() != want.Description() {
		t.Errorf("sampler = %s, want %s", got.Description(), want.Description())
	}
}
