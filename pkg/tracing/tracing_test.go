package tracing

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func restoreGlobals(t *testing.T) {
	t.Helper()
	prevTP := otel.GetTracerProvider()
	prevProp := otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
	})
}

func TestInitTracer_DisabledLeavesGlobalProvider(t *testing.T) {
	restoreGlobals(t)
	before := otel.GetTracerProvider()

	shutdown, err := InitTracer(context.Background(), Config{ServiceName: "review-service"})
	if err != nil {
		t.Fatalf("InitTracer(disabled) returned error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown(disabled) returned error: %v", err)
	}
	if otel.GetTracerProvider() != before {
		t.Error("disabled tracing replaced the global tracer provider")
	}
}

func TestInitTracer_EnabledInstallsSDKProvider(t *testing.T) {
	restoreGlobals(t)

	// The batch exporter is lazy, so an unreachable collector is fine here.
	shutdown, err := InitTracer(context.Background(), Config{
		ServiceName:    "review-service",
		ServiceVersion: "test",
		Environment:    "test",
		OTLPEndpoint:   "127.0.0.1:0",
		SampleRate:     1,
		Enabled:        true,
	})
	if err != nil {
		t.Fatalf("InitTracer(enabled) returned error: %v", err)
	}
	t.Cleanup(func() { _ = shutdown(context.Background()) })

	if _, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider); !ok {
		t.Errorf("global provider = %T, want *sdktrace.TracerProvider", otel.GetTracerProvider())
	}
	fields := otel.GetTextMapPropagator().Fields()
	if !strings.Contains(strings.Join(fields, ","), "traceparent") {
		t.Errorf("propagator fields = %v, want traceparent", fields)
	}
}

func TestNewProvider_SamplingAndResource(t *testing.T) {
	tests := []struct {
		name        string
		rate        float64
		wantSampled bool
	}{
		{"keep all", 1, true},
		{"keep none", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := tracetest.NewSpanRecorder()
			tp, err := newProvider(context.Background(),
				Config{ServiceName: "review-service", SampleRate: tt.rate},
				sdktrace.WithSpanProcessor(recorder),
			)
			if err != nil {
				t.Fatalf("newProvider: %v", err)
			}
			t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

			_, span := tp.Tracer("test").Start(context.Background(), "root")
			span.End()

			ended := recorder.Ended()
			if got := len(ended) == 1; got != tt.wantSampled {
				t.Fatalf("sampled = %v, want %v", got, tt.wantSampled)
			}
			if !tt.wantSampled {
				return
			}
			var service string
			for _, kv := range ended[0].Resource().Attributes() {
				if kv.Key == "service.name" {
					service = kv.Value.AsString()
				}
			}
			if service != "review-service" {
				t.Errorf("service.name = %q, want review-service", service)
			}
		})
	}
}

func TestSamplerFor_IsParentBased(t *testing.T) {
	for _, rate := range []float64{-1, 0, 0.25, 1, 2} {
		desc := samplerFor(rate).Description()
		if !strings.HasPrefix(desc, "ParentBased") {
			t.Errorf("samplerFor(%v) = %q, want a ParentBased sampler", rate, desc)
		}
	}
}

func TestStartSpanAndEndSpan(t *testing.T) {
	restoreGlobals(t)
	recorder := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))

	_, ok := StartSpan(context.Background(), "test", "review.recompute", attribute.String("product_id", "p-1"))
	EndSpan(ok, nil)

	_, failed := StartSpan(context.Background(), "test", "review.recompute")
	EndSpan(failed, errors.New("store down"))

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("recorded %d spans, want 2", len(spans))
	}
	if spans[0].Status().Code == codes.Error {
		t.Errorf("successful span has error status")
	}
	if got := spans[0].Attributes(); len(got) != 1 || got[0].Value.AsString() != "p-1" {
		t.Errorf("attributes = %v, want product_id=p-1", got)
	}
	if spans[1].Status().Code != codes.Error || spans[1].Status().Description != "store down" {
		t.Errorf("failed span status = %+v, want error 'store down'", spans[1].Status())
	}
	if len(spans[1].Events()) == 0 {
		t.Errorf("failed span has no recorded error event")
	}
}
