package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := trace.NewTracerProvider(
		trace.WithSyncer(exporter),
		trace.WithSampler(trace.AlwaysSample()),
	)
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(previous)
	})
	return exporter
}

func TestTracing(t *testing.T) {
	exporter := setupTracer(t)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/events/{id}", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	handler := Tracing(mux)

	req := httptest.NewRequest(http.MethodGet, "/api/events/abc", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	span := spans[0]
	if span.Name != "GET /api/events/{id}" {
		t.Errorf("unexpected span name %q", span.Name)
	}

	attrs := map[string]string{}
	for _, attr := range span.Attributes {
		attrs[string(attr.Key)] = attr.Value.Emit()
	}
	if attrs["http.method"] != "GET" {
		t.Errorf("expected http.method=GET, got %q", attrs["http.method"])
	}
	if attrs["http.status_code"] != "200" {
		t.Errorf("expected http.status_code=200, got %q", attrs["http.status_code"])
	}
	if attrs["http.route"] != "GET /api/events/{id}" {
		t.Errorf("expected route pattern, got %q", attrs["http.route"])
	}
	if attrs["event.id"] != "abc" {
		t.Errorf("expected event.id=abc, got %q", attrs["event.id"])
	}
	if attrs["http.response_size"] != "2" {
		t.Errorf("expected http.response_size=2, got %q", attrs["http.response_size"])
	}
}

func TestTracing_UnroutedKeepsPath(t *testing.T) {
	exporter := setupTracer(t)

	handler := Tracing(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/plain", nil))

	if name := exporter.GetSpans()[0].Name; name != "GET /plain" {
		t.Errorf("unexpected span name %q", name)
	}
}

func TestTracing_ServerErrorMarksSpan(t *testing.T) {
	exporter := setupTracer(t)

	handler := Tracing(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Status.Code != codes.Error {
		t.Errorf("expected error status, got %v", spans[0].Status.Code)
	}
}

func TestTracing_ClientErrorIsNotSpanError(t *testing.T) {
	exporter := setupTracer(t)

	handler := Tracing(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	if got := exporter.GetSpans()[0].Status.Code; got == codes.Error {
		t.Error("4xx should not mark the span as failed")
	}
}
