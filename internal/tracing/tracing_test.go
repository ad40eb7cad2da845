package tracing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestMiddlewareRecordsServerSpans(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer provider.Shutdown(context.Background())

	var seenTraceID string
	router := gin.New()
	router.Use(Middleware(provider))
	router.GET("/api/trips", func(c *gin.Context) {
		seenTraceID = TraceID(c.Request.Context())
		c.Status(http.StatusInternalServerError)
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/trips", nil))

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected one span, got %d", len(spans))
	}
	if spans[0].Name() != "GET /api/trips" {
		t.Fatalf("unexpected span name %q", spans[0].Name())
	}
	if seenTraceID == "" || seenTraceID != spans[0].SpanContext().TraceID().String() {
		t.Fatalf("expected handler to see the span trace id, got %q", seenTraceID)
	}
	if spans[0].Status().Code.String() != "Error" {
		t.Fatalf("expected error status for 5xx, got %v", spans[0].Status().Code)
	}
}

func TestSetupWithoutEndpoint(t *testing.T) {
	provider, shutdown, err := Setup(context.Background(), Config{SampleRatio: 1})
	if err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	if provider == nil {
		t.Fatalf("expected a tracer provider")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}
}

func TestTraceIDOutsideSpan(t *testing.T) {
	if TraceID(context.Background()) != "" {
		t.Fatalf("expected empty trace id without a span")
	}
}
