package trace

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewContext(t *testing.T) {
	tc := New()
	if len(tc.TraceID) != 32 {
		t.Errorf("trace ID length = %d, want 32", len(tc.TraceID))
	}
	if len(tc.SpanID) != 16 {
		t.Errorf("span ID length = %d, want 16", len(tc.SpanID))
	}
	if tc.ParentSpanID != "" {
		t.Error("new context should have no parent")
	}
}

func TestNewChild(t *testing.T) {
	parent := New()
	child := NewChild(parent)

	if child.TraceID != parent.TraceID {
		t.Error("child should share trace ID")
	}
	if child.SpanID == parent.SpanID {
		t.Error("child should have a fresh span ID")
	}
	if child.ParentSpanID != parent.SpanID {
		t.Error("child's parent span should be parent's span")
	}
}

func TestContextRoundTrip(t *testing.T) {
	tc := New()
	ctx := WithContext(context.Background(), tc)

	got, ok := FromContext(ctx)
	if !ok {
		t.Fatal("expected trace context in ctx")
	}
	if got.TraceID != tc.TraceID {
		t.Errorf("trace ID = %s, want %s", got.TraceID, tc.TraceID)
	}
}

func TestEnsureContext(t *testing.T) {
	ctx, tc := EnsureContext(context.Background())
	if tc.TraceID == "" {
		t.Error("expected fresh trace ID")
	}

	ctx2, tc2 := EnsureContext(ctx)
	if tc2.TraceID != tc.TraceID {
		t.Error("existing context should be preserved")
	}
	if ctx2 != ctx {
		t.Error("context should not be rewrapped")
	}
}

func TestStartSpan(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "process_chunk")
	span.SetAttr("chunk", 3)
	span.End()

	if span.Name != "process_chunk" {
		t.Errorf("span name = %s", span.Name)
	}
	if span.Duration() < 0 {
		t.Error("duration should be non-negative")
	}
	if span.Attrs["chunk"] != 3 {
		t.Error("attribute not recorded")
	}

	// Child spans continue the trace
	_, child := StartSpan(ctx, "diarize")
	if child.Ctx.TraceID != span.Ctx.TraceID {
		t.Error("child span should share trace ID")
	}
}

func TestMiddleware(t *testing.T) {
	var got Context
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = FromContext(r.Context())
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(TraceIDKey, "abc123")
	req.Header.Set(SpanIDKey, "def456")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if got.TraceID != "abc123" {
		t.Errorf("trace ID = %s, want abc123", got.TraceID)
	}
	if got.ParentSpanID != "def456" {
		t.Errorf("parent span = %s, want def456", got.ParentSpanID)
	}

	// Without headers, a fresh trace is created
	req = httptest.NewRequest("GET", "/", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if got.TraceID == "" {
		t.Error("expected generated trace ID")
	}
}
