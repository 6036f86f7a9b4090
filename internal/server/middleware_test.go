package server

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hirepath/hirepath/internal/trace"
)

func TestTraceMiddlewareAttachesContextAndHeader(t *testing.T) {
	var seen trace.Context
	handler := TraceMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tc, ok := trace.FromContext(r.Context())
		if !ok {
			t.Error("expected trace context on request")
		}
		seen = tc
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/jobs", nil))

	got := rec.Header().Get("X-Trace-ID")
	if got == "" {
		t.Fatal("expected X-Trace-ID header")
	}
	if got != seen.TraceID {
		t.Errorf("header %s does not match context trace id %s", got, seen.TraceID)
	}
}

func TestTraceMiddlewareKeepsExistingTrace(t *testing.T) {
	tc := trace.New()
	handler := TraceMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(trace.WithContext(req.Context(), tc))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Trace-ID"); got != tc.TraceID {
		t.Errorf("expected existing trace id %s, got %s", tc.TraceID, got)
	}
}

func TestLoggingMiddlewareEmitsFields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	handler := LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		AddLogField(r.Context(), "session_id", "sess_42")
		AddError(r.Context(), errors.New("boom"))
		w.WriteHeader(http.StatusConflict)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/interviews", nil))

	out := buf.String()
	if !strings.Contains(out, "request completed") {
		t.Error("expected completion log line")
	}
	if !strings.Contains(out, `"status":409`) {
		t.Errorf("expected status 409 in log, got %s", out)
	}
	if !strings.Contains(out, `"session_id":"sess_42"`) {
		t.Errorf("expected custom field in log, got %s", out)
	}
	if !strings.Contains(out, `"error":"boom"`) {
		t.Errorf("expected error field in log, got %s", out)
	}
}

func TestAddLogFieldWithoutMiddlewareIsNoop(t *testing.T) {
	// Must not panic when the middleware never ran.
	AddLogField(context.Background(), "key", "value")
	AddError(context.Background(), errors.New("boom"))
}

func TestTimeoutMiddlewareCancelsContext(t *testing.T) {
	handler := TimeoutMiddleware(10 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
			t.Error("expected context cancellation before one second")
		}
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
}
