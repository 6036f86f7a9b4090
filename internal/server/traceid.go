package server

import (
	"net/http"

	"github.com/hirepath/hirepath/internal/trace"
)

// TraceMiddleware attaches a fresh trace context to each request.
// The trace id is set as the X-Trace-ID response header and reused by
// every stage invocation downstream.
func TraceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, tc := trace.Ensure(r.Context())
		w.Header().Set("X-Trace-ID", tc.TraceID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
