// Package trace carries the correlation identifier that spans every
// stage invocation for one logical request.
package trace

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Context is the immutable trace identity created once per top-level
// request and propagated to every stage call.
type Context struct {
	TraceID   string    `json:"trace_id"`
	StartedAt time.Time `json:"started_at"`
}

// New creates a fresh trace context with a generated identifier.
func New() Context {
	return Context{
		TraceID:   uuid.New().String(),
		StartedAt: time.Now().UTC(),
	}
}

type ctxKey struct{}

// WithContext attaches the trace context to a context.Context.
func WithContext(ctx context.Context, tc Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, tc)
}

// FromContext returns the trace context attached to ctx, if any.
func FromContext(ctx context.Context) (Context, bool) {
	tc, ok := ctx.Value(ctxKey{}).(Context)
	return tc, ok
}

// Ensure returns the trace context from ctx, creating and attaching a
// new one when none is present.
func Ensure(ctx context.Context) (context.Context, Context) {
	if tc, ok := FromContext(ctx); ok {
		return ctx, tc
	}
	tc := New()
	return WithContext(ctx, tc), tc
}
