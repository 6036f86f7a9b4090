// Package stage wraps external collaborator calls in a uniform adapter:
// every invocation gets a timeout, a classified error on failure, and
// exactly one audit record regardless of outcome.
package stage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hirepath/hirepath/internal/audit"
	"github.com/hirepath/hirepath/internal/oracle"
	"github.com/hirepath/hirepath/internal/trace"
)

// Kind classifies a stage failure for the caller's retry policy.
type Kind string

const (
	KindTransient    Kind = "transient"
	KindPermanent    Kind = "permanent"
	KindInvalidInput Kind = "invalid_input"
)

// Error is a classified stage failure carrying the failing stage name.
type Error struct {
	Stage string
	Kind  Kind
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("stage %s: %s: %v", e.Stage, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsTransient reports whether err is a stage failure eligible for retry.
func IsTransient(err error) bool {
	var se *Error
	return errors.As(err, &se) && se.Kind == KindTransient
}

// Adapter executes calls to one named external collaborator.
type Adapter struct {
	name     string
	timeout  time.Duration
	recorder *audit.Recorder
}

// NewAdapter creates an adapter for the named stage. A zero timeout
// disables the per-call deadline.
func NewAdapter(name string, timeout time.Duration, recorder *audit.Recorder) *Adapter {
	return &Adapter{name: name, timeout: timeout, recorder: recorder}
}

// Name returns the stage identifier used in audit records and errors.
func (a *Adapter) Name() string { return a.name }

// Execute runs fn once under the adapter's timeout. It appends exactly
// one StageRecord for the attempt and returns a classified *Error on
// failure.
func (a *Adapter) Execute(ctx context.Context, tc trace.Context, fn func(context.Context) error) error {
	callCtx := ctx
	if a.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	rec := audit.Begin(tc, a.name)
	err := fn(callCtx)
	rec.Finish(err)
	a.recorder.Record(ctx, rec)

	if err != nil {
		return &Error{Stage: a.name, Kind: classify(err), Err: err}
	}
	return nil
}

// ExecuteRetry runs Execute up to attempts times, retrying transient
// failures only. Each attempt produces its own audit record. The last
// failure is returned when all attempts are exhausted.
func (a *Adapter) ExecuteRetry(ctx context.Context, tc trace.Context, attempts int, fn func(context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		lastErr = a.Execute(ctx, tc, fn)
		if lastErr == nil {
			return nil
		}
		if !IsTransient(lastErr) {
			return lastErr
		}
		// The top-level request is gone; retrying cannot help.
		if ctx.Err() != nil {
			return lastErr
		}
	}
	return lastErr
}

// classify maps the underlying failure onto the stage taxonomy.
// Timeouts and cancellations are transient; oracle classifications pass
// through; anything unknown is treated as permanent so it is never
// retried blindly.
func classify(err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTransient
	}

	var oe *oracle.Error
	if errors.As(err, &oe) {
		switch oe.Kind {
		case oracle.KindTransient:
			return KindTransient
		case oracle.KindInvalidInput:
			return KindInvalidInput
		}
		return KindPermanent
	}

	return KindPermanent
}
