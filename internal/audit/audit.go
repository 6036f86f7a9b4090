// Package audit provides the append-only log of stage invocations.
// Every stage call produces exactly one StageRecord, success or not.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hirepath/hirepath/internal/trace"
)

// Status is the outcome of one stage invocation.
type Status string

const (
	StatusOK     Status = "ok"
	StatusFailed Status = "failed"
)

// StageRecord is one audit entry. Records are append-only and never
// updated or deleted once written.
type StageRecord struct {
	ID          string    `json:"id"`
	TraceID     string    `json:"trace_id"`
	Stage       string    `json:"stage"`
	Status      Status    `json:"status"`
	ErrorDetail string    `json:"error_detail,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	EndedAt     time.Time `json:"ended_at"`
}

// Duration is the wall-clock time the stage invocation took.
func (r *StageRecord) Duration() time.Duration {
	return r.EndedAt.Sub(r.StartedAt)
}

// Log is the append-only sink for stage records. Appends from
// concurrent flows must be safe without cross-record coordination.
type Log interface {
	Append(ctx context.Context, rec *StageRecord) error
	ListByTrace(ctx context.Context, traceID string) ([]*StageRecord, error)
}

// Begin opens a record for a stage invocation. The caller finishes it
// with Finish and hands it to a Recorder.
func Begin(tc trace.Context, stage string) *StageRecord {
	return &StageRecord{
		ID:        "rec_" + uuid.New().String(),
		TraceID:   tc.TraceID,
		Stage:     stage,
		StartedAt: time.Now().UTC(),
	}
}

// Finish stamps the end time and outcome on the record.
func (r *StageRecord) Finish(err error) *StageRecord {
	r.EndedAt = time.Now().UTC()
	if err != nil {
		r.Status = StatusFailed
		r.ErrorDetail = err.Error()
	} else {
		r.Status = StatusOK
	}
	return r
}

// Recorder appends stage records to the log. Persistence is decoupled
// from the request outcome: a failed append is logged, never surfaced,
// so audit trouble cannot fail an otherwise healthy stage.
type Recorder struct {
	log    Log
	logger *slog.Logger
}

// NewRecorder creates a recorder over the given log.
func NewRecorder(log Log, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{log: log, logger: logger}
}

// Record appends one finished stage record.
func (r *Recorder) Record(ctx context.Context, rec *StageRecord) {
	if r == nil || r.log == nil {
		return
	}

	// Keep persisting even when the request context is already gone.
	persistCtx, cancel := buildPersistenceContext(ctx, 5*time.Second)
	defer cancel()

	if err := r.log.Append(persistCtx, rec); err != nil {
		r.logger.Error("failed to append stage record",
			slog.String("trace_id", rec.TraceID),
			slog.String("stage", rec.Stage),
			slog.String("error", err.Error()),
		)
		return
	}

	r.logger.Info("stage recorded",
		slog.String("trace_id", rec.TraceID),
		slog.String("stage", rec.Stage),
		slog.String("status", string(rec.Status)),
		slog.Duration("duration", rec.Duration()),
	)
}

// buildPersistenceContext detaches from the caller's cancellation while
// preserving its values, bounded by a fresh timeout.
func buildPersistenceContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), timeout)
}
