package stage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hirepath/hirepath/internal/audit"
	"github.com/hirepath/hirepath/internal/oracle"
	"github.com/hirepath/hirepath/internal/trace"
)

type memLog struct {
	mu      sync.Mutex
	records []*audit.StageRecord
}

func (l *memLog) Append(ctx context.Context, rec *audit.StageRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, rec)
	return nil
}

func (l *memLog) ListByTrace(ctx context.Context, traceID string) ([]*audit.StageRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*audit.StageRecord(nil), l.records...), nil
}

func newTestAdapter(name string, timeout time.Duration) (*Adapter, *memLog) {
	log := &memLog{}
	return NewAdapter(name, timeout, audit.NewRecorder(log, nil)), log
}

func TestExecuteSuccessRecordsOnce(t *testing.T) {
	adapter, log := newTestAdapter("parse", 0)

	err := adapter.Execute(context.Background(), trace.New(), func(ctx context.Context) error {
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(log.records) != 1 {
		t.Fatalf("expected 1 audit record, got %d", len(log.records))
	}
	if log.records[0].Status != audit.StatusOK {
		t.Errorf("expected status ok, got %s", log.records[0].Status)
	}
}

func TestExecuteFailureClassified(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{"transient oracle", oracle.Transient("parse", errors.New("503")), KindTransient},
		{"permanent oracle", oracle.Permanent("parse", errors.New("refused")), KindPermanent},
		{"invalid input", oracle.InvalidInput("parse", errors.New("empty")), KindInvalidInput},
		{"deadline", context.DeadlineExceeded, KindTransient},
		{"unknown", errors.New("boom"), KindPermanent},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			adapter, log := newTestAdapter("parse", 0)

			err := adapter.Execute(context.Background(), trace.New(), func(ctx context.Context) error {
				return tc.err
			})

			var se *Error
			if !errors.As(err, &se) {
				t.Fatalf("expected *Error, got %T", err)
			}
			if se.Kind != tc.want {
				t.Errorf("expected kind %s, got %s", tc.want, se.Kind)
			}
			if se.Stage != "parse" {
				t.Errorf("expected stage parse, got %s", se.Stage)
			}
			if len(log.records) != 1 {
				t.Fatalf("expected 1 audit record, got %d", len(log.records))
			}
			if log.records[0].Status != audit.StatusFailed {
				t.Errorf("expected status failed, got %s", log.records[0].Status)
			}
		})
	}
}

func TestExecuteAppliesTimeout(t *testing.T) {
	adapter, _ := newTestAdapter("match", 10*time.Millisecond)

	err := adapter.Execute(context.Background(), trace.New(), func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
			return nil
		}
	})

	if !IsTransient(err) {
		t.Fatalf("expected transient timeout error, got %v", err)
	}
}

func TestExecuteRetryTransientThenSuccess(t *testing.T) {
	adapter, log := newTestAdapter("match", 0)

	calls := 0
	err := adapter.ExecuteRetry(context.Background(), trace.New(), 3, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return oracle.Transient("match", errors.New("overloaded"))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
	// One record per attempt.
	if len(log.records) != 3 {
		t.Errorf("expected 3 audit records, got %d", len(log.records))
	}
	statuses := []audit.Status{audit.StatusFailed, audit.StatusFailed, audit.StatusOK}
	for i, want := range statuses {
		if log.records[i].Status != want {
			t.Errorf("record %d: expected status %s, got %s", i, want, log.records[i].Status)
		}
	}
}

func TestExecuteRetryStopsOnPermanent(t *testing.T) {
	adapter, log := newTestAdapter("parse", 0)

	calls := 0
	err := adapter.ExecuteRetry(context.Background(), trace.New(), 3, func(ctx context.Context) error {
		calls++
		return oracle.Permanent("parse", errors.New("rejected"))
	})

	if calls != 1 {
		t.Errorf("expected a single attempt for a permanent failure, got %d", calls)
	}
	var se *Error
	if !errors.As(err, &se) || se.Kind != KindPermanent {
		t.Fatalf("expected permanent stage error, got %v", err)
	}
	if len(log.records) != 1 {
		t.Errorf("expected 1 audit record, got %d", len(log.records))
	}
}

func TestExecuteRetryExhaustsAttempts(t *testing.T) {
	adapter, log := newTestAdapter("match", 0)

	calls := 0
	err := adapter.ExecuteRetry(context.Background(), trace.New(), 3, func(ctx context.Context) error {
		calls++
		return oracle.Transient("match", errors.New("overloaded"))
	})

	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
	if !IsTransient(err) {
		t.Fatalf("expected the last transient error back, got %v", err)
	}
	if len(log.records) != 3 {
		t.Errorf("expected 3 audit records, got %d", len(log.records))
	}
}

func TestExecuteRetryStopsWhenRequestGone(t *testing.T) {
	adapter, _ := newTestAdapter("match", 0)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := adapter.ExecuteRetry(ctx, trace.New(), 3, func(c context.Context) error {
		calls++
		cancel()
		return oracle.Transient("match", errors.New("overloaded"))
	})

	if calls != 1 {
		t.Errorf("expected no retries after cancellation, got %d attempts", calls)
	}
	if err == nil {
		t.Fatal("expected an error")
	}
}
