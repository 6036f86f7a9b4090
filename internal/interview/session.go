// Package interview owns the adaptive multi-turn interview: the
// session state machine, its persistence contract, and per-session
// serialization.
package interview

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hirepath/hirepath/internal/domain"
)

// Status of a session. Completed is terminal and reachable only from
// active.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// SessionContext is the derived state the machine accumulates across
// turns: topics already covered and the current difficulty directive.
// Only the state machine mutates it.
type SessionContext struct {
	TopicsCovered []string `json:"topics_covered,omitempty"`
	Difficulty    string   `json:"difficulty,omitempty"`
	RunningMean   float64  `json:"running_mean"`
}

// Session is the central mutable entity of the interview engine.
//
// Invariants, maintained by the machine and checked in tests:
// len(QuestionsAndAnswers) == CurrentQuestionIndex at every observed
// point; Status is completed iff the question budget is exhausted (or
// an enabled early-stop fired); OverallScore is set iff completed.
type Session struct {
	ID            string `json:"id"`
	CandidateID   string `json:"candidate_id"`
	JobID         string `json:"job_id"`
	InterviewType string `json:"interview_type"`
	MaxQuestions  int    `json:"max_questions"`

	Status               Status                  `json:"status"`
	CurrentQuestionIndex int                     `json:"current_question_index"`
	QuestionsAndAnswers  []domain.QuestionAnswer `json:"questions_and_answers"`
	Context              SessionContext          `json:"context"`

	// PendingQuestion is the question awaiting an answer. Empty once
	// the session is completed.
	PendingQuestion string `json:"pending_question,omitempty"`

	OverallScore      *float64 `json:"overall_score,omitempty"`
	OverallAssessment string   `json:"overall_assessment,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// IsCompleted reports whether the session reached its terminal state.
func (s *Session) IsCompleted() bool {
	return s.Status == StatusCompleted
}

// TurnScores returns the per-turn scores in order.
func (s *Session) TurnScores() []float64 {
	scores := make([]float64, len(s.QuestionsAndAnswers))
	for i, qa := range s.QuestionsAndAnswers {
		scores[i] = qa.Score
	}
	return scores
}

// Clone returns a deep copy. The machine mutates copies and commits
// them with a whole-document replace, so an aborted turn never leaks
// partial state into the store.
func (s *Session) Clone() *Session {
	out := *s
	out.QuestionsAndAnswers = append([]domain.QuestionAnswer(nil), s.QuestionsAndAnswers...)
	out.Context.TopicsCovered = append([]string(nil), s.Context.TopicsCovered...)
	if s.OverallScore != nil {
		v := *s.OverallScore
		out.OverallScore = &v
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		out.CompletedAt = &t
	}
	return &out
}

// ListOptions filters session listings. A zero Limit means unbounded;
// Offset applies either way.
type ListOptions struct {
	CandidateID string
	JobID       string
	Limit       int
	Offset      int
}

// Store is the persistence contract for sessions. ReplaceSession must
// atomically replace the whole session document; the machine relies on
// that to keep the index/history invariants under partial failure.
type Store interface {
	CreateSession(ctx context.Context, s *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	ReplaceSession(ctx context.Context, s *Session) error
	ListSessions(ctx context.Context, opts ListOptions) ([]*Session, error)
}

// ErrorCode identifies a session operation failure.
type ErrorCode string

const (
	ErrInvalidConfig    ErrorCode = "invalid_config"
	ErrNotFound         ErrorCode = "not_found"
	ErrAlreadyCompleted ErrorCode = "already_completed"
	ErrGenerationFailed ErrorCode = "generation_failed"
	ErrEvaluationFailed ErrorCode = "evaluation_failed"
)

// Error is a structured session operation failure.
type Error struct {
	Code      ErrorCode
	SessionID string
	Err       error
}

func (e *Error) Error() string {
	if e.SessionID != "" {
		return fmt.Sprintf("session %s: %s: %v", e.SessionID, e.Code, e.Err)
	}
	return fmt.Sprintf("session: %s: %v", e.Code, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// CodeOf returns the session error code carried by err, if any.
func CodeOf(err error) (ErrorCode, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se.Code, true
	}
	return "", false
}
