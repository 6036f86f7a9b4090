// Package oracle defines the contracts for the external collaborators
// the core delegates to: text extraction, resume parsing, job matching,
// question generation, and answer evaluation. Implementations live in
// subpackages; their internals are out of scope for the core.
package oracle

import (
	"context"
	"fmt"

	"github.com/hirepath/hirepath/internal/domain"
)

// ErrorKind classifies an oracle failure for retry policy.
type ErrorKind string

const (
	// KindTransient failures (timeouts, momentary unavailability) are
	// eligible for bounded retry by the caller.
	KindTransient ErrorKind = "transient"
	// KindPermanent failures are explicit rejections; never retried.
	KindPermanent ErrorKind = "permanent"
	// KindInvalidInput marks malformed input; never retried.
	KindInvalidInput ErrorKind = "invalid_input"
)

// Error is a classified oracle failure.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("oracle %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Transient wraps err as a retryable oracle failure.
func Transient(op string, err error) *Error {
	return &Error{Kind: KindTransient, Op: op, Err: err}
}

// Permanent wraps err as a non-retryable oracle failure.
func Permanent(op string, err error) *Error {
	return &Error{Kind: KindPermanent, Op: op, Err: err}
}

// InvalidInput wraps err as a malformed-input failure.
func InvalidInput(op string, err error) *Error {
	return &Error{Kind: KindInvalidInput, Op: op, Err: err}
}

// RawDocument is an unprocessed candidate submission.
type RawDocument struct {
	Filename string
	Content  []byte
}

// TextExtractor turns a raw document into plain text.
type TextExtractor interface {
	ExtractText(ctx context.Context, doc RawDocument) (string, error)
}

// ResumeParser extracts a structured profile from resume text.
type ResumeParser interface {
	Parse(ctx context.Context, text string) (*domain.CandidateProfile, error)
}

// JobMatcher scores a candidate profile against a job.
type JobMatcher interface {
	Match(ctx context.Context, profile *domain.CandidateProfile, job *domain.Job) (*domain.MatchResult, error)
}

// GenerationInput carries everything the question generator may use.
// History is the accumulated prior turns; Difficulty is the directive
// derived from the session's running score trend.
type GenerationInput struct {
	Job        *domain.Job
	Profile    *domain.CandidateProfile
	History    []domain.QuestionAnswer
	Difficulty string
	Type       string
}

// QuestionGenerator produces the next interview question.
type QuestionGenerator interface {
	GenerateQuestion(ctx context.Context, in GenerationInput) (string, error)
}

// Evaluation is the outcome of scoring one answer.
type Evaluation struct {
	Score       float64 `json:"score"`
	Explanation string  `json:"explanation"`
	Topic       string  `json:"topic,omitempty"`
}

// EvaluationInput carries one answered question plus its context.
type EvaluationInput struct {
	Question string
	Answer   string
	Job      *domain.Job
	History  []domain.QuestionAnswer
}

// AnswerEvaluator scores a candidate's answer to one question.
type AnswerEvaluator interface {
	Evaluate(ctx context.Context, in EvaluationInput) (*Evaluation, error)
}
