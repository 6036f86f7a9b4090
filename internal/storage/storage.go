// Package storage defines the persistence interfaces consumed by the
// core. Implementations live in the memory and sqlite subpackages.
package storage

import (
	"context"
	"errors"

	"github.com/hirepath/hirepath/internal/domain"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// JobStore persists open positions.
type JobStore interface {
	CreateJob(ctx context.Context, job *domain.Job) error
	GetJob(ctx context.Context, id string) (*domain.Job, error)
	ListJobs(ctx context.Context) ([]*domain.Job, error)
}

// CandidateStore persists candidates and their parsed profiles.
type CandidateStore interface {
	CreateCandidate(ctx context.Context, cand *domain.Candidate) error
	GetCandidate(ctx context.Context, id string) (*domain.Candidate, error)
	// UpdateCandidate replaces the whole candidate document.
	UpdateCandidate(ctx context.Context, cand *domain.Candidate) error
	ListCandidates(ctx context.Context, jobID string) ([]*domain.Candidate, error)
}

// ScoreStore persists the per-candidate score row. Each setter touches
// only its own component so pipeline, interview, and aggregation can
// update independently.
type ScoreStore interface {
	GetScore(ctx context.Context, candidateID string) (*domain.ScoreRecord, error)
	// ListScoresByJob returns the score rows for a job's candidates,
	// highest final score first; rows without a final score sort last.
	ListScoresByJob(ctx context.Context, jobID string) ([]*domain.ScoreRecord, error)
	SetMatcherScore(ctx context.Context, candidateID, jobID string, score float64, breakdown map[string]float64) error
	SetInterviewScore(ctx context.Context, candidateID, jobID string, score float64) error
	SetFinalScore(ctx context.Context, candidateID, jobID string, score float64) error
}
