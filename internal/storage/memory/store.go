// Package memory is an in-memory implementation of every store
// interface, used for tests and single-process development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hirepath/hirepath/internal/audit"
	"github.com/hirepath/hirepath/internal/domain"
	"github.com/hirepath/hirepath/internal/interview"
	"github.com/hirepath/hirepath/internal/storage"
)

// Store holds everything in process memory. All methods are safe for
// concurrent use.
type Store struct {
	mu         sync.RWMutex
	jobs       map[string]*domain.Job
	candidates map[string]*domain.Candidate
	scores     map[string]*domain.ScoreRecord
	sessions   map[string]*interview.Session
	records    []*audit.StageRecord
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		jobs:       make(map[string]*domain.Job),
		candidates: make(map[string]*domain.Candidate),
		scores:     make(map[string]*domain.ScoreRecord),
		sessions:   make(map[string]*interview.Session),
	}
}

var (
	_ storage.JobStore       = (*Store)(nil)
	_ storage.CandidateStore = (*Store)(nil)
	_ storage.ScoreStore     = (*Store)(nil)
	_ interview.Store        = (*Store)(nil)
	_ audit.Log              = (*Store)(nil)
)

func (s *Store) CreateJob(ctx context.Context, job *domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("job %s already exists", job.ID)
	}

	now := time.Now().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now

	cp := *job
	s.jobs[job.ID] = &cp
	return nil
}

func (s *Store) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (s *Store) ListJobs(ctx context.Context) ([]*domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		cp := *job
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) CreateCandidate(ctx context.Context, cand *domain.Candidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.candidates[cand.ID]; exists {
		return fmt.Errorf("candidate %s already exists", cand.ID)
	}

	now := time.Now().UTC()
	cand.CreatedAt = now
	cand.UpdatedAt = now
	if cand.Status == "" {
		cand.Status = domain.CandidateUploaded
	}

	cp := *cand
	s.candidates[cand.ID] = &cp
	return nil
}

func (s *Store) GetCandidate(ctx context.Context, id string) (*domain.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cand, exists := s.candidates[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	cp := *cand
	return &cp, nil
}

func (s *Store) UpdateCandidate(ctx context.Context, cand *domain.Candidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.candidates[cand.ID]; !exists {
		return storage.ErrNotFound
	}

	cand.UpdatedAt = time.Now().UTC()
	cp := *cand
	s.candidates[cand.ID] = &cp
	return nil
}

func (s *Store) ListCandidates(ctx context.Context, jobID string) ([]*domain.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Candidate
	for _, cand := range s.candidates {
		if jobID != "" && cand.JobID != jobID {
			continue
		}
		cp := *cand
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) GetScore(ctx context.Context, candidateID string) (*domain.ScoreRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.scores[candidateID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *Store) ListScoresByJob(ctx context.Context, jobID string) ([]*domain.ScoreRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.ScoreRecord
	for _, rec := range s.scores {
		if rec.JobID != jobID {
			continue
		}
		cp := *rec
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		fi, fj := out[i].FinalScore, out[j].FinalScore
		switch {
		case fi == nil:
			return false
		case fj == nil:
			return true
		default:
			return *fi > *fj
		}
	})
	return out, nil
}

func (s *Store) SetMatcherScore(ctx context.Context, candidateID, jobID string, score float64, breakdown map[string]float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.ensureScoreLocked(candidateID, jobID)
	rec.MatcherScore = &score
	rec.Breakdown = breakdown
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) SetInterviewScore(ctx context.Context, candidateID, jobID string, score float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.ensureScoreLocked(candidateID, jobID)
	rec.InterviewScore = &score
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) SetFinalScore(ctx context.Context, candidateID, jobID string, score float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.ensureScoreLocked(candidateID, jobID)
	rec.FinalScore = &score
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) ensureScoreLocked(candidateID, jobID string) *domain.ScoreRecord {
	rec, exists := s.scores[candidateID]
	if !exists {
		rec = &domain.ScoreRecord{CandidateID: candidateID, JobID: jobID}
		s.scores[candidateID] = rec
	}
	return rec
}

func (s *Store) CreateSession(ctx context.Context, sess *interview.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[sess.ID]; exists {
		return fmt.Errorf("session %s already exists", sess.ID)
	}
	s.sessions[sess.ID] = sess.Clone()
	return nil
}

func (s *Store) GetSession(ctx context.Context, id string) (*interview.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, exists := s.sessions[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return sess.Clone(), nil
}

// ReplaceSession swaps the whole session document in one step.
func (s *Store) ReplaceSession(ctx context.Context, sess *interview.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[sess.ID]; !exists {
		return storage.ErrNotFound
	}
	s.sessions[sess.ID] = sess.Clone()
	return nil
}

func (s *Store) ListSessions(ctx context.Context, opts interview.ListOptions) ([]*interview.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*interview.Session
	for _, sess := range s.sessions {
		if opts.CandidateID != "" && sess.CandidateID != opts.CandidateID {
			continue
		}
		if opts.JobID != "" && sess.JobID != opts.JobID {
			continue
		}
		out = append(out, sess.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	start := opts.Offset
	if start >= len(out) {
		return []*interview.Session{}, nil
	}
	end := start + opts.Limit
	if opts.Limit == 0 || end > len(out) {
		end = len(out)
	}
	return out[start:end], nil
}

// Append adds one stage record. Each append is independent, so a plain
// lock around the slice keeps the log linearizable.
func (s *Store) Append(ctx context.Context, rec *audit.StageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *rec
	s.records = append(s.records, &cp)
	return nil
}

func (s *Store) ListByTrace(ctx context.Context, traceID string) ([]*audit.StageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*audit.StageRecord
	for _, rec := range s.records {
		if rec.TraceID != traceID {
			continue
		}
		cp := *rec
		out = append(out, &cp)
	}
	return out, nil
}
