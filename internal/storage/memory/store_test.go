package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/hirepath/hirepath/internal/audit"
	"github.com/hirepath/hirepath/internal/domain"
	"github.com/hirepath/hirepath/internal/interview"
	"github.com/hirepath/hirepath/internal/storage"
	"github.com/hirepath/hirepath/internal/trace"
)

func TestJobRoundTrip(t *testing.T) {
	s := New()
	ctx := context.Background()

	job := &domain.Job{ID: "job_1", Title: "Backend Engineer"}
	if err := s.CreateJob(ctx, job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.CreateJob(ctx, job); err == nil {
		t.Error("expected duplicate create to fail")
	}

	got, err := s.GetJob(ctx, "job_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Title != "Backend Engineer" {
		t.Errorf("unexpected title %q", got.Title)
	}
	if got.CreatedAt.IsZero() {
		t.Error("expected CreatedAt stamped")
	}

	// Reads are copies; mutating one must not affect the store.
	got.Title = "mutated"
	again, _ := s.GetJob(ctx, "job_1")
	if again.Title != "Backend Engineer" {
		t.Error("expected stored job unaffected by caller mutation")
	}

	if _, err := s.GetJob(ctx, "job_missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCandidateUpdate(t *testing.T) {
	s := New()
	ctx := context.Background()

	cand := &domain.Candidate{ID: "cand_1", JobID: "job_1"}
	if err := s.CreateCandidate(ctx, cand); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := s.GetCandidate(ctx, "cand_1")
	if got.Status != domain.CandidateUploaded {
		t.Errorf("expected default status uploaded, got %s", got.Status)
	}

	got.Status = domain.CandidateProcessed
	got.Profile = &domain.CandidateProfile{Name: "Ada"}
	if err := s.UpdateCandidate(ctx, got); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	updated, _ := s.GetCandidate(ctx, "cand_1")
	if updated.Status != domain.CandidateProcessed || updated.Profile == nil {
		t.Errorf("expected update persisted, got %+v", updated)
	}

	missing := &domain.Candidate{ID: "cand_missing"}
	if err := s.UpdateCandidate(ctx, missing); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListCandidatesByJob(t *testing.T) {
	s := New()
	ctx := context.Background()

	s.CreateCandidate(ctx, &domain.Candidate{ID: "cand_1", JobID: "job_1"})
	s.CreateCandidate(ctx, &domain.Candidate{ID: "cand_2", JobID: "job_2"})

	got, err := s.ListCandidates(ctx, "job_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ID != "cand_1" {
		t.Errorf("unexpected candidates %+v", got)
	}

	all, _ := s.ListCandidates(ctx, "")
	if len(all) != 2 {
		t.Errorf("expected 2 candidates without filter, got %d", len(all))
	}
}

func TestScoreComponentsIndependent(t *testing.T) {
	s := New()
	ctx := context.Background()

	if _, err := s.GetScore(ctx, "cand_1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound before any component, got %v", err)
	}

	if err := s.SetMatcherScore(ctx, "cand_1", "job_1", 0.7, map[string]float64{"match": 0.7}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.SetInterviewScore(ctx, "cand_1", "job_1", 0.9); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.SetFinalScore(ctx, "cand_1", "job_1", 0.82); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec, err := s.GetScore(ctx, "cand_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.MatcherScore == nil || *rec.MatcherScore != 0.7 {
		t.Errorf("unexpected matcher score %+v", rec.MatcherScore)
	}
	if rec.InterviewScore == nil || *rec.InterviewScore != 0.9 {
		t.Errorf("unexpected interview score %+v", rec.InterviewScore)
	}
	if rec.FinalScore == nil || *rec.FinalScore != 0.82 {
		t.Errorf("unexpected final score %+v", rec.FinalScore)
	}
}

func TestListScoresByJobRanking(t *testing.T) {
	s := New()
	ctx := context.Background()

	s.SetFinalScore(ctx, "cand_low", "job_1", 0.4)
	s.SetFinalScore(ctx, "cand_high", "job_1", 0.9)
	s.SetMatcherScore(ctx, "cand_pending", "job_1", 0.5, nil)
	s.SetFinalScore(ctx, "cand_other", "job_2", 0.99)

	got, err := s.ListScoresByJob(ctx, "job_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(got))
	}
	if got[0].CandidateID != "cand_high" || got[1].CandidateID != "cand_low" {
		t.Errorf("expected highest final score first, got %s, %s", got[0].CandidateID, got[1].CandidateID)
	}
	if got[2].CandidateID != "cand_pending" || got[2].FinalScore != nil {
		t.Errorf("expected unscored row last, got %+v", got[2])
	}
}

func TestSessionReplaceIsWholeDocument(t *testing.T) {
	s := New()
	ctx := context.Background()

	sess := &interview.Session{ID: "sess_1", CandidateID: "cand_1", JobID: "job_1", Status: interview.StatusActive}
	if err := s.CreateSession(ctx, sess); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	next := sess.Clone()
	next.CurrentQuestionIndex = 1
	next.QuestionsAndAnswers = []domain.QuestionAnswer{{Question: "Q1", Answer: "A1", Score: 0.5}}
	if err := s.ReplaceSession(ctx, next); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := s.GetSession(ctx, "sess_1")
	if got.CurrentQuestionIndex != 1 || len(got.QuestionsAndAnswers) != 1 {
		t.Errorf("expected replaced document, got %+v", got)
	}

	ghost := &interview.Session{ID: "sess_missing"}
	if err := s.ReplaceSession(ctx, ghost); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListSessionsFilterAndPage(t *testing.T) {
	s := New()
	ctx := context.Background()

	for _, sess := range []*interview.Session{
		{ID: "sess_1", CandidateID: "cand_1", JobID: "job_1"},
		{ID: "sess_2", CandidateID: "cand_1", JobID: "job_2"},
		{ID: "sess_3", CandidateID: "cand_2", JobID: "job_1"},
	} {
		if err := s.CreateSession(ctx, sess); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	got, err := s.ListSessions(ctx, interview.ListOptions{CandidateID: "cand_1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 sessions for cand_1, got %d", len(got))
	}

	got, _ = s.ListSessions(ctx, interview.ListOptions{CandidateID: "cand_1", JobID: "job_2"})
	if len(got) != 1 || got[0].ID != "sess_2" {
		t.Errorf("unexpected filtered sessions %+v", got)
	}

	got, _ = s.ListSessions(ctx, interview.ListOptions{Limit: 2})
	if len(got) != 2 {
		t.Errorf("expected limit honored, got %d", len(got))
	}

	got, _ = s.ListSessions(ctx, interview.ListOptions{Offset: 5})
	if len(got) != 0 {
		t.Errorf("expected empty page past the end, got %d", len(got))
	}
}

func TestAuditAppendConcurrent(t *testing.T) {
	s := New()
	tc := trace.New()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := audit.Begin(tc, "parse").Finish(nil)
			if err := s.Append(context.Background(), rec); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	got, err := s.ListByTrace(context.Background(), tc.TraceID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 10 {
		t.Errorf("expected 10 records, got %d", len(got))
	}
}
