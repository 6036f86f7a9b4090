package interview_test

import (
	"context"
	"errors"
	"testing"

	"github.com/hirepath/hirepath/internal/audit"
	"github.com/hirepath/hirepath/internal/domain"
	. "github.com/hirepath/hirepath/internal/interview"
	"github.com/hirepath/hirepath/internal/oracle"
	"github.com/hirepath/hirepath/internal/scoring"
	"github.com/hirepath/hirepath/internal/storage/memory"
)

type fakeGenerator struct {
	questions []string
	errs      []error
	calls     int
}

func (f *fakeGenerator) GenerateQuestion(ctx context.Context, in oracle.GenerationInput) (string, error) {
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return "", err
		}
	}
	q := "Tell me about your experience."
	if len(f.questions) > 0 {
		q = f.questions[0]
		f.questions = f.questions[1:]
	}
	return q, nil
}

type fakeEvaluator struct {
	evals []*oracle.Evaluation
	err   error
	calls int
}

func (f *fakeEvaluator) Evaluate(ctx context.Context, in oracle.EvaluationInput) (*oracle.Evaluation, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if len(f.evals) > 0 {
		e := f.evals[0]
		f.evals = f.evals[1:]
		return e, nil
	}
	return &oracle.Evaluation{Score: 0.7, Explanation: "adequate"}, nil
}

func mustCode(t *testing.T, err error) ErrorCode {
	t.Helper()
	code, ok := CodeOf(err)
	if !ok {
		t.Fatalf("expected a session error, got %v", err)
	}
	return code
}

type fixture struct {
	store     *memory.Store
	generator *fakeGenerator
	evaluator *fakeEvaluator
	machine   *Machine
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()

	store := memory.New()
	ctx := context.Background()

	job := &domain.Job{ID: "job_1", Title: "Backend Engineer"}
	if err := store.CreateJob(ctx, job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cand := &domain.Candidate{
		ID:     "cand_1",
		JobID:  job.ID,
		Name:   "Ada Lovelace",
		Status: domain.CandidateProcessed,
		Profile: &domain.CandidateProfile{
			Name:   "Ada Lovelace",
			Skills: []string{"go"},
		},
	}
	if err := store.CreateCandidate(ctx, cand); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	generator := &fakeGenerator{}
	evaluator := &fakeEvaluator{}
	machine := NewMachine(
		store,
		store,
		store,
		store,
		generator,
		evaluator,
		scoring.New(scoring.DefaultWeights, scoring.MethodMean),
		audit.NewRecorder(store, nil),
		cfg,
		nil,
	)

	return &fixture{store: store, generator: generator, evaluator: evaluator, machine: machine}
}

func TestStartCreatesActiveSession(t *testing.T) {
	f := newFixture(t, Config{})
	f.generator.questions = []string{"What is a goroutine?"}

	session, err := f.machine.Start(context.Background(), "cand_1", "job_1", 3, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if session.Status != StatusActive {
		t.Errorf("expected active session, got %s", session.Status)
	}
	if session.InterviewType != "technical" {
		t.Errorf("expected default interview type technical, got %s", session.InterviewType)
	}
	if session.PendingQuestion != "What is a goroutine?" {
		t.Errorf("unexpected pending question %q", session.PendingQuestion)
	}
	if session.CurrentQuestionIndex != 0 {
		t.Errorf("expected question index 0, got %d", session.CurrentQuestionIndex)
	}

	stored, err := f.store.GetSession(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("expected session persisted: %v", err)
	}
	if stored.PendingQuestion != session.PendingQuestion {
		t.Error("expected persisted session to match returned snapshot")
	}
}

func TestStartRejectsNonPositiveMaxQuestions(t *testing.T) {
	f := newFixture(t, Config{})

	for _, n := range []int{0, -1} {
		_, err := f.machine.Start(context.Background(), "cand_1", "job_1", n, "")
		if mustCode(t, err) != ErrInvalidConfig {
			t.Errorf("max_questions=%d: expected invalid_config, got %v", n, err)
		}
	}
}

func TestStartUnknownCandidate(t *testing.T) {
	f := newFixture(t, Config{})

	_, err := f.machine.Start(context.Background(), "cand_missing", "job_1", 3, "")
	if mustCode(t, err) != ErrNotFound {
		t.Fatalf("expected not_found, got %v", err)
	}
	if f.generator.calls != 0 {
		t.Errorf("expected no generation for unknown candidate, got %d calls", f.generator.calls)
	}
}

func TestStartGenerationFailureRetriedOnceThenNoSession(t *testing.T) {
	f := newFixture(t, Config{})
	f.generator.errs = []error{
		oracle.Transient("generate_question", errors.New("overloaded")),
		oracle.Transient("generate_question", errors.New("overloaded")),
	}

	_, err := f.machine.Start(context.Background(), "cand_1", "job_1", 3, "")
	if mustCode(t, err) != ErrGenerationFailed {
		t.Fatalf("expected generation_failed, got %v", err)
	}
	if f.generator.calls != 2 {
		t.Errorf("expected failed generation retried exactly once, got %d calls", f.generator.calls)
	}

	sessions, _ := f.store.ListSessions(context.Background(), ListOptions{})
	if len(sessions) != 0 {
		t.Errorf("expected no persisted session after failed start, got %d", len(sessions))
	}
}

func TestAdvanceFullInterview(t *testing.T) {
	f := newFixture(t, Config{})
	f.generator.questions = []string{"Q1", "Q2"}
	f.evaluator.evals = []*oracle.Evaluation{
		{Score: 0.9, Explanation: "great", Topic: "concurrency"},
		{Score: 0.7, Explanation: "fine", Topic: "databases"},
	}

	ctx := context.Background()
	session, err := f.machine.Start(ctx, "cand_1", "job_1", 2, "technical")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	turn, err := f.machine.Advance(ctx, session.ID, "channels and goroutines")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if turn.IsComplete {
		t.Fatal("expected interview to continue after first answer")
	}
	if turn.Question != "Q2" {
		t.Errorf("expected next question Q2, got %q", turn.Question)
	}
	if turn.QuestionIndex != 1 {
		t.Errorf("expected question index 1, got %d", turn.QuestionIndex)
	}
	if turn.Answered == nil || turn.Answered.Score != 0.9 {
		t.Errorf("unexpected answered turn: %+v", turn.Answered)
	}

	turn, err = f.machine.Advance(ctx, session.ID, "indexes and transactions")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !turn.IsComplete {
		t.Fatal("expected interview complete after final answer")
	}
	if turn.OverallScore == nil || *turn.OverallScore != 0.8 {
		t.Errorf("expected overall score 0.8, got %+v", turn.OverallScore)
	}
	if turn.OverallAssessment == "" {
		t.Error("expected an assessment on the final turn")
	}

	stored, _ := f.store.GetSession(ctx, session.ID)
	if stored.Status != StatusCompleted {
		t.Errorf("expected completed session, got %s", stored.Status)
	}
	if stored.PendingQuestion != "" {
		t.Errorf("expected no pending question, got %q", stored.PendingQuestion)
	}
	if stored.CompletedAt == nil {
		t.Error("expected CompletedAt set")
	}
	if len(stored.QuestionsAndAnswers) != 2 {
		t.Errorf("expected 2 recorded turns, got %d", len(stored.QuestionsAndAnswers))
	}
	if got := stored.Context.TopicsCovered; len(got) != 2 {
		t.Errorf("expected 2 topics covered, got %v", got)
	}

	// Completion writes the interview component to the score row.
	score, err := f.store.GetScore(ctx, "cand_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if score.InterviewScore == nil || *score.InterviewScore != 0.8 {
		t.Errorf("expected interview score 0.8, got %+v", score.InterviewScore)
	}
}

func TestAdvanceUnknownSession(t *testing.T) {
	f := newFixture(t, Config{})

	_, err := f.machine.Advance(context.Background(), "sess_missing", "answer")
	if mustCode(t, err) != ErrNotFound {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestAdvanceCompletedSessionRejectedWithoutMutation(t *testing.T) {
	f := newFixture(t, Config{})
	f.generator.questions = []string{"Q1"}

	ctx := context.Background()
	session, err := f.machine.Start(ctx, "cand_1", "job_1", 1, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.machine.Advance(ctx, session.ID, "first answer"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	before, _ := f.store.GetSession(ctx, session.ID)

	_, err = f.machine.Advance(ctx, session.ID, "extra answer")
	if mustCode(t, err) != ErrAlreadyCompleted {
		t.Fatalf("expected already_completed, got %v", err)
	}

	after, _ := f.store.GetSession(ctx, session.ID)
	if len(after.QuestionsAndAnswers) != len(before.QuestionsAndAnswers) {
		t.Error("expected no history mutation on rejected advance")
	}
	if !after.UpdatedAt.Equal(before.UpdatedAt) {
		t.Error("expected no timestamp mutation on rejected advance")
	}
}

func TestAdvanceGenerationFailureLeavesSessionRetryable(t *testing.T) {
	f := newFixture(t, Config{})
	f.generator.questions = []string{"Q1"}

	ctx := context.Background()
	session, err := f.machine.Start(ctx, "cand_1", "job_1", 3, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Both generation attempts for the second question fail.
	f.generator.errs = []error{
		oracle.Transient("generate_question", errors.New("overloaded")),
		oracle.Transient("generate_question", errors.New("overloaded")),
	}

	_, err = f.machine.Advance(ctx, session.ID, "my answer")
	if mustCode(t, err) != ErrGenerationFailed {
		t.Fatalf("expected generation_failed, got %v", err)
	}

	// Nothing committed: same answer can be resubmitted.
	stored, _ := f.store.GetSession(ctx, session.ID)
	if len(stored.QuestionsAndAnswers) != 0 {
		t.Errorf("expected no committed turn, got %d", len(stored.QuestionsAndAnswers))
	}
	if stored.CurrentQuestionIndex != 0 {
		t.Errorf("expected question index unchanged, got %d", stored.CurrentQuestionIndex)
	}
	if stored.PendingQuestion != "Q1" {
		t.Errorf("expected pending question unchanged, got %q", stored.PendingQuestion)
	}

	turn, err := f.machine.Advance(ctx, session.ID, "my answer")
	if err != nil {
		t.Fatalf("expected retry of the same answer to succeed, got %v", err)
	}
	if turn.QuestionIndex != 1 {
		t.Errorf("expected question index 1 after retry, got %d", turn.QuestionIndex)
	}
}

func TestAdvanceEvaluationFailure(t *testing.T) {
	f := newFixture(t, Config{})
	f.generator.questions = []string{"Q1"}

	ctx := context.Background()
	session, err := f.machine.Start(ctx, "cand_1", "job_1", 3, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f.evaluator.err = oracle.Permanent("evaluate_answer", errors.New("refused"))
	_, err = f.machine.Advance(ctx, session.ID, "my answer")
	if mustCode(t, err) != ErrEvaluationFailed {
		t.Fatalf("expected evaluation_failed, got %v", err)
	}
	if f.evaluator.calls != 1 {
		t.Errorf("expected permanent evaluation failure not retried, got %d calls", f.evaluator.calls)
	}
}

func TestAdvanceClampsEvaluationScore(t *testing.T) {
	f := newFixture(t, Config{})
	f.generator.questions = []string{"Q1"}
	f.evaluator.evals = []*oracle.Evaluation{{Score: 1.7, Explanation: "exuberant"}}

	ctx := context.Background()
	session, err := f.machine.Start(ctx, "cand_1", "job_1", 1, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	turn, err := f.machine.Advance(ctx, session.ID, "answer")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if turn.Answered.Score != 1.0 {
		t.Errorf("expected score clamped to 1.0, got %f", turn.Answered.Score)
	}
}

func TestDifficultyFollowsRunningMean(t *testing.T) {
	f := newFixture(t, Config{})
	f.generator.questions = []string{"Q1", "Q2", "Q3"}
	f.evaluator.evals = []*oracle.Evaluation{
		{Score: 0.9},
		{Score: 0.1},
	}

	ctx := context.Background()
	session, err := f.machine.Start(ctx, "cand_1", "job_1", 5, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := f.machine.Advance(ctx, session.ID, "strong answer"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stored, _ := f.store.GetSession(ctx, session.ID)
	if stored.Context.Difficulty != DifficultyHard {
		t.Errorf("mean 0.9: expected hard, got %s", stored.Context.Difficulty)
	}

	if _, err := f.machine.Advance(ctx, session.ID, "weak answer"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stored, _ = f.store.GetSession(ctx, session.ID)
	if stored.Context.Difficulty != DifficultyMedium {
		t.Errorf("mean 0.5: expected medium, got %s", stored.Context.Difficulty)
	}
}

func TestEarlyStopCompletesLowScoringSession(t *testing.T) {
	f := newFixture(t, Config{
		EarlyStop: EarlyStop{Enabled: true, MinQuestions: 2, ScoreFloor: 0.3},
	})
	f.generator.questions = []string{"Q1", "Q2", "Q3"}
	f.evaluator.evals = []*oracle.Evaluation{
		{Score: 0.1},
		{Score: 0.1},
	}

	ctx := context.Background()
	session, err := f.machine.Start(ctx, "cand_1", "job_1", 10, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	turn, err := f.machine.Advance(ctx, session.ID, "bad answer")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if turn.IsComplete {
		t.Fatal("expected no early stop before MinQuestions")
	}

	turn, err = f.machine.Advance(ctx, session.ID, "another bad answer")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !turn.IsComplete {
		t.Fatal("expected early stop once floor undershot at MinQuestions")
	}
}

func TestListFiltersByCandidate(t *testing.T) {
	f := newFixture(t, Config{})

	other := &domain.Candidate{ID: "cand_2", JobID: "job_1", Status: domain.CandidateProcessed}
	if err := f.store.CreateCandidate(context.Background(), other); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx := context.Background()
	if _, err := f.machine.Start(ctx, "cand_1", "job_1", 3, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.machine.Start(ctx, "cand_2", "job_1", 3, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sessions, err := f.machine.List(ctx, ListOptions{CandidateID: "cand_1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}
	if sessions[0].CandidateID != "cand_1" {
		t.Errorf("unexpected candidate %s", sessions[0].CandidateID)
	}
}
