package interview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hirepath/hirepath/internal/audit"
	"github.com/hirepath/hirepath/internal/domain"
	"github.com/hirepath/hirepath/internal/oracle"
	"github.com/hirepath/hirepath/internal/scoring"
	"github.com/hirepath/hirepath/internal/stage"
	"github.com/hirepath/hirepath/internal/storage"
	"github.com/hirepath/hirepath/internal/trace"

	"github.com/google/uuid"
)

// Stage names used for interview oracle calls in audit records.
const (
	StageGenerateQuestion = "generate_question"
	StageEvaluateAnswer   = "evaluate_answer"
)

// Difficulty directives handed to the question generator.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// EarlyStop optionally terminates a session before the question budget
// is exhausted when the rolling mean falls below a floor. Disabled by
// default; completion at question-count exhaustion is the baseline
// behavior.
type EarlyStop struct {
	Enabled      bool
	MinQuestions int
	ScoreFloor   float64
}

// Config bounds the machine's oracle calls.
type Config struct {
	// OracleTimeout is the deadline for each generation or evaluation
	// call.
	OracleTimeout time.Duration
	// MaxAttempts bounds transient-failure retries of evaluation.
	MaxAttempts int
	EarlyStop   EarlyStop
}

func (c Config) withDefaults() Config {
	if c.OracleTimeout <= 0 {
		c.OracleTimeout = 60 * time.Second
	}
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 3
	}
	return c
}

// Turn is the outcome of one advance call.
type Turn struct {
	SessionID         string                 `json:"session_id"`
	Question          string                 `json:"question,omitempty"`
	QuestionIndex     int                    `json:"question_index"`
	IsComplete        bool                   `json:"is_complete"`
	Answered          *domain.QuestionAnswer `json:"answered,omitempty"`
	OverallScore      *float64               `json:"overall_score,omitempty"`
	OverallAssessment string                 `json:"overall_assessment,omitempty"`
}

// Machine drives interview sessions. All mutation of a session goes
// through Advance under a per-session lock; the store only ever sees
// fully-committed turns.
type Machine struct {
	store      Store
	candidates storage.CandidateStore
	jobs       storage.JobStore
	scores     storage.ScoreStore

	generator  oracle.QuestionGenerator
	evaluator  oracle.AnswerEvaluator
	aggregator *scoring.Aggregator

	genStage  *stage.Adapter
	evalStage *stage.Adapter
	recorder  *audit.Recorder

	locks  *keyedLocks
	cfg    Config
	logger *slog.Logger
}

// NewMachine wires a machine over its collaborators.
func NewMachine(
	store Store,
	candidates storage.CandidateStore,
	jobs storage.JobStore,
	scores storage.ScoreStore,
	generator oracle.QuestionGenerator,
	evaluator oracle.AnswerEvaluator,
	aggregator *scoring.Aggregator,
	recorder *audit.Recorder,
	cfg Config,
	logger *slog.Logger,
) *Machine {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	return &Machine{
		store:      store,
		candidates: candidates,
		jobs:       jobs,
		scores:     scores,
		generator:  generator,
		evaluator:  evaluator,
		aggregator: aggregator,
		genStage:   stage.NewAdapter(StageGenerateQuestion, cfg.OracleTimeout, recorder),
		evalStage:  stage.NewAdapter(StageEvaluateAnswer, cfg.OracleTimeout, recorder),
		recorder:   recorder,
		locks:      newKeyedLocks(),
		cfg:        cfg,
		logger:     logger,
	}
}

// Start creates a session and generates its first question. No session
// is persisted when validation or generation fails.
func (m *Machine) Start(ctx context.Context, candidateID, jobID string, maxQuestions int, interviewType string) (*Session, error) {
	if maxQuestions <= 0 {
		return nil, &Error{Code: ErrInvalidConfig, Err: fmt.Errorf("max_questions must be positive, got %d", maxQuestions)}
	}
	if interviewType == "" {
		interviewType = "technical"
	}

	ctx, tc := trace.Ensure(ctx)

	cand, job, err := m.loadPair(ctx, candidateID, jobID)
	if err != nil {
		return nil, err
	}

	question, err := m.generate(ctx, tc, oracle.GenerationInput{
		Job:        job,
		Profile:    cand.Profile,
		History:    nil,
		Difficulty: DifficultyMedium,
		Type:       interviewType,
	})
	if err != nil {
		return nil, &Error{Code: ErrGenerationFailed, Err: err}
	}

	now := time.Now().UTC()
	session := &Session{
		ID:                  "sess_" + uuid.New().String(),
		CandidateID:         candidateID,
		JobID:               jobID,
		InterviewType:       interviewType,
		MaxQuestions:        maxQuestions,
		Status:              StatusActive,
		QuestionsAndAnswers: []domain.QuestionAnswer{},
		Context:             SessionContext{Difficulty: DifficultyMedium},
		PendingQuestion:     question,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if err := m.store.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}

	m.logger.Info("interview started",
		slog.String("trace_id", tc.TraceID),
		slog.String("session_id", session.ID),
		slog.String("candidate_id", candidateID),
		slog.String("job_id", jobID),
		slog.Int("max_questions", maxQuestions),
	)

	return session.Clone(), nil
}

// Advance commits one turn: evaluate the answer to the pending
// question, append it to history, then either complete the session or
// generate the next question. The session document is replaced only
// after the whole turn succeeded, so a failed attempt leaves the store
// exactly as it was and the same answer can be resubmitted.
func (m *Machine) Advance(ctx context.Context, sessionID, answer string) (*Turn, error) {
	unlock := m.locks.Lock(sessionID)
	defer unlock()

	ctx, tc := trace.Ensure(ctx)

	stored, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, &Error{Code: ErrNotFound, SessionID: sessionID, Err: err}
		}
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	if stored.IsCompleted() {
		return nil, &Error{Code: ErrAlreadyCompleted, SessionID: sessionID, Err: errors.New("session already completed")}
	}

	_, job, err := m.loadPair(ctx, stored.CandidateID, stored.JobID)
	if err != nil {
		return nil, err
	}

	session := stored.Clone()

	eval, err := m.evaluate(ctx, tc, oracle.EvaluationInput{
		Question: session.PendingQuestion,
		Answer:   answer,
		Job:      job,
		History:  session.QuestionsAndAnswers,
	})
	if err != nil {
		return nil, &Error{Code: ErrEvaluationFailed, SessionID: sessionID, Err: err}
	}

	qa := domain.QuestionAnswer{
		Question:    session.PendingQuestion,
		Answer:      answer,
		Score:       domain.Clamp01(eval.Score),
		Explanation: eval.Explanation,
		Timestamp:   time.Now().UTC(),
	}
	session.QuestionsAndAnswers = append(session.QuestionsAndAnswers, qa)
	session.CurrentQuestionIndex++
	session.UpdatedAt = time.Now().UTC()
	m.updateContext(session, eval)

	if m.shouldComplete(session) {
		return m.complete(ctx, tc, session)
	}

	next, err := m.generate(ctx, tc, oracle.GenerationInput{
		Job:        job,
		Profile:    nil,
		History:    session.QuestionsAndAnswers,
		Difficulty: session.Context.Difficulty,
		Type:       session.InterviewType,
	})
	if err != nil {
		// Nothing was committed: the stored session still holds the
		// previous turn, so the client can retry the same answer.
		return nil, &Error{Code: ErrGenerationFailed, SessionID: sessionID, Err: err}
	}

	session.PendingQuestion = next
	if err := m.store.ReplaceSession(ctx, session); err != nil {
		return nil, fmt.Errorf("persist session %s: %w", sessionID, err)
	}

	return &Turn{
		SessionID:     session.ID,
		Question:      next,
		QuestionIndex: session.CurrentQuestionIndex,
		IsComplete:    false,
		Answered:      &qa,
	}, nil
}

// Get returns a snapshot of the session.
func (m *Machine) Get(ctx context.Context, sessionID string) (*Session, error) {
	s, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, &Error{Code: ErrNotFound, SessionID: sessionID, Err: err}
		}
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	return s.Clone(), nil
}

// List returns session snapshots matching opts.
func (m *Machine) List(ctx context.Context, opts ListOptions) ([]*Session, error) {
	return m.store.ListSessions(ctx, opts)
}

func (m *Machine) loadPair(ctx context.Context, candidateID, jobID string) (*domain.Candidate, *domain.Job, error) {
	cand, err := m.candidates.GetCandidate(ctx, candidateID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, &Error{Code: ErrNotFound, Err: fmt.Errorf("candidate %s not found", candidateID)}
		}
		return nil, nil, fmt.Errorf("load candidate %s: %w", candidateID, err)
	}

	job, err := m.jobs.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, &Error{Code: ErrNotFound, Err: fmt.Errorf("job %s not found", jobID)}
		}
		return nil, nil, fmt.Errorf("load job %s: %w", jobID, err)
	}

	return cand, job, nil
}

// generate asks the question oracle and validates its output. An empty
// or failed generation is retried exactly once; both attempts are
// audited.
func (m *Machine) generate(ctx context.Context, tc trace.Context, in oracle.GenerationInput) (string, error) {
	var question string
	gen := func(ctx context.Context) error {
		q, err := m.generator.GenerateQuestion(ctx, in)
		if err != nil {
			return err
		}
		if strings.TrimSpace(q) == "" {
			return oracle.Permanent(StageGenerateQuestion, errors.New("oracle returned an empty question"))
		}
		question = strings.TrimSpace(q)
		return nil
	}

	err := m.genStage.Execute(ctx, tc, gen)
	if err != nil && ctx.Err() == nil {
		err = m.genStage.Execute(ctx, tc, gen)
	}
	if err != nil {
		return "", err
	}
	return question, nil
}

// evaluate asks the answer oracle, retrying transient failures up to
// the configured attempt budget.
func (m *Machine) evaluate(ctx context.Context, tc trace.Context, in oracle.EvaluationInput) (*oracle.Evaluation, error) {
	var eval *oracle.Evaluation
	err := m.evalStage.ExecuteRetry(ctx, tc, m.cfg.MaxAttempts, func(ctx context.Context) error {
		e, err := m.evaluator.Evaluate(ctx, in)
		if err != nil {
			return err
		}
		eval = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return eval, nil
}

// updateContext folds an evaluation into the session's derived state.
func (m *Machine) updateContext(s *Session, eval *oracle.Evaluation) {
	var sum float64
	for _, qa := range s.QuestionsAndAnswers {
		sum += qa.Score
	}
	s.Context.RunningMean = sum / float64(len(s.QuestionsAndAnswers))

	switch {
	case s.Context.RunningMean >= 0.75:
		s.Context.Difficulty = DifficultyHard
	case s.Context.RunningMean >= 0.4:
		s.Context.Difficulty = DifficultyMedium
	default:
		s.Context.Difficulty = DifficultyEasy
	}

	topic := strings.TrimSpace(eval.Topic)
	if topic == "" {
		return
	}
	for _, t := range s.Context.TopicsCovered {
		if strings.EqualFold(t, topic) {
			return
		}
	}
	s.Context.TopicsCovered = append(s.Context.TopicsCovered, topic)
}

func (m *Machine) shouldComplete(s *Session) bool {
	if s.CurrentQuestionIndex >= s.MaxQuestions {
		return true
	}
	es := m.cfg.EarlyStop
	if es.Enabled && s.CurrentQuestionIndex >= es.MinQuestions && s.Context.RunningMean < es.ScoreFloor {
		return true
	}
	return false
}

// complete transitions the session to its terminal state, computing
// the overall interview score from the full history.
func (m *Machine) complete(ctx context.Context, tc trace.Context, session *Session) (*Turn, error) {
	overall := m.aggregator.InterviewScore(session.TurnScores())
	assessment := m.aggregator.Assessment(overall)

	now := time.Now().UTC()
	session.Status = StatusCompleted
	session.PendingQuestion = ""
	session.OverallScore = &overall
	session.OverallAssessment = assessment
	session.CompletedAt = &now
	session.UpdatedAt = now

	if err := m.store.ReplaceSession(ctx, session); err != nil {
		return nil, fmt.Errorf("persist session %s: %w", session.ID, err)
	}

	// Terminal audit record for the session as a whole.
	rec := audit.Begin(tc, "interview_complete")
	m.recorder.Record(ctx, rec.Finish(nil))

	// The session document is the source of truth; a failed score-row
	// update is logged and recomputed at aggregation time.
	if err := m.scores.SetInterviewScore(ctx, session.CandidateID, session.JobID, overall); err != nil {
		m.logger.Error("failed to persist interview score",
			slog.String("session_id", session.ID),
			slog.String("candidate_id", session.CandidateID),
			slog.String("error", err.Error()),
		)
	}

	m.logger.Info("interview completed",
		slog.String("trace_id", tc.TraceID),
		slog.String("session_id", session.ID),
		slog.Int("questions", session.CurrentQuestionIndex),
		slog.Float64("overall_score", overall),
	)

	answered := session.QuestionsAndAnswers[len(session.QuestionsAndAnswers)-1]
	return &Turn{
		SessionID:         session.ID,
		QuestionIndex:     session.CurrentQuestionIndex,
		IsComplete:        true,
		Answered:          &answered,
		OverallScore:      &overall,
		OverallAssessment: assessment,
	}, nil
}
