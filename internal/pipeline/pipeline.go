// Package pipeline sequences the batch evaluation flow: ingestion,
// parsing, matching. Stages run strictly in order, each consuming only
// the previous stage's output, with bounded retry on transient
// failures and one audit record per attempt.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hirepath/hirepath/internal/audit"
	"github.com/hirepath/hirepath/internal/domain"
	"github.com/hirepath/hirepath/internal/oracle"
	"github.com/hirepath/hirepath/internal/stage"
	"github.com/hirepath/hirepath/internal/storage"
	"github.com/hirepath/hirepath/internal/trace"
)

// Stage names surfaced in errors and audit records.
const (
	StageIngestion = "ingestion"
	StageParse     = "parse"
	StageMatch     = "match"
)

// Error identifies exactly which stage a pipeline run failed in.
type Error struct {
	TraceID     string
	FailedStage string
	Err         error
}

func (e *Error) Error() string {
	return fmt.Sprintf("pipeline failed at stage %s (trace %s): %v", e.FailedStage, e.TraceID, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Result is the successful outcome of one batch run. The profile is
// fully populated or the run failed; there is no partial result.
type Result struct {
	TraceID string                   `json:"trace_id"`
	Profile *domain.CandidateProfile `json:"profile"`
	Match   *domain.MatchResult      `json:"match"`
}

// Config bounds stage execution.
type Config struct {
	// MaxAttempts is the per-stage attempt budget for transient
	// failures. Already-succeeded stages are never re-run.
	MaxAttempts int
	// StageTimeout is the deadline applied to each stage attempt.
	StageTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 3
	}
	if c.StageTimeout <= 0 {
		c.StageTimeout = 60 * time.Second
	}
	return c
}

// Orchestrator runs the batch flow for one candidate submission.
// Independent runs are fully parallel; each run is sequential.
type Orchestrator struct {
	extractor oracle.TextExtractor
	parser    oracle.ResumeParser
	matcher   oracle.JobMatcher

	candidates storage.CandidateStore
	jobs       storage.JobStore
	scores     storage.ScoreStore

	cfg    Config
	stages map[string]*stage.Adapter
	logger *slog.Logger
}

// New creates an orchestrator over the given oracles and stores.
func New(
	extractor oracle.TextExtractor,
	parser oracle.ResumeParser,
	matcher oracle.JobMatcher,
	candidates storage.CandidateStore,
	jobs storage.JobStore,
	scores storage.ScoreStore,
	recorder *audit.Recorder,
	cfg Config,
	logger *slog.Logger,
) *Orchestrator {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	stages := make(map[string]*stage.Adapter)
	for _, name := range []string{StageIngestion, StageParse, StageMatch} {
		stages[name] = stage.NewAdapter(name, cfg.StageTimeout, recorder)
	}

	return &Orchestrator{
		extractor:  extractor,
		parser:     parser,
		matcher:    matcher,
		candidates: candidates,
		jobs:       jobs,
		scores:     scores,
		cfg:        cfg,
		stages:     stages,
		logger:     logger,
	}
}

// state accumulates stage outputs for one run. Each step reads only
// what the previous step produced.
type state struct {
	doc     oracle.RawDocument
	text    string
	profile *domain.CandidateProfile
	match   *domain.MatchResult
}

// step is one ordered unit of the batch flow.
type step struct {
	name string
	run  func(ctx context.Context, st *state) error
}

// Run executes ingestion, parse, and match for the given job and raw
// submission. On failure it returns *Error naming the failed stage and
// no partial profile.
func (o *Orchestrator) Run(ctx context.Context, job *domain.Job, doc oracle.RawDocument) (*Result, error) {
	ctx, tc := trace.Ensure(ctx)

	st := &state{doc: doc}
	steps := []step{
		{StageIngestion, func(ctx context.Context, st *state) error {
			text, err := o.extractor.ExtractText(ctx, st.doc)
			if err != nil {
				return err
			}
			st.text = text
			return nil
		}},
		{StageParse, func(ctx context.Context, st *state) error {
			profile, err := o.parser.Parse(ctx, st.text)
			if err != nil {
				return err
			}
			st.profile = profile
			return nil
		}},
		{StageMatch, func(ctx context.Context, st *state) error {
			match, err := o.matcher.Match(ctx, st.profile, job)
			if err != nil {
				return err
			}
			st.match = match
			return nil
		}},
	}

	for _, s := range steps {
		adapter := o.stages[s.name]
		run := s.run
		err := adapter.ExecuteRetry(ctx, tc, o.cfg.MaxAttempts, func(ctx context.Context) error {
			return run(ctx, st)
		})
		if err != nil {
			o.logger.Error("pipeline aborted",
				slog.String("trace_id", tc.TraceID),
				slog.String("stage", s.name),
				slog.String("error", err.Error()),
			)
			return nil, &Error{TraceID: tc.TraceID, FailedStage: s.name, Err: err}
		}
	}

	return &Result{TraceID: tc.TraceID, Profile: st.profile, Match: st.match}, nil
}

// ProcessCandidate loads the candidate and its job, runs the batch
// flow over the candidate's resume, and persists the parsed profile
// and match score. The candidate record is only updated after the
// whole run succeeded.
func (o *Orchestrator) ProcessCandidate(ctx context.Context, candidateID string) (*Result, error) {
	cand, err := o.candidates.GetCandidate(ctx, candidateID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("candidate %s: %w", candidateID, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("load candidate %s: %w", candidateID, err)
	}

	job, err := o.jobs.GetJob(ctx, cand.JobID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("job %s: %w", cand.JobID, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("load job %s: %w", cand.JobID, err)
	}

	doc := oracle.RawDocument{
		Filename: candidateID + ".txt",
		Content:  []byte(cand.ResumeText),
	}

	result, err := o.Run(ctx, job, doc)
	if err != nil {
		return nil, err
	}

	cand.Profile = result.Profile
	cand.Status = domain.CandidateProcessed
	if err := o.candidates.UpdateCandidate(ctx, cand); err != nil {
		return nil, fmt.Errorf("persist candidate profile: %w", err)
	}

	breakdown := map[string]float64{"match": result.Match.Score}
	if err := o.scores.SetMatcherScore(ctx, cand.ID, job.ID, result.Match.Score, breakdown); err != nil {
		return nil, fmt.Errorf("persist matcher score: %w", err)
	}

	o.logger.Info("candidate processed",
		slog.String("trace_id", result.TraceID),
		slog.String("candidate_id", cand.ID),
		slog.String("job_id", job.ID),
		slog.Float64("match_score", result.Match.Score),
	)

	return result, nil
}
