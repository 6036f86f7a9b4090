// Package api exposes the core's request/response contracts over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hirepath/hirepath/internal/audit"
	"github.com/hirepath/hirepath/internal/domain"
	"github.com/hirepath/hirepath/internal/interview"
	"github.com/hirepath/hirepath/internal/pipeline"
	"github.com/hirepath/hirepath/internal/scoring"
	"github.com/hirepath/hirepath/internal/server"
	"github.com/hirepath/hirepath/internal/storage"
	"github.com/hirepath/hirepath/internal/trace"
)

// SessionService is the interview engine surface the handlers drive.
// Satisfied by *interview.Machine.
type SessionService interface {
	Start(ctx context.Context, candidateID, jobID string, maxQuestions int, interviewType string) (*interview.Session, error)
	Advance(ctx context.Context, sessionID, answer string) (*interview.Turn, error)
	Get(ctx context.Context, sessionID string) (*interview.Session, error)
	List(ctx context.Context, opts interview.ListOptions) ([]*interview.Session, error)
}

// PipelineService is the batch flow surface. Satisfied by
// *pipeline.Orchestrator.
type PipelineService interface {
	ProcessCandidate(ctx context.Context, candidateID string) (*pipeline.Result, error)
}

// Handler holds the routes' collaborators.
type Handler struct {
	sessions   SessionService
	pipeline   PipelineService
	jobs       storage.JobStore
	candidates storage.CandidateStore
	scores     storage.ScoreStore
	auditLog   audit.Log
	aggregator *scoring.Aggregator
	recorder   *audit.Recorder

	defaultMaxQuestions int
	logger              *slog.Logger
}

// NewHandler wires the HTTP handlers.
func NewHandler(
	sessions SessionService,
	pipe PipelineService,
	jobs storage.JobStore,
	candidates storage.CandidateStore,
	scores storage.ScoreStore,
	auditLog audit.Log,
	aggregator *scoring.Aggregator,
	recorder *audit.Recorder,
	defaultMaxQuestions int,
	logger *slog.Logger,
) *Handler {
	if defaultMaxQuestions <= 0 {
		defaultMaxQuestions = 5
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		sessions:            sessions,
		pipeline:            pipe,
		jobs:                jobs,
		candidates:          candidates,
		scores:              scores,
		auditLog:            auditLog,
		aggregator:          aggregator,
		recorder:            recorder,
		defaultMaxQuestions: defaultMaxQuestions,
		logger:              logger,
	}
}

// Routes registers all endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		r.Post("/jobs", h.handleCreateJob)
		r.Get("/jobs", h.handleListJobs)
		r.Get("/jobs/{jobID}", h.handleGetJob)
		r.Get("/jobs/{jobID}/scores", h.handleListJobScores)

		r.Post("/candidates", h.handleCreateCandidate)
		r.Get("/candidates", h.handleListCandidates)
		r.Get("/candidates/{candidateID}", h.handleGetCandidate)
		r.Post("/candidates/{candidateID}/process", h.handleProcessCandidate)
		r.Get("/candidates/{candidateID}/score", h.handleGetScore)

		r.Post("/interviews", h.handleStartInterview)
		r.Get("/interviews", h.handleListInterviews)
		r.Get("/interviews/{sessionID}", h.handleGetInterview)
		r.Post("/interviews/{sessionID}/answers", h.handleAdvanceInterview)

		r.Post("/scores/aggregate", h.handleAggregateScore)

		r.Get("/audit", h.handleListAudit)
	})
}

type createJobRequest struct {
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Criteria    domain.JobCriteria `json:"criteria"`
}

func (h *Handler) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "title is required")
		return
	}

	job := &domain.Job{
		ID:          "job_" + uuid.New().String(),
		Title:       req.Title,
		Description: req.Description,
		Criteria:    req.Criteria,
	}
	if err := h.jobs.CreateJob(r.Context(), job); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, job)
}

func (h *Handler) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.jobs.ListJobs(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (h *Handler) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobs.GetJob(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

type createCandidateRequest struct {
	JobID      string `json:"job_id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	ResumeText string `json:"resume_text"`
}

func (h *Handler) handleCreateCandidate(w http.ResponseWriter, r *http.Request) {
	var req createCandidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.JobID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "job_id is required")
		return
	}
	if _, err := h.jobs.GetJob(r.Context(), req.JobID); err != nil {
		h.fail(w, r, err)
		return
	}

	cand := &domain.Candidate{
		ID:         "cand_" + uuid.New().String(),
		JobID:      req.JobID,
		Name:       req.Name,
		Email:      req.Email,
		ResumeText: req.ResumeText,
		Status:     domain.CandidateUploaded,
	}
	if err := h.candidates.CreateCandidate(r.Context(), cand); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, cand)
}

func (h *Handler) handleListCandidates(w http.ResponseWriter, r *http.Request) {
	cands, err := h.candidates.ListCandidates(r.Context(), r.URL.Query().Get("job_id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cands)
}

func (h *Handler) handleGetCandidate(w http.ResponseWriter, r *http.Request) {
	cand, err := h.candidates.GetCandidate(r.Context(), chi.URLParam(r, "candidateID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cand)
}

func (h *Handler) handleProcessCandidate(w http.ResponseWriter, r *http.Request) {
	candidateID := chi.URLParam(r, "candidateID")
	server.AddLogField(r.Context(), "candidate_id", candidateID)

	result, err := h.pipeline.ProcessCandidate(r.Context(), candidateID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleGetScore(w http.ResponseWriter, r *http.Request) {
	rec, err := h.scores.GetScore(r.Context(), chi.URLParam(r, "candidateID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) handleListJobScores(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if _, err := h.jobs.GetJob(r.Context(), jobID); err != nil {
		h.fail(w, r, err)
		return
	}

	recs, err := h.scores.ListScoresByJob(r.Context(), jobID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

type startInterviewRequest struct {
	CandidateID   string `json:"candidate_id"`
	JobID         string `json:"job_id"`
	MaxQuestions  *int   `json:"max_questions"`
	InterviewType string `json:"interview_type"`
}

type startInterviewResponse struct {
	SessionID     string `json:"session_id"`
	FirstQuestion string `json:"first_question"`
	QuestionIndex int    `json:"question_index"`
	IsComplete    bool   `json:"is_complete"`
}

func (h *Handler) handleStartInterview(w http.ResponseWriter, r *http.Request) {
	var req startInterviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.CandidateID == "" || req.JobID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "candidate_id and job_id are required")
		return
	}

	// Only an absent field gets the default; zero and negative values
	// are rejected by the machine as invalid configuration.
	maxQuestions := h.defaultMaxQuestions
	if req.MaxQuestions != nil {
		maxQuestions = *req.MaxQuestions
	}

	session, err := h.sessions.Start(r.Context(), req.CandidateID, req.JobID, maxQuestions, req.InterviewType)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	server.AddLogField(r.Context(), "session_id", session.ID)
	writeJSON(w, http.StatusCreated, startInterviewResponse{
		SessionID:     session.ID,
		FirstQuestion: session.PendingQuestion,
		QuestionIndex: session.CurrentQuestionIndex,
		IsComplete:    false,
	})
}

type advanceInterviewRequest struct {
	Answer string `json:"answer"`
}

func (h *Handler) handleAdvanceInterview(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	server.AddLogField(r.Context(), "session_id", sessionID)

	var req advanceInterviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	turn, err := h.sessions.Advance(r.Context(), sessionID, req.Answer)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, turn)
}

func (h *Handler) handleGetInterview(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.Get(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *Handler) handleListInterviews(w http.ResponseWriter, r *http.Request) {
	opts := interview.ListOptions{
		CandidateID: r.URL.Query().Get("candidate_id"),
		JobID:       r.URL.Query().Get("job_id"),
	}
	sessions, err := h.sessions.List(r.Context(), opts)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

type aggregateScoreRequest struct {
	SessionID string `json:"session_id"`
}

func (h *Handler) handleAggregateScore(w http.ResponseWriter, r *http.Request) {
	var req aggregateScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "session_id is required")
		return
	}

	session, err := h.sessions.Get(r.Context(), req.SessionID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	rec, err := h.scores.GetScore(r.Context(), session.CandidateID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if rec.MatcherScore == nil {
		writeError(w, http.StatusConflict, "no_match_score",
			"candidate has no match score; run the batch pipeline first")
		return
	}

	ctx, tc := trace.Ensure(r.Context())
	match := &domain.MatchResult{Score: *rec.MatcherScore}

	composite, err := h.aggregator.Aggregate(match, session)
	auditRec := audit.Begin(tc, "aggregate")
	h.recorder.Record(ctx, auditRec.Finish(err))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if err := h.scores.SetFinalScore(ctx, session.CandidateID, session.JobID, composite.FinalScore); err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, composite)
}

func (h *Handler) handleListAudit(w http.ResponseWriter, r *http.Request) {
	traceID := r.URL.Query().Get("trace_id")
	if traceID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "trace_id is required")
		return
	}

	records, err := h.auditLog.ListByTrace(r.Context(), traceID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// fail maps domain errors onto HTTP statuses and logs the failure on
// the request log line.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	server.AddError(r.Context(), err)

	var se *interview.Error
	if errors.As(err, &se) {
		switch se.Code {
		case interview.ErrNotFound:
			writeError(w, http.StatusNotFound, string(se.Code), se.Error())
		case interview.ErrInvalidConfig:
			writeError(w, http.StatusBadRequest, string(se.Code), se.Error())
		case interview.ErrAlreadyCompleted:
			writeError(w, http.StatusConflict, string(se.Code), se.Error())
		default:
			writeError(w, http.StatusBadGateway, string(se.Code), se.Error())
		}
		return
	}

	var pe *pipeline.Error
	if errors.As(err, &pe) {
		writeJSON(w, http.StatusBadGateway, map[string]string{
			"code":         "pipeline_failed",
			"failed_stage": pe.FailedStage,
			"trace_id":     pe.TraceID,
			"error":        pe.Error(),
		})
		return
	}

	var ie *scoring.IncompleteSessionError
	if errors.As(err, &ie) {
		writeError(w, http.StatusConflict, "incomplete_session", ie.Error())
		return
	}

	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", err.Error())
		return
	}

	writeError(w, http.StatusInternalServerError, "internal", err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]string{"code": code, "error": msg})
}
