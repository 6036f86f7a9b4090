// Package sqlite persists jobs, candidates, scores, interview
// sessions, and the audit log in a single SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hirepath/hirepath/internal/audit"
	"github.com/hirepath/hirepath/internal/domain"
	"github.com/hirepath/hirepath/internal/interview"
	"github.com/hirepath/hirepath/internal/storage"
)

// Store is a SQLite implementation of the storage interfaces, the
// interview session store, and the audit log.
type Store struct {
	db *sql.DB
}

var (
	_ storage.JobStore       = (*Store)(nil)
	_ storage.CandidateStore = (*Store)(nil)
	_ storage.ScoreStore     = (*Store)(nil)
	_ interview.Store        = (*Store)(nil)
	_ audit.Log              = (*Store)(nil)
)

// New opens (or creates) the database at dbPath and initializes the
// schema.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS jobs (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT,
			criteria TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS candidates (
			id TEXT PRIMARY KEY,
			job_id TEXT NOT NULL,
			name TEXT,
			email TEXT,
			resume_text TEXT,
			status TEXT NOT NULL,
			profile TEXT,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS scores (
			candidate_id TEXT PRIMARY KEY,
			job_id TEXT NOT NULL,
			matcher_score REAL,
			interview_score REAL,
			final_score REAL,
			breakdown TEXT,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			candidate_id TEXT NOT NULL,
			job_id TEXT NOT NULL,
			status TEXT NOT NULL,
			document TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS stage_records (
			id TEXT PRIMARY KEY,
			trace_id TEXT NOT NULL,
			stage TEXT NOT NULL,
			status TEXT NOT NULL,
			error_detail TEXT,
			started_at TIMESTAMP NOT NULL,
			ended_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_candidates_job ON candidates(job_id)`,
		`CREATE INDEX IF NOT EXISTS idx_scores_job ON scores(job_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_candidate ON sessions(candidate_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_job ON sessions(job_id)`,
		`CREATE INDEX IF NOT EXISTS idx_stage_records_trace ON stage_records(trace_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) CreateJob(ctx context.Context, job *domain.Job) error {
	now := time.Now().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now

	criteria, err := json.Marshal(job.Criteria)
	if err != nil {
		return fmt.Errorf("failed to marshal criteria: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, title, description, criteria, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		job.ID, job.Title, job.Description, string(criteria), job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

func (s *Store) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	var job domain.Job
	var criteriaJSON string

	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, description, criteria, created_at, updated_at FROM jobs WHERE id = ?`, id).
		Scan(&job.ID, &job.Title, &job.Description, &criteriaJSON, &job.CreatedAt, &job.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	if err := json.Unmarshal([]byte(criteriaJSON), &job.Criteria); err != nil {
		return nil, fmt.Errorf("failed to unmarshal criteria: %w", err)
	}
	return &job, nil
}

func (s *Store) ListJobs(ctx context.Context) ([]*domain.Job, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, description, criteria, created_at, updated_at FROM jobs ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*domain.Job
	for rows.Next() {
		var job domain.Job
		var criteriaJSON string
		if err := rows.Scan(&job.ID, &job.Title, &job.Description, &criteriaJSON, &job.CreatedAt, &job.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		if err := json.Unmarshal([]byte(criteriaJSON), &job.Criteria); err != nil {
			return nil, fmt.Errorf("failed to unmarshal criteria: %w", err)
		}
		jobs = append(jobs, &job)
	}
	return jobs, rows.Err()
}

func (s *Store) CreateCandidate(ctx context.Context, cand *domain.Candidate) error {
	now := time.Now().UTC()
	cand.CreatedAt = now
	cand.UpdatedAt = now
	if cand.Status == "" {
		cand.Status = domain.CandidateUploaded
	}

	profile, err := marshalNullable(cand.Profile)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO candidates (id, job_id, name, email, resume_text, status, profile, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cand.ID, cand.JobID, cand.Name, cand.Email, cand.ResumeText, string(cand.Status), profile, cand.CreatedAt, cand.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create candidate: %w", err)
	}
	return nil
}

func (s *Store) GetCandidate(ctx context.Context, id string) (*domain.Candidate, error) {
	var cand domain.Candidate
	var status string
	var profile sql.NullString

	err := s.db.QueryRowContext(ctx,
		`SELECT id, job_id, name, email, resume_text, status, profile, created_at, updated_at
		 FROM candidates WHERE id = ?`, id).
		Scan(&cand.ID, &cand.JobID, &cand.Name, &cand.Email, &cand.ResumeText, &status, &profile, &cand.CreatedAt, &cand.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get candidate: %w", err)
	}

	cand.Status = domain.CandidateStatus(status)
	if profile.Valid && profile.String != "" {
		var p domain.CandidateProfile
		if err := json.Unmarshal([]byte(profile.String), &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal profile: %w", err)
		}
		cand.Profile = &p
	}
	return &cand, nil
}

func (s *Store) UpdateCandidate(ctx context.Context, cand *domain.Candidate) error {
	cand.UpdatedAt = time.Now().UTC()

	profile, err := marshalNullable(cand.Profile)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE candidates SET job_id = ?, name = ?, email = ?, resume_text = ?, status = ?, profile = ?, updated_at = ?
		 WHERE id = ?`,
		cand.JobID, cand.Name, cand.Email, cand.ResumeText, string(cand.Status), profile, cand.UpdatedAt, cand.ID)
	if err != nil {
		return fmt.Errorf("failed to update candidate: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) ListCandidates(ctx context.Context, jobID string) ([]*domain.Candidate, error) {
	query := `SELECT id FROM candidates ORDER BY created_at DESC`
	args := []any{}
	if jobID != "" {
		query = `SELECT id FROM candidates WHERE job_id = ? ORDER BY created_at DESC`
		args = append(args, jobID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidates: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan candidate id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]*domain.Candidate, 0, len(ids))
	for _, id := range ids {
		cand, err := s.GetCandidate(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, cand)
	}
	return out, nil
}

func scanScore(scan func(dest ...any) error) (*domain.ScoreRecord, error) {
	var rec domain.ScoreRecord
	var matcher, intv, final sql.NullFloat64
	var breakdown sql.NullString

	if err := scan(&rec.CandidateID, &rec.JobID, &matcher, &intv, &final, &breakdown, &rec.UpdatedAt); err != nil {
		return nil, err
	}

	if matcher.Valid {
		rec.MatcherScore = &matcher.Float64
	}
	if intv.Valid {
		rec.InterviewScore = &intv.Float64
	}
	if final.Valid {
		rec.FinalScore = &final.Float64
	}
	if breakdown.Valid && breakdown.String != "" {
		if err := json.Unmarshal([]byte(breakdown.String), &rec.Breakdown); err != nil {
			return nil, fmt.Errorf("failed to unmarshal breakdown: %w", err)
		}
	}
	return &rec, nil
}

func (s *Store) GetScore(ctx context.Context, candidateID string) (*domain.ScoreRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT candidate_id, job_id, matcher_score, interview_score, final_score, breakdown, updated_at
		 FROM scores WHERE candidate_id = ?`, candidateID)

	rec, err := scanScore(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get score: %w", err)
	}
	return rec, nil
}

func (s *Store) ListScoresByJob(ctx context.Context, jobID string) ([]*domain.ScoreRecord, error) {
	// NULL sorts below every value, so DESC puts unscored rows last.
	rows, err := s.db.QueryContext(ctx,
		`SELECT candidate_id, job_id, matcher_score, interview_score, final_score, breakdown, updated_at
		 FROM scores WHERE job_id = ? ORDER BY final_score DESC`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list scores: %w", err)
	}
	defer rows.Close()

	var out []*domain.ScoreRecord
	for rows.Next() {
		rec, err := scanScore(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan score: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) SetMatcherScore(ctx context.Context, candidateID, jobID string, score float64, breakdown map[string]float64) error {
	bd, err := json.Marshal(breakdown)
	if err != nil {
		return fmt.Errorf("failed to marshal breakdown: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO scores (candidate_id, job_id, matcher_score, breakdown, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(candidate_id) DO UPDATE SET
			matcher_score = excluded.matcher_score,
			breakdown = excluded.breakdown,
			updated_at = excluded.updated_at`,
		candidateID, jobID, score, string(bd), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to set matcher score: %w", err)
	}
	return nil
}

func (s *Store) SetInterviewScore(ctx context.Context, candidateID, jobID string, score float64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scores (candidate_id, job_id, interview_score, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(candidate_id) DO UPDATE SET
			interview_score = excluded.interview_score,
			updated_at = excluded.updated_at`,
		candidateID, jobID, score, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to set interview score: %w", err)
	}
	return nil
}

func (s *Store) SetFinalScore(ctx context.Context, candidateID, jobID string, score float64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scores (candidate_id, job_id, final_score, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(candidate_id) DO UPDATE SET
			final_score = excluded.final_score,
			updated_at = excluded.updated_at`,
		candidateID, jobID, score, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to set final score: %w", err)
	}
	return nil
}

func (s *Store) CreateSession(ctx context.Context, sess *interview.Session) error {
	doc, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, candidate_id, job_id, status, document, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.CandidateID, sess.JobID, string(sess.Status), string(doc), sess.CreatedAt, sess.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, id string) (*interview.Session, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT document FROM sessions WHERE id = ?`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var sess interview.Session
	if err := json.Unmarshal([]byte(doc), &sess); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &sess, nil
}

// ReplaceSession swaps the whole session document in a single UPDATE,
// so readers see either the previous turn or the new one, never a mix.
func (s *Store) ReplaceSession(ctx context.Context, sess *interview.Session) error {
	doc, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET status = ?, document = ?, updated_at = ? WHERE id = ?`,
		string(sess.Status), string(doc), sess.UpdatedAt, sess.ID)
	if err != nil {
		return fmt.Errorf("failed to replace session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) ListSessions(ctx context.Context, opts interview.ListOptions) ([]*interview.Session, error) {
	query := `SELECT document FROM sessions`
	var conds []string
	var args []any
	if opts.CandidateID != "" {
		conds = append(conds, "candidate_id = ?")
		args = append(args, opts.CandidateID)
	}
	if opts.JobID != "" {
		conds = append(conds, "job_id = ?")
		args = append(args, opts.JobID)
	}
	for i, c := range conds {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += " ORDER BY created_at DESC"
	// OFFSET needs a LIMIT clause; -1 means unbounded.
	switch {
	case opts.Limit > 0:
		query += " LIMIT ? OFFSET ?"
		args = append(args, opts.Limit, opts.Offset)
	case opts.Offset > 0:
		query += " LIMIT -1 OFFSET ?"
		args = append(args, opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var out []*interview.Session
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		var sess interview.Session
		if err := json.Unmarshal([]byte(doc), &sess); err != nil {
			return nil, fmt.Errorf("failed to unmarshal session: %w", err)
		}
		out = append(out, &sess)
	}
	return out, rows.Err()
}

func (s *Store) Append(ctx context.Context, rec *audit.StageRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO stage_records (id, trace_id, stage, status, error_detail, started_at, ended_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.TraceID, rec.Stage, string(rec.Status), rec.ErrorDetail, rec.StartedAt, rec.EndedAt)
	if err != nil {
		return fmt.Errorf("failed to append stage record: %w", err)
	}
	return nil
}

func (s *Store) ListByTrace(ctx context.Context, traceID string) ([]*audit.StageRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, trace_id, stage, status, error_detail, started_at, ended_at
		 FROM stage_records WHERE trace_id = ? ORDER BY started_at ASC`, traceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list stage records: %w", err)
	}
	defer rows.Close()

	var out []*audit.StageRecord
	for rows.Next() {
		var rec audit.StageRecord
		var status string
		if err := rows.Scan(&rec.ID, &rec.TraceID, &rec.Stage, &status, &rec.ErrorDetail, &rec.StartedAt, &rec.EndedAt); err != nil {
			return nil, fmt.Errorf("failed to scan stage record: %w", err)
		}
		rec.Status = audit.Status(status)
		out = append(out, &rec)
	}
	return out, rows.Err()
}

func marshalNullable(p *domain.CandidateProfile) (sql.NullString, error) {
	if p == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}
