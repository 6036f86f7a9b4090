// Package domain holds the core value types shared across the pipeline,
// the interview engine, and storage.
package domain

import "time"

// CandidateStatus tracks a candidate through the evaluation flow.
type CandidateStatus string

const (
	CandidateUploaded  CandidateStatus = "uploaded"
	CandidateProcessed CandidateStatus = "processed"
)

// JobCriteria captures what a job requires and how its score components
// are weighted.
type JobCriteria struct {
	Skills  []string           `json:"skills"`
	ExpMin  int                `json:"exp_min"`
	ExpMax  int                `json:"exp_max"`
	Weights map[string]float64 `json:"weights,omitempty"`
}

// Job is an open position candidates are evaluated against.
type Job struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Criteria    JobCriteria `json:"criteria"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Candidate is an applicant for a specific job.
type Candidate struct {
	ID         string            `json:"id"`
	JobID      string            `json:"job_id"`
	Name       string            `json:"name"`
	Email      string            `json:"email"`
	ResumeText string            `json:"resume_text,omitempty"`
	Status     CandidateStatus   `json:"status"`
	Profile    *CandidateProfile `json:"profile,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// CandidateProfile is the structured output of resume parsing.
// Produced once by the pipeline and treated as immutable afterwards.
type CandidateProfile struct {
	Name            string   `json:"name,omitempty"`
	Email           string   `json:"email,omitempty"`
	Skills          []string `json:"skills"`
	ExperienceYears float64  `json:"experience_years"`
	JobTitles       []string `json:"job_titles,omitempty"`
	Education       []string `json:"education,omitempty"`
	Summary         string   `json:"summary,omitempty"`
}

// MatchResult scores a candidate profile against a job. Produced once
// per (candidate, job) pair and immutable.
type MatchResult struct {
	Score     float64 `json:"score"`
	Rationale string  `json:"rationale"`
}

// QuestionAnswer is one completed interview turn.
type QuestionAnswer struct {
	Question    string    `json:"question"`
	Answer      string    `json:"answer"`
	Score       float64   `json:"score"`
	Explanation string    `json:"explanation"`
	Timestamp   time.Time `json:"timestamp"`
}

// ScoreWeights are the component weights used for composite scoring.
type ScoreWeights struct {
	Match     float64 `json:"match"`
	Interview float64 `json:"interview"`
}

// CompositeScore combines the resume-match score with the interview
// outcome. Produced once by the aggregator and immutable.
type CompositeScore struct {
	MatchComponent     float64      `json:"match_component"`
	InterviewComponent float64      `json:"interview_component"`
	Weights            ScoreWeights `json:"weights"`
	FinalScore         float64      `json:"final_score"`
}

// ScoreRecord is the persistent per-candidate score row. Components are
// pointers so "not yet computed" is distinguishable from zero.
type ScoreRecord struct {
	CandidateID    string             `json:"candidate_id"`
	JobID          string             `json:"job_id"`
	MatcherScore   *float64           `json:"matcher_score,omitempty"`
	InterviewScore *float64           `json:"interview_score,omitempty"`
	FinalScore     *float64           `json:"final_score,omitempty"`
	Breakdown      map[string]float64 `json:"breakdown,omitempty"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

// Clamp01 bounds a score to the [0,1] range used for every score in the
// system.
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
