package gemini

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/hirepath/hirepath/internal/domain"
	"github.com/hirepath/hirepath/internal/oracle"
)

// extractJSON strips markdown code fences the model sometimes wraps
// around its JSON output.
func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func parseProfileResponse(raw string) (*domain.CandidateProfile, error) {
	cleaned := extractJSON(raw)

	var data struct {
		Name            string   `json:"name"`
		Email           string   `json:"email"`
		Skills          []string `json:"skills"`
		ExperienceYears any      `json:"experience_years"`
		JobTitles       []string `json:"job_titles"`
		Education       []string `json:"education"`
		Summary         string   `json:"summary"`
	}
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("parse profile response: %w", err)
	}

	years := coerceFloat(data.ExperienceYears)
	if math.IsNaN(years) || years < 0 {
		years = 0
	}

	profile := &domain.CandidateProfile{
		Name:            strings.TrimSpace(data.Name),
		Email:           strings.TrimSpace(data.Email),
		Skills:          data.Skills,
		ExperienceYears: years,
		JobTitles:       data.JobTitles,
		Education:       data.Education,
		Summary:         strings.TrimSpace(data.Summary),
	}
	if profile.Skills == nil {
		profile.Skills = []string{}
	}
	return profile, nil
}

func parseMatchResponse(raw string) (*domain.MatchResult, error) {
	cleaned := extractJSON(raw)

	var data struct {
		Score     any    `json:"score"`
		Rationale string `json:"rationale"`
	}
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("parse match response: %w", err)
	}

	score := coerceFloat(data.Score)
	if math.IsNaN(score) {
		return nil, fmt.Errorf("match response has no usable score: %q", cleaned)
	}

	return &domain.MatchResult{
		Score:     domain.Clamp01(score),
		Rationale: strings.TrimSpace(data.Rationale),
	}, nil
}

func parseEvaluationResponse(raw string) (*oracle.Evaluation, error) {
	cleaned := extractJSON(raw)

	var data struct {
		Score       any    `json:"score"`
		Explanation string `json:"explanation"`
		Topic       string `json:"topic"`
	}
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("parse evaluation response: %w", err)
	}

	score := coerceFloat(data.Score)
	if math.IsNaN(score) {
		return nil, fmt.Errorf("evaluation response has no usable score: %q", cleaned)
	}

	return &oracle.Evaluation{
		Score:       domain.Clamp01(score),
		Explanation: strings.TrimSpace(data.Explanation),
		Topic:       strings.TrimSpace(data.Topic),
	}, nil
}

// cleanQuestion strips decorations models add around a bare question.
func cleanQuestion(raw string) string {
	q := strings.TrimSpace(raw)
	q = strings.Trim(q, "`")
	q = strings.TrimPrefix(q, "Question:")
	q = strings.Trim(strings.TrimSpace(q), `"`)
	return strings.TrimSpace(q)
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return math.NaN()
		}
		return f
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}
