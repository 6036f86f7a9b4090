// Package scoring combines the resume-match score and the interview
// outcome into one composite candidate score.
package scoring

import (
	"fmt"

	"github.com/hirepath/hirepath/internal/domain"
)

// Method selects how per-turn scores collapse into the interview
// component.
type Method string

const (
	// MethodMean is the arithmetic mean of all turn scores.
	MethodMean Method = "mean"
	// MethodRecency is a linearly recency-weighted mean: turn i of n
	// carries weight i+1, so later answers count more.
	MethodRecency Method = "recency"
)

// DefaultWeights are the documented component weights: 0.4 resume
// match, 0.6 interview.
var DefaultWeights = domain.ScoreWeights{Match: 0.4, Interview: 0.6}

// Session is the view of an interview session the aggregator needs.
// Satisfied by *interview.Session.
type Session interface {
	IsCompleted() bool
	TurnScores() []float64
}

// IncompleteSessionError reports aggregation over a session that has
// not completed. This is a caller bug, not a retryable condition.
type IncompleteSessionError struct{}

func (*IncompleteSessionError) Error() string {
	return "aggregation contract violation: session is not completed"
}

// Aggregator computes interview components and composite scores.
type Aggregator struct {
	weights domain.ScoreWeights
	method  Method
}

// New creates an aggregator. Zero weights fall back to DefaultWeights;
// an unknown method falls back to MethodMean.
func New(weights domain.ScoreWeights, method Method) *Aggregator {
	if weights.Match == 0 && weights.Interview == 0 {
		weights = DefaultWeights
	}
	if method != MethodMean && method != MethodRecency {
		method = MethodMean
	}
	return &Aggregator{weights: weights, method: method}
}

// Weights returns the configured component weights.
func (a *Aggregator) Weights() domain.ScoreWeights { return a.weights }

// InterviewScore collapses per-turn scores into a single [0,1] value
// using the configured method. An empty history scores zero.
func (a *Aggregator) InterviewScore(turnScores []float64) float64 {
	if len(turnScores) == 0 {
		return 0
	}

	var sum, weightSum float64
	for i, s := range turnScores {
		w := 1.0
		if a.method == MethodRecency {
			w = float64(i + 1)
		}
		sum += domain.Clamp01(s) * w
		weightSum += w
	}
	return domain.Clamp01(sum / weightSum)
}

// Assessment renders a short verdict for an interview score.
func (a *Aggregator) Assessment(score float64) string {
	switch {
	case score >= 0.8:
		return fmt.Sprintf("Strong performance (%.2f): consistently solid answers across the interview.", score)
	case score >= 0.6:
		return fmt.Sprintf("Good performance (%.2f): mostly solid answers with some gaps.", score)
	case score >= 0.4:
		return fmt.Sprintf("Mixed performance (%.2f): notable gaps alongside adequate answers.", score)
	default:
		return fmt.Sprintf("Weak performance (%.2f): answers fell short of the role's requirements.", score)
	}
}

// Aggregate combines a match result with a completed session. It fails
// with *IncompleteSessionError when the session is still active.
func (a *Aggregator) Aggregate(match *domain.MatchResult, session Session) (*domain.CompositeScore, error) {
	if session == nil || !session.IsCompleted() {
		return nil, &IncompleteSessionError{}
	}

	matchComponent := domain.Clamp01(match.Score)
	interviewComponent := a.InterviewScore(session.TurnScores())

	final := domain.Clamp01(
		matchComponent*a.weights.Match + interviewComponent*a.weights.Interview,
	)

	return &domain.CompositeScore{
		MatchComponent:     matchComponent,
		InterviewComponent: interviewComponent,
		Weights:            a.weights,
		FinalScore:         final,
	}, nil
}
