// Package gemini implements the parsing, matching, question-generation,
// and answer-evaluation oracles on top of the Google GenAI API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/hirepath/hirepath/internal/domain"
	"github.com/hirepath/hirepath/internal/oracle"
)

const defaultModel = "gemini-2.5-flash"

// sleep is replaced in tests to avoid real backoff delays.
var sleep = time.Sleep

// Config configures the Gemini client.
type Config struct {
	APIKey string
	Model  string
	// MaxRetries bounds in-client retries of retryable API errors.
	MaxRetries int
	// PromptTokenBudget caps how much accumulated history is embedded
	// into prompts. Zero uses a sensible default.
	PromptTokenBudget int
	// HTTPClient overrides the transport, used by tests for replay.
	HTTPClient *http.Client
}

// Client implements the oracle interfaces against the Gemini API.
type Client struct {
	client     *genai.Client
	model      string
	maxRetries int
	budget     *promptBudget
	logger     *slog.Logger
}

var (
	_ oracle.ResumeParser      = (*Client)(nil)
	_ oracle.JobMatcher        = (*Client)(nil)
	_ oracle.QuestionGenerator = (*Client)(nil)
	_ oracle.AnswerEvaluator   = (*Client)(nil)
)

// New creates a Gemini-backed oracle client.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.HTTPClient != nil {
		clientCfg.HTTPClient = cfg.HTTPClient
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if logger == nil {
		logger = slog.Default()
	}

	budget, err := newPromptBudget(cfg.PromptTokenBudget)
	if err != nil {
		return nil, fmt.Errorf("init prompt budget: %w", err)
	}

	return &Client{
		client:     client,
		model:      model,
		maxRetries: cfg.MaxRetries,
		budget:     budget,
		logger:     logger,
	}, nil
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// generate sends one prompt and returns the concatenated text parts of
// the first response. Retryable API errors (429, 5xx) are retried up
// to the configured bound before being surfaced as transient.
func (c *Client) generate(ctx context.Context, op, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", oracle.InvalidInput(op, errors.New("prompt must not be empty"))
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			sleep(time.Duration(attempt) * 500 * time.Millisecond)
		}

		resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), nil)
		if err == nil {
			text := joinText(resp)
			if text == "" {
				return "", oracle.Permanent(op, errors.New("gemini returned an empty response"))
			}
			return text, nil
		}

		lastErr = err
		if ctx.Err() != nil || !retryable(err) {
			break
		}

		c.logger.Warn("retrying gemini call",
			slog.String("op", op),
			slog.Int("attempt", attempt+1),
			slog.String("error", err.Error()),
		)
	}

	if retryable(lastErr) || ctx.Err() != nil {
		return "", oracle.Transient(op, lastErr)
	}
	return "", oracle.Permanent(op, lastErr)
}

// retryable reports whether the API error is worth another attempt.
func retryable(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError
	}
	return false
}

func joinText(resp *genai.GenerateContentResponse) string {
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString(text)
		}
	}
	return strings.TrimSpace(b.String())
}

// Parse extracts a structured candidate profile from resume text.
func (c *Client) Parse(ctx context.Context, text string) (*domain.CandidateProfile, error) {
	if strings.TrimSpace(text) == "" {
		return nil, oracle.InvalidInput("parse", errors.New("resume text is empty"))
	}

	raw, err := c.generate(ctx, "parse", parsePrompt(text))
	if err != nil {
		return nil, err
	}

	profile, err := parseProfileResponse(raw)
	if err != nil {
		return nil, oracle.Permanent("parse", err)
	}
	return profile, nil
}

// Match scores a candidate profile against a job.
func (c *Client) Match(ctx context.Context, profile *domain.CandidateProfile, job *domain.Job) (*domain.MatchResult, error) {
	if profile == nil {
		return nil, oracle.InvalidInput("match", errors.New("candidate profile is required"))
	}
	if job == nil {
		return nil, oracle.InvalidInput("match", errors.New("job is required"))
	}

	raw, err := c.generate(ctx, "match", matchPrompt(profile, job))
	if err != nil {
		return nil, err
	}

	match, err := parseMatchResponse(raw)
	if err != nil {
		return nil, oracle.Permanent("match", err)
	}
	return match, nil
}

// GenerateQuestion produces the next interview question, embedding as
// much recent history as fits the prompt token budget.
func (c *Client) GenerateQuestion(ctx context.Context, in oracle.GenerationInput) (string, error) {
	if in.Job == nil {
		return "", oracle.InvalidInput("generate_question", errors.New("job is required"))
	}

	history := c.budget.trimHistory(in.History)
	raw, err := c.generate(ctx, "generate_question", questionPrompt(in, history))
	if err != nil {
		return "", err
	}

	return cleanQuestion(raw), nil
}

// Evaluate scores one answer in the context of the interview so far.
func (c *Client) Evaluate(ctx context.Context, in oracle.EvaluationInput) (*oracle.Evaluation, error) {
	if strings.TrimSpace(in.Question) == "" {
		return nil, oracle.InvalidInput("evaluate_answer", errors.New("question is required"))
	}
	if in.Job == nil {
		return nil, oracle.InvalidInput("evaluate_answer", errors.New("job is required"))
	}

	history := c.budget.trimHistory(in.History)
	raw, err := c.generate(ctx, "evaluate_answer", evaluationPrompt(in, history))
	if err != nil {
		return nil, err
	}

	eval, err := parseEvaluationResponse(raw)
	if err != nil {
		return nil, oracle.Permanent("evaluate_answer", err)
	}
	return eval, nil
}
