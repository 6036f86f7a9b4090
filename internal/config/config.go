// Package config loads service configuration from an optional YAML
// file and HIREPATH_-prefixed environment variables, env winning.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Storage   StorageConfig   `koanf:"storage"`
	Gemini    GeminiConfig    `koanf:"gemini"`
	Pipeline  PipelineConfig  `koanf:"pipeline"`
	Interview InterviewConfig `koanf:"interview"`
	Scoring   ScoringConfig   `koanf:"scoring"`
}

type ServerConfig struct {
	Port           int           `koanf:"port"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
}

type StorageConfig struct {
	// Driver is "sqlite" or "memory".
	Driver string `koanf:"driver"`
	Path   string `koanf:"path"`
}

type GeminiConfig struct {
	APIKey            string `koanf:"api_key"`
	Model             string `koanf:"model"`
	MaxRetries        int    `koanf:"max_retries"`
	PromptTokenBudget int    `koanf:"prompt_token_budget"`
}

type PipelineConfig struct {
	MaxAttempts  int           `koanf:"max_attempts"`
	StageTimeout time.Duration `koanf:"stage_timeout"`
}

type InterviewConfig struct {
	DefaultMaxQuestions int             `koanf:"default_max_questions"`
	OracleTimeout       time.Duration   `koanf:"oracle_timeout"`
	MaxAttempts         int             `koanf:"max_attempts"`
	EarlyStop           EarlyStopConfig `koanf:"early_stop"`
}

type EarlyStopConfig struct {
	Enabled      bool    `koanf:"enabled"`
	MinQuestions int     `koanf:"min_questions"`
	ScoreFloor   float64 `koanf:"score_floor"`
}

type ScoringConfig struct {
	MatchWeight     float64 `koanf:"match_weight"`
	InterviewWeight float64 `koanf:"interview_weight"`
	Method          string  `koanf:"method"`
}

// Load reads configuration. The file at path is optional; environment
// variables override it.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("load config file %s: %w", path, err)
			}
		}
	}

	// Double underscore separates nesting levels so keys like
	// gemini.api_key stay addressable: HIREPATH_GEMINI__API_KEY.
	if err := k.Load(env.Provider("HIREPATH_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "HIREPATH_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	// Default values
	defaults := map[string]any{
		"server.port":                     8080,
		"server.request_timeout":          "120s",
		"storage.driver":                  "sqlite",
		"storage.path":                    "./data/hirepath.db",
		"gemini.model":                    "gemini-2.5-flash",
		"gemini.max_retries":              2,
		"gemini.prompt_token_budget":      4096,
		"pipeline.max_attempts":           3,
		"pipeline.stage_timeout":          "60s",
		"interview.default_max_questions": 5,
		"interview.oracle_timeout":        "60s",
		"interview.max_attempts":          3,
		"scoring.match_weight":            0.4,
		"scoring.interview_weight":        0.6,
		"scoring.method":                  "mean",
	}
	for key, val := range defaults {
		if !k.Exists(key) {
			k.Set(key, val)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	if cfg.Storage.Driver != "sqlite" && cfg.Storage.Driver != "memory" {
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	return &cfg, nil
}
