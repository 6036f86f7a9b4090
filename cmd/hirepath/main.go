package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/hirepath/hirepath/internal/api"
	"github.com/hirepath/hirepath/internal/audit"
	"github.com/hirepath/hirepath/internal/config"
	"github.com/hirepath/hirepath/internal/domain"
	"github.com/hirepath/hirepath/internal/interview"
	"github.com/hirepath/hirepath/internal/oracle"
	"github.com/hirepath/hirepath/internal/oracle/gemini"
	"github.com/hirepath/hirepath/internal/pipeline"
	"github.com/hirepath/hirepath/internal/scoring"
	"github.com/hirepath/hirepath/internal/server"
	"github.com/hirepath/hirepath/internal/storage"
	"github.com/hirepath/hirepath/internal/storage/memory"
	"github.com/hirepath/hirepath/internal/storage/sqlite"
	"github.com/hirepath/hirepath/internal/telemetry"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Initialize OpenTelemetry
	shutdown, err := telemetry.InitTracer("hirepath", logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	cfg, err := config.Load(os.Getenv("HIREPATH_CONFIG"))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		jobs       storage.JobStore
		candidates storage.CandidateStore
		scores     storage.ScoreStore
		sessions   interview.Store
		auditLog   audit.Log
	)
	switch cfg.Storage.Driver {
	case "sqlite":
		store, err := sqlite.New(cfg.Storage.Path)
		if err != nil {
			log.Fatalf("Failed to open sqlite store: %v", err)
		}
		defer store.Close()
		jobs, candidates, scores, sessions, auditLog = store, store, store, store, store
	case "memory":
		store := memory.New()
		jobs, candidates, scores, sessions, auditLog = store, store, store, store, store
	}

	client, err := gemini.New(ctx, gemini.Config{
		APIKey:            cfg.Gemini.APIKey,
		Model:             cfg.Gemini.Model,
		MaxRetries:        cfg.Gemini.MaxRetries,
		PromptTokenBudget: cfg.Gemini.PromptTokenBudget,
	}, logger)
	if err != nil {
		log.Fatalf("Failed to create gemini client: %v", err)
	}

	recorder := audit.NewRecorder(auditLog, logger)
	aggregator := scoring.New(domain.ScoreWeights{
		Match:     cfg.Scoring.MatchWeight,
		Interview: cfg.Scoring.InterviewWeight,
	}, scoring.Method(cfg.Scoring.Method))

	orchestrator := pipeline.New(
		oracle.NewPlainTextExtractor(),
		client,
		client,
		candidates,
		jobs,
		scores,
		recorder,
		pipeline.Config{
			MaxAttempts:  cfg.Pipeline.MaxAttempts,
			StageTimeout: cfg.Pipeline.StageTimeout,
		},
		logger,
	)

	machine := interview.NewMachine(
		sessions,
		candidates,
		jobs,
		scores,
		client,
		client,
		aggregator,
		recorder,
		interview.Config{
			OracleTimeout: cfg.Interview.OracleTimeout,
			MaxAttempts:   cfg.Interview.MaxAttempts,
			EarlyStop: interview.EarlyStop{
				Enabled:      cfg.Interview.EarlyStop.Enabled,
				MinQuestions: cfg.Interview.EarlyStop.MinQuestions,
				ScoreFloor:   cfg.Interview.EarlyStop.ScoreFloor,
			},
		},
		logger,
	)

	handler := api.NewHandler(
		machine,
		orchestrator,
		jobs,
		candidates,
		scores,
		auditLog,
		aggregator,
		recorder,
		cfg.Interview.DefaultMaxQuestions,
		logger,
	)

	srv := server.New(cfg.Server.Port, cfg.Server.RequestTimeout, logger)
	handler.Routes(srv.Router)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	logger.Info("hirepath started",
		slog.Int("port", cfg.Server.Port),
		slog.String("storage", cfg.Storage.Driver),
		slog.String("model", cfg.Gemini.Model),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Fatalf("Server error: %v", err)
	case <-sigChan:
	}

	logger.Info("Shutdown signal received, stopping...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Shutdown complete")
}
