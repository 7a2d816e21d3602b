// Package main provides the entry point for the research pipeline HTTP server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/helixir/research-pipeline-service/internal/agents"
	"github.com/helixir/research-pipeline-service/internal/aggregator"
	"github.com/helixir/research-pipeline-service/internal/config"
	"github.com/helixir/research-pipeline-service/internal/database"
	"github.com/helixir/research-pipeline-service/internal/domain"
	"github.com/helixir/research-pipeline-service/internal/events"
	"github.com/helixir/research-pipeline-service/internal/llm"
	"github.com/helixir/research-pipeline-service/internal/observability"
	"github.com/helixir/research-pipeline-service/internal/papersources"
	"github.com/helixir/research-pipeline-service/internal/papersources/arxiv"
	"github.com/helixir/research-pipeline-service/internal/papersources/biorxiv"
	"github.com/helixir/research-pipeline-service/internal/papersources/openalex"
	"github.com/helixir/research-pipeline-service/internal/pipeline"
	"github.com/helixir/research-pipeline-service/internal/repository"
	"github.com/helixir/research-pipeline-service/internal/server"
	"github.com/helixir/research-pipeline-service/internal/supervisor"
	"github.com/helixir/research-pipeline-service/internal/temporal"
	"github.com/helixir/research-pipeline-service/internal/temporal/workflows"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "Path to the config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger = logger.With().Str("component", "server").Logger()
	logger.Info().Msg("research-pipeline-service server starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()
	logger.Info().Msg("database connection established")

	if cfg.Database.MigrationAutoRun {
		if err := runMigrations(db, cfg.Database.MigrationPath, logger); err != nil {
			return err
		}
	}

	repo := repository.NewPgWorkflowRepository(db)
	metrics := observability.NewMetrics("research_pipeline")

	publisher := buildPublisher(cfg, logger)
	defer func() {
		if closeErr := publisher.Close(); closeErr != nil {
			logger.Error().Err(closeErr).Msg("failed to close event publisher")
		}
	}()
	emitter := events.NewEmitter(publisher, logger)

	var workflowManager server.WorkflowManager
	var shutdownManager func(context.Context) error

	if cfg.Temporal.Enabled {
		temporalClient, err := temporal.NewClient(temporal.ClientConfig{
			HostPort:  cfg.Temporal.HostPort,
			Namespace: cfg.Temporal.Namespace,
			TaskQueue: cfg.Temporal.TaskQueue,
			Logger:    observability.NewTemporalLogger(logger),
		})
		if err != nil {
			return fmt.Errorf("connect to temporal: %w", err)
		}
		defer temporalClient.Close()
		logger.Info().
			Str("host_port", cfg.Temporal.HostPort).
			Str("namespace", cfg.Temporal.Namespace).
			Msg("temporal client connected")

		workflowManager = &temporalManager{
			pipeline:  temporal.NewPipelineClient(temporalClient, cfg.Temporal.TaskQueue),
			repo:      repo,
			maxPapers: cfg.Pipeline.DefaultMaxPapers,
			metrics:   metrics,
		}
		shutdownManager = func(context.Context) error { return nil }
	} else {
		llmClient, err := llm.NewClient(cfg.LLM.FactoryConfig())
		if err != nil {
			return fmt.Errorf("create llm client: %w", err)
		}

		workers := buildWorkers(cfg, llmClient, metrics, logger)
		sup := supervisor.New(cfg.Pipeline.Policy(), logger)
		driver := pipeline.New(sup, workers, repo, pipeline.Config{
			StageDelay: cfg.Pipeline.StageDelay,
		}, logger)

		manager := pipeline.NewManager(driver, repo, emitter, metrics, pipeline.ManagerConfig{
			DefaultMaxPapers: cfg.Pipeline.DefaultMaxPapers,
		}, logger)
		workflowManager = manager
		shutdownManager = manager.Shutdown
	}

	srv := server.NewServer(server.Config{
		Address:         cfg.Server.HTTPAddress(),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, workflowManager, repo, db, metrics, logger)

	errCh := make(chan error, 2)
	go func() {
		logger.Info().Str("address", cfg.Server.HTTPAddress()).Msg("http server listening")
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, promhttp.Handler())
		metricsServer = &http.Server{Addr: cfg.Server.MetricsAddress(), Handler: mux}
		go func() {
			logger.Info().Str("address", cfg.Server.MetricsAddress()).Msg("metrics server listening")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http server shutdown failed")
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("metrics server shutdown failed")
		}
	}
	if err := shutdownManager(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("pipeline manager shutdown failed")
	}

	logger.Info().Msg("server stopped")
	return nil
}

// runMigrations applies pending migrations on startup.
func runMigrations(db *database.DB, path string, logger zerolog.Logger) error {
	migrator, err := database.NewMigrator(db, path, logger)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			logger.Error().Err(closeErr).Msg("failed to close migrator")
		}
	}()

	if err := migrator.Up(); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// buildPublisher returns the Kafka publisher when enabled, a no-op otherwise.
func buildPublisher(cfg *config.Config, logger zerolog.Logger) events.Publisher {
	if !cfg.Kafka.Enabled {
		return events.NopPublisher{}
	}
	return events.NewKafkaPublisher(events.Config{
		Brokers:      cfg.Kafka.Brokers,
		Topic:        cfg.Kafka.Topic,
		BatchSize:    cfg.Kafka.BatchSize,
		BatchTimeout: cfg.Kafka.BatchTimeout,
	}, logger)
}

// buildWorkers assembles the stage workers around the configured paper
// sources and LLM client.
func buildWorkers(cfg *config.Config, llmClient llm.Client, metrics *observability.Metrics, logger zerolog.Logger) agents.Registry {
	registry := papersources.NewRegistry()

	if cfg.Sources.ArXiv.Enabled {
		registry.Register(arxiv.New(arxiv.Config{
			BaseURL:    cfg.Sources.ArXiv.BaseURL,
			Timeout:    cfg.Sources.ArXiv.Timeout,
			RateLimit:  cfg.Sources.ArXiv.RateLimit,
			MaxResults: cfg.Sources.ArXiv.MaxResults,
			Enabled:    true,
		}))
	}
	if cfg.Sources.BioRxiv.Enabled {
		registry.Register(biorxiv.New(biorxiv.Config{
			BaseURL:    cfg.Sources.BioRxiv.BaseURL,
			Server:     "bioRxiv",
			SourceType: domain.SourceTypeBioRxiv,
			Timeout:    cfg.Sources.BioRxiv.Timeout,
			RateLimit:  cfg.Sources.BioRxiv.RateLimit,
			MaxResults: cfg.Sources.BioRxiv.MaxResults,
			Enabled:    true,
		}))
	}
	if cfg.Sources.MedRxiv.Enabled {
		registry.Register(biorxiv.New(biorxiv.Config{
			BaseURL:    cfg.Sources.MedRxiv.BaseURL,
			Server:     "medRxiv",
			SourceType: domain.SourceTypeMedRxiv,
			Timeout:    cfg.Sources.MedRxiv.Timeout,
			RateLimit:  cfg.Sources.MedRxiv.RateLimit,
			MaxResults: cfg.Sources.MedRxiv.MaxResults,
			Enabled:    true,
		}))
	}
	if cfg.Sources.OpenAlex.Enabled {
		registry.Register(openalex.New(openalex.Config{
			BaseURL:    cfg.Sources.OpenAlex.BaseURL,
			Email:      cfg.Sources.OpenAlexEmail,
			Timeout:    cfg.Sources.OpenAlex.Timeout,
			RateLimit:  cfg.Sources.OpenAlex.RateLimit,
			MaxResults: cfg.Sources.OpenAlex.MaxResults,
			Enabled:    true,
		}))
	}

	planner := aggregator.NewPlanner(llmClient, logger)
	agg := aggregator.New(registry, planner, aggregator.Config{
		StrategyTimeout: cfg.Pipeline.StrategyTimeout,
	}, logger)
	agg.SetMetrics(metrics)

	return agents.NewRegistry(
		agents.NewLiteratureHunter(agg, logger),
		agents.NewSynthesizer(llmClient, logger),
		agents.NewHypothesisGenerator(llmClient, logger),
		agents.NewMethodologyDesigner(llmClient, logger),
		agents.NewValidator(llmClient, logger),
	)
}

// temporalManager routes workflow submission and cancellation through
// Temporal. Reads go straight to the repository either way.
type temporalManager struct {
	pipeline  *temporal.PipelineClient
	repo      repository.WorkflowRepository
	maxPapers int
	metrics   *observability.Metrics
}

func (m *temporalManager) Start(ctx context.Context, query string, maxPapers int) (*domain.WorkflowState, error) {
	if query == "" {
		return nil, domain.NewValidationError("query", "query is required")
	}
	if maxPapers <= 0 {
		maxPapers = m.maxPapers
	}

	state := domain.NewWorkflowState(query, maxPapers)
	if _, _, err := m.pipeline.StartResearchWorkflow(ctx, workflows.ResearchPipelineWorkflow, temporal.ResearchWorkflowInput{
		WorkflowID: state.ID,
		Query:      query,
		MaxPapers:  maxPapers,
	}); err != nil {
		return nil, err
	}

	m.metrics.RecordWorkflowStarted()
	return state, nil
}

func (m *temporalManager) Cancel(ctx context.Context, id uuid.UUID) (*domain.WorkflowState, error) {
	state, err := m.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if state.IsTerminal() {
		return nil, fmt.Errorf("workflow %s: %w", id, domain.ErrWorkflowTerminal)
	}

	if err := m.pipeline.CancelResearchWorkflow(ctx, "research-pipeline-"+id.String()); err != nil {
		return nil, err
	}

	m.metrics.RecordWorkflowCancelled()
	return state, nil
}
