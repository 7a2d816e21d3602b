// Package main provides the entry point for the research pipeline Temporal
// worker. It hosts the pipeline workflow and its activities: supervisor
// decisions, stage executions, checkpoints, and finalization.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"go.temporal.io/sdk/worker"

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
	"github.com/helixir/research-pipeline-service/internal/repository"
	"github.com/helixir/research-pipeline-service/internal/supervisor"
	"github.com/helixir/research-pipeline-service/internal/temporal"
	"github.com/helixir/research-pipeline-service/internal/temporal/activities"
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
	if !cfg.Temporal.Enabled {
		return fmt.Errorf("temporal is not enabled; the worker has nothing to do")
	}

	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger = logger.With().Str("component", "worker").Logger()
	logger.Info().Msg("research-pipeline-service worker starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()
	logger.Info().Msg("database connection established")

	repo := repository.NewPgWorkflowRepository(db)

	publisher := buildPublisher(cfg, logger)
	defer func() {
		if closeErr := publisher.Close(); closeErr != nil {
			logger.Error().Err(closeErr).Msg("failed to close event publisher")
		}
	}()
	emitter := events.NewEmitter(publisher, logger)

	llmClient, err := llm.NewClient(cfg.LLM.FactoryConfig())
	if err != nil {
		return fmt.Errorf("create llm client: %w", err)
	}

	workers := buildWorkers(cfg, llmClient, nil, logger)
	sup := supervisor.New(cfg.Pipeline.Policy(), logger)
	acts := activities.New(sup, workers, repo, emitter, logger)

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
		Str("task_queue", cfg.Temporal.TaskQueue).
		Msg("temporal client connected")

	manager, err := temporal.NewWorkerManager(
		temporalClient,
		temporal.DefaultWorkerConfig(cfg.Temporal.TaskQueue),
		[]interface{}{workflows.ResearchPipelineWorkflow},
		[]interface{}{acts},
	)
	if err != nil {
		return fmt.Errorf("create worker: %w", err)
	}

	logger.Info().Str("task_queue", manager.TaskQueue()).Msg("worker polling")
	if err := manager.Run(worker.InterruptCh()); err != nil {
		return fmt.Errorf("run worker: %w", err)
	}

	logger.Info().Msg("worker stopped")
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
