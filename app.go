package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fabfab/claim-agent/audit"
	"github.com/fabfab/claim-agent/config"
	"github.com/fabfab/claim-agent/database"
	"github.com/fabfab/claim-agent/embeddings"
	"github.com/fabfab/claim-agent/ingestion"
	"github.com/fabfab/claim-agent/llm"
	"github.com/fabfab/claim-agent/pipeline"
)

// buildService wires the pipeline and its optional audit sinks. The returned
// cleanup closes any database connections.
func buildService(ctx context.Context, cfg config.Config, logger *zap.Logger) (*pipeline.Service, func(), error) {
	embedder, err := embeddings.NewEmbedder(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("embedder setup: %w", err)
	}

	client, err := llm.NewClient(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("llm setup: %w", err)
	}

	extractor := ingestion.NewExtractor(ingestion.ExtractorOptions{
		FetchTimeout: cfg.Pipeline.FetchTimeout,
		MaxBytes:     cfg.Pipeline.MaxDocumentBytes,
		Concurrency:  cfg.Pipeline.ExtractConcurrency,
	}, logger)

	recorders, cleanup, err := buildRecorders(ctx, cfg.Audit, logger)
	if err != nil {
		return nil, nil, err
	}

	svc, err := pipeline.NewService(cfg, pipeline.Dependencies{
		Extractor: extractor,
		Embedder:  embedder,
		LLM:       client,
		Recorder:  recorders,
	}, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	return svc, cleanup, nil
}

func buildRecorders(ctx context.Context, cfg config.AuditConfig, logger *zap.Logger) (audit.Recorder, func(), error) {
	var (
		recorders audit.Multi
		closers   []func()
	)
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.PostgresDSN != "" {
		pool, err := database.NewPostgresPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres connection: %w", err)
		}
		closers = append(closers, pool.Close)

		if err := database.EnsureAuditSchema(ctx, pool); err != nil {
			cleanup()
			return nil, nil, err
		}
		recorders = append(recorders, audit.NewPostgresRecorder(pool))
		logger.Info("postgres audit log enabled")
	}

	if cfg.Neo4jURI != "" {
		driver, err := database.NewNeo4jDriver(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPass)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("neo4j connection: %w", err)
		}
		closers = append(closers, func() { _ = driver.Close(context.Background()) })
		recorders = append(recorders, audit.NewGraphRecorder(driver))
		logger.Info("neo4j decision graph enabled")
	}

	if len(recorders) == 0 {
		return audit.Nop{}, cleanup, nil
	}
	return recorders, cleanup, nil
}
