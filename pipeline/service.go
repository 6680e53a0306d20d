// Package pipeline runs one claim query end to end: extract, chunk, embed,
// rank, decide.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fabfab/claim-agent/audit"
	"github.com/fabfab/claim-agent/config"
	"github.com/fabfab/claim-agent/decision"
	"github.com/fabfab/claim-agent/embeddings"
	"github.com/fabfab/claim-agent/ingestion"
	"github.com/fabfab/claim-agent/llm"
	"github.com/fabfab/claim-agent/retrieval"
)

// Extractor resolves document references to text. Failures are reported
// per document.
type Extractor interface {
	ExtractAll(ctx context.Context, refs []ingestion.Reference) []ingestion.Document
}

// Decider produces a decision from the ranked clauses.
type Decider interface {
	Decide(ctx context.Context, query string, top []retrieval.ScoredChunk) (decision.Result, decision.Source, error)
}

type Service struct {
	extractor      Extractor
	chunker        *ingestion.Chunker
	embedder       embeddings.Embedder
	batcher        *embeddings.Batcher
	decider        Decider
	recorder       audit.Recorder
	topK           int
	model          string
	embeddingModel string
	logger         *zap.Logger
	now            func() time.Time
}

// Dependencies groups the collaborators of a Service. Recorder may be nil.
type Dependencies struct {
	Extractor Extractor
	Embedder  embeddings.Embedder
	LLM       llm.Client
	Recorder  audit.Recorder
}

// NewService builds a Service from validated configuration. Invalid window
// settings are rejected here, once, rather than per request.
func NewService(cfg config.Config, deps Dependencies, logger *zap.Logger) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := config.ValidatePipeline(cfg.Pipeline); err != nil {
		return nil, err
	}
	if deps.Extractor == nil {
		return nil, fmt.Errorf("extractor is not configured")
	}
	if deps.Embedder == nil {
		return nil, fmt.Errorf("embedder is not configured")
	}
	if deps.LLM == nil {
		return nil, fmt.Errorf("llm client is not configured")
	}

	chunker, err := ingestion.NewChunker(cfg.Pipeline.WindowSize, cfg.Pipeline.Overlap)
	if err != nil {
		return nil, fmt.Errorf("configure chunker: %w", err)
	}

	recorder := deps.Recorder
	if recorder == nil {
		recorder = audit.Nop{}
	}

	heuristic := decision.NewHeuristic(cfg.Pipeline.RejectionKeywords, cfg.Pipeline.ApprovalKeywords)

	return &Service{
		extractor:      deps.Extractor,
		chunker:        chunker,
		embedder:       deps.Embedder,
		batcher:        embeddings.NewBatcher(deps.Embedder, cfg.Pipeline.BatchSize, cfg.Embeddings.RateLimit),
		decider:        decision.NewSynthesizer(deps.LLM, heuristic, cfg.LLM.Timeout, logger),
		recorder:       recorder,
		topK:           cfg.Pipeline.TopK,
		model:          cfg.LLM.Model,
		embeddingModel: cfg.Embeddings.Model,
		logger:         logger,
		now:            time.Now,
	}, nil
}

// Run answers one claim query against the referenced documents.
func (s *Service) Run(ctx context.Context, req Request) (*Response, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, &ValidationError{Field: "query", Message: "is required"}
	}
	if len(req.Documents) == 0 {
		return nil, &ValidationError{Field: "documents", Message: "at least one document is required"}
	}

	started := s.now()
	requestID := uuid.NewString()
	logger := s.logger.With(zap.String("request_id", requestID))

	docs := s.extractor.ExtractAll(ctx, req.Documents)

	var chunks []ingestion.Chunk
	statuses := make([]DocumentStatus, len(docs))
	for i, doc := range docs {
		docChunks := s.chunker.Split(doc)
		chunks = append(chunks, docChunks...)

		statuses[i] = DocumentStatus{Source: doc.Source, Format: string(doc.Format), Chunks: len(docChunks)}
		if doc.Err != nil {
			statuses[i].Error = doc.Err.Error()
		}
	}

	if len(chunks) == 0 {
		logger.Warn("no content extracted", zap.Int("documents", len(docs)))
		return nil, ErrNoContent
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	vectors, err := s.batcher.EmbedAll(ctx, texts)
	if err != nil {
		return nil, &ProviderError{Stage: StageEmbedding, Err: fmt.Errorf("embed chunks: %w", err)}
	}
	for i := range chunks {
		chunks[i].Embedding = vectors[i]
	}

	queryVectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, &ProviderError{Stage: StageEmbedding, Err: fmt.Errorf("embed query: %w", err)}
	}
	if len(queryVectors) != 1 || len(queryVectors[0]) == 0 {
		return nil, &ProviderError{Stage: StageEmbedding, Err: fmt.Errorf("embed query: expected one vector, got %d", len(queryVectors))}
	}

	index, err := retrieval.NewMemoryIndex(chunks)
	if err != nil {
		return nil, fmt.Errorf("build chunk index: %w", err)
	}

	top, err := index.SimilarChunks(ctx, queryVectors[0], s.topK)
	if err != nil {
		return nil, fmt.Errorf("rank chunks: %w", err)
	}

	result, source, err := s.decider.Decide(ctx, query, top)
	if err != nil {
		if errors.Is(err, decision.ErrNoClauses) {
			return nil, err
		}
		return nil, &ProviderError{Stage: StageGeneration, Err: err}
	}

	decidedAt := s.now().UTC()
	resp := &Response{
		Meta: Meta{
			RequestID:      requestID,
			ChunksIndexed:  len(chunks),
			TopK:           len(top),
			Model:          s.model,
			EmbeddingModel: s.embeddingModel,
			DecisionSource: source,
			Timestamp:      decidedAt.Format(time.RFC3339),
			Documents:      statuses,
		},
		Input: Input{
			Query:     req.Query,
			Documents: echoDocuments(req),
		},
		Results: result,
	}

	s.record(ctx, logger, resp, decidedAt)

	logger.Info("claim decided",
		zap.Int("documents", len(docs)),
		zap.Int("chunks", len(chunks)),
		zap.Int("top_k", len(top)),
		zap.String("decision", string(result.Decision)),
		zap.String("decision_source", string(source)),
		zap.Duration("elapsed", s.now().Sub(started)),
	)

	return resp, nil
}

func (s *Service) record(ctx context.Context, logger *zap.Logger, resp *Response, decidedAt time.Time) {
	sources := make([]string, len(resp.Meta.Documents))
	for i, doc := range resp.Meta.Documents {
		sources[i] = doc.Source
	}

	entry := audit.Entry{
		RequestID:      resp.Meta.RequestID,
		Query:          resp.Input.Query,
		Result:         resp.Results,
		Source:         resp.Meta.DecisionSource,
		Model:          resp.Meta.Model,
		EmbeddingModel: resp.Meta.EmbeddingModel,
		ChunksIndexed:  resp.Meta.ChunksIndexed,
		TopK:           resp.Meta.TopK,
		Documents:      sources,
		DecidedAt:      decidedAt,
	}

	// Audit sinks must never fail or cancel a decided request.
	if err := s.recorder.Record(context.WithoutCancel(ctx), entry); err != nil {
		logger.Warn("audit record failed", zap.Error(err))
	}
}

func echoDocuments(req Request) json.RawMessage {
	if len(req.RawDocuments) > 0 {
		return req.RawDocuments
	}
	data, err := json.Marshal(req.Documents)
	if err != nil {
		return json.RawMessage("null")
	}
	return data
}
