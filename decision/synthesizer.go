package decision

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fabfab/claim-agent/llm"
	"github.com/fabfab/claim-agent/retrieval"
)

// ErrNoClauses is returned when Decide is called without ranked chunks.
var ErrNoClauses = errors.New("no ranked clauses to ground a decision")

type Synthesizer struct {
	llm       llm.Client
	heuristic Heuristic
	timeout   time.Duration
	logger    *zap.Logger
}

// NewSynthesizer wires the generative client and keyword fallback. A zero
// timeout leaves the call bounded only by ctx.
func NewSynthesizer(client llm.Client, heuristic Heuristic, timeout time.Duration, logger *zap.Logger) *Synthesizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synthesizer{
		llm:       client,
		heuristic: heuristic,
		timeout:   timeout,
		logger:    logger,
	}
}

// Decide asks the model for a decision over the ranked clauses and repairs
// its output. Transport failures, including timeouts, are returned as errors;
// unparsable output degrades to the keyword heuristic.
func (s *Synthesizer) Decide(ctx context.Context, query string, top []retrieval.ScoredChunk) (Result, Source, error) {
	if len(top) == 0 {
		return Result{}, "", ErrNoClauses
	}
	if s.llm == nil {
		return Result{}, "", fmt.Errorf("llm client is not configured")
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	raw, err := s.llm.Generate(ctx, buildMessages(query, top))
	if err != nil {
		return Result{}, "", fmt.Errorf("llm generate: %w", err)
	}

	result, err := Repair(raw, top)
	if err != nil {
		s.logger.Warn("model output unusable, using keyword heuristic",
			zap.Error(err),
			zap.String("output", truncate(raw, 200)),
		)
		return s.heuristic.Decide(top), SourceHeuristic, nil
	}

	return result, SourceModel, nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
