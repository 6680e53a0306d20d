package embeddings

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Batcher splits large inputs into fixed-size batches so a single provider
// call never exceeds its payload limits.
type Batcher struct {
	embedder Embedder
	size     int
	limiter  *rate.Limiter
}

// NewBatcher returns a Batcher issuing at most size texts per call. A positive
// perSecond throttles calls with a token bucket; zero leaves them unthrottled.
func NewBatcher(embedder Embedder, size int, perSecond float64) *Batcher {
	if size <= 0 {
		size = 10
	}

	var limiter *rate.Limiter
	if perSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}

	return &Batcher{embedder: embedder, size: size, limiter: limiter}
}

// EmbedAll embeds texts batch by batch. Vectors are written back by their
// original index, so the output lines up with texts regardless of how the
// batches were issued.
func (b *Batcher) EmbedAll(ctx context.Context, texts []string) ([][]float32, error) {
	if b.embedder == nil {
		return nil, fmt.Errorf("embedder not configured")
	}

	vectors := make([][]float32, len(texts))
	dimension := 0

	for start := 0; start < len(texts); start += b.size {
		end := min(start+b.size, len(texts))

		if b.limiter != nil {
			if err := b.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("wait for embedding rate limit: %w", err)
			}
		}

		batch, err := b.embedder.Embed(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embed batch %d-%d: %w", start, end, err)
		}
		if len(batch) != end-start {
			return nil, fmt.Errorf("embed batch %d-%d: expected %d vectors, got %d", start, end, end-start, len(batch))
		}

		for offset, vec := range batch {
			if len(vec) == 0 {
				return nil, fmt.Errorf("embed batch %d-%d: empty vector at position %d", start, end, offset)
			}
			if dimension == 0 {
				dimension = len(vec)
			} else if len(vec) != dimension {
				return nil, fmt.Errorf("embed batch %d-%d: dimension %d differs from %d", start, end, len(vec), dimension)
			}
			vectors[start+offset] = vec
		}
	}

	return vectors, nil
}
