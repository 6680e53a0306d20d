package retrieval

import (
	"context"
	"fmt"

	"github.com/fabfab/claim-agent/ingestion"
)

// Index answers nearest-chunk queries for a single request.
type Index interface {
	SimilarChunks(ctx context.Context, embedding []float32, limit int) ([]ScoredChunk, error)
}

// MemoryIndex holds the embedded chunks of one request. It is built, queried,
// and dropped per request; nothing is shared between requests.
type MemoryIndex struct {
	chunks []ingestion.Chunk
}

// NewMemoryIndex requires every chunk to carry an embedding of the same size.
func NewMemoryIndex(chunks []ingestion.Chunk) (*MemoryIndex, error) {
	dim := -1
	for _, chunk := range chunks {
		if len(chunk.Embedding) == 0 {
			return nil, fmt.Errorf("chunk %d of %s has no embedding", chunk.ChunkIndex, chunk.Source)
		}
		if dim == -1 {
			dim = len(chunk.Embedding)
			continue
		}
		if len(chunk.Embedding) != dim {
			return nil, fmt.Errorf("%w: chunk %d of %s has %d dimensions, expected %d",
				ErrDimensionMismatch, chunk.ChunkIndex, chunk.Source, len(chunk.Embedding), dim)
		}
	}
	return &MemoryIndex{chunks: chunks}, nil
}

func (m *MemoryIndex) Len() int {
	return len(m.chunks)
}

func (m *MemoryIndex) SimilarChunks(ctx context.Context, embedding []float32, limit int) ([]ScoredChunk, error) {
	if len(embedding) == 0 {
		return nil, fmt.Errorf("embedding is empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Rank(embedding, m.chunks, limit)
}
