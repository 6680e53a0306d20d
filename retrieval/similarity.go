// Package retrieval ranks embedded chunks against a query vector.
package retrieval

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/fabfab/claim-agent/ingestion"
)

const DefaultTopK = 6

// ErrDimensionMismatch means the query and chunk vectors came from
// incompatible embedding spaces. It is never recoverable.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// ScoredChunk is a chunk with its similarity to the query.
type ScoredChunk struct {
	ingestion.Chunk
	Similarity float64
}

// Cosine returns the cosine similarity of a and b, or 0 when either vector
// has zero magnitude.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// rounding can push parallel vectors just past 1
	return math.Max(-1, math.Min(1, sim)), nil
}

// Score computes the similarity of every chunk against query, keeping input
// order.
func Score(query []float32, chunks []ingestion.Chunk) ([]ScoredChunk, error) {
	scored := make([]ScoredChunk, len(chunks))
	for i, chunk := range chunks {
		sim, err := Cosine(query, chunk.Embedding)
		if err != nil {
			return nil, fmt.Errorf("score chunk %d of %s: %w", chunk.ChunkIndex, chunk.Source, err)
		}
		scored[i] = ScoredChunk{Chunk: chunk, Similarity: sim}
	}
	return scored, nil
}

// Rank scores chunks and returns the top min(k, len(chunks)) by descending
// similarity. Ties keep document then chunk order.
func Rank(query []float32, chunks []ingestion.Chunk, k int) ([]ScoredChunk, error) {
	if k <= 0 {
		k = DefaultTopK
	}

	scored, err := Score(query, chunks)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Similarity != scored[j].Similarity {
			return scored[i].Similarity > scored[j].Similarity
		}
		if scored[i].DocumentIndex != scored[j].DocumentIndex {
			return scored[i].DocumentIndex < scored[j].DocumentIndex
		}
		return scored[i].ChunkIndex < scored[j].ChunkIndex
	})

	return scored[:min(k, len(scored))], nil
}
