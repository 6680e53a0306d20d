package retrieval

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabfab/claim-agent/ingestion"
)

func TestCosineProperties(t *testing.T) {
	a := []float32{1, 2, 3}
	b := []float32{-4, 0.5, 2}

	ab, err := Cosine(a, b)
	require.NoError(t, err)
	ba, err := Cosine(b, a)
	require.NoError(t, err)
	assert.Equal(t, ab, ba)
	assert.GreaterOrEqual(t, ab, -1.0)
	assert.LessOrEqual(t, ab, 1.0)

	self, err := Cosine(a, a)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, self, 1e-9)

	opposite, err := Cosine([]float32{1, 0}, []float32{-1, 0})
	require.NoError(t, err)
	assert.InDelta(t, -1.0, opposite, 1e-9)
}

func TestCosineZeroMagnitude(t *testing.T) {
	sim, err := Cosine([]float32{0, 0, 0}, []float32{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, 0.0, sim)
	assert.False(t, math.IsNaN(sim))
}

func TestCosineDimensionMismatch(t *testing.T) {
	_, err := Cosine([]float32{1, 2}, []float32{1, 2, 3})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func chunk(doc, idx int, vec ...float32) ingestion.Chunk {
	return ingestion.Chunk{Text: "t", Source: "s", DocumentIndex: doc, ChunkIndex: idx, Embedding: vec}
}

func TestRankOrdersAndLimits(t *testing.T) {
	chunks := []ingestion.Chunk{
		chunk(0, 0, 0, 1),
		chunk(0, 1, 1, 0),
		chunk(1, 0, 1, 1),
		chunk(1, 1, -1, 0),
	}

	top, err := Rank([]float32{1, 0}, chunks, 3)
	require.NoError(t, err)
	require.Len(t, top, 3)

	assert.Equal(t, 1, top[0].ChunkIndex)
	assert.Equal(t, 0, top[0].DocumentIndex)
	assert.Equal(t, 1, top[1].DocumentIndex)
	assert.Equal(t, 0, top[1].ChunkIndex)
	for i := 1; i < len(top); i++ {
		assert.GreaterOrEqual(t, top[i-1].Similarity, top[i].Similarity)
	}
}

func TestRankKIsMinOfConfiguredAndTotal(t *testing.T) {
	chunks := []ingestion.Chunk{chunk(0, 0, 1, 0), chunk(0, 1, 0, 1)}

	top, err := Rank([]float32{1, 1}, chunks, 6)
	require.NoError(t, err)
	assert.Len(t, top, 2)

	top, err = Rank([]float32{1, 1}, chunks, 0)
	require.NoError(t, err)
	assert.Len(t, top, 2)
}

func TestRankTiesKeepOriginalOrder(t *testing.T) {
	chunks := []ingestion.Chunk{
		chunk(1, 3, 2, 0),
		chunk(0, 5, 1, 0),
		chunk(0, 2, 3, 0),
		chunk(1, 0, 4, 0),
	}

	top, err := Rank([]float32{1, 0}, chunks, 4)
	require.NoError(t, err)

	got := make([][2]int, 0, len(top))
	for _, sc := range top {
		got = append(got, [2]int{sc.DocumentIndex, sc.ChunkIndex})
	}
	assert.Equal(t, [][2]int{{0, 2}, {0, 5}, {1, 0}, {1, 3}}, got)
}

func TestRankDeterministic(t *testing.T) {
	chunks := []ingestion.Chunk{
		chunk(0, 0, 0.3, 0.1, 0.9),
		chunk(0, 1, 0.2, 0.8, 0.1),
		chunk(1, 0, 0.7, 0.7, 0.0),
		chunk(2, 0, 0.1, 0.1, 0.1),
	}
	query := []float32{0.5, 0.4, 0.2}

	first, err := Rank(query, chunks, 3)
	require.NoError(t, err)
	second, err := Rank(query, chunks, 3)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRankRejectsMismatchedQuery(t *testing.T) {
	_, err := Rank([]float32{1, 0, 0}, []ingestion.Chunk{chunk(0, 0, 1, 0)}, 1)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestMemoryIndex(t *testing.T) {
	_, err := NewMemoryIndex([]ingestion.Chunk{chunk(0, 0, 1, 0), chunk(0, 1, 1, 0, 0)})
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = NewMemoryIndex([]ingestion.Chunk{chunk(0, 0)})
	assert.Error(t, err)

	idx, err := NewMemoryIndex([]ingestion.Chunk{chunk(0, 0, 1, 0), chunk(0, 1, 0, 1)})
	require.NoError(t, err)
	assert.Equal(t, 2, idx.Len())

	top, err := idx.SimilarChunks(context.Background(), []float32{0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, 1, top[0].ChunkIndex)

	_, err = idx.SimilarChunks(context.Background(), nil, 1)
	assert.Error(t, err)
}
