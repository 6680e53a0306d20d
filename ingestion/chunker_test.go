package ingestion

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindowsOverlapByExactlyOverlap(t *testing.T) {
	text := strings.Repeat("abcdefghij", 25)
	windows := Windows(text, 40, 10)
	require.Greater(t, len(windows), 2)

	for i := 0; i < len(windows)-1; i++ {
		cur := []rune(windows[i])
		next := []rune(windows[i+1])
		if len(next) < 10 {
			continue
		}
		assert.Equal(t, string(cur[len(cur)-10:]), string(next[:10]), "window %d", i)
	}
}

func TestWindowsStopsWhenStartReachesEnd(t *testing.T) {
	windows := Windows(strings.Repeat("x", 100), 40, 10)
	// starts at 0, 30, 60, 90
	require.Len(t, windows, 4)
	assert.Len(t, windows[3], 10)
}

func TestWindowsCountsRunes(t *testing.T) {
	windows := Windows("ééééé", 2, 1)
	assert.Equal(t, []string{"éé", "éé", "éé", "éé", "é"}, windows)
}

func TestWindowsEmptyText(t *testing.T) {
	assert.Empty(t, Windows("", 900, 150))
}

func TestWindowsDeterministic(t *testing.T) {
	text := strings.Repeat("The insured shall be reimbursed. ", 80)
	assert.Equal(t, Windows(text, 900, 150), Windows(text, 900, 150))
}

func TestNewChunkerRejectsOverlapNotBelowWindow(t *testing.T) {
	_, err := NewChunker(100, 100)
	require.Error(t, err)

	_, err = NewChunker(100, 150)
	require.Error(t, err)

	_, err = NewChunker(0, 0)
	require.Error(t, err)

	c, err := NewChunker(DefaultWindowSize, DefaultOverlap)
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestSplitNormalizesWhitespace(t *testing.T) {
	c, err := NewChunker(900, 150)
	require.NoError(t, err)

	chunks := c.Split(Document{Index: 2, Source: "policy.pdf", Text: "  Knee   surgery\n\tis covered.  "})
	require.Len(t, chunks, 1)
	assert.Equal(t, "Knee surgery is covered.", chunks[0].Text)
	assert.Equal(t, "policy.pdf", chunks[0].Source)
	assert.Equal(t, 2, chunks[0].DocumentIndex)
	assert.Equal(t, 0, chunks[0].ChunkIndex)
}

func TestSplitDropsBlankWindowsButKeepsPositions(t *testing.T) {
	c, err := NewChunker(10, 0)
	require.NoError(t, err)

	text := "first part" + strings.Repeat(" ", 10) + "third part"
	chunks := c.Split(Document{Source: "doc", Text: text})
	require.Len(t, chunks, 2)
	assert.Equal(t, 0, chunks[0].ChunkIndex)
	assert.Equal(t, 2, chunks[1].ChunkIndex)
}

func TestSplitSkipsFailedDocuments(t *testing.T) {
	c, err := NewChunker(10, 2)
	require.NoError(t, err)

	chunks := c.Split(Document{Source: "broken", Text: "ignored", Err: ErrUnsupportedContent})
	assert.Empty(t, chunks)
}

func TestSplitAllKeepsDocumentOrder(t *testing.T) {
	c, err := NewChunker(20, 5)
	require.NoError(t, err)

	chunks := c.SplitAll([]Document{
		{Index: 0, Source: "a", Text: strings.Repeat("alpha ", 10)},
		{Index: 1, Source: "b", Text: ""},
		{Index: 2, Source: "c", Text: "gamma"},
	})
	require.NotEmpty(t, chunks)

	last := chunks[len(chunks)-1]
	assert.Equal(t, "c", last.Source)
	for i := 1; i < len(chunks); i++ {
		prev, cur := chunks[i-1], chunks[i]
		if prev.DocumentIndex == cur.DocumentIndex {
			assert.Less(t, prev.ChunkIndex, cur.ChunkIndex)
		} else {
			assert.Less(t, prev.DocumentIndex, cur.DocumentIndex)
		}
	}
}

func TestNormalizeWhitespace(t *testing.T) {
	assert.Equal(t, "", NormalizeWhitespace(" \n\t "))
	assert.Equal(t, "a b c", NormalizeWhitespace("a\n\nb\t c "))
}
