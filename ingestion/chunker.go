package ingestion

import (
	"fmt"
	"strings"
)

const (
	DefaultWindowSize = 900
	DefaultOverlap    = 150
)

// Chunker splits documents into overlapping windows measured in runes.
type Chunker struct {
	windowSize int
	overlap    int
}

// NewChunker validates the window settings. overlap must be smaller than the
// window so every step advances.
func NewChunker(windowSize, overlap int) (*Chunker, error) {
	if windowSize <= 0 {
		return nil, fmt.Errorf("window size must be positive, got %d", windowSize)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("overlap must not be negative, got %d", overlap)
	}
	if overlap >= windowSize {
		return nil, fmt.Errorf("overlap %d must be less than window size %d", overlap, windowSize)
	}
	return &Chunker{windowSize: windowSize, overlap: overlap}, nil
}

// Split windows the document text and normalizes whitespace in each window.
// Windows that normalize to nothing are dropped; the surviving chunks keep the
// index of their window so positions stay stable.
func (c *Chunker) Split(doc Document) []Chunk {
	if doc.Failed() {
		return nil
	}

	windows := Windows(doc.Text, c.windowSize, c.overlap)
	chunks := make([]Chunk, 0, len(windows))
	for i, window := range windows {
		text := NormalizeWhitespace(window)
		if text == "" {
			continue
		}
		chunks = append(chunks, Chunk{
			Text:          text,
			Source:        doc.Source,
			DocumentIndex: doc.Index,
			ChunkIndex:    i,
		})
	}
	return chunks
}

// SplitAll chunks every document in order.
func (c *Chunker) SplitAll(docs []Document) []Chunk {
	var chunks []Chunk
	for _, doc := range docs {
		chunks = append(chunks, c.Split(doc)...)
	}
	return chunks
}

// Windows returns the raw sliding windows over text. The window starts at 0
// and advances by size-overlap until the start reaches the end of the text,
// so consecutive windows share exactly overlap runes. Callers must pass
// 0 <= overlap < size.
func Windows(text string, size, overlap int) []string {
	runes := []rune(text)
	step := size - overlap
	if len(runes) == 0 || size <= 0 || step <= 0 {
		return nil
	}

	windows := make([]string, 0, len(runes)/step+1)
	for start := 0; start < len(runes); start += step {
		end := min(start+size, len(runes))
		windows = append(windows, string(runes[start:end]))
	}
	return windows
}

// NormalizeWhitespace collapses whitespace runs to single spaces and trims.
func NormalizeWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
