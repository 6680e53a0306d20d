package pipeline

import (
	"encoding/json"

	"github.com/fabfab/claim-agent/decision"
	"github.com/fabfab/claim-agent/ingestion"
)

type Request struct {
	Query     string
	Documents []ingestion.Reference
	// RawDocuments is echoed back verbatim when set.
	RawDocuments json.RawMessage
}

type Response struct {
	Meta    Meta            `json:"meta"`
	Input   Input           `json:"input"`
	Results decision.Result `json:"results"`
}

type Meta struct {
	RequestID      string           `json:"request_id"`
	ChunksIndexed  int              `json:"chunks_indexed"`
	TopK           int              `json:"top_k"`
	Model          string           `json:"model"`
	EmbeddingModel string           `json:"embedding_model"`
	DecisionSource decision.Source  `json:"decision_source"`
	Timestamp      string           `json:"timestamp"`
	Documents      []DocumentStatus `json:"documents"`
}

// DocumentStatus reports how one input document fared during extraction.
type DocumentStatus struct {
	Source string `json:"source"`
	Format string `json:"format,omitempty"`
	Chunks int    `json:"chunks"`
	Error  string `json:"error,omitempty"`
}

type Input struct {
	Query     string          `json:"query"`
	Documents json.RawMessage `json:"documents"`
}
