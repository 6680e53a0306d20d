package pipeline

import (
	"errors"
	"fmt"
)

// ErrNoContent is returned when no document yields any usable chunk. It is
// raised before any embedding call is made.
var ErrNoContent = errors.New("no extractable text in any document")

// ValidationError reports a malformed request.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

const (
	StageEmbedding  = "embedding"
	StageGeneration = "generation"
)

// ProviderError wraps a transport failure from an external model provider.
type ProviderError struct {
	Stage string
	Err   error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider failed: %v", e.Stage, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
