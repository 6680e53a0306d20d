// Package audit records completed decisions so they can be traced back to
// the clauses that grounded them.
package audit

import (
	"context"
	"errors"
	"time"

	"github.com/fabfab/claim-agent/decision"
)

// Entry is one completed decision.
type Entry struct {
	RequestID      string
	Query          string
	Result         decision.Result
	Source         decision.Source
	Model          string
	EmbeddingModel string
	ChunksIndexed  int
	TopK           int
	Documents      []string
	DecidedAt      time.Time
}

type Recorder interface {
	Record(ctx context.Context, entry Entry) error
}

// Nop discards entries.
type Nop struct{}

func (Nop) Record(context.Context, Entry) error { return nil }

// Multi fans an entry out to every recorder and joins their errors.
type Multi []Recorder

func (m Multi) Record(ctx context.Context, entry Entry) error {
	var errs []error
	for _, r := range m {
		if err := r.Record(ctx, entry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
