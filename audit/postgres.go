package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fabfab/claim-agent/database"
)

type PostgresRecorder struct {
	db database.Execer
}

func NewPostgresRecorder(db database.Execer) *PostgresRecorder {
	return &PostgresRecorder{db: db}
}

func (r *PostgresRecorder) Record(ctx context.Context, entry Entry) error {
	if r.db == nil {
		return fmt.Errorf("postgres connection is nil")
	}

	justification, err := json.Marshal(entry.Result.Justification)
	if err != nil {
		return fmt.Errorf("encode justification: %w", err)
	}
	documents, err := json.Marshal(entry.Documents)
	if err != nil {
		return fmt.Errorf("encode documents: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO claim_decisions (
			request_id, query, decision, decision_source, amount, explanation,
			justification, documents, model, embedding_model, chunks_indexed, top_k, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (request_id) DO NOTHING
	`,
		entry.RequestID,
		entry.Query,
		string(entry.Result.Decision),
		string(entry.Source),
		entry.Result.Amount,
		entry.Result.Explanation,
		justification,
		documents,
		entry.Model,
		entry.EmbeddingModel,
		entry.ChunksIndexed,
		entry.TopK,
		entry.DecidedAt,
	)
	if err != nil {
		return fmt.Errorf("insert claim decision: %w", err)
	}
	return nil
}
