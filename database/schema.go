package database

import (
	"context"
	"fmt"
)

// EnsureAuditSchema creates the decision audit table and its indexes.
func EnsureAuditSchema(ctx context.Context, db Execer) error {
	if db == nil {
		return fmt.Errorf("postgres connection is nil")
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS claim_decisions (
			request_id UUID PRIMARY KEY,
			query TEXT NOT NULL,
			decision TEXT NOT NULL,
			decision_source TEXT NOT NULL,
			amount NUMERIC,
			explanation TEXT NOT NULL,
			justification JSONB NOT NULL,
			documents JSONB NOT NULL,
			model TEXT NOT NULL,
			embedding_model TEXT NOT NULL,
			chunks_indexed INT NOT NULL,
			top_k INT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		"CREATE INDEX IF NOT EXISTS idx_claim_decisions_created ON claim_decisions(created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_claim_decisions_decision ON claim_decisions(decision)",
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("execute schema statement: %w", err)
		}
	}

	return nil
}
