// Package knowledge keeps the decision provenance graph in Neo4j:
// (:Claim)-[:DECIDED]->(:Decision)-[:CITES]->(:Clause)-[:PART_OF]->(:Document).
package knowledge

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

type ClaimDecision struct {
	RequestID string
	Query     string
	Decision  string
	Source    string
	Model     string
	Amount    *float64
	DecidedAt time.Time
	Citations []Citation
}

// Citation links a decision to one ranked clause. Rank is 1-based.
type Citation struct {
	Rank       int
	Document   string
	ChunkIndex int
	Clause     string
	Similarity float64
}

// ClauseStat summarizes how often a clause has been cited.
type ClauseStat struct {
	Document   string
	ChunkIndex int
	Clause     string
	Citations  int
	Approved   int
	Rejected   int
}

func clauseID(document string, chunkIndex int) string {
	return fmt.Sprintf("%s#%d", document, chunkIndex)
}

// SyncDecision writes one decision and its citations in a single transaction.
// Re-syncing the same request id replaces its citations.
func SyncDecision(ctx context.Context, driver neo4j.DriverWithContext, d ClaimDecision) error {
	if driver == nil {
		return fmt.Errorf("neo4j driver is nil")
	}

	session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	params := map[string]any{
		"request_id": d.RequestID,
		"query":      d.Query,
		"decision":   d.Decision,
		"source":     d.Source,
		"model":      d.Model,
		"amount":     nil,
		"decided_at": d.DecidedAt.UTC(),
	}
	if d.Amount != nil {
		params["amount"] = *d.Amount
	}

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if _, err := tx.Run(ctx, `
			MERGE (c:Claim {request_id: $request_id})
			SET c.query = $query
			MERGE (c)-[:DECIDED]->(d:Decision {request_id: $request_id})
			SET d.decision = $decision,
			    d.source = $source,
			    d.model = $model,
			    d.amount = $amount,
			    d.decided_at = $decided_at
		`, params); err != nil {
			return nil, fmt.Errorf("upsert decision node: %w", err)
		}

		if _, err := tx.Run(ctx, `
			MATCH (:Decision {request_id: $request_id})-[r:CITES]->(:Clause)
			DELETE r
		`, map[string]any{"request_id": d.RequestID}); err != nil {
			return nil, fmt.Errorf("clear existing citations: %w", err)
		}

		for _, citation := range d.Citations {
			if _, err := tx.Run(ctx, `
				MATCH (d:Decision {request_id: $request_id})
				MERGE (doc:Document {name: $document})
				MERGE (cl:Clause {id: $clause_id})
				SET cl.chunk_index = $chunk_index,
				    cl.text = $clause
				MERGE (cl)-[:PART_OF]->(doc)
				MERGE (d)-[r:CITES {rank: $rank}]->(cl)
				SET r.similarity = $similarity
			`, map[string]any{
				"request_id":  d.RequestID,
				"document":    citation.Document,
				"clause_id":   clauseID(citation.Document, citation.ChunkIndex),
				"chunk_index": citation.ChunkIndex,
				"clause":      citation.Clause,
				"rank":        citation.Rank,
				"similarity":  citation.Similarity,
			}); err != nil {
				return nil, fmt.Errorf("upsert citation: %w", err)
			}
		}

		return nil, nil
	})

	return err
}

// CitedClauses returns the most frequently cited clauses with a breakdown of
// the decisions that cited them.
func CitedClauses(ctx context.Context, driver neo4j.DriverWithContext, limit int) ([]ClauseStat, error) {
	if driver == nil {
		return nil, fmt.Errorf("neo4j driver is nil")
	}
	if limit <= 0 {
		limit = 10
	}

	session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.Run(ctx, `
		MATCH (d:Decision)-[:CITES]->(cl:Clause)-[:PART_OF]->(doc:Document)
		WITH doc, cl,
		     count(d) AS citations,
		     sum(CASE d.decision WHEN 'approved' THEN 1 ELSE 0 END) AS approved,
		     sum(CASE d.decision WHEN 'rejected' THEN 1 ELSE 0 END) AS rejected
		RETURN doc.name AS document,
		       cl.chunk_index AS chunkIndex,
		       cl.text AS clause,
		       citations, approved, rejected
		ORDER BY citations DESC, document, chunkIndex
		LIMIT $limit
	`, map[string]any{"limit": limit})
	if err != nil {
		return nil, fmt.Errorf("run cited clauses query: %w", err)
	}

	stats := make([]ClauseStat, 0, limit)
	for result.Next(ctx) {
		record := result.Record()
		document, _ := record.Get("document")
		chunkIndex, _ := record.Get("chunkIndex")
		clause, _ := record.Get("clause")
		citations, _ := record.Get("citations")
		approved, _ := record.Get("approved")
		rejected, _ := record.Get("rejected")

		name, ok := document.(string)
		if !ok {
			continue
		}
		text, _ := clause.(string)

		stats = append(stats, ClauseStat{
			Document:   name,
			ChunkIndex: toInt(chunkIndex),
			Clause:     text,
			Citations:  toInt(citations),
			Approved:   toInt(approved),
			Rejected:   toInt(rejected),
		})
	}

	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("cited clauses result error: %w", err)
	}

	return stats, nil
}

func toInt(value any) int {
	switch v := value.(type) {
	case int64:
		return int(v)
	case int32:
		return int(v)
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}
