package audit

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/fabfab/claim-agent/knowledge"
)

type GraphRecorder struct {
	driver neo4j.DriverWithContext
}

func NewGraphRecorder(driver neo4j.DriverWithContext) *GraphRecorder {
	return &GraphRecorder{driver: driver}
}

func (r *GraphRecorder) Record(ctx context.Context, entry Entry) error {
	if err := knowledge.SyncDecision(ctx, r.driver, ToClaimDecision(entry)); err != nil {
		return fmt.Errorf("sync decision graph: %w", err)
	}
	return nil
}

// ToClaimDecision maps an entry onto the provenance graph model. Citations
// keep the justification order as their rank.
func ToClaimDecision(entry Entry) knowledge.ClaimDecision {
	citations := make([]knowledge.Citation, len(entry.Result.Justification))
	for i, j := range entry.Result.Justification {
		citations[i] = knowledge.Citation{
			Rank:       i + 1,
			Document:   j.Source,
			ChunkIndex: j.ChunkIndex,
			Clause:     j.Clause,
			Similarity: j.Similarity,
		}
	}

	return knowledge.ClaimDecision{
		RequestID: entry.RequestID,
		Query:     entry.Query,
		Decision:  string(entry.Result.Decision),
		Source:    string(entry.Source),
		Model:     entry.Model,
		Amount:    entry.Result.Amount,
		DecidedAt: entry.DecidedAt,
		Citations: citations,
	}
}
