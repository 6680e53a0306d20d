// Package decision turns the top-ranked policy clauses and a generative model
// response into a structured coverage decision.
package decision

import (
	"strings"
)

type Decision string

const (
	Approved     Decision = "approved"
	Rejected     Decision = "rejected"
	Maybe        Decision = "maybe"
	ManualReview Decision = "manual_review"
)

// ParseDecision normalizes free-form model output ("Approved", "manual review",
// "MANUAL-REVIEW") to a Decision. Unknown values report false.
func ParseDecision(value string) (Decision, bool) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	normalized = strings.NewReplacer(" ", "_", "-", "_").Replace(normalized)

	switch d := Decision(normalized); d {
	case Approved, Rejected, Maybe, ManualReview:
		return d, true
	default:
		return "", false
	}
}

// Source records whether a result came from the model or the keyword fallback.
type Source string

const (
	SourceModel     Source = "model"
	SourceHeuristic Source = "heuristic"
)

// Result is the decision returned to the caller. Every justification entry
// references a chunk from the ranked set it was built from.
type Result struct {
	Decision      Decision        `json:"decision"`
	Amount        *float64        `json:"amount"`
	Justification []Justification `json:"justification"`
	Explanation   string          `json:"explanation"`
}

type Justification struct {
	Clause     string  `json:"clause"`
	Source     string  `json:"source"`
	ChunkIndex int     `json:"chunk_index"`
	Similarity float64 `json:"similarity"`
}
