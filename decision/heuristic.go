package decision

import (
	"fmt"
	"strings"

	"github.com/fabfab/claim-agent/retrieval"
)

// Heuristic is the keyword fallback used when model output cannot be parsed.
type Heuristic struct {
	rejection []string
	approval  []string
}

func NewHeuristic(rejection, approval []string) Heuristic {
	return Heuristic{rejection: lowerAll(rejection), approval: lowerAll(approval)}
}

// Decide matches keywords against the lowercased text of all ranked chunks.
// Only rejection signals gives rejected, only approval signals gives approved,
// anything else is maybe.
func (h Heuristic) Decide(top []retrieval.ScoredChunk) Result {
	texts := make([]string, len(top))
	for i, chunk := range top {
		texts[i] = strings.ToLower(chunk.Text)
	}
	corpus := strings.Join(texts, " ")

	rejectHits := matches(corpus, h.rejection)
	approveHits := matches(corpus, h.approval)

	decision := Maybe
	switch {
	case len(rejectHits) > 0 && len(approveHits) == 0:
		decision = Rejected
	case len(approveHits) > 0 && len(rejectHits) == 0:
		decision = Approved
	}

	return Result{
		Decision:      decision,
		Amount:        nil,
		Justification: fromChunks(top),
		Explanation:   heuristicExplanation(rejectHits, approveHits),
	}
}

func heuristicExplanation(rejectHits, approveHits []string) string {
	return fmt.Sprintf(
		"The model response could not be parsed, so this decision was derived from a keyword heuristic over the retrieved clauses (rejection signals: %s; approval signals: %s).",
		describeHits(rejectHits), describeHits(approveHits),
	)
}

func describeHits(hits []string) string {
	if len(hits) == 0 {
		return "none"
	}
	quoted := make([]string, len(hits))
	for i, hit := range hits {
		quoted[i] = fmt.Sprintf("%q", hit)
	}
	return strings.Join(quoted, ", ")
}

func matches(corpus string, keywords []string) []string {
	var hits []string
	for _, keyword := range keywords {
		if keyword != "" && strings.Contains(corpus, keyword) {
			hits = append(hits, keyword)
		}
	}
	return hits
}

func lowerAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			out = append(out, v)
		}
	}
	return out
}
