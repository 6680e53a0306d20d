package decision

import (
	"fmt"
	"strings"

	"github.com/fabfab/claim-agent/llm"
	"github.com/fabfab/claim-agent/retrieval"
)

// ExcerptLength is the maximum clause excerpt length in characters.
const ExcerptLength = 300

// BuildContext renders the ranked chunks as a numbered clause list.
func BuildContext(top []retrieval.ScoredChunk) string {
	var sb strings.Builder
	for i, chunk := range top {
		sb.WriteString(fmt.Sprintf("[%d] (source: %s, chunk: %d, similarity: %.4f)\n", i+1, chunk.Source, chunk.ChunkIndex, chunk.Similarity))
		sb.WriteString(chunk.Text)
		sb.WriteString("\n\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func systemPrompt() string {
	return "You are an insurance claims assessor. Decide whether the claim described by the user is covered, using only the numbered policy clauses supplied. " +
		"Respond with a single JSON object and nothing else, in this shape: " +
		`{"decision": "approved" | "rejected" | "maybe" | "manual_review", ` +
		`"amount": number or null, ` +
		`"justification": [{"clause": "quoted clause text", "source": "source label", "chunk_index": number, "similarity": number}], ` +
		`"explanation": "short reasoning"}. ` +
		"Cite only clauses from the list, copying their source and chunk values. Use null for amount when the clauses do not fix a payable sum."
}

func formatUserPrompt(query, context string) string {
	var sb strings.Builder
	sb.WriteString("Claim query:\n")
	sb.WriteString(query)
	sb.WriteString("\n\nPolicy clauses:\n")
	sb.WriteString(context)
	sb.WriteString("\n\nReturn the JSON decision object.")
	return sb.String()
}

func buildMessages(query string, top []retrieval.ScoredChunk) []llm.Message {
	return []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt()},
		{Role: llm.RoleUser, Content: formatUserPrompt(query, BuildContext(top))},
	}
}

func excerpt(text string) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= ExcerptLength {
		return text
	}
	return strings.TrimSpace(string(runes[:ExcerptLength])) + "..."
}

// fromChunks builds one justification entry per ranked chunk.
func fromChunks(top []retrieval.ScoredChunk) []Justification {
	entries := make([]Justification, len(top))
	for i, chunk := range top {
		entries[i] = Justification{
			Clause:     excerpt(chunk.Text),
			Source:     chunk.Source,
			ChunkIndex: chunk.ChunkIndex,
			Similarity: chunk.Similarity,
		}
	}
	return entries
}
