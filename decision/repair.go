package decision

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/fabfab/claim-agent/retrieval"
)

const defaultExplanation = "No explanation returned by the model."

// ErrNoJSONObject is returned when the model output holds no balanced object.
var ErrNoJSONObject = errors.New("no JSON object in model output")

// ExtractJSONObject returns the first balanced {...} span in raw. Braces inside
// JSON string literals are ignored.
func ExtractJSONObject(raw string) (string, bool) {
	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		c := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return raw[start : i+1], true
			}
		}
	}
	return "", false
}

type modelOutput struct {
	Decision      json.RawMessage `json:"decision"`
	Amount        json.RawMessage `json:"amount"`
	Justification json.RawMessage `json:"justification"`
	Explanation   json.RawMessage `json:"explanation"`
}

type modelJustification struct {
	Clause     json.RawMessage `json:"clause"`
	Source     json.RawMessage `json:"source"`
	ChunkIndex json.RawMessage `json:"chunk_index"`
	Similarity json.RawMessage `json:"similarity"`
}

// Repair parses raw model output and conforms it to Result, filling gaps from
// the ranked chunks. It fails only when no JSON object can be parsed; any
// parsed object yields a complete Result.
func Repair(raw string, top []retrieval.ScoredChunk) (Result, error) {
	object, ok := ExtractJSONObject(raw)
	if !ok {
		return Result{}, ErrNoJSONObject
	}

	var out modelOutput
	if err := json.Unmarshal([]byte(object), &out); err != nil {
		return Result{}, fmt.Errorf("decode model output: %w", err)
	}

	return Result{
		Decision:      repairDecision(out.Decision),
		Amount:        repairAmount(out.Amount),
		Justification: repairJustification(out.Justification, top),
		Explanation:   repairExplanation(out.Explanation),
	}, nil
}

func repairDecision(raw json.RawMessage) Decision {
	value, ok := rawString(raw)
	if !ok {
		return ManualReview
	}
	if d, ok := ParseDecision(value); ok {
		return d
	}
	return ManualReview
}

func repairAmount(raw json.RawMessage) *float64 {
	if isNull(raw) {
		return nil
	}

	var number float64
	if err := json.Unmarshal(raw, &number); err == nil {
		return finite(number)
	}

	value, ok := rawString(raw)
	if !ok {
		return nil
	}
	return parseAmountString(value)
}

// parseAmountString accepts strings like "$1,200.50", "INR 50,000" or
// "50000/-". Anything else is treated as no amount.
func parseAmountString(value string) *float64 {
	value = strings.ReplaceAll(value, ",", "")
	value = strings.TrimLeftFunc(value, func(r rune) bool {
		return !unicode.IsDigit(r) && r != '-'
	})
	value = strings.TrimRightFunc(value, func(r rune) bool {
		return !unicode.IsDigit(r)
	})
	if value == "" {
		return nil
	}

	number, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil
	}
	return finite(number)
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func repairExplanation(raw json.RawMessage) string {
	value, ok := rawString(raw)
	if !ok || strings.TrimSpace(value) == "" {
		return defaultExplanation
	}
	return strings.TrimSpace(value)
}

// repairJustification pairs every model entry with a ranked chunk. An entry
// naming a ranked chunk by source and chunk_index keeps that chunk; any other
// entry takes the chunk at its position, clamped to the last one.
func repairJustification(raw json.RawMessage, top []retrieval.ScoredChunk) []Justification {
	var items []json.RawMessage
	if isNull(raw) || json.Unmarshal(raw, &items) != nil || len(items) == 0 {
		return fromChunks(top)
	}
	if len(top) == 0 {
		return []Justification{}
	}

	entries := make([]Justification, 0, len(items))
	for i, item := range items {
		entries = append(entries, pairEntry(item, top[min(i, len(top)-1)], top))
	}
	return entries
}

func pairEntry(item json.RawMessage, positional retrieval.ScoredChunk, top []retrieval.ScoredChunk) Justification {
	// Bare strings are clause text; other non-object entries carry nothing.
	var fields modelJustification
	if _, ok := rawString(item); ok {
		fields.Clause = item
	} else if err := json.Unmarshal(item, &fields); err != nil {
		fields = modelJustification{}
	}

	pair := positional
	matched := false
	source, hasSource := rawString(fields.Source)
	chunkIndex, hasIndex := rawInt(fields.ChunkIndex)
	if hasSource && hasIndex {
		for _, chunk := range top {
			if chunk.Source == strings.TrimSpace(source) && chunk.ChunkIndex == chunkIndex {
				pair = chunk
				matched = true
				break
			}
		}
	}

	entry := Justification{
		Source:     pair.Source,
		ChunkIndex: pair.ChunkIndex,
		Similarity: pair.Similarity,
	}

	if matched {
		if similarity, ok := rawFloat(fields.Similarity); ok && similarity >= -1 && similarity <= 1 {
			entry.Similarity = similarity
		}
	}

	if clause, ok := rawString(fields.Clause); ok && strings.TrimSpace(clause) != "" {
		entry.Clause = strings.TrimSpace(clause)
	} else {
		entry.Clause = excerpt(pair.Text)
	}

	return entry
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func rawString(raw json.RawMessage) (string, bool) {
	if isNull(raw) {
		return "", false
	}
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", false
	}
	return value, true
}

func rawFloat(raw json.RawMessage) (float64, bool) {
	if isNull(raw) {
		return 0, false
	}
	var value float64
	if err := json.Unmarshal(raw, &value); err != nil {
		s, ok := rawString(raw)
		if !ok {
			return 0, false
		}
		if value, err = strconv.ParseFloat(strings.TrimSpace(s), 64); err != nil {
			return 0, false
		}
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, false
	}
	return value, true
}

func rawInt(raw json.RawMessage) (int, bool) {
	value, ok := rawFloat(raw)
	if !ok || value != math.Trunc(value) {
		return 0, false
	}
	return int(value), true
}
