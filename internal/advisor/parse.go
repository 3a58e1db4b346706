package advisor

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/dansontsui/aistock-analysis/internal/models"
)

// ParseProposal decodes an advisor portfolio proposal leniently. Anything
// that is not a JSON array yields nil; malformed elements are skipped; codes
// arriving as bare numbers are stringified. The caller must treat nil as an
// empty proposal, never as a failed run.
func ParseProposal(raw []byte) []models.ProposedEntry {
	var items []map[string]any
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}

	var out []models.ProposedEntry
	for _, item := range items {
		code := asString(item["code"])
		if code == "" {
			continue
		}
		out = append(out, models.ProposedEntry{
			Code:         code,
			Name:         asString(item["name"]),
			Industry:     asString(item["industry"]),
			Reason:       asString(item["reason"]),
			EntryPrice:   asFloat(item["entryPrice"]),
			CurrentPrice: asFloat(item["currentPrice"]),
			Status:       asString(item["status"]),
		})
	}
	return out
}

// candidatePayload mirrors the expected shape of the candidate-generation
// reply. Candidates default to empty on any shape mismatch.
type candidatePayload struct {
	NewsSummary string            `json:"newsSummary"`
	Themes      []json.RawMessage `json:"themes"`
	Candidates  []json.RawMessage `json:"candidates"`
}

// ParseCandidates decodes the news reply into its summary, theme keywords
// and raw candidate list, skipping elements that fail to decode
// individually. Themes arrive either as bare strings or as objects with a
// keyword field.
func ParseCandidates(raw []byte) (string, []string, []models.Candidate) {
	var payload candidatePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", nil, nil
	}

	var themes []string
	for _, msg := range payload.Themes {
		var s string
		if err := json.Unmarshal(msg, &s); err == nil {
			if s = strings.TrimSpace(s); s != "" {
				themes = append(themes, s)
			}
			continue
		}
		var obj map[string]any
		if err := json.Unmarshal(msg, &obj); err != nil {
			continue
		}
		if kw := asString(obj["keyword"]); kw != "" {
			themes = append(themes, kw)
		}
	}

	var out []models.Candidate
	for _, msg := range payload.Candidates {
		var item map[string]any
		if err := json.Unmarshal(msg, &item); err != nil {
			continue
		}
		code := asString(item["code"])
		if code == "" {
			continue
		}
		out = append(out, models.Candidate{
			Code:     code,
			Name:     asString(item["name"]),
			Price:    asFloat(item["price"]),
			Reason:   asString(item["reason"]),
			Industry: asString(item["industry"]),
		})
	}
	return payload.NewsSummary, themes, out
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return ""
	}
}

func asFloat(v any) float64 {
	switch f := v.(type) {
	case float64:
		return f
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}
