package extract

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/cortexmem/engine/types"
)

type rawFact struct {
	Content    string   `json:"content"`
	Importance float32  `json:"importance"`
	Category   string   `json:"category"`
	Entities   []string `json:"entities"`
	Language   string   `json:"language"`
}

type rawFactsEnvelope struct {
	Facts []rawFact `json:"facts"`
}

var codeFencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?```")

// extractJSON strips markdown code fences and locates the outer JSON
// object/array within an LLM response, grounded on the teacher's
// structured output extractJSON (agent/structured/output.go).
func extractJSON(response string) string {
	response = strings.TrimSpace(response)

	if strings.Contains(response, "```") {
		if m := codeFencePattern.FindStringSubmatch(response); len(m) > 1 {
			return strings.TrimSpace(m[1])
		}
	}

	if start := strings.Index(response, "{"); start >= 0 {
		if end := strings.LastIndex(response, "}"); end > start {
			return response[start : end+1]
		}
	}
	if start := strings.Index(response, "["); start >= 0 {
		if end := strings.LastIndex(response, "]"); end > start {
			return response[start : end+1]
		}
	}
	return response
}

// parseFactsEnvelope parses a {"facts": [...]} response (spec §4.2.2 User /
// Assistant / user-focused-assistant prompts), degrading to a single
// Factual fact (importance 0.5) over the raw response when parsing fails
// even after fence-stripping.
func parseFactsEnvelope(raw string, sourceRole types.Role) []types.ExtractedFact {
	clean := extractJSON(raw)

	var env rawFactsEnvelope
	if err := json.Unmarshal([]byte(clean), &env); err == nil {
		return toExtractedFacts(env.Facts, sourceRole)
	}

	// The degradation path also tolerates a bare array response.
	var bare []rawFact
	if err := json.Unmarshal([]byte(clean), &bare); err == nil {
		return toExtractedFacts(bare, sourceRole)
	}

	return []types.ExtractedFact{degradedFact(raw, sourceRole)}
}

// parseFactsArray parses the single-text extraction prompt's bare JSON
// array response (spec §4.2.2).
func parseFactsArray(raw string, sourceRole types.Role) []types.ExtractedFact {
	clean := extractJSON(raw)

	var bare []rawFact
	if err := json.Unmarshal([]byte(clean), &bare); err == nil {
		return toExtractedFacts(bare, sourceRole)
	}
	var env rawFactsEnvelope
	if err := json.Unmarshal([]byte(clean), &env); err == nil {
		return toExtractedFacts(env.Facts, sourceRole)
	}

	return []types.ExtractedFact{degradedFact(raw, sourceRole)}
}

func degradedFact(raw string, sourceRole types.Role) types.ExtractedFact {
	content := strings.TrimSpace(raw)
	if content == "" {
		content = "(empty extraction response)"
	}
	return types.ExtractedFact{
		Content:    content,
		Importance: 0.5,
		Category:   types.CategoryFactual,
		SourceRole: sourceRole,
	}
}

func toExtractedFacts(raw []rawFact, sourceRole types.Role) []types.ExtractedFact {
	out := make([]types.ExtractedFact, 0, len(raw))
	for _, f := range raw {
		content := strings.TrimSpace(f.Content)
		if content == "" {
			continue
		}
		out = append(out, types.ExtractedFact{
			Content:    content,
			Importance: f.Importance,
			Category:   normalizeCategory(f.Category),
			Entities:   f.Entities,
			Language:   f.Language,
			SourceRole: sourceRole,
		})
	}
	return out
}

func normalizeCategory(raw string) types.FactCategory {
	switch types.FactCategory(strings.ToLower(strings.TrimSpace(raw))) {
	case types.CategoryPersonal:
		return types.CategoryPersonal
	case types.CategoryPreference:
		return types.CategoryPreference
	case types.CategoryProcedural:
		return types.CategoryProcedural
	case types.CategoryContextual:
		return types.CategoryContextual
	default:
		return types.CategoryFactual
	}
}
