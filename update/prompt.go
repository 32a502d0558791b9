package update

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/cortexmem/engine/types"
)

const decisionPromptTemplate = `You plan memory-store updates. You are given a numbered list of NEW FACTS
and a numbered list of EXISTING MEMORIES (referred to only by their index
below — never invent an id that is not listed).

Prefer IGNORE over UPDATE/MERGE to avoid fragmenting information. Prefer
MERGE over CREATE when a new fact is clearly related to an existing memory.
Use CREATE only for genuinely novel content.

For each new fact, emit one decision object:
{"action": "create|update|merge|delete|ignore", "fact_index": <int>,
"memory_ids": ["<existing memory index as string>", ...], "content": "...",
"reasoning": "..."}

For update: memory_ids has exactly one index, the memory to update, and
content is the full replacement text. For merge: memory_ids lists the
target index first followed by source indices, and content is the merged
text. For delete: memory_ids has exactly one index. For ignore: memory_ids
may be empty.

Respond with a strict JSON array of decision objects. Respond with ONLY the
JSON array.

NEW FACTS:
%s

EXISTING MEMORIES:
%s
`

func buildDecisionPrompt(facts []types.ExtractedFact, existing []types.Memory) string {
	var factsBlock strings.Builder
	for i, f := range facts {
		fmt.Fprintf(&factsBlock, "%d. [%s, importance %.2f] %s\n", i, f.Category, f.Importance, f.Content)
	}
	if len(facts) == 0 {
		factsBlock.WriteString("(none)\n")
	}

	var existingBlock strings.Builder
	for i, m := range existing {
		fmt.Fprintf(&existingBlock, "%d. %s\n", i, m.Content)
	}
	if len(existing) == 0 {
		existingBlock.WriteString("(none)\n")
	}

	return fmt.Sprintf(decisionPromptTemplate, factsBlock.String(), existingBlock.String())
}

var codeFencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?```")

func extractJSONArray(response string) string {
	response = strings.TrimSpace(response)
	if strings.Contains(response, "```") {
		if m := codeFencePattern.FindStringSubmatch(response); len(m) > 1 {
			return strings.TrimSpace(m[1])
		}
	}
	if start := strings.Index(response, "["); start >= 0 {
		if end := strings.LastIndex(response, "]"); end > start {
			return response[start : end+1]
		}
	}
	return response
}

// parseDecisions parses the planner's JSON array response. An unparseable
// response degrades to one CREATE decision per fact (spec §7 propagation
// policy: best-effort, never fatal for the planning stage itself).
func parseDecisions(raw string, facts []types.ExtractedFact) []rawDecision {
	clean := extractJSONArray(raw)

	var decisions []rawDecision
	if err := json.Unmarshal([]byte(clean), &decisions); err == nil {
		return decisions
	}

	fallback := make([]rawDecision, 0, len(facts))
	for i, f := range facts {
		fallback = append(fallback, rawDecision{
			Action:    string(ActionCreate),
			FactIndex: i,
			Content:   f.Content,
			Reasoning: "fallback: planner response unparseable",
		})
	}
	return fallback
}

func normalizeAction(raw string) Action {
	switch Action(strings.ToLower(strings.TrimSpace(raw))) {
	case ActionCreate, ActionUpdate, ActionMerge, ActionDelete, ActionIgnore:
		return Action(strings.ToLower(strings.TrimSpace(raw)))
	default:
		return ActionIgnore
	}
}
