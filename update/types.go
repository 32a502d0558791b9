// Package update implements the Memory Updater (spec §4.3): it plans and
// applies CREATE/UPDATE/MERGE/DELETE/IGNORE actions against an existing set
// of memories, guarding against LLM-hallucinated identifiers.
package update

import "github.com/cortexmem/engine/types"

// Action is one of the five decision kinds the updater plans.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionMerge  Action = "merge"
	ActionDelete Action = "delete"
	ActionIgnore Action = "ignore"
)

// rawDecision is the shape the planning prompt is asked to emit (spec §4.3
// "Returned shape"). MemoryIDs refer to the prompt's temporary indices, not
// real memory ids — they must be resolved through the id map before use.
type rawDecision struct {
	Action    string   `json:"action"`
	FactIndex int      `json:"fact_index"`
	MemoryIDs []string `json:"memory_ids"`
	Content   string   `json:"content"`
	Reasoning string   `json:"reasoning"`
}

// ActionResult reports what the updater actually did for one fact, after
// resolution and the downgrade ladder (spec §4.1 "add_memory ... →
// action-results[]").
type ActionResult struct {
	Action    Action
	MemoryID  string
	FactIndex int
	Reasoning string
}
