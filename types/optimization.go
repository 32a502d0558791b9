package types

import "time"

// IssueKind classifies an OptimizationIssue surfaced by a memory-hygiene
// scan (SPEC_FULL.md "Memory optimization detector").
type IssueKind string

const (
	IssueDuplicate          IssueKind = "duplicate"
	IssueLowQuality         IssueKind = "low_quality"
	IssueOutdated           IssueKind = "outdated"
	IssuePoorClassification IssueKind = "poor_classification"
	IssueSpaceInefficient   IssueKind = "space_inefficient"
)

// IssueSeverity ranks how urgently an OptimizationIssue should be acted on.
type IssueSeverity string

const (
	SeverityLow    IssueSeverity = "low"
	SeverityMedium IssueSeverity = "medium"
	SeverityHigh   IssueSeverity = "high"
)

// OptimizationIssue is one finding from a hygiene scan: a group of affected
// memory ids, why they were flagged, and a recommended remedy.
type OptimizationIssue struct {
	ID               string
	Kind             IssueKind
	Severity         IssueSeverity
	Description      string
	AffectedMemories []string
	Recommendation   string
}

// OptimizationFilters scopes a hygiene scan the same way Scope scopes a
// search, plus an importance/date range specific to detecting staleness
// and low-value memories.
type OptimizationFilters struct {
	UserID        string
	AgentID       string
	MemoryType    MemoryType
	MinImportance *float32
	MaxImportance *float32
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	Custom        map[string]any
}

// Filter renders the equality-comparable fields as a filter map for
// vectorstore.Store/Manager.List, mirroring Scope.Filter. The
// importance/date ranges have no equality-filter equivalent and are
// applied in-process by the detector after listing.
func (f OptimizationFilters) Filter() map[string]any {
	out := make(map[string]any)
	if f.UserID != "" {
		out["user_id"] = f.UserID
	}
	if f.AgentID != "" {
		out["agent_id"] = f.AgentID
	}
	if f.MemoryType != "" {
		out["memory_type"] = string(f.MemoryType)
	}
	for k, v := range f.Custom {
		out["custom_"+k] = v
	}
	return out
}

// Matches reports whether mem satisfies the importance/date ranges not
// already applied by Filter.
func (f OptimizationFilters) Matches(mem Memory) bool {
	if f.MinImportance != nil && mem.Metadata.ImportanceScore < *f.MinImportance {
		return false
	}
	if f.MaxImportance != nil && mem.Metadata.ImportanceScore > *f.MaxImportance {
		return false
	}
	if f.CreatedAfter != nil && mem.CreatedAt.Before(*f.CreatedAfter) {
		return false
	}
	if f.CreatedBefore != nil && mem.CreatedAt.After(*f.CreatedBefore) {
		return false
	}
	return true
}
