package memory

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cortexmem/engine/types"
)

// OptimizationDetectorConfig bounds a hygiene scan. Grounded on the
// original cortex-mem-core OptimizationDetectorConfig (optimization_detector.rs):
// the cosine threshold above which two memories count as a duplicate
// cluster, the quality floor below which a memory is flagged, how many
// days of staleness counts as outdated, and a per-kind cap on how many
// issues a single scan reports.
type OptimizationDetectorConfig struct {
	DuplicateThreshold float64
	QualityThreshold   float64
	TimeDecayDays      int
	MaxIssuesPerType   int
}

func (c OptimizationDetectorConfig) withDefaults() OptimizationDetectorConfig {
	if c.DuplicateThreshold <= 0 {
		c.DuplicateThreshold = 0.85
	}
	if c.QualityThreshold <= 0 {
		c.QualityThreshold = 0.4
	}
	if c.TimeDecayDays <= 0 {
		c.TimeDecayDays = 30
	}
	if c.MaxIssuesPerType <= 0 {
		c.MaxIssuesPerType = 1000
	}
	return c
}

// OptimizationDetector scans a Manager's store for memory-hygiene issues:
// near-duplicate clusters, low-quality content, stale records, poor
// classification, and space inefficiency. Grounded on the original
// cortex-mem-core OptimizationDetector (memory/optimization_detector.rs),
// a feature this module's spec distillation otherwise dropped entirely.
//
// Unlike the original, which re-embeds every memory pair through the LLM
// client to score duplicates, this detector reuses each Memory's own
// Embedding (already computed by Store/AddMemory) for the cosine
// comparison — no additional embedding calls.
type OptimizationDetector struct {
	manager *Manager
	cfg     OptimizationDetectorConfig
	now     func() time.Time
}

// NewOptimizationDetector wires a detector over an existing Manager, so a
// scan always reads the same backend the manager writes to.
func NewOptimizationDetector(manager *Manager, cfg OptimizationDetectorConfig) *OptimizationDetector {
	return &OptimizationDetector{manager: manager, cfg: cfg.withDefaults(), now: time.Now}
}

// DetectIssues runs every sub-detector over the memories matching filters
// and returns their combined findings, capped per kind.
func (d *OptimizationDetector) DetectIssues(ctx context.Context, filters types.OptimizationFilters) ([]types.OptimizationIssue, error) {
	all, err := d.manager.List(ctx, filters.Filter(), 0)
	if err != nil {
		return nil, err
	}
	memories := all[:0:0]
	for _, m := range all {
		if filters.Matches(m) {
			memories = append(memories, m)
		}
	}

	var issues []types.OptimizationIssue
	issues = append(issues, d.detectDuplicates(memories)...)
	issues = append(issues, d.detectQualityIssues(memories)...)
	issues = append(issues, d.detectOutdatedIssues(memories)...)
	issues = append(issues, d.detectClassificationIssues(memories)...)

	// GetStats reports the store's unscoped total (spec's get_stats is
	// store-wide, not filterable), so the space-inefficiency checks below
	// use it as the denominator even when filters narrows the memories
	// slice above.
	stats, err := d.manager.GetStats(ctx)
	if err != nil {
		return nil, err
	}
	issues = append(issues, d.detectSpaceInefficiency(memories, stats.Count)...)

	return d.limitPerKind(issues), nil
}

// detectDuplicates groups memories whose stored embeddings are
// cosine-similar at or above cfg.DuplicateThreshold, matching the original
// detect_duplicates' all-pairs scan and severity rule (>2 similar peers is
// High, otherwise Medium).
func (d *OptimizationDetector) detectDuplicates(memories []types.Memory) []types.OptimizationIssue {
	if len(memories) < 2 {
		return nil
	}
	var issues []types.OptimizationIssue
	processed := make(map[string]bool)

	for i, mi := range memories {
		if processed[mi.ID] {
			continue
		}
		var similar []types.Memory
		for j := i + 1; j < len(memories); j++ {
			mj := memories[j]
			if processed[mj.ID] {
				continue
			}
			if cosineSimilarity(mi.Embedding, mj.Embedding) >= d.cfg.DuplicateThreshold {
				similar = append(similar, mj)
				processed[mj.ID] = true
			}
		}
		if len(similar) == 0 {
			continue
		}
		processed[mi.ID] = true

		affected := make([]string, 0, len(similar)+1)
		affected = append(affected, mi.ID)
		for _, s := range similar {
			affected = append(affected, s.ID)
		}
		severity := types.SeverityMedium
		if len(similar) > 2 {
			severity = types.SeverityHigh
		}
		issues = append(issues, types.OptimizationIssue{
			ID:               uuid.NewString(),
			Kind:             types.IssueDuplicate,
			Severity:         severity,
			Description:      fmt.Sprintf("%d highly similar memories detected", len(affected)),
			AffectedMemories: affected,
			Recommendation:   fmt.Sprintf("merge these %d duplicate memories", len(affected)),
		})
	}
	return issues
}

// detectQualityIssues scores each memory with evaluateQuality and flags
// anything below cfg.QualityThreshold, matching the original's
// half-threshold High/Low severity split.
func (d *OptimizationDetector) detectQualityIssues(memories []types.Memory) []types.OptimizationIssue {
	var issues []types.OptimizationIssue
	for _, mem := range memories {
		score := d.evaluateQuality(mem)
		if score >= d.cfg.QualityThreshold {
			continue
		}
		severity := types.SeverityLow
		if score < d.cfg.QualityThreshold/2 {
			severity = types.SeverityHigh
		}
		issues = append(issues, types.OptimizationIssue{
			ID:               uuid.NewString(),
			Kind:             types.IssueLowQuality,
			Severity:         severity,
			Description:      fmt.Sprintf("memory quality score %.2f is below threshold %.2f", score, d.cfg.QualityThreshold),
			AffectedMemories: []string{mem.ID},
			Recommendation:   "update or delete this low-quality memory",
		})
	}
	return issues
}

// evaluateQuality ports the original's weighted quality score: content
// length (30%), structural markers (20%), importance (20%), entity/topic
// metadata completeness (15%), and update recency (15%).
func (d *OptimizationDetector) evaluateQuality(mem types.Memory) float64 {
	var score float64

	length := len(mem.Content)
	switch {
	case length < 10:
		score += 0.1 * 0.3
	case length < 50:
		score += 0.5 * 0.3
	case length < 200:
		score += 0.8 * 0.3
	default:
		score += 1.0 * 0.3
	}

	hasSentence := strings.ContainsAny(mem.Content, ".!?")
	hasParagraph := strings.Contains(mem.Content, "\n")
	switch {
	case hasSentence && hasParagraph:
		score += 1.0 * 0.2
	case hasSentence || hasParagraph:
		score += 0.7 * 0.2
	default:
		score += 0.3 * 0.2
	}

	score += float64(mem.Metadata.ImportanceScore) * 0.2

	switch {
	case len(mem.Metadata.Entities) > 0 && len(mem.Metadata.Topics) > 0:
		score += 1.0 * 0.15
	case len(mem.Metadata.Entities) > 0 || len(mem.Metadata.Topics) > 0:
		score += 0.6 * 0.15
	default:
		score += 0.2 * 0.15
	}

	days := d.now().Sub(mem.UpdatedAt).Hours() / 24
	switch {
	case days < 7:
		score += 1.0 * 0.15
	case days < 30:
		score += 0.8 * 0.15
	case days < 90:
		score += 0.5 * 0.15
	default:
		score += 0.2 * 0.15
	}

	if score > 1.0 {
		score = 1.0
	}
	return score
}

// detectOutdatedIssues flags memories untouched for more than
// cfg.TimeDecayDays, matching the original's 2x/1.5x severity tiers and
// delete-vs-archive recommendation split.
func (d *OptimizationDetector) detectOutdatedIssues(memories []types.Memory) []types.OptimizationIssue {
	var issues []types.OptimizationIssue
	for _, mem := range memories {
		daysSinceUpdate := int(d.now().Sub(mem.UpdatedAt).Hours() / 24)
		if daysSinceUpdate <= d.cfg.TimeDecayDays {
			continue
		}

		var severity types.IssueSeverity
		switch {
		case daysSinceUpdate > d.cfg.TimeDecayDays*2:
			severity = types.SeverityHigh
		case float64(daysSinceUpdate) > float64(d.cfg.TimeDecayDays)*1.5:
			severity = types.SeverityMedium
		default:
			severity = types.SeverityLow
		}
		recommendation := "archive this outdated memory"
		if severity == types.SeverityHigh {
			recommendation = "delete this outdated memory"
		}

		issues = append(issues, types.OptimizationIssue{
			ID:               uuid.NewString(),
			Kind:             types.IssueOutdated,
			Severity:         severity,
			Description:      fmt.Sprintf("memory has not been updated in %d days, past the %d day threshold", daysSinceUpdate, d.cfg.TimeDecayDays),
			AffectedMemories: []string{mem.ID},
			Recommendation:   recommendation,
		})
	}
	return issues
}

// detectClassificationIssues flags missing entity/topic metadata on
// sufficiently long content, and a mismatch between the memory's stored
// MemoryType and one inferred from keywords in its content, matching the
// original's length-gated checks.
func (d *OptimizationDetector) detectClassificationIssues(memories []types.Memory) []types.OptimizationIssue {
	var issues []types.OptimizationIssue
	for _, mem := range memories {
		var descs []string
		if len(mem.Metadata.Entities) == 0 && len(mem.Content) > 200 {
			descs = append(descs, "missing entity information")
		}
		if len(mem.Metadata.Topics) == 0 && len(mem.Content) > 100 {
			descs = append(descs, "missing topic information")
		}
		if detected := detectMemoryTypeFromContent(mem.Content); detected != mem.Metadata.MemoryType && len(mem.Content) > 50 {
			descs = append(descs, fmt.Sprintf("memory type may not match content: stored %q, detected %q", mem.Metadata.MemoryType, detected))
		}

		for _, desc := range descs {
			issues = append(issues, types.OptimizationIssue{
				ID:               uuid.NewString(),
				Kind:             types.IssuePoorClassification,
				Severity:         types.SeverityLow,
				Description:      "classification issue: " + desc,
				AffectedMemories: []string{mem.ID},
				Recommendation:   "reclassify this memory",
			})
		}
	}
	return issues
}

// detectMemoryTypeFromContent is the original's keyword-based type
// heuristic (detect_memory_type_from_content), English-only.
func detectMemoryTypeFromContent(content string) types.MemoryType {
	lower := strings.ToLower(content)
	switch {
	case containsAny(lower, "how", "step", "method", "process"):
		return types.Procedural
	case containsAny(lower, "fact", "info", "data", "knowledge"):
		return types.Factual
	case containsAny(lower, "concept", "meaning", "understand", "definition"):
		return types.Semantic
	case containsAny(lower, "happen", "experience", "event", "when"):
		return types.Episodic
	case containsAny(lower, "like", "prefer", "personality", "habit"):
		return types.Personal
	default:
		return types.Conversational
	}
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// detectSpaceInefficiency flags oversized low-importance memories, an
// overgrown total store, and a store dominated by low-importance memories,
// matching the original's three space-inefficiency checks.
func (d *OptimizationDetector) detectSpaceInefficiency(memories []types.Memory, totalCount int) []types.OptimizationIssue {
	var issues []types.OptimizationIssue

	for _, mem := range memories {
		size := len(mem.Content) + len(mem.Embedding)*4
		if size > 10000 && mem.Metadata.ImportanceScore < 0.3 {
			issues = append(issues, types.OptimizationIssue{
				ID:               uuid.NewString(),
				Kind:             types.IssueSpaceInefficient,
				Severity:         types.SeverityLow,
				Description:      fmt.Sprintf("large, low-importance memory occupies %d bytes", size),
				AffectedMemories: []string{mem.ID},
				Recommendation:   "summarize or archive this large memory",
			})
		}
	}

	if totalCount > 10000 {
		issues = append(issues, types.OptimizationIssue{
			ID:               uuid.NewString(),
			Kind:             types.IssueSpaceInefficient,
			Severity:         types.SeverityMedium,
			Description:      fmt.Sprintf("memory count is %d, which may hurt query performance", totalCount),
			AffectedMemories: nil,
			Recommendation:   "run a deeper optimization/cleanup pass",
		})
	}

	if totalCount > 0 {
		var lowImportance []string
		for _, mem := range memories {
			if mem.Metadata.ImportanceScore < 0.2 {
				lowImportance = append(lowImportance, mem.ID)
			}
		}
		if float64(len(lowImportance)) > float64(totalCount)/4 {
			issues = append(issues, types.OptimizationIssue{
				ID:       uuid.NewString(),
				Kind:     types.IssueSpaceInefficient,
				Severity: types.SeverityMedium,
				Description: fmt.Sprintf("too many low-importance memories: %d / %d (%.1f%%)",
					len(lowImportance), totalCount, float64(len(lowImportance))/float64(totalCount)*100),
				AffectedMemories: lowImportance,
				Recommendation:   "archive or delete these low-importance memories",
			})
		}
	}

	return issues
}

// limitPerKind truncates each kind's issues to cfg.MaxIssuesPerType,
// matching the original's limit_issues_per_type.
func (d *OptimizationDetector) limitPerKind(issues []types.OptimizationIssue) []types.OptimizationIssue {
	byKind := make(map[types.IssueKind][]types.OptimizationIssue)
	var order []types.IssueKind
	for _, issue := range issues {
		if _, ok := byKind[issue.Kind]; !ok {
			order = append(order, issue.Kind)
		}
		byKind[issue.Kind] = append(byKind[issue.Kind], issue)
	}

	out := make([]types.OptimizationIssue, 0, len(issues))
	for _, kind := range order {
		kindIssues := byKind[kind]
		if len(kindIssues) > d.cfg.MaxIssuesPerType {
			kindIssues = kindIssues[:d.cfg.MaxIssuesPerType]
		}
		out = append(out, kindIssues...)
	}
	return out
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
