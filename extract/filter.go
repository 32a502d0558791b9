package extract

import (
	"sort"
	"strings"

	"github.com/cortexmem/engine/types"
)

// domainTerms is a fixed vocabulary of technical terms used by the
// fact-dedup heuristic (spec §4.2.4 step 3, "sharing >= 2 domain technical
// terms from a fixed list"). Not grounded in any corpus file — it is data,
// not a library concern.
var domainTerms = map[string]struct{}{
	"api": {}, "database": {}, "algorithm": {}, "function": {}, "variable": {},
	"server": {}, "client": {}, "framework": {}, "library": {}, "deploy": {},
	"deployment": {}, "container": {}, "kubernetes": {}, "docker": {},
	"authentication": {}, "encryption": {}, "network": {}, "latency": {},
	"cache": {}, "queue": {}, "thread": {}, "process": {}, "schema": {},
	"endpoint": {}, "token": {}, "session": {}, "repository": {}, "branch": {},
}

// FilterAndSort applies spec §4.2.4: drop low-importance facts, drop exact
// and near-duplicate facts, and sort the survivors by category priority
// then importance.
func FilterAndSort(facts []types.ExtractedFact) []types.ExtractedFact {
	kept := make([]types.ExtractedFact, 0, len(facts))

	for _, f := range facts {
		if f.Importance < 0.5 {
			continue
		}
		if isDuplicate(f, kept) {
			continue
		}
		kept = append(kept, f)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].Category.Priority() != kept[j].Category.Priority() {
			return kept[i].Category.Priority() > kept[j].Category.Priority()
		}
		return kept[i].Importance > kept[j].Importance
	})
	return kept
}

func isDuplicate(candidate types.ExtractedFact, kept []types.ExtractedFact) bool {
	normCandidate := normalizeForCompare(candidate.Content)
	candidateTokens := tokenize(candidate.Content)

	for _, k := range kept {
		if normalizeForCompare(k.Content) == normCandidate {
			return true
		}
		keptTokens := tokenize(k.Content)
		if jaccard(candidateTokens, keptTokens) > 0.7 {
			return true
		}
		if sharedDomainTerms(candidateTokens, keptTokens) >= 2 {
			return true
		}
	}
	return false
}

func normalizeForCompare(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func tokenize(s string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,!?;:\"'()")
		if f != "" {
			set[f] = struct{}{}
		}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	intersection := 0
	for t := range a {
		if _, ok := b[t]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func sharedDomainTerms(a, b map[string]struct{}) int {
	count := 0
	for t := range a {
		if _, ok := domainTerms[t]; !ok {
			continue
		}
		if _, ok := b[t]; ok {
			count++
		}
	}
	return count
}
