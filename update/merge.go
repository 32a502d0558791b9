package update

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/cortexmem/engine/llmchat"
	"github.com/cortexmem/engine/types"
)

// ShouldMerge implements spec §4.3 "Should-merge predicate": cosine
// similarity between two memories' embeddings at or above the configured
// merge threshold.
func ShouldMerge(a, b types.Memory, mergeThreshold float64) bool {
	return cosineSimilarity(a.Embedding, b.Embedding) >= mergeThreshold
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

const mergePromptTemplate = `Consolidate the following related memory texts into a single coherent
memory that preserves every distinct fact, without repetition.

%s

Respond with ONLY the consolidated text, no preamble.
`

// mergeMemories concatenates target and source content and prompts chat to
// produce a single consolidated text (spec §4.3 "merge_memories").
func mergeMemories(ctx context.Context, chat llmchat.Provider, texts []string) (string, error) {
	return MergeTexts(ctx, chat, texts)
}

// MergeTexts consolidates a set of related memory texts into one coherent
// text via chat completion. Exported so other orchestration layers (the
// memory manager's auto-enhancement duplicate-merge step) can reuse the same
// consolidation prompt the updater uses internally.
func MergeTexts(ctx context.Context, chat llmchat.Provider, texts []string) (string, error) {
	var b strings.Builder
	for i, t := range texts {
		fmt.Fprintf(&b, "%d. %s\n", i+1, t)
	}
	resp, err := chat.Complete(ctx, &llmchat.Request{
		Messages: []llmchat.Message{{Role: llmchat.RoleUser, Content: fmt.Sprintf(mergePromptTemplate, b.String())}},
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}
