package memory

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/cortexmem/engine/embedding"
	"github.com/cortexmem/engine/llmchat"
	"github.com/cortexmem/engine/types"
	"github.com/cortexmem/engine/update"
	"github.com/cortexmem/engine/vectorstore"
)

// enhancer runs the store() enhancement pipeline (spec §4.1): keyword
// extraction, summarization for long content, type classification,
// entity/topic extraction, importance evaluation, duplicate merge. Every
// sub-step is best-effort: a failure is logged and skipped, never
// propagated (spec §4.1 "Failure semantics").
type enhancer struct {
	chat   llmchat.Provider
	store  vectorstore.Store
	embed  embedding.Provider
	cfg    Config
	logger *zap.Logger
}

func newEnhancer(chat llmchat.Provider, store vectorstore.Store, embed embedding.Provider, cfg Config, logger *zap.Logger) *enhancer {
	return &enhancer{chat: chat, store: store, embed: embed, cfg: cfg, logger: logger.With(zap.String("component", "memory_enhancer"))}
}

// enhanceResult reports whether the new memory was merged into an existing
// one during the duplicate-merge sub-step; when MergedIntoID is non-empty
// the caller must not insert mem as a new record.
type enhanceResult struct {
	MergedIntoID string
}

func (e *enhancer) enhance(ctx context.Context, mem *types.Memory) enhanceResult {
	e.extractKeywords(mem)
	e.summarizeIfLong(ctx, mem)
	e.classifyType(ctx, mem)
	e.extractEntitiesTopics(ctx, mem)
	e.evaluateImportance(ctx, mem)
	return e.mergeDuplicateCandidate(ctx, mem)
}

var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "is": {}, "are": {}, "was": {}, "were": {},
	"and": {}, "or": {}, "but": {}, "of": {}, "to": {}, "in": {}, "on": {},
	"for": {}, "with": {}, "at": {}, "by": {}, "this": {}, "that": {}, "it": {},
	"i": {}, "you": {}, "he": {}, "she": {}, "they": {}, "we": {}, "be": {},
	"as": {}, "from": {}, "has": {}, "have": {}, "had": {}, "will": {}, "can": {},
}

// extractKeywords is a stdlib frequency-based heuristic (no corpus library
// fits bare keyword extraction; see DESIGN.md): top non-stopword tokens by
// occurrence count, stored under Metadata.Custom["keywords"].
func (e *enhancer) extractKeywords(mem *types.Memory) {
	counts := make(map[string]int)
	for _, tok := range strings.Fields(strings.ToLower(mem.Content)) {
		tok = strings.Trim(tok, ".,!?;:\"'()[]{}")
		if tok == "" {
			continue
		}
		if _, stop := stopwords[tok]; stop {
			continue
		}
		counts[tok]++
	}
	if len(counts) == 0 {
		return
	}
	keywords := make([]string, 0, len(counts))
	for k := range counts {
		keywords = append(keywords, k)
	}
	sort.Slice(keywords, func(i, j int) bool {
		if counts[keywords[i]] != counts[keywords[j]] {
			return counts[keywords[i]] > counts[keywords[j]]
		}
		return keywords[i] < keywords[j]
	})
	if len(keywords) > 5 {
		keywords = keywords[:5]
	}
	setCustom(mem, "keywords", keywords)
}

const summarizePromptTemplate = `Summarize the following memory content in one or two sentences, preserving
every distinct fact:

%s

Respond with ONLY the summary.
`

func (e *enhancer) summarizeIfLong(ctx context.Context, mem *types.Memory) {
	if len(mem.Content) <= e.cfg.AutoSummaryChars {
		return
	}
	resp, err := e.chat.Complete(ctx, &llmchat.Request{
		Messages: []llmchat.Message{{Role: llmchat.RoleUser, Content: fmt.Sprintf(summarizePromptTemplate, mem.Content)}},
	})
	if err != nil {
		e.logger.Warn("enhancement: summarization skipped", zap.Error(err))
		return
	}
	setCustom(mem, "summary", strings.TrimSpace(resp.Content))
}

const classifyPromptTemplate = `Classify the following memory content as exactly one of: conversational,
procedural, factual, semantic, episodic, personal.

%s

Respond with ONLY the single classification word.
`

func (e *enhancer) classifyType(ctx context.Context, mem *types.Memory) {
	if mem.Metadata.MemoryType != "" {
		return
	}
	resp, err := e.chat.Complete(ctx, &llmchat.Request{
		Messages: []llmchat.Message{{Role: llmchat.RoleUser, Content: fmt.Sprintf(classifyPromptTemplate, mem.Content)}},
	})
	if err != nil {
		e.logger.Warn("enhancement: type classification skipped", zap.Error(err))
		return
	}
	if t := types.MemoryType(strings.ToLower(strings.TrimSpace(resp.Content))); isValidMemoryType(t) {
		mem.Metadata.MemoryType = t
	}
}

func isValidMemoryType(t types.MemoryType) bool {
	switch t {
	case types.Conversational, types.Procedural, types.Factual, types.Semantic, types.Episodic, types.Personal:
		return true
	default:
		return false
	}
}

const entitiesTopicsPromptTemplate = `Extract distinct named entities and general topics from the following
memory content. Respond with strict JSON {"entities": [...], "topics": [...]}.

%s
`

type rawEntitiesTopics struct {
	Entities []string `json:"entities"`
	Topics   []string `json:"topics"`
}

func (e *enhancer) extractEntitiesTopics(ctx context.Context, mem *types.Memory) {
	if len(mem.Metadata.Entities) > 0 && len(mem.Metadata.Topics) > 0 {
		return
	}
	resp, err := e.chat.Complete(ctx, &llmchat.Request{
		Messages: []llmchat.Message{{Role: llmchat.RoleUser, Content: fmt.Sprintf(entitiesTopicsPromptTemplate, mem.Content)}},
	})
	if err != nil {
		e.logger.Warn("enhancement: entity/topic extraction skipped", zap.Error(err))
		return
	}
	var parsed rawEntitiesTopics
	if !decodeJSONLoose(resp.Content, &parsed) {
		e.logger.Warn("enhancement: entity/topic response unparseable")
		return
	}
	if len(mem.Metadata.Entities) == 0 {
		mem.Metadata.Entities = parsed.Entities
	}
	if len(mem.Metadata.Topics) == 0 {
		mem.Metadata.Topics = parsed.Topics
	}
}

const importancePromptTemplate = `On a scale from 0.0 to 1.0, how important is the following content to
remember long-term about the user? Respond with ONLY the number.

%s
`

func (e *enhancer) evaluateImportance(ctx context.Context, mem *types.Memory) {
	if mem.Metadata.ImportanceScore != 0 {
		return
	}
	resp, err := e.chat.Complete(ctx, &llmchat.Request{
		Messages: []llmchat.Message{{Role: llmchat.RoleUser, Content: fmt.Sprintf(importancePromptTemplate, mem.Content)}},
	})
	if err != nil {
		e.logger.Warn("enhancement: importance evaluation skipped", zap.Error(err))
		return
	}
	if v, err := strconv.ParseFloat(strings.TrimSpace(resp.Content), 32); err == nil && v >= 0 && v <= 1 {
		mem.Metadata.ImportanceScore = float32(v)
	}
}

// mergeDuplicateCandidate searches for the single most similar existing
// memory under the same scope; if it clears the merge threshold, the new
// content is consolidated into it via update.MergeTexts rather than inserted
// as a separate record.
func (e *enhancer) mergeDuplicateCandidate(ctx context.Context, mem *types.Memory) enhanceResult {
	if len(mem.Embedding) == 0 {
		return enhanceResult{}
	}
	scope := scopeFromMetadata(mem.Metadata)
	similar, err := e.store.Search(ctx, mem.Embedding, 1, scope.Filter())
	if err != nil || len(similar) == 0 {
		if err != nil {
			e.logger.Warn("enhancement: duplicate-merge search skipped", zap.Error(err))
		}
		return enhanceResult{}
	}

	candidate := similar[0].Memory
	if !update.ShouldMerge(candidate, *mem, e.cfg.MergeThreshold) {
		return enhanceResult{}
	}

	merged, err := update.MergeTexts(ctx, e.chat, []string{candidate.Content, mem.Content})
	if err != nil {
		e.logger.Warn("enhancement: duplicate merge consolidation failed", zap.Error(err))
		return enhanceResult{}
	}

	vecs, err := e.embed.EmbedDocuments(ctx, []string{merged})
	if err != nil {
		e.logger.Warn("enhancement: duplicate merge re-embedding failed", zap.Error(err))
		return enhanceResult{}
	}
	var vec []float32
	if len(vecs) > 0 {
		vec = vecs[0]
	}
	candidate.Touch(merged, vec, candidate.UpdatedAt)
	if err := e.store.Update(ctx, candidate); err != nil {
		e.logger.Warn("enhancement: duplicate merge write failed", zap.Error(err))
		return enhanceResult{}
	}
	return enhanceResult{MergedIntoID: candidate.ID}
}

func setCustom(mem *types.Memory, key string, value any) {
	if mem.Metadata.Custom == nil {
		mem.Metadata.Custom = make(map[string]any)
	}
	mem.Metadata.Custom[key] = value
}
