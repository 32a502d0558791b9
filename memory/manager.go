package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cortexmem/engine/cortexerr"
	"github.com/cortexmem/engine/embedding"
	"github.com/cortexmem/engine/extract"
	"github.com/cortexmem/engine/internal/workerpool"
	"github.com/cortexmem/engine/llmchat"
	"github.com/cortexmem/engine/types"
	"github.com/cortexmem/engine/update"
	"github.com/cortexmem/engine/vectorstore"
)

// Manager is the single orchestration surface over fact extraction, update
// planning, embeddings and the vector store (spec §4.1).
type Manager struct {
	store     vectorstore.Store
	embed     embedding.Provider
	extractor *extract.Extractor
	updater   *update.Updater
	enhancer  *enhancer
	pool      *workerpool.Pool
	cfg       Config
	logger    *zap.Logger
	now       func() time.Time
}

// New wires a Manager from its four dependency seams. chat is used both for
// fact extraction and (when cfg.AutoEnhance is on) the enhancement pipeline.
func New(store vectorstore.Store, embed embedding.Provider, chat llmchat.Provider, cfg Config, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "memory_manager"))
	cfg = cfg.withDefaults()
	return &Manager{
		store:     store,
		embed:     embed,
		extractor: extract.New(chat, logger),
		updater:   update.New(chat, embed, store, update.Config{MergeThreshold: cfg.MergeThreshold}, logger),
		enhancer:  newEnhancer(chat, store, embed, cfg, logger),
		pool:      workerpool.New(workerpool.Config{MaxWorkers: cfg.MaxConcurrentFacts}),
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// Store implements spec §4.1 "store": rejects empty content, deduplicates by
// hash under matching scope when enabled, otherwise embeds, enhances
// best-effort, and inserts.
func (m *Manager) Store(ctx context.Context, content string, metadata types.MemoryMetadata) (string, error) {
	if strings.TrimSpace(content) == "" {
		observeStore("rejected_empty")
		return "", cortexerr.New(cortexerr.Validation, "store: content must not be empty")
	}

	scope := scopeFromMetadata(metadata)
	if m.cfg.Deduplicate {
		if id, found, err := m.findDuplicate(ctx, content, scope); err != nil {
			return "", err
		} else if found {
			observeStore("deduplicated")
			return id, nil
		}
	}

	vecs, err := m.embed.EmbedDocuments(ctx, []string{content})
	if err != nil {
		observeStore("embed_error")
		return "", cortexerr.New(cortexerr.LLM, "store: embedding failed").WithCause(err)
	}
	var vec []float32
	if len(vecs) > 0 {
		vec = vecs[0]
	}

	now := m.now().UTC()
	metadata.Hash = types.HashContent(content)
	mem := types.Memory{
		ID:        uuid.NewString(),
		Content:   content,
		Embedding: vec,
		Metadata:  metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if m.cfg.AutoEnhance {
		result := m.enhancer.enhance(ctx, &mem)
		if result.MergedIntoID != "" {
			observeStore("merged")
			return result.MergedIntoID, nil
		}
	}
	if mem.Metadata.MemoryType == "" {
		mem.Metadata.MemoryType = types.Factual
	}
	if mem.Metadata.ImportanceScore == 0 {
		mem.Metadata.ImportanceScore = 0.5
	}

	if err := m.store.Insert(ctx, mem); err != nil {
		observeStore("insert_error")
		return "", cortexerr.New(cortexerr.VectorStore, "store: insert failed").WithCause(err)
	}
	observeStore("inserted")
	return mem.ID, nil
}

// findDuplicate scans up to cfg.DedupScanLimit candidates under scope for an
// exact content hash match. A candidate with empty content is skipped with a
// warning rather than treated as a duplicate (spec §4.1 failure semantics).
func (m *Manager) findDuplicate(ctx context.Context, content string, scope types.Scope) (string, bool, error) {
	candidates, err := m.store.List(ctx, scope.Filter(), m.cfg.DedupScanLimit)
	if err != nil {
		return "", false, cortexerr.New(cortexerr.VectorStore, "store: dedup scan failed").WithCause(err)
	}
	hash := types.HashContent(content)
	for _, c := range candidates {
		if c.Content == "" {
			m.logger.Warn("dedup scan skipped empty-content record", zap.String("id", c.ID))
			continue
		}
		if c.Metadata.Hash == hash {
			return c.ID, true, nil
		}
	}
	return "", false, nil
}

// AddMemory implements spec §4.1 "add_memory": the forced procedural path
// when (agent_id set ∧ memory_type == Procedural), otherwise extraction with
// its progressive empty-extraction fallback, followed by a per-fact
// search-then-plan-then-apply loop.
func (m *Manager) AddMemory(ctx context.Context, messages []types.Message, metadata types.MemoryMetadata) ([]update.ActionResult, error) {
	scope := scopeFromMetadata(metadata)

	var facts []types.ExtractedFact
	if metadata.AgentID != "" && metadata.MemoryType == types.Procedural {
		facts = m.extractor.ExtractProcedural(messages)
	} else {
		var err error
		facts, err = m.extractWithFallback(ctx, messages)
		if err != nil {
			return nil, err
		}
	}
	if len(facts) == 0 {
		return nil, nil
	}

	return m.planAndApplyFacts(ctx, facts, scope)
}

// extractWithFallback implements the progressive fallback ladder: standard
// extraction, then user-only, then per-message, then a single fact holding
// the concatenated user content (Factual category, importance 0.5), then
// empty. That last fact is planned through the updater like any extracted
// fact, so it is not written unconditionally: the planner may ignore or
// merge it.
func (m *Manager) extractWithFallback(ctx context.Context, messages []types.Message) ([]types.ExtractedFact, error) {
	facts, err := m.extractor.Extract(ctx, messages)
	if err != nil {
		return nil, cortexerr.New(cortexerr.LLM, "add_memory: extraction failed").WithCause(err)
	}
	if len(facts) > 0 {
		return facts, nil
	}

	userMessages := make([]types.Message, 0, len(messages))
	for _, msg := range messages {
		if msg.Role == types.RoleUser {
			userMessages = append(userMessages, msg)
		}
	}
	if len(userMessages) == 0 {
		return nil, nil
	}

	facts, err = m.extractor.Extract(ctx, userMessages)
	if err != nil {
		return nil, cortexerr.New(cortexerr.LLM, "add_memory: user-only fallback extraction failed").WithCause(err)
	}
	if len(facts) > 0 {
		return facts, nil
	}

	for _, msg := range userMessages {
		perMessage, err := m.extractor.ExtractFromText(ctx, msg.Content, types.RoleUser)
		if err != nil {
			return nil, cortexerr.New(cortexerr.LLM, "add_memory: per-message fallback extraction failed").WithCause(err)
		}
		facts = append(facts, perMessage...)
	}
	if len(facts) > 0 {
		return facts, nil
	}

	var concatenated strings.Builder
	for i, msg := range userMessages {
		if i > 0 {
			concatenated.WriteString("\n")
		}
		concatenated.WriteString(msg.Content)
	}
	text := strings.TrimSpace(concatenated.String())
	if text == "" {
		return nil, nil
	}
	return []types.ExtractedFact{{
		Content:    text,
		Importance: 0.5,
		Category:   types.CategoryFactual,
		SourceRole: types.RoleUser,
	}}, nil
}

// planAndApplyFacts embeds each fact, searches its top-K similar existing
// memories under scope, and invokes the updater to plan and apply one
// decision per fact. Facts are dispatched onto the bounded worker pool so
// real concurrency is capped at cfg.MaxConcurrentFacts regardless of how many
// facts were extracted; the first embedding/search/planning error aborts the
// remaining facts and propagates.
func (m *Manager) planAndApplyFacts(ctx context.Context, facts []types.ExtractedFact, scope types.Scope) ([]update.ActionResult, error) {
	results := make([][]update.ActionResult, len(facts))

	group, gctx := errgroup.WithContext(ctx)
	for i, fact := range facts {
		i, fact := i, fact
		group.Go(func() error {
			return m.pool.SubmitWait(gctx, func(ctx context.Context) error {
				vecs, err := m.embed.EmbedDocuments(ctx, []string{fact.Content})
				if err != nil {
					return cortexerr.New(cortexerr.LLM, "add_memory: embedding failed").WithCause(err)
				}
				var vec []float32
				if len(vecs) > 0 {
					vec = vecs[0]
				}

				similar, err := m.store.Search(ctx, vec, m.cfg.UpdateTopK, scope.Filter())
				if err != nil {
					return cortexerr.New(cortexerr.VectorStore, "add_memory: similarity search failed").WithCause(err)
				}
				existing := make([]types.Memory, len(similar))
				for j, s := range similar {
					existing[j] = s.Memory
				}

				applied, err := m.updater.PlanAndApply(ctx, []types.ExtractedFact{fact}, existing, scope)
				if err != nil {
					return cortexerr.New(cortexerr.LLM, "add_memory: update planning failed").WithCause(err)
				}
				results[i] = applied
				return nil
			})
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	out := make([]update.ActionResult, 0, len(facts))
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

// Search implements spec §4.1 "search": embed, delegate to the vector
// store's threshold search, then re-rank by 0.7·similarity + 0.3·importance
// with ties broken by newer created_at.
func (m *Manager) Search(ctx context.Context, query string, filter map[string]any, limit int) ([]types.ScoredMemory, error) {
	return m.SearchWithThreshold(ctx, query, filter, limit, nil)
}

// SearchWithThreshold is Search with an optional similarity floor forwarded
// to the backend.
func (m *Manager) SearchWithThreshold(ctx context.Context, query string, filter map[string]any, limit int, threshold *float64) ([]types.ScoredMemory, error) {
	start := m.now()
	defer func() { observeSearch(m.now().Sub(start)) }()

	vec, err := m.embed.EmbedQuery(ctx, query)
	if err != nil {
		return nil, cortexerr.New(cortexerr.LLM, "search: embedding failed").WithCause(err)
	}

	overfetch := limit * 3
	if overfetch < limit+10 {
		overfetch = limit + 10
	}
	candidates, err := m.store.SearchWithThreshold(ctx, vec, overfetch, filter, threshold)
	if err != nil {
		return nil, cortexerr.New(cortexerr.VectorStore, "search: backend search failed").WithCause(err)
	}

	blended(candidates)
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

// blended sorts candidates in place by the spec §4.1/§4.7 blended score:
// 0.7·similarity + 0.3·importance, ties broken by newer created_at.
func blended(candidates []types.ScoredMemory) {
	score := func(c types.ScoredMemory) float64 {
		return 0.7*c.Similarity + 0.3*float64(c.Memory.Metadata.ImportanceScore)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		si, sj := score(candidates[i]), score(candidates[j])
		if si != sj {
			return si > sj
		}
		return candidates[i].Memory.CreatedAt.After(candidates[j].Memory.CreatedAt)
	})
}

// Update replaces a memory's content, regenerating its embedding and hash.
func (m *Manager) Update(ctx context.Context, id string, content string) error {
	existing, err := m.store.Get(ctx, id)
	if err != nil {
		return cortexerr.New(cortexerr.NotFound, "update: memory not found").WithCause(err)
	}
	vec, err := m.embed.EmbedQuery(ctx, content)
	if err != nil {
		return cortexerr.New(cortexerr.LLM, "update: embedding failed").WithCause(err)
	}
	existing.Touch(content, vec, m.now().UTC())
	if err := m.store.Update(ctx, existing); err != nil {
		return cortexerr.New(cortexerr.VectorStore, "update: backend update failed").WithCause(err)
	}
	return nil
}

// UpdateMetadata replaces a memory's metadata, preserving its content hash
// (content is unchanged).
func (m *Manager) UpdateMetadata(ctx context.Context, id string, metadata types.MemoryMetadata) error {
	existing, err := m.store.Get(ctx, id)
	if err != nil {
		return cortexerr.New(cortexerr.NotFound, "update_metadata: memory not found").WithCause(err)
	}
	metadata.Hash = existing.Metadata.Hash
	existing.Metadata = metadata
	existing.UpdatedAt = m.now().UTC()
	if err := m.store.Update(ctx, existing); err != nil {
		return cortexerr.New(cortexerr.VectorStore, "update_metadata: backend update failed").WithCause(err)
	}
	return nil
}

// UpdateCompleteMemory replaces both content and metadata, regenerating
// embedding and hash.
func (m *Manager) UpdateCompleteMemory(ctx context.Context, id string, content string, metadata types.MemoryMetadata) error {
	existing, err := m.store.Get(ctx, id)
	if err != nil {
		return cortexerr.New(cortexerr.NotFound, "update_complete_memory: memory not found").WithCause(err)
	}
	vec, err := m.embed.EmbedQuery(ctx, content)
	if err != nil {
		return cortexerr.New(cortexerr.LLM, "update_complete_memory: embedding failed").WithCause(err)
	}
	now := m.now().UTC()
	existing.Content = content
	existing.Embedding = vec
	existing.Metadata = metadata
	existing.Metadata.Hash = types.HashContent(content)
	existing.UpdatedAt = now
	if err := m.store.Update(ctx, existing); err != nil {
		return cortexerr.New(cortexerr.VectorStore, "update_complete_memory: backend update failed").WithCause(err)
	}
	return nil
}

// SmartUpdate updates content only when it actually differs from the stored
// content, skipping a redundant embed+write otherwise.
func (m *Manager) SmartUpdate(ctx context.Context, id string, content string) error {
	existing, err := m.store.Get(ctx, id)
	if err != nil {
		return cortexerr.New(cortexerr.NotFound, "smart_update: memory not found").WithCause(err)
	}
	if existing.Content == content {
		return nil
	}
	return m.Update(ctx, id, content)
}

// Delete removes a memory by id. Deleting a missing id is not an error
// (contract of vectorstore.Store.Delete).
func (m *Manager) Delete(ctx context.Context, id string) error {
	if err := m.store.Delete(ctx, id); err != nil {
		return cortexerr.New(cortexerr.VectorStore, "delete: backend delete failed").WithCause(err)
	}
	return nil
}

// Get returns the memory stored under id.
func (m *Manager) Get(ctx context.Context, id string) (types.Memory, error) {
	mem, err := m.store.Get(ctx, id)
	if err != nil {
		return types.Memory{}, cortexerr.New(cortexerr.NotFound, "get: memory not found").WithCause(err)
	}
	return mem, nil
}

// List returns every memory matching filter, newest first, capped at limit.
func (m *Manager) List(ctx context.Context, filter map[string]any, limit int) ([]types.Memory, error) {
	mems, err := m.store.List(ctx, filter, limit)
	if err != nil {
		return nil, cortexerr.New(cortexerr.VectorStore, "list: backend list failed").WithCause(err)
	}
	return mems, nil
}

// Stats aggregates manager-level and backend health figures for get_stats.
type Stats struct {
	Healthy   bool
	Count     int
	Dimension int
	Latency   time.Duration
}

// GetStats reports backend aggregate figures (spec §4.1 "get_stats").
func (m *Manager) GetStats(ctx context.Context) (Stats, error) {
	health, err := m.store.HealthCheck(ctx)
	if err != nil {
		return Stats{}, cortexerr.New(cortexerr.VectorStore, "get_stats: health check failed").WithCause(err)
	}
	observeStoreSize(health.Count)
	return Stats{Healthy: health.Healthy, Count: health.Count, Dimension: health.Dimension, Latency: health.Latency}, nil
}

// HealthCheck reports the vector store backend's health directly (spec
// §4.1 "health_check").
func (m *Manager) HealthCheck(ctx context.Context) (vectorstore.HealthStatus, error) {
	return m.store.HealthCheck(ctx)
}

func scopeFromMetadata(metadata types.MemoryMetadata) types.Scope {
	return types.Scope{
		UserID:     metadata.UserID,
		AgentID:    metadata.AgentID,
		RunID:      metadata.RunID,
		ActorID:    metadata.ActorID,
		MemoryType: metadata.MemoryType,
		Custom:     metadata.Custom,
	}
}
