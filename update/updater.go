package update

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cortexmem/engine/embedding"
	"github.com/cortexmem/engine/llmchat"
	"github.com/cortexmem/engine/types"
	"github.com/cortexmem/engine/vectorstore"
)

// Config bounds the updater's behavior (spec §4.3).
type Config struct {
	// MergeThreshold is the cosine-similarity floor for ShouldMerge,
	// typically 0.9.
	MergeThreshold float64
}

func (c Config) withDefaults() Config {
	if c.MergeThreshold <= 0 {
		c.MergeThreshold = 0.9
	}
	return c
}

// Updater plans CREATE/UPDATE/MERGE/DELETE/IGNORE actions from extracted
// facts against a set of candidate existing memories, and applies them.
type Updater struct {
	chat   llmchat.Provider
	embed  embedding.Provider
	store  vectorstore.Store
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

// New creates an Updater.
func New(chat llmchat.Provider, embed embedding.Provider, store vectorstore.Store, cfg Config, logger *zap.Logger) *Updater {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Updater{
		chat:   chat,
		embed:  embed,
		store:  store,
		cfg:    cfg.withDefaults(),
		logger: logger.With(zap.String("component", "memory_updater")),
		now:    time.Now,
	}
}

// PlanAndApply implements spec §4.3 end to end: prompts the LLM for a
// decision per fact, resolves temporary memory indices through the id map,
// applies the downgrade ladder, and executes the resulting action against
// the vector store.
func (u *Updater) PlanAndApply(ctx context.Context, facts []types.ExtractedFact, existing []types.Memory, scope types.Scope) ([]ActionResult, error) {
	if len(facts) == 0 {
		return nil, nil
	}

	ids := newIDMap(existing)
	prompt := buildDecisionPrompt(facts, existing)
	resp, err := u.chat.Complete(ctx, &llmchat.Request{
		Messages: []llmchat.Message{{Role: llmchat.RoleUser, Content: prompt}},
	})
	if err != nil {
		return nil, err
	}

	decisions := parseDecisions(resp.Content, facts)
	results := make([]ActionResult, 0, len(decisions))

	for _, d := range decisions {
		action := normalizeAction(d.Action)
		realIDs := ids.resolve(d.MemoryIDs)

		result, ok, err := u.applyDecision(ctx, action, d, realIDs, facts, scope)
		if err != nil {
			u.logger.Warn("applying decision failed", zap.String("action", string(action)), zap.Error(err))
			continue
		}
		if ok {
			results = append(results, result)
		}
	}
	return results, nil
}

// applyDecision executes one resolved decision, implementing the
// hallucination downgrade ladder (spec §4.3 "Hallucination-resistant ID
// mapping"): MERGE with <2 valid ids downgrades to UPDATE or CREATE; UPDATE
// of a missing memory downgrades to CREATE; DELETE of a missing memory is
// dropped silently.
func (u *Updater) applyDecision(ctx context.Context, action Action, d rawDecision, realIDs []string, facts []types.ExtractedFact, scope types.Scope) (ActionResult, bool, error) {
	switch action {
	case ActionMerge:
		switch len(realIDs) {
		case 0:
			res, err := u.applyCreate(ctx, d.Content, d.FactIndex, facts, scope, d.Reasoning)
			return res, err == nil, err
		case 1:
			res, err := u.applyUpdate(ctx, realIDs[0], d.Content, d.Reasoning)
			return res, err == nil, err
		default:
			res, err := u.applyMerge(ctx, realIDs[0], realIDs[1:], d.Content, d.Reasoning)
			return res, err == nil, err
		}

	case ActionUpdate:
		if len(realIDs) != 1 {
			res, err := u.applyCreate(ctx, d.Content, d.FactIndex, facts, scope, d.Reasoning)
			return res, err == nil, err
		}
		res, err := u.applyUpdate(ctx, realIDs[0], d.Content, d.Reasoning)
		return res, err == nil, err

	case ActionDelete:
		if len(realIDs) != 1 {
			return ActionResult{}, false, nil
		}
		res, err := u.applyDelete(ctx, realIDs[0], d.Reasoning)
		return res, err == nil, err

	case ActionCreate:
		res, err := u.applyCreate(ctx, d.Content, d.FactIndex, facts, scope, d.Reasoning)
		return res, err == nil, err

	default: // ActionIgnore and anything unrecognized
		return ActionResult{Action: ActionIgnore, FactIndex: d.FactIndex, Reasoning: d.Reasoning}, true, nil
	}
}

func (u *Updater) applyCreate(ctx context.Context, content string, factIndex int, facts []types.ExtractedFact, scope types.Scope, reasoning string) (ActionResult, error) {
	category := types.CategoryFactual
	importance := float32(0.5)
	var entities []string
	if content == "" && factIndex >= 0 && factIndex < len(facts) {
		content = facts[factIndex].Content
	}
	if factIndex >= 0 && factIndex < len(facts) {
		f := facts[factIndex]
		category = f.Category
		importance = f.Importance
		entities = f.Entities
	}

	embeddings, err := u.embed.EmbedDocuments(ctx, []string{content})
	if err != nil {
		return ActionResult{}, err
	}

	now := u.now().UTC()
	mem := types.Memory{
		ID:      uuid.NewString(),
		Content: content,
		Metadata: types.MemoryMetadata{
			Hash:            types.HashContent(content),
			MemoryType:      types.MemoryTypeForCategory(category),
			UserID:          scope.UserID,
			AgentID:         scope.AgentID,
			RunID:           scope.RunID,
			ActorID:         scope.ActorID,
			ImportanceScore: importance,
			Entities:        entities,
			Custom:          scope.Custom,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if len(embeddings) > 0 {
		mem.Embedding = embeddings[0]
	}

	if err := u.store.Insert(ctx, mem); err != nil {
		return ActionResult{}, err
	}
	return ActionResult{Action: ActionCreate, MemoryID: mem.ID, FactIndex: factIndex, Reasoning: reasoning}, nil
}

func (u *Updater) applyUpdate(ctx context.Context, id string, content string, reasoning string) (ActionResult, error) {
	existing, err := u.store.Get(ctx, id)
	if err != nil {
		return ActionResult{}, err
	}
	if content == "" {
		content = existing.Content
	}

	embeddings, err := u.embed.EmbedDocuments(ctx, []string{content})
	if err != nil {
		return ActionResult{}, err
	}
	var vec []float32
	if len(embeddings) > 0 {
		vec = embeddings[0]
	}
	existing.Touch(content, vec, u.now().UTC())

	if err := u.store.Update(ctx, existing); err != nil {
		return ActionResult{}, err
	}
	return ActionResult{Action: ActionUpdate, MemoryID: id, Reasoning: reasoning}, nil
}

func (u *Updater) applyMerge(ctx context.Context, targetID string, sourceIDs []string, mergedContentHint string, reasoning string) (ActionResult, error) {
	target, err := u.store.Get(ctx, targetID)
	if err != nil {
		return ActionResult{}, err
	}

	texts := []string{target.Content}
	var sources []types.Memory
	for _, sid := range sourceIDs {
		s, err := u.store.Get(ctx, sid)
		if err != nil {
			continue
		}
		sources = append(sources, s)
		texts = append(texts, s.Content)
	}

	mergedText := mergedContentHint
	if mergedText == "" {
		mergedText, err = mergeMemories(ctx, u.chat, texts)
		if err != nil {
			return ActionResult{}, err
		}
	}

	embeddings, err := u.embed.EmbedDocuments(ctx, []string{mergedText})
	if err != nil {
		return ActionResult{}, err
	}
	var vec []float32
	if len(embeddings) > 0 {
		vec = embeddings[0]
	}
	target.Touch(mergedText, vec, u.now().UTC())

	if err := u.store.Update(ctx, target); err != nil {
		return ActionResult{}, err
	}
	for _, s := range sources {
		if err := u.store.Delete(ctx, s.ID); err != nil {
			u.logger.Warn("deleting merge source failed", zap.String("id", s.ID), zap.Error(err))
		}
	}
	return ActionResult{Action: ActionMerge, MemoryID: targetID, Reasoning: reasoning}, nil
}

func (u *Updater) applyDelete(ctx context.Context, id string, reasoning string) (ActionResult, error) {
	if err := u.store.Delete(ctx, id); err != nil {
		return ActionResult{}, err
	}
	return ActionResult{Action: ActionDelete, MemoryID: id, Reasoning: reasoning}, nil
}
