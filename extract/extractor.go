// Package extract implements the Fact Extractor (spec §4.2): it turns raw
// conversation messages into a deduplicated, classified, importance-ranked
// set of ExtractedFact candidates for the Memory Updater.
package extract

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/cortexmem/engine/llmchat"
	"github.com/cortexmem/engine/types"
)

// Extractor runs strategy selection, prompt-driven (or rule-based)
// extraction, and filtering/sorting of facts from conversation messages.
type Extractor struct {
	chat   llmchat.Provider
	logger *zap.Logger
}

// New creates an Extractor backed by chat for LLM-driven prompt families.
func New(chat llmchat.Provider, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{chat: chat, logger: logger.With(zap.String("component", "fact_extractor"))}
}

// Extract runs the full pipeline: strategy selection, extraction, filtering
// and sorting (spec §4.2).
func (e *Extractor) Extract(ctx context.Context, messages []types.Message) ([]types.ExtractedFact, error) {
	if len(messages) == 0 {
		return nil, nil
	}

	strategy := SelectStrategy(messages)
	var facts []types.ExtractedFact
	var err error

	switch strategy {
	case StrategyProceduralMemory:
		facts = e.extractProcedural(messages)
	case StrategyDualChannel:
		facts, err = e.extractDualChannel(ctx, messages)
	case StrategyUserOnly:
		facts, err = e.extractWithPrompt(ctx, userMemoryPrompt, onlyRole(messages, types.RoleUser), types.RoleUser)
	case StrategyAssistantOnly:
		facts, err = e.extractWithPrompt(ctx, assistantMemoryPrompt, onlyRole(messages, types.RoleAssistant), types.RoleAssistant)
	}
	if err != nil {
		return nil, err
	}

	return FilterAndSort(facts), nil
}

// ExtractFromText runs the single-text extraction prompt (spec §4.2.2) over
// a standalone block of text, used by the Memory Manager's extraction
// fallback ladder (spec §4.1) when structured multi-message extraction
// yields nothing.
func (e *Extractor) ExtractFromText(ctx context.Context, text string, sourceRole types.Role) ([]types.ExtractedFact, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	resp, err := e.complete(ctx, singleTextExtractionPrompt, text)
	if err != nil {
		return nil, err
	}
	return FilterAndSort(parseFactsArray(resp, sourceRole)), nil
}

func (e *Extractor) extractDualChannel(ctx context.Context, messages []types.Message) ([]types.ExtractedFact, error) {
	userFacts, err := e.extractWithPrompt(ctx, userMemoryPrompt, onlyRole(messages, types.RoleUser), types.RoleUser)
	if err != nil {
		return nil, err
	}
	assistantFacts, err := e.extractWithPrompt(ctx, userFocusedAssistantPrompt, onlyRole(messages, types.RoleAssistant), types.RoleAssistant)
	if err != nil {
		return nil, err
	}
	return append(userFacts, assistantFacts...), nil
}

func (e *Extractor) extractWithPrompt(ctx context.Context, template string, messages []types.Message, sourceRole types.Role) ([]types.ExtractedFact, error) {
	if len(messages) == 0 {
		return nil, nil
	}
	resp, err := e.complete(ctx, template, formatTranscript(messages))
	if err != nil {
		return nil, err
	}
	return parseFactsEnvelope(resp, sourceRole), nil
}

func (e *Extractor) complete(ctx context.Context, template, body string) (string, error) {
	prompt := fmt.Sprintf(template, body)
	resp, err := e.chat.Complete(ctx, &llmchat.Request{
		Messages: []llmchat.Message{{Role: llmchat.RoleUser, Content: prompt}},
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// ExtractProcedural runs the rule-based procedural extraction directly,
// bypassing strategy selection. The Memory Manager uses this for the forced
// procedural-memory path (spec §4.1: agent_id set and memory_type ==
// Procedural), which applies regardless of whether the messages themselves
// carry procedural markers.
func (e *Extractor) ExtractProcedural(messages []types.Message) []types.ExtractedFact {
	return FilterAndSort(e.extractProcedural(messages))
}

// extractProcedural implements spec §4.2.3: walk messages in order,
// emitting rule-based facts without calling the LLM.
func (e *Extractor) extractProcedural(messages []types.Message) []types.ExtractedFact {
	var facts []types.ExtractedFact
	for _, m := range messages {
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		switch m.Role {
		case types.RoleAssistant:
			facts = append(facts,
				types.ExtractedFact{
					Content:    "executed: " + content,
					Importance: 0.8,
					Category:   types.CategoryProcedural,
					SourceRole: m.Role,
				},
				types.ExtractedFact{
					Content:    "result: " + content,
					Importance: 0.7,
					Category:   types.CategoryContextual,
					SourceRole: m.Role,
				},
			)
		case types.RoleUser:
			facts = append(facts, types.ExtractedFact{
				Content:    "user-requested: " + content,
				Importance: 0.6,
				Category:   types.CategoryProcedural,
				SourceRole: m.Role,
			})
		}
	}
	return facts
}
