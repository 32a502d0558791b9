package extract

import (
	"strings"

	"github.com/cortexmem/engine/types"
)

const userMemoryPrompt = `You extract durable facts about the USER from a conversation. Only use
content the user themselves wrote; ignore anything said by the assistant.
Capture preferences, personal details, plans, activities, and professional
details. Each fact needs an importance in [0,1] and one category from
{personal, preference, factual, procedural, contextual}.

Respond with strict JSON: {"facts": [{"content": "...", "importance": 0.0,
"category": "...", "entities": ["..."]}]}. Respond with ONLY the JSON object.

Conversation:
%s`

const assistantMemoryPrompt = `You extract durable facts about the ASSISTANT from a conversation. Only use
content the assistant itself wrote; ignore anything said by the user.
Capture assistant capabilities and personality traits expressed in its own
turns. Each fact needs an importance in [0,1] and one category from
{personal, preference, factual, procedural, contextual}.

Respond with strict JSON: {"facts": [{"content": "...", "importance": 0.0,
"category": "...", "entities": ["..."]}]}. Respond with ONLY the JSON object.

Conversation:
%s`

const userFocusedAssistantPrompt = `You extract facts stated about the USER from the ASSISTANT's turns only.
Extract ONLY direct facts about the user (e.g. "the user works as a nurse").
Do NOT extract technical explanations, advice, or general information the
assistant gave — those are not facts about the user. If no such fact
exists, return an empty facts array.

Respond with strict JSON: {"facts": [{"content": "...", "importance": 0.0,
"category": "...", "entities": ["..."]}]}. Respond with ONLY the JSON object.

Conversation:
%s`

const singleTextExtractionPrompt = `Extract durable facts from the following text. Each fact needs an
importance in [0,1] and one category from {personal, preference, factual,
procedural, contextual}.

Respond with a strict JSON array: [{"content": "...", "importance": 0.0,
"category": "...", "entities": ["..."]}]. Respond with ONLY the JSON array.

Text:
%s`

func formatTranscript(messages []types.Message) string {
	var b strings.Builder
	for _, m := range messages {
		b.WriteString(string(m.Role))
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	return b.String()
}

func onlyRole(messages []types.Message, role types.Role) []types.Message {
	out := make([]types.Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == role {
			out = append(out, m)
		}
	}
	return out
}
