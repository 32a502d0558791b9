package extract

import (
	"strings"

	"github.com/cortexmem/engine/types"
)

// Strategy selects which prompt family (or rule-based path) the extractor
// uses for a given message set (spec §4.2.1).
type Strategy string

const (
	StrategyProceduralMemory Strategy = "procedural_memory"
	StrategyDualChannel      Strategy = "dual_channel"
	StrategyUserOnly         Strategy = "user_only"
	StrategyAssistantOnly    Strategy = "assistant_only"
)

var proceduralMarkers = []string{
	"executing", "execute", "processing", "process", "running", "run",
	"result:", "completed", "invoking", "invoke",
}

// SelectStrategy implements spec §4.2.1.
func SelectStrategy(messages []types.Message) Strategy {
	var hasUser, hasAssistant bool
	for _, m := range messages {
		switch m.Role {
		case types.RoleUser:
			hasUser = true
		case types.RoleAssistant:
			hasAssistant = true
		}
	}

	if hasAssistant && hasProceduralMarkers(messages) && alternatesAtLeastHalf(messages) {
		return StrategyProceduralMemory
	}
	switch {
	case hasUser && hasAssistant:
		return StrategyDualChannel
	case hasUser:
		return StrategyUserOnly
	case hasAssistant:
		return StrategyAssistantOnly
	default:
		return StrategyUserOnly
	}
}

func hasProceduralMarkers(messages []types.Message) bool {
	for _, m := range messages {
		if m.Role != types.RoleAssistant {
			continue
		}
		lower := strings.ToLower(m.Content)
		for _, marker := range proceduralMarkers {
			if strings.Contains(lower, marker) {
				return true
			}
		}
	}
	return false
}

// alternatesAtLeastHalf reports whether user/assistant roles alternate for
// at least half of the adjacent message pairs.
func alternatesAtLeastHalf(messages []types.Message) bool {
	convo := make([]types.Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == types.RoleUser || m.Role == types.RoleAssistant {
			convo = append(convo, m)
		}
	}
	if len(convo) < 2 {
		return false
	}
	alternations := 0
	pairs := len(convo) - 1
	for i := 1; i < len(convo); i++ {
		if convo[i].Role != convo[i-1].Role {
			alternations++
		}
	}
	return float64(alternations) >= float64(pairs)/2
}
