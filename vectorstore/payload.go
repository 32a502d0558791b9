package vectorstore

import (
	"time"

	"github.com/cortexmem/engine/types"
)

// EncodePayload renders mem's metadata into the flat key/value payload
// written to the backend, per spec §4.5 "Payload encoding".
func EncodePayload(mem types.Memory) map[string]any {
	p := map[string]any{
		"content":        mem.Content,
		"created_at":     mem.CreatedAt.UTC().Format(time.RFC3339),
		"updated_at":     mem.UpdatedAt.UTC().Format(time.RFC3339),
		"created_at_ts":  mem.CreatedAt.UTC().UnixMilli(),
		"updated_at_ts":  mem.UpdatedAt.UTC().UnixMilli(),
		"memory_type":    string(mem.Metadata.MemoryType),
		"hash":           mem.Metadata.Hash,
		"importance_score": float64(mem.Metadata.ImportanceScore),
	}
	if mem.Metadata.UserID != "" {
		p["user_id"] = mem.Metadata.UserID
	}
	if mem.Metadata.AgentID != "" {
		p["agent_id"] = mem.Metadata.AgentID
	}
	if mem.Metadata.RunID != "" {
		p["run_id"] = mem.Metadata.RunID
	}
	if mem.Metadata.ActorID != "" {
		p["actor_id"] = mem.Metadata.ActorID
	}
	if mem.Metadata.Role != "" {
		p["role"] = mem.Metadata.Role
	}
	if mem.Metadata.URI != "" {
		p["uri"] = mem.Metadata.URI
	}
	if len(mem.Metadata.Entities) > 0 {
		p["entities"] = append([]string(nil), mem.Metadata.Entities...)
	}
	if len(mem.Metadata.Topics) > 0 {
		p["topics"] = append([]string(nil), mem.Metadata.Topics...)
	}
	for k, v := range mem.Metadata.Custom {
		p["custom_"+k] = v
	}
	return p
}

// DecodePayload reconstructs a Memory from a stored payload and its
// embedding. Missing fields fall back to conservative defaults (spec §4.5
// "Robustness"): importance defaults to 0.5, timestamps to the zero time.
func DecodePayload(id string, embedding []float32, payload map[string]any) types.Memory {
	mem := types.Memory{ID: id, Embedding: embedding}
	mem.Content, _ = payload["content"].(string)

	mem.CreatedAt = parseTimestamp(payload, "created_at", "created_at_ts")
	mem.UpdatedAt = parseTimestamp(payload, "updated_at", "updated_at_ts")

	meta := types.MemoryMetadata{ImportanceScore: 0.5}
	if mt, ok := payload["memory_type"].(string); ok {
		meta.MemoryType = types.MemoryType(mt)
	}
	if h, ok := payload["hash"].(string); ok {
		meta.Hash = h
	}
	if v, ok := payload["importance_score"].(float64); ok {
		meta.ImportanceScore = float32(v)
	}
	meta.UserID, _ = payload["user_id"].(string)
	meta.AgentID, _ = payload["agent_id"].(string)
	meta.RunID, _ = payload["run_id"].(string)
	meta.ActorID, _ = payload["actor_id"].(string)
	meta.Role, _ = payload["role"].(string)
	meta.URI, _ = payload["uri"].(string)
	meta.Entities = decodeStringList(payload["entities"])
	meta.Topics = decodeStringList(payload["topics"])

	custom := make(map[string]any)
	for k, v := range payload {
		const prefix = "custom_"
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			custom[k[len(prefix):]] = v
		}
	}
	if len(custom) > 0 {
		meta.Custom = custom
	}
	mem.Metadata = meta
	return mem
}

func parseTimestamp(payload map[string]any, rfc3339Key, msKey string) time.Time {
	if s, ok := payload[rfc3339Key].(string); ok {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t
		}
	}
	if ms, ok := payload[msKey].(float64); ok {
		return time.UnixMilli(int64(ms)).UTC()
	}
	if ms, ok := payload[msKey].(int64); ok {
		return time.UnixMilli(ms).UTC()
	}
	return time.Time{}
}

func decodeStringList(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
