// Package types holds the data model shared by every core package: the
// Memory record, its metadata, conversational messages and extracted facts.
package types

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// MemoryType classifies the durable knowledge a Memory represents.
type MemoryType string

const (
	Conversational MemoryType = "conversational"
	Procedural     MemoryType = "procedural"
	Factual        MemoryType = "factual"
	Semantic       MemoryType = "semantic"
	Episodic       MemoryType = "episodic"
	Personal       MemoryType = "personal"
)

// MemoryMetadata scopes and classifies a Memory.
type MemoryMetadata struct {
	Hash             string         `json:"hash"`
	MemoryType       MemoryType     `json:"memory_type"`
	UserID           string         `json:"user_id,omitempty"`
	AgentID          string         `json:"agent_id,omitempty"`
	RunID            string         `json:"run_id,omitempty"`
	ActorID          string         `json:"actor_id,omitempty"`
	Role             string         `json:"role,omitempty"`
	URI              string         `json:"uri,omitempty"`
	ImportanceScore  float32        `json:"importance_score"`
	Entities         []string       `json:"entities,omitempty"`
	Topics           []string       `json:"topics,omitempty"`
	Custom           map[string]any `json:"custom,omitempty"`
}

// Memory is a durable, vector-indexed knowledge record.
type Memory struct {
	ID        string         `json:"id"`
	Content   string         `json:"content"`
	Embedding []float32      `json:"embedding,omitempty"`
	Metadata  MemoryMetadata `json:"metadata"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// HashContent computes the SHA-256 hash of content in the hex form stored
// on MemoryMetadata.Hash. Invariant 2 (spec §3) requires every accepted
// Memory to satisfy Metadata.Hash == HashContent(Content).
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Touch refreshes Content, Embedding and the derived Hash, and bumps
// UpdatedAt. Used by update/smart_update/update_complete_memory paths.
func (m *Memory) Touch(content string, embedding []float32, now time.Time) {
	m.Content = content
	m.Embedding = embedding
	m.Metadata.Hash = HashContent(content)
	m.UpdatedAt = now
}

// ScoredMemory pairs a Memory with a similarity score from a vector search.
type ScoredMemory struct {
	Memory     Memory  `json:"memory"`
	Similarity float64 `json:"similarity"`
}

// Scope is the combination of fields that delimit a memory query, as
// defined in the GLOSSARY.
type Scope struct {
	UserID     string
	AgentID    string
	RunID      string
	ActorID    string
	MemoryType MemoryType
	Custom     map[string]any
}

// Filter renders the scope as an equality-filter map, suitable for passing
// to a vectorstore.Store or fs listing call. Empty fields are omitted.
func (s Scope) Filter() map[string]any {
	out := make(map[string]any)
	if s.UserID != "" {
		out["user_id"] = s.UserID
	}
	if s.AgentID != "" {
		out["agent_id"] = s.AgentID
	}
	if s.RunID != "" {
		out["run_id"] = s.RunID
	}
	if s.ActorID != "" {
		out["actor_id"] = s.ActorID
	}
	if s.MemoryType != "" {
		out["memory_type"] = string(s.MemoryType)
	}
	for k, v := range s.Custom {
		out["custom_"+k] = v
	}
	return out
}
