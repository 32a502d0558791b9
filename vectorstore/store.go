// Package vectorstore implements the abstract VectorStore contract (spec
// §4.5): collection lifecycle, tenant-aware naming, payload encoding,
// filter translation, and threshold search. Dynamic dispatch on the
// concrete vector database is confined to the Store interface (spec §9).
package vectorstore

import (
	"context"
	"time"

	"github.com/cortexmem/engine/types"
)

// Store is the abstract VectorStore contract every backend implements.
type Store interface {
	// Insert stores mem's embedding and encoded payload under mem.ID.
	Insert(ctx context.Context, mem types.Memory) error

	// Search returns the topK nearest neighbors of query matching filter,
	// with no score floor.
	Search(ctx context.Context, query []float32, topK int, filter map[string]any) ([]types.ScoredMemory, error)

	// SearchWithThreshold is Search with an optional similarity floor; a
	// nil threshold behaves exactly like Search.
	SearchWithThreshold(ctx context.Context, query []float32, topK int, filter map[string]any, threshold *float64) ([]types.ScoredMemory, error)

	// Update replaces the embedding/payload stored for mem.ID. It is an
	// error if mem.ID does not exist.
	Update(ctx context.Context, mem types.Memory) error

	// Delete removes the memory with the given id. Deleting a missing id
	// is not an error.
	Delete(ctx context.Context, id string) error

	// Get returns the memory stored under id, or a cortexerr.NotFound error.
	Get(ctx context.Context, id string) (types.Memory, error)

	// List returns every memory matching filter, newest first, capped at
	// limit (0 means unlimited).
	List(ctx context.Context, filter map[string]any, limit int) ([]types.Memory, error)

	// ScrollIDs returns up to limit ids matching filter, for cursoring over
	// large collections without loading full payloads (used by dedup scans
	// and bulk maintenance jobs).
	ScrollIDs(ctx context.Context, filter map[string]any, limit int) ([]string, error)

	// HealthCheck reports backend reachability and collection health.
	HealthCheck(ctx context.Context) (HealthStatus, error)
}

// HealthStatus is the result of Store.HealthCheck.
type HealthStatus struct {
	Healthy   bool
	Dimension int
	Count     int
	Latency   time.Duration
	Message   string
}
