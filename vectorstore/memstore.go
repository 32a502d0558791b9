package vectorstore

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cortexmem/engine/cortexerr"
	"github.com/cortexmem/engine/types"
)

// MemStoreConfig configures MemStore.
type MemStoreConfig struct {
	// Dimension, when > 0, is enforced on every inserted/updated vector
	// (spec §3 invariant 3, §4.5 "dimension is a collection-wide invariant").
	Dimension int

	// Now is overridable for tests.
	Now func() time.Time
}

type memItem struct {
	embedding []float32
	payload   map[string]any
}

// MemStore is the in-process reference VectorStore implementation,
// grounded on the teacher's InMemoryVectorStore
// (agent/memory/inmemory_vector_store.go), generalized from a bare
// id->vector map into the full Store contract (threshold search, update,
// get, list, scroll, health check).
type MemStore struct {
	mu        sync.RWMutex
	items     map[string]memItem
	dimension int
	now       func() time.Time
	logger    *zap.Logger
}

// NewMemStore creates an empty MemStore.
func NewMemStore(cfg MemStoreConfig, logger *zap.Logger) *MemStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &MemStore{
		items:     make(map[string]memItem),
		dimension: cfg.Dimension,
		now:       now,
		logger:    logger.With(zap.String("component", "vectorstore_mem")),
	}
}

func (s *MemStore) checkDimension(vec []float32) error {
	if s.dimension > 0 && len(vec) != s.dimension {
		return cortexerr.Newf(cortexerr.Config, "vector dimension mismatch: got %d want %d", len(vec), s.dimension)
	}
	return nil
}

func (s *MemStore) Insert(ctx context.Context, mem types.Memory) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if mem.ID == "" {
		return cortexerr.New(cortexerr.Validation, "memory id is required")
	}
	if err := s.checkDimension(mem.Embedding); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[mem.ID] = memItem{
		embedding: append([]float32(nil), mem.Embedding...),
		payload:   EncodePayload(mem),
	}
	return nil
}

func (s *MemStore) Update(ctx context.Context, mem types.Memory) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	_, ok := s.items[mem.ID]
	s.mu.RUnlock()
	if !ok {
		return cortexerr.Newf(cortexerr.NotFound, "memory %q not found", mem.ID)
	}
	return s.Insert(ctx, mem)
}

func (s *MemStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
	return nil
}

func (s *MemStore) Get(ctx context.Context, id string) (types.Memory, error) {
	if err := ctx.Err(); err != nil {
		return types.Memory{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.items[id]
	if !ok {
		return types.Memory{}, cortexerr.Newf(cortexerr.NotFound, "memory %q not found", id)
	}
	return DecodePayload(id, it.embedding, it.payload), nil
}

func (s *MemStore) Search(ctx context.Context, query []float32, topK int, filter map[string]any) ([]types.ScoredMemory, error) {
	return s.SearchWithThreshold(ctx, query, topK, filter, nil)
}

func (s *MemStore) SearchWithThreshold(
	ctx context.Context,
	query []float32,
	topK int,
	filter map[string]any,
	threshold *float64,
) ([]types.ScoredMemory, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.checkDimension(query); err != nil {
		return nil, err
	}
	if topK <= 0 {
		return []types.ScoredMemory{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]types.ScoredMemory, 0, len(s.items))
	for id, it := range s.items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !matchesFilter(it.payload, filter) {
			continue
		}
		sim := cosineSimilarity(query, it.embedding)
		if threshold != nil && sim < *threshold {
			continue
		}
		results = append(results, types.ScoredMemory{
			Memory:     DecodePayload(id, it.embedding, it.payload),
			Similarity: sim,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].Memory.CreatedAt.After(results[j].Memory.CreatedAt)
	})

	if topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

func (s *MemStore) List(ctx context.Context, filter map[string]any, limit int) ([]types.Memory, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.Memory, 0, len(s.items))
	for id, it := range s.items {
		if !matchesFilter(it.payload, filter) {
			continue
		}
		out = append(out, DecodePayload(id, it.embedding, it.payload))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemStore) ScrollIDs(ctx context.Context, filter map[string]any, limit int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.items))
	for id, it := range s.items {
		if !matchesFilter(it.payload, filter) {
			continue
		}
		out = append(out, id)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *MemStore) HealthCheck(ctx context.Context) (HealthStatus, error) {
	if err := ctx.Err(); err != nil {
		return HealthStatus{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return HealthStatus{Healthy: true, Dimension: s.dimension, Count: len(s.items)}, nil
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
