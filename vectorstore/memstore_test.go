package vectorstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortexmem/engine/types"
	"github.com/cortexmem/engine/vectorstore"
)

func mkMemory(id string, vec []float32, userID string, importance float32, createdAt time.Time) types.Memory {
	return types.Memory{
		ID:        id,
		Content:   "content-" + id,
		Embedding: vec,
		Metadata: types.MemoryMetadata{
			MemoryType:      types.Factual,
			UserID:          userID,
			ImportanceScore: importance,
			Entities:        []string{"go", "cortex"},
		},
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func TestMemStoreInsertGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := vectorstore.NewMemStore(vectorstore.MemStoreConfig{Dimension: 3}, nil)

	mem := mkMemory("m1", []float32{1, 0, 0}, "u1", 0.8, time.Now())
	require.NoError(t, s.Insert(ctx, mem))

	got, err := s.Get(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "content-m1", got.Content)
	assert.Equal(t, []float32{1, 0, 0}, got.Embedding)
	assert.Equal(t, "u1", got.Metadata.UserID)
	assert.InDelta(t, 0.8, got.Metadata.ImportanceScore, 1e-6)
}

func TestMemStoreRejectsDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	s := vectorstore.NewMemStore(vectorstore.MemStoreConfig{Dimension: 4}, nil)
	err := s.Insert(ctx, mkMemory("m1", []float32{1, 0, 0}, "u1", 0.5, time.Now()))
	require.Error(t, err)
}

func TestMemStoreUpdateRequiresExisting(t *testing.T) {
	ctx := context.Background()
	s := vectorstore.NewMemStore(vectorstore.MemStoreConfig{Dimension: 3}, nil)
	err := s.Update(ctx, mkMemory("missing", []float32{1, 0, 0}, "u1", 0.5, time.Now()))
	require.Error(t, err)

	require.NoError(t, s.Insert(ctx, mkMemory("m1", []float32{1, 0, 0}, "u1", 0.5, time.Now())))
	updated := mkMemory("m1", []float32{0, 1, 0}, "u1", 0.9, time.Now())
	require.NoError(t, s.Update(ctx, updated))

	got, err := s.Get(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1, 0}, got.Embedding)
	assert.InDelta(t, 0.9, got.Metadata.ImportanceScore, 1e-6)
}

func TestMemStoreDeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := vectorstore.NewMemStore(vectorstore.MemStoreConfig{Dimension: 3}, nil)
	require.NoError(t, s.Delete(ctx, "never-existed"))

	require.NoError(t, s.Insert(ctx, mkMemory("m1", []float32{1, 0, 0}, "u1", 0.5, time.Now())))
	require.NoError(t, s.Delete(ctx, "m1"))
	_, err := s.Get(ctx, "m1")
	require.Error(t, err)
}

func TestMemStoreSearchRanksBySimilarityThenRecency(t *testing.T) {
	ctx := context.Background()
	s := vectorstore.NewMemStore(vectorstore.MemStoreConfig{Dimension: 2}, nil)

	older := time.Now().Add(-time.Hour)
	newer := time.Now()

	require.NoError(t, s.Insert(ctx, mkMemory("a", []float32{1, 0}, "u1", 0.5, older)))
	require.NoError(t, s.Insert(ctx, mkMemory("b", []float32{1, 0}, "u1", 0.5, newer)))
	require.NoError(t, s.Insert(ctx, mkMemory("c", []float32{0, 1}, "u1", 0.5, newer)))

	results, err := s.Search(ctx, []float32{1, 0}, 10, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)
	// a and b tie on similarity (1.0); b is newer so it ranks first.
	assert.Equal(t, "b", results[0].Memory.ID)
	assert.Equal(t, "a", results[1].Memory.ID)
	assert.Equal(t, "c", results[2].Memory.ID)
}

func TestMemStoreSearchWithThresholdFiltersLowSimilarity(t *testing.T) {
	ctx := context.Background()
	s := vectorstore.NewMemStore(vectorstore.MemStoreConfig{Dimension: 2}, nil)
	require.NoError(t, s.Insert(ctx, mkMemory("a", []float32{1, 0}, "u1", 0.5, time.Now())))
	require.NoError(t, s.Insert(ctx, mkMemory("b", []float32{0, 1}, "u1", 0.5, time.Now())))

	threshold := 0.5
	results, err := s.SearchWithThreshold(ctx, []float32{1, 0}, 10, nil, &threshold)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].Memory.ID)
}

func TestMemStoreSearchAppliesEqualityFilter(t *testing.T) {
	ctx := context.Background()
	s := vectorstore.NewMemStore(vectorstore.MemStoreConfig{Dimension: 2}, nil)
	require.NoError(t, s.Insert(ctx, mkMemory("a", []float32{1, 0}, "u1", 0.5, time.Now())))
	require.NoError(t, s.Insert(ctx, mkMemory("b", []float32{1, 0}, "u2", 0.5, time.Now())))

	results, err := s.Search(ctx, []float32{1, 0}, 10, map[string]any{"user_id": "u2"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b", results[0].Memory.ID)
}

func TestMemStoreListOrdersNewestFirstAndRespectsLimit(t *testing.T) {
	ctx := context.Background()
	s := vectorstore.NewMemStore(vectorstore.MemStoreConfig{Dimension: 2}, nil)
	t0 := time.Now().Add(-2 * time.Hour)
	t1 := time.Now().Add(-time.Hour)
	t2 := time.Now()
	require.NoError(t, s.Insert(ctx, mkMemory("a", []float32{1, 0}, "u1", 0.5, t0)))
	require.NoError(t, s.Insert(ctx, mkMemory("b", []float32{1, 0}, "u1", 0.5, t1)))
	require.NoError(t, s.Insert(ctx, mkMemory("c", []float32{1, 0}, "u1", 0.5, t2)))

	out, err := s.List(ctx, nil, 2)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "c", out[0].ID)
	assert.Equal(t, "b", out[1].ID)
}

func TestMemStoreScrollIDsRespectsFilterAndLimit(t *testing.T) {
	ctx := context.Background()
	s := vectorstore.NewMemStore(vectorstore.MemStoreConfig{Dimension: 2}, nil)
	require.NoError(t, s.Insert(ctx, mkMemory("a", []float32{1, 0}, "u1", 0.5, time.Now())))
	require.NoError(t, s.Insert(ctx, mkMemory("b", []float32{1, 0}, "u1", 0.5, time.Now())))
	require.NoError(t, s.Insert(ctx, mkMemory("c", []float32{1, 0}, "u2", 0.5, time.Now())))

	ids, err := s.ScrollIDs(ctx, map[string]any{"user_id": "u1"}, 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, ids)

	limited, err := s.ScrollIDs(ctx, nil, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestMemStoreHealthCheckReportsCount(t *testing.T) {
	ctx := context.Background()
	s := vectorstore.NewMemStore(vectorstore.MemStoreConfig{Dimension: 2}, nil)
	require.NoError(t, s.Insert(ctx, mkMemory("a", []float32{1, 0}, "u1", 0.5, time.Now())))

	status, err := s.HealthCheck(ctx)
	require.NoError(t, err)
	assert.True(t, status.Healthy)
	assert.Equal(t, 1, status.Count)
	assert.Equal(t, 2, status.Dimension)
}

func TestMemStoreEntitiesFilterRequiresAllValues(t *testing.T) {
	ctx := context.Background()
	s := vectorstore.NewMemStore(vectorstore.MemStoreConfig{Dimension: 2}, nil)
	require.NoError(t, s.Insert(ctx, mkMemory("a", []float32{1, 0}, "u1", 0.5, time.Now())))

	results, err := s.Search(ctx, []float32{1, 0}, 10, map[string]any{"entities": []string{"go", "cortex"}})
	require.NoError(t, err)
	require.Len(t, results, 1)

	noMatch, err := s.Search(ctx, []float32{1, 0}, 10, map[string]any{"entities": []string{"go", "rust"}})
	require.NoError(t, err)
	assert.Empty(t, noMatch)
}
