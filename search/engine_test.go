package search

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cortexmem/engine/embedding"
	"github.com/cortexmem/engine/fs"
	"github.com/cortexmem/engine/types"
	"github.com/cortexmem/engine/uri"
	"github.com/cortexmem/engine/vectorstore"
)

func writeAbstract(t *testing.T, fsys fs.FileSystem, dir uri.URI, body string) {
	t.Helper()
	require.NoError(t, fsys.Write(context.Background(), dir.Join(uri.AbstractFile).String(), body+"\n\n**Added**: 2026-01-01 00:00:00 UTC"))
}

func TestSearchFanOutKeepsAllAtPermissiveThreshold(t *testing.T) {
	ctx := context.Background()
	fsys := fs.NewMemFS(fs.MemFSConfig{}, zap.NewNop())
	embedder := embedding.NewDeterministicProvider(8)

	dirA := uri.URI{Dimension: uri.DimensionUser, Segments: []string{"u1", "preferences"}}
	dirB := uri.URI{Dimension: uri.DimensionUser, Segments: []string{"u1", "goals"}}
	writeAbstract(t, fsys, dirA, "User likes dark mode interfaces and minimal UI chrome.")
	writeAbstract(t, fsys, dirB, "User is training for a marathon next spring.")

	eng := New(fsys, embedder, nil, zap.NewNop())
	threshold := -1.0 // accept everything regardless of the deterministic embedding's actual similarity
	hits, err := eng.Search(ctx, "dark mode interfaces and minimal UI chrome", Options{Limit: 5, Threshold: &threshold})
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestSearchReturnsNilOnEmptyNamespace(t *testing.T) {
	ctx := context.Background()
	fsys := fs.NewMemFS(fs.MemFSConfig{}, zap.NewNop())
	embedder := embedding.NewDeterministicProvider(8)

	eng := New(fsys, embedder, nil, zap.NewNop())
	hits, err := eng.Search(ctx, "anything", Options{})
	require.NoError(t, err)
	assert.Nil(t, hits)
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	ctx := context.Background()
	fsys := fs.NewMemFS(fs.MemFSConfig{}, zap.NewNop())
	embedder := embedding.NewDeterministicProvider(8)
	eng := New(fsys, embedder, nil, zap.NewNop())

	_, err := eng.Search(ctx, "", Options{})
	assert.Error(t, err)
}

func TestSearchResolvesContentFromVectorStoreWhenIndexed(t *testing.T) {
	ctx := context.Background()
	fsys := fs.NewMemFS(fs.MemFSConfig{}, zap.NewNop())
	embedder := embedding.NewDeterministicProvider(8)
	store := vectorstore.NewMemStore(vectorstore.MemStoreConfig{Dimension: 8}, zap.NewNop())

	dir := uri.URI{Dimension: uri.DimensionUser, Segments: []string{"u1", "preferences"}}
	writeAbstract(t, fsys, dir, "short excerpt")

	vec, err := embedder.EmbedQuery(ctx, "short excerpt")
	require.NoError(t, err)
	now := time.Now()
	require.NoError(t, store.Insert(ctx, types.Memory{
		ID:        dir.String(),
		Content:   "the full preference record, longer than the L0 excerpt",
		Embedding: vec,
		Metadata:  types.MemoryMetadata{Hash: types.HashContent("x"), MemoryType: types.Semantic, ImportanceScore: 0.8},
		CreatedAt: now,
		UpdatedAt: now,
	}))

	eng := New(fsys, embedder, store, zap.NewNop())
	threshold := -1.0
	hits, err := eng.Search(ctx, "short excerpt", Options{Limit: 5, Threshold: &threshold})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "the full preference record, longer than the L0 excerpt", hits[0].Content)
	assert.Equal(t, float32(0.8), hits[0].Importance)
}

func TestBlendOrdersByScoreThenRecency(t *testing.T) {
	older := time.Now().Add(-time.Hour)
	newer := time.Now()
	hits := []Hit{
		{URI: "low-importance-high-sim", Similarity: 1.0, Importance: 0.1, CreatedAt: older},
		{URI: "high-importance-mid-sim", Similarity: 0.5, Importance: 0.95, CreatedAt: newer},
	}
	blend(hits)
	// 0.7*1.0+0.3*0.1 = 0.73 vs 0.7*0.5+0.3*0.95 = 0.635 -> first stays first
	assert.Equal(t, "low-importance-high-sim", hits[0].URI)
}
