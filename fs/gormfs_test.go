package fs_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortexmem/engine/fs"
)

func newTestGormFS(t *testing.T, tenantID string) *fs.GormFS {
	t.Helper()
	db, err := fs.OpenDevSQLite("")
	require.NoError(t, err)
	g, err := fs.NewGormFS(db, tenantID, nil)
	require.NoError(t, err)
	return g
}

func TestGormFSWriteReadOverwrite(t *testing.T) {
	ctx := context.Background()
	g := newTestGormFS(t, "")

	require.NoError(t, g.Write(ctx, "cortex://user/u1/notes.md", "v1"))
	content, _, err := g.Read(ctx, "cortex://user/u1/notes.md")
	require.NoError(t, err)
	assert.Equal(t, "v1", content)

	require.NoError(t, g.Write(ctx, "cortex://user/u1/notes.md", "v2"))
	content, _, err = g.Read(ctx, "cortex://user/u1/notes.md")
	require.NoError(t, err)
	assert.Equal(t, "v2", content, "write must be last-writer-wins, not append-only")
}

func TestGormFSNotFound(t *testing.T) {
	ctx := context.Background()
	g := newTestGormFS(t, "")
	_, _, err := g.Read(ctx, "cortex://user/u1/missing.md")
	require.Error(t, err)
}

func TestGormFSTenantIsolation(t *testing.T) {
	ctx := context.Background()
	db, err := fs.OpenDevSQLite("")
	require.NoError(t, err)

	t1, err := fs.NewGormFS(db, "t1", nil)
	require.NoError(t, err)
	t2, err := fs.NewGormFS(db, "t2", nil)
	require.NoError(t, err)

	require.NoError(t, t1.Write(ctx, "cortex://user/u1/a.md", "t1-content"))
	_, _, err = t2.Read(ctx, "cortex://user/u1/a.md")
	require.Error(t, err)
}

func TestGormFSListAndRecursive(t *testing.T) {
	ctx := context.Background()
	g := newTestGormFS(t, "")

	require.NoError(t, g.Write(ctx, "cortex://session/th1/timeline/2026-07/29/a.md", "a"))
	require.NoError(t, g.Write(ctx, "cortex://session/th1/timeline/2026-07/29/b.md", "b"))

	entries, err := g.List(ctx, "cortex://session/th1/timeline")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].IsDir)

	all, err := g.ListRecursive(ctx, "cortex://session/th1/timeline")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
