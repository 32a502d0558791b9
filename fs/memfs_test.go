package fs_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortexmem/engine/fs"
)

func TestMemFSWriteReadDelete(t *testing.T) {
	ctx := context.Background()
	f := fs.NewMemFS(fs.MemFSConfig{}, nil)

	_, _, err := f.Read(ctx, "cortex://user/u1/notes.md")
	require.Error(t, err)

	require.NoError(t, f.Write(ctx, "cortex://user/u1/notes.md", "hello"))
	content, ts, err := f.Read(ctx, "cortex://user/u1/notes.md")
	require.NoError(t, err)
	assert.Equal(t, "hello", content)
	assert.WithinDuration(t, time.Now(), ts, 5*time.Second)

	require.NoError(t, f.Delete(ctx, "cortex://user/u1/notes.md"))
	_, _, err = f.Read(ctx, "cortex://user/u1/notes.md")
	require.Error(t, err)
}

func TestMemFSDirectoriesAreReified(t *testing.T) {
	ctx := context.Background()
	f := fs.NewMemFS(fs.MemFSConfig{}, nil)

	require.NoError(t, f.Write(ctx, "cortex://user/u1/preferences/pref_1.md", "x"))

	ok, err := f.Exists(ctx, "cortex://user/u1/preferences")
	require.NoError(t, err)
	assert.True(t, ok, "directory should be reified once a child exists")

	entries, err := f.List(ctx, "cortex://user/u1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].IsDir)
	assert.Equal(t, "cortex://user/u1/preferences", entries[0].URI)
}

func TestMemFSTenantIsolation(t *testing.T) {
	ctx := context.Background()
	t1 := fs.NewMemFS(fs.MemFSConfig{TenantID: "t1"}, nil)
	t2 := fs.NewMemFS(fs.MemFSConfig{TenantID: "t2"}, nil)

	require.NoError(t, t1.Write(ctx, "cortex://user/u1/a.md", "t1-content"))
	_, _, err := t2.Read(ctx, "cortex://user/u1/a.md")
	require.Error(t, err, "tenant t2 must not observe tenant t1's content")
}

func TestMemFSListRecursive(t *testing.T) {
	ctx := context.Background()
	f := fs.NewMemFS(fs.MemFSConfig{}, nil)

	require.NoError(t, f.Write(ctx, "cortex://session/th1/timeline/2026-07/29/a.md", "a"))
	require.NoError(t, f.Write(ctx, "cortex://session/th1/timeline/2026-07/29/b.md", "b"))

	entries, err := f.ListRecursive(ctx, "cortex://session/th1/timeline")
	require.NoError(t, err)
	require.Len(t, entries, 2)
}
