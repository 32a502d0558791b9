package fs_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortexmem/engine/fs"
	"github.com/cortexmem/engine/uri"
)

var tenantTestSecret = []byte("test-hmac-secret")

func TestNewMemFSFromTokenIsolatesByVerifiedTenant(t *testing.T) {
	ctx := context.Background()

	tokenA, err := uri.NewTenantToken("tenant-a", tenantTestSecret)
	require.NoError(t, err)
	tokenB, err := uri.NewTenantToken("tenant-b", tenantTestSecret)
	require.NoError(t, err)

	fsysA, err := fs.NewMemFSFromToken(fs.MemFSConfig{}, tokenA, tenantTestSecret, nil)
	require.NoError(t, err)
	fsysB, err := fs.NewMemFSFromToken(fs.MemFSConfig{}, tokenB, tenantTestSecret, nil)
	require.NoError(t, err)

	require.NoError(t, fsysA.Write(ctx, "cortex://user/u1/notes.md", "tenant a's note"))

	existsInA, err := fsysA.Exists(ctx, "cortex://user/u1/notes.md")
	require.NoError(t, err)
	assert.True(t, existsInA)

	existsInB, err := fsysB.Exists(ctx, "cortex://user/u1/notes.md")
	require.NoError(t, err)
	assert.False(t, existsInB, "a FileSystem authenticated for tenant-b must not see tenant-a's content")
}

func TestNewMemFSFromTokenRejectsInvalidToken(t *testing.T) {
	_, err := fs.NewMemFSFromToken(fs.MemFSConfig{}, "not-a-real-token", tenantTestSecret, nil)
	assert.Error(t, err)
}

func TestNewMemFSFromTokenRejectsWrongSecret(t *testing.T) {
	token, err := uri.NewTenantToken("tenant-a", tenantTestSecret)
	require.NoError(t, err)

	_, err = fs.NewMemFSFromToken(fs.MemFSConfig{}, token, []byte("wrong-secret"), nil)
	assert.Error(t, err)
}

func TestNewGormFSFromTokenRejectsInvalidTokenBeforeTouchingDB(t *testing.T) {
	_, err := fs.NewGormFSFromToken(nil, "not-a-real-token", tenantTestSecret, nil)
	assert.Error(t, err, "token verification must fail before NewGormFS ever dereferences the nil db")
}

func TestNewMemFSFromTokenIgnoresConfiguredTenantID(t *testing.T) {
	ctx := context.Background()
	token, err := uri.NewTenantToken("tenant-from-token", tenantTestSecret)
	require.NoError(t, err)

	fsys, err := fs.NewMemFSFromToken(fs.MemFSConfig{TenantID: "tenant-from-config"}, token, tenantTestSecret, nil)
	require.NoError(t, err)

	require.NoError(t, fsys.Write(ctx, "cortex://user/u1/notes.md", "content"))
	exists, err := fsys.Exists(ctx, "cortex://user/u1/notes.md")
	require.NoError(t, err)
	assert.True(t, exists, "the token's tenant claim must win over any bare TenantID already set in cfg")
}
