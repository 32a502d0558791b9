package fs_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortexmem/engine/fs"
)

func TestMigrateUpCreatesURIFilesTable(t *testing.T) {
	db, err := fs.OpenDevSQLite("")
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)

	require.NoError(t, fs.MigrateUp(sqlDB, "sqlite"))

	_, err = sqlDB.Exec(`INSERT INTO uri_files (uri, tenant_id, content, updated_at) VALUES (?, ?, ?, datetime('now'))`,
		"cortex://user/u1/notes.md", "tenant-a", "hello")
	assert.NoError(t, err)
}

func TestMigrateUpIsIdempotent(t *testing.T) {
	db, err := fs.OpenDevSQLite("")
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)

	require.NoError(t, fs.MigrateUp(sqlDB, "sqlite"))
	require.NoError(t, fs.MigrateUp(sqlDB, "sqlite"))
}

func TestMigrateUpRejectsUnknownDriver(t *testing.T) {
	db, err := fs.OpenDevSQLite("")
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)

	err = fs.MigrateUp(sqlDB, "mysql")
	assert.Error(t, err)
}
