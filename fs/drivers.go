package fs

import (
	glebarezsqlite "github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	cgosqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// OpenDevSQLite opens a cgo-free, in-process sqlite database suitable for
// local development and tests, grounded on the teacher's use of
// glebarez/sqlite (llm/router_multi_provider_test.go). dsn may be
// "file::memory:?cache=shared" for an ephemeral database or a file path
// for a persistent one.
func OpenDevSQLite(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		dsn = "file::memory:?cache=shared"
	}
	return gorm.Open(glebarezsqlite.Open(dsn), &gorm.Config{})
}

// OpenProdSQLite opens a cgo-backed sqlite database (mattn/go-sqlite3 via
// gorm.io/driver/sqlite), for deployments that prefer the reference driver
// over the pure-Go one.
func OpenProdSQLite(dsn string) (*gorm.DB, error) {
	return gorm.Open(cgosqlite.Open(dsn), &gorm.Config{})
}

// OpenPostgres opens a Postgres-backed GormFS database for multi-process
// durable deployments.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.Open(dsn), &gorm.Config{})
}
