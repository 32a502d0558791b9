package fs

import (
	"database/sql"
	"embed"
	"errors"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/cortexmem/engine/cortexerr"
)

//go:embed migrations/sqlite/*.sql
var sqliteMigrations embed.FS

//go:embed migrations/postgres/*.sql
var postgresMigrations embed.FS

// MigrateUp applies every pending golang-migrate migration for the
// uri_files table against an already-open *sql.DB, grounded on the
// teacher's internal/migration.DefaultMigrator but narrowed to the single
// forward "Up" operation; there is no Down/Steps/Goto/Force surface.
// NewGormFS does not call MigrateUp (it creates the table with GORM's
// AutoMigrate); MigrateUp is a separate entry point for callers that manage
// the schema through golang-migrate. driver must be "sqlite" or "postgres",
// matching FileSystemConfig.Driver.
func MigrateUp(sqlDB *sql.DB, driver string) error {
	var (
		dbDriver database.Driver
		srcFS    embed.FS
		srcPath  string
		err      error
	)

	switch driver {
	case "sqlite":
		dbDriver, err = sqlite3.WithInstance(sqlDB, &sqlite3.Config{})
		srcFS, srcPath = sqliteMigrations, "migrations/sqlite"
	case "postgres":
		dbDriver, err = postgres.WithInstance(sqlDB, &postgres.Config{})
		srcFS, srcPath = postgresMigrations, "migrations/postgres"
	default:
		return cortexerr.Newf(cortexerr.Config, "migrate: unsupported driver %q", driver)
	}
	if err != nil {
		return cortexerr.New(cortexerr.Config, "migrate: open database driver failed").WithCause(err)
	}

	source, err := iofs.New(srcFS, srcPath)
	if err != nil {
		return cortexerr.New(cortexerr.Config, "migrate: load embedded migrations failed").WithCause(err)
	}

	m, err := migrate.NewWithInstance("iofs", source, driver, dbDriver)
	if err != nil {
		return cortexerr.New(cortexerr.Config, "migrate: build migrator failed").WithCause(err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return cortexerr.New(cortexerr.Config, "migrate: apply migrations failed").WithCause(err)
	}
	return nil
}
