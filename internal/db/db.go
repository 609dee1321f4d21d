// Package db persists selection runs and their dilepton candidates in
// SQLite.
//
// The schema is owned by the embedded migrations under migrations/ and
// applied with golang-migrate. Domain packages never import this one.
package db

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// Migrations returns the embedded migration files rooted at the
// migrations directory.
func Migrations() fs.FS {
	sub, err := fs.Sub(embeddedMigrations, "migrations")
	if err != nil {
		panic(fmt.Sprintf("embedded migrations: %v", err))
	}
	return sub
}

// DB wraps the SQLite handle.
type DB struct {
	*sql.DB
}

// Connection-scoped pragmas go in the DSN so every pooled connection gets
// them. journal_mode is persistent and set once on open.
const dsnPragmas = "?_pragma=foreign_keys(1)" +
	"&_pragma=busy_timeout(5000)" +
	"&_pragma=synchronous(NORMAL)" +
	"&_pragma=temp_store(MEMORY)"

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
}

// NewDB opens (or creates) the database at path, applies connection
// pragmas and migrates the schema to the latest version.
func NewDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path+dsnPragmas)
	if err != nil {
		return nil, err
	}

	for _, pragma := range pragmas {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	db := &DB{sqlDB}
	if err := db.MigrateUp(Migrations()); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}
