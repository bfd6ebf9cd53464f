package state

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

// Build database schema, applied in order by goose.
//
//go:embed migrations/*.sql
var migrations embed.FS

func init() {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
}

func useSQLite() error {
	if err := goose.SetDialect("sqlite"); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}
	return nil
}

// migrate brings the build tables of db up to the latest schema version.
func migrate(db *sql.DB) error {
	if err := useSQLite(); err != nil {
		return err
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to migrate build database: %w", err)
	}
	return nil
}

// Migrate applies pending migrations to an opened store.
func (s *SQLiteStore) Migrate() error {
	if s.db == nil {
		return ErrNotOpened
	}
	return migrate(s.db)
}

// MigrationVersion reports the schema version of the build database.
func (s *SQLiteStore) MigrationVersion() (int64, error) {
	if s.db == nil {
		return 0, ErrNotOpened
	}
	if err := useSQLite(); err != nil {
		return 0, err
	}
	return goose.GetDBVersion(s.db)
}
