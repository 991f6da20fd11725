package store

import (
	"database/sql"
	"embed"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rs/zerolog/log"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// EnsureMigrations brings the schema at dbPath up to date. Migrations are
// embedded in the binary so callers need no migrations directory on disk.
func EnsureMigrations(dbPath string) error {
	sqliteDb, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return err
	}
	driver, err := sqlite3.WithInstance(sqliteDb, &sqlite3.Config{})
	if err != nil {
		return err
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	m, err := migrate.NewWithInstance("iofs", src, dbPath, driver)
	if err != nil {
		return err
	}
	log.Info().Str("dbPath", dbPath).Msg("bringing up migration")
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	e1, e2 := m.Close()
	log.Err(e1).Msg("close-source")
	log.Err(e2).Msg("close-database")
	return nil
}
