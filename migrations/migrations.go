// Package migrations embeds the Postgres schema for the run ledger and the
// slot archive.
package migrations

import (
	"database/sql"
	"embed"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/wolfman30/spa-availability/pkg/logging"
)

//go:embed *.sql
var FS embed.FS

// Source opens the embedded files as a migrate source.
func Source() (source.Driver, error) {
	d, err := iofs.New(FS, ".")
	if err != nil {
		return nil, fmt.Errorf("migrations: open source: %w", err)
	}
	return d, nil
}

// NewMigrator binds the embedded schema to db. Closing the migrator does
// not close db.
func NewMigrator(db *sql.DB, logger *logging.Logger) (*migrate.Migrate, error) {
	src, err := Source()
	if err != nil {
		return nil, err
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: "spa_schema_migrations"})
	if err != nil {
		return nil, fmt.Errorf("migrations: postgres driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("migrations: create migrator: %w", err)
	}
	if logger != nil {
		m.Log = migrateLogger{logger}
	}
	return m, nil
}

type migrateLogger struct {
	logger *logging.Logger
}

func (l migrateLogger) Printf(format string, v ...any) {
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (migrateLogger) Verbose() bool { return false }
