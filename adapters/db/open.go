// Package db persists calibration outcomes in PostgreSQL or SQLite.
package db

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	apperrors "epicalib/internal/errors"
	"epicalib/internal/migration"
)

// Supported driver names
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Open connects to the result database and applies the schema migrations.
// For SQLite the URL is a file path or ":memory:".
func Open(ctx context.Context, driver, url string) (*sqlx.DB, error) {
	switch driver {
	case DriverPostgres:
	case DriverSQLite:
		if url != ":memory:" && !strings.Contains(url, "?") {
			url += "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
		}
	default:
		return nil, apperrors.ConfigInvalid(fmt.Sprintf("unsupported database driver %q", driver))
	}

	db, err := sqlx.ConnectContext(ctx, driver, url)
	if err != nil {
		return nil, apperrors.WithCode(apperrors.CodeDatabaseError, fmt.Errorf("failed to connect to %s database: %w", driver, err))
	}
	if driver == DriverSQLite {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, apperrors.WithCode(apperrors.CodeDatabaseError, err)
		}
	}

	runner := migration.NewRunner()
	if err := runner.Run(ctx, db); err != nil {
		db.Close()
		return nil, apperrors.WithCode(apperrors.CodeDatabaseError, err)
	}
	log.Printf("[DB] connected to %s, schema version %s", driver, runner.Version())
	return db, nil
}
