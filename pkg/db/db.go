// pkg/db/db.go
package db

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Supported driver names.
const (
	DriverPostgres = "postgres"
	DriverPgx      = "pgx"
	DriverSQLite   = "sqlite3"
)

// Open connects to the database selected by cfg.Driver.
func Open(cfg Config) (*sqlx.DB, error) {
	switch cfg.Driver {
	case "", DriverPostgres, DriverPgx:
		return NewPostgresDB(cfg)
	case DriverSQLite:
		return NewSQLiteDB(cfg.Path)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}
