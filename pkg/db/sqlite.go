// pkg/db/sqlite.go
package db

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // SQLite driver registered as "sqlite3"
)

// NewSQLiteDB opens an embedded database at path. The pool is limited to one
// connection: an in-memory database lives and dies with its connection, and
// SQLite serializes writers anyway.
func NewSQLiteDB(path string) (*sqlx.DB, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_busy_timeout=5000&_txlock=immediate"
	}
	db, err := sqlx.Open(DriverSQLite, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database %s: %w", path, err)
	}
	return db, nil
}
