package db

import (
	"database/sql"

	_ "modernc.org/sqlite"
)

const DialectSQLite = "sqlite"

// NewSQLite opens an embedded SQLite database for single-node setups and tests.
// SQLite serializes writers, so the pool is pinned to one connection that is
// never recycled; an in-memory database lives exactly as long as it.
func NewSQLite(cfg PoolConfig) (Database, error) {
	cfg.MaxOpenConnections = 1
	cfg.MaxIdleConnections = 1
	cfg.ConnMaxLifetime = -1
	cfg.ConnMaxIdleTime = -1
	return openPool("sqlite", DialectSQLite, cfg, nil)
}

// NewSQLiteWithDB wraps an existing handle.
func NewSQLiteWithDB(conn *sql.DB) Database {
	conn.SetMaxOpenConns(1)
	return wrapPool(conn, DialectSQLite, nil)
}

// ForUpdate returns the row lock suffix for the dialect. SQLite locks the whole
// database on write so it has none.
func ForUpdate(dialect string) string {
	if dialect == DialectSQLite {
		return ""
	}
	return " FOR UPDATE"
}
