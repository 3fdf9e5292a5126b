package db

import (
	"database/sql"

	_ "github.com/go-sql-driver/mysql"
)

const DialectMySQL = "mysql"

// NewMySQL opens a MySQL pool.
// DSN format: "user:password@tcp(host:port)/dbname?parseTime=true&loc=UTC"
func NewMySQL(cfg PoolConfig) (Database, error) {
	return openPool("mysql", DialectMySQL, cfg, nil)
}

// NewMySQLWithDB wraps an existing handle.
func NewMySQLWithDB(conn *sql.DB) Database {
	return wrapPool(conn, DialectMySQL, nil)
}
