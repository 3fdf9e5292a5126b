package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"modernc.org/sqlite"
)

const sqliteConstraintUnique = 2067

// Querier abstracts database operations for both database and transaction.
type Querier interface {
	Query(ctx context.Context, query string, args ...interface{}) (Rows, error)
	QueryRow(ctx context.Context, query string, args ...interface{}) Row
	Exec(ctx context.Context, query string, args ...interface{}) (Result, error)
}

// IsNoRows checks if the error is sql.ErrNoRows.
func IsNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// UniqueViolation reports whether err is a unique-key conflict from any
// supported driver, returning the key or constraint name when known.
func UniqueViolation(err error) (string, bool) {
	if err == nil {
		return "", false
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == 1062 {
		return ExtractDuplicateKeyName(myErr.Message), true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return pqErr.Constraint, true
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) && (liteErr.Code() == sqliteConstraintUnique || strings.Contains(liteErr.Error(), "UNIQUE constraint failed")) {
		return "", true
	}
	return "", false
}

// ExtractDuplicateKeyName parses duplicate key name from MySQL error message.
func ExtractDuplicateKeyName(message string) string {
	if message == "" {
		return ""
	}
	const marker = "for key "
	idx := strings.LastIndex(message, marker)
	if idx == -1 {
		return ""
	}
	key := strings.TrimSpace(message[idx+len(marker):])
	return strings.Trim(key, " `\"'")
}

// Open picks the driver from the dialect name.
func Open(dialect string, cfg PoolConfig) (Database, error) {
	switch strings.ToLower(dialect) {
	case "", DialectMySQL:
		return NewMySQL(cfg)
	case DialectPostgres, "postgresql", "pg":
		return NewPostgreSQL(cfg)
	case DialectSQLite, "sqlite3":
		return NewSQLite(cfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", dialect)
	}
}
