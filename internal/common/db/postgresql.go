package db

import (
	"database/sql"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
)

const DialectPostgres = "postgres"

// NewPostgreSQL opens a PostgreSQL pool.
// DSN format: "user=postgres password=secret host=localhost port=5432 dbname=dailycode sslmode=disable"
func NewPostgreSQL(cfg PoolConfig) (Database, error) {
	return openPool("postgres", DialectPostgres, cfg, RebindDollar)
}

// NewPostgreSQLWithDB wraps an existing handle.
func NewPostgreSQLWithDB(conn *sql.DB) Database {
	return wrapPool(conn, DialectPostgres, RebindDollar)
}

// RebindDollar rewrites '?' placeholders to $1..$n, leaving quoted literals alone.
func RebindDollar(query string) string {
	if !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	var quote byte
	for i := 0; i < len(query); i++ {
		ch := query[i]
		switch {
		case quote != 0:
			if ch == quote {
				quote = 0
			}
		case ch == '\'' || ch == '"':
			quote = ch
		case ch == '?':
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(ch)
	}
	return b.String()
}
