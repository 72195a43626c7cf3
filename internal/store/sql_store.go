package store

import (
	"context"
	"database/sql"
	"log/slog"
	"strconv"
	"strings"
)

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// String returns the store name used as the log prefix.
func (d dialect) String() string {
	if d == dialectPostgres {
		return "PostgresStore"
	}
	return "SQLiteStore"
}

// sqlStore holds the repository implementations shared by SQLiteStore and
// PostgresStore. Queries are written with ? placeholders and rebound per dialect.
type sqlStore struct {
	db      *sql.DB
	dialect dialect
}

func newSQLStore(db *sql.DB, d dialect) *sqlStore {
	return &sqlStore{db: db, dialect: d}
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *sqlStore) rebind(query string) string {
	if s.dialect != dialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// execAffected runs a conditional update and returns the affected row count.
func (s *sqlStore) execAffected(ctx context.Context, q queryer, op, query string, args ...interface{}) (int64, error) {
	res, err := q.ExecContext(ctx, s.rebind(query), args...)
	if err != nil {
		slog.Error(s.dialect.String()+" "+op+" failed", "error", err)
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		slog.Error(s.dialect.String()+" "+op+" rows affected failed", "error", err)
		return 0, err
	}
	return n, nil
}

// Ping checks that the database is reachable.
func (s *sqlStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *sqlStore) Close() error {
	slog.Debug("Closing database connection", "store", s.dialect.String())
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close database", "store", s.dialect.String(), "error", err)
	}
	return err
}
