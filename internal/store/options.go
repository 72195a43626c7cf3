package store

import (
	"fmt"
	"log/slog"
	"strings"
)

// Backend names returned by DetectDSNType.
const (
	BackendSQLite   = "sqlite3"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Opts holds configuration for the store constructors.
type Opts struct {
	DSN     string
	Backend string
}

// Option configures a store.
type Option func(*Opts)

// WithSQLiteDSN selects the SQLite backend with the given database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
		o.Backend = BackendSQLite
	}
}

// WithPostgresDSN selects the PostgreSQL backend with the given connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
		o.Backend = BackendPostgres
	}
}

// WithInMemory selects the non-durable in-memory backend.
func WithInMemory() Option {
	return func(o *Opts) {
		o.DSN = ""
		o.Backend = BackendMemory
	}
}

// DetectDSNType returns "postgres" for PostgreSQL URLs or keyword DSNs and
// "sqlite3" for everything else.
func DetectDSNType(dsn string) string {
	lower := strings.ToLower(strings.TrimSpace(dsn))
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return BackendPostgres
	}
	if strings.Contains(lower, "host=") || strings.Contains(lower, "dbname=") {
		return BackendPostgres
	}
	return BackendSQLite
}

// Open builds the store selected by opts. With no backend configured it falls
// back to the in-memory store.
func Open(opts ...Option) (Store, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	switch cfg.Backend {
	case BackendPostgres:
		return NewPostgresStore(opts...)
	case BackendSQLite:
		return NewSQLiteStore(opts...)
	case BackendMemory, "":
		slog.Debug("store.Open: using in-memory store")
		return NewInMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
