// Package store is the durable state layer: photos, faces, persons,
// enrollments, and the upload queue, backed by a single SQLite database
// file. It is grounded on the corpus's PostgreSQL connection-pool wrapper
// (internal/database/postgres/postgres.go) but adapted for a WAL-mode,
// effectively single-writer local file rather than a server pool: one
// shared *sql.DB with a single open connection, and an internal
// locked-row retry policy instead of a concurrent connection pool.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// Store is the concrete, non-interface durable state layer. It is
// deliberately not abstracted behind an interface: the SQL behavior
// (transaction boundaries, lock retry, migrations) is part of the
// contract the rest of the engine is tested against.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

// Open creates (if absent) and opens the SQLite database at path, enables
// WAL journaling and foreign keys, and runs embedded migrations.
func Open(ctx context.Context, path string, busyTimeout time.Duration, log zerolog.Logger) (*Store, error) {
	dsn := fmt.Sprintf(
		"file:%s?_journal_mode=WAL&_busy_timeout=%d&_foreign_keys=on&_synchronous=NORMAL",
		path, busyTimeout.Milliseconds(),
	)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	// SQLite in WAL mode still serializes writers at the database-file
	// level; holding more than one open connection just multiplies
	// SQLITE_BUSY contention on every write. One connection plus our own
	// locked-row retry (see retry.go) is the correct model here, unlike
	// the Postgres pool this is grounded on, which fans writes out across
	// many server-side backends.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging store: %w", err)
	}

	s := &Store{db: db, log: log.With().Str("component", "store").Logger()}

	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing store: %w", err)
	}
	return nil
}

// DB exposes the underlying *sql.DB. Code inside this package, including
// its tests and recovery's transactions, uses s.db directly.
func (s *Store) DB() *sql.DB {
	return s.db
}
