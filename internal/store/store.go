// Package store is the persistence layer: typed CRUD over a single embedded
// SQLite database file, matching the relational schema of the project's
// state layout (<project-root>/.agentcore/store.db).
package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps a *sql.DB for the embedded database. All writes are
// serialized through writeMu to avoid SQLITE_BUSY from concurrent writers;
// reads may proceed concurrently, matching the shared-resource policy that
// the persistence store is a single mutex (or serialized write queue) away
// from the rest of the system.
type Store struct {
	db      *sql.DB
	writeMu sync.Mutex
}

// Open opens (creating if necessary) the SQLite file at path and applies
// any pending migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite: single-writer embedded file

	s := &Store{db: db}

	migrator, err := NewMigrator(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := migrator.Up(ctx, 0); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}

	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// withWrite serializes a write operation against the store-wide mutex.
func (s *Store) withWrite(fn func() error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return fn()
}

// now is overridable in tests; production code always uses time.Now().
var now = time.Now
