// Package sqlstore implements the persistent backend over modernc.org/sqlite,
// used as a versioned document store: one physical table per object store,
// a metadata record as the open-time version gate, and native
// BEGIN/COMMIT/ROLLBACK as the abort-on-error rollback primitive.
package sqlstore

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/mistfall/mistfall/pkg/mistfallerr"
	"github.com/mistfall/mistfall/pkg/schema"
)

// Backend is the persistent adapter. It holds one *sql.DB connection pool
// per client, capped at a single open connection so the engine never
// overlaps two transactions against the same handle.
type Backend struct {
	schema *schema.Schema

	mu sync.Mutex // serializes public operations; the DB itself is single-conn
	db *sql.DB
}

// Open creates dbPath's parent directory if needed, opens the database,
// and runs the upgrade planner if the stored schema version is behind s.
func Open(s *schema.Schema, dbPath string) (*Backend, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: creating data directory: %v", mistfallerr.ErrBackend, err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %v", mistfallerr.ErrBackend, err)
	}
	db.SetMaxOpenConns(1)

	if err := upgrade(db, s); err != nil {
		db.Close()
		return nil, err
	}

	return &Backend{schema: s, db: db}, nil
}

// Kind identifies this backend to Client callers.
func (b *Backend) Kind() string { return "persistent" }

// Schema returns the schema this backend was opened with.
func (b *Backend) Schema() *schema.Schema { return b.schema }

// Close releases the database handle.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.db.Close()
}

func (b *Backend) table(name string) (*schema.Table, error) {
	t, ok := b.schema.Table(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", mistfallerr.ErrTableNotFound, name)
	}
	return t, nil
}
