package memstore

import (
	"fmt"

	"github.com/mistfall/mistfall/internal/clone"
	"github.com/mistfall/mistfall/internal/queryeval"
	"github.com/mistfall/mistfall/pkg/mistfallerr"
)

// snapshot is a deep copy of every store and the sequence map, taken at
// transaction begin and restored verbatim on rollback — including the
// sequence counters, so identities allocated inside a rolled-back
// transaction may be reused (the Open Question in spec.md §9 is resolved
// in favor of the reviewed core's behavior).
type snapshot struct {
	stores    map[string]*store
	sequences map[string]int64
}

func (b *Backend) snapshotLocked() snapshot {
	s := snapshot{
		stores:    make(map[string]*store, len(b.stores)),
		sequences: make(map[string]int64, len(b.sequences)),
	}
	for name, st := range b.stores {
		copied := &store{
			keys: append([]any(nil), st.keys...),
			rows: make(map[any]map[string]any, len(st.rows)),
		}
		for k, row := range st.rows {
			copied.rows[k] = clone.Row(row)
		}
		s.stores[name] = copied
	}
	for name, v := range b.sequences {
		s.sequences[name] = v
	}
	return s
}

func (b *Backend) restoreLocked(s snapshot) {
	b.stores = s.stores
	b.sequences = s.sequences
}

// session is the transaction-scoped handle passed to a transaction's
// function. It rejects operations against tables not in its declared set.
type session struct {
	b       *Backend
	allowed map[string]bool
}

func (s *session) checkAllowed(table string) error {
	if !s.allowed[table] {
		return fmt.Errorf("%w: %s", mistfallerr.ErrUndeclaredTable, table)
	}
	return nil
}

func (s *session) Insert(table string, rows []map[string]any) ([]map[string]any, error) {
	if err := s.checkAllowed(table); err != nil {
		return nil, err
	}
	return s.b.insertLocked(table, rows)
}

func (s *session) Select(table string, opts queryeval.Options) ([]map[string]any, error) {
	if err := s.checkAllowed(table); err != nil {
		return nil, err
	}
	return s.b.selectLocked(table, opts)
}

func (s *session) Update(table string, where func(map[string]any) bool, patch map[string]any) (int, error) {
	if err := s.checkAllowed(table); err != nil {
		return 0, err
	}
	return s.b.updateLocked(table, where, patch)
}

func (s *session) Delete(table string, where func(map[string]any) bool) (int, error) {
	if err := s.checkAllowed(table); err != nil {
		return 0, err
	}
	return s.b.deleteLocked(table, where)
}

// Transaction snapshots every store and the sequence map, runs fn with a
// session scoped to tables, and restores the snapshot if fn returns an
// error or panics. tables must be non-empty.
func (b *Backend) Transaction(tables []string, fn func(Session) (any, error)) (result any, err error) {
	if len(tables) == 0 {
		return nil, mistfallerr.ErrEmptyTransaction
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	snap := b.snapshotLocked()
	allowed := make(map[string]bool, len(tables))
	for _, t := range tables {
		allowed[t] = true
	}
	sess := &session{b: b, allowed: allowed}

	defer func() {
		if r := recover(); r != nil {
			b.restoreLocked(snap)
			err = fmt.Errorf("%w: panic in transaction: %v", mistfallerr.ErrBackend, r)
		}
	}()

	result, err = fn(sess)
	if err != nil {
		b.restoreLocked(snap)
		return nil, err
	}
	return result, nil
}

// Session is the CRUD surface exposed inside a transaction's function.
type Session interface {
	Insert(table string, rows []map[string]any) ([]map[string]any, error)
	Select(table string, opts queryeval.Options) ([]map[string]any, error)
	Update(table string, where func(map[string]any) bool, patch map[string]any) (int, error)
	Delete(table string, where func(map[string]any) bool) (int, error)
}
