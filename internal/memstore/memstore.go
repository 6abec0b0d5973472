// Package memstore implements the in-process memory backend: ordered
// containers keyed by primary key, per-table identity counters, and
// copy-on-begin snapshots for transaction rollback. It satisfies the same
// client contract as internal/sqlstore, structurally — there is no shared
// backend interface here, only the method set the root package expects.
package memstore

import (
	"fmt"
	"strings"
	"sync"

	"github.com/mistfall/mistfall/internal/clone"
	"github.com/mistfall/mistfall/internal/normalize"
	"github.com/mistfall/mistfall/internal/queryeval"
	"github.com/mistfall/mistfall/pkg/mistfallerr"
	"github.com/mistfall/mistfall/pkg/schema"
)

// store holds one table's rows keyed by primary key, plus the insertion
// order of those keys — Go maps don't preserve iteration order, and the
// memory backend's documented natural ordering (spec.md §9) is insertion
// order.
type store struct {
	keys []any
	rows map[any]map[string]any
}

func newStore() *store {
	return &store{rows: make(map[any]map[string]any)}
}

// Backend is the in-process memory adapter.
type Backend struct {
	schema *schema.Schema

	mu        sync.RWMutex
	stores    map[string]*store
	sequences map[string]int64
}

// New builds a memory backend with an empty store for every table in s.
func New(s *schema.Schema) *Backend {
	b := &Backend{
		schema:    s,
		stores:    make(map[string]*store),
		sequences: make(map[string]int64),
	}
	for _, t := range s.Tables() {
		b.stores[t.StorageName()] = newStore()
	}
	return b
}

// Kind identifies this backend to Client callers.
func (b *Backend) Kind() string { return "memory" }

// Schema returns the schema this backend was built from.
func (b *Backend) Schema() *schema.Schema { return b.schema }

// Close is a no-op for the memory backend; it holds no external resources.
func (b *Backend) Close() error { return nil }

func (b *Backend) table(name string) (*schema.Table, error) {
	t, ok := b.schema.Table(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", mistfallerr.ErrTableNotFound, name)
	}
	return t, nil
}

func (b *Backend) storeFor(t *schema.Table) *store {
	return b.stores[t.StorageName()]
}

// Insert normalizes and stores each row, returning the cloned, normalized
// results in the same order the caller supplied them. The whole batch
// commits or none of it does: a failure partway through restores the
// snapshot taken at entry, matching internal/sqlstore's single-transaction
// Insert rather than leaving earlier rows in this call committed.
func (b *Backend) Insert(table string, rows []map[string]any) ([]map[string]any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	snap := b.snapshotLocked()
	results, err := b.insertLocked(table, rows)
	if err != nil {
		b.restoreLocked(snap)
		return nil, err
	}
	return results, nil
}

func (b *Backend) insertLocked(tableName string, rows []map[string]any) ([]map[string]any, error) {
	t, err := b.table(tableName)
	if err != nil {
		return nil, err
	}
	st := b.storeFor(t)
	ctx := &memContext{b: b}
	pkName := t.PrimaryKey().Name
	groups := uniqueGroups(t)

	results := make([]map[string]any, 0, len(rows))
	for _, r := range rows {
		normalized, err := normalize.Insert(ctx, t, r)
		if err != nil {
			return nil, err
		}
		key := normalized[pkName]
		if key == nil {
			return nil, fmt.Errorf("%w: %s.%s", mistfallerr.ErrNotNullViolation, t.Name, pkName)
		}
		if _, exists := st.rows[key]; exists {
			return nil, fmt.Errorf("%w: %s pk=%v", mistfallerr.ErrPrimaryKeyViolation, t.Name, key)
		}
		if err := checkUniqueGroups(st, t, groups, normalized, nil); err != nil {
			return nil, err
		}
		st.rows[key] = normalized
		st.keys = append(st.keys, key)
		results = append(results, normalized)
	}
	return clone.Rows(results), nil
}

// uniqueGroups lists every column-name group this table must keep unique
// across rows: one singleton group per non-PK Column.Unique column, plus
// one group per Unique index's key columns (its declared Columns for a
// plain index, or its materialized field for a computed one).
func uniqueGroups(t *schema.Table) [][]string {
	var groups [][]string
	for _, c := range t.Columns {
		if c.Unique && !c.PrimaryKey {
			groups = append(groups, []string{c.Name})
		}
	}
	for _, idx := range t.Indexes {
		if !idx.Unique {
			continue
		}
		if idx.Computed != nil {
			groups = append(groups, []string{idx.Computed.Field})
		} else {
			groups = append(groups, idx.Columns)
		}
	}
	return groups
}

// checkUniqueGroups confirms that no row in st other than excludeKey
// matches candidate's values across every column of any unique group — a
// nil value in the candidate never collides, matching SQL UNIQUE's
// NULL-never-equals-NULL semantics.
func checkUniqueGroups(st *store, t *schema.Table, groups [][]string, candidate map[string]any, excludeKey any) error {
	for _, cols := range groups {
		if !rowHasAllValues(candidate, cols) {
			continue
		}
		for _, k := range st.keys {
			if excludeKey != nil && k == excludeKey {
				continue
			}
			if rowMatches(st.rows[k], candidate, cols) {
				return fmt.Errorf("%w: %s(%s)", mistfallerr.ErrUniqueViolation, t.Name, strings.Join(cols, ","))
			}
		}
	}
	return nil
}

func rowHasAllValues(row map[string]any, cols []string) bool {
	for _, c := range cols {
		if row[c] == nil {
			return false
		}
	}
	return true
}

func rowMatches(a, b map[string]any, cols []string) bool {
	for _, c := range cols {
		if a[c] == nil || a[c] != b[c] {
			return false
		}
	}
	return true
}

// Select applies the query evaluator over the table's rows in their
// natural (insertion) order.
func (b *Backend) Select(table string, opts queryeval.Options) ([]map[string]any, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.selectLocked(table, opts)
}

func (b *Backend) selectLocked(tableName string, opts queryeval.Options) ([]map[string]any, error) {
	t, err := b.table(tableName)
	if err != nil {
		return nil, err
	}
	st := b.storeFor(t)
	rows := make([]map[string]any, 0, len(st.keys))
	for _, k := range st.keys {
		rows = append(rows, st.rows[k])
	}
	return queryeval.Apply(rows, opts), nil
}

// Update applies patch to every row matching where, running the
// normalization pipeline's update rules on each. The row's primary key is
// never displaced by a patch, matching the spec's silence on PK mutation
// via update.
func (b *Backend) Update(table string, where func(map[string]any) bool, patch map[string]any) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	snap := b.snapshotLocked()
	count, err := b.updateLocked(table, where, patch)
	if err != nil {
		b.restoreLocked(snap)
		return 0, err
	}
	return count, nil
}

func (b *Backend) updateLocked(tableName string, where func(map[string]any) bool, patch map[string]any) (int, error) {
	t, err := b.table(tableName)
	if err != nil {
		return 0, err
	}
	st := b.storeFor(t)
	ctx := &memContext{b: b}
	pkName := t.PrimaryKey().Name
	groups := uniqueGroups(t)

	count := 0
	for _, k := range st.keys {
		row := st.rows[k]
		if where != nil && !where(row) {
			continue
		}
		updated, err := normalize.Update(ctx, t, row, patch)
		if err != nil {
			return count, err
		}
		updated[pkName] = k
		if err := checkUniqueGroups(st, t, groups, updated, k); err != nil {
			return count, err
		}
		st.rows[k] = updated
		count++
	}
	return count, nil
}

// Delete removes every row matching where, after first verifying none of
// them is referenced by a restrict-mode foreign key. The check runs over
// every candidate before any row is removed, so a failing delete leaves
// the store untouched.
func (b *Backend) Delete(table string, where func(map[string]any) bool) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.deleteLocked(table, where)
}

func (b *Backend) deleteLocked(tableName string, where func(map[string]any) bool) (int, error) {
	t, err := b.table(tableName)
	if err != nil {
		return 0, err
	}
	st := b.storeFor(t)
	pkName := t.PrimaryKey().Name
	deps := b.schema.Dependents(t.Name)

	var candidates []any
	for _, k := range st.keys {
		if where == nil || where(st.rows[k]) {
			candidates = append(candidates, k)
		}
	}

	for _, k := range candidates {
		pk := st.rows[k][pkName]
		for _, dep := range deps {
			depTable, _ := b.schema.Table(dep.SourceTable)
			depStore := b.storeFor(depTable)
			for _, dk := range depStore.keys {
				if depStore.rows[dk][dep.SourceColumn] == pk {
					return 0, fmt.Errorf("%w: %s.%s referenced by %s.%s",
						mistfallerr.ErrRestrictDeletion, t.Name, pkName, dep.SourceTable, dep.SourceColumn)
				}
			}
		}
	}

	removed := make(map[any]bool, len(candidates))
	for _, k := range candidates {
		delete(st.rows, k)
		removed[k] = true
	}
	newKeys := make([]any, 0, len(st.keys)-len(candidates))
	for _, k := range st.keys {
		if !removed[k] {
			newKeys = append(newKeys, k)
		}
	}
	st.keys = newKeys
	return len(candidates), nil
}
