package sqlstore

import (
	"fmt"

	"github.com/mistfall/mistfall/internal/clone"
	"github.com/mistfall/mistfall/internal/queryeval"
	"github.com/mistfall/mistfall/pkg/mistfallerr"
)

// Insert opens one engine transaction spanning the whole database file —
// which, for a single-file SQLite store, already is the union of the
// target store, __seq, and every store the target table's foreign keys
// or reverse dependencies might touch — runs the normalization pipeline,
// and commits only if every row lands.
func (b *Backend) Insert(table string, rows []map[string]any) ([]map[string]any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, err := b.table(table)
	if err != nil {
		return nil, err
	}
	tx, err := b.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("%w: beginning insert transaction: %v", mistfallerr.ErrBackend, err)
	}
	results, err := insertTx(tx, b.schema, t, rows)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: committing insert: %v", mistfallerr.ErrBackend, err)
	}
	return clone.Rows(results), nil
}

// Select reads the target store without opening a write transaction.
func (b *Backend) Select(table string, opts queryeval.Options) ([]map[string]any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, err := b.table(table)
	if err != nil {
		return nil, err
	}
	return selectQ(b.db, t, opts)
}

// Update opens one engine transaction over the whole file, applies the
// normalization pipeline's update rules to every matching row, and commits
// only if every update lands.
func (b *Backend) Update(table string, where func(map[string]any) bool, patch map[string]any) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, err := b.table(table)
	if err != nil {
		return 0, err
	}
	tx, err := b.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("%w: beginning update transaction: %v", mistfallerr.ErrBackend, err)
	}
	count, err := updateTx(tx, b.schema, t, where, patch)
	if err != nil {
		tx.Rollback()
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: committing update: %v", mistfallerr.ErrBackend, err)
	}
	return count, nil
}

// Delete opens one engine transaction, checks every candidate row against
// the reverse dependency map before removing any of them, and commits only
// if the whole batch is restrict-clear.
func (b *Backend) Delete(table string, where func(map[string]any) bool) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, err := b.table(table)
	if err != nil {
		return 0, err
	}
	tx, err := b.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("%w: beginning delete transaction: %v", mistfallerr.ErrBackend, err)
	}
	count, err := deleteTx(tx, b.schema, t, where)
	if err != nil {
		tx.Rollback()
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: committing delete: %v", mistfallerr.ErrBackend, err)
	}
	return count, nil
}
