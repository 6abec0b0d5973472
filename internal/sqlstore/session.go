package sqlstore

import (
	"database/sql"
	"fmt"

	"github.com/mistfall/mistfall/internal/clone"
	"github.com/mistfall/mistfall/internal/queryeval"
	"github.com/mistfall/mistfall/pkg/mistfallerr"
	"github.com/mistfall/mistfall/pkg/schema"
)

// session is the transaction-scoped handle passed to a transaction's
// function. Every operation runs against the same *sql.Tx, so a
// transaction's reads see its own uncommitted writes.
type session struct {
	tx      *sql.Tx
	b       *Backend
	allowed map[string]bool
}

func (s *session) checkAllowed(table string) (*schema.Table, error) {
	if !s.allowed[table] {
		return nil, fmt.Errorf("%w: %s", mistfallerr.ErrUndeclaredTable, table)
	}
	t, err := s.b.table(table)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (s *session) Insert(table string, rows []map[string]any) ([]map[string]any, error) {
	t, err := s.checkAllowed(table)
	if err != nil {
		return nil, err
	}
	results, err := insertTx(s.tx, s.b.schema, t, rows)
	if err != nil {
		return nil, err
	}
	return clone.Rows(results), nil
}

func (s *session) Select(table string, opts queryeval.Options) ([]map[string]any, error) {
	t, err := s.checkAllowed(table)
	if err != nil {
		return nil, err
	}
	return selectQ(s.tx, t, opts)
}

func (s *session) Update(table string, where func(map[string]any) bool, patch map[string]any) (int, error) {
	t, err := s.checkAllowed(table)
	if err != nil {
		return 0, err
	}
	return updateTx(s.tx, s.b.schema, t, where, patch)
}

func (s *session) Delete(table string, where func(map[string]any) bool) (int, error) {
	t, err := s.checkAllowed(table)
	if err != nil {
		return 0, err
	}
	return deleteTx(s.tx, s.b.schema, t, where)
}

// Transaction opens one native BEGIN, runs fn with a session scoped to
// tables, and rolls back on error or panic. tables must be non-empty.
func (b *Backend) Transaction(tables []string, fn func(Session) (any, error)) (result any, err error) {
	if len(tables) == 0 {
		return nil, mistfallerr.ErrEmptyTransaction
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	tx, err := b.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("%w: beginning transaction: %v", mistfallerr.ErrBackend, err)
	}

	allowed := make(map[string]bool, len(tables))
	for _, t := range tables {
		allowed[t] = true
	}
	sess := &session{tx: tx, b: b, allowed: allowed}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			err = fmt.Errorf("%w: panic in transaction: %v", mistfallerr.ErrBackend, r)
		}
	}()

	result, err = fn(sess)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: committing transaction: %v", mistfallerr.ErrBackend, err)
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
