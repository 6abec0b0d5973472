package sqlstore

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/mistfall/mistfall/internal/normalize"
	"github.com/mistfall/mistfall/internal/queryeval"
	"github.com/mistfall/mistfall/pkg/mistfallerr"
	"github.com/mistfall/mistfall/pkg/schema"
)

// querier is satisfied by both *sql.DB and *sql.Tx, so selectQ can run
// either as a standalone read or as part of an explicit session's
// in-progress transaction.
type querier interface {
	Query(query string, args ...any) (*sql.Rows, error)
}

// columnList returns a table's declared column names followed by any
// computed-index field names not already a declared column.
func columnList(t *schema.Table) []string {
	declared := make(map[string]bool, len(t.Columns))
	names := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		names = append(names, c.Name)
		declared[c.Name] = true
	}
	for _, idx := range t.Indexes {
		if idx.Computed != nil && !declared[idx.Computed.Field] {
			names = append(names, idx.Computed.Field)
			declared[idx.Computed.Field] = true
		}
	}
	return names
}

func quoteNames(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = fmt.Sprintf("%q", n)
	}
	return out
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func scanRow(rs *sql.Rows, t *schema.Table, cols []string) (map[string]any, error) {
	raw := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	if err := rs.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("%w: scanning %s: %v", mistfallerr.ErrBackend, t.StorageName(), err)
	}
	row := make(map[string]any, len(cols))
	for i, name := range cols {
		if col := t.Column(name); col != nil {
			v, err := decodeValue(col, raw[i])
			if err != nil {
				return nil, err
			}
			row[name] = v
		} else {
			row[name] = raw[i]
		}
	}
	return row, nil
}

// selectQ fetches every row from t's store ordered by primary key — the
// documented natural ordering for the persistent backend — then applies
// the query evaluator for filter/orderBy/offset/limit.
func selectQ(q querier, t *schema.Table, opts queryeval.Options) ([]map[string]any, error) {
	cols := columnList(t)
	stmt := fmt.Sprintf(`SELECT %s FROM %q ORDER BY %q`,
		strings.Join(quoteNames(cols), ", "), t.StorageName(), t.PrimaryKey().Name)
	rs, err := q.Query(stmt)
	if err != nil {
		return nil, fmt.Errorf("%w: selecting from %s: %v", mistfallerr.ErrBackend, t.StorageName(), err)
	}
	defer rs.Close()

	var rows []map[string]any
	for rs.Next() {
		row, err := scanRow(rs, t, cols)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	if err := rs.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating %s: %v", mistfallerr.ErrBackend, t.StorageName(), err)
	}
	return queryeval.Apply(rows, opts), nil
}

// execInsert checks for a pre-existing primary key before attempting the
// insert, so a UNIQUE constraint failure the insert itself hits afterward
// can only come from a non-PK unique column or index — isUniqueViolation's
// generic message match can't otherwise tell the two apart.
func execInsert(tx *sql.Tx, t *schema.Table, row map[string]any) error {
	pk := t.PrimaryKey()
	pkVal, err := encodeValue(pk, row[pk.Name])
	if err != nil {
		return err
	}
	var exists int
	pkErr := tx.QueryRow(fmt.Sprintf(`SELECT 1 FROM %q WHERE %q = ?`, t.StorageName(), pk.Name), pkVal).Scan(&exists)
	if pkErr == nil {
		return fmt.Errorf("%w: %s pk=%v", mistfallerr.ErrPrimaryKeyViolation, t.Name, row[pk.Name])
	}
	if pkErr != sql.ErrNoRows {
		return fmt.Errorf("%w: checking primary key on %s: %v", mistfallerr.ErrBackend, t.StorageName(), pkErr)
	}

	cols := columnList(t)
	args := make([]any, len(cols))
	for i, name := range cols {
		col := t.Column(name)
		if col == nil {
			args[i] = row[name]
			continue
		}
		enc, err := encodeValue(col, row[name])
		if err != nil {
			return err
		}
		args[i] = enc
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	stmt := fmt.Sprintf(`INSERT INTO %q (%s) VALUES (%s)`,
		t.StorageName(), strings.Join(quoteNames(cols), ", "), placeholders)
	if _, err := tx.Exec(stmt, args...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s: %v", mistfallerr.ErrUniqueViolation, t.Name, err)
		}
		return fmt.Errorf("%w: inserting into %s: %v", mistfallerr.ErrBackend, t.StorageName(), err)
	}
	return nil
}

func execUpdate(tx *sql.Tx, t *schema.Table, row map[string]any) error {
	pkName := t.PrimaryKey().Name
	cols := columnList(t)

	var sets []string
	var args []any
	for _, name := range cols {
		if name == pkName {
			continue
		}
		col := t.Column(name)
		var enc any
		var err error
		if col == nil {
			enc = row[name]
		} else {
			enc, err = encodeValue(col, row[name])
			if err != nil {
				return err
			}
		}
		sets = append(sets, fmt.Sprintf("%q = ?", name))
		args = append(args, enc)
	}

	pkVal, err := encodeValue(t.PrimaryKey(), row[pkName])
	if err != nil {
		return err
	}
	args = append(args, pkVal)

	stmt := fmt.Sprintf(`UPDATE %q SET %s WHERE %q = ?`, t.StorageName(), strings.Join(sets, ", "), pkName)
	if _, err := tx.Exec(stmt, args...); err != nil {
		if isUniqueViolation(err) {
			// The primary key column is never part of the SET clause above,
			// so a UNIQUE failure here can only be a non-PK unique column or
			// index colliding with another row's value.
			return fmt.Errorf("%w: %s: %v", mistfallerr.ErrUniqueViolation, t.Name, err)
		}
		return fmt.Errorf("%w: updating %s: %v", mistfallerr.ErrBackend, t.StorageName(), err)
	}
	return nil
}

func execDelete(tx *sql.Tx, t *schema.Table, pkVal any) error {
	encoded, err := encodeValue(t.PrimaryKey(), pkVal)
	if err != nil {
		return err
	}
	stmt := fmt.Sprintf(`DELETE FROM %q WHERE %q = ?`, t.StorageName(), t.PrimaryKey().Name)
	if _, err := tx.Exec(stmt, encoded); err != nil {
		return fmt.Errorf("%w: deleting from %s: %v", mistfallerr.ErrBackend, t.StorageName(), err)
	}
	return nil
}

func insertTx(tx *sql.Tx, s *schema.Schema, t *schema.Table, rows []map[string]any) ([]map[string]any, error) {
	ctx := &sqlContext{tx: tx, schema: s}
	results := make([]map[string]any, 0, len(rows))
	for _, r := range rows {
		normalized, err := normalize.Insert(ctx, t, r)
		if err != nil {
			return nil, err
		}
		if err := execInsert(tx, t, normalized); err != nil {
			return nil, err
		}
		results = append(results, normalized)
	}
	return results, nil
}

func updateTx(tx *sql.Tx, s *schema.Schema, t *schema.Table, where func(map[string]any) bool, patch map[string]any) (int, error) {
	existing, err := selectQ(tx, t, queryeval.Options{})
	if err != nil {
		return 0, err
	}
	ctx := &sqlContext{tx: tx, schema: s}
	count := 0
	for _, row := range existing {
		if where != nil && !where(row) {
			continue
		}
		updated, err := normalize.Update(ctx, t, row, patch)
		if err != nil {
			return count, err
		}
		if err := execUpdate(tx, t, updated); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func deleteTx(tx *sql.Tx, s *schema.Schema, t *schema.Table, where func(map[string]any) bool) (int, error) {
	existing, err := selectQ(tx, t, queryeval.Options{})
	if err != nil {
		return 0, err
	}
	pkName := t.PrimaryKey().Name

	var candidates []map[string]any
	for _, row := range existing {
		if where == nil || where(row) {
			candidates = append(candidates, row)
		}
	}

	deps := s.Dependents(t.Name)
	for _, row := range candidates {
		pk := row[pkName]
		for _, dep := range deps {
			depTable, _ := s.Table(dep.SourceTable)
			depRows, err := selectQ(tx, depTable, queryeval.Options{})
			if err != nil {
				return 0, err
			}
			for _, dr := range depRows {
				if dr[dep.SourceColumn] == pk {
					return 0, fmt.Errorf("%w: %s.%s referenced by %s.%s",
						mistfallerr.ErrRestrictDeletion, t.Name, pkName, dep.SourceTable, dep.SourceColumn)
				}
			}
		}
	}

	for _, row := range candidates {
		if err := execDelete(tx, t, row[pkName]); err != nil {
			return 0, err
		}
	}
	return len(candidates), nil
}
