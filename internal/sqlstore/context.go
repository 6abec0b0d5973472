package sqlstore

import (
	"database/sql"
	"fmt"

	"github.com/mistfall/mistfall/pkg/mistfallerr"
	"github.com/mistfall/mistfall/pkg/schema"
)

// sqlContext implements normalize.Context against a single *sql.Tx, so
// identity allocation and the insert/update it accompanies commit or abort
// together.
type sqlContext struct {
	tx     *sql.Tx
	schema *schema.Schema
}

func (c *sqlContext) AllocateIdentity(t *schema.Table) (int64, error) {
	name := t.StorageName()
	var current int64
	row := c.tx.QueryRow(`SELECT value FROM "__seq" WHERE table_name = ?`, name)
	if err := row.Scan(&current); err != nil && err != sql.ErrNoRows {
		return 0, fmt.Errorf("%w: reading sequence for %s: %v", mistfallerr.ErrBackend, name, err)
	}
	next := current + 1
	_, err := c.tx.Exec(`INSERT INTO "__seq" (table_name, value) VALUES (?, ?)
		ON CONFLICT(table_name) DO UPDATE SET value = excluded.value`, name, next)
	if err != nil {
		return 0, fmt.Errorf("%w: writing sequence for %s: %v", mistfallerr.ErrBackend, name, err)
	}
	return next, nil
}

func (c *sqlContext) EnsureForeignKey(sourceTable, sourceColumn, targetTable, targetColumn string, value any) error {
	if value == nil {
		return nil
	}
	targetT, ok := c.schema.Table(targetTable)
	if !ok {
		return fmt.Errorf("%w: %s", mistfallerr.ErrTableNotFound, targetTable)
	}
	encoded, err := encodeValue(targetT.Column(targetColumn), value)
	if err != nil {
		return err
	}
	stmt := fmt.Sprintf(`SELECT 1 FROM %q WHERE %q = ?`, targetT.StorageName(), targetColumn)
	var exists int
	row := c.tx.QueryRow(stmt, encoded)
	if err := row.Scan(&exists); err != nil {
		if err == sql.ErrNoRows {
			return fmt.Errorf("%w: %s.%s -> %s.%s = %v",
				mistfallerr.ErrForeignKeyViolation, sourceTable, sourceColumn, targetTable, targetColumn, value)
		}
		return fmt.Errorf("%w: checking foreign key %s.%s: %v", mistfallerr.ErrBackend, sourceTable, sourceColumn, err)
	}
	return nil
}
