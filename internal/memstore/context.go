package memstore

import (
	"fmt"

	"github.com/mistfall/mistfall/pkg/mistfallerr"
	"github.com/mistfall/mistfall/pkg/schema"
)

// memContext implements normalize.Context against the backend's own maps.
// Its methods assume the backend's mutex is already held by the caller
// (Insert/Update always take the write lock before constructing one).
type memContext struct {
	b *Backend
}

func (c *memContext) AllocateIdentity(t *schema.Table) (int64, error) {
	name := t.StorageName()
	c.b.sequences[name]++
	return c.b.sequences[name], nil
}

func (c *memContext) EnsureForeignKey(sourceTable, sourceColumn, targetTable, targetColumn string, value any) error {
	if value == nil {
		return nil
	}
	targetT, ok := c.b.schema.Table(targetTable)
	if !ok {
		return fmt.Errorf("%w: %s", mistfallerr.ErrTableNotFound, targetTable)
	}
	st := c.b.storeFor(targetT)
	if _, exists := st.rows[value]; !exists {
		return fmt.Errorf("%w: %s.%s -> %s.%s = %v",
			mistfallerr.ErrForeignKeyViolation, sourceTable, sourceColumn, targetTable, targetColumn, value)
	}
	return nil
}
