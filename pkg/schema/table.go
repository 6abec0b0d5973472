package schema

import (
	"fmt"

	"github.com/mistfall/mistfall/pkg/mistfallerr"
)

// Table is an ordered column set plus an ordered index set, immutable once
// attached to a Schema via New.
type Table struct {
	Name    string
	Columns []*Column
	Indexes []*Index

	schema      *Schema
	columnByName map[string]*Column
	primaryKey   *Column
}

// NewTable constructs a table descriptor from an ordered column list and an
// ordered index list. Column order is preserved for normalization (defaults
// and onUpdate hooks run in declaration order).
func NewTable(name string, columns []*Column, indexes ...*Index) *Table {
	t := &Table{
		Name:         name,
		Columns:      columns,
		Indexes:      indexes,
		columnByName: make(map[string]*Column, len(columns)),
	}
	for _, c := range columns {
		c.table = t
		t.columnByName[c.Name] = c
		if c.PrimaryKey {
			t.primaryKey = c
		}
	}
	return t
}

// Column returns the named column, or nil if the table has no such column.
func (t *Table) Column(name string) *Column {
	return t.columnByName[name]
}

// PrimaryKey returns the table's single primary-key column. New
// guarantees exactly one exists before a schema is usable.
func (t *Table) PrimaryKey() *Column {
	return t.primaryKey
}

// StorageName is the externally visible name of this table's backing
// store: "<namespace>__<table_name>".
func (t *Table) StorageName() string {
	ns := t.Name
	if t.schema != nil {
		ns = t.schema.Namespace
	}
	return fmt.Sprintf("%s__%s", ns, t.Name)
}

// Schema returns the schema this table belongs to. Populated by New.
func (t *Table) Schema() *Schema { return t.schema }

func (t *Table) validate() error {
	var pkCount int
	seenCols := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		if seenCols[c.Name] {
			return fmt.Errorf("%w: %s.%s", mistfallerr.ErrDuplicateColumn, t.Name, c.Name)
		}
		seenCols[c.Name] = true
		if c.PrimaryKey {
			pkCount++
		}
	}
	if pkCount == 0 {
		return fmt.Errorf("%w: %s", mistfallerr.ErrMissingPrimaryKey, t.Name)
	}
	if pkCount > 1 {
		return fmt.Errorf("%w: %s", mistfallerr.ErrMultiplePrimaryKey, t.Name)
	}

	seenIdx := make(map[string]bool, len(t.Indexes))
	for _, idx := range t.Indexes {
		if seenIdx[idx.Name] {
			return fmt.Errorf("%w: %s.%s", mistfallerr.ErrDuplicateIndex, t.Name, idx.Name)
		}
		seenIdx[idx.Name] = true
	}
	return nil
}
