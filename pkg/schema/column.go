package schema

import "time"

// ColumnKind is the semantic type of a column's value, independent of how
// any particular backend stores it.
type ColumnKind int

const (
	KindInteger ColumnKind = iota
	KindBigInteger
	KindFloat
	KindDecimal
	KindStringBounded
	KindStringUnbounded
	KindBoolean
	KindTimestamp
	KindJSON
	KindEnum
)

// String returns the kind's name, used in schema signatures and error text.
func (k ColumnKind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindBigInteger:
		return "big_integer"
	case KindFloat:
		return "float"
	case KindDecimal:
		return "decimal"
	case KindStringBounded:
		return "string_bounded"
	case KindStringUnbounded:
		return "string_unbounded"
	case KindBoolean:
		return "boolean"
	case KindTimestamp:
		return "timestamp"
	case KindJSON:
		return "json"
	case KindEnum:
		return "enum"
	default:
		return "unknown"
	}
}

// OnDelete describes the behavior applied to dependent rows when the
// referenced row is deleted.
type OnDelete int

const (
	// Restrict rejects the delete while a dependent row exists. The only
	// mode implemented by the delete routine.
	Restrict OnDelete = iota
	// Cascade is recognized in schema metadata but rejected at resolution
	// time — see ErrCascadeUnsupported.
	Cascade
)

// Reference is a deferred pointer to a column on another table, resolved
// once every table in a schema has been declared. Resolver is invoked with
// a lookup of already-declared tables and must return the target column.
type Reference struct {
	Resolver func(tables TableLookup) (*Column, error)
	OnDelete OnDelete
}

// TableLookup resolves a table by its declared name, used by Reference
// resolvers and column defaults that need to see sibling tables.
type TableLookup interface {
	Table(name string) (*Table, bool)
}

// ForeignKey is the materialized result of resolving a Reference.
type ForeignKey struct {
	TargetTable  string
	TargetColumn string
	OnDelete     OnDelete
}

// Column describes a single field of a table: its semantic kind, constraint
// flags, optional defaults, and optional foreign key.
type Column struct {
	Name       string
	Kind       ColumnKind
	Size       int      // max length for KindStringBounded; ignored otherwise
	EnumValues []string // permitted values for KindEnum

	NotNull    bool
	PrimaryKey bool
	Unique     bool
	Identity   bool

	HasDefault     bool
	Default        any
	DefaultFn      func() any
	OnUpdateFn     func(previous any) any

	Reference  *Reference
	ForeignKey *ForeignKey // filled in by schema.New; nil until then

	table *Table
}

// Table returns the table this column was declared on. Populated once the
// column has been attached via NewTable.
func (c *Column) Table() *Table { return c.table }

// NewColumn constructs a column descriptor. Constraint flags and defaults
// are set via the With* helpers below rather than a fluent chain — callers
// assemble a *Column value and pass it to NewTable.
func NewColumn(name string, kind ColumnKind) *Column {
	return &Column{Name: name, Kind: kind}
}

// WithNotNull marks the column as not-null and returns it for assignment
// convenience (still a plain mutator, not a chained builder DSL).
func (c *Column) WithNotNull() *Column {
	c.NotNull = true
	return c
}

// WithPrimaryKey marks the column as the table's primary key.
func (c *Column) WithPrimaryKey() *Column {
	c.PrimaryKey = true
	c.NotNull = true
	return c
}

// WithUnique marks the column as unique.
func (c *Column) WithUnique() *Column {
	c.Unique = true
	return c
}

// WithIdentity marks an integer column as an allocated identity. Implies
// PrimaryKey is not required but is the overwhelmingly common pairing.
func (c *Column) WithIdentity() *Column {
	c.Identity = true
	return c
}

// WithDefault sets a literal default value, deep-copied on each insert that
// resolves to it.
func (c *Column) WithDefault(value any) *Column {
	c.HasDefault = true
	c.Default = value
	return c
}

// WithDefaultFn sets a zero-argument default producer, called on insert
// when the caller omits the column.
func (c *Column) WithDefaultFn(fn func() any) *Column {
	c.HasDefault = true
	c.DefaultFn = fn
	return c
}

// WithOnUpdate sets a one-argument producer invoked on update when the
// patch does not explicitly mention this column.
func (c *Column) WithOnUpdate(fn func(previous any) any) *Column {
	c.OnUpdateFn = fn
	return c
}

// WithEnumValues restricts the column to a fixed value set. Callers are
// expected to pair this with KindEnum.
func (c *Column) WithEnumValues(values ...string) *Column {
	c.EnumValues = values
	return c
}

// WithSize sets the maximum length for a bounded string column.
func (c *Column) WithSize(n int) *Column {
	c.Size = n
	return c
}

// References attaches a deferred reference, resolved during schema
// construction. onDelete defaults to Restrict when not supplied.
func (c *Column) References(resolver func(tables TableLookup) (*Column, error), onDelete ...OnDelete) *Column {
	mode := Restrict
	if len(onDelete) > 0 {
		mode = onDelete[0]
	}
	c.Reference = &Reference{Resolver: resolver, OnDelete: mode}
	return c
}

// zeroTime is the zero time.Time value. No code in this package reads it.
var zeroTime = time.Time{}
