package schema

// ComputedIndex derives its key from the row itself rather than from a
// fixed column list. Expression is applied during normalization, which
// materializes the result onto Row[Field] so the backing store can index it.
type ComputedIndex struct {
	Field      string
	Expression func(row map[string]any) any
}

// Index describes either a plain column-list index or a computed index.
// Exactly one of Columns or Computed should be set.
type Index struct {
	Name     string
	Unique   bool
	Columns  []string
	Computed *ComputedIndex
}

// IsComputed reports whether this index derives its key from an expression
// rather than from stored columns.
func (i *Index) IsComputed() bool { return i.Computed != nil }

// KeyColumn returns the column name the backing store should index: the
// computed field for a computed index, otherwise the first source column.
func (i *Index) KeyColumn() string {
	if i.Computed != nil {
		return i.Computed.Field
	}
	if len(i.Columns) == 0 {
		return ""
	}
	return i.Columns[0]
}

// NewIndex constructs a plain column-list index.
func NewIndex(name string, unique bool, columns ...string) *Index {
	return &Index{Name: name, Unique: unique, Columns: columns}
}

// NewComputedIndex constructs an index whose key is derived from the row.
func NewComputedIndex(name string, unique bool, field string, expression func(row map[string]any) any) *Index {
	return &Index{
		Name:     name,
		Unique:   unique,
		Computed: &ComputedIndex{Field: field, Expression: expression},
	}
}
