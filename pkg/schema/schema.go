// Package schema is the passive data model the runtime consumes: tables,
// columns, constraints, reference metadata, and indexes, resolved once at
// construction and read-only thereafter.
package schema

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/mistfall/mistfall/pkg/mistfallerr"
)

// Options configures a Schema. Version defaults to 1, Namespace defaults
// to Name.
type Options struct {
	Name      string
	Version   int
	Namespace string
}

// Dependency names a (source_table, source_column) pair that references a
// given table via a foreign key — an entry in the reverse dependency map.
type Dependency struct {
	SourceTable  string
	SourceColumn string
}

// Schema is an ordered table set plus a derived signature, built once from
// a table map and immutable thereafter.
type Schema struct {
	Name      string
	Version   int
	Namespace string

	tableNames []string
	tables     map[string]*Table

	// reverseDeps maps a table name to every (source_table, source_column)
	// whose foreign key targets it — consulted on delete.
	reverseDeps map[string][]Dependency

	signature string
}

// Table returns the named table, or false if no such table was declared.
// Satisfies TableLookup for Reference resolvers.
func (s *Schema) Table(name string) (*Table, bool) {
	t, ok := s.tables[name]
	return t, ok
}

// Tables returns every table in declaration order.
func (s *Schema) Tables() []*Table {
	out := make([]*Table, 0, len(s.tableNames))
	for _, name := range s.tableNames {
		out = append(out, s.tables[name])
	}
	return out
}

// Dependents returns the reverse dependency set for a table: every
// (source_table, source_column) whose foreign key points at it.
func (s *Schema) Dependents(tableName string) []Dependency {
	return s.reverseDeps[tableName]
}

// Signature is the deterministic digest of the schema's shape, stored by
// the persistent backend's upgrade planner for diagnostic drift detection.
// It is never consulted to plan migrations — Version is.
func (s *Schema) Signature() string { return s.signature }

// New resolves a schema from a declaration order and a table map. Resolution
// runs in two passes: first a name→table lookup is built, then every
// column's deferred Reference is invoked and materialized into ForeignKey
// metadata. The reverse dependency map and schema signature are computed
// last, once every foreign key is known.
func New(opts Options, order []string, tables map[string]*Table) (*Schema, error) {
	if opts.Version == 0 {
		opts.Version = 1
	}
	if opts.Namespace == "" {
		opts.Namespace = opts.Name
	}

	s := &Schema{
		Name:        opts.Name,
		Version:     opts.Version,
		Namespace:   opts.Namespace,
		tableNames:  order,
		tables:      make(map[string]*Table, len(tables)),
		reverseDeps: make(map[string][]Dependency),
	}

	// Pass 1: name -> table lookup, duplicate-name and per-table shape checks.
	for _, name := range order {
		t, ok := tables[name]
		if !ok {
			return nil, fmt.Errorf("%w: declared table %q has no descriptor", mistfallerr.ErrSchema, name)
		}
		if _, dup := s.tables[name]; dup {
			return nil, fmt.Errorf("%w: %s", mistfallerr.ErrDuplicateTable, name)
		}
		if err := t.validate(); err != nil {
			return nil, err
		}
		t.schema = s
		s.tables[name] = t
	}

	// Pass 2: resolve every deferred reference into foreign key metadata.
	for _, name := range order {
		t := s.tables[name]
		for _, c := range t.Columns {
			if c.Reference == nil {
				continue
			}
			if c.Reference.OnDelete == Cascade {
				return nil, fmt.Errorf("%w: %s.%s", mistfallerr.ErrCascadeUnsupported, name, c.Name)
			}
			target, err := c.Reference.Resolver(s)
			if err != nil {
				return nil, fmt.Errorf("%w: %s.%s: %v", mistfallerr.ErrUnresolvedRef, name, c.Name, err)
			}
			if target == nil || target.table == nil {
				return nil, fmt.Errorf("%w: %s.%s resolved to no column", mistfallerr.ErrUnresolvedRef, name, c.Name)
			}
			if _, ok := s.tables[target.table.Name]; !ok {
				return nil, fmt.Errorf("%w: %s.%s references table %q outside this schema",
					mistfallerr.ErrUnresolvedRef, name, c.Name, target.table.Name)
			}
			c.ForeignKey = &ForeignKey{
				TargetTable:  target.table.Name,
				TargetColumn: target.Name,
				OnDelete:     c.Reference.OnDelete,
			}
			s.reverseDeps[target.table.Name] = append(s.reverseDeps[target.table.Name], Dependency{
				SourceTable:  name,
				SourceColumn: c.Name,
			})
		}
	}

	s.signature = computeSignature(s)
	return s, nil
}

// computeSignature encodes every table's columns and indexes into a
// deterministic string digest. Table order follows declaration order;
// within a table, columns follow their declared order and indexes are
// sorted by name, so the signature is stable across repeated calls with the
// same Schema value, sensitive to any shape change, and unaffected by the
// order indexes were declared in.
func computeSignature(s *Schema) string {
	var b strings.Builder
	b.WriteString(s.Name)
	b.WriteByte(':')
	b.WriteString(strconv.Itoa(s.Version))
	for _, name := range s.tableNames {
		t := s.tables[name]
		b.WriteByte('|')
		b.WriteString(t.Name)
		for _, c := range t.Columns {
			b.WriteByte(';')
			b.WriteString(c.Name)
			b.WriteByte(':')
			b.WriteString(c.Kind.String())
			b.WriteString(flagString(c))
			if c.ForeignKey != nil {
				b.WriteString(fmt.Sprintf("->%s.%s", c.ForeignKey.TargetTable, c.ForeignKey.TargetColumn))
			}
		}
		idxNames := make([]string, 0, len(t.Indexes))
		for _, idx := range t.Indexes {
			idxNames = append(idxNames, idx.Name)
		}
		sort.Strings(idxNames) // index declaration order doesn't affect shape
		for _, name := range idxNames {
			idx := t.indexByName(name)
			b.WriteByte(';')
			b.WriteByte('@')
			b.WriteString(idx.Name)
			if idx.Unique {
				b.WriteString("!u")
			}
			b.WriteByte('(')
			b.WriteString(strings.Join(idx.Columns, ","))
			b.WriteByte(')')
		}
	}
	return b.String()
}

func flagString(c *Column) string {
	var flags strings.Builder
	if c.NotNull {
		flags.WriteByte('n')
	}
	if c.PrimaryKey {
		flags.WriteByte('p')
	}
	if c.Unique {
		flags.WriteByte('u')
	}
	if c.Identity {
		flags.WriteByte('i')
	}
	if c.HasDefault {
		flags.WriteByte('d')
	}
	return flags.String()
}

func (t *Table) indexByName(name string) *Index {
	for _, idx := range t.Indexes {
		if idx.Name == name {
			return idx
		}
	}
	return nil
}
