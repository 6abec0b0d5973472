// Package schemafile loads a schema document — table, column, index, and
// foreign-key declarations by name — from JSON or YAML and builds a
// *schema.Schema from it. It is a flat declarative format, not a fluent
// builder: every table and column in the document still goes through
// schema.NewTable and schema.NewColumn exactly as hand-written Go would.
package schemafile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mistfall/mistfall/pkg/mistfallerr"
	"github.com/mistfall/mistfall/pkg/schema"
)

// Document is the on-disk shape of a schema: a name, an optional version
// and namespace, and an ordered table list.
type Document struct {
	Name      string     `json:"name" yaml:"name"`
	Version   int        `json:"version" yaml:"version"`
	Namespace string     `json:"namespace" yaml:"namespace"`
	Tables    []TableDoc `json:"tables" yaml:"tables"`
}

// TableDoc declares one table's columns and indexes.
type TableDoc struct {
	Name    string      `json:"name" yaml:"name"`
	Columns []ColumnDoc `json:"columns" yaml:"columns"`
	Indexes []IndexDoc  `json:"indexes" yaml:"indexes"`
}

// ColumnDoc declares one column. Reference, when non-nil, is resolved
// against another table in the same document — cascade is rejected the
// same way a hand-built schema rejects it, at resolution time.
type ColumnDoc struct {
	Name       string        `json:"name" yaml:"name"`
	Kind       string        `json:"kind" yaml:"kind"`
	NotNull    bool          `json:"notNull" yaml:"notNull"`
	PrimaryKey bool          `json:"primaryKey" yaml:"primaryKey"`
	Unique     bool          `json:"unique" yaml:"unique"`
	Identity   bool          `json:"identity" yaml:"identity"`
	Size       int           `json:"size" yaml:"size"`
	EnumValues []string      `json:"enumValues" yaml:"enumValues"`
	Default    any           `json:"default" yaml:"default"`
	HasDefault bool          `json:"hasDefault" yaml:"hasDefault"`
	Reference  *ReferenceDoc `json:"reference" yaml:"reference"`
}

// ReferenceDoc names the target table and column a foreign key points at.
type ReferenceDoc struct {
	Table    string `json:"table" yaml:"table"`
	Column   string `json:"column" yaml:"column"`
	OnDelete string `json:"onDelete" yaml:"onDelete"`
}

// IndexDoc declares a plain column-list index. Computed indexes have no
// document representation since their expression is Go code, not data —
// they're built with schema.NewComputedIndex directly in source.
type IndexDoc struct {
	Name    string   `json:"name" yaml:"name"`
	Unique  bool     `json:"unique" yaml:"unique"`
	Columns []string `json:"columns" yaml:"columns"`
}

var kindByName = map[string]schema.ColumnKind{
	"integer":          schema.KindInteger,
	"biginteger":       schema.KindBigInteger,
	"float":            schema.KindFloat,
	"decimal":          schema.KindDecimal,
	"boolean":          schema.KindBoolean,
	"string":           schema.KindStringUnbounded,
	"stringunbounded":  schema.KindStringUnbounded,
	"stringbounded":    schema.KindStringBounded,
	"timestamp":        schema.KindTimestamp,
	"json":             schema.KindJSON,
	"enum":             schema.KindEnum,
}

// Load reads a schema document from path, choosing a JSON or YAML decoder
// by file extension, and builds it into a *schema.Schema.
func Load(path string) (*schema.Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading schema document %s: %v", mistfallerr.ErrSchema, path, err)
	}

	var doc Document
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%w: parsing YAML schema document %s: %v", mistfallerr.ErrSchema, path, err)
		}
	case ".json":
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%w: parsing JSON schema document %s: %v", mistfallerr.ErrSchema, path, err)
		}
	default:
		return nil, fmt.Errorf("%w: unrecognized schema document extension %q", mistfallerr.ErrSchema, ext)
	}

	return Build(doc)
}

// Build constructs a *schema.Schema from an already-decoded Document.
func Build(doc Document) (*schema.Schema, error) {
	order := make([]string, 0, len(doc.Tables))
	tables := make(map[string]*schema.Table, len(doc.Tables))

	for _, td := range doc.Tables {
		cols := make([]*schema.Column, 0, len(td.Columns))
		for _, cd := range td.Columns {
			col, err := buildColumn(cd)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", td.Name, cd.Name, err)
			}
			cols = append(cols, col)
		}

		idxs := make([]*schema.Index, 0, len(td.Indexes))
		for _, id := range td.Indexes {
			idxs = append(idxs, schema.NewIndex(id.Name, id.Unique, id.Columns...))
		}

		order = append(order, td.Name)
		tables[td.Name] = schema.NewTable(td.Name, cols, idxs...)
	}

	return schema.New(schema.Options{
		Name:      doc.Name,
		Version:   doc.Version,
		Namespace: doc.Namespace,
	}, order, tables)
}

func buildColumn(cd ColumnDoc) (*schema.Column, error) {
	kind, ok := kindByName[strings.ToLower(cd.Kind)]
	if !ok {
		return nil, fmt.Errorf("%w: unknown column kind %q", mistfallerr.ErrSchema, cd.Kind)
	}

	col := schema.NewColumn(cd.Name, kind)
	if cd.NotNull {
		col = col.WithNotNull()
	}
	if cd.PrimaryKey {
		col = col.WithPrimaryKey()
	}
	if cd.Unique {
		col = col.WithUnique()
	}
	if cd.Identity {
		col = col.WithIdentity()
	}
	if cd.Size > 0 {
		col = col.WithSize(cd.Size)
	}
	if len(cd.EnumValues) > 0 {
		col = col.WithEnumValues(cd.EnumValues...)
	}
	if cd.HasDefault {
		col = col.WithDefault(cd.Default)
	}
	if cd.Reference != nil {
		onDelete := schema.Restrict
		if strings.EqualFold(cd.Reference.OnDelete, "cascade") {
			onDelete = schema.Cascade
		}
		targetTable, targetColumn := cd.Reference.Table, cd.Reference.Column
		col = col.References(func(tables schema.TableLookup) (*schema.Column, error) {
			t, ok := tables.Table(targetTable)
			if !ok {
				return nil, fmt.Errorf("%w: %s", mistfallerr.ErrUnresolvedRef, targetTable)
			}
			target := t.Column(targetColumn)
			if target == nil {
				return nil, fmt.Errorf("%w: %s.%s", mistfallerr.ErrUnresolvedRef, targetTable, targetColumn)
			}
			return target, nil
		}, onDelete)
	}
	return col, nil
}
