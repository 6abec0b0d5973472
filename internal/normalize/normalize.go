// Package normalize is the adapter-agnostic pipeline every write funnels
// through: defaults, identity allocation, not-null enforcement, onUpdate
// hooks, foreign-key existence checks, and computed-index materialization.
// It never touches a backend directly — it is handed a Context that
// abstracts identity allocation and foreign-key lookup per backend.
package normalize

import (
	"fmt"

	"github.com/mistfall/mistfall/internal/clone"
	"github.com/mistfall/mistfall/pkg/mistfallerr"
	"github.com/mistfall/mistfall/pkg/schema"
)

// Context supplies the backend-specific operations the pipeline needs
// without otherwise knowing which backend it is running against.
type Context interface {
	// AllocateIdentity returns the next identity value for the table.
	AllocateIdentity(table *schema.Table) (int64, error)
	// EnsureForeignKey confirms that a row with primary key `value` exists
	// in targetTable, or returns a foreign-key violation. A nil value is a
	// no-op: the check only fires when the referencing column is set.
	EnsureForeignKey(sourceTable, sourceColumn, targetTable, targetColumn string, value any) error
}

// Insert normalizes a candidate row for insertion into table t: it applies
// defaults and identity allocation column by column in declaration order,
// checks not-null constraints, confirms every foreign key, and materializes
// computed indexes onto the result.
func Insert(ctx Context, t *schema.Table, row map[string]any) (map[string]any, error) {
	out := clone.Row(row)
	if out == nil {
		out = map[string]any{}
	}

	for _, c := range t.Columns {
		_, present := out[c.Name]
		if !present {
			switch {
			case c.Identity:
				id, err := ctx.AllocateIdentity(t)
				if err != nil {
					return nil, err
				}
				out[c.Name] = id
			case c.DefaultFn != nil:
				out[c.Name] = c.DefaultFn()
			case c.HasDefault:
				out[c.Name] = clone.Value(c.Default)
			}
		}

		if err := canonicalizeColumn(c, out); err != nil {
			return nil, err
		}

		val, present := out[c.Name]
		if c.NotNull && (!present || val == nil) {
			return nil, fmt.Errorf("%w: %s.%s", mistfallerr.ErrNotNullViolation, t.Name, c.Name)
		}
	}

	if err := checkForeignKeys(ctx, t, out); err != nil {
		return nil, err
	}
	applyComputedIndexes(t, out)
	return out, nil
}

// Update normalizes a patch against an existing row: it shallow-merges the
// patch onto the existing row, runs onUpdate hooks for columns the patch
// did not explicitly mention, re-checks not-null and foreign-key
// constraints, and re-applies computed indexes.
//
// "Explicitly mentioned" is detected by key presence in patch, not by
// value — a patch that sets a column to nil still counts as explicit and
// suppresses that column's onUpdate hook.
func Update(ctx Context, t *schema.Table, existing, patch map[string]any) (map[string]any, error) {
	out := clone.Row(existing)
	for k, v := range patch {
		out[k] = clone.Value(v)
	}

	for _, c := range t.Columns {
		if _, explicit := patch[c.Name]; !explicit && c.OnUpdateFn != nil {
			out[c.Name] = c.OnUpdateFn(existing[c.Name])
		}

		if err := canonicalizeColumn(c, out); err != nil {
			return nil, err
		}

		val, present := out[c.Name]
		if c.NotNull && (!present || val == nil) {
			return nil, fmt.Errorf("%w: %s.%s", mistfallerr.ErrNotNullViolation, t.Name, c.Name)
		}
	}

	if err := checkForeignKeys(ctx, t, out); err != nil {
		return nil, err
	}
	applyComputedIndexes(t, out)
	return out, nil
}

// canonicalizeColumn rewrites row[c.Name] in place into the one Go type each
// column kind is keyed and compared by, so a primary key allocated as
// int64 and a caller-supplied literal of a different numeric type (int from
// a Go literal, float64 from a JSON-decoded value) land on the same value
// for map-key and equality purposes. internal/sqlstore gets this for free
// from its driver's column typing (codec.go's encodeValue); the memory
// backend has no such boundary, so the pipeline does it here instead, once,
// for both backends.
func canonicalizeColumn(c *schema.Column, row map[string]any) error {
	val, present := row[c.Name]
	if !present || val == nil {
		return nil
	}
	switch c.Kind {
	case schema.KindInteger, schema.KindBigInteger:
		n, err := toInt64(val)
		if err != nil {
			return fmt.Errorf("%w: %s.%s expected integer, got %T", mistfallerr.ErrBackend, c.Table().Name, c.Name, val)
		}
		row[c.Name] = n
	case schema.KindFloat:
		f, err := toFloat64(val)
		if err != nil {
			return fmt.Errorf("%w: %s.%s expected float, got %T", mistfallerr.ErrBackend, c.Table().Name, c.Name, val)
		}
		row[c.Name] = f
	}
	return nil
}

func toInt64(v any) (int64, error) {
	switch t := v.(type) {
	case int64:
		return t, nil
	case int:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case float64:
		return int64(t), nil
	case float32:
		return int64(t), nil
	default:
		return 0, fmt.Errorf("not an integer: %T", v)
	}
}

func toFloat64(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int32:
		return float64(t), nil
	default:
		return 0, fmt.Errorf("not a number: %T", v)
	}
}

func checkForeignKeys(ctx Context, t *schema.Table, row map[string]any) error {
	for _, c := range t.Columns {
		if c.ForeignKey == nil {
			continue
		}
		if err := ctx.EnsureForeignKey(t.Name, c.Name, c.ForeignKey.TargetTable, c.ForeignKey.TargetColumn, row[c.Name]); err != nil {
			return err
		}
	}
	return nil
}

func applyComputedIndexes(t *schema.Table, row map[string]any) {
	for _, idx := range t.Indexes {
		if idx.Computed == nil {
			continue
		}
		row[idx.Computed.Field] = idx.Computed.Expression(row)
	}
}
