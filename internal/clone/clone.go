// Package clone deep-copies row values at every client-facing boundary, so
// mutating a row returned from select or insert can never affect stored
// state. Columns of kind JSON may hold arbitrarily nested maps, slices, and
// scalars; Value recurses through all of them without corrupting structure.
package clone

import "time"

// Row deep-copies a row map, recursing into any nested structured value.
func Row(row map[string]any) map[string]any {
	if row == nil {
		return nil
	}
	out := make(map[string]any, len(row))
	for k, v := range row {
		out[k] = Value(v)
	}
	return out
}

// Rows deep-copies a slice of rows.
func Rows(rows []map[string]any) []map[string]any {
	if rows == nil {
		return nil
	}
	out := make([]map[string]any, len(rows))
	for i, r := range rows {
		out[i] = Row(r)
	}
	return out
}

// Value deep-copies a single value, recursing into maps and slices. Scalars
// (including time.Time, which is copied by value already) are returned
// as-is.
func Value(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = Value(vv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = Value(vv)
		}
		return out
	case time.Time:
		return t
	default:
		return v
	}
}
