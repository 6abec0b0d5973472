// Package queryeval applies filter/orderBy/order/offset/limit to an
// already-materialized row slice. There is no push-down to a backing
// store — every selector runs in the caller's address space over rows the
// backend has already loaded.
package queryeval

import (
	"sort"

	"github.com/mistfall/mistfall/internal/clone"
)

// Selector extracts an orderable key from a row: either a function, or
// (via ColumnSelector) a plain column lookup.
type Selector func(row map[string]any) any

// ColumnSelector builds a Selector that reads a single column by name.
func ColumnSelector(column string) Selector {
	return func(row map[string]any) any { return row[column] }
}

// Options mirrors the client's {where, orderBy, order, limit, offset}
// surface. OrderBy is nil when the caller supplied neither a column name
// nor a function.
type Options struct {
	Where   func(row map[string]any) bool
	OrderBy Selector
	Desc    bool
	Offset  int
	Limit   int // 0 means "unset"; HasLimit distinguishes that from "0 rows"
	HasLimit bool
}

// Apply filters, stably sorts, paginates, and deep-clones rows per Options.
// The input slice is never mutated; the returned slice is always a fresh
// deep copy so later caller mutation cannot reach stored state.
func Apply(rows []map[string]any, opts Options) []map[string]any {
	filtered := make([]map[string]any, 0, len(rows))
	for _, r := range rows {
		if opts.Where == nil || opts.Where(r) {
			filtered = append(filtered, r)
		}
	}

	if opts.OrderBy != nil {
		sort.SliceStable(filtered, func(i, j int) bool {
			return less(opts.OrderBy(filtered[i]), opts.OrderBy(filtered[j]))
		})
		if opts.Desc {
			reverse(filtered)
		}
	}

	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}
	if offset > len(filtered) {
		offset = len(filtered)
	}
	filtered = filtered[offset:]

	limit := len(filtered)
	if opts.HasLimit && opts.Limit < limit {
		limit = opts.Limit
	}
	if limit < 0 {
		limit = 0
	}
	filtered = filtered[:limit]

	return clone.Rows(filtered)
}

func reverse(rows []map[string]any) {
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
}

// less implements the comparison rule from spec.md §4.3: equal keys are
// treated as not-less (preserving stable order), otherwise numeric and
// string scalars compare naturally.
func less(a, b any) bool {
	switch av := a.(type) {
	case int:
		bv, ok := toFloat(b)
		return ok && float64(av) < bv
	case int32:
		bv, ok := toFloat(b)
		return ok && float64(av) < bv
	case int64:
		bv, ok := toFloat(b)
		return ok && float64(av) < bv
	case float32:
		bv, ok := toFloat(b)
		return ok && float64(av) < bv
	case float64:
		bv, ok := toFloat(b)
		return ok && av < bv
	case string:
		bv, ok := b.(string)
		return ok && av < bv
	case bool:
		bv, ok := b.(bool)
		return ok && !av && bv
	default:
		return false
	}
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case float32:
		return float64(t), true
	case float64:
		return t, true
	default:
		return 0, false
	}
}
