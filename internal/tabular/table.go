// Package tabular turns loosely shaped model output into rectangular tables.
//
// The package is pure: every function is deterministic, never blocks, and
// may be called concurrently. The entry points are:
//
//   - Normalize: any JSON or text value to a *Table (or nil)
//   - Merge / MergeFrames: several per-frame results into one table
//   - Redact: strip confidence keys from a payload for display
//   - Editor: single-cell edits over a private copy of a table's rows
//   - ToCSVText / ToWorkbookRows / WriteWorkbook: export encoders
//
// The field name "confidence" is reserved. It is compared case-insensitively
// and never becomes a table header.
package tabular

import "strings"

// ReservedField is excluded from every generated header set.
const ReservedField = "confidence"

// IsReserved reports whether name is the reserved field in any letter case.
func IsReserved(name string) bool {
	return strings.EqualFold(name, ReservedField)
}

// Row maps header names to cell text. A missing header reads as "".
type Row map[string]string

// Get returns the cell for header, or "" when absent.
func (r Row) Get(header string) string {
	return r[header]
}

// Clone returns an independent copy of r.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Table is an ordered header set plus rows keyed by those headers.
type Table struct {
	Headers []string `json:"headers" yaml:"headers"`
	Rows    []Row    `json:"rows" yaml:"rows"`
}

// Len returns the number of rows; a nil table has none.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Clone deep-copies the table.
func (t *Table) Clone() *Table {
	if t == nil {
		return nil
	}
	out := &Table{
		Headers: append([]string(nil), t.Headers...),
		Rows:    make([]Row, len(t.Rows)),
	}
	for i, r := range t.Rows {
		out.Rows[i] = r.Clone()
	}
	return out
}

// RowObject renders a row as an ordered object following headers.
// Cells for headers the row lacks are omitted.
func RowObject(headers []string, r Row) *Object {
	obj := NewObject()
	for _, h := range headers {
		if v, ok := r[h]; ok {
			obj.Set(h, v)
		}
	}
	return obj
}

// headerSet accumulates unique, non-reserved headers in first-seen order.
type headerSet struct {
	order []string
	seen  map[string]struct{}
}

func newHeaderSet() *headerSet {
	return &headerSet{order: []string{}, seen: make(map[string]struct{})}
}

func (h *headerSet) add(name string) bool {
	if IsReserved(name) {
		return false
	}
	if _, ok := h.seen[name]; ok {
		return true
	}
	h.seen[name] = struct{}{}
	h.order = append(h.order, name)
	return true
}
