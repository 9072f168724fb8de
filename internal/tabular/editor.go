package tabular

import "sync"

// Editor holds the editable copy of a table's rows for one session.
//
// Headers are fixed when the editor is created. Edits replace the targeted
// row with a modified copy and leave every other row untouched, so callers
// can detect changes by identity. Editor is safe for concurrent use.
type Editor struct {
	mu      sync.RWMutex
	headers []string
	rows    []Row
}

// NewEditor copies t's rows into a new editor. A nil table gives an empty
// editor with no headers.
func NewEditor(t *Table) *Editor {
	e := &Editor{headers: []string{}, rows: []Row{}}
	if t == nil {
		return e
	}
	e.headers = t.Headers
	e.rows = make([]Row, len(t.Rows))
	for i, r := range t.Rows {
		e.rows[i] = r.Clone()
	}
	return e
}

// Headers returns the editor's headers. The slice must not be modified.
func (e *Editor) Headers() []string {
	return e.headers
}

// Rows returns the current row sequence.
func (e *Editor) Rows() []Row {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.rows
}

// Table returns a deep copy of the current state.
func (e *Editor) Table() *Table {
	e.mu.RLock()
	defer e.mu.RUnlock()
	t := &Table{Headers: e.headers, Rows: e.rows}
	return t.Clone()
}

// SetCell sets one cell and returns the new row sequence.
//
// An out of range rowIndex or a header outside the table's headers leaves
// the rows unchanged.
func (e *Editor) SetCell(rowIndex int, header, value string) []Row {
	e.mu.Lock()
	defer e.mu.Unlock()

	if rowIndex < 0 || rowIndex >= len(e.rows) || !e.hasHeader(header) {
		return e.rows
	}

	next := make([]Row, len(e.rows))
	copy(next, e.rows)
	row := e.rows[rowIndex].Clone()
	row[header] = value
	next[rowIndex] = row

	e.rows = next
	return next
}

func (e *Editor) hasHeader(header string) bool {
	for _, h := range e.headers {
		if h == header {
			return true
		}
	}
	return false
}
