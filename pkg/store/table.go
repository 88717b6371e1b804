// Package store holds the in-memory table and trigger state a Database
// owns: ordered typed columns, row storage, and the case-insensitive
// catalogs used to look tables and triggers up by name.
package store

import (
	"fmt"
	"strings"

	"quill/pkg/sql/parser"
	"quill/pkg/value"
)

// ErrStore is the sentinel wrapped by every store-level error.
var ErrStore = fmt.Errorf("store error")

func storeErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrStore}, args...)...)
}

// Table is one engine table: an ordered column list and its rows, stored
// row-major (one slice of values per row, in column order), so adding or
// dropping a column updates every row's slice.
type Table struct {
	Name     string
	columns  []value.Column
	colIdx   map[string]int // upper-cased column name -> index
	rows     [][]value.Value
	notNull  []bool
	defaults []parser.Expr
}

// NewTable creates an empty table with the given columns, in order.
func NewTable(name string, columns []value.Column) *Table {
	t := &Table{
		Name:     name,
		columns:  append([]value.Column(nil), columns...),
		colIdx:   make(map[string]int, len(columns)),
		notNull:  make([]bool, len(columns)),
		defaults: make([]parser.Expr, len(columns)),
	}
	for i, c := range columns {
		t.colIdx[strings.ToUpper(c.Name)] = i
	}
	return t
}

// SetNotNull records whether column idx carries a NOT NULL constraint.
func (t *Table) SetNotNull(idx int, notNull bool) { t.notNull[idx] = notNull }

// NotNull reports whether column idx is declared NOT NULL.
func (t *Table) NotNull(idx int) bool { return t.notNull[idx] }

// SetDefault records column idx's DEFAULT expression tokens.
func (t *Table) SetDefault(idx int, expr parser.Expr) { t.defaults[idx] = expr }

// Default returns column idx's DEFAULT expression tokens, or an empty
// Expr if none was declared.
func (t *Table) Default(idx int) parser.Expr { return t.defaults[idx] }

func (t *Table) Columns() []value.Column { return t.columns }

func (t *Table) ColumnIndex(name string) (int, bool) {
	i, ok := t.colIdx[strings.ToUpper(name)]
	return i, ok
}

func (t *Table) ColumnType(name string) (value.ColType, bool) {
	i, ok := t.ColumnIndex(name)
	if !ok {
		return value.ColAny, false
	}
	return t.columns[i].Type, true
}

// RowCount reports the number of live rows.
func (t *Table) RowCount() int { return len(t.rows) }

// Row returns a copy of the row at i, in column order.
func (t *Table) Row(i int) []value.Value {
	return append([]value.Value(nil), t.rows[i]...)
}

// Rows iterates every row, passing its index and column-ordered values.
// fn returning false stops iteration early.
func (t *Table) Rows(fn func(i int, row []value.Value) bool) {
	for i, r := range t.rows {
		if !fn(i, r) {
			return
		}
	}
}

// AddColumn appends a new column, backfilling every existing row with
// Null (ALTER TABLE ADD COLUMN never fails on existing data).
func (t *Table) AddColumn(col value.Column) error {
	if _, exists := t.colIdx[strings.ToUpper(col.Name)]; exists {
		return storeErrorf("column %q already exists on table %q", col.Name, t.Name)
	}
	t.colIdx[strings.ToUpper(col.Name)] = len(t.columns)
	t.columns = append(t.columns, col)
	t.notNull = append(t.notNull, false)
	t.defaults = append(t.defaults, nil)
	for i := range t.rows {
		t.rows[i] = append(t.rows[i], value.Null())
	}
	return nil
}

// DropColumn removes a column by name and the corresponding slot from
// every row.
func (t *Table) DropColumn(name string) error {
	idx, ok := t.ColumnIndex(name)
	if !ok {
		return storeErrorf("column %q does not exist on table %q", name, t.Name)
	}
	t.columns = append(t.columns[:idx], t.columns[idx+1:]...)
	t.notNull = append(t.notNull[:idx], t.notNull[idx+1:]...)
	t.defaults = append(t.defaults[:idx], t.defaults[idx+1:]...)
	delete(t.colIdx, strings.ToUpper(name))
	for k, i := range t.colIdx {
		if i > idx {
			t.colIdx[k] = i - 1
		}
	}
	for i := range t.rows {
		t.rows[i] = append(t.rows[i][:idx], t.rows[i][idx+1:]...)
	}
	return nil
}

// InsertRow appends row (already column-ordered and coerced) and returns
// its new row index.
func (t *Table) InsertRow(row []value.Value) int {
	t.rows = append(t.rows, row)
	return len(t.rows) - 1
}

// UpdateRow replaces the value at (rowIdx, colIdx).
func (t *Table) UpdateRow(rowIdx, colIdx int, v value.Value) {
	t.rows[rowIdx][colIdx] = v
}

// DeleteRows removes the rows at the given indices (must be sorted
// ascending) and reports how many were removed.
func (t *Table) DeleteRows(indices []int) int {
	if len(indices) == 0 {
		return 0
	}
	drop := make(map[int]bool, len(indices))
	for _, i := range indices {
		drop[i] = true
	}
	kept := t.rows[:0]
	for i, r := range t.rows {
		if !drop[i] {
			kept = append(kept, r)
		}
	}
	t.rows = kept
	return len(indices)
}

// CoerceRow coerces a column-ordered slice of raw values to the table's
// declared types, narrowing any still-ColAny column to the first
// non-null value's kind.
func (t *Table) CoerceRow(row []value.Value) ([]value.Value, error) {
	if len(row) != len(t.columns) {
		return nil, storeErrorf("table %q expects %d columns, got %d", t.Name, len(t.columns), len(row))
	}
	out := make([]value.Value, len(row))
	for i, v := range row {
		col := t.columns[i]
		if col.Type == value.ColAny && !v.IsNull() {
			t.columns[i].Type = inferColType(v)
			col = t.columns[i]
		}
		cv, err := col.Coerce(v)
		if err != nil {
			return nil, storeErrorf("column %q: %v", col.Name, err)
		}
		out[i] = cv
	}
	return out, nil
}

func inferColType(v value.Value) value.ColType {
	switch v.Kind() {
	case value.KindInt:
		return value.ColInt
	case value.KindFloat:
		return value.ColFloat
	case value.KindBool:
		return value.ColBool
	case value.KindTimestamp:
		return value.ColTimestamp
	case value.KindUuid:
		return value.ColUuid
	default:
		return value.ColText
	}
}

// Trigger is a stored CREATE TRIGGER definition, carrying both its
// parsed body (for execution) and its source text (for snapshots).
type Trigger struct {
	Name       string
	Table      string
	Timing     parser.TriggerTiming
	Event      parser.TriggerEvent
	Body       []parser.TriggerStmt
	SourceText string
}
