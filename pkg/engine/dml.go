package engine

import (
	"quill/pkg/eval"
	"quill/pkg/sql/parser"
	"quill/pkg/store"
	"quill/pkg/value"
)

// rowContext builds the eval.Row used to evaluate an expression against
// one stored row: every column bound both bare and table-qualified, with
// outer's bindings (a trigger's NEW./OLD. context, when this statement is
// running as embedded DML) merged in on top.
func rowContext(tbl *store.Table, row []value.Value, outer eval.Row) eval.Row {
	r := eval.NewRow()
	for i, c := range tbl.Columns() {
		r.Set(c.Name, row[i])
		r.Set(tbl.Name+"."+c.Name, row[i])
	}
	if outer != nil {
		r.Merge(outer)
	}
	return r
}

func (e *Engine) execInsert(s *parser.InsertStmt, outer eval.Row) (*Result, error) {
	tbl, ok := e.DB.Table(s.Table)
	if !ok {
		return nil, engineErrorf("table %q does not exist", s.Table)
	}

	targetIdx := make([]int, 0, len(tbl.Columns()))
	if len(s.Columns) == 0 {
		for i := range tbl.Columns() {
			targetIdx = append(targetIdx, i)
		}
	} else {
		for _, name := range s.Columns {
			idx, ok := tbl.ColumnIndex(name)
			if !ok {
				return nil, engineErrorf("column %q does not exist on table %q", name, s.Table)
			}
			targetIdx = append(targetIdx, idx)
		}
	}

	affected := 0
	for _, valueExprs := range s.Rows {
		if len(valueExprs) != len(targetIdx) {
			return nil, engineErrorf("insert has %d values for %d columns", len(valueExprs), len(targetIdx))
		}
		full := make([]value.Value, len(tbl.Columns()))
		for i := range full {
			full[i] = value.Null()
		}
		ctx := e.newCtx()
		if outer != nil {
			ctx.Row = outer
		}
		for i, expr := range valueExprs {
			v, err := eval.Eval(expr, ctx)
			if err != nil {
				return nil, err
			}
			full[targetIdx[i]] = v
		}
		// Apply DEFAULT to any column left at its zero value because it
		// wasn't named in the insert's column list.
		named := make(map[int]bool, len(targetIdx))
		for _, idx := range targetIdx {
			named[idx] = true
		}
		for i := range tbl.Columns() {
			if named[i] {
				continue
			}
			if def := tbl.Default(i); !def.Empty() {
				v, err := eval.Eval(def, ctx)
				if err != nil {
					return nil, err
				}
				full[i] = v
			}
		}

		coerced, err := tbl.CoerceRow(full)
		if err != nil {
			return nil, err
		}
		if err := checkNotNull(tbl, coerced); err != nil {
			return nil, err
		}

		newRow := coerced
		if err := e.fireRowTriggers(tbl, parser.TriggerBefore, parser.TriggerInsert, nil, &newRow); err != nil {
			return nil, err
		}
		rowIdx := tbl.InsertRow(newRow)
		if err := e.fireRowTriggers(tbl, parser.TriggerAfter, parser.TriggerInsert, nil, &newRow); err != nil {
			return nil, err
		}
		for i, v := range newRow {
			tbl.UpdateRow(rowIdx, i, v)
		}
		affected++
	}
	return &Result{RowsAffected: affected}, nil
}

func checkNotNull(tbl *store.Table, row []value.Value) error {
	for i, col := range tbl.Columns() {
		if tbl.NotNull(i) && row[i].IsNull() {
			return engineErrorf("column %q does not allow null values", col.Name)
		}
	}
	return nil
}

func (e *Engine) execUpdate(s *parser.UpdateStmt, outer eval.Row) (*Result, error) {
	tbl, ok := e.DB.Table(s.Table)
	if !ok {
		return nil, engineErrorf("table %q does not exist", s.Table)
	}

	var matched []int
	var matchErr error
	tbl.Rows(func(i int, row []value.Value) bool {
		ctx := e.newCtx()
		ctx.Row = rowContext(tbl, row, outer)
		hit, err := eval.EvalBool(s.Where, ctx)
		if err != nil {
			matchErr = err
			return false
		}
		if s.Where.Empty() || hit {
			matched = append(matched, i)
		}
		return true
	})
	if matchErr != nil {
		return nil, matchErr
	}

	affected := 0
	for _, idx := range matched {
		oldRow := tbl.Row(idx)
		newRow := append([]value.Value(nil), oldRow...)

		ctx := e.newCtx()
		ctx.Row = rowContext(tbl, oldRow, outer)
		for _, asg := range s.Set {
			colIdx, ok := tbl.ColumnIndex(asg.Column)
			if !ok {
				return nil, engineErrorf("column %q does not exist on table %q", asg.Column, s.Table)
			}
			v, err := eval.Eval(asg.Value, ctx)
			if err != nil {
				return nil, err
			}
			newRow[colIdx] = v
		}
		coerced, err := tbl.CoerceRow(newRow)
		if err != nil {
			return nil, err
		}
		if err := checkNotNull(tbl, coerced); err != nil {
			return nil, err
		}
		newRow = coerced

		if err := e.fireRowTriggers(tbl, parser.TriggerBefore, parser.TriggerUpdate, oldRow, &newRow); err != nil {
			return nil, err
		}
		for i, v := range newRow {
			tbl.UpdateRow(idx, i, v)
		}
		if err := e.fireRowTriggers(tbl, parser.TriggerAfter, parser.TriggerUpdate, oldRow, &newRow); err != nil {
			return nil, err
		}
		for i, v := range newRow {
			tbl.UpdateRow(idx, i, v)
		}
		affected++
	}
	return &Result{RowsAffected: affected}, nil
}

func (e *Engine) execDelete(s *parser.DeleteStmt, outer eval.Row) (*Result, error) {
	tbl, ok := e.DB.Table(s.Table)
	if !ok {
		return nil, engineErrorf("table %q does not exist", s.Table)
	}

	var matched []int
	var oldRows [][]value.Value
	var matchErr error
	tbl.Rows(func(i int, row []value.Value) bool {
		ctx := e.newCtx()
		ctx.Row = rowContext(tbl, row, outer)
		hit, err := eval.EvalBool(s.Where, ctx)
		if err != nil {
			matchErr = err
			return false
		}
		if s.Where.Empty() || hit {
			matched = append(matched, i)
			oldRows = append(oldRows, row)
		}
		return true
	})
	if matchErr != nil {
		return nil, matchErr
	}

	// Walk matched rows highest-index-first so that each single-row
	// DeleteRows call never disturbs the index of a row still waiting to be
	// processed, and fire each row's BEFORE/AFTER triggers around its own
	// removal rather than batching all of one kind before the other.
	n := 0
	for i := len(matched) - 1; i >= 0; i-- {
		idx, oldRow := matched[i], oldRows[i]
		if err := e.fireRowTriggers(tbl, parser.TriggerBefore, parser.TriggerDelete, oldRow, nil); err != nil {
			return nil, err
		}
		n += tbl.DeleteRows([]int{idx})
		if err := e.fireRowTriggers(tbl, parser.TriggerAfter, parser.TriggerDelete, oldRow, nil); err != nil {
			return nil, err
		}
	}
	return &Result{RowsAffected: n}, nil
}
