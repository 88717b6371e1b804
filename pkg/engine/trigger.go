// pkg/engine/trigger.go
//
// The trigger runtime interprets the statement list captured by
// CREATE TRIGGER's parser at fire time: SET NEW./OLD. assignment,
// IF/ELSEIF/ELSE branching, and embedded DML. Triggers fire in
// registration order, BEFORE before AFTER
package engine

import (
	"quill/pkg/eval"
	"quill/pkg/sql/parser"
	"quill/pkg/store"
	"quill/pkg/value"
)

// triggerRow binds NEW.col / OLD.col / bare col for one trigger firing.
// A bare column name resolves to NEW when a new row is present
// (INSERT/UPDATE), falling back to OLD for DELETE.
func triggerRow(tbl *store.Table, oldRow, newRow []value.Value) eval.Row {
	r := eval.NewRow()
	for i, c := range tbl.Columns() {
		if oldRow != nil {
			r.Set("OLD."+c.Name, oldRow[i])
		}
		if newRow != nil {
			r.Set("NEW."+c.Name, newRow[i])
		}
		switch {
		case newRow != nil:
			r.Set(c.Name, newRow[i])
		case oldRow != nil:
			r.Set(c.Name, oldRow[i])
		}
	}
	return r
}

// fireRowTriggers runs every trigger registered for (tbl, timing, event)
// in registration order. newRow, when non-nil, may be mutated in place
// by SET NEW.col statements so the caller sees the final values.
func (e *Engine) fireRowTriggers(tbl *store.Table, timing parser.TriggerTiming, event parser.TriggerEvent, oldRow []value.Value, newRow *[]value.Value) error {
	triggers := e.DB.TriggersFor(tbl.Name, timing, event)
	if len(triggers) == 0 {
		return nil
	}
	var nr []value.Value
	if newRow != nil {
		nr = *newRow
	}
	for _, trg := range triggers {
		ctx := e.newCtx()
		ctx.Row = triggerRow(tbl, oldRow, nr)
		if err := e.runTriggerBody(trg.Body, tbl, ctx, &nr); err != nil {
			return err
		}
	}
	if newRow != nil {
		*newRow = nr
	}
	return nil
}

func (e *Engine) runTriggerBody(stmts []parser.TriggerStmt, tbl *store.Table, ctx *eval.EvalContext, newRow *[]value.Value) error {
	for _, st := range stmts {
		switch st.Kind {
		case parser.TriggerStmtSetNewOld:
			if err := e.runTriggerSet(st, tbl, ctx, newRow); err != nil {
				return err
			}

		case parser.TriggerStmtIf:
			matched := false
			for _, br := range st.Branches {
				hit, err := eval.EvalBool(br.Cond, ctx)
				if err != nil {
					return err
				}
				if hit {
					if err := e.runTriggerBody(br.Body, tbl, ctx, newRow); err != nil {
						return err
					}
					matched = true
					break
				}
			}
			if !matched && len(st.Else) > 0 {
				if err := e.runTriggerBody(st.Else, tbl, ctx, newRow); err != nil {
					return err
				}
			}

		case parser.TriggerStmtDml:
			// Embedded DML failures never abort the trigger or the
			// statement that fired it.
			_ = e.runEmbeddedDml(st.DmlTokens, ctx)
		}
	}
	return nil
}

func (e *Engine) runTriggerSet(st parser.TriggerStmt, tbl *store.Table, ctx *eval.EvalContext, newRow *[]value.Value) error {
	v, err := eval.Eval(st.Value, ctx)
	if err != nil {
		return err
	}
	if !st.IsNew || newRow == nil || *newRow == nil {
		// SET OLD.col is accepted syntactically but has no effect: the
		// old row is immutable history by the time a trigger observes it.
		return nil
	}
	idx, ok := tbl.ColumnIndex(st.Column)
	if !ok {
		return nil
	}
	col := tbl.Columns()[idx]
	if coerced, err := col.Coerce(v); err == nil {
		v = coerced
	}
	(*newRow)[idx] = v
	ctx.Row.Set("NEW."+st.Column, v)
	ctx.Row.Set(st.Column, v)
	return nil
}

// runEmbeddedDml re-parses a trigger body's raw DML token span and runs
// it with ctx's NEW./OLD. bindings visible to its expressions.
func (e *Engine) runEmbeddedDml(toks parser.Expr, ctx *eval.EvalContext) error {
	src := parser.RenderExpr(toks) + ";"
	stmt, err := parser.New(src).Parse()
	if err != nil {
		return err
	}
	switch s := stmt.(type) {
	case *parser.InsertStmt:
		_, err = e.execInsert(s, ctx.Row)
	case *parser.UpdateStmt:
		_, err = e.execUpdate(s, ctx.Row)
	case *parser.DeleteStmt:
		_, err = e.execDelete(s, ctx.Row)
	default:
		_, err = e.ExecuteStmt(stmt)
	}
	return err
}
