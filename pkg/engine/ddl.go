package engine

import (
	"quill/pkg/eval"
	"quill/pkg/sql/parser"
	"quill/pkg/store"
	"quill/pkg/value"
)

func (e *Engine) execCreateTable(s *parser.CreateTableStmt) (*Result, error) {
	cols := make([]value.Column, len(s.Columns))
	for i, c := range s.Columns {
		cols[i] = value.Column{Name: c.Name, Type: value.LookupColType(c.TypeName)}
	}
	tbl := store.NewTable(s.Name, cols)
	for i, c := range s.Columns {
		tbl.SetNotNull(i, c.NotNull)
		tbl.SetDefault(i, c.Default)
	}
	if err := e.DB.CreateTable(tbl); err != nil {
		return nil, err
	}
	return &Result{}, nil
}

func (e *Engine) execDropTable(s *parser.DropTableStmt) (*Result, error) {
	ok := e.DB.DropTable(s.Name)
	if !ok && !s.IfExists {
		return nil, engineErrorf("table %q does not exist", s.Name)
	}
	return &Result{}, nil
}

func (e *Engine) execAlterAddColumn(s *parser.AlterAddColumn) (*Result, error) {
	tbl, ok := e.DB.Table(s.Table)
	if !ok {
		return nil, engineErrorf("table %q does not exist", s.Table)
	}
	col := value.Column{Name: s.Column.Name, Type: value.LookupColType(s.Column.TypeName)}
	if err := tbl.AddColumn(col); err != nil {
		return nil, err
	}
	idx, _ := tbl.ColumnIndex(s.Column.Name)
	tbl.SetNotNull(idx, s.Column.NotNull)
	tbl.SetDefault(idx, s.Column.Default)

	if !s.Column.Default.Empty() {
		ctx := e.newCtx()
		def, err := eval.Eval(s.Column.Default, ctx)
		if err != nil {
			return nil, err
		}
		coerced, err := col.Coerce(def)
		if err != nil {
			return nil, engineErrorf("%v", err)
		}
		tbl.Rows(func(i int, row []value.Value) bool {
			tbl.UpdateRow(i, idx, coerced)
			return true
		})
	}
	return &Result{}, nil
}

func (e *Engine) execAlterDropColumn(s *parser.AlterDropColumn) (*Result, error) {
	tbl, ok := e.DB.Table(s.Table)
	if !ok {
		return nil, engineErrorf("table %q does not exist", s.Table)
	}
	if err := tbl.DropColumn(s.Column); err != nil {
		return nil, err
	}
	return &Result{}, nil
}

func (e *Engine) execCreateFunction(s *parser.CreateFunctionStmt) (*Result, error) {
	if _, exists := e.Functions.Lookup(s.Name); exists {
		return nil, engineErrorf("function %q already exists", s.Name)
	}
	e.Functions.Register(&eval.UserFunction{
		Name:       s.Name,
		Params:     s.Params,
		ReturnType: value.LookupColType(s.ReturnType),
		Body:       s.Body,
	})
	return &Result{}, nil
}

func (e *Engine) execDropFunction(s *parser.DropFunctionStmt) (*Result, error) {
	if !e.Functions.Drop(s.Name) {
		return nil, engineErrorf("function %q does not exist", s.Name)
	}
	return &Result{}, nil
}

func (e *Engine) execCreateTrigger(s *parser.CreateTriggerStmt) (*Result, error) {
	trg := &store.Trigger{
		Name:       s.Name,
		Table:      s.Table,
		Timing:     s.Timing,
		Event:      s.Event,
		Body:       s.Body,
		SourceText: s.SourceText,
	}
	if err := e.DB.CreateTrigger(trg); err != nil {
		return nil, err
	}
	return &Result{}, nil
}

func (e *Engine) execDropTrigger(s *parser.DropTriggerStmt) (*Result, error) {
	ok := e.DB.DropTrigger(s.Name)
	if !ok && !s.IfExists {
		return nil, engineErrorf("trigger %q does not exist", s.Name)
	}
	return &Result{}, nil
}
