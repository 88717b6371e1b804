package store

import (
	"testing"

	"quill/pkg/value"
)

func newTestTable() *Table {
	return NewTable("users", []value.Column{
		{Name: "id", Type: value.ColInt},
		{Name: "name", Type: value.ColText},
	})
}

func TestInsertAndRowCount(t *testing.T) {
	tbl := newTestTable()
	tbl.InsertRow([]value.Value{value.NewInt(1), value.NewText("ada")})
	if tbl.RowCount() != 1 {
		t.Errorf("RowCount() = %d, want 1", tbl.RowCount())
	}
}

func TestAddColumnBackfillsNull(t *testing.T) {
	tbl := newTestTable()
	tbl.InsertRow([]value.Value{value.NewInt(1), value.NewText("ada")})

	if err := tbl.AddColumn(value.Column{Name: "email", Type: value.ColText}); err != nil {
		t.Fatalf("AddColumn returned error: %v", err)
	}
	row := tbl.Row(0)
	if len(row) != 3 {
		t.Fatalf("row has %d columns, want 3", len(row))
	}
	if !row[2].IsNull() {
		t.Errorf("backfilled column = %v, want Null", row[2])
	}
}

func TestDropColumnRemovesSlot(t *testing.T) {
	tbl := newTestTable()
	tbl.InsertRow([]value.Value{value.NewInt(1), value.NewText("ada")})

	if err := tbl.DropColumn("name"); err != nil {
		t.Fatalf("DropColumn returned error: %v", err)
	}
	if len(tbl.Columns()) != 1 {
		t.Fatalf("columns after drop = %d, want 1", len(tbl.Columns()))
	}
	row := tbl.Row(0)
	if len(row) != 1 || row[0].Int() != 1 {
		t.Errorf("row after drop = %v, want [1]", row)
	}
}

func TestDeleteRows(t *testing.T) {
	tbl := newTestTable()
	tbl.InsertRow([]value.Value{value.NewInt(1), value.NewText("a")})
	tbl.InsertRow([]value.Value{value.NewInt(2), value.NewText("b")})
	tbl.InsertRow([]value.Value{value.NewInt(3), value.NewText("c")})

	n := tbl.DeleteRows([]int{1})
	if n != 1 {
		t.Errorf("DeleteRows returned %d, want 1", n)
	}
	if tbl.RowCount() != 2 {
		t.Fatalf("RowCount() after delete = %d, want 2", tbl.RowCount())
	}
	if tbl.Row(1)[0].Int() != 3 {
		t.Errorf("remaining row = %v, want id 3", tbl.Row(1))
	}
}

func TestCoerceRowInfersAnyColumn(t *testing.T) {
	tbl := NewTable("t", []value.Column{{Name: "v", Type: value.ColAny}})
	row, err := tbl.CoerceRow([]value.Value{value.NewInt(5)})
	if err != nil {
		t.Fatalf("CoerceRow returned error: %v", err)
	}
	if row[0].Kind() != value.KindInt {
		t.Errorf("coerced row = %v, want Int", row[0])
	}
	if tbl.Columns()[0].Type != value.ColInt {
		t.Errorf("column type after inference = %v, want ColInt", tbl.Columns()[0].Type)
	}
}

func TestCoerceRowRejectsWrongArity(t *testing.T) {
	tbl := newTestTable()
	if _, err := tbl.CoerceRow([]value.Value{value.NewInt(1)}); err == nil {
		t.Error("CoerceRow with wrong column count should fail")
	}
}
