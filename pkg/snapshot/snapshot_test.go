package snapshot

import (
	"strings"
	"testing"

	"quill/pkg/engine"
)

func mustExec(t *testing.T, e *engine.Engine, sql string) {
	t.Helper()
	if _, err := e.Execute(sql); err != nil {
		t.Fatalf("exec %q: %v", sql, err)
	}
}

func TestRoundTripPreservesTablesAndRows(t *testing.T) {
	e := engine.New()
	mustExec(t, e, "CREATE TABLE Products (Id INT, Name VARCHAR, Price FLOAT)")
	mustExec(t, e, "INSERT INTO Products VALUES (1, 'Hammer', 12.99), (2, 'Wrench', NULL)")

	text, err := ToSnapshot(e, false)
	if err != nil {
		t.Fatalf("ToSnapshot: %v", err)
	}
	if !strings.Contains(text, "\"Int64\"") || !strings.Contains(text, "\"Double\"") {
		t.Fatalf("expected coarse type names in snapshot: %s", text)
	}

	e2, err := FromSnapshot(text)
	if err != nil {
		t.Fatalf("FromSnapshot: %v", err)
	}
	res, err := e2.Execute("SELECT Id, Name, Price FROM Products ORDER BY Id ASC")
	if err != nil {
		t.Fatalf("select after reload: %v", err)
	}
	if len(res.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(res.Rows))
	}
	if res.Rows[0][1].Text() != "Hammer" || res.Rows[0][2].Float() != 12.99 {
		t.Fatalf("unexpected first row: %v", res.Rows[0])
	}
	if !res.Rows[1][2].IsNull() {
		t.Fatalf("expected null price preserved, got %v", res.Rows[1][2])
	}
}

func TestRoundTripPreservesTriggerSourceText(t *testing.T) {
	e := engine.New()
	mustExec(t, e, "CREATE TABLE T (Id INT, Flag INT)")
	mustExec(t, e, `CREATE TRIGGER SetFlag BEFORE INSERT ON T
		BEGIN
			SET NEW.Flag = 1;
		END`)

	text, err := ToSnapshot(e, false)
	if err != nil {
		t.Fatalf("ToSnapshot: %v", err)
	}
	e2, err := FromSnapshot(text)
	if err != nil {
		t.Fatalf("FromSnapshot: %v", err)
	}
	mustExec(t, e2, "INSERT INTO T (Id) VALUES (1)")
	tbl, _ := e2.DB.Table("T")
	if tbl.Row(0)[1].Int() != 1 {
		t.Fatalf("expected trigger to fire after reload, got %v", tbl.Row(0)[1])
	}
}

func TestMergeSnapshotSkipsExistingByDefault(t *testing.T) {
	e := engine.New()
	mustExec(t, e, "CREATE TABLE T (Id INT)")
	mustExec(t, e, "INSERT INTO T VALUES (1)")

	other := engine.New()
	mustExec(t, other, "CREATE TABLE T (Id INT)")
	mustExec(t, other, "INSERT INTO T VALUES (2), (3)")
	text, err := ToSnapshot(other, false)
	if err != nil {
		t.Fatalf("ToSnapshot: %v", err)
	}

	if err := MergeSnapshot(e, text, false); err != nil {
		t.Fatalf("MergeSnapshot: %v", err)
	}
	tbl, _ := e.DB.Table("T")
	if tbl.RowCount() != 1 {
		t.Fatalf("expected existing table left untouched, got %d rows", tbl.RowCount())
	}
}

func TestMergeSnapshotOverwriteReplacesExisting(t *testing.T) {
	e := engine.New()
	mustExec(t, e, "CREATE TABLE T (Id INT)")
	mustExec(t, e, "INSERT INTO T VALUES (1)")

	other := engine.New()
	mustExec(t, other, "CREATE TABLE T (Id INT)")
	mustExec(t, other, "INSERT INTO T VALUES (2), (3)")
	text, err := ToSnapshot(other, false)
	if err != nil {
		t.Fatalf("ToSnapshot: %v", err)
	}

	if err := MergeSnapshot(e, text, true); err != nil {
		t.Fatalf("MergeSnapshot: %v", err)
	}
	tbl, _ := e.DB.Table("T")
	if tbl.RowCount() != 2 {
		t.Fatalf("expected replaced table with 2 rows, got %d", tbl.RowCount())
	}
}

func TestMergeSnapshotInsertsNewTable(t *testing.T) {
	e := engine.New()
	mustExec(t, e, "CREATE TABLE Existing (Id INT)")

	other := engine.New()
	mustExec(t, other, "CREATE TABLE Brand (Id INT)")
	mustExec(t, other, "INSERT INTO Brand VALUES (9)")
	text, err := ToSnapshot(other, false)
	if err != nil {
		t.Fatalf("ToSnapshot: %v", err)
	}

	if err := MergeSnapshot(e, text, false); err != nil {
		t.Fatalf("MergeSnapshot: %v", err)
	}
	tbl, ok := e.DB.Table("Brand")
	if !ok {
		t.Fatal("expected new table Brand to be merged in")
	}
	if tbl.RowCount() != 1 || tbl.Row(0)[0].Int() != 9 {
		t.Fatalf("unexpected merged row: %v", tbl.Row(0))
	}
}
