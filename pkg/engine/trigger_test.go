package engine

import "testing"

func TestBeforeInsertTriggerClampsPrice(t *testing.T) {
	e := New()
	mustExec(t, e, "CREATE TABLE Products (Id INT, Name VARCHAR, Category VARCHAR, Price FLOAT, Stock INT)")
	mustExec(t, e, `CREATE TRIGGER ClampPrice BEFORE INSERT ON Products
		BEGIN
			IF NEW.Price < 1.0 THEN
				SET NEW.Price = 1.0;
			END IF
		END`)
	mustExec(t, e, "INSERT INTO Products VALUES (6, 'Freebie', 'Samples', 0.0, 10)")

	tbl, _ := e.DB.Table("Products")
	if tbl.Row(0)[3].Float() != 1.0 {
		t.Fatalf("expected clamped price 1.0, got %v", tbl.Row(0)[3])
	}
}

func TestDropTriggerStopsFiring(t *testing.T) {
	e := New()
	mustExec(t, e, "CREATE TABLE T (Id INT, Flag INT)")
	mustExec(t, e, `CREATE TRIGGER SetFlag BEFORE INSERT ON T
		BEGIN
			SET NEW.Flag = 1;
		END`)
	mustExec(t, e, "DROP TRIGGER SetFlag")
	mustExec(t, e, "INSERT INTO T (Id) VALUES (1)")

	tbl, _ := e.DB.Table("T")
	if !tbl.Row(0)[1].IsNull() {
		t.Fatalf("expected trigger not to fire after drop, got %v", tbl.Row(0)[1])
	}
}

func TestMultipleTriggersFireInRegistrationOrder(t *testing.T) {
	e := New()
	mustExec(t, e, "CREATE TABLE T (Id INT, Val VARCHAR)")
	mustExec(t, e, `CREATE TRIGGER First BEFORE INSERT ON T
		BEGIN
			SET NEW.Val = 'first';
		END`)
	mustExec(t, e, `CREATE TRIGGER Second BEFORE INSERT ON T
		BEGIN
			SET NEW.Val = 'second';
		END`)
	mustExec(t, e, "INSERT INTO T (Id) VALUES (1)")

	tbl, _ := e.DB.Table("T")
	if tbl.Row(0)[1].Text() != "second" {
		t.Fatalf("expected last-registered trigger to win, got %v", tbl.Row(0)[1])
	}
}

func TestAfterDeleteTriggerSeesOldRow(t *testing.T) {
	e := New()
	mustExec(t, e, "CREATE TABLE T (Id INT)")
	mustExec(t, e, "CREATE TABLE Log (Id INT)")
	mustExec(t, e, `CREATE TRIGGER LogDelete AFTER DELETE ON T
		BEGIN
			INSERT INTO Log VALUES (OLD.Id);
		END`)
	mustExec(t, e, "INSERT INTO T VALUES (7)")
	mustExec(t, e, "DELETE FROM T WHERE Id = 7")

	logTbl, _ := e.DB.Table("Log")
	if logTbl.RowCount() != 1 || logTbl.Row(0)[0].Int() != 7 {
		t.Fatalf("expected logged delete of Id=7, got rows=%d", logTbl.RowCount())
	}
}

func TestDeleteTriggersFireHighestIndexFirstPerRow(t *testing.T) {
	e := New()
	mustExec(t, e, "CREATE TABLE T (Id INT)")
	mustExec(t, e, "CREATE TABLE Log (Id INT)")
	mustExec(t, e, `CREATE TRIGGER LogDelete AFTER DELETE ON T
		BEGIN
			INSERT INTO Log VALUES (OLD.Id);
		END`)
	mustExec(t, e, "INSERT INTO T VALUES (1), (2), (3)")
	mustExec(t, e, "DELETE FROM T")

	logTbl, _ := e.DB.Table("Log")
	if logTbl.RowCount() != 3 {
		t.Fatalf("expected 3 logged deletes, got %d", logTbl.RowCount())
	}
	want := []int64{3, 2, 1}
	for i, id := range want {
		if logTbl.Row(i)[0].Int() != id {
			t.Fatalf("expected deletes logged highest-index-first (%v), got row %d = %v", want, i, logTbl.Row(i)[0])
		}
	}
}
