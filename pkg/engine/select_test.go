package engine

import (
	"context"
	"testing"
	"time"

	"quill/pkg/sql/parser"
)

func seedProducts(t *testing.T, e *Engine) {
	t.Helper()
	mustExec(t, e, "CREATE TABLE Products (Id INT, Name VARCHAR, Category VARCHAR, Price FLOAT, Stock INT)")
	mustExec(t, e, `INSERT INTO Products VALUES
		(1,'Hammer','Tools',12.99,200),
		(2,'Wrench','Tools',19.99,85),
		(3,'Drill','Tools',149.99,32),
		(4,'Paint','Supplies',8.49,500),
		(5,'Paintbrush','Supplies',3.99,1200)`)
}

func TestSelectGroupByCount(t *testing.T) {
	e := New()
	seedProducts(t, e)
	res := mustExec(t, e, "SELECT Category, COUNT(*) FROM Products GROUP BY Category ORDER BY Category ASC")
	if len(res.Rows) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(res.Rows))
	}
	if res.Rows[0][0].Text() != "Supplies" || res.Rows[0][1].Int() != 2 {
		t.Fatalf("unexpected first group: %v", res.Rows[0])
	}
	if res.Rows[1][0].Text() != "Tools" || res.Rows[1][1].Int() != 3 {
		t.Fatalf("unexpected second group: %v", res.Rows[1])
	}
}

func TestSelectWhereLike(t *testing.T) {
	e := New()
	seedProducts(t, e)
	res := mustExec(t, e, "SELECT Name FROM Products WHERE Name LIKE 'Dr__l'")
	if len(res.Rows) != 1 || res.Rows[0][0].Text() != "Drill" {
		t.Fatalf("expected [Drill], got %v", res.Rows)
	}
}

func TestSelectCaseExpression(t *testing.T) {
	e := New()
	res := mustExec(t, e, "SELECT CASE WHEN 12.99 < 10 THEN 'Budget' WHEN 12.99 < 50 THEN 'Mid' ELSE 'Premium' END")
	if res.Rows[0][0].Text() != "Mid" {
		t.Fatalf("expected Mid, got %v", res.Rows[0][0])
	}
}

func TestSelectNoFromConstant(t *testing.T) {
	e := New()
	res := mustExec(t, e, "SELECT 1+1")
	if res.Rows[0][0].Int() != 2 {
		t.Fatalf("expected 2, got %v", res.Rows[0][0])
	}
}

func TestSelectLimitOffset(t *testing.T) {
	e := New()
	seedProducts(t, e)
	res := mustExec(t, e, "SELECT Id FROM Products ORDER BY Id ASC LIMIT 2 OFFSET 1")
	if len(res.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(res.Rows))
	}
	if res.Rows[0][0].Int() != 2 || res.Rows[1][0].Int() != 3 {
		t.Fatalf("unexpected paging result: %v", res.Rows)
	}
}

func TestSelectInnerJoin(t *testing.T) {
	e := New()
	mustExec(t, e, "CREATE TABLE Orders (Id INT, ProductId INT)")
	mustExec(t, e, "CREATE TABLE Products2 (Id INT, Name VARCHAR)")
	mustExec(t, e, "INSERT INTO Products2 VALUES (1, 'Hammer')")
	mustExec(t, e, "INSERT INTO Orders VALUES (100, 1), (101, 99)")
	res := mustExec(t, e, "SELECT Orders.Id, Products2.Name FROM Orders INNER JOIN Products2 ON Orders.ProductId = Products2.Id")
	if len(res.Rows) != 1 {
		t.Fatalf("expected 1 matched row, got %d", len(res.Rows))
	}
	if res.Rows[0][0].Int() != 100 || res.Rows[0][1].Text() != "Hammer" {
		t.Fatalf("unexpected join result: %v", res.Rows[0])
	}
}

func TestSelectLeftJoinPadsNulls(t *testing.T) {
	e := New()
	mustExec(t, e, "CREATE TABLE Orders (Id INT, ProductId INT)")
	mustExec(t, e, "CREATE TABLE Products2 (Id INT, Name VARCHAR)")
	mustExec(t, e, "INSERT INTO Products2 VALUES (1, 'Hammer')")
	mustExec(t, e, "INSERT INTO Orders VALUES (100, 1), (101, 99)")
	res := mustExec(t, e, "SELECT Orders.Id, Products2.Name FROM Orders LEFT JOIN Products2 ON Orders.ProductId = Products2.Id ORDER BY Orders.Id ASC")
	if len(res.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(res.Rows))
	}
	if !res.Rows[1][1].IsNull() {
		t.Fatalf("expected unmatched right side to be null, got %v", res.Rows[1][1])
	}
}

func TestSelectDistinct(t *testing.T) {
	e := New()
	mustExec(t, e, "CREATE TABLE T (A INT)")
	mustExec(t, e, "INSERT INTO T VALUES (1), (1), (2)")
	res := mustExec(t, e, "SELECT DISTINCT A FROM T ORDER BY A ASC")
	if len(res.Rows) != 2 {
		t.Fatalf("expected 2 distinct rows, got %d", len(res.Rows))
	}
}

func TestSelectHavingFiltersGroups(t *testing.T) {
	e := New()
	seedProducts(t, e)
	res := mustExec(t, e, "SELECT Category, COUNT(*) FROM Products GROUP BY Category HAVING COUNT(*) > 2")
	if len(res.Rows) != 1 || res.Rows[0][0].Text() != "Tools" {
		t.Fatalf("expected only Tools group, got %v", res.Rows)
	}
}

func TestSelectStarPreservesDeclaredColumnOrder(t *testing.T) {
	e := New()
	seedProducts(t, e)
	res := mustExec(t, e, "SELECT * FROM Products WHERE Id = 1")
	want := []string{"Id", "Name", "Category", "Price", "Stock"}
	if len(res.Columns) != len(want) {
		t.Fatalf("expected %d columns, got %v", len(want), res.Columns)
	}
	for i, name := range want {
		if res.Columns[i] != name {
			t.Fatalf("expected columns %v in declared order, got %v", want, res.Columns)
		}
	}
	if len(res.Rows) != 1 || res.Rows[0][0].Int() != 1 || res.Rows[0][1].Text() != "Hammer" {
		t.Fatalf("unexpected row for star expansion: %v", res.Rows)
	}
}

func TestSelectStarOnEmptyResultStillReportsHeaders(t *testing.T) {
	e := New()
	seedProducts(t, e)
	res := mustExec(t, e, "SELECT * FROM Products WHERE Id = 999")
	want := []string{"Id", "Name", "Category", "Price", "Stock"}
	if len(res.Columns) != len(want) {
		t.Fatalf("expected headers even with zero matching rows, got %v", res.Columns)
	}
	for i, name := range want {
		if res.Columns[i] != name {
			t.Fatalf("expected columns %v, got %v", want, res.Columns)
		}
	}
	if len(res.Rows) != 0 {
		t.Fatalf("expected no rows, got %v", res.Rows)
	}
}

func TestSelectAliasedStarExpandsOnlyThatTable(t *testing.T) {
	e := New()
	mustExec(t, e, "CREATE TABLE Orders (Id INT, ProductId INT)")
	mustExec(t, e, "CREATE TABLE Products2 (Id INT, Name VARCHAR)")
	mustExec(t, e, "INSERT INTO Products2 VALUES (1, 'Hammer')")
	mustExec(t, e, "INSERT INTO Orders VALUES (100, 1)")
	res := mustExec(t, e, "SELECT p.* FROM Orders o INNER JOIN Products2 p ON o.ProductId = p.Id")
	want := []string{"Id", "Name"}
	if len(res.Columns) != len(want) || res.Columns[0] != "Id" || res.Columns[1] != "Name" {
		t.Fatalf("expected only Products2's columns %v, got %v", want, res.Columns)
	}
	if len(res.Rows) != 1 || res.Rows[0][0].Int() != 1 || res.Rows[0][1].Text() != "Hammer" {
		t.Fatalf("unexpected aliased star row: %v", res.Rows)
	}
}

func TestExecSelectContextCancelsMidFilterLoop(t *testing.T) {
	e := New()
	mustExec(t, e, "CREATE TABLE T (Id INT)")
	for i := 0; i < 20; i++ {
		mustExec(t, e, "INSERT INTO T VALUES (1)")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	stmt, err := parser.New("SELECT Id FROM T").Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	_, err = e.execSelectContext(ctx, stmt.(*parser.SelectStmt))
	if err == nil {
		t.Fatal("expected an already-expired context to abort the SELECT's filter loop")
	}
	if got := ctx.Err(); err != got {
		t.Fatalf("expected the filter loop's error to be ctx.Err() (%v), got %v", got, err)
	}
}
