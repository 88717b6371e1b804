package quilldb

import (
	"context"
	"errors"
	"testing"
	"time"

	"quill/pkg/store"
	"quill/pkg/value"
)

func TestExecuteNonQueryReportsAffectedRows(t *testing.T) {
	db := Open()
	if _, err := db.ExecuteNonQuery("CREATE TABLE T (Id INT)"); err != nil {
		t.Fatalf("create table: %v", err)
	}
	n, err := db.ExecuteNonQuery("INSERT INTO T VALUES (1), (2), (3)")
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 affected, got %d", n)
	}
}

func TestExecuteReaderReturnsColumnsAndRows(t *testing.T) {
	db := Open()
	mustNonQuery(t, db, "CREATE TABLE T (Id INT, Name VARCHAR)")
	mustNonQuery(t, db, "INSERT INTO T VALUES (1, 'Alice')")
	cols, rows, err := db.ExecuteReader("SELECT Id, Name FROM T")
	if err != nil {
		t.Fatalf("reader: %v", err)
	}
	if len(cols) != 2 || cols[0] != "Id" || cols[1] != "Name" {
		t.Fatalf("unexpected columns: %v", cols)
	}
	if len(rows) != 1 || rows[0][1].Text() != "Alice" {
		t.Fatalf("unexpected rows: %v", rows)
	}
}

func TestExecuteScalarSelectAndNonQuery(t *testing.T) {
	db := Open()
	v, err := db.ExecuteScalar("SELECT 1+1")
	if err != nil {
		t.Fatalf("scalar select: %v", err)
	}
	if v.Int() != 2 {
		t.Fatalf("expected 2, got %v", v)
	}

	mustNonQuery(t, db, "CREATE TABLE T (Id INT)")
	v, err = db.ExecuteScalar("INSERT INTO T VALUES (1), (2)")
	if err != nil {
		t.Fatalf("scalar insert: %v", err)
	}
	if v.Int() != 2 {
		t.Fatalf("expected affected-row scalar 2, got %v", v)
	}
}

func TestAddTableDuplicateNameFails(t *testing.T) {
	db := Open()
	tbl := store.NewTable("Widgets", []value.Column{{Name: "Id", Type: value.ColInt}})
	if err := db.AddTable(tbl); err != nil {
		t.Fatalf("first AddTable: %v", err)
	}
	dup := store.NewTable("Widgets", []value.Column{{Name: "Id", Type: value.ColInt}})
	err := db.AddTable(dup)
	if err == nil {
		t.Fatal("expected duplicate-name error")
	}
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestAddInRegisterAndUnregister(t *testing.T) {
	db := Open()
	db.RegisterAddIn("Triple", func(args []value.Value) value.Value {
		n, _ := args[0].AsInt()
		return value.NewInt(n * 3)
	})
	names := db.RegisteredAddIns()
	if len(names) != 1 || names[0] != "Triple" {
		t.Fatalf("unexpected registered add-ins: %v", names)
	}
	v, err := db.ExecuteScalar("SELECT Triple(7)")
	if err != nil {
		t.Fatalf("scalar: %v", err)
	}
	if v.Int() != 21 {
		t.Fatalf("expected 21, got %v", v)
	}
	if !db.UnregisterAddIn("Triple") {
		t.Fatal("expected UnregisterAddIn to report removal")
	}
	if db.UnregisterAddIn("Triple") {
		t.Fatal("expected second UnregisterAddIn to report nothing removed")
	}
}

func TestExecuteNonQueryContextCancelledBeforeDispatch(t *testing.T) {
	db := Open()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := db.ExecuteNonQueryContext(ctx, "CREATE TABLE T (Id INT)")
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
}

func TestExecuteNonQueryContextRunsToCompletion(t *testing.T) {
	db := Open()
	ctx := context.Background()
	n, err := db.ExecuteNonQueryContext(ctx, "CREATE TABLE T (Id INT)")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 affected for DDL, got %d", n)
	}
}

func TestExecuteReaderContextStreamsRowsAndRespectsStop(t *testing.T) {
	db := Open()
	mustNonQuery(t, db, "CREATE TABLE T (Id INT)")
	mustNonQuery(t, db, "INSERT INTO T VALUES (1), (2), (3)")

	var seen []int64
	cols, err := db.ExecuteReaderContext(context.Background(), "SELECT Id FROM T ORDER BY Id ASC", func(row []value.Value) bool {
		seen = append(seen, row[0].Int())
		return len(seen) < 2
	})
	if err != nil {
		t.Fatalf("reader context: %v", err)
	}
	if len(cols) != 1 || cols[0] != "Id" {
		t.Fatalf("unexpected columns: %v", cols)
	}
	if len(seen) != 2 || seen[0] != 1 || seen[1] != 2 {
		t.Fatalf("expected early stop after 2 rows, got %v", seen)
	}
}

func TestExecuteReaderContextCancelledBeforeDispatch(t *testing.T) {
	db := Open()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := db.ExecuteReaderContext(ctx, "SELECT 1", func(row []value.Value) bool { return true })
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
}

func TestExecuteNonQueryContextTimeout(t *testing.T) {
	db := Open()
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)
	_, err := db.ExecuteNonQueryContext(ctx, "CREATE TABLE T (Id INT)")
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
}

// TestExecuteReaderContextExpiredBeforeDispatch asserts that a context
// whose deadline has already passed when ExecuteReaderContext is called
// is refused with ErrCancelled before the query is dispatched, so yield
// never runs.
func TestExecuteReaderContextExpiredBeforeDispatch(t *testing.T) {
	db := Open()
	mustNonQuery(t, db, "CREATE TABLE T (Id INT)")
	for i := 0; i < 50; i++ {
		mustNonQuery(t, db, "INSERT INTO T VALUES (1)")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	var yielded int
	_, err := db.ExecuteReaderContext(ctx, "SELECT Id FROM T", func(row []value.Value) bool {
		yielded++
		return true
	})
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if yielded != 0 {
		t.Fatalf("expected no row to reach yield, got %d", yielded)
	}
}

func mustNonQuery(t *testing.T, db *Database, sql string) {
	t.Helper()
	if _, err := db.ExecuteNonQuery(sql); err != nil {
		t.Fatalf("exec %q: %v", sql, err)
	}
}
