// pkg/cli/repl_test.go
package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestREPL_ExecuteStatement(t *testing.T) {
	output := &bytes.Buffer{}
	errOutput := &bytes.Buffer{}

	repl, err := NewREPL(":memory:", output, errOutput)
	if err != nil {
		t.Fatalf("NewREPL failed: %v", err)
	}
	defer repl.Close()

	if err := repl.ExecuteStatement("CREATE TABLE test (id INT, name VARCHAR)"); err != nil {
		t.Fatalf("CREATE TABLE failed: %v", err)
	}
	if err := repl.ExecuteStatement("INSERT INTO test (id, name) VALUES (1, 'Alice')"); err != nil {
		t.Fatalf("INSERT failed: %v", err)
	}

	output.Reset()
	if err := repl.ExecuteStatement("SELECT * FROM test"); err != nil {
		t.Fatalf("SELECT failed: %v", err)
	}

	result := output.String()
	if !strings.Contains(result, "id") || !strings.Contains(result, "name") {
		t.Errorf("output should contain column headers, got: %s", result)
	}
	if !strings.Contains(result, "1") || !strings.Contains(result, "Alice") {
		t.Errorf("output should contain row data, got: %s", result)
	}
}

func TestREPL_ExecuteStatement_Error(t *testing.T) {
	output := &bytes.Buffer{}
	errOutput := &bytes.Buffer{}

	repl, err := NewREPL(":memory:", output, errOutput)
	if err != nil {
		t.Fatalf("NewREPL failed: %v", err)
	}
	defer repl.Close()

	if err := repl.ExecuteStatement("SELECT * FROM nonexistent"); err == nil {
		t.Error("expected error for nonexistent table")
	}
}

func TestREPL_DisplayResult(t *testing.T) {
	output := &bytes.Buffer{}
	errOutput := &bytes.Buffer{}

	repl, err := NewREPL(":memory:", output, errOutput)
	if err != nil {
		t.Fatalf("NewREPL failed: %v", err)
	}
	defer repl.Close()

	repl.ExecuteStatement("CREATE TABLE users (id INT, name VARCHAR, age INT)")
	repl.ExecuteStatement("INSERT INTO users VALUES (1, 'Alice', 30)")
	repl.ExecuteStatement("INSERT INTO users VALUES (2, 'Bob', 25)")

	output.Reset()
	repl.ExecuteStatement("SELECT * FROM users")

	result := output.String()
	for _, want := range []string{"id", "name", "age", "Alice", "Bob"} {
		if !strings.Contains(result, want) {
			t.Errorf("output should contain %q, got: %s", want, result)
		}
	}
}

func TestREPL_Run(t *testing.T) {
	input := strings.NewReader("CREATE TABLE t (x INT);\nINSERT INTO t VALUES (1);\nSELECT * FROM t;\n.exit\n")
	output := &bytes.Buffer{}
	errOutput := &bytes.Buffer{}

	repl, err := NewREPLWithInput(":memory:", input, output, errOutput)
	if err != nil {
		t.Fatalf("NewREPLWithInput failed: %v", err)
	}

	repl.Run()

	result := output.String()
	if !strings.Contains(result, "1") {
		t.Errorf("output should contain SELECT result, got: %s", result)
	}
}

func TestREPL_DotExit(t *testing.T) {
	input := strings.NewReader(".exit\n")
	output := &bytes.Buffer{}
	errOutput := &bytes.Buffer{}

	repl, err := NewREPLWithInput(":memory:", input, output, errOutput)
	if err != nil {
		t.Fatalf("NewREPLWithInput failed: %v", err)
	}

	repl.Run()

	if errOutput.Len() > 0 {
		t.Errorf("unexpected error output: %s", errOutput.String())
	}
}

func TestREPL_DotTablesAndSchema(t *testing.T) {
	output := &bytes.Buffer{}
	errOutput := &bytes.Buffer{}

	repl, err := NewREPLWithInput(":memory:", strings.NewReader(""), output, errOutput)
	if err != nil {
		t.Fatalf("NewREPLWithInput failed: %v", err)
	}
	repl.ExecuteStatement("CREATE TABLE widgets (id INT, name VARCHAR)")

	output.Reset()
	repl.handleDotCommand(".tables")
	if !strings.Contains(output.String(), "widgets") {
		t.Errorf("expected .tables to list widgets, got: %s", output.String())
	}

	output.Reset()
	repl.handleDotCommand(".schema widgets")
	schema := output.String()
	if !strings.Contains(schema, "CREATE TABLE widgets") || !strings.Contains(schema, "Int") {
		t.Errorf("unexpected .schema output: %s", schema)
	}
}

func TestREPL_SaveAndLoadSnapshot(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "snap.json")

	output := &bytes.Buffer{}
	errOutput := &bytes.Buffer{}
	repl, err := NewREPLWithInput(":memory:", strings.NewReader(""), output, errOutput)
	if err != nil {
		t.Fatalf("NewREPLWithInput failed: %v", err)
	}
	repl.ExecuteStatement("CREATE TABLE T (Id INT)")
	repl.ExecuteStatement("INSERT INTO T VALUES (1)")
	repl.handleDotCommand(".save " + path)
	if errOutput.Len() > 0 {
		t.Fatalf("unexpected error saving snapshot: %s", errOutput.String())
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected snapshot file to exist: %v", err)
	}

	repl2, err := NewREPLWithInput(path, strings.NewReader(""), output, errOutput)
	if err != nil {
		t.Fatalf("NewREPLWithInput with snapshot path failed: %v", err)
	}
	output.Reset()
	if err := repl2.ExecuteStatement("SELECT Id FROM T"); err != nil {
		t.Fatalf("select after auto-load: %v", err)
	}
	if !strings.Contains(output.String(), "1") {
		t.Errorf("expected reloaded row, got: %s", output.String())
	}
}

func TestREPL_OpenNonexistentSnapshotStartsEmpty(t *testing.T) {
	output := &bytes.Buffer{}
	errOutput := &bytes.Buffer{}

	repl, err := NewREPL(filepath.Join(t.TempDir(), "missing.json"), output, errOutput)
	if err != nil {
		t.Fatalf("expected no error for a missing snapshot path, got: %v", err)
	}
	defer repl.Close()

	if err := repl.ExecuteStatement("CREATE TABLE T (Id INT)"); err != nil {
		t.Fatalf("CREATE TABLE failed: %v", err)
	}
}
