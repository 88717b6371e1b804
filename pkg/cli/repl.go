// pkg/cli/repl.go
package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/k0kubun/pp/v3"

	"quill/pkg/quilldb"
	"quill/pkg/snapshot"
	"quill/pkg/sql/parser"
	"quill/pkg/value"
)

// REPL provides a Read-Eval-Print Loop for interactive SQL execution
// against a quilldb.Database.
type REPL struct {
	db *quilldb.Database

	shell *Shell

	output    io.Writer
	errOutput io.Writer

	running       bool
	exitRequested bool
}

// NewREPL creates a new REPL. If path names an existing snapshot file,
// it is loaded at startup; otherwise the REPL starts with an empty
// database. ":memory:" and "" both mean "start empty, no default
// snapshot path".
func NewREPL(path string, output, errOutput io.Writer) (*REPL, error) {
	return NewREPLWithInput(path, os.Stdin, output, errOutput)
}

// NewREPLWithInput creates a new REPL with custom input/output streams.
// This is useful for testing or scripted operation.
func NewREPLWithInput(path string, input io.Reader, output, errOutput io.Writer) (*REPL, error) {
	db := quilldb.Open()

	if path != "" && path != ":memory:" {
		if _, err := os.Stat(path); err == nil {
			eng, err := snapshot.LoadSnapshot(path)
			if err != nil {
				return nil, fmt.Errorf("failed to load snapshot %q: %w", path, err)
			}
			db = quilldb.Wrap(eng)
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat snapshot %q: %w", path, err)
		}
	}

	shell := NewShell(input, output, errOutput)

	return &REPL{
		db:        db,
		shell:     shell,
		output:    output,
		errOutput: errOutput,
		running:   false,
	}, nil
}

// Close is a no-op: quill's database is purely in-memory and owns no
// file handle to release. It exists so REPL mirrors the lifecycle of a
// host connection that might.
func (r *REPL) Close() error { return nil }

// SetPrompt overrides the REPL's prompt string, e.g. from a loaded
// config.Config.
func (r *REPL) SetPrompt(prompt string) {
	r.shell.SetPrompt(prompt)
}

// SaveSnapshot writes the current database to path, honoring pretty.
// Exposed so cmd/quillsh can auto-save on a clean exit.
func (r *REPL) SaveSnapshot(path string, pretty bool) error {
	return snapshot.SaveSnapshot(r.db.Engine(), path, pretty)
}

// ExitRequested reports whether the REPL loop ended via .exit/.quit
// rather than EOF.
func (r *REPL) ExitRequested() bool {
	return r.exitRequested
}

// Run starts the REPL loop, reading and executing statements until EOF
// or .exit.
func (r *REPL) Run() {
	r.running = true
	r.exitRequested = false

	fmt.Fprintln(r.output, "quill")
	fmt.Fprintln(r.output, "Enter \".help\" for usage hints.")

	for r.running && !r.exitRequested {
		stmt, eof := r.shell.ReadStatement()

		if eof && stmt == "" {
			fmt.Fprintln(r.output)
			break
		}

		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			if eof {
				break
			}
			continue
		}

		if strings.HasPrefix(stmt, ".") {
			r.handleDotCommand(stmt)
		} else if err := r.ExecuteStatement(stmt); err != nil {
			r.printError(err)
		}

		if eof {
			break
		}
	}

	r.running = false
}

// ExecuteStatement executes a single SQL statement and displays its
// result.
func (r *REPL) ExecuteStatement(sql string) error {
	cols, rows, err := r.db.ExecuteReader(sql)
	if err != nil {
		return err
	}
	r.displayResult(cols, rows)
	return nil
}

func (r *REPL) displayResult(columns []string, rows [][]value.Value) {
	if len(columns) == 0 {
		return
	}
	r.displayTable(columns, rows)
}

func (r *REPL) displayTable(columns []string, rows [][]value.Value) {
	widths := make([]int, len(columns))
	for i, col := range columns {
		widths[i] = len(col)
	}
	for _, row := range rows {
		for i, val := range row {
			if i < len(widths) {
				s := formatValue(val)
				if len(s) > widths[i] {
					widths[i] = len(s)
				}
			}
		}
	}

	r.printSeparator(widths)
	r.printRow(columns, widths)
	r.printSeparator(widths)
	for _, row := range rows {
		r.printDataRow(row, widths)
	}
	r.printSeparator(widths)
	fmt.Fprintf(r.output, "%d row(s)\n", len(rows))
}

func (r *REPL) printSeparator(widths []int) {
	fmt.Fprint(r.output, "+")
	for _, w := range widths {
		fmt.Fprint(r.output, strings.Repeat("-", w+2))
		fmt.Fprint(r.output, "+")
	}
	fmt.Fprintln(r.output)
}

func (r *REPL) printRow(values []string, widths []int) {
	fmt.Fprint(r.output, "|")
	for i, val := range values {
		fmt.Fprintf(r.output, " %-*s |", widths[i], val)
	}
	fmt.Fprintln(r.output)
}

func (r *REPL) printDataRow(row []value.Value, widths []int) {
	fmt.Fprint(r.output, "|")
	for i, val := range row {
		fmt.Fprintf(r.output, " %-*s |", widths[i], formatValue(val))
	}
	fmt.Fprintln(r.output)
}

func formatValue(v value.Value) string {
	if v.IsNull() {
		return "NULL"
	}
	return v.AsText()
}

func (r *REPL) handleDotCommand(cmd string) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return
	}

	switch strings.ToLower(parts[0]) {
	case ".exit", ".quit":
		r.exitRequested = true
	case ".help":
		r.printHelp()
	case ".tables":
		r.showTables()
	case ".schema":
		if len(parts) > 1 {
			r.showSchema(parts[1])
		} else {
			r.showAllSchemas()
		}
	case ".load":
		if len(parts) < 2 {
			fmt.Fprintln(r.errOutput, "Usage: .load <path>")
			return
		}
		r.loadSnapshot(parts[1])
	case ".save":
		if len(parts) < 2 {
			fmt.Fprintln(r.errOutput, "Usage: .save <path>")
			return
		}
		r.saveSnapshot(parts[1])
	case ".explain":
		r.explain(strings.TrimSpace(strings.TrimPrefix(cmd, parts[0])))
	default:
		fmt.Fprintf(r.errOutput, "Unknown command: %s\n", parts[0])
		fmt.Fprintln(r.errOutput, "Use \".help\" for usage hints.")
	}
}

func (r *REPL) printHelp() {
	help := `
.exit              Exit this program
.help              Show this help message
.quit              Exit this program
.schema [TABLE]    Show CREATE statement for table(s)
.tables            List all tables
.load <path>       Load a JSON snapshot, merging into the current database
.save <path>       Write the current database as a JSON snapshot
.explain <sql>     Pretty-print the parsed statement, then run it

Enter SQL statements terminated with a semicolon.
Multi-line statements are supported.
`
	fmt.Fprintln(r.output, help)
}

func (r *REPL) showTables() {
	names := r.db.Engine().DB.TableNames()
	if len(names) == 0 {
		fmt.Fprintln(r.output, "(no tables)")
		return
	}
	for _, name := range names {
		fmt.Fprintln(r.output, name)
	}
}

func (r *REPL) showSchema(tableName string) {
	tbl, ok := r.db.Engine().DB.Table(tableName)
	if !ok {
		fmt.Fprintf(r.errOutput, "Error: no such table: %s\n", tableName)
		return
	}
	fmt.Fprintln(r.output, generateCreateSQL(tbl.Name, tbl.Columns()))
}

func (r *REPL) showAllSchemas() {
	for _, name := range r.db.Engine().DB.TableNames() {
		tbl, ok := r.db.Engine().DB.Table(name)
		if ok {
			fmt.Fprintln(r.output, generateCreateSQL(tbl.Name, tbl.Columns()))
		}
	}
}

func generateCreateSQL(name string, columns []value.Column) string {
	var sb strings.Builder
	sb.WriteString("CREATE TABLE ")
	sb.WriteString(name)
	sb.WriteString(" (")
	for i, col := range columns {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(col.Name)
		sb.WriteString(" ")
		sb.WriteString(col.Type.String())
	}
	sb.WriteString(");")
	return sb.String()
}

func (r *REPL) loadSnapshot(path string) {
	if err := snapshot.MergeSnapshotFile(r.db.Engine(), path, false); err != nil {
		r.printError(err)
	}
}

func (r *REPL) saveSnapshot(path string) {
	if err := snapshot.SaveSnapshot(r.db.Engine(), path, true); err != nil {
		r.printError(err)
	}
}

func (r *REPL) explain(sql string) {
	if sql == "" {
		fmt.Fprintln(r.errOutput, "Usage: .explain <sql>")
		return
	}
	stmt, err := parser.New(sql).Parse()
	if err != nil {
		r.printError(err)
		return
	}
	pp.Println(stmt)
	if err := r.ExecuteStatement(sql); err != nil {
		r.printError(err)
	}
}

func (r *REPL) printError(err error) {
	fmt.Fprintf(r.errOutput, "Error: %v\n", err)
}
