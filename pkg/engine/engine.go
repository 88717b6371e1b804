// Package engine executes parsed statements against a store.Database,
// tying the parser, the expression evaluator, and the trigger runtime
// together into the single synchronous core the rest of the system
// (pkg/quilldb's async façade, pkg/cli's shell) is built on.
package engine

import (
	"context"
	"fmt"

	"quill/pkg/eval"
	"quill/pkg/sql/parser"
	"quill/pkg/store"
	"quill/pkg/value"
)

// ErrEngine is the sentinel wrapped by every engine-level error.
var ErrEngine = fmt.Errorf("engine error")

func engineErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrEngine}, args...)...)
}

// Result is the outcome of executing one statement: either a row set (for
// SELECT) or an affected-row count (for DDL/DML).
type Result struct {
	Columns      []string
	Rows         [][]value.Value
	RowsAffected int
}

// Engine bundles a store.Database with the function and add-in
// registries that the expression evaluator resolves bare calls against.
type Engine struct {
	DB        *store.Database
	Functions *eval.FunctionRegistry
	AddIns    *eval.AddInRegistry
}

// New creates an empty engine: no tables, no user functions, no add-ins.
func New() *Engine {
	return &Engine{
		DB:        store.NewDatabase(),
		Functions: eval.NewFunctionRegistry(),
		AddIns:    eval.NewAddInRegistry(),
	}
}

func (e *Engine) newCtx() *eval.EvalContext {
	ctx := eval.NewEvalContext(e.Functions, e.AddIns)
	ctx.Catalog = e.DB
	return ctx
}

// Execute parses and runs a single SQL statement.
func (e *Engine) Execute(sql string) (*Result, error) {
	return e.ExecuteContext(context.Background(), sql)
}

// ExecuteContext parses and runs sql as Execute does, but additionally
// checks ctx for cancellation between row evaluations of a SELECT's
// filter and projection loops, rather than only before parsing starts.
func (e *Engine) ExecuteContext(ctx context.Context, sql string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	stmt, err := parser.New(sql).Parse()
	if err != nil {
		return nil, err
	}
	return e.ExecuteStmtContext(ctx, stmt)
}

// ExecuteStmt runs an already-parsed statement. Splitting this out from
// Execute lets the trigger runtime re-dispatch a re-parsed embedded DML
// statement without a second round trip through the tokenizer.
func (e *Engine) ExecuteStmt(stmt parser.Stmt) (*Result, error) {
	return e.ExecuteStmtContext(context.Background(), stmt)
}

// ExecuteStmtContext is ExecuteStmt with ctx threaded into the SELECT
// pipeline's row loops. Other statement kinds have no row-at-a-time
// evaluation loop worth interrupting mid-flight, so they dispatch exactly
// as ExecuteStmt does.
func (e *Engine) ExecuteStmtContext(ctx context.Context, stmt parser.Stmt) (*Result, error) {
	switch s := stmt.(type) {
	case *parser.CreateTableStmt:
		return e.execCreateTable(s)
	case *parser.DropTableStmt:
		return e.execDropTable(s)
	case *parser.AlterAddColumn:
		return e.execAlterAddColumn(s)
	case *parser.AlterDropColumn:
		return e.execAlterDropColumn(s)
	case *parser.AlterNoop:
		return &Result{}, nil
	case *parser.CreateFunctionStmt:
		return e.execCreateFunction(s)
	case *parser.DropFunctionStmt:
		return e.execDropFunction(s)
	case *parser.CreateTriggerStmt:
		return e.execCreateTrigger(s)
	case *parser.DropTriggerStmt:
		return e.execDropTrigger(s)
	case *parser.InsertStmt:
		return e.execInsert(s, nil)
	case *parser.UpdateStmt:
		return e.execUpdate(s, nil)
	case *parser.DeleteStmt:
		return e.execDelete(s, nil)
	case *parser.SelectStmt:
		return e.execSelectContext(ctx, s)
	default:
		return nil, engineErrorf("unsupported statement type %T", stmt)
	}
}
