// Package quilldb is the public entry surface: table/add-in registration,
// the three synchronous query entry points, and the async wrapper that
// dispatches onto a background goroutine while checking for cancellation
// between row evaluations.
package quilldb

import (
	"context"
	"errors"
	"sync"

	"quill/pkg/engine"
	"quill/pkg/eval"
	"quill/pkg/store"
	"quill/pkg/value"
)

// ErrDuplicate is returned by AddTable when a table by that name already
// exists.
var ErrDuplicate = errors.New("duplicate name")

// ErrCancelled is surfaced once a cancellation signal is observed between
// row evaluations on the async path.
var ErrCancelled = errors.New("cancellation requested")

// Database wraps the synchronous engine core with the host-facing entry
// points. The engine itself is single-threaded: callers that
// share a Database across goroutines must serialize externally, same as
// the underlying registries.
type Database struct {
	mu  sync.Mutex
	eng *engine.Engine
}

// Open creates an empty, ready-to-use database.
func Open() *Database {
	return &Database{eng: engine.New()}
}

// Wrap adapts an already-built engine (e.g. one reconstructed by
// pkg/snapshot) into a Database.
func Wrap(e *engine.Engine) *Database {
	return &Database{eng: e}
}

// Engine exposes the underlying synchronous engine for packages (CLI,
// snapshot) that need direct access to its DB/Functions/AddIns.
func (d *Database) Engine() *engine.Engine { return d.eng }

// AddTable registers an already-built table, failing with ErrDuplicate on
// a name collision.
func (d *Database) AddTable(tbl *store.Table) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.eng.DB.CreateTable(tbl); err != nil {
		return errors.Join(ErrDuplicate, err)
	}
	return nil
}

// RegisterAddIn installs a host callback under name, shadowing any
// built-in of the same name. Last registration for a given name wins.
func (d *Database) RegisterAddIn(name string, fn eval.AddInFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.eng.AddIns.Register(name, fn)
}

// UnregisterAddIn removes a previously registered add-in, reporting
// whether one was present.
func (d *Database) UnregisterAddIn(name string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.eng.AddIns.Unregister(name)
}

// RegisteredAddIns returns the names currently registered.
func (d *Database) RegisteredAddIns() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.eng.AddIns.Names()
}

// ExecuteNonQuery runs sql and returns the number of rows it affected (0
// for DDL and for SELECT).
func (d *Database) ExecuteNonQuery(sql string) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	res, err := d.eng.Execute(sql)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected, nil
}

// ExecuteReader runs sql and returns its column headers and row data.
// Non-SELECT statements return an empty row set.
func (d *Database) ExecuteReader(sql string) ([]string, [][]value.Value, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	res, err := d.eng.Execute(sql)
	if err != nil {
		return nil, nil, err
	}
	return res.Columns, res.Rows, nil
}

// ExecuteScalar runs sql and returns the first column of the first row
// for a SELECT, or the affected-row count as a numeric value for DML/DDL.
func (d *Database) ExecuteScalar(sql string) (value.Value, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	res, err := d.eng.Execute(sql)
	if err != nil {
		return value.Value{}, err
	}
	if len(res.Columns) > 0 {
		if len(res.Rows) == 0 || len(res.Rows[0]) == 0 {
			return value.Null(), nil
		}
		return res.Rows[0][0], nil
	}
	return value.NewInt(int64(res.RowsAffected)), nil
}

// ExecuteNonQueryContext is the async non-query entry point: compute runs
// on a background goroutine via the engine's own ExecuteContext, so
// cancellation is observed before the dispatch begins, between each row
// of a SELECT's filter/projection loops (via the engine), and once more
// here if the goroutine is still running when ctx is done.
func (d *Database) ExecuteNonQueryContext(ctx context.Context, sql string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, ErrCancelled
	}
	type result struct {
		n   int
		err error
	}
	ch := make(chan result, 1)
	go func() {
		d.mu.Lock()
		res, err := d.eng.ExecuteContext(ctx, sql)
		d.mu.Unlock()
		if err != nil {
			ch <- result{0, err}
			return
		}
		ch <- result{res.RowsAffected, nil}
	}()
	select {
	case <-ctx.Done():
		return 0, ErrCancelled
	case r := <-ch:
		if r.err != nil && ctx.Err() != nil {
			return 0, ErrCancelled
		}
		return r.n, r.err
	}
}

// ExecuteReaderContext runs sql on a background goroutine, via the
// engine's ExecuteContext so the SELECT filter/projection loops
// themselves observe ctx between rows, and streams the resulting rows to
// yield, checking ctx again between each row yield; returning false from
// yield stops the stream early without error.
func (d *Database) ExecuteReaderContext(ctx context.Context, sql string, yield func(row []value.Value) bool) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, ErrCancelled
	}

	type result struct {
		cols []string
		rows [][]value.Value
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		d.mu.Lock()
		res, err := d.eng.ExecuteContext(ctx, sql)
		d.mu.Unlock()
		if err != nil {
			ch <- result{err: err}
			return
		}
		ch <- result{cols: res.Columns, rows: res.Rows}
	}()

	var r result
	select {
	case <-ctx.Done():
		return nil, ErrCancelled
	case r = <-ch:
	}
	if r.err != nil {
		if ctx.Err() != nil {
			return nil, ErrCancelled
		}
		return nil, r.err
	}
	for _, row := range r.rows {
		if err := ctx.Err(); err != nil {
			return r.cols, ErrCancelled
		}
		if !yield(row) {
			break
		}
	}
	return r.cols, nil
}
