package eval

import "quill/pkg/value"

// TableCatalog is the subset of the store an EvalContext can carry:
// column type lookup by table and column name. The evaluator itself does
// not consult it; CAST resolves its target from the type name. The store
// package supplies the concrete implementation; eval only depends on
// this narrow interface to avoid an import cycle.
type TableCatalog interface {
	ColumnType(table, column string) (value.ColType, bool)
}

// EvalContext carries everything Eval needs to resolve a token slice: the
// current row's column bindings, the registries a bare function-call
// identifier is checked against in order, and (optionally) the table
// catalog.
type EvalContext struct {
	Row       Row
	Functions *FunctionRegistry
	AddIns    *AddInRegistry
	Builtins  *BuiltinRegistry
	Catalog   TableCatalog

	// depth guards against unbounded recursion through user function
	// calls that (directly or indirectly) call themselves.
	depth int
}

const maxCallDepth = 64

// NewEvalContext builds a context over an empty row, wiring the given
// registries and the package-default built-in registry.
func NewEvalContext(fns *FunctionRegistry, addIns *AddInRegistry) *EvalContext {
	builtins := DefaultBuiltins
	return &EvalContext{
		Row:       NewRow(),
		Functions: fns,
		AddIns:    addIns,
		Builtins:  builtins,
	}
}

// WithRow returns a shallow copy of the context bound to a different row,
// sharing registries and catalog. Used to evaluate the same clause (e.g.
// a WHERE predicate) across many rows without re-wiring the context.
func (c *EvalContext) WithRow(r Row) *EvalContext {
	cp := *c
	cp.Row = r
	return &cp
}

// childCall returns a context for evaluating a user function body: a
// fresh row containing only the call's parameter bindings, sharing
// registries, with the recursion depth incremented.
func (c *EvalContext) childCall(params Row) (*EvalContext, error) {
	if c.depth+1 >= maxCallDepth {
		return nil, errTooDeep
	}
	return &EvalContext{
		Row:       params,
		Functions: c.Functions,
		AddIns:    c.AddIns,
		Builtins:  c.Builtins,
		Catalog:   c.Catalog,
		depth:     c.depth + 1,
	}, nil
}
