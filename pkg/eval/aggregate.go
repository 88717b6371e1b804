// pkg/eval/aggregate.go
//
// Aggregates are detected syntactically at parse time (parser.SelectItem
// .IsAggregate/.AggFunc/.AggDistinct/.AggArgs). Two places need to agree
// on the same identity for "this is the same aggregate call": the
// SELECT-list precompute step, which groups rows and runs Init/Step/
// Finalize once per distinct call, and the evaluator's runtime probe,
// which needs to recognize that same call when it turns up nested inside
// a HAVING or ORDER BY expression. CanonicalAggKey is the single
// function both call so the keys can never drift apart.
package eval

import (
	"strings"

	"quill/pkg/sql/lexer"
	"quill/pkg/sql/parser"
	"quill/pkg/value"
)

// aggregateFuncs names the syntactic aggregate functions:
// a call to one of these is never an ordinary function call.
var aggregateFuncs = map[string]bool{
	"COUNT": true,
	"SUM":   true,
	"AVG":   true,
	"MIN":   true,
	"MAX":   true,
}

// CanonicalAggKey builds the canonical identity of an aggregate call:
// FUNC([DISTINCT ]argsText). argsText is the space-joined literal text
// of the argument tokens (or "*" for COUNT(*)).
func CanonicalAggKey(fn string, distinct bool, args []lexer.Token) string {
	var b strings.Builder
	b.WriteString(strings.ToUpper(fn))
	b.WriteByte('(')
	if distinct {
		b.WriteString("DISTINCT ")
	}
	b.WriteString(parser.RenderExpr(args))
	b.WriteByte(')')
	return b.String()
}

// Aggregate accumulates one group's worth of input values for a single
// aggregate call.
type Aggregate interface {
	Init()
	Step(v value.Value)
	Finalize() value.Value
}

// NewAggregate constructs the accumulator for fn, wrapping it with
// distinct-tracking when distinct is true. isStar is set for the
// COUNT(*) form, which counts every row regardless of nullness.
func NewAggregate(fn string, distinct, isStar bool) Aggregate {
	var base Aggregate
	switch strings.ToUpper(fn) {
	case "COUNT":
		base = &countAgg{countStar: isStar}
	case "SUM":
		base = &sumAgg{}
	case "AVG":
		base = &avgAgg{}
	case "MIN":
		base = &minMaxAgg{isMin: true}
	case "MAX":
		base = &minMaxAgg{isMin: false}
	default:
		base = &countAgg{}
	}
	if distinct {
		return &distinctAgg{inner: base, seen: make(map[string]bool)}
	}
	return base
}

type countAgg struct {
	n         int64
	countStar bool
}

func (a *countAgg) Init() { a.n = 0 }
func (a *countAgg) Step(v value.Value) {
	if a.countStar || !v.IsNull() {
		a.n++
	}
}
func (a *countAgg) Finalize() value.Value { return value.NewInt(a.n) }

type sumAgg struct {
	sum    float64
	isInt  bool
	intSum int64
	any    bool
}

func (a *sumAgg) Init() { *a = sumAgg{isInt: true} }
func (a *sumAgg) Step(v value.Value) {
	if v.IsNull() {
		return
	}
	a.any = true
	if v.Kind() == value.KindInt && a.isInt {
		a.intSum += v.Int()
		return
	}
	f, err := v.AsFloat()
	if err != nil {
		return
	}
	if a.isInt {
		a.sum = float64(a.intSum)
		a.isInt = false
	}
	a.sum += f
}
func (a *sumAgg) Finalize() value.Value {
	if !a.any {
		return value.NewInt(0)
	}
	if a.isInt {
		return value.NewInt(a.intSum)
	}
	return value.NewFloat(a.sum)
}

type avgAgg struct {
	sum float64
	n   int64
}

func (a *avgAgg) Init() { a.sum, a.n = 0, 0 }
func (a *avgAgg) Step(v value.Value) {
	if v.IsNull() {
		return
	}
	f, err := v.AsFloat()
	if err != nil {
		return
	}
	a.sum += f
	a.n++
}
func (a *avgAgg) Finalize() value.Value {
	if a.n == 0 {
		return value.NewInt(0)
	}
	return value.NewFloat(a.sum / float64(a.n))
}

type minMaxAgg struct {
	isMin bool
	has   bool
	best  value.Value
}

func (a *minMaxAgg) Init() { a.has = false }
func (a *minMaxAgg) Step(v value.Value) {
	if v.IsNull() {
		return
	}
	if !a.has {
		a.best = v
		a.has = true
		return
	}
	cmp := value.Compare(v, a.best)
	if (a.isMin && cmp < 0) || (!a.isMin && cmp > 0) {
		a.best = v
	}
}
func (a *minMaxAgg) Finalize() value.Value {
	if !a.has {
		return value.Null()
	}
	return a.best
}

// distinctAgg wraps another Aggregate so that only the first occurrence
// of each distinct (by rendered text) value reaches the inner Step.
type distinctAgg struct {
	inner Aggregate
	seen  map[string]bool
}

func (a *distinctAgg) Init() {
	a.inner.Init()
	a.seen = make(map[string]bool)
}
func (a *distinctAgg) Step(v value.Value) {
	key := v.Kind().String() + ":" + v.AsText()
	if a.seen[key] {
		return
	}
	a.seen[key] = true
	a.inner.Step(v)
}
func (a *distinctAgg) Finalize() value.Value { return a.inner.Finalize() }

// rowLevelAggregate returns the placeholder contribution an aggregate
// call makes when it is evaluated directly against a single row rather
// than through the grouped SELECT-list precompute (design notes 9): it
// is what that row alone would contribute to the aggregate, used when
// an aggregate call surfaces somewhere Eval walks it directly instead of
// being intercepted upstream.
func rowLevelAggregate(fn string) (func([]value.Value) value.Value, bool) {
	switch fn {
	case "COUNT":
		return func(args []value.Value) value.Value {
			if len(args) == 0 {
				return value.NewInt(1)
			}
			if args[0].IsNull() {
				return value.NewInt(0)
			}
			return value.NewInt(1)
		}, true
	case "SUM", "AVG", "MIN", "MAX":
		return func(args []value.Value) value.Value {
			if len(args) == 0 || args[0].IsNull() {
				return value.Null()
			}
			return args[0]
		}, true
	}
	return nil, false
}
