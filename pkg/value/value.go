// Package value implements the engine's dynamically typed cell
// representation and its coercion, comparison, and ordering rules.
package value

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrDivideByZero is raised by Div and Mod on a zero divisor; it aborts
// the current statement per the engine's error propagation policy.
var ErrDivideByZero = errors.New("division by zero")

// ErrTypeMismatch is raised when an inserted or updated value cannot be
// coerced to a column's declared type. Nulls are always allowed and never
// trigger this error.
var ErrTypeMismatch = errors.New("type mismatch")

// Kind tags the dynamic type carried by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindText
	KindTimestamp
	KindUuid
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "Null"
	case KindBool:
		return "Bool"
	case KindInt:
		return "Int"
	case KindFloat:
		return "Float"
	case KindText:
		return "Text"
	case KindTimestamp:
		return "Timestamp"
	case KindUuid:
		return "Uuid"
	default:
		return "Unknown"
	}
}

// Value is the dynamically typed sum used for every cell, literal, and
// expression result in the engine: Null | Bool | Int | Float | Text |
// Timestamp | Uuid.
type Value struct {
	kind  Kind
	b     bool
	i     int64
	f     float64
	s     string
	ts    time.Time
}

func Null() Value                  { return Value{kind: KindNull} }
func NewBool(b bool) Value         { return Value{kind: KindBool, b: b} }
func NewInt(i int64) Value         { return Value{kind: KindInt, i: i} }
func NewFloat(f float64) Value     { return Value{kind: KindFloat, f: f} }
func NewText(s string) Value       { return Value{kind: KindText, s: s} }
func NewTimestamp(t time.Time) Value {
	return Value{kind: KindTimestamp, ts: t}
}
func NewUuid(s string) Value { return Value{kind: KindUuid, s: s} }

func (v Value) Kind() Kind     { return v.kind }
func (v Value) IsNull() bool   { return v.kind == KindNull }
func (v Value) Bool() bool     { return v.b }
func (v Value) Int() int64     { return v.i }
func (v Value) Float() float64 { return v.f }
func (v Value) Text() string   { return v.s }
func (v Value) Timestamp() time.Time { return v.ts }
func (v Value) Uuid() string   { return v.s }

// IsNumeric reports whether v carries an Int or Float payload.
func (v Value) IsNumeric() bool { return v.kind == KindInt || v.kind == KindFloat }

// AsFloat coerces a value to float64 for numeric arithmetic, falling back
// to textual parsing for Text and Bool per the coercion rules.
func (v Value) AsFloat() (float64, error) {
	switch v.kind {
	case KindInt:
		return float64(v.i), nil
	case KindFloat:
		return v.f, nil
	case KindBool:
		if v.b {
			return 1, nil
		}
		return 0, nil
	case KindText:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.s), 64)
		if err != nil {
			return 0, fmt.Errorf("cannot coerce %q to a number", v.s)
		}
		return f, nil
	case KindNull:
		return 0, nil
	default:
		return 0, fmt.Errorf("cannot coerce %s to a number", v.kind)
	}
}

// AsInt coerces a value to int64, via AsFloat when it isn't already
// integral, matching the "both sides long" fast path used by binary ops.
func (v Value) AsInt() (int64, error) {
	if v.kind == KindInt {
		return v.i, nil
	}
	f, err := v.AsFloat()
	if err != nil {
		return 0, err
	}
	return int64(f), nil
}

// AsText renders the canonical textual form of a value, used for string
// concatenation, CAST AS TEXT, group-key composition, and DISTINCT.
func (v Value) AsText() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindText:
		return v.s
	case KindTimestamp:
		return v.ts.UTC().Format(time.RFC3339Nano)
	case KindUuid:
		return v.s
	default:
		return ""
	}
}

// IsTruthy implements the engine's collapsed (two-valued) boolean
// coercion: null -> false; number -> nonzero; text -> nonempty; other ->
// true.
func (v Value) IsTruthy() bool {
	switch v.kind {
	case KindNull:
		return false
	case KindBool:
		return v.b
	case KindInt:
		return v.i != 0
	case KindFloat:
		return v.f != 0
	case KindText:
		return v.s != ""
	default:
		return true
	}
}

// Equal implements the engine's equality rule: text compares case
// insensitively, numeric equality ignores the int/float split, and null
// equals only null.
func Equal(a, b Value) bool {
	if a.kind == KindNull || b.kind == KindNull {
		return a.kind == KindNull && b.kind == KindNull
	}
	if a.IsNumeric() && b.IsNumeric() {
		fa, _ := a.AsFloat()
		fb, _ := b.AsFloat()
		return fa == fb
	}
	if a.kind == KindText || b.kind == KindText {
		return strings.EqualFold(a.AsText(), b.AsText())
	}
	if a.kind == KindTimestamp && b.kind == KindTimestamp {
		return a.ts.Equal(b.ts)
	}
	if a.kind == KindBool && b.kind == KindBool {
		return a.b == b.b
	}
	return strings.EqualFold(a.AsText(), b.AsText())
}

// Compare implements the engine's total order: nulls sort smallest,
// numerics compare numerically, timestamps chronologically, everything
// else by case-insensitive text comparison. Returns <0, 0, >0.
func Compare(a, b Value) int {
	if a.kind == KindNull && b.kind == KindNull {
		return 0
	}
	if a.kind == KindNull {
		return -1
	}
	if b.kind == KindNull {
		return 1
	}
	if a.IsNumeric() && b.IsNumeric() {
		fa, _ := a.AsFloat()
		fb, _ := b.AsFloat()
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		default:
			return 0
		}
	}
	if a.kind == KindTimestamp && b.kind == KindTimestamp {
		switch {
		case a.ts.Before(b.ts):
			return -1
		case a.ts.After(b.ts):
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(strings.ToLower(a.AsText()), strings.ToLower(b.AsText()))
}

// Add implements the polymorphic '+' operator: string concatenation if
// either side is Text, numeric addition otherwise.
func Add(a, b Value) (Value, error) {
	if a.kind == KindText || b.kind == KindText {
		return NewText(a.AsText() + b.AsText()), nil
	}
	return arith(a, b, func(x, y float64) float64 { return x + y }, func(x, y int64) int64 { return x + y })
}

// Sub and Mul implement '-' and '*': numeric coercion on both sides, long
// arithmetic when both sides are integer-typed, float arithmetic
// otherwise. Mod ('%') always coerces both sides to integers.
func Sub(a, b Value) (Value, error) {
	return arith(a, b, func(x, y float64) float64 { return x - y }, func(x, y int64) int64 { return x - y })
}

func Mul(a, b Value) (Value, error) {
	return arith(a, b, func(x, y float64) float64 { return x * y }, func(x, y int64) int64 { return x * y })
}

// Div always produces a float result per the "division is never long"
// rule, and raises an error on division by zero.
func Div(a, b Value) (Value, error) {
	fa, err := a.AsFloat()
	if err != nil {
		return Value{}, err
	}
	fb, err := b.AsFloat()
	if err != nil {
		return Value{}, err
	}
	if fb == 0 {
		return Value{}, ErrDivideByZero
	}
	return NewFloat(fa / fb), nil
}

func Mod(a, b Value) (Value, error) {
	ia, err := a.AsInt()
	if err != nil {
		return Value{}, err
	}
	ib, err := b.AsInt()
	if err != nil {
		return Value{}, err
	}
	if ib == 0 {
		return Value{}, ErrDivideByZero
	}
	return NewInt(ia % ib), nil
}

func arith(a, b Value, ffn func(float64, float64) float64, ifn func(int64, int64) int64) (Value, error) {
	if a.kind == KindInt && b.kind == KindInt {
		return NewInt(ifn(a.i, b.i)), nil
	}
	fa, err := a.AsFloat()
	if err != nil {
		return Value{}, err
	}
	fb, err := b.AsFloat()
	if err != nil {
		return Value{}, err
	}
	return NewFloat(ffn(fa, fb)), nil
}
