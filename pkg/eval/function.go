// pkg/eval/function.go
//
// The built-in scalar function table. Built-ins resolve last,
// after user functions and add-ins, so either can shadow a name here.
package eval

import (
	"crypto/rand"
	"fmt"
	"math"
	"strings"
	"time"

	"quill/pkg/value"
)

// BuiltinFunc is a scalar built-in's implementation.
type BuiltinFunc func(args []value.Value) (value.Value, error)

// BuiltinRegistry holds the built-in function table, keyed
// case-insensitively.
type BuiltinRegistry struct {
	fns map[string]BuiltinFunc
}

func NewBuiltinRegistry() *BuiltinRegistry {
	return &BuiltinRegistry{fns: make(map[string]BuiltinFunc)}
}

func (r *BuiltinRegistry) Register(name string, fn BuiltinFunc) {
	r.fns[strings.ToUpper(name)] = fn
}

func (r *BuiltinRegistry) Lookup(name string) (BuiltinFunc, bool) {
	fn, ok := r.fns[strings.ToUpper(name)]
	return fn, ok
}

// DefaultBuiltins is the standard function table wired into every fresh
// EvalContext.
var DefaultBuiltins = buildDefaultBuiltins()

func arg(args []value.Value, i int) value.Value {
	if i < len(args) {
		return args[i]
	}
	return value.Null()
}

func argText(args []value.Value, i int) string {
	return arg(args, i).AsText()
}

func argInt(args []value.Value, i int) (int64, error) {
	return arg(args, i).AsInt()
}

func anyNull(args ...value.Value) bool {
	for _, a := range args {
		if a.IsNull() {
			return true
		}
	}
	return false
}

func buildDefaultBuiltins() *BuiltinRegistry {
	r := NewBuiltinRegistry()

	// --- string functions ---

	r.Register("LENGTH", func(a []value.Value) (value.Value, error) {
		if arg(a, 0).IsNull() {
			return value.Null(), nil
		}
		return value.NewInt(int64(len(argText(a, 0)))), nil
	})
	r.Register("LEN", func(a []value.Value) (value.Value, error) {
		return r.call("LENGTH", a)
	})
	r.Register("UPPER", func(a []value.Value) (value.Value, error) {
		if arg(a, 0).IsNull() {
			return value.Null(), nil
		}
		return value.NewText(strings.ToUpper(argText(a, 0))), nil
	})
	r.Register("LOWER", func(a []value.Value) (value.Value, error) {
		if arg(a, 0).IsNull() {
			return value.Null(), nil
		}
		return value.NewText(strings.ToLower(argText(a, 0))), nil
	})
	r.Register("TRIM", func(a []value.Value) (value.Value, error) {
		if arg(a, 0).IsNull() {
			return value.Null(), nil
		}
		return value.NewText(strings.TrimSpace(argText(a, 0))), nil
	})
	r.Register("LTRIM", func(a []value.Value) (value.Value, error) {
		if arg(a, 0).IsNull() {
			return value.Null(), nil
		}
		return value.NewText(strings.TrimLeft(argText(a, 0), " \t\n\r")), nil
	})
	r.Register("RTRIM", func(a []value.Value) (value.Value, error) {
		if arg(a, 0).IsNull() {
			return value.Null(), nil
		}
		return value.NewText(strings.TrimRight(argText(a, 0), " \t\n\r")), nil
	})
	r.Register("CONCAT", func(a []value.Value) (value.Value, error) {
		var b strings.Builder
		for _, v := range a {
			if !v.IsNull() {
				b.WriteString(v.AsText())
			}
		}
		return value.NewText(b.String()), nil
	})
	r.Register("CONCAT_WS", func(a []value.Value) (value.Value, error) {
		if len(a) == 0 {
			return value.NewText(""), nil
		}
		sep := argText(a, 0)
		var parts []string
		for _, v := range a[1:] {
			if !v.IsNull() {
				parts = append(parts, v.AsText())
			}
		}
		return value.NewText(strings.Join(parts, sep)), nil
	})
	r.Register("SUBSTRING", substrFn)
	r.Register("SUBSTR", substrFn)
	r.Register("LEFT", func(a []value.Value) (value.Value, error) {
		if anyNull(arg(a, 0), arg(a, 1)) {
			return value.Null(), nil
		}
		s := argText(a, 0)
		n, err := argInt(a, 1)
		if err != nil {
			return value.Null(), evalErrorf("%v", err)
		}
		runes := []rune(s)
		if n < 0 {
			n = 0
		}
		if n > int64(len(runes)) {
			n = int64(len(runes))
		}
		return value.NewText(string(runes[:n])), nil
	})
	r.Register("RIGHT", func(a []value.Value) (value.Value, error) {
		if anyNull(arg(a, 0), arg(a, 1)) {
			return value.Null(), nil
		}
		s := argText(a, 0)
		n, err := argInt(a, 1)
		if err != nil {
			return value.Null(), evalErrorf("%v", err)
		}
		runes := []rune(s)
		if n < 0 {
			n = 0
		}
		if n > int64(len(runes)) {
			n = int64(len(runes))
		}
		return value.NewText(string(runes[int64(len(runes))-n:])), nil
	})
	r.Register("REPEAT", func(a []value.Value) (value.Value, error) {
		if anyNull(arg(a, 0), arg(a, 1)) {
			return value.Null(), nil
		}
		n, err := argInt(a, 1)
		if err != nil || n < 0 {
			return value.NewText(""), nil
		}
		return value.NewText(strings.Repeat(argText(a, 0), int(n))), nil
	})
	r.Register("SPACE", func(a []value.Value) (value.Value, error) {
		n, err := argInt(a, 0)
		if err != nil || n < 0 {
			return value.NewText(""), nil
		}
		return value.NewText(strings.Repeat(" ", int(n))), nil
	})
	r.Register("REPLACE", func(a []value.Value) (value.Value, error) {
		if anyNull(arg(a, 0), arg(a, 1), arg(a, 2)) {
			return value.Null(), nil
		}
		return value.NewText(strings.ReplaceAll(argText(a, 0), argText(a, 1), argText(a, 2))), nil
	})
	r.Register("REVERSE", func(a []value.Value) (value.Value, error) {
		if arg(a, 0).IsNull() {
			return value.Null(), nil
		}
		runes := []rune(argText(a, 0))
		for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
			runes[i], runes[j] = runes[j], runes[i]
		}
		return value.NewText(string(runes)), nil
	})
	r.Register("ASCII", func(a []value.Value) (value.Value, error) {
		s := argText(a, 0)
		if s == "" {
			return value.Null(), nil
		}
		return value.NewInt(int64(s[0])), nil
	})
	r.Register("CHAR", charFn)
	r.Register("CHR", charFn)
	r.Register("CHARINDEX", func(a []value.Value) (value.Value, error) {
		needle, hay := argText(a, 0), argText(a, 1)
		idx := strings.Index(strings.ToUpper(hay), strings.ToUpper(needle))
		return value.NewInt(int64(idx + 1)), nil
	})
	r.Register("LOCATE", func(a []value.Value) (value.Value, error) {
		return r.call("CHARINDEX", a)
	})
	r.Register("INSTR", func(a []value.Value) (value.Value, error) {
		hay, needle := argText(a, 0), argText(a, 1)
		idx := strings.Index(strings.ToUpper(hay), strings.ToUpper(needle))
		return value.NewInt(int64(idx + 1)), nil
	})
	r.Register("PATINDEX", func(a []value.Value) (value.Value, error) {
		pattern, text := argText(a, 0), argText(a, 1)
		pattern = strings.Trim(pattern, "%")
		idx := strings.Index(strings.ToUpper(text), strings.ToUpper(pattern))
		return value.NewInt(int64(idx + 1)), nil
	})
	r.Register("STR", func(a []value.Value) (value.Value, error) {
		return value.NewText(argText(a, 0)), nil
	})
	r.Register("TOSTRING", func(a []value.Value) (value.Value, error) {
		return value.NewText(argText(a, 0)), nil
	})
	r.Register("TO_CHAR", func(a []value.Value) (value.Value, error) {
		return value.NewText(argText(a, 0)), nil
	})

	// --- numeric functions ---

	r.Register("ABS", unaryFloat(math.Abs))
	r.Register("CEIL", unaryFloat(math.Ceil))
	r.Register("CEILING", unaryFloat(math.Ceil))
	r.Register("FLOOR", unaryFloat(math.Floor))
	r.Register("SQRT", unaryFloat(math.Sqrt))
	r.Register("EXP", unaryFloat(math.Exp))
	r.Register("LN", unaryFloat(math.Log))
	r.Register("LOG10", unaryFloat(math.Log10))
	r.Register("SIGN", func(a []value.Value) (value.Value, error) {
		f, err := arg(a, 0).AsFloat()
		if err != nil {
			return value.Null(), evalErrorf("%v", err)
		}
		switch {
		case f > 0:
			return value.NewInt(1), nil
		case f < 0:
			return value.NewInt(-1), nil
		default:
			return value.NewInt(0), nil
		}
	})
	r.Register("LOG", func(a []value.Value) (value.Value, error) {
		if arg(a, 0).IsNull() {
			return value.Null(), nil
		}
		f, err := arg(a, 0).AsFloat()
		if err != nil {
			return value.Null(), evalErrorf("%v", err)
		}
		if len(a) > 1 {
			base, err := a[1].AsFloat()
			if err != nil {
				return value.Null(), evalErrorf("%v", err)
			}
			return value.NewFloat(math.Log(f) / math.Log(base)), nil
		}
		return value.NewFloat(math.Log(f)), nil
	})
	r.Register("ROUND", func(a []value.Value) (value.Value, error) {
		if arg(a, 0).IsNull() {
			return value.Null(), nil
		}
		f, err := arg(a, 0).AsFloat()
		if err != nil {
			return value.Null(), evalErrorf("%v", err)
		}
		places := int64(0)
		if len(a) > 1 {
			places, _ = a[1].AsInt()
		}
		mult := math.Pow(10, float64(places))
		return value.NewFloat(math.Round(f*mult) / mult), nil
	})
	r.Register("POWER", func(a []value.Value) (value.Value, error) {
		base, err := arg(a, 0).AsFloat()
		if err != nil {
			return value.Null(), evalErrorf("%v", err)
		}
		exp, err := arg(a, 1).AsFloat()
		if err != nil {
			return value.Null(), evalErrorf("%v", err)
		}
		return value.NewFloat(math.Pow(base, exp)), nil
	})
	r.Register("MOD", func(a []value.Value) (value.Value, error) {
		return value.Mod(arg(a, 0), arg(a, 1))
	})

	// --- null-handling / flow functions ---

	r.Register("COALESCE", func(a []value.Value) (value.Value, error) {
		for _, v := range a {
			if !v.IsNull() {
				return v, nil
			}
		}
		return value.Null(), nil
	})
	r.Register("ISNULL", func(a []value.Value) (value.Value, error) {
		if !arg(a, 0).IsNull() {
			return arg(a, 0), nil
		}
		return arg(a, 1), nil
	})
	r.Register("NULLIF", func(a []value.Value) (value.Value, error) {
		if value.Equal(arg(a, 0), arg(a, 1)) {
			return value.Null(), nil
		}
		return arg(a, 0), nil
	})
	r.Register("IIF", func(a []value.Value) (value.Value, error) {
		if arg(a, 0).IsTruthy() {
			return arg(a, 1), nil
		}
		return arg(a, 2), nil
	})
	r.Register("IF", func(a []value.Value) (value.Value, error) {
		return r.call("IIF", a)
	})

	// --- date/time functions ---

	r.Register("NOW", func(a []value.Value) (value.Value, error) {
		return value.NewTimestamp(nowFunc()), nil
	})
	r.Register("CURRENT_TIMESTAMP", func(a []value.Value) (value.Value, error) {
		return value.NewTimestamp(nowFunc()), nil
	})
	r.Register("YEAR", dateField(func(t time.Time) int64 { return int64(t.Year()) }))
	r.Register("MONTH", dateField(func(t time.Time) int64 { return int64(t.Month()) }))
	r.Register("DAY", dateField(func(t time.Time) int64 { return int64(t.Day()) }))
	r.Register("HOUR", dateField(func(t time.Time) int64 { return int64(t.Hour()) }))
	r.Register("MINUTE", dateField(func(t time.Time) int64 { return int64(t.Minute()) }))
	r.Register("SECOND", dateField(func(t time.Time) int64 { return int64(t.Second()) }))
	r.Register("DATEADD", func(a []value.Value) (value.Value, error) {
		part := strings.ToUpper(argText(a, 0))
		n, err := argInt(a, 1)
		if err != nil {
			return value.Null(), evalErrorf("%v", err)
		}
		t := arg(a, 2).Timestamp()
		return value.NewTimestamp(addDatePart(t, part, n)), nil
	})
	r.Register("DATEDIFF", func(a []value.Value) (value.Value, error) {
		part := strings.ToUpper(argText(a, 0))
		t1 := arg(a, 1).Timestamp()
		t2 := arg(a, 2).Timestamp()
		return value.NewInt(datePartDiff(part, t1, t2)), nil
	})

	// --- identifier generation ---

	r.Register("NEWID", func(a []value.Value) (value.Value, error) {
		u, err := newUUID()
		if err != nil {
			return value.Null(), err
		}
		return value.NewUuid(u), nil
	})
	r.Register("UUID", func(a []value.Value) (value.Value, error) {
		return r.call("NEWID", a)
	})
	r.Register("NEWGUID", func(a []value.Value) (value.Value, error) {
		return r.call("NEWID", a)
	})

	return r
}

func (r *BuiltinRegistry) call(name string, args []value.Value) (value.Value, error) {
	fn, ok := r.Lookup(name)
	if !ok {
		return value.Null(), evalErrorf("unknown built-in %q", name)
	}
	return fn(args)
}

func unaryFloat(f func(float64) float64) BuiltinFunc {
	return func(a []value.Value) (value.Value, error) {
		if arg(a, 0).IsNull() {
			return value.Null(), nil
		}
		v, err := arg(a, 0).AsFloat()
		if err != nil {
			return value.Null(), evalErrorf("%v", err)
		}
		return value.NewFloat(f(v)), nil
	}
}

func dateField(f func(time.Time) int64) BuiltinFunc {
	return func(a []value.Value) (value.Value, error) {
		if arg(a, 0).IsNull() {
			return value.Null(), nil
		}
		return value.NewInt(f(arg(a, 0).Timestamp())), nil
	}
}

func substrFn(a []value.Value) (value.Value, error) {
	if arg(a, 0).IsNull() {
		return value.Null(), nil
	}
	s := []rune(argText(a, 0))
	start, err := argInt(a, 1)
	if err != nil {
		return value.Null(), evalErrorf("%v", err)
	}
	length := int64(len(s)) - start + 1
	if len(a) > 2 {
		length, err = argInt(a, 2)
		if err != nil {
			return value.Null(), evalErrorf("%v", err)
		}
	}
	// SQL SUBSTRING is 1-indexed.
	begin := start - 1
	if begin < 0 {
		length += begin
		begin = 0
	}
	if begin >= int64(len(s)) || length <= 0 {
		return value.NewText(""), nil
	}
	end := begin + length
	if end > int64(len(s)) {
		end = int64(len(s))
	}
	return value.NewText(string(s[begin:end])), nil
}

func charFn(a []value.Value) (value.Value, error) {
	n, err := argInt(a, 0)
	if err != nil {
		return value.Null(), evalErrorf("%v", err)
	}
	return value.NewText(string(rune(n))), nil
}

// nowFunc is a package-level indirection so tests can stub the clock.
var nowFunc = time.Now

func addDatePart(t time.Time, part string, n int64) time.Time {
	switch part {
	case "YEAR", "YY", "YYYY":
		return t.AddDate(int(n), 0, 0)
	case "MONTH", "MM", "M":
		return t.AddDate(0, int(n), 0)
	case "DAY", "DD", "D":
		return t.AddDate(0, 0, int(n))
	case "HOUR", "HH":
		return t.Add(time.Duration(n) * time.Hour)
	case "MINUTE", "MI", "N":
		return t.Add(time.Duration(n) * time.Minute)
	case "SECOND", "SS", "S":
		return t.Add(time.Duration(n) * time.Second)
	case "WEEK", "WK", "WW":
		return t.AddDate(0, 0, int(n)*7)
	default:
		return t.AddDate(0, 0, int(n))
	}
}

func datePartDiff(part string, t1, t2 time.Time) int64 {
	d := t2.Sub(t1)
	switch part {
	case "YEAR", "YY", "YYYY":
		return int64(t2.Year() - t1.Year())
	case "MONTH", "MM", "M":
		return int64((t2.Year()-t1.Year())*12 + int(t2.Month()) - int(t1.Month()))
	case "DAY", "DD", "D":
		return int64(d.Hours() / 24)
	case "HOUR", "HH":
		return int64(d.Hours())
	case "MINUTE", "MI", "N":
		return int64(d.Minutes())
	case "SECOND", "SS", "S":
		return int64(d.Seconds())
	case "WEEK", "WK", "WW":
		return int64(d.Hours() / 24 / 7)
	default:
		return int64(d.Seconds())
	}
}

// newUUID generates a random (version 4) UUID string. The example pack
// carries no UUID library (see the design notes), so this is built
// directly on crypto/rand per RFC 4122.
func newUUID() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("%w: generating uuid: %v", ErrEval, err)
	}
	b[6] = (b[6] & 0x0f) | 0x40
	b[8] = (b[8] & 0x3f) | 0x80
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:16]), nil
}
