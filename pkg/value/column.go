package value

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ColType is the coarse declared-type tag carried by a Column.
type ColType int

const (
	ColAny ColType = iota
	ColInt
	ColFloat
	ColBool
	ColText
	ColTimestamp
	ColUuid
)

func (t ColType) String() string {
	switch t {
	case ColInt:
		return "Int"
	case ColFloat:
		return "Float"
	case ColBool:
		return "Bool"
	case ColText:
		return "Text"
	case ColTimestamp:
		return "Timestamp"
	case ColUuid:
		return "Uuid"
	default:
		return "Any"
	}
}

// typeNames maps SQL type-name spellings (as written in CREATE TABLE) to
// the coarse tag used internally. Unknown names default to ColText.
var typeNames = map[string]ColType{
	"INT":              ColInt,
	"INTEGER":          ColInt,
	"BIGINT":           ColInt,
	"SMALLINT":         ColInt,
	"TINYINT":          ColInt,
	"IDENTITY":         ColInt,
	"FLOAT":            ColFloat,
	"REAL":             ColFloat,
	"DOUBLE":           ColFloat,
	"DECIMAL":          ColFloat,
	"NUMERIC":          ColFloat,
	"MONEY":            ColFloat,
	"BIT":              ColBool,
	"BOOL":             ColBool,
	"BOOLEAN":          ColBool,
	"VARCHAR":          ColText,
	"NVARCHAR":         ColText,
	"CHAR":             ColText,
	"NCHAR":            ColText,
	"TEXT":             ColText,
	"STRING":           ColText,
	"DATETIME":         ColTimestamp,
	"DATETIME2":        ColTimestamp,
	"DATE":             ColTimestamp,
	"TIME":             ColTimestamp,
	"TIMESTAMP":        ColTimestamp,
	"SMALLDATETIME":    ColTimestamp,
	"UNIQUEIDENTIFIER": ColUuid,
	"GUID":             ColUuid,
	"UUID":             ColUuid,
}

// LookupColType maps a parsed SQL type name to its coarse tag. Unknown
// type names default to Text.
func LookupColType(name string) ColType {
	if t, ok := typeNames[strings.ToUpper(name)]; ok {
		return t
	}
	return ColText
}

// Column describes one table column: its name and declared coarse type.
// The declared type is inferred from the first non-null inserted value
// when the column was created as ColAny.
type Column struct {
	Name string
	Type ColType
}

// Coerce converts v to c's declared type, as required on INSERT/UPDATE.
// Null always passes through. ColAny accepts any value as-is; the caller
// is responsible for narrowing ColAny to the first non-null value's type.
func (c Column) Coerce(v Value) (Value, error) {
	if v.IsNull() {
		return v, nil
	}
	switch c.Type {
	case ColAny:
		return v, nil
	case ColInt:
		i, err := coerceInt(v)
		if err != nil {
			return Value{}, err
		}
		return NewInt(i), nil
	case ColFloat:
		f, err := coerceFloat(v)
		if err != nil {
			return Value{}, err
		}
		return NewFloat(f), nil
	case ColBool:
		b, err := coerceBool(v)
		if err != nil {
			return Value{}, err
		}
		return NewBool(b), nil
	case ColText:
		return NewText(v.AsText()), nil
	case ColTimestamp:
		t, err := coerceTimestamp(v)
		if err != nil {
			return Value{}, err
		}
		return NewTimestamp(t), nil
	case ColUuid:
		return NewUuid(v.AsText()), nil
	default:
		return v, nil
	}
}

func coerceInt(v Value) (int64, error) {
	switch v.Kind() {
	case KindInt:
		return v.Int(), nil
	case KindFloat:
		return int64(v.Float()), nil
	case KindBool:
		if v.Bool() {
			return 1, nil
		}
		return 0, nil
	case KindText:
		i, err := strconv.ParseInt(strings.TrimSpace(v.Text()), 10, 64)
		if err == nil {
			return i, nil
		}
		f, err2 := strconv.ParseFloat(strings.TrimSpace(v.Text()), 64)
		if err2 != nil {
			return 0, fmt.Errorf("%w: %q is not an integer", ErrTypeMismatch, v.Text())
		}
		return int64(f), nil
	default:
		return 0, fmt.Errorf("%w: cannot coerce %s to Int", ErrTypeMismatch, v.Kind())
	}
}

func coerceFloat(v Value) (float64, error) {
	f, err := v.AsFloat()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrTypeMismatch, err)
	}
	return f, nil
}

func coerceBool(v Value) (bool, error) {
	switch v.Kind() {
	case KindBool:
		return v.Bool(), nil
	case KindInt:
		return v.Int() != 0, nil
	case KindFloat:
		return v.Float() != 0, nil
	case KindText:
		switch strings.ToLower(strings.TrimSpace(v.Text())) {
		case "1", "true", "t", "yes":
			return true, nil
		case "0", "false", "f", "no":
			return false, nil
		default:
			return false, fmt.Errorf("%w: %q is not a boolean", ErrTypeMismatch, v.Text())
		}
	default:
		return false, fmt.Errorf("%w: cannot coerce %s to Bool", ErrTypeMismatch, v.Kind())
	}
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func coerceTimestamp(v Value) (time.Time, error) {
	if v.Kind() == KindTimestamp {
		return v.Timestamp(), nil
	}
	s := v.AsText()
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q is not a timestamp", ErrTypeMismatch, s)
}
