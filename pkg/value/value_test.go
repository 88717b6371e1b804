package value

import "testing"

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"null equals null", Null(), Null(), true},
		{"null never equals zero", Null(), NewInt(0), false},
		{"int equals float", NewInt(2), NewFloat(2.0), true},
		{"text case insensitive", NewText("Hello"), NewText("hello"), true},
		{"bool mismatch", NewBool(true), NewBool(false), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Equal(tt.a, tt.b); got != tt.want {
				t.Errorf("Equal(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestCompareNullsFirst(t *testing.T) {
	if Compare(Null(), NewInt(1)) >= 0 {
		t.Error("null should sort before any non-null value")
	}
	if Compare(NewInt(1), Null()) <= 0 {
		t.Error("non-null value should sort after null")
	}
	if Compare(Null(), Null()) != 0 {
		t.Error("null should compare equal to null")
	}
}

func TestIsTruthy(t *testing.T) {
	tests := []struct {
		v    Value
		want bool
	}{
		{Null(), false},
		{NewInt(0), false},
		{NewInt(1), true},
		{NewText(""), false},
		{NewText("x"), true},
		{NewBool(false), false},
		{NewBool(true), true},
	}
	for _, tt := range tests {
		if got := tt.v.IsTruthy(); got != tt.want {
			t.Errorf("IsTruthy(%v) = %v, want %v", tt.v, got, tt.want)
		}
	}
}

func TestAddPolymorphic(t *testing.T) {
	v, err := Add(NewText("foo"), NewInt(1))
	if err != nil {
		t.Fatalf("Add returned error: %v", err)
	}
	if v.Kind() != KindText || v.Text() != "foo1" {
		t.Errorf("Add(text, int) = %v, want Text(\"foo1\")", v)
	}

	v, err = Add(NewInt(2), NewInt(3))
	if err != nil {
		t.Fatalf("Add returned error: %v", err)
	}
	if v.Kind() != KindInt || v.Int() != 5 {
		t.Errorf("Add(2, 3) = %v, want Int(5)", v)
	}
}

func TestDivByZero(t *testing.T) {
	_, err := Div(NewInt(1), NewInt(0))
	if err != ErrDivideByZero {
		t.Errorf("Div by zero returned %v, want ErrDivideByZero", err)
	}
}

func TestModByZero(t *testing.T) {
	_, err := Mod(NewInt(1), NewInt(0))
	if err != ErrDivideByZero {
		t.Errorf("Mod by zero returned %v, want ErrDivideByZero", err)
	}
}

func TestDivAlwaysFloat(t *testing.T) {
	v, err := Div(NewInt(4), NewInt(2))
	if err != nil {
		t.Fatalf("Div returned error: %v", err)
	}
	if v.Kind() != KindFloat {
		t.Errorf("Div(4, 2) kind = %v, want Float", v.Kind())
	}
}
