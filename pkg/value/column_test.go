package value

import "testing"

func TestColumnCoerceNullPassesThrough(t *testing.T) {
	col := Column{Name: "n", Type: ColInt}
	v, err := col.Coerce(Null())
	if err != nil {
		t.Fatalf("Coerce(Null) returned error: %v", err)
	}
	if !v.IsNull() {
		t.Errorf("Coerce(Null) = %v, want Null", v)
	}
}

func TestColumnCoerceIntFromText(t *testing.T) {
	col := Column{Name: "n", Type: ColInt}
	v, err := col.Coerce(NewText("42"))
	if err != nil {
		t.Fatalf("Coerce returned error: %v", err)
	}
	if v.Kind() != KindInt || v.Int() != 42 {
		t.Errorf("Coerce(\"42\") = %v, want Int(42)", v)
	}
}

func TestColumnCoerceBoolRejectsGarbage(t *testing.T) {
	col := Column{Name: "b", Type: ColBool}
	if _, err := col.Coerce(NewText("maybe")); err == nil {
		t.Error("Coerce(\"maybe\") as Bool should fail")
	}
}

func TestLookupColType(t *testing.T) {
	tests := []struct {
		name string
		want ColType
	}{
		{"INT", ColInt},
		{"varchar", ColText},
		{"DATETIME", ColTimestamp},
		{"uniqueidentifier", ColUuid},
		{"something_unknown", ColText},
	}
	for _, tt := range tests {
		if got := LookupColType(tt.name); got != tt.want {
			t.Errorf("LookupColType(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}
