package eval

import (
	"testing"

	"quill/pkg/value"
)

func TestCountAggregate(t *testing.T) {
	a := NewAggregate("COUNT", false, false)
	a.Init()
	a.Step(value.NewInt(1))
	a.Step(value.Null())
	a.Step(value.NewInt(3))
	if got := a.Finalize().Int(); got != 2 {
		t.Errorf("COUNT(expr) over [1, NULL, 3] = %d, want 2", got)
	}
}

func TestCountStarCountsNulls(t *testing.T) {
	a := NewAggregate("COUNT", false, true)
	a.Init()
	a.Step(value.Null())
	a.Step(value.NewInt(1))
	if got := a.Finalize().Int(); got != 2 {
		t.Errorf("COUNT(*) over 2 rows = %d, want 2", got)
	}
}

func TestSumEmptyIsZero(t *testing.T) {
	a := NewAggregate("SUM", false, false)
	a.Init()
	if got := a.Finalize(); got.Kind() != value.KindInt || got.Int() != 0 {
		t.Errorf("SUM over no rows = %v, want Int(0)", got)
	}
}

func TestAvgSkipsNulls(t *testing.T) {
	a := NewAggregate("AVG", false, false)
	a.Init()
	a.Step(value.NewInt(10))
	a.Step(value.Null())
	a.Step(value.NewInt(20))
	got, err := a.Finalize().AsFloat()
	if err != nil {
		t.Fatalf("AsFloat: %v", err)
	}
	if got != 15 {
		t.Errorf("AVG([10, NULL, 20]) = %v, want 15", got)
	}
}

func TestMinMax(t *testing.T) {
	min := NewAggregate("MIN", false, false)
	max := NewAggregate("MAX", false, false)
	min.Init()
	max.Init()
	for _, v := range []int64{5, 1, 9, 3} {
		min.Step(value.NewInt(v))
		max.Step(value.NewInt(v))
	}
	if min.Finalize().Int() != 1 {
		t.Errorf("MIN = %v, want 1", min.Finalize())
	}
	if max.Finalize().Int() != 9 {
		t.Errorf("MAX = %v, want 9", max.Finalize())
	}
}

func TestMinMaxAllNullIsNull(t *testing.T) {
	a := NewAggregate("MIN", false, false)
	a.Init()
	a.Step(value.Null())
	if !a.Finalize().IsNull() {
		t.Errorf("MIN over all-null input = %v, want Null", a.Finalize())
	}
}

func TestDistinctCount(t *testing.T) {
	a := NewAggregate("COUNT", true, false)
	a.Init()
	a.Step(value.NewInt(1))
	a.Step(value.NewInt(1))
	a.Step(value.NewInt(2))
	if got := a.Finalize().Int(); got != 2 {
		t.Errorf("COUNT(DISTINCT ...) over [1,1,2] = %d, want 2", got)
	}
}

func TestCanonicalAggKeyShape(t *testing.T) {
	toks := tokenize(t, "DISTINCT price")
	key := CanonicalAggKey("SUM", true, toks[1:])
	if key != "SUM(DISTINCT price)" {
		t.Errorf("CanonicalAggKey = %q, want \"SUM(DISTINCT price)\"", key)
	}
}
