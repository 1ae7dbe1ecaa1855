package value

import (
	"testing"

	"github.com/christophcharles/colloml/pkg/ilp"
	"github.com/christophcharles/colloml/pkg/types"
)

func TestValueDisplay(t *testing.T) {
	tests := []struct {
		v    Value
		want string
	}{
		{&Int{Value: 42}, "42"},
		{&Int{Value: -5}, "-5"},
		{&Bool{Value: true}, "true"},
		{&Str{Value: "hi"}, "hi"},
		{&None{}, "none"},
		{&List{Elem: types.Int(), Items: []Value{&Int{Value: 1}, &Int{Value: 2}}}, "[1, 2]"},
		{&Tuple{Items: []Value{&Int{Value: 1}, &Bool{Value: false}}}, "(1, false)"},
		{&Struct{Fields: map[string]Value{"y": &Int{Value: 2}, "x": &Int{Value: 1}}}, "{ x: 1, y: 2 }"},
		{&Custom{TypeName: "Option", Variant: "Empty"}, "Option::Empty"},
	}
	for _, tt := range tests {
		if got := tt.v.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestCompareTotalOrder(t *testing.T) {
	t.Run("ints order numerically", func(t *testing.T) {
		if Compare(&Int{Value: 2}, &Int{Value: 10}) >= 0 {
			t.Error("2 should sort before 10")
		}
	})

	t.Run("bools order false first", func(t *testing.T) {
		if Compare(&Bool{Value: false}, &Bool{Value: true}) >= 0 {
			t.Error("false should sort before true")
		}
	})

	t.Run("lists order elementwise", func(t *testing.T) {
		a := &List{Items: []Value{&Int{Value: 1}, &Int{Value: 2}}}
		b := &List{Items: []Value{&Int{Value: 1}, &Int{Value: 3}}}
		if Compare(a, b) >= 0 {
			t.Error("[1,2] should sort before [1,3]")
		}
	})

	t.Run("equal structs compare zero regardless of insertion", func(t *testing.T) {
		a := &Struct{Fields: map[string]Value{"x": &Int{Value: 1}, "y": &Int{Value: 2}}}
		b := &Struct{Fields: map[string]Value{"y": &Int{Value: 2}, "x": &Int{Value: 1}}}
		if !Equal(a, b) {
			t.Error("structs with equal fields should be equal")
		}
	})

	t.Run("kinds rank consistently", func(t *testing.T) {
		values := []Value{&None{}, &Bool{}, &Int{}, &Str{}}
		for i := 0; i < len(values)-1; i++ {
			if Compare(values[i], values[i+1]) >= 0 {
				t.Errorf("value %d should sort before value %d", i, i+1)
			}
		}
	})
}

func TestSortValues(t *testing.T) {
	items := []Value{&Int{Value: 3}, &Int{Value: 1}, &Int{Value: 2}}
	SortValues(items)
	for i, want := range []int32{1, 2, 3} {
		if items[i].(*Int).Value != want {
			t.Fatalf("items[%d] = %s, want %d", i, items[i], want)
		}
	}
}

func TestKeysAreUnambiguous(t *testing.T) {
	pairs := [][2]Value{
		{&Int{Value: 12}, &Int{Value: 1}},
		{&Str{Value: "a,b"}, &Str{Value: "a"}},
		{
			&List{Items: []Value{&Int{Value: 1}, &Int{Value: 2}}},
			&List{Items: []Value{&Int{Value: 12}}},
		},
		{&Bool{Value: true}, &Int{Value: 1}},
	}
	for _, pair := range pairs {
		if pair[0].Key() == pair[1].Key() {
			t.Errorf("distinct values share key %q", pair[0].Key())
		}
	}
}

func TestVariableDisplay(t *testing.T) {
	base := NewBaseVar("V", []Value{&Int{Value: 7}})
	if base.String() != "$V(7)" {
		t.Errorf("base display = %q", base.String())
	}

	sv := NewScriptVar("rules", "Check", nil, []Value{&Int{Value: 5}})
	if sv.String() != "$Check(5)" {
		t.Errorf("script display = %q", sv.String())
	}

	idx := 2
	svList := NewScriptVar("rules", "CheckList", &idx, []Value{&Int{Value: 5}})
	if svList.String() != "$CheckList(5)[2]" {
		t.Errorf("list display = %q", svList.String())
	}

	if HelperVar(3).String() != "h_3" {
		t.Errorf("helper display = %q", HelperVar(3).String())
	}
}

func TestVariableKeys(t *testing.T) {
	a := NewBaseVar("V", []Value{&Int{Value: 1}})
	b := NewBaseVar("V", []Value{&Int{Value: 1}})
	c := NewBaseVar("V", []Value{&Int{Value: 2}})
	if a.Key() != b.Key() {
		t.Error("equal instances should share a key")
	}
	if a.Key() == c.Key() {
		t.Error("distinct instances should not share a key")
	}

	idx := 0
	sv := NewScriptVar("rules", "V", &idx, []Value{&Int{Value: 1}})
	if sv.Key() == a.Key() {
		t.Error("script and base variables should never collide")
	}
}

func TestOriginDisplay(t *testing.T) {
	o := &Origin{
		Module: "rules",
		FnName: "exactly_one",
		Args:   []Value{&Int{Value: 3}},
	}
	if o.String() != "rules::exactly_one(3)" {
		t.Errorf("origin = %q", o.String())
	}

	o.PrettyDocstring = []string{"Exactly one slot for 3"}
	if o.String() != "Exactly one slot for 3" {
		t.Errorf("pretty origin = %q", o.String())
	}
}

func TestFormulaDisplay(t *testing.T) {
	vExpr := ilp.VarExpr[IlpVar](NewBaseVar("V", nil)).AddK(-1)
	atom := &Atom{Expr: vExpr, Symbol: ilp.Equals}
	if atom.String() != "1*$V() + (-1) = 0" {
		t.Errorf("atom = %q", atom.String())
	}

	or := &Or{Parts: []Formula{atom, &Not{Inner: atom}}}
	want := "(1*$V() + (-1) = 0 or (not 1*$V() + (-1) = 0))"
	if or.String() != want {
		t.Errorf("or = %q, want %q", or.String(), want)
	}

	if TrueFormula().String() != "true" {
		t.Errorf("true formula = %q", TrueFormula().String())
	}
}
