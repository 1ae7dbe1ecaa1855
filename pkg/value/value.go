// Package value defines the runtime value model of the CoLLoML
// evaluator, the solver-variable universe (base, script and helper
// variables), constraint formulas awaiting linearisation, and constraint
// origins.
//
// Values form a total order so that collections enumerate
// deterministically; Key returns a canonical encoding used as a map key
// wherever values parameterise variables.
package value

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/christophcharles/colloml/pkg/ilp"
	"github.com/christophcharles/colloml/pkg/types"
)

// Object is an opaque host-supplied object handle. Key must be a stable
// identity among all objects of the host environment; its string order
// defines the enumeration order of @[T] lists.
type Object interface {
	Key() string
	String() string
}

// Value is a runtime value. The set of implementations is closed.
type Value interface {
	// Type returns the value's kind name for diagnostics.
	Type() string
	// String returns the display form of the value.
	String() string
	// Key returns a canonical, unambiguous encoding of the value.
	Key() string

	valueNode()
}

// Int is a 32-bit integer value.
type Int struct {
	Value int32
}

func (v *Int) valueNode()     {}
func (v *Int) Type() string   { return "Int" }
func (v *Int) String() string { return strconv.FormatInt(int64(v.Value), 10) }
func (v *Int) Key() string    { return "i:" + strconv.FormatInt(int64(v.Value), 10) }

// Bool is a boolean value.
type Bool struct {
	Value bool
}

func (v *Bool) valueNode()   {}
func (v *Bool) Type() string { return "Bool" }

func (v *Bool) String() string {
	if v.Value {
		return "true"
	}
	return "false"
}

func (v *Bool) Key() string {
	if v.Value {
		return "b:1"
	}
	return "b:0"
}

// Str is a string value.
type Str struct {
	Value string
}

func (v *Str) valueNode()     {}
func (v *Str) Type() string   { return "String" }
func (v *Str) String() string { return v.Value }
func (v *Str) Key() string    { return "s:" + strconv.Quote(v.Value) }

// None is the absent optional value.
type None struct{}

func (v *None) valueNode()     {}
func (v *None) Type() string   { return "None" }
func (v *None) String() string { return "none" }
func (v *None) Key() string    { return "n" }

// Lin is a linear combination of solver variables.
type Lin struct {
	Expr ilp.Expr[IlpVar]
}

func (v *Lin) valueNode()     {}
func (v *Lin) Type() string   { return "LinExpr" }
func (v *Lin) String() string { return v.Expr.String() }

func (v *Lin) Key() string {
	var sb strings.Builder
	sb.WriteString("le:")
	for _, t := range v.Expr.Terms() {
		fmt.Fprintf(&sb, "%s*%g;", t.Var.Key(), t.Coef)
	}
	fmt.Fprintf(&sb, "+%g", v.Expr.ConstantTerm())
	return sb.String()
}

// Constr is a constraint formula: atoms combined with and/or/not, still
// awaiting linearisation.
type Constr struct {
	Formula Formula
}

func (v *Constr) valueNode()     {}
func (v *Constr) Type() string   { return "Constraint" }
func (v *Constr) String() string { return v.Formula.String() }
func (v *Constr) Key() string    { return "c:" + v.Formula.key() }

// Obj wraps a host object handle.
type Obj struct {
	Handle Object
}

func (v *Obj) valueNode()     {}
func (v *Obj) Type() string   { return "Object" }
func (v *Obj) String() string { return v.Handle.String() }
func (v *Obj) Key() string    { return "o:" + v.Handle.Key() }

// List is an ordered sequence of values of a common element type. Elem
// may be nil for the empty list.
type List struct {
	Elem  *types.Type
	Items []Value
}

func (v *List) valueNode()   {}
func (v *List) Type() string { return "List" }

func (v *List) String() string {
	parts := make([]string, len(v.Items))
	for i, it := range v.Items {
		parts[i] = it.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func (v *List) Key() string {
	parts := make([]string, len(v.Items))
	for i, it := range v.Items {
		parts[i] = it.Key()
	}
	return "l:[" + strings.Join(parts, ",") + "]"
}

// Tuple is a fixed-length heterogeneous sequence.
type Tuple struct {
	Items []Value
}

func (v *Tuple) valueNode()   {}
func (v *Tuple) Type() string { return "Tuple" }

func (v *Tuple) String() string {
	parts := make([]string, len(v.Items))
	for i, it := range v.Items {
		parts[i] = it.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func (v *Tuple) Key() string {
	parts := make([]string, len(v.Items))
	for i, it := range v.Items {
		parts[i] = it.Key()
	}
	return "t:(" + strings.Join(parts, ",") + ")"
}

// Struct maps field names to values; field insertion order is
// irrelevant.
type Struct struct {
	Fields map[string]Value
}

func (v *Struct) valueNode()   {}
func (v *Struct) Type() string { return "Struct" }

func (v *Struct) sortedFieldNames() []string {
	names := make([]string, 0, len(v.Fields))
	for name := range v.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (v *Struct) String() string {
	names := v.sortedFieldNames()
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + ": " + v.Fields[name].String()
	}
	return "{ " + strings.Join(parts, ", ") + " }"
}

func (v *Struct) Key() string {
	names := v.sortedFieldNames()
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + "=" + v.Fields[name].Key()
	}
	return "st:{" + strings.Join(parts, ",") + "}"
}

// Custom is a value of a user-declared type: a type alias instance or an
// enum variant with its payload.
type Custom struct {
	TypeName string // declaration name, without its module
	Variant  string // "" for aliases
	Content  Value
}

func (v *Custom) valueNode()   {}
func (v *Custom) Type() string { return "Custom" }

func (v *Custom) String() string {
	name := v.TypeName
	if v.Variant != "" {
		name += "::" + v.Variant
	}
	if v.Content == nil {
		return name
	}
	return name + "(" + v.Content.String() + ")"
}

func (v *Custom) Key() string {
	content := ""
	if v.Content != nil {
		content = v.Content.Key()
	}
	return "cu:" + v.TypeName + "::" + v.Variant + "(" + content + ")"
}

func kindRank(v Value) int {
	switch v.(type) {
	case *None:
		return 0
	case *Bool:
		return 1
	case *Int:
		return 2
	case *Str:
		return 3
	case *Obj:
		return 4
	case *List:
		return 5
	case *Tuple:
		return 6
	case *Struct:
		return 7
	case *Custom:
		return 8
	case *Lin:
		return 9
	case *Constr:
		return 10
	default:
		return 11
	}
}

// Compare defines a total order over values: first by kind, then by
// kind-specific contents. Equal values compare as zero.
func Compare(a, b Value) int {
	ra, rb := kindRank(a), kindRank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch av := a.(type) {
	case *None:
		return 0
	case *Bool:
		bv := b.(*Bool)
		if av.Value == bv.Value {
			return 0
		}
		if !av.Value {
			return -1
		}
		return 1
	case *Int:
		bv := b.(*Int)
		switch {
		case av.Value < bv.Value:
			return -1
		case av.Value > bv.Value:
			return 1
		default:
			return 0
		}
	case *Str:
		return strings.Compare(av.Value, b.(*Str).Value)
	case *Obj:
		return strings.Compare(av.Handle.Key(), b.(*Obj).Handle.Key())
	case *List:
		return compareSeq(av.Items, b.(*List).Items)
	case *Tuple:
		return compareSeq(av.Items, b.(*Tuple).Items)
	case *Struct:
		bv := b.(*Struct)
		an, bn := av.sortedFieldNames(), bv.sortedFieldNames()
		for i := 0; i < len(an) && i < len(bn); i++ {
			if c := strings.Compare(an[i], bn[i]); c != 0 {
				return c
			}
			if c := Compare(av.Fields[an[i]], bv.Fields[bn[i]]); c != 0 {
				return c
			}
		}
		return len(an) - len(bn)
	case *Custom:
		bv := b.(*Custom)
		if c := strings.Compare(av.TypeName, bv.TypeName); c != 0 {
			return c
		}
		if c := strings.Compare(av.Variant, bv.Variant); c != 0 {
			return c
		}
		switch {
		case av.Content == nil && bv.Content == nil:
			return 0
		case av.Content == nil:
			return -1
		case bv.Content == nil:
			return 1
		default:
			return Compare(av.Content, bv.Content)
		}
	case *Lin:
		return av.Expr.Compare(b.(*Lin).Expr)
	case *Constr:
		return strings.Compare(av.Key(), b.(*Constr).Key())
	default:
		return 0
	}
}

func compareSeq(a, b []Value) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	return len(a) - len(b)
}

// Equal reports value equality under the total order.
func Equal(a, b Value) bool {
	return Compare(a, b) == 0
}

// SortValues sorts a slice of values in place under the total order.
func SortValues(items []Value) {
	sort.Slice(items, func(i, j int) bool {
		return Compare(items[i], items[j]) < 0
	})
}
