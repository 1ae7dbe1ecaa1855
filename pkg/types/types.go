// Package types defines the CoLLoML type model shared by the semantic
// analyzer, the evaluator and host-provided schemas.
package types

import (
	"sort"
	"strings"
)

// Kind discriminates the closed set of CoLLoML types.
type Kind int

const (
	KindInt Kind = iota
	KindBool
	KindString
	KindNone
	KindConstraint
	KindLinExpr
	KindObject
	KindList
	KindTuple
	KindStruct
	KindCustom
	KindOptional
	// KindNever is the bottom type of panic! expressions; it unifies with
	// every other type and never describes a runtime value.
	KindNever
)

// Type is a CoLLoML type. Types are immutable once built; share rather
// than copy.
type Type struct {
	Kind    Kind
	Name    string           // Object type name, or Custom declaration name (without its module)
	Variant string           // Custom variant name, "" when none
	Elem    *Type            // List element, Optional inner, Custom underlying
	Elems   []*Type          // Tuple elements
	Fields  map[string]*Type // Struct fields
}

// Constructors for the scalar types; these return shared singletons.
var (
	intType        = &Type{Kind: KindInt}
	boolType       = &Type{Kind: KindBool}
	stringType     = &Type{Kind: KindString}
	noneType       = &Type{Kind: KindNone}
	constraintType = &Type{Kind: KindConstraint}
	linExprType    = &Type{Kind: KindLinExpr}
	neverType      = &Type{Kind: KindNever}
)

func Int() *Type        { return intType }
func Bool() *Type       { return boolType }
func String() *Type     { return stringType }
func None() *Type       { return noneType }
func Constraint() *Type { return constraintType }
func LinExpr() *Type    { return linExprType }
func Never() *Type      { return neverType }

// Object builds a host-object type for the given DSL type name.
func Object(name string) *Type {
	return &Type{Kind: KindObject, Name: name}
}

// List builds a list type. A nil element type denotes the type of the
// empty list literal, which unifies with every list type.
func List(elem *Type) *Type {
	return &Type{Kind: KindList, Elem: elem}
}

// Tuple builds a tuple type; n must be at least 2.
func Tuple(elems ...*Type) *Type {
	return &Type{Kind: KindTuple, Elems: elems}
}

// Struct builds a struct type from its field map.
func Struct(fields map[string]*Type) *Type {
	return &Type{Kind: KindStruct, Fields: fields}
}

// Optional wraps a type as optional (T?).
func Optional(inner *Type) *Type {
	return &Type{Kind: KindOptional, Elem: inner}
}

// Custom builds a user-declared named type. name is the declaration name
// without its module, variant the enum variant ("" for aliases and whole
// enums), underlying the representation type.
func Custom(name, variant string, underlying *Type) *Type {
	return &Type{Kind: KindCustom, Name: name, Variant: variant, Elem: underlying}
}

// Equal reports structural type equality. Custom types compare by
// declaration name and variant; the underlying type is not re-compared.
func Equal(a, b *Type) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindObject:
		return a.Name == b.Name
	case KindCustom:
		return a.Name == b.Name && a.Variant == b.Variant
	case KindList, KindOptional:
		return Equal(a.Elem, b.Elem)
	case KindTuple:
		if len(a.Elems) != len(b.Elems) {
			return false
		}
		for i := range a.Elems {
			if !Equal(a.Elems[i], b.Elems[i]) {
				return false
			}
		}
		return true
	case KindStruct:
		if len(a.Fields) != len(b.Fields) {
			return false
		}
		for name, ft := range a.Fields {
			if other, ok := b.Fields[name]; !ok || !Equal(ft, other) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// String renders the type in source syntax.
func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	switch t.Kind {
	case KindInt:
		return "Int"
	case KindBool:
		return "Bool"
	case KindString:
		return "String"
	case KindNone:
		return "None"
	case KindConstraint:
		return "Constraint"
	case KindLinExpr:
		return "LinExpr"
	case KindObject:
		return t.Name
	case KindList:
		if t.Elem == nil {
			return "[]"
		}
		return "[" + t.Elem.String() + "]"
	case KindTuple:
		parts := make([]string, len(t.Elems))
		for i, e := range t.Elems {
			parts[i] = e.String()
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case KindStruct:
		names := make([]string, 0, len(t.Fields))
		for name := range t.Fields {
			names = append(names, name)
		}
		sort.Strings(names)
		parts := make([]string, len(names))
		for i, name := range names {
			parts[i] = name + ": " + t.Fields[name].String()
		}
		return "{ " + strings.Join(parts, ", ") + " }"
	case KindCustom:
		if t.Variant != "" {
			return t.Name + "::" + t.Variant
		}
		return t.Name
	case KindOptional:
		return t.Elem.String() + "?"
	case KindNever:
		return "!"
	default:
		return "<invalid>"
	}
}

// Schema maps DSL object type names to their field types; hosts hand one
// to the semantic analyzer.
type Schema map[string]map[string]*Type

// VarSchema maps base-variable family names to their parameter types.
type VarSchema map[string][]*Type
