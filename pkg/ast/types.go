package ast

import (
	"strings"

	"github.com/christophcharles/colloml/internal/lexer"
)

// TypeExpr is a syntactic type name. Resolution against declared types
// happens in the semantic layer.
type TypeExpr interface {
	Node
	typeExprNode()
}

// PathType is a simple or qualified type name: Int, Student, mod::Point,
// Result::Ok. A MaybeCount above zero marks optional types (T?, T??, ...).
type PathType struct {
	Path       *NamespacePath
	MaybeCount int
	Sp         lexer.Span
}

func (t *PathType) typeExprNode()    {}
func (t *PathType) Span() lexer.Span { return t.Sp }

func (t *PathType) String() string {
	return t.Path.String() + strings.Repeat("?", t.MaybeCount)
}

// ListType is a list type: [T], [[Int]], ...
type ListType struct {
	Elem       TypeExpr
	MaybeCount int
	Sp         lexer.Span
}

func (t *ListType) typeExprNode()    {}
func (t *ListType) Span() lexer.Span { return t.Sp }

func (t *ListType) String() string {
	return "[" + t.Elem.String() + "]" + strings.Repeat("?", t.MaybeCount)
}

// EmptyListType is the type of the empty list literal, written [].
type EmptyListType struct {
	Sp lexer.Span
}

func (t *EmptyListType) typeExprNode()    {}
func (t *EmptyListType) Span() lexer.Span { return t.Sp }
func (t *EmptyListType) String() string   { return "[]" }

// TupleType is a tuple type with at least two elements: (Int, Bool).
type TupleType struct {
	Elems      []TypeExpr
	MaybeCount int
	Sp         lexer.Span
}

func (t *TupleType) typeExprNode()    {}
func (t *TupleType) Span() lexer.Span { return t.Sp }

func (t *TupleType) String() string {
	parts := make([]string, len(t.Elems))
	for i, e := range t.Elems {
		parts[i] = e.String()
	}
	return "(" + strings.Join(parts, ", ") + ")" + strings.Repeat("?", t.MaybeCount)
}

// StructFieldDef is one named field of a struct type or struct enum
// variant.
type StructFieldDef struct {
	Name *Ident
	Type TypeExpr
}

// StructType is an anonymous struct type: {x: Int, y: Int}.
type StructType struct {
	Fields     []*StructFieldDef
	MaybeCount int
	Sp         lexer.Span
}

func (t *StructType) typeExprNode()    {}
func (t *StructType) Span() lexer.Span { return t.Sp }

func (t *StructType) String() string {
	parts := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		parts[i] = f.Name.Name + ": " + f.Type.String()
	}
	return "{ " + strings.Join(parts, ", ") + " }" + strings.Repeat("?", t.MaybeCount)
}
