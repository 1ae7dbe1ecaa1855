package ast

import (
	"fmt"
	"strings"

	"github.com/christophcharles/colloml/internal/lexer"
)

// IntLit is an integer literal.
type IntLit struct {
	Value int32
	Sp    lexer.Span
}

func (e *IntLit) expressionNode()  {}
func (e *IntLit) Span() lexer.Span { return e.Sp }
func (e *IntLit) String() string   { return fmt.Sprintf("%d", e.Value) }

// BoolLit is a boolean literal.
type BoolLit struct {
	Value bool
	Sp    lexer.Span
}

func (e *BoolLit) expressionNode()  {}
func (e *BoolLit) Span() lexer.Span { return e.Sp }

func (e *BoolLit) String() string {
	if e.Value {
		return "true"
	}
	return "false"
}

// StringLit is a string literal.
type StringLit struct {
	Value string
	Sp    lexer.Span
}

func (e *StringLit) expressionNode()  {}
func (e *StringLit) Span() lexer.Span { return e.Sp }
func (e *StringLit) String() string   { return fmt.Sprintf("%q", e.Value) }

// NoneLit is the `none` literal.
type NoneLit struct {
	Sp lexer.Span
}

func (e *NoneLit) expressionNode()  {}
func (e *NoneLit) Span() lexer.Span { return e.Sp }
func (e *NoneLit) String() string   { return "none" }

// IdentPath is an identifier path: a variable reference, a unit enum
// variant (Option::None) or a module-qualified name.
type IdentPath struct {
	Path *NamespacePath
	Sp   lexer.Span
}

func (e *IdentPath) expressionNode()  {}
func (e *IdentPath) Span() lexer.Span { return e.Sp }
func (e *IdentPath) String() string   { return e.Path.String() }

// BinaryExpr is a binary operation. Op is the operator spelling:
// + - * // % == != < <= > >= === <== >== and or ??
type BinaryExpr struct {
	Op    string
	Left  Expression
	Right Expression
	Sp    lexer.Span
}

func (e *BinaryExpr) expressionNode()  {}
func (e *BinaryExpr) Span() lexer.Span { return e.Sp }

func (e *BinaryExpr) String() string {
	return "(" + e.Left.String() + " " + e.Op + " " + e.Right.String() + ")"
}

// UnaryExpr is a prefix operation; Op is "-" or "not".
type UnaryExpr struct {
	Op    string
	Right Expression
	Sp    lexer.Span
}

func (e *UnaryExpr) expressionNode()  {}
func (e *UnaryExpr) Span() lexer.Span { return e.Sp }

func (e *UnaryExpr) String() string {
	if e.Op == "not" {
		return "(not " + e.Right.String() + ")"
	}
	return "(" + e.Op + e.Right.String() + ")"
}

// InExpr is a membership test: item in collection.
type InExpr struct {
	Item       Expression
	Collection Expression
	Sp         lexer.Span
}

func (e *InExpr) expressionNode()  {}
func (e *InExpr) Span() lexer.Span { return e.Sp }

func (e *InExpr) String() string {
	return "(" + e.Item.String() + " in " + e.Collection.String() + ")"
}

// ForallExpr is the conjunction quantifier:
//
//	forall v in coll (where filter)? { body }
type ForallExpr struct {
	Var        *Ident
	Collection Expression
	Filter     Expression // nil when absent
	Body       Expression
	Sp         lexer.Span
}

func (e *ForallExpr) expressionNode()  {}
func (e *ForallExpr) Span() lexer.Span { return e.Sp }

func (e *ForallExpr) String() string {
	return quantifierString("forall", e.Var, e.Collection, e.Filter, e.Body)
}

// SumExpr is the summation quantifier.
type SumExpr struct {
	Var        *Ident
	Collection Expression
	Filter     Expression
	Body       Expression
	Sp         lexer.Span
}

func (e *SumExpr) expressionNode()  {}
func (e *SumExpr) Span() lexer.Span { return e.Sp }

func (e *SumExpr) String() string {
	return quantifierString("sum", e.Var, e.Collection, e.Filter, e.Body)
}

func quantifierString(kw string, v *Ident, coll, filter, body Expression) string {
	var sb strings.Builder
	sb.WriteString(kw)
	sb.WriteString(" ")
	sb.WriteString(v.Name)
	sb.WriteString(" in ")
	sb.WriteString(coll.String())
	if filter != nil {
		sb.WriteString(" where ")
		sb.WriteString(filter.String())
	}
	sb.WriteString(" { ")
	sb.WriteString(body.String())
	sb.WriteString(" }")
	return sb.String()
}

// FoldExpr is a bounded left fold:
//
//	fold v in coll accum a = init (where filter)? { body }
type FoldExpr struct {
	Var        *Ident
	Collection Expression
	Accum      *Ident
	Init       Expression
	Filter     Expression
	Body       Expression
	Reversed   bool
	Sp         lexer.Span
}

func (e *FoldExpr) expressionNode()  {}
func (e *FoldExpr) Span() lexer.Span { return e.Sp }

func (e *FoldExpr) String() string {
	var sb strings.Builder
	sb.WriteString("fold ")
	sb.WriteString(e.Var.Name)
	sb.WriteString(" in ")
	sb.WriteString(e.Collection.String())
	sb.WriteString(" accum ")
	sb.WriteString(e.Accum.Name)
	sb.WriteString(" = ")
	sb.WriteString(e.Init.String())
	if e.Filter != nil {
		sb.WriteString(" where ")
		sb.WriteString(e.Filter.String())
	}
	sb.WriteString(" { ")
	sb.WriteString(e.Body.String())
	sb.WriteString(" }")
	return sb.String()
}

// IfExpr is a two-armed conditional; both arms are mandatory.
type IfExpr struct {
	Cond Expression
	Then Expression
	Else Expression
	Sp   lexer.Span
}

func (e *IfExpr) expressionNode()  {}
func (e *IfExpr) Span() lexer.Span { return e.Sp }

func (e *IfExpr) String() string {
	return "if " + e.Cond.String() + " { " + e.Then.String() + " } else { " + e.Else.String() + " }"
}

// MatchBranch is one branch of a match expression. The identifier binds
// the scrutinee, optionally narrowed with `as Type` and filtered with
// `where`.
type MatchBranch struct {
	Ident  *Ident
	AsType TypeExpr   // nil when absent
	Filter Expression // nil when absent
	Body   Expression
}

func (b *MatchBranch) String() string {
	var sb strings.Builder
	sb.WriteString(b.Ident.Name)
	if b.AsType != nil {
		sb.WriteString(" as ")
		sb.WriteString(b.AsType.String())
	}
	if b.Filter != nil {
		sb.WriteString(" where ")
		sb.WriteString(b.Filter.String())
	}
	sb.WriteString(" => ")
	sb.WriteString(b.Body.String())
	return sb.String()
}

// MatchExpr matches a value against a sequence of branches; the first
// branch whose narrowing and filter succeed is taken.
type MatchExpr struct {
	Subject  Expression
	Branches []*MatchBranch
	Sp       lexer.Span
}

func (e *MatchExpr) expressionNode()  {}
func (e *MatchExpr) Span() lexer.Span { return e.Sp }

func (e *MatchExpr) String() string {
	parts := make([]string, len(e.Branches))
	for i, b := range e.Branches {
		parts[i] = b.String()
	}
	return "match " + e.Subject.String() + " { " + strings.Join(parts, ", ") + " }"
}

// LetExpr introduces a local binding: let x = v { body }.
type LetExpr struct {
	Var   *Ident
	Value Expression
	Body  Expression
	Sp    lexer.Span
}

func (e *LetExpr) expressionNode()  {}
func (e *LetExpr) Span() lexer.Span { return e.Sp }

func (e *LetExpr) String() string {
	return "let " + e.Var.Name + " = " + e.Value.String() + " { " + e.Body.String() + " }"
}

// GenericCall is func(args), Type(value), Enum::Variant(value) or
// mod::func(args); which one it is gets decided during semantic analysis.
type GenericCall struct {
	Path *NamespacePath
	Args []Expression
	Sp   lexer.Span
}

func (e *GenericCall) expressionNode()  {}
func (e *GenericCall) Span() lexer.Span { return e.Sp }

func (e *GenericCall) String() string {
	return e.Path.String() + "(" + exprList(e.Args) + ")"
}

// StructCall is struct-style construction: Type{fields} or
// Enum::Variant{fields}.
type StructCall struct {
	Path   *NamespacePath
	Fields []*StructLitField
	Sp     lexer.Span
}

func (e *StructCall) expressionNode()  {}
func (e *StructCall) Span() lexer.Span { return e.Sp }

func (e *StructCall) String() string {
	return e.Path.String() + " " + structFields(e.Fields)
}

// VarCall references a reified or host variable: $Var(args) or
// mod::$Var(args).
type VarCall struct {
	Module *Ident // nil when unqualified
	Name   *Ident
	Args   []Expression
	Sp     lexer.Span
}

func (e *VarCall) expressionNode()  {}
func (e *VarCall) Span() lexer.Span { return e.Sp }

func (e *VarCall) String() string {
	prefix := ""
	if e.Module != nil {
		prefix = e.Module.Name + "::"
	}
	return prefix + "$" + e.Name.Name + "(" + exprList(e.Args) + ")"
}

// VarListCall references a reified variable list: $[VarList](args).
type VarListCall struct {
	Module *Ident
	Name   *Ident
	Args   []Expression
	Sp     lexer.Span
}

func (e *VarListCall) expressionNode()  {}
func (e *VarListCall) Span() lexer.Span { return e.Sp }

func (e *VarListCall) String() string {
	prefix := ""
	if e.Module != nil {
		prefix = e.Module.Name + "::"
	}
	return prefix + "$[" + e.Name.Name + "](" + exprList(e.Args) + ")"
}

// PathSegment is one postfix access step on an expression.
type PathSegment struct {
	Field      string     // non-empty for .field access
	TupleIndex int        // valid when IsTuple
	IsTuple    bool       // .0, .1 tuple access
	Index      Expression // non-nil for [expr]? / [expr]!
	IndexPanic bool       // true for [expr]!, false for [expr]?
	Sp         lexer.Span
}

func (s *PathSegment) String() string {
	switch {
	case s.Index != nil:
		suffix := "?"
		if s.IndexPanic {
			suffix = "!"
		}
		return "[" + s.Index.String() + "]" + suffix
	case s.IsTuple:
		return fmt.Sprintf(".%d", s.TupleIndex)
	default:
		return "." + s.Field
	}
}

// PathExpr is a postfix access chain: obj.field.0[i]!.
type PathExpr struct {
	Object   Expression
	Segments []*PathSegment
	Sp       lexer.Span
}

func (e *PathExpr) expressionNode()  {}
func (e *PathExpr) Span() lexer.Span { return e.Sp }

func (e *PathExpr) String() string {
	var sb strings.Builder
	sb.WriteString(e.Object.String())
	for _, seg := range e.Segments {
		sb.WriteString(seg.String())
	}
	return sb.String()
}

// TupleLit is a tuple literal with at least two elements.
type TupleLit struct {
	Elements []Expression
	Sp       lexer.Span
}

func (e *TupleLit) expressionNode()  {}
func (e *TupleLit) Span() lexer.Span { return e.Sp }

func (e *TupleLit) String() string {
	return "(" + exprList(e.Elements) + ")"
}

// StructLitField is one field assignment of a struct literal.
type StructLitField struct {
	Name  *Ident
	Value Expression
}

// StructLit is an anonymous struct literal: {x: 1, y: 2}.
type StructLit struct {
	Fields []*StructLitField
	Sp     lexer.Span
}

func (e *StructLit) expressionNode()  {}
func (e *StructLit) Span() lexer.Span { return e.Sp }
func (e *StructLit) String() string   { return structFields(e.Fields) }

// ListLit is a list literal: [e1, e2, ...].
type ListLit struct {
	Elements []Expression
	Sp       lexer.Span
}

func (e *ListLit) expressionNode()  {}
func (e *ListLit) Span() lexer.Span { return e.Sp }
func (e *ListLit) String() string   { return "[" + exprList(e.Elements) + "]" }

// RangeLit is the half-open integer range [start..end).
type RangeLit struct {
	Start Expression
	End   Expression
	Sp    lexer.Span
}

func (e *RangeLit) expressionNode()  {}
func (e *RangeLit) Span() lexer.Span { return e.Sp }

func (e *RangeLit) String() string {
	return "[" + e.Start.String() + ".." + e.End.String() + "]"
}

// CompClause is one `for v in coll` clause of a list comprehension.
type CompClause struct {
	Var        *Ident
	Collection Expression
}

// Comprehension is a list comprehension:
//
//	[ body for v in coll (for w in coll2)* (where filter)? ]
type Comprehension struct {
	Body    Expression
	Clauses []*CompClause
	Filter  Expression
	Sp      lexer.Span
}

func (e *Comprehension) expressionNode()  {}
func (e *Comprehension) Span() lexer.Span { return e.Sp }

func (e *Comprehension) String() string {
	var sb strings.Builder
	sb.WriteString("[")
	sb.WriteString(e.Body.String())
	for _, c := range e.Clauses {
		sb.WriteString(" for ")
		sb.WriteString(c.Var.Name)
		sb.WriteString(" in ")
		sb.WriteString(c.Collection.String())
	}
	if e.Filter != nil {
		sb.WriteString(" where ")
		sb.WriteString(e.Filter.String())
	}
	sb.WriteString("]")
	return sb.String()
}

// GlobalList enumerates all host objects of a type: @[Student].
type GlobalList struct {
	Type TypeExpr
	Sp   lexer.Span
}

func (e *GlobalList) expressionNode()  {}
func (e *GlobalList) Span() lexer.Span { return e.Sp }
func (e *GlobalList) String() string   { return "@[" + e.Type.String() + "]" }

// Cardinality is |expr|, the length of a list.
type Cardinality struct {
	Inner Expression
	Sp    lexer.Span
}

func (e *Cardinality) expressionNode()  {}
func (e *Cardinality) Span() lexer.Span { return e.Sp }
func (e *Cardinality) String() string   { return "|" + e.Inner.String() + "|" }

// PanicExpr aborts evaluation with its payload: panic! expr.
type PanicExpr struct {
	Value Expression
	Sp    lexer.Span
}

func (e *PanicExpr) expressionNode()  {}
func (e *PanicExpr) Span() lexer.Span { return e.Sp }
func (e *PanicExpr) String() string   { return "panic! " + e.Value.String() }

// CastExpr is a postfix cast: `expr as T` (ascription), `expr as? T`
// (fallible narrowing, yields an optional) or `expr as! T` (panicking
// narrowing).
type CastExpr struct {
	Expr Expression
	Type TypeExpr
	Kind CastKind
	Sp   lexer.Span
}

// CastKind selects the cast flavor.
type CastKind int

const (
	CastAscribe CastKind = iota // expr as T
	CastMaybe                   // expr as? T
	CastPanic                   // expr as! T
)

func (e *CastExpr) expressionNode()  {}
func (e *CastExpr) Span() lexer.Span { return e.Sp }

func (e *CastExpr) String() string {
	op := " as "
	switch e.Kind {
	case CastMaybe:
		op = " as? "
	case CastPanic:
		op = " as! "
	}
	return "(" + e.Expr.String() + op + e.Type.String() + ")"
}

// ComplexTypeCast casts with a list type: [LinExpr]([...]).
type ComplexTypeCast struct {
	Type TypeExpr
	Args []Expression
	Sp   lexer.Span
}

func (e *ComplexTypeCast) expressionNode()  {}
func (e *ComplexTypeCast) Span() lexer.Span { return e.Sp }

func (e *ComplexTypeCast) String() string {
	return e.Type.String() + "(" + exprList(e.Args) + ")"
}

func exprList(exprs []Expression) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = e.String()
	}
	return strings.Join(parts, ", ")
}

func structFields(fields []*StructLitField) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f.Name.Name + ": " + f.Value.String()
	}
	return "{ " + strings.Join(parts, ", ") + " }"
}
