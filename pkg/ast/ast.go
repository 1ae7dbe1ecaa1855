// Package ast defines the Abstract Syntax Tree node types for CoLLoML.
//
// Every node carries the byte span it was parsed from; spans drive all
// downstream diagnostics and the per-span type table built by the
// semantic analyzer.
package ast

import (
	"fmt"
	"strings"

	"github.com/christophcharles/colloml/internal/lexer"
)

// Node is the base interface for all AST nodes.
type Node interface {
	// Span returns the byte range this node was parsed from.
	Span() lexer.Span

	// String returns a source-shaped representation of the node. Parsing
	// the output of a File's String yields an equivalent tree.
	String() string
}

// Expression represents any node that produces a value.
type Expression interface {
	Node
	expressionNode()
}

// Statement represents a top-level declaration.
type Statement interface {
	Node
	statementNode()
}

// File is the root node of one parsed module.
type File struct {
	Statements []Statement
}

func (f *File) Span() lexer.Span {
	if len(f.Statements) == 0 {
		return lexer.Span{}
	}
	return f.Statements[0].Span().Merge(f.Statements[len(f.Statements)-1].Span())
}

func (f *File) String() string {
	var sb strings.Builder
	for _, stmt := range f.Statements {
		sb.WriteString(stmt.String())
		sb.WriteString("\n")
	}
	return sb.String()
}

// Ident is an identifier with its span.
type Ident struct {
	Name string
	Sp   lexer.Span
}

func (i *Ident) Span() lexer.Span { return i.Sp }
func (i *Ident) String() string   { return i.Name }

// NamespacePath is a `::`-separated path with one or more segments,
// used for variable references, function calls, type casts and enum
// variants alike; resolution happens in the semantic layer.
type NamespacePath struct {
	Segments []*Ident
	Sp       lexer.Span
}

func (p *NamespacePath) Span() lexer.Span { return p.Sp }

func (p *NamespacePath) String() string {
	parts := make([]string, len(p.Segments))
	for i, seg := range p.Segments {
		parts[i] = seg.Name
	}
	return strings.Join(parts, "::")
}

// Param is a single function parameter declaration.
type Param struct {
	Name *Ident
	Type TypeExpr
}

func (p *Param) String() string {
	return p.Name.Name + ": " + p.Type.String()
}

// DocstringPart is a fragment of a docstring line: literal text optionally
// followed by an expression that was written as String(expr).
type DocstringPart struct {
	Prefix string
	Expr   Expression // nil when the part is plain text
}

// DocstringLine is one ///-prefixed line, split into its parts.
type DocstringLine []DocstringPart

func (d DocstringLine) String() string {
	var sb strings.Builder
	for _, part := range d {
		sb.WriteString(part.Prefix)
		if part.Expr != nil {
			sb.WriteString("String(")
			sb.WriteString(part.Expr.String())
			sb.WriteString(")")
		}
	}
	return sb.String()
}

// FuncDecl is a pure function declaration:
//
//	pub? let name(p1: T1, ...) -> T = body;
type FuncDecl struct {
	Docstring []DocstringLine
	Public    bool
	Name      *Ident
	Params    []*Param
	Return    TypeExpr
	Body      Expression
	Sp        lexer.Span
}

func (d *FuncDecl) statementNode()   {}
func (d *FuncDecl) Span() lexer.Span { return d.Sp }

func (d *FuncDecl) String() string {
	var sb strings.Builder
	for _, line := range d.Docstring {
		sb.WriteString("/// ")
		sb.WriteString(line.String())
		sb.WriteString("\n")
	}
	if d.Public {
		sb.WriteString("pub ")
	}
	sb.WriteString("let ")
	sb.WriteString(d.Name.Name)
	sb.WriteString("(")
	params := make([]string, len(d.Params))
	for i, p := range d.Params {
		params[i] = p.String()
	}
	sb.WriteString(strings.Join(params, ", "))
	sb.WriteString(") -> ")
	sb.WriteString(d.Return.String())
	sb.WriteString(" = ")
	sb.WriteString(d.Body.String())
	sb.WriteString(";")
	return sb.String()
}

// TypeDecl is a type alias declaration: pub? type Name = T;
type TypeDecl struct {
	Public     bool
	Name       *Ident
	Underlying TypeExpr
	Sp         lexer.Span
}

func (d *TypeDecl) statementNode()   {}
func (d *TypeDecl) Span() lexer.Span { return d.Sp }

func (d *TypeDecl) String() string {
	var sb strings.Builder
	if d.Public {
		sb.WriteString("pub ")
	}
	sb.WriteString("type ")
	sb.WriteString(d.Name.Name)
	sb.WriteString(" = ")
	sb.WriteString(d.Underlying.String())
	sb.WriteString(";")
	return sb.String()
}

// EnumVariant is a single variant of an enum declaration. Payload is nil
// for unit variants.
type EnumVariant struct {
	Name    *Ident
	Payload *EnumVariantType
	Sp      lexer.Span
}

func (v *EnumVariant) String() string {
	if v.Payload == nil {
		return v.Name.Name
	}
	return v.Name.Name + v.Payload.String()
}

// EnumVariantType is the payload of a non-unit enum variant: either a
// tuple of types or a record of named fields.
type EnumVariantType struct {
	Tuple  []TypeExpr        // Name(T1, T2); nil when Struct is used
	Struct []*StructFieldDef // Name{f: T}; nil when Tuple is used
}

func (t *EnumVariantType) String() string {
	if t.Struct != nil {
		parts := make([]string, len(t.Struct))
		for i, f := range t.Struct {
			parts[i] = f.Name.Name + ": " + f.Type.String()
		}
		return " { " + strings.Join(parts, ", ") + " }"
	}
	parts := make([]string, len(t.Tuple))
	for i, typ := range t.Tuple {
		parts[i] = typ.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// EnumDecl is an enum declaration: pub? enum Name = V1(...) | V2 | ...;
type EnumDecl struct {
	Public   bool
	Name     *Ident
	Variants []*EnumVariant
	Sp       lexer.Span
}

func (d *EnumDecl) statementNode()   {}
func (d *EnumDecl) Span() lexer.Span { return d.Sp }

func (d *EnumDecl) String() string {
	var sb strings.Builder
	if d.Public {
		sb.WriteString("pub ")
	}
	sb.WriteString("enum ")
	sb.WriteString(d.Name.Name)
	sb.WriteString(" = ")
	parts := make([]string, len(d.Variants))
	for i, v := range d.Variants {
		parts[i] = v.String()
	}
	sb.WriteString(strings.Join(parts, " | "))
	sb.WriteString(";")
	return sb.String()
}

// ReifyDecl declares that a helper variable (or variable list) is defined
// by a constraint-returning function:
//
//	pub? reify func as $Name;
//	pub? reify func as $[Name];
type ReifyDecl struct {
	Docstring      []DocstringLine
	Public         bool
	ConstraintPath *NamespacePath
	VarList        bool
	Name           *Ident
	Sp             lexer.Span
}

func (d *ReifyDecl) statementNode()   {}
func (d *ReifyDecl) Span() lexer.Span { return d.Sp }

func (d *ReifyDecl) String() string {
	var sb strings.Builder
	for _, line := range d.Docstring {
		sb.WriteString("/// ")
		sb.WriteString(line.String())
		sb.WriteString("\n")
	}
	if d.Public {
		sb.WriteString("pub ")
	}
	sb.WriteString("reify ")
	sb.WriteString(d.ConstraintPath.String())
	sb.WriteString(" as ")
	if d.VarList {
		sb.WriteString("$[")
		sb.WriteString(d.Name.Name)
		sb.WriteString("]")
	} else {
		sb.WriteString("$")
		sb.WriteString(d.Name.Name)
	}
	sb.WriteString(";")
	return sb.String()
}

// ImportDecl imports another module, either under a local alias or as a
// wildcard bringing all public names into scope (Alias == nil).
type ImportDecl struct {
	ModulePath string
	PathSpan   lexer.Span
	Alias      *Ident // nil for wildcard imports
	Sp         lexer.Span
}

func (d *ImportDecl) statementNode()   {}
func (d *ImportDecl) Span() lexer.Span { return d.Sp }

func (d *ImportDecl) String() string {
	alias := "*"
	if d.Alias != nil {
		alias = d.Alias.Name
	}
	return fmt.Sprintf("import %q as %s;", d.ModulePath, alias)
}
