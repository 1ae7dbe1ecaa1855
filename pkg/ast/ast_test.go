package ast

import (
	"testing"

	"github.com/christophcharles/colloml/internal/lexer"
)

func ident(name string) *Ident {
	return &Ident{Name: name}
}

func TestStatementStrings(t *testing.T) {
	fn := &FuncDecl{
		Public: true,
		Name:   ident("add"),
		Params: []*Param{
			{Name: ident("x"), Type: &PathType{Path: &NamespacePath{Segments: []*Ident{ident("Int")}}}},
			{Name: ident("y"), Type: &PathType{Path: &NamespacePath{Segments: []*Ident{ident("Int")}}}},
		},
		Return: &PathType{Path: &NamespacePath{Segments: []*Ident{ident("Int")}}},
		Body: &BinaryExpr{
			Op:    "+",
			Left:  &IdentPath{Path: &NamespacePath{Segments: []*Ident{ident("x")}}},
			Right: &IdentPath{Path: &NamespacePath{Segments: []*Ident{ident("y")}}},
		},
	}
	want := "pub let add(x: Int, y: Int) -> Int = (x + y);"
	if fn.String() != want {
		t.Errorf("FuncDecl.String() = %q, want %q", fn.String(), want)
	}

	imp := &ImportDecl{ModulePath: "tools", Alias: ident("t")}
	if imp.String() != `import "tools" as t;` {
		t.Errorf("ImportDecl.String() = %q", imp.String())
	}

	wildcard := &ImportDecl{ModulePath: "base"}
	if wildcard.String() != `import "base" as *;` {
		t.Errorf("wildcard ImportDecl.String() = %q", wildcard.String())
	}

	reify := &ReifyDecl{
		Public:         true,
		ConstraintPath: &NamespacePath{Segments: []*Ident{ident("check")}},
		Name:           ident("Check"),
	}
	if reify.String() != "pub reify check as $Check;" {
		t.Errorf("ReifyDecl.String() = %q", reify.String())
	}

	reifyList := &ReifyDecl{
		ConstraintPath: &NamespacePath{Segments: []*Ident{ident("checks")}},
		VarList:        true,
		Name:           ident("CheckList"),
	}
	if reifyList.String() != "reify checks as $[CheckList];" {
		t.Errorf("list ReifyDecl.String() = %q", reifyList.String())
	}
}

func TestSpanMerge(t *testing.T) {
	a := lexer.Span{Start: 3, End: 7}
	b := lexer.Span{Start: 5, End: 12}
	merged := a.Merge(b)
	if merged != (lexer.Span{Start: 3, End: 12}) {
		t.Errorf("merged = %v", merged)
	}

	file := &File{Statements: []Statement{
		&ImportDecl{ModulePath: "a", Sp: lexer.Span{Start: 0, End: 10}},
		&ImportDecl{ModulePath: "b", Sp: lexer.Span{Start: 11, End: 25}},
	}}
	if file.Span() != (lexer.Span{Start: 0, End: 25}) {
		t.Errorf("file span = %v", file.Span())
	}
}
