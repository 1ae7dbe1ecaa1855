package parser

import (
	"testing"

	"github.com/christophcharles/colloml/pkg/ast"
)

// testParse parses input and fails the test on any error.
func testParse(t *testing.T, input string) *ast.File {
	t.Helper()
	p := New(input)
	file := p.ParseFile()
	if file == nil {
		t.Fatalf("parse failed: %v (lex: %v)", p.Errors(), p.LexErrors())
	}
	return file
}

func TestParseFuncDecl(t *testing.T) {
	file := testParse(t, "pub let add(x: Int, y: Int) -> Int = x + y;")

	if len(file.Statements) != 1 {
		t.Fatalf("statements = %d, want 1", len(file.Statements))
	}
	fn, ok := file.Statements[0].(*ast.FuncDecl)
	if !ok {
		t.Fatalf("statement is %T, want *ast.FuncDecl", file.Statements[0])
	}
	if !fn.Public {
		t.Error("function should be public")
	}
	if fn.Name.Name != "add" {
		t.Errorf("name = %q, want \"add\"", fn.Name.Name)
	}
	if len(fn.Params) != 2 {
		t.Fatalf("params = %d, want 2", len(fn.Params))
	}
	if fn.Params[0].Name.Name != "x" || fn.Params[0].Type.String() != "Int" {
		t.Errorf("first param = %s: %s", fn.Params[0].Name.Name, fn.Params[0].Type)
	}
	if fn.Return.String() != "Int" {
		t.Errorf("return = %s, want Int", fn.Return)
	}
	if fn.Body.String() != "(x + y)" {
		t.Errorf("body = %s", fn.Body)
	}
}

func TestParseTypeDecl(t *testing.T) {
	file := testParse(t, "pub type Point = { x: Int, y: Int };")
	td, ok := file.Statements[0].(*ast.TypeDecl)
	if !ok {
		t.Fatalf("statement is %T", file.Statements[0])
	}
	if td.Name.Name != "Point" {
		t.Errorf("name = %q", td.Name.Name)
	}
	st, ok := td.Underlying.(*ast.StructType)
	if !ok {
		t.Fatalf("underlying is %T", td.Underlying)
	}
	if len(st.Fields) != 2 {
		t.Errorf("fields = %d, want 2", len(st.Fields))
	}
}

func TestParseEnumDecl(t *testing.T) {
	file := testParse(t, "pub enum Result = Ok(Int) | Error { message: String } | Empty;")
	ed, ok := file.Statements[0].(*ast.EnumDecl)
	if !ok {
		t.Fatalf("statement is %T", file.Statements[0])
	}
	if len(ed.Variants) != 3 {
		t.Fatalf("variants = %d, want 3", len(ed.Variants))
	}
	if ed.Variants[0].Payload == nil || ed.Variants[0].Payload.Tuple == nil {
		t.Error("Ok should carry a tuple payload")
	}
	if ed.Variants[1].Payload == nil || ed.Variants[1].Payload.Struct == nil {
		t.Error("Error should carry a struct payload")
	}
	if ed.Variants[2].Payload != nil {
		t.Error("Empty should be a unit variant")
	}
}

func TestParseReifyDecl(t *testing.T) {
	tests := []struct {
		input   string
		varList bool
		name    string
	}{
		{"pub reify check as $Check;", false, "Check"},
		{"pub reify checks as $[CheckList];", true, "CheckList"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			file := testParse(t, tt.input)
			rd, ok := file.Statements[0].(*ast.ReifyDecl)
			if !ok {
				t.Fatalf("statement is %T", file.Statements[0])
			}
			if rd.VarList != tt.varList {
				t.Errorf("varList = %v, want %v", rd.VarList, tt.varList)
			}
			if rd.Name.Name != tt.name {
				t.Errorf("name = %q, want %q", rd.Name.Name, tt.name)
			}
		})
	}
}

func TestParseImportDecl(t *testing.T) {
	file := testParse(t, `import "tools" as t; import "base" as *;`)
	if len(file.Statements) != 2 {
		t.Fatalf("statements = %d", len(file.Statements))
	}
	first := file.Statements[0].(*ast.ImportDecl)
	if first.ModulePath != "tools" || first.Alias == nil || first.Alias.Name != "t" {
		t.Errorf("first import = %s", first)
	}
	second := file.Statements[1].(*ast.ImportDecl)
	if second.ModulePath != "base" || second.Alias != nil {
		t.Errorf("second import = %s", second)
	}
}

// TestParseExpressions checks the printed form of parsed expressions,
// which encodes structure and precedence.
func TestParseExpressions(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"1 + 2 * 3", "(1 + (2 * 3))"},
		{"(1 + 2) * 3", "((1 + 2) * 3)"},
		{"x // 2 % 3", "((x // 2) % 3)"},
		{"-x + 1", "((-x) + 1)"},
		{"not a and b", "((not a) and b)"},
		{"a and b or c", "((a and b) or c)"},
		{"a && b || c", "((a and b) or c)"},
		{"!x", "(not x)"},
		{"x == y and y < z", "((x == y) and (y < z))"},
		{"$V(i) === 1", "($V(i) === 1)"},
		{"$V() + $W() === 1", "(($V() + $W()) === 1)"},
		{"x >== 0", "(x >== 0)"},
		{"mod::$Check(x)", "mod::$Check(x)"},
		{"$[CheckList](x)", "$[CheckList](x)"},
		{"a ?? 0", "(a ?? 0)"},
		{"[0..10]", "[0..10]"},
		{"[1, 2, 3]", "[1, 2, 3]"},
		{"[]", "[]"},
		{"|xs|", "|xs|"},
		{"|@[Student]|", "|@[Student]|"},
		{"@[Student]", "@[Student]"},
		{"student.age > 18", "(student.age > 18)"},
		{"xs[0]!", "xs[0]!"},
		{"xs[i]?", "xs[i]?"},
		{"pair.0", "pair.0"},
		{"x.y.z", "x.y.z"},
		{"x in ys", "(x in ys)"},
		{"f(1, 2)", "f(1, 2)"},
		{"m::f(x)", "m::f(x)"},
		{"Option::Some(1)", "Option::Some(1)"},
		{"Point { x: 0, y: 0 }", "Point { x: 0, y: 0 }"},
		{"(1, true)", "(1, true)"},
		{"{ x: 1 }", "{ x: 1 }"},
		{"if x > 0 { x } else { 0 }", "if (x > 0) { x } else { 0 }"},
		{"let y = x + 1 { y * 2 }", "let y = (x + 1) { (y * 2) }"},
		{"forall s in @[Student] { f(s) }", "forall s in @[Student] { f(s) }"},
		{
			"sum i in [0..10] where i % 2 == 0 { $V(i) }",
			"sum i in [0..10] where ((i % 2) == 0) { $V(i) }",
		},
		{
			"fold x in xs accum a = 0 { a + x }",
			"fold x in xs accum a = 0 { (a + x) }",
		},
		{"[s.id for s in @[Student]]", "[s.id for s in @[Student]]"},
		{
			"[x + y for x in xs for y in ys where x < y]",
			"[(x + y) for x in xs for y in ys where (x < y)]",
		},
		{"panic! 0", "panic! 0"},
		{"x as? Int", "(x as? Int)"},
		{"x as! Option::Some", "(x as! Option::Some)"},
		{"[LinExpr]([1, 2])", "[LinExpr]([1, 2])"},
		{"match r { v as Result::Ok => 1, other => 0 }",
			"match r { v as Result::Ok => 1, other => 0 }"},
		{`"hi"`, `"hi"`},
		{"none", "none"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			file := testParse(t, "let f() -> Int = "+tt.input+";")
			fn := file.Statements[0].(*ast.FuncDecl)
			if got := fn.Body.String(); got != tt.want {
				t.Errorf("body = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestParseDocstrings(t *testing.T) {
	input := "/// Student String(s.name) must attend\npub let f(s: Student) -> Constraint = $V(s) === 1;"
	file := testParse(t, input)
	fn := file.Statements[0].(*ast.FuncDecl)
	if len(fn.Docstring) != 1 {
		t.Fatalf("docstring lines = %d, want 1", len(fn.Docstring))
	}
	line := fn.Docstring[0]
	if len(line) != 2 {
		t.Fatalf("docstring parts = %d, want 2", len(line))
	}
	if line[0].Prefix != "Student " || line[0].Expr == nil {
		t.Errorf("first part = %+v", line[0])
	}
	if line[0].Expr.String() != "s.name" {
		t.Errorf("embedded expr = %s", line[0].Expr)
	}
	if line[1].Prefix != " must attend" || line[1].Expr != nil {
		t.Errorf("second part = %+v", line[1])
	}
}

func TestParseErrors(t *testing.T) {
	tests := []string{
		"let = 1;",
		"let f( -> Int = 1;",
		"let f() -> Int = ;",
		"let f() -> Int = 1",       // missing semicolon
		"let f() -> Int = xs[0];",  // index without ? or !
		"import tools as t;",       // unquoted module path
		"enum E = ;",
		"let f() -> Int = (1, );",
		"99999999999999999999;",
	}
	for _, input := range tests {
		t.Run(input, func(t *testing.T) {
			p := New(input)
			if file := p.ParseFile(); file != nil && len(p.Errors()) == 0 {
				t.Errorf("expected parse error for %q", input)
			}
		})
	}
}

// TestRoundTrip checks that printing a parsed file and re-parsing it
// reproduces the same printed form.
func TestRoundTrip(t *testing.T) {
	inputs := []string{
		"pub let exactly_one() -> Constraint = sum i in [0..10] { $V(i) } === 1;",
		"pub let check(x: Int) -> Constraint = x >== 0;\npub reify check as $Check;\npub let use_check(x: Int) -> LinExpr = $Check(x);",
		`import "mod_a" as a;` + "\npub let origin() -> a::Point = a::Point { x: 0, y: 0 };",
		"pub enum Option = Some { value: Int } | Empty;\npub let get(o: Option) -> Int = match o { s as Option::Some => s.value, other => 0 };",
		"pub let f(xs: [Int]) -> Int = |xs| + xs[0]!;",
		"/// doc line\npub let g() -> LinExpr = $V(1) + 2 * $W(2);",
	}

	for _, input := range inputs {
		t.Run(input[:20], func(t *testing.T) {
			first := testParse(t, input)
			printed := first.String()
			second := testParse(t, printed)
			if second.String() != printed {
				t.Errorf("round trip mismatch:\nfirst:  %s\nsecond: %s", printed, second.String())
			}
		})
	}
}
