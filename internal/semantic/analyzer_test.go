package semantic

import (
	"strings"
	"testing"

	"github.com/christophcharles/colloml/internal/parser"
	"github.com/christophcharles/colloml/pkg/types"
)

// analyzeSources parses and analyzes named sources in order.
func analyzeSources(t *testing.T, sources [][2]string, schema types.Schema, varSchema types.VarSchema) (*Checked, []*Warning, []*Error) {
	t.Helper()
	var mods []Module
	for _, s := range sources {
		p := parser.New(s[1])
		file := p.ParseFile()
		if file == nil {
			t.Fatalf("parse of %q failed: %v", s[0], p.Errors())
		}
		mods = append(mods, Module{Name: s[0], File: file})
	}
	return Analyze(mods, schema, varSchema, nil)
}

func analyzeOne(t *testing.T, source string, schema types.Schema, varSchema types.VarSchema) (*Checked, []*Warning, []*Error) {
	t.Helper()
	return analyzeSources(t, [][2]string{{"main", source}}, schema, varSchema)
}

func requireOK(t *testing.T, checked *Checked, errs []*Error) *Checked {
	t.Helper()
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	return checked
}

func requireError(t *testing.T, errs []*Error, fragment string) {
	t.Helper()
	for _, e := range errs {
		if strings.Contains(e.Message, fragment) {
			return
		}
	}
	t.Fatalf("no error containing %q in %v", fragment, errs)
}

func TestAnalyzeSimpleFunction(t *testing.T) {
	checked, _, errs := analyzeOne(t, "pub let add(x: Int, y: Int) -> Int = x + y;", nil, nil)
	requireOK(t, checked, errs)

	fn := checked.Env.Module("main").Funcs["add"]
	if fn == nil {
		t.Fatal("function not collected")
	}
	if !types.Equal(fn.Return, types.Int()) {
		t.Errorf("return = %s", fn.Return)
	}
	if len(fn.Params) != 2 || !types.Equal(fn.Params[0], types.Int()) {
		t.Errorf("params = %v", fn.Params)
	}
}

func TestAnalyzeTypeRules(t *testing.T) {
	varSchema := types.VarSchema{"V": {types.Int()}}

	valid := []string{
		"pub let f() -> Constraint = sum i in [0..10] { $V(i) } === 1;",
		"pub let f() -> Constraint = $V(1) <== 3;",
		"pub let f() -> Constraint = ($V(1) === 1) or ($V(2) === 1);",
		"pub let f() -> Constraint = not ($V(1) === 1);",
		"pub let f() -> LinExpr = 2 * $V(1) + 1;",
		"pub let f() -> LinExpr = $V(1) * 3;",
		"pub let f(x: Int) -> Bool = x in [1, 2, 3];",
		"pub let f() -> Constraint = $V(1) in [1, 2, 3];",
		"pub let f(x: Int) -> Int = if x > 0 { x } else { 0 };",
		"pub let f(x: Int) -> Int = if x > 0 { x } else { panic! 0 };",
		"pub let f(x: Int?) -> Int = x ?? 0;",
		"pub let f() -> [Int] = [x * 2 for x in [0..5] where x > 1];",
		"pub let f(xs: [Int]) -> Int = |xs|;",
		"pub let f(xs: [Int]) -> Int? = xs[0]?;",
		"pub let f(xs: [Int]) -> Int = xs[0]!;",
		"pub let f(p: (Int, Bool)) -> Int = p.0;",
		"pub let f() -> Int = fold x in [1, 2, 3] accum a = 0 { a + x };",
		"pub let f() -> Constraint = forall i in [0..3] { $V(i) === 0 };",
	}
	for _, src := range valid {
		t.Run("ok/"+src, func(t *testing.T) {
			checked, _, errs := analyzeOne(t, src, nil, varSchema)
			requireOK(t, checked, errs)
		})
	}

	invalid := []struct {
		src      string
		fragment string
	}{
		{"pub let f() -> LinExpr = $V(1) * $V(2);", "multiplication"},
		{"pub let f() -> Bool = $V(1) == 1;", "use a constraint operator"},
		{"pub let f() -> Constraint = true and ($V(1) === 1);", "needs two Bools or two Constraints"},
		{"pub let f() -> Int = true + 1;", "operator +"},
		{"pub let f() -> Int = if 1 { 2 } else { 3 };", "condition must be Bool"},
		{"pub let f() -> Int = if true { 1 } else { false };", "incompatible types"},
		{"pub let f() -> Int = unknown;", "unknown identifier"},
		{"pub let f() -> Int = g(1);", "unknown type"},
		{"pub let f(x: Int) -> Int = x; pub let f(x: Int) -> Int = x;", "duplicate function"},
		{"pub let f() -> Int = $V(true);", "argument 1 has type Bool"},
		{"pub let f() -> LinExpr = $V();", "expects 1 arguments"},
		{"pub let f() -> LinExpr = $W(1);", "unknown variable"},
		{"pub let f() -> Constraint = $V(1) in [true];", "needs an Int list"},
		{"pub let f() -> Int = 1; pub let g(f: Int) -> Int = f;", "shadows a function"},
	}
	for _, tt := range invalid {
		t.Run("bad/"+tt.src, func(t *testing.T) {
			_, _, errs := analyzeOne(t, tt.src, nil, varSchema)
			if len(errs) == 0 {
				t.Fatalf("expected an error for %q", tt.src)
			}
			if tt.fragment != "" {
				requireError(t, errs, tt.fragment)
			}
		})
	}
}

func TestAnalyzeWarnings(t *testing.T) {
	varSchema := types.VarSchema{}

	t.Run("unused local", func(t *testing.T) {
		checked, warnings, errs := analyzeOne(t, "pub let f() -> Int = let y = 1 { 2 };", nil, varSchema)
		requireOK(t, checked, errs)
		if len(warnings) != 1 || !strings.Contains(warnings[0].Message, "unused") {
			t.Errorf("warnings = %v", warnings)
		}
	})

	t.Run("underscore suppresses unused", func(t *testing.T) {
		checked, warnings, errs := analyzeOne(t, "pub let f() -> Int = let _y = 1 { 2 };", nil, varSchema)
		requireOK(t, checked, errs)
		if len(warnings) != 0 {
			t.Errorf("warnings = %v", warnings)
		}
	})

	t.Run("shadowing warns", func(t *testing.T) {
		checked, warnings, errs := analyzeOne(t, "pub let f(x: Int) -> Int = let x = 1 { x };", nil, varSchema)
		requireOK(t, checked, errs)
		found := false
		for _, w := range warnings {
			if strings.Contains(w.Message, "shadows") {
				found = true
			}
		}
		if !found {
			t.Errorf("expected shadow warning, got %v", warnings)
		}
	})
}

func TestAnalyzeModules(t *testing.T) {
	t.Run("aliased import", func(t *testing.T) {
		checked, _, errs := analyzeSources(t, [][2]string{
			{"mod_a", "pub let add(x: Int, y: Int) -> Int = x + y;"},
			{"mod_b", `import "mod_a" as a; pub let inc(x: Int) -> Int = a::add(x, 1);`},
		}, nil, nil)
		requireOK(t, checked, errs)
	})

	t.Run("wildcard import", func(t *testing.T) {
		checked, _, errs := analyzeSources(t, [][2]string{
			{"mod_a", "pub let add(x: Int, y: Int) -> Int = x + y;"},
			{"mod_b", `import "mod_a" as *; pub let inc(x: Int) -> Int = add(x, 1);`},
		}, nil, nil)
		requireOK(t, checked, errs)
	})

	t.Run("private functions stay private", func(t *testing.T) {
		_, _, errs := analyzeSources(t, [][2]string{
			{"mod_a", "let add(x: Int, y: Int) -> Int = x + y;"},
			{"mod_b", `import "mod_a" as a; pub let inc(x: Int) -> Int = a::add(x, 1);`},
		}, nil, nil)
		if len(errs) == 0 {
			t.Fatal("expected an error calling a private function")
		}
	})

	t.Run("unknown module", func(t *testing.T) {
		_, _, errs := analyzeOne(t, `import "nope" as n; pub let f() -> Int = 1;`, nil, nil)
		requireError(t, errs, "unknown module")
	})

	t.Run("import cycle", func(t *testing.T) {
		_, _, errs := analyzeSources(t, [][2]string{
			{"mod_a", `import "mod_b" as b; pub let f() -> Int = 1;`},
			{"mod_b", `import "mod_a" as a; pub let g() -> Int = 2;`},
		}, nil, nil)
		requireError(t, errs, "import cycle")
	})

	t.Run("ambiguous wildcard", func(t *testing.T) {
		_, _, errs := analyzeSources(t, [][2]string{
			{"mod_a", "pub let f() -> Int = 1;"},
			{"mod_b", "pub let f() -> Int = 2;"},
			{"mod_c", `import "mod_a" as *; import "mod_b" as *; pub let g() -> Int = 3;`},
		}, nil, nil)
		requireError(t, errs, "ambiguous wildcard")
	})

	t.Run("cross-module struct type", func(t *testing.T) {
		checked, _, errs := analyzeSources(t, [][2]string{
			{"mod_a", "pub type Point = { x: Int, y: Int };"},
			{"mod_b", `import "mod_a" as a; pub let origin() -> a::Point = a::Point { x: 0, y: 0 };`},
		}, nil, nil)
		requireOK(t, checked, errs)
	})
}

func TestAnalyzeEnums(t *testing.T) {
	src := `
pub enum Option = Some { value: Int } | Empty;
pub let make(x: Int) -> Option = Option::Some { value: x };
pub let nothing() -> Option = Option::Empty;
pub let get(o: Option) -> Int = match o { s as Option::Some => s.value, other => 0 };
`
	checked, warnings, errs := analyzeOne(t, src, nil, nil)
	requireOK(t, checked, errs)
	for _, w := range warnings {
		if strings.Contains(w.Message, "unused") && strings.Contains(w.Message, "other") {
			t.Errorf("match branch binding should count as used-or-ignorable: %v", w)
		}
	}

	td := checked.Env.Module("main").Types["Option"]
	if td == nil || !td.IsEnum {
		t.Fatal("enum not collected")
	}
	if td.Variants["Empty"] != nil {
		t.Error("Empty should be a unit variant")
	}
	someType := td.Variants["Some"]
	if someType == nil || someType.Kind != types.KindStruct {
		t.Fatalf("Some payload = %v", someType)
	}
}

func TestAnalyzeReify(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		src := `
pub let check(x: Int) -> Constraint = x >== 0;
pub reify check as $Check;
pub let use_check(x: Int) -> LinExpr = $Check(x);
`
		checked, _, errs := analyzeOne(t, src, nil, nil)
		requireOK(t, checked, errs)
		rd := checked.Env.Module("main").Reifies["Check"]
		if rd == nil || rd.FnName != "check" || rd.FnModule != "main" {
			t.Fatalf("reify def = %+v", rd)
		}
	})

	t.Run("var list", func(t *testing.T) {
		src := `
pub let checks(x: Int) -> [Constraint] = [x >== 0, x <== 10];
pub reify checks as $[CheckList];
pub let use_list(x: Int) -> [LinExpr] = $[CheckList](x);
`
		checked, _, errs := analyzeOne(t, src, nil, nil)
		requireOK(t, checked, errs)
	})

	t.Run("wrong return type", func(t *testing.T) {
		src := `
pub let f(x: Int) -> Int = x;
pub reify f as $F;
`
		_, _, errs := analyzeOne(t, src, nil, nil)
		requireError(t, errs, "expected Constraint")
	})

	t.Run("single vs list mismatch", func(t *testing.T) {
		src := `
pub let check(x: Int) -> Constraint = x >== 0;
pub reify check as $Check;
pub let f(x: Int) -> [LinExpr] = $[Check](x);
`
		_, _, errs := analyzeOne(t, src, nil, nil)
		if len(errs) == 0 {
			t.Fatal("expected an error")
		}
	})
}

func TestAnalyzeObjectsSchema(t *testing.T) {
	schema := types.Schema{
		"Student": {"id": types.Int(), "age": types.Int()},
	}

	t.Run("field access and global list", func(t *testing.T) {
		src := "pub let ages() -> [Int] = [s.age for s in @[Student]];"
		checked, _, errs := analyzeOne(t, src, schema, nil)
		requireOK(t, checked, errs)
	})

	t.Run("unknown field", func(t *testing.T) {
		src := "pub let f() -> [Int] = [s.name for s in @[Student]];"
		_, _, errs := analyzeOne(t, src, schema, nil)
		requireError(t, errs, "no field")
	})

	t.Run("unknown object type", func(t *testing.T) {
		src := "pub let f() -> Int = |@[Teacher]|;"
		_, _, errs := analyzeOne(t, src, schema, nil)
		requireError(t, errs, "unknown object type")
	})
}

// TestTypeInfoRecorded checks that typechecking records one type per
// expression span.
func TestTypeInfoRecorded(t *testing.T) {
	checked, _, errs := analyzeOne(t, "pub let f(x: Int) -> Int = x + 1;", nil, nil)
	requireOK(t, checked, errs)

	info := checked.TypeInfo["main"]
	if len(info) == 0 {
		t.Fatal("no type info recorded")
	}
	sawInt := false
	for _, typ := range info {
		if types.Equal(typ, types.Int()) {
			sawInt = true
		}
	}
	if !sawInt {
		t.Error("expected Int spans in type info")
	}
}
