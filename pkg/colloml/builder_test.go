package colloml

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/christophcharles/colloml/pkg/ilp"
	"github.com/christophcharles/colloml/pkg/types"
	"github.com/christophcharles/colloml/pkg/value"
)

// testVars is a VariableProvider built from a schema, an instance list
// and an optional fix function.
type testVars struct {
	schema types.VarSchema
	vars   []BaseVariable
	fix    func(*value.BaseVar) (float64, bool)
}

func (v *testVars) FieldSchema() types.VarSchema { return v.schema }

func (v *testVars) Vars() ([]BaseVariable, error) { return v.vars, nil }

func (v *testVars) Fix(bv *value.BaseVar) (float64, bool) {
	if v.fix == nil {
		return 0, false
	}
	return v.fix(bv)
}

func (v *testVars) TryFromExtern(bv *value.BaseVar) error {
	params, ok := v.schema[bv.Name]
	if !ok {
		return &VarConversionError{Name: bv.Name, Unknown: true}
	}
	if len(bv.Params) != len(params) {
		return &VarConversionError{Name: bv.Name, Expected: len(params), Found: len(bv.Params)}
	}
	return nil
}

// intFamily declares a binary family name(i) for i in [0, n).
func intFamily(name string, n int) *testVars {
	tv := &testVars{schema: types.VarSchema{name: {types.Int()}}}
	for i := 0; i < n; i++ {
		tv.vars = append(tv.vars, BaseVariable{
			Var:  value.NewBaseVar(name, []value.Value{&value.Int{Value: int32(i)}}),
			Kind: ilp.Binary(),
		})
	}
	return tv
}

// unitVars declares parameterless binary families.
func unitVars(names ...string) *testVars {
	tv := &testVars{schema: types.VarSchema{}}
	for _, name := range names {
		tv.schema[name] = nil
		tv.vars = append(tv.vars, BaseVariable{
			Var:  value.NewBaseVar(name, nil),
			Kind: ilp.Binary(),
		})
	}
	return tv
}

func baseKey(name string, params ...int32) string {
	values := make([]value.Value, len(params))
	for i, p := range params {
		values[i] = &value.Int{Value: p}
	}
	return value.NewBaseVar(name, values).Key()
}

func problemConstraintStrings(p *Problem) []string {
	out := make([]string, len(p.Constraints()))
	for i, c := range p.Constraints() {
		out[i] = c.Constraint.String()
	}
	return out
}

// TestScenarioExactlyOne is spec scenario 1: a sum over a binary family
// pinned to one.
func TestScenarioExactlyOne(t *testing.T) {
	builder, err := NewProblemBuilder(nil, intFamily("V", 10))
	require.NoError(t, err)

	warnings, err := builder.AddScriptConstraints(Script{
		Name:    "rules",
		Content: "pub let exactly_one() -> Constraint = sum i in [0..10] { $V(i) } === 1;",
	}, []FnCall{{Name: "exactly_one"}})
	require.NoError(t, err)
	assert.Empty(t, warnings)

	problem := builder.Build()
	inner := problem.Inner()

	require.Len(t, inner.Variables(), 10)
	require.Len(t, inner.Constraints(), 1)

	c := inner.Constraints()[0]
	assert.Equal(t, ilp.Equals, c.Symbol())
	assert.Equal(t, -1.0, c.LHS().ConstantTerm())
	for i := int32(0); i < 10; i++ {
		bv := value.NewBaseVar("V", []value.Value{&value.Int{Value: i}})
		assert.Equal(t, 1.0, c.LHS().Coef(value.IlpVar(bv)), "V(%d) coefficient", i)
	}

	require.NotNil(t, problem.Constraints()[0].Origin)
	assert.Equal(t, "rules::exactly_one()", problem.Constraints()[0].Origin.String())
}

// TestScenarioFixSubstitution is spec scenario 2: fixed variables fold
// into the constant term and vanish from the variable set.
func TestScenarioFixSubstitution(t *testing.T) {
	vars := intFamily("V", 10)
	vars.fix = func(bv *value.BaseVar) (float64, bool) {
		if len(bv.Params) == 1 {
			if i, ok := bv.Params[0].(*value.Int); ok && i.Value != 7 {
				return 0.0, true
			}
		}
		return 0, false
	}

	builder, err := NewProblemBuilder(nil, vars)
	require.NoError(t, err)

	_, err = builder.AddScriptConstraints(Script{
		Name:    "rules",
		Content: "pub let exactly_one() -> Constraint = sum i in [0..10] { $V(i) } === 1;",
	}, []FnCall{{Name: "exactly_one"}})
	require.NoError(t, err)

	problem := builder.Build()
	inner := problem.Inner()

	require.Len(t, inner.Variables(), 1)
	v7 := value.NewBaseVar("V", []value.Value{&value.Int{Value: 7}})
	assert.True(t, inner.HasVariable(value.IlpVar(v7)))

	require.Len(t, inner.Constraints(), 1)
	c := inner.Constraints()[0]
	assert.Equal(t, "1*$V(7) + (-1) = 0", c.String())

	// Rehydration: the solved value for V(7) plus the nine fixed zeros.
	config, err := problem.ReadSolution(Solution{baseKey("V", 7): 1.0})
	require.NoError(t, err)
	assert.Equal(t, 10, config.Len())
	val, ok := config.Get(value.IlpVar(v7))
	require.True(t, ok)
	assert.Equal(t, 1.0, val)
	val, ok = config.Get(value.IlpVar(value.NewBaseVar("V", []value.Value{&value.Int{Value: 0}})))
	require.True(t, ok)
	assert.Equal(t, 0.0, val)
}

// TestScenarioReifiedVariable is spec scenario 3: a reified variable
// whose defining constraint is trivially true is pinned to one.
func TestScenarioReifiedVariable(t *testing.T) {
	builder, err := NewProblemBuilder(nil, &testVars{schema: types.VarSchema{}})
	require.NoError(t, err)

	_, err = builder.AddScriptConstraints(Script{
		Name: "rules",
		Content: `
pub let check(x: Int) -> Constraint = x >== 0;
pub reify check as $Check;
pub let use_check(x: Int) -> Constraint = $Check(x) === 1;
`,
	}, []FnCall{{Name: "use_check", Args: []value.Value{&value.Int{Value: 5}}}})
	require.NoError(t, err)

	problem := builder.Build()
	inner := problem.Inner()

	sv := value.NewScriptVar("rules", "Check", nil, []value.Value{&value.Int{Value: 5}})
	assert.True(t, inner.HasVariable(value.IlpVar(sv)), "Check(5) should be declared")
	kind, _ := inner.VariableKind(value.IlpVar(sv))
	assert.Equal(t, ilp.KindBinary, kind.Kind())

	strs := problemConstraintStrings(problem)
	joined := strings.Join(strs, "\n")
	// The added constraint pins the variable to 1; the defining block
	// (check(5) is trivially true) forces v >= 1.
	assert.Contains(t, joined, "1*$Check(5) + (-1) = 0")
	assert.Contains(t, joined, "(-1)*$Check(5) + 1 <= 0")
}

// TestScenarioLogicalOr is spec scenario 4: a disjunction lowers to
// helper variables with a cover constraint.
func TestScenarioLogicalOr(t *testing.T) {
	builder, err := NewProblemBuilder(nil, unitVars("V", "W"))
	require.NoError(t, err)

	_, err = builder.AddScriptConstraints(Script{
		Name:    "rules",
		Content: "pub let or_constraint() -> Constraint = ($V() === 1) or ($W() === 1);",
	}, []FnCall{{Name: "or_constraint"}})
	require.NoError(t, err)

	problem := builder.Build()
	inner := problem.Inner()

	helpers := 0
	for _, dv := range inner.Variables() {
		if _, isHelper := dv.Var.(value.HelperVar); isHelper {
			helpers++
			assert.Equal(t, ilp.KindBinary, dv.Kind.Kind())
		}
	}
	assert.Equal(t, 2, helpers)

	joined := strings.Join(problemConstraintStrings(problem), "\n")
	assert.Contains(t, joined, "h_0")
	assert.Contains(t, joined, "h_1")
	assert.Contains(t, joined, "$V()")
	assert.Contains(t, joined, "$W()")
}

// TestScenarioConstraintsAndObjectives is spec scenario 5.
func TestScenarioConstraintsAndObjectives(t *testing.T) {
	builder, err := NewProblemBuilder(nil, unitVars("V", "W"))
	require.NoError(t, err)

	warnings, err := builder.AddScriptConstraintsAndObjectives(Script{
		Name: "combined",
		Content: `
pub let constraint() -> Constraint = $V() + $W() === 1;
pub let objective() -> LinExpr = $V();
`,
	},
		[]FnCall{{Name: "constraint"}},
		[]Objective{{Name: "objective", Weight: 1.0, Sense: ilp.Maximize}},
	)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	problem := builder.Build()
	inner := problem.Inner()

	require.Len(t, inner.Constraints(), 1)
	assert.Equal(t, "1*$V() + 1*$W() + (-1) = 0", inner.Constraints()[0].String())

	obj, sense := inner.Objective()
	assert.Equal(t, ilp.Maximize, sense)
	assert.Equal(t, "1*$V()", obj.String())
}

// TestScenarioPanicRollsBack is spec scenario 6: a panic aborts the add
// call and discards its partial additions.
func TestScenarioPanicRollsBack(t *testing.T) {
	builder, err := NewProblemBuilder(nil, unitVars("V"))
	require.NoError(t, err)

	_, err = builder.AddScriptConstraints(Script{
		Name: "rules",
		Content: `
pub let good() -> Constraint = $V() === 1;
pub let bad(x: Int) -> Constraint = if x > 0 { $V() === 1 } else { panic! 0 };
`,
	}, []FnCall{
		{Name: "good"},
		{Name: "bad", Args: []value.Value{&value.Int{Value: -1}}},
	})

	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	requireInt(t, pe.Payload, 0)

	// The whole call rolled back, including the successful first
	// function.
	problem := builder.Build()
	assert.Empty(t, problem.Inner().Constraints())
}

func TestBuilderErrors(t *testing.T) {
	script := Script{
		Name: "rules",
		Content: `
pub let c() -> Constraint = $V() === 1;
pub let lin() -> LinExpr = $V();
let private_c() -> Constraint = $V() === 1;
`,
	}

	newBuilder := func(t *testing.T) (*ProblemBuilder, *CompiledScript) {
		builder, err := NewProblemBuilder(nil, unitVars("V"))
		require.NoError(t, err)
		compiled, err := builder.CompileScript(script.Name, script.Content)
		require.NoError(t, err)
		return builder, compiled
	}

	t.Run("unknown function", func(t *testing.T) {
		builder, compiled := newBuilder(t)
		err := builder.AddConstraints(compiled, []FnCall{{Name: "nope"}})
		var ufe *UnknownFunctionError
		require.ErrorAs(t, err, &ufe)
	})

	t.Run("private function", func(t *testing.T) {
		builder, compiled := newBuilder(t)
		err := builder.AddConstraints(compiled, []FnCall{{Name: "private_c"}})
		var ufe *UnknownFunctionError
		require.ErrorAs(t, err, &ufe)
	})

	t.Run("argument count mismatch", func(t *testing.T) {
		builder, compiled := newBuilder(t)
		err := builder.AddConstraints(compiled, []FnCall{{Name: "c", Args: []value.Value{&value.Int{Value: 1}}}})
		var ace *ArgumentCountError
		require.ErrorAs(t, err, &ace)
	})

	t.Run("wrong return type", func(t *testing.T) {
		builder, compiled := newBuilder(t)
		err := builder.AddConstraints(compiled, []FnCall{{Name: "lin"}})
		var wre *WrongReturnTypeError
		require.ErrorAs(t, err, &wre)
	})

	t.Run("compile error", func(t *testing.T) {
		builder, err := NewProblemBuilder(nil, unitVars("V"))
		require.NoError(t, err)
		_, err = builder.CompileScript("broken", "pub let f( -> Int = 1;")
		var ce *CompileError
		require.ErrorAs(t, err, &ce)
	})

	t.Run("undeclared base variable", func(t *testing.T) {
		// W is in the field schema but the host never declares an
		// instance for it.
		tv := unitVars("V")
		tv.schema["W"] = nil
		builder, err := NewProblemBuilder(nil, tv)
		require.NoError(t, err)
		err2 := builder.AddConstraints(mustCompile(t, builder, "rules", "pub let c() -> Constraint = $W() === 1;"), []FnCall{{Name: "c"}})
		require.Error(t, err2)
	})
}

func mustCompile(t *testing.T, b *ProblemBuilder, name, source string) *CompiledScript {
	t.Helper()
	compiled, err := b.CompileScript(name, source)
	require.NoError(t, err)
	return compiled
}

// TestReifiedVariableList checks $[Name](args) expansion: one variable
// per list index, each with its own defining block.
func TestReifiedVariableList(t *testing.T) {
	builder, err := NewProblemBuilder(nil, intFamily("X", 1))
	require.NoError(t, err)

	_, err = builder.AddScriptConstraints(Script{
		Name: "rules",
		Content: `
pub let checks(x: Int) -> [Constraint] = [$X(0) >== x, $X(0) <== x];
pub reify checks as $[CheckList];
pub let both(x: Int) -> Constraint = sum c in $[CheckList](x) { c } === 2;
`,
	}, []FnCall{{Name: "both", Args: []value.Value{&value.Int{Value: 0}}}})
	require.NoError(t, err)

	problem := builder.Build()
	inner := problem.Inner()

	for i := 0; i < 2; i++ {
		idx := i
		sv := value.NewScriptVar("rules", "CheckList", &idx, []value.Value{&value.Int{Value: 0}})
		assert.True(t, inner.HasVariable(value.IlpVar(sv)), "CheckList[%d] should be declared", i)
	}
}

// TestAddReifiedVariables registers a reification through the builder
// API instead of a reify statement.
func TestAddReifiedVariables(t *testing.T) {
	builder, err := NewProblemBuilder(nil, &testVars{schema: types.VarSchema{}})
	require.NoError(t, err)

	compiled, err := builder.CompileScript("rules", "pub let check(x: Int) -> Constraint = x >== 0;")
	require.NoError(t, err)

	_, _, err = builder.AddReifiedVariables(compiled, []ReifyPair{{FnName: "check", VarName: "Check"}})
	require.NoError(t, err)

	user, err := builder.CompileScript("user", `
import "rules" as r;
pub let c() -> Constraint = r::$Check(3) === 1;
`)
	require.NoError(t, err)

	require.NoError(t, builder.AddConstraints(user, []FnCall{{Name: "c"}}))

	problem := builder.Build()
	sv := value.NewScriptVar("rules", "Check", nil, []value.Value{&value.Int{Value: 3}})
	assert.True(t, problem.Inner().HasVariable(value.IlpVar(sv)))
}

// TestOriginDocstring checks docstring rendering with embedded
// expressions at origin-creation time.
func TestOriginDocstring(t *testing.T) {
	builder, err := NewProblemBuilder(nil, intFamily("V", 3))
	require.NoError(t, err)

	_, err = builder.AddScriptConstraints(Script{
		Name: "rules",
		Content: `/// Slot String(i) must be used
pub let used(i: Int) -> Constraint = $V(i) === 1;
`,
	}, []FnCall{{Name: "used", Args: []value.Value{&value.Int{Value: 2}}}})
	require.NoError(t, err)

	problem := builder.Build()
	require.NotEmpty(t, problem.Constraints())
	origin := problem.Constraints()[0].Origin
	require.NotNil(t, origin)
	assert.Equal(t, "Slot 2 must be used", origin.String())
}

// TestDeterminism runs the pipeline twice over identical inputs and
// compares the rendered problems byte for byte.
func TestDeterminism(t *testing.T) {
	build := func() string {
		builder, err := NewProblemBuilder(nil, intFamily("V", 10))
		require.NoError(t, err)
		_, err = builder.AddScriptConstraints(Script{
			Name: "rules",
			Content: `
pub let exactly_one() -> Constraint = sum i in [0..10] { $V(i) } === 1;
pub let spread() -> Constraint = forall i in [0..9] { $V(i) + $V(i + 1) <== 1 };
`,
		}, []FnCall{{Name: "exactly_one"}, {Name: "spread"}})
		require.NoError(t, err)
		return builder.Build().Inner().String()
	}

	first := build()
	second := build()
	assert.Equal(t, first, second)
	assert.NotEmpty(t, first)
}

// TestConstraintOrderPreserved checks that constraints appear in call
// order.
func TestConstraintOrderPreserved(t *testing.T) {
	builder, err := NewProblemBuilder(nil, intFamily("V", 3))
	require.NoError(t, err)

	_, err = builder.AddScriptConstraints(Script{
		Name: "rules",
		Content: `
pub let first() -> Constraint = $V(0) === 1;
pub let second() -> Constraint = $V(1) === 0;
`,
	}, []FnCall{{Name: "first"}, {Name: "second"}})
	require.NoError(t, err)

	problem := builder.Build()
	require.Len(t, problem.Constraints(), 2)
	assert.Equal(t, "first", problem.Constraints()[0].Origin.FnName)
	assert.Equal(t, "second", problem.Constraints()[1].Origin.FnName)
}

// TestEmptyForall is the boundary case: a forall over an empty
// collection is trivially satisfied and adds nothing.
func TestEmptyForall(t *testing.T) {
	builder, err := NewProblemBuilder(nil, intFamily("V", 1))
	require.NoError(t, err)

	_, err = builder.AddScriptConstraints(Script{
		Name:    "rules",
		Content: "pub let empty() -> Constraint = forall i in [0..0] { $V(i) === 1 };",
	}, []FnCall{{Name: "empty"}})
	require.NoError(t, err)

	problem := builder.Build()
	assert.Empty(t, problem.Inner().Constraints())
}

// TestReadSolutionRounding checks integer rounding during rehydration.
func TestReadSolutionRounding(t *testing.T) {
	builder, err := NewProblemBuilder(nil, intFamily("V", 1))
	require.NoError(t, err)
	_, err = builder.AddScriptConstraints(Script{
		Name:    "rules",
		Content: "pub let c() -> Constraint = $V(0) === 1;",
	}, []FnCall{{Name: "c"}})
	require.NoError(t, err)

	problem := builder.Build()
	config, err := problem.ReadSolution(Solution{baseKey("V", 0): 0.9999})
	require.NoError(t, err)

	val, ok := config.Get(value.IlpVar(value.NewBaseVar("V", []value.Value{&value.Int{Value: 0}})))
	require.True(t, ok)
	assert.Equal(t, 1.0, val)

	_, err = problem.ReadSolution(Solution{})
	require.Error(t, err, "missing base variable should error")
}

func TestWarningsSurface(t *testing.T) {
	builder, err := NewProblemBuilder(nil, intFamily("V", 1))
	require.NoError(t, err)

	warnings, err := builder.AddScriptConstraints(Script{
		Name:    "rules",
		Content: "pub let c() -> Constraint = let unused = 1 { $V(0) === 1 };",
	}, []FnCall{{Name: "c"}})
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Message, "unused")
}

// TestCompileErrorKeepsEarlierModules: a failed compile leaves the
// previously compiled module set usable.
func TestCompileErrorKeepsEarlierModules(t *testing.T) {
	builder, err := NewProblemBuilder(nil, unitVars("V"))
	require.NoError(t, err)

	good := mustCompile(t, builder, "good", "pub let c() -> Constraint = $V() === 1;")

	_, err = builder.CompileScript("broken", "pub let f() -> Nope = 1;")
	var ce *CompileError
	require.ErrorAs(t, err, &ce)

	require.NoError(t, builder.AddConstraints(good, []FnCall{{Name: "c"}}))
	assert.Len(t, builder.Build().Inner().Constraints(), 1)
}
