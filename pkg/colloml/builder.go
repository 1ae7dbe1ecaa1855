package colloml

import (
	"fmt"

	"github.com/christophcharles/colloml/internal/eval"
	"github.com/christophcharles/colloml/internal/linearize"
	"github.com/christophcharles/colloml/internal/semantic"
	"github.com/christophcharles/colloml/pkg/ilp"
	"github.com/christophcharles/colloml/pkg/types"
	"github.com/christophcharles/colloml/pkg/value"
)

// FnCall names a script function together with the concrete arguments to
// evaluate it with; one FnCall is one constraint origin.
type FnCall struct {
	Name string
	Args []value.Value
}

// Objective names a LinExpr-returning script function, the weight its
// result is scaled by, and the optimization sense.
type Objective struct {
	Name   string
	Args   []value.Value
	Weight float64
	Sense  ilp.ObjectiveSense
}

// ReifyPair declares one script function as the definition of a named
// variable.
type ReifyPair struct {
	FnName  string
	VarName string
	VarList bool
}

type fixedVar struct {
	v   *value.BaseVar
	val float64
}

// ProblemBuilder orchestrates the pipeline: it owns the compiled module
// set, the host's variable enumeration and fixes, the interned script
// variables, the helper counter and the accumulated constraints and
// objective.
//
// Add calls are transactional: a failing call discards everything the
// call produced. Constraints keep the order the calls produced them in.
type ProblemBuilder struct {
	objects ObjectProvider
	vars    VariableProvider

	scripts      []Script
	extraReifies []semantic.ExtraReify

	baseVars map[string]BaseVariable
	fixes    map[string]fixedVar

	counter     linearize.Counter
	scriptVars  map[string]*value.ScriptVar
	defined     map[string]bool
	helpers     []value.HelperVar
	constraints []value.ConstraintWithOrigin
	objective   ilp.Expr[value.IlpVar]
	sense       ilp.ObjectiveSense
	senseSet    bool
}

// NewProblemBuilder creates a builder over the host environment and runs
// base-variable enumeration: fixed variables go to the pre-substitution
// map, the rest into the solver's variable set.
func NewProblemBuilder(objects ObjectProvider, vars VariableProvider) (*ProblemBuilder, error) {
	if objects == nil {
		objects = NoObjects{}
	}
	b := &ProblemBuilder{
		objects:    objects,
		vars:       vars,
		baseVars:   map[string]BaseVariable{},
		fixes:      map[string]fixedVar{},
		scriptVars: map[string]*value.ScriptVar{},
		defined:    map[string]bool{},
		objective:  ilp.NewExpr[value.IlpVar](),
	}

	declared, err := vars.Vars()
	if err != nil {
		return nil, err
	}
	for _, dv := range declared {
		if x, fixed := vars.Fix(dv.Var); fixed {
			b.fixes[dv.Var.Key()] = fixedVar{v: dv.Var, val: x}
			continue
		}
		b.baseVars[dv.Var.Key()] = dv
	}
	return b, nil
}

// CompileScript compiles a named module against the builder's existing
// module set and remembers it for subsequent compilations.
func (b *ProblemBuilder) CompileScript(name, source string) (*CompiledScript, error) {
	scripts := append(append([]Script{}, b.scripts...), Script{Name: name, Content: source})
	checked, warnings, err := compileModules(scripts, b.objects.TypeSchemas(), b.vars.FieldSchema(), b.extraReifies)
	if err != nil {
		return nil, err
	}
	b.scripts = scripts
	return &CompiledScript{Name: name, checked: checked, warnings: warnings}, nil
}

// AddReifiedVariables registers host-declared reifications for a
// compiled script's module and returns the recompiled handle that knows
// them.
func (b *ProblemBuilder) AddReifiedVariables(script *CompiledScript, pairs []ReifyPair) (*CompiledScript, []*Warning, error) {
	extras := append([]semantic.ExtraReify{}, b.extraReifies...)
	for _, pair := range pairs {
		extras = append(extras, semantic.ExtraReify{
			Module:  script.Name,
			FnName:  pair.FnName,
			VarName: pair.VarName,
			VarList: pair.VarList,
		})
	}
	checked, warnings, err := compileModules(b.scripts, b.objects.TypeSchemas(), b.vars.FieldSchema(), extras)
	if err != nil {
		return nil, warnings, err
	}
	b.extraReifies = extras
	return &CompiledScript{Name: script.Name, checked: checked, warnings: warnings}, warnings, nil
}

// AddConstraints evaluates each listed public function of the script
// (expecting Constraint), lowers the results and appends them to the
// problem. The whole call rolls back on failure.
func (b *ProblemBuilder) AddConstraints(script *CompiledScript, calls []FnCall) error {
	return b.addConstraintsAndObjectives(script, calls, nil)
}

// AddConstraintsAndObjectives is AddConstraints plus objective
// accumulation in the same transaction.
func (b *ProblemBuilder) AddConstraintsAndObjectives(script *CompiledScript, calls []FnCall, objectives []Objective) error {
	return b.addConstraintsAndObjectives(script, calls, objectives)
}

// AddScriptConstraints compiles a script and adds its constraints in one
// step, returning the compile warnings.
func (b *ProblemBuilder) AddScriptConstraints(s Script, calls []FnCall) ([]*Warning, error) {
	compiled, err := b.CompileScript(s.Name, s.Content)
	if err != nil {
		return nil, err
	}
	if err := b.AddConstraints(compiled, calls); err != nil {
		return compiled.Warnings(), err
	}
	return compiled.Warnings(), nil
}

// AddScriptConstraintsAndObjectives compiles a script and adds both
// constraints and objectives in one step.
func (b *ProblemBuilder) AddScriptConstraintsAndObjectives(s Script, calls []FnCall, objectives []Objective) ([]*Warning, error) {
	compiled, err := b.CompileScript(s.Name, s.Content)
	if err != nil {
		return nil, err
	}
	if err := b.AddConstraintsAndObjectives(compiled, calls, objectives); err != nil {
		return compiled.Warnings(), err
	}
	return compiled.Warnings(), nil
}

func (b *ProblemBuilder) addConstraintsAndObjectives(script *CompiledScript, calls []FnCall, objectives []Objective) error {
	t := newTxn(b, script.checked)
	for _, call := range calls {
		if err := t.addConstraint(script.Name, call); err != nil {
			return err
		}
	}
	for _, obj := range objectives {
		if err := t.addObjective(script.Name, obj); err != nil {
			return err
		}
	}
	if err := t.definePending(); err != nil {
		return err
	}
	t.commit()
	return nil
}

// fixLookup is the pre-substitution map as a fold callback.
func (b *ProblemBuilder) fixLookup(v value.IlpVar) (float64, bool) {
	bv, ok := v.(*value.BaseVar)
	if !ok {
		return 0, false
	}
	f, fixed := b.fixes[bv.Key()]
	if !fixed {
		return 0, false
	}
	return f.val, true
}

// bounds reports variable bounds for the linearisation kernel. Script
// and helper variables are binary; base variables carry their declared
// kind.
func (b *ProblemBuilder) bounds(v value.IlpVar) (lo, hi float64, integer bool, ok bool) {
	switch bv := v.(type) {
	case *value.BaseVar:
		dv, declared := b.baseVars[bv.Key()]
		if !declared {
			if f, fixed := b.fixes[bv.Key()]; fixed {
				return f.val, f.val, true, true
			}
			return 0, 0, false, false
		}
		lo, hi = dv.Kind.Bounds()
		return lo, hi, dv.Kind.IsInteger(), true
	default: // *value.ScriptVar, value.HelperVar
		return 0, 1, true, true
	}
}

// Build yields the final problem with pre-substitutions applied: all
// unfixed base variables, every interned script variable, every helper
// variable, the ordered origin-tagged constraints and the objective.
func (b *ProblemBuilder) Build() *Problem {
	inner := ilp.NewProblem[value.IlpVar]()
	for _, dv := range b.baseVars {
		inner.AddVariable(dv.Var, dv.Kind)
	}
	for _, sv := range b.scriptVars {
		inner.AddVariable(sv, ilp.Binary())
	}
	for _, h := range b.helpers {
		inner.AddVariable(h, ilp.Binary())
	}
	for _, c := range b.constraints {
		inner.AddConstraint(c.Constraint)
	}
	inner.SetObjective(b.objective, b.sense)

	fixes := make([]fixedVar, 0, len(b.fixes))
	for _, f := range b.fixes {
		fixes = append(fixes, f)
	}
	return &Problem{
		inner:       inner,
		constraints: append([]value.ConstraintWithOrigin{}, b.constraints...),
		fixes:       fixes,
	}
}

// txn is the working state of one transactional add call; it merges into
// the builder only on success.
type txn struct {
	b       *ProblemBuilder
	checked *semantic.Checked
	ev      *eval.Evaluator

	pending       []*value.ScriptVar
	newScriptVars map[string]*value.ScriptVar
	defined       map[string]bool
	helpers       []value.HelperVar
	constraints   []value.ConstraintWithOrigin
	listMemo      map[string][]value.Formula

	objDelta ilp.Expr[value.IlpVar]
	sense    ilp.ObjectiveSense
	senseSet bool
}

func newTxn(b *ProblemBuilder, checked *semantic.Checked) *txn {
	t := &txn{
		b:             b,
		checked:       checked,
		newScriptVars: map[string]*value.ScriptVar{},
		defined:       map[string]bool{},
		listMemo:      map[string][]value.Formula{},
		objDelta:      ilp.NewExpr[value.IlpVar](),
		sense:         b.sense,
		senseSet:      b.senseSet,
	}
	t.ev = eval.New(checked, b.objects, t)
	return t
}

// OnBaseVar validates evaluator-produced base variables against the
// host: the instance must convert and be declared (or fixed).
func (t *txn) OnBaseVar(v *value.BaseVar) error {
	if err := t.b.vars.TryFromExtern(v); err != nil {
		return err
	}
	key := v.Key()
	if _, declared := t.b.baseVars[key]; declared {
		return nil
	}
	if _, fixed := t.b.fixes[key]; fixed {
		return nil
	}
	return &VarConversionError{Name: v.Name, Unknown: true}
}

// OnScriptVar interns a reified-variable instance; a fresh instance is
// queued for its defining constraints.
func (t *txn) OnScriptVar(v *value.ScriptVar) {
	key := v.Key()
	if _, known := t.b.scriptVars[key]; known {
		return
	}
	if _, known := t.newScriptVars[key]; known {
		return
	}
	t.newScriptVars[key] = v
	t.pending = append(t.pending, v)
}

// lookupFn finds a public function in a module and checks its return
// type against the expected role.
func (t *txn) lookupFn(module, name string, want *types.Type) (*semantic.FuncSig, error) {
	mod := t.checked.Env.Module(module)
	if mod == nil {
		return nil, &UnknownFunctionError{Name: name}
	}
	fn, ok := mod.Funcs[name]
	if !ok || !fn.Public {
		return nil, &UnknownFunctionError{Name: name}
	}
	if !types.Equal(fn.Return, want) {
		return nil, &WrongReturnTypeError{
			Func:     fmt.Sprintf("%s::%s", module, name),
			Returned: fn.Return,
			Expected: want,
		}
	}
	return fn, nil
}

func (t *txn) addConstraint(module string, call FnCall) error {
	fn, err := t.lookupFn(module, call.Name, types.Constraint())
	if err != nil {
		return err
	}
	if len(call.Args) != len(fn.Params) {
		return &ArgumentCountError{Func: call.Name, Expected: len(fn.Params), Found: len(call.Args)}
	}

	result, err := t.ev.CallFunction(module, call.Name, call.Args)
	if err != nil {
		return wrapEvalError(err)
	}
	constr, ok := result.(*value.Constr)
	if !ok {
		return &WrongReturnTypeError{Func: call.Name, Returned: nil, Expected: types.Constraint()}
	}

	origin, err := t.makeOrigin(module, fn, call.Args)
	if err != nil {
		return wrapEvalError(err)
	}

	folded := linearize.FoldFixed(constr.Formula, t.b.fixLookup)
	res, err := linearize.Lower(folded, origin, &t.b.counter, t.b.bounds)
	if err != nil {
		return err
	}
	t.constraints = append(t.constraints, res.Constraints...)
	t.helpers = append(t.helpers, res.Helpers...)
	return nil
}

func (t *txn) addObjective(module string, obj Objective) error {
	fn, err := t.lookupFn(module, obj.Name, types.LinExpr())
	if err != nil {
		return err
	}
	if len(obj.Args) != len(fn.Params) {
		return &ArgumentCountError{Func: obj.Name, Expected: len(fn.Params), Found: len(obj.Args)}
	}

	result, err := t.ev.CallFunction(module, obj.Name, obj.Args)
	if err != nil {
		return wrapEvalError(err)
	}
	lin, ok := toLinValue(result)
	if !ok {
		return &WrongReturnTypeError{Func: obj.Name, Returned: nil, Expected: types.LinExpr()}
	}

	folded := linearize.FoldFixedExpr(lin, t.b.fixLookup)
	weighted := folded.MulK(obj.Weight)

	// The first objective fixes the problem's sense; later objectives
	// with the opposite sense contribute negated.
	if !t.senseSet {
		t.sense = obj.Sense
		t.senseSet = true
	} else if obj.Sense != t.sense {
		weighted = weighted.MulK(-1)
	}
	t.objDelta = t.objDelta.Add(weighted)
	return nil
}

func toLinValue(v value.Value) (ilp.Expr[value.IlpVar], bool) {
	switch val := v.(type) {
	case *value.Lin:
		return val.Expr, true
	case *value.Int:
		return ilp.Constant[value.IlpVar](float64(val.Value)), true
	default:
		return ilp.Expr[value.IlpVar]{}, false
	}
}

// makeOrigin builds the origin descriptor for a call, rendering the
// declaration's docstring once.
func (t *txn) makeOrigin(module string, fn *semantic.FuncSig, args []value.Value) (*value.Origin, error) {
	pretty, err := t.ev.RenderDocstring(fn, args)
	if err != nil {
		return nil, err
	}
	return &value.Origin{
		Module:          module,
		FnName:          fn.Name,
		Args:            args,
		PrettyDocstring: pretty,
	}, nil
}

// definePending emits the defining constraint block of every freshly
// interned script variable, de-duplicated on (module, name, list index,
// params). Defining evaluations may intern further variables; the queue
// drains until empty.
func (t *txn) definePending() error {
	for len(t.pending) > 0 {
		sv := t.pending[0]
		t.pending = t.pending[1:]

		key := sv.Key()
		if t.defined[key] || t.b.defined[key] {
			continue
		}
		t.defined[key] = true

		mod := t.checked.Env.Module(sv.Module)
		if mod == nil {
			return &EvalError{Inner: fmt.Errorf("unknown module %q for variable %s", sv.Module, sv)}
		}
		rd, ok := mod.Reifies[sv.Name]
		if !ok {
			return &EvalError{Inner: fmt.Errorf("variable %s has no reify declaration", sv)}
		}

		formula, err := t.definingFormula(rd, sv)
		if err != nil {
			return err
		}

		fn := t.checked.Env.Module(rd.FnModule).Funcs[rd.FnName]
		origin, err := t.makeOrigin(rd.Module, fn, sv.Params)
		if err != nil {
			return wrapEvalError(err)
		}

		folded := linearize.FoldFixed(formula, t.b.fixLookup)
		res, err := linearize.ReifyEquiv(sv, folded, origin, &t.b.counter, t.b.bounds)
		if err != nil {
			return err
		}
		t.constraints = append(t.constraints, res.Constraints...)
		t.helpers = append(t.helpers, res.Helpers...)
	}
	return nil
}

// definingFormula evaluates the defining function of a script variable;
// list variables take the formula at their list index, with the list
// evaluated once per argument tuple.
func (t *txn) definingFormula(rd *semantic.ReifyDef, sv *value.ScriptVar) (value.Formula, error) {
	if !rd.VarList {
		result, err := t.ev.CallFunction(rd.FnModule, rd.FnName, sv.Params)
		if err != nil {
			return nil, wrapEvalError(err)
		}
		constr, ok := result.(*value.Constr)
		if !ok {
			return nil, &WrongReturnTypeError{Func: rd.FnName, Expected: types.Constraint()}
		}
		return constr.Formula, nil
	}

	memoKey := rd.Module + "::" + rd.Name + "(" + (&value.Tuple{Items: sv.Params}).Key() + ")"
	formulas, ok := t.listMemo[memoKey]
	if !ok {
		result, err := t.ev.CallFunction(rd.FnModule, rd.FnName, sv.Params)
		if err != nil {
			return nil, wrapEvalError(err)
		}
		list, isList := result.(*value.List)
		if !isList {
			return nil, &WrongReturnTypeError{Func: rd.FnName, Expected: types.List(types.Constraint())}
		}
		formulas = make([]value.Formula, len(list.Items))
		for i, item := range list.Items {
			constr, isConstr := item.(*value.Constr)
			if !isConstr {
				return nil, &WrongReturnTypeError{Func: rd.FnName, Expected: types.Constraint()}
			}
			formulas[i] = constr.Formula
		}
		t.listMemo[memoKey] = formulas
	}

	if sv.FromList == nil || *sv.FromList >= len(formulas) {
		return nil, &EvalError{Inner: fmt.Errorf("variable %s indexes outside its defining list", sv)}
	}
	return formulas[*sv.FromList], nil
}

// commit merges the transaction into the builder.
func (t *txn) commit() {
	t.b.constraints = append(t.b.constraints, t.constraints...)
	t.b.helpers = append(t.b.helpers, t.helpers...)
	for key, sv := range t.newScriptVars {
		t.b.scriptVars[key] = sv
	}
	for key := range t.defined {
		t.b.defined[key] = true
	}
	t.b.objective = t.b.objective.Add(t.objDelta)
	t.b.sense = t.sense
	t.b.senseSet = t.senseSet
}
