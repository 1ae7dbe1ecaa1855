// Package eval implements the CoLLoML evaluator: it interprets a
// typechecked AST over a host environment and a variable sink, producing
// runtime values, linear expressions and constraint formulas.
//
// Evaluation is pure, single-threaded and deterministic: the same
// function applied to equal arguments over the same environment yields
// equal values, and forall/sum visit their collections in the values'
// total order.
package eval

import (
	"fmt"
	"math"
	"sort"

	"github.com/christophcharles/colloml/internal/lexer"
	"github.com/christophcharles/colloml/internal/semantic"
	"github.com/christophcharles/colloml/pkg/ast"
	"github.com/christophcharles/colloml/pkg/ilp"
	"github.com/christophcharles/colloml/pkg/types"
	"github.com/christophcharles/colloml/pkg/value"
)

// ObjectProvider is the object capability the evaluator consumes from
// the host. Implementations typically wrap the host's environment and an
// internal view cache; the evaluator never shares a provider across
// threads.
type ObjectProvider interface {
	// ObjectsWithType enumerates every object of the DSL type name; the
	// evaluator sorts the result by handle key.
	ObjectsWithType(typeName string) []value.Object
	// TypeName returns the DSL type of a handle.
	TypeName(obj value.Object) string
	// FieldAccess looks a field up on an object; false means no such
	// field.
	FieldAccess(obj value.Object, field string) (value.Value, bool)
	// PrettyPrint returns an optional display form for a handle.
	PrettyPrint(obj value.Object) (string, bool)
}

// VarSink receives the solver variables referenced during evaluation.
type VarSink interface {
	// OnBaseVar is called for each $Var(...) reference that resolves to a
	// host variable; a non-nil error aborts evaluation.
	OnBaseVar(v *value.BaseVar) error
	// OnScriptVar is called for each reified-variable instance
	// referenced during evaluation.
	OnScriptVar(v *value.ScriptVar)
}

// maxCallDepth bounds function-call nesting; the language has no
// recursion, so this only trips on accidentally self-referential
// scripts.
const maxCallDepth = 256

// Evaluator interprets functions of a checked module set.
type Evaluator struct {
	checked  *semantic.Checked
	objects  ObjectProvider
	sink     VarSink
	listLens map[string]int
	depth    int
}

// New creates an evaluator. objects may be nil for scripts that never
// touch host objects; sink may be nil when variable collection is not
// needed.
func New(checked *semantic.Checked, objects ObjectProvider, sink VarSink) *Evaluator {
	return &Evaluator{
		checked:  checked,
		objects:  objects,
		sink:     sink,
		listLens: map[string]int{},
	}
}

// frame is the local state of one function activation.
type frame struct {
	mod    *semantic.ModuleEnv
	scopes []map[string]value.Value
}

func (fr *frame) push() {
	fr.scopes = append(fr.scopes, map[string]value.Value{})
}

func (fr *frame) pop() {
	fr.scopes = fr.scopes[:len(fr.scopes)-1]
}

func (fr *frame) bind(name string, v value.Value) {
	fr.scopes[len(fr.scopes)-1][name] = v
}

func (fr *frame) lookup(name string) (value.Value, bool) {
	for i := len(fr.scopes) - 1; i >= 0; i-- {
		if v, ok := fr.scopes[i][name]; ok {
			return v, true
		}
	}
	return nil, false
}

// CallFunction applies a function of a module to concrete arguments.
func (ev *Evaluator) CallFunction(module, name string, args []value.Value) (value.Value, error) {
	mod := ev.checked.Env.Module(module)
	if mod == nil {
		return nil, &Error{Module: module, Message: fmt.Sprintf("unknown module %q", module)}
	}
	fn, ok := mod.Funcs[name]
	if !ok {
		return nil, &Error{Module: module, Message: fmt.Sprintf("unknown function %q", name)}
	}
	return ev.callSig(fn, args)
}

func (ev *Evaluator) callSig(fn *semantic.FuncSig, args []value.Value) (value.Value, error) {
	if len(args) != len(fn.ParamNames) {
		return nil, &Error{
			Module:  fn.Module,
			Message: fmt.Sprintf("function %q expects %d arguments but got %d", fn.Name, len(fn.ParamNames), len(args)),
		}
	}
	if ev.depth >= maxCallDepth {
		return nil, &Error{Module: fn.Module, Message: "call depth exceeded"}
	}
	ev.depth++
	defer func() { ev.depth-- }()

	fr := &frame{mod: ev.checked.Env.Module(fn.Module)}
	fr.push()
	for i, name := range fn.ParamNames {
		fr.bind(name, args[i])
	}
	return ev.eval(fr, fn.Decl.Body)
}

// RenderDocstring evaluates a declaration's docstring lines with the
// function's arguments in scope, producing the origin's pretty form.
func (ev *Evaluator) RenderDocstring(fn *semantic.FuncSig, args []value.Value) ([]string, error) {
	if len(fn.Decl.Docstring) == 0 {
		return nil, nil
	}
	fr := &frame{mod: ev.checked.Env.Module(fn.Module)}
	fr.push()
	for i, name := range fn.ParamNames {
		if i < len(args) {
			fr.bind(name, args[i])
		}
	}

	lines := make([]string, 0, len(fn.Decl.Docstring))
	for _, line := range fn.Decl.Docstring {
		text := ""
		for _, part := range line {
			text += part.Prefix
			if part.Expr != nil {
				v, err := ev.eval(fr, part.Expr)
				if err != nil {
					return nil, err
				}
				text += ev.stringify(v)
			}
		}
		lines = append(lines, text)
	}
	return lines, nil
}

// stringify renders a value for display, preferring the host's pretty
// form for object handles.
func (ev *Evaluator) stringify(v value.Value) string {
	if obj, ok := v.(*value.Obj); ok && ev.objects != nil {
		if pretty, ok := ev.objects.PrettyPrint(obj.Handle); ok {
			return pretty
		}
	}
	return v.String()
}

func (ev *Evaluator) errf(fr *frame, sp lexer.Span, format string, args ...any) error {
	return &Error{Module: fr.mod.Name, Message: fmt.Sprintf(format, args...), Span: sp}
}

// typeAt returns the checker's resolved type for a span, when recorded.
func (ev *Evaluator) typeAt(fr *frame, sp lexer.Span) *types.Type {
	info, ok := ev.checked.TypeInfo[fr.mod.Name]
	if !ok {
		return nil
	}
	return info[sp]
}

// eval interprets one expression.
func (ev *Evaluator) eval(fr *frame, e ast.Expression) (value.Value, error) {
	switch expr := e.(type) {
	case *ast.IntLit:
		return &value.Int{Value: expr.Value}, nil
	case *ast.BoolLit:
		return &value.Bool{Value: expr.Value}, nil
	case *ast.StringLit:
		return &value.Str{Value: expr.Value}, nil
	case *ast.NoneLit:
		return &value.None{}, nil
	case *ast.IdentPath:
		return ev.evalIdentPath(fr, expr)
	case *ast.BinaryExpr:
		return ev.evalBinary(fr, expr)
	case *ast.UnaryExpr:
		return ev.evalUnary(fr, expr)
	case *ast.InExpr:
		return ev.evalIn(fr, expr)
	case *ast.ForallExpr:
		return ev.evalForall(fr, expr)
	case *ast.SumExpr:
		return ev.evalSum(fr, expr)
	case *ast.FoldExpr:
		return ev.evalFold(fr, expr)
	case *ast.IfExpr:
		return ev.evalIf(fr, expr)
	case *ast.MatchExpr:
		return ev.evalMatch(fr, expr)
	case *ast.LetExpr:
		return ev.evalLet(fr, expr)
	case *ast.GenericCall:
		return ev.evalGenericCall(fr, expr)
	case *ast.StructCall:
		return ev.evalStructCall(fr, expr)
	case *ast.VarCall:
		return ev.evalVarCall(fr, expr)
	case *ast.VarListCall:
		return ev.evalVarListCall(fr, expr)
	case *ast.PathExpr:
		return ev.evalPath(fr, expr)
	case *ast.TupleLit:
		return ev.evalTuple(fr, expr)
	case *ast.StructLit:
		return ev.evalStructLit(fr, expr)
	case *ast.ListLit:
		return ev.evalList(fr, expr)
	case *ast.RangeLit:
		return ev.evalRange(fr, expr)
	case *ast.Comprehension:
		return ev.evalComprehension(fr, expr)
	case *ast.GlobalList:
		return ev.evalGlobalList(fr, expr)
	case *ast.Cardinality:
		return ev.evalCardinality(fr, expr)
	case *ast.PanicExpr:
		payload, err := ev.eval(fr, expr.Value)
		if err != nil {
			return nil, err
		}
		return nil, &PanicError{Payload: payload}
	case *ast.CastExpr:
		return ev.evalCast(fr, expr)
	case *ast.ComplexTypeCast:
		return ev.evalComplexCast(fr, expr)
	default:
		return nil, ev.errf(fr, e.Span(), "unsupported expression")
	}
}

func (ev *Evaluator) evalIdentPath(fr *frame, e *ast.IdentPath) (value.Value, error) {
	segs := e.Path.Segments
	if len(segs) == 1 {
		if v, ok := fr.lookup(segs[0].Name); ok {
			return v, nil
		}
		return nil, ev.errf(fr, e.Sp, "unknown identifier %q", segs[0].Name)
	}
	// Unit enum variant: the checker resolved the type for this span.
	t := ev.typeAt(fr, e.Span())
	if t != nil && t.Kind == types.KindCustom && t.Variant != "" {
		return &value.Custom{TypeName: t.Name, Variant: t.Variant}, nil
	}
	return nil, ev.errf(fr, e.Sp, "cannot evaluate path %s", e.Path)
}

// toLin converts an Int or LinExpr value to a linear expression.
func toLin(v value.Value) (ilp.Expr[value.IlpVar], bool) {
	switch val := v.(type) {
	case *value.Int:
		return ilp.Constant[value.IlpVar](float64(val.Value)), true
	case *value.Lin:
		return val.Expr, true
	default:
		return ilp.Expr[value.IlpVar]{}, false
	}
}

func checkedInt32(fr *frame, sp lexer.Span, ev *Evaluator, v int64) (value.Value, error) {
	if v < math.MinInt32 || v > math.MaxInt32 {
		return nil, ev.errf(fr, sp, "integer overflow")
	}
	return &value.Int{Value: int32(v)}, nil
}

func (ev *Evaluator) evalBinary(fr *frame, e *ast.BinaryExpr) (value.Value, error) {
	// ?? short-circuits on a present left operand.
	if e.Op == "??" {
		left, err := ev.eval(fr, e.Left)
		if err != nil {
			return nil, err
		}
		if _, isNone := left.(*value.None); isNone {
			return ev.eval(fr, e.Right)
		}
		return left, nil
	}

	left, err := ev.eval(fr, e.Left)
	if err != nil {
		return nil, err
	}
	right, err := ev.eval(fr, e.Right)
	if err != nil {
		return nil, err
	}

	switch e.Op {
	case "+", "-", "*":
		li, lInt := left.(*value.Int)
		ri, rInt := right.(*value.Int)
		if lInt && rInt {
			var out int64
			switch e.Op {
			case "+":
				out = int64(li.Value) + int64(ri.Value)
			case "-":
				out = int64(li.Value) - int64(ri.Value)
			case "*":
				out = int64(li.Value) * int64(ri.Value)
			}
			return checkedInt32(fr, e.Sp, ev, out)
		}
		ll, lOK := toLin(left)
		rl, rOK := toLin(right)
		if !lOK || !rOK {
			return nil, ev.errf(fr, e.Sp, "operator %s needs numeric operands", e.Op)
		}
		switch e.Op {
		case "+":
			return &value.Lin{Expr: ll.Add(rl)}, nil
		case "-":
			return &value.Lin{Expr: ll.Sub(rl)}, nil
		default: // "*": one side is a plain Int per the typechecker
			if lInt {
				return &value.Lin{Expr: rl.MulK(float64(li.Value))}, nil
			}
			if rInt {
				return &value.Lin{Expr: ll.MulK(float64(ri.Value))}, nil
			}
			return nil, ev.errf(fr, e.Sp, "non-linear multiplication")
		}

	case "//", "%":
		li, lOK := left.(*value.Int)
		ri, rOK := right.(*value.Int)
		if !lOK || !rOK {
			return nil, ev.errf(fr, e.Sp, "operator %s needs Int operands", e.Op)
		}
		if ri.Value == 0 {
			return nil, ev.errf(fr, e.Sp, "division by zero")
		}
		if e.Op == "//" {
			return checkedInt32(fr, e.Sp, ev, int64(li.Value)/int64(ri.Value))
		}
		return checkedInt32(fr, e.Sp, ev, int64(li.Value)%int64(ri.Value))

	case "==", "!=":
		eq := value.Equal(left, right)
		if e.Op == "!=" {
			eq = !eq
		}
		return &value.Bool{Value: eq}, nil

	case "<", "<=", ">", ">=":
		li, lOK := left.(*value.Int)
		ri, rOK := right.(*value.Int)
		if !lOK || !rOK {
			return nil, ev.errf(fr, e.Sp, "operator %s needs Int operands", e.Op)
		}
		var out bool
		switch e.Op {
		case "<":
			out = li.Value < ri.Value
		case "<=":
			out = li.Value <= ri.Value
		case ">":
			out = li.Value > ri.Value
		case ">=":
			out = li.Value >= ri.Value
		}
		return &value.Bool{Value: out}, nil

	case "===", "<==", ">==":
		ll, lOK := toLin(left)
		rl, rOK := toLin(right)
		if !lOK || !rOK {
			return nil, ev.errf(fr, e.Sp, "constraint operator %s needs LinExpr operands", e.Op)
		}
		var atom *value.Atom
		switch e.Op {
		case "===":
			atom = &value.Atom{Expr: ll.Sub(rl), Symbol: ilp.Equals}
		case "<==":
			atom = &value.Atom{Expr: ll.Sub(rl), Symbol: ilp.LessThan}
		default: // ">==" is stored as the negated leq
			atom = &value.Atom{Expr: rl.Sub(ll), Symbol: ilp.LessThan}
		}
		return &value.Constr{Formula: atom}, nil

	case "and", "or":
		if lb, ok := left.(*value.Bool); ok {
			rb, ok := right.(*value.Bool)
			if !ok {
				return nil, ev.errf(fr, e.Sp, "operator %s needs two Bools", e.Op)
			}
			if e.Op == "and" {
				return &value.Bool{Value: lb.Value && rb.Value}, nil
			}
			return &value.Bool{Value: lb.Value || rb.Value}, nil
		}
		lc, lOK := left.(*value.Constr)
		rc, rOK := right.(*value.Constr)
		if !lOK || !rOK {
			return nil, ev.errf(fr, e.Sp, "operator %s needs two Constraints", e.Op)
		}
		if e.Op == "and" {
			return &value.Constr{Formula: &value.And{Parts: []value.Formula{lc.Formula, rc.Formula}}}, nil
		}
		return &value.Constr{Formula: &value.Or{Parts: []value.Formula{lc.Formula, rc.Formula}}}, nil

	default:
		return nil, ev.errf(fr, e.Sp, "unknown operator %s", e.Op)
	}
}

func (ev *Evaluator) evalUnary(fr *frame, e *ast.UnaryExpr) (value.Value, error) {
	right, err := ev.eval(fr, e.Right)
	if err != nil {
		return nil, err
	}
	switch e.Op {
	case "-":
		if i, ok := right.(*value.Int); ok {
			return checkedInt32(fr, e.Sp, ev, -int64(i.Value))
		}
		if l, ok := right.(*value.Lin); ok {
			return &value.Lin{Expr: l.Expr.MulK(-1)}, nil
		}
		return nil, ev.errf(fr, e.Sp, "unary - needs Int or LinExpr")
	case "not":
		if b, ok := right.(*value.Bool); ok {
			return &value.Bool{Value: !b.Value}, nil
		}
		if c, ok := right.(*value.Constr); ok {
			return &value.Constr{Formula: &value.Not{Inner: c.Formula}}, nil
		}
		return nil, ev.errf(fr, e.Sp, "not needs Bool or Constraint")
	default:
		return nil, ev.errf(fr, e.Sp, "unknown unary operator %s", e.Op)
	}
}

// evalIn evaluates membership: a plain value test yields Bool, a LinExpr
// item over an integer list flattens into an equality disjunction.
func (ev *Evaluator) evalIn(fr *frame, e *ast.InExpr) (value.Value, error) {
	item, err := ev.eval(fr, e.Item)
	if err != nil {
		return nil, err
	}
	coll, err := ev.eval(fr, e.Collection)
	if err != nil {
		return nil, err
	}
	list, ok := coll.(*value.List)
	if !ok {
		return nil, ev.errf(fr, e.Sp, "in needs a list")
	}

	if lin, isLin := item.(*value.Lin); isLin {
		parts := make([]value.Formula, 0, len(list.Items))
		for _, it := range list.Items {
			iv, ok := it.(*value.Int)
			if !ok {
				return nil, ev.errf(fr, e.Sp, "constraint membership needs an Int list")
			}
			parts = append(parts, &value.Atom{
				Expr:   lin.Expr.AddK(-float64(iv.Value)),
				Symbol: ilp.Equals,
			})
		}
		return &value.Constr{Formula: &value.Or{Parts: parts}}, nil
	}

	for _, it := range list.Items {
		if value.Equal(item, it) {
			return &value.Bool{Value: true}, nil
		}
	}
	return &value.Bool{Value: false}, nil
}

// iterate enumerates a collection for a quantifier, applying the filter.
// When sorted is set, elements visit in the values' total order.
func (ev *Evaluator) iterate(fr *frame, varName string, coll ast.Expression, filter ast.Expression, sorted bool, visit func(value.Value) error) error {
	cv, err := ev.eval(fr, coll)
	if err != nil {
		return err
	}
	list, ok := cv.(*value.List)
	if !ok {
		return ev.errf(fr, coll.Span(), "quantifier collection must be a list")
	}

	items := list.Items
	if sorted {
		items = append([]value.Value(nil), items...)
		value.SortValues(items)
	}

	for _, item := range items {
		fr.push()
		fr.bind(varName, item)
		if filter != nil {
			fv, err := ev.eval(fr, filter)
			if err != nil {
				fr.pop()
				return err
			}
			fb, ok := fv.(*value.Bool)
			if !ok {
				fr.pop()
				return ev.errf(fr, filter.Span(), "filter must be Bool")
			}
			if !fb.Value {
				fr.pop()
				continue
			}
		}
		err := visit(item)
		fr.pop()
		if err != nil {
			return err
		}
	}
	return nil
}

func (ev *Evaluator) evalForall(fr *frame, e *ast.ForallExpr) (value.Value, error) {
	var parts []value.Formula
	err := ev.iterate(fr, e.Var.Name, e.Collection, e.Filter, true, func(value.Value) error {
		bv, err := ev.eval(fr, e.Body)
		if err != nil {
			return err
		}
		c, ok := bv.(*value.Constr)
		if !ok {
			return ev.errf(fr, e.Body.Span(), "forall body must be Constraint")
		}
		parts = append(parts, c.Formula)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &value.Constr{Formula: &value.And{Parts: parts}}, nil
}

func (ev *Evaluator) evalSum(fr *frame, e *ast.SumExpr) (value.Value, error) {
	intResult := int64(0)
	linResult := ilp.Constant[value.IlpVar](0)
	sawLin := false
	sawInt := false

	err := ev.iterate(fr, e.Var.Name, e.Collection, e.Filter, true, func(value.Value) error {
		bv, err := ev.eval(fr, e.Body)
		if err != nil {
			return err
		}
		switch body := bv.(type) {
		case *value.Int:
			sawInt = true
			intResult += int64(body.Value)
			return nil
		case *value.Lin:
			sawLin = true
			linResult = linResult.Add(body.Expr)
			return nil
		default:
			return ev.errf(fr, e.Body.Span(), "sum body must be Int or LinExpr")
		}
	})
	if err != nil {
		return nil, err
	}

	// The static type decides the result shape; an empty sum of LinExpr
	// bodies is the zero expression, an empty Int sum is 0.
	t := ev.typeAt(fr, e.Span())
	isLin := sawLin || (t != nil && t.Kind == types.KindLinExpr)
	if isLin {
		if sawInt {
			linResult = linResult.AddK(float64(intResult))
		}
		return &value.Lin{Expr: linResult}, nil
	}
	return checkedInt32(fr, e.Sp, ev, intResult)
}

func (ev *Evaluator) evalFold(fr *frame, e *ast.FoldExpr) (value.Value, error) {
	acc, err := ev.eval(fr, e.Init)
	if err != nil {
		return nil, err
	}

	cv, err := ev.eval(fr, e.Collection)
	if err != nil {
		return nil, err
	}
	list, ok := cv.(*value.List)
	if !ok {
		return nil, ev.errf(fr, e.Collection.Span(), "fold collection must be a list")
	}

	items := list.Items
	if e.Reversed {
		items = make([]value.Value, len(list.Items))
		for i, it := range list.Items {
			items[len(list.Items)-1-i] = it
		}
	}

	for _, item := range items {
		fr.push()
		fr.bind(e.Var.Name, item)
		fr.bind(e.Accum.Name, acc)
		if e.Filter != nil {
			fv, err := ev.eval(fr, e.Filter)
			if err != nil {
				fr.pop()
				return nil, err
			}
			fb, ok := fv.(*value.Bool)
			if !ok {
				fr.pop()
				return nil, ev.errf(fr, e.Filter.Span(), "filter must be Bool")
			}
			if !fb.Value {
				fr.pop()
				continue
			}
		}
		next, err := ev.eval(fr, e.Body)
		fr.pop()
		if err != nil {
			return nil, err
		}
		acc = next
	}
	return acc, nil
}

func (ev *Evaluator) evalIf(fr *frame, e *ast.IfExpr) (value.Value, error) {
	cond, err := ev.eval(fr, e.Cond)
	if err != nil {
		return nil, err
	}
	cb, ok := cond.(*value.Bool)
	if !ok {
		return nil, ev.errf(fr, e.Cond.Span(), "if condition must be Bool")
	}
	if cb.Value {
		return ev.eval(fr, e.Then)
	}
	return ev.eval(fr, e.Else)
}

func (ev *Evaluator) evalMatch(fr *frame, e *ast.MatchExpr) (value.Value, error) {
	subject, err := ev.eval(fr, e.Subject)
	if err != nil {
		return nil, err
	}

	for _, branch := range e.Branches {
		bound := subject
		if branch.AsType != nil {
			target, ok := ev.narrowTarget(fr, branch.AsType)
			if !ok {
				return nil, ev.errf(fr, branch.AsType.Span(), "cannot resolve narrowing type")
			}
			narrowed, ok := narrowValue(subject, target)
			if !ok {
				continue
			}
			bound = narrowed
		}

		fr.push()
		fr.bind(branch.Ident.Name, bound)
		if branch.Filter != nil {
			fv, err := ev.eval(fr, branch.Filter)
			if err != nil {
				fr.pop()
				return nil, err
			}
			fb, ok := fv.(*value.Bool)
			if !ok || !fb.Value {
				fr.pop()
				if !ok {
					return nil, ev.errf(fr, branch.Filter.Span(), "filter must be Bool")
				}
				continue
			}
		}
		result, err := ev.eval(fr, branch.Body)
		fr.pop()
		return result, err
	}
	return nil, ev.errf(fr, e.Sp, "no match branch matched %s", subject)
}

// narrowTarget resolves a narrowing type; the checker already validated
// the type expression, so resolution only needs the declared-type tables
// that survive in the environment.
func (ev *Evaluator) narrowTarget(fr *frame, te ast.TypeExpr) (*types.Type, bool) {
	res := ev.checked.Env.ResolveType(fr.mod, te)
	return res, res != nil
}

// resolveFunc finds the FuncSig behind a call path, or reports that the
// path is not a function.
func resolveFunc(env *semantic.GlobalEnv, mod *semantic.ModuleEnv, segs []*ast.Ident) (*semantic.FuncSig, bool) {
	switch len(segs) {
	case 1:
		return env.LookupFunc(mod, segs[0].Name)
	case 2:
		target, ok := env.AliasTarget(mod, segs[0].Name)
		if !ok {
			return nil, false
		}
		fn, ok := target.Funcs[segs[1].Name]
		if !ok || !fn.Public {
			return nil, false
		}
		return fn, true
	default:
		return nil, false
	}
}

// narrowValue checks a runtime value against a narrowing target.
func narrowValue(v value.Value, target *types.Type) (value.Value, bool) {
	switch target.Kind {
	case types.KindNone:
		if _, ok := v.(*value.None); ok {
			return v, true
		}
		return nil, false
	case types.KindCustom:
		cu, ok := v.(*value.Custom)
		if !ok || cu.TypeName != target.Name {
			return nil, false
		}
		if target.Variant != "" && cu.Variant != target.Variant {
			return nil, false
		}
		return v, true
	case types.KindOptional:
		if _, isNone := v.(*value.None); isNone {
			return v, true
		}
		return narrowValue(v, target.Elem)
	case types.KindInt:
		_, ok := v.(*value.Int)
		return v, ok
	case types.KindBool:
		_, ok := v.(*value.Bool)
		return v, ok
	case types.KindString:
		_, ok := v.(*value.Str)
		return v, ok
	case types.KindObject:
		_, ok := v.(*value.Obj)
		return v, ok
	default:
		return v, true
	}
}

func (ev *Evaluator) evalLet(fr *frame, e *ast.LetExpr) (value.Value, error) {
	val, err := ev.eval(fr, e.Value)
	if err != nil {
		return nil, err
	}
	fr.push()
	defer fr.pop()
	fr.bind(e.Var.Name, val)
	return ev.eval(fr, e.Body)
}

func (ev *Evaluator) evalArgs(fr *frame, args []ast.Expression) ([]value.Value, error) {
	out := make([]value.Value, len(args))
	for i, arg := range args {
		v, err := ev.eval(fr, arg)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// evalGenericCall interprets function calls, alias casts and enum
// variant construction; the checker guaranteed exactly one reading.
func (ev *Evaluator) evalGenericCall(fr *frame, e *ast.GenericCall) (value.Value, error) {
	segs := e.Path.Segments

	// Function call?
	if fn, ok := resolveFunc(ev.checked.Env, fr.mod, segs); ok {
		args, err := ev.evalArgs(fr, e.Args)
		if err != nil {
			return nil, err
		}
		return ev.callSig(fn, args)
	}

	args, err := ev.evalArgs(fr, e.Args)
	if err != nil {
		return nil, err
	}

	// The checker recorded the Custom result type for this span.
	t := ev.typeAt(fr, e.Span())
	if t == nil || t.Kind != types.KindCustom {
		return nil, ev.errf(fr, e.Sp, "cannot evaluate call %s", e.Path)
	}
	if t.Variant == "" {
		// Alias cast: a single value reinterpreted under the alias.
		if len(args) != 1 {
			return nil, ev.errf(fr, e.Sp, "type cast %s takes one argument", e.Path)
		}
		content, err := ev.castContent(fr, e.Sp, args[0], t.Elem)
		if err != nil {
			return nil, err
		}
		return &value.Custom{TypeName: t.Name, Content: content}, nil
	}
	// Variant construction with positional payload fields _0.._n.
	fields := map[string]value.Value{}
	for i, arg := range args {
		fields[fmt.Sprintf("_%d", i)] = arg
	}
	return &value.Custom{TypeName: t.Name, Variant: t.Variant, Content: &value.Struct{Fields: fields}}, nil
}

// castContent adapts a value to a representation type, lifting Int list
// elements to LinExpr where the target asks for it.
func (ev *Evaluator) castContent(fr *frame, sp lexer.Span, v value.Value, target *types.Type) (value.Value, error) {
	if target == nil {
		return v, nil
	}
	switch target.Kind {
	case types.KindLinExpr:
		if l, ok := toLin(v); ok {
			return &value.Lin{Expr: l}, nil
		}
		return nil, ev.errf(fr, sp, "cannot lift %s to LinExpr", v.Type())
	case types.KindList:
		list, ok := v.(*value.List)
		if !ok {
			return nil, ev.errf(fr, sp, "expected a list")
		}
		items := make([]value.Value, len(list.Items))
		for i, it := range list.Items {
			converted, err := ev.castContent(fr, sp, it, target.Elem)
			if err != nil {
				return nil, err
			}
			items[i] = converted
		}
		return &value.List{Elem: target.Elem, Items: items}, nil
	default:
		return v, nil
	}
}

func (ev *Evaluator) evalStructCall(fr *frame, e *ast.StructCall) (value.Value, error) {
	t := ev.typeAt(fr, e.Span())
	if t == nil || t.Kind != types.KindCustom {
		return nil, ev.errf(fr, e.Sp, "cannot evaluate struct call %s", e.Path)
	}
	fields := map[string]value.Value{}
	for _, f := range e.Fields {
		v, err := ev.eval(fr, f.Value)
		if err != nil {
			return nil, err
		}
		fields[f.Name.Name] = v
	}
	return &value.Custom{
		TypeName: t.Name,
		Variant:  t.Variant,
		Content:  &value.Struct{Fields: fields},
	}, nil
}

// evalVarCall interns a base or script variable reference and yields the
// 1*v linear expression.
func (ev *Evaluator) evalVarCall(fr *frame, e *ast.VarCall) (value.Value, error) {
	args, err := ev.evalArgs(fr, e.Args)
	if err != nil {
		return nil, err
	}

	rd, isReified := ev.resolveReify(fr, e.Module, e.Name.Name)
	if !isReified {
		if e.Module != nil {
			return nil, ev.errf(fr, e.Sp, "unknown variable $%s in module %q", e.Name.Name, e.Module.Name)
		}
		if _, isBase := ev.checked.Env.VarSchema[e.Name.Name]; !isBase {
			return nil, ev.errf(fr, e.Sp, "unknown variable $%s", e.Name.Name)
		}
		pretty := make([]string, len(args))
		for i, a := range args {
			pretty[i] = ev.stringify(a)
		}
		bv := value.NewBaseVarPretty(e.Name.Name, args, pretty)
		if ev.sink != nil {
			if err := ev.sink.OnBaseVar(bv); err != nil {
				return nil, err
			}
		}
		return &value.Lin{Expr: ilp.VarExpr[value.IlpVar](bv)}, nil
	}

	sv := value.NewScriptVar(rd.Module, rd.Name, nil, args)
	if ev.sink != nil {
		ev.sink.OnScriptVar(sv)
	}
	return &value.Lin{Expr: ilp.VarExpr[value.IlpVar](sv)}, nil
}

// evalVarListCall expands a reified variable list: the defining
// function's result length (memoised per argument tuple) fixes the
// number of list-indexed variables.
func (ev *Evaluator) evalVarListCall(fr *frame, e *ast.VarListCall) (value.Value, error) {
	args, err := ev.evalArgs(fr, e.Args)
	if err != nil {
		return nil, err
	}
	rd, ok := ev.resolveReify(fr, e.Module, e.Name.Name)
	if !ok || !rd.VarList {
		return nil, ev.errf(fr, e.Sp, "unknown variable list $[%s]", e.Name.Name)
	}

	n, err := ev.ListLength(rd, args)
	if err != nil {
		return nil, err
	}

	items := make([]value.Value, n)
	for i := 0; i < n; i++ {
		idx := i
		sv := value.NewScriptVar(rd.Module, rd.Name, &idx, args)
		if ev.sink != nil {
			ev.sink.OnScriptVar(sv)
		}
		items[i] = &value.Lin{Expr: ilp.VarExpr[value.IlpVar](sv)}
	}
	return &value.List{Elem: types.LinExpr(), Items: items}, nil
}

// ListLength returns the fixed length of a reified variable list for an
// argument tuple, evaluating the defining function once and memoising.
func (ev *Evaluator) ListLength(rd *semantic.ReifyDef, args []value.Value) (int, error) {
	key := rd.Module + "::" + rd.Name + "(" + (&value.Tuple{Items: args}).Key() + ")"
	if n, ok := ev.listLens[key]; ok {
		return n, nil
	}
	result, err := ev.CallFunction(rd.FnModule, rd.FnName, args)
	if err != nil {
		return 0, err
	}
	list, ok := result.(*value.List)
	if !ok {
		return 0, &Error{Module: rd.Module, Message: fmt.Sprintf("reified function %s did not return a list", rd.FnName)}
	}
	ev.listLens[key] = len(list.Items)
	return len(list.Items), nil
}

// resolveReify finds the reification declaration behind a $Var
// reference.
func (ev *Evaluator) resolveReify(fr *frame, module *ast.Ident, name string) (*semantic.ReifyDef, bool) {
	if module != nil {
		target, ok := ev.checked.Env.AliasTarget(fr.mod, module.Name)
		if !ok {
			return nil, false
		}
		rd, ok := target.Reifies[name]
		if !ok || !rd.Public {
			return nil, false
		}
		return rd, true
	}
	return ev.checked.Env.LookupReify(fr.mod, name)
}

func (ev *Evaluator) evalPath(fr *frame, e *ast.PathExpr) (value.Value, error) {
	v, err := ev.eval(fr, e.Object)
	if err != nil {
		return nil, err
	}
	for _, seg := range e.Segments {
		v, err = ev.evalSegment(fr, v, seg)
		if err != nil {
			return nil, err
		}
	}
	return v, nil
}

func (ev *Evaluator) evalSegment(fr *frame, v value.Value, seg *ast.PathSegment) (value.Value, error) {
	switch {
	case seg.Index != nil:
		list, ok := v.(*value.List)
		if !ok {
			return nil, ev.errf(fr, seg.Sp, "cannot index into %s", v.Type())
		}
		iv, err := ev.eval(fr, seg.Index)
		if err != nil {
			return nil, err
		}
		idx, ok := iv.(*value.Int)
		if !ok {
			return nil, ev.errf(fr, seg.Sp, "list index must be Int")
		}
		if idx.Value < 0 || int(idx.Value) >= len(list.Items) {
			if seg.IndexPanic {
				return nil, ev.errf(fr, seg.Sp, "list index %d out of range (length %d)", idx.Value, len(list.Items))
			}
			return &value.None{}, nil
		}
		return list.Items[int(idx.Value)], nil

	case seg.IsTuple:
		switch val := v.(type) {
		case *value.Tuple:
			if seg.TupleIndex >= len(val.Items) {
				return nil, ev.errf(fr, seg.Sp, "tuple index %d out of range", seg.TupleIndex)
			}
			return val.Items[seg.TupleIndex], nil
		case *value.Custom:
			if val.Content == nil {
				return nil, ev.errf(fr, seg.Sp, "%s has no elements", val)
			}
			return ev.evalSegment(fr, val.Content, seg)
		case *value.Struct:
			if f, ok := val.Fields[fmt.Sprintf("_%d", seg.TupleIndex)]; ok {
				return f, nil
			}
			return nil, ev.errf(fr, seg.Sp, "no element %d", seg.TupleIndex)
		default:
			return nil, ev.errf(fr, seg.Sp, "cannot access element %d of %s", seg.TupleIndex, v.Type())
		}

	default: // field access
		switch val := v.(type) {
		case *value.Obj:
			if ev.objects == nil {
				return nil, ev.errf(fr, seg.Sp, "no object environment")
			}
			f, ok := ev.objects.FieldAccess(val.Handle, seg.Field)
			if !ok {
				return nil, ev.errf(fr, seg.Sp, "object has no field %q", seg.Field)
			}
			return f, nil
		case *value.Struct:
			f, ok := val.Fields[seg.Field]
			if !ok {
				return nil, ev.errf(fr, seg.Sp, "no field %q", seg.Field)
			}
			return f, nil
		case *value.Custom:
			if val.Content == nil {
				return nil, ev.errf(fr, seg.Sp, "%s has no fields", val)
			}
			return ev.evalSegment(fr, val.Content, seg)
		default:
			return nil, ev.errf(fr, seg.Sp, "cannot access field %q on %s", seg.Field, v.Type())
		}
	}
}

func (ev *Evaluator) evalTuple(fr *frame, e *ast.TupleLit) (value.Value, error) {
	items, err := ev.evalArgs(fr, e.Elements)
	if err != nil {
		return nil, err
	}
	return &value.Tuple{Items: items}, nil
}

func (ev *Evaluator) evalStructLit(fr *frame, e *ast.StructLit) (value.Value, error) {
	fields := map[string]value.Value{}
	for _, f := range e.Fields {
		v, err := ev.eval(fr, f.Value)
		if err != nil {
			return nil, err
		}
		fields[f.Name.Name] = v
	}
	return &value.Struct{Fields: fields}, nil
}

func (ev *Evaluator) evalList(fr *frame, e *ast.ListLit) (value.Value, error) {
	items, err := ev.evalArgs(fr, e.Elements)
	if err != nil {
		return nil, err
	}
	var elem *types.Type
	if t := ev.typeAt(fr, e.Span()); t != nil && t.Kind == types.KindList {
		elem = t.Elem
	}
	return &value.List{Elem: elem, Items: items}, nil
}

func (ev *Evaluator) evalRange(fr *frame, e *ast.RangeLit) (value.Value, error) {
	start, err := ev.eval(fr, e.Start)
	if err != nil {
		return nil, err
	}
	end, err := ev.eval(fr, e.End)
	if err != nil {
		return nil, err
	}
	si, sOK := start.(*value.Int)
	ei, eOK := end.(*value.Int)
	if !sOK || !eOK {
		return nil, ev.errf(fr, e.Sp, "range bounds must be Int")
	}
	var items []value.Value
	for i := si.Value; i < ei.Value; i++ {
		items = append(items, &value.Int{Value: i})
	}
	return &value.List{Elem: types.Int(), Items: items}, nil
}

func (ev *Evaluator) evalComprehension(fr *frame, e *ast.Comprehension) (value.Value, error) {
	var elem *types.Type
	if t := ev.typeAt(fr, e.Span()); t != nil && t.Kind == types.KindList {
		elem = t.Elem
	}
	items := []value.Value{}

	var loop func(clauseIdx int) error
	loop = func(clauseIdx int) error {
		if clauseIdx == len(e.Clauses) {
			if e.Filter != nil {
				fv, err := ev.eval(fr, e.Filter)
				if err != nil {
					return err
				}
				fb, ok := fv.(*value.Bool)
				if !ok {
					return ev.errf(fr, e.Filter.Span(), "filter must be Bool")
				}
				if !fb.Value {
					return nil
				}
			}
			v, err := ev.eval(fr, e.Body)
			if err != nil {
				return err
			}
			items = append(items, v)
			return nil
		}

		clause := e.Clauses[clauseIdx]
		cv, err := ev.eval(fr, clause.Collection)
		if err != nil {
			return err
		}
		list, ok := cv.(*value.List)
		if !ok {
			return ev.errf(fr, clause.Collection.Span(), "comprehension collection must be a list")
		}
		for _, item := range list.Items {
			fr.push()
			fr.bind(clause.Var.Name, item)
			err := loop(clauseIdx + 1)
			fr.pop()
			if err != nil {
				return err
			}
		}
		return nil
	}

	if err := loop(0); err != nil {
		return nil, err
	}
	return &value.List{Elem: elem, Items: items}, nil
}

func (ev *Evaluator) evalGlobalList(fr *frame, e *ast.GlobalList) (value.Value, error) {
	pt, ok := e.Type.(*ast.PathType)
	if !ok {
		return nil, ev.errf(fr, e.Sp, "@[...] takes a host object type name")
	}
	name := pt.Path.Segments[0].Name
	if ev.objects == nil {
		return &value.List{Elem: types.Object(name)}, nil
	}
	handles := ev.objects.ObjectsWithType(name)
	items := make([]value.Value, len(handles))
	for i, h := range handles {
		items[i] = &value.Obj{Handle: h}
	}
	sort.Slice(items, func(i, j int) bool {
		return value.Compare(items[i], items[j]) < 0
	})
	return &value.List{Elem: types.Object(name), Items: items}, nil
}

func (ev *Evaluator) evalCardinality(fr *frame, e *ast.Cardinality) (value.Value, error) {
	v, err := ev.eval(fr, e.Inner)
	if err != nil {
		return nil, err
	}
	list, ok := v.(*value.List)
	if !ok {
		return nil, ev.errf(fr, e.Sp, "cardinality needs a list")
	}
	return &value.Int{Value: int32(len(list.Items))}, nil
}

func (ev *Evaluator) evalCast(fr *frame, e *ast.CastExpr) (value.Value, error) {
	v, err := ev.eval(fr, e.Expr)
	if err != nil {
		return nil, err
	}
	target, ok := ev.narrowTarget(fr, e.Type)
	if !ok {
		return nil, ev.errf(fr, e.Sp, "cannot resolve cast type")
	}

	switch e.Kind {
	case ast.CastAscribe:
		return ev.castContent(fr, e.Sp, v, target)
	case ast.CastMaybe:
		narrowed, ok := narrowValue(v, target)
		if !ok {
			return &value.None{}, nil
		}
		return narrowed, nil
	default: // CastPanic
		narrowed, ok := narrowValue(v, target)
		if !ok {
			return nil, ev.errf(fr, e.Sp, "cannot narrow %s to %s", v.Type(), target)
		}
		return narrowed, nil
	}
}

func (ev *Evaluator) evalComplexCast(fr *frame, e *ast.ComplexTypeCast) (value.Value, error) {
	v, err := ev.eval(fr, e.Args[0])
	if err != nil {
		return nil, err
	}
	target, ok := ev.narrowTarget(fr, e.Type)
	if !ok {
		return nil, ev.errf(fr, e.Sp, "cannot resolve cast type")
	}
	return ev.castContent(fr, e.Sp, v, target)
}
