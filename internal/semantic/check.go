package semantic

import (
	"fmt"

	"github.com/christophcharles/colloml/pkg/ast"
	"github.com/christophcharles/colloml/pkg/types"
)

// checker typechecks one function body (pass 2).
type checker struct {
	a      *analyzer
	mod    *ModuleEnv
	locals *localEnv
	info   TypeInfo
}

func (a *analyzer) checkBodies() {
	for _, name := range a.env.Order {
		mod := a.env.Modules[name]
		info := TypeInfo{}
		a.typeInfo[name] = info
		for _, stmt := range mod.File.Statements {
			fd, ok := stmt.(*ast.FuncDecl)
			if !ok {
				continue
			}
			fn := mod.Funcs[fd.Name.Name]
			if fn == nil {
				continue
			}
			c := &checker{a: a, mod: mod, locals: newLocalEnv(), info: info}
			c.checkFunc(fn)
		}
	}
}

// checkFunc typechecks a function body against its declared return type,
// plus any docstring-embedded expressions in the parameter scope.
func (c *checker) checkFunc(fn *FuncSig) {
	c.locals.push()
	for i, name := range fn.ParamNames {
		if _, isFn := c.a.env.lookupFunc(c.mod, name); isFn {
			c.a.errorf(c.mod.Name, fn.Decl.Params[i].Name.Sp,
				"parameter %q shadows a function", name)
		}
		c.locals.bind(name, fn.Params[i], fn.Decl.Params[i].Name.Sp)
	}

	bodyType := c.check(fn.Decl.Body)
	if bodyType != nil && fn.Return != nil && !c.assignable(bodyType, fn.Return) {
		c.a.errorf(c.mod.Name, fn.Decl.Body.Span(),
			"function %q returns %s but body has type %s", fn.Name, fn.Return, bodyType)
	}

	// Docstring expressions evaluate in the parameter scope; their spans
	// are line-relative, so their types go to a throwaway table.
	docChecker := &checker{a: c.a, mod: c.mod, locals: c.locals, info: TypeInfo{}}
	for _, line := range fn.Decl.Docstring {
		for _, part := range line {
			if part.Expr != nil {
				docChecker.check(part.Expr)
			}
		}
	}

	c.locals.pop()
}

// record stores the resolved type for an expression's span and returns
// it.
func (c *checker) record(e ast.Expression, t *types.Type) *types.Type {
	if t != nil {
		c.info[e.Span()] = t
	}
	return t
}

func (c *checker) errorf(e ast.Node, format string, args ...any) *types.Type {
	c.a.errorf(c.mod.Name, e.Span(), format, args...)
	return nil
}

// unify finds the common type of two types: exact matches, the bottom
// type, optionals against none, empty lists against lists, enum variants
// against their enum, and the Int-to-LinExpr lift.
func (c *checker) unify(a, b *types.Type) (*types.Type, bool) {
	switch {
	case a == nil || b == nil:
		return nil, false
	case a.Kind == types.KindNever:
		return b, true
	case b.Kind == types.KindNever:
		return a, true
	case types.Equal(a, b):
		return a, true
	case a.Kind == types.KindCustom && b.Kind == types.KindCustom && a.Name == b.Name:
		// Variants of one enum widen to the whole enum type.
		if a.Variant == "" {
			return a, true
		}
		if b.Variant == "" {
			return b, true
		}
		return types.Custom(a.Name, "", nil), true
	case a.Kind == types.KindNone && b.Kind == types.KindOptional:
		return b, true
	case b.Kind == types.KindNone && a.Kind == types.KindOptional:
		return a, true
	case a.Kind == types.KindNone:
		return types.Optional(b), true
	case b.Kind == types.KindNone:
		return types.Optional(a), true
	case a.Kind == types.KindOptional:
		if inner, ok := c.unify(a.Elem, b); ok {
			return types.Optional(inner), true
		}
		return nil, false
	case b.Kind == types.KindOptional:
		if inner, ok := c.unify(a, b.Elem); ok {
			return types.Optional(inner), true
		}
		return nil, false
	case a.Kind == types.KindList && b.Kind == types.KindList:
		if a.Elem == nil {
			return b, true
		}
		if b.Elem == nil {
			return a, true
		}
		if elem, ok := c.unify(a.Elem, b.Elem); ok {
			return types.List(elem), true
		}
		return nil, false
	case a.Kind == types.KindInt && b.Kind == types.KindLinExpr:
		return b, true
	case a.Kind == types.KindLinExpr && b.Kind == types.KindInt:
		return a, true
	default:
		return nil, false
	}
}

// assignable reports whether a value of type `from` can be used where
// `to` is required: unification must succeed without widening `to`.
func (c *checker) assignable(from, to *types.Type) bool {
	u, ok := c.unify(from, to)
	return ok && types.Equal(u, to)
}

// check computes and records the type of an expression; nil means an
// error was recorded.
func (c *checker) check(e ast.Expression) *types.Type {
	switch expr := e.(type) {
	case *ast.IntLit:
		return c.record(e, types.Int())
	case *ast.BoolLit:
		return c.record(e, types.Bool())
	case *ast.StringLit:
		return c.record(e, types.String())
	case *ast.NoneLit:
		return c.record(e, types.None())
	case *ast.IdentPath:
		return c.record(e, c.checkIdentPath(expr))
	case *ast.BinaryExpr:
		return c.record(e, c.checkBinary(expr))
	case *ast.UnaryExpr:
		return c.record(e, c.checkUnary(expr))
	case *ast.InExpr:
		return c.record(e, c.checkIn(expr))
	case *ast.ForallExpr:
		return c.record(e, c.checkForall(expr))
	case *ast.SumExpr:
		return c.record(e, c.checkSum(expr))
	case *ast.FoldExpr:
		return c.record(e, c.checkFold(expr))
	case *ast.IfExpr:
		return c.record(e, c.checkIf(expr))
	case *ast.MatchExpr:
		return c.record(e, c.checkMatch(expr))
	case *ast.LetExpr:
		return c.record(e, c.checkLet(expr))
	case *ast.GenericCall:
		return c.record(e, c.checkGenericCall(expr))
	case *ast.StructCall:
		return c.record(e, c.checkStructCall(expr))
	case *ast.VarCall:
		return c.record(e, c.checkVarCall(expr))
	case *ast.VarListCall:
		return c.record(e, c.checkVarListCall(expr))
	case *ast.PathExpr:
		return c.record(e, c.checkPath(expr))
	case *ast.TupleLit:
		return c.record(e, c.checkTuple(expr))
	case *ast.StructLit:
		return c.record(e, c.checkStructLit(expr))
	case *ast.ListLit:
		return c.record(e, c.checkList(expr))
	case *ast.RangeLit:
		return c.record(e, c.checkRange(expr))
	case *ast.Comprehension:
		return c.record(e, c.checkComprehension(expr))
	case *ast.GlobalList:
		return c.record(e, c.checkGlobalList(expr))
	case *ast.Cardinality:
		return c.record(e, c.checkCardinality(expr))
	case *ast.PanicExpr:
		c.check(expr.Value)
		return c.record(e, types.Never())
	case *ast.CastExpr:
		return c.record(e, c.checkCast(expr))
	case *ast.ComplexTypeCast:
		return c.record(e, c.checkComplexCast(expr))
	default:
		return c.errorf(e, "unsupported expression")
	}
}

// checkIdentPath resolves a bare identifier or a unit enum variant path.
func (c *checker) checkIdentPath(e *ast.IdentPath) *types.Type {
	segs := e.Path.Segments
	if len(segs) == 1 {
		if t, ok := c.locals.lookup(segs[0].Name); ok {
			return t
		}
		return c.errorf(e, "unknown identifier %q", segs[0].Name)
	}

	// Enum::Variant or alias::Enum::Variant unit variants
	t := c.a.resolvePathType(c.mod, &ast.PathType{Path: e.Path, Sp: e.Sp})
	if t == nil {
		return nil
	}
	if t.Kind != types.KindCustom || t.Variant == "" {
		return c.errorf(e, "%s is not a unit enum variant", e.Path)
	}
	if t.Elem != nil {
		return c.errorf(e, "variant %s carries a payload; construct it with arguments", e.Path)
	}
	return t
}

func isIntLike(t *types.Type) bool {
	return t.Kind == types.KindInt
}

func isLinLike(t *types.Type) bool {
	return t.Kind == types.KindInt || t.Kind == types.KindLinExpr
}

func (c *checker) checkBinary(e *ast.BinaryExpr) *types.Type {
	left := c.check(e.Left)
	right := c.check(e.Right)
	if left == nil || right == nil {
		return nil
	}
	if left.Kind == types.KindNever {
		left = right
	}
	if right.Kind == types.KindNever {
		right = left
	}

	switch e.Op {
	case "+", "-":
		if isIntLike(left) && isIntLike(right) {
			return types.Int()
		}
		if isLinLike(left) && isLinLike(right) {
			return types.LinExpr()
		}
		return c.errorf(e, "operator %s needs Int or LinExpr operands, got %s and %s", e.Op, left, right)
	case "*":
		// Linearity: at least one side must be a plain Int.
		if isIntLike(left) && isIntLike(right) {
			return types.Int()
		}
		if (isIntLike(left) && right.Kind == types.KindLinExpr) ||
			(left.Kind == types.KindLinExpr && isIntLike(right)) {
			return types.LinExpr()
		}
		return c.errorf(e, "multiplication needs at least one constant Int operand, got %s and %s", left, right)
	case "//", "%":
		if isIntLike(left) && isIntLike(right) {
			return types.Int()
		}
		return c.errorf(e, "operator %s needs Int operands, got %s and %s", e.Op, left, right)
	case "==", "!=":
		if left.Kind == types.KindLinExpr || left.Kind == types.KindConstraint ||
			right.Kind == types.KindLinExpr || right.Kind == types.KindConstraint {
			return c.errorf(e, "operator %s is a value comparison; use a constraint operator (===, <==, >==)", e.Op)
		}
		if _, ok := c.unify(left, right); !ok {
			return c.errorf(e, "cannot compare %s with %s", left, right)
		}
		return types.Bool()
	case "<", "<=", ">", ">=":
		if isIntLike(left) && isIntLike(right) {
			return types.Bool()
		}
		return c.errorf(e, "operator %s needs Int operands, got %s and %s", e.Op, left, right)
	case "===", "<==", ">==":
		if isLinLike(left) && isLinLike(right) {
			return types.Constraint()
		}
		return c.errorf(e, "constraint operator %s needs LinExpr operands, got %s and %s", e.Op, left, right)
	case "and", "or":
		if left.Kind == types.KindBool && right.Kind == types.KindBool {
			return types.Bool()
		}
		if left.Kind == types.KindConstraint && right.Kind == types.KindConstraint {
			return types.Constraint()
		}
		return c.errorf(e, "operator %s needs two Bools or two Constraints, got %s and %s", e.Op, left, right)
	case "??":
		if left.Kind == types.KindNone {
			return right
		}
		if left.Kind != types.KindOptional {
			return c.errorf(e, "operator ?? needs an optional left operand, got %s", left)
		}
		if t, ok := c.unify(left.Elem, right); ok {
			return t
		}
		return c.errorf(e, "operator ?? cannot unify %s with %s", left.Elem, right)
	default:
		return c.errorf(e, "unknown operator %s", e.Op)
	}
}

func (c *checker) checkUnary(e *ast.UnaryExpr) *types.Type {
	right := c.check(e.Right)
	if right == nil {
		return nil
	}
	switch e.Op {
	case "-":
		if right.Kind == types.KindInt {
			return types.Int()
		}
		if right.Kind == types.KindLinExpr {
			return types.LinExpr()
		}
		return c.errorf(e, "unary - needs Int or LinExpr, got %s", right)
	case "not":
		if right.Kind == types.KindBool {
			return types.Bool()
		}
		if right.Kind == types.KindConstraint {
			return types.Constraint()
		}
		return c.errorf(e, "not needs Bool or Constraint, got %s", right)
	default:
		return c.errorf(e, "unknown unary operator %s", e.Op)
	}
}

// checkIn types membership tests; a LinExpr item over an Int list marks
// the constraint-flattening form.
func (c *checker) checkIn(e *ast.InExpr) *types.Type {
	item := c.check(e.Item)
	coll := c.check(e.Collection)
	if item == nil || coll == nil {
		return nil
	}
	if coll.Kind != types.KindList {
		return c.errorf(e, "in needs a list on the right, got %s", coll)
	}
	if item.Kind == types.KindLinExpr {
		if coll.Elem == nil || coll.Elem.Kind != types.KindInt {
			return c.errorf(e, "constraint membership needs an Int list, got %s", coll)
		}
		return types.Constraint()
	}
	if coll.Elem == nil {
		return types.Bool()
	}
	if _, ok := c.unify(item, coll.Elem); !ok {
		return c.errorf(e, "cannot test %s membership in %s", item, coll)
	}
	return types.Bool()
}

// bindQuantifierVar pushes a scope binding the loop variable to the
// collection's element type; the caller pops.
func (c *checker) bindQuantifierVar(v *ast.Ident, coll ast.Expression) (*types.Type, bool) {
	collType := c.check(coll)
	if collType == nil {
		return nil, false
	}
	if collType.Kind != types.KindList {
		c.errorf(coll, "quantifier collection must be a list, got %s", collType)
		return nil, false
	}
	elem := collType.Elem
	if elem == nil {
		elem = types.Never()
	}
	c.bindLocal(v, elem)
	return elem, true
}

// bindLocal binds a name with function-shadowing and shadowing checks.
func (c *checker) bindLocal(v *ast.Ident, t *types.Type) {
	if _, isFn := c.a.env.lookupFunc(c.mod, v.Name); isFn {
		c.a.errorf(c.mod.Name, v.Sp, "identifier %q shadows a function", v.Name)
		return
	}
	if c.locals.shadows(v.Name) {
		c.a.warnf(c.mod.Name, v.Sp, "identifier %q shadows an outer binding", v.Name)
	}
	c.locals.bind(v.Name, t, v.Sp)
}

func (c *checker) popScope() {
	for _, b := range c.locals.pop() {
		c.a.warnf(c.mod.Name, b.span, "unused identifier %q", b.name)
	}
}

func (c *checker) checkFilter(filter ast.Expression) {
	if filter == nil {
		return
	}
	if t := c.check(filter); t != nil && t.Kind != types.KindBool {
		c.errorf(filter, "filter must be Bool, got %s", t)
	}
}

func (c *checker) checkForall(e *ast.ForallExpr) *types.Type {
	c.locals.push()
	defer c.popScope()
	if _, ok := c.bindQuantifierVar(e.Var, e.Collection); !ok {
		return nil
	}
	c.checkFilter(e.Filter)
	body := c.check(e.Body)
	if body == nil {
		return nil
	}
	if body.Kind != types.KindConstraint && body.Kind != types.KindNever {
		return c.errorf(e.Body, "forall body must be Constraint, got %s", body)
	}
	return types.Constraint()
}

func (c *checker) checkSum(e *ast.SumExpr) *types.Type {
	c.locals.push()
	defer c.popScope()
	if _, ok := c.bindQuantifierVar(e.Var, e.Collection); !ok {
		return nil
	}
	c.checkFilter(e.Filter)
	body := c.check(e.Body)
	if body == nil {
		return nil
	}
	switch body.Kind {
	case types.KindInt:
		return types.Int()
	case types.KindLinExpr, types.KindNever:
		return types.LinExpr()
	default:
		return c.errorf(e.Body, "sum body must be Int or LinExpr, got %s", body)
	}
}

func (c *checker) checkFold(e *ast.FoldExpr) *types.Type {
	init := c.check(e.Init)
	if init == nil {
		return nil
	}
	c.locals.push()
	defer c.popScope()
	if _, ok := c.bindQuantifierVar(e.Var, e.Collection); !ok {
		return nil
	}
	c.bindLocal(e.Accum, init)
	c.checkFilter(e.Filter)
	body := c.check(e.Body)
	if body == nil {
		return nil
	}
	t, ok := c.unify(init, body)
	if !ok {
		return c.errorf(e.Body, "fold body type %s does not match accumulator type %s", body, init)
	}
	return t
}

func (c *checker) checkIf(e *ast.IfExpr) *types.Type {
	cond := c.check(e.Cond)
	if cond != nil && cond.Kind != types.KindBool {
		c.errorf(e.Cond, "if condition must be Bool, got %s", cond)
	}
	then := c.check(e.Then)
	els := c.check(e.Else)
	if then == nil || els == nil {
		return nil
	}
	t, ok := c.unify(then, els)
	if !ok {
		return c.errorf(e, "if branches have incompatible types %s and %s", then, els)
	}
	return t
}

func (c *checker) checkMatch(e *ast.MatchExpr) *types.Type {
	subject := c.check(e.Subject)
	if subject == nil {
		return nil
	}

	var result *types.Type
	for _, branch := range e.Branches {
		c.locals.push()
		bound := subject
		if branch.AsType != nil {
			target := c.a.resolveTypeExpr(c.mod, branch.AsType)
			if target == nil {
				c.locals.pop()
				return nil
			}
			if !c.canNarrow(subject, target) {
				c.errorf(branch.AsType, "cannot narrow %s to %s", subject, target)
			}
			bound = target
		}
		c.bindLocal(branch.Ident, bound)
		// Branch binders are part of the pattern; not reading one is
		// common and not worth an unused warning.
		c.locals.lookup(branch.Ident.Name)
		c.checkFilter(branch.Filter)
		body := c.check(branch.Body)
		c.popScope()
		if body == nil {
			return nil
		}
		if result == nil {
			result = body
			continue
		}
		t, ok := c.unify(result, body)
		if !ok {
			return c.errorf(branch.Body, "match branches have incompatible types %s and %s", result, body)
		}
		result = t
	}
	return result
}

func (c *checker) checkLet(e *ast.LetExpr) *types.Type {
	val := c.check(e.Value)
	if val == nil {
		return nil
	}
	c.locals.push()
	defer c.popScope()
	c.bindLocal(e.Var, val)
	return c.check(e.Body)
}

// checkGenericCall resolves func(args), Type(value) and
// Enum::Variant(args).
func (c *checker) checkGenericCall(e *ast.GenericCall) *types.Type {
	segs := e.Path.Segments

	// Function call: local name or alias::name.
	if fn := c.resolveCallFunc(segs); fn != nil {
		return c.checkArgsAgainst(e, fn.Params, fn.Return, qualifiedName(fn.Module, fn.Name))
	}

	// Type cast or enum variant construction.
	t := c.a.resolvePathType(c.mod, &ast.PathType{Path: e.Path, Sp: e.Sp})
	if t == nil {
		return nil
	}
	if t.Kind != types.KindCustom {
		return c.errorf(e, "%s is not callable", e.Path)
	}
	if t.Variant == "" {
		// Alias cast: Type(value)
		if len(e.Args) != 1 {
			return c.errorf(e, "type cast %s takes one argument", e.Path)
		}
		arg := c.check(e.Args[0])
		if arg == nil {
			return nil
		}
		if !c.castable(arg, t.Elem) {
			return c.errorf(e, "cannot cast %s to %s", arg, t)
		}
		return t
	}
	// Variant construction: payload struct fields _0.._n in order.
	payload := t.Elem
	if payload == nil {
		return c.errorf(e, "unit variant %s takes no arguments", e.Path)
	}
	params := make([]*types.Type, len(payload.Fields))
	for i := range params {
		ft, ok := payload.Fields[fmt.Sprintf("_%d", i)]
		if !ok {
			return c.errorf(e, "variant %s uses named fields; construct it with braces", e.Path)
		}
		params[i] = ft
	}
	return c.checkArgsAgainst(e, params, t, e.Path.String())
}

// resolveCallFunc finds the FuncSig a call path refers to, or nil.
func (c *checker) resolveCallFunc(segs []*ast.Ident) *FuncSig {
	switch len(segs) {
	case 1:
		if fn, ok := c.a.env.lookupFunc(c.mod, segs[0].Name); ok {
			return fn
		}
	case 2:
		if target, ok := c.a.env.aliasTarget(c.mod, segs[0].Name); ok {
			if fn, ok := target.Funcs[segs[1].Name]; ok && fn.Public {
				return fn
			}
		}
	}
	return nil
}

// checkArgsAgainst verifies argument count and types, returning the call
// result type.
func (c *checker) checkArgsAgainst(e *ast.GenericCall, params []*types.Type, result *types.Type, what string) *types.Type {
	if len(e.Args) != len(params) {
		return c.errorf(e, "%s expects %d arguments but got %d", what, len(params), len(e.Args))
	}
	for i, arg := range e.Args {
		at := c.check(arg)
		if at == nil {
			return nil
		}
		if !c.assignable(at, params[i]) {
			return c.errorf(arg, "%s argument %d has type %s, expected %s", what, i+1, at, params[i])
		}
	}
	return result
}

// checkStructCall types Type{fields} and Enum::Variant{fields}.
func (c *checker) checkStructCall(e *ast.StructCall) *types.Type {
	t := c.a.resolvePathType(c.mod, &ast.PathType{Path: e.Path, Sp: e.Sp})
	if t == nil {
		return nil
	}
	if t.Kind != types.KindCustom {
		return c.errorf(e, "%s is not a struct type", e.Path)
	}
	underlying := t.Elem
	if underlying == nil || underlying.Kind != types.KindStruct {
		return c.errorf(e, "%s has no struct representation", e.Path)
	}
	seen := map[string]bool{}
	for _, f := range e.Fields {
		ft, ok := underlying.Fields[f.Name.Name]
		if !ok {
			return c.errorf(f.Value, "%s has no field %q", e.Path, f.Name.Name)
		}
		if seen[f.Name.Name] {
			return c.errorf(f.Value, "duplicate field %q", f.Name.Name)
		}
		seen[f.Name.Name] = true
		vt := c.check(f.Value)
		if vt == nil {
			return nil
		}
		if !c.assignable(vt, ft) {
			return c.errorf(f.Value, "field %q has type %s, expected %s", f.Name.Name, vt, ft)
		}
	}
	if len(seen) != len(underlying.Fields) {
		return c.errorf(e, "%s literal misses fields (%d of %d set)", e.Path, len(seen), len(underlying.Fields))
	}
	return t
}

// varCallParams resolves the parameter types of a $Var(args) reference.
func (c *checker) varCallParams(module *ast.Ident, name *ast.Ident, wantList bool, e ast.Expression) ([]*types.Type, bool) {
	if module != nil {
		target, ok := c.a.env.aliasTarget(c.mod, module.Name)
		if !ok {
			c.errorf(e, "unknown module alias %q", module.Name)
			return nil, false
		}
		rd, ok := target.Reifies[name.Name]
		if !ok || !rd.Public {
			c.errorf(e, "unknown variable $%s in module %q", name.Name, target.Name)
			return nil, false
		}
		return c.reifyParams(rd, wantList, e)
	}

	if rd, ok := c.a.env.lookupReify(c.mod, name.Name); ok {
		return c.reifyParams(rd, wantList, e)
	}
	if params, ok := c.a.env.VarSchema[name.Name]; ok {
		if wantList {
			c.errorf(e, "host variable $%s is not a variable list", name.Name)
			return nil, false
		}
		return params, true
	}
	c.errorf(e, "unknown variable $%s", name.Name)
	return nil, false
}

func (c *checker) reifyParams(rd *ReifyDef, wantList bool, e ast.Expression) ([]*types.Type, bool) {
	if rd.VarList != wantList {
		if wantList {
			c.errorf(e, "$%s is a single variable; call it as $%s(...)", rd.Name, rd.Name)
		} else {
			c.errorf(e, "$%s is a variable list; call it as $[%s](...)", rd.Name, rd.Name)
		}
		return nil, false
	}
	fn := c.a.env.Modules[rd.FnModule].Funcs[rd.FnName]
	return fn.Params, true
}

func (c *checker) checkVarArgs(args []ast.Expression, params []*types.Type, name string, e ast.Expression) bool {
	if len(args) != len(params) {
		c.errorf(e, "$%s expects %d arguments but got %d", name, len(params), len(args))
		return false
	}
	for i, arg := range args {
		at := c.check(arg)
		if at == nil {
			return false
		}
		if !c.assignable(at, params[i]) {
			c.errorf(arg, "$%s argument %d has type %s, expected %s", name, i+1, at, params[i])
			return false
		}
	}
	return true
}

func (c *checker) checkVarCall(e *ast.VarCall) *types.Type {
	params, ok := c.varCallParams(e.Module, e.Name, false, e)
	if !ok {
		return nil
	}
	if !c.checkVarArgs(e.Args, params, e.Name.Name, e) {
		return nil
	}
	return types.LinExpr()
}

func (c *checker) checkVarListCall(e *ast.VarListCall) *types.Type {
	params, ok := c.varCallParams(e.Module, e.Name, true, e)
	if !ok {
		return nil
	}
	if !c.checkVarArgs(e.Args, params, e.Name.Name, e) {
		return nil
	}
	return types.List(types.LinExpr())
}

// checkPath walks a postfix access chain.
func (c *checker) checkPath(e *ast.PathExpr) *types.Type {
	t := c.check(e.Object)
	if t == nil {
		return nil
	}
	for _, seg := range e.Segments {
		t = c.checkSegment(t, seg, e)
		if t == nil {
			return nil
		}
	}
	return t
}

func (c *checker) checkSegment(t *types.Type, seg *ast.PathSegment, e ast.Expression) *types.Type {
	if t.Kind == types.KindOptional {
		return c.errorf(e, "cannot access %s on optional type %s; handle none first", seg, t)
	}

	switch {
	case seg.Index != nil:
		if t.Kind != types.KindList {
			return c.errorf(e, "cannot index into %s", t)
		}
		it := c.check(seg.Index)
		if it == nil {
			return nil
		}
		if it.Kind != types.KindInt {
			return c.errorf(seg.Index, "list index must be Int, got %s", it)
		}
		elem := t.Elem
		if elem == nil {
			elem = types.Never()
		}
		if seg.IndexPanic {
			return elem
		}
		return types.Optional(elem)

	case seg.IsTuple:
		inner := t
		if t.Kind == types.KindCustom {
			inner = t.Elem
		}
		switch {
		case inner != nil && inner.Kind == types.KindTuple:
			if seg.TupleIndex >= len(inner.Elems) {
				return c.errorf(e, "tuple index %d out of range for %s", seg.TupleIndex, t)
			}
			return inner.Elems[seg.TupleIndex]
		case inner != nil && inner.Kind == types.KindStruct:
			if ft, ok := inner.Fields[fmt.Sprintf("_%d", seg.TupleIndex)]; ok {
				return ft
			}
			return c.errorf(e, "%s has no element %d", t, seg.TupleIndex)
		default:
			return c.errorf(e, "cannot access element %d of %s", seg.TupleIndex, t)
		}

	default: // field access
		switch t.Kind {
		case types.KindObject:
			fields := c.a.env.Schema[t.Name]
			ft, ok := fields[seg.Field]
			if !ok {
				return c.errorf(e, "object type %s has no field %q", t.Name, seg.Field)
			}
			return ft
		case types.KindStruct:
			ft, ok := t.Fields[seg.Field]
			if !ok {
				return c.errorf(e, "struct has no field %q", seg.Field)
			}
			return ft
		case types.KindCustom:
			if t.Elem == nil || t.Elem.Kind != types.KindStruct {
				return c.errorf(e, "%s has no fields", t)
			}
			ft, ok := t.Elem.Fields[seg.Field]
			if !ok {
				return c.errorf(e, "%s has no field %q", t, seg.Field)
			}
			return ft
		default:
			return c.errorf(e, "cannot access field %q on %s", seg.Field, t)
		}
	}
}

func (c *checker) checkTuple(e *ast.TupleLit) *types.Type {
	elems := make([]*types.Type, len(e.Elements))
	for i, el := range e.Elements {
		elems[i] = c.check(el)
		if elems[i] == nil {
			return nil
		}
	}
	return types.Tuple(elems...)
}

func (c *checker) checkStructLit(e *ast.StructLit) *types.Type {
	fields := map[string]*types.Type{}
	for _, f := range e.Fields {
		if _, dup := fields[f.Name.Name]; dup {
			return c.errorf(f.Value, "duplicate field %q", f.Name.Name)
		}
		ft := c.check(f.Value)
		if ft == nil {
			return nil
		}
		fields[f.Name.Name] = ft
	}
	return types.Struct(fields)
}

func (c *checker) checkList(e *ast.ListLit) *types.Type {
	if len(e.Elements) == 0 {
		return types.List(nil)
	}
	var elem *types.Type
	for _, el := range e.Elements {
		t := c.check(el)
		if t == nil {
			return nil
		}
		if elem == nil {
			elem = t
			continue
		}
		unified, ok := c.unify(elem, t)
		if !ok {
			return c.errorf(el, "list element type %s does not match %s", t, elem)
		}
		elem = unified
	}
	return types.List(elem)
}

func (c *checker) checkRange(e *ast.RangeLit) *types.Type {
	for _, bound := range []ast.Expression{e.Start, e.End} {
		t := c.check(bound)
		if t == nil {
			return nil
		}
		if t.Kind != types.KindInt {
			return c.errorf(bound, "range bound must be Int, got %s", t)
		}
	}
	return types.List(types.Int())
}

func (c *checker) checkComprehension(e *ast.Comprehension) *types.Type {
	c.locals.push()
	defer c.popScope()
	for _, clause := range e.Clauses {
		if _, ok := c.bindQuantifierVar(clause.Var, clause.Collection); !ok {
			return nil
		}
	}
	c.checkFilter(e.Filter)
	body := c.check(e.Body)
	if body == nil {
		return nil
	}
	return types.List(body)
}

func (c *checker) checkGlobalList(e *ast.GlobalList) *types.Type {
	pt, ok := e.Type.(*ast.PathType)
	if !ok || len(pt.Path.Segments) != 1 || pt.MaybeCount != 0 {
		return c.errorf(e, "@[...] takes a host object type name")
	}
	name := pt.Path.Segments[0].Name
	if _, ok := c.a.env.Schema[name]; !ok {
		return c.errorf(e, "unknown object type %q", name)
	}
	return types.List(types.Object(name))
}

func (c *checker) checkCardinality(e *ast.Cardinality) *types.Type {
	t := c.check(e.Inner)
	if t == nil {
		return nil
	}
	if t.Kind != types.KindList {
		return c.errorf(e, "cardinality needs a list, got %s", t)
	}
	return types.Int()
}

// castable reports whether `from` values fit the representation type
// `to` (used for alias casts), including the Int-to-LinExpr lift inside
// lists.
func (c *checker) castable(from, to *types.Type) bool {
	if to == nil {
		return false
	}
	if _, ok := c.unify(from, to); ok {
		return true
	}
	if from.Kind == types.KindList && to.Kind == types.KindList {
		if from.Elem == nil {
			return true
		}
		return c.castable(from.Elem, to.Elem)
	}
	return false
}

// canNarrow reports whether a runtime narrowing from one type to another
// can ever succeed.
func (c *checker) canNarrow(from, to *types.Type) bool {
	if _, ok := c.unify(from, to); ok {
		return true
	}
	if from.Kind == types.KindCustom && to.Kind == types.KindCustom {
		return from.Name == to.Name
	}
	if from.Kind == types.KindOptional {
		return to.Kind == types.KindNone || c.canNarrow(from.Elem, to)
	}
	return false
}

func (c *checker) checkCast(e *ast.CastExpr) *types.Type {
	t := c.check(e.Expr)
	if t == nil {
		return nil
	}
	target := c.a.resolveTypeExpr(c.mod, e.Type)
	if target == nil {
		return nil
	}
	switch e.Kind {
	case ast.CastAscribe:
		if _, ok := c.unify(t, target); !ok {
			return c.errorf(e, "expression of type %s cannot be ascribed %s", t, target)
		}
		return target
	case ast.CastMaybe:
		if !c.canNarrow(t, target) {
			return c.errorf(e, "cannot narrow %s to %s", t, target)
		}
		return types.Optional(target)
	default: // CastPanic
		if !c.canNarrow(t, target) {
			return c.errorf(e, "cannot narrow %s to %s", t, target)
		}
		return target
	}
}

func (c *checker) checkComplexCast(e *ast.ComplexTypeCast) *types.Type {
	target := c.a.resolveTypeExpr(c.mod, e.Type)
	if target == nil {
		return nil
	}
	if len(e.Args) != 1 {
		return c.errorf(e, "type cast takes one argument")
	}
	arg := c.check(e.Args[0])
	if arg == nil {
		return nil
	}
	if !c.castable(arg, target) {
		return c.errorf(e, "cannot cast %s to %s", arg, target)
	}
	return target
}
