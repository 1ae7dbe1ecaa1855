// Package linearize lowers constraint formulas (comparison atoms combined
// with and/or/not over 0-1-bounded linear forms) into pure linear
// inequality systems with auxiliary binary helper variables, using the
// big-M reformulation.
package linearize

import (
	"fmt"
	"math"

	"github.com/christophcharles/colloml/pkg/ilp"
	"github.com/christophcharles/colloml/pkg/value"
)

// BoundsFunc reports the bounds and integrality of a variable. Unknown
// variables are an error at lowering time.
type BoundsFunc func(v value.IlpVar) (lo, hi float64, integer bool, ok bool)

// Counter allocates helper variables; it is owned by the problem builder
// and increases monotonically so that helpers are unique per
// linearisation site.
type Counter struct {
	next uint64
}

// Next returns a fresh helper variable.
func (c *Counter) Next() value.HelperVar {
	v := value.HelperVar(c.next)
	c.next++
	return v
}

// NonIntegerError reports a negation over a linear form that is not
// provably integer-valued.
type NonIntegerError struct {
	Detail string
}

func (e *NonIntegerError) Error() string {
	return "cannot negate non-integer linear form: " + e.Detail
}

// UnboundedError reports a big-M relaxation over an unbounded linear
// form.
type UnboundedError struct {
	Expr string
}

func (e *UnboundedError) Error() string {
	return "cannot bound linear form " + e.Expr
}

// Result is the output of one lowering: the emitted constraints (in
// deterministic order, each tagged with the origin) and the helper
// variables introduced.
type Result struct {
	Constraints []value.ConstraintWithOrigin
	Helpers     []value.HelperVar
}

type kernel struct {
	counter *Counter
	bounds  BoundsFunc
	origin  *value.Origin
	out     Result
}

// Lower reduces a formula to linear constraints: the formula must hold.
func Lower(f value.Formula, origin *value.Origin, counter *Counter, bounds BoundsFunc) (Result, error) {
	k := &kernel{counter: counter, bounds: bounds, origin: origin}
	s, err := k.simplify(f, false)
	if err != nil {
		return Result{}, err
	}
	if err := k.lower(s, nil); err != nil {
		return Result{}, err
	}
	return k.out, nil
}

// ReifyEquiv emits the defining constraints binding a binary script
// variable to the truth of a formula: v = 1 iff f holds.
func ReifyEquiv(v *value.ScriptVar, f value.Formula, origin *value.Origin, counter *Counter, bounds BoundsFunc) (Result, error) {
	k := &kernel{counter: counter, bounds: bounds, origin: origin}

	// v = 1 implies f.
	s, err := k.simplify(f, false)
	if err != nil {
		return Result{}, err
	}
	if err := k.lower(s, []value.IlpVar{v}); err != nil {
		return Result{}, err
	}

	// f implies v = 1, emitted as (not f) or (v >= 1).
	neg, err := k.simplify(f, true)
	if err != nil {
		return Result{}, err
	}
	vGe1 := sAtom{
		expr:   ilp.Constant[value.IlpVar](1).Sub(ilp.VarExpr[value.IlpVar](v)),
		symbol: ilp.LessThan,
	}
	back, err := k.simplifyPartsS([]sForm{neg, vGe1})
	if err != nil {
		return Result{}, err
	}
	if err := k.lower(back, nil); err != nil {
		return Result{}, err
	}
	return k.out, nil
}

// FoldFixed substitutes fixed variables in every atom of a formula:
// each occurrence folds its coefficient times the fixed value into the
// constant term.
func FoldFixed(f value.Formula, fix func(v value.IlpVar) (float64, bool)) value.Formula {
	switch form := f.(type) {
	case *value.Atom:
		return &value.Atom{Expr: FoldFixedExpr(form.Expr, fix), Symbol: form.Symbol}
	case *value.And:
		parts := make([]value.Formula, len(form.Parts))
		for i, p := range form.Parts {
			parts[i] = FoldFixed(p, fix)
		}
		return &value.And{Parts: parts}
	case *value.Or:
		parts := make([]value.Formula, len(form.Parts))
		for i, p := range form.Parts {
			parts[i] = FoldFixed(p, fix)
		}
		return &value.Or{Parts: parts}
	case *value.Not:
		return &value.Not{Inner: FoldFixed(form.Inner, fix)}
	default:
		return f
	}
}

// FoldFixedExpr substitutes fixed variables in one linear expression.
func FoldFixedExpr(e ilp.Expr[value.IlpVar], fix func(v value.IlpVar) (float64, bool)) ilp.Expr[value.IlpVar] {
	out := ilp.Constant[value.IlpVar](e.ConstantTerm())
	for _, t := range e.Terms() {
		if x, fixed := fix(t.Var); fixed {
			out = out.AddK(t.Coef * x)
		} else {
			out = out.Add(ilp.VarExpr[value.IlpVar](t.Var).MulK(t.Coef))
		}
	}
	return out
}

// Simplified formula representation: negation is already pushed into the
// atoms and constant atoms are folded away.
type sForm interface{ sform() }

type sAtom struct {
	expr   ilp.Expr[value.IlpVar]
	symbol ilp.EqSymbol
}

type sAnd []sForm
type sOr []sForm
type sTrue struct{}
type sFalse struct{}

func (sAtom) sform()  {}
func (sAnd) sform()   {}
func (sOr) sform()    {}
func (sTrue) sform()  {}
func (sFalse) sform() {}

// simplify normalises a formula to negation-free form, folding constant
// atoms. With negated set, the formula's negation is produced.
func (k *kernel) simplify(f value.Formula, negated bool) (sForm, error) {
	switch form := f.(type) {
	case *value.Atom:
		if negated {
			return k.negateAtom(form)
		}
		return foldAtom(sAtom{expr: form.Expr, symbol: form.Symbol}), nil

	case *value.Not:
		return k.simplify(form.Inner, !negated)

	case *value.And:
		return k.simplifyParts(form.Parts, negated, negated)

	case *value.Or:
		return k.simplifyParts(form.Parts, negated, !negated)

	default:
		return nil, fmt.Errorf("unknown formula %T", f)
	}
}

// simplifyParts lowers a connective's children; asOr selects the
// resulting connective after De Morgan.
func (k *kernel) simplifyParts(parts []value.Formula, negated, asOr bool) (sForm, error) {
	out := make([]sForm, 0, len(parts))
	for _, p := range parts {
		s, err := k.simplify(p, negated)
		if err != nil {
			return nil, err
		}
		switch s.(type) {
		case sTrue:
			if asOr {
				return sTrue{}, nil
			}
			continue
		case sFalse:
			if !asOr {
				return sFalse{}, nil
			}
			continue
		}
		out = append(out, s)
	}
	if asOr {
		if len(out) == 0 {
			return sFalse{}, nil
		}
		if len(out) == 1 {
			return out[0], nil
		}
		return sOr(out), nil
	}
	if len(out) == 0 {
		return sTrue{}, nil
	}
	if len(out) == 1 {
		return out[0], nil
	}
	return sAnd(out), nil
}

// foldAtom turns a variable-free atom into a truth constant.
func foldAtom(a sAtom) sForm {
	if !a.expr.IsConstant() {
		return a
	}
	c := a.expr.ConstantTerm()
	if a.symbol == ilp.Equals {
		if c == 0 {
			return sTrue{}
		}
		return sFalse{}
	}
	if c <= 0 {
		return sTrue{}
	}
	return sFalse{}
}

// negateAtom negates a comparison atom. Negating `L <= 0` yields
// `L >= 1`, which is only sound when L is provably integer-valued: every
// variable integer and every coefficient (and the constant) integer.
func (k *kernel) negateAtom(a *value.Atom) (sForm, error) {
	if err := k.assertIntegral(a.Expr); err != nil {
		return nil, err
	}
	if a.Symbol == ilp.Equals {
		// not (L = 0)  <=>  L >= 1 or L <= -1
		ge1 := foldAtom(sAtom{expr: a.Expr.MulK(-1).AddK(1), symbol: ilp.LessThan})
		leM1 := foldAtom(sAtom{expr: a.Expr.AddK(1), symbol: ilp.LessThan})
		return k.simplifyPartsS([]sForm{ge1, leM1})
	}
	// not (L <= 0)  <=>  -L + 1 <= 0
	return foldAtom(sAtom{expr: a.Expr.MulK(-1).AddK(1), symbol: ilp.LessThan}), nil
}

// simplifyPartsS folds an already-simplified disjunction.
func (k *kernel) simplifyPartsS(parts []sForm) (sForm, error) {
	out := make([]sForm, 0, len(parts))
	for _, p := range parts {
		switch p.(type) {
		case sTrue:
			return sTrue{}, nil
		case sFalse:
			continue
		}
		out = append(out, p)
	}
	switch len(out) {
	case 0:
		return sFalse{}, nil
	case 1:
		return out[0], nil
	default:
		return sOr(out), nil
	}
}

// assertIntegral verifies that a linear form only takes integer values.
func (k *kernel) assertIntegral(e ilp.Expr[value.IlpVar]) error {
	if e.ConstantTerm() != math.Trunc(e.ConstantTerm()) {
		return &NonIntegerError{Detail: fmt.Sprintf("constant %g", e.ConstantTerm())}
	}
	for _, t := range e.Terms() {
		if t.Coef != math.Trunc(t.Coef) {
			return &NonIntegerError{Detail: fmt.Sprintf("coefficient %g of %s", t.Coef, t.Var)}
		}
		_, _, integer, ok := k.bounds(t.Var)
		if !ok {
			return &NonIntegerError{Detail: fmt.Sprintf("unknown variable %s", t.Var)}
		}
		if !integer {
			return &NonIntegerError{Detail: fmt.Sprintf("variable %s is continuous", t.Var)}
		}
	}
	return nil
}

// upperBound computes a conservative maximum of a linear form from the
// variable bounds.
func (k *kernel) upperBound(e ilp.Expr[value.IlpVar]) (float64, error) {
	max := e.ConstantTerm()
	for _, t := range e.Terms() {
		lo, hi, _, ok := k.bounds(t.Var)
		if !ok {
			return 0, &UnboundedError{Expr: e.String()}
		}
		if t.Coef >= 0 {
			max += t.Coef * hi
		} else {
			max += t.Coef * lo
		}
		if math.IsInf(max, 1) {
			return 0, &UnboundedError{Expr: e.String()}
		}
	}
	return max, nil
}

func (k *kernel) emit(c ilp.Constraint[value.IlpVar]) {
	k.out.Constraints = append(k.out.Constraints, value.ConstraintWithOrigin{
		Constraint: c,
		Origin:     k.origin,
	})
}

// guardSlack returns the big-M slack expression M * sum(1 - g) for the
// active guards.
func guardSlack(m float64, guards []value.IlpVar) ilp.Expr[value.IlpVar] {
	slack := ilp.Constant[value.IlpVar](0)
	for _, g := range guards {
		slack = slack.AddK(m).Sub(ilp.VarExpr[value.IlpVar](g).MulK(m))
	}
	return slack
}

// lowerLeq emits `L <= 0 whenever all guards are 1` as the big-M
// relaxation L <= M * sum(1 - g).
func (k *kernel) lowerLeq(e ilp.Expr[value.IlpVar], guards []value.IlpVar) error {
	if len(guards) == 0 {
		k.emit(ilp.NewConstraint(e, ilp.LessThan))
		return nil
	}
	m, err := k.upperBound(e)
	if err != nil {
		return err
	}
	if m <= 0 {
		// The inequality holds regardless of the guards.
		return nil
	}
	k.emit(ilp.NewConstraint(e.Sub(guardSlack(m, guards)), ilp.LessThan))
	return nil
}

// lower emits constraints enforcing `all guards 1 implies f`.
func (k *kernel) lower(f sForm, guards []value.IlpVar) error {
	switch form := f.(type) {
	case sTrue:
		return nil

	case sFalse:
		if len(guards) == 0 {
			// Plainly infeasible; surface as the constant constraint 1 <= 0.
			k.emit(ilp.NewConstraint(ilp.Constant[value.IlpVar](1), ilp.LessThan))
			return nil
		}
		// The guards can never all be 1: sum(g) <= len-1.
		lhs := ilp.Constant[value.IlpVar](float64(1 - len(guards)))
		for _, g := range guards {
			lhs = lhs.Add(ilp.VarExpr[value.IlpVar](g))
		}
		k.emit(ilp.NewConstraint(lhs, ilp.LessThan))
		return nil

	case sAtom:
		if form.symbol == ilp.Equals {
			if len(guards) == 0 {
				k.emit(ilp.NewConstraint(form.expr, ilp.Equals))
				return nil
			}
			// Guarded equality splits into two guarded inequalities.
			if err := k.lowerLeq(form.expr, guards); err != nil {
				return err
			}
			return k.lowerLeq(form.expr.MulK(-1), guards)
		}
		return k.lowerLeq(form.expr, guards)

	case sAnd:
		for _, part := range form {
			if err := k.lower(part, guards); err != nil {
				return err
			}
		}
		return nil

	case sOr:
		// One helper per branch; at least one helper must hold whenever
		// all guards do.
		helpers := make([]value.IlpVar, len(form))
		cover := ilp.Constant[value.IlpVar](1)
		for i := range form {
			h := k.counter.Next()
			k.out.Helpers = append(k.out.Helpers, h)
			helpers[i] = h
			cover = cover.Sub(ilp.VarExpr[value.IlpVar](h))
		}
		for _, g := range guards {
			cover = cover.AddK(-1).Add(ilp.VarExpr[value.IlpVar](g))
		}
		k.emit(ilp.NewConstraint(cover, ilp.LessThan))

		for i, part := range form {
			if err := k.lower(part, append(append([]value.IlpVar{}, guards...), helpers[i])); err != nil {
				return err
			}
		}
		return nil

	default:
		return fmt.Errorf("unknown simplified formula %T", f)
	}
}
