// Package ilp provides the linear-programming building blocks consumed by
// the CoLLoML problem builder: sparse linear expressions over a generic
// variable key, constraints, variable kinds, the assembled problem and
// solution configuration data.
//
// Solver backends are external; a Problem is plain data for an adapter to
// consume.
package ilp

import (
	"sort"
	"strconv"
	"strings"
)

// Var is a solver-variable key. Key must be canonical: two keys are the
// same variable iff their Key strings are equal, and Key order defines
// the display and comparison order of expressions.
type Var interface {
	Key() string
	String() string
}

type term[V Var] struct {
	v    V
	coef float64
}

// Expr is a sparse linear combination of variables plus a constant term.
// The zero value is not usable; build expressions with VarExpr, Constant
// or NewExpr.
type Expr[V Var] struct {
	terms    map[string]term[V]
	constant float64
}

// NewExpr returns the zero expression.
func NewExpr[V Var]() Expr[V] {
	return Expr[V]{terms: map[string]term[V]{}}
}

// VarExpr returns the expression 1*v.
func VarExpr[V Var](v V) Expr[V] {
	return Expr[V]{terms: map[string]term[V]{v.Key(): {v: v, coef: 1}}}
}

// Constant returns a constant expression.
func Constant[V Var](c float64) Expr[V] {
	return Expr[V]{terms: map[string]term[V]{}, constant: c}
}

// Term is one (variable, coefficient) pair of an expression.
type Term[V Var] struct {
	Var  V
	Coef float64
}

// Terms returns the expression's terms sorted by canonical variable key.
// Zero-coefficient terms never appear.
func (e Expr[V]) Terms() []Term[V] {
	keys := make([]string, 0, len(e.terms))
	for k := range e.terms {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Term[V], 0, len(keys))
	for _, k := range keys {
		t := e.terms[k]
		out = append(out, Term[V]{Var: t.v, Coef: t.coef})
	}
	return out
}

// ConstantTerm returns the constant part of the expression.
func (e Expr[V]) ConstantTerm() float64 {
	return e.constant
}

// Coef returns the coefficient of v, zero when absent.
func (e Expr[V]) Coef(v V) float64 {
	return e.terms[v.Key()].coef
}

// IsConstant reports whether the expression has no variable terms.
func (e Expr[V]) IsConstant() bool {
	return len(e.terms) == 0
}

func (e Expr[V]) clone() Expr[V] {
	terms := make(map[string]term[V], len(e.terms))
	for k, t := range e.terms {
		terms[k] = t
	}
	return Expr[V]{terms: terms, constant: e.constant}
}

// Add returns e + other.
func (e Expr[V]) Add(other Expr[V]) Expr[V] {
	out := e.clone()
	for k, t := range other.terms {
		merged := out.terms[k].coef + t.coef
		if merged == 0 {
			delete(out.terms, k)
		} else {
			out.terms[k] = term[V]{v: t.v, coef: merged}
		}
	}
	out.constant += other.constant
	return out
}

// Sub returns e - other.
func (e Expr[V]) Sub(other Expr[V]) Expr[V] {
	return e.Add(other.MulK(-1))
}

// MulK returns the expression scaled by k.
func (e Expr[V]) MulK(k float64) Expr[V] {
	if k == 0 {
		return Constant[V](0)
	}
	out := Expr[V]{terms: make(map[string]term[V], len(e.terms)), constant: e.constant * k}
	for key, t := range e.terms {
		out.terms[key] = term[V]{v: t.v, coef: t.coef * k}
	}
	return out
}

// AddK returns e + k.
func (e Expr[V]) AddK(k float64) Expr[V] {
	out := e.clone()
	out.constant += k
	return out
}

// Equal reports mathematical equality: same terms with same coefficients
// and the same constant.
func (e Expr[V]) Equal(other Expr[V]) bool {
	if e.constant != other.constant || len(e.terms) != len(other.terms) {
		return false
	}
	for k, t := range e.terms {
		if other.terms[k].coef != t.coef {
			return false
		}
	}
	return true
}

// Compare orders expressions canonically: by sorted term keys, then
// coefficients, then constant. The order is total.
func (e Expr[V]) Compare(other Expr[V]) int {
	a, b := e.Terms(), other.Terms()
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := strings.Compare(a[i].Var.Key(), b[i].Var.Key()); c != 0 {
			return c
		}
		if a[i].Coef != b[i].Coef {
			if a[i].Coef < b[i].Coef {
				return -1
			}
			return 1
		}
	}
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	if e.constant != other.constant {
		if e.constant < other.constant {
			return -1
		}
		return 1
	}
	return 0
}

func formatCoef(c float64) string {
	s := strconv.FormatFloat(c, 'g', -1, 64)
	if c < 0 {
		return "(" + s + ")"
	}
	return s
}

// String renders the expression as "c1*v1 + c2*v2 + k"; negative numbers
// are parenthesized.
func (e Expr[V]) String() string {
	terms := e.Terms()
	if len(terms) == 0 {
		return formatCoef(e.constant)
	}
	parts := make([]string, 0, len(terms)+1)
	for _, t := range terms {
		parts = append(parts, formatCoef(t.Coef)+"*"+t.Var.String())
	}
	if e.constant != 0 {
		parts = append(parts, formatCoef(e.constant))
	}
	return strings.Join(parts, " + ")
}

// EqSymbol is a constraint comparison symbol; the right-hand side is
// implicitly zero.
type EqSymbol int

const (
	LessThan EqSymbol = iota // <=
	Equals                   // =
)

func (s EqSymbol) String() string {
	if s == Equals {
		return "="
	}
	return "<="
}

// Constraint is `lhs <symbol> 0`. A geq constraint is stored as the
// negated leq.
type Constraint[V Var] struct {
	lhs    Expr[V]
	symbol EqSymbol
}

// Leq builds the constraint e - other <= 0.
func (e Expr[V]) Leq(other Expr[V]) Constraint[V] {
	return Constraint[V]{lhs: e.Sub(other), symbol: LessThan}
}

// Geq builds the constraint other - e <= 0.
func (e Expr[V]) Geq(other Expr[V]) Constraint[V] {
	return Constraint[V]{lhs: other.Sub(e), symbol: LessThan}
}

// Eq builds the constraint e - other = 0.
func (e Expr[V]) Eq(other Expr[V]) Constraint[V] {
	return Constraint[V]{lhs: e.Sub(other), symbol: Equals}
}

// NewConstraint wraps a left-hand side and symbol directly.
func NewConstraint[V Var](lhs Expr[V], symbol EqSymbol) Constraint[V] {
	return Constraint[V]{lhs: lhs, symbol: symbol}
}

// LHS returns the constraint's left-hand side.
func (c Constraint[V]) LHS() Expr[V] { return c.lhs }

// Symbol returns the constraint's comparison symbol.
func (c Constraint[V]) Symbol() EqSymbol { return c.symbol }

// Equal reports structural constraint equality.
func (c Constraint[V]) Equal(other Constraint[V]) bool {
	return c.symbol == other.symbol && c.lhs.Equal(other.lhs)
}

// Compare orders constraints totally: by symbol, then left-hand side.
func (c Constraint[V]) Compare(other Constraint[V]) int {
	if c.symbol != other.symbol {
		if c.symbol < other.symbol {
			return -1
		}
		return 1
	}
	return c.lhs.Compare(other.lhs)
}

func (c Constraint[V]) String() string {
	return c.lhs.String() + " " + c.symbol.String() + " 0"
}
