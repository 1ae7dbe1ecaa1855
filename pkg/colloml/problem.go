package colloml

import (
	"fmt"
	"math"

	"github.com/christophcharles/colloml/pkg/ilp"
	"github.com/christophcharles/colloml/pkg/value"
)

// Solution maps canonical variable keys (value.IlpVar Key strings) to
// the values an external solver assigned them.
type Solution map[string]float64

// Problem is the assembled MILP together with per-constraint origins and
// the pre-substituted fixed variables.
type Problem struct {
	inner       *ilp.Problem[value.IlpVar]
	constraints []value.ConstraintWithOrigin
	fixes       []fixedVar
}

// Inner returns the plain ILP problem for a solver adapter.
func (p *Problem) Inner() *ilp.Problem[value.IlpVar] {
	return p.inner
}

// Constraints returns the constraints with their origins, in emission
// order (the same order as Inner().Constraints()).
func (p *Problem) Constraints() []value.ConstraintWithOrigin {
	return p.constraints
}

// ReadSolution rehydrates a solver solution into host-visible
// configuration data: base variables keep their solved values (rounded
// for integer kinds), fixed variables re-appear at their fixed values,
// and script and helper variables are discarded.
func (p *Problem) ReadSolution(sol Solution) (*ilp.ConfigData[value.IlpVar], error) {
	config := ilp.NewConfigData[value.IlpVar]()

	for _, dv := range p.inner.Variables() {
		bv, isBase := dv.Var.(*value.BaseVar)
		if !isBase {
			continue
		}
		x, ok := sol[bv.Key()]
		if !ok {
			return nil, fmt.Errorf("solution is missing variable %s", bv)
		}
		if dv.Kind.IsInteger() {
			x = math.Round(x)
		}
		config.Set(dv.Var, x)
	}

	for _, f := range p.fixes {
		config.Set(value.IlpVar(f.v), f.val)
	}
	return config, nil
}
