package value

import (
	"strings"

	"github.com/christophcharles/colloml/pkg/ilp"
)

// Origin records the script function call that produced a constraint:
// module, function name, the actual arguments and the rendered docstring
// (when the declaration carries one). Hosts use origins for diagnostics
// and solver-side blame.
type Origin struct {
	Module          string
	FnName          string
	Args            []Value
	PrettyDocstring []string
}

func (o *Origin) String() string {
	if len(o.PrettyDocstring) > 0 {
		return strings.Join(o.PrettyDocstring, "\n")
	}
	args := make([]string, len(o.Args))
	for i, a := range o.Args {
		args[i] = a.String()
	}
	return o.Module + "::" + o.FnName + "(" + strings.Join(args, ", ") + ")"
}

// ConstraintWithOrigin pairs an emitted linear constraint with the origin
// it is blamed on. Origin is nil for purely structural constraints.
type ConstraintWithOrigin struct {
	Constraint ilp.Constraint[IlpVar]
	Origin     *Origin
}
