// Package colloml is the public surface of the CoLLoML core: the host
// capability interfaces, script compilation, the problem builder and
// solution rehydration.
//
// A host implements ObjectProvider over its object graph and
// VariableProvider over its solver-variable families, compiles scripts,
// adds constraints and objectives, and obtains an ilp.Problem for an
// external MILP solver. The companion ReadSolution turns solver output
// back into host-visible configuration data.
package colloml

import (
	"github.com/christophcharles/colloml/internal/eval"
	"github.com/christophcharles/colloml/pkg/ilp"
	"github.com/christophcharles/colloml/pkg/types"
	"github.com/christophcharles/colloml/pkg/value"
)

// ObjectProvider is the object capability a host supplies: runtime
// enumeration and field access (consumed by the evaluator) plus the
// static schema consumed by the semantic analyzer.
//
// Providers are used single-threaded; an implementation may keep an
// internal view cache and mutate it cooperatively during evaluation.
type ObjectProvider interface {
	eval.ObjectProvider

	// TypeSchemas returns the static schema: type name to field types.
	TypeSchemas() types.Schema
}

// BaseVariable is one host-declared solver-variable instance with its
// numeric kind.
type BaseVariable struct {
	Var  *value.BaseVar
	Kind ilp.Variable
}

// VariableProvider is the variable capability a host supplies.
type VariableProvider interface {
	// FieldSchema returns the argument-type signature of every base
	// variable family.
	FieldSchema() types.VarSchema

	// Vars enumerates every base-variable instance with its kind.
	Vars() ([]BaseVariable, error)

	// Fix returns the known value of a variable that must be
	// pre-substituted and excluded from the solver, or false.
	Fix(v *value.BaseVar) (float64, bool)

	// TryFromExtern validates a base-variable instance the evaluator
	// produced from a $Var(...) reference; the returned error is a
	// *VarConversionError when the instance is not recognised.
	TryFromExtern(v *value.BaseVar) error
}

// NoObjects is an ObjectProvider for hosts without an object graph.
type NoObjects struct{}

func (NoObjects) ObjectsWithType(string) []value.Object { return nil }

func (NoObjects) TypeName(value.Object) string { return "" }

func (NoObjects) FieldAccess(value.Object, string) (value.Value, bool) { return nil, false }

func (NoObjects) PrettyPrint(value.Object) (string, bool) { return "", false }

func (NoObjects) TypeSchemas() types.Schema { return types.Schema{} }
