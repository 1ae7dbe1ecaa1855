package colloml

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/christophcharles/colloml/internal/eval"
	"github.com/christophcharles/colloml/internal/semantic"
	"github.com/christophcharles/colloml/pkg/types"
	"github.com/christophcharles/colloml/pkg/value"
)

// Warning is a non-fatal compile diagnostic.
type Warning = semantic.Warning

// CompileError aggregates every parse and semantic diagnostic of a
// failed compilation.
type CompileError struct {
	Module string
	Errs   *multierror.Error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compiling %q: %s", e.Module, e.Errs.Error())
}

// Unwrap exposes the aggregated diagnostics to errors.Is/As.
func (e *CompileError) Unwrap() error {
	return e.Errs.ErrorOrNil()
}

// VarConversionError reports a base-variable instance the host does not
// recognise or whose parameters mismatch its schema.
type VarConversionError struct {
	Name     string
	Expected int
	Found    int
	Param    int
	Want     *types.Type
	Unknown  bool
}

func (e *VarConversionError) Error() string {
	switch {
	case e.Unknown:
		return fmt.Sprintf("unknown variable %q", e.Name)
	case e.Want != nil:
		return fmt.Sprintf("variable %q parameter %d expects %s", e.Name, e.Param, e.Want)
	default:
		return fmt.Sprintf("variable %q expects %d parameters but got %d", e.Name, e.Expected, e.Found)
	}
}

// UnknownFunctionError reports a function the builder could not find in
// a script (or that is not public).
type UnknownFunctionError struct {
	Name string
}

func (e *UnknownFunctionError) Error() string {
	return fmt.Sprintf("function %q was not found in script (maybe it is not public?)", e.Name)
}

// ArgumentCountError reports a call with the wrong number of arguments.
type ArgumentCountError struct {
	Func     string
	Expected int
	Found    int
}

func (e *ArgumentCountError) Error() string {
	return fmt.Sprintf("function %q expects %d arguments but got %d", e.Func, e.Expected, e.Found)
}

// WrongReturnTypeError reports a function whose return type does not fit
// the requested role (constraint, objective or reification).
type WrongReturnTypeError struct {
	Func     string
	Returned *types.Type
	Expected *types.Type
}

func (e *WrongReturnTypeError) Error() string {
	return fmt.Sprintf("function %s returns %s instead of %s", e.Func, e.Returned, e.Expected)
}

// PanicError is a script panic surfaced through the builder; the
// enclosing add call was rolled back.
type PanicError struct {
	Payload value.Value
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %s", e.Payload)
}

// EvalError is a non-panic runtime failure surfaced through the builder.
type EvalError struct {
	Inner error
}

func (e *EvalError) Error() string {
	return "evaluation failed: " + e.Inner.Error()
}

func (e *EvalError) Unwrap() error {
	return e.Inner
}

// wrapEvalError converts evaluator errors to the builder taxonomy.
func wrapEvalError(err error) error {
	if p, ok := err.(*eval.PanicError); ok {
		return &PanicError{Payload: p.Payload}
	}
	return &EvalError{Inner: err}
}
