package value

import (
	"fmt"
	"strings"
)

// IlpVar is a solver-variable key: host-declared (BaseVar), declared by a
// reify statement (ScriptVar) or introduced by linearisation (HelperVar).
// The set of implementations is closed.
type IlpVar interface {
	Key() string
	String() string

	ilpVar()
}

func joinParamStrings(params []Value) string {
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = p.String()
	}
	return strings.Join(parts, ", ")
}

func joinParamKeys(params []Value) string {
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = p.Key()
	}
	return strings.Join(parts, ",")
}

// BaseVar is a host-declared variable instance: a family name plus the
// parameter values identifying the instance.
type BaseVar struct {
	Name   string
	Params []Value

	paramsStr string
}

// NewBaseVar builds a base-variable instance; the display form of the
// parameters is computed once and cached.
func NewBaseVar(name string, params []Value) *BaseVar {
	return &BaseVar{Name: name, Params: params, paramsStr: joinParamStrings(params)}
}

// NewBaseVarPretty is NewBaseVar with a host-supplied display form for
// the parameters (e.g. from the host's pretty printer).
func NewBaseVarPretty(name string, params []Value, pretty []string) *BaseVar {
	return &BaseVar{Name: name, Params: params, paramsStr: strings.Join(pretty, ", ")}
}

func (v *BaseVar) ilpVar() {}

func (v *BaseVar) String() string {
	return "$" + v.Name + "(" + v.paramsStr + ")"
}

func (v *BaseVar) Key() string {
	return "base:" + v.Name + "(" + joinParamKeys(v.Params) + ")"
}

// ScriptVar is a variable declared by a reify statement. One instance
// exists per distinct parameter tuple actually encountered during
// constraint evaluation; FromList is the list index for variable lists.
type ScriptVar struct {
	Module   string
	Name     string
	FromList *int
	Params   []Value

	paramsStr string
}

// NewScriptVar builds a script-variable instance.
func NewScriptVar(module, name string, fromList *int, params []Value) *ScriptVar {
	return &ScriptVar{
		Module:    module,
		Name:      name,
		FromList:  fromList,
		Params:    params,
		paramsStr: joinParamStrings(params),
	}
}

func (v *ScriptVar) ilpVar() {}

func (v *ScriptVar) String() string {
	if v.FromList != nil {
		return fmt.Sprintf("$%s(%s)[%d]", v.Name, v.paramsStr, *v.FromList)
	}
	return "$" + v.Name + "(" + v.paramsStr + ")"
}

func (v *ScriptVar) Key() string {
	list := "-"
	if v.FromList != nil {
		list = fmt.Sprintf("%d", *v.FromList)
	}
	return "script:" + v.Module + "::" + v.Name + "[" + list + "](" + joinParamKeys(v.Params) + ")"
}

// HelperVar is an anonymous binary variable introduced by the
// linearisation kernel; unique per linearisation site.
type HelperVar uint64

func (v HelperVar) ilpVar() {}

func (v HelperVar) String() string {
	return fmt.Sprintf("h_%d", uint64(v))
}

func (v HelperVar) Key() string {
	return fmt.Sprintf("helper:%020d", uint64(v))
}
