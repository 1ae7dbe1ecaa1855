package colloml

import (
	"github.com/hashicorp/go-multierror"

	"github.com/christophcharles/colloml/internal/eval"
	"github.com/christophcharles/colloml/internal/parser"
	"github.com/christophcharles/colloml/internal/semantic"
	"github.com/christophcharles/colloml/pkg/types"
	"github.com/christophcharles/colloml/pkg/value"
)

// Script is one named CoLLoML source module.
type Script struct {
	Name    string
	Content string
}

// CompiledScript is the handle returned by CompileScript: the checked
// module set at compile time plus the compile warnings.
type CompiledScript struct {
	// Name of the module this handle was compiled for.
	Name string

	checked  *semantic.Checked
	warnings []*Warning
}

// Warnings returns the compile warnings.
func (s *CompiledScript) Warnings() []*Warning {
	return s.warnings
}

// compileModules parses and analyzes an ordered module set.
func compileModules(scripts []Script, schema types.Schema, varSchema types.VarSchema, extra []semantic.ExtraReify) (*semantic.Checked, []*Warning, error) {
	var mods []semantic.Module
	for _, s := range scripts {
		p := parser.New(s.Content)
		file := p.ParseFile()
		if file == nil {
			errs := &multierror.Error{}
			for _, le := range p.LexErrors() {
				errs = multierror.Append(errs, le)
			}
			for _, pe := range p.Errors() {
				errs = multierror.Append(errs, pe)
			}
			return nil, nil, &CompileError{Module: s.Name, Errs: errs}
		}
		mods = append(mods, semantic.Module{Name: s.Name, File: file})
	}

	checked, warnings, semErrs := semantic.Analyze(mods, schema, varSchema, extra)
	if len(semErrs) > 0 {
		errs := &multierror.Error{}
		module := ""
		for _, se := range semErrs {
			module = se.Module
			errs = multierror.Append(errs, se)
		}
		return nil, warnings, &CompileError{Module: module, Errs: errs}
	}
	return checked, warnings, nil
}

// EvalFunction evaluates one function of the compiled module set without
// a problem builder; referenced variables are not interned anywhere.
// objects may be nil for scripts that never touch host objects.
func (s *CompiledScript) EvalFunction(module, name string, args []value.Value, objects ObjectProvider) (value.Value, error) {
	var op eval.ObjectProvider
	if objects != nil {
		op = objects
	}
	ev := eval.New(s.checked, op, nil)
	result, err := ev.CallFunction(module, name, args)
	if err != nil {
		return nil, wrapEvalError(err)
	}
	return result, nil
}

// CompileScripts compiles a standalone module set against host schemas,
// without a problem builder. Useful for checking scripts ahead of time.
func CompileScripts(scripts []Script, schema types.Schema, varSchema types.VarSchema) (*CompiledScript, []*Warning, error) {
	checked, warnings, err := compileModules(scripts, schema, varSchema, nil)
	if err != nil {
		return nil, warnings, err
	}
	name := ""
	if len(scripts) > 0 {
		name = scripts[len(scripts)-1].Name
	}
	return &CompiledScript{Name: name, checked: checked, warnings: warnings}, warnings, nil
}
