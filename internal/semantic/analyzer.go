// Package semantic implements the two-pass semantic analyzer for
// CoLLoML module sets.
//
// Pass 1 collects every declaration into a global environment keyed by
// (module, name), resolves imports (import cycles are an error),
// normalises enum variants and merges the host's variable registry as
// implicit LinExpr-returning callables. Pass 2 typechecks every function
// body bottom-up and records one resolved type per AST span.
package semantic

import (
	"fmt"

	"github.com/christophcharles/colloml/internal/lexer"
	"github.com/christophcharles/colloml/pkg/ast"
	"github.com/christophcharles/colloml/pkg/types"
)

// Module is one named source unit handed to the analyzer.
type Module struct {
	Name string
	File *ast.File
}

// ExtraReify is a reification registered by the host through the problem
// builder rather than by a reify statement: VarName in module Module is
// defined by calling FnName of that module.
type ExtraReify struct {
	Module  string
	FnName  string
	VarName string
	VarList bool
}

// TypeInfo records the resolved type of every expression span of one
// module.
type TypeInfo map[lexer.Span]*types.Type

// Checked is the analyzer's result: the global environment plus per-span
// type information, ready for evaluation.
type Checked struct {
	Env      *GlobalEnv
	TypeInfo map[string]TypeInfo
}

type analyzer struct {
	env      *GlobalEnv
	errors   []*Error
	warnings []*Warning
	typeInfo map[string]TypeInfo
}

// Analyze runs both passes over an ordered module set. The schema
// describes host object types; varSchema the host's base-variable
// families.
func Analyze(modules []Module, schema types.Schema, varSchema types.VarSchema, extra []ExtraReify) (*Checked, []*Warning, []*Error) {
	a := &analyzer{
		env: &GlobalEnv{
			Modules:   map[string]*ModuleEnv{},
			Schema:    schema,
			VarSchema: varSchema,
		},
		typeInfo: map[string]TypeInfo{},
	}

	a.collect(modules)
	a.collectExtraReifies(extra)
	if len(a.errors) > 0 {
		return nil, a.warnings, a.errors
	}
	a.resolveImports()
	if len(a.errors) > 0 {
		return nil, a.warnings, a.errors
	}
	a.resolveDeclarations()
	if len(a.errors) > 0 {
		return nil, a.warnings, a.errors
	}
	a.checkBodies()
	if len(a.errors) > 0 {
		return nil, a.warnings, a.errors
	}

	return &Checked{Env: a.env, TypeInfo: a.typeInfo}, a.warnings, nil
}

func (a *analyzer) errorf(module string, span lexer.Span, format string, args ...any) {
	a.errors = append(a.errors, &Error{
		Module:  module,
		Message: fmt.Sprintf(format, args...),
		Span:    span,
	})
}

func (a *analyzer) warnf(module string, span lexer.Span, format string, args ...any) {
	a.warnings = append(a.warnings, &Warning{
		Module:  module,
		Message: fmt.Sprintf(format, args...),
		Span:    span,
	})
}

// collect registers every declaration of every module (pass 1a).
func (a *analyzer) collect(modules []Module) {
	for _, m := range modules {
		if _, dup := a.env.Modules[m.Name]; dup {
			a.errorf(m.Name, lexer.Span{}, "duplicate module %q", m.Name)
			continue
		}
		mod := newModuleEnv(m.Name, m.File)
		a.env.Modules[m.Name] = mod
		a.env.Order = append(a.env.Order, m.Name)

		for _, stmt := range m.File.Statements {
			switch decl := stmt.(type) {
			case *ast.FuncDecl:
				if _, dup := mod.Funcs[decl.Name.Name]; dup {
					a.errorf(m.Name, decl.Name.Sp, "duplicate function %q", decl.Name.Name)
					continue
				}
				if _, isVar := a.env.VarSchema[decl.Name.Name]; isVar {
					a.errorf(m.Name, decl.Name.Sp, "function %q collides with a host variable", decl.Name.Name)
					continue
				}
				mod.Funcs[decl.Name.Name] = &FuncSig{
					Module: m.Name,
					Name:   decl.Name.Name,
					Public: decl.Public,
					Decl:   decl,
				}
			case *ast.TypeDecl:
				a.registerType(mod, decl.Name, decl.Public, false, decl)
			case *ast.EnumDecl:
				a.registerType(mod, decl.Name, decl.Public, true, decl)
			case *ast.ReifyDecl:
				if _, dup := mod.Reifies[decl.Name.Name]; dup {
					a.errorf(m.Name, decl.Name.Sp, "duplicate reified variable %q", decl.Name.Name)
					continue
				}
				if _, isVar := a.env.VarSchema[decl.Name.Name]; isVar {
					a.errorf(m.Name, decl.Name.Sp, "reified variable %q collides with a host variable", decl.Name.Name)
					continue
				}
				mod.Reifies[decl.Name.Name] = &ReifyDef{
					Module:  m.Name,
					Name:    decl.Name.Name,
					Public:  decl.Public,
					VarList: decl.VarList,
					Decl:    decl,
				}
			case *ast.ImportDecl:
				// resolved in resolveImports
			}
		}
	}
}

// collectExtraReifies registers host-declared reifications; they resolve
// with the rest of the declarations.
func (a *analyzer) collectExtraReifies(extra []ExtraReify) {
	for _, er := range extra {
		mod, ok := a.env.Modules[er.Module]
		if !ok {
			a.errorf(er.Module, lexer.Span{}, "unknown module %q in reified-variable registration", er.Module)
			continue
		}
		if _, dup := mod.Reifies[er.VarName]; dup {
			a.errorf(er.Module, lexer.Span{}, "duplicate reified variable %q", er.VarName)
			continue
		}
		if _, isVar := a.env.VarSchema[er.VarName]; isVar {
			a.errorf(er.Module, lexer.Span{}, "reified variable %q collides with a host variable", er.VarName)
			continue
		}
		mod.Reifies[er.VarName] = &ReifyDef{
			Module:   er.Module,
			Name:     er.VarName,
			Public:   true,
			FnModule: er.Module,
			FnName:   er.FnName,
			VarList:  er.VarList,
		}
	}
}

var builtinTypeNames = map[string]*types.Type{
	"Int":        types.Int(),
	"Bool":       types.Bool(),
	"String":     types.String(),
	"None":       types.None(),
	"Constraint": types.Constraint(),
	"LinExpr":    types.LinExpr(),
}

func (a *analyzer) registerType(mod *ModuleEnv, name *ast.Ident, public, isEnum bool, decl ast.Statement) {
	if _, dup := mod.Types[name.Name]; dup {
		a.errorf(mod.Name, name.Sp, "duplicate type %q", name.Name)
		return
	}
	if _, builtin := builtinTypeNames[name.Name]; builtin {
		a.errorf(mod.Name, name.Sp, "type %q shadows a builtin type", name.Name)
		return
	}
	if _, object := a.env.Schema[name.Name]; object {
		a.errorf(mod.Name, name.Sp, "type %q collides with a host object type", name.Name)
		return
	}
	mod.Types[name.Name] = &TypeDef{
		Module: mod.Name,
		Name:   name.Name,
		Public: public,
		IsEnum: isEnum,
		Decl:   decl,
	}
}

// resolveImports wires up aliases and wildcard imports (pass 1b), then
// rejects import cycles and ambiguous wildcards.
func (a *analyzer) resolveImports() {
	for _, name := range a.env.Order {
		mod := a.env.Modules[name]
		for _, stmt := range mod.File.Statements {
			imp, ok := stmt.(*ast.ImportDecl)
			if !ok {
				continue
			}
			target, exists := a.env.Modules[imp.ModulePath]
			if !exists {
				a.errorf(name, imp.PathSpan, "unknown module %q", imp.ModulePath)
				continue
			}
			if target.Name == name {
				a.errorf(name, imp.PathSpan, "module %q imports itself", name)
				continue
			}
			if imp.Alias == nil {
				mod.Wildcard = append(mod.Wildcard, target.Name)
				continue
			}
			if _, dup := mod.Imports[imp.Alias.Name]; dup {
				a.errorf(name, imp.Alias.Sp, "duplicate import alias %q", imp.Alias.Name)
				continue
			}
			mod.Imports[imp.Alias.Name] = target.Name
		}
		a.checkWildcardAmbiguity(mod)
	}
	a.checkImportCycles()
}

// checkWildcardAmbiguity rejects two wildcard imports providing the same
// public name.
func (a *analyzer) checkWildcardAmbiguity(mod *ModuleEnv) {
	seen := map[string]string{} // public name -> providing module
	report := func(name, provider string) {
		if prev, dup := seen[name]; dup {
			a.errorf(mod.Name, lexer.Span{},
				"ambiguous wildcard import: %q is provided by both %q and %q", name, prev, provider)
			return
		}
		seen[name] = provider
	}
	for _, w := range mod.Wildcard {
		target := a.env.Modules[w]
		for fname, fn := range target.Funcs {
			if fn.Public {
				report(fname, w)
			}
		}
		for tname, td := range target.Types {
			if td.Public {
				report(tname, w)
			}
		}
		for rname, rd := range target.Reifies {
			if rd.Public {
				report(rname, w)
			}
		}
	}
}

// checkImportCycles rejects mutually recursive imports via DFS.
func (a *analyzer) checkImportCycles() {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := map[string]int{}

	var visit func(name string, trail []string) bool
	visit = func(name string, trail []string) bool {
		switch state[name] {
		case done:
			return true
		case visiting:
			a.errorf(name, lexer.Span{}, "import cycle: %v", append(trail, name))
			return false
		}
		state[name] = visiting
		mod := a.env.Modules[name]
		targets := map[string]bool{}
		for _, t := range mod.Imports {
			targets[t] = true
		}
		for _, t := range mod.Wildcard {
			targets[t] = true
		}
		for t := range targets {
			if !visit(t, append(trail, name)) {
				return false
			}
		}
		state[name] = done
		return true
	}

	for _, name := range a.env.Order {
		if !visit(name, nil) {
			return
		}
	}
}

// resolveDeclarations resolves type definitions, function signatures and
// reification targets (pass 1c). Host schemas are validated first.
func (a *analyzer) resolveDeclarations() {
	a.validateHostSchemas()

	// Declarations resolve in file order so diagnostics are
	// deterministic.
	for _, name := range a.env.Order {
		mod := a.env.Modules[name]
		for _, stmt := range mod.File.Statements {
			switch decl := stmt.(type) {
			case *ast.TypeDecl:
				if td, ok := mod.Types[decl.Name.Name]; ok {
					a.resolveTypeDef(mod, td)
				}
			case *ast.EnumDecl:
				if td, ok := mod.Types[decl.Name.Name]; ok {
					a.resolveTypeDef(mod, td)
				}
			}
		}
	}
	if len(a.errors) > 0 {
		return
	}

	for _, name := range a.env.Order {
		mod := a.env.Modules[name]
		for _, stmt := range mod.File.Statements {
			if decl, ok := stmt.(*ast.FuncDecl); ok {
				if fn, collected := mod.Funcs[decl.Name.Name]; collected {
					a.resolveFuncSig(mod, fn)
				}
			}
		}
	}
	if len(a.errors) > 0 {
		return
	}

	for _, name := range a.env.Order {
		mod := a.env.Modules[name]
		for _, stmt := range mod.File.Statements {
			if decl, ok := stmt.(*ast.ReifyDecl); ok {
				if rd, collected := mod.Reifies[decl.Name.Name]; collected {
					a.resolveReify(mod, rd)
				}
			}
		}
		for _, rd := range mod.Reifies {
			if rd.Decl == nil {
				a.resolveReify(mod, rd)
			}
		}
	}
}

// validateHostSchemas checks that every type referenced from the host's
// object schema and variable registry exists.
func (a *analyzer) validateHostSchemas() {
	var validate func(where string, t *types.Type)
	validate = func(where string, t *types.Type) {
		if t == nil {
			a.errorf("", lexer.Span{}, "%s: nil type", where)
			return
		}
		switch t.Kind {
		case types.KindObject:
			if _, ok := a.env.Schema[t.Name]; !ok {
				a.errorf("", lexer.Span{}, "%s: unknown object type %q", where, t.Name)
			}
		case types.KindList, types.KindOptional:
			validate(where, t.Elem)
		case types.KindTuple:
			for _, e := range t.Elems {
				validate(where, e)
			}
		case types.KindStruct:
			for _, f := range t.Fields {
				validate(where, f)
			}
		case types.KindConstraint, types.KindLinExpr, types.KindCustom, types.KindNever:
			a.errorf("", lexer.Span{}, "%s: type %s not allowed in host schema", where, t)
		}
	}

	for objType, fields := range a.env.Schema {
		for field, ft := range fields {
			validate(fmt.Sprintf("field %s of object type %s", field, objType), ft)
		}
	}
	for varName, params := range a.env.VarSchema {
		for i, pt := range params {
			validate(fmt.Sprintf("parameter %d of variable %s", i, varName), pt)
		}
	}
}

// resolveTypeDef computes a TypeDef's underlying type (lazily; cycles are
// rejected).
func (a *analyzer) resolveTypeDef(mod *ModuleEnv, td *TypeDef) {
	if td.Underlying != nil || td.Variants != nil {
		return
	}
	if td.resolving {
		a.errorf(mod.Name, td.Decl.Span(), "type %q refers to itself", td.Name)
		return
	}
	td.resolving = true
	defer func() { td.resolving = false }()

	switch decl := td.Decl.(type) {
	case *ast.TypeDecl:
		underlying := a.resolveTypeExpr(mod, decl.Underlying)
		if underlying == nil {
			return
		}
		switch underlying.Kind {
		case types.KindList, types.KindTuple, types.KindStruct:
			td.Underlying = underlying
		default:
			a.errorf(mod.Name, decl.Underlying.Span(),
				"type alias must name a struct, tuple or list type, got %s", underlying)
		}
	case *ast.EnumDecl:
		td.Variants = map[string]*types.Type{}
		for _, v := range decl.Variants {
			if _, dup := td.Variants[v.Name.Name]; dup {
				a.errorf(mod.Name, v.Name.Sp, "duplicate enum variant %q", v.Name.Name)
				continue
			}
			td.Variants[v.Name.Name] = a.resolveVariantPayload(mod, v)
		}
	}
}

// resolveVariantPayload normalises an enum variant payload: tuple
// variants become structs with fields _0.._n.
func (a *analyzer) resolveVariantPayload(mod *ModuleEnv, v *ast.EnumVariant) *types.Type {
	if v.Payload == nil {
		return nil
	}
	if v.Payload.Struct != nil {
		fields := map[string]*types.Type{}
		for _, f := range v.Payload.Struct {
			if _, dup := fields[f.Name.Name]; dup {
				a.errorf(mod.Name, f.Name.Sp, "duplicate field %q", f.Name.Name)
				continue
			}
			fields[f.Name.Name] = a.resolveTypeExpr(mod, f.Type)
		}
		return types.Struct(fields)
	}
	fields := map[string]*types.Type{}
	for i, te := range v.Payload.Tuple {
		fields[fmt.Sprintf("_%d", i)] = a.resolveTypeExpr(mod, te)
	}
	return types.Struct(fields)
}

// resolveFuncSig resolves a function's parameter and return types.
func (a *analyzer) resolveFuncSig(mod *ModuleEnv, fn *FuncSig) {
	decl := fn.Decl
	fn.ParamNames = make([]string, len(decl.Params))
	fn.Params = make([]*types.Type, len(decl.Params))
	for i, p := range decl.Params {
		fn.ParamNames[i] = p.Name.Name
		fn.Params[i] = a.resolveTypeExpr(mod, p.Type)
	}
	fn.Return = a.resolveTypeExpr(mod, decl.Return)
}

// resolveReify checks that the reified function exists and returns
// Constraint (or [Constraint] for variable lists).
func (a *analyzer) resolveReify(mod *ModuleEnv, rd *ReifyDef) {
	if rd.Decl == nil {
		// Host-registered reification: module and function are explicit.
		fnMod, ok := a.env.Modules[rd.FnModule]
		if !ok {
			a.errorf(mod.Name, lexer.Span{}, "unknown module %q for reified variable %q", rd.FnModule, rd.Name)
			return
		}
		fn, ok := fnMod.Funcs[rd.FnName]
		if !ok {
			a.errorf(mod.Name, lexer.Span{}, "unknown function %q for reified variable %q", rd.FnName, rd.Name)
			return
		}
		want := types.Constraint()
		if rd.VarList {
			want = types.List(types.Constraint())
		}
		if !types.Equal(fn.Return, want) {
			a.errorf(mod.Name, lexer.Span{},
				"reified function %s returns %s, expected %s", qualifiedName(fn.Module, fn.Name), fn.Return, want)
		}
		return
	}

	path := rd.Decl.ConstraintPath
	var fn *FuncSig
	switch len(path.Segments) {
	case 1:
		f, ok := a.env.lookupFunc(mod, path.Segments[0].Name)
		if !ok {
			a.errorf(mod.Name, path.Sp, "unknown function %q in reify", path.Segments[0].Name)
			return
		}
		fn = f
	case 2:
		target, ok := a.env.aliasTarget(mod, path.Segments[0].Name)
		if !ok {
			a.errorf(mod.Name, path.Sp, "unknown module alias %q", path.Segments[0].Name)
			return
		}
		f, ok := target.Funcs[path.Segments[1].Name]
		if !ok || !f.Public {
			a.errorf(mod.Name, path.Sp, "unknown function %q in module %q", path.Segments[1].Name, target.Name)
			return
		}
		fn = f
	default:
		a.errorf(mod.Name, path.Sp, "invalid reify path")
		return
	}

	want := types.Constraint()
	if rd.VarList {
		want = types.List(types.Constraint())
	}
	if !types.Equal(fn.Return, want) {
		a.errorf(mod.Name, path.Sp,
			"reified function %s returns %s, expected %s", qualifiedName(fn.Module, fn.Name), fn.Return, want)
		return
	}
	rd.FnModule = fn.Module
	rd.FnName = fn.Name
}

// resolveTypeExpr resolves a syntactic type in module context. Returns
// nil (with an error recorded) on failure.
func (a *analyzer) resolveTypeExpr(mod *ModuleEnv, te ast.TypeExpr) *types.Type {
	switch t := te.(type) {
	case *ast.PathType:
		resolved := a.resolvePathType(mod, t)
		return wrapOptional(resolved, t.MaybeCount)
	case *ast.EmptyListType:
		return types.List(nil)
	case *ast.ListType:
		elem := a.resolveTypeExpr(mod, t.Elem)
		if elem == nil {
			return nil
		}
		return wrapOptional(types.List(elem), t.MaybeCount)
	case *ast.TupleType:
		elems := make([]*types.Type, len(t.Elems))
		for i, e := range t.Elems {
			elems[i] = a.resolveTypeExpr(mod, e)
			if elems[i] == nil {
				return nil
			}
		}
		return wrapOptional(types.Tuple(elems...), t.MaybeCount)
	case *ast.StructType:
		fields := map[string]*types.Type{}
		for _, f := range t.Fields {
			if _, dup := fields[f.Name.Name]; dup {
				a.errorf(mod.Name, f.Name.Sp, "duplicate field %q", f.Name.Name)
				return nil
			}
			ft := a.resolveTypeExpr(mod, f.Type)
			if ft == nil {
				return nil
			}
			fields[f.Name.Name] = ft
		}
		return wrapOptional(types.Struct(fields), t.MaybeCount)
	default:
		a.errorf(mod.Name, te.Span(), "unsupported type expression")
		return nil
	}
}

func wrapOptional(t *types.Type, count int) *types.Type {
	if t == nil {
		return nil
	}
	for i := 0; i < count; i++ {
		t = types.Optional(t)
	}
	return t
}

// resolvePathType resolves Int, Student, Alias::Type, Enum::Variant and
// Alias::Enum::Variant type paths.
func (a *analyzer) resolvePathType(mod *ModuleEnv, t *ast.PathType) *types.Type {
	segs := t.Path.Segments
	switch len(segs) {
	case 1:
		name := segs[0].Name
		if builtin, ok := builtinTypeNames[name]; ok {
			return builtin
		}
		if _, ok := a.env.Schema[name]; ok {
			return types.Object(name)
		}
		if td, ok := a.env.lookupType(mod, name); ok {
			return a.customType(mod, td, "", t.Sp)
		}
		a.errorf(mod.Name, t.Sp, "unknown type %q", name)
		return nil
	case 2:
		// Enum::Variant in the current module, or Alias::Type
		if td, ok := a.env.lookupType(mod, segs[0].Name); ok && td.IsEnum {
			return a.variantType(mod, td, segs[1].Name, t.Sp)
		}
		target, ok := a.env.aliasTarget(mod, segs[0].Name)
		if !ok {
			a.errorf(mod.Name, t.Sp, "unknown type or module alias %q", segs[0].Name)
			return nil
		}
		td, ok := target.Types[segs[1].Name]
		if !ok || !td.Public {
			a.errorf(mod.Name, t.Sp, "unknown type %q in module %q", segs[1].Name, target.Name)
			return nil
		}
		return a.customType(target, td, "", t.Sp)
	case 3:
		target, ok := a.env.aliasTarget(mod, segs[0].Name)
		if !ok {
			a.errorf(mod.Name, t.Sp, "unknown module alias %q", segs[0].Name)
			return nil
		}
		td, ok := target.Types[segs[1].Name]
		if !ok || !td.Public || !td.IsEnum {
			a.errorf(mod.Name, t.Sp, "unknown enum %q in module %q", segs[1].Name, target.Name)
			return nil
		}
		return a.variantType(target, td, segs[2].Name, t.Sp)
	default:
		a.errorf(mod.Name, t.Sp, "invalid type path %s", t.Path)
		return nil
	}
}

// customType builds the Custom type for a declaration, resolving its
// underlying type first.
func (a *analyzer) customType(declMod *ModuleEnv, td *TypeDef, variant string, span lexer.Span) *types.Type {
	a.resolveTypeDef(declMod, td)
	if variant != "" {
		return a.variantType(declMod, td, variant, span)
	}
	return types.Custom(td.Name, "", td.Underlying)
}

func (a *analyzer) variantType(declMod *ModuleEnv, td *TypeDef, variant string, span lexer.Span) *types.Type {
	a.resolveTypeDef(declMod, td)
	underlying, ok := td.Variants[variant]
	if !ok {
		a.errorf(declMod.Name, span, "enum %q has no variant %q", td.Name, variant)
		return nil
	}
	return types.Custom(td.Name, variant, underlying)
}

// findTypeDef locates the TypeDef behind a Custom type name as seen from
// `mod`. Used by pass 2 for variant checks.
func (a *analyzer) findTypeDef(mod *ModuleEnv, name string) (*TypeDef, bool) {
	if td, ok := a.env.lookupType(mod, name); ok {
		return td, true
	}
	for _, target := range mod.Imports {
		if td, ok := a.env.Modules[target].Types[name]; ok && td.Public {
			return td, true
		}
	}
	return nil, false
}
