package semantic

import (
	"fmt"
	"sort"

	"github.com/christophcharles/colloml/internal/lexer"
	"github.com/christophcharles/colloml/pkg/ast"
	"github.com/christophcharles/colloml/pkg/types"
)

// FuncSig is a collected function signature.
type FuncSig struct {
	Module     string
	Name       string
	Public     bool
	ParamNames []string
	Params     []*types.Type
	Return     *types.Type
	Decl       *ast.FuncDecl
}

// TypeDef is a collected type alias or enum declaration. For enums,
// Variants maps variant names to their underlying type (nil for unit
// variants, a struct with _0.._n fields for tuple variants).
type TypeDef struct {
	Module     string
	Name       string
	Public     bool
	IsEnum     bool
	Underlying *types.Type
	Variants   map[string]*types.Type
	Decl       ast.Statement

	resolving bool // cycle guard during lazy resolution
}

// ReifyDef is a collected reification declaration: the named variable is
// defined by calling FnName in FnModule.
type ReifyDef struct {
	Module   string
	Name     string
	Public   bool
	FnModule string
	FnName   string
	VarList  bool
	Decl     *ast.ReifyDecl
}

// ModuleEnv holds the declarations of one module plus its resolved
// imports.
type ModuleEnv struct {
	Name     string
	File     *ast.File
	Funcs    map[string]*FuncSig
	Types    map[string]*TypeDef
	Reifies  map[string]*ReifyDef
	Imports  map[string]string // alias -> module name
	Wildcard []string          // wildcard-imported modules, in import order
}

func newModuleEnv(name string, file *ast.File) *ModuleEnv {
	return &ModuleEnv{
		Name:    name,
		File:    file,
		Funcs:   map[string]*FuncSig{},
		Types:   map[string]*TypeDef{},
		Reifies: map[string]*ReifyDef{},
		Imports: map[string]string{},
	}
}

// GlobalEnv is the pass-1 result: every module's declarations plus the
// host-provided object and variable schemas.
type GlobalEnv struct {
	Modules   map[string]*ModuleEnv
	Order     []string
	Schema    types.Schema
	VarSchema types.VarSchema
}

// Module returns the environment of a module by name.
func (g *GlobalEnv) Module(name string) *ModuleEnv {
	return g.Modules[name]
}

// aliasTarget resolves an import alias within a module.
func (g *GlobalEnv) aliasTarget(mod *ModuleEnv, alias string) (*ModuleEnv, bool) {
	target, ok := mod.Imports[alias]
	if !ok {
		return nil, false
	}
	return g.Modules[target], true
}

// lookupFunc resolves a function reference from within `mod`: the local
// module first, then wildcard imports (public names only).
func (g *GlobalEnv) lookupFunc(mod *ModuleEnv, name string) (*FuncSig, bool) {
	if fn, ok := mod.Funcs[name]; ok {
		return fn, true
	}
	for _, w := range mod.Wildcard {
		if fn, ok := g.Modules[w].Funcs[name]; ok && fn.Public {
			return fn, true
		}
	}
	return nil, false
}

// lookupType resolves a type reference from within `mod`.
func (g *GlobalEnv) lookupType(mod *ModuleEnv, name string) (*TypeDef, bool) {
	if td, ok := mod.Types[name]; ok {
		return td, true
	}
	for _, w := range mod.Wildcard {
		if td, ok := g.Modules[w].Types[name]; ok && td.Public {
			return td, true
		}
	}
	return nil, false
}

// lookupReify resolves a reified-variable reference from within `mod`.
func (g *GlobalEnv) lookupReify(mod *ModuleEnv, name string) (*ReifyDef, bool) {
	if rd, ok := mod.Reifies[name]; ok {
		return rd, true
	}
	for _, w := range mod.Wildcard {
		if rd, ok := g.Modules[w].Reifies[name]; ok && rd.Public {
			return rd, true
		}
	}
	return nil, false
}

// localBinding is one scoped identifier binding during body typechecking.
type localBinding struct {
	typ  *types.Type
	span lexer.Span
	used bool
}

// localEnv is the scope stack used while typechecking one function body.
type localEnv struct {
	scopes []map[string]*localBinding
}

func newLocalEnv() *localEnv {
	return &localEnv{}
}

func (l *localEnv) push() {
	l.scopes = append(l.scopes, map[string]*localBinding{})
}

// unusedBinding identifies a binding that was never read.
type unusedBinding struct {
	name string
	span lexer.Span
}

func (l *localEnv) pop() []unusedBinding {
	top := l.scopes[len(l.scopes)-1]
	l.scopes = l.scopes[:len(l.scopes)-1]
	var unused []unusedBinding
	for name, b := range top {
		if !b.used && name[0] != '_' {
			unused = append(unused, unusedBinding{name: name, span: b.span})
		}
	}
	sort.Slice(unused, func(i, j int) bool { return unused[i].span.Start < unused[j].span.Start })
	return unused
}

func (l *localEnv) bind(name string, typ *types.Type, span lexer.Span) {
	l.scopes[len(l.scopes)-1][name] = &localBinding{typ: typ, span: span}
}

// lookup searches the scope stack innermost-first, marking the binding
// as used.
func (l *localEnv) lookup(name string) (*types.Type, bool) {
	for i := len(l.scopes) - 1; i >= 0; i-- {
		if b, ok := l.scopes[i][name]; ok {
			b.used = true
			return b.typ, true
		}
	}
	return nil, false
}

// shadows reports whether name is already bound in an enclosing scope.
func (l *localEnv) shadows(name string) bool {
	for i := len(l.scopes) - 1; i >= 0; i-- {
		if _, ok := l.scopes[i][name]; ok {
			return true
		}
	}
	return false
}

// AliasTarget resolves an import alias within a module (exported for the
// evaluator).
func (g *GlobalEnv) AliasTarget(mod *ModuleEnv, alias string) (*ModuleEnv, bool) {
	return g.aliasTarget(mod, alias)
}

// LookupFunc resolves a function reference from within mod (exported for
// the evaluator and the problem builder).
func (g *GlobalEnv) LookupFunc(mod *ModuleEnv, name string) (*FuncSig, bool) {
	return g.lookupFunc(mod, name)
}

// LookupReify resolves a reified-variable reference from within mod.
func (g *GlobalEnv) LookupReify(mod *ModuleEnv, name string) (*ReifyDef, bool) {
	return g.lookupReify(mod, name)
}

// ResolveType resolves a syntactic type in module context after analysis
// has completed; declarations are already normalised, so lookups cannot
// recurse. Returns nil for unknown names.
func (g *GlobalEnv) ResolveType(mod *ModuleEnv, te ast.TypeExpr) *types.Type {
	switch t := te.(type) {
	case *ast.PathType:
		return postWrapOptional(g.resolveTypePath(mod, t), t.MaybeCount)
	case *ast.EmptyListType:
		return types.List(nil)
	case *ast.ListType:
		elem := g.ResolveType(mod, t.Elem)
		if elem == nil {
			return nil
		}
		return postWrapOptional(types.List(elem), t.MaybeCount)
	case *ast.TupleType:
		elems := make([]*types.Type, len(t.Elems))
		for i, e := range t.Elems {
			elems[i] = g.ResolveType(mod, e)
			if elems[i] == nil {
				return nil
			}
		}
		return postWrapOptional(types.Tuple(elems...), t.MaybeCount)
	case *ast.StructType:
		fields := map[string]*types.Type{}
		for _, f := range t.Fields {
			ft := g.ResolveType(mod, f.Type)
			if ft == nil {
				return nil
			}
			fields[f.Name.Name] = ft
		}
		return postWrapOptional(types.Struct(fields), t.MaybeCount)
	default:
		return nil
	}
}

func postWrapOptional(t *types.Type, count int) *types.Type {
	if t == nil {
		return nil
	}
	for i := 0; i < count; i++ {
		t = types.Optional(t)
	}
	return t
}

func (g *GlobalEnv) resolveTypePath(mod *ModuleEnv, t *ast.PathType) *types.Type {
	segs := t.Path.Segments
	switch len(segs) {
	case 1:
		name := segs[0].Name
		if builtin, ok := builtinTypeNames[name]; ok {
			return builtin
		}
		if _, ok := g.Schema[name]; ok {
			return types.Object(name)
		}
		if td, ok := g.lookupType(mod, name); ok {
			return types.Custom(td.Name, "", td.Underlying)
		}
	case 2:
		if td, ok := g.lookupType(mod, segs[0].Name); ok && td.IsEnum {
			if underlying, ok := td.Variants[segs[1].Name]; ok {
				return types.Custom(td.Name, segs[1].Name, underlying)
			}
			return nil
		}
		if target, ok := g.aliasTarget(mod, segs[0].Name); ok {
			if td, ok := target.Types[segs[1].Name]; ok && td.Public {
				return types.Custom(td.Name, "", td.Underlying)
			}
		}
	case 3:
		if target, ok := g.aliasTarget(mod, segs[0].Name); ok {
			if td, ok := target.Types[segs[1].Name]; ok && td.Public && td.IsEnum {
				if underlying, ok := td.Variants[segs[2].Name]; ok {
					return types.Custom(td.Name, segs[2].Name, underlying)
				}
			}
		}
	}
	return nil
}

// qualifiedName renders module::name for diagnostics.
func qualifiedName(module, name string) string {
	return fmt.Sprintf("%s::%s", module, name)
}
