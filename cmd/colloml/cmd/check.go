package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/christophcharles/colloml/internal/parser"
	"github.com/christophcharles/colloml/internal/semantic"
	"github.com/christophcharles/colloml/pkg/ast"
	"github.com/christophcharles/colloml/pkg/colloml"
	"github.com/christophcharles/colloml/pkg/types"
)

var schemaPath string

var checkCmd = &cobra.Command{
	Use:   "check <files...>",
	Short: "Typecheck a CoLLoML module set",
	Long: `Run the full semantic analysis over a set of CoLLoML modules.

Each file becomes one module named after its base name (rules.cml
becomes module "rules"). Host object types and base-variable families
are declared in a YAML schema file:

  objects:
    Student:
      id: Int
      age: Int
  variables:
    StudentGroup: [Student]

Examples:
  colloml check rules.cml
  colloml check --schema school.yaml rules.cml groups.cml`,
	Args: cobra.MinimumNArgs(1),
	RunE: checkScripts,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringVar(&schemaPath, "schema", "", "YAML file declaring object types and variables")
}

// schemaFile is the YAML shape of a --schema file.
type schemaFile struct {
	Objects   map[string]map[string]string `yaml:"objects"`
	Variables map[string][]string          `yaml:"variables"`
}

func loadSchema(path string) (types.Schema, types.VarSchema, error) {
	schema := types.Schema{}
	varSchema := types.VarSchema{}
	if path == "" {
		return schema, varSchema, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read schema %s: %w", path, err)
	}
	var sf schemaFile
	if err := yaml.Unmarshal(content, &sf); err != nil {
		return nil, nil, fmt.Errorf("invalid schema %s: %w", path, err)
	}

	objectNames := map[string]bool{}
	for name := range sf.Objects {
		objectNames[name] = true
	}
	for objType, fields := range sf.Objects {
		schema[objType] = map[string]*types.Type{}
		for field, typeStr := range fields {
			t, err := parseSchemaType(typeStr, objectNames)
			if err != nil {
				return nil, nil, fmt.Errorf("schema %s: object %s field %s: %w", path, objType, field, err)
			}
			schema[objType][field] = t
		}
	}
	for varName, params := range sf.Variables {
		out := make([]*types.Type, len(params))
		for i, typeStr := range params {
			t, err := parseSchemaType(typeStr, objectNames)
			if err != nil {
				return nil, nil, fmt.Errorf("schema %s: variable %s parameter %d: %w", path, varName, i, err)
			}
			out[i] = t
		}
		varSchema[varName] = out
	}
	return schema, varSchema, nil
}

// parseSchemaType parses a type string from the schema file; only
// builtin scalars, object names, lists, tuples, structs and optionals
// are allowed.
func parseSchemaType(s string, objects map[string]bool) (*types.Type, error) {
	te, err := parser.ParseTypeString(s)
	if err != nil {
		return nil, err
	}
	return convertSchemaType(te, objects)
}

func convertSchemaType(te ast.TypeExpr, objects map[string]bool) (*types.Type, error) {
	wrap := func(t *types.Type, count int) *types.Type {
		for i := 0; i < count; i++ {
			t = types.Optional(t)
		}
		return t
	}

	switch t := te.(type) {
	case *ast.PathType:
		if len(t.Path.Segments) != 1 {
			return nil, fmt.Errorf("qualified type %s not allowed in schema", t.Path)
		}
		name := t.Path.Segments[0].Name
		switch name {
		case "Int":
			return wrap(types.Int(), t.MaybeCount), nil
		case "Bool":
			return wrap(types.Bool(), t.MaybeCount), nil
		case "String":
			return wrap(types.String(), t.MaybeCount), nil
		}
		if objects[name] {
			return wrap(types.Object(name), t.MaybeCount), nil
		}
		return nil, fmt.Errorf("unknown type %q", name)
	case *ast.ListType:
		elem, err := convertSchemaType(t.Elem, objects)
		if err != nil {
			return nil, err
		}
		return wrap(types.List(elem), t.MaybeCount), nil
	case *ast.TupleType:
		elems := make([]*types.Type, len(t.Elems))
		for i, e := range t.Elems {
			var err error
			elems[i], err = convertSchemaType(e, objects)
			if err != nil {
				return nil, err
			}
		}
		return wrap(types.Tuple(elems...), t.MaybeCount), nil
	case *ast.StructType:
		fields := map[string]*types.Type{}
		for _, f := range t.Fields {
			ft, err := convertSchemaType(f.Type, objects)
			if err != nil {
				return nil, err
			}
			fields[f.Name.Name] = ft
		}
		return wrap(types.Struct(fields), t.MaybeCount), nil
	default:
		return nil, fmt.Errorf("type %s not allowed in schema", te)
	}
}

func checkScripts(cmd *cobra.Command, args []string) error {
	schema, varSchema, err := loadSchema(schemaPath)
	if err != nil {
		return err
	}

	var scripts []colloml.Script
	sources := map[string]string{}
	fileOf := map[string]string{}
	for _, path := range args {
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read file %s: %w", path, err)
		}
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		scripts = append(scripts, colloml.Script{Name: name, Content: string(content)})
		sources[name] = string(content)
		fileOf[name] = path
	}

	_, warnings, err := colloml.CompileScripts(scripts, schema, varSchema)
	for _, w := range warnings {
		color.New(color.FgYellow).Fprintf(os.Stderr, "warning: ")
		pos := offsetToPos(sources[w.Module], w.Span.Start)
		fmt.Fprintf(os.Stderr, "%s:%d:%d: %s\n", fileOf[w.Module], pos.Line, pos.Column, w.Message)
	}
	if err != nil {
		var ce *colloml.CompileError
		if errors.As(err, &ce) {
			printCompileError(ce, sources, fileOf)
			return fmt.Errorf("check failed")
		}
		return err
	}

	fmt.Printf("%d module(s) OK\n", len(scripts))
	return nil
}

// printCompileError renders every aggregated diagnostic with source
// context.
func printCompileError(ce *colloml.CompileError, sources, fileOf map[string]string) {
	for _, err := range ce.Errs.Errors {
		switch e := err.(type) {
		case *semantic.Error:
			pos := offsetToPos(sources[e.Module], e.Span.Start)
			printDiagnostic(fileOf[e.Module], sources[e.Module], pos, e.Message)
		case *parser.Error:
			printDiagnostic(fileOf[ce.Module], sources[ce.Module], e.Pos, e.Message)
		default:
			fmt.Fprintln(os.Stderr, err.Error())
		}
	}
}
