package gqlschema

import (
	"context"
	"fmt"
	"sort"
	"strings"

	gophers "github.com/graph-gophers/graphql-go"
	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/parser"
	logging "github.com/ipfs/go-log"
)

var logger = logging.Logger("gqlschema")

var builtinScalars = map[string]*graphql.Scalar{
	"String":  graphql.String,
	"Int":     graphql.Int,
	"Float":   graphql.Float,
	"Boolean": graphql.Boolean,
	"ID":      graphql.ID,
}

// Schema is a compiled schema: the merged SDL, an executable graphql-go
// schema and a parsed graph-gophers schema used for introspection export.
type Schema struct {
	SDL        string
	Executable graphql.Schema

	inspect *gophers.Schema
}

// Exec runs a request against the executable schema.
func (s *Schema) Exec(ctx context.Context, query string, operationName string, variables map[string]interface{}) *graphql.Result {
	return graphql.Do(graphql.Params{
		Schema:         s.Executable,
		RequestString:  query,
		OperationName:  operationName,
		VariableValues: variables,
		Context:        ctx,
	})
}

// IntrospectionJSON returns the standard introspection result for the
// schema, the format admin UI tooling consumes.
func (s *Schema) IntrospectionJSON() ([]byte, error) {
	return s.inspect.ToJSON()
}

// Compile parses the fragments, merges type extensions and builds an
// executable schema. Object fields without an explicit resolver read the
// field name off map sources (see Thunk).
func Compile(fragments *Fragments, resolvers Resolvers, scalars map[string]*graphql.Scalar) (*Schema, error) {
	doc, err := parser.Parse(parser.ParseParams{Source: fragments.String()})
	if err != nil {
		return nil, fmt.Errorf("error parsing schema: %w", err)
	}

	defs, err := mergeDefinitions(doc)
	if err != nil {
		return nil, err
	}
	if err := checkReferences(defs); err != nil {
		return nil, err
	}

	sdl, err := printDefinitions(defs)
	if err != nil {
		return nil, err
	}
	inspect, err := gophers.ParseSchema(sdl, nil, gophers.UseStringDescriptions())
	if err != nil {
		return nil, fmt.Errorf("error validating schema: %w", err)
	}

	b := &builder{
		defs:      defs,
		types:     make(map[string]graphql.Type),
		resolvers: resolvers,
		scalars:   scalars,
	}
	query, ok := b.named("Query").(*graphql.Object)
	if !ok {
		return nil, fmt.Errorf("schema has no Query type")
	}
	config := graphql.SchemaConfig{Query: query}
	if _, ok := defs["Mutation"]; ok {
		config.Mutation = b.named("Mutation").(*graphql.Object)
	}
	executable, err := graphql.NewSchema(config)
	if err != nil {
		return nil, fmt.Errorf("error building schema: %w", err)
	}
	logger.Debugf("compiled schema with %d types", len(defs))

	return &Schema{
		SDL:        sdl,
		Executable: executable,
		inspect:    inspect,
	}, nil
}

func mergeDefinitions(doc *ast.Document) (map[string]ast.Node, error) {
	defs := make(map[string]ast.Node)
	var extensions []*ast.ObjectDefinition

	for _, node := range doc.Definitions {
		var name string
		switch def := node.(type) {
		case *ast.ObjectDefinition:
			name = def.Name.Value
		case *ast.InputObjectDefinition:
			name = def.Name.Value
		case *ast.EnumDefinition:
			name = def.Name.Value
		case *ast.ScalarDefinition:
			name = def.Name.Value
		case *ast.TypeExtensionDefinition:
			extensions = append(extensions, def.Definition)
			continue
		default:
			return nil, fmt.Errorf("unsupported definition %s", node.GetKind())
		}
		if _, ok := defs[name]; ok {
			return nil, fmt.Errorf("type %q is defined more than once", name)
		}
		defs[name] = node
	}

	for _, ext := range extensions {
		base, ok := defs[ext.Name.Value].(*ast.ObjectDefinition)
		if !ok {
			return nil, fmt.Errorf("cannot extend unknown type %q", ext.Name.Value)
		}
		existing := make(map[string]struct{}, len(base.Fields))
		for _, f := range base.Fields {
			existing[f.Name.Value] = struct{}{}
		}
		for _, f := range ext.Fields {
			if _, ok := existing[f.Name.Value]; ok {
				return nil, fmt.Errorf("field %s.%s is defined more than once", base.Name.Value, f.Name.Value)
			}
			base.Fields = append(base.Fields, f)
		}
	}
	return defs, nil
}

func namedType(t ast.Type) string {
	switch v := t.(type) {
	case *ast.NonNull:
		return namedType(v.Type)
	case *ast.List:
		return namedType(v.Type)
	case *ast.Named:
		return v.Name.Value
	}
	return ""
}

func checkReferences(defs map[string]ast.Node) error {
	known := func(name string) bool {
		if _, ok := builtinScalars[name]; ok {
			return true
		}
		_, ok := defs[name]
		return ok
	}
	var missing []string
	for name, node := range defs {
		switch def := node.(type) {
		case *ast.ObjectDefinition:
			for _, f := range def.Fields {
				if t := namedType(f.Type); !known(t) {
					missing = append(missing, fmt.Sprintf("%s.%s: %s", name, f.Name.Value, t))
				}
				for _, arg := range f.Arguments {
					if t := namedType(arg.Type); !known(t) {
						missing = append(missing, fmt.Sprintf("%s.%s(%s): %s", name, f.Name.Value, arg.Name.Value, t))
					}
				}
			}
		case *ast.InputObjectDefinition:
			for _, f := range def.Fields {
				if t := namedType(f.Type); !known(t) {
					missing = append(missing, fmt.Sprintf("%s.%s: %s", name, f.Name.Value, t))
				}
			}
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("unknown types referenced: %s", strings.Join(missing, ", "))
	}
	return nil
}

type builder struct {
	defs      map[string]ast.Node
	types     map[string]graphql.Type
	resolvers Resolvers
	scalars   map[string]*graphql.Scalar
}

func description(sv *ast.StringValue) string {
	if sv == nil {
		return ""
	}
	return strings.TrimSpace(sv.Value)
}

func (b *builder) named(name string) graphql.Type {
	if t, ok := b.types[name]; ok {
		return t
	}
	if s, ok := builtinScalars[name]; ok {
		return s
	}

	var t graphql.Type
	switch def := b.defs[name].(type) {
	case *ast.ObjectDefinition:
		t = b.object(def)
	case *ast.InputObjectDefinition:
		t = b.inputObject(def)
	case *ast.EnumDefinition:
		values := make(graphql.EnumValueConfigMap, len(def.Values))
		for _, v := range def.Values {
			values[v.Name.Value] = &graphql.EnumValueConfig{
				Value:       v.Name.Value,
				Description: description(v.Description),
			}
		}
		t = graphql.NewEnum(graphql.EnumConfig{
			Name:        name,
			Description: description(def.Description),
			Values:      values,
		})
	case *ast.ScalarDefinition:
		if s, ok := b.scalars[name]; ok {
			t = s
		} else {
			t = passthroughScalar(name, description(def.Description))
		}
	default:
		return nil
	}
	b.types[name] = t
	return t
}

func (b *builder) object(def *ast.ObjectDefinition) *graphql.Object {
	typeName := def.Name.Value
	return graphql.NewObject(graphql.ObjectConfig{
		Name:        typeName,
		Description: description(def.Description),
		Fields: graphql.FieldsThunk(func() graphql.Fields {
			fields := make(graphql.Fields, len(def.Fields))
			for _, fd := range def.Fields {
				resolve := graphql.FieldResolveFn(defaultResolve)
				if fn, ok := b.resolvers[typeName][fd.Name.Value]; ok {
					resolve = fn
				}
				args := make(graphql.FieldConfigArgument, len(fd.Arguments))
				for _, arg := range fd.Arguments {
					args[arg.Name.Value] = &graphql.ArgumentConfig{
						Type:        b.input(arg.Type),
						Description: description(arg.Description),
					}
				}
				fields[fd.Name.Value] = &graphql.Field{
					Name:        fd.Name.Value,
					Type:        b.output(fd.Type),
					Args:        args,
					Resolve:     resolve,
					Description: description(fd.Description),
				}
			}
			return fields
		}),
	})
}

func (b *builder) inputObject(def *ast.InputObjectDefinition) *graphql.InputObject {
	return graphql.NewInputObject(graphql.InputObjectConfig{
		Name:        def.Name.Value,
		Description: description(def.Description),
		Fields: graphql.InputObjectConfigFieldMapThunk(func() graphql.InputObjectConfigFieldMap {
			fields := make(graphql.InputObjectConfigFieldMap, len(def.Fields))
			for _, fd := range def.Fields {
				fields[fd.Name.Value] = &graphql.InputObjectFieldConfig{
					Type:        b.input(fd.Type),
					Description: description(fd.Description),
				}
			}
			return fields
		}),
	})
}

func (b *builder) output(t ast.Type) graphql.Output {
	switch v := t.(type) {
	case *ast.NonNull:
		return graphql.NewNonNull(b.output(v.Type))
	case *ast.List:
		return graphql.NewList(b.output(v.Type))
	case *ast.Named:
		out, _ := b.named(v.Name.Value).(graphql.Output)
		return out
	}
	return nil
}

func (b *builder) input(t ast.Type) graphql.Input {
	switch v := t.(type) {
	case *ast.NonNull:
		return graphql.NewNonNull(b.input(v.Type))
	case *ast.List:
		return graphql.NewList(b.input(v.Type))
	case *ast.Named:
		in, _ := b.named(v.Name.Value).(graphql.Input)
		return in
	}
	return nil
}
