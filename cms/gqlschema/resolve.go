package gqlschema

import (
	"reflect"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"
)

// Thunk is a deferred value placed inside a resolved object. The query
// layer only calls it when the field is selected, passing the field's
// arguments.
type Thunk func(args map[string]interface{}) (interface{}, error)

// defaultResolve reads p.Info.FieldName off map sources and evaluates
// thunks. Other sources fall back to graphql-go's struct resolution.
func defaultResolve(p graphql.ResolveParams) (interface{}, error) {
	if p.Source == nil {
		return nil, nil
	}
	val := reflect.ValueOf(p.Source)
	if val.Kind() != reflect.Map || val.Type().Key().Kind() != reflect.String {
		return graphql.DefaultResolveFn(p)
	}
	entry := val.MapIndex(reflect.ValueOf(p.Info.FieldName).Convert(val.Type().Key()))
	if !entry.IsValid() {
		return nil, nil
	}
	v := entry.Interface()
	if th, ok := v.(Thunk); ok {
		return th(p.Args)
	}
	return v, nil
}

// passthroughScalar is used for scalars declared in SDL without a Go
// implementation.
func passthroughScalar(name, description string) *graphql.Scalar {
	return graphql.NewScalar(graphql.ScalarConfig{
		Name:        name,
		Description: description,
		Serialize: func(value interface{}) interface{} {
			return value
		},
		ParseValue: func(value interface{}) interface{} {
			return value
		},
		ParseLiteral: literalValue,
	})
}

func literalValue(valueAST ast.Value) interface{} {
	switch v := valueAST.(type) {
	case *ast.ObjectValue:
		out := make(map[string]interface{}, len(v.Fields))
		for _, f := range v.Fields {
			out[f.Name.Value] = literalValue(f.Value)
		}
		return out
	case *ast.ListValue:
		out := make([]interface{}, len(v.Values))
		for i, item := range v.Values {
			out[i] = literalValue(item)
		}
		return out
	default:
		return valueAST.GetValue()
	}
}
