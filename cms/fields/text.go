package fields

import (
	"context"
	"fmt"

	"github.com/evvvvil/keystone-5-fields-cloudinary-image/cms"
)

var Text = &cms.FieldType{
	Type: "Text",
	New: func(fc cms.FieldContext) (cms.Field, error) {
		return &TextImplementation{Implementation: cms.NewImplementation(fc)}, nil
	},
	Views: map[string]string{
		"Controller": "@keystonejs/fields/types/Text/views/Controller",
		"Field":      "@keystonejs/fields/types/Text/views/Field",
		"Cell":       "@keystonejs/fields/types/Text/views/Cell",
	},
}

type TextImplementation struct {
	cms.Implementation
}

func (t *TextImplementation) GqlOutputFields() []string {
	return []string{t.Path() + ": String"}
}

func (t *TextImplementation) GqlCreateInputFields() []string {
	return []string{t.Path() + ": String"}
}

func (t *TextImplementation) ResolveInput(_ context.Context, params cms.ResolveInputParams) (interface{}, error) {
	if params.Value == nil {
		return nil, nil
	}
	s, ok := params.Value.(string)
	if !ok {
		return nil, fmt.Errorf("expected a string, got %T", params.Value)
	}
	return s, nil
}

func (t *TextImplementation) BackingTypes() map[string]cms.BackingType {
	return map[string]cms.BackingType{
		t.Path(): {Optional: !t.IsRequired(), Type: "string"},
	}
}
