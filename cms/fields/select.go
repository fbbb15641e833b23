package fields

import (
	"context"
	"fmt"
	"strings"

	"github.com/evvvvil/keystone-5-fields-cloudinary-image/cms"
)

var Select = &cms.FieldType{
	Type: "Select",
	New:  newSelect,
	Views: map[string]string{
		"Controller": "@keystonejs/fields/types/Select/views/Controller",
		"Field":      "@keystonejs/fields/types/Select/views/Field",
		"Cell":       "@keystonejs/fields/types/Select/views/Cell",
	},
}

// SelectImplementation stores one value out of a fixed set of options,
// exposed as a GraphQL enum.
type SelectImplementation struct {
	cms.Implementation
	options map[string]struct{}
}

func newSelect(fc cms.FieldContext) (cms.Field, error) {
	if len(fc.Config.Options) == 0 {
		return nil, &cms.ConfigError{ListKey: fc.ListKey, Path: fc.Path, Message: "select field needs options"}
	}
	s := &SelectImplementation{
		Implementation: cms.NewImplementation(fc),
		options:        make(map[string]struct{}, len(fc.Config.Options)),
	}
	for _, opt := range fc.Config.Options {
		s.options[opt] = struct{}{}
	}
	if dv, ok := fc.Config.DefaultValue.(string); ok {
		if _, known := s.options[dv]; !known {
			return nil, &cms.ConfigError{ListKey: fc.ListKey, Path: fc.Path, Message: fmt.Sprintf("default value %q is not an option", dv)}
		}
	}
	return s, nil
}

// EnumTypeName is the name of the GraphQL enum holding the options.
func (s *SelectImplementation) EnumTypeName() string {
	return s.ListKey() + cms.UpperFirst(s.Path()) + "Type"
}

func (s *SelectImplementation) GqlOutputFields() []string {
	return []string{s.Path() + ": " + s.EnumTypeName()}
}

func (s *SelectImplementation) GqlCreateInputFields() []string {
	return []string{s.Path() + ": " + s.EnumTypeName()}
}

func (s *SelectImplementation) GqlAuxTypes() []string {
	return []string{fmt.Sprintf("enum %s {\n  %s\n}", s.EnumTypeName(), strings.Join(s.Config().Options, "\n  "))}
}

func (s *SelectImplementation) ResolveInput(_ context.Context, params cms.ResolveInputParams) (interface{}, error) {
	if params.Value == nil {
		return nil, nil
	}
	v, ok := params.Value.(string)
	if !ok {
		return nil, fmt.Errorf("expected a string, got %T", params.Value)
	}
	if _, known := s.options[v]; !known {
		return nil, &cms.ValidationError{ListKey: s.ListKey(), Path: s.Path(), Message: fmt.Sprintf("%q is not an option", v)}
	}
	return v, nil
}

func (s *SelectImplementation) ExtendAdminMeta(meta map[string]interface{}) map[string]interface{} {
	meta["options"] = s.Config().Options
	return meta
}
