package fields

import (
	"context"
	"fmt"

	"github.com/evvvvil/keystone-5-fields-cloudinary-image/cms"
)

var Content = &cms.FieldType{
	Type: "Content",
	New: func(fc cms.FieldContext) (cms.Field, error) {
		return NewContent(fc)
	},
	Views: map[string]string{
		"Controller": "@keystonejs/fields-content/views/Controller",
		"Field":      "@keystonejs/fields-content/views/Field",
		"Cell":       "@keystonejs/fields-content/views/Cell",
	},
}

// ContentImplementation stores a serialised rich-text document. The blocks
// it is configured with may inject fields into the content field's list and
// report what they wrote after every mutation.
type ContentImplementation struct {
	cms.Implementation
	blocks []cms.Block
}

func NewContent(fc cms.FieldContext) (*ContentImplementation, error) {
	c := &ContentImplementation{Implementation: cms.NewImplementation(fc)}
	seen := make(map[string]bool)
	for _, spec := range fc.Config.Blocks {
		if spec.Factory == nil {
			return nil, &cms.ConfigError{ListKey: fc.ListKey, Path: fc.Path, Message: "block has no factory"}
		}
		block, err := spec.Factory(cms.BlockContext{
			Context:  fc.Context,
			FromList: fc.ListKey,
			JoinList: fc.ListKey,
			Registry: fc.Registry,
			Adapter:  spec.Adapter,
		})
		if err != nil {
			return nil, err
		}
		if seen[block.Type()] {
			return nil, &cms.ConfigError{ListKey: fc.ListKey, Path: fc.Path, Message: fmt.Sprintf("block %s is configured more than once", block.Type())}
		}
		seen[block.Type()] = true
		c.blocks = append(c.blocks, block)
	}
	return c, nil
}

func (c *ContentImplementation) Blocks() []cms.Block {
	return c.blocks
}

func (c *ContentImplementation) GqlOutputFields() []string {
	return []string{c.Path() + ": String"}
}

func (c *ContentImplementation) GqlCreateInputFields() []string {
	return []string{c.Path() + ": String"}
}

func (c *ContentImplementation) ResolveInput(_ context.Context, params cms.ResolveInputParams) (interface{}, error) {
	if params.Value == nil {
		return nil, nil
	}
	doc, ok := params.Value.(string)
	if !ok {
		return nil, fmt.Errorf("expected a serialised document, got %T", params.Value)
	}
	return doc, nil
}

func (c *ContentImplementation) BackingTypes() map[string]cms.BackingType {
	return map[string]cms.BackingType{
		c.Path(): {Optional: true, Type: "string"},
	}
}

// InjectedFields returns the fields every block adds to the list.
func (c *ContentImplementation) InjectedFields() map[string]cms.FieldConfig {
	injected := make(map[string]cms.FieldConfig)
	for _, b := range c.blocks {
		for path, fc := range b.FieldDefinitions() {
			injected[path] = fc
		}
	}
	return injected
}

// ReportChange collects the mutation results of every block.
func (c *ContentImplementation) ReportChange(ctx context.Context) map[string]interface{} {
	report := make(map[string]interface{})
	for _, b := range c.blocks {
		for k, v := range b.MutationOperationResults(ctx) {
			report[k] = v
		}
	}
	return report
}

func (c *ContentImplementation) ExtendAdminMeta(meta map[string]interface{}) map[string]interface{} {
	types := make([]string, 0, len(c.blocks))
	options := make(map[string]interface{}, len(c.blocks))
	views := make(map[string][]string, len(c.blocks))
	for _, b := range c.blocks {
		types = append(types, b.Type())
		if opts := b.ViewOptions(); opts != nil {
			options[b.Type()] = opts
		}
		views[b.Type()] = b.AdminViews()
	}
	meta["blockTypes"] = types
	meta["blockOptions"] = options
	meta["blockViews"] = views
	return meta
}
