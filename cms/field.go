package cms

import (
	"context"
	"strings"

	"github.com/graphql-go/graphql"

	"github.com/evvvvil/keystone-5-fields-cloudinary-image/cms/gqlschema"
)

// FieldType describes a kind of field: how to build its implementation and
// which admin views render it.
type FieldType struct {
	Type  string
	New   func(fc FieldContext) (Field, error)
	Views map[string]string
	// Blocks are the content blocks this field type ships, by name.
	Blocks map[string]BlockFactory
}

// BlockSpec configures one block of a content field.
type BlockSpec struct {
	Factory BlockFactory
	Adapter FileAdapter
}

// FieldConfig is the declaration of a field on a list. Only the members
// relevant to the field's Type are read.
type FieldConfig struct {
	Type         *FieldType
	IsRequired   bool
	DefaultValue interface{}
	SchemaDoc    string

	// file fields
	Adapter FileAdapter
	// select fields
	Options []string
	// relationship fields: "List" or "List.field"
	Ref  string
	Many bool
	// content fields
	Blocks []BlockSpec
}

// FieldContext is passed to FieldType.New.
type FieldContext struct {
	// Context is the context the list is being created with.
	Context  context.Context
	ListKey  string
	Path     string
	Config   FieldConfig
	Registry *Registry
}

// BackingType declares how a field's value is stored.
type BackingType struct {
	Optional bool
	Type     string
}

// ResolveInputParams carries the raw mutation input of one field.
type ResolveInputParams struct {
	// ItemID is the id of the item being written; it is assigned before any
	// field input is resolved so nested writes can point back at it.
	ItemID string
	// Value is the raw GraphQL input, nil when absent.
	Value interface{}
	// Existing is the stored value on update.
	Existing interface{}
	Update   bool
}

// Field is the contract every field implementation satisfies.
type Field interface {
	Path() string
	ListKey() string
	Type() string
	IsRequired() bool
	DefaultValue() interface{}
	SchemaDoc() string
	Views() map[string]string

	// GqlOutputFields returns SDL field lines added to the list's type.
	GqlOutputFields() []string
	// GqlOutputFieldResolvers resolves the list type's fields from an Item.
	GqlOutputFieldResolvers() map[string]graphql.FieldResolveFn
	// GqlAuxTypes returns extra SDL definitions the field needs.
	GqlAuxTypes() []string
	GqlAuxFieldResolvers() gqlschema.Resolvers
	// GqlCreateInputFields returns SDL lines added to the create input.
	GqlCreateInputFields() []string

	// ResolveInput turns raw input into the stored value. A nil result
	// leaves the field unset.
	ResolveInput(ctx context.Context, params ResolveInputParams) (interface{}, error)
	BackingTypes() map[string]BackingType
	ExtendAdminMeta(meta map[string]interface{}) map[string]interface{}
}

// FieldInjector is implemented by fields that add more fields to their
// list (content fields inject the fields of their blocks).
type FieldInjector interface {
	InjectedFields() map[string]FieldConfig
}

// ChangeReporter is implemented by fields that contribute to the change
// event emitted after a write.
type ChangeReporter interface {
	ReportChange(ctx context.Context) map[string]interface{}
}

// BeforeDeleter is called before an item is removed.
type BeforeDeleter interface {
	BeforeDelete(ctx context.Context, item Item) error
}

// Checker is called when the registry compiles, once every list exists.
type Checker interface {
	Check() error
}

// Implementation holds what every field has in common. Field types embed
// it and override what they need.
type Implementation struct {
	fieldType *FieldType
	path      string
	listKey   string
	config    FieldConfig
	registry  *Registry
}

func NewImplementation(fc FieldContext) Implementation {
	return Implementation{
		fieldType: fc.Config.Type,
		path:      fc.Path,
		listKey:   fc.ListKey,
		config:    fc.Config,
		registry:  fc.Registry,
	}
}

func (i *Implementation) Path() string              { return i.path }
func (i *Implementation) ListKey() string           { return i.listKey }
func (i *Implementation) IsRequired() bool          { return i.config.IsRequired }
func (i *Implementation) DefaultValue() interface{} { return i.config.DefaultValue }
func (i *Implementation) SchemaDoc() string         { return i.config.SchemaDoc }
func (i *Implementation) Config() FieldConfig       { return i.config }
func (i *Implementation) Registry() *Registry       { return i.registry }

func (i *Implementation) Type() string {
	if i.fieldType == nil {
		return ""
	}
	return i.fieldType.Type
}

// Views returns the admin views of the field's type.
func (i *Implementation) Views() map[string]string {
	if i.fieldType == nil {
		return nil
	}
	return i.fieldType.Views
}

func (i *Implementation) GqlOutputFieldResolvers() map[string]graphql.FieldResolveFn {
	return nil
}

func (i *Implementation) GqlAuxTypes() []string { return nil }

func (i *Implementation) GqlAuxFieldResolvers() gqlschema.Resolvers { return nil }

func (i *Implementation) BackingTypes() map[string]BackingType {
	return map[string]BackingType{
		i.path: {Optional: true, Type: "any"},
	}
}

func (i *Implementation) ExtendAdminMeta(meta map[string]interface{}) map[string]interface{} {
	return meta
}

// AdminMeta builds the admin metadata for f: the common members first,
// then whatever the field adds through ExtendAdminMeta.
func AdminMeta(f Field) map[string]interface{} {
	meta := map[string]interface{}{
		"path":         f.Path(),
		"type":         f.Type(),
		"label":        Label(f.Path()),
		"isRequired":   f.IsRequired(),
		"defaultValue": f.DefaultValue(),
	}
	if views := f.Views(); len(views) > 0 {
		meta["views"] = views
	}
	return f.ExtendAdminMeta(meta)
}

// Label makes a human readable label from a field path: "heroImage" ->
// "Hero Image".
func Label(path string) string {
	sb := &strings.Builder{}
	for i, r := range path {
		switch {
		case i == 0:
			sb.WriteString(strings.ToUpper(string(r)))
		case r >= 'A' && r <= 'Z':
			sb.WriteRune(' ')
			sb.WriteRune(r)
		case r == '_':
			sb.WriteRune(' ')
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// UpperFirst upper-cases the first letter of s.
func UpperFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
