package fields

import (
	"context"
	"fmt"

	"github.com/graphql-go/graphql"

	"github.com/evvvvil/keystone-5-fields-cloudinary-image/cms"
)

var File = &cms.FieldType{
	Type: "File",
	New: func(fc cms.FieldContext) (cms.Field, error) {
		return NewFile(fc)
	},
	Views: map[string]string{
		"Controller": "@keystonejs/fields/types/File/views/Controller",
		"Field":      "@keystonejs/fields/types/File/views/Field",
		"Cell":       "@keystonejs/fields/types/File/views/Cell",
	},
}

// FileImplementation stores uploads through a cms.FileAdapter and keeps the
// adapter's FileValue on the item.
type FileImplementation struct {
	cms.Implementation

	// GraphQLOutputType is the object type the field resolves to.
	GraphQLOutputType string
	// UploadType is the scalar accepted as mutation input.
	UploadType string

	fileAdapter cms.FileAdapter
}

func NewFile(fc cms.FieldContext) (*FileImplementation, error) {
	if fc.Config.Adapter == nil {
		return nil, &cms.ConfigError{ListKey: fc.ListKey, Path: fc.Path, Message: "file fields need an adapter"}
	}
	return &FileImplementation{
		Implementation:    cms.NewImplementation(fc),
		GraphQLOutputType: "File",
		UploadType:        "Upload",
		fileAdapter:       fc.Config.Adapter,
	}, nil
}

func (f *FileImplementation) FileAdapter() cms.FileAdapter {
	return f.fileAdapter
}

func (f *FileImplementation) FileUploadType() string {
	return f.UploadType
}

func (f *FileImplementation) GqlOutputFields() []string {
	return []string{fmt.Sprintf("%s: %s", f.Path(), f.GraphQLOutputType)}
}

func (f *FileImplementation) GqlCreateInputFields() []string {
	return []string{fmt.Sprintf("%s: %s", f.Path(), f.UploadType)}
}

func (f *FileImplementation) GqlAuxTypes() []string {
	return []string{
		fmt.Sprintf("scalar %s", f.UploadType),
		fmt.Sprintf(`type %s {
  id: ID
  path: String
  filename: String
  originalFilename: String
  mimetype: String
  encoding: String
  publicUrl: String
}`, f.GraphQLOutputType),
	}
}

// Value returns the stored file value of item, false when there is none.
func (f *FileImplementation) Value(item interface{}) (cms.FileValue, bool) {
	src, ok := asItem(item)
	if !ok {
		return nil, false
	}
	return cms.AsFileValue(src[f.Path()])
}

func (f *FileImplementation) GqlOutputFieldResolvers() map[string]graphql.FieldResolveFn {
	return map[string]graphql.FieldResolveFn{
		f.Path(): func(p graphql.ResolveParams) (interface{}, error) {
			value, ok := f.Value(p.Source)
			if !ok {
				return nil, nil
			}
			out := make(map[string]interface{}, len(value)+1)
			for k, v := range value {
				out[k] = v
			}
			out["publicUrl"] = nullable(f.fileAdapter.PublicURL(value))
			return out, nil
		},
	}
}

func (f *FileImplementation) ResolveInput(ctx context.Context, params cms.ResolveInputParams) (interface{}, error) {
	if params.Value == nil {
		return nil, nil
	}
	upload, ok := params.Value.(*cms.Upload)
	if !ok {
		return nil, fmt.Errorf("expected an upload, got %T", params.Value)
	}
	value, err := f.fileAdapter.Save(ctx, upload)
	if err != nil {
		return nil, fmt.Errorf("error saving file: %w", err)
	}
	cms.OnRollback(ctx, func(ctx context.Context) error {
		return f.fileAdapter.Delete(ctx, value)
	})
	return map[string]interface{}(value), nil
}

func (f *FileImplementation) ExtendAdminMeta(meta map[string]interface{}) map[string]interface{} {
	meta["graphQLOutputType"] = f.GraphQLOutputType
	return meta
}

func asItem(v interface{}) (map[string]interface{}, bool) {
	switch src := v.(type) {
	case cms.Item:
		return src, src != nil
	case map[string]interface{}:
		return src, src != nil
	}
	return nil, false
}

// nullable maps "" to a GraphQL null.
func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
