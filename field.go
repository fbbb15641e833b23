// Package cloudinaryimage provides a CloudinaryImage field which stores
// images with a Cloudinary adapter and serves transformed URLs for them, and
// an image block that embeds such images in content fields.
package cloudinaryimage

import (
	"fmt"

	"github.com/graphql-go/graphql"
	logging "github.com/ipfs/go-log"

	"github.com/evvvvil/keystone-5-fields-cloudinary-image/cms"
	"github.com/evvvvil/keystone-5-fields-cloudinary-image/cms/fields"
	"github.com/evvvvil/keystone-5-fields-cloudinary-image/cms/gqlschema"
)

var logger = logging.Logger("cloudinaryimage")

const (
	viewsPackage = "@keystonejs/fields-cloudinary-image"

	// OutputType is the GraphQL object type image fields resolve to.
	OutputType = "CloudinaryImage_File"
	// FormatInputType lists the transformation options of publicUrlTransformed.
	FormatInputType = "CloudinaryImageFormat"
)

// TransformableURLProvider is the capability an adapter needs for
// CloudinaryImage fields. PublicURLTransformed receives exactly the
// transformation options the client asked for.
type TransformableURLProvider interface {
	PublicURL(file cms.FileValue) string
	PublicURLTransformed(file cms.FileValue, transformation map[string]string) string
}

// CloudinaryImage is the field type to declare image fields with.
var CloudinaryImage = &cms.FieldType{
	Type: "CloudinaryImage",
	New: func(fc cms.FieldContext) (cms.Field, error) {
		return NewField(fc)
	},
	Views: map[string]string{
		"Controller": cms.ResolveView(viewsPackage, "views/Controller"),
		"Field":      cms.ResolveView(viewsPackage, "views/Field"),
		"Cell":       cms.ResolveView(viewsPackage, "views/Cell"),
	},
}

func init() {
	CloudinaryImage.Blocks = map[string]cms.BlockFactory{
		"image": NewImageBlock,
	}
}

// Field is a file field whose adapter can build transformed URLs.
type Field struct {
	*fields.FileImplementation
	urls TransformableURLProvider
}

func NewField(fc cms.FieldContext) (*Field, error) {
	urls, ok := fc.Config.Adapter.(TransformableURLProvider)
	if !ok {
		return nil, &cms.ConfigError{ListKey: fc.ListKey, Path: fc.Path, Message: "CloudinaryImage field must be used with CloudinaryAdapter"}
	}
	file, err := fields.NewFile(fc)
	if err != nil {
		return nil, err
	}
	file.GraphQLOutputType = OutputType
	file.UploadType = "Upload"
	return &Field{FileImplementation: file, urls: urls}, nil
}

func (f *Field) GqlOutputFields() []string {
	return []string{fmt.Sprintf("%s: %s", f.Path(), f.GraphQLOutputType)}
}

// ExtendAdminMeta returns meta as it is, without what file fields add.
func (f *Field) ExtendAdminMeta(meta map[string]interface{}) map[string]interface{} {
	return meta
}

func (f *Field) FileUploadType() string {
	return "Upload"
}

func (f *Field) GqlAuxTypes() []string {
	return append(f.FileImplementation.GqlAuxTypes(),
		`"""
Mirrors the formatting options [Cloudinary provides](https://cloudinary.com/documentation/image_transformation_reference).
All options are strings as they ultimately end up in a URL.
"""
input `+FormatInputType+` {
  """ Rewrites the filename to be this pretty string. Do not include `+"`/` or `.`"+` """
  prettyName: String
  width: String
  height: String
  crop: String
  aspect_ratio: String
  gravity: String
  zoom: String
  x: String
  y: String
  format: String
  fetch_format: String
  quality: String
  radius: String
  angle: String
  effect: String
  opacity: String
  border: String
  background: String
  overlay: String
  underlay: String
  default_image: String
  delay: String
  color: String
  color_space: String
  dpr: String
  page: String
  density: String
  flags: String
  transformation: String
}`,
		fmt.Sprintf(`extend type %s {
  publicUrlTransformed(transformation: %s): String
}`, f.GraphQLOutputType, FormatInputType),
	)
}

// GqlOutputFieldResolvers resolves the image to its stored attributes plus
// publicUrl and a publicUrlTransformed thunk evaluated only when selected.
func (f *Field) GqlOutputFieldResolvers() map[string]graphql.FieldResolveFn {
	return map[string]graphql.FieldResolveFn{
		f.Path(): func(p graphql.ResolveParams) (interface{}, error) {
			value, ok := f.Value(p.Source)
			if !ok {
				return nil, nil
			}
			return f.resolve(value), nil
		},
	}
}

func (f *Field) resolve(value cms.FileValue) map[string]interface{} {
	out := map[string]interface{}{
		"publicUrl": nullable(f.urls.PublicURL(value)),
		"publicUrlTransformed": gqlschema.Thunk(func(args map[string]interface{}) (interface{}, error) {
			return nullable(f.urls.PublicURLTransformed(value, transformationArg(args))), nil
		}),
	}
	// stored attributes win over the computed ones
	for k, v := range value {
		out[k] = v
	}
	return out
}

// nullable maps an unknown URL to a GraphQL null.
func nullable(url string) interface{} {
	if url == "" {
		return nil
	}
	return url
}

// transformationArg keeps the options the client actually passed.
func transformationArg(args map[string]interface{}) map[string]string {
	raw, _ := args["transformation"].(map[string]interface{})
	if raw == nil {
		return nil
	}
	t := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			t[k] = s
		}
	}
	logger.Debugf("transformation options %v", t)
	return t
}

func (f *Field) BackingTypes() map[string]cms.BackingType {
	return map[string]cms.BackingType{
		f.Path(): {Optional: true, Type: "any"},
	}
}
