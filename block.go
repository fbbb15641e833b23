package cloudinaryimage

import (
	"context"

	"github.com/evvvvil/keystone-5-fields-cloudinary-image/cms"
	"github.com/evvvvil/keystone-5-fields-cloudinary-image/cms/blocks"
	"github.com/evvvvil/keystone-5-fields-cloudinary-image/cms/fields"
)

const (
	blockType = "cloudinaryImage"
	blockPath = "cloudinaryImages"

	blockQuery = `
cloudinaryImages {
  id
  image {
    publicUrl
  }
  align
}
`
)

// ImageBlock embeds Cloudinary images in a content field. Every image is a
// row of an auxiliary list pointing back at the item it is embedded in.
type ImageBlock struct {
	joinList string
	auxList  *cms.List
}

// NewImageBlock creates the block's auxiliary list the first time it is
// asked for and reuses it afterwards.
func NewImageBlock(bc cms.BlockContext) (cms.Block, error) {
	from := bc.Registry.ListByKey(bc.FromList)
	if from == nil {
		return nil, &cms.ConfigError{ListKey: bc.FromList, Message: "image block used outside of a list"}
	}
	auxKey := from.Store().NamingStrategy().AuxListKey(bc.FromList, blockType)

	ctx := bc.Context
	if ctx == nil {
		ctx = context.Background()
	}
	auxList, err := bc.Registry.GetOrCreate(ctx, auxKey, func() cms.ListConfig {
		logger.Debugf("creating auxiliary list %s", auxKey)
		return cms.ListConfig{
			Fields: map[string]cms.FieldConfig{
				"image": {
					Type:       CloudinaryImage,
					IsRequired: true,
					Adapter:    bc.Adapter,
					SchemaDoc:  "Cloudinary Image data returned from the Cloudinary API",
				},
				"align": {
					Type:         fields.Select,
					DefaultValue: "center",
					Options:      []string{"left", "center", "right"},
					SchemaDoc:    "Set the image alignment",
				},
				// reverse lookups, e.g. every image of a post
				"from": {
					Type:       fields.Relationship,
					IsRequired: true,
					Ref:        bc.JoinList + "." + blockPath,
					SchemaDoc:  "A reference back to the Slate.js Serialised Document this image is embedded within",
				},
			},
		}
	})
	if err != nil {
		return nil, err
	}
	return &ImageBlock{joinList: bc.JoinList, auxList: auxList}, nil
}

func (b *ImageBlock) Type() string { return blockType }
func (b *ImageBlock) Path() string { return blockPath }

// AuxList is the list holding the embedded images.
func (b *ImageBlock) AuxList() *cms.List { return b.auxList }

func (b *ImageBlock) AdminViews() []string {
	views := []string{cms.ResolveView(viewsPackage, "views/blocks/single-image")}
	views = append(views, blocks.ImageContainer.AdminViews()...)
	return append(views, blocks.Caption.AdminViews()...)
}

func (b *ImageBlock) FieldDefinitions() map[string]cms.FieldConfig {
	return map[string]cms.FieldConfig{
		blockPath: {
			Type:      RelationshipWrapper,
			Ref:       b.auxList.Key() + ".from",
			Many:      true,
			SchemaDoc: "Images which have been added to the Content field",
		},
	}
}

// MutationOperationResults returns what the injected relationship recorded
// during the current mutation. The entry is nil when nothing was recorded.
func (b *ImageBlock) MutationOperationResults(ctx context.Context) map[string]interface{} {
	result, _ := cms.MutationStateFromContext(ctx).Get(b.joinList, blockPath)
	return map[string]interface{}{blockPath: result}
}

func (b *ImageBlock) ViewOptions() map[string]interface{} {
	return map[string]interface{}{"query": blockQuery}
}
