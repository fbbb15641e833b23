// Package blocks holds content blocks that carry no data of their own. They
// are composed into richer blocks which reuse their admin views.
package blocks

import "github.com/evvvvil/keystone-5-fields-cloudinary-image/cms"

const viewsPackage = "@keystonejs/fields-content"

// ViewBlock is a block that only contributes admin views.
type ViewBlock struct {
	typ  string
	view string
}

func (v *ViewBlock) Type() string { return v.typ }

func (v *ViewBlock) AdminViews() []string {
	return []string{cms.ResolveView(viewsPackage, v.view)}
}

// ImageContainer lays out an image and its caption.
var ImageContainer = &ViewBlock{typ: "image-container", view: "views/blocks/image-container"}

// Caption renders the text under an image.
var Caption = &ViewBlock{typ: "caption", view: "views/blocks/caption"}
