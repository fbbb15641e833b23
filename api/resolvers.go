package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/graphql-go/graphql"
	logging "github.com/ipfs/go-log"

	cloudinaryimage "github.com/evvvvil/keystone-5-fields-cloudinary-image"
	"github.com/evvvvil/keystone-5-fields-cloudinary-image/cms"
	"github.com/evvvvil/keystone-5-fields-cloudinary-image/cms/fields"
	"github.com/evvvvil/keystone-5-fields-cloudinary-image/cms/gqlschema"
)

var logger = logging.Logger("resolver")

// postAccess keeps published posts from being deleted.
const postAccess = `
package access

default allow = true

allow = false {
	input.operation == "delete"
	input.item.status == "published"
}
`

// Config is used to configure a new Resolver.
type Config struct {
	// Adapter stores every image; it must support transformations.
	Adapter cms.FileAdapter
	Store   cms.Store
	// UpdateChannel receives a change event for every write, may be nil.
	UpdateChannel chan<- cms.ChangeEvent
}

// Resolver holds the compiled lists of the application.
type Resolver struct {
	Registry *cms.Registry
	Schema   *gqlschema.Schema
}

func NewResolver(ctx context.Context, config *Config) (*Resolver, error) {
	reg := cms.NewRegistry(&cms.Config{
		Store:    config.Store,
		OnChange: publishTo(ctx, config.UpdateChannel),
	})

	_, err := reg.CreateList(ctx, "User", cms.ListConfig{
		Fields: map[string]cms.FieldConfig{
			"name":   {Type: fields.Text, IsRequired: true},
			"avatar": {Type: cloudinaryimage.CloudinaryImage, Adapter: config.Adapter},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("error creating User: %w", err)
	}

	_, err = reg.CreateList(ctx, "Post", cms.ListConfig{
		Access: postAccess,
		Fields: map[string]cms.FieldConfig{
			"title": {Type: fields.Text, IsRequired: true},
			"status": {
				Type:         fields.Select,
				Options:      []string{"draft", "published"},
				DefaultValue: "draft",
			},
			"author": {Type: fields.Relationship, Ref: "User"},
			"hero":   {Type: cloudinaryimage.CloudinaryImage, Adapter: config.Adapter},
			"body": {
				Type: fields.Content,
				Blocks: []cms.BlockSpec{
					{Factory: cloudinaryimage.CloudinaryImage.Blocks["image"], Adapter: config.Adapter},
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("error creating Post: %w", err)
	}

	schema, err := reg.Compile(ctx)
	if err != nil {
		return nil, err
	}
	return &Resolver{Registry: reg, Schema: schema}, nil
}

func publishTo(ctx context.Context, ch chan<- cms.ChangeEvent) cms.ChangeFunc {
	return func(evt cms.ChangeEvent) {
		if ch == nil {
			return
		}
		select {
		case ch <- evt:
		case <-ctx.Done():
			logger.Warningf("dropping %s event for %s %s", evt.Operation, evt.ListKey, evt.Item.ID())
		}
	}
}

// Exec runs a GraphQL request with its own mutation state.
func (r *Resolver) Exec(ctx context.Context, query string, operationName string, variables map[string]interface{}) *graphql.Result {
	return r.Schema.Exec(cms.WithMutationState(ctx), query, operationName, variables)
}

// Handler serves the GraphQL endpoint.
func (r *Resolver) Handler() http.Handler {
	return &gqlschema.Handler{
		Schema:         r.Schema,
		PrepareContext: cms.WithMutationState,
	}
}
