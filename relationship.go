package cloudinaryimage

import (
	"context"

	"github.com/evvvvil/keystone-5-fields-cloudinary-image/cms"
	"github.com/evvvvil/keystone-5-fields-cloudinary-image/cms/fields"
)

// RelationshipWrapper is a relationship that records the result of its
// nested operations in the request's cms.MutationState, where the image
// block picks it up once the mutation is done.
var RelationshipWrapper = &cms.FieldType{
	Type: fields.Relationship.Type,
	New: func(fc cms.FieldContext) (cms.Field, error) {
		return NewRecordingRelationship(fc)
	},
	Views: fields.Relationship.Views,
}

type RecordingRelationship struct {
	*fields.RelationshipImplementation
}

func NewRecordingRelationship(fc cms.FieldContext) (*RecordingRelationship, error) {
	rel, err := fields.NewRelationship(fc)
	if err != nil {
		return nil, err
	}
	return &RecordingRelationship{RelationshipImplementation: rel}, nil
}

// ResolveNestedOperations runs the nested operations and records the
// result under (list key, path). Without a state on ctx nothing is
// recorded.
func (r *RecordingRelationship) ResolveNestedOperations(ctx context.Context, ops map[string]interface{}, itemID string) (*fields.NestedResult, error) {
	result, err := r.RelationshipImplementation.ResolveNestedOperations(ctx, ops, itemID)
	if err != nil {
		return nil, err
	}
	if state := cms.MutationStateFromContext(ctx); state != nil {
		state.Set(r.ListKey(), r.Path(), result)
	}
	return result, nil
}

// ResolveInput goes through the recording ResolveNestedOperations.
func (r *RecordingRelationship) ResolveInput(ctx context.Context, params cms.ResolveInputParams) (interface{}, error) {
	ops, err := fields.NestedOperations(params)
	if ops == nil || err != nil {
		return nil, err
	}
	result, err := r.ResolveNestedOperations(ctx, ops, params.ItemID)
	if err != nil {
		return nil, err
	}
	return r.ApplyNested(ctx, params, result)
}
