package cloudinaryimage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evvvvil/keystone-5-fields-cloudinary-image/cms"
	"github.com/evvvvil/keystone-5-fields-cloudinary-image/cms/fields"
)

func TestRecordingRelationship(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := newRegistry()
	_, err := reg.CreateList(ctx, "Tag", cms.ListConfig{
		Fields: map[string]cms.FieldConfig{"name": {Type: fields.Text}},
	})
	require.Nil(t, err)
	post, err := reg.CreateList(ctx, "Post", cms.ListConfig{
		Fields: map[string]cms.FieldConfig{"tags": {Type: RelationshipWrapper, Ref: "Tag", Many: true}},
	})
	require.Nil(t, err)

	f, ok := post.Field("tags")
	require.True(t, ok)
	rel := f.(*RecordingRelationship)
	assert.Equal(t, "Relationship", rel.Type())

	ops := map[string]interface{}{
		"create": []interface{}{map[string]interface{}{"name": "go"}},
	}

	t.Run("records into the request state", func(t *testing.T) {
		reqCtx := cms.WithMutationState(ctx)
		result, err := rel.ResolveNestedOperations(reqCtx, ops, "p1")
		require.Nil(t, err)
		require.Len(t, result.Create, 1)
		assert.Equal(t, []interface{}{result.Create[0].ID()}, result.Value)

		recorded, ok := cms.MutationStateFromContext(reqCtx).Get("Post", "tags")
		require.True(t, ok)
		assert.True(t, recorded == result)
	})

	t.Run("resolve input goes through the recording path", func(t *testing.T) {
		reqCtx := cms.WithMutationState(ctx)
		value, err := rel.ResolveInput(reqCtx, cms.ResolveInputParams{ItemID: "p2", Value: ops})
		require.Nil(t, err)

		recorded, ok := cms.MutationStateFromContext(reqCtx).Get("Post", "tags")
		require.True(t, ok)
		assert.Equal(t, recorded.(*fields.NestedResult).Value, value)
	})

	t.Run("without request state", func(t *testing.T) {
		result, err := rel.ResolveNestedOperations(ctx, ops, "p3")
		require.Nil(t, err)
		assert.Len(t, result.Create, 1)
	})

	t.Run("errors pass through", func(t *testing.T) {
		reqCtx := cms.WithMutationState(ctx)
		_, err := rel.ResolveNestedOperations(reqCtx, map[string]interface{}{
			"connect": []interface{}{map[string]interface{}{"id": "missing"}},
		}, "p4")
		require.NotNil(t, err)
		_, ok := cms.MutationStateFromContext(reqCtx).Get("Post", "tags")
		assert.False(t, ok)
	})
}
