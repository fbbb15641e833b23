package api

import (
	"context"
	"testing"

	"github.com/graphql-go/graphql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evvvvil/keystone-5-fields-cloudinary-image/cms"
	"github.com/evvvvil/keystone-5-fields-cloudinary-image/cms/fields"
	"github.com/evvvvil/keystone-5-fields-cloudinary-image/cms/store"
	"github.com/evvvvil/keystone-5-fields-cloudinary-image/testadapter"
)

func newTestResolver(ctx context.Context, t *testing.T, updates chan<- cms.ChangeEvent) *Resolver {
	t.Helper()
	r, err := NewResolver(ctx, &Config{
		Adapter:       &testadapter.TransformingAdapter{FileAdapter: testadapter.FileAdapter{BaseURL: "https://img.test"}},
		Store:         store.NewMemoryStore(),
		UpdateChannel: updates,
	})
	require.Nil(t, err)
	return r
}

func dataOf(t *testing.T, res *graphql.Result, field string) map[string]interface{} {
	t.Helper()
	require.Len(t, res.Errors, 0)
	out, ok := res.Data.(map[string]interface{})[field].(map[string]interface{})
	require.True(t, ok, "missing %s", field)
	return out
}

func drain(ch <-chan cms.ChangeEvent) []cms.ChangeEvent {
	var events []cms.ChangeEvent
	for {
		select {
		case evt := <-ch:
			events = append(events, evt)
		default:
			return events
		}
	}
}

func TestNewResolverRequiresTransformations(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := NewResolver(ctx, &Config{
		Adapter: &testadapter.FileAdapter{},
		Store:   store.NewMemoryStore(),
	})
	require.NotNil(t, err)
	assert.True(t, cms.IsConfigError(err))
}

func TestCreateUserWithAvatar(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := newTestResolver(ctx, t, nil)

	res := r.Exec(ctx, `mutation {
		createUser(data: {name: "ada", avatar: "https://example.com/ada.png"}) {
			id
			name
			avatar {
				originalFilename
				publicUrl
				publicUrlTransformed(transformation: {width: "100", crop: "fill"})
			}
		}
	}`, "", nil)
	user := dataOf(t, res, "createUser")
	assert.Equal(t, "ada", user["name"])

	avatar := user["avatar"].(map[string]interface{})
	assert.Equal(t, "ada.png", avatar["originalFilename"])
	publicURL := avatar["publicUrl"].(string)
	assert.Contains(t, publicURL, "https://img.test/")
	assert.Equal(t, publicURL+"?crop=fill&width=100", avatar["publicUrlTransformed"])

	res = r.Exec(ctx, `query($id: ID!) { User(where: {id: $id}) { name } }`, "", map[string]interface{}{"id": user["id"]})
	assert.Equal(t, "ada", dataOf(t, res, "User")["name"])

	res = r.Exec(ctx, `mutation { createUser(data: {}) { id } }`, "", nil)
	assert.NotEmpty(t, res.Errors, "name is required")
}

func TestPosts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates := make(chan cms.ChangeEvent, 100)
	r := newTestResolver(ctx, t, updates)

	res := r.Exec(ctx, `mutation { createUser(data: {name: "ada"}) { id } }`, "", nil)
	author := dataOf(t, res, "createUser")

	res = r.Exec(ctx, `mutation($author: ID!) {
		createPost(data: {
			title: "hello",
			status: published,
			author: {connect: {id: $author}},
			hero: "https://example.com/hero.png",
			body: "[]",
			cloudinaryImages: {create: [{image: "https://example.com/a.png", align: left}]}
		}) {
			id
			status
			author { name }
			hero { publicUrl }
			cloudinaryImages { align image { publicUrl } }
		}
	}`, "", map[string]interface{}{"author": author["id"]})
	post := dataOf(t, res, "createPost")
	assert.Equal(t, "published", post["status"])
	assert.Equal(t, "ada", post["author"].(map[string]interface{})["name"])
	assert.Contains(t, post["hero"].(map[string]interface{})["publicUrl"], "hero.png")
	images := post["cloudinaryImages"].([]interface{})
	require.Len(t, images, 1)
	assert.Equal(t, "left", images[0].(map[string]interface{})["align"])

	t.Run("change events carry block results", func(t *testing.T) {
		var postEvents []cms.ChangeEvent
		for _, evt := range drain(updates) {
			if evt.ListKey == "Post" {
				postEvents = append(postEvents, evt)
			}
		}
		require.Len(t, postEvents, 1)
		nested, ok := postEvents[0].Blocks["cloudinaryImages"].(*fields.NestedResult)
		require.True(t, ok)
		assert.Len(t, nested.Create, 1)
	})

	t.Run("published posts cannot be deleted", func(t *testing.T) {
		res := r.Exec(ctx, `mutation($id: ID!) { deletePost(id: $id) { id } }`, "", map[string]interface{}{"id": post["id"]})
		require.NotEmpty(t, res.Errors)
		assert.Contains(t, res.Errors[0].Message, "access denied")
	})

	t.Run("drafts can be deleted", func(t *testing.T) {
		res := r.Exec(ctx, `mutation { createPost(data: {title: "draft"}) { id status } }`, "", nil)
		draft := dataOf(t, res, "createPost")
		assert.Equal(t, "draft", draft["status"])

		res = r.Exec(ctx, `mutation($id: ID!) { deletePost(id: $id) { id } }`, "", map[string]interface{}{"id": draft["id"]})
		assert.Equal(t, draft["id"], dataOf(t, res, "deletePost")["id"])

		res = r.Exec(ctx, `{ allPosts { id } }`, "", nil)
		require.Len(t, res.Errors, 0)
		assert.Len(t, res.Data.(map[string]interface{})["allPosts"], 1)
	})

	t.Run("unpublished posts can be deleted", func(t *testing.T) {
		res := r.Exec(ctx, `mutation($id: ID!) { updatePost(id: $id, data: {status: draft}) { status author { name } } }`, "", map[string]interface{}{"id": post["id"]})
		updated := dataOf(t, res, "updatePost")
		assert.Equal(t, "draft", updated["status"])
		assert.Equal(t, "ada", updated["author"].(map[string]interface{})["name"])

		res = r.Exec(ctx, `mutation($id: ID!) { deletePost(id: $id) { id } }`, "", map[string]interface{}{"id": post["id"]})
		assert.Equal(t, post["id"], dataOf(t, res, "deletePost")["id"])
	})
}
