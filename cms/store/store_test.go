package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evvvvil/keystone-5-fields-cloudinary-image/cms"
)

func TestDatastore(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewMemoryStore()
	assert.Equal(t, cms.NamingDefault, s.NamingStrategy())

	post := cms.Item{
		"id":    "p1",
		"title": "hello",
		"hero": map[string]interface{}{
			"id":    "f1",
			"_meta": map[string]interface{}{"public_id": "abc", "format": "jpg"},
		},
		"images": []interface{}{"i1", "i2"},
	}
	require.Nil(t, s.Put(ctx, "Post", post))
	require.Nil(t, s.Put(ctx, "Post", cms.Item{"id": "p2", "title": "second"}))
	require.Nil(t, s.Put(ctx, "PostTag", cms.Item{"id": "t1"}))

	got, err := s.Get(ctx, "Post", "p1")
	require.Nil(t, err)
	assert.Equal(t, "hello", got["title"])
	assert.Equal(t, []interface{}{"i1", "i2"}, got["images"])

	hero, ok := cms.AsFileValue(got["hero"])
	require.True(t, ok)
	assert.Equal(t, "abc", hero.Meta()["public_id"])

	all, err := s.All(ctx, "Post")
	require.Nil(t, err)
	assert.Len(t, all, 2, "items of PostTag are not part of Post")

	require.Nil(t, s.Delete(ctx, "Post", "p1"))
	_, err = s.Get(ctx, "Post", "p1")
	assert.Equal(t, cms.ErrNotFound, err)
	assert.Nil(t, s.Delete(ctx, "Post", "p1"), "deleting twice is not an error")

	assert.NotNil(t, s.Put(ctx, "Post", cms.Item{"title": "no id"}))
}

func TestNormalize(t *testing.T) {
	in := map[string]interface{}{
		"nested": map[interface{}]interface{}{
			"a":    "b",
			"list": []interface{}{map[interface{}]interface{}{"c": "d"}},
		},
	}
	out := normalize(in)
	assert.Equal(t, map[string]interface{}{
		"nested": map[string]interface{}{
			"a":    "b",
			"list": []interface{}{map[string]interface{}{"c": "d"}},
		},
	}, out)
}
