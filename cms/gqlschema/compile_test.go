package gqlschema

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/graphql-go/graphql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ctxKey struct{}

func testFragments() *Fragments {
	frags := NewFragments()
	frags.Add(`type Image {
  id: ID
  url: String
}`)
	frags.Add(`extend type Image {
  sized(width: Int): String
}`)
	frags.Add(`type Query {
  image: Image
  greeting: String
}`)
	return frags
}

func TestFragmentsDedupe(t *testing.T) {
	frags := NewFragments()
	frags.Add("scalar Upload", "  scalar Upload\n", "", "scalar Other")
	assert.Equal(t, 2, frags.Len())
	assert.Equal(t, "scalar Upload\n\nscalar Other", frags.String())
}

func TestCompile(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var sizedArgs map[string]interface{}
	resolvers := make(Resolvers)
	resolvers.Add("Query", "image", func(p graphql.ResolveParams) (interface{}, error) {
		return map[string]interface{}{
			"id":  "abc",
			"url": "https://images.test/abc.jpg",
			"sized": Thunk(func(args map[string]interface{}) (interface{}, error) {
				sizedArgs = args
				return "https://images.test/w_100/abc.jpg", nil
			}),
		}, nil
	})
	resolvers.Add("Query", "greeting", func(p graphql.ResolveParams) (interface{}, error) {
		return p.Context.Value(ctxKey{}), nil
	})
	resolvers.Add("Query", "ignored", nil)

	schema, err := Compile(testFragments(), resolvers, nil)
	require.Nil(t, err)
	assert.Contains(t, schema.SDL, "type Image {\n  id: ID\n  url: String\n  sized(width: Int): String\n}")

	t.Run("thunks are only called when selected", func(t *testing.T) {
		res := schema.Exec(ctx, `{ image { id url } }`, "", nil)
		require.Len(t, res.Errors, 0)
		assert.Nil(t, sizedArgs)
		assert.Equal(t, map[string]interface{}{
			"image": map[string]interface{}{"id": "abc", "url": "https://images.test/abc.jpg"},
		}, res.Data)
	})

	t.Run("thunks receive the field arguments", func(t *testing.T) {
		res := schema.Exec(ctx, `{ image { sized(width: 100) } }`, "", nil)
		require.Len(t, res.Errors, 0)
		assert.Equal(t, map[string]interface{}{"width": 100}, sizedArgs)
		assert.Equal(t, map[string]interface{}{
			"image": map[string]interface{}{"sized": "https://images.test/w_100/abc.jpg"},
		}, res.Data)
	})

	t.Run("introspection", func(t *testing.T) {
		bits, err := schema.IntrospectionJSON()
		require.Nil(t, err)
		var out map[string]interface{}
		require.Nil(t, json.Unmarshal(bits, &out))
		assert.Contains(t, out, "__schema")
	})

	t.Run("http handler", func(t *testing.T) {
		h := &Handler{
			Schema: schema,
			PrepareContext: func(ctx context.Context) context.Context {
				return context.WithValue(ctx, ctxKey{}, "hello")
			},
		}
		body, err := json.Marshal(map[string]interface{}{"query": "{ greeting }"})
		require.Nil(t, err)
		post := func(body []byte) *httptest.ResponseRecorder {
			req := httptest.NewRequest(http.MethodPost, "/graphql", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			return rec
		}

		rec := post(body)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"data":{"greeting":"hello"}}`, rec.Body.String())

		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/graphql?query=%7B%20greeting%20%7D", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"data":{"greeting":"hello"}}`, rec.Body.String())

		rec = post([]byte("nope"))
		var out map[string]interface{}
		require.Nil(t, json.Unmarshal(rec.Body.Bytes(), &out))
		assert.NotEmpty(t, out["errors"])
	})
}

func TestCompileErrors(t *testing.T) {
	compile := func(sdl ...string) error {
		frags := NewFragments()
		frags.Add(sdl...)
		_, err := Compile(frags, nil, nil)
		return err
	}

	err := compile("type Query { a: String }", "type Query { b: String }")
	require.NotNil(t, err)
	assert.Contains(t, err.Error(), "more than once")

	err = compile("type Query { a: String }", "extend type Missing { b: String }")
	require.NotNil(t, err)
	assert.Contains(t, err.Error(), "unknown type")

	err = compile("type Query { a: String }", "extend type Query { a: Int }")
	require.NotNil(t, err)
	assert.Contains(t, err.Error(), "Query.a is defined more than once")

	err = compile("type Query { a: Missing, b(c: AlsoMissing): String }")
	require.NotNil(t, err)
	assert.Contains(t, err.Error(), "Query.a: Missing")
	assert.Contains(t, err.Error(), "Query.b(c): AlsoMissing")

	err = compile("type Thing { a: String }")
	require.NotNil(t, err)

	err = compile("type Query {")
	require.NotNil(t, err)
}

func TestDefaultResolve(t *testing.T) {
	type named map[string]interface{}
	v, err := defaultResolve(graphql.ResolveParams{
		Source: named{"name": "x"},
		Info:   graphql.ResolveInfo{FieldName: "name"},
	})
	require.Nil(t, err)
	assert.Equal(t, "x", v)

	v, err = defaultResolve(graphql.ResolveParams{
		Source: map[string]interface{}{},
		Info:   graphql.ResolveInfo{FieldName: "name"},
	})
	require.Nil(t, err)
	assert.Nil(t, v)

	v, err = defaultResolve(graphql.ResolveParams{Info: graphql.ResolveInfo{FieldName: "name"}})
	require.Nil(t, err)
	assert.Nil(t, v)
}
