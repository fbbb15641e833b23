package cloudinary

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evvvvil/keystone-5-fields-cloudinary-image/cms"
)

type request struct {
	path   string
	fields map[string]string
	file   string
}

type fakeAPI struct {
	lock sync.Mutex
	seen []request
}

func (f *fakeAPI) requests() []request {
	f.lock.Lock()
	defer f.lock.Unlock()
	return append([]request(nil), f.seen...)
}

func newTestAdapter(t *testing.T, handler func(req request) (int, string)) (*Adapter, *fakeAPI) {
	t.Helper()
	api := &fakeAPI{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := request{path: r.URL.Path, fields: make(map[string]string)}
		err := r.ParseMultipartForm(1 << 20)
		if err == http.ErrNotMultipart {
			err = r.ParseForm()
		}
		if !assert.Nil(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		for k, v := range r.PostForm {
			req.fields[k] = v[0]
		}
		if r.MultipartForm != nil {
			if files := r.MultipartForm.File["file"]; len(files) > 0 {
				f, err := files[0].Open()
				if assert.Nil(t, err) {
					buf := &strings.Builder{}
					_, err = io.Copy(buf, f)
					assert.Nil(t, err)
					req.file = buf.String()
				}
			}
		}
		api.lock.Lock()
		api.seen = append(api.seen, req)
		api.lock.Unlock()

		status, body := handler(req)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	a, err := New(&Config{
		CloudName: "demo",
		APIKey:    "key",
		APISecret: "secret",
		Folder:    "/uploads/",
		APIBase:   srv.URL + "/",
	})
	require.Nil(t, err)
	return a, api
}

func TestNew(t *testing.T) {
	_, err := New(&Config{CloudName: "demo", APIKey: "key"})
	assert.True(t, cms.IsConfigError(err))

	a, err := New(&Config{CloudName: "demo", APIKey: "key", APISecret: "secret", Folder: "/uploads/"})
	require.Nil(t, err)
	assert.Equal(t, "uploads", a.folder)
	assert.Equal(t, "demo", a.cld.Config.Cloud.CloudName)
}

func TestSave(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, api := newTestAdapter(t, func(req request) (int, string) {
		return http.StatusOK, `{
			"public_id": "uploads/abc",
			"version": 1590000001,
			"format": "png",
			"resource_type": "image",
			"width": 640,
			"height": 480,
			"bytes": 4,
			"secure_url": "https://res.cloudinary.com/demo/image/upload/v1590000001/uploads/abc.png"
		}`
	})

	value, err := a.Save(ctx, &cms.Upload{
		Filename: "cat.png",
		Mimetype: "image/png",
		Body:     strings.NewReader("meow"),
	})
	require.Nil(t, err)

	seen := api.requests()
	require.Len(t, seen, 1)
	req := seen[0]
	assert.True(t, strings.HasSuffix(req.path, "/demo/image/upload"), req.path)
	assert.Equal(t, "meow", req.file)
	assert.Equal(t, "uploads", req.fields["folder"])
	assert.Equal(t, "key", req.fields["api_key"])
	assert.NotEmpty(t, req.fields["signature"])
	assert.NotEmpty(t, req.fields["timestamp"])

	assert.Equal(t, req.fields["public_id"], value.ID())
	assert.Equal(t, "cat.png", value["originalFilename"])
	assert.Equal(t, "image/png", value["mimetype"])
	_, hasEncoding := value["encoding"]
	assert.False(t, hasEncoding)
	assert.Equal(t, "uploads/abc", value.Meta()["public_id"])
	assert.Equal(t, 640, value.Meta()["width"])
	assert.Equal(t, "https://res.cloudinary.com/demo/image/upload/v1590000001/uploads/abc.png", a.PublicURL(value))

	t.Run("remote sources are forwarded", func(t *testing.T) {
		_, err := a.Save(ctx, &cms.Upload{Source: "https://example.com/cat.png"})
		require.Nil(t, err)
		seen := api.requests()
		require.Len(t, seen, 2)
		assert.Equal(t, "https://example.com/cat.png", seen[1].fields["file"])
	})

	t.Run("local paths are refused", func(t *testing.T) {
		_, err := a.Save(ctx, &cms.Upload{Source: "/etc/passwd"})
		assert.NotNil(t, err)
		assert.Len(t, api.requests(), 2)
	})

	t.Run("nothing to upload", func(t *testing.T) {
		_, err := a.Save(ctx, &cms.Upload{Filename: "empty"})
		assert.NotNil(t, err)
	})
}

func TestSaveError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, _ := newTestAdapter(t, func(req request) (int, string) {
		return http.StatusUnauthorized, `{"error":{"message":"Invalid Signature"}}`
	})
	_, err := a.Save(ctx, &cms.Upload{Source: "https://example.com/cat.png"})
	require.NotNil(t, err)
	assert.Contains(t, err.Error(), "Invalid Signature")
}

func TestDelete(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, api := newTestAdapter(t, func(req request) (int, string) {
		if req.fields["public_id"] == "uploads/gone" {
			return http.StatusOK, `{"result":"not found"}`
		}
		return http.StatusOK, `{"result":"ok"}`
	})

	file := cms.FileValue{"id": "abc", "_meta": map[string]interface{}{"public_id": "uploads/abc"}}
	require.Nil(t, a.Delete(ctx, file))
	seen := api.requests()
	require.Len(t, seen, 1)
	assert.True(t, strings.HasSuffix(seen[0].path, "/demo/image/destroy"), seen[0].path)
	assert.Equal(t, "uploads/abc", seen[0].fields["public_id"])

	gone := cms.FileValue{"id": "gone", "_meta": map[string]interface{}{"public_id": "uploads/gone"}}
	assert.True(t, errors.Is(a.Delete(ctx, gone), cms.ErrNotFound))

	assert.True(t, errors.Is(a.Delete(ctx, cms.FileValue{"id": "x"}), cms.ErrNotFound))
}

func TestPublicURLTransformed(t *testing.T) {
	a, err := New(&Config{CloudName: "demo", APIKey: "key", APISecret: "secret"})
	require.Nil(t, err)

	secureURL := "https://res.cloudinary.com/demo/image/upload/v1590000001/uploads/abc.png"
	file := cms.FileValue{
		"id": "abc",
		"_meta": map[string]interface{}{
			"public_id":  "uploads/abc",
			"version":    uint64(1590000001),
			"format":     "png",
			"secure_url": secureURL,
		},
	}

	assert.Equal(t, secureURL, a.PublicURLTransformed(file, nil))
	assert.Equal(t, secureURL, a.PublicURLTransformed(file, map[string]string{"prettyName": "cat"}), "a pretty name alone changes nothing")

	for _, tc := range []struct {
		name     string
		options  map[string]string
		contains []string
		suffix   string
	}{
		{
			name:     "crop",
			options:  map[string]string{"width": "300", "height": "200", "crop": "fill"},
			contains: []string{"https://res.cloudinary.com/demo/image/upload/", "c_fill,h_200,w_300", "v1590000001"},
			suffix:   "/uploads/abc.png",
		},
		{
			name:     "format override",
			options:  map[string]string{"quality": "80", "format": "webp"},
			contains: []string{"/demo/image/upload/", "q_80"},
			suffix:   "/uploads/abc.webp",
		},
		{
			name:     "pretty name",
			options:  map[string]string{"effect": "grayscale", "prettyName": "cat"},
			contains: []string{"/demo/images/", "e_grayscale", "uploads/abc"},
			suffix:   "/cat.png",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			raw := a.PublicURLTransformed(file, tc.options)
			u, err := url.Parse(raw)
			require.Nil(t, err)
			assert.Empty(t, u.RawQuery)
			for _, part := range tc.contains {
				assert.Contains(t, raw, part)
			}
			assert.True(t, strings.HasSuffix(u.Path, tc.suffix), raw)
		})
	}

	assert.Equal(t, "", a.PublicURLTransformed(cms.FileValue{"id": "x"}, map[string]string{"width": "10"}))
}

func TestVersion(t *testing.T) {
	assert.Equal(t, 12, version(float64(12)))
	assert.Equal(t, 12, version("v12"))
	assert.Equal(t, 12, version(uint64(12)))
	assert.Equal(t, 12, version(12))
	assert.Equal(t, 0, version(nil))
}

func TestTransformationString(t *testing.T) {
	assert.Equal(t, "", TransformationString(nil))
	assert.Equal(t, "", TransformationString(map[string]string{"width": "300", "height": "200"}), "size without crop is ignored")
	assert.Equal(t, "c_fill,h_200,w_300", TransformationString(map[string]string{"width": "300", "height": "200", "crop": "fill"}))
	assert.Equal(t, "l_logo,w_50", TransformationString(map[string]string{"width": "50", "overlay": "logo"}))
	assert.Equal(t, "a_90,e_sepia,fl_progressive", TransformationString(map[string]string{
		"angle":   "90",
		"effect":  "sepia",
		"flags":   "progressive",
		"unknown": "x",
		"radius":  "",
	}))
}
