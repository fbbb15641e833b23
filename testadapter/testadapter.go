// Package testadapter holds in-memory file adapters for tests.
package testadapter

import (
	"context"
	"fmt"
	"io/ioutil"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/evvvvil/keystone-5-fields-cloudinary-image/cms"
)

// FileAdapter stores nothing and only has plain public URLs. It does not
// support transformations.
type FileAdapter struct {
	lock    sync.Mutex
	saved   []cms.FileValue
	deleted []string
	// BaseURL prefixes public URLs.
	BaseURL string
}

var _ cms.FileAdapter = (*FileAdapter)(nil)

func (fa *FileAdapter) Save(_ context.Context, upload *cms.Upload) (cms.FileValue, error) {
	if upload == nil {
		return nil, fmt.Errorf("nothing to upload")
	}
	if upload.Body != nil {
		if _, err := ioutil.ReadAll(upload.Body); err != nil {
			return nil, err
		}
	}
	id := uuid.New().String()
	value := cms.FileValue{
		"id":               id,
		"filename":         id + "-" + upload.Filename,
		"originalFilename": upload.Filename,
	}
	if upload.Mimetype != "" {
		value["mimetype"] = upload.Mimetype
	}
	fa.lock.Lock()
	fa.saved = append(fa.saved, value)
	fa.lock.Unlock()
	return value, nil
}

func (fa *FileAdapter) Delete(_ context.Context, file cms.FileValue) error {
	fa.lock.Lock()
	defer fa.lock.Unlock()
	fa.deleted = append(fa.deleted, file.ID())
	return nil
}

func (fa *FileAdapter) PublicURL(file cms.FileValue) string {
	if file.Filename() == "" {
		return ""
	}
	return strings.TrimRight(fa.BaseURL, "/") + "/" + file.Filename()
}

// Saved returns every value returned by Save.
func (fa *FileAdapter) Saved() []cms.FileValue {
	fa.lock.Lock()
	defer fa.lock.Unlock()
	return append([]cms.FileValue(nil), fa.saved...)
}

// Deleted returns the ids passed to Delete.
func (fa *FileAdapter) Deleted() []string {
	fa.lock.Lock()
	defer fa.lock.Unlock()
	return append([]string(nil), fa.deleted...)
}

// TransformCall is one recorded PublicURLTransformed call.
type TransformCall struct {
	File           cms.FileValue
	Transformation map[string]string
}

// TransformingAdapter is a FileAdapter that also builds transformed URLs.
// Saved values carry a "_meta" map like Cloudinary's upload response, and
// every PublicURLTransformed call is recorded.
type TransformingAdapter struct {
	FileAdapter

	lock  sync.Mutex
	calls []TransformCall
}

func (ta *TransformingAdapter) Save(ctx context.Context, upload *cms.Upload) (cms.FileValue, error) {
	value, err := ta.FileAdapter.Save(ctx, upload)
	if err != nil {
		return nil, err
	}
	value["_meta"] = map[string]interface{}{
		"public_id":  value.ID(),
		"secure_url": ta.FileAdapter.PublicURL(value),
		"format":     "jpg",
	}
	return value, nil
}

func (ta *TransformingAdapter) PublicURL(file cms.FileValue) string {
	url, _ := file.Meta()["secure_url"].(string)
	return url
}

// PublicURLTransformed returns "" when file has no "_meta", otherwise the
// public URL with the options appended as a sorted query string.
func (ta *TransformingAdapter) PublicURLTransformed(file cms.FileValue, transformation map[string]string) string {
	ta.lock.Lock()
	ta.calls = append(ta.calls, TransformCall{File: file, Transformation: transformation})
	ta.lock.Unlock()

	if file.Meta() == nil {
		return ""
	}
	keys := make([]string, 0, len(transformation))
	for k := range transformation {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = k + "=" + transformation[k]
	}
	url := ta.PublicURL(file)
	if len(pairs) > 0 {
		url += "?" + strings.Join(pairs, "&")
	}
	return url
}

// Calls returns the recorded PublicURLTransformed calls.
func (ta *TransformingAdapter) Calls() []TransformCall {
	ta.lock.Lock()
	defer ta.lock.Unlock()
	return append([]TransformCall(nil), ta.calls...)
}
