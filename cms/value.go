package cms

import (
	"io"
)

// Item is a single row of a list as it is stored and handed to resolvers.
// The "id" key is always present on stored items.
type Item map[string]interface{}

func (i Item) ID() string {
	id, _ := i["id"].(string)
	return id
}

// Copy returns a shallow copy of the item.
func (i Item) Copy() Item {
	out := make(Item, len(i))
	for k, v := range i {
		out[k] = v
	}
	return out
}

// FileValue is the structured value a file adapter returns from Save and
// which is persisted as-is on the item. Adapters are free to add their own
// keys (Cloudinary keeps its upload response under "_meta").
type FileValue map[string]interface{}

// AsFileValue converts a stored value back into a FileValue. Values that
// went through the store come back as plain maps.
func AsFileValue(v interface{}) (FileValue, bool) {
	switch val := v.(type) {
	case FileValue:
		return val, len(val) > 0
	case map[string]interface{}:
		return FileValue(val), len(val) > 0
	case Item:
		return FileValue(val), len(val) > 0
	default:
		return nil, false
	}
}

func (f FileValue) String(key string) string {
	s, _ := f[key].(string)
	return s
}

func (f FileValue) ID() string       { return f.String("id") }
func (f FileValue) Filename() string { return f.String("filename") }

// Meta returns the adapter specific metadata stored under "_meta".
func (f FileValue) Meta() map[string]interface{} {
	switch m := f["_meta"].(type) {
	case map[string]interface{}:
		return m
	case FileValue:
		return m
	default:
		return nil
	}
}

// Upload is the value of the Upload scalar. Either Body is set (a
// multipart upload) or Source holds a remote URL or data URI which the file
// adapter passes on to its backend.
type Upload struct {
	Filename string
	Mimetype string
	Encoding string
	Source   string
	Body     io.Reader
}
