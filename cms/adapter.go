package cms

import "context"

// FileAdapter stores uploaded files somewhere and knows their public URL.
type FileAdapter interface {
	Save(ctx context.Context, upload *Upload) (FileValue, error)
	Delete(ctx context.Context, file FileValue) error
	// PublicURL returns "" when the value has no public location.
	PublicURL(file FileValue) string
}

// Store persists list items.
type Store interface {
	// Get returns ErrNotFound for unknown ids.
	Get(ctx context.Context, listKey string, id string) (Item, error)
	Put(ctx context.Context, listKey string, item Item) error
	Delete(ctx context.Context, listKey string, id string) error
	All(ctx context.Context, listKey string) ([]Item, error)
	// NamingStrategy tells generated lists how to spell their keys for
	// this backend.
	NamingStrategy() NamingStrategy
}
