package gqlschema

import (
	"context"
	"net/http"
	"sync"

	"github.com/graphql-go/handler"
)

// Handler serves the executable schema over HTTP (GET, JSON and form
// POSTs) with graphql-go/handler.
type Handler struct {
	Schema *Schema
	// PrepareContext is applied to every request context before execution,
	// typically to attach per-request state.
	PrepareContext func(ctx context.Context) context.Context
	// Pretty indents the JSON responses.
	Pretty bool

	once sync.Once
	h    *handler.Handler
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.once.Do(func() {
		h.h = handler.New(&handler.Config{
			Schema:   &h.Schema.Executable,
			Pretty:   h.Pretty,
			GraphiQL: false,
		})
	})

	ctx := r.Context()
	if h.PrepareContext != nil {
		ctx = h.PrepareContext(ctx)
	}
	h.h.ContextHandler(ctx, w, r)
}
