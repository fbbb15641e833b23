package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const readOnly = `package access

default allow = false

allow {
	input.operation == "read"
}

allow {
	input.operation == "create"
	input.item.title != "forbidden"
}
`

func TestAccess(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	t.Run("no module allows everything", func(t *testing.T) {
		a, err := New(ctx, "Post", "")
		require.Nil(t, err)
		assert.Nil(t, a)
		allowed, err := a.Allowed(ctx, "delete", nil)
		require.Nil(t, err)
		assert.True(t, allowed)
	})

	t.Run("module decides", func(t *testing.T) {
		a, err := New(ctx, "Post", readOnly)
		require.Nil(t, err)

		allowed, err := a.Allowed(ctx, "read", map[string]interface{}{"id": "p1"})
		require.Nil(t, err)
		assert.True(t, allowed)

		allowed, err = a.Allowed(ctx, "create", map[string]interface{}{"title": "fine"})
		require.Nil(t, err)
		assert.True(t, allowed)

		allowed, err = a.Allowed(ctx, "create", map[string]interface{}{"title": "forbidden"})
		require.Nil(t, err)
		assert.False(t, allowed)

		allowed, err = a.Allowed(ctx, "delete", map[string]interface{}{"id": "p1"})
		require.Nil(t, err)
		assert.False(t, allowed)
	})

	t.Run("undefined allow denies", func(t *testing.T) {
		a, err := New(ctx, "Post", "package access\n\nallow {\n\tinput.operation == \"read\"\n}\n")
		require.Nil(t, err)
		allowed, err := a.Allowed(ctx, "delete", nil)
		require.Nil(t, err)
		assert.False(t, allowed)
	})

	t.Run("invalid module", func(t *testing.T) {
		_, err := New(ctx, "Post", "package access\n\nallow {")
		assert.NotNil(t, err)
	})
}
