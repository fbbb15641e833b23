package publisher

import (
	"context"
	"testing"
	"time"

	cbornode "github.com/ipfs/go-ipld-cbor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evvvvil/keystone-5-fields-cloudinary-image/cms"
	"github.com/evvvvil/keystone-5-fields-cloudinary-image/cms/fields"
)

func testEvent() cms.ChangeEvent {
	return cms.ChangeEvent{
		ListKey:   "Post",
		Operation: cms.OperationCreate,
		Item:      cms.Item{"id": "p1", "title": "hello"},
		Blocks: map[string]interface{}{
			"cloudinaryImages": &fields.NestedResult{
				Create:     []cms.Item{{"id": "i1"}, {"id": "i2"}},
				Connect:    []cms.Item{{"id": "i3"}},
				Disconnect: []string{"i4"},
			},
			"nothing": nil,
		},
	}
}

func TestToMessage(t *testing.T) {
	msg := toMessage(testEvent())
	assert.Equal(t, "Post", msg.List)
	assert.Equal(t, "create", msg.Operation)
	assert.Equal(t, "hello", msg.Item["title"])
	assert.Equal(t, map[string]BlockChange{
		"cloudinaryImages": {
			Created:      []string{"i1", "i2"},
			Connected:    []string{"i3"},
			Disconnected: []string{"i4"},
		},
	}, msg.Blocks)
}

func TestStartPublishing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type published struct {
		topic string
		bits  []byte
	}
	resp := make(chan published, 1)
	ch, err := StartPublishing(ctx, func(ctx context.Context, topic string, bits []byte) error {
		resp <- published{topic: topic, bits: bits}
		return nil
	})
	require.Nil(t, err)

	ch <- testEvent()

	select {
	case p := <-resp:
		assert.Equal(t, "public/lists/Post/p1", p.topic)
		msg := &ChangeMessage{}
		require.Nil(t, cbornode.DecodeInto(p.bits, msg))
		assert.Equal(t, "Post", msg.List)
		assert.Equal(t, "p1", msg.Item["id"])
		assert.Equal(t, []string{"i1", "i2"}, msg.Blocks["cloudinaryImages"].Created)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for publish")
	}
}
