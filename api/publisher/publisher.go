package publisher

import (
	"context"
	"fmt"

	cbornode "github.com/ipfs/go-ipld-cbor"
	logging "github.com/ipfs/go-log"

	"github.com/evvvvil/keystone-5-fields-cloudinary-image/cms"
	"github.com/evvvvil/keystone-5-fields-cloudinary-image/cms/fields"
)

var logger = logging.Logger("publisher")

func init() {
	cbornode.RegisterCborType(ChangeMessage{})
	cbornode.RegisterCborType(BlockChange{})
}

// ChangeMessage is sent to the message queue for every write.
type ChangeMessage struct {
	List      string
	Operation string
	Item      map[string]interface{}
	Blocks    map[string]BlockChange
}

// BlockChange lists the ids of the auxiliary items a content block wrote.
type BlockChange struct {
	Created      []string
	Connected    []string
	Disconnected []string
}

// Topic is where changes to an item are published.
func Topic(list, id string) string {
	return fmt.Sprintf("public/lists/%s/%s", list, id)
}

func toMessage(evt cms.ChangeEvent) *ChangeMessage {
	msg := &ChangeMessage{
		List:      evt.ListKey,
		Operation: string(evt.Operation),
		Item:      map[string]interface{}(evt.Item),
		Blocks:    make(map[string]BlockChange),
	}
	for path, result := range evt.Blocks {
		nested, ok := result.(*fields.NestedResult)
		if !ok || nested == nil {
			continue
		}
		change := BlockChange{Disconnected: nested.Disconnect}
		for _, item := range nested.Create {
			change.Created = append(change.Created, item.ID())
		}
		for _, item := range nested.Connect {
			change.Connected = append(change.Connected, item.ID())
		}
		msg.Blocks[path] = change
	}
	return msg
}

// MessageQueueFunc is the most basic "message queue" function - the edge of the internal system that takes a topic and bytes
// and sends them along
type MessageQueueFunc func(ctx context.Context, topic string, bits []byte) error

// StartPublishing starts a goroutine encoding every change event sent on
// the returned channel and handing it to publishFunc. The goroutine stops
// when ctx is done. Publishing is best effort: failures are logged.
func StartPublishing(ctx context.Context, publishFunc MessageQueueFunc) (chan<- cms.ChangeEvent, error) {
	updateCh := make(chan cms.ChangeEvent, 2)
	go func() {
		for {
			var evt cms.ChangeEvent
			select {
			case <-ctx.Done():
				return
			case evt = <-updateCh:
			}

			bits, err := cbornode.DumpObject(toMessage(evt))
			if err != nil {
				logger.Errorf("error encoding %s %s: %v", evt.ListKey, evt.Item.ID(), err)
				continue
			}
			err = publishFunc(ctx, Topic(evt.ListKey, evt.Item.ID()), bits)
			if err != nil {
				logger.Errorf("error publishing: %v", err)
				continue
			}
		}
	}()
	return updateCh, nil
}
