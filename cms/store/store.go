package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/ipfs/go-datastore"
	"github.com/ipfs/go-datastore/query"
	dssync "github.com/ipfs/go-datastore/sync"
	cbornode "github.com/ipfs/go-ipld-cbor"
	logging "github.com/ipfs/go-log"
	dynamods "github.com/quorumcontrol/go-ds-dynamodb"

	"github.com/evvvvil/keystone-5-fields-cloudinary-image/cms"
)

var logger = logging.Logger("store")

var listsPrefix = datastore.NewKey("lists")

// assert fulfills the interface at compile time
var _ cms.Store = (*Datastore)(nil)

// Datastore keeps list items in a go-datastore, one CBOR encoded entry per
// item under /lists/<listKey>/<id>.
type Datastore struct {
	ds     datastore.Batching
	naming cms.NamingStrategy
}

func New(ds datastore.Batching, naming cms.NamingStrategy) *Datastore {
	return &Datastore{ds: ds, naming: naming}
}

// NewMemoryStore returns an in-process store, used for tests and the local
// server.
func NewMemoryStore() *Datastore {
	return New(dssync.MutexWrap(datastore.NewMapDatastore()), cms.NamingDefault)
}

// NewDynamoStore returns a store backed by a DynamoDB table. DynamoDB
// deployments use prefixed list keys.
func NewDynamoStore(tableName string) (*Datastore, error) {
	dynds, err := dynamods.NewDynamoDatastore(dynamods.Config{
		TableName: tableName,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating dynamo datastore: %w", err)
	}
	return New(dynds, cms.NamingPrefixed), nil
}

func (d *Datastore) NamingStrategy() cms.NamingStrategy {
	return d.naming
}

func listKey(list string) datastore.Key {
	return listsPrefix.ChildString(list)
}

func itemKey(list, id string) datastore.Key {
	return listKey(list).ChildString(id)
}

func (d *Datastore) Get(_ context.Context, list string, id string) (cms.Item, error) {
	bits, err := d.ds.Get(itemKey(list, id))
	if err != nil {
		if err == datastore.ErrNotFound {
			return nil, cms.ErrNotFound
		}
		return nil, fmt.Errorf("error getting %s/%s: %w", list, id, err)
	}
	return decodeItem(bits)
}

func (d *Datastore) Put(_ context.Context, list string, item cms.Item) error {
	id := item.ID()
	if id == "" {
		return fmt.Errorf("item for %s has no id", list)
	}
	bits, err := cbornode.DumpObject(map[string]interface{}(item))
	if err != nil {
		return fmt.Errorf("error encoding %s/%s: %w", list, id, err)
	}
	logger.Debugf("put %s/%s (%d bytes)", list, id, len(bits))
	return d.ds.Put(itemKey(list, id), bits)
}

func (d *Datastore) Delete(_ context.Context, list string, id string) error {
	err := d.ds.Delete(itemKey(list, id))
	if err != nil && err != datastore.ErrNotFound {
		return fmt.Errorf("error deleting %s/%s: %w", list, id, err)
	}
	return nil
}

func (d *Datastore) All(_ context.Context, list string) ([]cms.Item, error) {
	prefix := listKey(list).String()
	results, err := d.ds.Query(query.Query{Prefix: prefix})
	if err != nil {
		return nil, fmt.Errorf("error querying %s: %w", list, err)
	}
	entries, err := results.Rest()
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", list, err)
	}

	items := make([]cms.Item, 0, len(entries))
	for _, entry := range entries {
		// a prefix query for /lists/Post also matches /lists/PostTag
		if !strings.HasPrefix(entry.Key, prefix+"/") {
			continue
		}
		item, err := decodeItem(entry.Value)
		if err != nil {
			return nil, fmt.Errorf("error decoding %s: %w", entry.Key, err)
		}
		items = append(items, item)
	}
	return items, nil
}

func decodeItem(bits []byte) (cms.Item, error) {
	m := make(map[string]interface{})
	if err := cbornode.DecodeInto(bits, &m); err != nil {
		return nil, fmt.Errorf("error decoding item: %w", err)
	}
	return normalize(m).(map[string]interface{}), nil
}

// normalize turns the map[interface{}]interface{} values CBOR decoding can
// produce into map[string]interface{} so resolvers see one map type.
func normalize(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		for k, inner := range val {
			val[k] = normalize(inner)
		}
		return val
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, inner := range val {
			out[fmt.Sprint(k)] = normalize(inner)
		}
		return out
	case []interface{}:
		for i, inner := range val {
			val[i] = normalize(inner)
		}
		return val
	default:
		return v
	}
}
