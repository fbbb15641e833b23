package cms

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"
	logging "github.com/ipfs/go-log"

	"github.com/evvvvil/keystone-5-fields-cloudinary-image/cms/gqlschema"
)

var logger = logging.Logger("cms")

type Operation string

const (
	OperationCreate Operation = "create"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
)

// ChangeEvent is emitted after every successful write. Events of nested
// writes are emitted once the outermost write succeeds, before its own.
type ChangeEvent struct {
	ListKey   string
	Operation Operation
	Item      Item
	// Blocks holds what content blocks wrote during the mutation, keyed by
	// block path.
	Blocks map[string]interface{}
}

// ChangeFunc receives change events synchronously, implement your own
// channel sender if you'd prefer async.
type ChangeFunc func(ChangeEvent)

// Config is used to configure a new Registry
type Config struct {
	Store    Store
	OnChange ChangeFunc
}

type pendingList struct {
	done chan struct{}
	list *List
	err  error
}

// Registry owns every list of a schema. Lists are created during the
// compile phase; Compile freezes the registry so no list can be added once
// requests are served.
type Registry struct {
	lock     sync.Mutex
	store    Store
	onChange ChangeFunc

	lists   map[string]*List
	order   []string
	pending map[string]*pendingList
	frozen  bool
	schema  *gqlschema.Schema
}

func NewRegistry(config *Config) *Registry {
	return &Registry{
		store:    config.Store,
		onChange: config.OnChange,
		lists:    make(map[string]*List),
		pending:  make(map[string]*pendingList),
	}
}

// ListByKey returns the list or nil.
func (r *Registry) ListByKey(key string) *List {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.lists[key]
}

// Lists returns every list in creation order.
func (r *Registry) Lists() []*List {
	r.lock.Lock()
	defer r.lock.Unlock()
	lists := make([]*List, len(r.order))
	for i, key := range r.order {
		lists[i] = r.lists[key]
	}
	return lists
}

// CreateList registers and initialises a list. The list is visible through
// ListByKey while its fields are built, so fields can look up the list they
// belong to.
func (r *Registry) CreateList(ctx context.Context, key string, cfg ListConfig) (*List, error) {
	store := cfg.Store
	if store == nil {
		store = r.store
	}
	if store == nil {
		return nil, &ConfigError{ListKey: key, Message: "no store configured"}
	}

	l := &List{
		key:          key,
		registry:     r,
		store:        store,
		schemaDoc:    cfg.SchemaDoc,
		fieldsByPath: make(map[string]Field),
	}

	r.lock.Lock()
	if r.frozen {
		r.lock.Unlock()
		return nil, fmt.Errorf("creating %s: %w", key, ErrRegistryFrozen)
	}
	if _, ok := r.lists[key]; ok {
		r.lock.Unlock()
		return nil, fmt.Errorf("creating %s: %w", key, ErrListExists)
	}
	r.lists[key] = l
	r.order = append(r.order, key)
	r.lock.Unlock()

	if err := l.initFields(ctx, cfg); err != nil {
		r.remove(key)
		return nil, err
	}
	logger.Debugf("created list %s with %d fields", key, len(l.fields))
	return l, nil
}

func (r *Registry) remove(key string) {
	r.lock.Lock()
	defer r.lock.Unlock()
	delete(r.lists, key)
	for i, k := range r.order {
		if k == key {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// GetOrCreate returns the list registered under key, creating it from
// factory if it does not exist yet. Concurrent callers asking for the same
// key wait for the first one; the factory runs at most once per key. The
// factory must not ask for its own key.
func (r *Registry) GetOrCreate(ctx context.Context, key string, factory func() ListConfig) (*List, error) {
	r.lock.Lock()
	if l, ok := r.lists[key]; ok {
		r.lock.Unlock()
		return l, nil
	}
	if p, ok := r.pending[key]; ok {
		r.lock.Unlock()
		<-p.done
		return p.list, p.err
	}
	p := &pendingList{done: make(chan struct{})}
	r.pending[key] = p
	r.lock.Unlock()

	p.list, p.err = r.CreateList(ctx, key, factory())

	r.lock.Lock()
	delete(r.pending, key)
	r.lock.Unlock()
	close(p.done)
	return p.list, p.err
}

func (r *Registry) emit(evt ChangeEvent) {
	if r.onChange != nil {
		r.onChange(evt)
	}
}

// Scalars are the Go implementations of custom scalars used by fields.
var Scalars = map[string]*graphql.Scalar{
	"Upload": UploadScalar,
}

// UploadScalar accepts *Upload values (multipart requests) and strings
// (remote URLs or data URIs forwarded to the file adapter).
var UploadScalar = graphql.NewScalar(graphql.ScalarConfig{
	Name: "Upload",
	Serialize: func(value interface{}) interface{} {
		return nil
	},
	ParseValue: parseUpload,
	ParseLiteral: func(valueAST ast.Value) interface{} {
		if sv, ok := valueAST.(*ast.StringValue); ok {
			return parseUpload(sv.Value)
		}
		return nil
	},
})

func parseUpload(value interface{}) interface{} {
	switch v := value.(type) {
	case *Upload:
		return v
	case Upload:
		return &v
	case string:
		if v == "" {
			return nil
		}
		return &Upload{Source: v, Filename: sourceFilename(v)}
	}
	return nil
}

func sourceFilename(source string) string {
	if strings.HasPrefix(source, "data:") {
		return ""
	}
	if i := strings.IndexAny(source, "?#"); i >= 0 {
		source = source[:i]
	}
	if i := strings.LastIndex(source, "/"); i >= 0 {
		return source[i+1:]
	}
	return source
}

// Compile builds the GraphQL schema from every list and freezes the
// registry. A failed compile leaves the registry open so the offending
// lists can be fixed up.
func (r *Registry) Compile(ctx context.Context) (*gqlschema.Schema, error) {
	lists := r.Lists()
	for _, l := range lists {
		for _, f := range l.fields {
			if c, ok := f.(Checker); ok {
				if err := c.Check(); err != nil {
					return nil, err
				}
			}
		}
	}

	frags := gqlschema.NewFragments()
	resolvers := make(gqlschema.Resolvers)
	var queries, mutations []string
	for _, l := range lists {
		l.gqlTypes(frags)
		l.gqlResolvers(resolvers)
		queries = append(queries, l.gqlQueries()...)
		mutations = append(mutations, l.gqlMutations()...)
	}
	if len(queries) == 0 {
		return nil, &ConfigError{Message: "no lists defined"}
	}
	frags.Add(fmt.Sprintf("type Query {\n  %s\n}", strings.Join(queries, "\n  ")))
	frags.Add(fmt.Sprintf("type Mutation {\n  %s\n}", strings.Join(mutations, "\n  ")))

	schema, err := gqlschema.Compile(frags, resolvers, Scalars)
	if err != nil {
		return nil, fmt.Errorf("error compiling schema: %w", err)
	}
	logger.Infof("compiled schema for %d lists", len(lists))

	r.lock.Lock()
	r.frozen = true
	r.schema = schema
	r.lock.Unlock()
	return schema, nil
}

// Schema returns the compiled schema, nil before Compile.
func (r *Registry) Schema() *gqlschema.Schema {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.schema
}

// AdminMeta describes every list and field for the admin UI.
func (r *Registry) AdminMeta() map[string]interface{} {
	lists := make(map[string]interface{})
	for _, l := range r.Lists() {
		lists[l.key] = l.adminMeta()
	}
	return map[string]interface{}{"lists": lists}
}
