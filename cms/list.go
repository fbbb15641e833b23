package cms

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/graphql-go/graphql"

	"github.com/evvvvil/keystone-5-fields-cloudinary-image/cms/gqlschema"
	"github.com/evvvvil/keystone-5-fields-cloudinary-image/cms/policy"
)

// ListConfig declares a list.
type ListConfig struct {
	Fields map[string]FieldConfig
	// Access is a rego module in package "access"; empty allows everything.
	Access    string
	SchemaDoc string
	// Store overrides the registry's store for this list.
	Store Store
}

// List is a collection of items sharing a set of fields.
type List struct {
	key       string
	registry  *Registry
	store     Store
	access    *policy.Access
	schemaDoc string

	fields       []Field
	fieldsByPath map[string]Field
	injected     map[string]FieldConfig
}

func (l *List) Key() string { return l.key }

// Store returns the store the list's items live in.
func (l *List) Store() Store { return l.store }

func (l *List) Fields() []Field { return l.fields }

func (l *List) Field(path string) (Field, bool) {
	f, ok := l.fieldsByPath[path]
	return f, ok
}

func (l *List) initFields(ctx context.Context, cfg ListConfig) error {
	access, err := policy.New(ctx, l.key, cfg.Access)
	if err != nil {
		return &ConfigError{ListKey: l.key, Message: err.Error()}
	}
	l.access = access

	if err := l.addFields(ctx, cfg.Fields); err != nil {
		return err
	}

	for _, f := range append([]Field(nil), l.fields...) {
		injector, ok := f.(FieldInjector)
		if !ok {
			continue
		}
		if err := l.injectFields(ctx, injector.InjectedFields()); err != nil {
			return err
		}
	}
	return nil
}

// injectFields adds fields contributed by other fields. Several content
// fields embedding the same block inject the same field; it is added once.
func (l *List) injectFields(ctx context.Context, configs map[string]FieldConfig) error {
	fresh := make(map[string]FieldConfig, len(configs))
	for path, fc := range configs {
		prev, injected := l.injected[path]
		if !injected {
			fresh[path] = fc
			continue
		}
		if prev.Type != fc.Type || prev.Ref != fc.Ref || prev.Many != fc.Many {
			return &ConfigError{ListKey: l.key, Path: path, Message: "injected twice with different definitions"}
		}
		logger.Debugf("%s.%s already injected", l.key, path)
	}
	if err := l.addFields(ctx, fresh); err != nil {
		return err
	}
	if l.injected == nil {
		l.injected = make(map[string]FieldConfig)
	}
	for path, fc := range fresh {
		l.injected[path] = fc
	}
	return nil
}

func (l *List) addFields(ctx context.Context, configs map[string]FieldConfig) error {
	paths := make([]string, 0, len(configs))
	for path := range configs {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		fc := configs[path]
		if path == "id" {
			return &ConfigError{ListKey: l.key, Path: path, Message: "the id field is reserved"}
		}
		if _, ok := l.fieldsByPath[path]; ok {
			return &ConfigError{ListKey: l.key, Path: path, Message: "field is declared more than once"}
		}
		if fc.Type == nil || fc.Type.New == nil {
			return &ConfigError{ListKey: l.key, Path: path, Message: "field has no type"}
		}
		f, err := fc.Type.New(FieldContext{
			Context:  ctx,
			ListKey:  l.key,
			Path:     path,
			Config:   fc,
			Registry: l.registry,
		})
		if err != nil {
			return err
		}
		l.fields = append(l.fields, f)
		l.fieldsByPath[path] = f
	}
	return nil
}

func (l *List) checkAccess(ctx context.Context, operation string, item map[string]interface{}) error {
	allowed, err := l.access.Allowed(ctx, operation, item)
	if err != nil {
		return fmt.Errorf("error checking access to %s: %w", l.key, err)
	}
	if !allowed {
		return fmt.Errorf("%s %s: %w", operation, l.key, ErrAccessDenied)
	}
	return nil
}

// Create resolves data field by field and stores the resulting item. When
// any part of the write fails, nested writes it made are undone.
func (l *List) Create(ctx context.Context, data map[string]interface{}, opts ...CreateOption) (Item, error) {
	co := &createOptions{}
	for _, opt := range opts {
		opt(co)
	}
	ctx, j := beginWrite(WithMutationState(ctx))

	item, err := l.create(ctx, j, data, co)
	if err != nil {
		j.rollback(ctx)
		return nil, err
	}
	j.commit(l.registry)
	return item, nil
}

func (l *List) create(ctx context.Context, j *journal, data map[string]interface{}, co *createOptions) (Item, error) {
	if err := l.checkAccess(ctx, "create", data); err != nil {
		return nil, err
	}

	id := uuid.New().String()
	item := Item{"id": id}
	for _, f := range l.fields {
		path := f.Path()
		if v, ok := co.preset[path]; ok {
			item[path] = v
			continue
		}
		val, err := f.ResolveInput(ctx, ResolveInputParams{ItemID: id, Value: data[path]})
		if err != nil {
			return nil, fmt.Errorf("error resolving %s.%s: %w", l.key, path, err)
		}
		if val == nil {
			val = f.DefaultValue()
		}
		if val == nil {
			if f.IsRequired() {
				return nil, &ValidationError{ListKey: l.key, Path: path, Message: "required field is missing"}
			}
			continue
		}
		item[path] = val
	}

	if err := l.store.Put(ctx, l.key, item); err != nil {
		return nil, fmt.Errorf("error storing %s: %w", l.key, err)
	}
	j.onRollback(func(ctx context.Context) error {
		return l.store.Delete(ctx, l.key, id)
	})
	logger.Debugf("created %s %s", l.key, id)

	j.record(ChangeEvent{
		ListKey:   l.key,
		Operation: OperationCreate,
		Item:      item,
		Blocks:    l.reportChange(ctx),
	})
	return item, nil
}

// UpdateFromInput resolves the fields present in data against the stored
// item. Absent fields keep their value and explicit nulls clear them.
func (l *List) UpdateFromInput(ctx context.Context, id string, data map[string]interface{}) (Item, error) {
	ctx, j := beginWrite(WithMutationState(ctx))

	item, err := l.updateFromInput(ctx, j, id, data)
	if err != nil {
		j.rollback(ctx)
		return nil, err
	}
	j.commit(l.registry)
	return item, nil
}

func (l *List) updateFromInput(ctx context.Context, j *journal, id string, data map[string]interface{}) (Item, error) {
	stored, err := l.store.Get(ctx, l.key, id)
	if err != nil {
		return nil, err
	}
	if err := l.checkAccess(ctx, "update", stored); err != nil {
		return nil, err
	}

	item := stored.Copy()
	for _, f := range l.fields {
		path := f.Path()
		raw, ok := data[path]
		if !ok {
			continue
		}
		val, err := f.ResolveInput(ctx, ResolveInputParams{
			ItemID:   id,
			Value:    raw,
			Existing: stored[path],
			Update:   true,
		})
		if err != nil {
			return nil, fmt.Errorf("error resolving %s.%s: %w", l.key, path, err)
		}
		if val == nil {
			if f.IsRequired() {
				return nil, &ValidationError{ListKey: l.key, Path: path, Message: "required field cannot be cleared"}
			}
			delete(item, path)
			continue
		}
		item[path] = val
	}

	if err := l.Update(ctx, item); err != nil {
		return nil, err
	}
	logger.Debugf("updated %s %s", l.key, id)

	j.record(ChangeEvent{
		ListKey:   l.key,
		Operation: OperationUpdate,
		Item:      item,
		Blocks:    l.reportChange(ctx),
	})
	return item, nil
}

func (l *List) reportChange(ctx context.Context) map[string]interface{} {
	var report map[string]interface{}
	for _, f := range l.fields {
		reporter, ok := f.(ChangeReporter)
		if !ok {
			continue
		}
		for k, v := range reporter.ReportChange(ctx) {
			if report == nil {
				report = make(map[string]interface{})
			}
			report[k] = v
		}
	}
	return report
}

// Get returns the item or ErrNotFound. Items hidden by the access policy
// are reported as not found.
func (l *List) Get(ctx context.Context, id string) (Item, error) {
	item, err := l.store.Get(ctx, l.key, id)
	if err != nil {
		return nil, err
	}
	allowed, err := l.access.Allowed(ctx, "read", item)
	if err != nil {
		return nil, fmt.Errorf("error checking access to %s: %w", l.key, err)
	}
	if !allowed {
		return nil, ErrNotFound
	}
	return item, nil
}

// All returns every readable item, ordered by id.
func (l *List) All(ctx context.Context) ([]Item, error) {
	items, err := l.store.All(ctx, l.key)
	if err != nil {
		return nil, err
	}
	readable := items[:0]
	for _, item := range items {
		allowed, err := l.access.Allowed(ctx, "read", item)
		if err != nil {
			return nil, fmt.Errorf("error checking access to %s: %w", l.key, err)
		}
		if allowed {
			readable = append(readable, item)
		}
	}
	sort.Slice(readable, func(i, j int) bool {
		return readable[i].ID() < readable[j].ID()
	})
	return readable, nil
}

// Update stores item as-is. It is used by fields maintaining the other
// side of a relationship and skips input resolution. Inside a write the
// previous version is restored if the write fails.
func (l *List) Update(ctx context.Context, item Item) error {
	if j := journalFromContext(ctx); j != nil {
		prev, err := l.store.Get(ctx, l.key, item.ID())
		switch {
		case err == ErrNotFound:
			j.onRollback(func(ctx context.Context) error {
				return l.store.Delete(ctx, l.key, item.ID())
			})
		case err != nil:
			return err
		default:
			j.onRollback(func(ctx context.Context) error {
				return l.store.Put(ctx, l.key, prev)
			})
		}
	}
	if err := l.store.Put(ctx, l.key, item); err != nil {
		return fmt.Errorf("error storing %s: %w", l.key, err)
	}
	return nil
}

// Delete removes the item and returns it. Items deleted along with it by
// relationship hooks come back if any of them fails.
func (l *List) Delete(ctx context.Context, id string) (Item, error) {
	ctx, j := beginWrite(ctx)

	item, err := l.delete(ctx, j, id)
	if err != nil {
		j.rollback(ctx)
		return nil, err
	}
	j.commit(l.registry)
	return item, nil
}

func (l *List) delete(ctx context.Context, j *journal, id string) (Item, error) {
	item, err := l.store.Get(ctx, l.key, id)
	if err != nil {
		return nil, err
	}
	if err := l.checkAccess(ctx, "delete", item); err != nil {
		return nil, err
	}
	for _, f := range l.fields {
		if bd, ok := f.(BeforeDeleter); ok {
			if err := bd.BeforeDelete(ctx, item); err != nil {
				return nil, fmt.Errorf("error deleting %s.%s: %w", l.key, f.Path(), err)
			}
		}
	}
	if err := l.store.Delete(ctx, l.key, id); err != nil {
		return nil, err
	}
	j.onRollback(func(ctx context.Context) error {
		return l.store.Put(ctx, l.key, item)
	})
	logger.Debugf("deleted %s %s", l.key, id)

	j.record(ChangeEvent{
		ListKey:   l.key,
		Operation: OperationDelete,
		Item:      item,
	})
	return item, nil
}

type createOptions struct {
	preset map[string]interface{}
}

type CreateOption func(*createOptions)

// WithPreset stores value at path without resolving any input for it.
func WithPreset(path string, value interface{}) CreateOption {
	return func(co *createOptions) {
		if co.preset == nil {
			co.preset = make(map[string]interface{})
		}
		co.preset[path] = value
	}
}

// GraphQL naming

func (l *List) GqlTypeName() string        { return l.key }
func (l *List) GqlWhereUniqueInput() string { return l.key + "WhereUniqueInput" }
func (l *List) GqlCreateInput() string      { return l.key + "CreateInput" }
func (l *List) GqlListQueryName() string    { return "all" + l.key + "s" }
func (l *List) GqlItemQueryName() string    { return l.key }
func (l *List) GqlUpdateInput() string      { return l.key + "UpdateInput" }
func (l *List) GqlCreateMutationName() string {
	return "create" + l.key
}
func (l *List) GqlUpdateMutationName() string {
	return "update" + l.key
}
func (l *List) GqlDeleteMutationName() string {
	return "delete" + l.key
}

func (l *List) createInputFields() []string {
	var lines []string
	for _, f := range l.fields {
		lines = append(lines, f.GqlCreateInputFields()...)
	}
	return lines
}

func docComment(doc string) string {
	if doc == "" {
		return ""
	}
	return `""" ` + doc + ` """` + "\n  "
}

// gqlTypes adds the list's type definitions and those of its fields.
func (l *List) gqlTypes(frags *gqlschema.Fragments) {
	sb := &strings.Builder{}
	if l.schemaDoc != "" {
		fmt.Fprintf(sb, "\"\"\" %s \"\"\"\n", l.schemaDoc)
	}
	fmt.Fprintf(sb, "type %s {\n  id: ID!\n", l.GqlTypeName())
	for _, f := range l.fields {
		for i, line := range f.GqlOutputFields() {
			if i == 0 {
				line = docComment(f.SchemaDoc()) + line
			}
			fmt.Fprintf(sb, "  %s\n", line)
		}
	}
	sb.WriteString("}")
	frags.Add(sb.String())

	frags.Add(fmt.Sprintf("input %s {\n  id: ID!\n}", l.GqlWhereUniqueInput()))
	if inputs := l.createInputFields(); len(inputs) > 0 {
		frags.Add(fmt.Sprintf("input %s {\n  %s\n}", l.GqlCreateInput(), strings.Join(inputs, "\n  ")))

		// nothing is required on update
		updates := make([]string, len(inputs))
		for i, line := range inputs {
			updates[i] = strings.TrimSuffix(line, "!")
		}
		frags.Add(fmt.Sprintf("input %s {\n  %s\n}", l.GqlUpdateInput(), strings.Join(updates, "\n  ")))
	}

	for _, f := range l.fields {
		frags.Add(f.GqlAuxTypes()...)
	}
}

func (l *List) gqlQueries() []string {
	return []string{
		fmt.Sprintf("%s: [%s!]!", l.GqlListQueryName(), l.GqlTypeName()),
		fmt.Sprintf("%s(where: %s!): %s", l.GqlItemQueryName(), l.GqlWhereUniqueInput(), l.GqlTypeName()),
	}
}

func (l *List) gqlMutations() []string {
	create := fmt.Sprintf("%s: %s", l.GqlCreateMutationName(), l.GqlTypeName())
	update := fmt.Sprintf("%s(id: ID!): %s", l.GqlUpdateMutationName(), l.GqlTypeName())
	if len(l.createInputFields()) > 0 {
		create = fmt.Sprintf("%s(data: %s): %s", l.GqlCreateMutationName(), l.GqlCreateInput(), l.GqlTypeName())
		update = fmt.Sprintf("%s(id: ID!, data: %s): %s", l.GqlUpdateMutationName(), l.GqlUpdateInput(), l.GqlTypeName())
	}
	return []string{
		create,
		update,
		fmt.Sprintf("%s(id: ID!): %s", l.GqlDeleteMutationName(), l.GqlTypeName()),
	}
}

func (l *List) gqlResolvers(resolvers gqlschema.Resolvers) {
	for _, f := range l.fields {
		for name, fn := range f.GqlOutputFieldResolvers() {
			resolvers.Add(l.GqlTypeName(), name, fn)
		}
		resolvers.Merge(f.GqlAuxFieldResolvers())
	}

	resolvers.Add("Query", l.GqlListQueryName(), func(p graphql.ResolveParams) (interface{}, error) {
		return l.All(p.Context)
	})
	resolvers.Add("Query", l.GqlItemQueryName(), func(p graphql.ResolveParams) (interface{}, error) {
		where, _ := p.Args["where"].(map[string]interface{})
		id, _ := where["id"].(string)
		item, err := l.Get(p.Context, id)
		if err == ErrNotFound {
			return nil, nil
		}
		return item, err
	})
	resolvers.Add("Mutation", l.GqlCreateMutationName(), func(p graphql.ResolveParams) (interface{}, error) {
		data, _ := p.Args["data"].(map[string]interface{})
		return l.Create(p.Context, data)
	})
	resolvers.Add("Mutation", l.GqlUpdateMutationName(), func(p graphql.ResolveParams) (interface{}, error) {
		id, _ := p.Args["id"].(string)
		data, _ := p.Args["data"].(map[string]interface{})
		item, err := l.UpdateFromInput(p.Context, id, data)
		if err == ErrNotFound {
			return nil, nil
		}
		return item, err
	})
	resolvers.Add("Mutation", l.GqlDeleteMutationName(), func(p graphql.ResolveParams) (interface{}, error) {
		id, _ := p.Args["id"].(string)
		item, err := l.Delete(p.Context, id)
		if err == ErrNotFound {
			return nil, nil
		}
		return item, err
	})
}

func (l *List) adminMeta() map[string]interface{} {
	fields := make([]map[string]interface{}, 0, len(l.fields))
	for _, f := range l.fields {
		fields = append(fields, AdminMeta(f))
	}
	return map[string]interface{}{
		"key":    l.key,
		"label":  Label(l.key),
		"fields": fields,
	}
}
