package fields

import (
	"context"
	"fmt"
	"strings"

	"github.com/graphql-go/graphql"
	logging "github.com/ipfs/go-log"

	"github.com/evvvvil/keystone-5-fields-cloudinary-image/cms"
)

var logger = logging.Logger("fields")

var Relationship = &cms.FieldType{
	Type: "Relationship",
	New: func(fc cms.FieldContext) (cms.Field, error) {
		return NewRelationship(fc)
	},
	Views: map[string]string{
		"Controller": "@keystonejs/fields/types/Relationship/views/Controller",
		"Field":      "@keystonejs/fields/types/Relationship/views/Field",
		"Cell":       "@keystonejs/fields/types/Relationship/views/Cell",
	},
}

// NestedResult is what a nested relationship mutation wrote.
type NestedResult struct {
	Create     []cms.Item
	Connect    []cms.Item
	Disconnect []string
	// DisconnectAll drops every previously related item.
	DisconnectAll bool
	// Value is what the relationship field stores: an id, or a list of ids
	// for many relationships.
	Value interface{}
}

// RelationshipImplementation references items of another list by id. With
// a "List.field" ref the relationship is two-sided and both ends are kept in
// sync.
type RelationshipImplementation struct {
	cms.Implementation
	refListKey   string
	refFieldPath string
	many         bool
}

func NewRelationship(fc cms.FieldContext) (*RelationshipImplementation, error) {
	ref := fc.Config.Ref
	if ref == "" {
		return nil, &cms.ConfigError{ListKey: fc.ListKey, Path: fc.Path, Message: "relationship needs a ref"}
	}
	refList, refField := ref, ""
	if i := strings.Index(ref, "."); i >= 0 {
		refList, refField = ref[:i], ref[i+1:]
	}
	return &RelationshipImplementation{
		Implementation: cms.NewImplementation(fc),
		refListKey:     refList,
		refFieldPath:   refField,
		many:           fc.Config.Many,
	}, nil
}

func (r *RelationshipImplementation) RefListKey() string   { return r.refListKey }
func (r *RelationshipImplementation) RefFieldPath() string { return r.refFieldPath }
func (r *RelationshipImplementation) Many() bool           { return r.many }

func (r *RelationshipImplementation) refList() (*cms.List, error) {
	l := r.Registry().ListByKey(r.refListKey)
	if l == nil {
		return nil, fmt.Errorf("unknown list %s", r.refListKey)
	}
	return l, nil
}

// refField returns the other side of a two-sided relationship.
func (r *RelationshipImplementation) refField() (relationship, bool) {
	if r.refFieldPath == "" {
		return nil, false
	}
	l := r.Registry().ListByKey(r.refListKey)
	if l == nil {
		return nil, false
	}
	f, ok := l.Field(r.refFieldPath)
	if !ok {
		return nil, false
	}
	rel, ok := f.(relationship)
	return rel, ok
}

// relationship is satisfied by RelationshipImplementation and by types
// embedding it.
type relationship interface {
	cms.Field
	Many() bool
	RefListKey() string
}

func (r *RelationshipImplementation) Check() error {
	l := r.Registry().ListByKey(r.refListKey)
	if l == nil {
		return &cms.ConfigError{ListKey: r.ListKey(), Path: r.Path(), Message: fmt.Sprintf("ref list %s does not exist", r.refListKey)}
	}
	if r.refFieldPath == "" {
		return nil
	}
	other, ok := r.refField()
	if !ok {
		return &cms.ConfigError{ListKey: r.ListKey(), Path: r.Path(), Message: fmt.Sprintf("ref field %s.%s is not a relationship", r.refListKey, r.refFieldPath)}
	}
	if other.RefListKey() != r.ListKey() {
		return &cms.ConfigError{ListKey: r.ListKey(), Path: r.Path(), Message: fmt.Sprintf("ref field %s.%s does not point back to %s", r.refListKey, r.refFieldPath, r.ListKey())}
	}
	return nil
}

func (r *RelationshipImplementation) relateInputType() string {
	if r.many {
		return r.refListKey + "RelateToManyInput"
	}
	return r.refListKey + "RelateToOneInput"
}

func (r *RelationshipImplementation) GqlOutputFields() []string {
	if r.many {
		return []string{fmt.Sprintf("%s: [%s!]!", r.Path(), r.refListKey)}
	}
	return []string{fmt.Sprintf("%s: %s", r.Path(), r.refListKey)}
}

func (r *RelationshipImplementation) GqlCreateInputFields() []string {
	return []string{fmt.Sprintf("%s: %s", r.Path(), r.relateInputType())}
}

func (r *RelationshipImplementation) GqlAuxTypes() []string {
	if r.many {
		return []string{fmt.Sprintf(`input %s {
  create: [%sCreateInput]
  connect: [%sWhereUniqueInput]
  disconnect: [%sWhereUniqueInput]
  disconnectAll: Boolean
}`, r.relateInputType(), r.refListKey, r.refListKey, r.refListKey)}
	}
	return []string{fmt.Sprintf(`input %s {
  create: %sCreateInput
  connect: %sWhereUniqueInput
  disconnect: %sWhereUniqueInput
  disconnectAll: Boolean
}`, r.relateInputType(), r.refListKey, r.refListKey, r.refListKey)}
}

func idsOf(v interface{}) []string {
	switch val := v.(type) {
	case string:
		if val == "" {
			return nil
		}
		return []string{val}
	case []string:
		return val
	case []interface{}:
		ids := make([]string, 0, len(val))
		for _, id := range val {
			if s, ok := id.(string); ok {
				ids = append(ids, s)
			}
		}
		return ids
	}
	return nil
}

func (r *RelationshipImplementation) GqlOutputFieldResolvers() map[string]graphql.FieldResolveFn {
	return map[string]graphql.FieldResolveFn{
		r.Path(): func(p graphql.ResolveParams) (interface{}, error) {
			src, _ := asItem(p.Source)
			ids := idsOf(src[r.Path()])
			refList, err := r.refList()
			if err != nil {
				return nil, err
			}
			items := make([]cms.Item, 0, len(ids))
			for _, id := range ids {
				item, err := refList.Get(p.Context, id)
				if err == cms.ErrNotFound {
					continue
				}
				if err != nil {
					return nil, err
				}
				items = append(items, item)
			}
			if r.many {
				return items, nil
			}
			if len(items) == 0 {
				return nil, nil
			}
			return items[0], nil
		},
	}
}

func (r *RelationshipImplementation) ResolveInput(ctx context.Context, params cms.ResolveInputParams) (interface{}, error) {
	ops, err := NestedOperations(params)
	if ops == nil || err != nil {
		return nil, err
	}
	result, err := r.ResolveNestedOperations(ctx, ops, params.ItemID)
	if err != nil {
		return nil, err
	}
	return r.ApplyNested(ctx, params, result)
}

// NestedOperations reads the relate-to input. A null on update drops
// every related item.
func NestedOperations(params cms.ResolveInputParams) (map[string]interface{}, error) {
	if params.Value == nil {
		if params.Update {
			return map[string]interface{}{"disconnectAll": true}, nil
		}
		return nil, nil
	}
	ops, ok := params.Value.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("expected nested operations, got %T", params.Value)
	}
	return ops, nil
}

// ApplyNested turns the result of nested operations into the value the
// field stores. On create that is the created and connected ids. On update
// the stored ids are the starting point: disconnects are dropped, new ids
// are added and items no longer related are unlinked.
func (r *RelationshipImplementation) ApplyNested(ctx context.Context, params cms.ResolveInputParams, result *NestedResult) (interface{}, error) {
	if !params.Update {
		return result.Value, nil
	}
	existing := idsOf(params.Existing)
	added := idsOf(result.Value)

	dropped := make(map[string]bool)
	if result.DisconnectAll {
		for _, id := range existing {
			dropped[id] = true
		}
	}
	for _, id := range result.Disconnect {
		dropped[id] = true
	}

	var value interface{}
	if r.many {
		var ids []interface{}
		seen := make(map[string]bool)
		for _, id := range append(append([]string(nil), existing...), added...) {
			if seen[id] || (dropped[id] && !contains(added, id)) {
				continue
			}
			seen[id] = true
			ids = append(ids, id)
		}
		if len(ids) > 0 {
			value = ids
		}
	} else {
		switch {
		case len(added) > 0:
			value = added[len(added)-1]
		case len(existing) > 0 && !dropped[existing[0]]:
			value = existing[0]
		}
	}

	kept := idsOf(value)
	var removed []string
	for _, id := range existing {
		if !contains(kept, id) {
			removed = append(removed, id)
		}
	}
	if err := r.unlink(ctx, params.ItemID, removed); err != nil {
		return nil, err
	}
	return value, nil
}

func contains(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

func asList(v interface{}) []interface{} {
	switch val := v.(type) {
	case nil:
		return nil
	case []interface{}:
		return val
	default:
		return []interface{}{val}
	}
}

// backReference is what the other side of a two-sided relationship stores
// to point at itemID.
func (r *RelationshipImplementation) backReference(itemID string) (string, interface{}, bool) {
	other, ok := r.refField()
	if !ok {
		return "", nil, false
	}
	if other.Many() {
		return other.Path(), []interface{}{itemID}, true
	}
	return other.Path(), itemID, true
}

// ResolveNestedOperations performs the operations of a nested mutation on
// behalf of the item itemID. Disconnects are applied first, so connecting
// and disconnecting the same item in one mutation leaves it connected.
func (r *RelationshipImplementation) ResolveNestedOperations(ctx context.Context, ops map[string]interface{}, itemID string) (*NestedResult, error) {
	refList, err := r.refList()
	if err != nil {
		return nil, err
	}
	result := &NestedResult{}

	for _, where := range asList(ops["disconnect"]) {
		w, _ := where.(map[string]interface{})
		if id, _ := w["id"].(string); id != "" {
			result.Disconnect = append(result.Disconnect, id)
		}
	}
	result.DisconnectAll, _ = ops["disconnectAll"].(bool)

	var opts []cms.CreateOption
	if path, value, ok := r.backReference(itemID); ok {
		opts = append(opts, cms.WithPreset(path, value))
	}
	for _, data := range asList(ops["create"]) {
		input, _ := data.(map[string]interface{})
		item, err := refList.Create(ctx, input, opts...)
		if err != nil {
			return nil, fmt.Errorf("error creating %s: %w", refList.Key(), err)
		}
		result.Create = append(result.Create, item)
	}

	for _, where := range asList(ops["connect"]) {
		w, _ := where.(map[string]interface{})
		id, _ := w["id"].(string)
		item, err := refList.Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("error connecting %s %s: %w", refList.Key(), id, err)
		}
		if err := r.linkBack(ctx, refList, item, itemID); err != nil {
			return nil, err
		}
		result.Connect = append(result.Connect, item)
	}

	var ids []interface{}
	for _, item := range append(append([]cms.Item(nil), result.Create...), result.Connect...) {
		ids = append(ids, item.ID())
	}
	if r.many {
		result.Value = ids
	} else if len(ids) > 0 {
		result.Value = ids[len(ids)-1]
	}
	logger.Debugf("nested %s.%s: %d created, %d connected, %d disconnected", r.ListKey(), r.Path(), len(result.Create), len(result.Connect), len(result.Disconnect))
	return result, nil
}

// linkBack points the other side of a two-sided relationship at itemID.
func (r *RelationshipImplementation) linkBack(ctx context.Context, refList *cms.List, item cms.Item, itemID string) error {
	other, ok := r.refField()
	if !ok {
		return nil
	}
	updated := item.Copy()
	if other.Many() {
		ids := idsOf(item[other.Path()])
		for _, id := range ids {
			if id == itemID {
				return nil
			}
		}
		updated[other.Path()] = append(toInterfaces(ids), itemID)
	} else {
		updated[other.Path()] = itemID
	}
	return refList.Update(ctx, updated)
}

// BeforeDelete keeps the other side of a two-sided relationship consistent.
func (r *RelationshipImplementation) BeforeDelete(ctx context.Context, item cms.Item) error {
	return r.unlink(ctx, item.ID(), idsOf(item[r.Path()]))
}

// unlink removes itemID from the other side of the relationship on each
// of ids. Items whose back reference is a required single relationship
// cannot exist without itemID and are deleted instead. Items that already
// point elsewhere are left alone.
func (r *RelationshipImplementation) unlink(ctx context.Context, itemID string, ids []string) error {
	other, ok := r.refField()
	if !ok || len(ids) == 0 {
		return nil
	}
	refList, err := r.refList()
	if err != nil {
		return err
	}
	for _, id := range ids {
		related, err := refList.Get(ctx, id)
		if err == cms.ErrNotFound {
			continue
		}
		if err != nil {
			return err
		}
		backRefs := idsOf(related[other.Path()])
		if !contains(backRefs, itemID) {
			continue
		}
		if !other.Many() && other.IsRequired() {
			if _, err := refList.Delete(ctx, id); err != nil && err != cms.ErrNotFound {
				return fmt.Errorf("error cascading to %s %s: %w", refList.Key(), id, err)
			}
			continue
		}
		updated := related.Copy()
		if other.Many() {
			var remaining []interface{}
			for _, rid := range backRefs {
				if rid != itemID {
					remaining = append(remaining, rid)
				}
			}
			updated[other.Path()] = remaining
		} else {
			delete(updated, other.Path())
		}
		if err := refList.Update(ctx, updated); err != nil {
			return err
		}
	}
	return nil
}

func toInterfaces(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
