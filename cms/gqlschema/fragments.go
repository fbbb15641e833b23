package gqlschema

import (
	"strings"

	"github.com/graphql-go/graphql"
)

// Resolvers maps type name -> field name -> resolver.
type Resolvers map[string]map[string]graphql.FieldResolveFn

// Add registers fn for typeName.fieldName, replacing any previous resolver.
func (r Resolvers) Add(typeName, fieldName string, fn graphql.FieldResolveFn) {
	if fn == nil {
		return
	}
	if r[typeName] == nil {
		r[typeName] = make(map[string]graphql.FieldResolveFn)
	}
	r[typeName][fieldName] = fn
}

// Merge copies every resolver of other into r.
func (r Resolvers) Merge(other Resolvers) {
	for typeName, fields := range other {
		for fieldName, fn := range fields {
			r.Add(typeName, fieldName, fn)
		}
	}
}

// Fragments is an ordered set of SDL fragments. Several fields contribute
// the same auxiliary types, so identical fragments are kept once.
type Fragments struct {
	seen  map[string]struct{}
	order []string
}

func NewFragments() *Fragments {
	return &Fragments{seen: make(map[string]struct{})}
}

func (f *Fragments) Add(sdl ...string) {
	for _, s := range sdl {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := f.seen[s]; ok {
			continue
		}
		f.seen[s] = struct{}{}
		f.order = append(f.order, s)
	}
}

func (f *Fragments) Len() int {
	return len(f.order)
}

func (f *Fragments) String() string {
	return strings.Join(f.order, "\n\n")
}
