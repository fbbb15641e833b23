package cms

import (
	"context"
	"sync"
)

type mutationStateKey struct{}

type stateKey struct {
	listKey string
	path    string
}

// MutationState carries nested mutation results between fields for the
// duration of one request. A field that performs nested writes records its
// result here and a later step of the same request reads it back.
type MutationState struct {
	lock    sync.Mutex
	results map[stateKey]interface{}
}

func NewMutationState() *MutationState {
	return &MutationState{results: make(map[stateKey]interface{})}
}

// WithMutationState returns a context carrying a fresh MutationState unless
// one is already attached.
func WithMutationState(ctx context.Context) context.Context {
	if MutationStateFromContext(ctx) != nil {
		return ctx
	}
	return context.WithValue(ctx, mutationStateKey{}, NewMutationState())
}

// MutationStateFromContext returns the request's state or nil.
func MutationStateFromContext(ctx context.Context) *MutationState {
	if ctx == nil {
		return nil
	}
	ms, _ := ctx.Value(mutationStateKey{}).(*MutationState)
	return ms
}

func (ms *MutationState) Set(listKey, path string, result interface{}) {
	ms.lock.Lock()
	defer ms.lock.Unlock()
	ms.results[stateKey{listKey: listKey, path: path}] = result
}

// Get returns the recorded result for (listKey, path). A missing entry is
// not an error, ok is false and the result nil.
func (ms *MutationState) Get(listKey, path string) (result interface{}, ok bool) {
	if ms == nil {
		return nil, false
	}
	ms.lock.Lock()
	defer ms.lock.Unlock()
	result, ok = ms.results[stateKey{listKey: listKey, path: path}]
	return result, ok
}
