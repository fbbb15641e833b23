package cms

import (
	"context"
	"sync"
)

type journalKey struct{}

// journal records how to undo the store writes of one mutation. Writes
// nested inside another write hand their entries to the enclosing journal
// on commit, so a failure anywhere in a mutation undoes all of it. Change
// events are held until the outermost write commits.
type journal struct {
	lock   sync.Mutex
	parent *journal
	undo   []func(ctx context.Context) error
	events []ChangeEvent
}

func journalFromContext(ctx context.Context) *journal {
	j, _ := ctx.Value(journalKey{}).(*journal)
	return j
}

// beginWrite starts a journal nested in the one on ctx, if any.
func beginWrite(ctx context.Context) (context.Context, *journal) {
	j := &journal{parent: journalFromContext(ctx)}
	return context.WithValue(ctx, journalKey{}, j), j
}

func (j *journal) onRollback(fn func(ctx context.Context) error) {
	j.lock.Lock()
	defer j.lock.Unlock()
	j.undo = append(j.undo, fn)
}

func (j *journal) record(evt ChangeEvent) {
	j.lock.Lock()
	defer j.lock.Unlock()
	j.events = append(j.events, evt)
}

// rollback undoes the journal's writes newest first. Undo errors are
// logged, the original error is what the caller returns.
func (j *journal) rollback(ctx context.Context) {
	j.lock.Lock()
	undo := j.undo
	j.undo, j.events = nil, nil
	j.lock.Unlock()

	for i := len(undo) - 1; i >= 0; i-- {
		if err := undo[i](ctx); err != nil {
			logger.Errorf("error rolling back: %v", err)
		}
	}
}

// commit hands the journal to its parent, or emits its events when it is
// the outermost write.
func (j *journal) commit(r *Registry) {
	j.lock.Lock()
	undo, events := j.undo, j.events
	j.undo, j.events = nil, nil
	j.lock.Unlock()

	if j.parent != nil {
		j.parent.lock.Lock()
		j.parent.undo = append(j.parent.undo, undo...)
		j.parent.events = append(j.parent.events, events...)
		j.parent.lock.Unlock()
		return
	}
	for _, evt := range events {
		r.emit(evt)
	}
}

// OnRollback registers fn to run if the write in progress on ctx fails.
// Fields use it to undo side effects outside the store, like uploads.
// Outside of a write it does nothing.
func OnRollback(ctx context.Context, fn func(ctx context.Context) error) {
	if j := journalFromContext(ctx); j != nil {
		j.onRollback(fn)
	}
}
