package scheduler

import (
	"context"
	"sync"
)

// Outcome is the terminal state of one task as seen by its dependents.
type Outcome struct {
	Done   bool
	Failed bool
	Err    error
}

func (o Outcome) Pending() bool { return !o.Done && !o.Failed }

type boardEntry struct {
	done    chan struct{}
	outcome Outcome
}

// Board is the per-run signal table. A task resolves exactly once; every
// waiter observes the same outcome. Waiting on an unregistered task is a
// programming error and fails fast instead of blocking forever.
type Board struct {
	mu      sync.Mutex
	entries map[TaskID]*boardEntry
}

func NewBoard() *Board {
	return &Board{entries: make(map[TaskID]*boardEntry)}
}

func (b *Board) Register(id TaskID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.entries[id]; !ok {
		b.entries[id] = &boardEntry{done: make(chan struct{})}
	}
}

func (b *Board) Done(id TaskID) {
	b.resolve(id, Outcome{Done: true})
}

func (b *Board) Fail(id TaskID, err error) {
	b.resolve(id, Outcome{Failed: true, Err: err})
}

func (b *Board) resolve(id TaskID, out Outcome) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[id]
	if !ok {
		e = &boardEntry{done: make(chan struct{})}
		b.entries[id] = e
	}
	if !e.outcome.Pending() {
		return
	}
	e.outcome = out
	close(e.done)
}

// Outcome returns the current state without blocking.
func (b *Board) Outcome(id TaskID) Outcome {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[id]
	if !ok {
		return Outcome{}
	}
	return e.outcome
}

// Wait blocks until the task resolves or the context ends.
func (b *Board) Wait(ctx context.Context, id TaskID) (Outcome, error) {
	b.mu.Lock()
	e, ok := b.entries[id]
	b.mu.Unlock()
	if !ok {
		return Outcome{}, &DependencyError{Dep: id, Reason: "not registered"}
	}
	select {
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	case <-e.done:
	}
	b.mu.Lock()
	out := e.outcome
	b.mu.Unlock()
	return out, nil
}
