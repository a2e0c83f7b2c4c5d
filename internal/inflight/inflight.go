// Package inflight coordinates calls that must not overlap.
package inflight

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

type call struct {
	id     uint64
	cancel context.CancelFunc
}

// Tracker keeps at most one live call per key. Starting a call cancels the
// previous call with the same key.
type Tracker struct {
	mu    sync.Mutex
	seq   uint64
	calls map[string]call
}

func NewTracker() *Tracker {
	return &Tracker{calls: make(map[string]call)}
}

// Begin derives a context for a new call under key. done must be called when
// the call returns.
func (t *Tracker) Begin(ctx context.Context, key string) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)

	t.mu.Lock()
	if prev, ok := t.calls[key]; ok {
		prev.cancel()
	}
	t.seq++
	id := t.seq
	t.calls[key] = call{id: id, cancel: cancel}
	t.mu.Unlock()

	done := func() {
		t.mu.Lock()
		if current, ok := t.calls[key]; ok && current.id == id {
			delete(t.calls, key)
		}
		t.mu.Unlock()
		cancel()
	}

	return ctx, done
}

// Active reports whether a call under key is running.
func (t *Tracker) Active(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.calls[key]
	return ok
}

// Guard admits one holder at a time and turns everyone else away.
type Guard struct {
	sem *semaphore.Weighted
}

func NewGuard() *Guard {
	return &Guard{sem: semaphore.NewWeighted(1)}
}

func (g *Guard) TryEnter() bool {
	return g.sem.TryAcquire(1)
}

func (g *Guard) Leave() {
	g.sem.Release(1)
}
