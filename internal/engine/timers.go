package engine

import (
	"sync"
	"time"
)

// timerBank manages scheduled expirations for timer steps of one engine.
// Every schedule bumps the step's generation counter; a fired callback
// carries the generation it was scheduled with, and the engine drops the
// callback if the generation no longer matches. That gives at-most-one
// effective expiration per step activation even when a callback is
// already queued while the step is confirmed, skipped, or the engine is
// aborted.
type timerBank struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
	gens   map[string]uint64
}

func newTimerBank() *timerBank {
	return &timerBank{
		timers: make(map[string]*time.Timer),
		gens:   make(map[string]uint64),
	}
}

// schedule arms a timer for the step, replacing any pending one, and
// returns the generation the callback must present to take effect.
func (b *timerBank) schedule(stepID string, d time.Duration, fire func(stepID string, gen uint64)) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	if t, ok := b.timers[stepID]; ok {
		t.Stop()
	}
	b.gens[stepID]++
	gen := b.gens[stepID]
	b.timers[stepID] = time.AfterFunc(d, func() {
		fire(stepID, gen)
	})
	return gen
}

// cancel stops any pending timer for the step and invalidates callbacks
// that may already be in flight.
func (b *timerBank) cancel(stepID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if t, ok := b.timers[stepID]; ok {
		t.Stop()
		delete(b.timers, stepID)
	}
	b.gens[stepID]++
}

// cancelAll stops every pending timer and invalidates all in-flight callbacks.
func (b *timerBank) cancelAll() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, t := range b.timers {
		t.Stop()
		delete(b.timers, id)
	}
	for id := range b.gens {
		b.gens[id]++
	}
}

// current returns the live generation for a step. A callback whose
// generation differs is stale.
func (b *timerBank) current(stepID string) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.gens[stepID]
}

// pending reports whether a timer is armed for the step.
func (b *timerBank) pending(stepID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.timers[stepID]
	return ok
}
