// Package session maps session identifiers to live recipe engines.
// One user's active recipe-following interaction is bound to exactly one
// engine instance; the registry owns that lifecycle.
package session

import (
	"sort"
	"sync"

	"souschef/internal/engine"
	"souschef/internal/models"
)

// Registry maps session id -> engine. All methods are safe for
// concurrent use; engines for different sessions run independently.
type Registry struct {
	mu      sync.Mutex
	engines map[string]*engine.Engine
}

// NewRegistry creates an empty session registry
func NewRegistry() *Registry {
	return &Registry{
		engines: make(map[string]*engine.Engine),
	}
}

// GetOrCreate returns the engine bound to the session, constructing one
// from the document if the session is new. Construction happens under
// the registry lock, so two concurrent calls for the same absent session
// cannot race to create two engines: the loser receives the winner's
// instance. The boolean reports whether an engine was created.
func (r *Registry) GetOrCreate(sessionID string, doc *models.RecipeDocument) (*engine.Engine, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if eng, ok := r.engines[sessionID]; ok {
		return eng, false, nil
	}
	eng, err := engine.New(doc)
	if err != nil {
		return nil, false, err
	}
	r.engines[sessionID] = eng
	return eng, true, nil
}

// Get returns the engine bound to the session, or false if none exists.
func (r *Registry) Get(sessionID string) (*engine.Engine, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	eng, ok := r.engines[sessionID]
	return eng, ok
}

// Cleanup discards the session's engine. Its timers are cancelled before
// the instance is released, so no expiration callback can land on a
// discarded engine. Cleaning up an unknown session is a no-op.
func (r *Registry) Cleanup(sessionID string) {
	r.mu.Lock()
	eng, ok := r.engines[sessionID]
	if ok {
		delete(r.engines, sessionID)
	}
	r.mu.Unlock()

	if ok {
		eng.Close()
	}
}

// Sessions returns the ids of all live sessions, sorted.
func (r *Registry) Sessions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.engines))
	for id := range r.engines {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.engines)
}
