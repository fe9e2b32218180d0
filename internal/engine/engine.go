// Package engine implements the per-session recipe step state machine:
// a dependency graph of steps advanced through explicit lifecycle states
// by user confirmations and timer expirations, emitting an ordered event
// stream the voice and UI layers subscribe to.
package engine

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"souschef/internal/models"
)

// InstanceStatus represents the overall status of a recipe instance
type InstanceStatus string

const (
	StatusNotStarted InstanceStatus = "not_started"
	StatusRunning    InstanceStatus = "running"
	StatusCompleted  InstanceStatus = "completed"
	StatusAborted    InstanceStatus = "aborted"
)

// Engine owns the step graph for one active recipe instance. All
// transitions on one engine are serialized by its mutex: a call in
// progress, including every event it cascades, finishes before the next
// call (or a timer callback) is admitted. Engines for different sessions
// are fully independent.
type Engine struct {
	mu sync.Mutex

	title      string
	steps      map[string]*step
	order      []string            // declaration order from the document
	dependents map[string][]string // dependency id -> dependent ids, declaration order

	status    InstanceStatus
	remaining int // steps not yet completed or skipped

	timers *timerBank
	bus    *eventBus
	closed bool
}

// New constructs an engine from a validated recipe document. The document
// is read-only input; the engine builds its own runtime records. Dangling
// dependency references and dependency cycles are fatal: no
// partially-constructed engine is returned.
func New(doc *models.RecipeDocument) (*Engine, error) {
	if doc == nil {
		return nil, fmt.Errorf("recipe document is required")
	}

	e := &Engine{
		title:      doc.Recipe.Title,
		steps:      make(map[string]*step, len(doc.Steps)),
		order:      make([]string, 0, len(doc.Steps)),
		dependents: make(map[string][]string),
		status:     StatusNotStarted,
		timers:     newTimerBank(),
		bus:        &eventBus{},
	}

	for i, def := range doc.Steps {
		if _, dup := e.steps[def.ID]; dup {
			return nil, fmt.Errorf("duplicate step id %q", def.ID)
		}
		st := &step{
			id:              def.ID,
			index:           i,
			description:     def.Description,
			instructions:    def.Instructions,
			stepType:        def.Type,
			autoStart:       def.AutoStart,
			requiresConfirm: def.RequiresConfirm,
			dependsOn:       append([]string(nil), def.DependsOn...),
			state:           StatePending,
			waiting:         len(def.DependsOn),
		}
		if def.Type == models.StepTypeTimer {
			d, err := models.ParseISO8601Duration(def.Duration)
			if err != nil {
				return nil, fmt.Errorf("step %q: %w", def.ID, err)
			}
			st.duration = d
		}
		e.steps[def.ID] = st
		e.order = append(e.order, def.ID)
	}
	e.remaining = len(e.order)

	for _, id := range e.order {
		for _, dep := range e.steps[id].dependsOn {
			if _, ok := e.steps[dep]; !ok {
				return nil, fmt.Errorf("step %q depends on unknown step %q: %w", id, dep, ErrStepNotFound)
			}
			e.dependents[dep] = append(e.dependents[dep], id)
		}
	}

	if err := e.checkAcyclic(); err != nil {
		return nil, err
	}
	return e, nil
}

// checkAcyclic runs Kahn's algorithm over the dependency graph.
func (e *Engine) checkAcyclic() error {
	indegree := make(map[string]int, len(e.steps))
	for id, st := range e.steps {
		indegree[id] = len(st.dependsOn)
	}

	queue := make([]string, 0, len(e.steps))
	for _, id := range e.order {
		if indegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	visited := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited++
		for _, dep := range e.dependents[id] {
			indegree[dep]--
			if indegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if visited != len(e.steps) {
		return fmt.Errorf("recipe %q: %w", e.title, ErrCyclicDependency)
	}
	return nil
}

// Title returns the recipe title the engine was built from.
func (e *Engine) Title() string {
	return e.title
}

// Start moves the instance to RUNNING, marks every root step READY, and
// auto-starts the ones configured for it. Calling Start twice fails with
// ErrInvalidState.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.status != StatusNotStarted {
		return fmt.Errorf("start from status %s: %w", e.status, ErrInvalidState)
	}
	e.status = StatusRunning

	roots := make([]*step, 0)
	for _, id := range e.order {
		if st := e.steps[id]; st.waiting == 0 {
			roots = append(roots, st)
		}
	}
	e.markReadyLocked(roots)
	return nil
}

// StartStep transitions a READY step to ACTIVE and arms its timer if it
// is a timer step. Explicitly starting an auto-start step that is already
// ACTIVE is a no-op success.
func (e *Engine) StartStep(stepID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.status != StatusRunning {
		return fmt.Errorf("start step while %s: %w", e.status, ErrInvalidState)
	}
	st, ok := e.steps[stepID]
	if !ok {
		return fmt.Errorf("step %q: %w", stepID, ErrStepNotFound)
	}
	if st.state == StateActive && st.autoStart {
		return nil
	}
	if st.state != StateReady {
		return fmt.Errorf("step %q is %s, not ready: %w", stepID, st.state, ErrInvalidTransition)
	}
	e.activateLocked(st)
	return nil
}

// ConfirmStepDone completes an ACTIVE step, cancels its timer, and
// recomputes readiness for its dependents. Newly READY dependents with
// auto_start are activated in the same call, transitively, so a single
// confirmation can unlock an arbitrary chain before it returns.
func (e *Engine) ConfirmStepDone(stepID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.status != StatusRunning {
		return fmt.Errorf("confirm while %s: %w", e.status, ErrInvalidState)
	}
	st, ok := e.steps[stepID]
	if !ok {
		return fmt.Errorf("step %q: %w", stepID, ErrStepNotFound)
	}
	if st.state != StateActive {
		return fmt.Errorf("step %q is %s, not active: %w", stepID, st.state, ErrInvalidTransition)
	}
	e.completeLocked(st)
	return nil
}

// SkipStep marks a PENDING or READY step SKIPPED. Skipped steps count as
// satisfied dependencies, so dependents are recomputed exactly as on
// completion, but no step_complete event is emitted.
func (e *Engine) SkipStep(stepID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.status != StatusRunning {
		return fmt.Errorf("skip while %s: %w", e.status, ErrInvalidState)
	}
	st, ok := e.steps[stepID]
	if !ok {
		return fmt.Errorf("step %q: %w", stepID, ErrStepNotFound)
	}
	if st.state != StatePending && st.state != StateReady {
		return fmt.Errorf("step %q is %s, not pending or ready: %w", stepID, st.state, ErrInvalidTransition)
	}

	st.state = StateSkipped
	e.timers.cancel(st.id)
	e.remaining--
	e.propagateLocked(st.id)
	e.maybeFinishLocked()
	return nil
}

// Abort cancels every outstanding timer, sets the instance status to
// ABORTED and emits a terminal event. No further transitions are accepted.
func (e *Engine) Abort() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.status != StatusRunning {
		return fmt.Errorf("abort while %s: %w", e.status, ErrInvalidState)
	}
	e.timers.cancelAll()
	e.status = StatusAborted
	e.bus.publish(EventRecipeAborted, "", nil)
	return nil
}

// Close releases the engine on session cleanup: all timers are cancelled
// before channel subscribers are closed, so no callback can reference a
// discarded instance. Close emits no events.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	e.closed = true
	e.timers.cancelAll()
	if e.status == StatusRunning {
		e.status = StatusAborted
	}
	e.bus.close()
}

// onTimerFired is the expiration callback for timer steps. It serializes
// against user calls on the engine mutex and drops stale generations, so
// a timer racing a confirmation or an abort is a silent no-op.
func (e *Engine) onTimerFired(stepID string, gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.status != StatusRunning {
		return
	}
	st, ok := e.steps[stepID]
	if !ok {
		return
	}
	if st.state != StateActive || gen != e.timers.current(stepID) {
		return
	}

	e.bus.publish(EventTimerExpired, st.id, map[string]interface{}{
		"duration_seconds": st.duration.Seconds(),
	})
	if st.requiresConfirm {
		// Expiry only notifies; the user still has to confirm.
		return
	}
	e.completeLocked(st)
}

// markReadyLocked transitions a batch of steps to READY and then runs
// auto-start activations. Every step_ready is emitted before any
// step_start of the same batch, in declaration order, to keep voice
// narration deterministic.
func (e *Engine) markReadyLocked(batch []*step) {
	sort.Slice(batch, func(i, j int) bool { return batch[i].index < batch[j].index })

	for _, st := range batch {
		st.state = StateReady
		e.bus.publish(EventStepReady, st.id, nil)
	}
	for _, st := range batch {
		if st.autoStart && st.state == StateReady {
			e.activateLocked(st)
		}
	}
}

// activateLocked transitions a READY step to ACTIVE and arms its timer.
// A zero-duration timer step without a confirmation requirement completes
// synchronously, which keeps auto-start cascades transitively closed
// within the triggering call.
func (e *Engine) activateLocked(st *step) {
	now := time.Now()
	st.state = StateActive
	st.startedAt = now
	e.bus.publish(EventStepStart, st.id, nil)

	if st.stepType != models.StepTypeTimer {
		return
	}
	if st.duration <= 0 && !st.requiresConfirm {
		e.bus.publish(EventTimerExpired, st.id, map[string]interface{}{
			"duration_seconds": float64(0),
		})
		e.completeLocked(st)
		return
	}
	st.deadline = now.Add(st.duration)
	st.timerGen = e.timers.schedule(st.id, st.duration, e.onTimerFired)
}

// completeLocked transitions an ACTIVE step to COMPLETED and drives the
// readiness propagation for its dependents.
func (e *Engine) completeLocked(st *step) {
	st.state = StateCompleted
	st.completedAt = time.Now()
	e.timers.cancel(st.id)
	e.remaining--
	e.bus.publish(EventStepComplete, st.id, nil)
	e.propagateLocked(st.id)
	e.maybeFinishLocked()
}

// propagateLocked decrements the unsatisfied-dependency count of every
// dependent of a finished step and readies the ones that reach zero.
// O(out-degree) per completion; no graph rescans on the hot path.
func (e *Engine) propagateLocked(doneID string) {
	ready := make([]*step, 0)
	for _, depID := range e.dependents[doneID] {
		dep := e.steps[depID]
		dep.waiting--
		if dep.waiting == 0 && dep.state == StatePending {
			ready = append(ready, dep)
		}
	}
	if len(ready) > 0 {
		e.markReadyLocked(ready)
	}
}

// maybeFinishLocked completes the instance exactly once, when every
// non-skipped step has completed.
func (e *Engine) maybeFinishLocked() {
	if e.remaining == 0 && e.status == StatusRunning {
		e.status = StatusCompleted
		e.timers.cancelAll()
		e.bus.publish(EventRecipeComplete, "", nil)
	}
}

// Subscribe registers a callback invoked synchronously for every event,
// in emission order. The callback runs under the engine's exclusion and
// must not call back into the engine.
func (e *Engine) Subscribe(fn func(Event)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.bus.callbacks = append(e.bus.callbacks, fn)
}

// SubscribeChan registers a buffered channel subscriber and returns it
// with a cancel function. Events are dropped, not buffered indefinitely,
// if the subscriber falls behind.
func (e *Engine) SubscribeChan(buffer int) (<-chan Event, func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ch := e.bus.addChannel(buffer)
	cancel := func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if !e.bus.closed {
			e.bus.removeChannel(ch)
		}
	}
	return ch, cancel
}

// Status returns the overall instance status.
func (e *Engine) Status() InstanceStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// StepState returns the lifecycle state of one step.
func (e *Engine) StepState(stepID string) (StepState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, ok := e.steps[stepID]
	if !ok {
		return "", fmt.Errorf("step %q: %w", stepID, ErrStepNotFound)
	}
	return st.state, nil
}

// StepSnapshot returns a full read-only copy of one step's runtime state.
func (e *Engine) StepSnapshot(stepID string) (StepSnapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, ok := e.steps[stepID]
	if !ok {
		return StepSnapshot{}, fmt.Errorf("step %q: %w", stepID, ErrStepNotFound)
	}
	return st.snapshot(time.Now()), nil
}

// Snapshot returns snapshots of every step in declaration order.
func (e *Engine) Snapshot() []StepSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now()
	out := make([]StepSnapshot, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, e.steps[id].snapshot(now))
	}
	return out
}

// TimeRemaining answers "how long until this step is done" for an active
// timer step. Completed, skipped, and immediate steps report zero.
func (e *Engine) TimeRemaining(stepID string) (time.Duration, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, ok := e.steps[stepID]
	if !ok {
		return 0, fmt.Errorf("step %q: %w", stepID, ErrStepNotFound)
	}
	if st.state != StateActive || st.stepType != models.StepTypeTimer || st.deadline.IsZero() {
		return 0, nil
	}
	if rem := time.Until(st.deadline); rem > 0 {
		return rem, nil
	}
	return 0, nil
}
