package engine

import "time"

// EventType identifies a session event emitted by the engine
type EventType string

const (
	EventStepReady      EventType = "step_ready"
	EventStepStart      EventType = "step_start"
	EventStepComplete   EventType = "step_complete"
	EventTimerExpired   EventType = "timer_expired"
	EventRecipeComplete EventType = "recipe_complete"
	EventRecipeAborted  EventType = "recipe_aborted"
	EventError          EventType = "error"
)

// Event is an immutable record of something that happened in a session.
// Seq is monotonic per engine; events form a single total order.
type Event struct {
	Seq     uint64                 `json:"seq"`
	Type    EventType              `json:"type"`
	StepID  string                 `json:"step_id,omitempty"`
	Payload map[string]interface{} `json:"payload,omitempty"`
	At      time.Time              `json:"at"`
}

// eventBus fans events out to per-engine subscribers. All access happens
// under the owning engine's mutex, so the bus itself carries no lock.
// Callback subscribers are invoked synchronously, in registration order,
// before the producing engine call returns. Channel subscribers are
// best-effort: a full channel drops the event rather than blocking a
// transition.
type eventBus struct {
	seq       uint64
	callbacks []func(Event)
	channels  []chan Event
	closed    bool
}

func (b *eventBus) publish(typ EventType, stepID string, payload map[string]interface{}) Event {
	b.seq++
	ev := Event{
		Seq:     b.seq,
		Type:    typ,
		StepID:  stepID,
		Payload: payload,
		At:      time.Now(),
	}
	for _, fn := range b.callbacks {
		fn(ev)
	}
	for _, ch := range b.channels {
		select {
		case ch <- ev:
		default:
			// Slow subscriber; drop rather than stall the session.
		}
	}
	return ev
}

func (b *eventBus) addChannel(buffer int) chan Event {
	ch := make(chan Event, buffer)
	b.channels = append(b.channels, ch)
	return ch
}

func (b *eventBus) removeChannel(ch chan Event) {
	for i, c := range b.channels {
		if c == ch {
			b.channels = append(b.channels[:i], b.channels[i+1:]...)
			close(c)
			return
		}
	}
}

func (b *eventBus) close() {
	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.channels {
		close(ch)
	}
	b.channels = nil
	b.callbacks = nil
}
