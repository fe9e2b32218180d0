package engine

import (
	"time"

	"souschef/internal/models"
)

// StepState represents the lifecycle state of a step
type StepState string

const (
	StatePending   StepState = "pending"
	StateReady     StepState = "ready"
	StateActive    StepState = "active"
	StateCompleted StepState = "completed"
	StateSkipped   StepState = "skipped"
)

// Terminal reports whether no transition may leave the state.
func (s StepState) Terminal() bool {
	return s == StateCompleted || s == StateSkipped
}

// step is the mutable runtime record for one node of the recipe graph.
// It is owned by exactly one engine and only ever touched under that
// engine's mutex.
type step struct {
	id              string
	index           int // declaration order in the recipe document
	description     string
	instructions    string
	stepType        models.StepType
	autoStart       bool
	requiresConfirm bool
	duration        time.Duration
	dependsOn       []string

	state       StepState
	waiting     int // unsatisfied dependency count
	timerGen    uint64
	deadline    time.Time
	startedAt   time.Time
	completedAt time.Time
}

// StepSnapshot is a read-only copy of a step's runtime state, served to
// contextual tools and the API layer.
type StepSnapshot struct {
	ID              string          `json:"id"`
	Description     string          `json:"description"`
	Instructions    string          `json:"instructions,omitempty"`
	Type            models.StepType `json:"type"`
	AutoStart       bool            `json:"auto_start"`
	RequiresConfirm bool            `json:"requires_confirm"`
	DurationSeconds int             `json:"duration_seconds,omitempty"`
	DependsOn       []string        `json:"depends_on,omitempty"`
	State           StepState       `json:"state"`
	RemainingSecs   int             `json:"remaining_seconds,omitempty"`
	StartedAt       time.Time       `json:"started_at,omitempty"`
	CompletedAt     time.Time       `json:"completed_at,omitempty"`
}

func (s *step) snapshot(now time.Time) StepSnapshot {
	snap := StepSnapshot{
		ID:              s.id,
		Description:     s.description,
		Instructions:    s.instructions,
		Type:            s.stepType,
		AutoStart:       s.autoStart,
		RequiresConfirm: s.requiresConfirm,
		DurationSeconds: int(s.duration.Seconds()),
		DependsOn:       append([]string(nil), s.dependsOn...),
		State:           s.state,
		StartedAt:       s.startedAt,
		CompletedAt:     s.completedAt,
	}
	if s.state == StateActive && s.stepType == models.StepTypeTimer && !s.deadline.IsZero() {
		if rem := s.deadline.Sub(now); rem > 0 {
			snap.RemainingSecs = int(rem.Seconds())
		}
	}
	return snap
}
