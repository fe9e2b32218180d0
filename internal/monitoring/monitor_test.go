package monitoring

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"souschef/internal/engine"
	"souschef/internal/models"
)

func testEngine(t *testing.T) *engine.Engine {
	t.Helper()
	eng, err := engine.New(&models.RecipeDocument{
		Recipe: models.RecipeMeta{Title: "toast"},
		Steps: []models.RecipeStep{
			{ID: "slice", Description: "slice bread", Type: models.StepTypeImmediate},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	return eng
}

func TestMonitor_SessionLifecycle(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMonitor(reg)

	eng := testEngine(t)
	m.SessionCreated("s1", eng)

	if got := testutil.ToFloat64(m.activeSessions); got != 1 {
		t.Errorf("active sessions = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.sessionsTotal); got != 1 {
		t.Errorf("sessions total = %v, want 1", got)
	}

	m.SessionClosed("s1")
	if got := testutil.ToFloat64(m.activeSessions); got != 0 {
		t.Errorf("active sessions after close = %v, want 0", got)
	}

	// Closing twice must not underflow the gauge.
	m.SessionClosed("s1")
	if got := testutil.ToFloat64(m.activeSessions); got != 0 {
		t.Errorf("active sessions after double close = %v, want 0", got)
	}
}

func TestMonitor_ObservesEngineEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMonitor(reg)

	eng := testEngine(t)
	m.SessionCreated("s1", eng)

	if err := eng.Start(); err != nil {
		t.Fatal(err)
	}
	if err := eng.StartStep("slice"); err != nil {
		t.Fatal(err)
	}
	if err := eng.ConfirmStepDone("slice"); err != nil {
		t.Fatal(err)
	}

	if got := testutil.ToFloat64(m.stepsCompleted); got != 1 {
		t.Errorf("steps completed = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.eventsTotal.WithLabelValues("recipe_complete")); got != 1 {
		t.Errorf("recipe_complete events = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.eventsTotal.WithLabelValues("step_ready")); got != 1 {
		t.Errorf("step_ready events = %v, want 1", got)
	}
}
