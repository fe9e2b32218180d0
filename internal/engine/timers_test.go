package engine

import (
	"testing"
	"time"

	"souschef/internal/models"
)

func timerStep(id string, duration string, requiresConfirm bool, deps ...string) models.RecipeStep {
	return models.RecipeStep{
		ID:              id,
		Description:     id,
		Type:            models.StepTypeTimer,
		Duration:        duration,
		RequiresConfirm: requiresConfirm,
		DependsOn:       deps,
	}
}

// waitFor polls until the condition holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestTimerExpiryAutoCompletes(t *testing.T) {
	eng, rec := newEngine(t, doc(timerStep("boil_egg", "PT0.02S", false)))
	if err := eng.Start(); err != nil {
		t.Fatal(err)
	}
	if err := eng.StartStep("boil_egg"); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool {
		state, _ := eng.StepState("boil_egg")
		return state == StateCompleted
	}, "timer step never completed")

	if got := len(rec.ofType(EventTimerExpired)); got != 1 {
		t.Errorf("got %d timer_expired events, want 1", got)
	}
	if got := len(rec.ofType(EventStepComplete)); got != 1 {
		t.Errorf("got %d step_complete events, want 1", got)
	}
	if eng.Status() != StatusCompleted {
		t.Errorf("engine status = %s, want completed", eng.Status())
	}
}

func TestZeroDurationTimerCompletesWithoutConfirmation(t *testing.T) {
	eng, rec := newEngine(t, doc(timerStep("flash", "PT0M", false)))
	if err := eng.Start(); err != nil {
		t.Fatal(err)
	}
	if err := eng.StartStep("flash"); err != nil {
		t.Fatal(err)
	}

	// Zero-duration timers complete within the starting call.
	state, _ := eng.StepState("flash")
	if state != StateCompleted {
		t.Fatalf("step state = %s, want completed", state)
	}
	if got := len(rec.ofType(EventStepComplete)); got != 1 {
		t.Errorf("got %d step_complete events, want 1", got)
	}
}

func TestTimerExpiryWithConfirmOnlyNotifies(t *testing.T) {
	eng, rec := newEngine(t, doc(timerStep("rest_dough", "PT0.02S", true)))
	if err := eng.Start(); err != nil {
		t.Fatal(err)
	}
	if err := eng.StartStep("rest_dough"); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool {
		return len(rec.ofType(EventTimerExpired)) == 1
	}, "timer never expired")

	// Expiry notifies but does not complete.
	state, _ := eng.StepState("rest_dough")
	if state != StateActive {
		t.Fatalf("step state after expiry = %s, want active", state)
	}
	if got := len(rec.ofType(EventStepComplete)); got != 0 {
		t.Errorf("got %d step_complete events before confirmation, want 0", got)
	}

	if err := eng.ConfirmStepDone("rest_dough"); err != nil {
		t.Fatal(err)
	}
	state, _ = eng.StepState("rest_dough")
	if state != StateCompleted {
		t.Errorf("step state after confirm = %s, want completed", state)
	}
}

func TestEarlyConfirmationCancelsTimer(t *testing.T) {
	eng, rec := newEngine(t, doc(timerStep("simmer", "PT0.05S", false)))
	if err := eng.Start(); err != nil {
		t.Fatal(err)
	}
	if err := eng.StartStep("simmer"); err != nil {
		t.Fatal(err)
	}
	if err := eng.ConfirmStepDone("simmer"); err != nil {
		t.Fatal(err)
	}

	// Give a cancelled-but-queued callback every chance to fire late.
	time.Sleep(150 * time.Millisecond)

	if got := len(rec.ofType(EventTimerExpired)); got != 0 {
		t.Errorf("got %d timer_expired events after early confirmation, want 0", got)
	}
	if got := len(rec.ofType(EventStepComplete)); got != 1 {
		t.Errorf("got %d step_complete events, want 1", got)
	}
}

func TestAbortCancelsTimers(t *testing.T) {
	eng, rec := newEngine(t, doc(timerStep("roast", "PT0.05S", false)))
	if err := eng.Start(); err != nil {
		t.Fatal(err)
	}
	if err := eng.StartStep("roast"); err != nil {
		t.Fatal(err)
	}
	if err := eng.Abort(); err != nil {
		t.Fatal(err)
	}

	time.Sleep(150 * time.Millisecond)

	if got := len(rec.ofType(EventTimerExpired)); got != 0 {
		t.Errorf("got %d timer_expired events after abort, want 0", got)
	}
	if eng.Status() != StatusAborted {
		t.Errorf("engine status = %s, want aborted", eng.Status())
	}
}

func TestTimerBankReplacesPendingTimer(t *testing.T) {
	bank := newTimerBank()
	fired := make(chan uint64, 4)

	gen1 := bank.schedule("s", 20*time.Millisecond, func(_ string, g uint64) { fired <- g })
	gen2 := bank.schedule("s", 20*time.Millisecond, func(_ string, g uint64) { fired <- g })
	if gen2 <= gen1 {
		t.Fatalf("generations not monotonic: %d then %d", gen1, gen2)
	}

	select {
	case g := <-fired:
		if g != gen2 {
			t.Errorf("fired generation %d, want %d", g, gen2)
		}
		if g != bank.current("s") {
			t.Errorf("fired generation %d is stale", g)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("replacement timer never fired")
	}

	select {
	case g := <-fired:
		t.Errorf("replaced timer fired with generation %d", g)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestTimerBankCancelInvalidatesGeneration(t *testing.T) {
	bank := newTimerBank()
	gen := bank.schedule("s", time.Hour, func(string, uint64) {})
	if !bank.pending("s") {
		t.Fatal("timer not pending after schedule")
	}

	bank.cancel("s")
	if bank.pending("s") {
		t.Error("timer still pending after cancel")
	}
	if bank.current("s") == gen {
		t.Error("cancel did not invalidate the generation")
	}
}

func TestTimeRemaining(t *testing.T) {
	eng, _ := newEngine(t, doc(timerStep("braise", "PT2H", true)))
	if err := eng.Start(); err != nil {
		t.Fatal(err)
	}

	rem, err := eng.TimeRemaining("braise")
	if err != nil {
		t.Fatal(err)
	}
	if rem != 0 {
		t.Errorf("remaining before start = %v, want 0", rem)
	}

	if err := eng.StartStep("braise"); err != nil {
		t.Fatal(err)
	}
	rem, err = eng.TimeRemaining("braise")
	if err != nil {
		t.Fatal(err)
	}
	if rem <= time.Hour || rem > 2*time.Hour {
		t.Errorf("remaining = %v, want just under 2h", rem)
	}

	if _, err := eng.TimeRemaining("nope"); err == nil {
		t.Error("TimeRemaining for unknown step succeeded, want error")
	}
}
