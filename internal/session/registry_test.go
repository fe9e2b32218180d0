package session

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"souschef/internal/engine"
	"souschef/internal/models"
)

func testDoc() *models.RecipeDocument {
	return &models.RecipeDocument{
		Recipe: models.RecipeMeta{Title: "weeknight soup"},
		Steps: []models.RecipeStep{
			{ID: "chop", Description: "chop vegetables", Type: models.StepTypeImmediate},
			{ID: "simmer", Description: "simmer", Type: models.StepTypeTimer,
				Duration: "PT20M", DependsOn: []string{"chop"}},
		},
	}
}

func TestGetOrCreate(t *testing.T) {
	r := NewRegistry()

	eng, created, err := r.GetOrCreate("s1", testDoc())
	if err != nil {
		t.Fatal(err)
	}
	if !created {
		t.Error("first GetOrCreate did not create")
	}
	if eng == nil {
		t.Fatal("GetOrCreate returned nil engine")
	}

	again, created, err := r.GetOrCreate("s1", testDoc())
	if err != nil {
		t.Fatal(err)
	}
	if created {
		t.Error("second GetOrCreate created a new engine")
	}
	if again != eng {
		t.Error("second GetOrCreate returned a different engine")
	}
}

func TestGetOrCreateInvalidDocument(t *testing.T) {
	r := NewRegistry()
	bad := &models.RecipeDocument{
		Steps: []models.RecipeStep{
			{ID: "a", Type: models.StepTypeImmediate, DependsOn: []string{"b"}},
			{ID: "b", Type: models.StepTypeImmediate, DependsOn: []string{"a"}},
		},
	}

	if _, _, err := r.GetOrCreate("s1", bad); err == nil {
		t.Fatal("GetOrCreate accepted a cyclic document")
	}
	if r.Len() != 0 {
		t.Error("failed construction left a registry entry behind")
	}
}

func TestGet(t *testing.T) {
	r := NewRegistry()
	if _, ok := r.Get("missing"); ok {
		t.Error("Get found a session that was never created")
	}

	want, _, err := r.GetOrCreate("s1", testDoc())
	if err != nil {
		t.Fatal(err)
	}
	got, ok := r.Get("s1")
	if !ok || got != want {
		t.Error("Get did not return the created engine")
	}
}

func TestCleanup(t *testing.T) {
	r := NewRegistry()
	eng, _, err := r.GetOrCreate("s1", testDoc())
	if err != nil {
		t.Fatal(err)
	}
	if err := eng.Start(); err != nil {
		t.Fatal(err)
	}
	if err := eng.StartStep("chop"); err != nil {
		t.Fatal(err)
	}

	r.Cleanup("s1")
	if _, ok := r.Get("s1"); ok {
		t.Error("session still present after Cleanup")
	}

	// Cleanup of an unknown session is a no-op.
	r.Cleanup("s1")
	r.Cleanup("never-existed")
}

func TestCleanupCancelsTimers(t *testing.T) {
	r := NewRegistry()
	d := &models.RecipeDocument{
		Steps: []models.RecipeStep{
			{ID: "boil", Type: models.StepTypeTimer, Duration: "PT0.05S"},
		},
	}
	eng, _, err := r.GetOrCreate("s1", d)
	if err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	fired := 0
	eng.Subscribe(func(ev engine.Event) {
		if ev.Type == engine.EventTimerExpired {
			mu.Lock()
			fired++
			mu.Unlock()
		}
	})

	if err := eng.Start(); err != nil {
		t.Fatal(err)
	}
	if err := eng.StartStep("boil"); err != nil {
		t.Fatal(err)
	}
	r.Cleanup("s1")

	time.Sleep(150 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if fired != 0 {
		t.Errorf("timer fired %d times after cleanup, want 0", fired)
	}
}

// Concurrent GetOrCreate calls for the same absent session must converge
// on a single engine.
func TestGetOrCreateConcurrent(t *testing.T) {
	r := NewRegistry()

	const n = 32
	engines := make([]*engine.Engine, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			eng, _, err := r.GetOrCreate("shared", testDoc())
			if err != nil {
				t.Error(err)
				return
			}
			engines[i] = eng
		}(i)
	}
	wg.Wait()

	if r.Len() != 1 {
		t.Fatalf("registry holds %d engines, want 1", r.Len())
	}
	for i := 1; i < n; i++ {
		if engines[i] != engines[0] {
			t.Fatalf("call %d received a different engine", i)
		}
	}
}

func TestSessionsAreIndependent(t *testing.T) {
	r := NewRegistry()
	var engines []*engine.Engine
	for i := 0; i < 4; i++ {
		eng, _, err := r.GetOrCreate(fmt.Sprintf("s%d", i), testDoc())
		if err != nil {
			t.Fatal(err)
		}
		engines = append(engines, eng)
	}

	if err := engines[0].Start(); err != nil {
		t.Fatal(err)
	}
	if err := engines[0].Abort(); err != nil {
		t.Fatal(err)
	}

	for i := 1; i < 4; i++ {
		if engines[i].Status() != engine.StatusNotStarted {
			t.Errorf("session s%d status = %s, want not_started", i, engines[i].Status())
		}
	}

	want := []string{"s0", "s1", "s2", "s3"}
	got := r.Sessions()
	if len(got) != len(want) {
		t.Fatalf("Sessions() = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Sessions()[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}
