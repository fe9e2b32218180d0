// Package monitoring exposes Prometheus metrics for the assistant:
// session lifecycle, step progress, and timer activity.
package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"souschef/internal/engine"
)

// Monitor collects and provides metrics for the assistant
type Monitor struct {
	activeSessions prometheus.Gauge
	sessionsTotal  prometheus.Counter
	eventsTotal    *prometheus.CounterVec
	stepsCompleted prometheus.Counter
	timersFired    prometheus.Counter
	recipeDuration prometheus.Histogram

	mu        sync.Mutex
	startedAt map[string]time.Time // session id -> start time
}

// NewMonitor creates a monitor and registers its collectors with the
// given registerer.
func NewMonitor(reg prometheus.Registerer) *Monitor {
	m := &Monitor{
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "souschef_active_sessions",
			Help: "Number of live cooking sessions",
		}),
		sessionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "souschef_sessions_total",
			Help: "Total cooking sessions created",
		}),
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "souschef_session_events_total",
			Help: "Session events emitted, by type",
		}, []string{"type"}),
		stepsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "souschef_steps_completed_total",
			Help: "Recipe steps completed across all sessions",
		}),
		timersFired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "souschef_timers_fired_total",
			Help: "Step timers that reached expiration",
		}),
		recipeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "souschef_recipe_duration_seconds",
			Help:    "Wall-clock time from session start to recipe completion",
			Buckets: prometheus.LinearBuckets(0, 300, 20), // 5-minute buckets
		}),
		startedAt: make(map[string]time.Time),
	}

	reg.MustRegister(
		m.activeSessions,
		m.sessionsTotal,
		m.eventsTotal,
		m.stepsCompleted,
		m.timersFired,
		m.recipeDuration,
	)
	return m
}

// SessionCreated records a new session and subscribes the monitor to the
// engine's event stream.
func (m *Monitor) SessionCreated(sessionID string, eng *engine.Engine) {
	m.mu.Lock()
	m.startedAt[sessionID] = time.Now()
	m.mu.Unlock()

	m.sessionsTotal.Inc()
	m.activeSessions.Inc()

	eng.Subscribe(func(ev engine.Event) {
		m.observe(sessionID, ev)
	})
}

// SessionClosed records a session cleanup.
func (m *Monitor) SessionClosed(sessionID string) {
	m.mu.Lock()
	_, known := m.startedAt[sessionID]
	delete(m.startedAt, sessionID)
	m.mu.Unlock()

	if known {
		m.activeSessions.Dec()
	}
}

func (m *Monitor) observe(sessionID string, ev engine.Event) {
	m.eventsTotal.WithLabelValues(string(ev.Type)).Inc()

	switch ev.Type {
	case engine.EventStepComplete:
		m.stepsCompleted.Inc()
	case engine.EventTimerExpired:
		m.timersFired.Inc()
	case engine.EventRecipeComplete:
		m.mu.Lock()
		started, ok := m.startedAt[sessionID]
		m.mu.Unlock()
		if ok {
			m.recipeDuration.Observe(time.Since(started).Seconds())
		}
	}
}
