package event

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts published events by category/variant, mirroring
// internal/cache.Metrics' CounterVec-per-dimension shape.
type Metrics struct {
	mu     sync.Mutex
	counts map[Category]map[string]int64

	promEvents *prometheus.CounterVec
}

// NewMetrics builds a Metrics instance registered against reg (nil skips
// Prometheus registration, useful in tests).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		counts: make(map[Category]map[string]int64),
		promEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cuenv_events_total",
			Help: "Events published on the event bus, by category and variant.",
		}, []string{"category", "variant"}),
	}
	if reg != nil {
		reg.MustRegister(m.promEvents)
	}
	return m
}

// RecordEvent increments the counter for category/variant.
func (m *Metrics) RecordEvent(category Category, variant string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts[category] == nil {
		m.counts[category] = make(map[string]int64)
	}
	m.counts[category][variant]++
	m.promEvents.WithLabelValues(string(category), variant).Inc()
}

// JSONSnapshot is the structured-key export shape.
type JSONSnapshot map[Category]map[string]int64

// Snapshot returns a point-in-time copy of event counts.
func (m *Metrics) Snapshot() JSONSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := make(JSONSnapshot, len(m.counts))
	for cat, variants := range m.counts {
		copyVariants := make(map[string]int64, len(variants))
		for v, n := range variants {
			copyVariants[v] = n
		}
		snap[cat] = copyVariants
	}
	return snap
}
