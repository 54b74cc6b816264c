package cache

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/cuenv/cuenv/internal/ir"
)

// Metrics records per-policy hits/misses, restore-failures by kind, bytes
// transferred, check latency, and per-task/per-runtime durations, exposed
// as Prometheus gauges/counters via github.com/prometheus/client_golang.
type Metrics struct {
	mu sync.Mutex

	hits   map[ir.CachePolicy]int64
	misses map[ir.CachePolicy]int64
	restoreFailures map[RestoreErrorKind]int64
	bytesTransferred int64
	checkLatencies   []time.Duration
	taskDurations     map[string]time.Duration
	runtimeMaterializations map[string]time.Duration

	promHits             *prometheus.CounterVec
	promMisses           *prometheus.CounterVec
	promRestoreFailures  *prometheus.CounterVec
	promBytesTransferred prometheus.Counter
	promCheckLatency     prometheus.Histogram
}

// NewMetrics builds a Metrics instance and registers its Prometheus
// collectors against reg. Pass prometheus.NewRegistry() for test isolation,
// or prometheus.DefaultRegisterer in production.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		hits:                    make(map[ir.CachePolicy]int64),
		misses:                  make(map[ir.CachePolicy]int64),
		restoreFailures:         make(map[RestoreErrorKind]int64),
		taskDurations:           make(map[string]time.Duration),
		runtimeMaterializations: make(map[string]time.Duration),

		promHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cuenv_cache_hits_total",
			Help: "Cache hits by policy.",
		}, []string{"policy"}),
		promMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cuenv_cache_misses_total",
			Help: "Cache misses by policy.",
		}, []string{"policy"}),
		promRestoreFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cuenv_cache_restore_failures_total",
			Help: "Cache restore failures by kind.",
		}, []string{"kind"}),
		promBytesTransferred: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cuenv_cache_bytes_transferred_total",
			Help: "Total bytes read from or written to the cache.",
		}),
		promCheckLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "cuenv_cache_check_latency_seconds",
			Help: "Latency of cache existence/read checks.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.promHits, m.promMisses, m.promRestoreFailures, m.promBytesTransferred, m.promCheckLatency)
	}
	return m
}

// RecordHit records a cache hit under the given policy.
func (m *Metrics) RecordHit(policy ir.CachePolicy) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hits[policy]++
	m.promHits.WithLabelValues(string(policy)).Inc()
}

// RecordMiss records a cache miss under the given policy.
func (m *Metrics) RecordMiss(policy ir.CachePolicy) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.misses[policy]++
	m.promMisses.WithLabelValues(string(policy)).Inc()
}

// RecordRestoreFailure records a classified restore failure.
func (m *Metrics) RecordRestoreFailure(kind RestoreErrorKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.restoreFailures[kind]++
	m.promRestoreFailures.WithLabelValues(string(kind)).Inc()
}

// RecordBytes adds to the bytes-transferred counter.
func (m *Metrics) RecordBytes(n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bytesTransferred += n
	m.promBytesTransferred.Add(float64(n))
}

// RecordCheckLatency records one cache-check's latency.
func (m *Metrics) RecordCheckLatency(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkLatencies = append(m.checkLatencies, d)
	m.promCheckLatency.Observe(d.Seconds())
}

// RecordTaskDuration records a task's execution duration.
func (m *Metrics) RecordTaskDuration(taskID string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.taskDurations[taskID] = d
}

// RecordRuntimeMaterialization records how long it took to materialize a
// runtime.
func (m *Metrics) RecordRuntimeMaterialization(runtimeID string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runtimeMaterializations[runtimeID] = d
}

// HitRate returns hits / (hits + misses) across all policies.
func (m *Metrics) HitRate() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var hits, misses int64
	for _, v := range m.hits {
		hits += v
	}
	for _, v := range m.misses {
		misses += v
	}
	if hits+misses == 0 {
		return 0
	}
	return float64(hits) / float64(hits+misses)
}

// JSONSnapshot is the structured-key shape for the JSON metrics export.
type JSONSnapshot struct {
	HitsByPolicy            map[ir.CachePolicy]int64        `json:"hits_by_policy"`
	MissesByPolicy          map[ir.CachePolicy]int64        `json:"misses_by_policy"`
	RestoreFailuresByKind   map[RestoreErrorKind]int64      `json:"restore_failures_by_kind"`
	BytesTransferred        int64                           `json:"bytes_transferred"`
	HitRate                 float64                         `json:"hit_rate"`
	TaskDurationsMS         map[string]int64                `json:"task_durations_ms"`
	RuntimeMaterializations map[string]int64                `json:"runtime_materialization_ms"`
}

// Snapshot returns a point-in-time copy suitable for JSON export.
func (m *Metrics) Snapshot() JSONSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := JSONSnapshot{
		HitsByPolicy:            make(map[ir.CachePolicy]int64, len(m.hits)),
		MissesByPolicy:          make(map[ir.CachePolicy]int64, len(m.misses)),
		RestoreFailuresByKind:   make(map[RestoreErrorKind]int64, len(m.restoreFailures)),
		TaskDurationsMS:         make(map[string]int64, len(m.taskDurations)),
		RuntimeMaterializations: make(map[string]int64, len(m.runtimeMaterializations)),
	}
	for k, v := range m.hits {
		snap.HitsByPolicy[k] = v
	}
	for k, v := range m.misses {
		snap.MissesByPolicy[k] = v
	}
	for k, v := range m.restoreFailures {
		snap.RestoreFailuresByKind[k] = v
	}
	for k, v := range m.taskDurations {
		snap.TaskDurationsMS[k] = v.Milliseconds()
	}
	for k, v := range m.runtimeMaterializations {
		snap.RuntimeMaterializations[k] = v.Milliseconds()
	}

	var hits, misses int64
	for _, v := range m.hits {
		hits += v
	}
	for _, v := range m.misses {
		misses += v
	}
	if hits+misses > 0 {
		snap.HitRate = float64(hits) / float64(hits+misses)
	}
	snap.BytesTransferred = m.bytesTransferred

	return snap
}
