package graph

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects Prometheus metrics for the editing core.
//
// Metrics exposed (all namespaced with "flowstudio_"):
//
//  1. mutations_total (counter): reducer mutations. Labels: kind, result (applied/noop/rejected).
//  2. history_pushes_total (counter): snapshot pushes. Labels: outcome (committed/duplicate/deferred).
//  3. history_depth (gauge): snapshots on each stack. Labels: stack (past/future).
//  4. debug_step_latency_ms (histogram): dispatch round trip per debug step. Labels: status.
//  5. debug_node_outcomes_total (counter): node results written by debug steps. Labels: status.
//  6. dispatch_failures_total (counter): failed dispatch calls.
//
// Usage:
//
//	registry := prometheus.NewRegistry()
//	metrics := graph.NewMetrics(registry)
//	g, _ := graph.NewGraph(nodes, edges, graph.WithMetrics(metrics))
//	http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
//
// Every method is safe on a nil *Metrics, so callers never need to guard.
type Metrics struct {
	mutations        *prometheus.CounterVec
	historyPushes    *prometheus.CounterVec
	historyDepth     *prometheus.GaugeVec
	stepLatency      *prometheus.HistogramVec
	nodeOutcomes     *prometheus.CounterVec
	dispatchFailures prometheus.Counter

	mu      sync.RWMutex
	enabled bool
}

// NewMetrics creates and registers all metrics with registry. A nil registry
// means prometheus.DefaultRegisterer.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		enabled: true,
		mutations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flowstudio",
			Name:      "mutations_total",
			Help:      "Node mutations processed by the reducer",
		}, []string{"kind", "result"}),
		historyPushes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flowstudio",
			Name:      "history_pushes_total",
			Help:      "Snapshot pushes by outcome",
		}, []string{"outcome"}),
		historyDepth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "flowstudio",
			Name:      "history_depth",
			Help:      "Snapshots held on the past and future stacks",
		}, []string{"stack"}),
		stepLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "flowstudio",
			Name:      "debug_step_latency_ms",
			Help:      "Debug step duration in milliseconds (dispatch round trip)",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000, 60000},
		}, []string{"status"}),
		nodeOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flowstudio",
			Name:      "debug_node_outcomes_total",
			Help:      "Node results written by debug steps",
		}, []string{"status"}),
		dispatchFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "flowstudio",
			Name:      "dispatch_failures_total",
			Help:      "Dispatch service calls that failed",
		}),
	}
}

func (m *Metrics) on() bool {
	if m == nil {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.enabled
}

// RecordMutation counts one reducer call.
func (m *Metrics) RecordMutation(kind MutationKind, result string) {
	if !m.on() {
		return
	}
	m.mutations.WithLabelValues(string(kind), result).Inc()
}

// RecordHistoryPush counts one snapshot push.
func (m *Metrics) RecordHistoryPush(outcome string) {
	if !m.on() {
		return
	}
	m.historyPushes.WithLabelValues(outcome).Inc()
}

// SetHistoryDepth records the current stack sizes.
func (m *Metrics) SetHistoryDepth(past, future int) {
	if !m.on() {
		return
	}
	m.historyDepth.WithLabelValues("past").Set(float64(past))
	m.historyDepth.WithLabelValues("future").Set(float64(future))
}

// RecordDebugStep observes the duration of one debug step.
func (m *Metrics) RecordDebugStep(latency time.Duration, status string) {
	if !m.on() {
		return
	}
	m.stepLatency.WithLabelValues(status).Observe(float64(latency.Milliseconds()))
}

// RecordNodeOutcome counts a node result written by a debug step.
func (m *Metrics) RecordNodeOutcome(status RunStatus) {
	if !m.on() {
		return
	}
	m.nodeOutcomes.WithLabelValues(string(status)).Inc()
}

// IncrementDispatchFailures counts a failed dispatch call.
func (m *Metrics) IncrementDispatchFailures() {
	if !m.on() {
		return
	}
	m.dispatchFailures.Inc()
}

// Disable stops metric recording (useful in tests).
func (m *Metrics) Disable() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = false
}

// Enable resumes metric recording.
func (m *Metrics) Enable() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = true
}
