// Package metrics defines the prometheus collectors for status changes and
// reconciliation scans.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "feeflow"

// Metrics holds every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	operations      *prometheus.CounterVec
	applyDuration   prometheus.Histogram
	mutations       *prometheus.CounterVec
	folderMoves     *prometheus.CounterVec
	scans           *prometheus.CounterVec
	scanDuration    prometheus.Histogram
	findings        *prometheus.GaugeVec
	lastScanSeconds prometheus.Gauge
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "status_operations_total",
			Help: "Status change operations by final outcome.",
		}, []string{"kind", "result"}),
		applyDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "status_apply_duration_seconds",
			Help:    "Time spent applying a confirmed status change.",
			Buckets: prometheus.ExponentialBuckets(0.005, 4, 8),
		}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "status_mutations_total",
			Help: "Individual mutations attempted while applying, by step and state.",
		}, []string{"step", "state"}),
		folderMoves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "folder_moves_total",
			Help: "Folder moves by destination root and outcome.",
		}, []string{"root", "outcome"}),
		scans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "reconcile_scans_total",
			Help: "Reconciliation scans by trigger and outcome.",
		}, []string{"trigger", "outcome"}),
		scanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "reconcile_scan_duration_seconds",
			Help:    "Duration of reconciliation scans.",
			Buckets: prometheus.DefBuckets,
		}),
		findings: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "reconcile_findings",
			Help: "Findings of the latest reconciliation scan by class.",
		}, []string{"class"}),
		lastScanSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "reconcile_last_scan_timestamp_seconds",
			Help: "Unix time of the latest completed scan.",
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.operations, m.applyDuration, m.mutations, m.folderMoves,
		m.scans, m.scanDuration, m.findings, m.lastScanSeconds,
	)
	return m
}

// Registry exposes the underlying registry for tests and custom handlers.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveOperation records the outcome of an applied or abandoned operation.
func (m *Metrics) ObserveOperation(kind, result string, seconds float64) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(kind, result).Inc()
	if seconds > 0 {
		m.applyDuration.Observe(seconds)
	}
}

// ObserveMutation records one planned mutation.
func (m *Metrics) ObserveMutation(step, state string) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(step, state).Inc()
}

// ObserveMove records a folder move.
func (m *Metrics) ObserveMove(root, outcome string) {
	if m == nil {
		return
	}
	m.folderMoves.WithLabelValues(root, outcome).Inc()
}

// ObserveScan records a scan and the size of each finding class.
func (m *Metrics) ObserveScan(trigger, outcome string, seconds float64, findings map[string]int, finishedUnix float64) {
	if m == nil {
		return
	}
	m.scans.WithLabelValues(trigger, outcome).Inc()
	m.scanDuration.Observe(seconds)
	if outcome != "ok" {
		return
	}
	for class, n := range findings {
		m.findings.WithLabelValues(class).Set(float64(n))
	}
	m.lastScanSeconds.Set(finishedUnix)
}
