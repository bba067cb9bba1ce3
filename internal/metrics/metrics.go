// Package metrics counts station operations in a private Prometheus
// registry. A console run has no scrape endpoint; the registry can be
// written to a node-exporter textfile at exit.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "stationflow"

// Outcome label values.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Metrics holds every collector. A nil *Metrics is a valid no-op recorder.
type Metrics struct {
	reg *prometheus.Registry

	// Operations counts service operations by name and outcome.
	Operations *prometheus.CounterVec
	// Duration observes operation latency by name.
	Duration *prometheus.HistogramVec
	// CatalogMisses counts lookups of unknown process types.
	CatalogMisses *prometheus.CounterVec
	// Snapshots counts appended snapshots.
	Snapshots prometheus.Counter
	// Stations is the number of stations seen by the last listing.
	Stations prometheus.Gauge
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Station operations by name and outcome.",
		}, []string{"operation", "outcome"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Station operation latency.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"operation"}),
		CatalogMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_misses_total",
			Help:      "Lookups of process types missing from the catalog.",
		}, []string{"process_type"}),
		Snapshots: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_appended_total",
			Help:      "Equipment state snapshots appended.",
		}),
		Stations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stations",
			Help:      "Stations in the last listing.",
		}),
	}
	m.reg.MustRegister(m.Operations, m.Duration, m.CatalogMisses, m.Snapshots, m.Stations)
	return m
}

// Registry exposes the private registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Observe records one operation. Use as
// defer m.Observe("create", time.Now(), &err).
func (m *Metrics) Observe(op string, start time.Time, errp *error) {
	if m == nil {
		return
	}
	outcome := OutcomeOK
	if errp != nil && *errp != nil {
		outcome = OutcomeError
	}
	m.Operations.WithLabelValues(op, outcome).Inc()
	m.Duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// CatalogMiss is an ordering.MissHook.
func (m *Metrics) CatalogMiss(processType string) {
	if m == nil {
		return
	}
	m.CatalogMisses.WithLabelValues(processType).Inc()
}

// SnapshotAppended increments the snapshot counter.
func (m *Metrics) SnapshotAppended() {
	if m == nil {
		return
	}
	m.Snapshots.Inc()
}

// SetStations records the station count.
func (m *Metrics) SetStations(n int) {
	if m == nil {
		return
	}
	m.Stations.Set(float64(n))
}

// WriteTextfile writes the registry in text exposition format to path.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.reg)
}
