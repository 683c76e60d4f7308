// Package metrics counts what a run did and exports the counters in the
// Prometheus text format, for node_exporter's textfile collector or CI
// artifacts. All methods are safe on a nil *Metrics.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "catalog"

// Metrics holds the run counters.
type Metrics struct {
	registry *prometheus.Registry

	Publishes   *prometheus.CounterVec
	Fetches     *prometheus.CounterVec
	Descriptors *prometheus.CounterVec
	NewVersions *prometheus.CounterVec
	LastRun     prometheus.Gauge
	RunDuration prometheus.Gauge

	started time.Time
}

// New creates a Metrics with its own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		started:  time.Now(),

		Publishes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "publish_total",
				Help:      "Registry admin calls by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		Fetches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetch_total",
				Help:      "Repository fetch attempts by artifact kind and outcome",
			},
			[]string{"artifact", "outcome"},
		),
		Descriptors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "descriptors_total",
				Help:      "Descriptors processed by kind and result",
			},
			[]string{"kind", "result"},
		),
		NewVersions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "new_versions_total",
				Help:      "Newly discovered upstream versions by descriptor kind",
			},
			[]string{"kind"},
		),
		LastRun: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the run finished",
		}),
		RunDuration: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the run",
		}),
	}
}

// Publish counts one registry call.
func (m *Metrics) Publish(kind, outcome string) {
	if m == nil {
		return
	}

	m.Publishes.WithLabelValues(kind, outcome).Inc()
}

// Fetch counts one repository fetch attempt.
func (m *Metrics) Fetch(artifact, outcome string) {
	if m == nil {
		return
	}

	m.Fetches.WithLabelValues(artifact, outcome).Inc()
}

// Descriptor counts one processed descriptor.
func (m *Metrics) Descriptor(kind, result string) {
	if m == nil {
		return
	}

	m.Descriptors.WithLabelValues(kind, result).Inc()
}

// AddNewVersions adds n discovered versions.
func (m *Metrics) AddNewVersions(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}

	m.NewVersions.WithLabelValues(kind).Add(float64(n))
}

// Gatherer exposes the underlying registry.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	if m == nil {
		return prometheus.NewRegistry()
	}

	return m.registry
}

// WriteTextfile stamps the run gauges and writes every metric to path.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}

	now := time.Now()
	m.LastRun.Set(float64(now.Unix()))
	m.RunDuration.Set(now.Sub(m.started).Seconds())

	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}

	return nil
}
