// Package metrics holds the Prometheus collectors of a traffic-board run.
//
// The fetcher runs from cron rather than as a server, so metrics are not
// scraped. Instead the registry is dumped to a node_exporter textfile at
// the end of every run when a metrics file is configured.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "traffic_board"

// Metrics contains the collectors updated during a run.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Lookups counts speed lookups by source (tile, segment, skipped) and
	// result (ok or a failure kind).
	Lookups *prometheus.CounterVec

	// FetchDuration observes upstream request latency by source.
	FetchDuration *prometheus.HistogramVec

	// Targets counts the outcome state of every canonical target.
	Targets *prometheus.CounterVec

	// Artifacts counts artifact writes by format and status.
	Artifacts *prometheus.CounterVec

	// LastSuccess is the unix time of the last successful run per direction
	// and metric kind.
	LastSuccess *prometheus.GaugeVec
}

// New creates a Metrics instance with all collectors registered on a fresh
// registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		Lookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "source",
				Name:      "lookups_total",
				Help:      "Total number of speed lookups by source and result",
			},
			[]string{"source", "result"},
		),

		FetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "source",
				Name:      "fetch_duration_seconds",
				Help:      "Upstream request latency by source",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"source"},
		),

		Targets: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "targets_total",
				Help:      "Canonical targets by direction and outcome state",
			},
			[]string{"direction", "state"},
		),

		Artifacts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "artifacts_total",
				Help:      "Artifact writes by format and status",
			},
			[]string{"format", "status"},
		),

		LastSuccess: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "last_success_timestamp_seconds",
				Help:      "Unix time of the last successful run",
			},
			[]string{"direction", "metric"},
		),
	}

	m.registry.MustRegister(
		m.Lookups,
		m.FetchDuration,
		m.Targets,
		m.Artifacts,
		m.LastSuccess,
	)
	return m
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveLookup records one lookup attempt.
func (m *Metrics) ObserveLookup(source, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Lookups.WithLabelValues(source, result).Inc()
	if elapsed > 0 {
		m.FetchDuration.WithLabelValues(source).Observe(elapsed.Seconds())
	}
}

// ObserveTarget records the final outcome state of a target.
func (m *Metrics) ObserveTarget(direction, state string) {
	if m == nil {
		return
	}
	m.Targets.WithLabelValues(direction, state).Inc()
}

// ObserveArtifact records an artifact write.
func (m *Metrics) ObserveArtifact(format string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.Artifacts.WithLabelValues(format, status).Inc()
}

// MarkSuccess sets the last-success gauge for a direction and metric kind.
func (m *Metrics) MarkSuccess(direction, metric string, at time.Time) {
	if m == nil {
		return
	}
	m.LastSuccess.WithLabelValues(direction, metric).Set(float64(at.Unix()))
}

// WriteTextfile writes every collected metric to path in the Prometheus
// text format. The file is replaced atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile %s: %w", path, err)
	}
	return nil
}
