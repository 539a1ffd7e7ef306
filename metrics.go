package main

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// runMetrics collects per-run counters, written as a node-exporter
// textfile when the run ends
type runMetrics struct {
	registry    *prometheus.Registry
	accepted    prometheus.Counter
	stages      *prometheus.HistogramVec
	volume      prometheus.Gauge
	discrepancy prometheus.Gauge
	outcome     *prometheus.GaugeVec
}

func newRunMetrics() *runMetrics {
	m := &runMetrics{
		registry: prometheus.NewRegistry(),
		accepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "shape_studio",
			Name:      "accepted_iterations_total",
			Help:      "Proposals accepted as the new canonical program.",
		}),
		stages: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "shape_studio",
			Name:      "stage_duration_seconds",
			Help:      "Time spent in each loop stage.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"stage"}),
		volume: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "shape_studio",
			Name:      "solid_volume",
			Help:      "Volume of the most recently executed solid.",
		}),
		discrepancy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "shape_studio",
			Name:      "symmetric_difference_volume",
			Help:      "Symmetric-difference volume between the latest solid and the reference.",
		}),
		outcome: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "shape_studio",
			Name:      "outcome",
			Help:      "Terminal state of the run (1 for the state reached).",
		}, []string{"state"}),
	}
	m.registry.MustRegister(m.accepted, m.stages, m.volume, m.discrepancy, m.outcome)
	return m
}

func (m *runMetrics) observe(stage string, d time.Duration) {
	m.stages.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *runMetrics) finish(state State) {
	for _, s := range []State{StateConverged, StateExhausted, StateFailed} {
		v := 0.0
		if s == state {
			v = 1
		}
		m.outcome.WithLabelValues(s.String()).Set(v)
	}
}

func (m *runMetrics) write(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
