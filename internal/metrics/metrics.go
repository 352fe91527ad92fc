// Package metrics exposes Prometheus collectors for runs and their record
// outcomes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"orgsetup/internal/executor"
)

type Metrics struct {
	runs        *prometheus.CounterVec
	records     *prometheus.CounterVec
	runDuration *prometheus.HistogramVec
	runsActive  prometheus.Gauge
}

// MustNewMetrics registers the collectors with reg, or the default
// registerer when reg is nil. Collectors already registered under the same
// name are reused, any other registration error panics.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "orgsetup",
				Name:      "runs_total",
				Help:      "Finished runs by kind and final status.",
			},
			[]string{"kind", "status"},
		),
		records: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "orgsetup",
				Name:      "records_total",
				Help:      "Reconciled records by entity and outcome.",
			},
			[]string{"entity", "outcome"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "orgsetup",
				Name:      "run_duration_seconds",
				Help:      "Wall time of finished runs.",
				Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 1200, 3600},
			},
			[]string{"kind"},
		),
		runsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "orgsetup",
				Name:      "runs_active",
				Help:      "Runs currently driving a browser.",
			},
		),
	}

	m.runs = register(reg, m.runs)
	m.records = register(reg, m.records)
	m.runDuration = register(reg, m.runDuration)
	m.runsActive = register(reg, m.runsActive)
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func (m *Metrics) RunStarted(*executor.Result) {
	if m == nil {
		return
	}
	m.runsActive.Inc()
}

func (m *Metrics) RunFinished(r *executor.Result) {
	if m == nil {
		return
	}
	m.runsActive.Dec()
	m.runs.WithLabelValues(string(r.Kind), string(r.Status)).Inc()
	m.runDuration.WithLabelValues(string(r.Kind)).Observe(r.Duration().Seconds())
	for _, rec := range r.Records {
		m.records.WithLabelValues(rec.Entity, string(rec.Outcome)).Inc()
	}
}
