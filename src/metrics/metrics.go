package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the pipeline collectors. Each instance owns its registry so
// tests can build as many as they like.
type Metrics struct {
	Registry *prometheus.Registry

	TicksStored      *prometheus.CounterVec
	TicksDropped     *prometheus.CounterVec
	Reconnects       *prometheus.CounterVec
	WorkerRestarts   *prometheus.CounterVec
	WorkersConnected prometheus.Gauge
	BucketsCommitted *prometheus.CounterVec
	CycleDuration    prometheus.Histogram
	CycleFailures    prometheus.Counter
}

// -----------------------------------------------------------------------------

func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),

		TicksStored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "observer_ticks_stored_total",
			Help: "Ticks appended to the tick store.",
		}, []string{"symbol"}),

		TicksDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "observer_ticks_dropped_total",
			Help: "Feed events dropped before or during storage.",
		}, []string{"symbol", "reason"}),

		Reconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "observer_feed_reconnects_total",
			Help: "Feed sessions ended by a transport error.",
		}, []string{"symbol"}),

		WorkerRestarts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "observer_worker_restarts_total",
			Help: "Connection workers restarted by the supervisor.",
		}, []string{"symbol"}),

		WorkersConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "observer_workers_connected",
			Help: "Connection workers with a live subscription.",
		}),

		BucketsCommitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "observer_buckets_total",
			Help: "Aggregate bucket insert outcomes.",
		}, []string{"outcome"}),

		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "observer_aggregation_cycle_seconds",
			Help:    "Aggregation cycle wall time.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}),

		CycleFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "observer_aggregation_cycle_failures_total",
			Help: "Aggregation cycles aborted by a store read failure.",
		}),
	}

	m.Registry.MustRegister(
		m.TicksStored,
		m.TicksDropped,
		m.Reconnects,
		m.WorkerRestarts,
		m.WorkersConnected,
		m.BucketsCommitted,
		m.CycleDuration,
		m.CycleFailures,
	)
	return m
}

// -----------------------------------------------------------------------------
// Nil-safe recording helpers; a nil *Metrics records nothing.
// -----------------------------------------------------------------------------

const (
	OutcomeInserted  = "inserted"
	OutcomeDuplicate = "duplicate"
	OutcomeFailed    = "failed"
)

func (m *Metrics) TickStored(symbol string) {
	if m != nil {
		m.TicksStored.WithLabelValues(symbol).Inc()
	}
}

func (m *Metrics) TickDropped(symbol, reason string) {
	if m != nil {
		m.TicksDropped.WithLabelValues(symbol, reason).Inc()
	}
}

func (m *Metrics) Reconnected(symbol string) {
	if m != nil {
		m.Reconnects.WithLabelValues(symbol).Inc()
	}
}

func (m *Metrics) WorkerRestarted(symbol string) {
	if m != nil {
		m.WorkerRestarts.WithLabelValues(symbol).Inc()
	}
}

func (m *Metrics) SetConnectedWorkers(n int) {
	if m != nil {
		m.WorkersConnected.Set(float64(n))
	}
}

func (m *Metrics) BucketOutcome(outcome string) {
	if m != nil {
		m.BucketsCommitted.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) CycleFinished(seconds float64, failed bool) {
	if m == nil {
		return
	}
	m.CycleDuration.Observe(seconds)
	if failed {
		m.CycleFailures.Inc()
	}
}
