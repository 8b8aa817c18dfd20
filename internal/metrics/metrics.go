package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Run outcomes used as the "outcome" label.
const (
	OutcomeInserted     = "inserted"
	OutcomeNoChange     = "no_change"
	OutcomeFetchError   = "fetch_error"
	OutcomeStorageError = "storage_error"
	OutcomeDropped      = "dropped"
)

// Metrics groups the collectors exported on /metrics. A nil *Metrics is a no-op.
type Metrics struct {
	runs             *prometheus.CounterVec
	inserted         prometheus.Counter
	runDuration      prometheus.Histogram
	subscribers      prometheus.Gauge
	deliveryFailures prometheus.Counter
	sinkFailures     *prometheus.CounterVec
}

// New creates and registers all collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storystream",
			Name:      "ingestion_runs_total",
			Help:      "Ingestion runs by outcome.",
		}, []string{"outcome"}),
		inserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storystream",
			Name:      "records_inserted_total",
			Help:      "Records persisted by the ingestion pipeline.",
		}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "storystream",
			Name:      "ingestion_run_duration_seconds",
			Help:      "Wall time of executed ingestion runs.",
			Buckets:   prometheus.DefBuckets,
		}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "storystream",
			Name:      "subscribers",
			Help:      "Currently registered subscriber connections.",
		}),
		deliveryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storystream",
			Name:      "delivery_failures_total",
			Help:      "Subscribers dropped after a failed or timed-out send.",
		}),
		sinkFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storystream",
			Name:      "sink_failures_total",
			Help:      "Delta sink publish failures.",
		}, []string{"sink"}),
	}

	if reg != nil {
		reg.MustRegister(m.runs, m.inserted, m.runDuration, m.subscribers, m.deliveryFailures, m.sinkFailures)
	}
	return m
}

// RunFinished records an executed run.
func (m *Metrics) RunFinished(outcome string, inserted int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(outcome).Inc()
	m.runDuration.Observe(elapsed.Seconds())
	if inserted > 0 {
		m.inserted.Add(float64(inserted))
	}
}

// RunDropped records a tick or trigger rejected by the scheduler.
func (m *Metrics) RunDropped() {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(OutcomeDropped).Inc()
}

// SetSubscribers publishes the current subscriber count.
func (m *Metrics) SetSubscribers(n int) {
	if m == nil {
		return
	}
	m.subscribers.Set(float64(n))
}

// DeliveryFailed counts a dropped subscriber.
func (m *Metrics) DeliveryFailed() {
	if m == nil {
		return
	}
	m.deliveryFailures.Inc()
}

// SinkFailed counts a failed delta sink publish.
func (m *Metrics) SinkFailed(sink string) {
	if m == nil {
		return
	}
	m.sinkFailures.WithLabelValues(sink).Inc()
}
