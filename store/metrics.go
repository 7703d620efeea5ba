package store

import "github.com/prometheus/client_golang/prometheus"

// Metrics tracks commits of top-level caches into durable state.
type Metrics struct {
	commitDuration prometheus.Histogram
	commitWrites   prometheus.Counter
	discards       prometheus.Counter
}

// NewMetrics creates the store collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		commitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "poolfactory",
			Subsystem: "store",
			Name:      "commit_duration_seconds",
			Help:      "Time spent flushing a transaction cache into durable state.",
			Buckets:   prometheus.DefBuckets,
		}),
		commitWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "poolfactory",
			Subsystem: "store",
			Name:      "commit_writes_total",
			Help:      "Keys written or deleted by committed transactions.",
		}),
		discards: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "poolfactory",
			Subsystem: "store",
			Name:      "discards_total",
			Help:      "Transaction caches rolled back.",
		}),
	}
	reg.MustRegister(m.commitDuration, m.commitWrites, m.discards)
	return m
}
