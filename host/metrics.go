package host

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the host's transaction, dispatch and reply collectors.
type Metrics struct {
	txTotal       *prometheus.CounterVec
	txDuration    *prometheus.HistogramVec
	dispatchTotal *prometheus.CounterVec
	replyTotal    *prometheus.CounterVec
}

// NewMetrics creates the host collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		txTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "poolfactory",
				Subsystem: "host",
				Name:      "tx_total",
				Help:      "Top-level transactions by entry point and outcome.",
			},
			[]string{"entry", "status"},
		),
		txDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "poolfactory",
				Subsystem: "host",
				Name:      "tx_duration_seconds",
				Help:      "Wall time of a top-level transaction including every dispatch and reply.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"entry"},
		),
		dispatchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "poolfactory",
				Subsystem: "host",
				Name:      "dispatch_total",
				Help:      "Dispatches executed by kind and outcome.",
			},
			[]string{"kind", "outcome"},
		),
		replyTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "poolfactory",
				Subsystem: "host",
				Name:      "reply_total",
				Help:      "Replies delivered to contracts by outcome.",
			},
			[]string{"status"},
		),
	}
	reg.MustRegister(m.txTotal, m.txDuration, m.dispatchTotal, m.replyTotal)
	return m
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
