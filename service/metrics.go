package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Commands      *prometheus.CounterVec
	Fills         prometheus.Counter
	FilledBaseQty prometheus.Counter
	RestingOrders *prometheus.GaugeVec
	Checkpoints   *prometheus.CounterVec
	CommandTime   prometheus.Histogram
}

// NewMetrics registers with reg; a nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Commands: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aaob",
			Name:      "commands_total",
			Help:      "Commands processed, by kind and result (ok, rejected, error).",
		}, []string{"kind", "result"}),
		Fills: f.NewCounter(prometheus.CounterOpts{
			Namespace: "aaob",
			Name:      "fills_total",
			Help:      "Maker fills produced by matching.",
		}),
		FilledBaseQty: f.NewCounter(prometheus.CounterOpts{
			Namespace: "aaob",
			Name:      "filled_base_qty_total",
			Help:      "Base quantity traded.",
		}),
		RestingOrders: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "aaob",
			Name:      "resting_orders",
			Help:      "Orders resting on the book.",
		}, []string{"market", "side"}),
		Checkpoints: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aaob",
			Name:      "checkpoints_total",
			Help:      "State checkpoints, by result.",
		}, []string{"result"}),
		CommandTime: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "aaob",
			Name:      "command_seconds",
			Help:      "Time to log, execute and publish one command.",
			Buckets:   prometheus.ExponentialBuckets(10e-6, 4, 10),
		}),
	}
}
