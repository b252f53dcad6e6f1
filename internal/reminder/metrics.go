package reminder

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	deliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reminder_deliveries_total",
		Help: "Delivery attempts by channel and outcome.",
	}, []string{"channel", "outcome"})
	auditErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reminder_delivery_record_errors_total",
		Help: "Delivery records that could not be written.",
	})
	sweepPairs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reminder_sweep_pairs_total",
		Help: "Sweep candidates by result (reminded, skipped, failed).",
	}, []string{"result"})
	sweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "reminder_sweep_duration_seconds",
		Help:    "Duration of a full reminder sweep.",
		Buckets: prometheus.DefBuckets,
	})
	sweepsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reminder_sweeps_skipped_total",
		Help: "Sweeps refused because another one was running.",
	})
	dispatchTargets = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reminder_dispatch_targets_total",
		Help: "Immediate dispatch targets by result (sent, skipped_read, failed).",
	}, []string{"result"})
)
