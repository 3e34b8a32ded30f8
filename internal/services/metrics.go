package services

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	transitionsTotal *prometheus.CounterVec
	deniedTotal      *prometheus.CounterVec
	conflictsTotal   prometheus.Counter

	sequenceCollisions prometheus.Counter
	sequenceExhausted  prometheus.Counter

	dispatchTotal   *prometheus.CounterVec
	deadTotal       prometheus.Counter
	dispatchLatency *prometheus.HistogramVec
}

var metricsSingleton = sync.OnceValue(func() *metrics {
	return &metrics{
		transitionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crf",
			Subsystem: "workflow",
			Name:      "transitions_total",
			Help:      "Total number of applied workflow actions.",
		}, []string{"action", "to"}),
		deniedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crf",
			Subsystem: "workflow",
			Name:      "denied_total",
			Help:      "Total number of rejected workflow actions by reason.",
		}, []string{"action", "reason"}),
		conflictsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "crf",
			Subsystem: "workflow",
			Name:      "version_conflicts_total",
			Help:      "Total number of optimistic lock conflicts.",
		}),
		sequenceCollisions: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "crf",
			Subsystem: "sequence",
			Name:      "collisions_total",
			Help:      "Total number of candidate numbers that were already taken.",
		}),
		sequenceExhausted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "crf",
			Subsystem: "sequence",
			Name:      "exhausted_total",
			Help:      "Total number of number allocations that ran out of attempts.",
		}),
		dispatchTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crf",
			Subsystem: "notification",
			Name:      "dispatch_total",
			Help:      "Total number of notification deliveries.",
		}, []string{"channel", "result"}),
		deadTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "crf",
			Subsystem: "notification",
			Name:      "dead_total",
			Help:      "Total number of notifications that ran out of attempts.",
		}),
		dispatchLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "crf",
			Subsystem: "notification",
			Name:      "dispatch_latency_seconds",
			Help:      "Latency distribution for notification delivery.",
			Buckets: []float64{
				0.01, 0.02, 0.05,
				0.1, 0.2, 0.5,
				1, 2, 5, 10,
			},
		}, []string{"result"}),
	}
})

func getMetrics() *metrics {
	return metricsSingleton()
}
