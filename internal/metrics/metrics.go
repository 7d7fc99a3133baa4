package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CallsTotal tracks decorated calls by final status
	CallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redial_calls_total",
			Help: "Total number of decorated calls by final status",
		},
		[]string{"status"},
	)

	// RetriesTotal tracks retry rounds by kind
	RetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redial_retries_total",
			Help: "Total number of retry rounds",
		},
		[]string{"kind"},
	)

	// ReportedErrors tracks failure events handed to the reporting sink
	ReportedErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "redial_reported_errors_total",
			Help: "Total number of failure events handed to the reporting sink",
		},
	)

	// WaitSeconds tracks how long calls spend waiting between attempts
	WaitSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "redial_wait_seconds",
			Help:    "Delay applied before a retry attempt in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 13),
		},
	)
)
