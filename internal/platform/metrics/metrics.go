package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Package-level collectors registered on the default registry, exposed via
// /metrics. Lock and cache metrics are observed from the platform layers;
// submit outcomes from the workflow engine.
var (
	LockWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ncrtrack_lock_wait_seconds",
		Help:    "Time spent waiting to acquire a table write lock",
		Buckets: []float64{0.001, 0.005, 0.025, 0.1, 0.5, 1, 2.5, 5, 10},
	})

	LockBusyTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ncrtrack_lock_busy_total",
		Help: "Lock acquisitions that timed out and surfaced as busy",
	})

	CacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ncrtrack_config_cache_hits_total",
		Help: "Configuration cache hits",
	})

	CacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ncrtrack_config_cache_misses_total",
		Help: "Configuration cache misses, including expired and undecodable entries",
	})

	SubmitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ncrtrack_submits_total",
		Help: "Record submissions by outcome",
	}, []string{"outcome"})
)
