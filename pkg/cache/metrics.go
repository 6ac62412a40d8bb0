package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts lookups by cache name and result (hit or miss), and
	// conditional sets discarded after a concurrent delete (stale_set).
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_requests_total",
			Help: "Total number of cache lookups by result",
		},
		[]string{"cache", "result"},
	)

	// EvictionsTotal counts entries removed by reason (expired, deleted, swept).
	EvictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_evictions_total",
			Help: "Total number of cache entries removed by reason",
		},
		[]string{"cache", "reason"},
	)

	// Entries reports the current number of stored entries, including expired
	// entries that have not been swept yet.
	Entries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cache_entries",
			Help: "Current number of entries held by the cache",
		},
		[]string{"cache"},
	)
)
