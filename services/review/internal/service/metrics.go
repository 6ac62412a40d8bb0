package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	recomputeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_summary_recompute_total",
			Help: "Total number of product aggregate recomputations by result",
		},
		[]string{"result"},
	)

	recomputeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "review_summary_recompute_duration_seconds",
			Help:    "Time spent recomputing and writing back a product aggregate",
			Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	bulkSummaryIDs = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "review_bulk_summary_ids",
			Help:    "Identifiers per bulk summary request, split into cache hits and misses",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 200, 300},
		},
		[]string{"result"},
	)
)
