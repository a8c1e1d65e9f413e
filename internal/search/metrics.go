package search

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	searchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_search_requests_total",
			Help: "Engine search attempts by outcome (served, or the fallback reason)",
		},
		[]string{"outcome"},
	)

	searchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "catalog_search_engine_duration_seconds",
			Help:    "Latency of engine search round trips",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"outcome"},
	)

	searchHealthReports = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_search_health_reports_total",
			Help: "Engine health states written by the reporter",
		},
		[]string{"status"},
	)
)
