package repository

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	resultCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_result_cache_lookups_total",
			Help: "Relational listing cache lookups by result",
		},
		[]string{"result"},
	)

	resultCacheFlushes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_result_cache_flushes_total",
		Help: "Whole-tag flushes of the relational listing cache",
	})
)
