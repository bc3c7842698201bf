package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RouteQueries counts route queries by result (found, no_route, unknown_city, error)
	RouteQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "corridor_route_queries_total",
		Help: "Total route queries by result",
	}, []string{"result"})

	// CarrierQueries counts carrier queries by result
	CarrierQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "corridor_carrier_queries_total",
		Help: "Total carrier queries by result",
	}, []string{"result"})

	// QueryDuration tracks search latency per query kind
	QueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "corridor_query_duration_seconds",
		Help:    "Search duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14), // 0.1ms to ~800ms
	}, []string{"kind"})

	// CacheLookups counts result cache lookups by outcome (hit, miss, error)
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "corridor_cache_lookups_total",
		Help: "Result cache lookups by outcome",
	}, []string{"kind", "outcome"})

	// IndexBuilds counts coverage index builds by result (success, error, skipped)
	IndexBuilds = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "corridor_index_builds_total",
		Help: "Coverage index builds by result",
	}, []string{"result"})

	// IndexBuildDuration tracks coverage index build time
	IndexBuildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "corridor_index_build_duration_seconds",
		Help:    "Coverage index build duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
	})

	// DatasetReloads counts dataset refreshes by outcome (changed, unchanged, error)
	DatasetReloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "corridor_dataset_reloads_total",
		Help: "Dataset refresh attempts by outcome",
	}, []string{"outcome"})

	// RateLimited counts requests rejected by the rate limiter
	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "corridor_rate_limited_total",
		Help: "Requests rejected by the rate limiter",
	})
)
