package logger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metric registry shared across the engine and the API

var (
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "http_request_duration_seconds",
			Help: "Duration of HTTP requests in seconds",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "market_fetch_duration_seconds",
			Help: "Duration of upstream market data fetches in seconds",
		},
		[]string{"endpoint", "outcome"},
	)

	DroppedRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_dropped_records_total",
			Help: "Total number of malformed k-line records dropped during loads",
		},
		[]string{"symbol"},
	)

	RecomputeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "engine_recompute_duration_seconds",
			Help: "Duration of full metric/summary recomputation after a refresh",
		},
	)

	StaleLoadsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "engine_stale_loads_total",
			Help: "Total number of loads discarded by the stale-response guard",
		},
	)

	AlertEventsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "alert_events_total",
			Help: "Total number of alert events emitted by the evaluator",
		},
	)

	CacheRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metric_cache_requests_total",
			Help: "Metric row cache lookups by result",
		},
		[]string{"result"},
	)
)
