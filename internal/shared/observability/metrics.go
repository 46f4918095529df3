package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	RunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reflscan_run_seconds",
		Help:    "Time spent generating descriptors for one source unit.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})

	AnalysisDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reflscan_stage_seconds",
		Help:    "Time spent in one stage of a run (decode, walk, render).",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})

	RecordsEmittedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reflscan_records_emitted_total",
		Help: "Total number of descriptor records appended, by directive.",
	}, []string{"directive"})

	DeclarationsSkippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reflscan_declarations_skipped_total",
		Help: "Total number of declarations deliberately left out of the descriptor stream, by reason.",
	}, []string{"reason"})

	DiagnosticsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reflscan_diagnostics_total",
		Help: "Total number of diagnostics reported, by kind.",
	}, []string{"kind"})

	CacheLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reflscan_cache_lookups_total",
		Help: "Total number of descriptor cache lookups, by result.",
	}, []string{"result"})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reflscan_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})

	RegenerationsThrottledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reflscan_regenerations_throttled_total",
		Help: "Total number of watch-mode regenerations delayed by the rate limiter.",
	})
)
