// Package metrics holds the Prometheus collectors for query executions and the result cache.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cache lookup outcomes.
const (
	OutcomeHit         = "hit"
	OutcomeMiss        = "miss"
	OutcomeStale       = "stale"
	OutcomeOrphaned    = "orphaned"
	OutcomeCorrupt     = "corrupt"
	OutcomeUnavailable = "unavailable"
)

var (
	// CacheLookups tracks cache lookups by outcome
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "athenaq_cache_lookups_total",
			Help: "Total number of execution cache lookups",
		},
		[]string{"outcome"},
	)

	// CacheWriteErrors tracks failed cache writes
	CacheWriteErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "athenaq_cache_write_errors_total",
			Help: "Total number of execution cache writes that failed",
		},
	)

	// RemoteCalls tracks calls to the remote query service per operation
	RemoteCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "athenaq_remote_calls_total",
			Help: "Total number of remote query service calls",
		},
		[]string{"op"},
	)

	// RemoteRetries tracks retried remote calls per operation
	RemoteRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "athenaq_remote_retries_total",
			Help: "Total number of remote calls retried after a transient error",
		},
		[]string{"op"},
	)

	// Executions tracks finished engine runs by how they ended
	Executions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "athenaq_executions_total",
			Help: "Total number of query executions by result",
		},
		[]string{"result"},
	)

	// ExecutionDuration tracks end-to-end execution latency
	ExecutionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "athenaq_execution_duration_seconds",
			Help:    "Query execution latency in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"source"},
	)
)
