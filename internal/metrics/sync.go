package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Index synchronization and search metrics.
var (
	SyncOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "sync_operations_total",
			Help:      "Index mutations by action (index, reindex, deindex, webhook_*) and status",
		},
		[]string{"action", "status"},
	)

	ResyncRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "resync_records_total",
			Help:      "Records processed by full resyncs, by status (indexed / error)",
		},
		[]string{"status"},
	)

	OwnerLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "owner_lookups_total",
			Help:      "Owner enrichment lookups by result (ok / not_found / degraded / skipped)",
		},
		[]string{"result"},
	)

	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "search_requests_total",
			Help:      "Search requests by outcome (ok / degraded / error)",
		},
		[]string{"outcome"},
	)

	HydrationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "hydration_total",
			Help:      "Candidate hydrations by result (ok / not_found / fallback)",
		},
		[]string{"result"},
	)
)

var registerSync sync.Once

// RegisterSyncMetrics registers the sync and search metrics. Safe to call more than once.
func RegisterSyncMetrics() {
	registerSync.Do(func() {
		prometheus.MustRegister(
			SyncOperationsTotal,
			ResyncRecordsTotal,
			OwnerLookupsTotal,
			SearchRequestsTotal,
			HydrationTotal,
		)
	})
}
