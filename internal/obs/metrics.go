// Package obs holds the process-wide prometheus instruments.
package obs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PollCycles = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vaultbot_poll_cycles_total",
		Help: "The total number of rebalance poll cycles",
	})
	PollErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vaultbot_poll_errors_total",
		Help: "The total number of poll cycles skipped due to upstream errors",
	})
	EventsRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vaultbot_events_recorded_total",
		Help: "The total number of rebalance events recorded in the ledger",
	})
	EventsDuplicate = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vaultbot_events_duplicate_total",
		Help: "The total number of already-recorded events skipped by the pipeline",
	})
	NotificationsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vaultbot_notifications_sent_total",
		Help: "The total number of notifications delivered to subscribers",
	})
	NotificationsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vaultbot_notifications_failed_total",
		Help: "The total number of per-recipient delivery failures",
	})
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vaultbot_summary_cache_hits_total",
		Help: "The total number of summary requests served from the fresh cache",
	})
	CacheFetches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vaultbot_summary_cache_fetches_total",
		Help: "The total number of upstream summary fetches",
	})
	CacheStale = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vaultbot_summary_cache_stale_total",
		Help: "The total number of summary requests served stale after a fetch failure",
	})
	QueueRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vaultbot_queue_retries_total",
		Help: "The total number of rebalance jobs requeued after a failure",
	})
)
