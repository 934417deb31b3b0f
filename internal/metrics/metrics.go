package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	syncPasses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stocktake",
			Name:      "sync_passes_total",
			Help:      "Sync passes by trigger and result.",
		},
		[]string{"trigger", "result"},
	)

	pushedEntries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stocktake",
			Name:      "pushed_entries_total",
			Help:      "Queue entries pushed, by outcome.",
		},
		[]string{"outcome"},
	)

	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "stocktake",
			Name:      "queue_depth",
			Help:      "Pending entries in the mutation queue.",
		},
	)

	cachedItems = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "stocktake",
			Name:      "cached_items",
			Help:      "Reference records currently cached.",
		},
	)

	lastSyncTimestamp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "stocktake",
			Name:      "last_sync_timestamp_seconds",
			Help:      "Unix time of the last pass that delivered anything.",
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(syncPasses, pushedEntries, queueDepth, cachedItems, lastSyncTimestamp)
	})
}

// IncSyncPass counts one pass outcome for a trigger label.
func IncSyncPass(trigger, result string) {
	syncPasses.WithLabelValues(trigger, result).Inc()
}

// IncPushed counts one entry outcome: succeeded, failed, conflict, discarded.
func IncPushed(outcome string) {
	pushedEntries.WithLabelValues(outcome).Inc()
}

// SetQueueDepth publishes the current pending count.
func SetQueueDepth(n int) {
	queueDepth.Set(float64(n))
}

// SetCachedItems publishes the current cache size.
func SetCachedItems(n int) {
	cachedItems.Set(float64(n))
}

// SetLastSync publishes the time of the last delivering pass.
func SetLastSync(unixSeconds int64) {
	lastSyncTimestamp.Set(float64(unixSeconds))
}
