package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PasteCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clipbin_paste_created_total",
		Help: "no. of pastes created",
	})
	PasteRetrieved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clipbin_paste_retrieved_total",
		Help: "no. of pastes retrieved",
	})
	PasteDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clipbin_paste_deleted_total",
		Help: "no. of pastes deleted via token",
	})
	PasteBurned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clipbin_paste_burned_total",
		Help: "no. of burn-after-reading pastes consumed",
	})
	PastesSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clipbin_pastes_swept_total",
		Help: "no. of expired pastes removed by the reaper",
	})
	SweepCycles = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clipbin_sweep_cycles_total",
		Help: "no. of reaper sweep cycles",
	})
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clipbin_cache_hits_total",
		Help: "no. of cache hits",
	})
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clipbin_cache_misses_total",
		Help: "no. of cache misses",
	})
	DeleteRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clipbin_delete_rejected_total",
		Help: "no. of delete attempts rejected (bad id or token)",
	})
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clipbin_rate_limit_hits_total",
			Help: "no. of rate limit violations",
		},
		[]string{"endpoint"},
	)
	RecentErrorRatePercent = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "clipbin_recent_error_rate_percent",
		Help: "5min rolling avg error rate percentage",
	})
)

func Init() {
}
