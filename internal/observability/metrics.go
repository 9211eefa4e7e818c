package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	APIRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "msgcache_api_requests_total", Help: "API requests"},
		[]string{"endpoint", "status"},
	)
	CacheReads = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "msgcache_thread_reads_total", Help: "Thread cache read results"},
		[]string{"result"}, // hit, miss, error, disabled
	)
	CacheWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "msgcache_thread_writes_total", Help: "Thread cache writes"},
		[]string{"mode"}, // append, rebuild
	)
	SaveOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "msgcache_save_total", Help: "Message save outcomes"},
		[]string{"outcome"}, // saved, duplicate, orphan
	)
	OrphanPublishes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "msgcache_orphan_publish_total", Help: "Orphan sink publish results"},
		[]string{"result"},
	)
	CacheSeeds = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "msgcache_thread_seeds_total", Help: "Thread cache entries seeded from bulk reads"},
	)
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(APIRequests, CacheReads, CacheWrites, SaveOutcomes, OrphanPublishes, CacheSeeds)
}
