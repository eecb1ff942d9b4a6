package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus 指标集合，InitMetrics 后可用。
var (
	// ItemsCreatedTotal 累计创建的物品报告数。
	ItemsCreatedTotal prometheus.Counter
	// ItemsCompletedTotal 累计标记完成的物品数。
	ItemsCompletedTotal prometheus.Counter
	// ItemsDeletedTotal 累计删除的物品数，按来源区分 (user / bulk / sweep)。
	ItemsDeletedTotal *prometheus.CounterVec
	// CacheRefreshTotal 缓存整体重载次数。
	CacheRefreshTotal prometheus.Counter
	// SweepRunsTotal 保留期清扫执行次数。
	SweepRunsTotal prometheus.Counter
	// BlobDeleteFailedTotal 照片 blob 删除失败次数（尽力而为，不影响主流程）。
	BlobDeleteFailedTotal prometheus.Counter
	// AuthRateLimitedTotal 认证接口被限流拒绝的请求数。
	AuthRateLimitedTotal prometheus.Counter
	// CachedItems 当前缓存中的物品数。
	CachedItems prometheus.Gauge
)

var initOnce sync.Once

// InitMetrics 注册所有指标（幂等，可在测试中重复调用）。
func InitMetrics() {
	initOnce.Do(func() {
		ItemsCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lostfound_items_created_total",
			Help: "Total number of item reports created.",
		})
		ItemsCompletedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lostfound_items_completed_total",
			Help: "Total number of items marked completed.",
		})
		ItemsDeletedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lostfound_items_deleted_total",
			Help: "Total number of items deleted, by source.",
		}, []string{"source"})
		CacheRefreshTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lostfound_cache_refresh_total",
			Help: "Total number of full cache reloads.",
		})
		SweepRunsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lostfound_sweep_runs_total",
			Help: "Total number of retention sweep runs.",
		})
		BlobDeleteFailedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lostfound_blob_delete_failed_total",
			Help: "Total number of failed photo blob deletions.",
		})
		AuthRateLimitedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lostfound_auth_rate_limited_total",
			Help: "Total number of auth requests rejected by the rate limiter.",
		})
		CachedItems = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lostfound_cached_items",
			Help: "Number of items currently held in the local cache.",
		})

		prometheus.MustRegister(
			ItemsCreatedTotal,
			ItemsCompletedTotal,
			ItemsDeletedTotal,
			CacheRefreshTotal,
			SweepRunsTotal,
			BlobDeleteFailedTotal,
			AuthRateLimitedTotal,
			CachedItems,
		)
	})
}
