// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はPrometheusメトリクスを収集する実装。
// sync.MetricsCollectorを満たす。
type Collector struct {
	syncSuccess  prometheus.Counter
	syncFail     *prometheus.CounterVec
	syncLatency  prometheus.Histogram
	todosCreated prometheus.Counter
	todosUpdated prometheus.Counter
	todosDeleted prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		syncSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "caltodo_sync_success_total",
			Help: "フィード同期成功の合計数",
		}),
		syncFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "caltodo_sync_fail_total",
			Help: "フィード同期失敗の合計数（失敗理由別）",
		}, []string{"reason"}),
		syncLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "caltodo_sync_latency_seconds",
			Help:    "フィード同期のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		todosCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "caltodo_todos_created_total",
			Help: "同期により作成されたTodoの合計数",
		}),
		todosUpdated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "caltodo_todos_updated_total",
			Help: "同期により更新されたTodoの合計数",
		}),
		todosDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "caltodo_todos_deleted_total",
			Help: "同期により削除されたTodoの合計数",
		}),
	}

	reg.MustRegister(
		c.syncSuccess,
		c.syncFail,
		c.syncLatency,
		c.todosCreated,
		c.todosUpdated,
		c.todosDeleted,
	)

	return c
}

// RecordSyncSuccess は同期成功を記録する。
func (c *Collector) RecordSyncSuccess(feedID string) {
	c.syncSuccess.Inc()
}

// RecordSyncFailure は同期失敗を失敗理由付きで記録する。
func (c *Collector) RecordSyncFailure(feedID string, reason string) {
	c.syncFail.WithLabelValues(reason).Inc()
}

// RecordSyncLatency は同期のレイテンシを記録する。
func (c *Collector) RecordSyncLatency(duration time.Duration) {
	c.syncLatency.Observe(duration.Seconds())
}

// RecordTodoMutations は同期によるTodoの作成・更新・削除数を記録する。
func (c *Collector) RecordTodoMutations(created, updated, deleted int) {
	c.todosCreated.Add(float64(created))
	c.todosUpdated.Add(float64(updated))
	c.todosDeleted.Add(float64(deleted))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
