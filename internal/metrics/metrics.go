// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// リポジトリ、サービス層、ミドルウェア、ワーカーから利用する。
type MetricsCollector interface {
	ObserveStoreOperation(operation string, duration time.Duration, err error)
	RecordHTTPStatus(statusCode int)
	RecordSkippedField(field string)
	RecordTagAssignment(mode string, err error)
	RecordWaitlistAdded(count int)
	RecordCleanup(orphanTags, danglingCategories int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	storeOps          *prometheus.CounterVec
	storeLatency      *prometheus.HistogramVec
	httpStatus        *prometheus.CounterVec
	skippedFields     *prometheus.CounterVec
	tagAssignments    *prometheus.CounterVec
	waitlistAdded     prometheus.Counter
	cleanupOrphanTags prometheus.Counter
	cleanupCategories prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		storeOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blogdesk_store_operations_total",
			Help: "ストア操作の結果別の合計数",
		}, []string{"operation", "outcome"}),
		storeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "blogdesk_store_operation_duration_seconds",
			Help:    "ストア操作のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blogdesk_http_requests_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		skippedFields: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blogdesk_post_optional_fields_skipped_total",
			Help: "記事作成時に保存できなかった任意項目の数",
		}, []string{"field"}),
		tagAssignments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blogdesk_tag_assignments_total",
			Help: "タグ割り当ての実行モードと結果別の合計数",
		}, []string{"mode", "outcome"}),
		waitlistAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blogdesk_waitlist_added_total",
			Help: "ウェイトリストに追加されたメールアドレスの合計数",
		}),
		cleanupOrphanTags: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blogdesk_cleanup_orphan_post_tags_total",
			Help: "クリーンアップで削除された孤立した記事タグの合計数",
		}),
		cleanupCategories: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blogdesk_cleanup_dangling_categories_total",
			Help: "クリーンアップでNULLに戻されたカテゴリ参照の合計数",
		}),
	}

	reg.MustRegister(
		c.storeOps,
		c.storeLatency,
		c.httpStatus,
		c.skippedFields,
		c.tagAssignments,
		c.waitlistAdded,
		c.cleanupOrphanTags,
		c.cleanupCategories,
	)

	return c
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// ObserveStoreOperation はストア操作の結果とレイテンシを記録する。
func (c *Collector) ObserveStoreOperation(operation string, duration time.Duration, err error) {
	c.storeOps.WithLabelValues(operation, outcome(err)).Inc()
	c.storeLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordSkippedField は記事作成で保存できなかった任意項目を記録する。
func (c *Collector) RecordSkippedField(field string) {
	c.skippedFields.WithLabelValues(field).Inc()
}

// RecordTagAssignment はタグ割り当ての結果を記録する。
func (c *Collector) RecordTagAssignment(mode string, err error) {
	c.tagAssignments.WithLabelValues(mode, outcome(err)).Inc()
}

// RecordWaitlistAdded はウェイトリストへの追加件数を記録する。
func (c *Collector) RecordWaitlistAdded(count int) {
	c.waitlistAdded.Add(float64(count))
}

// RecordCleanup はクリーンアップジョブの処理件数を記録する。
func (c *Collector) RecordCleanup(orphanTags, danglingCategories int64) {
	c.cleanupOrphanTags.Add(float64(orphanTags))
	c.cleanupCategories.Add(float64(danglingCategories))
}

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使用する。
type Nop struct{}

func (Nop) ObserveStoreOperation(string, time.Duration, error) {}
func (Nop) RecordHTTPStatus(int)                               {}
func (Nop) RecordSkippedField(string)                          {}
func (Nop) RecordTagAssignment(string, error)                  {}
func (Nop) RecordWaitlistAdded(int)                            {}
func (Nop) RecordCleanup(int64, int64)                         {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
