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
// コンテンツサービス、ワーカー、HTTPミドルウェアから利用する。
type MetricsCollector interface {
	RecordContentUpdate()
	RecordAttachmentsStored(category string, count int)
	RecordAttachmentsDetached(category string, count int)
	RecordStorageFailure()
	RecordOrphansReclaimed(count int)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	contentUpdates      prometheus.Counter
	attachmentsStored   *prometheus.CounterVec
	attachmentsDetached *prometheus.CounterVec
	storageFailures     prometheus.Counter
	orphansReclaimed    prometheus.Counter
	httpStatus          *prometheus.CounterVec
	requestLatency      prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		contentUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jovenes_content_updates_total",
			Help: "保存に成功したコンテンツ更新の合計数",
		}),
		attachmentsStored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jovenes_attachments_stored_total",
			Help: "カテゴリ別の保存された添付ファイル数",
		}, []string{"category"}),
		attachmentsDetached: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jovenes_attachments_detached_total",
			Help: "カテゴリ別のレコードから外された添付ファイル数",
		}, []string{"category"}),
		storageFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jovenes_storage_failures_total",
			Help: "添付ファイル書き込み失敗の合計数",
		}),
		orphansReclaimed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jovenes_orphans_reclaimed_total",
			Help: "削除された孤立Blobの合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jovenes_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "jovenes_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.contentUpdates,
		c.attachmentsStored,
		c.attachmentsDetached,
		c.storageFailures,
		c.orphansReclaimed,
		c.httpStatus,
		c.requestLatency,
	)

	return c
}

// RecordContentUpdate はコンテンツ更新の成功を記録する。
func (c *Collector) RecordContentUpdate() {
	c.contentUpdates.Inc()
}

// RecordAttachmentsStored は保存された添付ファイル数を記録する。
func (c *Collector) RecordAttachmentsStored(category string, count int) {
	if count <= 0 {
		return
	}
	c.attachmentsStored.WithLabelValues(category).Add(float64(count))
}

// RecordAttachmentsDetached はレコードから外された添付ファイル数を記録する。
func (c *Collector) RecordAttachmentsDetached(category string, count int) {
	if count <= 0 {
		return
	}
	c.attachmentsDetached.WithLabelValues(category).Add(float64(count))
}

// RecordStorageFailure は添付ファイル書き込みの失敗を記録する。
func (c *Collector) RecordStorageFailure() {
	c.storageFailures.Inc()
}

// RecordOrphansReclaimed は削除された孤立Blob数を記録する。
func (c *Collector) RecordOrphansReclaimed(count int) {
	c.orphansReclaimed.Add(float64(count))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエストの処理時間を記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
