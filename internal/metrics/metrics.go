// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Webhook配信結果のラベル値。
const (
	OutcomeDelivered = "delivered"
	OutcomeFailed    = "failed"
	OutcomeDropped   = "dropped"
)

// MetricsCollector はメトリクス収集のインターフェース。
// Webhookディスパッチャ、HTTPミドルウェア、ワーカーから利用する。
type MetricsCollector interface {
	RecordWebhookDelivery(kind, outcome string)
	RecordWebhookStatus(statusCode int)
	RecordWebhookLatency(duration time.Duration)
	RecordHTTPRequest(method string, statusCode int, duration time.Duration)
	RecordSessionsAutoCreated(count int)
	RecordLoginSessionsPurged(count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	webhookDeliveries *prometheus.CounterVec
	webhookStatus     *prometheus.CounterVec
	webhookLatency    prometheus.Histogram
	httpRequests      *prometheus.CounterVec
	httpLatency       prometheus.Histogram
	autoCreated       prometheus.Counter
	loginPurged       prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		webhookDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "growthsession_webhook_deliveries_total",
			Help: "通知種別・結果別のWebhook配信数",
		}, []string{"kind", "outcome"}),
		webhookStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "growthsession_webhook_http_status_total",
			Help: "Webhook送信先が返したHTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		webhookLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "growthsession_webhook_latency_seconds",
			Help:    "Webhook送信1回あたりのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "growthsession_http_requests_total",
			Help: "メソッド・ステータスコード別のAPIリクエスト数",
		}, []string{"method", "status_code"}),
		httpLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "growthsession_http_request_duration_seconds",
			Help:    "APIリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		autoCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "growthsession_sessions_auto_created_total",
			Help: "定期セッション自動作成で作成されたセッション数",
		}),
		loginPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "growthsession_login_sessions_purged_total",
			Help: "クリーンアップで削除された期限切れログインセッション数",
		}),
	}

	reg.MustRegister(
		c.webhookDeliveries,
		c.webhookStatus,
		c.webhookLatency,
		c.httpRequests,
		c.httpLatency,
		c.autoCreated,
		c.loginPurged,
	)

	return c
}

// RecordWebhookDelivery はWebhook配信の最終結果を記録する。
func (c *Collector) RecordWebhookDelivery(kind, outcome string) {
	c.webhookDeliveries.WithLabelValues(kind, outcome).Inc()
}

// RecordWebhookStatus はWebhook送信先のHTTPステータスコードを記録する。
func (c *Collector) RecordWebhookStatus(statusCode int) {
	c.webhookStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordWebhookLatency はWebhook送信のレイテンシを記録する。
func (c *Collector) RecordWebhookLatency(duration time.Duration) {
	c.webhookLatency.Observe(duration.Seconds())
}

// RecordHTTPRequest はAPIリクエストの結果と処理時間を記録する。
func (c *Collector) RecordHTTPRequest(method string, statusCode int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, strconv.Itoa(statusCode)).Inc()
	c.httpLatency.Observe(duration.Seconds())
}

// RecordSessionsAutoCreated は自動作成したセッション数を記録する。
func (c *Collector) RecordSessionsAutoCreated(count int) {
	c.autoCreated.Add(float64(count))
}

// RecordLoginSessionsPurged は削除したログインセッション数を記録する。
func (c *Collector) RecordLoginSessionsPurged(count int64) {
	c.loginPurged.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// ワーカーモードで単独のメトリクスサーバーを起動する際に使用する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
