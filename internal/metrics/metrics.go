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
// ワーカーやサービス層から利用する。
type MetricsCollector interface {
	RecordListingPublished()
	RecordListingClosed()
	RecordSightingReported(listingID string)
	RecordOrphansRemoved(count int)
	RecordRecoveryMailSent()
	RecordCooldownRejection()
	RecordMailFailure(reason string)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	listingPublished  prometheus.Counter
	listingClosed     prometheus.Counter
	sightingReported  prometheus.Counter
	orphansRemoved    prometheus.Counter
	recoveryMailSent  prometheus.Counter
	cooldownRejected  prometheus.Counter
	mailFail          prometheus.Counter
	httpStatus        *prometheus.CounterVec
	requestLatency    prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		listingPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "petfinder_listing_published_total",
			Help: "迷子ペット掲載の作成数",
		}),
		listingClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "petfinder_listing_closed_total",
			Help: "クローズ（カスケード削除）された掲載の合計数",
		}),
		sightingReported: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "petfinder_sighting_reported_total",
			Help: "受け付けた目撃報告の合計数",
		}),
		orphansRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "petfinder_orphan_sightings_removed_total",
			Help: "削除された孤児目撃報告の合計数",
		}),
		recoveryMailSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "petfinder_recovery_mail_sent_total",
			Help: "送信したパスワード再設定メールの合計数",
		}),
		cooldownRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "petfinder_recovery_cooldown_rejected_total",
			Help: "クールダウン中に拒否した再設定リクエストの合計数",
		}),
		mailFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "petfinder_mail_fail_total",
			Help: "メール送信失敗の合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "petfinder_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "petfinder_request_latency_seconds",
			Help:    "HTTPリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.listingPublished,
		c.listingClosed,
		c.sightingReported,
		c.orphansRemoved,
		c.recoveryMailSent,
		c.cooldownRejected,
		c.mailFail,
		c.httpStatus,
		c.requestLatency,
	)

	return c
}

// RecordListingPublished は掲載の作成を記録する。
func (c *Collector) RecordListingPublished() {
	c.listingPublished.Inc()
}

// RecordListingClosed は掲載のクローズを記録する。
func (c *Collector) RecordListingClosed() {
	c.listingClosed.Inc()
}

// RecordSightingReported は目撃報告の受付を記録する。
func (c *Collector) RecordSightingReported(listingID string) {
	c.sightingReported.Inc()
}

// RecordOrphansRemoved は孤児目撃報告の削除数を記録する。
func (c *Collector) RecordOrphansRemoved(count int) {
	c.orphansRemoved.Add(float64(count))
}

// RecordRecoveryMailSent は再設定メールの送信を記録する。
func (c *Collector) RecordRecoveryMailSent() {
	c.recoveryMailSent.Inc()
}

// RecordCooldownRejection はクールダウンによる拒否を記録する。
func (c *Collector) RecordCooldownRejection() {
	c.cooldownRejected.Inc()
}

// RecordMailFailure はメール送信失敗を記録する。
func (c *Collector) RecordMailFailure(reason string) {
	c.mailFail.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエストのレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
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
