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
// フィードサービスと上流プロキシから利用する。
type MetricsCollector interface {
	RecordTierAttempt(feedID, tier, outcome string, duration time.Duration)
	RecordFallbackExhausted(feedID string)
	RecordMessagesServed(feedID string, count int)
	RecordUpstreamStatus(target string, statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	tierAttempts     *prometheus.CounterVec
	tierLatency      *prometheus.HistogramVec
	fallbackExhaust  *prometheus.CounterVec
	messagesServed   *prometheus.CounterVec
	upstreamStatuses *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		tierAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "adminfeed_tier_attempts_total",
			Help: "フォールバックチェーンのティア試行回数",
		}, []string{"feed", "tier", "outcome"}),
		tierLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "adminfeed_tier_latency_seconds",
			Help:    "ティア1回分の取得レイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"feed", "tier"}),
		fallbackExhaust: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "adminfeed_fallback_exhausted_total",
			Help: "全ティアで取得できなかった回数",
		}, []string{"feed"}),
		messagesServed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "adminfeed_messages_served_total",
			Help: "レスポンスとして返したメッセージの合計数",
		}, []string{"feed"}),
		upstreamStatuses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "adminfeed_upstream_http_status_total",
			Help: "上流サイトのHTTPステータスコード別のレスポンス数",
		}, []string{"target", "status_code"}),
	}

	reg.MustRegister(
		c.tierAttempts,
		c.tierLatency,
		c.fallbackExhaust,
		c.messagesServed,
		c.upstreamStatuses,
	)

	return c
}

// RecordTierAttempt はティア試行の結果とレイテンシを記録する。
func (c *Collector) RecordTierAttempt(feedID, tier, outcome string, duration time.Duration) {
	c.tierAttempts.WithLabelValues(feedID, tier, outcome).Inc()
	c.tierLatency.WithLabelValues(feedID, tier).Observe(duration.Seconds())
}

// RecordFallbackExhausted は全ティア失敗を記録する。
func (c *Collector) RecordFallbackExhausted(feedID string) {
	c.fallbackExhaust.WithLabelValues(feedID).Inc()
}

// RecordMessagesServed は返却したメッセージ数を記録する。
func (c *Collector) RecordMessagesServed(feedID string, count int) {
	c.messagesServed.WithLabelValues(feedID).Add(float64(count))
}

// RecordUpstreamStatus は上流サイトのHTTPステータスコードを記録する。
// 通信自体が失敗した場合はstatusCodeに0を渡す。
func (c *Collector) RecordUpstreamStatus(target string, statusCode int) {
	c.upstreamStatuses.WithLabelValues(target, strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
