// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ゲートウェイ種別のラベル値。
const (
	GatewayQuestion  = "question"
	GatewayEvaluator = "evaluator"
	GatewayFinalizer = "finalizer"
	GatewayResume    = "resume"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 面接サービスとゲートウェイから利用する。
type MetricsCollector interface {
	RecordSessionStarted()
	RecordSessionCompleted()
	RecordSubmission(auto bool)
	RecordGatewayFallback(kind string)
	RecordGatewayLatency(kind string, duration time.Duration)
	RecordAutoSubmitWon()
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	sessionsStarted   prometheus.Counter
	sessionsCompleted prometheus.Counter
	submissions       *prometheus.CounterVec
	gatewayFallback   *prometheus.CounterVec
	gatewayLatency    *prometheus.HistogramVec
	autoSubmitWon     prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		sessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "interviewman_sessions_started_total",
			Help: "開始された面接セッションの合計数",
		}),
		sessionsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "interviewman_sessions_completed_total",
			Help: "完了した面接セッションの合計数",
		}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "interviewman_submissions_total",
			Help: "回答提出の合計数（手動/自動別）",
		}, []string{"mode"}),
		gatewayFallback: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "interviewman_gateway_fallback_total",
			Help: "ゲートウェイ呼び出し失敗によるフォールバックの合計数",
		}, []string{"gateway"}),
		gatewayLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "interviewman_gateway_latency_seconds",
			Help:    "ゲートウェイ呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"gateway"}),
		autoSubmitWon: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "interviewman_auto_submit_won_total",
			Help: "タイマー満了による自動提出が提出レースに勝った合計数",
		}),
	}

	reg.MustRegister(
		c.sessionsStarted,
		c.sessionsCompleted,
		c.submissions,
		c.gatewayFallback,
		c.gatewayLatency,
		c.autoSubmitWon,
	)

	return c
}

// RecordSessionStarted はセッション開始を記録する。
func (c *Collector) RecordSessionStarted() {
	c.sessionsStarted.Inc()
}

// RecordSessionCompleted はセッション完了を記録する。
func (c *Collector) RecordSessionCompleted() {
	c.sessionsCompleted.Inc()
}

// RecordSubmission は回答提出を記録する。
func (c *Collector) RecordSubmission(auto bool) {
	mode := "manual"
	if auto {
		mode = "auto"
	}
	c.submissions.WithLabelValues(mode).Inc()
}

// RecordGatewayFallback はゲートウェイのフォールバック発動を記録する。
func (c *Collector) RecordGatewayFallback(kind string) {
	c.gatewayFallback.WithLabelValues(kind).Inc()
}

// RecordGatewayLatency はゲートウェイ呼び出しのレイテンシを記録する。
func (c *Collector) RecordGatewayLatency(kind string, duration time.Duration) {
	c.gatewayLatency.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordAutoSubmitWon は自動提出が提出レースに勝ったことを記録する。
func (c *Collector) RecordAutoSubmitWon() {
	c.autoSubmitWon.Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop は何も記録しないコレクター。テストで使用する。
type Nop struct{}

func (Nop) RecordSessionStarted()                      {}
func (Nop) RecordSessionCompleted()                    {}
func (Nop) RecordSubmission(bool)                      {}
func (Nop) RecordGatewayFallback(string)               {}
func (Nop) RecordGatewayLatency(string, time.Duration) {}
func (Nop) RecordAutoSubmitWon()                       {}

// compile-time interface check
var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
