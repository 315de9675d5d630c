// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 認証イベント名
const (
	AuthEventSignup = "signup"
	AuthEventLogin  = "login"
	AuthEventVerify = "verify"
)

// 結果ラベル
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ミドルウェアやサービス層から利用する。
type MetricsCollector interface {
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
	RecordAuthEvent(event, result string)
	RecordNoteOperation(op string)
	RecordChatRequest(result string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpStatus     *prometheus.CounterVec
	requestLatency prometheus.Histogram
	authEvents     *prometheus.CounterVec
	noteOps        *prometheus.CounterVec
	chatRequests   *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "noteman_http_requests_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "noteman_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		authEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "noteman_auth_events_total",
			Help: "認証イベント（signup/login/verify）の結果別件数",
		}, []string{"event", "result"}),
		noteOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "noteman_notes_operations_total",
			Help: "成功したノート操作の種類別件数",
		}, []string{"op"}),
		chatRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "noteman_chat_requests_total",
			Help: "チャットAPI呼び出しの結果別件数",
		}, []string{"result"}),
	}

	reg.MustRegister(
		c.httpStatus,
		c.requestLatency,
		c.authEvents,
		c.noteOps,
		c.chatRequests,
	)

	return c
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエスト処理時間を記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// RecordAuthEvent は認証イベントの結果を記録する。
func (c *Collector) RecordAuthEvent(event, result string) {
	c.authEvents.WithLabelValues(event, result).Inc()
}

// RecordNoteOperation はノート操作を記録する。
func (c *Collector) RecordNoteOperation(op string) {
	c.noteOps.WithLabelValues(op).Inc()
}

// RecordChatRequest はチャットAPI呼び出しの結果を記録する。
func (c *Collector) RecordChatRequest(result string) {
	c.chatRequests.WithLabelValues(result).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
