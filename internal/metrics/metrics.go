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
// ミドルウェアやサービス層から利用する。
type MetricsCollector interface {
	RecordTicketMutation(op, outcome string)
	RecordSessionResolution(outcome string)
	RecordIdentityRequest(op string, duration time.Duration)
	RecordViewCacheLookup(view string, hit bool)
	RecordHTTPStatus(statusCode int)
}

// チケット変更操作の結果ラベル
const (
	OutcomeApplied    = "applied"
	OutcomeNoMatch    = "no_match"
	OutcomeRejected   = "rejected"
	OutcomeAnonymous  = "anonymous"
	OutcomeInvalid    = "invalid"
	OutcomeBackendErr = "error"
)

// セッション解決の結果ラベル
const (
	SessionValid     = "valid"
	SessionRotated   = "rotated"
	SessionAnonymous = "anonymous"
	SessionCleared   = "cleared"
)

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	ticketMutations    *prometheus.CounterVec
	sessionResolutions *prometheus.CounterVec
	identityLatency    *prometheus.HistogramVec
	viewCacheLookups   *prometheus.CounterVec
	httpStatus         *prometheus.CounterVec
}

var _ MetricsCollector = (*Collector)(nil)

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		ticketMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_ticket_mutations_total",
			Help: "チケット変更操作の結果別の合計数",
		}, []string{"op", "outcome"}),
		sessionResolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_session_resolutions_total",
			Help: "リクエストごとのセッション解決結果の合計数",
		}, []string{"outcome"}),
		identityLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "helpdesk_identity_request_duration_seconds",
			Help:    "認証バックエンド呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		viewCacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_view_cache_lookups_total",
			Help: "ビューキャッシュ参照のヒット/ミス数",
		}, []string{"view", "result"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.ticketMutations,
		c.sessionResolutions,
		c.identityLatency,
		c.viewCacheLookups,
		c.httpStatus,
	)

	return c
}

// RecordTicketMutation はチケット変更操作の結果を記録する。
func (c *Collector) RecordTicketMutation(op, outcome string) {
	c.ticketMutations.WithLabelValues(op, outcome).Inc()
}

// RecordSessionResolution はセッション解決の結果を記録する。
func (c *Collector) RecordSessionResolution(outcome string) {
	c.sessionResolutions.WithLabelValues(outcome).Inc()
}

// RecordIdentityRequest は認証バックエンド呼び出しのレイテンシを記録する。
func (c *Collector) RecordIdentityRequest(op string, duration time.Duration) {
	c.identityLatency.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordViewCacheLookup はビューキャッシュ参照の結果を記録する。
func (c *Collector) RecordViewCacheLookup(view string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	c.viewCacheLookups.WithLabelValues(view, result).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Nop は何も記録しないMetricsCollector。
// テストやメトリクス未設定時に使用する。
type Nop struct{}

var _ MetricsCollector = Nop{}

func (Nop) RecordTicketMutation(string, string) {}
func (Nop) RecordSessionResolution(string) {}
func (Nop) RecordIdentityRequest(string, time.Duration) {}
func (Nop) RecordViewCacheLookup(string, bool) {}
func (Nop) RecordHTTPStatus(int) {}

// OrNop はmcがnilの場合にNopを返す。
func OrNop(mc MetricsCollector) MetricsCollector {
	if mc == nil {
		return Nop{}
	}
	return mc
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
