// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 結果ラベルの値。
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// MetricsCollector はメトリクス収集のインターフェース。
// オンボーディング、講師プロフィール、クリーンアップジョブから利用する。
type MetricsCollector interface {
	RecordDraftSave(saved bool)
	RecordPromotion(result string, duration time.Duration)
	RecordAttemptTransition(state string)
	RecordPictureFetch(result string)
	RecordCleanupDeleted(kind string, count int64)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	draftSaves         *prometheus.CounterVec
	promotions         *prometheus.CounterVec
	promotionLatency   prometheus.Histogram
	attemptTransitions *prometheus.CounterVec
	pictureFetches     *prometheus.CounterVec
	cleanupDeleted     *prometheus.CounterVec
	httpStatus         *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		draftSaves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "plastudo_draft_saves_total",
			Help: "アンケート一時レコード保存の試行数（結果別）",
		}, []string{"result"}),
		promotions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "plastudo_promotions_total",
			Help: "講師プロフィール昇格処理の実行数（結果別）",
		}, []string{"result"}),
		promotionLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "plastudo_promotion_latency_seconds",
			Help:    "講師プロフィール昇格処理のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		attemptTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "plastudo_attempt_transitions_total",
			Help: "回答セッションの状態遷移数（遷移先状態別）",
		}, []string{"state"}),
		pictureFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "plastudo_picture_fetches_total",
			Help: "プロフィール画像取得の試行数（結果別）",
		}, []string{"result"}),
		cleanupDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "plastudo_cleanup_deleted_total",
			Help: "クリーンアップジョブで削除したレコード数（種別ごと）",
		}, []string{"kind"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "plastudo_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.draftSaves,
		c.promotions,
		c.promotionLatency,
		c.attemptTransitions,
		c.pictureFetches,
		c.cleanupDeleted,
		c.httpStatus,
	)

	return c
}

// RecordDraftSave は一時レコード保存の結果を記録する。
func (c *Collector) RecordDraftSave(saved bool) {
	result := ResultSuccess
	if !saved {
		result = ResultFailure
	}
	c.draftSaves.WithLabelValues(result).Inc()
}

// RecordPromotion は昇格処理の結果と所要時間を記録する。
func (c *Collector) RecordPromotion(result string, duration time.Duration) {
	c.promotions.WithLabelValues(result).Inc()
	c.promotionLatency.Observe(duration.Seconds())
}

// RecordAttemptTransition は回答セッションの状態遷移を記録する。
func (c *Collector) RecordAttemptTransition(state string) {
	c.attemptTransitions.WithLabelValues(state).Inc()
}

// RecordPictureFetch はプロフィール画像取得の結果を記録する。
func (c *Collector) RecordPictureFetch(result string) {
	c.pictureFetches.WithLabelValues(result).Inc()
}

// RecordCleanupDeleted はクリーンアップで削除した件数を記録する。
func (c *Collector) RecordCleanupDeleted(kind string, count int64) {
	c.cleanupDeleted.WithLabelValues(kind).Add(float64(count))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Middleware はレスポンスのステータスコードを記録するHTTPミドルウェアを返す。
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		c.RecordHTTPStatus(status)
	})
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
