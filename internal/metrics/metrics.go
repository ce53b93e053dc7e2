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
// 取得パイプライン、解析・削除サービス、HTTPミドルウェアから利用する。
type MetricsCollector interface {
	RecordScrapeAttempt(platform, outcome string)
	RecordFetchFailure(platform, reason string)
	RecordFetchLatency(platform string, duration time.Duration)
	RecordAnalysisCreated(platform string)
	RecordRecordsDeleted(count int)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	scrapeAttempts *prometheus.CounterVec
	fetchFail      *prometheus.CounterVec
	fetchLatency   *prometheus.HistogramVec
	analyses       *prometheus.CounterVec
	deleted        prometheus.Counter
	httpStatus     *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		scrapeAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flagfinder_scrape_attempts_total",
			Help: "プロフィール取得の試行回数（結果別）",
		}, []string{"platform", "outcome"}),
		fetchFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flagfinder_fetch_fail_total",
			Help: "プロフィール取得失敗の合計数（理由別）",
		}, []string{"platform", "reason"}),
		fetchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "flagfinder_fetch_latency_seconds",
			Help:    "2人分のプロフィール取得にかかった時間（秒）",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 90, 120},
		}, []string{"platform"}),
		analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flagfinder_analyses_created_total",
			Help: "保存された解析レコードの合計数",
		}, []string{"platform"}),
		deleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flagfinder_deletion_records_deleted_total",
			Help: "データ削除Webhookで削除された解析レコードの合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flagfinder_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.scrapeAttempts,
		c.fetchFail,
		c.fetchLatency,
		c.analyses,
		c.deleted,
		c.httpStatus,
	)

	return c
}

// RecordScrapeAttempt は1回の取得試行の結果（success, failure）を記録する。
func (c *Collector) RecordScrapeAttempt(platform, outcome string) {
	c.scrapeAttempts.WithLabelValues(platform, outcome).Inc()
}

// RecordFetchFailure はリクエスト単位の取得失敗を記録する。
func (c *Collector) RecordFetchFailure(platform, reason string) {
	c.fetchFail.WithLabelValues(platform, reason).Inc()
}

// RecordFetchLatency は取得のレイテンシを記録する。
func (c *Collector) RecordFetchLatency(platform string, duration time.Duration) {
	c.fetchLatency.WithLabelValues(platform).Observe(duration.Seconds())
}

// RecordAnalysisCreated は解析レコードの保存を記録する。
func (c *Collector) RecordAnalysisCreated(platform string) {
	c.analyses.WithLabelValues(platform).Inc()
}

// RecordRecordsDeleted は削除件数を加算する。
func (c *Collector) RecordRecordsDeleted(count int) {
	c.deleted.Add(float64(count))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使う。
type Nop struct{}

func (Nop) RecordScrapeAttempt(string, string) {}
func (Nop) RecordFetchFailure(string, string) {}
func (Nop) RecordFetchLatency(string, time.Duration) {}
func (Nop) RecordAnalysisCreated(string) {}
func (Nop) RecordRecordsDeleted(int) {}
func (Nop) RecordHTTPStatus(int) {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
