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
	RecordFetchSuccess()
	RecordFetchFailure()
	RecordHTTPStatus(statusCode int)
	RecordFetchLatency(duration time.Duration)
	RecordArticlesCreated(count int)
	RecordSummary(model string)
	RecordSummarizeLatency(duration time.Duration)
	RecordTaskCompleted(status string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	fetchSuccess     prometheus.Counter
	fetchFail        prometheus.Counter
	httpStatus       *prometheus.CounterVec
	fetchLatency     prometheus.Histogram
	articlesCreated  prometheus.Counter
	summaries        *prometheus.CounterVec
	summarizeLatency prometheus.Histogram
	tasksCompleted   *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		fetchSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "digestman_fetch_success_total",
			Help: "ソースフェッチ成功の合計数",
		}),
		fetchFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "digestman_fetch_fail_total",
			Help: "ソースフェッチ失敗の合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "digestman_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		fetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "digestman_fetch_latency_seconds",
			Help:    "ソースフェッチのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		articlesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "digestman_articles_created_total",
			Help: "作成された記事の合計数",
		}),
		summaries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "digestman_summaries_total",
			Help: "モデル別の生成済み要約数",
		}, []string{"model"}),
		summarizeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "digestman_summarize_latency_seconds",
			Help:    "要約生成のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		tasksCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "digestman_tasks_completed_total",
			Help: "終端状態別の処理タスク数",
		}, []string{"status"}),
	}

	reg.MustRegister(
		c.fetchSuccess,
		c.fetchFail,
		c.httpStatus,
		c.fetchLatency,
		c.articlesCreated,
		c.summaries,
		c.summarizeLatency,
		c.tasksCompleted,
	)

	return c
}

// RecordFetchSuccess はフェッチ成功を記録する。
func (c *Collector) RecordFetchSuccess() {
	c.fetchSuccess.Inc()
}

// RecordFetchFailure はフェッチ失敗を記録する。
func (c *Collector) RecordFetchFailure() {
	c.fetchFail.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordFetchLatency はフェッチのレイテンシを記録する。
func (c *Collector) RecordFetchLatency(duration time.Duration) {
	c.fetchLatency.Observe(duration.Seconds())
}

// RecordArticlesCreated は作成された記事数を記録する。
func (c *Collector) RecordArticlesCreated(count int) {
	c.articlesCreated.Add(float64(count))
}

// RecordSummary は生成された要約をモデル別に記録する。
// ローカル生成（local-mock）とAI生成を区別して観測できる。
func (c *Collector) RecordSummary(model string) {
	c.summaries.WithLabelValues(model).Inc()
}

// RecordSummarizeLatency は要約生成のレイテンシを記録する。
func (c *Collector) RecordSummarizeLatency(duration time.Duration) {
	c.summarizeLatency.Observe(duration.Seconds())
}

// RecordTaskCompleted はタスクの終端遷移を状態別に記録する。
func (c *Collector) RecordTaskCompleted(status string) {
	c.tasksCompleted.WithLabelValues(status).Inc()
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
